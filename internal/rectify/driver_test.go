// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package rectify

import (
	"testing"

	"github.com/mlnoga/groundlight/internal/geom"
	"github.com/mlnoga/groundlight/internal/raster"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exampleCamera(pitchDeg float64) geom.Camera {
	return geom.NewCameraFromDegrees(100, 100, 79, 59, 2000, pitchDeg, 0, 160, 120)
}

func exampleRegion(interp geom.Interpolation) geom.Region {
	return geom.Region{OutputWidth: 160, OutputHeight: 120, Left: 0, Right: 159, Top: 12, Bottom: 119,
		VPPortion: 0.045, Interpolation: interp}
}

func TestRectifyMidGray(t *testing.T) {
	for _, interp := range []geom.Interpolation{geom.InterpolationBilinear, geom.InterpolationNearest} {
		in := raster.NewImageFilled(160, 120, 128)
		out, m, err := NewDriver().Rectify(in, exampleCamera(0), exampleRegion(interp))
		require.NoError(t, err)
		assert.Equal(t, []int32{80, 120}, out.Naxisn)
		assert.Greater(t, m.StepX, 0.0)
		assert.Greater(t, m.StepY, 0.0)
		for _, v := range out.Data {
			assert.InDelta(t, 128, v, 1e-3)
		}
		require.NotNil(t, out.Stats)
		assert.InDelta(t, 128, out.Stats.Mean, 1e-3)

		// input untouched
		assert.Equal(t, float32(128), in.Data[0])
	}
}

func TestCropColumns(t *testing.T) {
	cases := []struct{ width, from, to int }{
		{160, 40, 120},
		{101, 25, 76},
		{1, 0, 1},
		{3, 0, 2},
	}
	for _, c := range cases {
		from, to := CropColumns(c.width)
		if from != c.from || to != c.to {
			t.Errorf("width %d: got [%d,%d) want [%d,%d)", c.width, from, to, c.from, c.to)
		}
	}
}

func TestRectifyOutputWidth(t *testing.T) {
	for _, w := range []int{7, 40, 101} {
		region := exampleRegion(geom.InterpolationNearest)
		region.OutputWidth, region.OutputHeight = w, 17
		out, _, err := NewDriver().Rectify(raster.NewImageFilled(160, 120, 10), exampleCamera(0), region)
		require.NoError(t, err)
		from, to := CropColumns(w)
		assert.Equal(t, to-from, out.Width())
		assert.Equal(t, 17, out.Height())
	}
}

func TestRectifyDegenerate(t *testing.T) {
	out, _, err := NewDriver().Rectify(raster.NewImageFilled(160, 120, 128), exampleCamera(-40), exampleRegion(0))
	assert.Nil(t, out)
	assert.True(t, errors.Is(err, geom.ErrDegenerateProjection), "got %v", err)
}

func TestRectifyWrongSize(t *testing.T) {
	_, _, err := NewDriver().Rectify(raster.NewImageFilled(80, 60, 128), exampleCamera(0), exampleRegion(0))
	assert.True(t, errors.Is(err, geom.ErrInvalidArgument))

	_, _, err = NewDriver().Rectify(nil, exampleCamera(0), exampleRegion(0))
	assert.True(t, errors.Is(err, geom.ErrInvalidArgument))
}

func TestRectifyOversizedOutput(t *testing.T) {
	region := exampleRegion(geom.InterpolationBilinear)
	region.OutputWidth, region.OutputHeight = 65536, 32768
	out, _, err := NewDriver().Rectify(raster.NewImageFilled(160, 120, 128), exampleCamera(0), region)
	assert.Nil(t, out)
	assert.True(t, errors.Is(err, geom.ErrConfiguration), "got %v", err)
}
