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


package projection

import (
	"math"
	"testing"

	"github.com/mlnoga/groundlight/internal/geom"
	"github.com/mlnoga/groundlight/internal/raster"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fastrand"
)

func unityCamera() geom.Camera {
	return geom.NewCameraFromDegrees(100, 100, 79, 59, 2000, 0, 0, 160, 120)
}

func TestVanishingPointLevelCamera(t *testing.T) {
	vp := Pinhole{}.VanishingPoint(unityCamera())
	assert.InDelta(t, 79, vp.X, 1e-9)
	assert.InDelta(t, 59, vp.Y, 1e-9)
}

func TestVanishingPointPitchedCamera(t *testing.T) {
	for _, angles := range [][2]float64{{10, 0}, {12, 17}, {-5, -20}} {
		cam := geom.NewCameraFromDegrees(100, 90, 79, 59, 2000, angles[0], angles[1], 160, 120)
		vp := Pinhole{}.VanishingPoint(cam)
		assert.InDelta(t, 59-90*math.Tan(cam.Pitch), vp.Y, 1e-6, "pitch %v yaw %v", angles[0], angles[1])

		// a point far out along the camera heading converges to the vanishing point
		far := 1e12
		us, vs, err := Pinhole{}.GroundToImage([]float64{far * math.Sin(cam.Yaw)}, []float64{far * math.Cos(cam.Yaw)}, cam)
		require.NoError(t, err)
		assert.InDelta(t, vp.X, us[0], 1e-3)
		assert.InDelta(t, vp.Y, vs[0], 1e-3)
	}
}

func TestImageToGroundLevelCamera(t *testing.T) {
	cam := unityCamera()
	xs, ys, err := Pinhole{}.ImageToGround([]float64{79, 159, 0, 79}, []float64{64.4, 64.4, 64.4, 119}, cam)
	require.NoError(t, err)
	want := [][2]float64{{0, 37037.037}, {29629.630, 37037.037}, {-29259.259, 37037.037}, {0, 3333.333}}
	for i, w := range want {
		assert.InDelta(t, w[0], xs[i], 1e-2)
		assert.InDelta(t, w[1], ys[i], 1e-2)
	}
}

func TestImageGroundRoundTrip(t *testing.T) {
	rng := fastrand.RNG{}
	rng.Seed(42)
	for _, angles := range [][2]float64{{0, 0}, {11.5, 3}, {-4, 25}} {
		cam := geom.NewCameraFromDegrees(100, 90, 79, 59, 2000, angles[0], angles[1], 160, 120)
		vp := Pinhole{}.VanishingPoint(cam)

		n := 200
		us, vs := make([]float64, n), make([]float64, n)
		for i := range us {
			us[i] = float64(rng.Uint32n(160))
			vs[i] = math.Max(vp.Y, 0) + 5 + float64(rng.Uint32n(1000))/1000*(119-math.Max(vp.Y, 0)-5)
		}
		xs, ys, err := Pinhole{}.ImageToGround(us, vs, cam)
		require.NoError(t, err)
		backU, backV, err := Pinhole{}.GroundToImage(xs, ys, cam)
		require.NoError(t, err)
		for i := range us {
			assert.InDelta(t, us[i], backU[i], 1e-6)
			assert.InDelta(t, vs[i], backV[i], 1e-6)
		}
	}
}

func TestBatchLengthMismatch(t *testing.T) {
	_, _, err := Pinhole{}.ImageToGround([]float64{1, 2}, []float64{1}, unityCamera())
	assert.True(t, errors.Is(err, geom.ErrInvalidArgument))
	_, _, err = Pinhole{}.GroundToImage([]float64{1}, nil, unityCamera())
	assert.True(t, errors.Is(err, geom.ErrInvalidArgument))
}

func TestEmptyBatch(t *testing.T) {
	xs, ys, err := Pinhole{}.ImageToGround(nil, nil, unityCamera())
	require.NoError(t, err)
	assert.Empty(t, xs)
	assert.Empty(t, ys)
}

func flatMapping(cam geom.Camera, interp geom.Interpolation) geom.Mapping {
	region := geom.Region{OutputWidth: 40, OutputHeight: 30, Left: 0, Right: 159, Top: 64.4, Bottom: 119,
		VPPortion: 0.045, Interpolation: interp}
	return geom.Mapping{
		StepX: 58888.889 / 40, StepY: 33703.704 / 30,
		XMin: -29259.259, XMax: 29629.630, YMin: 3333.333, YMax: 37037.037,
		OutputWidth: 40, OutputHeight: 30, Region: region,
	}
}

func TestWarpToGroundFlatImage(t *testing.T) {
	cam := unityCamera()
	in := raster.NewImageFilled(160, 120, 0.5)
	for _, interp := range []geom.Interpolation{geom.InterpolationBilinear, geom.InterpolationNearest} {
		out, err := Pinhole{}.WarpToGround(in, flatMapping(cam, interp), cam)
		require.NoError(t, err)
		assert.Equal(t, []int32{40, 30}, out.Naxisn)
		for _, v := range out.Data {
			assert.InDelta(t, 0.5, v, 1e-6)
		}
	}
}

func TestWarpToGroundSamplesColumns(t *testing.T) {
	// vertical stripes left dark, right bright: the ground center line divides them
	cam := unityCamera()
	in := raster.NewImageFromNaxisn([]int32{160, 120}, nil)
	for y := 0; y < 120; y++ {
		for x := 80; x < 160; x++ {
			in.Set(x, y, 1)
		}
	}
	out, err := Pinhole{}.WarpToGround(in, flatMapping(cam, geom.InterpolationNearest), cam)
	require.NoError(t, err)
	bottom := out.Height() - 1
	assert.Equal(t, float32(0), out.At(19, bottom))
	assert.Equal(t, float32(1), out.At(20, bottom))
	assert.Equal(t, float32(0.5), out.At(0, bottom)) // outside the region, mean fill
}

func TestWarpToGroundRejectsBadInput(t *testing.T) {
	cam := unityCamera()
	_, err := Pinhole{}.WarpToGround(raster.NewImageFilled(10, 10, 0), flatMapping(cam, 0), cam)
	assert.True(t, errors.Is(err, geom.ErrInvalidArgument))

	m := flatMapping(cam, 0)
	m.StepX = 0
	_, err = Pinhole{}.WarpToGround(raster.NewImageFilled(160, 120, 0), m, cam)
	assert.True(t, errors.Is(err, geom.ErrDegenerateProjection))
}
