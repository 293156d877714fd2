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


package geom

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
)

// Interpolation mode for resampling the input image into the rectified raster.
// Numeric values match the ipmInterpolation configuration key
type Interpolation int

const (
	InterpolationBilinear Interpolation = iota
	InterpolationNearest
)

func (i Interpolation) String() string {
	switch i {
	case InterpolationBilinear:
		return "bilinear"
	case InterpolationNearest:
		return "nearest"
	}
	return fmt.Sprintf("Interpolation(%d)", int(i))
}

// The rectangle of the input image to rectify, plus the output raster size
// and interpolation mode. Bounds are in input image pixels
type Region struct {
	OutputWidth   int           `json:"ipmWidth"`
	OutputHeight  int           `json:"ipmHeight"`
	Left          float64       `json:"ipmLeft"`
	Right         float64       `json:"ipmRight"`
	Top           float64       `json:"ipmTop"`
	Bottom        float64       `json:"ipmBottom"`
	VPPortion     float64       `json:"vpPortion"` // Fraction of image height kept clear below the vanishing point
	Interpolation Interpolation `json:"ipmInterpolation"`
}

// Checks the configured region. Clamping against the camera happens later in Clamp
func (r Region) Validate() error {
	if err := checkPixels("output", r.OutputWidth, r.OutputHeight); err != nil {
		return err
	}
	if !(r.VPPortion >= 0 && r.VPPortion <= 1) {
		return errors.Wrapf(ErrConfiguration, "vanishing point portion %v outside [0,1]", r.VPPortion)
	}
	if r.Interpolation != InterpolationBilinear && r.Interpolation != InterpolationNearest {
		return errors.Wrapf(ErrConfiguration, "unknown interpolation mode %d", int(r.Interpolation))
	}
	for _, v := range []float64{r.Left, r.Right, r.Top, r.Bottom} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Wrapf(ErrConfiguration, "non-finite region bound in %v", r)
		}
	}
	if r.Left > r.Right || r.Top > r.Bottom {
		return errors.Wrapf(ErrConfiguration, "empty region %v", r)
	}
	return nil
}

// Returns a copy of the region clamped to the image bounds, with the top row moved
// at least vpPortion*imageHeight below the vanishing point. A vanishing point above
// the image counts as row 0. Fails with ErrDegenerateProjection if the vanishing point
// is not finite or if nothing of the region is left after clamping
func (r Region) Clamp(vp r2.Point, imageWidth, imageHeight int) (Region, error) {
	if math.IsNaN(vp.X) || math.IsNaN(vp.Y) || math.IsInf(vp.X, 0) || math.IsInf(vp.Y, 0) {
		return r, errors.Wrapf(ErrDegenerateProjection, "vanishing point %v undefined", vp)
	}
	vpY := math.Max(0, vp.Y)
	eps := r.VPPortion * float64(imageHeight)

	c := r
	c.Left = math.Max(0, r.Left)
	c.Right = math.Min(float64(imageWidth-1), r.Right)
	c.Top = math.Max(vpY+eps, r.Top)
	c.Bottom = math.Min(float64(imageHeight-1), r.Bottom)

	if !(c.Left < c.Right) {
		return c, errors.Wrapf(ErrDegenerateProjection, "clamped region has no width, left %.6g right %.6g", c.Left, c.Right)
	}
	if !(c.Top <= c.Bottom) {
		return c, errors.Wrapf(ErrDegenerateProjection, "clamped region has no height, top %.6g bottom %.6g (vanishing point row %.6g)",
			c.Top, c.Bottom, vpY)
	}
	return c, nil
}

// Returns true if the given image position lies inside the region, bounds inclusive
func (r Region) Contains(u, v float64) bool {
	return u >= r.Left && u <= r.Right && v >= r.Top && v <= r.Bottom
}

func (r Region) String() string {
	return fmt.Sprintf("out %dx%d x=[%.6g,%.6g] y=[%.6g,%.6g] vpPortion %.4g %v",
		r.OutputWidth, r.OutputHeight, r.Left, r.Right, r.Top, r.Bottom, r.VPPortion, r.Interpolation)
}
