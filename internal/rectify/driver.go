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


// Package rectify warps camera frames into a top-down view of the ground plane.
package rectify

import (
	"math"

	"github.com/mlnoga/groundlight/internal/geom"
	"github.com/mlnoga/groundlight/internal/projection"
	"github.com/mlnoga/groundlight/internal/raster"
	"github.com/mlnoga/groundlight/internal/scale"
	"github.com/pkg/errors"
)

// Display range of input samples. Warping happens on samples normalized to [0,1]
const DisplayRange = 255

// Share of the rectified width kept by the central crop, and where it starts
const (
	CropShare = 0.5
	CropStart = 0.25
)

// Rectifies frames with a projector. Holds no state between calls
type Driver struct {
	Proj projection.Projector
}

// Creates a driver on top of the pinhole projector
func NewDriver() *Driver {
	return &Driver{Proj: projection.Pinhole{}}
}

// Rectifies the input raster for the given camera and region, and crops the result to the central
// half of its columns. Returns the cropped raster and the mapping used. The input is not modified
func (d *Driver) Rectify(in *raster.Image, cam geom.Camera, region geom.Region) (*raster.Image, geom.Mapping, error) {
	if err := in.Validate(); err != nil {
		return nil, geom.Mapping{}, errors.Wrap(geom.ErrInvalidArgument, err.Error())
	}
	m, err := scale.Derive(d.Proj, cam, region)
	if err != nil {
		return nil, m, err
	}

	norm := raster.NewImageFromImage(in)
	norm.ApplyScaleOffset(1.0/DisplayRange, 0)
	warped, err := d.Proj.WarpToGround(norm, m, cam)
	if err != nil {
		return nil, m, err
	}
	warped.ApplyScaleOffset(DisplayRange, 0)

	from, to := CropColumns(m.OutputWidth)
	res, err := warped.CropColumns(from, to)
	if err != nil {
		return nil, m, errors.Wrap(geom.ErrDegenerateProjection, err.Error())
	}
	res.UpdateStats()
	return res, m, nil
}

// Returns the column range [from, to) kept of a rectified raster with the given width
func CropColumns(width int) (from, to int) {
	from = int(math.Floor(CropStart * float64(width)))
	to = from + int(math.Round(CropShare*float64(width)))
	if to > width {
		to = width
	}
	return from, to
}
