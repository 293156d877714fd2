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


// Package points converts batches of coordinates between the input image,
// the ground plane and the rectified raster.
package points

import (
	"math"

	"github.com/mlnoga/groundlight/internal/geom"
	"github.com/mlnoga/groundlight/internal/projection"
	"github.com/mlnoga/groundlight/internal/scale"
	"github.com/pkg/errors"
)

// Maps coordinate batches with a projector. Holds no state between calls,
// a fresh mapping is derived for every call
type Mapper struct {
	Proj projection.Projector
}

// Creates a point mapper on top of the pinhole projector
func NewMapper() *Mapper {
	return &Mapper{Proj: projection.Pinhole{}}
}

func checkLengths(xs, ys []float64) error {
	if len(xs) != len(ys) {
		return errors.Wrapf(geom.ErrInvalidArgument, "got %d x and %d y coordinates", len(xs), len(ys))
	}
	return nil
}

// Projects image points onto the ground plane. Also returns the mapping derived from the
// camera and its region, so ground coordinates can be related to the rectified raster
func (pm *Mapper) ImageToGround(us, vs []float64, cam geom.Camera, region geom.Region) (xs, ys []float64, m geom.Mapping, err error) {
	if err := checkLengths(us, vs); err != nil {
		return nil, nil, geom.Mapping{}, err
	}
	if m, err = scale.Derive(pm.Proj, cam, region); err != nil {
		return nil, nil, m, err
	}
	if xs, ys, err = pm.Proj.ImageToGround(us, vs, cam); err != nil {
		return nil, nil, m, err
	}
	return xs, ys, m, nil
}

// Maps rectified raster positions back into the input image. Intermediate ground
// coordinates are truncated toward zero to whole ground units before projection
func (pm *Mapper) IPMToImage(xs, ys []float64, cam geom.Camera, region geom.Region) (us, vs []float64, m geom.Mapping, err error) {
	if err := checkLengths(xs, ys); err != nil {
		return nil, nil, geom.Mapping{}, err
	}
	if m, err = scale.Derive(pm.Proj, cam, region); err != nil {
		return nil, nil, m, err
	}

	gxs, gys := make([]float64, len(xs)), make([]float64, len(ys))
	for i := range xs {
		gx, gy := m.RasterToGround(xs[i], ys[i])
		gxs[i], gys[i] = math.Trunc(gx), math.Trunc(gy)
	}
	if us, vs, err = pm.Proj.GroundToImage(gxs, gys, cam); err != nil {
		return nil, nil, m, err
	}
	return us, vs, m, nil
}
