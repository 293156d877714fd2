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

// Linear mapping between ground plane coordinates and rectified raster pixels,
// derived from exactly one camera and region. Never shared between calls.
//
// Ground x grows to the right with raster columns, ground y grows with distance
// from the camera, i.e. towards raster row 0.
type Mapping struct {
	StepX        float64  `json:"stepX"` // Ground distance per raster column
	StepY        float64  `json:"stepY"` // Ground distance per raster row
	XMin         float64  `json:"xMin"`
	XMax         float64  `json:"xMax"`
	YMin         float64  `json:"yMin"`
	YMax         float64  `json:"yMax"`
	OutputWidth  int      `json:"ipmWidth"`
	OutputHeight int      `json:"ipmHeight"`
	Region       Region   `json:"region"`         // The effective region after clamping
	Vanishing    r2.Point `json:"vanishingPoint"` // Vanishing point, row clamped to be non-negative
}

// Checks that the mapping spans a positive, finite area on the ground
func (m Mapping) Validate() error {
	for _, v := range []float64{m.XMin, m.XMax, m.YMin, m.YMax, m.StepX, m.StepY} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Wrapf(ErrDegenerateProjection, "non-finite ground extents %v", m)
		}
	}
	if !(m.StepX > 0) || !(m.StepY > 0) {
		return errors.Wrapf(ErrDegenerateProjection, "ground extents without area %v", m)
	}
	return nil
}

// Center of the ground extents along x
func (m Mapping) CenterX() float64 {
	return (m.XMax + m.XMin) / 2
}

// Converts a rectified raster position to ground coordinates.
// The half width uses integer division, so odd raster widths
// map their center column half a pixel off the ground center
func (m Mapping) RasterToGround(x, y float64) (gx, gy float64) {
	gx = (x-float64(m.OutputWidth/2))*m.StepX + m.CenterX()
	gy = (float64(m.OutputHeight)-y)*m.StepY + m.YMin
	return gx, gy
}

// Converts ground coordinates to a rectified raster position. Inverse of RasterToGround
func (m Mapping) GroundToRaster(gx, gy float64) (x, y float64) {
	x = (gx-m.CenterX())/m.StepX + float64(m.OutputWidth/2)
	y = float64(m.OutputHeight) - (gy-m.YMin)/m.StepY
	return x, y
}

func (m Mapping) String() string {
	return fmt.Sprintf("step (%.6g,%.6g) x=[%.6g,%.6g] y=[%.6g,%.6g] for %dx%d",
		m.StepX, m.StepY, m.XMin, m.XMax, m.YMin, m.YMax, m.OutputWidth, m.OutputHeight)
}
