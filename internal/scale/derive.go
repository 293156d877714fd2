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


// Package scale derives the linear mapping between ground plane coordinates
// and rectified raster pixels for a camera and region of interest.
package scale

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/mlnoga/groundlight/internal/geom"
	"github.com/mlnoga/groundlight/internal/projection"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// Derives the ground extents and step sizes of the rectified raster for the given camera and region.
// The region is clamped against the image and the vanishing point first; the clamped copy is
// returned in Mapping.Region and is what every later step must use. Fails with
// ErrConfiguration on invalid inputs and ErrDegenerateProjection if the clamped region
// does not project onto a positive, finite ground area.
func Derive(p projection.Projector, cam geom.Camera, region geom.Region) (geom.Mapping, error) {
	if err := cam.Validate(); err != nil {
		return geom.Mapping{}, err
	}
	if err := region.Validate(); err != nil {
		return geom.Mapping{}, err
	}

	vp := p.VanishingPoint(cam)
	clamped, err := region.Clamp(vp, cam.ImageWidth, cam.ImageHeight)
	if err != nil {
		return geom.Mapping{}, err
	}
	vp.Y = math.Max(0, vp.Y)

	corners := limitCorners(vp, clamped)
	us, vs := make([]float64, len(corners)), make([]float64, len(corners))
	for i, c := range corners {
		us[i], vs[i] = c.X, c.Y
	}
	xs, ys, err := p.ImageToGround(us, vs, cam)
	if err != nil {
		return geom.Mapping{}, err
	}

	m := geom.Mapping{
		XMin:         floats.Min(xs),
		XMax:         floats.Max(xs),
		YMin:         floats.Min(ys),
		YMax:         floats.Max(ys),
		OutputWidth:  clamped.OutputWidth,
		OutputHeight: clamped.OutputHeight,
		Region:       clamped,
		Vanishing:    vp,
	}
	m.StepX = (m.XMax - m.XMin) / float64(m.OutputWidth)
	m.StepY = (m.YMax - m.YMin) / float64(m.OutputHeight)

	if hasNaN(xs) || hasNaN(ys) {
		return m, errors.Wrapf(geom.ErrDegenerateProjection, "region corners %v project to undefined ground points", corners)
	}
	if err := m.Validate(); err != nil {
		return m, err
	}
	return m, nil
}

// Image points whose ground projections bound the rectified area
func limitCorners(vp r2.Point, r geom.Region) []r2.Point {
	return []r2.Point{
		{X: vp.X, Y: r.Top},
		{X: r.Right, Y: r.Top},
		{X: r.Left, Y: r.Top},
		{X: vp.X, Y: r.Bottom},
	}
}

func hasNaN(xs []float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) {
			return true
		}
	}
	return false
}
