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
	"runtime"

	"github.com/mlnoga/groundlight/internal/geom"
	"github.com/mlnoga/groundlight/internal/raster"
	"github.com/mlnoga/groundlight/internal/stats"
	"github.com/pkg/errors"
)

// Resamples the input image onto the ground grid of the mapping. Output pixel (col,row) samples the
// ground point at the center of its cell, (xMin+(col+0.5)*stepX, yMax-(row+0.5)*stepY). Positions
// outside the mapping's clamped region are filled with the mean of the input.
func (p Pinhole) WarpToGround(in *raster.Image, m geom.Mapping, cam geom.Camera) (*raster.Image, error) {
	if err := in.Validate(); err != nil {
		return nil, errors.Wrap(geom.ErrInvalidArgument, err.Error())
	}
	if in.Width() != cam.ImageWidth || in.Height() != cam.ImageHeight {
		return nil, errors.Wrapf(geom.ErrInvalidArgument, "%d: input %s does not match camera resolution %dx%d",
			in.ID, in.DimensionsToString(), cam.ImageWidth, cam.ImageHeight)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}

	outWidth, outHeight := m.OutputWidth, m.OutputHeight
	xs, ys := make([]float64, outWidth*outHeight), make([]float64, outWidth*outHeight)
	for row := 0; row < outHeight; row++ {
		y := m.YMax - (float64(row)+0.5)*m.StepY
		for col := 0; col < outWidth; col++ {
			xs[col+row*outWidth] = m.XMin + (float64(col)+0.5)*m.StepX
			ys[col+row*outWidth] = y
		}
	}
	us, vs, err := p.GroundToImage(xs, ys, cam)
	if err != nil {
		return nil, err
	}

	res := raster.NewImageFromNaxisn([]int32{int32(outWidth), int32(outHeight)}, nil)
	res.ID, res.FileName = in.ID, in.FileName
	fill := stats.CalcBasicStats(in.Data).Mean

	// one work package per row, limit parallelism to NumCPUs()
	sem := make(chan bool, runtime.NumCPU())
	for row := 0; row < outHeight; row++ {
		sem <- true
		go func(row int) {
			defer func() { <-sem }()
			for col := 0; col < outWidth; col++ {
				i := col + row*outWidth
				u, v := us[i], vs[i]
				if !m.Region.Contains(u, v) {
					res.Data[i] = fill
					continue
				}
				if m.Region.Interpolation == geom.InterpolationNearest {
					res.Data[i] = sampleNearest(in, u, v)
				} else {
					res.Data[i] = sampleBilinear(in, u, v)
				}
			}
		}(row)
	}
	for i := 0; i < cap(sem); i++ { // wait for goroutines to finish
		sem <- true
	}

	res.UpdateStats()
	return res, nil
}

// Bilinear interpolation. u and v must be non-negative and inside the image
func sampleBilinear(img *raster.Image, u, v float64) float32 {
	width, height := img.Width(), img.Height()
	xl, yl := int(u), int(v)
	xh, yh := xl+1, yl+1
	if xh > width-1 {
		xh = width - 1
	}
	if yh > height-1 {
		yh = height - 1
	}
	xr, yr := float32(u-float64(xl)), float32(v-float64(yl))

	vyl := img.At(xl, yl)*(1-xr) + img.At(xh, yl)*xr
	vyh := img.At(xl, yh)*(1-xr) + img.At(xh, yh)*xr
	return vyl*(1-yr) + vyh*yr
}

// Nearest neighbor interpolation. u and v must be non-negative and inside the image
func sampleNearest(img *raster.Image, u, v float64) float32 {
	x, y := int(u+0.5), int(v+0.5)
	if x > img.Width()-1 {
		x = img.Width() - 1
	}
	if y > img.Height()-1 {
		y = img.Height() - 1
	}
	return img.At(x, y)
}
