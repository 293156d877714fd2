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


// Package raster holds single-channel floating point rasters, as produced by
// decoding camera frames and consumed by the ground plane warp.
package raster

import (
	"fmt"
	"strings"

	"github.com/mlnoga/groundlight/internal/stats"
	"github.com/pkg/errors"
)

// A single-channel raster. Samples are stored row by row, most quickly varying dimension first (i.e. X,Y)
type Image struct {
	ID       int    // Sequential ID number, for log output. Counted upwards from 0 for input frames
	FileName string // Original file name, if any, for log output

	Naxisn []int32 // Axis dimensions, width first
	Pixels int32   // Number of pixels in the image. Product of Naxisn[]

	Data []float32 // The image data

	Stats *stats.Stats // Basic image statistics: min, mean, max. Nil until calculated
}

// Creates a raster from given naxisn. Data is not copied, allocated if nil. naxisn is deep copied
func NewImageFromNaxisn(naxisn []int32, data []float32) *Image {
	numPixels := int32(1)
	for _, naxis := range naxisn {
		numPixels *= naxis
	}
	if data == nil {
		data = make([]float32, numPixels)
	}
	return &Image{
		Naxisn: append([]int32(nil), naxisn...), // clone slice
		Pixels: numPixels,
		Data:   data,
	}
}

// Creates a raster of the given width and height, filled with the given value
func NewImageFilled(width, height int, value float32) *Image {
	img := NewImageFromNaxisn([]int32{int32(width), int32(height)}, nil)
	for i := range img.Data {
		img.Data[i] = value
	}
	return img
}

// Creates a deep copy of the given raster
func NewImageFromImage(img *Image) *Image {
	data := make([]float32, len(img.Data))
	copy(data, img.Data)
	res := NewImageFromNaxisn(img.Naxisn, data)
	res.ID, res.FileName = img.ID, img.FileName
	return res
}

func (f *Image) Width() int  { return int(f.Naxisn[0]) }
func (f *Image) Height() int { return int(f.Naxisn[1]) }

// Returns the sample at column x, row y. No bounds checking beyond the slice's own
func (f *Image) At(x, y int) float32 {
	return f.Data[x+y*int(f.Naxisn[0])]
}

func (f *Image) Set(x, y int, v float32) {
	f.Data[x+y*int(f.Naxisn[0])] = v
}

// Recalculates f.Stats from the current data
func (f *Image) UpdateStats() *stats.Stats {
	f.Stats = stats.CalcBasicStats(f.Data)
	return f.Stats
}

// Checks that the raster is a non-empty single-channel image with consistent dimensions
func (f *Image) Validate() error {
	if f == nil {
		return errors.New("nil raster")
	}
	if len(f.Naxisn) != 2 {
		return errors.Errorf("%d: raster with %d axes, need 2", f.ID, len(f.Naxisn))
	}
	if f.Naxisn[0] <= 0 || f.Naxisn[1] <= 0 || int(f.Pixels) != len(f.Data) || f.Pixels != f.Naxisn[0]*f.Naxisn[1] {
		return errors.Errorf("%d: inconsistent raster %s with %d samples", f.ID, f.DimensionsToString(), len(f.Data))
	}
	return nil
}

// Returns a new raster holding columns [from, to) of all rows
func (f *Image) CropColumns(from, to int) (*Image, error) {
	width, height := f.Width(), f.Height()
	if from < 0 || to > width || from >= to {
		return nil, errors.Errorf("%d: column range [%d,%d) outside raster of width %d", f.ID, from, to, width)
	}
	cropWidth := to - from
	res := NewImageFromNaxisn([]int32{int32(cropWidth), int32(height)}, nil)
	res.ID, res.FileName = f.ID, f.FileName
	for row := 0; row < height; row++ {
		copy(res.Data[row*cropWidth:(row+1)*cropWidth], f.Data[row*width+from:row*width+to])
	}
	return res, nil
}

func (f *Image) DimensionsToString() string {
	b := strings.Builder{}
	for i, naxis := range f.Naxisn {
		if i > 0 {
			fmt.Fprintf(&b, "x%d", naxis)
		} else {
			fmt.Fprintf(&b, "%d", naxis)
		}
	}
	return b.String()
}
