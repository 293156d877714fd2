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


package raster

import (
	"bufio"
	"fmt"
	"image"
	"io"
	"os"

	"image/color"
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder

	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"  // register decoder
	_ "golang.org/x/image/tiff" // register decoder
)

// Reads a raster from the given image file. Color images are converted to luminance.
// Samples are in the 8-bit display range [0,255]
func NewImageFromFile(fileName string, id int, logWriter io.Writer) (*Image, error) {
	file, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, format, err := image.Decode(bufio.NewReader(file))
	if err != nil {
		return nil, errors.Wrapf(err, "%d: decoding %s", id, fileName)
	}
	res := NewImageFromGoImage(img)
	res.ID, res.FileName = id, fileName
	res.UpdateStats()
	if logWriter != nil {
		fmt.Fprintf(logWriter, "%d: Read %s %s image from %s with %v\n", id, res.DimensionsToString(), format, fileName, res.Stats)
	}
	return res, nil
}

// Converts a Go image into a raster with samples in [0,255]. Gray images are copied as-is,
// all others are converted to their relative luminance in the sRGB color space
func NewImageFromGoImage(img image.Image) *Image {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	res := NewImageFromNaxisn([]int32{int32(width), int32(height)}, nil)

	switch src := img.(type) {
	case *image.Gray:
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				res.Data[x+y*width] = float32(src.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y)
			}
		}
	case *image.Gray16:
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				res.Data[x+y*width] = float32(src.Gray16At(bounds.Min.X+x, bounds.Min.Y+y).Y) / 257
			}
		}
	default:
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				res.Data[x+y*width] = luminance(img.At(bounds.Min.X+x, bounds.Min.Y+y))
			}
		}
	}
	return res
}

// Returns the relative luminance of the given color, gamma-encoded back to [0,255]
func luminance(c color.Color) float32 {
	col, ok := colorful.MakeColor(c)
	if !ok { // fully transparent
		return 0
	}
	_, y, _ := col.Xyz()
	return float32(colorful.LinearRgb(y, y, y).Clamped().R * 255)
}
