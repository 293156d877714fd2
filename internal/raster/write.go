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
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/image/tiff"
)

// Display range of 8-bit rasters as read by NewImageFromFile
const (
	DisplayMin float32 = 0
	DisplayMax float32 = 255
)

// Writes the raster to the given file, picking the format from the suffix.
// Samples are mapped from the display range [0,255]
func (f *Image) WriteFile(fileName string) error {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".jpg", ".jpeg":
		return f.WriteMonoJPGToFile(fileName, DisplayMin, DisplayMax, 95)
	case ".tif", ".tiff":
		return f.WriteMonoTIFF16ToFile(fileName, DisplayMin, DisplayMax)
	case ".png":
		return f.WriteMonoPNGToFile(fileName, DisplayMin, DisplayMax)
	}
	return errors.Errorf("%d: unknown suffix for %s", f.ID, fileName)
}

func createAndWrite(fileName string, write func(w io.Writer) error) error {
	file, err := os.Create(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	if err := write(writer); err != nil {
		return err
	}
	return writer.Flush()
}

// Maps a sample into [0,1] given min and max. NaNs become zero, else output breaks
func normalizeSample(v, min, scale float32) float32 {
	v = (v - min) * scale
	if math.IsNaN(float64(v)) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Write a raster to grayscale JPG, using the given min and max.
func (f *Image) WriteMonoJPGToFile(fileName string, min, max float32, quality int) error {
	return createAndWrite(fileName, func(w io.Writer) error { return f.WriteMonoJPG(w, min, max, quality) })
}

// Write a raster to grayscale JPG, using the given min and max.
func (f *Image) WriteMonoJPG(writer io.Writer, min, max float32, quality int) error {
	return jpeg.Encode(writer, f.toGray(min, max), &jpeg.Options{Quality: quality})
}

// Write a raster to grayscale PNG, using the given min and max.
func (f *Image) WriteMonoPNGToFile(fileName string, min, max float32) error {
	return createAndWrite(fileName, func(w io.Writer) error { return png.Encode(w, f.toGray(min, max)) })
}

func (f *Image) toGray(min, max float32) *image.Gray {
	width, height := f.Width(), f.Height()
	img := image.NewGray(image.Rect(0, 0, width, height))
	scale := 1.0 / (max - min)
	for y := 0; y < height; y++ {
		yoffset := y * width
		for x := 0; x < width; x++ {
			gray := normalizeSample(f.Data[yoffset+x], min, scale)
			img.SetGray(x, y, color.Gray{Y: uint8(gray*255 + 0.5)})
		}
	}
	return img
}

// Write a raster to 16-bit grayscale TIFF, using the given min and max.
func (f *Image) WriteMonoTIFF16ToFile(fileName string, min, max float32) error {
	return createAndWrite(fileName, func(w io.Writer) error { return f.WriteMonoTIFF16(w, min, max) })
}

// Write a raster to 16-bit grayscale TIFF, using the given min and max.
func (f *Image) WriteMonoTIFF16(writer io.Writer, min, max float32) error {
	width, height := f.Width(), f.Height()
	img := image.NewGray16(image.Rect(0, 0, width, height))
	scale := 1 / (max - min)
	for y := 0; y < height; y++ {
		yoffset := y * width
		for x := 0; x < width; x++ {
			gray := normalizeSample(f.Data[yoffset+x], min, scale)
			img.SetGray16(x, y, color.Gray16{Y: uint16(gray*65535 + 0.5)})
		}
	}
	return tiff.Encode(writer, img, &tiff.Options{Compression: tiff.Uncompressed, Predictor: false})
}
