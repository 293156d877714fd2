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

	"github.com/pkg/errors"
)

// A pinhole camera looking at a flat ground plane. Immutable after construction.
// Angles are in radians, the height is in the caller's linear unit (e.g. mm),
// which then also becomes the unit of all ground plane coordinates.
type Camera struct {
	FocalLengthX   float64 `json:"focalLengthX"`   // Focal length in pixels along the image x axis
	FocalLengthY   float64 `json:"focalLengthY"`   // Focal length in pixels along the image y axis
	OpticalCenterX float64 `json:"opticalCenterX"` // Principal point in image pixels, origin top left
	OpticalCenterY float64 `json:"opticalCenterY"`
	Height         float64 `json:"cameraHeight"`   // Mounting height above the ground plane
	Pitch          float64 `json:"pitch"`          // Pitch of the optical axis in radians
	Yaw            float64 `json:"yaw"`            // Yaw of the optical axis in radians
	ImageWidth     int     `json:"imageWidth"`     // Input resolution in pixels
	ImageHeight    int     `json:"imageHeight"`
}

// Creates a camera from angles given in degrees
func NewCameraFromDegrees(fx, fy, cx, cy, height, pitchDeg, yawDeg float64, width, heightPx int) Camera {
	return Camera{
		FocalLengthX:   fx,
		FocalLengthY:   fy,
		OpticalCenterX: cx,
		OpticalCenterY: cy,
		Height:         height,
		Pitch:          pitchDeg * math.Pi / 180,
		Yaw:            yawDeg * math.Pi / 180,
		ImageWidth:     width,
		ImageHeight:    heightPx,
	}
}

// Upper bound on the pixel count of input and output rasters. Keeps sample
// counts within int32 and the two float64 warp buffers at 1 GB
const MaxPixels = 1 << 26

// Checks that a raster of the given size is non-empty and at most MaxPixels
func checkPixels(what string, width, height int) error {
	if width <= 0 || height <= 0 {
		return errors.Wrapf(ErrConfiguration, "invalid %s size %dx%d", what, width, height)
	}
	if width > MaxPixels || height > MaxPixels || int64(width)*int64(height) > MaxPixels {
		return errors.Wrapf(ErrConfiguration, "%s size %dx%d exceeds %d pixels", what, width, height, MaxPixels)
	}
	return nil
}

// Checks the invariants of the camera model. Returns an error wrapping ErrConfiguration
func (c Camera) Validate() error {
	if !(c.FocalLengthX > 0) || math.IsInf(c.FocalLengthX, 0) {
		return errors.Wrapf(ErrConfiguration, "invalid focal length x %v", c.FocalLengthX)
	}
	if !(c.FocalLengthY > 0) || math.IsInf(c.FocalLengthY, 0) {
		return errors.Wrapf(ErrConfiguration, "invalid focal length y %v", c.FocalLengthY)
	}
	if !(c.Height > 0) || math.IsInf(c.Height, 0) {
		return errors.Wrapf(ErrConfiguration, "invalid camera height %v", c.Height)
	}
	if err := checkPixels("image", c.ImageWidth, c.ImageHeight); err != nil {
		return err
	}
	for _, v := range []float64{c.OpticalCenterX, c.OpticalCenterY, c.Pitch, c.Yaw} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Wrapf(ErrConfiguration, "non-finite camera parameter in %v", c)
		}
	}
	return nil
}

func (c Camera) String() string {
	return fmt.Sprintf("f=(%.6g,%.6g) c=(%.6g,%.6g) h=%.6g pitch=%.4gdeg yaw=%.4gdeg %dx%d",
		c.FocalLengthX, c.FocalLengthY, c.OpticalCenterX, c.OpticalCenterY, c.Height,
		c.Pitch*180/math.Pi, c.Yaw*180/math.Pi, c.ImageWidth, c.ImageHeight)
}
