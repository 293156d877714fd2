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


// Package projection maps between a pinhole camera's image plane and the flat
// ground plane in front of it, and resamples perspective images onto the ground.
//
// Ground coordinates are in the unit of the camera height, with x to the right
// and y pointing away from the camera along the ground.
package projection

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/mlnoga/groundlight/internal/geom"
	"github.com/mlnoga/groundlight/internal/raster"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// The projection capabilities the mapping packages build on. Implementations
// must be deterministic pure functions of their arguments.
type Projector interface {
	// Vanishing point of ground lines parallel to the optical axis, in image pixels. May lie above the image
	VanishingPoint(cam geom.Camera) r2.Point

	// Projects a batch of image points onto the ground plane
	ImageToGround(us, vs []float64, cam geom.Camera) (xs, ys []float64, err error)

	// Projects a batch of ground points into the image
	GroundToImage(xs, ys []float64, cam geom.Camera) (us, vs []float64, err error)

	// Resamples the input image onto the ground grid described by the mapping.
	// Result has the mapping's output size
	WarpToGround(in *raster.Image, m geom.Mapping, cam geom.Camera) (*raster.Image, error)
}

// Pinhole camera projection onto a flat ground plane, without lens distortion
type Pinhole struct{}

var _ Projector = Pinhole{}

// Intrinsics matrix of the camera
func intrinsics(cam geom.Camera) *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		cam.FocalLengthX, 0, cam.OpticalCenterX,
		0, cam.FocalLengthY, cam.OpticalCenterY,
		0, 0, 1,
	})
}

func (Pinhole) VanishingPoint(cam geom.Camera) r2.Point {
	sp, cp := math.Sincos(cam.Pitch)
	sy, cy := math.Sincos(cam.Yaw)

	// direction of the optical axis projected onto the ground, in world coordinates
	dir := mat.NewVecDense(3, []float64{sy / cp, cy / cp, 0})

	yaw := mat.NewDense(3, 3, []float64{
		cy, -sy, 0,
		sy, cy, 0,
		0, 0, 1,
	})
	pitch := mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, -sp, -cp,
		0, cp, -sp,
	})

	var rot, trans mat.Dense
	rot.Mul(pitch, yaw)
	trans.Mul(intrinsics(cam), &rot)

	var vp mat.VecDense
	vp.MulVec(&trans, dir)
	w := vp.AtVec(2)
	return r2.Point{X: vp.AtVec(0) / w, Y: vp.AtVec(1) / w}
}

func checkBatch(as, bs []float64) error {
	if len(as) != len(bs) {
		return errors.Wrapf(geom.ErrInvalidArgument, "coordinate batches of length %d and %d", len(as), len(bs))
	}
	return nil
}

// Back-projection from homogeneous image points (u, v, 1) to homogeneous ground points (x, y, z, w)
func imageToGroundMatrix(cam geom.Camera) *mat.Dense {
	s1, c1 := math.Sincos(cam.Pitch)
	s2, c2 := math.Sincos(cam.Yaw)
	h, fx, fy := cam.Height, cam.FocalLengthX, cam.FocalLengthY
	cx, cy := cam.OpticalCenterX, cam.OpticalCenterY

	return mat.NewDense(4, 3, []float64{
		-h * c2 / fx, h * s1 * s2 / fy, (h * c2 * cx / fx) - (h * s1 * s2 * cy / fy) - h*c1*s2,
		h * s2 / fx, h * s1 * c2 / fy, (-h * s2 * cx / fx) - (h * s1 * c2 * cy / fy) - h*c1*c2,
		0, h * c1 / fy, (-h * c1 * cy / fy) + h*s1,
		0, -c1 / fy, (c1 * cy / fy) - s1,
	})
}

// Projection from ground points (x, y, -height) to homogeneous image points (u, v, w)
func groundToImageMatrix(cam geom.Camera) *mat.Dense {
	s1, c1 := math.Sincos(cam.Pitch)
	s2, c2 := math.Sincos(cam.Yaw)
	fx, fy := cam.FocalLengthX, cam.FocalLengthY
	cx, cy := cam.OpticalCenterX, cam.OpticalCenterY

	return mat.NewDense(3, 3, []float64{
		fx*c2 + c1*s2*cx, -fx*s2 + c1*c2*cx, -s1 * cx,
		s2 * (-fy*s1 + c1*cy), c2 * (-fy*s1 + c1*cy), -fy*c1 - s1*cy,
		c1 * s2, c1 * c2, -s1,
	})
}

// Multiplies the transform with the points stacked as columns (a, b, third),
// and dehomogenizes the first two result rows by result row div
func transformBatch(trans *mat.Dense, as, bs []float64, third float64, div int) (outAs, outBs []float64) {
	n := len(as)
	outAs, outBs = make([]float64, n), make([]float64, n)
	if n == 0 {
		return outAs, outBs
	}

	in := mat.NewDense(3, n, nil)
	in.SetRow(0, as)
	in.SetRow(1, bs)
	for i := 0; i < n; i++ {
		in.Set(2, i, third)
	}

	var out mat.Dense
	out.Mul(trans, in)
	for i := 0; i < n; i++ {
		w := out.At(div, i)
		outAs[i] = out.At(0, i) / w
		outBs[i] = out.At(1, i) / w
	}
	return outAs, outBs
}

func (Pinhole) ImageToGround(us, vs []float64, cam geom.Camera) (xs, ys []float64, err error) {
	if err := checkBatch(us, vs); err != nil {
		return nil, nil, err
	}
	xs, ys = transformBatch(imageToGroundMatrix(cam), us, vs, 1, 3)
	return xs, ys, nil
}

func (Pinhole) GroundToImage(xs, ys []float64, cam geom.Camera) (us, vs []float64, err error) {
	if err := checkBatch(xs, ys); err != nil {
		return nil, nil, err
	}
	us, vs = transformBatch(groundToImageMatrix(cam), xs, ys, -cam.Height, 2)
	return us, vs, nil
}
