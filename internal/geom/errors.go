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


// Package geom holds the data model shared by the inverse perspective mapping
// packages: the camera model, the region of interest, the derived scale
// mapping between ground plane and rectified raster, and the error kinds.
package geom

import (
	"github.com/pkg/errors"
)

// Error kinds. Errors returned by this module wrap exactly one of these,
// test with errors.Is.
var (
	// Missing or invalid configuration values
	ErrConfiguration = errors.New("configuration error")

	// Malformed call arguments, e.g. coordinate batches of unequal length
	ErrInvalidArgument = errors.New("invalid argument")

	// Undefined vanishing point, empty clamped region, or zero, infinite or NaN extents
	ErrDegenerateProjection = errors.New("degenerate projection")
)

// Returns a short name for the kind of the given error, or the empty string
// if the error is nil or of no known kind
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid argument"
	case errors.Is(err, ErrDegenerateProjection):
		return "degenerate projection"
	}
	return ""
}
