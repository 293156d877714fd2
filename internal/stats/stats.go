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


package stats

import (
	"fmt"
	"math"
)

// Basic statistics on a raster's samples. NaN samples are counted, but excluded from all other values
type Stats struct {
	Min    float32 `json:"min"`
	Max    float32 `json:"max"`
	Mean   float32 `json:"mean"`
	StdDev float32 `json:"stdDev"`
	NaNs   int     `json:"nans"`
}

// Pretty print basic stats to string
func (s *Stats) String() string {
	if s == nil {
		return "no stats"
	}
	return fmt.Sprintf("Min %.6g Max %.6g Mean %.6g StdDev %.6g NaNs %d", s.Min, s.Max, s.Mean, s.StdDev, s.NaNs)
}

// Calculate basic statistics for a data array. Returns zero stats for empty or all-NaN data
func CalcBasicStats(data []float32) (s *Stats) {
	s = &Stats{}
	var n int
	s.Min, s.Mean, s.Max, n = calcMinMeanMax(data)
	s.NaNs = len(data) - n
	if n == 0 {
		return s
	}
	variance := calcVariance(data, s.Mean, n)
	s.StdDev = float32(math.Sqrt(variance))
	return s
}

// Calculate minimum, mean and maximum of the non-NaN entries of the given data, and their count
func calcMinMeanMax(data []float32) (min, mean, max float32, n int) {
	mmin, mmax := float32(math.Inf(1)), float32(math.Inf(-1))
	mmean := float64(0)
	for _, v := range data {
		if v != v { // NaN
			continue
		}
		if v < mmin {
			mmin = v
		}
		if v > mmax {
			mmax = v
		}
		mmean += float64(v)
		n++
	}
	if n == 0 {
		return 0, 0, 0, 0
	}
	return mmin, float32(mmean / float64(n)), mmax, n
}

// Calculate variance of the non-NaN entries of given data from provided mean
func calcVariance(data []float32, mean float32, n int) (result float64) {
	variance := float64(0)
	for _, v := range data {
		if v != v {
			continue
		}
		diff := float64(v - mean)
		variance += diff * diff
	}
	return variance / float64(n)
}
