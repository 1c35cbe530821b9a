// clinphen: Clinical Phenotyping Engine
// Copyright (c) 2024 The clinphen Authors.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License along with this program. If not, see
// <https://www.gnu.org/licenses/>.
package utils

import (
	"math"
	"time"
)

// Tolerance absorbs floating point noise in clinical threshold comparisons, e.g. 1.2 - 0.9 >= 0.3.
const Tolerance = 1e-9

// GreaterOrEqual tests x >= threshold up to Tolerance. NaN never passes.
func GreaterOrEqual(x, threshold float64) bool {
	return x >= threshold-Tolerance
}

// Greater tests x > threshold beyond Tolerance. NaN never passes.
func Greater(x, threshold float64) bool {
	return x > threshold+Tolerance
}

// Ratio divides x by y, returning NaN instead of an infinity when y is zero, negative, or not a number.
func Ratio(x, y float64) float64 {
	if math.IsNaN(y) || y <= 0 {
		return math.NaN()
	}
	return x / y
}

// MinFloat returns the smaller of two values, ignoring a NaN operand.
func MinFloat(x, y float64) float64 {
	if math.IsNaN(x) {
		return y
	}
	if math.IsNaN(y) {
		return x
	}
	return math.Min(x, y)
}

// MaxFloat returns the larger of two values, ignoring a NaN operand.
func MaxFloat(x, y float64) float64 {
	if math.IsNaN(x) {
		return y
	}
	if math.IsNaN(y) {
		return x
	}
	return math.Max(x, y)
}

// MinInt returns the smaller of two ints.
func MinInt(x, y int) int {
	if x < y {
		return x
	}
	return y
}

// MaxInt returns the larger of two ints.
func MaxInt(x, y int) int {
	if x > y {
		return x
	}
	return y
}

// Date truncates a timestamp to midnight of its calendar day, in the timestamp's own location.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DaysBetween returns the number of calendar days from the day of a to the day of b.
func DaysBetween(a, b time.Time) int {
	da, db := Date(a), Date(b)
	// round absorbs daylight saving shifts
	return int(math.Round(db.Sub(da).Hours() / 24))
}

// AddDays moves a calendar date by n days.
func AddDays(d time.Time, n int) time.Time {
	return d.AddDate(0, 0, n)
}

// Hours returns the elapsed hours between two timestamps.
func Hours(from, to time.Time) float64 {
	return to.Sub(from).Hours()
}
