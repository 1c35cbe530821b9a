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
	"strconv"
	"time"
)

// Layouts of timestamps and dates in input and output tables.
const (
	TimeLayout = "2006-01-02 15:04:05"
	DateLayout = "2006-01-02"
)

// FormatFloat prints a float for a table cell. NaN prints as an empty cell.
func FormatFloat(x float64) string {
	if math.IsNaN(x) {
		return ""
	}
	return strconv.FormatFloat(x, 'f', -1, 64)
}

// FormatTime prints a timestamp for a table cell. A nil or zero timestamp prints as an empty cell.
func FormatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(TimeLayout)
}

// FormatDate prints the calendar date of a timestamp for a table cell. A nil or zero timestamp prints as an empty
// cell.
func FormatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

// FormatFlag prints a flag as 0 or 1.
func FormatFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// FormatOptionalFlag prints a nullable flag as 0, 1 or an empty cell.
func FormatOptionalFlag(b *bool) string {
	if b == nil {
		return ""
	}
	return FormatFlag(*b)
}
