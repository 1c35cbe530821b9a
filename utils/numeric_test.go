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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestThresholds(t *testing.T) {
	assert.True(t, GreaterOrEqual(1.2-0.9, 0.3))
	assert.True(t, GreaterOrEqual(1.5, 1.5))
	assert.False(t, GreaterOrEqual(1.49, 1.5))
	assert.False(t, GreaterOrEqual(math.NaN(), 0))
	assert.False(t, Greater(4, 4))
	assert.True(t, Greater(4.01, 4))
	assert.False(t, Greater(math.NaN(), 0))
}

func TestRatio(t *testing.T) {
	assert.Equal(t, 2.0, Ratio(2, 1))
	assert.True(t, math.IsNaN(Ratio(1, 0)))
	assert.True(t, math.IsNaN(Ratio(1, -1)))
	assert.True(t, math.IsNaN(Ratio(1, math.NaN())))
}

func TestMinMax(t *testing.T) {
	assert.Equal(t, 2.0, MinFloat(math.NaN(), 2))
	assert.Equal(t, 2.0, MinFloat(2, math.NaN()))
	assert.Equal(t, 1.0, MinFloat(2, 1))
	assert.Equal(t, 3.0, MaxFloat(3, math.NaN()))
	assert.Equal(t, 3.0, MaxFloat(1, 3))
	assert.True(t, math.IsNaN(MaxFloat(math.NaN(), math.NaN())))
	assert.Equal(t, 1, MinInt(1, 2))
	assert.Equal(t, 2, MaxInt(1, 2))
}

func TestDates(t *testing.T) {
	a := time.Date(2021, 3, 1, 23, 30, 0, 0, time.UTC)
	b := time.Date(2021, 3, 3, 0, 15, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC), Date(a))
	assert.Equal(t, 2, DaysBetween(a, b))
	assert.Equal(t, -2, DaysBetween(b, a))
	assert.Equal(t, time.Date(2021, 2, 28, 0, 0, 0, 0, time.UTC), AddDays(Date(a), -1))
	assert.InDelta(t, 24.75, Hours(a, b), 1e-9)
}

func TestFormat(t *testing.T) {
	ts := time.Date(2021, 3, 1, 8, 5, 0, 0, time.UTC)
	assert.Equal(t, "", FormatFloat(math.NaN()))
	assert.Equal(t, "1.25", FormatFloat(1.25))
	assert.Equal(t, "2021-03-01 08:05:00", FormatTime(&ts))
	assert.Equal(t, "2021-03-01", FormatDate(&ts))
	assert.Equal(t, "", FormatTime(nil))
	assert.Equal(t, "", FormatDate(&time.Time{}))
	assert.Equal(t, "1", FormatFlag(true))
	assert.Equal(t, "0", FormatFlag(false))
	yes := true
	assert.Equal(t, "1", FormatOptionalFlag(&yes))
	assert.Equal(t, "", FormatOptionalFlag(nil))
}
