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
package phenotype

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func bruteMinInWindow(obs []*Observation, window time.Duration) []float64 {
	mins := make([]float64, len(obs))
	for i, o := range obs {
		mins[i] = o.Value
		for j := 0; j < i; j++ {
			if o.Time.Sub(obs[j].Time) <= window && obs[j].Value < mins[i] {
				mins[i] = obs[j].Value
			}
		}
	}
	return mins
}

func randomSeries(rng *rand.Rand, n int) []*Observation {
	obs := []*Observation{}
	t := admit
	for i := 0; i < n; i++ {
		t = t.Add(time.Duration(rng.Intn(40)) * time.Hour)
		obs = append(obs, &Observation{Time: t, Value: 0.5 + rng.Float64()*3})
	}
	return obs
}

func TestMinInWindowMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for k := 0; k < 50; k++ {
		obs := randomSeries(rng, 1+rng.Intn(40))
		assert.Equal(t, bruteMinInWindow(obs, Window48h), MinInWindow(obs, Window48h))
		assert.Equal(t, bruteMinInWindow(obs, Window7d), MinInWindow(obs, Window7d))
	}
}

func TestMinInWindowMonotone(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	obs := randomSeries(rng, 60)
	min48h := MinInWindow(obs, Window48h)
	min7d := MinInWindow(obs, Window7d)
	for i, o := range obs {
		assert.LessOrEqual(t, min48h[i], o.Value)
		assert.LessOrEqual(t, min7d[i], min48h[i])
	}
}

func TestMinInWindowBoundary(t *testing.T) {
	obs := []*Observation{
		{Time: hours(0), Value: 1.0},
		{Time: hours(48), Value: 2.0},
		{Time: hours(96.5), Value: 3.0},
	}
	// a draw exactly 48 hours earlier is inside the window
	assert.Equal(t, []float64{1.0, 1.0, 3.0}, MinInWindow(obs, Window48h))
	assert.Equal(t, []float64{}, MinInWindow(nil, Window48h))
}

func TestCompactSeries(t *testing.T) {
	obs := []*Observation{
		{Time: hours(5), Value: 1.2},
		{Time: hours(0), Value: 1.0},
		{Time: hours(5), Value: 1.2},
		{Time: hours(5), Value: 1.3},
	}
	compacted := compactSeries(obs)
	assert.Len(t, compacted, 3)
	assert.Equal(t, hours(0), compacted[0].Time)
	assert.Equal(t, 1.2, compacted[1].Value)
	assert.Equal(t, 1.3, compacted[2].Value)
	// the input is left untouched
	assert.Equal(t, hours(5), obs[0].Time)
}
