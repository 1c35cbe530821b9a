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
	"time"

	"clinphen/utils"
)

const (
	Window48h = 48 * time.Hour
	Window7d  = 7 * 24 * time.Hour
)

// MinInWindow computes for every observation of a time sorted series the minimum value of all observations within
// [t - window, t], the observation itself included. The scan compares every observation with its predecessor at an
// increasing lag and stops at the first lag where no pair lies within the window: the series is sorted, so larger
// lags only produce larger gaps.
func MinInWindow(obs []*Observation, window time.Duration) []float64 {
	mins := make([]float64, len(obs))
	for i, o := range obs {
		mins[i] = o.Value
	}
	for lag := 1; lag < len(obs); lag++ {
		inWindow := false
		for i := lag; i < len(obs); i++ {
			if obs[i].Time.Sub(obs[i-lag].Time) <= window {
				mins[i] = utils.MinFloat(mins[i], obs[i-lag].Value)
				inWindow = true
			}
		}
		if !inWindow {
			break
		}
	}
	return mins
}
