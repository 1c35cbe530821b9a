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
package sofa

import (
	"errors"
	"math"
	"time"

	"github.com/exascience/pargo/parallel"

	"clinphen/utils"
)

// Params configure the SOFA time grid, all in hours.
type Params struct {
	Frequency      int //hours between two assessments
	LookbackWindow int //hours of data the worst value is taken over
	FFLimit        int //hours a raw value may be carried forward, only used when larger than LookbackWindow
}

// DefaultParams returns hourly assessments over a 24 hour lookback without feed forward.
func DefaultParams() Params {
	return Params{Frequency: 1, LookbackWindow: 24}
}

// Validate checks that the grid is well formed.
func (p Params) Validate() error {
	if p.Frequency < 1 {
		return errors.New("sofa frequency must be at least 1 hour")
	}
	if p.LookbackWindow < 1 {
		return errors.New("sofa lookback window must be at least 1 hour")
	}
	if p.FFLimit < 0 {
		return errors.New("sofa feed forward limit must not be negative")
	}
	return nil
}

// Assessment is one SOFA assessment of an encounter.
type Assessment struct {
	EID    string
	Time   time.Time
	Values [nofVariables]float64 //worst values, NaN when unknown
	Scores
}

// Value returns the worst value of a variable.
func (a *Assessment) Value(v Variable) float64 {
	return a.Values[v]
}

// newGrid returns a grid of n NaN buckets for every variable.
func newGrid(n int) *[nofVariables][]float64 {
	grid := &[nofVariables][]float64{}
	for v := range grid {
		grid[v] = make([]float64, n)
		for k := range grid[v] {
			grid[v][k] = math.NaN()
		}
	}
	return grid
}

// worst folds two values of a variable into the worse one, ignoring NaN.
func worst(v Variable, x, y float64) float64 {
	if worstIsMin(v) {
		return utils.MinFloat(x, y)
	}
	return utils.MaxFloat(x, y)
}

// bucketize aggregates the raw series into hourly buckets that start at the beginning of the stay.
func bucketize(raw *series, start time.Time, n int) *[nofVariables][]float64 {
	hourly := newGrid(n)
	for v := range raw {
		for _, p := range raw[v] {
			k := int(p.time.Sub(start) / time.Hour)
			if k >= 0 && k < n {
				hourly[v][k] = worst(Variable(v), hourly[v][k], p.value)
			}
		}
	}
	return hourly
}

// rollingWorst computes for every bucket the worst value of the last window buckets, the bucket itself included.
func rollingWorst(hourly *[nofVariables][]float64, window int) *[nofVariables][]float64 {
	n := len(hourly[0])
	rolled := newGrid(n)
	for v := range hourly {
		for k := 0; k < n; k++ {
			for j := utils.MaxInt(0, k-window+1); j <= k; j++ {
				rolled[v][k] = worst(Variable(v), rolled[v][k], hourly[v][j])
			}
		}
	}
	return rolled
}

// Compute scores one encounter. The stay is cut into hourly buckets from its start; every bucket gets the worst
// value of each variable over the lookback window. Every frequency buckets an assessment is taken at the end of
// the last bucket of the group, or at the end of the stay for the final bucket. When the feed forward limit exceeds
// the lookback window, a still missing physiologic value is taken from the last raw value at most FFLimit hours
// before the assessment.
func Compute(s *Streams, p Params) []*Assessment {
	stay := s.Stay
	if stay.End.Before(stay.Start) {
		return []*Assessment{}
	}
	raw := extract(s)
	n := int(stay.End.Sub(stay.Start)/time.Hour) + 1
	rolled := rollingWorst(bucketize(raw, stay.Start, n), p.LookbackWindow)
	feedForward := p.FFLimit > p.LookbackWindow
	limit := time.Duration(p.FFLimit) * time.Hour
	assessments := []*Assessment{}
	for g := 0; g*p.Frequency < n; g++ {
		k := utils.MinInt((g+1)*p.Frequency-1, n-1)
		t := stay.End
		if k < n-1 {
			t = stay.Start.Add(time.Duration(k+1) * time.Hour)
		}
		if len(assessments) > 0 && assessments[len(assessments)-1].Time.Equal(t) {
			continue
		}
		a := &Assessment{EID: stay.EID, Time: t}
		for v := range a.Values {
			a.Values[v] = rolled[v][k]
		}
		if feedForward {
			for _, v := range feedForwardVariables {
				if !math.IsNaN(a.Values[v]) {
					continue
				}
				if last, ok := asOf(raw[v], t); ok && t.Sub(last.time) <= limit {
					a.Values[v] = last.value
				}
			}
		}
		a.Scores = Score(&a.Values)
		assessments = append(assessments, a)
	}
	return assessments
}

// Run scores a list of encounters in parallel. Assessments are grouped per encounter, in input order.
func Run(streams []*Streams, p Params) []*Assessment {
	if len(streams) == 0 {
		return []*Assessment{}
	}
	result := parallel.RangeReduce(0, len(streams), 0, func(low, high int) interface{} {
		assessments := []*Assessment{}
		for _, s := range streams[low:high] {
			assessments = append(assessments, Compute(s, p)...)
		}
		return assessments
	}, func(x, y interface{}) interface{} {
		return append(x.([]*Assessment), y.([]*Assessment)...)
	})
	return result.([]*Assessment)
}
