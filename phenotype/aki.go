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
	"math"
	"time"

	"clinphen/utils"
)

// Stage is an AKI severity stage. Stages are ordered so that a larger value is a worse stage.
type Stage int

const (
	NoStage           Stage = iota //no AKI
	StageUndetermined              //AKI without a usable reference creatinine
	Stage1
	Stage2
	Stage3
	Stage3RRT
)

var stageNames = []string{"", "Insufficient Data", "Stage 1", "Stage 2", "Stage 3", "Stage 3 + RRT"}

func (s Stage) String() string {
	if s < NoStage || int(s) >= len(stageNames) {
		return ""
	}
	return stageNames[s]
}

// ParseStage maps a stage label back onto a Stage. Unknown labels map to NoStage.
func ParseStage(label string) Stage {
	for i, name := range stageNames {
		if name == label {
			return Stage(i)
		}
	}
	return NoStage
}

// MaxStage returns the worse of two stages.
func MaxStage(s1, s2 Stage) Stage {
	if s1 > s2 {
		return s1
	}
	return s2
}

const (
	absoluteThreshold = 4.0 //creatinine mg/dL
	riseThreshold     = 0.3 //creatinine mg/dL
	ratioThreshold    = 1.5
	stage2Ratio       = 2.0
	stage3Ratio       = 3.0
)

// AKIRecord is the classification of one creatinine draw.
type AKIRecord struct {
	Time        time.Time
	Creatinine  float64
	Min48h      float64    //minimum creatinine in the past 48 hours
	Min7d       float64    //minimum creatinine in the past 7 days
	Reference   float64    //reference creatinine in effect at this draw
	Ratio       float64    //creatinine / reference, NaN when the reference is unusable
	ElapsedDays int        //calendar days since the admission day
	UnderRRT    bool       //an RRT event at most 7 days before
	RecentRRT   *time.Time //the RRT event that puts the draw under RRT
	Rise48h     bool       //increase trigger
	Above4      bool       //absolute creatinine trigger
	RatioRise   bool       //ratio trigger
	AKI         bool
	Stage       Stage
	KeGFR       float64
	Narrative   string
}

// Date returns the calendar date of the draw.
func (r *AKIRecord) Date() time.Time {
	return utils.Date(r.Time)
}

// AssignStage grades an AKI flagged draw. RRT takes precedence over everything else, then the absolute creatinine
// trigger and the ratio thresholds. A NaN ratio cannot be graded beyond the RRT and absolute triggers.
func AssignStage(underRRT, above4 bool, ratio float64) Stage {
	switch {
	case underRRT:
		return Stage3RRT
	case above4 || utils.GreaterOrEqual(ratio, stage3Ratio):
		return Stage3
	case math.IsNaN(ratio):
		return StageUndetermined
	case utils.GreaterOrEqual(ratio, stage2Ratio):
		return Stage2
	}
	return Stage1
}

// above4 applies the absolute creatinine trigger.
func above4(creatinine float64, strict bool) bool {
	if strict {
		return utils.Greater(creatinine, absoluteThreshold)
	}
	return utils.GreaterOrEqual(creatinine, absoluteThreshold)
}

// classify evaluates the AKI triggers and the stage of a draw whose reference is known.
func classify(r *AKIRecord, opts Options) {
	r.Ratio = utils.Ratio(r.Creatinine, r.Reference)
	r.Above4 = above4(r.Creatinine, opts.Stage3Strict)
	r.Rise48h = utils.GreaterOrEqual(r.Creatinine-r.Min48h, riseThreshold)
	if opts.IncreaseRule == Increase48hAndReference {
		r.Rise48h = r.Rise48h && utils.GreaterOrEqual(r.Creatinine-r.Reference, riseThreshold)
	}
	r.RatioRise = utils.GreaterOrEqual(r.Ratio, ratioThreshold)
	r.AKI = r.UnderRRT || r.Above4 || r.Rise48h || r.RatioRise
	r.Stage = NoStage
	if r.AKI {
		r.Stage = AssignStage(r.UnderRRT, r.Above4, r.Ratio)
	}
}

// DetermineAKI classifies every creatinine draw of an encounter taken between the admission day and discharge. The
// 48 hour and 7 day minima are computed over the complete series, so draws before admission still lower the minima
// of early in-stay draws. The reference creatinine is the initial reference for draws in the baseline window and
// evolves with the AKI state of the previous days afterwards. The result is empty when the encounter has no usable
// draw or reference.
func DetermineAKI(e *Encounter, timeline []time.Time, opts Options) ([]*AKIRecord, InitialReference) {
	obs := compactSeries(e.Creatinine)
	min48h := MinInWindow(obs, Window48h)
	min7d := MinInWindow(obs, Window7d)
	admitDate := utils.Date(e.Admit)
	records := []*AKIRecord{}
	for i, o := range obs {
		if utils.Date(o.Time).Before(admitDate) || o.Time.After(e.Discharge) {
			continue
		}
		records = append(records, &AKIRecord{
			Time:        o.Time,
			Creatinine:  o.Value,
			Min48h:      min48h[i],
			Min7d:       min7d[i],
			ElapsedDays: elapsedDays(e.Admit, o.Time),
		})
	}
	inStay := make([]*Observation, len(records))
	for i, r := range records {
		inStay[i] = &Observation{Time: r.Time, Value: r.Creatinine}
	}
	initial, ok := ResolveReference(e, inStay, opts)
	if !ok || len(records) == 0 {
		return []*AKIRecord{}, initial
	}
	for _, r := range records {
		if event, under := RecentRRT(timeline, r.Time); under {
			r.UnderRRT = true
			r.RecentRRT = &event
		}
	}
	baseline := baselineLength(e.Admit, inStay)
	state := &referenceState{}
	for i, r := range records {
		date := r.Date()
		if i < baseline {
			r.Reference = initial.Creatinine
		} else {
			r.Reference = state.reference(date, r.Min7d, opts.Continuation)
		}
		classify(r, opts)
		state.record(date, r.Creatinine, r.Reference, r.AKI)
	}
	return records, initial
}
