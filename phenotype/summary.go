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

// TimedValue is a value together with the time it was observed.
type TimedValue struct {
	Time  time.Time
	Value float64
}

// Summary is the encounter level AKI summary. Pointer fields are nil when the encounter offers no data for them.
type Summary struct {
	EID, PID         string
	Admit, Discharge time.Time
	Age              float64
	Sex, Race        string
	FinalClass       string
	HasCreatinine    bool //false: every derived field below is empty
	Reference        *InitialReference
	BaseEGFR         float64 //eGFR of the initial reference
	FirstAKIDate     *time.Time
	MinReference     *TimedValue
	MaxReference     *TimedValue
	FirstCreatinine  *TimedValue
	LastCreatinine   *TimedValue
	MinCreatinine    *TimedValue
	MaxCreatinine    *TimedValue
	Episodes         []*Episode
	DaysInStage      map[Stage]int
	WorstStage       Stage
	WorstStageDate   *time.Time
	DischargeAKI     bool
	DischargeStage   Stage
	AKIOverall       bool
	RRT              RRTSummary
	RecurrentAKI     *bool //nil without any episode
	AKIEarly3d       bool  //AKI on one of the first 3 days of the stay
	WorstStageEarly  Stage //worst stage on the first 3 days of the stay
}

// newSummary returns the summary of an encounter without any derived field.
func newSummary(e *Encounter) *Summary {
	return &Summary{
		EID:         e.EID,
		PID:         e.PID,
		Admit:       e.Admit,
		Discharge:   e.Discharge,
		Age:         e.Age,
		Sex:         e.Sex,
		Race:        e.Race,
		FinalClass:  e.FinalClass,
		DaysInStage: map[Stage]int{},
	}
}

// extreme returns the first record with the smallest (or largest) value according to a selector.
func extreme(records []*AKIRecord, value func(*AKIRecord) float64, smallest bool) *TimedValue {
	var best *TimedValue
	for _, r := range records {
		v := value(r)
		if math.IsNaN(v) {
			continue
		}
		if best == nil || (smallest && v < best.Value) || (!smallest && v > best.Value) {
			best = &TimedValue{Time: r.Time, Value: v}
		}
	}
	return best
}

// Summarize condenses the classified draws, day table and episodes of an encounter into one summary.
func Summarize(e *Encounter, records []*AKIRecord, days []*DayRecord, episodes []*Episode, initial InitialReference,
	timeline []time.Time, opts Options) *Summary {
	s := newSummary(e)
	if len(records) == 0 {
		return s
	}
	s.HasCreatinine = true
	s.Reference = &initial
	s.BaseEGFR = utils.EGFR(e.Age, e.Sex, e.Race, initial.Creatinine, opts.RaceCorrection, opts.Version)
	creatinine := func(r *AKIRecord) float64 { return r.Creatinine }
	reference := func(r *AKIRecord) float64 { return r.Reference }
	first, last := records[0], records[len(records)-1]
	s.FirstCreatinine = &TimedValue{Time: first.Time, Value: first.Creatinine}
	s.LastCreatinine = &TimedValue{Time: last.Time, Value: last.Creatinine}
	s.MinCreatinine = extreme(records, creatinine, true)
	s.MaxCreatinine = extreme(records, creatinine, false)
	s.MinReference = extreme(records, reference, true)
	s.MaxReference = extreme(records, reference, false)
	s.Episodes = episodes
	s.RRT = SummarizeRRT(e, timeline)
	earlyEnd := utils.AddDays(utils.Date(e.Admit), 2)
	for _, day := range days {
		if !day.AKI {
			continue
		}
		s.AKIOverall = true
		if s.FirstAKIDate == nil {
			date := day.Date
			s.FirstAKIDate = &date
		}
		if day.Episode > 0 {
			s.DaysInStage[day.Stage]++
		}
		if day.Stage > s.WorstStage {
			date := day.Date
			s.WorstStage, s.WorstStageDate = day.Stage, &date
		}
		if !day.Date.After(earlyEnd) {
			s.AKIEarly3d = true
			s.WorstStageEarly = MaxStage(s.WorstStageEarly, day.Stage)
		}
	}
	if len(days) > 0 {
		final := days[len(days)-1]
		s.DischargeAKI, s.DischargeStage = final.AKI, final.Stage
	}
	if len(episodes) > 0 {
		recurrent := len(episodes) > 1
		s.RecurrentAKI = &recurrent
	}
	return s
}
