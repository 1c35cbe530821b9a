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

// ReferenceSource tells where the initial reference creatinine of an encounter comes from.
type ReferenceSource int

const (
	// AdmissionReference is a pre-admission reference established by CKD staging.
	AdmissionReference ReferenceSource = iota
	// ComputedReference is derived from the first in-hospital creatinine, possibly lowered to the MDRD creatinine.
	ComputedReference
)

func (s ReferenceSource) String() string {
	if s == AdmissionReference {
		return "admission"
	}
	return "computed"
}

// noCKDStatuses are the CKD statuses for which the MDRD creatinine bounds the computed reference.
var noCKDStatuses = map[string]bool{
	"0":                 true,
	"Insufficient Data": true,
}

// InitialReference is the reference creatinine an encounter starts its stay with.
type InitialReference struct {
	Source     ReferenceSource
	Creatinine float64
	Time       time.Time //admission for AdmissionReference, first creatinine draw for ComputedReference
}

// ResolveReference picks the initial reference creatinine of an encounter, given its in-stay creatinine series. It
// returns false when the encounter has neither an admission reference nor a creatinine draw.
func ResolveReference(e *Encounter, obs []*Observation, opts Options) (InitialReference, bool) {
	if e.HasReference() {
		return InitialReference{Source: AdmissionReference, Creatinine: e.ReferenceCreatinine, Time: e.Admit}, true
	}
	if len(obs) == 0 {
		return InitialReference{}, false
	}
	first := obs[0]
	ref := first.Value
	if noCKDStatuses[e.CKDStatus] {
		ref = utils.MinFloat(ref, utils.MDRD(e.Age, e.Sex, e.Race, opts.RaceCorrection, opts.Version))
	}
	return InitialReference{Source: ComputedReference, Creatinine: ref, Time: first.Time}, true
}

// baselineLength returns the number of leading observations that use the initial reference: all draws at most 7
// calendar days after the admission day, or only the first draw when none falls inside that window.
func baselineLength(admit time.Time, obs []*Observation) int {
	n := 0
	for n < len(obs) && elapsedDays(admit, obs[n].Time) <= 7 {
		n++
	}
	if n == 0 && len(obs) > 0 {
		return 1
	}
	return n
}

// elapsedDays returns the number of calendar days from the admission day to the day of t.
func elapsedDays(admit, t time.Time) int {
	return utils.DaysBetween(admit, t)
}

// referenceState is the accumulator of the reference creatinine fold. It records the worst AKI flag of every
// observed calendar day and the previous observation's creatinine and reference.
type referenceState struct {
	dates          []time.Time
	flags          []bool
	prevCreatinine float64
	prevReference  float64
}

// continuing tells whether AKI is ongoing at a draw on the given date: the date itself (when it already has draws)
// or the previous observed date is flagged.
func (s *referenceState) continuing(date time.Time) bool {
	last := len(s.flags) - 1
	if last < 0 {
		return false
	}
	if s.dates[last].Equal(date) {
		return s.flags[last] || (last > 0 && s.flags[last-1])
	}
	return s.flags[last]
}

// reference returns the reference creatinine for a draw after the baseline window.
func (s *referenceState) reference(date time.Time, min7d float64, continuation ReferenceContinuation) float64 {
	if !s.continuing(date) {
		return min7d
	}
	if continuation == ContinuePreviousReference {
		return s.prevReference
	}
	return s.prevCreatinine
}

// record folds one classified draw into the state.
func (s *referenceState) record(date time.Time, creatinine, reference float64, aki bool) {
	last := len(s.dates) - 1
	if last >= 0 && s.dates[last].Equal(date) {
		s.flags[last] = s.flags[last] || aki
	} else {
		s.dates = append(s.dates, date)
		s.flags = append(s.flags, aki)
	}
	s.prevCreatinine = creatinine
	s.prevReference = reference
}
