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
	"github.com/exascience/pargo/parallel"
	"github.com/valyala/fastrand"

	"clinphen/utils"
)

// AKIResult holds every AKI frame computed for one encounter.
type AKIResult struct {
	Encounter *Encounter
	Records   []*AKIRecord
	Days      []*DayRecord
	Episodes  []*Episode
	Summary   *Summary
}

// PhenotypeEncounter runs the complete AKI pipeline on one encounter: RRT timeline, AKI determination, kinetic eGFR,
// daily rollup, episode segmentation, narrative and summary. An encounter without creatinine during its stay only
// gets an empty summary.
func PhenotypeEncounter(e *Encounter, opts Options) *AKIResult {
	timeline := BuildRRTTimeline(e)
	records, initial := DetermineAKI(e, timeline, opts)
	if len(records) == 0 {
		return &AKIResult{Encounter: e, Summary: Summarize(e, records, nil, nil, initial, timeline, opts)}
	}
	SequenceKeGFR(e, records, initial, opts)
	days := RollupDays(e, records, timeline)
	episodes := SegmentEpisodes(days, opts.GapTolerance)
	Narrate(e, records, days)
	return &AKIResult{
		Encounter: e,
		Records:   records,
		Days:      days,
		Episodes:  episodes,
		Summary:   Summarize(e, records, days, episodes, initial, timeline, opts),
	}
}

// RunAKI phenotypes a list of encounters in parallel. Encounters are independent, so every worker writes only the
// result slots of its own range. Results are in input order.
func RunAKI(encounters []*Encounter, opts Options) []*AKIResult {
	results := make([]*AKIResult, len(encounters))
	parallel.Range(0, len(encounters), 0, func(low, high int) {
		for i := low; i < high; i++ {
			results[i] = PhenotypeEncounter(encounters[i], opts)
		}
	})
	return results
}

// SampleEncounters randomly selects a fraction of the encounters of a map, keeping their input order. The selection
// is done without shuffling: encounters are visited in order and randomly skipped while enough remain to reach the
// requested number.
func SampleEncounters(m *EncounterMap, fraction float64) []*Encounter {
	encounters := m.Encounters()
	if fraction >= 1 {
		return encounters
	}
	ctr := int(fraction * float64(len(encounters)))
	collected := []*Encounter{}
	maxRandSkips := utils.MaxInt(0, len(encounters)-ctr)
	for _, e := range encounters {
		if len(collected) == ctr {
			break
		}
		if maxRandSkips > 0 && fastrand.Uint32n(2) == 0 {
			maxRandSkips--
			continue
		}
		collected = append(collected, e)
	}
	return collected
}
