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
	"sort"
	"time"

	"clinphen/utils"
)

// RRTExposureDays is the number of days after a dialysis session during which a patient counts as under RRT.
const RRTExposureDays = 7

// DialysisCodes holds the ICD9/ICD10/CPT procedure and status codes that coincide with a dialysis session.
var DialysisCodes = map[string]bool{
	"V45.12": true, "V56.0": true, "V56.8": true, "V56.1": true, "V56.2": true, "V56.32": true, "V45.1": true,
	"V45.11": true, "996.56": true, "996.68": true, "792.5": true, "39.95": true, "54.98": true, "Z91.15": true,
	"Z49.31": true, "Z49.32": true, "Z49.01": true, "Z49.02": true, "T85.71XA": true, "T85.611A": true,
	"T85.621A": true, "R88.0": true, "T85.631A": true, "T85.71XS": true, "Z99.2": true, "T85.71XD": true,
	"5A1D00Z": true, "5A1D60Z": true, "3E1M39Z": true, "90935": true, "90937": true, "90945": true, "90947": true,
	"90999": true, "5A1D70Z": true, "5A1D80Z": true, "5A1D90Z": true,
}

// isDialysisProcedure tells whether a procedure code marks a dialysis session.
func isDialysisProcedure(c *Code) bool {
	return c.Variable == "dialysis" || DialysisCodes[c.ConceptID]
}

// BuildRRTTimeline unions the explicit dialysis timestamps of an encounter with the dates of its dialysis procedure
// codes into one sorted list of RRT events without duplicates. Only events dated on or after the admission day and
// at or before discharge are kept.
func BuildRRTTimeline(e *Encounter) []time.Time {
	admitDate := utils.Date(e.Admit)
	dischargeDate := utils.Date(e.Discharge)
	events := []time.Time{}
	for _, t := range e.Dialysis {
		if !t.Before(admitDate) && !t.After(e.Discharge) {
			events = append(events, t)
		}
	}
	for _, c := range e.Procedures {
		if !isDialysisProcedure(c) {
			continue
		}
		d := utils.Date(c.Date)
		if !d.Before(admitDate) && !d.After(dischargeDate) {
			events = append(events, d)
		}
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].Before(events[j])
	})
	timeline := []time.Time{}
	for i, t := range events {
		if i == 0 || !t.Equal(events[i-1]) {
			timeline = append(timeline, t)
		}
	}
	return timeline
}

// RecentRRT returns the most recent RRT event at or before t, if the observation day falls within RRTExposureDays
// of that event's day.
func RecentRRT(timeline []time.Time, t time.Time) (time.Time, bool) {
	// first event strictly after t
	idx := sort.Search(len(timeline), func(i int) bool {
		return timeline[i].After(t)
	})
	if idx == 0 {
		return time.Time{}, false
	}
	recent := timeline[idx-1]
	if utils.DaysBetween(recent, t) <= RRTExposureDays {
		return recent, true
	}
	return time.Time{}, false
}

// RRTDays returns the set of calendar days that contain at least one RRT event.
func RRTDays(timeline []time.Time) map[time.Time]bool {
	days := map[time.Time]bool{}
	for _, t := range timeline {
		days[utils.Date(t)] = true
	}
	return days
}

// RRTSummary summarizes RRT exposure of one encounter.
type RRTSummary struct {
	Overall   bool       //any RRT event during the stay
	Within24h bool       //an RRT event within 24 hours of admission
	First     *time.Time //first RRT event
	Last      *time.Time //last RRT event
}

// SummarizeRRT computes the RRT exposure summary of an encounter from its RRT timeline.
func SummarizeRRT(e *Encounter, timeline []time.Time) RRTSummary {
	summary := RRTSummary{}
	if len(timeline) == 0 {
		return summary
	}
	first, last := timeline[0], timeline[len(timeline)-1]
	summary.Overall = true
	summary.First = &first
	summary.Last = &last
	summary.Within24h = first.Before(e.Admit.Add(24 * time.Hour))
	return summary
}
