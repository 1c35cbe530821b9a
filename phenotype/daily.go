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

// DayRecord is the AKI status of one calendar day of a stay.
type DayRecord struct {
	Date     time.Time
	AKI      bool
	Stage    Stage
	Observed bool //at least one creatinine draw on this day
	RRT      bool //at least one RRT event on this day
	Episode  int  //ordinal of the episode the day belongs to, 0 when none
}

// Episode is a run of AKI days.
type Episode struct {
	Ordinal    int //1-based
	Begin, End time.Time
	Days       int //End - Begin + 1
	WorstStage Stage
}

// RollupDays turns the classified draws of an encounter into one record per calendar day from the admission date to
// the discharge date. A day with draws takes the worst flag and stage of its draws, a day with an RRT event is
// Stage 3 + RRT, and any other day inherits the previous day's status. Days before the first signal are AKI free.
func RollupDays(e *Encounter, records []*AKIRecord, timeline []time.Time) []*DayRecord {
	type dayStatus struct {
		aki   bool
		stage Stage
	}
	observed := map[time.Time]*dayStatus{}
	for _, r := range records {
		date := r.Date()
		status, ok := observed[date]
		if !ok {
			status = &dayStatus{}
			observed[date] = status
		}
		status.aki = status.aki || r.AKI
		status.stage = MaxStage(status.stage, r.Stage)
	}
	rrtDays := RRTDays(timeline)
	first, last := utils.Date(e.Admit), utils.Date(e.Discharge)
	if len(records) > 0 {
		if d := records[len(records)-1].Date(); d.After(last) {
			last = d
		}
	}
	days := []*DayRecord{}
	aki, stage := false, NoStage
	for d := first; !d.After(last); d = utils.AddDays(d, 1) {
		day := &DayRecord{Date: d}
		if status, ok := observed[d]; ok {
			day.Observed = true
			aki, stage = status.aki, status.stage
		}
		if rrtDays[d] {
			day.RRT = true
			aki, stage = true, Stage3RRT
		}
		if !aki {
			stage = NoStage
		}
		day.AKI, day.Stage = aki, stage
		days = append(days, day)
	}
	return days
}

// SegmentEpisodes groups the AKI days of a day table into episodes. Two runs of AKI days separated by at most gap
// non-AKI days belong to the same episode; the days in between are absorbed into the episode and inherit the status
// of the day before them. The day table is updated in place with the absorbed days and the episode ordinals.
func SegmentEpisodes(days []*DayRecord, gap int) []*Episode {
	episodes := []*Episode{}
	var current *Episode
	lastAKI := -1
	for i, day := range days {
		if !day.AKI {
			continue
		}
		if current != nil && i-lastAKI-1 <= gap {
			for k := lastAKI + 1; k < i; k++ {
				days[k].AKI = true
				days[k].Stage = days[k-1].Stage
				days[k].Episode = current.Ordinal
			}
		} else {
			current = &Episode{Ordinal: len(episodes) + 1, Begin: day.Date}
			episodes = append(episodes, current)
		}
		day.Episode = current.Ordinal
		current.End = day.Date
		lastAKI = i
	}
	for _, ep := range episodes {
		ep.Days = utils.DaysBetween(ep.Begin, ep.End) + 1
	}
	for _, day := range days {
		if day.Episode > 0 {
			ep := episodes[day.Episode-1]
			ep.WorstStage = MaxStage(ep.WorstStage, day.Stage)
		}
	}
	return episodes
}
