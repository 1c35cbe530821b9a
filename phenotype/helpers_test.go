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

var admit = time.Date(2021, 1, 10, 8, 0, 0, 0, time.UTC)

func hours(h float64) time.Time {
	return admit.Add(time.Duration(h * float64(time.Hour)))
}

func days(d int) time.Time {
	return admit.AddDate(0, 0, d)
}

// newTestEncounter returns an adult encounter with a known CKD status, so that its reference is its first draw.
func newTestEncounter(losDays int) *Encounter {
	e := NewEncounter("E1", "P1", admit, days(losDays))
	e.Age = 60
	e.Sex = "M"
	e.Race = "WHITE"
	e.CKDStatus = "1"
	return e
}

func addDraw(e *Encounter, t time.Time, value float64) {
	AddCreatinine(e, &Observation{Time: t, Value: value})
}

func dayTable(flags ...bool) []*DayRecord {
	table := []*DayRecord{}
	for i, aki := range flags {
		day := &DayRecord{Date: utils.Date(days(i)), AKI: aki}
		if aki {
			day.Stage = Stage1
		}
		table = append(table, day)
	}
	return table
}
