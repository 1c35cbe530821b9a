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

import "time"

// EncounterFilter prescribes a function type for implementing filters on encounters, to be able to phenotype specific
// cohorts. E.g. adult encounters, stays of at least one day, encounters with creatinine, etc.
type EncounterFilter func(e *Encounter) bool

// ApplyEncounterFilters returns a new encounter map with the encounters that pass every filter, in input order.
func ApplyEncounterFilters(filters []EncounterFilter, m *EncounterMap) *EncounterMap {
	newMap := NewEncounterMap()
	for _, e := range m.Encounters() {
		res := true
		for _, filter := range filters {
			res = filter(e) && res
			if !res {
				break
			}
		}
		if res {
			AddEncounter(newMap, e)
		}
	}
	return newMap
}

// AdultFilter removes all encounters of patients younger than 18 at admission.
func AdultFilter() EncounterFilter {
	return func(e *Encounter) bool {
		return e.Age >= 18
	}
}

// MinLengthOfStayFilter removes all encounters shorter than the given duration.
func MinLengthOfStayFilter(d time.Duration) EncounterFilter {
	return func(e *Encounter) bool {
		return e.LengthOfStay() >= d
	}
}

// HasCreatinineFilter removes all encounters without a creatinine draw.
func HasCreatinineFilter() EncounterFilter {
	return func(e *Encounter) bool {
		return len(e.Creatinine) > 0
	}
}

// ExcludeESRDFilter removes all encounters of patients with ESRD by admission history.
func ExcludeESRDFilter() EncounterFilter {
	return func(e *Encounter) bool {
		return !e.ESRD
	}
}
