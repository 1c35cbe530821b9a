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
package app

import (
	"fmt"
	"time"

	"clinphen/phenotype"
)

// FilterNames lists the encounter filters that can be selected by name.
var FilterNames = []string{"adult", "los24h", "creatinine", "noESRD"}

// GetEncounterFilter maps a filter name onto an encounter filter.
func GetEncounterFilter(s string) (phenotype.EncounterFilter, error) {
	switch s {
	case "adult":
		return phenotype.AdultFilter(), nil
	case "los24h":
		return phenotype.MinLengthOfStayFilter(24 * time.Hour), nil
	case "creatinine":
		return phenotype.HasCreatinineFilter(), nil
	case "noESRD":
		return phenotype.ExcludeESRDFilter(), nil
	}
	return nil, fmt.Errorf("unknown encounter filter %q, expected one of %v", s, FilterNames)
}

// GetEncounterFilters maps a list of filter names onto encounter filters.
func GetEncounterFilters(names []string) ([]phenotype.EncounterFilter, error) {
	filters := make([]phenotype.EncounterFilter, 0, len(names))
	for _, name := range names {
		filter, err := GetEncounterFilter(name)
		if err != nil {
			return nil, err
		}
		filters = append(filters, filter)
	}
	return filters, nil
}
