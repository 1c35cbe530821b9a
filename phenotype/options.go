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
	"fmt"

	"clinphen/utils"
)

// IncreaseRule selects how the creatinine increase trigger of the AKI definition is evaluated.
type IncreaseRule int

const (
	// Increase48h flags a rise of at least 0.3 mg/dL over the 48 hour minimum.
	Increase48h IncreaseRule = iota
	// Increase48hAndReference additionally requires a rise of at least 0.3 mg/dL over the reference creatinine.
	Increase48hAndReference
)

// ReferenceContinuation selects the reference creatinine used after day 7 while AKI is ongoing.
type ReferenceContinuation int

const (
	// ContinueLastCreatinine takes the last available creatinine as the new reference.
	ContinueLastCreatinine ReferenceContinuation = iota
	// ContinuePreviousReference carries the reference of the previous observation forward.
	ContinuePreviousReference
)

// Options parameterize the AKI phenotype.
type Options struct {
	RaceCorrection bool                 //apply the race coefficient in eGFR and MDRD
	Version        utils.FormulaVersion //eGFR/MDRD equation family
	IncreaseRule   IncreaseRule
	Continuation   ReferenceContinuation
	Stage3Strict   bool //creatinine > 4 instead of >= 4 for the absolute trigger and Stage 3
	MaxEpisodes    int  //number of episode columns in the encounter summary
	GapTolerance   int  //number of non-AKI days absorbed into a running episode
}

// DefaultOptions returns the options of the reference pipeline.
func DefaultOptions() Options {
	return Options{
		Version:      utils.CKDEPI2021,
		IncreaseRule: Increase48h,
		Continuation: ContinueLastCreatinine,
		MaxEpisodes:  20,
		GapTolerance: 2,
	}
}

// ParseIncreaseRule maps a configuration token onto an IncreaseRule.
func ParseIncreaseRule(s string) (IncreaseRule, error) {
	switch s {
	case "", "48h":
		return Increase48h, nil
	case "48h_and_reference":
		return Increase48hAndReference, nil
	}
	return Increase48h, fmt.Errorf("unknown increase rule %q", s)
}

// ParseReferenceContinuation maps a configuration token onto a ReferenceContinuation.
func ParseReferenceContinuation(s string) (ReferenceContinuation, error) {
	switch s {
	case "", "last_creatinine":
		return ContinueLastCreatinine, nil
	case "previous_reference":
		return ContinuePreviousReference, nil
	}
	return ContinueLastCreatinine, fmt.Errorf("unknown reference continuation %q", s)
}
