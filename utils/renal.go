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
package utils

import "math"

// FormulaVersion selects the creatinine equation family used by EGFR and MDRD.
type FormulaVersion int

const (
	CKDEPI2009 FormulaVersion = 2009 // CKD-EPI 2009, optionally race corrected
	CKDEPI2021 FormulaVersion = 2021 // CKD-EPI 2021 refit without race
)

// MaxDailyDeltaCreatinine is the maximal creatinine rise per day (mg/dL) assumed by the kinetic eGFR formula.
const MaxDailyDeltaCreatinine = 1.5

// Physiologic bounds of a serum creatinine draw in mg/dL. Draws outside are dropped at ingestion.
const (
	MinCreatinine = 0.1
	MaxCreatinine = 20.0
)

// ValidCreatinine tells whether a creatinine draw lies within the physiologic bounds.
func ValidCreatinine(value float64) bool {
	return value >= MinCreatinine && value <= MaxCreatinine
}

// referenceGFR is the GFR assumed when back-calculating a creatinine with MDRD.
const referenceGFR = 75.0

var maleAliases = map[string]bool{
	"MALE": true,
	"8507": true,
	"M":    true,
	"Male": true,
	"male": true,
}

var egfrBlackAliases = map[string]bool{
	"African-American": true,
	"BLACK":            true,
	"38003598":         true,
	"8516":             true,
}

var mdrdBlackAliases = map[string]bool{
	"African-American": true,
	"BLACK":            true,
}

// IsMale resolves a sex token, string or OMOP coded, to male. Any other token is treated as female.
func IsMale(sex string) bool {
	return maleAliases[sex]
}

// useRefit tells whether the race free 2021 equation applies.
func useRefit(raceCorrection bool, version FormulaVersion) bool {
	return !raceCorrection && version == CKDEPI2021
}

// EGFR computes the estimated glomerular filtration rate (mL/min/1.73m2) from a serum creatinine (mg/dL).
// With version CKDEPI2021 and no race correction the 2021 refit is used, in all other cases the 2009 equation with
// an optional race coefficient.
func EGFR(age float64, sex, race string, creatinine float64, raceCorrection bool, version FormulaVersion) float64 {
	male := IsMale(sex)
	if useRefit(raceCorrection, version) {
		k, a1, sexCoef := 0.7, -0.241, 1.012
		if male {
			k, a1, sexCoef = 0.9, -0.302, 1.0
		}
		return 142 * math.Pow(math.Min(creatinine/k, 1), a1) * math.Pow(math.Max(creatinine/k, 1), -1.2) *
			math.Pow(0.9938, age) * sexCoef
	}
	k, alpha, sexCoef := 0.7, -0.329, 1.018
	if male {
		k, alpha, sexCoef = 0.9, -0.411, 1.0
	}
	raceCoef := 1.0
	if raceCorrection && egfrBlackAliases[race] {
		raceCoef = 1.159
	}
	return 141 * math.Pow(math.Min(creatinine/k, 1), alpha) * math.Pow(math.Max(creatinine/k, 1), -1.209) *
		math.Pow(0.993, age) * sexCoef * raceCoef
}

// MDRD back-calculates the creatinine (mg/dL) a patient of the given age, sex and race would have at a GFR of 75. It
// serves as a surrogate baseline creatinine when no pre-admission value is known.
func MDRD(age float64, sex, race string, raceCorrection bool, version FormulaVersion) float64 {
	male := IsMale(sex)
	if useRefit(raceCorrection, version) {
		kappa, alpha1, sexCoef := 0.7, -0.241, 1.012
		if male {
			kappa, alpha1, sexCoef = 0.9, -0.302, 1.0
		}
		alpha2 := -1.2
		base := sexCoef * 142 * math.Pow(0.9938, age)
		output1 := math.Pow(referenceGFR/(base*math.Pow(kappa, -alpha1)), 1/alpha1)
		output2 := math.Pow(referenceGFR/(base*math.Pow(kappa, -alpha2)), 1/alpha2)
		if output1 >= kappa {
			return output2
		}
		return output1
	}
	sexCoef := 0.742
	if male {
		sexCoef = 1
	}
	raceCoef := 1.0
	if raceCorrection && mdrdBlackAliases[race] {
		raceCoef = 1.21
	}
	return math.Pow((sexCoef*raceCoef*186*math.Pow(age, -0.203))/referenceGFR, 1/1.154)
}

// KeGFR computes the kinetic eGFR of a non steady state patient from the baseline creatinine and eGFR, the previous
// and current creatinine and the hours elapsed between both measurements.
func KeGFR(baseCreatinine, baseEGFR, prevCreatinine, curCreatinine, hours float64) float64 {
	meanCreatinine := (prevCreatinine + curCreatinine) / 2
	return baseCreatinine * baseEGFR / meanCreatinine *
		(1 - 24*(curCreatinine-prevCreatinine)/(hours*MaxDailyDeltaCreatinine))
}
