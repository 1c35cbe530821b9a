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
package sofa

import "math"

// Scores are the six SOFA component scores and their total.
type Scores struct {
	Cardio, Resp, Coag, Liver, CNS, Renal int
	Total                                  int
}

// CardioScore grades the cardiovascular system from the pressor doses (mcg/kg/min) and the mean arterial pressure.
// Missing values are NaN and never satisfy a threshold.
func CardioScore(dopamine, dobutamine, norepinephrine, epinephrine, vasopressin, phenylephrine, meanArterial float64) int {
	switch {
	case dopamine > 15 || epinephrine > 0.1 || norepinephrine > 0.1:
		return 4
	case dopamine > 5 || epinephrine <= 0.1 || !math.IsNaN(phenylephrine) || !math.IsNaN(vasopressin) ||
		norepinephrine <= 0.1:
		return 3
	case dopamine <= 5 || !math.IsNaN(dobutamine):
		return 2
	case meanArterial < 70:
		return 1
	}
	return 0
}

// respiratoryGrade grades one oxygenation ratio, with the two worst grades reserved for ventilated patients.
func respiratoryGrade(ratio float64, ventilated bool) int {
	switch {
	case ventilated && ratio < 100:
		return 4
	case ventilated && ratio < 200:
		return 3
	case ratio < 300:
		return 2
	case ratio < 400:
		return 1
	}
	return 0
}

// RespScore grades the respiratory system from the P/F ratio, or from the S/F surrogate when no P/F ratio is known.
func RespScore(pf, spf, mv float64) int {
	ventilated := mv > 0
	if !math.IsNaN(pf) {
		return respiratoryGrade(pf, ventilated)
	}
	if !math.IsNaN(spf) {
		return respiratoryGrade(spf, ventilated)
	}
	return 0
}

// CoagScore grades coagulation from the platelet count (10^9/L).
func CoagScore(platelets float64) int {
	switch {
	case platelets < 20:
		return 4
	case platelets < 50:
		return 3
	case platelets < 100:
		return 2
	case platelets < 150:
		return 1
	}
	return 0
}

// LiverScore grades the liver from bilirubin (mg/dL).
func LiverScore(bilirubin float64) int {
	switch {
	case bilirubin > 12:
		return 4
	case bilirubin >= 6:
		return 3
	case bilirubin >= 2:
		return 2
	case bilirubin >= 1.2:
		return 1
	}
	return 0
}

// CNSScore grades the central nervous system from the Glasgow coma scale.
func CNSScore(gcs float64) int {
	switch {
	case gcs < 6:
		return 4
	case gcs <= 9:
		return 3
	case gcs <= 12:
		return 2
	case gcs <= 14:
		return 1
	}
	return 0
}

// RenalScore grades the kidneys from creatinine (mg/dL).
func RenalScore(creatinine float64) int {
	switch {
	case creatinine > 5:
		return 4
	case creatinine >= 3.5:
		return 3
	case creatinine >= 2:
		return 2
	case creatinine >= 1.2:
		return 1
	}
	return 0
}

// Score computes the component scores and the total from a set of worst values.
func Score(values *[nofVariables]float64) Scores {
	s := Scores{
		Cardio: CardioScore(values[Dopamine], values[Dobutamine], values[Norepinephrine], values[Epinephrine],
			values[Vasopressin], values[Phenylephrine], values[MAP]),
		Resp:  RespScore(values[PF], values[SPF], values[MV]),
		Coag:  CoagScore(values[Platelets]),
		Liver: LiverScore(values[Bilirubin]),
		CNS:   CNSScore(values[GCS]),
		Renal: RenalScore(values[Creatinine]),
	}
	s.Total = s.Cardio + s.Resp + s.Coag + s.Liver + s.CNS + s.Renal
	return s
}
