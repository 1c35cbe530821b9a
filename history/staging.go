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

package history

import (
	"math"
	"sort"
	"strings"
	"time"

	"clinphen/phenotype"
	"clinphen/utils"
)

const (
	akdRatio          = 1.5 //admission creatinine over MDRD at or above which the kidney is injured on admission
	akdWindowDays     = 90  //an AKI code at most this long before admission can still be AKD
	recentWindowDays  = 7
	medianWindowDays  = 365
	noStaging         = "No staging can be done!"
	insufficientClass = "Insufficient Data"
)

// Reference creatinine methods, in the order they are matched against the chosen reference.
const (
	AdmissionCreatinineMethod = "admission_creatinine"
	Min7DaysMethod            = "min_7_days"
	Median8To365DaysMethod    = "medium_8_365_days"
	MDRDMethod                = "mdrd"
)

// Staging is the CKD class of an encounter on admission together with the reference creatinine it implies.
// Creatinine fields are NaN when no draw qualifies.
type Staging struct {
	AdmissionCreatinine float64 //lowest draw on the admission day
	Min7Days            float64 //lowest draw in the 7 days before the admission day
	Median8To365Days    float64 //median draw from 8 to 365 days before the admission day
	MDRD                float64
	FinalClass          string
	CKD                 string //0, 1, ESRD or Insufficient Data
	ReferenceCreatinine float64
	Method              string //which value the reference creatinine is, empty without reference
	EGFR                float64
	EGFRStage           string //G-stage, only for CKD
}

type candidate struct {
	method string
	value  float64
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// latestDate returns the latest code date of a variable, if any.
func latestDate(vh VariableHistory) (time.Time, bool) {
	var date time.Time
	found := false
	for _, c := range []*CodeRef{vh.Condition, vh.Procedure} {
		if c != nil && (!found || c.Date.After(date)) {
			date, found = c.Date, true
		}
	}
	return date, found
}

// subgroup refines a CKD description with the AKI history: a recent AKI code means AKD on admission when the
// admission creatinine is unknown or high against the MDRD creatinine, and recovered AKI otherwise.
func (s *Staging) subgroup(class string, h *AdminHistory) string {
	akiDate, ok := latestDate(h.Variables[AKI])
	if !h.Flag(AKI) || !ok || utils.DaysBetween(akiDate, h.Admit) > akdWindowDays {
		return class
	}
	if s.injuredOnAdmission() {
		return "AKD on Admission, " + class
	}
	return "Recovered AKI on Admission, " + class
}

func (s *Staging) injuredOnAdmission() bool {
	return !(s.AdmissionCreatinine > 0) || utils.GreaterOrEqual(s.AdmissionCreatinine/s.MDRD, akdRatio)
}

// finalClass derives the detailed CKD class from the medical history first and the creatinine criteria second.
func (s *Staging) finalClass(h *AdminHistory, p *PriorCreatinine) string {
	if h.FinalCodeFlag {
		if h.Flag(ESRD) {
			esrdDate, _ := latestDate(h.Variables[ESRD])
			if transplantDate, ok := latestDate(h.Variables[KidneyTransplant]); ok && h.Flag(KidneyTransplant) &&
				!transplantDate.Before(esrdDate) {
				return s.subgroup("CKD after kidney transplant by Medical History", h)
			}
			if s.injuredOnAdmission() {
				return "ESRD"
			}
			return "ESRD with Warning"
		}
		if h.Flag(KidneyTransplant) {
			return s.subgroup("CKD after kidney transplant by Medical History", h)
		}
		if h.Flag(CKD) {
			return s.subgroup("CKD by Medical History", h)
		}
	}
	if p == nil {
		return insufficientClass
	}
	if !h.FinalCodeFlag && p.InsufficientData != nil && *p.InsufficientData {
		return insufficientClass
	}
	if p.EGFR90dApartP30d == nil || !*p.EGFR90dApartP30d {
		return s.subgroup("No CKD by Medical History Or Creatinine Criteria", h)
	}
	return s.subgroup("CKD by Creatinine Criteria", h)
}

// CKDClass maps a detailed CKD class onto 0, 1, ESRD or Insufficient Data.
func CKDClass(finalClass string) string {
	switch {
	case strings.Contains(finalClass, "No CKD"):
		return "0"
	case strings.Contains(finalClass, "CKD"):
		return "1"
	case strings.Contains(finalClass, "ESRD"):
		return "ESRD"
	}
	return insufficientClass
}

// EGFRStage returns the KDIGO G-stage of an eGFR.
func EGFRStage(egfr float64) string {
	switch {
	case math.IsNaN(egfr):
		return noStaging
	case egfr >= 90:
		return "G1"
	case egfr >= 60:
		return "G2"
	case egfr >= 45:
		return "G3a"
	case egfr >= 30:
		return "G3b"
	case egfr >= 15:
		return "G4"
	}
	return "G5"
}

// StageCKD classifies the kidney function of an encounter on admission from its admission history and the
// pre-admission creatinine flags, and picks its reference creatinine: the lowest of the admission creatinine, the
// 7 day minimum and the 8 to 365 day median, bounded by the MDRD creatinine when the patient has no CKD.
func StageCKD(e *phenotype.Encounter, h *AdminHistory, raceCorrection bool, version utils.FormulaVersion) *Staging {
	s := &Staging{
		AdmissionCreatinine: math.NaN(),
		Min7Days:            math.NaN(),
		Median8To365Days:    math.NaN(),
		MDRD:                utils.MDRD(e.Age, e.Sex, e.Race, raceCorrection, version),
		ReferenceCreatinine: math.NaN(),
		EGFR:                math.NaN(),
	}
	admitDate := utils.Date(e.Admit)
	older := []float64{}
	if h.Prior != nil {
		for _, r := range h.Prior.Rows {
			switch days := utils.DaysBetween(r.Time, admitDate); {
			case days == 0:
				s.AdmissionCreatinine = utils.MinFloat(s.AdmissionCreatinine, r.Creatinine)
			case days > 0 && days <= recentWindowDays:
				s.Min7Days = utils.MinFloat(s.Min7Days, r.Creatinine)
			case days > recentWindowDays && days <= medianWindowDays:
				older = append(older, r.Creatinine)
			}
		}
	}
	s.Median8To365Days = median(older)
	s.FinalClass = s.finalClass(h, h.Prior)
	s.CKD = CKDClass(s.FinalClass)

	candidates := []candidate{
		{AdmissionCreatinineMethod, s.AdmissionCreatinine},
		{Min7DaysMethod, s.Min7Days},
		{Median8To365DaysMethod, s.Median8To365Days},
	}
	if s.CKD == "0" || s.CKD == insufficientClass {
		candidates = append(candidates, candidate{MDRDMethod, s.MDRD})
	}
	for _, c := range candidates {
		s.ReferenceCreatinine = utils.MinFloat(s.ReferenceCreatinine, c.value)
	}
	for _, c := range candidates {
		if c.value == s.ReferenceCreatinine {
			s.Method = c.method
			break
		}
	}
	if s.Method != "" && s.Method != MDRDMethod {
		s.EGFR = utils.EGFR(e.Age, e.Sex, e.Race, s.ReferenceCreatinine, raceCorrection, version)
	}
	if s.CKD == "1" {
		s.EGFRStage = EGFRStage(s.EGFR)
	}
	return s
}
