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
	"time"

	"clinphen/phenotype"
	"clinphen/utils"
)

const (
	daysPerYear        = 365.2425
	priorWindowDays    = 365 //look back for PreviousCreatinineFlag
	apartDays          = 90  //two eGFR values at least this far apart
	recentDays         = 30  //eGFR considered recent before admission
	reducedEGFR        = 60.0
	previousWindowDays = 1 //draws up to one day after admission count as previous
)

// RowEGFR is a pre-admission creatinine draw with the eGFR at the patient's age at that time.
type RowEGFR struct {
	Time       time.Time
	Creatinine float64
	SampleAge  float64
	EGFR       float64
}

// PriorCreatinine holds the flags derived from the creatinine a patient had before admission. Pointer fields are nil
// when a flag does not apply to the encounter.
type PriorCreatinine struct {
	PreviousCreatinineFlag bool //a draw within the year before admission, without ESRD
	UncertainCKD           bool
	InsufficientData       *bool //only for encounters without any history code
	EGFR90dApartP30d       *bool //two reduced eGFR values at least 90 days apart, older than 30 days before admission
	EGFR90dApartDates      *[2]time.Time
	EGFR30d                *bool //a reduced eGFR in the 30 days before admission
	EGFR30dDate            *time.Time
	Rows                   []*RowEGFR
}

func flag(b bool) *bool {
	return &b
}

// apartPair returns the latest draw date that has another draw at least 90 days later in the list, together with
// the last draw date of the list.
func apartPair(rows []*RowEGFR) (time.Time, time.Time, bool) {
	if len(rows) == 0 {
		return time.Time{}, time.Time{}, false
	}
	maxDate := utils.Date(rows[0].Time)
	for _, r := range rows {
		if d := utils.Date(r.Time); d.After(maxDate) {
			maxDate = d
		}
	}
	var first time.Time
	found := false
	for _, r := range rows {
		d := utils.Date(r.Time)
		if !maxDate.Before(utils.AddDays(d, apartDays)) && (!found || d.After(first)) {
			first, found = d, true
		}
	}
	return first, maxDate, found
}

// PriorCreatinineFlags derives the pre-admission creatinine flags of an encounter from the creatinine draws of its
// patient and its admission history. The age at every draw is derived from the age at admission.
func PriorCreatinineFlags(e *phenotype.Encounter, h *AdminHistory, creatinine []*phenotype.Observation,
	raceCorrection bool, version utils.FormulaVersion) *PriorCreatinine {
	p := &PriorCreatinine{}
	admitDate := utils.Date(e.Admit)
	previousEnd := e.Admit.AddDate(0, 0, previousWindowDays)
	yearStart := e.Admit.AddDate(0, 0, -priorWindowDays)
	oneYear := false
	for _, o := range creatinine {
		if o.Time.After(previousEnd) {
			continue
		}
		if !o.Time.Before(yearStart) {
			oneYear = true
		}
		age := e.Age - e.Admit.Sub(o.Time).Hours()/24/daysPerYear
		p.Rows = append(p.Rows, &RowEGFR{
			Time:       o.Time,
			Creatinine: o.Value,
			SampleAge:  age,
			EGFR:       utils.EGFR(age, e.Sex, e.Race, o.Value, raceCorrection, version),
		})
	}
	esrd, ckd, transplant := h.Flag(ESRD), h.Flag(CKD), h.Flag(KidneyTransplant)
	p.PreviousCreatinineFlag = oneYear && !esrd
	p.UncertainCKD = (h.FinalCodeFlag && !esrd && !transplant && !ckd) || (!h.FinalCodeFlag && p.PreviousCreatinineFlag)

	// draws strictly before the admission day
	data := []*RowEGFR{}
	for _, r := range p.Rows {
		if utils.Date(r.Time).Before(admitDate) {
			data = append(data, r)
		}
	}
	if !h.FinalCodeFlag {
		_, _, sufficient := apartPair(data)
		p.InsufficientData = flag(!sufficient)
	}

	within30, plus30 := []*RowEGFR{}, []*RowEGFR{}
	for _, r := range data {
		if r.EGFR > reducedEGFR {
			continue
		}
		if !admitDate.After(utils.AddDays(utils.Date(r.Time), recentDays)) {
			within30 = append(within30, r)
		} else {
			plus30 = append(plus30, r)
		}
	}
	eligible := (p.InsufficientData != nil && !*p.InsufficientData) ||
		(p.InsufficientData == nil && !esrd && !ckd && !transplant)
	if !eligible {
		return p
	}
	first, last, found := apartPair(plus30)
	p.EGFR90dApartP30d = flag(found)
	if !found {
		return p
	}
	p.EGFR90dApartDates = &[2]time.Time{first, last}
	p.EGFR30d = flag(len(within30) > 0)
	if len(within30) > 0 {
		latest := utils.Date(within30[0].Time)
		for _, r := range within30 {
			if d := utils.Date(r.Time); d.After(latest) {
				latest = d
			}
		}
		p.EGFR30dDate = &latest
	}
	return p
}
