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

import (
	"math"
	"sort"
	"time"
)

// Stay is the time frame an encounter is scored in.
type Stay struct {
	EID        string
	Start, End time.Time
}

// MAPReading is a mean arterial pressure measurement. Missing values are NaN.
type MAPReading struct {
	Time        time.Time
	Invasive    float64
	NonInvasive float64
}

// GCSReading is a Glasgow coma scale measurement.
type GCSReading struct {
	Time  time.Time
	Name  string //only glasgow_coma_adult_score is used
	Value float64
}

// RespiratoryReading is a respiratory measurement together with its device and station context.
type RespiratoryReading struct {
	Time    time.Time
	Name    string //fio2_resp, fio2_labs, sp02, ...
	Value   float64
	Device  string //device type, e.g. ventilator
	Station string //station type, e.g. OR, Procedure suite, Ward
	Intraop string //Y when intra-operative
}

// LabResult is a LOINC coded lab value.
type LabResult struct {
	Time  time.Time
	LOINC string
	Value float64
}

// MedicationDose is a pressor administration.
type MedicationDose struct {
	Time   time.Time
	Drug   string
	Dose   float64
	Unit   string
	Weight float64 //dosing weight in kg, NaN when unknown
}

// Streams are the raw measurement streams of one encounter.
type Streams struct {
	Stay        Stay
	MAP         []*MAPReading
	GCS         []*GCSReading
	Respiratory []*RespiratoryReading
	Labs        []*LabResult
	Medications []*MedicationDose
}

// Variable is one aggregated SOFA input.
type Variable int

const (
	GCS Variable = iota
	MAP
	Bilirubin
	Platelets
	Creatinine
	PF
	SPF
	Dopamine
	Dobutamine
	Norepinephrine
	Epinephrine
	Vasopressin
	Phenylephrine
	MV
	nofVariables
)

var variableNames = []string{"glasgow_coma_adult_score", "map_value", "bilirubin", "platelets", "creatinine", "pf",
	"spf", "dopamine", "dobutamine", "norepinephrine", "epinephrine", "vasopressin", "phenylephrine", "mv"}

func (v Variable) String() string {
	return variableNames[v]
}

// worstIsMin tells whether the worst value of a variable is its minimum rather than its maximum.
func worstIsMin(v Variable) bool {
	switch v {
	case GCS, MAP, Platelets, PF, SPF:
		return true
	}
	return false
}

// feedForwardVariables are the variables that may be carried forward into an assessment.
var feedForwardVariables = []Variable{GCS, MAP, Bilirubin, Platelets, Creatinine, PF, SPF}

var (
	bilirubinCodes  = map[string]bool{"42719-5": true, "1975-2": true}
	creatinineCodes = map[string]bool{"38483-4": true, "2160-0": true}
	plateletCodes   = map[string]bool{"777-3": true, "778-1": true, "26515-7": true}
	pao2Codes       = map[string]bool{"19255-9": true, "2703-7": true}
	fio2Names       = map[string]bool{"fio2_resp": true, "fio2_labs": true}
)

const (
	spo2Name          = "sp02"
	gcsName           = "glasgow_coma_adult_score"
	ventilator        = "ventilator"
	defaultFiO2       = 21.0
	mcgPerKgMin       = "mcg/kg/min"
	mgPerKgHour       = "mg/kg/hr"
	mgPerHour         = "mg/hr"
	intraopFlag       = "Y"
	wardStation       = "Ward"
	orStation         = "OR"
	procStation       = "Procedure suite"
	vasopressinDrug   = "vasopressin"
	phenylephrineDrug = "phenylephrine"
)

// pressorCeilings are the largest plausible doses in mcg/kg/min of the weight based pressors.
var pressorCeilings = map[string]float64{
	"dopamine":       50,
	"dobutamine":     40,
	"norepinephrine": 15,
	"epinephrine":    5,
}

var pressorVariables = map[string]Variable{
	"dopamine":       Dopamine,
	"dobutamine":     Dobutamine,
	"norepinephrine": Norepinephrine,
	"epinephrine":    Epinephrine,
	"vasopressin":    Vasopressin,
	"phenylephrine":  Phenylephrine,
}

// point is one timestamped value of a variable.
type point struct {
	time  time.Time
	value float64
}

// series maps every variable onto its time sorted points.
type series [nofVariables][]point

func (s *series) add(v Variable, t time.Time, value float64) {
	s[v] = append(s[v], point{t, value})
}

func (s *series) sort() {
	for v := range s {
		points := s[v]
		sort.SliceStable(points, func(i, j int) bool {
			return points[i].time.Before(points[j].time)
		})
	}
}

// inStay tells whether a timestamp lies in the closed stay window.
func (st Stay) inStay(t time.Time) bool {
	return !t.Before(st.Start) && !t.After(st.End)
}

// NormalizeDose converts a weight based pressor dose to mcg/kg/min. Doses in mg/kg/hr are always converted, doses
// in mg/hr only with a known dosing weight. Other doses are returned unchanged.
func NormalizeDose(m *MedicationDose) (float64, string) {
	if _, ok := pressorCeilings[m.Drug]; !ok {
		return m.Dose, m.Unit
	}
	switch {
	case m.Unit == mgPerKgHour:
		return m.Dose * 1000 / 60, mcgPerKgMin
	case m.Unit == mgPerHour && !math.IsNaN(m.Weight):
		return m.Dose * 1000 / 60 / m.Weight, mcgPerKgMin
	}
	return m.Dose, m.Unit
}

// validPressor tells whether a normalized pressor dose is usable.
func validPressor(drug string, dose float64, unit string) bool {
	if drug == vasopressinDrug || drug == phenylephrineDrug {
		return dose > 0
	}
	ceiling, ok := pressorCeilings[drug]
	return ok && unit == mcgPerKgMin && dose > 0 && dose <= ceiling
}

// UnderMechanicalVentilation tells whether a respiratory reading indicates mechanical ventilation: a ventilator device
// outside of general anaesthesia. General anaesthesia is an intra-operative reading, a reading in an OR or procedure
// suite station, or a ventilator reading on a ward.
func UnderMechanicalVentilation(r *RespiratoryReading) bool {
	anaesthesia := r.Intraop == intraopFlag || r.Station == orStation || r.Station == procStation ||
		(r.Station == wardStation && r.Device == ventilator)
	return !anaesthesia && r.Device == ventilator
}

// asOf returns the value of the last point at or before t.
func asOf(points []point, t time.Time) (point, bool) {
	idx := sort.Search(len(points), func(i int) bool {
		return points[i].time.After(t)
	})
	if idx == 0 {
		return point{}, false
	}
	return points[idx-1], true
}

// extract filters the raw streams of an encounter to its stay and physiologic bounds and derives the P/F and S/F
// ratios. The result is the time sorted raw series of every variable.
func extract(s *Streams) *series {
	stay := s.Stay
	raw := &series{}
	for _, m := range s.MAP {
		value := m.Invasive
		if math.IsNaN(value) {
			value = m.NonInvasive
		}
		if stay.inStay(m.Time) && value > 0 && value <= 300 {
			raw.add(MAP, m.Time, value)
		}
	}
	for _, g := range s.GCS {
		if g.Name != gcsName || !stay.inStay(g.Time) || math.IsNaN(g.Value) {
			continue
		}
		if value := math.Trunc(g.Value); value >= 3 && value <= 15 {
			raw.add(GCS, g.Time, value)
		}
	}
	fio2 := []point{}
	spo2 := []point{}
	for _, r := range s.Respiratory {
		if !stay.inStay(r.Time) {
			continue
		}
		if UnderMechanicalVentilation(r) {
			raw.add(MV, r.Time, 1)
		}
		if math.IsNaN(r.Value) {
			continue
		}
		value := math.Trunc(r.Value)
		switch {
		case fio2Names[r.Name] && value >= 21 && value <= 100:
			fio2 = append(fio2, point{r.Time, value})
		case r.Name == spo2Name && value > 1 && value <= 100:
			spo2 = append(spo2, point{r.Time, value})
		}
	}
	pao2 := []point{}
	for _, l := range s.Labs {
		if !stay.inStay(l.Time) || math.IsNaN(l.Value) {
			continue
		}
		switch {
		case bilirubinCodes[l.LOINC] && l.Value >= 0.03 && l.Value <= 44:
			raw.add(Bilirubin, l.Time, l.Value)
		case creatinineCodes[l.LOINC] && l.Value >= 0.1 && l.Value <= 20:
			raw.add(Creatinine, l.Time, l.Value)
		case plateletCodes[l.LOINC] && l.Value >= 2 && l.Value <= 1900:
			raw.add(Platelets, l.Time, l.Value)
		case pao2Codes[l.LOINC] && l.Value > 0 && l.Value <= 800:
			pao2 = append(pao2, point{l.Time, l.Value})
		}
	}
	for _, m := range s.Medications {
		v, ok := pressorVariables[m.Drug]
		if !ok || !stay.inStay(m.Time) {
			continue
		}
		if dose, unit := NormalizeDose(m); validPressor(m.Drug, dose, unit) {
			raw.add(v, m.Time, dose)
		}
	}
	sortPoints := func(points []point) {
		sort.SliceStable(points, func(i, j int) bool {
			return points[i].time.Before(points[j].time)
		})
	}
	sortPoints(fio2)
	fio2At := func(t time.Time) float64 {
		if p, ok := asOf(fio2, t); ok {
			return p.value
		}
		return defaultFiO2
	}
	for _, p := range pao2 {
		raw.add(PF, p.time, p.value/(fio2At(p.time)/100))
	}
	for _, p := range spo2 {
		if spf := (p.value/(fio2At(p.time)/100) - 64) / 0.84; spf > 0 {
			raw.add(SPF, p.time, spf)
		}
	}
	raw.sort()
	return raw
}
