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
	"math"
	"sort"
	"time"
)

// Observation represents one timestamped numeric measurement, e.g. a serum creatinine draw.
type Observation struct {
	Time  time.Time
	Value float64
}

// Code represents a coded diagnosis or procedure from a patient's history.
type Code struct {
	PID       string    //patient id
	Date      time.Time //calendar date of the code
	ConceptID string    //source or OMOP concept code
	Variable  string    //phenotype variable the code maps to: aki, ckd, dialysis, kidney_transplant, esrd
	Domain    string    //Condition, Observation or Procedure
}

// Encounter represents one hospitalization together with the series the AKI engine consumes.
type Encounter struct {
	EID                 string         //encounter id
	PID                 string         //patient id
	Admit               time.Time      //admission timestamp
	Discharge           time.Time      //discharge timestamp
	Age                 float64        //age at admission in years
	Sex                 string         //raw sex token, see utils.IsMale
	Race                string         //raw race token
	ReferenceCreatinine float64        //pre-admission reference from CKD staging, NaN when unknown
	CKDStatus           string         //CKD status on admission: 0, 1, Insufficient Data
	FinalClass          string         //CKD/AKD class on admission
	ESRD                bool           //ESRD by admission history
	Creatinine          []*Observation //creatinine draws, sorted by time after CompactObservations
	Dialysis            []time.Time    //explicit dialysis start timestamps
	Procedures          []*Code        //procedure codes of the patient
}

// NewEncounter returns an encounter without a known reference creatinine.
func NewEncounter(eid, pid string, admit, discharge time.Time) *Encounter {
	return &Encounter{
		EID:                 eid,
		PID:                 pid,
		Admit:               admit,
		Discharge:           discharge,
		ReferenceCreatinine: math.NaN(),
	}
}

// HasReference tells whether CKD staging provided a pre-admission reference creatinine.
func (e *Encounter) HasReference() bool {
	return !math.IsNaN(e.ReferenceCreatinine) && e.ReferenceCreatinine > 0
}

// LengthOfStay returns the time between admission and discharge.
func (e *Encounter) LengthOfStay() time.Duration {
	return e.Discharge.Sub(e.Admit)
}

// AddCreatinine appends a creatinine draw to an encounter.
func AddCreatinine(e *Encounter, o *Observation) {
	e.Creatinine = append(e.Creatinine, o)
}

// SortObservations orders a list of observations by time. Equal times keep their relative order.
func SortObservations(obs []*Observation) {
	sort.SliceStable(obs, func(i, j int) bool {
		return obs[i].Time.Before(obs[j].Time)
	})
}

// observationEqual checks if two observations have the same time and value.
func observationEqual(o1, o2 *Observation) bool {
	return o1.Time.Equal(o2.Time) && o1.Value == o2.Value
}

// compactSeries returns a time sorted copy of a series without duplicate draws, i.e. draws with the same time and
// value.
func compactSeries(obs []*Observation) []*Observation {
	sorted := append([]*Observation(nil), obs...)
	SortObservations(sorted)
	compacted := []*Observation{}
	for _, o := range sorted {
		duplicate := false
		// duplicates share a timestamp, so only the run of equal times needs checking
		for k := len(compacted) - 1; k >= 0 && compacted[k].Time.Equal(o.Time); k-- {
			if observationEqual(compacted[k], o) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			compacted = append(compacted, o)
		}
	}
	return compacted
}

// CompactObservations sorts the creatinine series of an encounter and drops duplicate draws.
func CompactObservations(e *Encounter) {
	e.Creatinine = compactSeries(e.Creatinine)
}

// EncounterMap contains all encounter information parsed from the input.
type EncounterMap struct {
	EIDMap map[string]*Encounter   //maps encounter id onto an encounter
	PIDMap map[string][]*Encounter //maps patient id onto the patient's encounters
	Order  []string                //encounter ids in input order
	Ctr    int                     //total nr of encounters parsed
}

// NewEncounterMap returns an empty encounter map.
func NewEncounterMap() *EncounterMap {
	return &EncounterMap{EIDMap: map[string]*Encounter{}, PIDMap: map[string][]*Encounter{}}
}

// AddEncounter adds an encounter to the map, unless an encounter with the same id is already a member.
func AddEncounter(m *EncounterMap, e *Encounter) bool {
	if _, ok := m.EIDMap[e.EID]; ok {
		return false
	}
	m.EIDMap[e.EID] = e
	m.PIDMap[e.PID] = append(m.PIDMap[e.PID], e)
	m.Order = append(m.Order, e.EID)
	m.Ctr++
	return true
}

// GetEncounter retrieves from an encounter map the encounter with the given id.
func GetEncounter(eid string, m *EncounterMap) (*Encounter, bool) {
	e, ok := m.EIDMap[eid]
	return e, ok
}

// Encounters returns the encounters of a map in input order.
func (m *EncounterMap) Encounters() []*Encounter {
	encounters := make([]*Encounter, 0, len(m.Order))
	for _, eid := range m.Order {
		encounters = append(encounters, m.EIDMap[eid])
	}
	return encounters
}
