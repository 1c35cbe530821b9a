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
	"io"
	"math"
	"strings"

	"go.uber.org/zap"

	"clinphen/phenotype"
	"clinphen/utils"
)

// Table names used in errors and log messages.
const (
	EncounterTable       = "encounter"
	CreatinineTable      = "creatinine"
	DialysisTable        = "dialysis"
	CodeTable            = "codes"
	PriorCreatinineTable = "prior_creatinine"
)

//The AKI inputs are header based tables with one line per item:
//encounter: person_id, encounter_id, admit_datetime, dischg_datetime, age, and optionally sex, race,
//reference_creatinine, ckd and final_class from CKD staging.
//creatinine: encounter_id, inferred_specimen_datetime, lab_result.
//dialysis: encounter_id, dialysis_time.
//codes: person_id, code_date, concept_id, variable_name, domain_id.
//prior_creatinine: person_id, inferred_specimen_datetime, lab_result.

// ParseEncounters parses the encounter table into an encounter map. Encounters without ids or without valid
// admission and discharge timestamps are skipped, as are repeated encounter ids.
func ParseEncounters(r io.Reader, logger *zap.Logger) (*phenotype.EncounterMap, error) {
	t, err := newTable(r, EncounterTable, personID, encounterID, "admit_datetime", "dischg_datetime", "age")
	if err != nil {
		return nil, err
	}
	m := phenotype.NewEncounterMap()
	skipped := 0
	for {
		rec, err := t.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		pid, eid := rec.str(personID), rec.str(encounterID)
		admit, okAdmit := rec.time("admit_datetime")
		discharge, okDischarge := rec.time("dischg_datetime")
		if pid == "" || eid == "" || !okAdmit || !okDischarge || discharge.Before(admit) {
			skipped++
			continue //skip encounters without a valid stay
		}
		e := phenotype.NewEncounter(eid, pid, admit, discharge)
		e.Age = rec.float("age")
		e.Sex = rec.str("sex")
		e.Race = rec.str("race")
		if ref := rec.float("reference_creatinine"); !math.IsNaN(ref) && ref > 0 {
			e.ReferenceCreatinine = ref
		}
		e.CKDStatus = rec.str("ckd")
		e.FinalClass = rec.str("final_class")
		if !phenotype.AddEncounter(m, e) {
			skipped++
		}
	}
	logger.Info("Parsed encounters", zap.Int("encounters", m.Ctr), zap.Int("skipped", skipped))
	return m, nil
}

// ParseLabs parses the creatinine table and attaches the draws to their encounters. Draws of unknown encounters,
// without a timestamp, or outside the physiologic bounds are dropped. It returns the number of attached draws.
func ParseLabs(r io.Reader, m *phenotype.EncounterMap, logger *zap.Logger) (int, error) {
	t, err := newTable(r, CreatinineTable, encounterID, "inferred_specimen_datetime", "lab_result")
	if err != nil {
		return 0, err
	}
	ctr, dropped := 0, 0
	for {
		rec, err := t.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return ctr, err
		}
		e, ok := phenotype.GetEncounter(rec.str(encounterID), m)
		if !ok {
			continue
		}
		when, ok := rec.time("inferred_specimen_datetime")
		value := rec.float("lab_result")
		if !ok || !utils.ValidCreatinine(value) {
			dropped++
			continue
		}
		phenotype.AddCreatinine(e, &phenotype.Observation{Time: when, Value: value})
		ctr++
	}
	for _, e := range m.EIDMap {
		phenotype.CompactObservations(e)
	}
	logger.Info("Parsed creatinine draws", zap.Int("draws", ctr), zap.Int("dropped", dropped))
	return ctr, nil
}

// ParseDialysis parses the explicit dialysis timestamps and attaches them to their encounters. It returns the number
// of attached events.
func ParseDialysis(r io.Reader, m *phenotype.EncounterMap, logger *zap.Logger) (int, error) {
	t, err := newTable(r, DialysisTable, encounterID, "dialysis_time")
	if err != nil {
		return 0, err
	}
	ctr := 0
	for {
		rec, err := t.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return ctr, err
		}
		e, ok := phenotype.GetEncounter(rec.str(encounterID), m)
		if !ok {
			continue
		}
		if when, ok := rec.time("dialysis_time"); ok {
			e.Dialysis = append(e.Dialysis, when)
			ctr++
		}
	}
	logger.Info("Parsed dialysis events", zap.Int("events", ctr))
	return ctr, nil
}

// ParseCodes parses the diagnosis and procedure codes of the patients' histories, grouped by patient id. Variable
// names are lower cased; codes without a patient or a date are skipped.
func ParseCodes(r io.Reader, logger *zap.Logger) (map[string][]*phenotype.Code, error) {
	t, err := newTable(r, CodeTable, personID, "code_date", "concept_id", "variable_name", "domain_id")
	if err != nil {
		return nil, err
	}
	codes := map[string][]*phenotype.Code{}
	ctr := 0
	for {
		rec, err := t.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		pid := rec.str(personID)
		date, ok := rec.time("code_date")
		if pid == "" || !ok {
			continue
		}
		codes[pid] = append(codes[pid], &phenotype.Code{
			PID:       pid,
			Date:      utils.Date(date),
			ConceptID: rec.str("concept_id"),
			Variable:  strings.ToLower(rec.str("variable_name")),
			Domain:    rec.str("domain_id"),
		})
		ctr++
	}
	logger.Info("Parsed history codes", zap.Int("codes", ctr), zap.Int("patients", len(codes)))
	return codes, nil
}

// AttachProcedures hands every encounter the procedure codes of its patient, which feed the RRT timeline.
func AttachProcedures(m *phenotype.EncounterMap, codes map[string][]*phenotype.Code) {
	for pid, encounters := range m.PIDMap {
		procedures := []*phenotype.Code{}
		for _, c := range codes[pid] {
			if c.Domain == "Procedure" {
				procedures = append(procedures, c)
			}
		}
		for _, e := range encounters {
			e.Procedures = procedures
		}
	}
}

// ParsePriorCreatinine parses the creatinine draws of the patients outside of the encounters, grouped by patient id
// and sorted by time. Draws outside the physiologic bounds are dropped.
func ParsePriorCreatinine(r io.Reader, logger *zap.Logger) (map[string][]*phenotype.Observation, error) {
	t, err := newTable(r, PriorCreatinineTable, personID, "inferred_specimen_datetime", "lab_result")
	if err != nil {
		return nil, err
	}
	draws := map[string][]*phenotype.Observation{}
	ctr := 0
	for {
		rec, err := t.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		pid := rec.str(personID)
		when, ok := rec.time("inferred_specimen_datetime")
		value := rec.float("lab_result")
		if pid == "" || !ok || !utils.ValidCreatinine(value) {
			continue
		}
		draws[pid] = append(draws[pid], &phenotype.Observation{Time: when, Value: value})
		ctr++
	}
	for _, obs := range draws {
		phenotype.SortObservations(obs)
	}
	logger.Info("Parsed prior creatinine draws", zap.Int("draws", ctr), zap.Int("patients", len(draws)))
	return draws, nil
}
