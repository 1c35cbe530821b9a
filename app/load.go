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
	"io"
	"path/filepath"

	"go.uber.org/zap"

	"clinphen/phenotype"
)

// Paths locates the input tables of a run.
type Paths struct {
	Encounters      string
	Creatinine      string
	Dialysis        string
	Codes           string
	PriorCreatinine string
	MAP             string
	GCS             string
	Respiratory     string
	Labs            string
	Medications     string
}

// DefaultPaths returns the standard table file names inside an input directory.
func DefaultPaths(dir string) Paths {
	return Paths{
		Encounters:      filepath.Join(dir, "encounter.csv"),
		Creatinine:      filepath.Join(dir, "creatinine.csv"),
		Dialysis:        filepath.Join(dir, "dialysis.csv"),
		Codes:           filepath.Join(dir, "codes.csv"),
		PriorCreatinine: filepath.Join(dir, "prior_creatinine.csv"),
		MAP:             filepath.Join(dir, "map.csv"),
		GCS:             filepath.Join(dir, "gcs.csv"),
		Respiratory:     filepath.Join(dir, "respiratory.csv"),
		Labs:            filepath.Join(dir, "labs.csv"),
		Medications:     filepath.Join(dir, "medications.csv"),
	}
}

// Dataset holds the parsed inputs of the AKI and admission history phenotypes.
type Dataset struct {
	Encounters      *phenotype.EncounterMap
	Codes           map[string][]*phenotype.Code        //history codes per patient id
	PriorCreatinine map[string][]*phenotype.Observation //creatinine draws per patient id
}

// LoadDataset parses the encounter and creatinine tables, and the dialysis, code and prior creatinine tables when
// present. Missing required tables or columns are reported as schema errors before any encounter is processed.
func LoadDataset(p Paths, logger *zap.Logger) (*Dataset, error) {
	d := &Dataset{Codes: map[string][]*phenotype.Code{}, PriorCreatinine: map[string][]*phenotype.Observation{}}
	if _, err := parseFile(p.Encounters, EncounterTable, false, func(r io.Reader) (err error) {
		d.Encounters, err = ParseEncounters(r, logger)
		return err
	}); err != nil {
		return nil, fmt.Errorf("loading encounters: %w", err)
	}
	if _, err := parseFile(p.Creatinine, CreatinineTable, false, func(r io.Reader) error {
		_, err := ParseLabs(r, d.Encounters, logger)
		return err
	}); err != nil {
		return nil, fmt.Errorf("loading creatinine: %w", err)
	}
	optional := []struct {
		path, name string
		parse      func(r io.Reader) error
	}{
		{p.Dialysis, DialysisTable, func(r io.Reader) error {
			_, err := ParseDialysis(r, d.Encounters, logger)
			return err
		}},
		{p.Codes, CodeTable, func(r io.Reader) (err error) {
			d.Codes, err = ParseCodes(r, logger)
			return err
		}},
		{p.PriorCreatinine, PriorCreatinineTable, func(r io.Reader) (err error) {
			d.PriorCreatinine, err = ParsePriorCreatinine(r, logger)
			return err
		}},
	}
	for _, table := range optional {
		found, err := parseFile(table.path, table.name, true, table.parse)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", table.name, err)
		}
		if !found {
			logger.Warn("Optional table not found", zap.String("table", table.name), zap.String("path", table.path))
		}
	}
	AttachProcedures(d.Encounters, d.Codes)
	return d, nil
}

// LoadStreams parses the SOFA measurement tables that are present into the streams of the given encounters.
func LoadStreams(p Paths, m *phenotype.EncounterMap, logger *zap.Logger) (*StreamMap, error) {
	sm := NewStreamMap(m)
	tables := []struct {
		path, name string
		parse      func(r io.Reader, sm *StreamMap, logger *zap.Logger) (int, error)
	}{
		{p.MAP, MAPTable, ParseMAP},
		{p.GCS, GCSTable, ParseGCS},
		{p.Respiratory, RespiratoryTable, ParseRespiratory},
		{p.Labs, LabTable, ParseSOFALabs},
		{p.Medications, MedicationTable, ParseMedications},
	}
	for _, table := range tables {
		parse := table.parse
		found, err := parseFile(table.path, table.name, true, func(r io.Reader) error {
			_, err := parse(r, sm, logger)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", table.name, err)
		}
		if !found {
			logger.Warn("Optional table not found", zap.String("table", table.name), zap.String("path", table.path))
		}
	}
	return sm, nil
}
