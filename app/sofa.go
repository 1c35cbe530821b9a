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
	"time"

	"go.uber.org/zap"

	"clinphen/phenotype"
	"clinphen/sofa"
)

const (
	MAPTable         = "map"
	GCSTable         = "gcs"
	RespiratoryTable = "respiratory"
	LabTable         = "labs"
	MedicationTable  = "medications"
)

//The SOFA inputs are header based tables keyed by encounter_id:
//map: bp_datetime, invasive_map, noninvasive_map.
//gcs: glasgow_coma_datetime, measurement_name, measurement_value.
//respiratory: respiratory_datetime, measurement_name, measured_value, and optionally device_type, station_type,
//intraop_y_n.
//labs: measurement_datetime, stamped_and_inferred_loinc_code, value_as_number.
//medications: taken_datetime, pressor_name, total_dose_character, med_dose_unit_desc, and optionally
//med_dosing_weight.

// StreamMap maps encounter ids onto the measurement streams of their stays, in encounter input order.
type StreamMap struct {
	Streams map[string]*sofa.Streams
	Order   []string
}

// NewStreamMap creates empty streams for every encounter, scored over its admission to discharge stay.
func NewStreamMap(m *phenotype.EncounterMap) *StreamMap {
	sm := &StreamMap{Streams: map[string]*sofa.Streams{}}
	for _, e := range m.Encounters() {
		sm.Streams[e.EID] = &sofa.Streams{Stay: sofa.Stay{EID: e.EID, Start: e.Admit, End: e.Discharge}}
		sm.Order = append(sm.Order, e.EID)
	}
	return sm
}

// List returns the streams in encounter input order.
func (sm *StreamMap) List() []*sofa.Streams {
	list := make([]*sofa.Streams, 0, len(sm.Order))
	for _, eid := range sm.Order {
		list = append(list, sm.Streams[eid])
	}
	return list
}

// parseStream runs through a SOFA table and calls add for every row of a known encounter with a valid timestamp.
// It returns the number of rows handed to add.
func parseStream(r io.Reader, sm *StreamMap, name, timeColumn string, required []string,
	add func(s *sofa.Streams, when time.Time, rec row)) (int, error) {
	t, err := newTable(r, name, append([]string{encounterID, timeColumn}, required...)...)
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
		s, ok := sm.Streams[rec.str(encounterID)]
		if !ok {
			continue
		}
		when, ok := rec.time(timeColumn)
		if !ok {
			continue
		}
		add(s, when, rec)
		ctr++
	}
	return ctr, nil
}

// ParseMAP parses the mean arterial pressure readings.
func ParseMAP(r io.Reader, sm *StreamMap, logger *zap.Logger) (int, error) {
	ctr, err := parseStream(r, sm, MAPTable, "bp_datetime", []string{"invasive_map", "noninvasive_map"},
		func(s *sofa.Streams, when time.Time, rec row) {
			s.MAP = append(s.MAP, &sofa.MAPReading{
				Time:        when,
				Invasive:    rec.float("invasive_map"),
				NonInvasive: rec.float("noninvasive_map"),
			})
		})
	if err != nil {
		return ctr, err
	}
	logger.Info("Parsed MAP readings", zap.Int("readings", ctr))
	return ctr, nil
}

// ParseGCS parses the Glasgow coma scale readings.
func ParseGCS(r io.Reader, sm *StreamMap, logger *zap.Logger) (int, error) {
	ctr, err := parseStream(r, sm, GCSTable, "glasgow_coma_datetime", []string{"measurement_name", "measurement_value"},
		func(s *sofa.Streams, when time.Time, rec row) {
			s.GCS = append(s.GCS, &sofa.GCSReading{
				Time:  when,
				Name:  rec.str("measurement_name"),
				Value: rec.float("measurement_value"),
			})
		})
	if err != nil {
		return ctr, err
	}
	logger.Info("Parsed GCS readings", zap.Int("readings", ctr))
	return ctr, nil
}

// ParseRespiratory parses the respiratory readings together with their device and station context.
func ParseRespiratory(r io.Reader, sm *StreamMap, logger *zap.Logger) (int, error) {
	ctr, err := parseStream(r, sm, RespiratoryTable, "respiratory_datetime",
		[]string{"measurement_name", "measured_value"},
		func(s *sofa.Streams, when time.Time, rec row) {
			s.Respiratory = append(s.Respiratory, &sofa.RespiratoryReading{
				Time:    when,
				Name:    rec.str("measurement_name"),
				Value:   rec.float("measured_value"),
				Device:  rec.str("device_type"),
				Station: rec.str("station_type"),
				Intraop: rec.str("intraop_y_n"),
			})
		})
	if err != nil {
		return ctr, err
	}
	logger.Info("Parsed respiratory readings", zap.Int("readings", ctr))
	return ctr, nil
}

// ParseSOFALabs parses the LOINC coded lab results. Analytes are selected and bounded by the SOFA engine.
func ParseSOFALabs(r io.Reader, sm *StreamMap, logger *zap.Logger) (int, error) {
	ctr, err := parseStream(r, sm, LabTable, "measurement_datetime",
		[]string{"stamped_and_inferred_loinc_code", "value_as_number"},
		func(s *sofa.Streams, when time.Time, rec row) {
			s.Labs = append(s.Labs, &sofa.LabResult{
				Time:  when,
				LOINC: rec.str("stamped_and_inferred_loinc_code"),
				Value: rec.float("value_as_number"),
			})
		})
	if err != nil {
		return ctr, err
	}
	logger.Info("Parsed lab results", zap.Int("results", ctr))
	return ctr, nil
}

// ParseMedications parses the pressor administrations. Drug names are lower cased; a missing dosing weight is NaN.
func ParseMedications(r io.Reader, sm *StreamMap, logger *zap.Logger) (int, error) {
	ctr, err := parseStream(r, sm, MedicationTable, "taken_datetime",
		[]string{"pressor_name", "total_dose_character", "med_dose_unit_desc"},
		func(s *sofa.Streams, when time.Time, rec row) {
			weight := rec.float("med_dosing_weight")
			if weight <= 0 {
				weight = math.NaN()
			}
			s.Medications = append(s.Medications, &sofa.MedicationDose{
				Time:   when,
				Drug:   strings.ToLower(rec.str("pressor_name")),
				Dose:   rec.float("total_dose_character"),
				Unit:   rec.str("med_dose_unit_desc"),
				Weight: weight,
			})
		})
	if err != nil {
		return ctr, err
	}
	logger.Info("Parsed pressor administrations", zap.Int("doses", ctr))
	return ctr, nil
}
