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
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"clinphen/phenotype"
	"clinphen/utils"
)

// SQLSource loads the AKI inputs from Postgres tables with the same names and columns as the input files.
type SQLSource struct {
	db     *sqlx.DB
	schema string
	logger *zap.Logger
}

// NewSQLSource connects to a Postgres database.
func NewSQLSource(dsn, schema string, logger *zap.Logger) (*SQLSource, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return NewSQLSourceFromDB(db, schema, logger), nil
}

// NewSQLSourceFromDB wraps an open database handle.
func NewSQLSourceFromDB(db *sqlx.DB, schema string, logger *zap.Logger) *SQLSource {
	return &SQLSource{db: db, schema: schema, logger: logger}
}

// Close closes the database handle.
func (s *SQLSource) Close() error {
	return s.db.Close()
}

// table returns the quoted, schema qualified name of a table.
func (s *SQLSource) table(name string) string {
	if s.schema == "" {
		return pq.QuoteIdentifier(name)
	}
	return pq.QuoteIdentifier(s.schema) + "." + pq.QuoteIdentifier(name)
}

// wrap turns undefined table and column errors into schema errors.
func (s *SQLSource) wrap(table string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "42P01":
			return &SchemaError{Table: table, Path: s.schema}
		case "42703":
			return &SchemaError{Table: table, Column: pqErr.Message, Path: s.schema}
		}
	}
	return fmt.Errorf("querying %s: %w", table, err)
}

type encounterRow struct {
	PersonID            string          `db:"person_id"`
	EncounterID         string          `db:"encounter_id"`
	Admit               sql.NullTime    `db:"admit_datetime"`
	Discharge           sql.NullTime    `db:"dischg_datetime"`
	Age                 sql.NullFloat64 `db:"age"`
	Sex                 sql.NullString  `db:"sex"`
	Race                sql.NullString  `db:"race"`
	ReferenceCreatinine sql.NullFloat64 `db:"reference_creatinine"`
	CKD                 sql.NullString  `db:"ckd"`
	FinalClass          sql.NullString  `db:"final_class"`
}

type labRow struct {
	EncounterID string          `db:"encounter_id"`
	Time        sql.NullTime    `db:"inferred_specimen_datetime"`
	Value       sql.NullFloat64 `db:"lab_result"`
}

type priorRow struct {
	PersonID string          `db:"person_id"`
	Time     sql.NullTime    `db:"inferred_specimen_datetime"`
	Value    sql.NullFloat64 `db:"lab_result"`
}

type dialysisRow struct {
	EncounterID string       `db:"encounter_id"`
	Time        sql.NullTime `db:"dialysis_time"`
}

type codeRow struct {
	PersonID  string         `db:"person_id"`
	Date      sql.NullTime   `db:"code_date"`
	ConceptID sql.NullString `db:"concept_id"`
	Variable  sql.NullString `db:"variable_name"`
	Domain    sql.NullString `db:"domain_id"`
}

func nullFloat(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

// LoadEncounters loads the encounter table in encounter id order.
func (s *SQLSource) LoadEncounters(ctx context.Context) (*phenotype.EncounterMap, error) {
	query := `SELECT person_id, encounter_id, admit_datetime, dischg_datetime, age, sex, race, reference_creatinine,
ckd, final_class FROM ` + s.table(EncounterTable) + ` ORDER BY encounter_id`
	var rows []*encounterRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, s.wrap(EncounterTable, err)
	}
	m := phenotype.NewEncounterMap()
	skipped := 0
	for _, r := range rows {
		if r.PersonID == "" || r.EncounterID == "" || !r.Admit.Valid || !r.Discharge.Valid ||
			r.Discharge.Time.Before(r.Admit.Time) {
			skipped++
			continue
		}
		e := phenotype.NewEncounter(r.EncounterID, r.PersonID, r.Admit.Time.UTC(), r.Discharge.Time.UTC())
		e.Age = nullFloat(r.Age)
		e.Sex = strings.TrimSpace(r.Sex.String)
		e.Race = strings.TrimSpace(r.Race.String)
		if ref := nullFloat(r.ReferenceCreatinine); ref > 0 {
			e.ReferenceCreatinine = ref
		}
		e.CKDStatus = r.CKD.String
		e.FinalClass = r.FinalClass.String
		if !phenotype.AddEncounter(m, e) {
			skipped++
		}
	}
	s.logger.Info("Loaded encounters", zap.Int("encounters", m.Ctr), zap.Int("skipped", skipped))
	return m, nil
}

// LoadCreatinine loads the creatinine draws of the encounters of a map. Draws outside the physiologic bounds are
// dropped.
func (s *SQLSource) LoadCreatinine(ctx context.Context, m *phenotype.EncounterMap) (int, error) {
	query := `SELECT encounter_id, inferred_specimen_datetime, lab_result FROM ` + s.table(CreatinineTable)
	var rows []*labRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return 0, s.wrap(CreatinineTable, err)
	}
	ctr := 0
	for _, r := range rows {
		e, ok := phenotype.GetEncounter(r.EncounterID, m)
		if !ok || !r.Time.Valid || !r.Value.Valid || !utils.ValidCreatinine(r.Value.Float64) {
			continue
		}
		phenotype.AddCreatinine(e, &phenotype.Observation{Time: r.Time.Time.UTC(), Value: r.Value.Float64})
		ctr++
	}
	for _, e := range m.EIDMap {
		phenotype.CompactObservations(e)
	}
	s.logger.Info("Loaded creatinine draws", zap.Int("draws", ctr))
	return ctr, nil
}

// LoadDialysis loads the explicit dialysis timestamps of the encounters of a map.
func (s *SQLSource) LoadDialysis(ctx context.Context, m *phenotype.EncounterMap) (int, error) {
	query := `SELECT encounter_id, dialysis_time FROM ` + s.table(DialysisTable)
	var rows []*dialysisRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return 0, s.wrap(DialysisTable, err)
	}
	ctr := 0
	for _, r := range rows {
		if e, ok := phenotype.GetEncounter(r.EncounterID, m); ok && r.Time.Valid {
			e.Dialysis = append(e.Dialysis, r.Time.Time.UTC())
			ctr++
		}
	}
	s.logger.Info("Loaded dialysis events", zap.Int("events", ctr))
	return ctr, nil
}

// LoadCodes loads the history codes grouped by patient id.
func (s *SQLSource) LoadCodes(ctx context.Context) (map[string][]*phenotype.Code, error) {
	query := `SELECT person_id, code_date, concept_id, variable_name, domain_id FROM ` + s.table(CodeTable)
	var rows []*codeRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, s.wrap(CodeTable, err)
	}
	codes := map[string][]*phenotype.Code{}
	for _, r := range rows {
		if r.PersonID == "" || !r.Date.Valid {
			continue
		}
		codes[r.PersonID] = append(codes[r.PersonID], &phenotype.Code{
			PID:       r.PersonID,
			Date:      utils.Date(r.Date.Time.UTC()),
			ConceptID: r.ConceptID.String,
			Variable:  strings.ToLower(r.Variable.String),
			Domain:    r.Domain.String,
		})
	}
	s.logger.Info("Loaded history codes", zap.Int("codes", len(rows)), zap.Int("patients", len(codes)))
	return codes, nil
}

// LoadPriorCreatinine loads the creatinine draws of the patients grouped by patient id and sorted by time.
func (s *SQLSource) LoadPriorCreatinine(ctx context.Context) (map[string][]*phenotype.Observation, error) {
	query := `SELECT person_id, inferred_specimen_datetime, lab_result FROM ` + s.table(PriorCreatinineTable)
	var rows []*priorRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, s.wrap(PriorCreatinineTable, err)
	}
	draws := map[string][]*phenotype.Observation{}
	for _, r := range rows {
		if r.PersonID == "" || !r.Time.Valid || !r.Value.Valid || !utils.ValidCreatinine(r.Value.Float64) {
			continue
		}
		draws[r.PersonID] = append(draws[r.PersonID], &phenotype.Observation{Time: r.Time.Time.UTC(), Value: r.Value.Float64})
	}
	for _, obs := range draws {
		phenotype.SortObservations(obs)
	}
	s.logger.Info("Loaded prior creatinine draws", zap.Int("patients", len(draws)))
	return draws, nil
}

// LoadDataset loads the encounters with their creatinine draws and dialysis events, the history codes and the prior
// creatinine draws.
func (s *SQLSource) LoadDataset(ctx context.Context) (*Dataset, error) {
	m, err := s.LoadEncounters(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.LoadCreatinine(ctx, m); err != nil {
		return nil, err
	}
	if _, err := s.LoadDialysis(ctx, m); err != nil {
		return nil, err
	}
	codes, err := s.LoadCodes(ctx)
	if err != nil {
		return nil, err
	}
	prior, err := s.LoadPriorCreatinine(ctx)
	if err != nil {
		return nil, err
	}
	AttachProcedures(m, codes)
	return &Dataset{Encounters: m, Codes: codes, PriorCreatinine: prior}, nil
}
