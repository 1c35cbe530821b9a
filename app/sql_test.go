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
package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"clinphen/app"
	"clinphen/phenotype"
)

func setupMockSource(t *testing.T, schema string) (sqlmock.Sqlmock, *app.SQLSource) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	source := app.NewSQLSourceFromDB(sqlx.NewDb(db, "sqlmock"), schema, zap.NewNop())
	t.Cleanup(func() { source.Close() })
	return mock, source
}

var sqlAdmit = time.Date(2021, 1, 10, 8, 0, 0, 0, time.UTC)

func encounterRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"person_id", "encounter_id", "admit_datetime", "dischg_datetime", "age", "sex",
		"race", "reference_creatinine", "ckd", "final_class"}).
		AddRow("P1", "E1", sqlAdmit, sqlAdmit.AddDate(0, 0, 3), 60.0, "M", "WHITE", nil, "1", nil).
		AddRow("P2", "E2", sqlAdmit, sqlAdmit.AddDate(0, 0, 2), 45.0, "F", nil, 0.8, "0", "No CKD").
		AddRow("P3", "E3", nil, sqlAdmit, 50.0, nil, nil, nil, nil, nil)
}

func TestSQLSourceLoadDataset(t *testing.T) {
	mock, source := setupMockSource(t, "")
	mock.ExpectQuery(`FROM "encounter" ORDER BY encounter_id`).WillReturnRows(encounterRows())
	mock.ExpectQuery(`SELECT encounter_id, inferred_specimen_datetime, lab_result FROM "creatinine"`).
		WillReturnRows(sqlmock.NewRows([]string{"encounter_id", "inferred_specimen_datetime", "lab_result"}).
			AddRow("E1", sqlAdmit.Add(12*time.Hour), 1.4).
			AddRow("E1", sqlAdmit, 1.0).
			AddRow("E1", sqlAdmit.Add(time.Hour), nil).
			AddRow("E2", sqlAdmit, 42.0).
			AddRow("E9", sqlAdmit, 1.0))
	mock.ExpectQuery(`FROM "dialysis"`).
		WillReturnRows(sqlmock.NewRows([]string{"encounter_id", "dialysis_time"}).
			AddRow("E2", sqlAdmit.Add(30*time.Hour)).
			AddRow("E2", nil))
	mock.ExpectQuery(`FROM "codes"`).
		WillReturnRows(sqlmock.NewRows([]string{"person_id", "code_date", "concept_id", "variable_name", "domain_id"}).
			AddRow("P2", sqlAdmit.AddDate(0, 0, 1), "90935", "Dialysis", "Procedure").
			AddRow("P2", nil, "N18.6", "esrd", "Condition"))
	mock.ExpectQuery(`FROM "prior_creatinine"`).
		WillReturnRows(sqlmock.NewRows([]string{"person_id", "inferred_specimen_datetime", "lab_result"}).
			AddRow("P1", sqlAdmit.AddDate(0, -2, 0), 1.2).
			AddRow("P1", sqlAdmit.AddDate(0, -5, 0), 1.1))

	d, err := source.LoadDataset(context.Background())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, []string{"E1", "E2"}, d.Encounters.Order)
	e1, _ := phenotype.GetEncounter("E1", d.Encounters)
	assert.False(t, e1.HasReference())
	require.Len(t, e1.Creatinine, 2)
	assert.Equal(t, sqlAdmit, e1.Creatinine[0].Time)
	e2, _ := phenotype.GetEncounter("E2", d.Encounters)
	assert.Equal(t, 0.8, e2.ReferenceCreatinine)
	assert.Equal(t, "No CKD", e2.FinalClass)
	assert.Empty(t, e2.Creatinine)
	assert.Len(t, e2.Dialysis, 1)
	require.Len(t, e2.Procedures, 1)
	assert.Equal(t, "dialysis", e2.Procedures[0].Variable)
	assert.Len(t, d.Codes["P2"], 1)
	require.Len(t, d.PriorCreatinine["P1"], 2)
	assert.Equal(t, 1.1, d.PriorCreatinine["P1"][0].Value)
}

func TestSQLSourceSchemaQualifiedTables(t *testing.T) {
	mock, source := setupMockSource(t, "cdm")
	mock.ExpectQuery(`FROM "cdm"\."encounter"`).WillReturnRows(encounterRows())
	m, err := source.LoadEncounters(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, m.Ctr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLSourceMissingTable(t *testing.T) {
	mock, source := setupMockSource(t, "cdm")
	mock.ExpectQuery(`FROM "cdm"\."creatinine"`).
		WillReturnError(&pq.Error{Code: "42P01", Message: `relation "cdm.creatinine" does not exist`})
	_, err := source.LoadCreatinine(context.Background(), phenotype.NewEncounterMap())
	var schemaErr *app.SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, app.CreatinineTable, schemaErr.Table)
	assert.Equal(t, "cdm", schemaErr.Path)
	assert.Empty(t, schemaErr.Column)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLSourceMissingColumn(t *testing.T) {
	mock, source := setupMockSource(t, "")
	mock.ExpectQuery(`FROM "dialysis"`).
		WillReturnError(&pq.Error{Code: "42703", Message: `column "dialysis_time" does not exist`})
	_, err := source.LoadDialysis(context.Background(), phenotype.NewEncounterMap())
	var schemaErr *app.SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Contains(t, schemaErr.Column, "dialysis_time")
}

func TestSQLSourceQueryError(t *testing.T) {
	mock, source := setupMockSource(t, "")
	mock.ExpectQuery(`FROM "codes"`).WillReturnError(errors.New("connection reset"))
	_, err := source.LoadCodes(context.Background())
	require.Error(t, err)
	var schemaErr *app.SchemaError
	assert.False(t, errors.As(err, &schemaErr))
	assert.Contains(t, err.Error(), "querying codes")
}
