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
	"bufio"
	"encoding/csv"
	"errors"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// Column names shared by the input tables.
const (
	personID    = "person_id"
	encounterID = "encounter_id"
)

// timeLayouts are the timestamp formats accepted in the input tables. All timestamps are read as UTC.
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006 15:04",
	"01/02/2006",
}

// table reads a header based input table, separated by tabs or commas.
type table struct {
	name   string
	reader *csv.Reader
	index  map[string]int
	line   int
}

// separator guesses the field separator of a table from its header line.
func separator(header string) rune {
	if strings.Count(header, "\t") > strings.Count(header, ",") {
		return '\t'
	}
	return ','
}

// newTable reads the header of a table and checks that it has all required columns.
func newTable(r io.Reader, name string, required ...string) (*table, error) {
	buffered := bufio.NewReader(r)
	first, err := buffered.ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, &ParseError{Table: name, Line: 1, Err: err}
	}
	reader := csv.NewReader(io.MultiReader(strings.NewReader(first), buffered))
	reader.Comma = separator(first)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	t := &table{name: name, reader: reader, index: map[string]int{}}
	header, err := reader.Read()
	if err != nil && err != io.EOF {
		return nil, &ParseError{Table: name, Line: 1, Err: err}
	}
	t.line = 1
	for i, column := range header {
		t.index[strings.TrimSpace(strings.TrimPrefix(column, "\ufeff"))] = i
	}
	for _, column := range required {
		if _, ok := t.index[column]; !ok {
			return nil, &SchemaError{Table: name, Column: column}
		}
	}
	return t, nil
}

// row is one record of a table.
type row struct {
	t      *table
	fields []string
}

// next returns the next row of the table, or io.EOF.
func (t *table) next() (row, error) {
	fields, err := t.reader.Read()
	if err == io.EOF {
		return row{}, err
	}
	t.line++
	if err != nil {
		return row{}, &ParseError{Table: t.name, Line: t.line, Err: err}
	}
	return row{t: t, fields: fields}, nil
}

// has tells whether the table has a column.
func (t *table) has(column string) bool {
	_, ok := t.index[column]
	return ok
}

// str returns the trimmed value of a column, or "" when the table or the row lacks it.
func (r row) str(column string) string {
	i, ok := r.t.index[column]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[i])
}

// float returns the numeric value of a column, or NaN when it is missing or not a number.
func (r row) float(column string) float64 {
	s := r.str(column)
	if s == "" {
		return math.NaN()
	}
	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return value
}

// time returns the timestamp of a column in UTC.
func (r row) time(column string) (time.Time, bool) {
	return parseTime(r.str(column))
}

func parseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// parseFile opens a table file and hands it to a parse function. Schema errors are tagged with the file path. A
// missing file is a schema error, unless the table is optional, in which case the parse function is not called
// and false is returned.
func parseFile(path, name string, optional bool, parse func(r io.Reader) error) (bool, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if optional {
				return false, nil
			}
			return false, &SchemaError{Table: name, Path: path}
		}
		return false, err
	}
	defer file.Close()
	if err := parse(file); err != nil {
		var schemaErr *SchemaError
		if errors.As(err, &schemaErr) {
			schemaErr.Path = path
		}
		return true, err
	}
	return true, nil
}
