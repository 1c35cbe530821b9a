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

import "fmt"

// SchemaError reports an input that does not have the expected shape: a missing file, table or column. Schema
// errors are detected before any encounter is processed.
type SchemaError struct {
	Table  string
	Column string //empty when the table itself is missing
	Path   string
}

func (e *SchemaError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("missing table %s (%s)", e.Table, e.Path)
	}
	return fmt.Sprintf("table %s (%s) has no column %s", e.Table, e.Path, e.Column)
}

// ParseError reports a line of an input table that cannot be read.
type ParseError struct {
	Table string
	Line  int
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("table %s line %d: %v", e.Table, e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
