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
	"os"
	"path/filepath"

	"clinphen/history"
	"clinphen/sofa"
)

// SaveTable creates a file and fills it with a table writer.
func SaveTable(name string, write func(w io.Writer) error) (err error) {
	file, err := os.Create(name)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()
	if err = write(file); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

// SaveHistories writes the admission histories of a run to a directory. It creates two tab files:
// - <name>-admin-history.tab with one line per encounter
// - <name>-row-egfr.tab with the pre-admission creatinine draws and their eGFR
func SaveHistories(histories []*history.AdminHistory, path, name string) error {
	if err := SaveTable(filepath.Join(path, name+"-admin-history.tab"), func(w io.Writer) error {
		return history.WriteHistory(w, histories)
	}); err != nil {
		return err
	}
	return SaveTable(filepath.Join(path, name+"-row-egfr.tab"), func(w io.Writer) error {
		return history.WriteRowEGFR(w, histories)
	})
}

// SaveSOFA writes the SOFA assessments of a run to <name>-sofa.tab in a directory.
func SaveSOFA(assessments []*sofa.Assessment, path, name string) error {
	return SaveTable(filepath.Join(path, name+"-sofa.tab"), func(w io.Writer) error {
		return sofa.WriteSOFA(w, assessments)
	})
}
