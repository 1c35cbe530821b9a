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
	"encoding/csv"
	"io"
	"strconv"

	"clinphen/utils"
)

// Header returns the header of the SOFA table.
func Header() []string {
	header := append([]string{"encounter_id", "time"}, variableNames...)
	return append(header, "cardio", "resp", "coag", "liver", "cns", "renal", "sofa_score")
}

// WriteSOFA writes one tab separated line per assessment.
func WriteSOFA(w io.Writer, assessments []*Assessment) error {
	writer := csv.NewWriter(w)
	writer.Comma = '\t'
	if err := writer.Write(Header()); err != nil {
		return err
	}
	for _, a := range assessments {
		row := []string{a.EID, utils.FormatTime(&a.Time)}
		for _, value := range a.Values {
			row = append(row, utils.FormatFloat(value))
		}
		for _, score := range []int{a.Cardio, a.Resp, a.Coag, a.Liver, a.CNS, a.Renal, a.Total} {
			row = append(row, strconv.Itoa(score))
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
