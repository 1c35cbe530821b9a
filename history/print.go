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
package history

import (
	"encoding/csv"
	"io"

	"clinphen/utils"
)

// Header returns the fixed header of the admission history table.
func Header() []string {
	header := []string{"person_id", "encounter_id", "admit_datetime", "ConditionFlag", "ProcedureFlag",
		"finalCodeFlag"}
	for _, v := range Variables {
		header = append(header, v.String()+"_condition_concept_id", v.String()+"_condition_code_date",
			v.String()+"_procedure_concept_id", v.String()+"_procedure_code_date", v.String()+"_admin_flag")
	}
	header = append(header, "PreviousCreatinineFlag", "uncertain_ckd", "insufficient_data_flag",
		"egfr_90d_apart_p30d", "egfr_90d_apart_p30d_date", "egfr_30d", "egfr_30d_date")
	return append(header, stagingHeader...)
}

var stagingHeader = []string{"admission_creatinine", "min_7_days", "medium_8_365_days", "mdrd", "final_class", "ckd",
	"reference_creatinine", "method", "egfr", "egfr_staging"}

func stagingFields(s *Staging) []string {
	if s == nil {
		return make([]string, len(stagingHeader))
	}
	return []string{utils.FormatFloat(s.AdmissionCreatinine), utils.FormatFloat(s.Min7Days),
		utils.FormatFloat(s.Median8To365Days), utils.FormatFloat(s.MDRD), s.FinalClass, s.CKD,
		utils.FormatFloat(s.ReferenceCreatinine), s.Method, utils.FormatFloat(s.EGFR), s.EGFRStage}
}

func codeFields(c *CodeRef) []string {
	if c == nil {
		return []string{"", ""}
	}
	return []string{c.ConceptID, utils.FormatDate(&c.Date)}
}

// Row returns the fields of one history line. Flags that do not apply print as empty cells.
func Row(h *AdminHistory) []string {
	row := []string{h.PID, h.EID, utils.FormatTime(&h.Admit), utils.FormatFlag(h.ConditionFlag),
		utils.FormatFlag(h.ProcedureFlag), utils.FormatFlag(h.FinalCodeFlag)}
	for _, v := range Variables {
		vh := h.Variables[v]
		row = append(row, codeFields(vh.Condition)...)
		row = append(row, codeFields(vh.Procedure)...)
		row = append(row, utils.FormatFlag(vh.AdminFlag))
	}
	p := h.Prior
	if p == nil {
		row = append(row, "", "", "", "", "", "", "")
		return append(row, stagingFields(h.Staging)...)
	}
	apart := ""
	if p.EGFR90dApartDates != nil {
		apart = utils.FormatDate(&p.EGFR90dApartDates[0]) + ", " + utils.FormatDate(&p.EGFR90dApartDates[1])
	}
	row = append(row, utils.FormatFlag(p.PreviousCreatinineFlag), utils.FormatFlag(p.UncertainCKD),
		utils.FormatOptionalFlag(p.InsufficientData), utils.FormatOptionalFlag(p.EGFR90dApartP30d), apart,
		utils.FormatOptionalFlag(p.EGFR30d), utils.FormatDate(p.EGFR30dDate))
	return append(row, stagingFields(h.Staging)...)
}

// WriteHistory writes one tab separated line per encounter history.
func WriteHistory(w io.Writer, histories []*AdminHistory) error {
	writer := csv.NewWriter(w)
	writer.Comma = '\t'
	if err := writer.Write(Header()); err != nil {
		return err
	}
	for _, h := range histories {
		if err := writer.Write(Row(h)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// RowEGFRHeader is the header of the pre-admission eGFR table.
var RowEGFRHeader = []string{"person_id", "encounter_id", "inferred_specimen_datetime", "lab_result", "sample_age",
	"row_egfr"}

// WriteRowEGFR writes the pre-admission creatinine draws and their eGFR, one tab separated line per draw.
func WriteRowEGFR(w io.Writer, histories []*AdminHistory) error {
	writer := csv.NewWriter(w)
	writer.Comma = '\t'
	if err := writer.Write(RowEGFRHeader); err != nil {
		return err
	}
	for _, h := range histories {
		if h.Prior == nil {
			continue
		}
		for _, r := range h.Prior.Rows {
			if err := writer.Write([]string{h.PID, h.EID, utils.FormatTime(&r.Time), utils.FormatFloat(r.Creatinine),
				utils.FormatFloat(r.SampleAge), utils.FormatFloat(r.EGFR)}); err != nil {
				return err
			}
		}
	}
	writer.Flush()
	return writer.Error()
}
