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

	"github.com/xuri/excelize/v2"

	"clinphen/phenotype"
	"clinphen/utils"
)

// Sheet names of the summary workbook.
const (
	SummarySheet  = "Summary"
	EpisodesSheet = "Episodes"
)

// setRow writes a row of values starting in the first column.
func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func stringsToValues(fields []string) []interface{} {
	values := make([]interface{}, len(fields))
	for i, field := range fields {
		values[i] = field
	}
	return values
}

// writeHeader writes a bold, frozen header row.
func writeHeader(f *excelize.File, sheet string, header []string) error {
	if err := setRow(f, sheet, 1, stringsToValues(header)); err != nil {
		return err
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return err
	}
	return f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

// WriteSummaryWorkbook writes an xlsx workbook with a Summary sheet holding one line per encounter and an Episodes
// sheet holding one line per AKI episode.
func WriteSummaryWorkbook(w io.Writer, results []*phenotype.AKIResult, maxEpisodes int) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(EpisodesSheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := writeHeader(f, SummarySheet, phenotype.SummaryHeader(maxEpisodes)); err != nil {
		return fmt.Errorf("failed to write summary header: %w", err)
	}
	if err := writeHeader(f, EpisodesSheet, phenotype.EpisodeHeader); err != nil {
		return fmt.Errorf("failed to write episode header: %w", err)
	}
	summaryRow, episodeRow := 2, 2
	for _, result := range results {
		if err := setRow(f, SummarySheet, summaryRow, stringsToValues(phenotype.SummaryRow(result.Summary,
			maxEpisodes))); err != nil {
			return fmt.Errorf("failed to write summary row %d: %w", summaryRow, err)
		}
		summaryRow++
		for _, ep := range result.Episodes {
			if err := setRow(f, EpisodesSheet, episodeRow, []interface{}{result.Encounter.EID, ep.Ordinal,
				utils.FormatDate(&ep.Begin), utils.FormatDate(&ep.End), ep.Days, ep.WorstStage.String()}); err != nil {
				return fmt.Errorf("failed to write episode row %d: %w", episodeRow, err)
			}
			episodeRow++
		}
	}
	f.SetActiveSheet(0)
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// SaveSummaryWorkbook writes the summary workbook to a file.
func SaveSummaryWorkbook(name string, results []*phenotype.AKIResult, maxEpisodes int) (err error) {
	file, err := os.Create(name)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()
	return WriteSummaryWorkbook(file, results, maxEpisodes)
}
