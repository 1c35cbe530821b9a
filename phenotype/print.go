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
package phenotype

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"clinphen/utils"
)

// Printing of AKI results to tab files

// ObservationHeader is the header of the AKI observation table.
var ObservationHeader = []string{"encounter_id", "inferred_specimen_datetime", "lab_result",
	"minimum_creatinine_past_48h", "minimum_creatinine_past_7d", "reference_creatinine", "scr_ref_scr_ratio",
	"under_rrt", "recent_rrt_time_7_days", "creatinine_increase_greater_03", "creatinine_greater_4",
	"lab_ref_cr_ratio_greater_1_5", "aki_flag", "aki_stage", "kegfr", "aki"}

// DayHeader is the header of the AKI daily table.
var DayHeader = []string{"encounter_id", "specimen_date", "aki_flag", "aki_stage", "observed", "rrt", "episode"}

// EpisodeHeader is the header of the AKI episode table.
var EpisodeHeader = []string{"encounter_id", "episode", "episode_begin_date", "episode_end_date", "episode_days",
	"worst_aki_stage_in_episode"}

// newTabWriter returns a csv writer that separates fields with tabs.
func newTabWriter(w io.Writer) *csv.Writer {
	writer := csv.NewWriter(w)
	writer.Comma = '\t'
	return writer
}

// finish flushes a csv writer and reports its error.
func finish(writer *csv.Writer) error {
	writer.Flush()
	return writer.Error()
}

func timedValueFields(v *TimedValue) []string {
	if v == nil {
		return []string{"", ""}
	}
	return []string{utils.FormatTime(&v.Time), utils.FormatFloat(v.Value)}
}

// WriteObservations writes one line per classified creatinine draw.
func WriteObservations(w io.Writer, results []*AKIResult) error {
	writer := newTabWriter(w)
	if err := writer.Write(ObservationHeader); err != nil {
		return err
	}
	for _, result := range results {
		for _, r := range result.Records {
			if err := writer.Write([]string{
				result.Encounter.EID,
				utils.FormatTime(&r.Time),
				utils.FormatFloat(r.Creatinine),
				utils.FormatFloat(r.Min48h),
				utils.FormatFloat(r.Min7d),
				utils.FormatFloat(r.Reference),
				utils.FormatFloat(r.Ratio),
				utils.FormatFlag(r.UnderRRT),
				utils.FormatTime(r.RecentRRT),
				utils.FormatFlag(r.Rise48h),
				utils.FormatFlag(r.Above4),
				utils.FormatFlag(r.RatioRise),
				utils.FormatFlag(r.AKI),
				r.Stage.String(),
				utils.FormatFloat(r.KeGFR),
				r.Narrative,
			}); err != nil {
				return err
			}
		}
	}
	return finish(writer)
}

// WriteDays writes one line per calendar day of every stay.
func WriteDays(w io.Writer, results []*AKIResult) error {
	writer := newTabWriter(w)
	if err := writer.Write(DayHeader); err != nil {
		return err
	}
	for _, result := range results {
		for _, d := range result.Days {
			episode := ""
			if d.Episode > 0 {
				episode = strconv.Itoa(d.Episode)
			}
			if err := writer.Write([]string{result.Encounter.EID, utils.FormatDate(&d.Date), utils.FormatFlag(d.AKI),
				d.Stage.String(), utils.FormatFlag(d.Observed), utils.FormatFlag(d.RRT), episode}); err != nil {
				return err
			}
		}
	}
	return finish(writer)
}

// WriteEpisodes writes one line per AKI episode.
func WriteEpisodes(w io.Writer, results []*AKIResult) error {
	writer := newTabWriter(w)
	if err := writer.Write(EpisodeHeader); err != nil {
		return err
	}
	for _, result := range results {
		for _, ep := range result.Episodes {
			if err := writer.Write([]string{result.Encounter.EID, strconv.Itoa(ep.Ordinal), utils.FormatDate(&ep.Begin),
				utils.FormatDate(&ep.End), strconv.Itoa(ep.Days), ep.WorstStage.String()}); err != nil {
				return err
			}
		}
	}
	return finish(writer)
}

// SummaryHeader returns the header of the encounter summary table with the given number of episode columns.
func SummaryHeader(maxEpisodes int) []string {
	header := []string{"person_id", "encounter_id", "admit_datetime", "dischg_datetime", "sex", "race", "age",
		"final_class", "has_creatinine", "reference_source", "reference_creatinine", "reference_datetime", "egfr",
		"first_aki_date", "min_reference_creatinine_datetime", "min_reference_creatinine",
		"max_reference_creatinine_datetime", "max_reference_creatinine", "first_creatinine_datetime",
		"first_creatinine_value", "last_creatinine_datetime", "last_creatinine_value", "min_creatinine_datetime",
		"min_creatinine", "max_creatinine_datetime", "max_creatinine", "number_of_aki_episodes", "days_in_stage_1",
		"days_in_stage_2", "days_in_stage_3", "days_in_stage_3_rrt", "worst_aki_staging", "worst_aki_stage_date",
		"discharge_aki_status", "discharge_aki_stage", "aki_overall", "rrt_overall", "rrt_24h",
		"first_rrt_datetime_record", "last_rrt_datetime_record", "recurrent_aki", "aki_early_3d",
		"worst_aki_stage_3d"}
	for i := 1; i <= maxEpisodes; i++ {
		header = append(header, fmt.Sprintf("episode_%d", i), fmt.Sprintf("worst_aki_stage_in_episode_%d", i))
	}
	return header
}

// SummaryRow returns the fields of one encounter summary line. An encounter without creatinine only fills the
// encounter fields.
func SummaryRow(s *Summary, maxEpisodes int) []string {
	row := []string{s.PID, s.EID, utils.FormatTime(&s.Admit), utils.FormatTime(&s.Discharge), s.Sex, s.Race,
		utils.FormatFloat(s.Age), s.FinalClass, utils.FormatFlag(s.HasCreatinine)}
	if !s.HasCreatinine {
		width := len(SummaryHeader(maxEpisodes))
		for len(row) < width {
			row = append(row, "")
		}
		return row
	}
	row = append(row, s.Reference.Source.String(), utils.FormatFloat(s.Reference.Creatinine),
		utils.FormatTime(&s.Reference.Time), utils.FormatFloat(s.BaseEGFR), utils.FormatDate(s.FirstAKIDate))
	for _, v := range []*TimedValue{s.MinReference, s.MaxReference, s.FirstCreatinine, s.LastCreatinine,
		s.MinCreatinine, s.MaxCreatinine} {
		row = append(row, timedValueFields(v)...)
	}
	row = append(row, strconv.Itoa(len(s.Episodes)), strconv.Itoa(s.DaysInStage[Stage1]),
		strconv.Itoa(s.DaysInStage[Stage2]), strconv.Itoa(s.DaysInStage[Stage3]),
		strconv.Itoa(s.DaysInStage[Stage3RRT]), s.WorstStage.String(), utils.FormatDate(s.WorstStageDate),
		utils.FormatFlag(s.DischargeAKI), s.DischargeStage.String(), utils.FormatFlag(s.AKIOverall),
		utils.FormatFlag(s.RRT.Overall), utils.FormatFlag(s.RRT.Within24h), utils.FormatTime(s.RRT.First),
		utils.FormatTime(s.RRT.Last), utils.FormatOptionalFlag(s.RecurrentAKI), utils.FormatFlag(s.AKIEarly3d),
		s.WorstStageEarly.String())
	for i := 0; i < maxEpisodes; i++ {
		if i < len(s.Episodes) {
			ep := s.Episodes[i]
			row = append(row, utils.FormatDate(&ep.Begin)+" - "+utils.FormatDate(&ep.End), ep.WorstStage.String())
		} else {
			row = append(row, "", "")
		}
	}
	return row
}

// WriteSummaries writes one line per encounter.
func WriteSummaries(w io.Writer, results []*AKIResult, maxEpisodes int) error {
	writer := newTabWriter(w)
	if err := writer.Write(SummaryHeader(maxEpisodes)); err != nil {
		return err
	}
	for _, result := range results {
		if err := writer.Write(SummaryRow(result.Summary, maxEpisodes)); err != nil {
			return err
		}
	}
	return finish(writer)
}

// writeTabFile creates a file and fills it with a table writer.
func writeTabFile(name string, write func(w io.Writer) error) (err error) {
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

// SaveAKIResults writes the AKI results of a batch to a directory. It creates four tab files:
// - <name>-aki-observations.tab with the classified creatinine draws
// - <name>-aki-daily.tab with the day tables
// - <name>-aki-episodes.tab with the episodes
// - <name>-aki-summary.tab with one summary line per encounter
func SaveAKIResults(results []*AKIResult, path, name string, maxEpisodes int) error {
	files := []struct {
		suffix string
		write  func(w io.Writer) error
	}{
		{"aki-observations", func(w io.Writer) error { return WriteObservations(w, results) }},
		{"aki-daily", func(w io.Writer) error { return WriteDays(w, results) }},
		{"aki-episodes", func(w io.Writer) error { return WriteEpisodes(w, results) }},
		{"aki-summary", func(w io.Writer) error { return WriteSummaries(w, results, maxEpisodes) }},
	}
	for _, f := range files {
		if err := writeTabFile(filepath.Join(path, fmt.Sprintf("%s-%s.tab", name, f.suffix)), f.write); err != nil {
			return err
		}
	}
	return nil
}
