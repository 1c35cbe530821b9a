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
	"go.uber.org/zap"

	"clinphen/history"
	"clinphen/phenotype"
	"clinphen/sofa"
)

// ResolveHistories resolves the admission history, the pre-admission creatinine flags and the CKD staging of every
// encounter of a dataset, in encounter input order. The results are copied onto the encounters, see
// history.ApplyToEncounter.
func ResolveHistories(d *Dataset, opts phenotype.Options, logger *zap.Logger) []*history.AdminHistory {
	encounters := d.Encounters.Encounters()
	histories := history.ResolveAll(encounters, d.Codes)
	esrd, staged := 0, 0
	for i, h := range histories {
		e := encounters[i]
		h.Prior = history.PriorCreatinineFlags(e, h, d.PriorCreatinine[e.PID], opts.RaceCorrection, opts.Version)
		h.Staging = history.StageCKD(e, h, opts.RaceCorrection, opts.Version)
		if e.CKDStatus == "" {
			staged++
		}
		history.ApplyToEncounter(h, e)
		if e.ESRD {
			esrd++
		}
	}
	logger.Info("Resolved admission histories", zap.Int("encounters", len(histories)), zap.Int("esrd", esrd),
		zap.Int("staged", staged))
	return histories
}

// SelectEncounters applies the encounter filters to a dataset and samples the requested fraction of the remaining
// encounters.
func SelectEncounters(d *Dataset, filters []phenotype.EncounterFilter, fraction float64,
	logger *zap.Logger) []*phenotype.Encounter {
	filtered := d.Encounters
	if len(filters) > 0 {
		filtered = phenotype.ApplyEncounterFilters(filters, d.Encounters)
	}
	encounters := phenotype.SampleEncounters(filtered, fraction)
	logger.Info("Selected encounters", zap.Int("parsed", d.Encounters.Ctr), zap.Int("filtered", filtered.Ctr),
		zap.Int("selected", len(encounters)))
	return encounters
}

// PhenotypeAKI runs the AKI phenotype on the selected encounters of a dataset.
func PhenotypeAKI(d *Dataset, filters []phenotype.EncounterFilter, fraction float64, opts phenotype.Options,
	logger *zap.Logger) []*phenotype.AKIResult {
	ResolveHistories(d, opts, logger)
	encounters := SelectEncounters(d, filters, fraction, logger)
	results := phenotype.RunAKI(encounters, opts)
	noCreatinine, aki, episodes := 0, 0, 0
	for _, r := range results {
		if !r.Summary.HasCreatinine {
			noCreatinine++
		}
		if r.Summary.AKIOverall {
			aki++
		}
		episodes += len(r.Episodes)
	}
	logger.Info("Phenotyped AKI", zap.Int("encounters", len(results)), zap.Int("without_creatinine", noCreatinine),
		zap.Int("aki", aki), zap.Int("episodes", episodes))
	return results
}

// PhenotypeSOFA scores the streams of a stream map.
func PhenotypeSOFA(sm *StreamMap, p sofa.Params, logger *zap.Logger) ([]*sofa.Assessment, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	assessments := sofa.Run(sm.List(), p)
	logger.Info("Scored SOFA", zap.Int("encounters", len(sm.Order)), zap.Int("assessments", len(assessments)))
	return assessments, nil
}
