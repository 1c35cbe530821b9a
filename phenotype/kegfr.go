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
	"time"

	"clinphen/utils"
)

// KeGFRInterval is the minimal time between two kinetic eGFR computations.
const KeGFRInterval = 12 * time.Hour

// SequenceKeGFR assigns a kinetic eGFR to every classified draw of an encounter. The base creatinine and eGFR come
// from the initial reference and never change. Draws less than 12 hours after the last computation are not
// recomputed and get the base eGFR; the first draw at or beyond 12 hours gets a fresh value and becomes the last
// computation.
func SequenceKeGFR(e *Encounter, records []*AKIRecord, initial InitialReference, opts Options) {
	baseCr := initial.Creatinine
	baseEGFR := utils.EGFR(e.Age, e.Sex, e.Race, baseCr, opts.RaceCorrection, opts.Version)
	lastTime, lastCr := initial.Time, baseCr
	for _, r := range records {
		if r.Time.Before(lastTime.Add(KeGFRInterval)) {
			r.KeGFR = baseEGFR
			continue
		}
		r.KeGFR = utils.KeGFR(baseCr, baseEGFR, lastCr, r.Creatinine, utils.Hours(lastTime, r.Time))
		lastTime, lastCr = r.Time, r.Creatinine
	}
}
