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

const (
	NoAKILabel                = "No AKI"
	AKILabel                  = "AKI"
	PersistentAKILabel        = "Persistent AKI"
	AKDLabel                  = "AKD"
	RapidlyReversibleAKILabel = "Rapidly Reversible AKI"
	recoveryPrefix            = "Recovery from "
)

// AKDOnAdmissionClasses are the final CKD classes that mean the patient already had AKD when admitted.
var AKDOnAdmissionClasses = map[string]bool{
	"Possible AKD on admission, CKD status needs clarification by physician": true,
	"AKD on Admission, CKD by Creatinine Criteria":                            true,
	"AKD on Admission, CKD by Medical History":                                true,
	"AKD on Admission, CKD after kidney transplant by Medical History":        true,
	"AKD on Admission, No CKD by Medical History":                             true,
	"AKD on Admission, No CKD by Medical History Or Creatinine Criteria":      true,
}

// Narrate labels the classified draws of an encounter. A flagged draw is AKD when it falls within 7 days of the last
// AKD draw or at least 7 days into its episode, Persistent AKI at least 2 days into its episode, and AKI otherwise.
// Unflagged draws after a flagged draw are labelled as a recovery from the last flagged draw, unflagged draws before
// any flagged draw as No AKI. The day table must already carry its episodes.
func Narrate(e *Encounter, records []*AKIRecord, days []*DayRecord) {
	episodeOf := map[time.Time]int{}
	for _, day := range days {
		if day.Episode > 0 {
			episodeOf[day.Date] = day.Episode
		}
	}
	episodeBegin := map[int]time.Time{}
	for _, day := range days {
		if _, ok := episodeBegin[day.Episode]; day.Episode > 0 && !ok {
			episodeBegin[day.Episode] = day.Date
		}
	}
	var lastAKD *time.Time
	if AKDOnAdmissionClasses[e.FinalClass] {
		admitDate := utils.Date(e.Admit)
		lastAKD = &admitDate
	}
	last := ""
	for _, r := range records {
		if !r.AKI {
			if last == "" {
				r.Narrative = NoAKILabel
			} else {
				r.Narrative = recoveryPrefix + last
			}
			continue
		}
		date := r.Date()
		if lastAKD != nil && utils.DaysBetween(*lastAKD, date) <= 7 {
			r.Narrative, last = AKDLabel, AKDLabel
			lastAKD = &date
			continue
		}
		sinceBegin := 0
		if begin, ok := episodeBegin[episodeOf[date]]; ok {
			sinceBegin = utils.DaysBetween(begin, date)
		}
		switch {
		case sinceBegin >= 7:
			r.Narrative, last = AKDLabel, AKDLabel
			lastAKD = &date
		case sinceBegin >= 2:
			r.Narrative, last = PersistentAKILabel, PersistentAKILabel
		default:
			r.Narrative, last = AKILabel, RapidlyReversibleAKILabel
		}
	}
}
