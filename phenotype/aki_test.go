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
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinphen/utils"
)

func TestAssignStage(t *testing.T) {
	assert.Equal(t, Stage3RRT, AssignStage(true, true, 5))
	assert.Equal(t, Stage3RRT, AssignStage(true, false, math.NaN()))
	assert.Equal(t, Stage3, AssignStage(false, true, 1.1))
	assert.Equal(t, Stage3, AssignStage(false, false, 3.0))
	assert.Equal(t, Stage2, AssignStage(false, false, 2.0))
	assert.Equal(t, Stage2, AssignStage(false, false, 2.99))
	assert.Equal(t, Stage1, AssignStage(false, false, 1.99))
	assert.Equal(t, Stage1, AssignStage(false, false, 1.2))
	assert.Equal(t, StageUndetermined, AssignStage(false, false, math.NaN()))
}

func TestStageNames(t *testing.T) {
	for _, s := range []Stage{NoStage, StageUndetermined, Stage1, Stage2, Stage3, Stage3RRT} {
		assert.Equal(t, s, ParseStage(s.String()))
	}
	assert.Equal(t, "Stage 3 + RRT", Stage3RRT.String())
	assert.Equal(t, NoStage, ParseStage("Stage 9"))
	assert.Equal(t, Stage2, MaxStage(Stage1, Stage2))
}

func TestDetermineAKIRise48h(t *testing.T) {
	e := newTestEncounter(3)
	addDraw(e, hours(0), 1.0)
	addDraw(e, hours(24), 1.0)
	addDraw(e, hours(36), 1.4)
	records, initial := DetermineAKI(e, nil, DefaultOptions())
	require.Len(t, records, 3)
	assert.Equal(t, ComputedReference, initial.Source)
	assert.Equal(t, 1.0, initial.Creatinine)
	assert.False(t, records[0].AKI)
	assert.False(t, records[1].AKI)
	r := records[2]
	assert.Equal(t, 1.0, r.Min48h)
	assert.Equal(t, 1.0, r.Reference)
	assert.InDelta(t, 1.4, r.Ratio, 1e-9)
	assert.True(t, r.Rise48h)
	assert.False(t, r.RatioRise)
	assert.False(t, r.Above4)
	assert.True(t, r.AKI)
	assert.Equal(t, Stage1, r.Stage)
	assert.Equal(t, 1, r.ElapsedDays)
}

func TestDetermineAKIAbsoluteTrigger(t *testing.T) {
	e := newTestEncounter(2)
	e.ReferenceCreatinine = 1.0
	addDraw(e, hours(10), 4.2)
	records, initial := DetermineAKI(e, nil, DefaultOptions())
	require.Len(t, records, 1)
	assert.Equal(t, AdmissionReference, initial.Source)
	assert.Equal(t, admit, initial.Time)
	assert.True(t, records[0].Above4)
	assert.True(t, records[0].AKI)
	assert.Equal(t, Stage3, records[0].Stage)
}

func TestDetermineAKIStrictStage3(t *testing.T) {
	e := newTestEncounter(2)
	e.ReferenceCreatinine = 3.0
	addDraw(e, hours(4), 4.0)
	opts := DefaultOptions()
	records, _ := DetermineAKI(e, nil, opts)
	require.Len(t, records, 1)
	assert.Equal(t, Stage3, records[0].Stage)

	opts.Stage3Strict = true
	records, _ = DetermineAKI(e, nil, opts)
	require.Len(t, records, 1)
	assert.False(t, records[0].AKI)
	assert.Equal(t, NoStage, records[0].Stage)
}

func TestDetermineAKIIncreaseRule(t *testing.T) {
	e := newTestEncounter(3)
	e.ReferenceCreatinine = 1.3
	addDraw(e, hours(0), 1.0)
	addDraw(e, hours(12), 1.4)
	opts := DefaultOptions()
	records, _ := DetermineAKI(e, nil, opts)
	require.Len(t, records, 2)
	assert.True(t, records[1].AKI)

	// 1.4 is only 0.1 above the reference
	opts.IncreaseRule = Increase48hAndReference
	records, _ = DetermineAKI(e, nil, opts)
	assert.False(t, records[1].AKI)
}

func TestDetermineAKIUsesPreAdmissionMinimum(t *testing.T) {
	e := newTestEncounter(2)
	addDraw(e, hours(-20), 0.8)
	addDraw(e, hours(2), 1.2)
	records, initial := DetermineAKI(e, nil, DefaultOptions())
	require.Len(t, records, 1)
	assert.Equal(t, hours(2), records[0].Time)
	assert.Equal(t, 1.2, initial.Creatinine)
	assert.Equal(t, 0.8, records[0].Min48h)
	assert.True(t, records[0].AKI)
	assert.Equal(t, Stage1, records[0].Stage)
}

func TestDetermineAKIDropsDrawsAfterDischarge(t *testing.T) {
	e := newTestEncounter(1)
	addDraw(e, hours(1), 1.0)
	addDraw(e, hours(30), 3.5)
	records, _ := DetermineAKI(e, nil, DefaultOptions())
	require.Len(t, records, 1)
	assert.False(t, records[0].AKI)
}

func TestDetermineAKIWithoutCreatinine(t *testing.T) {
	e := newTestEncounter(2)
	e.ReferenceCreatinine = 1.0
	records, initial := DetermineAKI(e, nil, DefaultOptions())
	assert.Empty(t, records)
	assert.Equal(t, AdmissionReference, initial.Source)
}

func TestDetermineAKIUnderRRT(t *testing.T) {
	e := newTestEncounter(3)
	e.Dialysis = append(e.Dialysis, hours(24))
	addDraw(e, hours(0), 1.0)
	addDraw(e, hours(30), 1.0)
	records, _ := DetermineAKI(e, BuildRRTTimeline(e), DefaultOptions())
	require.Len(t, records, 2)
	assert.False(t, records[0].UnderRRT)
	assert.True(t, records[1].UnderRRT)
	require.NotNil(t, records[1].RecentRRT)
	assert.Equal(t, hours(24), *records[1].RecentRRT)
	assert.True(t, records[1].AKI)
	assert.Equal(t, Stage3RRT, records[1].Stage)
}

func continuationEncounter() *Encounter {
	e := newTestEncounter(9)
	addDraw(e, days(0), 1.0)
	addDraw(e, days(6), 2.0)
	addDraw(e, days(8), 2.5)
	return e
}

func TestReferenceContinuation(t *testing.T) {
	opts := DefaultOptions()
	records, _ := DetermineAKI(continuationEncounter(), nil, opts)
	require.Len(t, records, 3)
	assert.Equal(t, 1.0, records[1].Reference)
	assert.Equal(t, Stage2, records[1].Stage)
	assert.Equal(t, 2.0, records[2].Reference)
	assert.True(t, records[2].Rise48h)
	assert.Equal(t, Stage1, records[2].Stage)

	opts.Continuation = ContinuePreviousReference
	records, _ = DetermineAKI(continuationEncounter(), nil, opts)
	require.Len(t, records, 3)
	assert.Equal(t, 1.0, records[2].Reference)
	assert.Equal(t, Stage2, records[2].Stage)
}

func TestReferenceAfterBaselineWithoutAKI(t *testing.T) {
	e := newTestEncounter(10)
	addDraw(e, days(0), 1.0)
	addDraw(e, days(2), 1.1)
	addDraw(e, days(9), 1.5)
	records, _ := DetermineAKI(e, nil, DefaultOptions())
	require.Len(t, records, 3)
	assert.Equal(t, 1.0, records[1].Reference)
	assert.Equal(t, 1.1, records[2].Min7d)
	assert.Equal(t, 1.1, records[2].Reference)
	assert.False(t, records[2].AKI)
}

func TestResolveReferenceMDRD(t *testing.T) {
	opts := DefaultOptions()
	e := newTestEncounter(2)
	e.CKDStatus = "0"
	obs := []*Observation{{Time: hours(1), Value: 5.0}}
	initial, ok := ResolveReference(e, obs, opts)
	require.True(t, ok)
	assert.Equal(t, ComputedReference, initial.Source)
	assert.Equal(t, utils.MDRD(e.Age, e.Sex, e.Race, opts.RaceCorrection, opts.Version), initial.Creatinine)
	assert.Equal(t, hours(1), initial.Time)

	e.CKDStatus = "1"
	initial, ok = ResolveReference(e, obs, opts)
	require.True(t, ok)
	assert.Equal(t, 5.0, initial.Creatinine)

	_, ok = ResolveReference(e, nil, opts)
	assert.False(t, ok)
}

func TestBaselineLength(t *testing.T) {
	obs := []*Observation{{Time: days(0)}, {Time: days(7)}, {Time: days(8)}}
	assert.Equal(t, 2, baselineLength(admit, obs))
	assert.Equal(t, 1, baselineLength(admit, obs[2:]))
	assert.Equal(t, 0, baselineLength(admit, nil))

	// the window is counted in calendar days, not in hours since the admission time
	late := []*Observation{{Time: days(0)}, {Time: hours(7*24 + 15)}, {Time: hours(8*24 - 7)}}
	assert.Equal(t, 2, baselineLength(admit, late))
	assert.Equal(t, 7, elapsedDays(admit, late[1].Time))
	assert.Equal(t, 8, elapsedDays(admit, late[2].Time))
}

func TestDetermineAKIBaselineByCalendarDay(t *testing.T) {
	e := newTestEncounter(10)
	addDraw(e, hours(0), 1.0)
	addDraw(e, days(6), 1.3)
	addDraw(e, hours(7*24+2), 1.55)
	records, initial := DetermineAKI(e, nil, DefaultOptions())
	require.Len(t, records, 3)
	assert.Equal(t, 1.0, initial.Creatinine)
	r := records[2]
	assert.Equal(t, 7, r.ElapsedDays)
	assert.Equal(t, 1.0, r.Reference)
	assert.InDelta(t, 1.55, r.Ratio, 1e-9)
	assert.True(t, r.RatioRise)
	assert.True(t, r.AKI)
	assert.Equal(t, Stage1, r.Stage)
}

func TestSequenceKeGFR(t *testing.T) {
	e := newTestEncounter(2)
	addDraw(e, hours(0), 1.0)
	addDraw(e, hours(6), 1.0)
	addDraw(e, hours(12), 1.5)
	addDraw(e, hours(20), 1.6)
	opts := DefaultOptions()
	records, initial := DetermineAKI(e, nil, opts)
	require.Len(t, records, 4)
	SequenceKeGFR(e, records, initial, opts)
	base := utils.EGFR(e.Age, e.Sex, e.Race, 1.0, opts.RaceCorrection, opts.Version)
	assert.Equal(t, base, records[0].KeGFR)
	assert.Equal(t, base, records[1].KeGFR)
	assert.Equal(t, utils.KeGFR(1.0, base, 1.0, 1.5, 12), records[2].KeGFR)
	assert.Less(t, records[2].KeGFR, base)
	// 8 hours after the recomputation: no new value, back to the base eGFR
	assert.Equal(t, base, records[3].KeGFR)
}
