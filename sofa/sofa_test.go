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
	"bytes"
	"math"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2021, 6, 1, 10, 0, 0, 0, time.UTC)

func at(minutes int) time.Time {
	return start.Add(time.Duration(minutes) * time.Minute)
}

func unknownValues() *[nofVariables]float64 {
	values := &[nofVariables]float64{}
	for v := range values {
		values[v] = math.NaN()
	}
	return values
}

func TestScoreComatosePatient(t *testing.T) {
	values := unknownValues()
	values[GCS] = 5
	values[MAP] = 80
	values[Platelets] = 250
	values[Bilirubin] = 0.8
	values[Creatinine] = 0.9
	values[PF] = 450
	values[MV] = 0
	s := Score(values)
	assert.Equal(t, Scores{CNS: 4, Total: 4}, s)
}

func TestScoreBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 500; i++ {
		values := unknownValues()
		for v := range values {
			if rng.Intn(3) > 0 {
				values[v] = rng.Float64() * 500
			}
		}
		s := Score(values)
		for _, c := range []int{s.Cardio, s.Resp, s.Coag, s.Liver, s.CNS, s.Renal} {
			assert.GreaterOrEqual(t, c, 0)
			assert.LessOrEqual(t, c, 4)
		}
		assert.LessOrEqual(t, s.Total, 24)
		assert.Equal(t, s.Cardio+s.Resp+s.Coag+s.Liver+s.CNS+s.Renal, s.Total)
	}
}

func TestComponentScores(t *testing.T) {
	nan := math.NaN()
	assert.Equal(t, 4, CardioScore(16, nan, nan, nan, nan, nan, 80))
	assert.Equal(t, 4, CardioScore(nan, nan, 0.2, nan, nan, nan, 80))
	assert.Equal(t, 3, CardioScore(nan, nan, nan, nan, 0.03, nan, 80))
	assert.Equal(t, 2, CardioScore(nan, 5, nan, nan, nan, nan, 80))
	assert.Equal(t, 1, CardioScore(nan, nan, nan, nan, nan, nan, 65))
	assert.Equal(t, 0, CardioScore(nan, nan, nan, nan, nan, nan, nan))

	assert.Equal(t, 4, RespScore(90, nan, 1))
	assert.Equal(t, 2, RespScore(90, nan, 0))
	assert.Equal(t, 3, RespScore(nan, 150, 1))
	assert.Equal(t, 1, RespScore(350, 100, 1))
	assert.Equal(t, 0, RespScore(nan, nan, 1))

	assert.Equal(t, []int{4, 3, 2, 1, 0}, []int{CoagScore(10), CoagScore(49), CoagScore(99), CoagScore(149),
		CoagScore(150)})
	assert.Equal(t, []int{4, 3, 2, 1, 0}, []int{LiverScore(13), LiverScore(6), LiverScore(2), LiverScore(1.2),
		LiverScore(1.1)})
	assert.Equal(t, []int{4, 3, 2, 1, 0}, []int{CNSScore(5), CNSScore(9), CNSScore(12), CNSScore(14), CNSScore(15)})
	assert.Equal(t, []int{4, 3, 2, 1, 0}, []int{RenalScore(5.1), RenalScore(3.5), RenalScore(2), RenalScore(1.2),
		RenalScore(1.1)})
	assert.Equal(t, 0, RenalScore(nan))
}

func TestNormalizeDose(t *testing.T) {
	dose, unit := NormalizeDose(&MedicationDose{Drug: "norepinephrine", Dose: 0.006, Unit: mgPerKgHour})
	assert.InDelta(t, 0.1, dose, 1e-12)
	assert.Equal(t, mcgPerKgMin, unit)

	dose, unit = NormalizeDose(&MedicationDose{Drug: "dopamine", Dose: 3.6, Unit: mgPerHour, Weight: 60})
	assert.InDelta(t, 1.0, dose, 1e-12)
	assert.Equal(t, mcgPerKgMin, unit)

	dose, unit = NormalizeDose(&MedicationDose{Drug: "dopamine", Dose: 3.6, Unit: mgPerHour, Weight: math.NaN()})
	assert.Equal(t, 3.6, dose)
	assert.Equal(t, mgPerHour, unit)

	dose, unit = NormalizeDose(&MedicationDose{Drug: "vasopressin", Dose: 0.04, Unit: "units/min"})
	assert.Equal(t, 0.04, dose)
	assert.Equal(t, "units/min", unit)

	assert.True(t, validPressor("norepinephrine", 0.1, mcgPerKgMin))
	assert.False(t, validPressor("norepinephrine", 16, mcgPerKgMin))
	assert.False(t, validPressor("dopamine", 3.6, mgPerHour))
	assert.True(t, validPressor("phenylephrine", 1, "mcg/min"))
	assert.False(t, validPressor("vasopressin", 0, "units/min"))
}

func TestUnderMechanicalVentilation(t *testing.T) {
	assert.True(t, UnderMechanicalVentilation(&RespiratoryReading{Device: ventilator, Station: "ICU"}))
	assert.False(t, UnderMechanicalVentilation(&RespiratoryReading{Device: ventilator, Station: orStation}))
	assert.False(t, UnderMechanicalVentilation(&RespiratoryReading{Device: ventilator, Station: procStation}))
	assert.False(t, UnderMechanicalVentilation(&RespiratoryReading{Device: ventilator, Station: wardStation}))
	assert.False(t, UnderMechanicalVentilation(&RespiratoryReading{Device: ventilator, Intraop: intraopFlag}))
	assert.False(t, UnderMechanicalVentilation(&RespiratoryReading{Device: "nasal cannula", Station: "ICU"}))
}

func testStreams() *Streams {
	return &Streams{
		Stay: Stay{EID: "E1", Start: start, End: start.Add(5 * time.Hour)},
		GCS: []*GCSReading{
			{Time: at(30), Name: gcsName, Value: 5.7},
			{Time: at(40), Name: "glasgow_coma_peds_score", Value: 3},
		},
		MAP: []*MAPReading{
			{Time: at(-60), Invasive: 40, NonInvasive: math.NaN()},
			{Time: at(90), Invasive: math.NaN(), NonInvasive: 85},
		},
		Labs: []*LabResult{
			{Time: at(210), LOINC: "2160-0", Value: 2.1},
			{Time: at(60), LOINC: "19255-9", Value: 90},
		},
		Respiratory: []*RespiratoryReading{
			{Time: at(30), Name: "fio2_resp", Value: 50},
			{Time: at(60), Name: "fio2_resp", Value: 50, Device: ventilator, Station: "ICU"},
		},
	}
}

func TestComputeGrid(t *testing.T) {
	assessments := Compute(testStreams(), DefaultParams())
	require.Len(t, assessments, 5)
	for i, a := range assessments {
		assert.Equal(t, "E1", a.EID)
		assert.Equal(t, start.Add(time.Duration(i+1)*time.Hour), a.Time)
		assert.Equal(t, 5.0, a.Value(GCS))
		assert.Equal(t, 4, a.CNS)
	}
	assert.True(t, math.IsNaN(assessments[0].Value(MAP)))
	assert.Equal(t, 85.0, assessments[1].Value(MAP))
	assert.Equal(t, 180.0, assessments[1].Value(PF))
	assert.Equal(t, 1.0, assessments[1].Value(MV))
	assert.Equal(t, 3, assessments[1].Resp)
	assert.Equal(t, 0, assessments[2].Renal)
	assert.Equal(t, 2.1, assessments[3].Value(Creatinine))
	assert.Equal(t, 2, assessments[3].Renal)
	assert.Equal(t, 4+3+2, assessments[4].Total)
}

func TestComputeFrequency(t *testing.T) {
	p := DefaultParams()
	p.Frequency = 2
	assessments := Compute(testStreams(), p)
	require.Len(t, assessments, 3)
	assert.Equal(t, start.Add(2*time.Hour), assessments[0].Time)
	assert.Equal(t, start.Add(4*time.Hour), assessments[1].Time)
	assert.Equal(t, start.Add(5*time.Hour), assessments[2].Time)
}

func TestComputeFeedForward(t *testing.T) {
	p := Params{Frequency: 1, LookbackWindow: 2}
	assessments := Compute(testStreams(), p)
	require.Len(t, assessments, 5)
	assert.Equal(t, 5.0, assessments[1].Value(GCS))
	assert.True(t, math.IsNaN(assessments[3].Value(GCS)))

	p.FFLimit = 10
	assessments = Compute(testStreams(), p)
	assert.Equal(t, 5.0, assessments[3].Value(GCS))
	assert.Equal(t, 4, assessments[3].CNS)
}

func TestComputeEmptyStay(t *testing.T) {
	s := &Streams{Stay: Stay{EID: "E1", Start: start, End: start.Add(-time.Hour)}}
	assert.Empty(t, Compute(s, DefaultParams()))
}

func TestRunKeepsOrder(t *testing.T) {
	streams := []*Streams{}
	for _, eid := range []string{"A", "B", "C"} {
		s := testStreams()
		s.Stay.EID = eid
		streams = append(streams, s)
	}
	assessments := Run(streams, DefaultParams())
	require.Len(t, assessments, 15)
	assert.Equal(t, "A", assessments[0].EID)
	assert.Equal(t, "B", assessments[5].EID)
	assert.Equal(t, "C", assessments[14].EID)
	assert.Empty(t, Run(nil, DefaultParams()))
}

func TestParamsValidate(t *testing.T) {
	assert.NoError(t, DefaultParams().Validate())
	assert.Error(t, Params{Frequency: 0, LookbackWindow: 24}.Validate())
	assert.Error(t, Params{Frequency: 1, LookbackWindow: 0}.Validate())
	assert.Error(t, Params{Frequency: 1, LookbackWindow: 24, FFLimit: -1}.Validate())
}

func TestWriteSOFA(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSOFA(&buf, Compute(testStreams(), DefaultParams())))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, strings.Join(Header(), "\t"), lines[0])
	fields := strings.Split(lines[5], "\t")
	assert.Len(t, fields, len(Header()))
	assert.Equal(t, "2021-06-01 15:00:00", fields[1])
	assert.Equal(t, "9", fields[len(fields)-1])
}
