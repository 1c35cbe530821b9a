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
package utils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMale(t *testing.T) {
	for _, sex := range []string{"MALE", "8507", "M", "Male", "male"} {
		assert.True(t, IsMale(sex), sex)
	}
	for _, sex := range []string{"F", "FEMALE", "8532", "", "unknown"} {
		assert.False(t, IsMale(sex), sex)
	}
}

func TestEGFR2021(t *testing.T) {
	// at creatinine == kappa and age 0 only the constant remains
	assert.InDelta(t, 142.0, EGFR(0, "M", "", 0.9, false, CKDEPI2021), 1e-9)
	assert.InDelta(t, 142.0*1.012, EGFR(0, "F", "", 0.7, false, CKDEPI2021), 1e-9)
	assert.InDelta(t, 142.0*math.Pow(0.9938, 50), EGFR(50, "M", "", 0.9, false, CKDEPI2021), 1e-9)
	// the refit ignores race
	assert.Equal(t, EGFR(60, "F", "", 1.3, false, CKDEPI2021), EGFR(60, "F", "BLACK", 1.3, false, CKDEPI2021))
}

func TestEGFR2009(t *testing.T) {
	assert.InDelta(t, 141.0*1.018, EGFR(0, "F", "", 0.7, false, CKDEPI2009), 1e-9)
	white := EGFR(70, "M", "WHITE", 1.8, true, CKDEPI2009)
	black := EGFR(70, "M", "BLACK", 1.8, true, CKDEPI2009)
	assert.InDelta(t, white*1.159, black, 1e-9)
	// race correction forces the 2009 equation
	assert.Equal(t, EGFR(70, "M", "BLACK", 1.8, true, CKDEPI2021), black)
	assert.Equal(t, white, EGFR(70, "M", "BLACK", 1.8, false, CKDEPI2009))
}

func TestEGFRDecreasesWithCreatinine(t *testing.T) {
	prev := math.Inf(1)
	for _, cr := range []float64{0.4, 0.7, 0.9, 1.2, 2, 4, 8} {
		egfr := EGFR(55, "F", "", cr, false, CKDEPI2021)
		assert.Less(t, egfr, prev)
		prev = egfr
	}
}

func TestMDRDInvertsEGFR(t *testing.T) {
	for _, sex := range []string{"M", "F"} {
		for _, age := range []float64{20, 45, 80} {
			cr := MDRD(age, sex, "", false, CKDEPI2021)
			assert.InDelta(t, 75.0, EGFR(age, sex, "", cr, false, CKDEPI2021), 1e-6, "%s %v", sex, age)
		}
	}
}

func TestMDRD2009(t *testing.T) {
	expected := math.Pow(186*math.Pow(60, -0.203)/75, 1/1.154)
	assert.InDelta(t, expected, MDRD(60, "M", "", false, CKDEPI2009), 1e-12)
	female := math.Pow(0.742*186*math.Pow(60, -0.203)/75, 1/1.154)
	assert.InDelta(t, female, MDRD(60, "F", "", false, CKDEPI2009), 1e-12)
	black := math.Pow(1.21*186*math.Pow(60, -0.203)/75, 1/1.154)
	assert.InDelta(t, black, MDRD(60, "M", "BLACK", true, CKDEPI2009), 1e-12)
}

func TestKeGFR(t *testing.T) {
	// a stable creatinine keeps the baseline
	assert.InDelta(t, 100.0, KeGFR(1, 100, 1, 1, 24), 1e-9)
	// a rise of 0.5 mg/dL in 24 hours
	assert.InDelta(t, 80*(1-1.0/3), KeGFR(1, 100, 1, 1.5, 24), 1e-9)
	// a fall raises the kinetic eGFR above the steady state value
	assert.Greater(t, KeGFR(1, 100, 2, 1.5, 24), 100/1.75)
}

func TestValidCreatinine(t *testing.T) {
	assert.True(t, ValidCreatinine(0.1))
	assert.True(t, ValidCreatinine(20))
	assert.False(t, ValidCreatinine(0.09))
	assert.False(t, ValidCreatinine(20.01))
	assert.False(t, ValidCreatinine(math.NaN()))
}
