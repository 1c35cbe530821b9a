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
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinphen/phenotype"
	"clinphen/sofa"
	"clinphen/utils"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, ".", c.InputDir)
	assert.Equal(t, "clinphen", c.Name)
	assert.Equal(t, "json", c.LogFormat)
	assert.Equal(t, 2021, c.FormulaVersion)
	assert.Equal(t, 1.0, c.SampleFraction)
	assert.Empty(t, c.Filters)
	assert.Equal(t, 20, c.AKI.MaxEpisodes)

	opts, err := c.AKIOptions()
	require.NoError(t, err)
	assert.Equal(t, phenotype.DefaultOptions(), opts)
	assert.Equal(t, sofa.DefaultParams(), c.SOFAParams())
}

func TestLoadFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "clinphen.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
name: cohort
output_dir: /tmp/out
race_correction: true
formula_version: 2009
filters: [adult, noESRD]
aki:
  increase_rule: 48h_and_reference
  reference_continuation: previous_reference
  stage3_strict: true
  gap_tolerance: 1
sofa:
  frequency: 6
  ff_limit: 48
database:
  schema: cdm
`), 0o644))
	c, err := Load(viper.New(), file)
	require.NoError(t, err)
	assert.Equal(t, "cohort", c.Name)
	assert.Equal(t, []string{"adult", "noESRD"}, c.Filters)
	assert.Equal(t, "cdm", c.Database.Schema)

	opts, err := c.AKIOptions()
	require.NoError(t, err)
	assert.True(t, opts.RaceCorrection)
	assert.Equal(t, utils.CKDEPI2009, opts.Version)
	assert.Equal(t, phenotype.Increase48hAndReference, opts.IncreaseRule)
	assert.Equal(t, phenotype.ContinuePreviousReference, opts.Continuation)
	assert.True(t, opts.Stage3Strict)
	assert.Equal(t, 1, opts.GapTolerance)
	assert.Equal(t, sofa.Params{Frequency: 6, LookbackWindow: 24, FFLimit: 48}, c.SOFAParams())
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("CLINPHEN_AKI_MAX_EPISODES", "5")
	t.Setenv("CLINPHEN_LOG_LEVEL", "debug")
	c, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, 5, c.AKI.MaxEpisodes)
	assert.Equal(t, "debug", c.LogLevel)
}

func TestLoadInvalid(t *testing.T) {
	for key, value := range map[string]interface{}{
		"formula_version":   2015,
		"sample_fraction":   0.0,
		"log_format":        "xml",
		"filters":           []string{"adult", "elderly"},
		"aki.increase_rule": "24h",
		"aki.max_episodes":  0,
		"sofa.frequency":    0,
	} {
		v := viper.New()
		v.Set(key, value)
		_, err := Load(v, "")
		assert.Error(t, err, key)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
