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
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"clinphen/phenotype"
	"clinphen/sofa"
	"clinphen/utils"
)

// EnvPrefix prefixes the environment variables that override configuration keys, e.g. CLINPHEN_AKI_MAX_EPISODES.
const EnvPrefix = "CLINPHEN"

// Config holds the settings of a clinphen run.
type Config struct {
	InputDir       string         `mapstructure:"input_dir"`
	OutputDir      string         `mapstructure:"output_dir" validate:"required"`
	Name           string         `mapstructure:"name" validate:"required"`
	LogLevel       string         `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	LogFormat      string         `mapstructure:"log_format" validate:"oneof=json console"`
	RaceCorrection bool           `mapstructure:"race_correction"`
	FormulaVersion int            `mapstructure:"formula_version" validate:"oneof=2009 2021"`
	SampleFraction float64        `mapstructure:"sample_fraction" validate:"gt=0,lte=1"`
	Filters        []string       `mapstructure:"filters" validate:"dive,oneof=adult los24h creatinine noESRD"`
	Excel          bool           `mapstructure:"excel"`
	AKI            AKIConfig      `mapstructure:"aki"`
	SOFA           SOFAConfig     `mapstructure:"sofa"`
	Database       DatabaseConfig `mapstructure:"database"`
	Metrics        MetricsConfig  `mapstructure:"metrics"`
}

type AKIConfig struct {
	IncreaseRule          string `mapstructure:"increase_rule" validate:"oneof=48h 48h_and_reference"`
	ReferenceContinuation string `mapstructure:"reference_continuation" validate:"oneof=last_creatinine previous_reference"`
	Stage3Strict          bool   `mapstructure:"stage3_strict"`
	MaxEpisodes           int    `mapstructure:"max_episodes" validate:"gte=1"`
	GapTolerance          int    `mapstructure:"gap_tolerance" validate:"gte=0"`
}

// SOFAConfig holds the SOFA grid in hours.
type SOFAConfig struct {
	Frequency      int `mapstructure:"frequency" validate:"gte=1"`
	LookbackWindow int `mapstructure:"lookback_window" validate:"gte=1"`
	FFLimit        int `mapstructure:"ff_limit" validate:"gte=0"`
}

// DatabaseConfig selects the optional Postgres source. An empty DSN reads the input directory instead.
type DatabaseConfig struct {
	DSN    string `mapstructure:"dsn"`
	Schema string `mapstructure:"schema"`
}

type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// SetDefaults registers the default of every configuration key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("input_dir", ".")
	v.SetDefault("output_dir", ".")
	v.SetDefault("name", "clinphen")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("race_correction", false)
	v.SetDefault("formula_version", int(utils.CKDEPI2021))
	v.SetDefault("sample_fraction", 1.0)
	v.SetDefault("filters", []string{})
	v.SetDefault("excel", false)
	v.SetDefault("aki.increase_rule", "48h")
	v.SetDefault("aki.reference_continuation", "last_creatinine")
	v.SetDefault("aki.stage3_strict", false)
	v.SetDefault("aki.max_episodes", 20)
	v.SetDefault("aki.gap_tolerance", 2)
	v.SetDefault("sofa.frequency", 1)
	v.SetDefault("sofa.lookback_window", 24)
	v.SetDefault("sofa.ff_limit", 0)
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.schema", "")
	v.SetDefault("metrics.textfile", "")
}

// Load reads the configuration from the defaults, an optional YAML file, the environment and any flags bound to v,
// and validates it.
func Load(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks every field against its constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// AKIOptions returns the AKI phenotype options selected by the configuration.
func (c *Config) AKIOptions() (phenotype.Options, error) {
	opts := phenotype.DefaultOptions()
	rule, err := phenotype.ParseIncreaseRule(c.AKI.IncreaseRule)
	if err != nil {
		return opts, err
	}
	continuation, err := phenotype.ParseReferenceContinuation(c.AKI.ReferenceContinuation)
	if err != nil {
		return opts, err
	}
	opts.RaceCorrection = c.RaceCorrection
	opts.Version = utils.FormulaVersion(c.FormulaVersion)
	opts.IncreaseRule = rule
	opts.Continuation = continuation
	opts.Stage3Strict = c.AKI.Stage3Strict
	opts.MaxEpisodes = c.AKI.MaxEpisodes
	opts.GapTolerance = c.AKI.GapTolerance
	return opts, nil
}

// SOFAParams returns the SOFA grid selected by the configuration.
func (c *Config) SOFAParams() sofa.Params {
	return sofa.Params{
		Frequency:      c.SOFA.Frequency,
		LookbackWindow: c.SOFA.LookbackWindow,
		FFLimit:        c.SOFA.FFLimit,
	}
}
