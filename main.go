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
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"clinphen/app"
	"clinphen/chart"
	"clinphen/config"
	"clinphen/logging"
	"clinphen/metrics"
	"clinphen/phenotype"
)

/*
Clinphen is a tool for phenotyping hospital encounters from electronic health record extracts. It derives acute
kidney injury (AKI) stages, episodes and encounter summaries from serum creatinine and renal replacement therapy,
the chronic kidney disease (CKD) and ESRD history on admission, and hourly SOFA scores.

Usage:
	clinphen command [flags]

Example:
	clinphen aki --input ./extract --output ./out --name cohort1 --filters adult,noESRD --excel
	--metricsTextfile ./out/clinphen.prom

The commands are:

aki
	Phenotypes AKI. Writes <name>-aki-observations.tab, <name>-aki-daily.tab, <name>-aki-episodes.tab and
	<name>-aki-summary.tab, and optionally the workbook <name>-aki-summary.xlsx.
history
	Resolves the renal history on admission and the pre-admission creatinine flags. Writes
	<name>-admin-history.tab and <name>-row-egfr.tab.
sofa
	Computes SOFA scores over the stays. Writes <name>-sofa.tab.
plot encounter_id
	Plots the creatinine trajectory of one encounter to <name>-<encounter_id>.<format>.
version
	Prints the program version.

The input directory holds header based tab or comma separated tables: encounter.csv and creatinine.csv are
required; dialysis.csv, codes.csv and prior_creatinine.csv are used when present. The SOFA command additionally
reads map.csv, gcs.csv, respiratory.csv, labs.csv and medications.csv. With --dsn the AKI inputs are read from
Postgres tables with the same names instead.

The flags are:

--config file
	A YAML file with configuration keys. Flags take precedence over environment variables (CLINPHEN_<KEY>), which
	take precedence over the file.
--input dir, --output dir, --name string
	The input directory, the output directory and the prefix of the output files.
--raceCorrection
	Apply the race coefficient of CKD-EPI 2009 and MDRD. Only used with --formulaVersion 2009.
--formulaVersion 2009 | 2021
	The CKD-EPI equation used for eGFR and for back-calculating a reference creatinine with MDRD.
--increaseRule 48h | 48h_and_reference
	The creatinine increase trigger: a rise of 0.3 mg/dL over the 48 hour minimum, or additionally over the reference.
--referenceContinuation last_creatinine | previous_reference
	The reference creatinine after day 7 while AKI is ongoing.
--stage3Strict
	Use creatinine > 4 mg/dL instead of >= 4 mg/dL for the absolute trigger and Stage 3.
--maxEpisodes nr
	The number of episode columns in the encounter summary.
--gapTolerance nr
	The number of non-AKI days absorbed into a running episode.
--filters adult | los24h | creatinine | noESRD
	A list of filters for selecting encounters.
--sampleFraction f
	Randomly select a fraction of the selected encounters, for quick exploratory runs.
--frequency nr, --lookbackWindow nr, --ffLimit nr
	The SOFA grid in hours: hours between assessments, hours of data per assessment, and hours a physiologic value may
	be carried forward when no value falls in the lookback window.
--dsn string, --schema string
	Read the AKI inputs from Postgres.
--metricsTextfile file
	Write batch metrics for the node exporter textfile collector.
--excel
	Also write the encounter summary as an xlsx workbook.
--nrOfThreads nr
	The number of threads clinphen uses.
*/

const (
	programVersion = 0.1
	programName    = "clinphen"
)

func programMessage() string {
	return fmt.Sprint(programName, " version ", programVersion, " compiled with ", runtime.Version())
}

// run bundles what every command needs.
type run struct {
	id      string
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics
}

var (
	v           = viper.New()
	configFile  string
	nrOfThreads int
)

func setup() (*run, error) {
	cfg, err := config.Load(v, configFile)
	if err != nil {
		return nil, err
	}
	if nrOfThreads > 0 {
		runtime.GOMAXPROCS(nrOfThreads)
	}
	logger, err := logging.NewLogger(cfg.LogLevel, cfg.LogFormat, programName)
	if err != nil {
		return nil, err
	}
	id := uuid.New().String()
	logger = logger.With(zap.String("run_id", id))
	if err := os.MkdirAll(cfg.OutputDir, 0700); err != nil {
		return nil, err
	}
	logger.Info(programMessage(), zap.String("input_dir", cfg.InputDir), zap.String("output_dir", cfg.OutputDir),
		zap.String("name", cfg.Name), zap.Strings("filters", cfg.Filters), zap.Bool("database", cfg.Database.DSN != ""))
	return &run{id: id, cfg: cfg, logger: logger, metrics: metrics.NewMetrics(id)}, nil
}

func (r *run) output(name string) string {
	return filepath.Join(r.cfg.OutputDir, r.cfg.Name+name)
}

func (r *run) finish() error {
	defer r.logger.Sync() //nolint:errcheck
	if r.cfg.Metrics.Textfile == "" {
		return nil
	}
	return r.metrics.WriteTextfile(r.cfg.Metrics.Textfile)
}

// loadDataset reads the AKI inputs from Postgres when a DSN is configured, and from the input directory otherwise.
func (r *run) loadDataset(ctx context.Context) (*app.Dataset, error) {
	if r.cfg.Database.DSN == "" {
		return app.LoadDataset(app.DefaultPaths(r.cfg.InputDir), r.logger)
	}
	source, err := app.NewSQLSource(r.cfg.Database.DSN, r.cfg.Database.Schema, r.logger)
	if err != nil {
		return nil, err
	}
	defer source.Close()
	return source.LoadDataset(ctx)
}

func runAKI(cmd *cobra.Command, _ []string) error {
	r, err := setup()
	if err != nil {
		return err
	}
	opts, err := r.cfg.AKIOptions()
	if err != nil {
		return err
	}
	filters, err := app.GetEncounterFilters(r.cfg.Filters)
	if err != nil {
		return err
	}
	d, err := r.loadDataset(cmd.Context())
	if err != nil {
		return err
	}
	start := time.Now()
	results := app.PhenotypeAKI(d, filters, r.cfg.SampleFraction, opts, r.logger)
	r.metrics.BatchDuration.WithLabelValues("aki").Set(time.Since(start).Seconds())
	r.metrics.ObserveAKI(results)
	if err := phenotype.SaveAKIResults(results, r.cfg.OutputDir, r.cfg.Name, opts.MaxEpisodes); err != nil {
		return err
	}
	if r.cfg.Excel {
		if err := app.SaveSummaryWorkbook(r.output("-aki-summary.xlsx"), results, opts.MaxEpisodes); err != nil {
			return err
		}
	}
	summaries := make([]*phenotype.Summary, 0, len(results))
	for _, result := range results {
		summaries = append(summaries, result.Summary)
	}
	phenotype.PrintCohort(phenotype.CohortMetrics(summaries))
	return r.finish()
}

func runHistory(cmd *cobra.Command, _ []string) error {
	r, err := setup()
	if err != nil {
		return err
	}
	opts, err := r.cfg.AKIOptions()
	if err != nil {
		return err
	}
	d, err := r.loadDataset(cmd.Context())
	if err != nil {
		return err
	}
	histories := app.ResolveHistories(d, opts, r.logger)
	r.metrics.EncountersProcessed.WithLabelValues("history").Add(float64(len(histories)))
	if err := app.SaveHistories(histories, r.cfg.OutputDir, r.cfg.Name); err != nil {
		return err
	}
	return r.finish()
}

func runSOFA(cmd *cobra.Command, _ []string) error {
	r, err := setup()
	if err != nil {
		return err
	}
	opts, err := r.cfg.AKIOptions()
	if err != nil {
		return err
	}
	filters, err := app.GetEncounterFilters(r.cfg.Filters)
	if err != nil {
		return err
	}
	d, err := app.LoadDataset(app.DefaultPaths(r.cfg.InputDir), r.logger)
	if err != nil {
		return err
	}
	app.ResolveHistories(d, opts, r.logger)
	m := phenotype.ApplyEncounterFilters(filters, d.Encounters)
	sm, err := app.LoadStreams(app.DefaultPaths(r.cfg.InputDir), m, r.logger)
	if err != nil {
		return err
	}
	start := time.Now()
	assessments, err := app.PhenotypeSOFA(sm, r.cfg.SOFAParams(), r.logger)
	if err != nil {
		return err
	}
	r.metrics.BatchDuration.WithLabelValues("sofa").Set(time.Since(start).Seconds())
	r.metrics.ObserveSOFA(len(sm.Order), assessments)
	if err := app.SaveSOFA(assessments, r.cfg.OutputDir, r.cfg.Name); err != nil {
		return err
	}
	return r.finish()
}

func runPlot(format string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		r, err := setup()
		if err != nil {
			return err
		}
		opts, err := r.cfg.AKIOptions()
		if err != nil {
			return err
		}
		d, err := r.loadDataset(cmd.Context())
		if err != nil {
			return err
		}
		e, ok := phenotype.GetEncounter(args[0], d.Encounters)
		if !ok {
			return fmt.Errorf("unknown encounter %s", args[0])
		}
		name := r.output(fmt.Sprintf("-%s.%s", e.EID, format))
		if err := chart.SaveCreatinineTrajectory(name, phenotype.PhenotypeEncounter(e, opts)); err != nil {
			return err
		}
		r.logger.Info("Plotted creatinine trajectory", zap.String("encounter_id", e.EID), zap.String("file", name))
		return r.finish()
	}
}

// bind registers a flag and binds it to a configuration key.
func bind(cmd *cobra.Command, persistent bool, key, flag string) {
	flags := cmd.Flags()
	if persistent {
		flags = cmd.PersistentFlags()
	}
	if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
		panic(err)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           programName,
		Short:         "Phenotype AKI, CKD, RRT and SOFA from EHR extracts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "A YAML configuration file.")
	pf.IntVar(&nrOfThreads, "nrOfThreads", 0, "The number of threads clinphen uses.")
	pf.String("input", ".", "The directory with the input tables.")
	pf.String("output", ".", "The directory where output files are written.")
	pf.String("name", programName, "The name of the run. This is used to generate the names of the output files.")
	pf.String("logLevel", "info", "debug | info | warn | error")
	pf.String("logFormat", "json", "json | console")
	pf.Bool("raceCorrection", false, "Apply the race coefficient of CKD-EPI 2009 and MDRD.")
	pf.Int("formulaVersion", 2021, "The CKD-EPI equation: 2009 or 2021.")
	pf.StringSlice("filters", nil, "A list of filters to restrict the analysis to specific encounters.")
	pf.Float64("sampleFraction", 1, "The fraction of encounters to randomly select.")
	pf.String("dsn", "", "A Postgres connection string to read the AKI inputs from.")
	pf.String("schema", "", "The Postgres schema of the input tables.")
	pf.String("metricsTextfile", "", "Write batch metrics to this file.")
	for key, flag := range map[string]string{
		"input_dir":        "input",
		"output_dir":       "output",
		"name":             "name",
		"log_level":        "logLevel",
		"log_format":       "logFormat",
		"race_correction":  "raceCorrection",
		"formula_version":  "formulaVersion",
		"filters":          "filters",
		"sample_fraction":  "sampleFraction",
		"database.dsn":     "dsn",
		"database.schema":  "schema",
		"metrics.textfile": "metricsTextfile",
	} {
		bind(root, true, key, flag)
	}
	// AKI options are shared by every command that phenotypes AKI
	pf.String("increaseRule", "48h", "48h | 48h_and_reference")
	pf.String("referenceContinuation", "last_creatinine", "last_creatinine | previous_reference")
	pf.Bool("stage3Strict", false, "Use creatinine > 4 instead of >= 4 mg/dL.")
	pf.Int("maxEpisodes", 20, "The number of episode columns in the encounter summary.")
	pf.Int("gapTolerance", 2, "The number of non-AKI days absorbed into a running episode.")
	for key, flag := range map[string]string{
		"aki.increase_rule":          "increaseRule",
		"aki.reference_continuation": "referenceContinuation",
		"aki.stage3_strict":          "stage3Strict",
		"aki.max_episodes":           "maxEpisodes",
		"aki.gap_tolerance":          "gapTolerance",
	} {
		bind(root, true, key, flag)
	}

	akiCmd := &cobra.Command{Use: "aki", Short: "Phenotype acute kidney injury", Args: cobra.NoArgs, RunE: runAKI}
	akiCmd.Flags().Bool("excel", false, "Also write the encounter summary as an xlsx workbook.")
	bind(akiCmd, false, "excel", "excel")

	historyCmd := &cobra.Command{Use: "history", Short: "Resolve the renal history on admission",
		Args: cobra.NoArgs, RunE: runHistory}

	sofaCmd := &cobra.Command{Use: "sofa", Short: "Compute SOFA scores", Args: cobra.NoArgs, RunE: runSOFA}
	sofaCmd.Flags().Int("frequency", 1, "Hours between two assessments.")
	sofaCmd.Flags().Int("lookbackWindow", 24, "Hours of data an assessment takes the worst value over.")
	sofaCmd.Flags().Int("ffLimit", 0, "Hours a physiologic value may be carried forward.")
	bind(sofaCmd, false, "sofa.frequency", "frequency")
	bind(sofaCmd, false, "sofa.lookback_window", "lookbackWindow")
	bind(sofaCmd, false, "sofa.ff_limit", "ffLimit")

	var format string
	plotCmd := &cobra.Command{Use: "plot encounter_id", Short: "Plot the creatinine trajectory of an encounter",
		Args: cobra.ExactArgs(1)}
	plotCmd.Flags().StringVar(&format, "format", "png", "png | svg | pdf")
	plotCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runPlot(format)(cmd, args)
	}

	versionCmd := &cobra.Command{Use: "version", Short: "Print the program version", Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), programMessage())
		}}

	root.AddCommand(akiCmd, historyCmd, sofaCmd, plotCmd, versionCmd)
	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
