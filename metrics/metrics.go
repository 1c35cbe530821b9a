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
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"clinphen/phenotype"
	"clinphen/sofa"
)

const namespace = "clinphen"

// Metrics holds the batch metrics of a run.
type Metrics struct {
	Registry *prometheus.Registry

	EncountersProcessed    *prometheus.CounterVec
	EncountersNoCreatinine prometheus.Counter
	AKIEncounters          prometheus.Counter
	Episodes               prometheus.Counter
	EpisodeDays            *prometheus.HistogramVec
	SOFAAssessments        prometheus.Counter
	BatchDuration          *prometheus.GaugeVec
}

// NewMetrics creates the batch metrics on their own registry. Every metric carries the run id as a constant label.
func NewMetrics(runID string) *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	labels := prometheus.Labels{"run_id": runID}
	return &Metrics{
		Registry: registry,
		EncountersProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "encounters_processed_total",
			Help:        "Total number of encounters processed per phenotype",
			ConstLabels: labels,
		}, []string{"phenotype"}),
		EncountersNoCreatinine: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "encounters_without_creatinine_total",
			Help:        "Total number of encounters without creatinine during the stay",
			ConstLabels: labels,
		}),
		AKIEncounters: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "aki_encounters_total",
			Help:        "Total number of encounters with at least one AKI day",
			ConstLabels: labels,
		}),
		Episodes: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "aki_episodes_total",
			Help:        "Total number of AKI episodes",
			ConstLabels: labels,
		}),
		EpisodeDays: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "aki_episode_days",
			Help:        "Duration of AKI episodes in days by worst stage",
			ConstLabels: labels,
			Buckets:     []float64{1, 2, 3, 5, 7, 14, 28},
		}, []string{"stage"}),
		SOFAAssessments: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "sofa_assessments_total",
			Help:        "Total number of SOFA assessments",
			ConstLabels: labels,
		}),
		BatchDuration: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "batch_duration_seconds",
			Help:        "Wall time of the last batch per phenotype",
			ConstLabels: labels,
		}, []string{"phenotype"}),
	}
}

// ObserveAKI records the results of an AKI batch.
func (m *Metrics) ObserveAKI(results []*phenotype.AKIResult) {
	m.EncountersProcessed.WithLabelValues("aki").Add(float64(len(results)))
	for _, r := range results {
		if !r.Summary.HasCreatinine {
			m.EncountersNoCreatinine.Inc()
			continue
		}
		if r.Summary.AKIOverall {
			m.AKIEncounters.Inc()
		}
		for _, ep := range r.Episodes {
			m.Episodes.Inc()
			m.EpisodeDays.WithLabelValues(ep.WorstStage.String()).Observe(float64(ep.Days))
		}
	}
}

// ObserveSOFA records the results of a SOFA batch.
func (m *Metrics) ObserveSOFA(encounters int, assessments []*sofa.Assessment) {
	m.EncountersProcessed.WithLabelValues("sofa").Add(float64(encounters))
	m.SOFAAssessments.Add(float64(len(assessments)))
}

// WriteTextfile writes the metrics in the text format of the node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
