// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package metrics exports the progress of migration units as
// Prometheus metrics by observing their lifecycle controllers.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/momeni/migrun/pkg/core/model"
	"github.com/momeni/migrun/pkg/core/usecase/migrationuc"
)

// Namespace of all exported metrics.
const Namespace = "migrun"

// Results of migrate runs, used as the result label.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Observer implements migrationuc.Observer by updating Prometheus
// collectors.
type Observer struct {
	runs          *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	applied       *prometheus.CounterVec
	probeFailures *prometheus.CounterVec
	state         *prometheus.GaugeVec
}

var _ migrationuc.Observer = (*Observer)(nil)

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Observer {
	f := promauto.With(reg)
	return &Observer{
		runs: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "runs_total",
				Help:      "Total number of migrate runs",
			},
			[]string{"unit", "result"},
		),
		runDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of migrate runs in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300, 900},
			},
			[]string{"unit"},
		),
		applied: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "migrations_applied_total",
				Help:      "Total number of applied migration scripts",
			},
			[]string{"unit"},
		),
		probeFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "probe_failures_total",
				Help:      "Total number of failed data source probes",
			},
			[]string{"unit"},
		),
		state: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "unit_state",
				Help:      "One for the current lifecycle state of each unit",
			},
			[]string{"unit", "state"},
		),
	}
}

// StateChanged moves the state gauge of unit onto its new state.
func (o *Observer) StateChanged(unit string, from, to model.LifecycleState) {
	o.state.WithLabelValues(unit, from.String()).Set(0)
	o.state.WithLabelValues(unit, to.String()).Set(1)
}

// ProbeFailed counts a failed probe.
func (o *Observer) ProbeFailed(unit string, _ int, _ error) {
	o.probeFailures.WithLabelValues(unit).Inc()
}

// RunFinished counts a run and records its duration.
func (o *Observer) RunFinished(
	unit string, out *model.MigrationOutcome, d time.Duration, err error,
) {
	result := ResultSuccess
	if err != nil || out == nil || !out.Success {
		result = ResultFailure
	}
	o.runs.WithLabelValues(unit, result).Inc()
	o.runDuration.WithLabelValues(unit).Observe(d.Seconds())
	if out != nil {
		o.applied.WithLabelValues(unit).Add(float64(out.Count))
	}
}
