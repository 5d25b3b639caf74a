/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package metrics

import (
	"sync"

	"chainguard.dev/aim/mode"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Observer records metric evaluations as Prometheus series labelled by
// metric type and mode.
type Observer struct {
	evaluations *prometheus.CounterVec
	failures    *prometheus.CounterVec
	score       *prometheus.GaugeVec
}

// NewObserver registers the evaluation series with reg.
func NewObserver(reg prometheus.Registerer) *Observer {
	factory := promauto.With(reg)
	labels := []string{"metric_type", "mode"}
	return &Observer{
		evaluations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aim_evaluations_total",
				Help: "Total number of metric evaluations performed",
			},
			labels,
		),
		failures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aim_assertion_failures_total",
				Help: "Total number of failed assertions",
			},
			labels,
		),
		score: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "aim_last_score",
				Help: "Most recent score per metric type",
			},
			labels,
		),
	}
}

// defaultObserver registers once with the default registerer.
var defaultObserver = sync.OnceValue(func() *Observer {
	return NewObserver(prometheus.DefaultRegisterer)
})

// Observe records one evaluation. set-reference computes no score, so it
// only counts.
func (o *Observer) Observe(metricType string, m mode.Mode, score float64, failed bool) {
	labels := prometheus.Labels{"metric_type": metricType, "mode": m.String()}
	o.evaluations.With(labels).Inc()
	if failed {
		o.failures.With(labels).Inc()
	}
	if m != mode.SetReference {
		o.score.With(labels).Set(score)
	}
}
