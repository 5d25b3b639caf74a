/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package aimtest connects Go test suites to the aim CLI. Tests run by
// `aim test`, `aim report` and the other subcommands read the execution mode
// from the environment and report metric outcomes through testing.TB.
//
//	func TestCapital(t *testing.T) {
//		ctx := aimtest.Context(t)
//		st := aimtest.State(t)
//		_, err := engine.SimilarityScore(ctx, st, answer, "capital")
//		aimtest.Check(t, err)
//	}
package aimtest

import (
	"context"
	"errors"
	"testing"

	"chainguard.dev/aim/metrics"
	"chainguard.dev/aim/mode"
	"github.com/chainguard-dev/clog/slogtest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sethvargo/go-envconfig"
)

// Context returns a context whose logger writes through t.
func Context(t testing.TB) context.Context {
	return slogtest.Context(t)
}

// State returns the execution state exported by the CLI, or the assert-mode
// defaults when the test runs on its own.
func State(t testing.TB) mode.State {
	t.Helper()
	st, err := mode.FromEnv(context.Background())
	if err != nil {
		t.Fatalf("mode.FromEnv() = %v", err)
	}
	return st
}

// Check reports the error of a metric call. A failed assertion marks the test
// failed and lets it continue; any other error stops it.
func Check(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		return
	}
	var ae *metrics.AssertionError
	if errors.As(err, &ae) {
		t.Errorf("%v", ae)
		return
	}
	t.Fatalf("metric evaluation failed: %v", err)
}

type metricsEnv struct {
	File string `env:"AIM_METRICS_FILE"`
}

// WriteMetrics writes everything g gathers to $AIM_METRICS_FILE in the
// Prometheus text format when t finishes. It does nothing when the variable
// is unset.
func WriteMetrics(t testing.TB, g prometheus.Gatherer) {
	t.Helper()
	var env metricsEnv
	if err := envconfig.Process(context.Background(), &env); err != nil {
		t.Fatalf("processing environment: %v", err)
	}
	if env.File == "" {
		return
	}
	t.Cleanup(func() {
		if err := prometheus.WriteToTextfile(env.File, g); err != nil {
			t.Errorf("writing metrics to %s: %v", env.File, err)
		}
	})
}
