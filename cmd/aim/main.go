/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Command aim runs an evaluation test suite in one of the execution modes.
//
//	aim set-reference -c aim.json      # store candidates as references
//	aim set-baseline -c aim.json -r 5  # score five runs against them
//	aim test -c aim.json               # assert against the thresholds
//	aim report -c aim.json             # average the scores
//
// The configuration names the shell command that runs the tests. aim passes
// the mode to that command through AIM_* environment variables.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/chainguard-dev/clog"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx = clog.WithLogger(ctx, clog.New(slog.NewTextHandler(os.Stderr, nil)))

	if err := buildRootCmd().ExecuteContext(ctx); err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			clog.FromContext(ctx).With("status", exit.code).Warn("Test command failed")
			os.Exit(exit.code)
		}
		clog.FromContext(ctx).With("error", err).Error("aim failed")
		os.Exit(1)
	}
}
