/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"chainguard.dev/aim/config"
	"chainguard.dev/aim/mode"
	"chainguard.dev/aim/report"
	"chainguard.dev/aim/store"
	"github.com/chainguard-dev/clog"
)

// exitError carries the test command's non-zero exit status.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("test command exited with status %d", e.code)
}

// execFunc runs the configured command with env added to the environment.
type execFunc func(ctx context.Context, cfg *config.Config, env []string, stdout, stderr io.Writer) error

type runner struct {
	cfg    *config.Config
	stdout io.Writer
	stderr io.Writer
	exec   execFunc
}

// run executes the test command once per iteration in mode m, then prints
// what the mode produced.
func (r *runner) run(ctx context.Context, m mode.Mode, iterations int) error {
	log := clog.FromContext(ctx).With("mode", m.String())
	r.logCredentials(ctx)

	opts := []mode.Option{mode.WithDataDir(r.cfg.DataDir)}
	if m == mode.SetBaseline {
		opts = append(opts, mode.WithRuns(iterations))
	}
	base, err := mode.New(m, opts...)
	if err != nil {
		return err
	}

	var (
		st     = base
		status int
	)
	for i := 1; i <= iterations; i++ {
		if m == mode.SetBaseline {
			fmt.Fprintf(r.stdout, "Running iteration %d/%d...\n", i, iterations)
			if st, err = base.WithMode(m, i); err != nil {
				return err
			}
		}
		log.With("run_id", st.RunID).With("iteration", st.Iteration).Info("Running tests")

		env := append(r.cfg.Environ(), st.Environ()...)
		if err := r.exec(ctx, r.cfg, env, r.stdout, r.stderr); err != nil {
			var exit *exitError
			if !errors.As(err, &exit) {
				return err
			}
			log.With("status", exit.code).Warn("Test command failed")
			status = exit.code
		}
	}

	switch m {
	case mode.Report:
		if err := r.printReport(st); err != nil {
			return err
		}
	case mode.Assert:
		if err := r.printFailures(st); err != nil {
			return err
		}
	}
	if status != 0 {
		return &exitError{code: status}
	}
	return nil
}

func (r *runner) printReport(st mode.State) error {
	doc, err := store.Load[store.Report](st.ReportFile)
	if err != nil {
		return fmt.Errorf("loading report: %w", err)
	}
	if len(doc) == 0 {
		fmt.Fprintln(r.stdout, "No scores were reported.")
		return nil
	}
	fmt.Fprintln(r.stdout, report.Table(doc))
	fmt.Fprintf(r.stdout, "Report written to %s\n", st.ReportFile)
	return nil
}

func (r *runner) printFailures(st mode.State) error {
	doc, err := store.Load[store.Failures](st.FailuresFile)
	if err != nil {
		return fmt.Errorf("loading failures: %w", err)
	}
	if len(doc.Failures) == 0 {
		return nil
	}
	fmt.Fprintf(r.stdout, "## Failures\n\n%s\n", report.FailureTree(doc))
	fmt.Fprintf(r.stdout, "Failures written to %s\n", st.FailuresFile)
	return nil
}

func (r *runner) logCredentials(ctx context.Context) {
	creds, err := config.LoadCredentials(ctx)
	if err != nil {
		clog.FromContext(ctx).With("error", err).Warn("Failed to read provider credentials")
		return
	}
	available := creds.Available()
	if len(available) == 0 {
		clog.FromContext(ctx).Warn("No provider API keys found in the environment")
		return
	}
	names := make([]string, 0, len(available))
	for _, p := range available {
		names = append(names, string(p))
	}
	clog.FromContext(ctx).With("providers", strings.Join(names, ",")).Info("Provider credentials found")
}

// runShell runs cfg.Run with cfg.Shell, inheriting the process environment.
func runShell(ctx context.Context, cfg *config.Config, env []string, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, cfg.Shell, "-c", cfg.Run)
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if err := cmd.Run(); err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) && ee.ExitCode() > 0 {
			return &exitError{code: ee.ExitCode()}
		}
		return fmt.Errorf("running %q: %w", cfg.Run, err)
	}
	return nil
}
