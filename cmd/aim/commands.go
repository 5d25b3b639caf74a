/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"fmt"

	"chainguard.dev/aim/config"
	"chainguard.dev/aim/mode"
	"github.com/spf13/cobra"
)

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "aim",
		Short:         "Evaluate LLM output against references, criteria and sources",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.AddCommand(
		buildModeCmd(mode.Assert, "Run the tests and fail assertions below their thresholds"),
		buildModeCmd(mode.SetReference, "Run the tests and store their output as references"),
		buildSetBaselineCmd(),
		buildModeCmd(mode.Report, "Run the tests and print the average score per metric"),
	)
	return root
}

func buildModeCmd(m mode.Mode, short string) *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   m.String(),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := newRunner(cmd, configPath)
			if err != nil {
				return err
			}
			return r.run(cmd.Context(), m, 1)
		},
	}
	addConfigFlag(cmd, &configPath)
	return cmd
}

func buildSetBaselineCmd() *cobra.Command {
	var (
		configPath string
		runs       int
	)
	cmd := &cobra.Command{
		Use:   mode.SetBaseline.String(),
		Short: "Run the tests repeatedly and derive similarity thresholds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if runs <= 0 {
				return fmt.Errorf("--runs must be positive, got %d", runs)
			}
			r, err := newRunner(cmd, configPath)
			if err != nil {
				return err
			}
			return r.run(cmd.Context(), mode.SetBaseline, runs)
		},
	}
	addConfigFlag(cmd, &configPath)
	cmd.Flags().IntVarP(&runs, "runs", "r", 0, "number of times to run the tests")
	_ = cmd.MarkFlagRequired("runs")
	return cmd
}

func addConfigFlag(cmd *cobra.Command, path *string) {
	cmd.Flags().StringVarP(path, "config", "c", "", "path to the aim configuration (JSON or YAML)")
	_ = cmd.MarkFlagRequired("config")
}

func newRunner(cmd *cobra.Command, configPath string) (*runner, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return &runner{
		cfg:    cfg,
		stdout: cmd.OutOrStdout(),
		stderr: cmd.ErrOrStderr(),
		exec:   runShell,
	}, nil
}
