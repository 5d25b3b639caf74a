/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package mode holds the execution state that selects what a metric call does
// with its score: assert against a threshold, record a reference, collect
// baseline statistics or fold into a report.
package mode

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-envconfig"
)

// Mode is an execution mode. Its value is the CLI subcommand that selects it.
type Mode string

const (
	Assert       Mode = "test"
	Report       Mode = "report"
	SetReference Mode = "set-reference"
	SetBaseline  Mode = "set-baseline"
)

// ErrUnknownMode is returned for mode names outside the four known modes.
var ErrUnknownMode = errors.New("unknown execution mode")

// Modes lists every mode in CLI order.
func Modes() []Mode { return []Mode{Assert, SetReference, SetBaseline, Report} }

// Parse converts a mode name into a Mode.
func Parse(s string) (Mode, error) {
	switch m := Mode(s); m {
	case Assert, Report, SetReference, SetBaseline:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

func (m Mode) String() string { return string(m) }

// Thresholds are the fallback pass marks, as fractions in [0, 1].
type Thresholds struct {
	ClaimCheck float64
	Criteria   float64
}

// DefaultThresholds returns 0.90 for both claim and criteria checks.
func DefaultThresholds() Thresholds {
	return Thresholds{ClaimCheck: 0.90, Criteria: 0.90}
}

// TimestampLayout formats the suffix of report and failure file names.
const TimestampLayout = "20060102_150405"

// DefaultDataDir is the root of every persisted document.
const DefaultDataDir = "aim_data"

// State is the explicit execution context passed to every metric call.
// It is a value: derive variations with WithMode rather than mutating it.
type State struct {
	Mode Mode
	// Runs is the number of set-baseline runs, exported as AIM_ITERATION.
	Runs int
	// Iteration is the 1-based index of the current set-baseline run.
	Iteration  int
	Thresholds Thresholds

	DataDir      string
	ReferenceDir string
	ReportFile   string
	FailuresFile string

	// RunID ties together documents written by one CLI invocation.
	RunID string
}

type options struct {
	state State
	at    time.Time
}

// Option configures New.
type Option func(*options)

// WithDataDir roots all documents under dir.
func WithDataDir(dir string) Option {
	return func(o *options) { o.state.DataDir = dir }
}

// WithRuns sets the number of set-baseline runs.
func WithRuns(n int) Option {
	return func(o *options) { o.state.Runs = n }
}

// WithIteration sets the index of the current set-baseline run.
func WithIteration(n int) Option {
	return func(o *options) { o.state.Iteration = n }
}

// WithThresholds overrides the default thresholds.
func WithThresholds(t Thresholds) Option {
	return func(o *options) { o.state.Thresholds = t }
}

// WithRunID overrides the generated run id.
func WithRunID(id string) Option {
	return func(o *options) { o.state.RunID = id }
}

// WithTime stamps the report and failure file names with t instead of now.
func WithTime(t time.Time) Option {
	return func(o *options) { o.at = t }
}

// WithReportFile pins the report document, typically to share it between processes.
func WithReportFile(path string) Option {
	return func(o *options) { o.state.ReportFile = path }
}

// WithFailuresFile pins the failure document.
func WithFailuresFile(path string) Option {
	return func(o *options) { o.state.FailuresFile = path }
}

// New builds a State for m.
func New(m Mode, opts ...Option) (State, error) {
	if _, err := Parse(string(m)); err != nil {
		return State{}, err
	}
	o := options{
		state: State{
			Mode:       m,
			Thresholds: DefaultThresholds(),
			DataDir:    DefaultDataDir,
		},
		at: time.Now(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	s := o.state
	if s.RunID == "" {
		s.RunID = uuid.NewString()
	}
	s.ReferenceDir = filepath.Join(s.DataDir, "reference")

	// Pinned files survive; the rest are stamped.
	report, failures := s.ReportFile, s.FailuresFile
	s.stamp(o.at)
	if report != "" {
		s.ReportFile = report
	}
	if failures != "" {
		s.FailuresFile = failures
	}
	return s, nil
}

// WithMode returns a copy switched to m for the given iteration, with a new
// run id and freshly timestamped report and failure files.
func (s State) WithMode(m Mode, iteration int) (State, error) {
	if _, err := Parse(string(m)); err != nil {
		return State{}, err
	}
	s.Mode = m
	s.Iteration = iteration
	s.RunID = uuid.NewString()
	s.stamp(time.Now())
	return s, nil
}

func (s *State) stamp(t time.Time) {
	ts := t.Format(TimestampLayout)
	s.ReportFile = filepath.Join(s.DataDir, "report", "report_"+ts+".json")
	s.FailuresFile = filepath.Join(s.DataDir, "failures", "failures_"+ts+".json")
}

// ReferenceFile is the document that holds references for referenceID.
func (s State) ReferenceFile(referenceID string) string {
	return filepath.Join(s.ReferenceDir, filepath.FromSlash(referenceID)+".json")
}

// Environ exports s as environment variables understood by FromEnv.
// AIM_ITERATION and AIM_RUN_INDEX are only set in set-baseline mode.
func (s State) Environ() []string {
	env := []string{
		"AIM_MODE=" + string(s.Mode),
		"AIM_DATA_DIR=" + s.DataDir,
		"AIM_RUN_ID=" + s.RunID,
		"AIM_REPORT_FILE=" + s.ReportFile,
		"AIM_FAILURES_FILE=" + s.FailuresFile,
	}
	if s.Mode == SetBaseline {
		env = append(env,
			"AIM_ITERATION="+strconv.Itoa(s.Runs),
			"AIM_RUN_INDEX="+strconv.Itoa(s.Iteration),
		)
	}
	return env
}

// Env is the environment contract between the CLI and test processes.
type Env struct {
	Mode         string `env:"AIM_MODE,default=test"`
	Runs         int    `env:"AIM_ITERATION"`
	RunIndex     int    `env:"AIM_RUN_INDEX"`
	DataDir      string `env:"AIM_DATA_DIR,default=aim_data"`
	RunID        string `env:"AIM_RUN_ID"`
	ReportFile   string `env:"AIM_REPORT_FILE"`
	FailuresFile string `env:"AIM_FAILURES_FILE"`
}

// FromEnv builds the State described by the process environment.
func FromEnv(ctx context.Context) (State, error) {
	var env Env
	if err := envconfig.Process(ctx, &env); err != nil {
		return State{}, fmt.Errorf("processing environment: %w", err)
	}
	return env.State()
}

// State converts the environment into a State.
func (e Env) State() (State, error) {
	if e.Mode == "" {
		e.Mode = string(Assert)
	}
	m, err := Parse(e.Mode)
	if err != nil {
		return State{}, fmt.Errorf("AIM_MODE: %w", err)
	}
	return New(m,
		WithRuns(e.Runs),
		WithIteration(e.RunIndex),
		WithDataDir(e.DataDir),
		WithRunID(e.RunID),
		WithReportFile(e.ReportFile),
		WithFailuresFile(e.FailuresFile),
	)
}
