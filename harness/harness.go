package harness

// Package harness drives the regression registry against the runtime: it
// selects cases for the host architecture, runs them one at a time,
// compares exit statuses and reports the tally.

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jatovm/jato-regress/registry"
	"github.com/rs/zerolog"
)

// Outcome is how one invocation of the runtime terminated.
type Outcome struct {
	// ExitCode is the exit status, or the negated signal number when the
	// child was killed by a signal.
	ExitCode int
	// Signal names the terminating signal, empty for a normal exit.
	Signal string
	// Command is the shell-quoted command line that was run.
	Command string
}

// Executor runs the runtime for a single case and waits for it to exit.
// A non-matching or signalled exit is an Outcome, not an error; errors
// are reserved for failures to launch the runtime at all.
type Executor interface {
	Execute(ctx context.Context, tc registry.TestCase) (Outcome, error)
}

// Result is the verdict for one executed case.
type Result struct {
	Index    int    `json:"index"`
	Name     string `json:"name"`
	Expected int    `json:"expected"`
	Actual   int    `json:"actual"`
	Signal   string `json:"signal,omitempty"`
	Passed   bool   `json:"passed"`
	Command  string `json:"command,omitempty"`
}

// Report is everything a run produced.
type Report struct {
	Arch     string
	Total    int
	Selected int
	Tally    Tally
	Results  []Result
	// ExitCode is the actual exit code of the last executed case, 0 if
	// nothing ran.
	ExitCode int
	Start    time.Time
	Elapsed  time.Duration
}

// AllPassed reports whether no executed case failed.
func (r *Report) AllPassed() bool {
	return r.Tally.Failed == 0
}

// Failed returns the results of failed cases in execution order.
func (r *Report) Failed() []Result {
	var failed []Result
	for _, res := range r.Results {
		if !res.Passed {
			failed = append(failed, res)
		}
	}
	return failed
}

// Harness runs a registry serially.
type Harness struct {
	logger   zerolog.Logger
	executor Executor
	out      io.Writer
	color    bool
	now      func() time.Time
}

// Option configures a Harness.
type Option func(*Harness)

// WithOutput sets the writer for progress and summary lines.
func WithOutput(w io.Writer) Option {
	return func(h *Harness) {
		h.out = w
	}
}

// WithColor enables or disables the coloured summary.
func WithColor(color bool) Option {
	return func(h *Harness) {
		h.color = color
	}
}

// WithClock replaces time.Now, used for the elapsed time.
func WithClock(now func() time.Time) Option {
	return func(h *Harness) {
		h.now = now
	}
}

// New creates a harness that runs cases with executor.
func New(logger zerolog.Logger, executor Executor, opts ...Option) *Harness {
	h := &Harness{
		logger:   logger,
		executor: executor,
		out:      os.Stdout,
		color:    true,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run walks reg in order and executes every case supported on arch.
// If the runtime cannot be launched the run stops and the partial report
// is returned together with the error.
func (h *Harness) Run(ctx context.Context, reg *registry.Registry, arch string) (*Report, error) {
	cases := reg.Cases()
	report := &Report{
		Arch:  arch,
		Total: len(cases),
		Start: h.now(),
	}

	h.logger.Info().
		Str("arch", arch).
		Int("cases", len(cases)).
		Msg("Running regression cases")

	for i, tc := range cases {
		index := i + 1

		if !tc.SupportedOn(arch) {
			h.logger.Debug().
				Int("index", index).
				Str("case", tc.Name).
				Strs("archs", tc.Archs).
				Msg("Skipping unsupported case")
			continue
		}
		report.Selected++

		if err := WriteProgress(h.out, index, len(cases), tc.Name); err != nil {
			return report, fmt.Errorf("failed to write progress: %w", err)
		}

		outcome, err := h.executor.Execute(ctx, tc)
		if err != nil {
			report.Elapsed = h.now().Sub(report.Start)
			return report, fmt.Errorf("failed to run %s: %w", tc.Name, err)
		}

		passed := outcome.ExitCode == tc.ExpectedExitCode
		report.ExitCode = outcome.ExitCode
		report.Tally.Record(passed)
		report.Results = append(report.Results, Result{
			Index:    index,
			Name:     tc.Name,
			Expected: tc.ExpectedExitCode,
			Actual:   outcome.ExitCode,
			Signal:   outcome.Signal,
			Passed:   passed,
			Command:  outcome.Command,
		})

		logEvent := h.logger.Debug().
			Int("index", index).
			Str("case", tc.Name).
			Int("expected", tc.ExpectedExitCode).
			Int("actual", outcome.ExitCode)
		if outcome.Signal != "" {
			logEvent.Str("signal", outcome.Signal)
		}
		logEvent.Bool("passed", passed).Msg("Case finished")

		if !passed {
			if err := WriteFailure(h.out, tc.Name); err != nil {
				return report, fmt.Errorf("failed to write result: %w", err)
			}
		}
	}

	report.Elapsed = h.now().Sub(report.Start)

	if err := WriteSummary(h.out, report.Tally, report.Elapsed, h.color); err != nil {
		return report, fmt.Errorf("failed to write summary: %w", err)
	}

	return report, nil
}
