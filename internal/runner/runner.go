// Package runner executes catalog cases one after another and aggregates
// their outcomes.
//
// Each case gets a fresh harness.Lifecycle. Live driver output is echoed
// to the output writer under a banner line; a pass or fail mark follows
// every case. Outcomes are optionally recorded in the history store, the
// Prometheus collectors and the tracer.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/muesli/termenv"

	"github.com/roach88/lnharness/internal/catalog"
	"github.com/roach88/lnharness/internal/harness"
	"github.com/roach88/lnharness/internal/logging"
	"github.com/roach88/lnharness/internal/metrics"
	"github.com/roach88/lnharness/internal/shell"
	"github.com/roach88/lnharness/internal/store"
	"github.com/roach88/lnharness/internal/telemetry"
)

// Options configures a Runner.
type Options struct {
	// Catalog supplies the cases. Required.
	Catalog *catalog.Catalog

	// Executor dispatches driver commands. Required.
	Executor shell.Executor

	// Timeout bounds each driver command.
	Timeout time.Duration

	// Out receives banners, live transcripts and pass/fail marks.
	// Nil discards.
	Out io.Writer

	// Plain disables colour in Out even on a terminal.
	Plain bool

	// Logger receives structured records. Nil discards.
	Logger *slog.Logger

	// Store, Metrics and Tracer are optional sinks for outcomes.
	Store   *store.Store
	Metrics *metrics.Metrics
	Tracer  *telemetry.Tracer

	// Driver is recorded with the run in the history store.
	Driver string

	// Now is the wall clock. Nil uses time.Now.
	Now func() time.Time

	// NewRunID generates run IDs. Nil uses UUIDv7.
	NewRunID func() string
}

// Report aggregates the outcomes of one run.
type Report struct {
	RunID     string             `json:"run_id"`
	Filter    string             `json:"filter,omitempty"`
	Outcomes  []*harness.Outcome `json:"outcomes"`
	Passed    int                `json:"passed"`
	Failed    int                `json:"failed"`
	Total     int                `json:"total"`
	Cancelled bool               `json:"cancelled,omitempty"`
	Started   time.Time          `json:"started"`
	Elapsed   time.Duration      `json:"elapsed"`
}

// OK reports whether every executed case passed.
func (r *Report) OK() bool {
	return r.Failed == 0 && !r.Cancelled
}

// FailedCases returns the IDs of failed cases in execution order.
func (r *Report) FailedCases() []string {
	var ids []string
	for _, o := range r.Outcomes {
		if !o.Passed() {
			ids = append(ids, o.ID())
		}
	}
	return ids
}

// Runner executes catalog cases sequentially.
type Runner struct {
	opts   Options
	out    *termenv.Output
	logger *slog.Logger
}

// New creates a Runner.
func New(opts Options) (*Runner, error) {
	if opts.Catalog == nil {
		return nil, errors.New("runner: catalog is required")
	}
	if opts.Executor == nil {
		return nil, errors.New("runner: executor is required")
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewRunID == nil {
		opts.NewRunID = newRunID
	}

	var outOpts []termenv.OutputOption
	if opts.Plain {
		outOpts = append(outOpts, termenv.WithProfile(termenv.Ascii))
	}
	return &Runner{
		opts:   opts,
		out:    termenv.NewOutput(opts.Out, outOpts...),
		logger: opts.Logger,
	}, nil
}

func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Run executes every case selected by filter (see catalog.Cases).
//
// An invalid filter is returned as an error before anything runs. A
// cancelled ctx stops scheduling further cases; the case in flight still
// tears down and is reported.
func (r *Runner) Run(ctx context.Context, filter string) (*Report, error) {
	cases, err := r.opts.Catalog.Cases(filter)
	if err != nil {
		return nil, err
	}

	report := &Report{
		RunID:    r.opts.NewRunID(),
		Filter:   filter,
		Outcomes: []*harness.Outcome{},
		Started:  r.opts.Now(),
	}
	logger := r.logger.With("run", report.RunID)

	if r.opts.Store != nil {
		err := r.opts.Store.BeginRun(ctx, store.Run{
			ID:        report.RunID,
			StartedAt: report.Started,
			Filter:    filter,
			Driver:    r.opts.Driver,
		})
		if err != nil {
			return nil, fmt.Errorf("record run: %w", err)
		}
	}

	for i, cs := range cases {
		if ctx.Err() != nil {
			report.Cancelled = true
			logger.Warn("run cancelled", "remaining", len(cases)-i, "err", ctx.Err())
			break
		}

		o := r.runCase(ctx, cs, logger)
		report.Outcomes = append(report.Outcomes, o)
		if o.Passed() {
			report.Passed++
		} else {
			report.Failed++
		}
		r.record(ctx, report.RunID, i+1, cs, o, logger)
	}
	report.Total = report.Passed + report.Failed
	report.Elapsed = r.opts.Now().Sub(report.Started)

	if r.opts.Store != nil {
		err := r.opts.Store.FinishRun(context.WithoutCancel(ctx), report.RunID, r.opts.Now(), report.Passed, report.Failed)
		if err != nil {
			logger.Error("failed to finish run record", "err", err)
		}
	}
	return report, nil
}

func (r *Runner) runCase(ctx context.Context, cs catalog.Case, logger *slog.Logger) *harness.Outcome {
	fmt.Fprintf(r.out, "***** %s ******\n", cs.ID())

	lc, err := harness.New(cs.Group, cs.Scenario, harness.Options{
		Executor: r.opts.Executor,
		Timeout:  r.opts.Timeout,
		Logger:   logger,
		Now:      r.opts.Now,
		Output:   r.echo,
	})
	if err != nil {
		o := &harness.Outcome{
			Group:    cs.Group.Name,
			Scenario: cs.Scenario,
			Status:   harness.StatusFailed,
			Err:      err,
			Error:    err.Error(),
			Trace:    []harness.Step{},
			Started:  r.opts.Now(),
		}
		r.mark(o)
		return o
	}

	var end func(*harness.Outcome)
	if r.opts.Tracer != nil {
		ctx, end = r.opts.Tracer.StartScenario(ctx, cs.Group.Name, cs.Scenario)
	}
	o := lc.Run(ctx)
	if end != nil {
		end(o)
	}

	if err := harness.CheckTrace(cs.Group, o); err != nil {
		logger.Error("dispatch order violated", "group", cs.Group.Name, "scenario", cs.Scenario, "err", err)
	}
	r.mark(o)
	return o
}

// echo writes one live transcript line.
func (r *Runner) echo(line string) {
	fmt.Fprintln(r.out, line)
}

// mark prints the pass/fail line of a finished case.
func (r *Runner) mark(o *harness.Outcome) {
	elapsed := o.Elapsed.Round(time.Millisecond)
	if o.Passed() {
		check := r.out.String("✓").Foreground(r.out.Color("2"))
		fmt.Fprintf(r.out, "%s %s (%s)\n", check, o.ID(), elapsed)
	} else {
		cross := r.out.String("✗").Foreground(r.out.Color("1"))
		fmt.Fprintf(r.out, "%s %s: %s\n", cross, o.ID(), o.Reason())
	}
	for _, e := range o.TeardownErrors {
		warn := r.out.String("teardown:").Foreground(r.out.Color("3"))
		fmt.Fprintf(r.out, "  %s %s\n", warn, e)
	}
}

// record feeds an outcome to the optional sinks. History failures are
// logged; they never change the outcome.
func (r *Runner) record(ctx context.Context, runID string, seq int, cs catalog.Case, o *harness.Outcome, logger *slog.Logger) {
	if r.opts.Metrics != nil {
		r.opts.Metrics.ObserveOutcome(o)
	}
	if r.opts.Store == nil {
		return
	}

	hash, err := cs.Group.Fingerprint()
	if err != nil {
		logger.Error("failed to fingerprint group", "group", cs.Group.Name, "err", err)
		return
	}
	if _, err := r.opts.Store.WriteOutcome(context.WithoutCancel(ctx), runID, seq, hash, o); err != nil {
		logger.Error("failed to record outcome", "group", o.Group, "scenario", o.Scenario, "err", err)
	}
}
