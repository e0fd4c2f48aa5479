package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/lnharness/internal/config"
	"github.com/roach88/lnharness/internal/metrics"
	"github.com/roach88/lnharness/internal/runner"
	"github.com/roach88/lnharness/internal/shell"
	"github.com/roach88/lnharness/internal/store"
	"github.com/roach88/lnharness/internal/telemetry"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Filter      string        // case filter (glob over group, scenario or group/scenario)
	Catalog     string        // catalog file; empty selects the built-in groups
	Driver      string        // regtest driver executable
	WorkDir     string        // working directory of driver processes
	Timeout     time.Duration // per-command timeout
	DB          string        // SQLite history file
	MetricsFile string        // Prometheus textfile output
	Trace       bool          // export OpenTelemetry spans to stderr
	DryRun      bool          // print commands instead of running them
	NoColor     bool          // plain pass/fail marks

	// Test hooks.
	executor shell.Executor
	now      func() time.Time
	runID    func() string
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	return newTestCommand(&TestOptions{RootOptions: rootOpts})
}

func newTestCommand(opts *TestOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Run scenarios against the regtest driver",
		Long: `Run every selected scenario with fresh agents.

Each case prints a banner, the live driver transcript and a pass or fail
mark. A failing case never stops the remaining ones.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed, or the run was interrupted
  2 - Command error (bad catalog, bad filter, bad settings)

Examples:
  lnharness test
  lnharness test --filter "ab/*"
  lnharness test --filter breach --timeout 2m
  lnharness test --catalog regtest.cue --db .lnharness/history.db
  lnharness test --dry-run --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "run only cases matching this glob")
	cmd.Flags().StringVar(&opts.Catalog, "catalog", "", "catalog file (.yaml, .yml or .cue)")
	cmd.Flags().StringVar(&opts.Driver, "driver", shell.DefaultDriverPath, "regtest driver executable")
	cmd.Flags().StringVar(&opts.WorkDir, "workdir", "", "working directory of driver processes")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", shell.DefaultTimeout, "per-command timeout")
	cmd.Flags().StringVar(&opts.DB, "db", "", "record outcomes in this SQLite file")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "write Prometheus metrics to this file")
	cmd.Flags().BoolVar(&opts.Trace, "trace", false, "export OpenTelemetry spans to stderr")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "print commands instead of running them")
	cmd.Flags().BoolVar(&opts.NoColor, "no-color", false, "disable coloured output")

	return cmd
}

// applyFlags overlays explicitly set flags onto cfg.
func (o *TestOptions) applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("catalog") {
		cfg.Catalog = o.Catalog
	}
	if flags.Changed("driver") {
		cfg.Driver = o.Driver
	}
	if flags.Changed("workdir") {
		cfg.WorkDir = o.WorkDir
	}
	if flags.Changed("timeout") {
		cfg.Timeout = o.Timeout
	}
	if flags.Changed("db") {
		cfg.DB = o.DB
	}
	if flags.Changed("metrics-file") {
		cfg.MetricsFile = o.MetricsFile
	}
	if flags.Changed("trace") {
		cfg.Trace = o.Trace
	}
}

func runTests(ctx context.Context, opts *TestOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := opts.loadConfig()
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	opts.applyFlags(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("invalid settings: %v", err), nil)
	}

	cat, loadErr := LoadCatalog(cfg.Catalog)
	if loadErr != nil {
		return f.Fail(ExitCommandError, loadErr.Code, loadErr.Message, loadErr.Details())
	}
	if _, err := cat.Cases(opts.Filter); err != nil {
		return f.Fail(ExitCommandError, ErrCodeBadFilter, err.Error(), nil)
	}

	logger := opts.newLogger(cmd.ErrOrStderr(), cfg)

	// Live transcripts must not corrupt the JSON document on stdout.
	live := cmd.OutOrStdout()
	if opts.Format == "json" {
		live = cmd.ErrOrStderr()
	}

	base := opts.executor
	switch {
	case base != nil:
	case opts.DryRun:
		base = &shell.DryRun{Out: live}
	default:
		d := shell.NewDriver(cfg.Driver)
		d.Dir = cfg.WorkDir
		base = d
	}

	m := metrics.New()
	tracer, err := telemetry.Setup(telemetry.Options{Enabled: cfg.Trace, Writer: cmd.ErrOrStderr()})
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	defer func() {
		if err := tracer.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("failed to flush spans", "err", err)
		}
	}()

	var history *store.Store
	if cfg.DB != "" {
		history, err = store.Open(cfg.DB)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeHistory, err.Error(), nil)
		}
		defer history.Close()
	}

	f.VerboseLog("Running with driver %s (timeout %s)", cfg.Driver, cfg.Timeout)

	r, err := runner.New(runner.Options{
		Catalog:  cat,
		Executor: shell.Instrument(base, m, tracer),
		Timeout:  cfg.Timeout,
		Out:      live,
		Plain:    opts.NoColor,
		Logger:   logger,
		Store:    history,
		Metrics:  m,
		Tracer:   tracer,
		Driver:   cfg.Driver,
		Now:      opts.now,
		NewRunID: opts.runID,
	})
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}

	report, err := r.Run(ctx, opts.Filter)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeHistory, err.Error(), nil)
	}

	if cfg.MetricsFile != "" {
		if err := m.WriteTextfile(cfg.MetricsFile); err != nil {
			logger.Error("failed to write metrics file", "path", cfg.MetricsFile, "err", err)
		}
	}

	if opts.Format == "json" {
		return outputTestJSON(cmd.OutOrStdout(), report)
	}
	return outputTestText(cmd.OutOrStdout(), report)
}

// testFailure classifies a finished run. Both results are empty when
// every case passed.
func testFailure(report *runner.Report) (code, message string) {
	switch {
	case report.Cancelled:
		return ErrCodeInterrupted, fmt.Sprintf("run interrupted after %d case(s)", report.Total)
	case report.Failed > 0:
		return ErrCodeTestFailed, fmt.Sprintf("%d scenario(s) failed", report.Failed)
	}
	return "", ""
}

// outputTestJSON outputs the report as JSON.
func outputTestJSON(w io.Writer, report *runner.Report) error {
	response := CLIResponse{
		Status: "ok",
		Data:   report,
		RunID:  report.RunID,
	}

	code, message := testFailure(report)
	if code != "" {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    code,
			Message: message,
			Details: report.FailedCases(),
		}
	}

	f := &OutputFormatter{Format: "json", Writer: w}
	if err := f.encode(response); err != nil {
		return err
	}
	if code != "" {
		return NewExitError(ExitFailure, message)
	}
	return nil
}

// outputTestText outputs the summary as text.
func outputTestText(w io.Writer, report *runner.Report) error {
	if report.Total == 0 && !report.Cancelled {
		fmt.Fprintln(w, "No scenarios matched.")
		return nil
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", report.Passed, report.Failed, report.Total)
	for _, id := range report.FailedCases() {
		fmt.Fprintf(w, "  failed: %s\n", id)
	}

	if code, message := testFailure(report); code != "" {
		if report.Cancelled {
			fmt.Fprintln(w, "Run interrupted")
		}
		return NewExitError(ExitFailure, message)
	}

	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
