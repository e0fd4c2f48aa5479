package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/lnharness/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	DB    string // history database
	Run   string // show the outcomes of one run
	Case  string // show the outcomes of one group/scenario across runs
	Limit int    // number of runs listed
}

// RunDetail is one run together with its outcomes.
type RunDetail struct {
	store.Run
	Outcomes []store.OutcomeRecord `json:"outcomes"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded runs and outcomes",
		Long: `Show runs recorded by "lnharness test --db".

Without --run or --case the most recent runs are listed, newest first.

Examples:
  lnharness history --db .lnharness/history.db
  lnharness history --db .lnharness/history.db --run 0190f1c2-...
  lnharness history --db .lnharness/history.db --case ab/breach`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "history database (required)")
	cmd.Flags().StringVar(&opts.Run, "run", "", "show the outcomes of this run")
	cmd.Flags().StringVar(&opts.Case, "case", "", "show one group/scenario across runs")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "number of runs to list (0 for all)")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	db := opts.DB
	if db == "" && opts.Config != "" {
		cfg, err := opts.loadConfig()
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
		}
		db = cfg.DB
	}
	if db == "" {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "--db is required", nil)
	}
	// Open creates missing files; a typo must not yield an empty history.
	if _, err := os.Stat(db); err != nil {
		return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("history database not found: %s", db), nil)
	}
	if opts.Run != "" && opts.Case != "" {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "--run and --case are mutually exclusive", nil)
	}

	s, err := store.Open(db)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeHistory, err.Error(), nil)
	}
	defer s.Close()

	ctx := cmd.Context()
	w := cmd.OutOrStdout()

	switch {
	case opts.Run != "":
		run, err := s.GetRun(ctx, opts.Run)
		if errors.Is(err, store.ErrNotFound) {
			return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("run not found: %s", opts.Run), nil)
		}
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeHistory, err.Error(), nil)
		}
		outcomes, err := s.ReadOutcomes(ctx, run.ID)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeHistory, err.Error(), nil)
		}
		if opts.Format == "json" {
			return f.Success(RunDetail{Run: run, Outcomes: outcomes})
		}
		writeRunDetail(w, run, outcomes)

	case opts.Case != "":
		group, scenario, ok := strings.Cut(opts.Case, "/")
		if !ok || group == "" || scenario == "" {
			return f.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("--case %q: want group/scenario", opts.Case), nil)
		}
		outcomes, err := s.CaseHistory(ctx, group, scenario)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeHistory, err.Error(), nil)
		}
		if opts.Format == "json" {
			return f.Success(outcomes)
		}
		writeOutcomes(w, outcomes, true)

	default:
		runs, err := s.ListRuns(ctx, opts.Limit)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeHistory, err.Error(), nil)
		}
		if opts.Format == "json" {
			return f.Success(runs)
		}
		writeRuns(w, runs)
	}
	return nil
}

const historyTime = "2006-01-02 15:04:05"

func writeRuns(w io.Writer, runs []store.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tPASSED\tFAILED\tTOTAL\tFILTER")
	for _, r := range runs {
		filter := r.Filter
		if filter == "" {
			filter = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\n",
			r.ID, r.StartedAt.Local().Format(historyTime), r.Passed, r.Failed, r.Total, filter)
	}
	tw.Flush()
}

func writeRunDetail(w io.Writer, run store.Run, outcomes []store.OutcomeRecord) {
	fmt.Fprintf(w, "Run %s\n", run.ID)
	fmt.Fprintf(w, "  started:  %s\n", run.StartedAt.Local().Format(historyTime))
	if !run.FinishedAt.IsZero() {
		fmt.Fprintf(w, "  finished: %s\n", run.FinishedAt.Local().Format(historyTime))
	} else {
		fmt.Fprintln(w, "  finished: (incomplete)")
	}
	if run.Driver != "" {
		fmt.Fprintf(w, "  driver:   %s\n", run.Driver)
	}
	fmt.Fprintf(w, "  summary:  %d passed, %d failed, %d total\n\n", run.Passed, run.Failed, run.Total)
	writeOutcomes(w, outcomes, false)
}

func writeOutcomes(w io.Writer, outcomes []store.OutcomeRecord, withRun bool) {
	if len(outcomes) == 0 {
		fmt.Fprintln(w, "No outcomes recorded.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if withRun {
		fmt.Fprintln(tw, "RUN\tCASE\tSTATUS\tELAPSED\tERROR")
	} else {
		fmt.Fprintln(tw, "CASE\tSTATUS\tELAPSED\tERROR")
	}
	for _, o := range outcomes {
		if withRun {
			fmt.Fprintf(tw, "%s\t", o.RunID)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", o.CaseID(), o.Status, o.Elapsed.Round(time.Millisecond), o.Error)
	}
	tw.Flush()
}
