package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/roach88/lnharness/internal/agent"
	"github.com/roach88/lnharness/internal/catalog"
	"github.com/roach88/lnharness/internal/logging"
	"github.com/roach88/lnharness/internal/shell"
)

// Options configures a Lifecycle.
type Options struct {
	// Executor dispatches driver commands. Required.
	Executor shell.Executor

	// Timeout bounds each command. Zero selects shell.DefaultTimeout.
	Timeout time.Duration

	// Logger receives dispatch and teardown records. Nil discards.
	Logger *slog.Logger

	// Now is the wall clock. Nil uses time.Now.
	Now func() time.Time

	// Output receives every transcript line as it is produced.
	Output shell.LineObserver
}

// Lifecycle runs one scenario against a fresh set of agents.
// It is single use: Run may be called once.
type Lifecycle struct {
	group    catalog.Group
	scenario string
	opts     Options
	logger   *slog.Logger

	registry *agent.Registry
	owed     []*agent.Agent // agents whose start was dispatched
	phase    Phase
	seq      int64
	ran      bool

	outcome    *Outcome
	transcript strings.Builder
}

// New prepares a lifecycle for scenario within group.
//
// Returns *agent.DefinitionError when the group configures an agent outside
// its declared set or does not list the scenario. No command is dispatched
// before Run.
func New(group catalog.Group, scenario string, opts Options) (*Lifecycle, error) {
	if opts.Executor == nil {
		return nil, errors.New("harness: executor is required")
	}
	if !slices.Contains(group.Scenarios, scenario) {
		return nil, &agent.DefinitionError{
			Group:   group.Name,
			Message: fmt.Sprintf("scenario %q is not listed by the group", scenario),
		}
	}
	registry, err := agent.NewRegistry(group.Agents, group.Config)
	if err != nil {
		var de *agent.DefinitionError
		if errors.As(err, &de) && de.Group == "" {
			de.Group = group.Name
		}
		return nil, err
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	return &Lifecycle{
		group:    group.Clone(),
		scenario: scenario,
		opts:     opts,
		logger:   logger.With("group", group.Name, "scenario", scenario),
		registry: registry,
	}, nil
}

// Agents returns the lifecycle's agents in declaration order.
func (l *Lifecycle) Agents() []*agent.Agent {
	return l.registry.All()
}

// Run executes the full lifecycle and returns its outcome.
//
// Teardown always runs, using a context detached from ctx cancellation so
// that a cancelled run still stops every started agent. A panic raised
// while dispatching is recovered into the outcome's primary error after
// teardown has completed.
func (l *Lifecycle) Run(ctx context.Context) (out *Outcome) {
	if l.ran {
		return &Outcome{
			Group:    l.group.Name,
			Scenario: l.scenario,
			Status:   StatusFailed,
			Err:      errors.New("harness: lifecycle already ran"),
			Error:    "harness: lifecycle already ran",
			Trace:    []Step{},
		}
	}
	l.ran = true

	l.outcome = &Outcome{
		Group:    l.group.Name,
		Scenario: l.scenario,
		Trace:    []Step{},
		Started:  l.opts.Now(),
	}
	out = l.outcome

	defer func() {
		if r := recover(); r != nil {
			l.markPanic(r)
		}
		l.teardown(context.WithoutCancel(ctx))
		l.finish()
	}()

	if err := l.setup(ctx); err != nil {
		l.fail(err)
		return out
	}

	l.phase = PhaseScenario
	if err := l.dispatch(ctx, PhaseScenario, l.scenario); err != nil {
		l.fail(err)
	}
	return out
}

// setup runs init, configure, fund and start. The first failure aborts
// the remaining setup commands.
func (l *Lifecycle) setup(ctx context.Context) error {
	agents := l.registry.All()

	l.phase = PhaseInit
	for _, a := range agents {
		if err := l.dispatch(ctx, PhaseInit, "init", a.Name); err != nil {
			return err
		}
	}

	l.phase = PhaseConfigure
	for _, a := range agents {
		for _, e := range agent.Expand(a) {
			if err := l.dispatch(ctx, PhaseConfigure, "setconfig", a.Name, e.Key, e.Value); err != nil {
				return err
			}
		}
		if err := a.Advance(agent.Configured); err != nil {
			return err
		}
	}

	// One block confirms the funds of every agent at once.
	l.phase = PhaseFund
	if err := l.dispatch(ctx, PhaseFund, "new_block"); err != nil {
		return err
	}
	for _, a := range agents {
		if err := a.Advance(agent.Funded); err != nil {
			return err
		}
	}

	l.phase = PhaseStart
	for _, a := range agents {
		// A stop is owed as soon as start is dispatched: a failed or timed
		// out start may still have left the daemon running.
		l.owed = append(l.owed, a)
		if err := l.dispatch(ctx, PhaseStart, "start", a.Name); err != nil {
			return err
		}
		if err := a.Advance(agent.Running); err != nil {
			return err
		}
	}
	return nil
}

// teardown stops every owed agent once, in declaration order. It is best
// effort: failures and panics are recorded and the next agent is stopped.
func (l *Lifecycle) teardown(ctx context.Context) {
	l.phase = PhaseTeardown
	for _, a := range l.owed {
		if err := l.stop(ctx, a); err != nil {
			l.logger.Warn("teardown stop failed",
				"phase", PhaseTeardown,
				"agent", a.Name,
				"err", err,
			)
			l.outcome.TeardownErrors = append(l.outcome.TeardownErrors, err.Error())
		}
	}
	for _, a := range l.registry.All() {
		a.MarkStopped()
	}
}

func (l *Lifecycle) stop(ctx context.Context, a *agent.Agent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			l.markPanic(r)
			err = fmt.Errorf("stop %s: panic: %v", a.Name, r)
		}
	}()
	return l.dispatch(ctx, PhaseTeardown, "stop", a.Name)
}

// dispatch records and runs one command.
func (l *Lifecycle) dispatch(ctx context.Context, phase Phase, tokens ...string) error {
	l.seq++
	l.outcome.Trace = append(l.outcome.Trace, Step{
		Seq:    l.seq,
		Phase:  phase,
		Tokens: tokens,
	})
	idx := len(l.outcome.Trace) - 1

	l.logger.Debug("dispatch", "phase", phase, "command", shell.Command(tokens))

	start := l.opts.Now()
	err := l.opts.Executor.Execute(ctx, tokens, l.opts.Timeout, l.observe)
	elapsed := l.opts.Now().Sub(start)

	step := &l.outcome.Trace[idx]
	step.Elapsed = elapsed
	switch {
	case err == nil:
		step.Result = ResultOK
	case shell.IsTimeout(err):
		step.Result = ResultTimeout
	default:
		if code, ok := shell.ExitCode(err); ok {
			step.Result = ResultExit
			step.ExitCode = code
		} else {
			step.Result = ResultError
		}
	}
	if err != nil {
		step.Error = err.Error()
		l.logger.Debug("command failed",
			"phase", phase,
			"command", shell.Command(tokens),
			"elapsed", elapsed,
			"err", err,
		)
	}
	return err
}

func (l *Lifecycle) observe(line string) {
	l.transcript.WriteString(line)
	l.transcript.WriteByte('\n')
	if l.opts.Output != nil {
		l.opts.Output(line)
	}
}

// fail records err as the primary failure unless one is already set.
func (l *Lifecycle) fail(err error) {
	o := l.outcome
	if o.Err != nil {
		return
	}
	o.Err = err

	if n := len(o.Trace); n > 0 && o.Trace[n-1].Failed() && o.Trace[n-1].Phase != PhaseTeardown {
		step := o.Trace[n-1]
		o.FailedStep = &step
	}
	if code, ok := shell.ExitCode(err); ok {
		o.ExitCode = code
	}
	o.TimedOut = shell.IsTimeout(err)
}

// markPanic turns a recovered panic into a failure of the step that was in
// flight.
func (l *Lifecycle) markPanic(r any) {
	if n := len(l.outcome.Trace); n > 0 && l.outcome.Trace[n-1].Result == "" {
		step := &l.outcome.Trace[n-1]
		step.Result = ResultPanic
		step.Error = fmt.Sprint(r)
	}
	if l.phase != PhaseTeardown {
		l.fail(fmt.Errorf("panic during %s: %v", l.phase, r))
	}
}

func (l *Lifecycle) finish() {
	o := l.outcome
	l.phase = PhaseDone
	o.Transcript = l.transcript.String()
	o.Elapsed = l.opts.Now().Sub(o.Started)
	if o.Err != nil {
		o.Status = StatusFailed
		o.Error = o.Err.Error()
	} else {
		o.Status = StatusPassed
	}

	attrs := []any{"status", o.Status, "elapsed", o.Elapsed}
	if o.Err != nil {
		attrs = append(attrs, "err", o.Err)
	}
	if len(o.TeardownErrors) > 0 {
		attrs = append(attrs, "teardown_errors", len(o.TeardownErrors))
	}
	l.logger.Info("scenario finished", attrs...)
}
