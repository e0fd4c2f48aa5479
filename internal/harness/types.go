package harness

import (
	"time"

	"github.com/roach88/lnharness/internal/shell"
)

// Phase names the lifecycle stage a command was dispatched in.
type Phase string

const (
	PhaseInit      Phase = "init"
	PhaseConfigure Phase = "configure"
	PhaseFund      Phase = "fund"
	PhaseStart     Phase = "start"
	PhaseScenario  Phase = "scenario"
	PhaseTeardown  Phase = "teardown"
	PhaseDone      Phase = "done"
)

// Status is the overall result of a scenario execution.
type Status string

const (
	StatusPassed Status = "passed"
	StatusFailed Status = "failed"
)

// StepResult classifies how one dispatched command ended.
type StepResult string

const (
	ResultOK      StepResult = "ok"
	ResultExit    StepResult = "exit"    // nonzero exit status
	ResultTimeout StepResult = "timeout" // killed after the per-command timeout
	ResultError   StepResult = "error"   // could not be started or was cancelled
	ResultPanic   StepResult = "panic"   // executor panicked
)

// Step is one dispatched driver command.
type Step struct {
	Seq      int64         `json:"seq"`
	Phase    Phase         `json:"phase"`
	Tokens   []string      `json:"tokens"`
	Result   StepResult    `json:"result"`
	ExitCode int           `json:"exit_code,omitempty"`
	Elapsed  time.Duration `json:"elapsed"`
	Error    string        `json:"error,omitempty"`
}

// Command renders the step's tokens as a single line.
func (s Step) Command() string {
	return shell.Command(s.Tokens)
}

// Failed reports whether the command did not exit cleanly.
func (s Step) Failed() bool {
	return s.Result != ResultOK
}

// Outcome is the result of one scenario execution.
type Outcome struct {
	Group    string `json:"group"`
	Scenario string `json:"scenario"`
	Status   Status `json:"status"`

	// Err is the primary failure. Teardown problems never replace it.
	Err   error  `json:"-"`
	Error string `json:"error,omitempty"`

	// FailedStep is the command that caused the primary failure, if the
	// failure came from a dispatched command.
	FailedStep *Step `json:"failed_step,omitempty"`
	ExitCode   int   `json:"exit_code,omitempty"`
	TimedOut   bool  `json:"timed_out,omitempty"`

	// Trace lists every dispatched command, teardown included.
	Trace []Step `json:"trace"`

	// Transcript is the merged output of every command, in order.
	Transcript string `json:"transcript,omitempty"`

	// TeardownErrors are stop failures, logged and kept for reporting.
	TeardownErrors []string `json:"teardown_errors,omitempty"`

	Started time.Time     `json:"started"`
	Elapsed time.Duration `json:"elapsed"`
}

// ID returns "group/scenario".
func (o *Outcome) ID() string {
	return o.Group + "/" + o.Scenario
}

// Passed reports whether every setup step and the scenario command
// succeeded.
func (o *Outcome) Passed() bool {
	return o.Status == StatusPassed
}

// Commands returns the rendered form of every dispatched command.
func (o *Outcome) Commands() []string {
	out := make([]string, len(o.Trace))
	for i, s := range o.Trace {
		out[i] = s.Command()
	}
	return out
}

// Reason is a one-line description of the result, naming the failing
// command and its exit code or timeout.
func (o *Outcome) Reason() string {
	if o.Passed() {
		return "passed"
	}
	if o.Err != nil {
		return o.Err.Error()
	}
	return o.Error
}
