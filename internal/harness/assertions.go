package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/lnharness/internal/agent"
	"github.com/roach88/lnharness/internal/catalog"
	"github.com/roach88/lnharness/internal/shell"
)

// AssertionError is returned when a trace violates the dispatch protocol.
// It includes the full trace to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	Trace    []Step // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, s := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %-9s %s (%s)\n", s.Seq, s.Phase, s.Command(), s.Result)
	}
	return buf.String()
}

// SetupCommands returns the commands a successful execution dispatches
// before teardown: inits, setconfigs, new_block, starts and the scenario.
func SetupCommands(group catalog.Group, scenario string) []string {
	var out []string
	for _, a := range group.Agents {
		out = append(out, shell.Command([]string{"init", a}))
	}
	for _, a := range group.Agents {
		for _, e := range group.ConfigFor(a) {
			out = append(out, shell.Command([]string{"setconfig", a, e.Key, e.Value}))
		}
	}
	out = append(out, "new_block")
	for _, a := range group.Agents {
		out = append(out, shell.Command([]string{"start", a}))
	}
	return append(out, shell.Command([]string{scenario}))
}

// ExpectedCommands returns the full command sequence of a successful
// execution, teardown included.
func ExpectedCommands(group catalog.Group, scenario string) []string {
	out := SetupCommands(group, scenario)
	for _, a := range group.Agents {
		out = append(out, shell.Command([]string{"stop", a}))
	}
	return out
}

// CheckTrace verifies that an outcome's trace follows the dispatch
// protocol for its group:
//
//   - the setup commands form a prefix of SetupCommands, in order
//   - setup stops at the first failing command, or completes on success
//   - teardown issues exactly one stop per agent whose start was dispatched,
//     in declaration order, and no stop for any other agent
func CheckTrace(group catalog.Group, o *Outcome) error {
	want := SetupCommands(group, o.Scenario)

	var setup, teardown []Step
	for _, s := range o.Trace {
		if s.Phase == PhaseTeardown {
			teardown = append(teardown, s)
			continue
		}
		if len(teardown) > 0 {
			return &AssertionError{
				Type:     "teardown_last",
				Expected: "no command after teardown started",
				Actual:   s.Command(),
				Trace:    o.Trace,
			}
		}
		setup = append(setup, s)
	}

	if len(setup) > len(want) {
		return &AssertionError{
			Type:     "setup_order",
			Expected: fmt.Sprintf("at most %d setup commands", len(want)),
			Actual:   fmt.Sprintf("%d setup commands", len(setup)),
			Trace:    o.Trace,
		}
	}
	for i, s := range setup {
		if s.Command() != want[i] {
			return &AssertionError{
				Type:     "setup_order",
				Expected: fmt.Sprintf("command %d to be %q", i+1, want[i]),
				Actual:   fmt.Sprintf("%q", s.Command()),
				Trace:    o.Trace,
			}
		}
		if s.Failed() && i != len(setup)-1 {
			return &AssertionError{
				Type:     "abort_on_failure",
				Expected: fmt.Sprintf("setup to stop after failing %q", s.Command()),
				Actual:   fmt.Sprintf("%d further commands", len(setup)-1-i),
				Trace:    o.Trace,
			}
		}
	}
	if o.Passed() && len(setup) != len(want) {
		return &AssertionError{
			Type:     "complete_setup",
			Expected: fmt.Sprintf("%d setup commands for a passing outcome", len(want)),
			Actual:   fmt.Sprintf("%d", len(setup)),
			Trace:    o.Trace,
		}
	}

	started := make(map[string]bool)
	for _, s := range setup {
		if s.Phase == PhaseStart && len(s.Tokens) == 2 {
			started[s.Tokens[1]] = true
		}
	}
	var stops []string
	for _, a := range group.Agents {
		if started[a] {
			stops = append(stops, shell.Command([]string{"stop", a}))
		}
	}
	got := make([]string, len(teardown))
	for i, s := range teardown {
		got[i] = s.Command()
	}
	if strings.Join(got, "\n") != strings.Join(stops, "\n") {
		return &AssertionError{
			Type:     "teardown",
			Expected: fmt.Sprintf("%v", stops),
			Actual:   fmt.Sprintf("%v", got),
			Trace:    o.Trace,
		}
	}
	return nil
}

// CheckStates verifies that every agent of a finished lifecycle is STOPPED.
func CheckStates(agents []*agent.Agent) error {
	for _, a := range agents {
		if a.State() != agent.Stopped {
			return &AssertionError{
				Type:     "final_state",
				Expected: fmt.Sprintf("%s to be %s", a.Name, agent.Stopped),
				Actual:   a.State().String(),
			}
		}
	}
	return nil
}
