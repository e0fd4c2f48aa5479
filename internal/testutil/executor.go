package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/roach88/lnharness/internal/shell"
)

// Call is one command received by a FakeExecutor.
type Call struct {
	Tokens  []string
	Timeout time.Duration
}

// Command renders the call the way shell.Command does.
func (c Call) Command() string {
	return shell.Command(c.Tokens)
}

// Script describes how a FakeExecutor answers one command.
type Script struct {
	// Lines are forwarded to the observer before the command completes.
	Lines []string

	// ExitCode, when nonzero, fails the command with *shell.CommandFailure.
	ExitCode int

	// Timeout fails the command with *shell.TimeoutFailure.
	Timeout bool

	// Panic, when non-nil, is raised after Lines are emitted.
	Panic any

	// Err is returned as-is when set and no other failure applies.
	Err error

	// Hook runs when the command is dispatched, before any output.
	Hook func()
}

// FakeExecutor implements shell.Executor for tests.
//
// Every call is recorded. Commands are matched by their rendered form
// ("setconfig bob lightning_listen localhost:9735"); unmatched commands
// succeed silently.
type FakeExecutor struct {
	mu      sync.Mutex
	calls   []Call
	scripts map[string]Script
}

// NewFakeExecutor creates an executor on which every command succeeds.
func NewFakeExecutor() *FakeExecutor {
	return &FakeExecutor{scripts: make(map[string]Script)}
}

// On sets the script for a command.
func (f *FakeExecutor) On(command string, s Script) *FakeExecutor {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[command] = s
	return f
}

// FailOn makes command exit with code.
func (f *FakeExecutor) FailOn(command string, code int) *FakeExecutor {
	return f.On(command, Script{
		Lines:    []string{fmt.Sprintf("%s: failing with %d", command, code)},
		ExitCode: code,
	})
}

// TimeoutOn makes command time out.
func (f *FakeExecutor) TimeoutOn(command string) *FakeExecutor {
	return f.On(command, Script{Timeout: true})
}

// PanicOn makes the executor panic with v while dispatching command.
func (f *FakeExecutor) PanicOn(command string, v any) *FakeExecutor {
	return f.On(command, Script{Panic: v})
}

// Execute records the call and plays the matching script.
func (f *FakeExecutor) Execute(ctx context.Context, tokens []string, timeout time.Duration, observe shell.LineObserver) error {
	call := Call{Tokens: append([]string(nil), tokens...), Timeout: timeout}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	s := f.scripts[call.Command()]
	f.mu.Unlock()

	if s.Hook != nil {
		s.Hook()
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", call.Command(), err)
	}

	var transcript strings.Builder
	for _, line := range s.Lines {
		transcript.WriteString(line)
		transcript.WriteByte('\n')
		if observe != nil {
			observe(line)
		}
	}

	switch {
	case s.Panic != nil:
		panic(s.Panic)
	case s.Timeout:
		if timeout <= 0 {
			timeout = shell.DefaultTimeout
		}
		return &shell.TimeoutFailure{Tokens: call.Tokens, Elapsed: timeout, Transcript: transcript.String()}
	case s.ExitCode != 0:
		return &shell.CommandFailure{Tokens: call.Tokens, ExitCode: s.ExitCode, Transcript: transcript.String()}
	default:
		return s.Err
	}
}

// Calls returns a copy of all recorded calls in dispatch order.
func (f *FakeExecutor) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Commands returns the rendered form of every recorded call.
func (f *FakeExecutor) Commands() []string {
	calls := f.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Command()
	}
	return out
}

// Reset forgets recorded calls but keeps scripts.
func (f *FakeExecutor) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}
