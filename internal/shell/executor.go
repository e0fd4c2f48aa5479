package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout bounds a single driver command when the caller passes a
// zero or negative timeout.
const DefaultTimeout = 30 * time.Second

// DefaultDriverPath is the regtest driver script, relative to the working
// directory.
const DefaultDriverPath = "tests/regtest/regtest.sh"

// defaultWaitDelay is how long Wait keeps reading after the process exits
// while a leaked child still holds the output pipe open.
const defaultWaitDelay = 2 * time.Second

// maxLineSize caps a single transcript line.
const maxLineSize = 1 << 20

// LineObserver receives each output line of a running command, without the
// trailing newline, in the order it was produced.
type LineObserver func(line string)

// Executor dispatches one driver command and blocks until it finishes.
//
// Implementations return nil on exit status 0, a *CommandFailure on a
// nonzero exit, a *TimeoutFailure when timeout elapsed, or a wrapped error
// when the command could not be started. observe may be nil.
type Executor interface {
	Execute(ctx context.Context, tokens []string, timeout time.Duration, observe LineObserver) error
}

// Driver executes commands as "<Path> tokens...".
type Driver struct {
	// Path is the driver executable.
	Path string

	// Dir is the working directory of spawned processes. Empty means the
	// current directory.
	Dir string

	// Env is appended to the inherited environment.
	Env []string

	// WaitDelay overrides the grace period for pipes held open by
	// orphaned children. Zero means defaultWaitDelay.
	WaitDelay time.Duration
}

// NewDriver creates a Driver for the given executable path.
// An empty path selects DefaultDriverPath.
func NewDriver(path string) *Driver {
	if path == "" {
		path = DefaultDriverPath
	}
	return &Driver{Path: path}
}

// Execute runs the driver with tokens as arguments.
//
// Output from stdout and stderr is merged and forwarded line by line to
// observe while the process runs. The call blocks until the process exits
// or timeout elapses; in the latter case the process group is killed and a
// *TimeoutFailure is returned. Output of processes left running after a
// successful exit is read for at most WaitDelay.
func (d *Driver) Execute(ctx context.Context, tokens []string, timeout time.Duration, observe LineObserver) error {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, d.Path, tokens...)
	cmd.Dir = d.Dir
	if len(d.Env) > 0 {
		cmd.Env = append(cmd.Environ(), d.Env...)
	}
	cmd.WaitDelay = d.WaitDelay
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = defaultWaitDelay
	}
	// The driver and everything it spawns share a process group, so a
	// timeout or cancellation kills the whole tree.
	killProcessGroup(cmd)

	// Same writer for both streams: os/exec serialises the writes.
	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	start := time.Now()
	if err := cmd.Start(); err != nil {
		pw.Close()
		pr.Close()
		return fmt.Errorf("start %s: %w", Command(tokens), err)
	}

	waitErr := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		pw.Close()
		waitErr <- err
	}()

	var transcript strings.Builder
	scanner := bufio.NewScanner(pr)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := scanner.Text()
		transcript.WriteString(line)
		transcript.WriteByte('\n')
		if observe != nil {
			observe(line)
		}
	}
	if scanner.Err() != nil {
		// Keep the pipe drained so the process is never blocked on write.
		_, _ = io.Copy(io.Discard, pr)
	}

	err := <-waitErr
	elapsed := time.Since(start)
	if err == nil {
		return nil
	}

	// A daemon launched by the driver may keep the output pipe open after
	// the driver itself exited 0. That is a successful command.
	if errors.Is(err, exec.ErrWaitDelay) && cmd.ProcessState != nil && cmd.ProcessState.Success() {
		return nil
	}

	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w", Command(tokens), ctx.Err())
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return &TimeoutFailure{
			Tokens:     append([]string(nil), tokens...),
			Elapsed:    elapsed,
			Transcript: transcript.String(),
		}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &CommandFailure{
			Tokens:     append([]string(nil), tokens...),
			ExitCode:   exitErr.ExitCode(),
			Transcript: transcript.String(),
		}
	}
	return fmt.Errorf("wait %s: %w", Command(tokens), err)
}
