package shell

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CommandFailure reports a driver command that exited with a nonzero status.
type CommandFailure struct {
	Tokens     []string
	ExitCode   int
	Transcript string
}

// Error implements the error interface.
func (e *CommandFailure) Error() string {
	return fmt.Sprintf("%s exited with code %d", Command(e.Tokens), e.ExitCode)
}

// TimeoutFailure reports a driver command that exceeded its allotted time
// and was killed.
type TimeoutFailure struct {
	Tokens     []string
	Elapsed    time.Duration
	Transcript string
}

// Error implements the error interface.
func (e *TimeoutFailure) Error() string {
	return fmt.Sprintf("%s timed out after %s", Command(e.Tokens), e.Elapsed.Round(time.Millisecond))
}

// IsTimeout returns true if err is or wraps a *TimeoutFailure.
func IsTimeout(err error) bool {
	var tf *TimeoutFailure
	return errors.As(err, &tf)
}

// ExitCode extracts the exit code from a *CommandFailure.
// The second result is false for any other error.
func ExitCode(err error) (int, bool) {
	var cf *CommandFailure
	if errors.As(err, &cf) {
		return cf.ExitCode, true
	}
	return 0, false
}

// Transcript returns the output captured by a failed command, if any.
func Transcript(err error) string {
	var cf *CommandFailure
	if errors.As(err, &cf) {
		return cf.Transcript
	}
	var tf *TimeoutFailure
	if errors.As(err, &tf) {
		return tf.Transcript
	}
	return ""
}

// Command renders tokens as a single shell-like line.
// Empty tokens and tokens containing whitespace are quoted so that
// "setconfig alice nostr_relays ''" stays readable in reports.
func Command(tokens []string) string {
	parts := make([]string, len(tokens))
	for i, tok := range tokens {
		if tok == "" || strings.ContainsAny(tok, " \t\n") {
			parts[i] = strconv.Quote(tok)
		} else {
			parts[i] = tok
		}
	}
	return strings.Join(parts, " ")
}
