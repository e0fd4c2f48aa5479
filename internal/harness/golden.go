package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/lnharness/internal/trace"
)

// TraceSnapshot captures the deterministic part of an outcome.
// Elapsed times, start stamps and transcripts are left out.
type TraceSnapshot struct {
	Group          string
	Scenario       string
	Status         Status
	FailedStep     *Step
	Trace          []Step
	TeardownErrors []string
}

// NewTraceSnapshot builds a snapshot of o.
func NewTraceSnapshot(o *Outcome) TraceSnapshot {
	return TraceSnapshot{
		Group:          o.Group,
		Scenario:       o.Scenario,
		Status:         o.Status,
		FailedStep:     o.FailedStep,
		Trace:          o.Trace,
		TeardownErrors: o.TeardownErrors,
	}
}

func stepMap(s Step) map[string]any {
	m := map[string]any{
		"seq":     s.Seq,
		"phase":   string(s.Phase),
		"command": append([]string{}, s.Tokens...),
		"result":  string(s.Result),
	}
	if s.Result == ResultExit {
		m["exit_code"] = s.ExitCode
	}
	return m
}

// toCanonicalMap converts the snapshot to the value form accepted by
// trace.MarshalCanonical.
func (s TraceSnapshot) toCanonicalMap() map[string]any {
	steps := make([]any, len(s.Trace))
	for i, st := range s.Trace {
		steps[i] = stepMap(st)
	}

	m := map[string]any{
		"group":    s.Group,
		"scenario": s.Scenario,
		"status":   string(s.Status),
		"trace":    steps,
	}
	if s.FailedStep != nil {
		m["failed_seq"] = s.FailedStep.Seq
	}
	if len(s.TeardownErrors) > 0 {
		m["teardown_errors"] = append([]string{}, s.TeardownErrors...)
	}
	return m
}

// MarshalCanonical returns the snapshot as canonical JSON.
func (s TraceSnapshot) MarshalCanonical() ([]byte, error) {
	return trace.MarshalCanonical(s.toCanonicalMap())
}

// Fingerprint returns the content hash of the snapshot.
func (s TraceSnapshot) Fingerprint() (string, error) {
	return trace.Fingerprint(trace.DomainTrace, s.toCanonicalMap())
}

// AssertGolden compares the outcome's trace against
// testdata/golden/<name>.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func AssertGolden(t *testing.T, name string, o *Outcome) error {
	t.Helper()

	data, err := NewTraceSnapshot(o).MarshalCanonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
