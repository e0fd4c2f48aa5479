package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/lnharness/internal/harness"
)

// OutcomeRecord is a stored outcome.
type OutcomeRecord struct {
	ID             int64          `json:"id"`
	RunID          string         `json:"run_id"`
	Seq            int            `json:"seq"`
	Group          string         `json:"group"`
	Scenario       string         `json:"scenario"`
	GroupHash      string         `json:"group_hash"`
	TraceHash      string         `json:"trace_hash"`
	Status         harness.Status `json:"status"`
	Error          string         `json:"error,omitempty"`
	ExitCode       int            `json:"exit_code,omitempty"`
	TimedOut       bool           `json:"timed_out,omitempty"`
	TeardownErrors []string       `json:"teardown_errors,omitempty"`
	Transcript     string         `json:"transcript,omitempty"`
	StartedAt      time.Time      `json:"started_at"`
	Elapsed        time.Duration  `json:"elapsed"`
}

// CaseID returns "group/scenario".
func (r OutcomeRecord) CaseID() string {
	return r.Group + "/" + r.Scenario
}

// GetRun returns one run. Returns ErrNotFound if id is unknown.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, started_at, finished_at, filter, driver, passed, failed, total
		FROM runs
		WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return run, err
}

// ListRuns returns up to limit runs, newest first. limit <= 0 returns all.
//
// Returns an empty slice (not nil) if no runs exist.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, filter, driver, passed, failed, total
		FROM runs
		ORDER BY started_at DESC, id COLLATE BINARY DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadOutcomes returns the outcomes of a run in execution order.
//
// Returns an empty slice (not nil) if the run has no outcomes.
func (s *Store) ReadOutcomes(ctx context.Context, runID string) ([]OutcomeRecord, error) {
	return s.queryOutcomes(ctx, `
		SELECT id, run_id, seq, group_name, scenario, group_hash, trace_hash, status, error,
		       exit_code, timed_out, teardown_errors, transcript, started_at, elapsed_ns
		FROM outcomes
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
}

// CaseHistory returns every stored outcome of one (group, scenario) case,
// oldest first.
func (s *Store) CaseHistory(ctx context.Context, group, scenario string) ([]OutcomeRecord, error) {
	return s.queryOutcomes(ctx, `
		SELECT id, run_id, seq, group_name, scenario, group_hash, trace_hash, status, error,
		       exit_code, timed_out, teardown_errors, transcript, started_at, elapsed_ns
		FROM outcomes
		WHERE group_name = ? AND scenario = ?
		ORDER BY started_at ASC, id ASC
	`, group, scenario)
}

func (s *Store) queryOutcomes(ctx context.Context, query string, args ...any) ([]OutcomeRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	out := []OutcomeRecord{}
	for rows.Next() {
		var (
			r               OutcomeRecord
			status, started string
			teardown        string
			timedOut        int
			elapsed         int64
		)
		if err := rows.Scan(
			&r.ID, &r.RunID, &r.Seq, &r.Group, &r.Scenario, &r.GroupHash, &r.TraceHash,
			&status, &r.Error, &r.ExitCode, &timedOut, &teardown, &r.Transcript,
			&started, &elapsed,
		); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		r.Status = harness.Status(status)
		r.TimedOut = timedOut != 0
		r.Elapsed = time.Duration(elapsed)
		if r.StartedAt, err = parseTime(started); err != nil {
			return nil, fmt.Errorf("scan outcome %d: %w", r.ID, err)
		}
		if r.TeardownErrors, err = unmarshalStrings(teardown); err != nil {
			return nil, fmt.Errorf("scan outcome %d: %w", r.ID, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}
	return out, nil
}

// ReadSteps returns the dispatched commands of an outcome in order.
//
// Returns an empty slice (not nil) if none were recorded.
func (s *Store) ReadSteps(ctx context.Context, outcomeID int64) ([]harness.Step, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, phase, command, result, exit_code, elapsed_ns, error
		FROM steps
		WHERE outcome_id = ?
		ORDER BY seq ASC
	`, outcomeID)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	steps := []harness.Step{}
	for rows.Next() {
		var (
			st                     harness.Step
			phase, command, result string
			elapsed                int64
		)
		if err := rows.Scan(&st.Seq, &phase, &command, &result, &st.ExitCode, &elapsed, &st.Error); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		st.Phase = harness.Phase(phase)
		st.Result = harness.StepResult(result)
		st.Elapsed = time.Duration(elapsed)
		if st.Tokens, err = unmarshalStrings(command); err != nil {
			return nil, fmt.Errorf("scan step %d: %w", st.Seq, err)
		}
		steps = append(steps, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate steps: %w", err)
	}
	return steps, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		r                 Run
		started, finished string
	)
	if err := row.Scan(&r.ID, &started, &finished, &r.Filter, &r.Driver, &r.Passed, &r.Failed, &r.Total); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	var err error
	if r.StartedAt, err = parseTime(started); err != nil {
		return Run{}, fmt.Errorf("scan run %s: %w", r.ID, err)
	}
	if r.FinishedAt, err = parseTime(finished); err != nil {
		return Run{}, fmt.Errorf("scan run %s: %w", r.ID, err)
	}
	return r, nil
}
