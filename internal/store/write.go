package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/lnharness/internal/harness"
)

// Run is one invocation of the test command.
type Run struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
	Filter     string    `json:"filter,omitempty"`
	Driver     string    `json:"driver,omitempty"`
	Passed     int       `json:"passed"`
	Failed     int       `json:"failed"`
	Total      int       `json:"total"`
}

// BeginRun inserts a run record with zero counts.
func (s *Store) BeginRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		return fmt.Errorf("begin run: id is required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, filter, driver)
		VALUES (?, ?, ?, ?)
	`,
		run.ID,
		formatTime(run.StartedAt),
		run.Filter,
		run.Driver,
	)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// FinishRun records the finish time and the aggregate counts of a run.
func (s *Store) FinishRun(ctx context.Context, id string, finishedAt time.Time, passed, failed int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET finished_at = ?, passed = ?, failed = ?, total = ?
		WHERE id = ?
	`,
		formatTime(finishedAt),
		passed,
		failed,
		passed+failed,
		id,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run %s: %w", id, ErrNotFound)
	}
	return nil
}

// WriteOutcome stores one outcome and its dispatched commands in a single
// transaction. seq is the outcome's position within the run; groupHash is
// the fingerprint of the group descriptor the outcome ran against.
//
// Returns the outcome's row id.
func (s *Store) WriteOutcome(ctx context.Context, runID string, seq int, groupHash string, o *harness.Outcome) (int64, error) {
	traceHash, err := harness.NewTraceSnapshot(o).Fingerprint()
	if err != nil {
		return 0, fmt.Errorf("write outcome: %w", err)
	}
	teardown, err := marshalStrings(o.TeardownErrors)
	if err != nil {
		return 0, fmt.Errorf("write outcome: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("write outcome: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after Commit

	res, err := tx.ExecContext(ctx, `
		INSERT INTO outcomes
		(run_id, seq, group_name, scenario, group_hash, trace_hash, status, error,
		 exit_code, timed_out, teardown_errors, transcript, started_at, elapsed_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		runID,
		seq,
		o.Group,
		o.Scenario,
		groupHash,
		traceHash,
		string(o.Status),
		o.Error,
		o.ExitCode,
		boolToInt(o.TimedOut),
		teardown,
		o.Transcript,
		formatTime(o.Started),
		int64(o.Elapsed),
	)
	if err != nil {
		return 0, fmt.Errorf("write outcome: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("write outcome: last insert id: %w", err)
	}

	for _, st := range o.Trace {
		command, err := marshalStrings(st.Tokens)
		if err != nil {
			return 0, fmt.Errorf("write outcome: step %d: %w", st.Seq, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO steps (outcome_id, seq, phase, command, result, exit_code, elapsed_ns, error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			id,
			st.Seq,
			string(st.Phase),
			command,
			string(st.Result),
			st.ExitCode,
			int64(st.Elapsed),
			st.Error,
		)
		if err != nil {
			return 0, fmt.Errorf("write outcome: step %d: %w", st.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("write outcome: commit: %w", err)
	}
	return id, nil
}
