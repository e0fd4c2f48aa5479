package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lnharness/internal/harness"
	"github.com/roach88/lnharness/internal/shell"
	"github.com/roach88/lnharness/internal/store"
)

var historyT0 = time.Date(2024, time.May, 1, 10, 0, 0, 0, time.UTC)

// seedHistory records two runs: run-1 with a passing and a failing breach
// case, run-2 with a passing breach case.
func seedHistory(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := store.Open(path)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	outcome := func(scenario string, err error) *harness.Outcome {
		o := &harness.Outcome{
			Group:    "ab",
			Scenario: scenario,
			Status:   harness.StatusPassed,
			Trace: []harness.Step{
				{Seq: 1, Phase: harness.PhaseScenario, Tokens: []string{scenario}, Result: harness.ResultOK},
			},
			Started: historyT0,
			Elapsed: 1500 * time.Millisecond,
		}
		if err != nil {
			o.Status = harness.StatusFailed
			o.Err = err
			o.Error = err.Error()
			o.Trace[0].Result = harness.ResultExit
			o.Trace[0].ExitCode = 1
		}
		return o
	}

	require.NoError(t, s.BeginRun(ctx, store.Run{ID: "run-1", StartedAt: historyT0, Filter: "ab/*", Driver: "regtest.sh"}))
	_, err = s.WriteOutcome(ctx, "run-1", 1, "h", outcome("backup", nil))
	require.NoError(t, err)
	_, err = s.WriteOutcome(ctx, "run-1", 2, "h", outcome("breach", &shell.CommandFailure{Tokens: []string{"breach"}, ExitCode: 1}))
	require.NoError(t, err)
	require.NoError(t, s.FinishRun(ctx, "run-1", historyT0.Add(time.Minute), 1, 1))

	require.NoError(t, s.BeginRun(ctx, store.Run{ID: "run-2", StartedAt: historyT0.Add(time.Hour)}))
	_, err = s.WriteOutcome(ctx, "run-2", 1, "h", outcome("breach", nil))
	require.NoError(t, err)
	require.NoError(t, s.FinishRun(ctx, "run-2", historyT0.Add(time.Hour+time.Minute), 1, 0))

	return path
}

func execHistory(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewHistoryCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestHistoryCommand_ListRuns(t *testing.T) {
	db := seedHistory(t)

	out, err := execHistory(t, "text", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "RUN")
	assert.Contains(t, out, "FILTER")
	assert.Less(t, strings.Index(out, "run-2"), strings.Index(out, "run-1"), "newest first")
	assert.Contains(t, out, "ab/*")

	out, err = execHistory(t, "text", "--db", db, "--limit", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "run-2")
	assert.NotContains(t, out, "run-1")
}

func TestHistoryCommand_ListRunsJSON(t *testing.T) {
	db := seedHistory(t)

	out, err := execHistory(t, "json", "--db", db)
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   []store.Run `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "run-2", resp.Data[0].ID)
	assert.Equal(t, 2, resp.Data[1].Total)
}

func TestHistoryCommand_RunDetail(t *testing.T) {
	db := seedHistory(t)

	out, err := execHistory(t, "text", "--db", db, "--run", "run-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Run run-1\n")
	assert.Contains(t, out, "  driver:   regtest.sh\n")
	assert.Contains(t, out, "  summary:  1 passed, 1 failed, 2 total\n")
	assert.Contains(t, out, "ab/backup")
	assert.Contains(t, out, "breach exited with code 1")
}

func TestHistoryCommand_RunDetailJSON(t *testing.T) {
	db := seedHistory(t)

	out, err := execHistory(t, "json", "--db", db, "--run", "run-1")
	require.NoError(t, err)

	var resp struct {
		Data RunDetail `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "run-1", resp.Data.ID)
	require.Len(t, resp.Data.Outcomes, 2)
	assert.Equal(t, harness.StatusFailed, resp.Data.Outcomes[1].Status)
	assert.Equal(t, 1, resp.Data.Outcomes[1].ExitCode)
}

func TestHistoryCommand_Case(t *testing.T) {
	db := seedHistory(t)

	out, err := execHistory(t, "text", "--db", db, "--case", "ab/breach")
	require.NoError(t, err)
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "run-2")
	assert.NotContains(t, out, "ab/backup")
}

func TestHistoryCommand_Errors(t *testing.T) {
	db := seedHistory(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no db", nil, "--db is required"},
		{"missing db", []string{"--db", filepath.Join(t.TempDir(), "nope.db")}, "history database not found"},
		{"unknown run", []string{"--db", db, "--run", "run-9"}, "run not found: run-9"},
		{"bad case", []string{"--db", db, "--case", "breach"}, "want group/scenario"},
		{"run and case", []string{"--db", db, "--run", "run-1", "--case", "ab/breach"}, "mutually exclusive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execHistory(t, "text", tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, out, tt.want)
		})
	}
}
