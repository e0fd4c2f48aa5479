package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lnharness/internal/store"
	"github.com/roach88/lnharness/internal/testutil"
)

// execTest runs the test command with a fake driver unless opts already
// selects one.
func execTest(t *testing.T, opts *TestOptions, args ...string) (string, string, error) {
	t.Helper()
	if opts.RootOptions == nil {
		opts.RootOptions = &RootOptions{Format: "text"}
	}
	opts.now = testutil.NewStepClock(testutil.Epoch, time.Second).Now
	opts.runID = testutil.NewFixedRunID("run-1").Generate

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd := newTestCommand(opts)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(append([]string{"--no-color"}, args...))

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestTestCommand_AllPassed(t *testing.T) {
	fake := testutil.NewFakeExecutor()
	out, _, err := execTest(t, &TestOptions{executor: fake}, "--filter", "unixsockets")
	require.NoError(t, err)

	assert.Contains(t, out, "***** unixsockets/unixsockets ******")
	assert.Contains(t, out, "✓ unixsockets/unixsockets (")
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
	assert.Contains(t, out, "✓ All scenarios passed")
	assert.Equal(t, []string{"new_block", "unixsockets"}, fake.Commands())
}

func TestTestCommand_Failure(t *testing.T) {
	fake := testutil.NewFakeExecutor().FailOn("breach", 1)
	out, _, err := execTest(t, &TestOptions{executor: fake}, "--filter", "ab/breach*")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	assert.Contains(t, out, "breach: failing with 1")
	assert.Contains(t, out, "✗ ab/breach: breach exited with code 1")
	assert.Contains(t, out, "Test Summary: 2 passed, 1 failed, 3 total")
	assert.Contains(t, out, "  failed: ab/breach\n")
	assert.NotContains(t, out, "All scenarios passed")
}

func TestTestCommand_JSON(t *testing.T) {
	fake := testutil.NewFakeExecutor().TimeoutOn("start bob")
	opts := &TestOptions{RootOptions: &RootOptions{Format: "json"}, executor: fake}
	out, stderr, err := execTest(t, opts, "--filter", "ab/backup")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string    `json:"status"`
		RunID  string    `json:"run_id"`
		Error  *CLIError `json:"error"`
		Data   struct {
			Passed   int `json:"passed"`
			Failed   int `json:"failed"`
			Total    int `json:"total"`
			Outcomes []struct {
				Group    string `json:"group"`
				Scenario string `json:"scenario"`
				TimedOut bool   `json:"timed_out"`
			} `json:"outcomes"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "run-1", resp.RunID)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeTestFailed, resp.Error.Code)
	assert.Equal(t, 1, resp.Data.Failed)
	assert.Equal(t, 1, resp.Data.Total)
	require.Len(t, resp.Data.Outcomes, 1)
	assert.True(t, resp.Data.Outcomes[0].TimedOut)

	// Live output goes to stderr in JSON mode.
	assert.Contains(t, stderr, "***** ab/backup ******")
	assert.NotContains(t, out, "*****")
}

func TestTestCommand_NoMatch(t *testing.T) {
	fake := testutil.NewFakeExecutor()
	out, _, err := execTest(t, &TestOptions{executor: fake}, "--filter", "nothing")
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios matched.")
	assert.Empty(t, fake.Calls())
}

func TestTestCommand_CommandErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"bad filter", []string{"--filter", "["}, "invalid filter pattern"},
		{"missing catalog", []string{"--catalog", "/nonexistent/regtest.yaml"}, "catalog file not found"},
		{"bad timeout", []string{"--timeout", "1ns"}, "invalid settings"},
		{"positional args", []string{"breach"}, "unknown command"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := testutil.NewFakeExecutor()
			out, _, err := execTest(t, &TestOptions{executor: fake}, tt.args...)
			require.Error(t, err)
			if tt.name != "positional args" {
				assert.Equal(t, ExitCommandError, GetExitCode(err))
				assert.Contains(t, out, tt.want)
			} else {
				assert.Contains(t, err.Error(), tt.want)
			}
			assert.Empty(t, fake.Calls())
		})
	}
}

func TestTestCommand_DryRun(t *testing.T) {
	out, _, err := execTest(t, &TestOptions{}, "--dry-run", "--filter", "ab/breach")
	require.NoError(t, err)

	assert.Contains(t, out, "+ init alice\n")
	assert.Contains(t, out, "+ setconfig bob lightning_listen localhost:9735\n")
	assert.Contains(t, out, "+ breach\n")
	assert.Contains(t, out, "+ stop bob\n")
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
}

func TestTestCommand_HistoryAndMetrics(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "history.db")
	prom := filepath.Join(dir, "lnharness.prom")

	fake := testutil.NewFakeExecutor().FailOn("backup", 3)
	_, _, err := execTest(t, &TestOptions{executor: fake},
		"--filter", "ab/backup*", "--db", db, "--metrics-file", prom, "--driver", "./regtest.sh")
	require.Error(t, err)

	s, err := store.Open(db)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	run, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "./regtest.sh", run.Driver)
	assert.Equal(t, 1, run.Passed)
	assert.Equal(t, 1, run.Failed)

	data, err := os.ReadFile(prom)
	require.NoError(t, err)
	assert.Contains(t, string(data), `lnharness_scenarios_total{group="ab",status="failed"} 1`)
	assert.Contains(t, string(data), `lnharness_commands_total{result="exit",verb="scenario"} 1`)
}

func TestTestCommand_Trace(t *testing.T) {
	fake := testutil.NewFakeExecutor()
	_, stderr, err := execTest(t, &TestOptions{executor: fake}, "--filter", "unixsockets", "--trace")
	require.NoError(t, err)
	assert.Contains(t, stderr, "scenario unixsockets/unixsockets")
	assert.Contains(t, stderr, "command new_block")
}

func TestTestCommand_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "lnharness.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("timeout: 5s\ncatalog: ../catalog/testdata/regtest.yaml\n"), 0o644))

	t.Run("file values", func(t *testing.T) {
		fake := testutil.NewFakeExecutor()
		opts := &TestOptions{RootOptions: &RootOptions{Format: "text", Config: cfgPath}, executor: fake}
		_, _, err := execTest(t, opts, "--filter", "unixsockets")
		require.NoError(t, err)

		calls := fake.Calls()
		require.NotEmpty(t, calls)
		assert.Equal(t, 5*time.Second, calls[0].Timeout)
	})

	t.Run("flags win", func(t *testing.T) {
		fake := testutil.NewFakeExecutor()
		opts := &TestOptions{RootOptions: &RootOptions{Format: "text", Config: cfgPath}, executor: fake}
		_, _, err := execTest(t, opts, "--filter", "unixsockets", "--timeout", "2m")
		require.NoError(t, err)

		calls := fake.Calls()
		require.NotEmpty(t, calls)
		assert.Equal(t, 2*time.Minute, calls[0].Timeout)
	})

	t.Run("invalid file", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(bad, []byte("timeout: 5\n"), 0o644))

		opts := &TestOptions{RootOptions: &RootOptions{Format: "text", Config: bad}, executor: testutil.NewFakeExecutor()}
		_, _, err := execTest(t, opts)
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})
}

func TestTestHelpText(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	for _, flag := range []string{"--filter", "--catalog", "--driver", "--timeout", "--db", "--metrics-file", "--trace", "--dry-run"} {
		assert.Contains(t, output, flag)
	}
}
