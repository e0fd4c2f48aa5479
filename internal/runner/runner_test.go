package runner

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lnharness/internal/agent"
	"github.com/roach88/lnharness/internal/catalog"
	"github.com/roach88/lnharness/internal/metrics"
	"github.com/roach88/lnharness/internal/store"
	"github.com/roach88/lnharness/internal/testutil"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c := catalog.New()
	require.NoError(t, c.Register(catalog.Group{Name: "smoke", Scenarios: []string{"ping"}}))
	require.NoError(t, c.Register(catalog.Group{
		Name:   "ab",
		Agents: []string{"alice", "bob"},
		Config: []agent.AgentConfig{
			{Agent: "bob", Entries: []agent.ConfigEntry{{Key: "lightning_listen", Value: "localhost:9735"}}},
		},
		Scenarios: []string{"breach", "backup"},
	}))
	return c
}

func newRunner(t *testing.T, exec *testutil.FakeExecutor, opts Options) (*Runner, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	if opts.Catalog == nil {
		opts.Catalog = testCatalog(t)
	}
	opts.Executor = exec
	opts.Out = &out
	opts.Plain = true
	opts.Now = testutil.NewStepClock(testutil.Epoch, time.Second).Now
	opts.NewRunID = testutil.NewFixedRunID("run-1").Generate

	r, err := New(opts)
	require.NoError(t, err)
	return r, &out
}

func TestRun_AllPassed(t *testing.T) {
	exec := testutil.NewFakeExecutor()
	r, out := newRunner(t, exec, Options{})

	report, err := r.Run(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, "run-1", report.RunID)
	assert.True(t, report.OK())
	assert.Equal(t, 3, report.Passed)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, 3, report.Total)
	assert.Empty(t, report.FailedCases())
	require.Len(t, report.Outcomes, 3)
	assert.Equal(t, "smoke/ping", report.Outcomes[0].ID())
	assert.Equal(t, "ab/breach", report.Outcomes[1].ID())
	assert.Equal(t, "ab/backup", report.Outcomes[2].ID())

	text := out.String()
	assert.Contains(t, text, "***** smoke/ping ******\n")
	assert.Contains(t, text, "***** ab/backup ******\n")
	assert.Contains(t, text, "✓ ab/breach (")
	assert.NotContains(t, text, "\x1b[")
}

func TestRun_FreshLifecyclePerCase(t *testing.T) {
	exec := testutil.NewFakeExecutor()
	r, _ := newRunner(t, exec, Options{})

	_, err := r.Run(context.Background(), "ab/*")
	require.NoError(t, err)

	perCase := []string{
		"init alice",
		"init bob",
		"setconfig bob lightning_listen localhost:9735",
		"new_block",
		"start alice",
		"start bob",
	}
	var want []string
	for _, scenario := range []string{"breach", "backup"} {
		want = append(want, perCase...)
		want = append(want, scenario, "stop alice", "stop bob")
	}
	assert.Equal(t, want, exec.Commands())
}

func TestRun_FailureDoesNotStopLaterCases(t *testing.T) {
	exec := testutil.NewFakeExecutor().FailOn("breach", 1)
	r, out := newRunner(t, exec, Options{})

	report, err := r.Run(context.Background(), "")
	require.NoError(t, err)

	assert.False(t, report.OK())
	assert.Equal(t, 2, report.Passed)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, []string{"ab/breach"}, report.FailedCases())
	assert.True(t, report.Outcomes[2].Passed())

	text := out.String()
	assert.Contains(t, text, "breach: failing with 1\n")
	assert.Contains(t, text, "✗ ab/breach: breach exited with code 1\n")
}

func TestRun_TeardownNotes(t *testing.T) {
	exec := testutil.NewFakeExecutor().FailOn("stop bob", 5)
	r, out := newRunner(t, exec, Options{})

	report, err := r.Run(context.Background(), "ab/breach")
	require.NoError(t, err)

	require.Len(t, report.Outcomes, 1)
	assert.True(t, report.OK(), "teardown failures do not fail the case")
	assert.Contains(t, out.String(), "  teardown: stop bob exited with code 5\n")
}

func TestRun_Filter(t *testing.T) {
	tests := []struct {
		filter string
		want   []string
	}{
		{"", []string{"smoke/ping", "ab/breach", "ab/backup"}},
		{"ab", []string{"ab/breach", "ab/backup"}},
		{"ab/back*", []string{"ab/backup"}},
		{"nothing", nil},
	}

	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			r, _ := newRunner(t, testutil.NewFakeExecutor(), Options{})
			report, err := r.Run(context.Background(), tt.filter)
			require.NoError(t, err)

			var got []string
			for _, o := range report.Outcomes {
				got = append(got, o.ID())
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, len(tt.want), report.Total)
		})
	}
}

func TestRun_InvalidFilter(t *testing.T) {
	exec := testutil.NewFakeExecutor()
	r, _ := newRunner(t, exec, Options{})

	_, err := r.Run(context.Background(), "[")
	require.Error(t, err)
	assert.Empty(t, exec.Calls())
}

func TestRun_CancelStopsScheduling(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	exec := testutil.NewFakeExecutor().On("breach", testutil.Script{Hook: cancel})
	r, _ := newRunner(t, exec, Options{})

	report, err := r.Run(ctx, "ab")
	require.NoError(t, err)

	assert.True(t, report.Cancelled)
	assert.False(t, report.OK())
	require.Len(t, report.Outcomes, 1)
	assert.False(t, report.Outcomes[0].Passed())

	cmds := exec.Commands()
	assert.Equal(t, []string{"stop alice", "stop bob"}, cmds[len(cmds)-2:], "the case in flight still tears down")
	assert.NotContains(t, cmds, "backup")
}

func TestRun_RecordsHistory(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	exec := testutil.NewFakeExecutor().FailOn("backup", 2)
	r, _ := newRunner(t, exec, Options{Store: s, Driver: "./regtest.sh"})

	ctx := context.Background()
	_, err = r.Run(ctx, "ab")
	require.NoError(t, err)

	run, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "ab", run.Filter)
	assert.Equal(t, "./regtest.sh", run.Driver)
	assert.Equal(t, 1, run.Passed)
	assert.Equal(t, 1, run.Failed)
	assert.Equal(t, 2, run.Total)
	assert.False(t, run.FinishedAt.IsZero())

	records, err := s.ReadOutcomes(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "ab/breach", records[0].CaseID())
	assert.Equal(t, "ab/backup", records[1].CaseID())
	assert.Equal(t, 2, records[1].ExitCode)
	assert.Equal(t, records[0].GroupHash, records[1].GroupHash)

	steps, err := s.ReadSteps(ctx, records[1].ID)
	require.NoError(t, err)
	assert.Len(t, steps, 9)
}

func TestRun_ObservesMetrics(t *testing.T) {
	m := metrics.New()
	exec := testutil.NewFakeExecutor().FailOn("breach", 1)
	r, _ := newRunner(t, exec, Options{Metrics: m})

	_, err := r.Run(context.Background(), "")
	require.NoError(t, err)

	// smoke/passed, ab/passed, ab/failed
	n, err := promtest.GatherAndCount(m.Registry(), "lnharness_scenarios_total")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestNew_RequiresCatalogAndExecutor(t *testing.T) {
	_, err := New(Options{Executor: testutil.NewFakeExecutor()})
	assert.Error(t, err)

	_, err = New(Options{Catalog: catalog.New()})
	assert.Error(t, err)
}

func TestNew_DefaultRunID(t *testing.T) {
	r, err := New(Options{Catalog: catalog.New(), Executor: testutil.NewFakeExecutor()})
	require.NoError(t, err)

	report, err := r.Run(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, report.RunID, 36)
	assert.Empty(t, report.Outcomes)
	assert.True(t, report.OK())
}
