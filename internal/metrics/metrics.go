// Package metrics counts dispatched driver commands and scenario outcomes
// with Prometheus collectors.
//
// A run has no scrape window, so the registry is written once as a
// node_exporter textfile when the run finishes.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/lnharness/internal/harness"
	"github.com/roach88/lnharness/internal/shell"
)

// protocolVerbs are the driver subcommands of the agent lifecycle. Any
// other first token is a scenario name and is labelled "scenario" to keep
// label cardinality bounded.
var protocolVerbs = map[string]bool{
	"init":      true,
	"setconfig": true,
	"new_block": true,
	"start":     true,
	"stop":      true,
}

// Metrics holds the harness collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	commands         *prometheus.CounterVec
	commandDuration  *prometheus.HistogramVec
	scenarios        *prometheus.CounterVec
	scenarioDuration *prometheus.HistogramVec
	teardownFailures prometheus.Counter
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lnharness_commands_total",
				Help: "Driver commands dispatched, by verb and result",
			},
			[]string{"verb", "result"},
		),
		commandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lnharness_command_duration_seconds",
				Help:    "Duration of driver commands",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"verb"},
		),
		scenarios: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lnharness_scenarios_total",
				Help: "Scenario executions, by group and status",
			},
			[]string{"group", "status"},
		),
		scenarioDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lnharness_scenario_duration_seconds",
				Help:    "Duration of full scenario lifecycles, teardown included",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"group"},
		),
		teardownFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lnharness_teardown_failures_total",
			Help: "Stop commands that failed during teardown",
		}),
	}
	m.registry.MustRegister(
		m.commands,
		m.commandDuration,
		m.scenarios,
		m.scenarioDuration,
		m.teardownFailures,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Verb returns the command label for tokens.
func Verb(tokens []string) string {
	if len(tokens) == 0 {
		return "none"
	}
	if protocolVerbs[tokens[0]] {
		return tokens[0]
	}
	return "scenario"
}

// Result returns the result label for a command error.
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case shell.IsTimeout(err):
		return "timeout"
	default:
		if _, ok := shell.ExitCode(err); ok {
			return "exit"
		}
		return "error"
	}
}

// Before implements shell.Hook.
func (m *Metrics) Before(ctx context.Context, _ []string) context.Context {
	return ctx
}

// After implements shell.Hook.
func (m *Metrics) After(_ context.Context, tokens []string, elapsed time.Duration, err error) {
	verb := Verb(tokens)
	m.commands.WithLabelValues(verb, Result(err)).Inc()
	m.commandDuration.WithLabelValues(verb).Observe(elapsed.Seconds())
}

// ObserveOutcome records a finished scenario.
func (m *Metrics) ObserveOutcome(o *harness.Outcome) {
	m.scenarios.WithLabelValues(o.Group, string(o.Status)).Inc()
	m.scenarioDuration.WithLabelValues(o.Group).Observe(o.Elapsed.Seconds())
	m.teardownFailures.Add(float64(len(o.TeardownErrors)))
}

// WriteTextfile writes the registry in the text exposition format,
// atomically replacing path.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
