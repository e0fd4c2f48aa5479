package agent

import "fmt"

// State is an agent's position in the scenario lifecycle.
type State int

const (
	Uninitialized State = iota
	Configured
	Funded
	Running
	Stopped
)

// String returns the upper-case state name used in logs and traces.
func (s State) String() string {
	switch s {
	case Uninitialized:
		return "UNINITIALIZED"
	case Configured:
		return "CONFIGURED"
	case Funded:
		return "FUNDED"
	case Running:
		return "RUNNING"
	case Stopped:
		return "STOPPED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ConfigEntry is a single setconfig operation for one agent.
// Values are opaque: an empty string or a quoted empty string ("''")
// is passed to the driver verbatim.
type ConfigEntry struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// AgentConfig is the ordered configuration declared for one agent.
type AgentConfig struct {
	Agent   string        `json:"agent"`
	Entries []ConfigEntry `json:"entries"`
}

// Clone returns a deep copy of the configuration.
func (c AgentConfig) Clone() AgentConfig {
	return AgentConfig{
		Agent:   c.Agent,
		Entries: append([]ConfigEntry(nil), c.Entries...),
	}
}

// Agent is one participant of a scenario execution.
// It is owned by a single lifecycle and never shared across runs.
type Agent struct {
	Name   string
	Config []ConfigEntry

	state State
}

// New creates an agent in the UNINITIALIZED state.
func New(name string, config []ConfigEntry) *Agent {
	return &Agent{
		Name:   name,
		Config: append([]ConfigEntry(nil), config...),
		state:  Uninitialized,
	}
}

// State returns the agent's current lifecycle state.
func (a *Agent) State() State {
	return a.state
}

// Advance moves the agent to the given state.
//
// Only the immediate successor is accepted, except for Stopped which is
// reachable from every state other than Stopped itself.
func (a *Agent) Advance(to State) error {
	if !canAdvance(a.state, to) {
		return &TransitionError{Agent: a.Name, From: a.state, To: to}
	}
	a.state = to
	return nil
}

// MarkStopped moves the agent to Stopped from any state. It reports
// whether the state changed.
func (a *Agent) MarkStopped() bool {
	if a.state == Stopped {
		return false
	}
	a.state = Stopped
	return true
}

func canAdvance(from, to State) bool {
	if from == Stopped {
		return false
	}
	if to == Stopped {
		return true
	}
	return to == from+1
}

// Expand returns the agent's configuration entries in declaration order.
//
// Entries are neither reordered, deduplicated nor validated; later entries
// may depend on earlier ones (a plugin must be enabled before its port is
// set). The returned slice is a copy.
func Expand(a *Agent) []ConfigEntry {
	return append([]ConfigEntry(nil), a.Config...)
}
