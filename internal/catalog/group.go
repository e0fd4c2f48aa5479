package catalog

import (
	"github.com/roach88/lnharness/internal/agent"
	"github.com/roach88/lnharness/internal/trace"
)

// Group describes a set of agents and the scenarios that run against them.
type Group struct {
	// Name uniquely identifies the group within a catalog.
	Name string `json:"name"`

	// Description is shown by the list command.
	Description string `json:"description,omitempty"`

	// Agents is the declared agent set, in dispatch order.
	Agents []string `json:"agents"`

	// Config holds per-agent configuration overrides in application order.
	Config []agent.AgentConfig `json:"config,omitempty"`

	// Scenarios are the driver subcommands runnable once the group is live.
	Scenarios []string `json:"scenarios"`

	// Base names the group this one was derived from, if any.
	Base string `json:"base,omitempty"`
}

// Clone returns a deep copy of the group.
func (g Group) Clone() Group {
	out := g
	out.Agents = append([]string(nil), g.Agents...)
	out.Scenarios = append([]string(nil), g.Scenarios...)
	out.Config = make([]agent.AgentConfig, len(g.Config))
	for i, c := range g.Config {
		out.Config[i] = c.Clone()
	}
	return out
}

// ConfigFor returns the ordered configuration entries of one agent.
func (g Group) ConfigFor(name string) []agent.ConfigEntry {
	var entries []agent.ConfigEntry
	for _, c := range g.Config {
		if c.Agent == name {
			entries = append(entries, c.Entries...)
		}
	}
	return entries
}

// Validate checks the group definition without registering it.
// All problems are reported as *agent.DefinitionError.
func (g Group) Validate() error {
	if g.Name == "" {
		return &agent.DefinitionError{Message: "group name is required"}
	}
	if len(g.Scenarios) == 0 {
		return &agent.DefinitionError{Group: g.Name, Message: "at least one scenario is required"}
	}
	seen := make(map[string]bool, len(g.Scenarios))
	for _, s := range g.Scenarios {
		if s == "" {
			return &agent.DefinitionError{Group: g.Name, Message: "scenario name must not be empty"}
		}
		if seen[s] {
			return &agent.DefinitionError{Group: g.Name, Message: "scenario " + s + " listed more than once"}
		}
		seen[s] = true
	}
	if _, err := agent.NewRegistry(g.Agents, g.Config); err != nil {
		return withGroup(err, g.Name)
	}
	return nil
}

// Fingerprint returns a content hash of the group's agents, configuration
// and scenarios. Description and Base do not contribute.
func (g Group) Fingerprint() (string, error) {
	config := make([]any, 0, len(g.Config))
	for _, c := range g.Config {
		entries := make([]any, 0, len(c.Entries))
		for _, e := range c.Entries {
			entries = append(entries, []string{e.Key, e.Value})
		}
		config = append(config, map[string]any{"agent": c.Agent, "entries": entries})
	}
	return trace.Fingerprint(trace.DomainGroup, map[string]any{
		"name":      g.Name,
		"agents":    append([]string{}, g.Agents...),
		"config":    config,
		"scenarios": append([]string{}, g.Scenarios...),
	})
}

// Derive builds a new group from base with per-agent overrides applied.
//
// For each override entry, an existing key of that agent has its value
// replaced in place; a new key is appended after the agent's existing
// entries. Agents and scenarios are inherited from base. Overrides for an
// agent outside base's agent set yield a *agent.DefinitionError.
func Derive(base Group, name string, overrides []agent.AgentConfig) (Group, error) {
	out := base.Clone()
	out.Name = name
	out.Base = base.Name

	declared := make(map[string]bool, len(base.Agents))
	for _, a := range base.Agents {
		declared[a] = true
	}

	for _, ov := range overrides {
		if !declared[ov.Agent] {
			return Group{}, &agent.DefinitionError{
				Group:   name,
				Agent:   ov.Agent,
				Message: "override for agent not declared by base group " + base.Name,
			}
		}
		for _, e := range ov.Entries {
			out.Config = setEntry(out.Config, ov.Agent, e)
		}
	}
	return out, nil
}

// setEntry replaces the first entry of name with key e.Key or appends e.
func setEntry(config []agent.AgentConfig, name string, e agent.ConfigEntry) []agent.AgentConfig {
	last := -1
	for i := range config {
		if config[i].Agent != name {
			continue
		}
		last = i
		for j := range config[i].Entries {
			if config[i].Entries[j].Key == e.Key {
				config[i].Entries[j].Value = e.Value
				return config
			}
		}
	}
	if last >= 0 {
		config[last].Entries = append(config[last].Entries, e)
		return config
	}
	return append(config, agent.AgentConfig{Agent: name, Entries: []agent.ConfigEntry{e}})
}

// withGroup fills in the group name on a definition error.
func withGroup(err error, group string) error {
	if de, ok := err.(*agent.DefinitionError); ok && de.Group == "" {
		cp := *de
		cp.Group = group
		return &cp
	}
	return err
}
