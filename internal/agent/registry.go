package agent

// Registry holds the agents of a single scenario execution.
type Registry struct {
	agents []*Agent
	byName map[string]*Agent
}

// NewRegistry builds a registry from a declared agent set and its
// configuration.
//
// Agents keep the order of names; that order is the dispatch order for
// every lifecycle phase. Configuration for the same agent listed more than
// once is concatenated in order.
//
// Returns a *DefinitionError if a name is empty or duplicated, or if the
// configuration references an agent outside names.
func NewRegistry(names []string, config []AgentConfig) (*Registry, error) {
	r := &Registry{
		agents: make([]*Agent, 0, len(names)),
		byName: make(map[string]*Agent, len(names)),
	}

	for _, name := range names {
		if name == "" {
			return nil, &DefinitionError{Message: "agent name must not be empty"}
		}
		if _, dup := r.byName[name]; dup {
			return nil, &DefinitionError{Agent: name, Message: "declared more than once"}
		}
		a := New(name, nil)
		r.agents = append(r.agents, a)
		r.byName[name] = a
	}

	for _, c := range config {
		a, ok := r.byName[c.Agent]
		if !ok {
			return nil, &DefinitionError{
				Agent:   c.Agent,
				Message: "configured but not in the declared agent set",
			}
		}
		for _, e := range c.Entries {
			if e.Key == "" {
				return nil, &DefinitionError{Agent: c.Agent, Message: "configuration key must not be empty"}
			}
		}
		a.Config = append(a.Config, c.Entries...)
	}

	return r, nil
}

// All returns the agents in declaration order.
func (r *Registry) All() []*Agent {
	out := make([]*Agent, len(r.agents))
	copy(out, r.agents)
	return out
}

// Exists reports whether name is part of this registry.
func (r *Registry) Exists(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// Get returns the named agent, or nil.
func (r *Registry) Get(name string) *Agent {
	return r.byName[name]
}

// Len returns the number of agents.
func (r *Registry) Len() int {
	return len(r.agents)
}
