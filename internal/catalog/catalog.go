package catalog

import (
	"fmt"
	"path"

	"github.com/roach88/lnharness/internal/agent"
)

// Case is one runnable (group, scenario) pair.
type Case struct {
	Group    Group
	Scenario string
}

// ID returns "group/scenario".
func (c Case) ID() string {
	return c.Group.Name + "/" + c.Scenario
}

// Catalog is an ordered registry of scenario groups.
// Iteration follows registration order.
type Catalog struct {
	groups []Group
	index  map[string]int
}

// New creates an empty catalog.
func New() *Catalog {
	return &Catalog{index: make(map[string]int)}
}

// Register validates g and adds a copy of it.
// Returns *agent.DefinitionError for invalid or duplicate groups.
func (c *Catalog) Register(g Group) error {
	if err := g.Validate(); err != nil {
		return err
	}
	if _, dup := c.index[g.Name]; dup {
		return &agent.DefinitionError{Group: g.Name, Message: "group registered more than once"}
	}
	if g.Base != "" {
		if _, ok := c.index[g.Base]; !ok {
			return &agent.DefinitionError{Group: g.Name, Message: fmt.Sprintf("unknown base group %q", g.Base)}
		}
	}
	c.index[g.Name] = len(c.groups)
	c.groups = append(c.groups, g.Clone())
	return nil
}

// RegisterDerived derives a group from a registered base and registers it.
func (c *Catalog) RegisterDerived(name, base string, overrides []agent.AgentConfig) (Group, error) {
	b, ok := c.Lookup(base)
	if !ok {
		return Group{}, &agent.DefinitionError{Group: name, Message: fmt.Sprintf("unknown base group %q", base)}
	}
	g, err := Derive(b, name, overrides)
	if err != nil {
		return Group{}, err
	}
	if err := c.Register(g); err != nil {
		return Group{}, err
	}
	return g.Clone(), nil
}

// Lookup returns a copy of the named group.
func (c *Catalog) Lookup(name string) (Group, bool) {
	i, ok := c.index[name]
	if !ok {
		return Group{}, false
	}
	return c.groups[i].Clone(), true
}

// Groups returns copies of all groups in registration order.
func (c *Catalog) Groups() []Group {
	out := make([]Group, len(c.groups))
	for i, g := range c.groups {
		out[i] = g.Clone()
	}
	return out
}

// Len returns the number of registered groups.
func (c *Catalog) Len() int {
	return len(c.groups)
}

// Cases enumerates runnable cases in registration order, then scenario
// order. A non-empty filter is a glob (path.Match syntax) matched against
// the group name, the scenario name and "group/scenario"; a case is kept if
// any of them matches.
func (c *Catalog) Cases(filter string) ([]Case, error) {
	if filter != "" {
		if _, err := path.Match(filter, ""); err != nil {
			return nil, fmt.Errorf("invalid filter pattern %q: %w", filter, err)
		}
	}

	var cases []Case
	for _, g := range c.groups {
		for _, s := range g.Scenarios {
			cs := Case{Group: g.Clone(), Scenario: s}
			if filter != "" && !matches(filter, g.Name, s, cs.ID()) {
				continue
			}
			cases = append(cases, cs)
		}
	}
	return cases, nil
}

func matches(pattern string, names ...string) bool {
	for _, n := range names {
		if ok, _ := path.Match(pattern, n); ok {
			return true
		}
	}
	return false
}
