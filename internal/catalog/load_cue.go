package catalog

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/lnharness/internal/agent"
)

// LoadCUE parses a CUE catalog. filename is used in error positions only.
//
// Groups are read from the top-level "groups" struct in declaration order;
// configuration keys keep their declaration order as well.
func LoadCUE(data []byte, filename string) (*Catalog, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile CUE: %w", err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("invalid CUE catalog: %w", err)
	}

	groupsVal := v.LookupPath(cue.ParsePath("groups"))
	if !groupsVal.Exists() {
		return nil, fmt.Errorf("catalog defines no groups")
	}
	iter, err := groupsVal.Fields()
	if err != nil {
		return nil, fmt.Errorf("groups: %w", err)
	}

	var raws []rawGroup
	for iter.Next() {
		r, err := cueGroup(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		raws = append(raws, r)
	}
	if len(raws) == 0 {
		return nil, fmt.Errorf("catalog defines no groups")
	}
	return build(raws)
}

func cueGroup(name string, v cue.Value) (rawGroup, error) {
	r := rawGroup{Name: name}
	var err error

	if r.Description, err = optionalString(v, "description"); err != nil {
		return r, fmt.Errorf("group %s: %w", name, err)
	}
	if r.Base, err = optionalString(v, "base"); err != nil {
		return r, fmt.Errorf("group %s: %w", name, err)
	}
	if r.Agents, err = stringList(v, "agents"); err != nil {
		return r, fmt.Errorf("group %s: %w", name, err)
	}
	if r.Scenarios, err = stringList(v, "scenarios"); err != nil {
		return r, fmt.Errorf("group %s: %w", name, err)
	}
	if r.Config, err = agentSettings(v, "config"); err != nil {
		return r, fmt.Errorf("group %s: %w", name, err)
	}
	if r.Overrides, err = agentSettings(v, "overrides"); err != nil {
		return r, fmt.Errorf("group %s: %w", name, err)
	}
	return r, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return "", nil
	}
	s, err := f.String()
	if err != nil {
		return "", fmt.Errorf("%s: %w", field, err)
	}
	return s, nil
}

func stringList(v cue.Value, field string) ([]string, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return nil, nil
	}
	iter, err := f.List()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", field, err)
		}
		out = append(out, s)
	}
	return out, nil
}

// agentSettings reads agent -> {key: value} preserving declaration order.
func agentSettings(v cue.Value, field string) ([]agent.AgentConfig, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return nil, nil
	}
	agents, err := f.Fields()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}

	var out []agent.AgentConfig
	for agents.Next() {
		ac := agent.AgentConfig{Agent: agents.Label()}
		keys, err := agents.Value().Fields()
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", field, ac.Agent, err)
		}
		for keys.Next() {
			value, err := keys.Value().String()
			if err != nil {
				return nil, fmt.Errorf("%s.%s.%s: %w", field, ac.Agent, keys.Label(), err)
			}
			ac.Entries = append(ac.Entries, agent.ConfigEntry{Key: keys.Label(), Value: value})
		}
		out = append(out, ac)
	}
	return out, nil
}
