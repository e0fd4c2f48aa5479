package catalog

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/lnharness/internal/agent"
)

// rawGroup is a group as written in a catalog file, before base groups
// are resolved.
type rawGroup struct {
	Name        string
	Description string
	Base        string
	Agents      []string
	Config      []agent.AgentConfig
	Overrides   []agent.AgentConfig
	Scenarios   []string
}

// LoadFile reads a catalog from a .yaml, .yml or .cue file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return LoadYAML(data)
	case ".cue":
		return LoadCUE(data, path)
	default:
		return nil, fmt.Errorf("unsupported catalog format %q (want .yaml, .yml or .cue)", ext)
	}
}

// build registers raw groups in file order.
// A derived group must come after its base.
func build(raws []rawGroup) (*Catalog, error) {
	c := New()
	for i, r := range raws {
		g, err := resolve(c, r)
		if err != nil {
			return nil, fmt.Errorf("groups[%d]: %w", i, err)
		}
		if err := c.Register(g); err != nil {
			return nil, fmt.Errorf("groups[%d]: %w", i, err)
		}
	}
	return c, nil
}

func resolve(c *Catalog, r rawGroup) (Group, error) {
	if r.Base == "" {
		if len(r.Overrides) > 0 {
			return Group{}, &agent.DefinitionError{Group: r.Name, Message: "overrides require a base group"}
		}
		return Group{
			Name:        r.Name,
			Description: r.Description,
			Agents:      r.Agents,
			Config:      r.Config,
			Scenarios:   r.Scenarios,
		}, nil
	}

	if len(r.Agents) > 0 || len(r.Config) > 0 {
		return Group{}, &agent.DefinitionError{
			Group:   r.Name,
			Message: "a derived group takes overrides, not agents or config",
		}
	}
	base, ok := c.Lookup(r.Base)
	if !ok {
		return Group{}, &agent.DefinitionError{
			Group:   r.Name,
			Message: fmt.Sprintf("unknown base group %q (bases must be declared first)", r.Base),
		}
	}
	g, err := Derive(base, r.Name, r.Overrides)
	if err != nil {
		return Group{}, err
	}
	if r.Description != "" {
		g.Description = r.Description
	}
	if len(r.Scenarios) > 0 {
		g.Scenarios = r.Scenarios
	}
	return g, nil
}

// yamlCatalog is the YAML document layout.
type yamlCatalog struct {
	Groups []yamlGroup `yaml:"groups"`
}

type yamlGroup struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description,omitempty"`
	Base        string        `yaml:"base,omitempty"`
	Agents      []string      `yaml:"agents,omitempty"`
	Config      orderedAgents `yaml:"config,omitempty"`
	Overrides   orderedAgents `yaml:"overrides,omitempty"`
	Scenarios   []string      `yaml:"scenarios,omitempty"`
}

// orderedAgents decodes an agent -> {key: value} mapping keeping the
// order in which agents and keys appear in the document.
type orderedAgents []agent.AgentConfig

// UnmarshalYAML implements yaml.Unmarshaler.
func (o *orderedAgents) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping of agent name to settings", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		nameNode, settings := node.Content[i], node.Content[i+1]
		ac := agent.AgentConfig{Agent: nameNode.Value}

		switch {
		case isNull(settings):
			// "alice:" with no settings
		case settings.Kind == yaml.MappingNode:
			for j := 0; j+1 < len(settings.Content); j += 2 {
				k, v := settings.Content[j], settings.Content[j+1]
				if v.Kind != yaml.ScalarNode {
					return fmt.Errorf("line %d: value of %s.%s must be a scalar", v.Line, ac.Agent, k.Value)
				}
				value := v.Value
				if isNull(v) {
					value = ""
				}
				ac.Entries = append(ac.Entries, agent.ConfigEntry{Key: k.Value, Value: value})
			}
		default:
			return fmt.Errorf("line %d: settings of %s must be a mapping", settings.Line, ac.Agent)
		}
		*o = append(*o, ac)
	}
	return nil
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.Tag == "!!null"
}

// LoadYAML parses a YAML catalog. Unknown fields are rejected.
func LoadYAML(data []byte) (*Catalog, error) {
	var doc yamlCatalog
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(doc.Groups) == 0 {
		return nil, fmt.Errorf("catalog defines no groups")
	}

	raws := make([]rawGroup, len(doc.Groups))
	for i, g := range doc.Groups {
		raws[i] = rawGroup{
			Name:        g.Name,
			Description: g.Description,
			Base:        g.Base,
			Agents:      g.Agents,
			Config:      g.Config,
			Overrides:   g.Overrides,
			Scenarios:   g.Scenarios,
		}
	}
	return build(raws)
}
