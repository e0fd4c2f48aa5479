// Package catalog holds the declarative registry of scenario groups.
//
// A Group names the agents that take part in its scenarios, the ordered
// configuration overrides applied to each agent, and the scenario commands
// that can run once the group is live. Groups are immutable values: the
// Catalog stores and hands out copies.
//
// Variants are built by explicit composition. Derive takes a base group and
// a set of per-agent overrides and returns a new, flattened group; nothing
// is inherited implicitly after that point.
//
//	jit := catalog.Group{Name: "jit", ...}
//	trampoline, err := catalog.Derive(jit, "jit_trampoline", []agent.AgentConfig{
//	    {Agent: "alice", Entries: []agent.ConfigEntry{{Key: "use_gossip", Value: "false"}}},
//	})
//
// # Catalog files
//
// Besides the built-in presets (Builtin), catalogs can be loaded from YAML
// or CUE files. Both formats preserve the declaration order of
// configuration keys.
//
//	groups:
//	  - name: ab
//	    agents: [alice, bob]
//	    config:
//	      bob:
//	        lightning_listen: localhost:9735
//	    scenarios: [collaborative_close, breach]
//	  - name: ab_nogossip
//	    base: ab
//	    overrides:
//	      alice:
//	        use_gossip: "false"
//
// The CUE form uses a struct keyed by group name:
//
//	groups: ab: {
//	    agents: ["alice", "bob"]
//	    config: bob: lightning_listen: "localhost:9735"
//	    scenarios: ["collaborative_close", "breach"]
//	}
package catalog
