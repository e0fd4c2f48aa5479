package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/lnharness/internal/catalog"
)

// GroupInfo is one catalog group as reported by the list command.
type GroupInfo struct {
	catalog.Group
	Hash string `json:"hash"`
}

// ListResult holds the list command output.
type ListResult struct {
	Groups []GroupInfo `json:"groups"`
	Cases  int         `json:"cases"`
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	var catalogPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List scenario groups, their agents and scenarios",
		Long: `List the groups of a catalog in run order.

Without --catalog the built-in groups are listed. Each group shows its
agents, configuration and scenarios.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(rootOpts, catalogPath, cmd)
		},
	}

	cmd.Flags().StringVar(&catalogPath, "catalog", "", "catalog file (.yaml, .yml or .cue)")

	return cmd
}

func runList(opts *RootOptions, catalogPath string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if catalogPath == "" && opts.Config != "" {
		cfg, err := opts.loadConfig()
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
		}
		catalogPath = cfg.Catalog
	}

	cat, loadErr := LoadCatalog(catalogPath)
	if loadErr != nil {
		return f.Fail(ExitCommandError, loadErr.Code, loadErr.Message, loadErr.Details())
	}

	result := ListResult{Groups: []GroupInfo{}}
	for _, g := range cat.Groups() {
		hash, err := g.Fingerprint()
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
		}
		result.Groups = append(result.Groups, GroupInfo{Group: g, Hash: hash})
		result.Cases += len(g.Scenarios)
	}

	if opts.Format == "json" {
		return f.Success(result)
	}
	writeList(cmd.OutOrStdout(), result, opts.Verbose)
	return nil
}

func writeList(w io.Writer, result ListResult, verbose bool) {
	for _, g := range result.Groups {
		fmt.Fprint(w, g.Name)
		if g.Base != "" {
			fmt.Fprintf(w, " (from %s)", g.Base)
		}
		if g.Description != "" {
			fmt.Fprintf(w, ": %s", g.Description)
		}
		fmt.Fprintln(w)

		agents := "(none)"
		if len(g.Agents) > 0 {
			agents = strings.Join(g.Agents, ", ")
		}
		fmt.Fprintf(w, "  agents:    %s\n", agents)
		for _, ac := range g.Config {
			for _, e := range ac.Entries {
				fmt.Fprintf(w, "  config:    %s %s=%q\n", ac.Agent, e.Key, e.Value)
			}
		}
		fmt.Fprintf(w, "  scenarios: %s\n", strings.Join(g.Scenarios, ", "))
		if verbose {
			fmt.Fprintf(w, "  hash:      %s\n", g.Hash)
		}
	}
	fmt.Fprintf(w, "\n%d group(s), %d case(s)\n", len(result.Groups), result.Cases)
}
