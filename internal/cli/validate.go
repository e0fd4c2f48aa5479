package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Groups []string `json:"groups,omitempty"`
	Cases  int      `json:"cases"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <catalog-file>",
		Short: "Validate a catalog file without running anything",
		Long: `Load a YAML or CUE catalog and check every group definition.

A group is rejected when it configures an agent it does not declare,
declares an agent or scenario twice, lists no scenarios, or derives from
a group that is not declared before it.

Exit codes:
  0 - Catalog valid
  1 - A group definition is invalid
  2 - The file is missing or cannot be parsed`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cat, loadErr := LoadCatalog(path)
	if loadErr != nil {
		if opts.Format != "json" && loadErr.Code == ErrCodeInvalidGroup {
			fmt.Fprintln(f.Writer, "✗ Validation failed")
		}
		return f.Fail(loadErr.ExitCode(), loadErr.Code, loadErr.Message, loadErr.Details())
	}

	result := ValidationResult{Valid: true}
	for _, g := range cat.Groups() {
		f.VerboseLog("Validated group: %s (%d agents, %d scenarios)", g.Name, len(g.Agents), len(g.Scenarios))
		result.Groups = append(result.Groups, g.Name)
		result.Cases += len(g.Scenarios)
	}

	if opts.Format == "json" {
		return f.Success(result)
	}
	fmt.Fprintf(f.Writer, "✓ Catalog valid: %d group(s), %d case(s)\n", len(result.Groups), result.Cases)
	return nil
}
