package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/lnharness/internal/config"
	"github.com/roach88/lnharness/internal/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Config   string // optional YAML settings file
	LogLevel string // overrides the config file's log_level
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the lnharness CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "lnharness",
		Short: "lnharness - regtest scenario runner",
		Long: `Run payment-channel integration scenarios against a regtest driver.

Each scenario gets fresh agents that are initialised, configured, funded
and started before the scenario command runs, and stopped afterwards no
matter how the scenario ended.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err *ExitError
			if !isValidFormat(opts.Format) {
				err = NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			} else if opts.LogLevel != "" {
				if _, perr := logging.ParseLevel(opts.LogLevel); perr != nil {
					err = WrapExitError(ExitCommandError, "invalid --log-level", perr)
				}
			}
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
				return err
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "settings file (YAML)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error)")

	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// loadConfig reads the --config file on top of the defaults.
func (o *RootOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load(o.Config)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	return cfg, nil
}

// newLogger builds the command logger. --verbose raises the level to
// debug; --log-level wins over both.
func (o *RootOptions) newLogger(w io.Writer, cfg config.Config) *slog.Logger {
	name := cfg.LogLevel
	if o.Verbose {
		name = "debug"
	}
	if o.LogLevel != "" {
		name = o.LogLevel
	}
	level, err := logging.ParseLevel(name)
	if err != nil {
		level = slog.LevelWarn
	}
	return logging.New(w, level)
}
