package cli

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/tally/internal/config"
	"github.com/roach88/tally/internal/engine"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	DB      string
	TZ      string
	Rules   string

	// Clock and IDs replace the wall clock and UUID ids when set.
	Clock engine.Clock
	IDs   engine.IDGenerator
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{config.FormatText, config.FormatJSON}

// NewRootCommand creates the root command for the tally CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tally",
		Short: "tally - gamified habit tracking",
		Long: "Track daily habits with streaks, XP, levels and achievements.\n\n" +
			"Environment: TALLY_DB, TALLY_TZ, TALLY_FORMAT, TALLY_VERBOSE.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return applyEnv(cmd, opts)
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", config.FormatText, "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "database path (default: user config dir)")
	cmd.PersistentFlags().StringVar(&opts.TZ, "tz", "", "IANA time zone for calendar days (default: local)")
	cmd.PersistentFlags().StringVar(&opts.Rules, "rules", "", "CUE file replacing the achievement table")

	cmd.AddCommand(NewAddCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewEditCommand(opts))
	cmd.AddCommand(NewRemoveCommand(opts))
	cmd.AddCommand(NewToggleCommand(opts))
	cmd.AddCommand(NewMoveCommand(opts))
	cmd.AddCommand(NewDoneCommand(opts))
	cmd.AddCommand(NewUndoCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))
	cmd.AddCommand(NewAchievementsCommand(opts))
	cmd.AddCommand(NewRolloverCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewLogCommand(opts))
	cmd.AddCommand(NewResetCommand(opts))
	cmd.AddCommand(NewScenarioCommand(opts))

	return cmd
}

// applyEnv fills flags the user did not set from TALLY_* variables and
// validates the result.
func applyEnv(cmd *cobra.Command, opts *RootOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid environment", err)
	}

	flags := cmd.Flags()
	if !flags.Changed("format") {
		opts.Format = cfg.Format
	}
	if !flags.Changed("db") {
		opts.DB = cfg.DB
	}
	if !flags.Changed("tz") {
		opts.TZ = cfg.TZ
	}
	if !flags.Changed("verbose") {
		opts.Verbose = cfg.Verbose
	}

	if !isValidFormat(opts.Format) {
		return NewExitError(ExitCommandError,
			fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
	}
	if _, err := opts.config().Location(); err != nil {
		return WrapExitError(ExitCommandError, "invalid --tz", err)
	}
	return nil
}

// config is the effective configuration after flags and environment.
func (o *RootOptions) config() config.Config {
	return config.Config{DB: o.DB, TZ: o.TZ, Format: o.Format, Verbose: o.Verbose}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// Execute runs the CLI with args and returns the process exit code.
// Errors are reported on stderr, or on stdout as a JSON envelope when
// --format json is in effect.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	return execute(ctx, &RootOptions{}, args, stdout, stderr)
}

func execute(ctx context.Context, opts *RootOptions, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCommand(opts)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}

	format := opts.Format
	if !isValidFormat(format) {
		format = config.FormatText
	}
	formatter := &OutputFormatter{Format: format, Writer: stdout, ErrWriter: stderr, Verbose: opts.Verbose}
	return formatter.Fail(err)
}
