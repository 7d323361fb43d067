package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/tally/internal/model"
	"github.com/roach88/tally/internal/store"
)

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a JSON backup",
		Long: `Write the whole document (habits, stats, achievements, settings) as a
JSON backup, to stdout or to --output.

Examples:
  tally export > backup.json
  tally export -o backup.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(rootOpts, output, cmd)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func runExport(opts *RootOptions, output string, cmd *cobra.Command) error {
	return withSession(opts, cmd, func(ctx context.Context, s *session) error {
		data, err := s.engine.Export(ctx)
		if err != nil {
			return err
		}
		if output == "" {
			// The backup is the output in both formats.
			_, err := cmd.OutOrStdout().Write(append(data, '\n'))
			return err
		}
		if err := os.WriteFile(output, data, 0o644); err != nil {
			return WrapExitError(ExitCommandError, "failed to write backup", err)
		}
		result := map[string]any{"path": output, "bytes": len(data)}
		return s.formatter.Render(result, func(w io.Writer) {
			fmt.Fprintf(w, "Exported %d bytes to %s\n", len(data), output)
		})
	})
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace all data with a JSON backup",
		Long: `Replace the stored document with a backup written by export. Older
backup layouts are migrated. If the file is not a valid backup nothing is
changed.

Exit codes:
  0 - Imported
  1 - Not a valid backup
  2 - File could not be read`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(rootOpts, args[0], cmd)
		},
	}
}

func runImport(opts *RootOptions, path string, cmd *cobra.Command) error {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read backup", err)
	}

	return withSession(opts, cmd, func(ctx context.Context, s *session) error {
		doc, err := s.engine.Import(ctx, data)
		if err != nil {
			return err
		}
		result := map[string]any{
			"habits":       len(doc.Habits),
			"achievements": len(doc.Achievements),
			"totalXP":      doc.Stats.TotalXP,
			"level":        doc.Stats.Level,
		}
		return s.formatter.Render(result, func(w io.Writer) {
			fmt.Fprintf(w, "Imported %s, %s, %d XP (level %d)\n",
				pluralize(len(doc.Habits), "habit"), pluralize(len(doc.Achievements), "achievement"),
				doc.Stats.TotalXP, doc.Stats.Level)
		})
	})
}

// LogOptions holds flags for the log command.
type LogOptions struct {
	Kind  string
	Habit string
	Since string
	Limit int
}

// NewLogCommand creates the log command.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	logOpts := &LogOptions{}

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show the event journal",
		Long: `Show recorded events, oldest first: completions, streak changes, XP,
level ups, achievements and rollovers.

Examples:
  tally log --limit 20
  tally log --kind achievement.unlocked
  tally log --habit 1 --since 2026-10-01`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLog(rootOpts, logOpts, cmd)
		},
	}
	cmd.Flags().StringVar(&logOpts.Kind, "kind", "", "only events of this kind")
	cmd.Flags().StringVar(&logOpts.Habit, "habit", "", "only events for this habit")
	cmd.Flags().StringVar(&logOpts.Since, "since", "", "only events on or after YYYY-MM-DD")
	cmd.Flags().IntVar(&logOpts.Limit, "limit", 50, "most recent events to show (0 for all)")
	return cmd
}

func runLog(opts *RootOptions, logOpts *LogOptions, cmd *cobra.Command) error {
	filter := store.EventFilter{Kind: store.EventKind(logOpts.Kind), Limit: logOpts.Limit}
	if logOpts.Since != "" {
		since, err := model.ParseDate(logOpts.Since)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --since", err)
		}
		filter.Since = since
	}
	if logOpts.Limit < 0 {
		return NewExitError(ExitCommandError, "--limit must not be negative")
	}

	return withSession(opts, cmd, func(ctx context.Context, s *session) error {
		if logOpts.Habit != "" {
			// Deleted habits still have journal entries, so fall back to the raw id.
			filter.HabitID = logOpts.Habit
			if h, err := findHabit(ctx, s, logOpts.Habit); err == nil {
				filter.HabitID = h.ID
			}
		}
		events, err := s.engine.Events(ctx, filter)
		if err != nil {
			return err
		}
		if events == nil {
			events = []store.Event{}
		}
		return s.formatter.Render(events, func(w io.Writer) {
			if len(events) == 0 {
				fmt.Fprintln(w, "No events.")
			}
			for _, ev := range events {
				habit := ev.HabitID
				if habit == "" {
					habit = "-"
				}
				fmt.Fprintf(w, "%5d  %s  %-22s %-12s %s\n", ev.Seq, ev.Date, ev.Kind, habit, compactJSON(ev.Payload))
			}
		})
	})
}

func compactJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	return string(raw)
}

// NewResetCommand creates the reset command.
func NewResetCommand(rootOpts *RootOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all habits and progress",
		Long: `Discard the stored document and start over. The event journal is kept.
Requires --yes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return NewExitError(ExitCommandError, "reset deletes all data; pass --yes to confirm")
			}
			return runReset(rootOpts, cmd)
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	return cmd
}

func runReset(opts *RootOptions, cmd *cobra.Command) error {
	return withSession(opts, cmd, func(ctx context.Context, s *session) error {
		if err := s.engine.Reset(ctx); err != nil {
			return err
		}
		return s.formatter.Render(map[string]bool{"reset": true}, func(w io.Writer) {
			fmt.Fprintln(w, "All data reset.")
		})
	})
}
