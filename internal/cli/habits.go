package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/tally/internal/engine"
	"github.com/roach88/tally/internal/model"
)

// HabitFlags holds the editable habit fields shared by add and edit.
type HabitFlags struct {
	Description string
	Icon        string
	Color       string
	Frequency   string
	Days        []string
	Reminder    string
}

func (f *HabitFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.Description, "description", "", "habit description")
	cmd.Flags().StringVar(&f.Icon, "icon", "", "habit icon")
	cmd.Flags().StringVar(&f.Color, "color", "", "habit color (#rrggbb)")
	cmd.Flags().StringVar(&f.Frequency, "frequency", "", "daily, weekly or custom")
	cmd.Flags().StringSliceVar(&f.Days, "days", nil, "scheduled days for custom habits (0-6 or sun..sat)")
	cmd.Flags().StringVar(&f.Reminder, "reminder", "", "reminder time HH:MM (\"off\" disables)")
}

// HabitView is a habit with its derived display fields.
type HabitView struct {
	model.Habit
	Position       int                 `json:"position"`
	DoneToday      bool                `json:"doneToday"`
	CompletionRate int                 `json:"completionRate"`
	Status         engine.StreakStatus `json:"status"`
}

func viewOf(h model.Habit, position int, today model.Date) HabitView {
	return HabitView{
		Habit:          h,
		Position:       position,
		DoneToday:      h.HasCompletion(today),
		CompletionRate: engine.CompletionRate(&h, today),
		Status:         engine.Status(h.CurrentStreak),
	}
}

// NewAddCommand creates the add command.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &HabitFlags{}

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a habit",
		Long: `Create a habit at the end of the list.

Examples:
  tally add "Read 20 pages"
  tally add Gym --frequency custom --days mon,wed,fri --icon 🏋️
  tally add Meditate --reminder 07:30`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdd(rootOpts, flags, args[0], cmd)
		},
	}
	flags.register(cmd)
	return cmd
}

func runAdd(opts *RootOptions, flags *HabitFlags, name string, cmd *cobra.Command) error {
	in := engine.HabitInput{
		Name:        name,
		Description: flags.Description,
		Icon:        flags.Icon,
		Color:       flags.Color,
	}
	if flags.Frequency != "" {
		freq, err := model.ParseFrequency(flags.Frequency)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --frequency", err)
		}
		in.Frequency = freq
	}
	if len(flags.Days) > 0 {
		days, err := parseDays(flags.Days)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --days", err)
		}
		in.ScheduledDays = days
		if in.Frequency == "" {
			in.Frequency = model.FrequencyCustom
		}
	}
	if flags.Reminder != "" {
		r, err := parseReminder(flags.Reminder)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --reminder", err)
		}
		in.Reminder = r
	}

	return withSession(opts, cmd, func(ctx context.Context, s *session) error {
		ch, err := s.engine.Habits.Create(ctx, in)
		if err != nil {
			return err
		}
		return s.formatter.Render(ch, func(w io.Writer) {
			fmt.Fprintf(w, "Created %s %s (%s)\n", ch.Habit.Icon, ch.Habit.Name, ch.Habit.ID)
			printUnlocked(w, ch.Unlocked)
		})
	})
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	var today bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List habits",
		Long: `List habits in display order.

With --today, only enabled habits scheduled for today are shown, followed
by today's progress.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(rootOpts, today, cmd)
		},
	}
	cmd.Flags().BoolVar(&today, "today", false, "only habits due today")
	return cmd
}

// ListResult is the output of the list command.
type ListResult struct {
	Date   model.Date         `json:"date"`
	Habits []HabitView        `json:"habits"`
	Today  *engine.TodayStats `json:"today,omitempty"`
}

func runList(opts *RootOptions, dueOnly bool, cmd *cobra.Command) error {
	return withSession(opts, cmd, func(ctx context.Context, s *session) error {
		today := s.engine.Today()
		all, err := s.engine.Habits.List(ctx)
		if err != nil {
			return err
		}
		habits := all
		result := ListResult{Date: today, Habits: []HabitView{}}
		if dueOnly {
			if habits, err = s.engine.Habits.Today(ctx); err != nil {
				return err
			}
			stats, err := s.engine.Habits.TodayStats(ctx)
			if err != nil {
				return err
			}
			result.Today = &stats
		}

		for _, h := range habits {
			result.Habits = append(result.Habits, viewOf(h, positionOf(all, h.ID), today))
		}

		return s.formatter.Render(result, func(w io.Writer) {
			if len(result.Habits) == 0 {
				fmt.Fprintln(w, "No habits.")
			}
			for _, v := range result.Habits {
				printHabitLine(w, v)
			}
			if result.Today != nil {
				fmt.Fprintf(w, "\nToday: %d/%d done (%d%%)\n",
					result.Today.Completed, result.Today.Total, result.Today.Percent)
			}
		})
	})
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <habit>",
		Short: "Show one habit",
		Long: `Show a habit's details and streak.

A habit is named by its list position, id, unique id prefix or name.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(rootOpts, args[0], cmd)
		},
	}
}

func runShow(opts *RootOptions, ref string, cmd *cobra.Command) error {
	return withSession(opts, cmd, func(ctx context.Context, s *session) error {
		all, err := s.engine.Habits.List(ctx)
		if err != nil {
			return err
		}
		h, err := resolveHabit(all, ref)
		if err != nil {
			return err
		}
		v := viewOf(h, positionOf(all, h.ID), s.engine.Today())
		return s.formatter.Render(v, func(w io.Writer) {
			fmt.Fprintf(w, "%s %s\n", v.Icon, v.Name)
			if v.Description != "" {
				fmt.Fprintf(w, "  %s\n", v.Description)
			}
			fmt.Fprintf(w, "  id:         %s\n", v.ID)
			fmt.Fprintf(w, "  schedule:   %s\n", describeSchedule(v.Habit))
			fmt.Fprintf(w, "  enabled:    %t\n", v.Enabled)
			fmt.Fprintf(w, "  streak:     %d (best %d) %s\n", v.CurrentStreak, v.BestStreak, v.Status.Label)
			fmt.Fprintf(w, "  completed:  %d times, %d%% of expected\n", len(v.CompletedDates), v.CompletionRate)
			if !v.LastCompletedDate.IsZero() {
				fmt.Fprintf(w, "  last done:  %s\n", v.LastCompletedDate)
			}
			if v.Reminder.Enabled {
				fmt.Fprintf(w, "  reminder:   %s\n", v.Reminder.Time)
			}
			fmt.Fprintf(w, "  created:    %s\n", v.CreatedDate)
		})
	})
}

// NewEditCommand creates the edit command.
func NewEditCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &HabitFlags{}
	var name string

	cmd := &cobra.Command{
		Use:   "edit <habit>",
		Short: "Change a habit",
		Long: `Change the given fields of a habit. Fields without a flag are left alone.

Examples:
  tally edit 1 --name "Read 30 pages"
  tally edit Gym --days tue,thu
  tally edit Meditate --reminder off`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEdit(rootOpts, flags, name, args[0], cmd)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&name, "name", "", "new name")
	return cmd
}

func runEdit(opts *RootOptions, flags *HabitFlags, name, ref string, cmd *cobra.Command) error {
	set := cmd.Flags().Changed
	var patch engine.HabitPatch
	if set("name") {
		patch.Name = &name
	}
	if set("description") {
		patch.Description = &flags.Description
	}
	if set("icon") {
		patch.Icon = &flags.Icon
	}
	if set("color") {
		patch.Color = &flags.Color
	}
	if set("frequency") {
		freq, err := model.ParseFrequency(flags.Frequency)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --frequency", err)
		}
		patch.Frequency = &freq
	}
	if set("days") {
		days, err := parseDays(flags.Days)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --days", err)
		}
		patch.ScheduledDays = &days
	}
	if set("reminder") {
		r, err := parseReminder(flags.Reminder)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --reminder", err)
		}
		patch.Reminder = r
	}

	return withSession(opts, cmd, func(ctx context.Context, s *session) error {
		h, err := findHabit(ctx, s, ref)
		if err != nil {
			return err
		}
		ch, err := s.engine.Habits.Update(ctx, h.ID, patch)
		if err != nil {
			return err
		}
		return s.formatter.Render(ch, func(w io.Writer) {
			fmt.Fprintf(w, "Updated %s %s\n", ch.Habit.Icon, ch.Habit.Name)
			printUnlocked(w, ch.Unlocked)
		})
	})
}

// NewRemoveCommand creates the rm command.
func NewRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <habit>",
		Aliases: []string{"remove", "delete"},
		Short:   "Delete a habit",
		Long:    "Delete a habit and its completion history. Earned XP and achievements are kept.",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemove(rootOpts, args[0], cmd)
		},
	}
}

func runRemove(opts *RootOptions, ref string, cmd *cobra.Command) error {
	return withSession(opts, cmd, func(ctx context.Context, s *session) error {
		h, err := findHabit(ctx, s, ref)
		if err != nil {
			return err
		}
		if err := s.engine.Habits.Delete(ctx, h.ID); err != nil {
			return err
		}
		return s.formatter.Render(map[string]string{"deleted": h.ID}, func(w io.Writer) {
			fmt.Fprintf(w, "Deleted %s %s\n", h.Icon, h.Name)
		})
	})
}

// NewToggleCommand creates the toggle command.
func NewToggleCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <habit>",
		Short: "Enable or disable a habit",
		Long:  "Flip a habit between enabled and disabled. Disabled habits are never due and never break.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToggle(rootOpts, args[0], cmd)
		},
	}
}

func runToggle(opts *RootOptions, ref string, cmd *cobra.Command) error {
	return withSession(opts, cmd, func(ctx context.Context, s *session) error {
		h, err := findHabit(ctx, s, ref)
		if err != nil {
			return err
		}
		ch, err := s.engine.Habits.ToggleEnabled(ctx, h.ID)
		if err != nil {
			return err
		}
		return s.formatter.Render(ch, func(w io.Writer) {
			state := "disabled"
			if ch.Habit.Enabled {
				state = "enabled"
			}
			fmt.Fprintf(w, "%s %s is now %s\n", ch.Habit.Icon, ch.Habit.Name, state)
			printUnlocked(w, ch.Unlocked)
		})
	})
}

// NewMoveCommand creates the move command.
func NewMoveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "move <from> <to>",
		Short: "Reorder habits",
		Long: `Move the habit at list position <from> to position <to>. Positions start at 1.

Example:
  tally move 3 1`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := strconv.Atoi(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid <from>", err)
			}
			to, err := strconv.Atoi(args[1])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid <to>", err)
			}
			return runMove(rootOpts, from, to, cmd)
		},
	}
}

func runMove(opts *RootOptions, from, to int, cmd *cobra.Command) error {
	return withSession(opts, cmd, func(ctx context.Context, s *session) error {
		habits, err := s.engine.Habits.Reorder(ctx, from-1, to-1)
		if err != nil {
			return err
		}
		today := s.engine.Today()
		views := make([]HabitView, len(habits))
		for i, h := range habits {
			views[i] = viewOf(h, i+1, today)
		}
		return s.formatter.Render(views, func(w io.Writer) {
			for _, v := range views {
				printHabitLine(w, v)
			}
		})
	})
}

// findHabit resolves ref against the current habit list.
func findHabit(ctx context.Context, s *session, ref string) (model.Habit, error) {
	all, err := s.engine.Habits.List(ctx)
	if err != nil {
		return model.Habit{}, err
	}
	return resolveHabit(all, ref)
}

// resolveHabit picks the habit ref names, trying in turn a 1-based list
// position, an exact id, a case-insensitive name and a unique id prefix.
func resolveHabit(habits []model.Habit, ref string) (model.Habit, error) {
	ref = strings.TrimSpace(ref)
	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(habits) {
		return habits[n-1], nil
	}
	for _, h := range habits {
		if h.ID == ref {
			return h, nil
		}
	}

	var byName []model.Habit
	for _, h := range habits {
		if strings.EqualFold(h.Name, ref) {
			byName = append(byName, h)
		}
	}
	if len(byName) == 1 {
		return byName[0], nil
	}
	if len(byName) > 1 {
		return model.Habit{}, NewExitError(ExitFailure,
			fmt.Sprintf("%q matches %d habits by name; use the position or id", ref, len(byName)))
	}

	var byPrefix []model.Habit
	if ref != "" {
		for _, h := range habits {
			if strings.HasPrefix(h.ID, ref) {
				byPrefix = append(byPrefix, h)
			}
		}
	}
	switch len(byPrefix) {
	case 1:
		return byPrefix[0], nil
	case 0:
		return model.Habit{}, &engine.Error{Code: engine.CodeHabitNotFound, Message: "habit not found", HabitID: ref}
	default:
		return model.Habit{}, NewExitError(ExitFailure,
			fmt.Sprintf("id prefix %q is ambiguous (%d habits)", ref, len(byPrefix)))
	}
}

func positionOf(habits []model.Habit, id string) int {
	for i, h := range habits {
		if h.ID == id {
			return i + 1
		}
	}
	return 0
}

var dayNames = map[string]int{
	"sun": 0, "mon": 1, "tue": 2, "wed": 3, "thu": 4, "fri": 5, "sat": 6,
}

// parseDays accepts weekday numbers (0 = Sunday) or three-letter names.
func parseDays(values []string) ([]int, error) {
	days := make([]int, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if n, err := strconv.Atoi(v); err == nil {
			if n < 0 || n > 6 {
				return nil, fmt.Errorf("day %d is outside 0..6", n)
			}
			days = append(days, n)
			continue
		}
		n, ok := dayNames[v[:min(3, len(v))]]
		if !ok {
			return nil, fmt.Errorf("unknown day %q", v)
		}
		days = append(days, n)
	}
	return days, nil
}

// parseReminder accepts HH:MM, or "off" for a disabled reminder.
func parseReminder(v string) (*model.Reminder, error) {
	if strings.EqualFold(v, "off") {
		return &model.Reminder{Enabled: false, Time: model.DefaultReminderTime}, nil
	}
	t, err := time.Parse("15:04", v)
	if err != nil {
		return nil, fmt.Errorf("reminder %q must be HH:MM", v)
	}
	return &model.Reminder{Enabled: true, Time: t.Format("15:04")}, nil
}

func describeSchedule(h model.Habit) string {
	if h.Frequency != model.FrequencyCustom {
		return string(h.Frequency)
	}
	names := make([]string, len(h.ScheduledDays))
	for i, d := range h.ScheduledDays {
		names[i] = time.Weekday(d).String()[:3]
	}
	return "custom (" + strings.Join(names, ", ") + ")"
}

func printHabitLine(w io.Writer, v HabitView) {
	mark := "[ ]"
	if v.DoneToday {
		mark = "[x]"
	}
	line := fmt.Sprintf("%2d. %s %s %s", v.Position, mark, v.Icon, v.Name)
	if v.CurrentStreak > 0 {
		line += fmt.Sprintf("  %s %d", v.Status.Emoji, v.CurrentStreak)
	}
	if !v.Enabled {
		line += "  (disabled)"
	}
	fmt.Fprintln(w, line)
}

func printUnlocked(w io.Writer, unlocked []engine.Definition) {
	for _, def := range unlocked {
		fmt.Fprintf(w, "Achievement unlocked: %s %s (+%d XP)\n", def.Icon, def.Name, engine.AchievementBonus)
	}
}
