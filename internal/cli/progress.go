package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tally/internal/engine"
)

// NewDoneCommand creates the done command.
func NewDoneCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "done <habit>",
		Short: "Complete a habit for today",
		Long: `Mark a habit done for today. Streak, XP, level, perfect week and
achievements are updated together. Completing a habit twice in one day
changes nothing.

Exit codes:
  0 - Completed (or already completed today)
  1 - Unknown habit`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDone(rootOpts, args[0], cmd)
		},
	}
}

func runDone(opts *RootOptions, ref string, cmd *cobra.Command) error {
	return withSession(opts, cmd, func(ctx context.Context, s *session) error {
		h, err := findHabit(ctx, s, ref)
		if err != nil {
			return err
		}
		res, err := s.engine.Habits.Complete(ctx, h.ID)
		if err != nil {
			return err
		}
		return s.formatter.Render(res, func(w io.Writer) {
			printCompletion(w, res)
		})
	})
}

func printCompletion(w io.Writer, res *engine.CompleteResult) {
	h := res.Habit
	if res.AlreadyCompleted {
		fmt.Fprintf(w, "%s %s is already done today.\n", h.Icon, h.Name)
		return
	}

	award := fmt.Sprintf("+%d XP", res.Award.Base)
	if res.Award.Bonus != nil {
		award += fmt.Sprintf(", +%d %s bonus", res.Award.Bonus.Amount, res.Award.Bonus.Label)
	}
	fmt.Fprintf(w, "Done: %s %s (%s)\n", h.Icon, h.Name, award)

	status := engine.Status(h.CurrentStreak)
	fmt.Fprintf(w, "Streak: %s (best %d) %s\n", pluralize(h.CurrentStreak, "day"), h.BestStreak, status.Emoji)
	if res.Milestone != nil {
		fmt.Fprintf(w, "Milestone: %d days of %s!\n", res.Milestone.Days, res.Milestone.HabitName)
	}
	if res.PerfectWeek {
		fmt.Fprintf(w, "Perfect week! +%d XP\n", engine.PerfectWeekBonus)
	}
	printUnlocked(w, res.Unlocked)
	printLevel(w, res.Level)
}

func printLevel(w io.Writer, lc engine.LevelChange) {
	if lc.LeveledUp {
		fmt.Fprintf(w, "Level up! Level %d -> %d\n", lc.OldLevel, lc.NewLevel)
	}
	fmt.Fprintf(w, "Total: %d XP, level %d\n", lc.TotalXP, lc.NewLevel)
}

// NewUndoCommand creates the undo command.
func NewUndoCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "undo <habit>",
		Short: "Undo today's completion",
		Long: `Remove today's completion of a habit, restore its streak and take back
the XP it earned. Achievements stay unlocked.

Exit codes:
  0 - Undone
  1 - Unknown habit, or not completed today`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUndo(rootOpts, args[0], cmd)
		},
	}
}

func runUndo(opts *RootOptions, ref string, cmd *cobra.Command) error {
	return withSession(opts, cmd, func(ctx context.Context, s *session) error {
		h, err := findHabit(ctx, s, ref)
		if err != nil {
			return err
		}
		res, err := s.engine.Habits.Uncomplete(ctx, h.ID)
		if err != nil {
			return err
		}
		return s.formatter.Render(res, func(w io.Writer) {
			fmt.Fprintf(w, "Undone: %s %s (-%d XP)\n", res.Habit.Icon, res.Habit.Name, res.Deducted)
			fmt.Fprintf(w, "Streak: %s\n", pluralize(res.Habit.CurrentStreak, "day"))
			fmt.Fprintf(w, "Total: %d XP, level %d\n", res.Level.TotalXP, res.Level.NewLevel)
		})
	})
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show level, streaks and totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(rootOpts, cmd)
		},
	}
}

func runStats(opts *RootOptions, cmd *cobra.Command) error {
	return withSession(opts, cmd, func(ctx context.Context, s *session) error {
		sum, err := s.engine.Summary(ctx)
		if err != nil {
			return err
		}
		return s.formatter.Render(sum, func(w io.Writer) {
			lvl := sum.Level
			fmt.Fprintf(w, "Level %d  %s  %d/%d XP (%d%%)\n",
				lvl.Level, progressBar(lvl.Percent, 20), lvl.XPInLevel, engine.XPPerLevel, lvl.Percent)
			fmt.Fprintf(w, "Total XP:          %d\n", lvl.TotalXP)
			fmt.Fprintf(w, "Today:             %d/%d (%d%%)\n", sum.Today.Completed, sum.Today.Total, sum.Today.Percent)
			fmt.Fprintf(w, "Completions:       %d\n", sum.TotalCompleted)
			fmt.Fprintf(w, "Perfect weeks:     %d\n", sum.PerfectWeeks)
			fmt.Fprintf(w, "Best current:      %s\n", pluralize(sum.CurrentBest, "day"))
			fmt.Fprintf(w, "Best ever:         %s\n", pluralize(sum.BestOverall, "day"))
			fmt.Fprintf(w, "Streak days:       %d\n", sum.TotalStreakDays)
			fmt.Fprintf(w, "Achievements:      %d/%d\n", sum.Unlocked, sum.Achievements)
			fmt.Fprintf(w, "Storage:           %d bytes\n", sum.StorageBytes)
			for _, m := range sum.Milestones {
				fmt.Fprintf(w, "Milestone:         %s at %d days\n", m.HabitName, m.Days)
			}
		})
	})
}

func progressBar(percent, width int) string {
	filled := min(width, max(0, percent*width/100))
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", width-filled) + "]"
}

// NewAchievementsCommand creates the achievements command.
func NewAchievementsCommand(rootOpts *RootOptions) *cobra.Command {
	var unlockedOnly bool

	cmd := &cobra.Command{
		Use:   "achievements",
		Short: "List achievements and progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAchievements(rootOpts, unlockedOnly, cmd)
		},
	}
	cmd.Flags().BoolVar(&unlockedOnly, "unlocked", false, "only unlocked achievements")
	return cmd
}

// AchievementsResult is the output of the achievements command.
type AchievementsResult struct {
	Unlocked     int                        `json:"unlocked"`
	Total        int                        `json:"total"`
	Achievements []engine.AchievementStatus `json:"achievements"`
}

func runAchievements(opts *RootOptions, unlockedOnly bool, cmd *cobra.Command) error {
	return withSession(opts, cmd, func(ctx context.Context, s *session) error {
		all, err := s.engine.Achievements.GetAll(ctx)
		if err != nil {
			return err
		}
		unlocked, err := s.engine.Achievements.UnlockedCount(ctx)
		if err != nil {
			return err
		}
		result := AchievementsResult{
			Unlocked:     unlocked,
			Total:        s.engine.Achievements.TotalCount(),
			Achievements: []engine.AchievementStatus{},
		}
		for _, st := range all {
			if unlockedOnly && !st.Unlocked {
				continue
			}
			result.Achievements = append(result.Achievements, st)
		}

		return s.formatter.Render(result, func(w io.Writer) {
			fmt.Fprintf(w, "%d/%d unlocked\n\n", result.Unlocked, result.Total)
			for _, st := range result.Achievements {
				mark := "   "
				if st.Unlocked {
					mark = "[x]"
				}
				fmt.Fprintf(w, "%s %s %-18s %3d%%  %s\n", mark, st.Icon, st.Name, st.Percent, st.Description)
			}
		})
	})
}

// NewRolloverCommand creates the rollover command.
func NewRolloverCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rollover",
		Short: "Run the daily check",
		Long: `Run the once-per-day check: break streaks of habits missed yesterday and
award the perfect-week bonus on Saturdays. Every command runs this first;
this command reports what it did.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRollover(rootOpts, cmd)
		},
	}
}

func runRollover(opts *RootOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	s, err := openSession(ctx, opts, cmd, false)
	if err != nil {
		return err
	}
	defer s.Close()

	rep, err := s.engine.Rollover.Run(ctx)
	if err != nil {
		return err
	}
	return s.formatter.Render(rep, func(w io.Writer) {
		if !rep.Ran {
			fmt.Fprintf(w, "Already rolled over for %s.\n", rep.Date)
			return
		}
		fmt.Fprintf(w, "Rolled over from %s to %s\n", rep.Previous, rep.Date)
		if len(rep.Broken) == 0 {
			fmt.Fprintln(w, "No streaks broken.")
		}
		for _, id := range rep.Broken {
			fmt.Fprintf(w, "Streak broken: %s\n", id)
		}
		if rep.PerfectWeek {
			fmt.Fprintf(w, "Perfect week! +%d XP\n", engine.PerfectWeekBonus)
		}
		printUnlocked(w, rep.Unlocked)
	})
}
