package engine

import (
	"context"
	"slices"
	"time"

	"github.com/roach88/tally/internal/model"
	"github.com/roach88/tally/internal/store"
)

// brokenThreshold is the best streak a habit must have reached for a reset
// to count toward "comeback".
const brokenThreshold = 3

// MilestoneDays are the streak lengths worth celebrating.
var MilestoneDays = []int{3, 7, 14, 21, 30, 60, 90, 100, 365}

// Streaks maintains per-habit consecutive-day counts.
type Streaks struct {
	*base
}

// Complete applies the completion rule for today to the habit:
// same day is a no-op, yesterday extends the streak, anything else
// restarts it at 1.
func (s *Streaks) Complete(ctx context.Context, habitID string) (model.Habit, error) {
	return withDocument(ctx, s.base, func(txn *store.Txn, today model.Date) (model.Habit, error) {
		h := txn.Doc.Habit(habitID)
		if h == nil {
			return model.Habit{}, notFound(habitID)
		}
		s.applyComplete(txn, h, today)
		return *h, nil
	})
}

func (s *Streaks) applyComplete(txn *store.Txn, h *model.Habit, today model.Date) {
	last := h.LastCompletedDate
	if last == today {
		return
	}

	prev := h.CurrentStreak
	if !last.IsZero() && today.DaysSince(last) == 1 {
		h.CurrentStreak++
	} else {
		h.CurrentStreak = 1
		if h.BestStreak >= brokenThreshold {
			s.markBroken(txn, h, today, prev)
		}
	}
	if h.CurrentStreak > h.BestStreak {
		h.BestStreak = h.CurrentStreak
	}
	h.LastCompletedDate = today

	txn.Record(store.EventStreakUpdated, h.ID, today, store.Payload{
		"current": h.CurrentStreak,
		"best":    h.BestStreak,
	})
	s.logger.Debug("streak updated", "habit", h.ID, "date", today, "streak", h.CurrentStreak)
}

// Uncomplete reverses the streak effect of today's completion. It does not
// touch completedDates.
func (s *Streaks) Uncomplete(ctx context.Context, habitID string) (model.Habit, error) {
	return withDocument(ctx, s.base, func(txn *store.Txn, today model.Date) (model.Habit, error) {
		h := txn.Doc.Habit(habitID)
		if h == nil {
			return model.Habit{}, notFound(habitID)
		}
		s.applyUncomplete(txn, h, today)
		return *h, nil
	})
}

func (s *Streaks) applyUncomplete(txn *store.Txn, h *model.Habit, today model.Date) {
	if h.LastCompletedDate != today {
		return
	}

	prev := h.CurrentStreak
	if h.HasCompletion(today.AddDays(-1)) {
		h.CurrentStreak = max(0, h.CurrentStreak-1)
	} else {
		h.CurrentStreak = 0
		if h.BestStreak >= brokenThreshold {
			s.markBroken(txn, h, today, prev)
		}
	}
	h.LastCompletedDate = latestBefore(h, today)

	txn.Record(store.EventStreakUpdated, h.ID, today, store.Payload{
		"current": h.CurrentStreak,
		"best":    h.BestStreak,
	})
}

// latestBefore returns the most recent completion strictly before d.
func latestBefore(h *model.Habit, d model.Date) model.Date {
	for i := len(h.CompletedDates) - 1; i >= 0; i-- {
		if h.CompletedDates[i].Before(d) {
			return h.CompletedDates[i]
		}
	}
	return ""
}

// CheckBrokenStreaks zeroes the streak of every enabled habit that was due
// yesterday and was last completed before yesterday. Rest days do not break
// a streak. It returns the ids of habits whose streak was reset.
func (s *Streaks) CheckBrokenStreaks(ctx context.Context) ([]string, error) {
	return withDocument(ctx, s.base, func(txn *store.Txn, today model.Date) ([]string, error) {
		return s.applyBrokenStreaks(txn, today), nil
	})
}

func (s *Streaks) applyBrokenStreaks(txn *store.Txn, today model.Date) []string {
	yesterday := today.AddDays(-1)
	broken := []string{}
	for i := range txn.Doc.Habits {
		h := &txn.Doc.Habits[i]
		if !h.Enabled || h.LastCompletedDate.IsZero() || h.CurrentStreak == 0 {
			continue
		}
		if h.LastCompletedDate == today || h.LastCompletedDate == yesterday {
			continue
		}
		if !WasActiveOn(h, yesterday) {
			continue
		}

		prev := h.CurrentStreak
		h.CurrentStreak = 0
		if h.BestStreak >= brokenThreshold {
			s.markBroken(txn, h, today, prev)
		}
		txn.Record(store.EventStreakBroken, h.ID, today, store.Payload{
			"previous":      prev,
			"lastCompleted": h.LastCompletedDate,
		})
		s.logger.Info("streak broken", "habit", h.ID, "date", today, "previous", prev)
		broken = append(broken, h.ID)
	}
	return broken
}

func (s *Streaks) markBroken(txn *store.Txn, h *model.Habit, today model.Date, prev int) {
	if txn.Doc.Triggers.MarkStreakBroken(h.ID) {
		s.logger.Debug("streak loss recorded", "habit", h.ID, "date", today, "previous", prev)
	}
}

// WasActiveOn reports whether the habit is scheduled on d: daily habits
// always, weekly habits on their days (Monday if none), custom habits on
// their days only.
func WasActiveOn(h *model.Habit, d model.Date) bool {
	wd := d.Weekday()
	switch h.Frequency {
	case model.FrequencyWeekly:
		if len(h.ScheduledDays) == 0 {
			return wd == time.Monday
		}
		return h.IsScheduledOn(wd)
	case model.FrequencyCustom:
		return h.IsScheduledOn(wd)
	default:
		return true
	}
}

// BestOverall returns the highest best streak across all habits.
func BestOverall(doc *model.Document) int {
	best := 0
	for _, h := range doc.Habits {
		best = max(best, h.BestStreak)
	}
	return best
}

// CurrentBest returns the highest current streak across all habits.
func CurrentBest(doc *model.Document) int {
	best := 0
	for _, h := range doc.Habits {
		best = max(best, h.CurrentStreak)
	}
	return best
}

// TotalStreakDays sums the current streaks of all habits.
func TotalStreakDays(doc *model.Document) int {
	total := 0
	for _, h := range doc.Habits {
		total += h.CurrentStreak
	}
	return total
}

// Leaderboard returns enabled habits by current streak, longest first.
// Ties keep list order.
func Leaderboard(doc *model.Document) []model.Habit {
	out := []model.Habit{}
	for _, h := range doc.SortedHabits() {
		if h.Enabled {
			out = append(out, h)
		}
	}
	slices.SortStableFunc(out, func(a, b model.Habit) int {
		return b.CurrentStreak - a.CurrentStreak
	})
	return out
}

// Milestone is a habit sitting exactly on a milestone streak.
type Milestone struct {
	HabitID   string `json:"habitId"`
	HabitName string `json:"habitName"`
	Days      int    `json:"days"`
}

// Milestones lists habits whose current streak equals one of MilestoneDays.
func Milestones(doc *model.Document) []Milestone {
	out := []Milestone{}
	for _, h := range doc.Habits {
		if slices.Contains(MilestoneDays, h.CurrentStreak) {
			out = append(out, Milestone{HabitID: h.ID, HabitName: h.Name, Days: h.CurrentStreak})
		}
	}
	return out
}

// StreakTier is a display tier for a streak length.
type StreakTier string

const (
	TierNone     StreakTier = ""
	TierGrowing  StreakTier = "growing"
	TierBuilding StreakTier = "building"
	TierHot      StreakTier = "hot"
	TierFire     StreakTier = "fire"
)

// StreakStatus is the display status for a streak.
type StreakStatus struct {
	Tier  StreakTier `json:"tier"`
	Emoji string     `json:"emoji"`
	Label string     `json:"label"`
}

// Status maps a streak length to its display tier.
func Status(streak int) StreakStatus {
	switch {
	case streak >= 30:
		return StreakStatus{Tier: TierFire, Emoji: "🔥", Label: "On Fire!"}
	case streak >= 7:
		return StreakStatus{Tier: TierHot, Emoji: "⚡", Label: "Hot Streak!"}
	case streak >= 3:
		return StreakStatus{Tier: TierBuilding, Emoji: "✨", Label: "Building!"}
	case streak > 0:
		return StreakStatus{Tier: TierGrowing, Emoji: "🌱", Label: "Growing"}
	default:
		return StreakStatus{Tier: TierNone}
	}
}
