package engine

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/tally/internal/model"
	"github.com/roach88/tally/internal/store"
)

// HabitInput describes a new habit. Zero values take the defaults.
type HabitInput struct {
	Name          string
	Description   string
	Icon          string
	Color         string
	Frequency     model.Frequency
	ScheduledDays []int
	Reminder      *model.Reminder
}

// HabitPatch changes the non-nil fields of a habit.
type HabitPatch struct {
	Name          *string
	Description   *string
	Icon          *string
	Color         *string
	Frequency     *model.Frequency
	ScheduledDays *[]int
	Enabled       *bool
	Reminder      *model.Reminder
}

// Change is the result of an edit that may unlock achievements.
type Change struct {
	Habit    model.Habit  `json:"habit"`
	Unlocked []Definition `json:"unlocked"`
}

// CompleteResult reports everything one completion changed.
type CompleteResult struct {
	Habit            model.Habit  `json:"habit"`
	AlreadyCompleted bool         `json:"alreadyCompleted"`
	Award            Award        `json:"award"`
	Level            LevelChange  `json:"level"`
	PerfectWeek      bool         `json:"perfectWeek"`
	Unlocked         []Definition `json:"unlocked"`
	Milestone        *Milestone   `json:"milestone,omitempty"`
}

// UncompleteResult reports the effect of undoing today's completion.
type UncompleteResult struct {
	Habit    model.Habit `json:"habit"`
	Deducted int         `json:"deducted"`
	Level    LevelChange `json:"level"`
}

// TodayStats summarizes the habits due today.
type TodayStats struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
	Percent   int `json:"percent"`
}

// Habits is the habit-facing service. Completion and undo run the streak,
// XP and achievement rules in a single transaction.
type Habits struct {
	*base
	streaks      *Streaks
	xp           *XP
	achievements *Achievements
}

func normalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

func checkSchedule(f model.Frequency, days []int) error {
	if !f.IsValid() {
		return invalidHabit("invalid frequency %q", f)
	}
	if f == model.FrequencyCustom && len(days) == 0 {
		return invalidHabit("custom frequency needs at least one day")
	}
	for _, d := range days {
		if d < 0 || d > 6 {
			return invalidHabit("scheduled day %d is outside 0..6", d)
		}
	}
	return nil
}

// Create adds a habit at the end of the list.
func (s *Habits) Create(ctx context.Context, in HabitInput) (*Change, error) {
	name := normalizeName(in.Name)
	if name == "" {
		return nil, invalidHabit("name is required")
	}
	if in.Frequency == "" {
		in.Frequency = model.FrequencyDaily
	}
	if err := checkSchedule(in.Frequency, in.ScheduledDays); err != nil {
		return nil, err
	}

	return withDocument(ctx, s.base, func(txn *store.Txn, today model.Date) (*Change, error) {
		doc := txn.Doc
		h := model.Habit{
			ID:             s.ids.Generate(),
			Name:           name,
			Description:    strings.TrimSpace(in.Description),
			Icon:           cmp.Or(in.Icon, model.DefaultHabitIcon),
			Color:          cmp.Or(in.Color, model.DefaultHabitColor),
			Frequency:      in.Frequency,
			Enabled:        true,
			CompletedDates: []model.Date{},
			CreatedDate:    today,
			Reminder:       model.Reminder{Time: model.DefaultReminderTime},
			Order:          doc.NextOrder(),
		}
		h.SetScheduledDays(in.ScheduledDays)
		if in.Reminder != nil {
			h.Reminder = *in.Reminder
			h.Reminder.Time = cmp.Or(h.Reminder.Time, model.DefaultReminderTime)
		}
		doc.Habits = append(doc.Habits, h)

		txn.Record(store.EventHabitCreated, h.ID, today, store.Payload{
			"name":      h.Name,
			"frequency": string(h.Frequency),
		})
		s.logger.Info("habit created", "habit", h.ID, "name", h.Name)

		unlocked := s.achievements.applyCheckAll(txn, today)
		return &Change{Habit: h, Unlocked: unlocked}, nil
	})
}

// Update applies patch to the habit. Streak state is never edited here.
func (s *Habits) Update(ctx context.Context, id string, patch HabitPatch) (*Change, error) {
	return withDocument(ctx, s.base, func(txn *store.Txn, today model.Date) (*Change, error) {
		h := txn.Doc.Habit(id)
		if h == nil {
			return nil, notFound(id)
		}

		next := *h
		fields := []string{}
		if patch.Name != nil {
			name := normalizeName(*patch.Name)
			if name == "" {
				return nil, invalidHabit("name is required")
			}
			next.Name = name
			fields = append(fields, "name")
		}
		if patch.Description != nil {
			next.Description = strings.TrimSpace(*patch.Description)
			fields = append(fields, "description")
		}
		if patch.Icon != nil {
			next.Icon = cmp.Or(*patch.Icon, model.DefaultHabitIcon)
			fields = append(fields, "icon")
		}
		if patch.Color != nil {
			next.Color = cmp.Or(*patch.Color, model.DefaultHabitColor)
			fields = append(fields, "color")
		}
		if patch.Frequency != nil {
			next.Frequency = *patch.Frequency
			fields = append(fields, "frequency")
		}
		if patch.ScheduledDays != nil {
			next.ScheduledDays = *patch.ScheduledDays
			fields = append(fields, "scheduledDays")
		}
		if patch.Enabled != nil {
			next.Enabled = *patch.Enabled
			fields = append(fields, "enabled")
		}
		if patch.Reminder != nil {
			next.Reminder = *patch.Reminder
			next.Reminder.Time = cmp.Or(next.Reminder.Time, model.DefaultReminderTime)
			fields = append(fields, "reminder")
		}
		if err := checkSchedule(next.Frequency, next.ScheduledDays); err != nil {
			return nil, err
		}
		next.SetScheduledDays(next.ScheduledDays)
		*h = next

		txn.Record(store.EventHabitUpdated, h.ID, today, store.Payload{"fields": fields})
		s.logger.Debug("habit updated", "habit", h.ID, "fields", fields)

		unlocked := []Definition{}
		if patch.Enabled != nil {
			unlocked = s.achievements.applyCheckAll(txn, today)
		}
		return &Change{Habit: *h, Unlocked: unlocked}, nil
	})
}

// ToggleEnabled flips the habit's enabled flag.
func (s *Habits) ToggleEnabled(ctx context.Context, id string) (*Change, error) {
	h, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	enabled := !h.Enabled
	return s.Update(ctx, id, HabitPatch{Enabled: &enabled})
}

// Delete removes the habit and its history.
func (s *Habits) Delete(ctx context.Context, id string) error {
	_, err := withDocument(ctx, s.base, func(txn *store.Txn, today model.Date) (struct{}, error) {
		h := txn.Doc.Habit(id)
		if h == nil {
			return struct{}{}, notFound(id)
		}
		name := h.Name
		txn.Doc.RemoveHabit(id)
		txn.Record(store.EventHabitDeleted, id, today, store.Payload{"name": name})
		s.logger.Info("habit deleted", "habit", id, "name", name)
		return struct{}{}, nil
	})
	return err
}

// Reorder moves the habit at position from to position to, both indexes into
// List, and renumbers every habit's order to its new index.
func (s *Habits) Reorder(ctx context.Context, from, to int) ([]model.Habit, error) {
	return withDocument(ctx, s.base, func(txn *store.Txn, today model.Date) ([]model.Habit, error) {
		doc := txn.Doc
		sorted := doc.SortedHabits()
		n := len(sorted)
		if from < 0 || from >= n || to < 0 || to >= n {
			return nil, invalidReorder(from, to, n)
		}

		moved := sorted[from]
		sorted = slices.Delete(sorted, from, from+1)
		sorted = slices.Insert(sorted, to, moved)
		for i := range sorted {
			sorted[i].Order = i
			doc.Habit(sorted[i].ID).Order = i
		}

		txn.Record(store.EventHabitReordered, moved.ID, today, store.Payload{"from": from, "to": to})
		return sorted, nil
	})
}

// Get returns one habit.
func (s *Habits) Get(ctx context.Context, id string) (model.Habit, error) {
	doc, _, err := s.snapshot(ctx)
	if err != nil {
		return model.Habit{}, err
	}
	h := doc.Habit(id)
	if h == nil {
		return model.Habit{}, notFound(id)
	}
	return *h, nil
}

// List returns all habits by order.
func (s *Habits) List(ctx context.Context) ([]model.Habit, error) {
	doc, _, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return doc.SortedHabits(), nil
}

// Today returns the enabled habits scheduled today, by order.
func (s *Habits) Today(ctx context.Context) ([]model.Habit, error) {
	doc, today, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return DueOn(doc, today), nil
}

// TodayStats counts today's due habits and how many are done.
func (s *Habits) TodayStats(ctx context.Context) (TodayStats, error) {
	doc, today, err := s.snapshot(ctx)
	if err != nil {
		return TodayStats{}, err
	}
	return StatsOn(doc, today), nil
}

// DueOn returns the enabled habits scheduled on d, by order.
func DueOn(doc *model.Document, d model.Date) []model.Habit {
	out := []model.Habit{}
	for _, h := range doc.SortedHabits() {
		if h.Enabled && WasActiveOn(&h, d) {
			out = append(out, h)
		}
	}
	return out
}

// StatsOn summarizes the habits due on d.
func StatsOn(doc *model.Document, d model.Date) TodayStats {
	due := DueOn(doc, d)
	st := TodayStats{Total: len(due)}
	for i := range due {
		if due[i].HasCompletion(d) {
			st.Completed++
		}
	}
	st.Percent = roundPercent(st.Completed, st.Total)
	return st
}

// CompletionRate is the percentage of expected completions since the habit
// was created, capped at 100. Weekly habits expect one per seven days,
// custom habits one per scheduled day.
func CompletionRate(h *model.Habit, today model.Date) int {
	days := max(1, today.DaysSince(h.CreatedDate))
	var expected int
	switch h.Frequency {
	case model.FrequencyWeekly:
		expected = ceilDiv(days, 7)
	case model.FrequencyCustom:
		expected = ceilDiv(days*len(h.ScheduledDays), 7)
	default:
		expected = days
	}
	if expected == 0 {
		return 0
	}
	return min(100, roundPercent(len(h.CompletedDates), expected))
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// Complete marks the habit done for today and applies, in order, the streak
// rule, the completion award, the trigger and achievement checks and the
// perfect-week check. A second completion on the same day changes nothing.
func (s *Habits) Complete(ctx context.Context, id string) (*CompleteResult, error) {
	now := s.clock.Now()
	return withDocumentAt(ctx, s.base, now, func(txn *store.Txn, today model.Date) (*CompleteResult, error) {
		doc := txn.Doc
		h := doc.Habit(id)
		if h == nil {
			return nil, notFound(id)
		}
		res := &CompleteResult{Unlocked: []Definition{}}
		if h.HasCompletion(today) {
			res.Habit = *h
			res.AlreadyCompleted = true
			res.Level = LevelChange{
				OldLevel: doc.Stats.Level,
				NewLevel: doc.Stats.Level,
				TotalXP:  doc.Stats.TotalXP,
			}
			return res, nil
		}

		oldLevel := doc.Stats.Level
		h.AddCompletion(today)
		doc.Stats.TotalCompleted++
		txn.Record(store.EventHabitCompleted, h.ID, today, store.Payload{
			"totalCompleted": doc.Stats.TotalCompleted,
		})

		s.streaks.applyComplete(txn, h, today)

		res.Award = CompletionAward(h.CurrentStreak)
		s.xp.apply(txn, today, res.Award.Total, "completion", h.ID)

		s.achievements.applyObserve(txn, Observation{HabitID: h.ID, At: now})
		res.Unlocked = append(res.Unlocked, s.achievements.applyCheckAll(txn, today)...)

		if s.xp.applyPerfectWeek(txn, today) {
			res.PerfectWeek = true
			res.Unlocked = append(res.Unlocked, s.achievements.applyCheckAll(txn, today)...)
		}

		if slices.Contains(MilestoneDays, h.CurrentStreak) {
			res.Milestone = &Milestone{HabitID: h.ID, HabitName: h.Name, Days: h.CurrentStreak}
		}
		res.Habit = *h
		res.Level = LevelChange{
			OldLevel:  oldLevel,
			NewLevel:  doc.Stats.Level,
			TotalXP:   doc.Stats.TotalXP,
			LeveledUp: doc.Stats.Level > oldLevel,
		}
		s.logger.Info("habit completed", "habit", h.ID, "date", today, "xp", res.Award.Total, "level", doc.Stats.Level)
		return res, nil
	})
}

// Uncomplete undoes today's completion: the award for the current streak is
// deducted, the streak is rolled back and today is removed. Achievements
// stay unlocked.
func (s *Habits) Uncomplete(ctx context.Context, id string) (*UncompleteResult, error) {
	return withDocument(ctx, s.base, func(txn *store.Txn, today model.Date) (*UncompleteResult, error) {
		doc := txn.Doc
		h := doc.Habit(id)
		if h == nil {
			return nil, notFound(id)
		}
		if !h.HasCompletion(today) {
			return nil, notCompletedToday(id)
		}

		oldXP := doc.Stats.TotalXP
		deduct := CompletionAward(h.CurrentStreak).Total
		level := s.xp.apply(txn, today, -deduct, "uncomplete", h.ID)
		level.OldLevel = Level(oldXP)
		doc.Stats.TotalCompleted = max(0, doc.Stats.TotalCompleted-1)

		s.streaks.applyUncomplete(txn, h, today)
		h.RemoveCompletion(today)
		txn.Record(store.EventHabitUncompleted, h.ID, today, store.Payload{
			"totalCompleted": doc.Stats.TotalCompleted,
		})
		s.logger.Info("habit uncompleted", "habit", h.ID, "date", today, "xp", oldXP-doc.Stats.TotalXP)

		return &UncompleteResult{Habit: *h, Deducted: oldXP - doc.Stats.TotalXP, Level: level}, nil
	})
}
