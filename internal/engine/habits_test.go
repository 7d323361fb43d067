package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tally/internal/model"
	"github.com/roach88/tally/internal/store"
	"github.com/roach88/tally/internal/testutil"
)

func TestHabits_Create_Defaults(t *testing.T) {
	env := newTestEngine(t, "2026-10-18")

	ch, err := env.Habits.Create(context.Background(), HabitInput{Name: "  Read  "})
	require.NoError(t, err)

	h := ch.Habit
	assert.Equal(t, "habit-1", h.ID)
	assert.Equal(t, "Read", h.Name)
	assert.Equal(t, model.FrequencyDaily, h.Frequency)
	assert.Equal(t, model.DefaultHabitIcon, h.Icon)
	assert.Equal(t, model.DefaultHabitColor, h.Color)
	assert.True(t, h.Enabled)
	assert.Equal(t, model.MustDate("2026-10-18"), h.CreatedDate)
	assert.Equal(t, model.DefaultReminderTime, h.Reminder.Time)
	assert.Empty(t, h.CompletedDates)
	assert.Equal(t, 0, h.Order)
	assert.Empty(t, ch.Unlocked)
}

func TestHabits_Create_NormalizesName(t *testing.T) {
	env := newTestEngine(t, "2026-10-18")

	ch, err := env.Habits.Create(context.Background(), HabitInput{Name: "  Cafe\u0301 visit "})
	require.NoError(t, err)

	assert.Equal(t, "Caf\u00e9 visit", ch.Habit.Name)
}

func TestHabits_Create_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input HabitInput
	}{
		{"empty name", HabitInput{Name: "   "}},
		{"bad frequency", HabitInput{Name: "Read", Frequency: "hourly"}},
		{"custom without days", HabitInput{Name: "Read", Frequency: model.FrequencyCustom}},
		{"day out of range", HabitInput{Name: "Read", Frequency: model.FrequencyCustom, ScheduledDays: []int{7}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEngine(t, "2026-10-18")
			_, err := env.Habits.Create(context.Background(), tt.input)
			assert.True(t, IsInvalidHabit(err), "got %v", err)
			assert.ErrorIs(t, err, ErrInvalidHabit)
		})
	}
}

func TestHabits_Create_OrderAndDays(t *testing.T) {
	env := newTestEngine(t, "2026-10-18")
	ctx := context.Background()
	env.mustCreate(t, "Read")

	ch, err := env.Habits.Create(ctx, HabitInput{
		Name:          "Gym",
		Frequency:     model.FrequencyCustom,
		ScheduledDays: []int{5, 1, 5, 3},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, ch.Habit.Order)
	assert.Equal(t, []int{1, 3, 5}, ch.Habit.ScheduledDays)
}

func TestHabits_Update(t *testing.T) {
	env := newTestEngine(t, "2026-10-18")
	ctx := context.Background()
	id := env.mustCreate(t, "Read")
	env.mustComplete(t, id)

	name := "Read fiction"
	weekly := model.FrequencyWeekly
	ch, err := env.Habits.Update(ctx, id, HabitPatch{Name: &name, Frequency: &weekly})
	require.NoError(t, err)

	assert.Equal(t, "Read fiction", ch.Habit.Name)
	assert.Equal(t, model.FrequencyWeekly, ch.Habit.Frequency)
	assert.Equal(t, 1, ch.Habit.CurrentStreak, "edits keep streak state")

	events, err := env.Events(ctx, store.EventFilter{Kind: store.EventHabitUpdated})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.JSONEq(t, `{"fields":["name","frequency"]}`, string(events[0].Payload))
}

func TestHabits_Update_Errors(t *testing.T) {
	env := newTestEngine(t, "2026-10-18")
	ctx := context.Background()
	id := env.mustCreate(t, "Read")

	empty := ""
	_, err := env.Habits.Update(ctx, id, HabitPatch{Name: &empty})
	assert.True(t, IsInvalidHabit(err))

	custom := model.FrequencyCustom
	_, err = env.Habits.Update(ctx, id, HabitPatch{Frequency: &custom})
	assert.True(t, IsInvalidHabit(err))

	_, err = env.Habits.Update(ctx, "missing", HabitPatch{Name: &empty})
	assert.True(t, IsNotFound(err))

	assert.Equal(t, "Read", env.habit(t, id).Name, "failed edits leave the habit unchanged")
}

func TestHabits_ToggleEnabled(t *testing.T) {
	env := newTestEngine(t, "2026-10-18")
	ctx := context.Background()
	id := env.mustCreate(t, "Read")

	ch, err := env.Habits.ToggleEnabled(ctx, id)
	require.NoError(t, err)
	assert.False(t, ch.Habit.Enabled)

	ch, err = env.Habits.ToggleEnabled(ctx, id)
	require.NoError(t, err)
	assert.True(t, ch.Habit.Enabled)

	_, err = env.Habits.ToggleEnabled(ctx, "missing")
	assert.True(t, IsNotFound(err))
}

func TestHabits_Delete(t *testing.T) {
	env := newTestEngine(t, "2026-10-18")
	ctx := context.Background()
	id := env.mustCreate(t, "Read")
	env.mustCreate(t, "Run")

	require.NoError(t, env.Habits.Delete(ctx, id))

	habits, err := env.Habits.List(ctx)
	require.NoError(t, err)
	require.Len(t, habits, 1)
	assert.Equal(t, "Run", habits[0].Name)

	assert.True(t, IsNotFound(env.Habits.Delete(ctx, id)))
}

func TestHabits_Reorder(t *testing.T) {
	env := newTestEngine(t, "2026-10-18")
	ctx := context.Background()
	for _, name := range []string{"A", "B", "C", "D"} {
		env.mustCreate(t, name)
	}

	sorted, err := env.Habits.Reorder(ctx, 0, 2)
	require.NoError(t, err)

	names := func(hs []model.Habit) []string {
		out := make([]string, len(hs))
		for i, h := range hs {
			out[i] = h.Name
		}
		return out
	}
	assert.Equal(t, []string{"B", "C", "A", "D"}, names(sorted))

	listed, err := env.Habits.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "C", "A", "D"}, names(listed))
	for i, h := range listed {
		assert.Equal(t, i, h.Order)
	}
}

func TestHabits_Reorder_OutOfRange(t *testing.T) {
	env := newTestEngine(t, "2026-10-18")
	ctx := context.Background()
	env.mustCreate(t, "A")
	env.mustCreate(t, "B")

	for _, pos := range [][2]int{{-1, 0}, {0, 2}, {2, 0}} {
		_, err := env.Habits.Reorder(ctx, pos[0], pos[1])
		assert.True(t, IsInvalidReorder(err), "from=%d to=%d", pos[0], pos[1])
	}
}

func TestHabits_TodayAndStats(t *testing.T) {
	env := newTestEngine(t, "2026-10-19") // Monday
	ctx := context.Background()
	read := env.mustCreate(t, "Read")
	_, err := env.Habits.Create(ctx, HabitInput{Name: "Gym", Frequency: model.FrequencyCustom, ScheduledDays: []int{2, 4}})
	require.NoError(t, err)
	_, err = env.Habits.Create(ctx, HabitInput{Name: "Review", Frequency: model.FrequencyWeekly})
	require.NoError(t, err)
	off := env.mustCreate(t, "Paused")
	_, err = env.Habits.ToggleEnabled(ctx, off)
	require.NoError(t, err)

	today, err := env.Habits.Today(ctx)
	require.NoError(t, err)
	var names []string
	for _, h := range today {
		names = append(names, h.Name)
	}
	assert.Equal(t, []string{"Read", "Review"}, names)

	env.mustComplete(t, read)
	stats, err := env.Habits.TodayStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, TodayStats{Completed: 1, Total: 2, Percent: 50}, stats)
}

func TestCompletionRate(t *testing.T) {
	today := model.MustDate("2026-10-31")
	dates := func(n int) []model.Date {
		out := make([]model.Date, n)
		for i := range out {
			out[i] = today.AddDays(-i)
		}
		return out
	}

	tests := []struct {
		name  string
		habit model.Habit
		want  int
	}{
		{
			name:  "created today counts one day",
			habit: model.Habit{Frequency: model.FrequencyDaily, CreatedDate: today, CompletedDates: dates(1)},
			want:  100,
		},
		{
			name:  "daily half",
			habit: model.Habit{Frequency: model.FrequencyDaily, CreatedDate: today.AddDays(-10), CompletedDates: dates(5)},
			want:  50,
		},
		{
			name:  "weekly expects one per week",
			habit: model.Habit{Frequency: model.FrequencyWeekly, CreatedDate: today.AddDays(-14), CompletedDates: dates(1)},
			want:  50,
		},
		{
			name: "custom expects scheduled days",
			habit: model.Habit{
				Frequency: model.FrequencyCustom, ScheduledDays: []int{1, 3, 5},
				CreatedDate: today.AddDays(-14), CompletedDates: dates(3),
			},
			want: 50,
		},
		{
			name:  "capped at 100",
			habit: model.Habit{Frequency: model.FrequencyWeekly, CreatedDate: today.AddDays(-7), CompletedDates: dates(4)},
			want:  100,
		},
		{
			name:  "custom without days",
			habit: model.Habit{Frequency: model.FrequencyCustom, CreatedDate: today.AddDays(-7)},
			want:  0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CompletionRate(&tt.habit, today))
		})
	}
}

func TestHabits_Complete(t *testing.T) {
	env := newTestEngine(t, "2026-10-18")
	id := env.mustCreate(t, "Read")

	res := env.mustComplete(t, id)

	assert.False(t, res.AlreadyCompleted)
	assert.Equal(t, 1, res.Habit.CurrentStreak)
	assert.Equal(t, []model.Date{"2026-10-18"}, res.Habit.CompletedDates)
	assert.Equal(t, Award{Base: HabitComplete, Total: HabitComplete}, res.Award)
	assert.Equal(t, LevelChange{OldLevel: 1, NewLevel: 1, TotalXP: 35}, res.Level)
	assert.Nil(t, res.Milestone)

	doc := env.doc(t)
	assert.Equal(t, 1, doc.Stats.TotalCompleted)

	assert.Equal(t, []store.EventKind{
		store.EventHabitCreated,
		store.EventHabitCompleted,
		store.EventStreakUpdated,
		store.EventXPAwarded,
		store.EventAchievementUnlocked,
		store.EventXPAwarded,
	}, env.eventKinds(t, store.EventFilter{}))
}

func TestHabits_Complete_Twice(t *testing.T) {
	env := newTestEngine(t, "2026-10-18")
	id := env.mustCreate(t, "Read")
	env.mustComplete(t, id)
	before := env.doc(t)

	res := env.mustComplete(t, id)

	assert.True(t, res.AlreadyCompleted)
	assert.Equal(t, 0, res.Award.Total)
	after := env.doc(t)
	assert.Equal(t, before.Stats, after.Stats)
	assert.Equal(t, before.Habits, after.Habits)
}

func TestHabits_Complete_UnknownHabit(t *testing.T) {
	env := newTestEngine(t, "2026-10-18")

	_, err := env.Habits.Complete(context.Background(), "missing")

	assert.True(t, IsNotFound(err))
	assert.Empty(t, env.eventKinds(t, store.EventFilter{}), "a failed operation records nothing")
}

func TestHabits_Complete_Milestone(t *testing.T) {
	env := newTestEngine(t, "2026-10-18")
	id := env.mustCreate(t, "Read")

	res := env.completeDays(t, id, 3)

	require.NotNil(t, res.Milestone)
	assert.Equal(t, Milestone{HabitID: id, HabitName: "Read", Days: 3}, *res.Milestone)
}

func TestHabits_Complete_LevelUp(t *testing.T) {
	env := newTestEngine(t, "2026-10-18")
	id := env.mustCreate(t, "Read")
	_, err := env.XP.AddXP(context.Background(), 95)
	require.NoError(t, err)

	res := env.mustComplete(t, id)

	assert.True(t, res.Level.LeveledUp)
	assert.Equal(t, 1, res.Level.OldLevel)
	assert.Equal(t, 2, res.Level.NewLevel)
}

func TestHabits_Complete_PerfectWeek(t *testing.T) {
	env := newTestEngine(t, "2026-10-18")
	id := env.mustCreate(t, "Read")

	res := env.completeDays(t, id, 7)

	assert.True(t, res.PerfectWeek)
	assert.ElementsMatch(t, []string{"streak_7", "perfect_week"}, unlockedIDs(res.Unlocked))

	doc := env.doc(t)
	assert.Equal(t, 1, doc.Stats.PerfectWeeks)
	// 10+10+15*4+20 completions, four unlocks, one perfect week.
	assert.Equal(t, 100+4*AchievementBonus+PerfectWeekBonus, doc.Stats.TotalXP)
}

func TestHabits_Uncomplete(t *testing.T) {
	env := newTestEngine(t, "2026-10-18")
	ctx := context.Background()
	id := env.mustCreate(t, "Read")
	env.completeDays(t, id, 3)
	before := env.doc(t).Stats.TotalXP

	res, err := env.Habits.Uncomplete(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, 15, res.Deducted)
	assert.Equal(t, before-15, res.Level.TotalXP)
	assert.Equal(t, 2, res.Habit.CurrentStreak)
	assert.Equal(t, 3, res.Habit.BestStreak)
	assert.Equal(t, model.MustDate("2026-10-19"), res.Habit.LastCompletedDate)
	assert.False(t, res.Habit.HasCompletion(model.MustDate("2026-10-20")))
	assert.Equal(t, 2, env.doc(t).Stats.TotalCompleted)
}

func TestHabits_Uncomplete_NotCompletedToday(t *testing.T) {
	env := newTestEngine(t, "2026-10-18")
	ctx := context.Background()
	id := env.mustCreate(t, "Read")
	env.mustComplete(t, id)
	env.clock.AdvanceDays(1)

	_, err := env.Habits.Uncomplete(ctx, id)

	assert.True(t, IsNotCompletedToday(err))
	assert.ErrorIs(t, err, ErrNotCompletedToday)
}

func TestHabits_Uncomplete_FloorsXP(t *testing.T) {
	env := newTestEngine(t, "2026-10-18")
	ctx := context.Background()
	id := env.mustCreate(t, "Read")
	env.mustComplete(t, id)
	_, err := env.XP.AddXP(ctx, -30)
	require.NoError(t, err)

	res, err := env.Habits.Uncomplete(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, 5, res.Deducted)
	assert.Equal(t, 0, env.doc(t).Stats.TotalXP)
}

// queuedClock returns the queued times in order, then repeats the last one.
type queuedClock struct {
	mu    sync.Mutex
	times []time.Time
}

func (c *queuedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.times[0]
	if len(c.times) > 1 {
		c.times = c.times[1:]
	}
	return now
}

func (c *queuedClock) queue(times ...time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.times = times
}

func TestHabits_Complete_AtMidnightUsesOneDay(t *testing.T) {
	ctx := context.Background()
	beforeMidnight := time.Date(2026, 10, 18, 23, 59, 59, 0, time.UTC)
	afterMidnight := beforeMidnight.Add(2 * time.Second)

	clock := &queuedClock{times: []time.Time{beforeMidnight}}
	e, err := New(store.NewMemory(), WithClock(clock), WithIDs(testutil.NewSequentialIDs("habit")))
	require.NoError(t, err)
	ch, err := e.Habits.Create(ctx, HabitInput{Name: "Read"})
	require.NoError(t, err)

	clock.queue(beforeMidnight, afterMidnight)
	res, err := e.Habits.Complete(ctx, ch.Habit.ID)
	require.NoError(t, err)

	assert.Equal(t, []model.Date{"2026-10-18"}, res.Habit.CompletedDates)
	assert.Equal(t, model.Date("2026-10-18"), res.Habit.LastCompletedDate)
	assert.Contains(t, unlockedIDs(res.Unlocked), "night_owl")

	doc, err := e.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.Date("2026-10-18"), doc.Triggers.NightOwlOn)
}
