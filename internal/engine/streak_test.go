package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tally/internal/model"
	"github.com/roach88/tally/internal/store"
)

func TestStreaks_Complete_ConsecutiveDays(t *testing.T) {
	env := newTestEngine(t, "2026-10-18")
	id := env.mustCreate(t, "Read")

	env.completeDays(t, id, 5)

	h := env.habit(t, id)
	assert.Equal(t, 5, h.CurrentStreak)
	assert.Equal(t, 5, h.BestStreak)
	assert.Equal(t, model.MustDate("2026-10-22"), h.LastCompletedDate)
}

func TestStreaks_Complete_SameDayIsNoop(t *testing.T) {
	env := newTestEngine(t, "2026-10-18")
	ctx := context.Background()
	id := env.mustCreate(t, "Read")
	env.completeDays(t, id, 2)

	h, err := env.Streaks.Complete(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, 2, h.CurrentStreak)
	assert.Equal(t, 2, h.BestStreak)
}

func TestStreaks_Complete_GapRestarts(t *testing.T) {
	env := newTestEngine(t, "2026-10-18")
	id := env.mustCreate(t, "Read")
	env.completeDays(t, id, 3)

	env.clock.AdvanceDays(2)
	env.mustComplete(t, id)

	h := env.habit(t, id)
	assert.Equal(t, 1, h.CurrentStreak)
	assert.Equal(t, 3, h.BestStreak)
	assert.True(t, env.doc(t).Triggers.StreakWasBroken(id), "losing a 3-day streak should be remembered")
}

func TestStreaks_Complete_ShortGapNotRemembered(t *testing.T) {
	env := newTestEngine(t, "2026-10-18")
	id := env.mustCreate(t, "Read")
	env.completeDays(t, id, 2)

	env.clock.AdvanceDays(3)
	env.mustComplete(t, id)

	assert.Equal(t, 1, env.habit(t, id).CurrentStreak)
	assert.False(t, env.doc(t).Triggers.StreakWasBroken(id))
}

func TestStreaks_Complete_UnknownHabit(t *testing.T) {
	env := newTestEngine(t, "2026-10-18")

	_, err := env.Streaks.Complete(context.Background(), "missing")

	assert.True(t, IsNotFound(err))
}

func TestStreaks_Uncomplete_KeepsYesterday(t *testing.T) {
	env := newTestEngine(t, "2026-10-18")
	ctx := context.Background()
	id := env.mustCreate(t, "Read")
	env.completeDays(t, id, 2)

	h, err := env.Streaks.Uncomplete(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, 1, h.CurrentStreak)
	assert.Equal(t, 2, h.BestStreak)
	assert.Equal(t, model.MustDate("2026-10-18"), h.LastCompletedDate)
}

func TestStreaks_Uncomplete_OnlyCompletion(t *testing.T) {
	env := newTestEngine(t, "2026-10-18")
	ctx := context.Background()
	id := env.mustCreate(t, "Read")
	env.mustComplete(t, id)

	h, err := env.Streaks.Uncomplete(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, 0, h.CurrentStreak)
	assert.True(t, h.LastCompletedDate.IsZero())
}

func TestStreaks_Uncomplete_NotCompletedToday(t *testing.T) {
	env := newTestEngine(t, "2026-10-18")
	ctx := context.Background()
	id := env.mustCreate(t, "Read")
	env.completeDays(t, id, 2)
	env.clock.AdvanceDays(1)

	h, err := env.Streaks.Uncomplete(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, 2, h.CurrentStreak, "only today's completion can be undone")
	assert.Equal(t, model.MustDate("2026-10-19"), h.LastCompletedDate)
}

func TestStreaks_CheckBrokenStreaks(t *testing.T) {
	env := newTestEngine(t, "2026-10-18")
	ctx := context.Background()
	id := env.mustCreate(t, "Read")
	env.completeDays(t, id, 3)
	env.clock.AdvanceDays(2)

	broken, err := env.Streaks.CheckBrokenStreaks(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{id}, broken)

	h := env.habit(t, id)
	assert.Equal(t, 0, h.CurrentStreak)
	assert.Equal(t, 3, h.BestStreak)
	assert.True(t, env.doc(t).Triggers.StreakWasBroken(id))

	again, err := env.Streaks.CheckBrokenStreaks(ctx)
	require.NoError(t, err)
	assert.Empty(t, again, "a zero streak cannot break again")
}

func TestStreaks_CheckBrokenStreaks_CompletedYesterday(t *testing.T) {
	env := newTestEngine(t, "2026-10-18")
	id := env.mustCreate(t, "Read")
	env.completeDays(t, id, 2)
	env.clock.AdvanceDays(1)

	broken, err := env.Streaks.CheckBrokenStreaks(context.Background())
	require.NoError(t, err)

	assert.Empty(t, broken)
	assert.Equal(t, 2, env.habit(t, id).CurrentStreak)
}

func TestStreaks_CheckBrokenStreaks_RestDay(t *testing.T) {
	env := newTestEngine(t, "2026-10-18")
	ctx := context.Background()
	ch, err := env.Habits.Create(ctx, HabitInput{
		Name:          "Gym",
		Frequency:     model.FrequencyCustom,
		ScheduledDays: []int{1, 3, 5},
	})
	require.NoError(t, err)
	id := ch.Habit.ID

	env.clock.AdvanceDays(1) // Monday
	env.mustComplete(t, id)

	env.clock.AdvanceDays(2) // Wednesday, Tuesday was a rest day
	broken, err := env.Streaks.CheckBrokenStreaks(ctx)
	require.NoError(t, err)
	assert.Empty(t, broken)
	assert.Equal(t, 1, env.habit(t, id).CurrentStreak)

	env.clock.AdvanceDays(1) // Thursday, Wednesday was missed
	broken, err = env.Streaks.CheckBrokenStreaks(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{id}, broken)
}

func TestStreaks_CheckBrokenStreaks_SkipsDisabled(t *testing.T) {
	env := newTestEngine(t, "2026-10-18")
	ctx := context.Background()
	id := env.mustCreate(t, "Read")
	env.completeDays(t, id, 3)
	_, err := env.Habits.ToggleEnabled(ctx, id)
	require.NoError(t, err)
	env.clock.AdvanceDays(3)

	broken, err := env.Streaks.CheckBrokenStreaks(ctx)
	require.NoError(t, err)

	assert.Empty(t, broken)
	assert.Equal(t, 3, env.habit(t, id).CurrentStreak)
}

func TestStreaks_CheckBrokenStreaks_Journal(t *testing.T) {
	env := newTestEngine(t, "2026-10-18")
	id := env.mustCreate(t, "Read")
	env.completeDays(t, id, 3)
	env.clock.AdvanceDays(2)

	_, err := env.Streaks.CheckBrokenStreaks(context.Background())
	require.NoError(t, err)

	events, err := env.Events(context.Background(), store.EventFilter{Kind: store.EventStreakBroken})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, id, events[0].HabitID)
	assert.JSONEq(t, `{"lastCompleted":"2026-10-20","previous":3}`, string(events[0].Payload))
}

func TestWasActiveOn(t *testing.T) {
	monday := model.MustDate("2026-10-19")
	tuesday := model.MustDate("2026-10-20")

	tests := []struct {
		name  string
		habit model.Habit
		day   model.Date
		want  bool
	}{
		{"daily", model.Habit{Frequency: model.FrequencyDaily}, tuesday, true},
		{"weekly defaults to monday", model.Habit{Frequency: model.FrequencyWeekly}, monday, true},
		{"weekly default skips tuesday", model.Habit{Frequency: model.FrequencyWeekly}, tuesday, false},
		{"weekly with days", model.Habit{Frequency: model.FrequencyWeekly, ScheduledDays: []int{2}}, tuesday, true},
		{"custom on day", model.Habit{Frequency: model.FrequencyCustom, ScheduledDays: []int{1, 2}}, tuesday, true},
		{"custom off day", model.Habit{Frequency: model.FrequencyCustom, ScheduledDays: []int{1}}, tuesday, false},
		{"custom without days", model.Habit{Frequency: model.FrequencyCustom}, monday, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WasActiveOn(&tt.habit, tt.day))
		})
	}
}

func TestStatus(t *testing.T) {
	tests := []struct {
		streak int
		tier   StreakTier
		emoji  string
	}{
		{0, TierNone, ""},
		{1, TierGrowing, "🌱"},
		{3, TierBuilding, "✨"},
		{6, TierBuilding, "✨"},
		{7, TierHot, "⚡"},
		{29, TierHot, "⚡"},
		{30, TierFire, "🔥"},
	}
	for _, tt := range tests {
		got := Status(tt.streak)
		assert.Equal(t, tt.tier, got.Tier, "streak %d", tt.streak)
		assert.Equal(t, tt.emoji, got.Emoji, "streak %d", tt.streak)
	}
}

func TestStreakAggregates(t *testing.T) {
	doc := model.NewDocument(model.MustDate("2026-10-18"))
	doc.Habits = []model.Habit{
		{ID: "a", Name: "A", Enabled: true, CurrentStreak: 3, BestStreak: 10, Order: 0},
		{ID: "b", Name: "B", Enabled: true, CurrentStreak: 7, BestStreak: 7, Order: 1},
		{ID: "c", Name: "C", Enabled: false, CurrentStreak: 12, BestStreak: 12, Order: 2},
		{ID: "d", Name: "D", Enabled: true, CurrentStreak: 3, BestStreak: 4, Order: 3},
	}

	assert.Equal(t, 12, BestOverall(doc))
	assert.Equal(t, 12, CurrentBest(doc))
	assert.Equal(t, 25, TotalStreakDays(doc))

	var board []string
	for _, h := range Leaderboard(doc) {
		board = append(board, h.ID)
	}
	assert.Equal(t, []string{"b", "a", "d"}, board)

	assert.Equal(t, []Milestone{
		{HabitID: "a", HabitName: "A", Days: 3},
		{HabitID: "b", HabitName: "B", Days: 7},
		{HabitID: "d", HabitName: "D", Days: 3},
	}, Milestones(doc))
}
