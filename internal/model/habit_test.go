package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFrequency(t *testing.T) {
	f, err := ParseFrequency(" Weekly ")
	require.NoError(t, err)
	assert.Equal(t, FrequencyWeekly, f)

	_, err = ParseFrequency("monthly")
	assert.Error(t, err)
}

func TestHabit_CompletionSet(t *testing.T) {
	h := &Habit{}

	assert.True(t, h.AddCompletion("2026-10-12"))
	assert.True(t, h.AddCompletion("2026-10-10"))
	assert.True(t, h.AddCompletion("2026-10-11"))
	assert.False(t, h.AddCompletion("2026-10-11"), "duplicate date must be rejected")

	assert.Equal(t, []Date{"2026-10-10", "2026-10-11", "2026-10-12"}, h.CompletedDates)
	assert.True(t, h.HasCompletion("2026-10-11"))
	assert.False(t, h.HasCompletion("2026-10-13"))
	assert.Equal(t, Date("2026-10-12"), h.LatestCompletion())

	assert.True(t, h.RemoveCompletion("2026-10-12"))
	assert.False(t, h.RemoveCompletion("2026-10-12"))
	assert.Equal(t, Date("2026-10-11"), h.LatestCompletion())

	assert.True(t, h.RemoveCompletion("2026-10-10"))
	assert.True(t, h.RemoveCompletion("2026-10-11"))
	assert.True(t, h.LatestCompletion().IsZero())
}

func TestHabit_IsScheduledOn(t *testing.T) {
	h := &Habit{ScheduledDays: []int{1, 3, 5}}
	assert.True(t, h.IsScheduledOn(time.Monday))
	assert.False(t, h.IsScheduledOn(time.Tuesday))
}

func TestHabit_UnmarshalLegacyFields(t *testing.T) {
	raw := `{
		"id": "h1",
		"name": "Read",
		"frequency": "custom",
		"days": [1, 3],
		"lastCompleted": "2026-10-17",
		"createdAt": "2026-09-01",
		"reminderEnabled": true,
		"reminderTime": "07:30",
		"completedDates": ["2026-10-17"]
	}`

	var h Habit
	require.NoError(t, json.Unmarshal([]byte(raw), &h))

	assert.Equal(t, []int{1, 3}, h.ScheduledDays)
	assert.Equal(t, Date("2026-10-17"), h.LastCompletedDate)
	assert.Equal(t, Date("2026-09-01"), h.CreatedDate)
	assert.Equal(t, Reminder{Enabled: true, Time: "07:30"}, h.Reminder)
	assert.True(t, h.Enabled, "missing enabled means enabled")
}

func TestHabit_UnmarshalCurrentFieldsWin(t *testing.T) {
	raw := `{"id":"h1","enabled":false,"scheduledDays":[2],"days":[4],"lastCompletedDate":"2026-10-01","lastCompleted":null}`

	var h Habit
	require.NoError(t, json.Unmarshal([]byte(raw), &h))

	assert.False(t, h.Enabled)
	assert.Equal(t, []int{2}, h.ScheduledDays)
	assert.Equal(t, Date("2026-10-01"), h.LastCompletedDate)
}
