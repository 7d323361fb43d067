package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tally/internal/model"
	"github.com/roach88/tally/internal/store"
)

func mustParse(t *testing.T, src string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(src))
	require.NoError(t, err)
	return s
}

func TestRun_DrivesEngine(t *testing.T) {
	result, err := Run(mustParse(t, minimalScenario))
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Trace, 2)
	assert.Equal(t, "setup", result.Trace[0].Phase)
	assert.Equal(t, "flow", result.Trace[1].Phase)
	assert.Equal(t, 1, result.Trace[1].Step)
	assert.Equal(t, model.Date("2026-10-18"), result.Trace[1].Date)

	kinds := make([]store.EventKind, len(result.Journal))
	for i, ev := range result.Journal {
		kinds[i] = ev.Kind
	}
	assert.Equal(t, []store.EventKind{
		store.EventHabitCreated,
		store.EventHabitCompleted,
		store.EventStreakUpdated,
		store.EventXPAwarded,
		store.EventAchievementUnlocked,
		store.EventXPAwarded,
	}, kinds)

	stats, ok := result.State["stats"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, int64(35), stats["totalXP"])
}

func TestRun_Deterministic(t *testing.T) {
	first, err := Run(mustParse(t, minimalScenario))
	require.NoError(t, err)
	second, err := Run(mustParse(t, minimalScenario))
	require.NoError(t, err)

	a, err := MarshalJournal("x", first.Journal)
	require.NoError(t, err)
	b, err := MarshalJournal("x", second.Journal)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRun_ExpectationMismatchFails(t *testing.T) {
	result, err := Run(mustParse(t, `
name: mismatch
description: "wrong expectations are reported, not fatal"
start: "2026-10-18"
setup:
  - action: create
    args: { name: Read }
flow:
  - invoke: complete
    args: { habit: habit-1 }
    expect:
      case: ok
      result: { award: { total: 99 } }
  - invoke: uncomplete
    args: { habit: habit-1 }
    expect:
      case: NOT_COMPLETED_TODAY
  - invoke: complete
    args: { habit: habit-7 }
assertions:
  - type: journal_count
    kind: habit.completed
    count: 2
`))
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 4)
	assert.Contains(t, result.Errors[0], "result mismatch at $.award.total")
	assert.Contains(t, result.Errors[1], "expected case NOT_COMPLETED_TODAY, got ok")
	assert.Contains(t, result.Errors[2], "unexpected case HABIT_NOT_FOUND")
	assert.Contains(t, result.Errors[3], "journal_count")
}

func TestRun_SetupFailureAborts(t *testing.T) {
	_, err := Run(mustParse(t, `
name: bad_setup
description: "setup steps must succeed"
start: "2026-10-18"
setup:
  - action: toggle
    args: { habit: habit-1 }
flow:
  - invoke: rollover
assertions:
  - type: journal_count
    kind: rollover.ran
    count: 0
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "setup step 0 (toggle): unexpected case HABIT_NOT_FOUND")
}

func TestRun_BadArgumentIsHarnessError(t *testing.T) {
	_, err := Run(mustParse(t, `
name: bad_arg
description: "non-integer amount"
start: "2026-10-18"
flow:
  - invoke: add_xp
    args: { amount: lots }
assertions:
  - type: journal_count
    kind: xp.awarded
    count: 0
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `arg "amount": expected integer`)
}

func TestRun_AdvanceAndRollover(t *testing.T) {
	result, err := Run(mustParse(t, `
name: advance
description: "advancing the clock lets the rollover run once per day"
start: "2026-10-18"
time: "09:15"
flow:
  - invoke: rollover
    expect: { case: ok, result: { ran: false } }
  - invoke: advance
    args: { days: 2, time: "23:00" }
    expect: { case: ok, result: { date: "2026-10-20" } }
  - invoke: rollover
    expect: { case: ok, result: { ran: true, date: "2026-10-20", previous: "2026-10-18" } }
assertions:
  - type: journal_contains
    kind: rollover.ran
    payload: { previous: "2026-10-18", perfectWeek: false }
`))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_CustomRules(t *testing.T) {
	dir := t.TempDir()
	rules := filepath.Join(dir, "solo.cue")
	require.NoError(t, os.WriteFile(rules, []byte(`achievements: [
	{id: "solo", name: "Solo", description: "One habit", icon: "1",
		rule: {kind: "enabled_habits", target: 1}},
]
`), 0o644))

	s := mustParse(t, `
name: custom
description: "a one-entry table"
start: "2026-10-18"
flow:
  - invoke: create
    args: { name: Read }
    expect:
      case: ok
      result: { unlocked: [{ id: solo, name: Solo }] }
assertions:
  - type: journal_count
    kind: achievement.unlocked
    count: 1
`)
	s.Rules = rules

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_InvalidRules(t *testing.T) {
	dir := t.TempDir()
	rules := filepath.Join(dir, "bad.cue")
	require.NoError(t, os.WriteFile(rules, []byte("achievements: [{id: \"Bad Id\"}]\n"), 0o644))

	s := mustParse(t, minimalScenario)
	s.Rules = rules

	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load rules")
}
