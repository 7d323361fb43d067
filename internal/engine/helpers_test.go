package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/tally/internal/model"
	"github.com/roach88/tally/internal/store"
	"github.com/roach88/tally/internal/testutil"
)

// testEnv bundles an engine with the fakes driving it.
type testEnv struct {
	*Engine
	clock *testutil.Clock
	mem   *store.Memory
}

// newTestEngine creates an engine over an in-memory store with a clock at
// 12:00 UTC on date and sequential habit ids.
func newTestEngine(t *testing.T, date string, opts ...Option) *testEnv {
	t.Helper()
	clock := testutil.NewClockOn(date)
	mem := store.NewMemory(store.WithNow(clock.Now))
	all := append([]Option{WithClock(clock), WithIDs(testutil.NewSequentialIDs("habit"))}, opts...)
	e, err := New(mem, all...)
	require.NoError(t, err)
	return &testEnv{Engine: e, clock: clock, mem: mem}
}

// mustCreate creates a daily habit and returns its id.
func (env *testEnv) mustCreate(t *testing.T, name string) string {
	t.Helper()
	ch, err := env.Habits.Create(context.Background(), HabitInput{Name: name})
	require.NoError(t, err)
	return ch.Habit.ID
}

// mustComplete completes id today.
func (env *testEnv) mustComplete(t *testing.T, id string) *CompleteResult {
	t.Helper()
	res, err := env.Habits.Complete(context.Background(), id)
	require.NoError(t, err)
	return res
}

// completeDays completes id on n consecutive days, starting today and
// leaving the clock on the last of them.
func (env *testEnv) completeDays(t *testing.T, id string, n int) *CompleteResult {
	t.Helper()
	var res *CompleteResult
	for i := 0; i < n; i++ {
		if i > 0 {
			env.clock.AdvanceDays(1)
		}
		res = env.mustComplete(t, id)
	}
	return res
}

// doc returns the latest document.
func (env *testEnv) doc(t *testing.T) *model.Document {
	t.Helper()
	doc, err := env.Snapshot(context.Background())
	require.NoError(t, err)
	return doc
}

// habit returns the latest state of id.
func (env *testEnv) habit(t *testing.T, id string) model.Habit {
	t.Helper()
	h, err := env.Habits.Get(context.Background(), id)
	require.NoError(t, err)
	return h
}

// seed edits the stored document directly.
func (env *testEnv) seed(t *testing.T, fn func(doc *model.Document)) {
	t.Helper()
	doc := env.doc(t)
	fn(doc)
	require.NoError(t, env.mem.Save(context.Background(), doc))
}

// events returns the journal kinds in order.
func (env *testEnv) eventKinds(t *testing.T, f store.EventFilter) []store.EventKind {
	t.Helper()
	events, err := env.Events(context.Background(), f)
	require.NoError(t, err)
	kinds := make([]store.EventKind, len(events))
	for i, e := range events {
		kinds[i] = e.Kind
	}
	return kinds
}

func unlockedIDs(defs []Definition) []string {
	ids := make([]string, len(defs))
	for i, d := range defs {
		ids[i] = d.ID
	}
	return ids
}
