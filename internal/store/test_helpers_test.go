package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/tally/internal/model"
)

// createTestStore creates a new SQLite store in a temp directory.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// documentStore is the surface shared by Store and Memory.
type documentStore interface {
	Load(ctx context.Context) (*model.Document, error)
	Save(ctx context.Context, doc *model.Document) error
	Update(ctx context.Context, fn func(*Txn) error) error
	Events(ctx context.Context, f EventFilter) ([]Event, error)
	Clear(ctx context.Context) error
	Size(ctx context.Context) (int, error)
}

// forEachStore runs fn against both implementations.
func forEachStore(t *testing.T, fn func(t *testing.T, s documentStore)) {
	t.Helper()
	fixed := WithNow(func() time.Time { return time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC) })
	t.Run("sqlite", func(t *testing.T) { fn(t, createTestStore(t, fixed)) })
	t.Run("memory", func(t *testing.T) { fn(t, NewMemory(fixed)) })
}

// createTestDocument returns a document with one habit.
func createTestDocument(today model.Date) *model.Document {
	doc := model.NewDocument(today)
	doc.Habits = append(doc.Habits, model.Habit{
		ID:             "habit-1",
		Name:           "Read",
		Frequency:      model.FrequencyDaily,
		Enabled:        true,
		ScheduledDays:  []int{},
		CompletedDates: []model.Date{},
		CreatedDate:    today,
	})
	return doc
}
