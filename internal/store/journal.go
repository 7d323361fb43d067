package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/tally/internal/model"
)

// EventKind names a journal entry.
type EventKind string

const (
	EventHabitCreated        EventKind = "habit.created"
	EventHabitUpdated        EventKind = "habit.updated"
	EventHabitDeleted        EventKind = "habit.deleted"
	EventHabitReordered      EventKind = "habit.reordered"
	EventHabitCompleted      EventKind = "habit.completed"
	EventHabitUncompleted    EventKind = "habit.uncompleted"
	EventStreakUpdated       EventKind = "streak.updated"
	EventStreakBroken        EventKind = "streak.broken"
	EventXPAwarded           EventKind = "xp.awarded"
	EventXPDeducted          EventKind = "xp.deducted"
	EventLevelUp             EventKind = "level.up"
	EventAchievementUnlocked EventKind = "achievement.unlocked"
	EventPerfectWeekAwarded  EventKind = "perfect_week.awarded"
	EventRolloverRan         EventKind = "rollover.ran"
	EventDocumentImported    EventKind = "document.imported"
)

// Payload is the structured body of a journal event. Values must be strings,
// ints, bools, dates, or slices and maps of those.
type Payload map[string]any

// Event is one journal row.
type Event struct {
	Seq        int64           `json:"seq"`
	Kind       EventKind       `json:"kind"`
	HabitID    string          `json:"habitId,omitempty"`
	Date       model.Date      `json:"date"`
	Payload    json.RawMessage `json:"payload"`
	RecordedAt time.Time       `json:"recordedAt"`
}

// EventFilter narrows a journal read. Zero fields match everything.
type EventFilter struct {
	Kind     EventKind
	HabitID  string
	Since    model.Date
	AfterSeq int64
	// Limit keeps the most recent Limit events, still returned in seq order.
	Limit int
}

func (f EventFilter) matches(e Event) bool {
	if f.Kind != "" && e.Kind != f.Kind {
		return false
	}
	if f.HabitID != "" && e.HabitID != f.HabitID {
		return false
	}
	if !f.Since.IsZero() && e.Date.Before(f.Since) {
		return false
	}
	return e.Seq > f.AfterSeq
}

// Txn is the unit of work handed to an Update callback.
type Txn struct {
	// Doc is the latest committed document, or nil if none exists. Whatever
	// Doc points at when the callback returns is written back.
	Doc *model.Document

	pending []pendingEvent
}

type pendingEvent struct {
	kind    EventKind
	habitID string
	date    model.Date
	payload Payload
}

// Record queues a journal event. It is written only if the transaction
// commits.
func (t *Txn) Record(kind EventKind, habitID string, date model.Date, payload Payload) {
	t.pending = append(t.pending, pendingEvent{
		kind:    kind,
		habitID: habitID,
		date:    date,
		payload: payload,
	})
}

// Pending returns the number of queued events.
func (t *Txn) Pending() int {
	return len(t.pending)
}

func (p pendingEvent) encode() (string, error) {
	if p.payload == nil {
		return "{}", nil
	}
	data, err := MarshalCanonical(map[string]any(p.payload))
	if err != nil {
		return "", fmt.Errorf("encode %s payload: %w", p.kind, err)
	}
	return string(data), nil
}

// Events returns journal entries matching f, ordered by seq.
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) Events(ctx context.Context, f EventFilter) ([]Event, error) {
	var (
		where []string
		args  []any
	)
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(f.Kind))
	}
	if f.HabitID != "" {
		where = append(where, "habit_id = ?")
		args = append(args, f.HabitID)
	}
	if !f.Since.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, string(f.Since))
	}
	if f.AfterSeq > 0 {
		where = append(where, "seq > ?")
		args = append(args, f.AfterSeq)
	}

	query := "SELECT seq, kind, habit_id, date, payload, recorded_at FROM events"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	if f.Limit > 0 {
		// Take the newest rows, then restore ascending order.
		query = "SELECT * FROM (" + query + " ORDER BY seq DESC LIMIT ?) ORDER BY seq ASC"
		args = append(args, f.Limit)
	} else {
		query += " ORDER BY seq ASC"
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

func scanEvent(rows *sql.Rows) (Event, error) {
	var (
		e          Event
		kind, date string
		payload    string
		recordedAt string
	)
	if err := rows.Scan(&e.Seq, &kind, &e.HabitID, &date, &payload, &recordedAt); err != nil {
		return Event{}, fmt.Errorf("scan event: %w", err)
	}
	e.Kind = EventKind(kind)
	e.Date = model.Date(date)
	e.Payload = json.RawMessage(payload)
	t, err := time.Parse(time.RFC3339Nano, recordedAt)
	if err != nil {
		return Event{}, fmt.Errorf("scan event %d: recorded_at: %w", e.Seq, err)
	}
	e.RecordedAt = t
	return e, nil
}

func insertEvents(ctx context.Context, tx *sql.Tx, pending []pendingEvent, at time.Time) error {
	if len(pending) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events (kind, habit_id, date, payload, recorded_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare event insert: %w", err)
	}
	defer stmt.Close()

	stamp := at.UTC().Format(time.RFC3339Nano)
	for _, p := range pending {
		payload, err := p.encode()
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, string(p.kind), p.habitID, string(p.date), payload, stamp); err != nil {
			return fmt.Errorf("insert %s event: %w", p.kind, err)
		}
	}
	return nil
}
