package store

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/roach88/tally/internal/model"
)

// Memory is an in-process store with the same semantics as Store. Documents
// are held as encoded JSON so every Load returns an independent copy.
type Memory struct {
	mu     sync.Mutex
	body   []byte
	events []Event
	seq    int64
	logger *slog.Logger
	now    func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory(opts ...Option) *Memory {
	o := buildOptions(opts)
	return &Memory{logger: o.logger, now: o.now}
}

// Load returns a copy of the stored document, or (nil, nil).
func (m *Memory) Load(ctx context.Context) (*model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.body == nil {
		return nil, nil
	}
	return decodeDocument(m.body, m.logger), nil
}

// Save replaces the stored document.
func (m *Memory) Save(ctx context.Context, doc *model.Document) error {
	body, err := encodeDocument(doc)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.body = body
	return nil
}

// Update runs fn under the store lock. Nothing is kept if fn errors.
func (m *Memory) Update(ctx context.Context, fn func(*Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	txn := &Txn{}
	if m.body != nil {
		txn.Doc = decodeDocument(m.body, m.logger)
	}
	if err := fn(txn); err != nil {
		return err
	}

	var body []byte
	if txn.Doc != nil {
		b, err := encodeDocument(txn.Doc)
		if err != nil {
			return err
		}
		body = b
	}

	// Encode every payload before touching state so a bad payload leaves the
	// store unchanged.
	now := m.now().UTC()
	events := make([]Event, 0, len(txn.pending))
	for i, p := range txn.pending {
		payload, err := p.encode()
		if err != nil {
			return err
		}
		events = append(events, Event{
			Seq:        m.seq + int64(i) + 1,
			Kind:       p.kind,
			HabitID:    p.habitID,
			Date:       p.date,
			Payload:    []byte(payload),
			RecordedAt: now,
		})
	}

	if body != nil {
		m.body = body
	}
	m.events = append(m.events, events...)
	m.seq += int64(len(events))
	return nil
}

// Events returns journal entries matching f, ordered by seq.
func (m *Memory) Events(ctx context.Context, f EventFilter) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []Event{}
	for _, e := range m.events {
		if f.matches(e) {
			out = append(out, e)
		}
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	return slices.Clone(out), nil
}

// Clear deletes the stored document. The journal is kept.
func (m *Memory) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.body = nil
	return nil
}

// Size returns the stored document body size in bytes.
func (m *Memory) Size(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.body), nil
}

// SetRaw replaces the stored body verbatim. Tests use it to plant corrupt
// or legacy documents.
func (m *Memory) SetRaw(body []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.body = slices.Clone(body)
}
