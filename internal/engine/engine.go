package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/tally/internal/model"
	"github.com/roach88/tally/internal/store"
)

// Store is the persistence contract. Implemented by store.Store (SQLite)
// and store.Memory.
type Store interface {
	Load(ctx context.Context) (*model.Document, error)
	Save(ctx context.Context, doc *model.Document) error
	Update(ctx context.Context, fn func(*store.Txn) error) error
	Events(ctx context.Context, f store.EventFilter) ([]store.Event, error)
	Clear(ctx context.Context) error
	Size(ctx context.Context) (int, error)
}

// base carries the collaborators every engine shares.
type base struct {
	store  Store
	clock  Clock
	ids    IDGenerator
	logger *slog.Logger
}

func (b *base) today() model.Date {
	return Today(b.clock)
}

// prepare makes txn.Doc usable: a default document if none is stored,
// otherwise the stored one migrated to the current schema.
func (b *base) prepare(txn *store.Txn, today model.Date) {
	if txn.Doc == nil {
		txn.Doc = model.NewDocument(today)
		return
	}
	model.Migrate(txn.Doc, today, b.ids.Generate)
}

// snapshot returns the latest committed document without writing.
func (b *base) snapshot(ctx context.Context) (*model.Document, model.Date, error) {
	today := b.today()
	doc, err := b.store.Load(ctx)
	if err != nil {
		return nil, today, fmt.Errorf("snapshot: %w", err)
	}
	if doc == nil {
		b.logger.Debug("no stored document, using defaults", "date", today)
		return model.NewDocument(today), today, nil
	}
	model.Migrate(doc, today, b.ids.Generate)
	return doc, today, nil
}

// withDocument runs fn in one store transaction against the latest document.
func withDocument[R any](ctx context.Context, b *base, fn func(txn *store.Txn, today model.Date) (R, error)) (R, error) {
	return withDocumentAt(ctx, b, b.clock.Now(), fn)
}

// withDocumentAt is withDocument with today taken from now instead of a
// fresh clock read.
func withDocumentAt[R any](ctx context.Context, b *base, now time.Time, fn func(txn *store.Txn, today model.Date) (R, error)) (R, error) {
	var out R
	today := model.DateOf(now)
	err := b.store.Update(ctx, func(txn *store.Txn) error {
		b.prepare(txn, today)
		r, err := fn(txn, today)
		if err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		var zero R
		return zero, err
	}
	return out, nil
}

// Engine wires the streak, XP, achievement, rollover and habit services
// over one store.
type Engine struct {
	Streaks      *Streaks
	XP           *XP
	Achievements *Achievements
	Rollover     *Rollover
	Habits       *Habits

	base *base
}

// Option configures an Engine.
type Option func(*options)

type options struct {
	clock  Clock
	ids    IDGenerator
	logger *slog.Logger
	rules  []Definition
}

// WithClock sets the clock. Default: SystemClock in time.Local.
func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithIDs sets the habit id generator. Default: UUIDv7Generator.
func WithIDs(g IDGenerator) Option {
	return func(o *options) { o.ids = g }
}

// WithLogger sets the logger. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRules replaces the built-in achievement table.
func WithRules(defs []Definition) Option {
	return func(o *options) { o.rules = defs }
}

// New creates an Engine over s. It fails only if the built-in achievement
// table cannot be loaded.
func New(s Store, opts ...Option) (*Engine, error) {
	o := options{
		clock:  SystemClock{},
		ids:    UUIDv7Generator{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&o)
	}

	defs := o.rules
	if defs == nil {
		var err error
		defs, err = DefaultRules()
		if err != nil {
			return nil, fmt.Errorf("load achievement rules: %w", err)
		}
	}

	b := &base{store: s, clock: o.clock, ids: o.ids, logger: o.logger}
	e := &Engine{base: b}
	e.Streaks = &Streaks{base: b}
	e.XP = &XP{base: b}
	e.Achievements = &Achievements{base: b, xp: e.XP, defs: defs}
	e.Rollover = &Rollover{base: b, streaks: e.Streaks, xp: e.XP, achievements: e.Achievements}
	e.Habits = &Habits{
		base:         b,
		streaks:      e.Streaks,
		xp:           e.XP,
		achievements: e.Achievements,
	}
	return e, nil
}

// Today returns the engine's current calendar date.
func (e *Engine) Today() model.Date {
	return e.base.today()
}

// Snapshot returns the latest document, migrated, without writing it.
func (e *Engine) Snapshot(ctx context.Context) (*model.Document, error) {
	doc, _, err := e.base.snapshot(ctx)
	return doc, err
}

// Events reads the journal.
func (e *Engine) Events(ctx context.Context, f store.EventFilter) ([]store.Event, error) {
	return e.base.store.Events(ctx, f)
}

// Export serializes the latest document as a backup.
func (e *Engine) Export(ctx context.Context) ([]byte, error) {
	doc, err := e.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return model.Export(doc, e.base.clock.Now())
}

// Import replaces the stored document with a backup. On any parse error the
// stored document is left untouched.
func (e *Engine) Import(ctx context.Context, data []byte) (*model.Document, error) {
	today := e.base.today()
	doc, err := model.Import(data, today, e.base.ids.Generate)
	if err != nil {
		return nil, err
	}
	err = e.base.store.Update(ctx, func(txn *store.Txn) error {
		txn.Doc = doc
		txn.Record(store.EventDocumentImported, "", today, store.Payload{
			"habits":       len(doc.Habits),
			"achievements": len(doc.Achievements),
			"totalXP":      doc.Stats.TotalXP,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("import: %w", err)
	}
	e.base.logger.Info("backup imported", "habits", len(doc.Habits), "xp", doc.Stats.TotalXP)
	return doc, nil
}

// Reset discards the stored document. The next operation starts from a
// fresh default document; the journal is kept.
func (e *Engine) Reset(ctx context.Context) error {
	if err := e.base.store.Clear(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	e.base.logger.Info("document reset", "date", e.base.today())
	return nil
}

// StorageSize returns the stored document size in bytes.
func (e *Engine) StorageSize(ctx context.Context) (int, error) {
	return e.base.store.Size(ctx)
}
