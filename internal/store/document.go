package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/tally/internal/model"
)

// Load returns the stored document, or (nil, nil) if there is none or the
// stored body cannot be parsed.
func (s *Store) Load(ctx context.Context) (*model.Document, error) {
	body, ok, err := readBody(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return decodeDocument(body, s.logger), nil
}

// Save replaces the stored document.
func (s *Store) Save(ctx context.Context, doc *model.Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if err := writeBody(ctx, tx, doc, s.now()); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save: commit: %w", err)
	}
	return nil
}

// Update runs fn inside one SQL transaction. See Txn.
func (s *Store) Update(ctx context.Context, fn func(*Txn) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("update: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	body, ok, err := readBody(ctx, tx)
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}
	txn := &Txn{}
	if ok {
		txn.Doc = decodeDocument(body, s.logger)
	}

	if err := fn(txn); err != nil {
		return err
	}

	now := s.now()
	if txn.Doc != nil {
		if err := writeBody(ctx, tx, txn.Doc, now); err != nil {
			return fmt.Errorf("update: %w", err)
		}
	}
	if err := insertEvents(ctx, tx, txn.pending, now); err != nil {
		return fmt.Errorf("update: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("update: commit: %w", err)
	}
	return nil
}

// Clear deletes the stored document. The journal is kept.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE key = ?", documentKey); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	return nil
}

// Size returns the stored document body size in bytes.
func (s *Store) Size(ctx context.Context) (int, error) {
	body, _, err := readBody(ctx, s.db)
	if err != nil {
		return 0, fmt.Errorf("size: %w", err)
	}
	return len(body), nil
}

func readBody(ctx context.Context, q queryer) ([]byte, bool, error) {
	var body string
	err := q.QueryRowContext(ctx, "SELECT body FROM documents WHERE key = ?", documentKey).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read document: %w", err)
	}
	return []byte(body), true, nil
}

func writeBody(ctx context.Context, tx *sql.Tx, doc *model.Document, at time.Time) error {
	body, err := encodeDocument(doc)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (key, body, version, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			body = excluded.body,
			version = excluded.version,
			updated_at = excluded.updated_at
	`, documentKey, string(body), doc.Version, at.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	return nil
}

func encodeDocument(doc *model.Document) ([]byte, error) {
	if doc == nil {
		return nil, errors.New("encode document: nil document")
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return body, nil
}

// decodeDocument parses a stored body. Parse failures are logged and
// reported as "no data".
func decodeDocument(body []byte, logger *slog.Logger) *model.Document {
	var doc model.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		logger.Warn("stored document is unreadable, starting fresh", "error", err, "bytes", len(body))
		return nil
	}
	return &doc
}
