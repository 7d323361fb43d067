package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// AppName identifies tally backups.
const AppName = "tally"

// ErrInvalidImport is returned for backups that cannot be accepted.
var ErrInvalidImport = errors.New("invalid backup")

// Backup is the export envelope: the document plus provenance fields.
type Backup struct {
	*Document
	ExportDate string `json:"exportDate"`
	AppName    string `json:"appName"`
}

// Export serializes doc as an indented backup stamped with now.
func Export(doc *Document, now time.Time) ([]byte, error) {
	cp := *doc
	b := Backup{
		Document:   &cp,
		ExportDate: now.UTC().Format(time.RFC3339),
		AppName:    AppName,
	}
	b.Version = SchemaVersion
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	return data, nil
}

// Import parses a backup. Both "habits" and "profile" must be present;
// everything else falls back to the defaults of a new document. The result
// is migrated before it is returned. On error nothing is returned, so a
// malformed backup can never be partially applied.
func Import(data []byte, today Date, newID func() string) (*Document, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}
	for _, field := range []string{"habits", "profile"} {
		raw, ok := top[field]
		if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return nil, fmt.Errorf("%w: missing %q", ErrInvalidImport, field)
		}
	}

	// Decoding onto a default document keeps defaults for absent fields.
	doc := NewDocument(today)
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}
	Migrate(doc, today, newID)
	return doc, nil
}
