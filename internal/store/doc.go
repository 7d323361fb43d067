// Package store persists the tally document and its event journal.
//
// Two implementations share one contract:
//   - Store: SQLite-backed, used by the CLI
//   - Memory: in-process, used by the scenario harness and tests
//
// # Document
//
// The whole habit document is stored as one JSON body. Load never fails on a
// corrupt or missing body: it logs a warning and reports "no data" (nil, nil),
// and the caller starts from a fresh default document.
//
// # Transactions
//
// Update runs a read-modify-write in one transaction. The callback receives
// the latest committed document through Txn.Doc and may record journal events
// with Txn.Record. If the callback returns an error nothing is written.
//
// # Journal
//
// Events are append-only and ordered by seq. Payloads are stored as canonical
// JSON (sorted keys, NFC strings) so identical operations produce identical
// rows, which keeps golden traces stable.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
