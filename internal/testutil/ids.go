package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs generates predictable habit ids: prefix-1, prefix-2, ...
//
// The same scenario with a fresh SequentialIDs produces byte-identical
// documents and journals, which keeps golden traces stable.
//
// Thread-safety: SequentialIDs is safe for concurrent use via internal mutex.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialIDs creates a generator. An empty prefix means "habit".
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "habit"
	}
	return &SequentialIDs{prefix: prefix}
}

// Generate returns the next id.
//
// Implements engine.IDGenerator interface.
func (g *SequentialIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

// Reset restarts numbering at 1.
func (g *SequentialIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
