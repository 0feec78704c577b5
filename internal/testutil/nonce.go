package testutil

import (
	"fmt"
	"sync"
)

// SequenceNonces generates "N1", "N2", ... deterministically.
//
// Unlike engine.UUIDGenerator, the produced nonces are stable across runs,
// which keeps assertions and golden files readable.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequenceNonces struct {
	mu  sync.Mutex
	seq int
}

// NewSequenceNonces creates a generator whose first nonce is "N1".
func NewSequenceNonces() *SequenceNonces {
	return &SequenceNonces{}
}

// Generate implements engine.NonceGenerator.
func (g *SequenceNonces) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("N%d", g.seq)
}

// Count returns how many nonces have been generated.
func (g *SequenceNonces) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seq
}
