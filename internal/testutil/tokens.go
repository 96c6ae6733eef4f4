package testutil

import (
	"fmt"
	"sync"
)

// SequentialTokenGenerator generates numbered call tokens: prefix-1,
// prefix-2, and so on.
//
// This enables deterministic journals and golden snapshot comparison.
// The same scenario with a fresh generator produces byte-identical traces.
//
// Unlike engine.FixedGenerator, it never runs out of tokens and can be
// reset for test reuse.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SequentialTokenGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialTokenGenerator creates a generator whose first token is
// prefix-1.
//
// The prefix is typically set in the scenario YAML:
//
//	token_prefix: "shapes"
//
// If prefix is empty, tokens are "call-1", "call-2", ...
func NewSequentialTokenGenerator(prefix string) *SequentialTokenGenerator {
	if prefix == "" {
		prefix = "call"
	}
	return &SequentialTokenGenerator{prefix: prefix}
}

// Generate returns the next token.
//
// Implements engine.CallTokenGenerator interface.
func (g *SequentialTokenGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

// Issued returns how many tokens have been generated.
func (g *SequentialTokenGenerator) Issued() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.n
}

// Reset restarts numbering. After Reset(), the next token is prefix-1.
func (g *SequentialTokenGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
