package engine

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// UUIDv7Generator is the default CallTokenGenerator. UUIDv7 tokens start
// with a millisecond timestamp, so the tokens of successive top-level
// calls sort in the order the calls were made. Safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator hands out a fixed list of call tokens, for tests that
// compare journals. It panics once the list is used up, which flags a
// test making more top-level calls than it declared.
type FixedGenerator struct {
	mu     sync.Mutex
	tokens []string
	next   int
}

// NewFixedGenerator returns a generator yielding tokens in order.
func NewFixedGenerator(tokens ...string) *FixedGenerator {
	return &FixedGenerator{tokens: tokens}
}

func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.next == len(g.tokens) {
		panic(fmt.Sprintf("FixedGenerator: all %d call tokens used", len(g.tokens)))
	}
	token := g.tokens[g.next]
	g.next++
	return token
}
