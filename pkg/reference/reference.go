// Package reference generates globally unique, externally shareable
// identifiers for ledger records and payment-rail idempotency keys.
//
// References are ULIDs: a millisecond timestamp plus crypto-random entropy,
// so they sort lexicographically by creation time and never collide across
// the system's lifetime.
package reference

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator produces ULID references. Safe for concurrent use; IDs created
// within the same millisecond stay strictly ordered via monotonic entropy.
type Generator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	now     func() time.Time
}

func NewGenerator() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}
}

// New returns the next reference.
func (g *Generator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	return ulid.MustNew(ulid.Timestamp(g.now()), g.entropy).String()
}
