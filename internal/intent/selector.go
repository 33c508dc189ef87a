package intent

import (
	"log/slog"
	"math/rand/v2"

	"github.com/BTreeMap/ChatAgent/internal/models"
)

// Random yields floats in [0, 1). *rand.Rand from math/rand/v2 satisfies it.
type Random interface {
	Float64() float64
}

// globalRandom draws from the math/rand/v2 top-level source.
type globalRandom struct{}

func (globalRandom) Float64() float64 { return rand.Float64() }

// DefaultRandom returns a Random backed by the process-wide source.
func DefaultRandom() Random {
	return globalRandom{}
}

// Selector picks one reply uniformly at random from an intent's pool.
type Selector struct {
	catalog *Catalog
	rng     Random
}

// NewSelector creates a Selector. A nil rng uses DefaultRandom.
func NewSelector(catalog *Catalog, rng Random) *Selector {
	if rng == nil {
		rng = DefaultRandom()
	}
	return &Selector{catalog: catalog, rng: rng}
}

// Select draws one reply for id, consuming exactly one random value.
// IntentUnmatched and ids missing from the catalog use the default pool.
func (s *Selector) Select(id models.IntentID) string {
	pool := s.catalog.pool(id)
	i := Index(s.rng.Float64(), len(pool))
	slog.Debug("Selector picked reply", "intent", id, "index", i, "pool_size", len(pool))
	return pool[i]
}

// Index maps r in [0, 1) onto [0, n). Values outside the range are clamped.
func Index(r float64, n int) int {
	i := int(r * float64(n))
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
