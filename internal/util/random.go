package util

import (
	"log/slog"
	"math/rand/v2"
)

// NewRandom returns a PCG-backed generator. A zero seed draws a fresh seed
// from the process-wide source; any other value gives a reproducible stream.
func NewRandom(seed uint64) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	slog.Debug("NewRandom: using fixed seed", "seed", seed)
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
