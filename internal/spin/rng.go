package spin

import (
	"math"
	"math/rand/v2"
)

// RandomSource supplies uniform floats in [0, 1). It does not need to be
// cryptographically secure.
type RandomSource interface {
	Float64() float64
}

type globalRNG struct{}

func (globalRNG) Float64() float64 { return rand.Float64() }

// DefaultRNG returns the process-wide generator.
func DefaultRNG() RandomSource { return globalRNG{} }

// Replayable source, e.g. for demos and tests
type seededRNG struct{ r *rand.Rand }

// NewSeededRNG returns a deterministic source for the given seed.
func NewSeededRNG(seed uint64) RandomSource {
	return &seededRNG{r: rand.New(rand.NewPCG(seed, 0))}
}

func (s *seededRNG) Float64() float64 { return s.r.Float64() }

// Uniform maps rng onto [lo, hi). Out-of-range readings are clamped so a
// misbehaving source can never produce a value at or past hi.
func Uniform(rng RandomSource, lo, hi float64) float64 {
	f := rng.Float64()
	if f < 0 || math.IsNaN(f) {
		f = 0
	}
	v := lo + (hi-lo)*f
	if v >= hi {
		return lo
	}
	return v
}
