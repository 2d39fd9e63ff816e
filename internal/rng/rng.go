// Package rng provides the random source shared by the channel model and the
// bit generators. A Source is either seeded (mulberry32, reproducible) or
// falls back to the runtime generator.
package rng

import (
	"math"
	"math/rand"
)

const mulberryIncrement = 0x6d2b79f5

// Source is a random number context. It is not safe for concurrent use;
// give each simulation run its own Source.
type Source struct {
	seed   uint32
	state  uint32
	seeded bool

	spare    float64
	hasSpare bool
}

// New creates a non-deterministic Source.
func New() *Source {
	return &Source{}
}

// NewSeeded creates a Source in deterministic mode.
func NewSeeded(seed uint32) *Source {
	s := &Source{}
	s.SetSeed(seed)
	return s
}

// FromSeed converts an arbitrary numeric seed the way a user-entered seed is
// treated: finite non-negative values are floored and wrapped to 32 bits,
// anything else yields a non-deterministic Source.
func FromSeed(seed float64) *Source {
	if math.IsNaN(seed) || math.IsInf(seed, 0) || seed < 0 {
		return New()
	}
	return NewSeeded(uint32(uint64(math.Floor(math.Mod(seed, 1<<32)))))
}

// SetSeed switches to deterministic mode and restarts the sequence.
func (s *Source) SetSeed(seed uint32) {
	s.seed = seed
	s.state = seed
	s.seeded = true
	s.hasSpare = false
}

// ClearSeed returns the Source to non-deterministic mode.
func (s *Source) ClearSeed() {
	s.seeded = false
	s.hasSpare = false
}

// Seed returns the active seed and whether deterministic mode is on.
func (s *Source) Seed() (uint32, bool) {
	return s.seed, s.seeded
}

// IsDeterministic reports whether the Source is seeded.
func (s *Source) IsDeterministic() bool {
	return s.seeded
}

// Float64 returns a uniform value in [0, 1).
func (s *Source) Float64() float64 {
	if !s.seeded {
		return rand.Float64()
	}
	return s.next()
}

// next advances the mulberry32 state.
func (s *Source) next() float64 {
	s.state += mulberryIncrement
	t := s.state
	t = (t ^ (t >> 15)) * (t | 1)
	t ^= t + (t^(t>>7))*(t|61)
	return float64(t^(t>>14)) / 4294967296
}

// Bits returns n values in {0, 1}. A bit is 1 when the draw exceeds 0.5.
func (s *Source) Bits(n int) []byte {
	if n <= 0 {
		return []byte{}
	}
	bits := make([]byte, n)
	for i := range bits {
		if s.Float64() > 0.5 {
			bits[i] = 1
		}
	}
	return bits
}

// Gaussian returns a standard normal deviate using the Box-Muller transform.
// The second value of each pair is kept for the next call.
func (s *Source) Gaussian() float64 {
	if s.hasSpare {
		s.hasSpare = false
		return s.spare
	}

	var u, v float64
	for u == 0 {
		u = s.Float64()
	}
	for v == 0 {
		v = s.Float64()
	}

	r := math.Sqrt(-2 * math.Log(u))
	theta := 2 * math.Pi * v
	s.spare = r * math.Sin(theta)
	s.hasSpare = true
	return r * math.Cos(theta)
}
