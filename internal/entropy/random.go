// Package entropy provides the seeded random stream shared by a model and its agents.
// Every stochastic decision in a run draws from one Stream so a fixed seed
// reproduces the whole trajectory.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	mrand "math/rand"
)

// Stream is a deterministic pseudo-random source. It is not safe for
// concurrent use; a run owns exactly one.
type Stream struct {
	seed int64
	rng  *mrand.Rand
}

// NewStream creates a stream seeded with seed.
func NewStream(seed int64) *Stream {
	return &Stream{
		seed: seed,
		rng:  mrand.New(mrand.NewSource(seed)),
	}
}

// NewStreamFrom creates a stream from an optional seed. A nil seed draws a
// fresh one from crypto/rand; Seed reports it so the run can be replayed.
func NewStreamFrom(seed *int64) *Stream {
	if seed != nil {
		return NewStream(*seed)
	}
	return NewStream(CryptoSeed())
}

// Seed returns the seed the stream was created with.
func (s *Stream) Seed() int64 {
	return s.seed
}

// Float returns a random float64 in [0, 1).
func (s *Stream) Float() float64 {
	return s.rng.Float64()
}

// Intn returns a random int in [0, n). Panics if n <= 0.
func (s *Stream) Intn(n int) int {
	return s.rng.Intn(n)
}

// IntRange returns a random int in [lo, hi], both inclusive.
func (s *Stream) IntRange(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + s.rng.Intn(hi-lo+1)
}

// Int63 returns a non-negative random int64, used to derive seeds for
// auxiliary generators.
func (s *Stream) Int63() int64 {
	return s.rng.Int63()
}

// Chance reports whether an event with probability p happens.
func (s *Stream) Chance(p float64) bool {
	return s.rng.Float64() < p
}

// Perm returns a random permutation of [0, n).
func (s *Stream) Perm(n int) []int {
	return s.rng.Perm(n)
}

// CryptoSeed returns a seed read from crypto/rand.
func CryptoSeed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand does not fail on supported platforms.
		return 1
	}
	return int64(binary.LittleEndian.Uint64(buf[:]) >> 1)
}

// Pick returns a uniformly chosen element of items. ok is false when items is empty.
func Pick[T any](s *Stream, items []T) (item T, ok bool) {
	if len(items) == 0 {
		return item, false
	}
	return items[s.Intn(len(items))], true
}
