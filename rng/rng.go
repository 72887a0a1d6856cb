// Package rng provides the uniform random capability injected into every
// execute(now, rand) boundary (carrier-sense backoff, frame-id generation).
package rng

import (
	"math/rand"
)

// Source is the platform RNG contract: bounded integers of each width the
// core needs. Implementations must be safe to call repeatedly from a single
// cooperative loop (no concurrent callers).
type Source interface {
	Uint8(bound uint8) uint8
	Uint16(bound uint16) uint16
	Uint32(bound uint32) uint32
}

// Real wraps math/rand for hosted builds; an embedded build would instead
// wrap a hardware TRNG or seeded LFSR behind the same Source interface.
type Real struct {
	r *rand.Rand
}

func NewReal(seed int64) *Real {
	return &Real{r: rand.New(rand.NewSource(seed))}
}

func (s *Real) Uint8(bound uint8) uint8 {
	if bound == 0 {
		return 0
	}
	return uint8(s.r.Intn(int(bound)))
}

func (s *Real) Uint16(bound uint16) uint16 {
	if bound == 0 {
		return 0
	}
	return uint16(s.r.Intn(int(bound)))
}

func (s *Real) Uint32(bound uint32) uint32 {
	if bound == 0 {
		return 0
	}
	return uint32(s.r.Int63n(int64(bound)))
}

// Sequence is a deterministic test double that replays a fixed list of
// values, wrapping around, so tests can assert exact retry/backoff behavior.
type Sequence struct {
	values []uint32
	pos    int
}

func NewSequence(values ...uint32) *Sequence {
	return &Sequence{values: values}
}

func (s *Sequence) next() uint32 {
	if len(s.values) == 0 {
		return 0
	}
	v := s.values[s.pos%len(s.values)]
	s.pos++
	return v
}

func (s *Sequence) Uint8(bound uint8) uint8 {
	if bound == 0 {
		return 0
	}
	return uint8(s.next() % uint32(bound))
}

func (s *Sequence) Uint16(bound uint16) uint16 {
	if bound == 0 {
		return 0
	}
	return uint16(s.next() % uint32(bound))
}

func (s *Sequence) Uint32(bound uint32) uint32 {
	if bound == 0 {
		return 0
	}
	return s.next() % bound
}

// UniformDuration returns a duration in [lo, hi] (milliseconds), used by the
// UHF driver's carrier-sense backoff.
func UniformDuration(src Source, loMs, hiMs uint32) uint32 {
	if hiMs <= loMs {
		return loMs
	}
	return loMs + src.Uint32(hiMs-loMs+1)
}
