package nb

import "meshnet/clock"

type delayEntry[T any] struct {
	value     T
	expiresAt clock.Instant
	used      bool
}

// DelayPool is a bounded multiset of (payload, expires_at) used by sockets
// for egress pacing: a socket pushes a frame with a delay and the pool pops
// it back out once the delay has elapsed, oldest-expired-first.
type DelayPool[T any] struct {
	entries []delayEntry[T]
	cap     int
}

func NewDelayPool[T any](capacity int) *DelayPool[T] {
	return &DelayPool[T]{entries: make([]delayEntry[T], 0, capacity), cap: capacity}
}

// Push enqueues v to fire after delay has elapsed from now. Returns false if
// the pool is full.
func (p *DelayPool[T]) Push(v T, delay clock.Duration, now clock.Instant) bool {
	if len(p.entries) >= p.cap {
		return false
	}
	p.entries = append(p.entries, delayEntry[T]{value: v, expiresAt: now.Add(delay)})
	return true
}

// PollPopExpired returns Ready(v) for the oldest expired entry, removing it,
// or Pending if none are expired yet.
func (p *DelayPool[T]) PollPopExpired(now clock.Instant) Poll[T] {
	bestIdx := -1
	for i, e := range p.entries {
		if now.Before(e.expiresAt) {
			continue // not expired yet
		}
		if bestIdx == -1 || p.entries[i].expiresAt.Before(p.entries[bestIdx].expiresAt) {
			bestIdx = i
		}
	}
	if bestIdx == -1 {
		return Pending[T]()
	}
	v := p.entries[bestIdx].value
	p.entries = append(p.entries[:bestIdx], p.entries[bestIdx+1:]...)
	return Ready(v)
}

// Len reports how many entries are currently queued.
func (p *DelayPool[T]) Len() int { return len(p.entries) }
