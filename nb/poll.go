// Package nb holds the non-blocking cooperative execution primitives used
// uniformly from wire byte I/O up to application sockets: Poll, a mutex
// guard, a one-shot future/promise pair, and delay/debounce/delay-pool
// timers. Nothing here blocks; every operation either makes progress and
// returns Ready, or returns Pending and must be retried by the caller on a
// later tick.
package nb

// state distinguishes a Poll's two variants without an interface allocation.
type state uint8

const (
	pending state = iota
	ready
)

// Poll is the sum type {Pending, Ready(T)}. It is the only legal
// interruption in this codebase: a poll() that returns Pending promises it
// made no observable progress the caller must unwind.
type Poll[T any] struct {
	st    state
	value T
}

// Pending constructs the Pending variant.
func Pending[T any]() Poll[T] {
	return Poll[T]{st: pending}
}

// Ready constructs the Ready(v) variant.
func Ready[T any](v T) Poll[T] {
	return Poll[T]{st: ready, value: v}
}

// IsReady reports whether the poll completed.
func (p Poll[T]) IsReady() bool { return p.st == ready }

// IsPending reports whether the caller must retry later.
func (p Poll[T]) IsPending() bool { return p.st == pending }

// Value returns the completed value; it panics if the Poll is Pending,
// matching the contract that callers must check IsReady first.
func (p Poll[T]) Value() T {
	if p.st != ready {
		panic("nb: Value() called on a Pending poll")
	}
	return p.value
}

// Get returns (value, true) if Ready, or the zero value and false if Pending
// — the idiomatic comma-ok form for call sites that don't want a panic path.
func (p Poll[T]) Get() (T, bool) {
	return p.value, p.st == ready
}

// Void is the unit completion type, used where Ready carries no payload.
type Void struct{}

// ReadyVoid is shorthand for Ready(Void{}).
func ReadyVoid() Poll[Void] { return Ready(Void{}) }

// Map transforms a Ready value, passing Pending through unchanged.
func Map[T, U any](p Poll[T], f func(T) U) Poll[U] {
	if v, ok := p.Get(); ok {
		return Ready(f(v))
	}
	return Pending[U]()
}
