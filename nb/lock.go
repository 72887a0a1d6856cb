package nb

// Mutex carries a value of T with at most one outstanding Guard at a time.
// It is not a sync.Mutex: there is one cooperative caller, so no blocking is
// ever needed — TryLock either returns a guard or reports the value is
// already held.
type Mutex[T any] struct {
	value T
	held  bool
}

func NewMutex[T any](v T) *Mutex[T] {
	return &Mutex[T]{value: v}
}

// Guard grants exclusive read-write access to a Mutex's value until
// released. The guard contract: at most one guard per Mutex at any time.
type Guard[T any] struct {
	m *Mutex[T]
}

// TryLock returns (guard, true) if the mutex was free, or (zero, false) if
// already held — the caller should treat the latter as Pending.
func (m *Mutex[T]) TryLock() (Guard[T], bool) {
	if m.held {
		return Guard[T]{}, false
	}
	m.held = true
	return Guard[T]{m: m}, true
}

// Get returns the current value.
func (g Guard[T]) Get() T { return g.m.value }

// Set replaces the current value.
func (g Guard[T]) Set(v T) { g.m.value = v }

// With runs f with a pointer to the guarded value for in-place mutation.
func (g Guard[T]) With(f func(*T)) { f(&g.m.value) }

// Release returns the guard's exclusivity to the mutex. Calling it more than
// once, or using a guard after release, is a programming error (same
// contract as dropping the sole guard in the source design).
func (g Guard[T]) Release() {
	g.m.held = false
}

// Locked reports whether any guard is currently outstanding.
func (m *Mutex[T]) Locked() bool { return m.held }
