package nb

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"meshnet/clock"
)

func TestMutexAtMostOneGuard(t *testing.T) {
	m := NewMutex(0)
	g1, ok := m.TryLock()
	assert.True(t, ok)
	_, ok = m.TryLock()
	assert.False(t, ok, "second TryLock must fail while a guard is outstanding")
	g1.Release()
	_, ok = m.TryLock()
	assert.True(t, ok, "TryLock must succeed again after release")
}

func TestOneShotDeliversOnce(t *testing.T) {
	promise, future := NewOneShot[int]()
	assert.True(t, future.Poll().IsPending())
	promise.SetValue(42)
	p := future.Poll()
	assert.True(t, p.IsReady())
	assert.Equal(t, 42, p.Value())
}

func TestDelayFiresAfterDuration(t *testing.T) {
	fake := clock.NewFake(0)
	d := NewDelay(fake.Now(), 100)
	assert.True(t, d.Poll(fake.Now()).IsPending())
	fake.Advance(99)
	assert.True(t, d.Poll(fake.Now()).IsPending())
	fake.Advance(1)
	assert.True(t, d.Poll(fake.Now()).IsReady())
}

func TestDebounceRearms(t *testing.T) {
	fake := clock.NewFake(0)
	db := NewDebounce(fake.Now(), 10)
	fake.Advance(10)
	assert.True(t, db.Poll(fake.Now()).IsReady())
	assert.True(t, db.Poll(fake.Now()).IsPending(), "must not fire twice before re-arming")
	fake.Advance(10)
	assert.True(t, db.Poll(fake.Now()).IsReady())
}

func TestDelayPoolOldestExpiredFirst(t *testing.T) {
	fake := clock.NewFake(0)
	pool := NewDelayPool[string](4)
	assert.True(t, pool.Push("a", 10, fake.Now()))
	fake.Advance(1)
	assert.True(t, pool.Push("b", 5, fake.Now()))
	fake.Advance(10)
	// "b" expired at t=6, "a" expired at t=10; both are expired by t=11, "b" is oldest by expiry.
	p := pool.PollPopExpired(fake.Now())
	assert.True(t, p.IsReady())
	assert.Equal(t, "b", p.Value())
	p = pool.PollPopExpired(fake.Now())
	assert.True(t, p.IsReady())
	assert.Equal(t, "a", p.Value())
	assert.True(t, pool.PollPopExpired(fake.Now()).IsPending())
}
