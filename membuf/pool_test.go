package membuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoolConservation(t *testing.T) {
	pool := NewBufferPool(2, 16)
	h, err := pool.Allocate()
	assert.NoError(t, err)
	r, w, err := h.Publish(8)
	assert.NoError(t, err)
	assert.Equal(t, 1, pool.InUse())

	_, err = pool.Allocate()
	assert.NoError(t, err)
	assert.Equal(t, 2, pool.InUse())

	_, err = pool.Allocate()
	assert.ErrorIs(t, err, ErrPoolExhausted)

	r.Release()
	w.Release()
	assert.Equal(t, 1, pool.InUse(), "slot must be returned once both halves release")

	_, err = pool.Allocate()
	assert.NoError(t, err, "released slot must be reusable")
}

func TestInitialReaderSeesLaterWrites(t *testing.T) {
	pool := NewBufferPool(1, 16)
	h, _ := pool.Allocate()
	r, w, _ := h.Publish(5)
	initial := w.InitialReader()

	assert.True(t, r.PollReadable(1).IsPending())
	assert.True(t, initial.PollReadable(1).IsPending())

	n := w.Write([]byte("he"))
	assert.Equal(t, 2, n)

	assert.True(t, initial.PollReadable(2).IsReady())
	got := initial.ReadUnchecked(2)
	assert.Equal(t, []byte("he"), got)

	w.Write([]byte("llo"))
	assert.True(t, r.PollReadable(5).IsReady())
	assert.Equal(t, []byte("hello"), r.ReadUnchecked(5))
}

func TestMaxSizeExceedsCapacity(t *testing.T) {
	pool := NewBufferPool(1, 4)
	h, _ := pool.Allocate()
	_, _, err := h.Publish(5)
	assert.ErrorIs(t, err, ErrMaxSizeExceedsCapacity)
}
