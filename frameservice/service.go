// Package frameservice owns the buffer pool and exposes the routing-facing
// allocation and queue-draining operations used by every socket and the
// routing layer.
package frameservice

import (
	"meshnet/clock"
	"meshnet/link"
	"meshnet/membuf"
	"meshnet/nb"
)

// Service allocates frame buffers and mediates access to the link frame
// queue's outbound/inbound channels.
type Service struct {
	pool  *membuf.BufferPool
	queue *link.FrameQueue
}

func NewService(pool *membuf.BufferPool, queue *link.FrameQueue) *Service {
	return &Service{pool: pool, queue: queue}
}

// RequestFrameWriter allocates a buffer able to hold length bytes. A length
// above the pool's slot capacity is clamped to that capacity, so the writer
// then holds fewer than length bytes. On pool exhaustion it returns Pending — back-pressure, not an error — so
// callers retry on a later tick.
func (s *Service) RequestFrameWriter(length int) nb.Poll[membuf.Writer] {
	h, err := s.pool.Allocate()
	if err != nil {
		return nb.Pending[membuf.Writer]()
	}
	capacity := s.pool.Capacity()
	if length > capacity {
		length = capacity
	}
	r, w, err := h.Publish(length)
	if err != nil {
		return nb.Pending[membuf.Writer]()
	}
	// Callers of RequestFrameWriter only want the write half; release the
	// paired reader's share immediately so the slot doesn't leak a
	// permanent refcount when nobody ever calls w.InitialReader().
	r.Release()
	return nb.Ready(w)
}

// RequestFrameWriterPair is RequestFrameWriter but also returns the paired
// reader, for callers (e.g. sockets) that need to hand the frame off to the
// link queue immediately while still writing the tail via InitialReader.
func (s *Service) RequestFrameWriterPair(length int) (membuf.Reader, membuf.Writer, bool) {
	h, err := s.pool.Allocate()
	if err != nil {
		return membuf.Reader{}, membuf.Writer{}, false
	}
	capacity := s.pool.Capacity()
	if length > capacity {
		length = capacity
	}
	r, w, err := h.Publish(length)
	if err != nil {
		return membuf.Reader{}, membuf.Writer{}, false
	}
	return r, w, true
}

// PollTransmissionRequest drains the oldest non-expired outbound frame
// matching predicate (nil matches anything).
func (s *Service) PollTransmissionRequest(now clock.Instant, predicate func(link.Frame) bool) nb.Poll[link.Frame] {
	if f, ok := s.queue.Pop(link.Outbound, now, predicate); ok {
		return nb.Ready(f)
	}
	return nb.Pending[link.Frame]()
}

// PollReceptionNotification drains the oldest non-expired inbound frame
// matching predicate.
func (s *Service) PollReceptionNotification(now clock.Instant, predicate func(link.Frame) bool) nb.Poll[link.Frame] {
	if f, ok := s.queue.Pop(link.Inbound, now, predicate); ok {
		return nb.Ready(f)
	}
	return nb.Pending[link.Frame]()
}

// Enqueue pushes a frame onto dir, surfacing queue-full back-pressure as a
// boolean (false means "dropped": the caller should report a transmission
// failure).
func (s *Service) Enqueue(dir link.Direction, f link.Frame, now clock.Instant) bool {
	return s.queue.Push(dir, f, now)
}

// Pool exposes the underlying buffer pool for components (drivers) that
// allocate directly on frame reception.
func (s *Service) Pool() *membuf.BufferPool { return s.pool }
