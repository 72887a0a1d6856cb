// Package socket implements the per-protocol socket layer (§4.11): one
// socket per protocol number, each pairing a link-level send/receive surface
// with a DelayPool used for egress pacing.
package socket

import (
	"errors"

	"meshnet/clock"
	"meshnet/frameservice"
	"meshnet/link"
	"meshnet/membuf"
	"meshnet/nb"
)

// ErrSendFrame is returned by PollSendFrame when the link outbound queue
// rejects the frame (full, nothing expired to evict).
var ErrSendFrame = errors.New("socket: send frame dropped by link queue")

// DelayPoolCapacity bounds a socket's egress pacing pool.
const DelayPoolCapacity = 8

// CoreSocket is the routing-layer abstraction binding a protocol number to
// an egress pacing pool and the shared link frame service.
type CoreSocket struct {
	protocol  link.Protocol
	frames    *frameservice.Service
	delayPool *nb.DelayPool[link.Frame]
}

// NewCoreSocket builds a socket bound to protocol, sharing the node-wide
// frame service.
func NewCoreSocket(protocol link.Protocol, frames *frameservice.Service) *CoreSocket {
	return &CoreSocket{
		protocol:  protocol,
		frames:    frames,
		delayPool: nb.NewDelayPool[link.Frame](DelayPoolCapacity),
	}
}

// Protocol returns this socket's bound protocol number.
func (s *CoreSocket) Protocol() link.Protocol { return s.protocol }

// PollFrameWriter delegates to the frame service (spec.md §4.11).
func (s *CoreSocket) PollFrameWriter(length int) nb.Poll[membuf.Writer] {
	return s.frames.RequestFrameWriter(length)
}

// PollReceiveLinkFrame drains the link inbound channel for this socket's
// protocol.
func (s *CoreSocket) PollReceiveLinkFrame(now clock.Instant) nb.Poll[link.Frame] {
	return s.frames.PollReceptionNotification(now, func(f link.Frame) bool {
		return f.Protocol == s.protocol
	})
}

// PollPushDelayingFrame enqueues frame into the egress pacing pool to fire
// after delay.
func (s *CoreSocket) PollPushDelayingFrame(frame link.Frame, delay clock.Duration, now clock.Instant) bool {
	return s.delayPool.Push(frame, delay, now)
}

// PollReceiveFrame pops the oldest expired delayed frame.
func (s *CoreSocket) PollReceiveFrame(now clock.Instant) nb.Poll[link.Frame] {
	return s.delayPool.PollPopExpired(now)
}

// PollSendFrame hands a frame to the link layer bound for remote.
func (s *CoreSocket) PollSendFrame(remote link.Address, reader membuf.Reader, now clock.Instant) nb.Poll[error] {
	f := link.Frame{Protocol: s.protocol, Peer: remote, Length: uint8(reader.Len()), Reader: reader}
	if !s.frames.Enqueue(link.Outbound, f, now) {
		return nb.Ready[error](ErrSendFrame)
	}
	return nb.Ready[error](nil)
}
