package socket

import (
	"meshnet/clock"
	"meshnet/link"
	"meshnet/netcore"
)

// observerBroadcastDelay is the pacing gap between successive subscriber
// pushes, so a burst of neighbor/self notifications doesn't saturate the
// Observer protocol's outbound share of the link queue in one tick.
const observerBroadcastDelay clock.Duration = 20

// maxSubscribers bounds the observer socket's subscriber table.
const maxSubscribers = 8

// NodeSubscriptionFrame is the empty marker frame a peer sends to subscribe
// to this node's notification stream, grounded on original_source's
// net::observer::NodeSubscriptionFrame (a zero-length payload).
type NodeSubscriptionFrame struct{}

// ObserverSocket streams Notifications (§4.9, §6) to subscribed peers over
// the Observer protocol, pacing pushes through the core socket's DelayPool.
type ObserverSocket struct {
	core        *CoreSocket
	subscribers []link.Address
}

func NewObserverSocket(core *CoreSocket) *ObserverSocket {
	return &ObserverSocket{core: core}
}

// PollIncoming drains one Observer-protocol frame: any inbound frame (the
// payload is empty per NodeSubscriptionFrame) registers its sender as a
// subscriber, if there is room.
func (s *ObserverSocket) PollIncoming(now clock.Instant) {
	f, ok := s.core.PollReceiveLinkFrame(now).Get()
	if !ok {
		return
	}
	for _, addr := range s.subscribers {
		if addr.Equal(f.Peer) {
			return // already subscribed
		}
	}
	if len(s.subscribers) >= maxSubscribers {
		return
	}
	s.subscribers = append(s.subscribers, f.Peer)
}

// Publish queues note for delivery to every current subscriber, staggered
// by observerBroadcastDelay so the pacing pool — not the link queue — absorbs
// the fan-out burst.
func (s *ObserverSocket) Publish(note netcore.Notification, now clock.Instant) {
	body := note.MarshalBinary()
	for i, addr := range s.subscribers {
		w, ready := s.core.PollFrameWriter(len(body)).Get()
		if !ready {
			continue
		}
		w.Write(body)
		f := link.Frame{Protocol: s.core.Protocol(), Peer: addr, Length: uint8(w.WriteIndex()), Reader: w.InitialReader()}
		delay := observerBroadcastDelay * clock.Duration(i)
		s.core.PollPushDelayingFrame(f, delay, now)
	}
}

// Execute pops any delayed notification frames whose pacing delay has
// elapsed and hands them to the link layer.
func (s *ObserverSocket) Execute(now clock.Instant) {
	for {
		f, ready := s.core.PollReceiveFrame(now).Get()
		if !ready {
			return
		}
		s.core.PollSendFrame(f.Peer, f.Reader, now)
	}
}
