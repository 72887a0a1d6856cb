package link

import (
	"testing"

	"meshnet/clock"
)

func testFrame(proto Protocol) Frame {
	return Frame{Protocol: proto, Peer: Serial(1)}
}

func TestFrameQueueFIFOOrder(t *testing.T) {
	q := NewFrameQueue(4)
	now := clock.Instant(0)
	q.Push(Outbound, testFrame(Discover), now)
	q.Push(Outbound, testFrame(Rpc), now)

	f, ok := q.Pop(Outbound, now, nil)
	if !ok || f.Protocol != Discover {
		t.Fatalf("expected Discover first, got %+v ok=%v", f, ok)
	}
	f, ok = q.Pop(Outbound, now, nil)
	if !ok || f.Protocol != Rpc {
		t.Fatalf("expected Rpc second, got %+v ok=%v", f, ok)
	}
}

func TestFrameQueueRejectsWhenFullAndNothingExpired(t *testing.T) {
	q := NewFrameQueue(2)
	now := clock.Instant(0)
	if !q.Push(Outbound, testFrame(Discover), now) {
		t.Fatal("first push should succeed")
	}
	if !q.Push(Outbound, testFrame(Rpc), now) {
		t.Fatal("second push should succeed")
	}
	if q.Push(Outbound, testFrame(Observer), now) {
		t.Fatal("third push into a full, non-expired queue must be dropped")
	}
}

func TestFrameQueueEvictsOldestExpiredOnFullPush(t *testing.T) {
	q := NewFrameQueue(1)
	now := clock.Instant(0)
	q.Push(Outbound, testFrame(Discover), now)

	later := now.Add(FrameExpiration + 1)
	if !q.Push(Outbound, testFrame(Rpc), later) {
		t.Fatal("push should succeed by evicting the expired entry")
	}
	f, ok := q.Pop(Outbound, later, nil)
	if !ok || f.Protocol != Rpc {
		t.Fatalf("expected the new Rpc frame to remain, got %+v ok=%v", f, ok)
	}
}

func TestFrameQueuePopSkipsNonMatching(t *testing.T) {
	q := NewFrameQueue(4)
	now := clock.Instant(0)
	q.Push(Outbound, testFrame(Discover), now)
	q.Push(Outbound, testFrame(Rpc), now)

	f, ok := q.Pop(Outbound, now, func(fr Frame) bool { return fr.Protocol == Rpc })
	if !ok || f.Protocol != Rpc {
		t.Fatalf("expected to find Rpc by predicate, got %+v ok=%v", f, ok)
	}
	// Discover frame should remain.
	if q.Len(Outbound) != 1 {
		t.Fatalf("expected 1 remaining entry, got %d", q.Len(Outbound))
	}
}

func TestFrameQueueExecuteSweepsExpired(t *testing.T) {
	q := NewFrameQueue(4)
	now := clock.Instant(0)
	q.Push(Outbound, testFrame(Discover), now)

	later := now.Add(FrameExpiration + 1)
	q.Execute(later)
	if q.Len(Outbound) != 0 {
		t.Fatalf("expected expired entry swept, Len=%d", q.Len(Outbound))
	}
}

func TestFrameQueueDirectionsAreIndependent(t *testing.T) {
	q := NewFrameQueue(4)
	now := clock.Instant(0)
	q.Push(Outbound, testFrame(Discover), now)
	q.Push(Inbound, testFrame(Rpc), now)

	if q.Len(Outbound) != 1 || q.Len(Inbound) != 1 {
		t.Fatalf("channel lengths mismatched: out=%d in=%d", q.Len(Outbound), q.Len(Inbound))
	}
}
