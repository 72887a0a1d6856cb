package netcore

import (
	"meshnet/clock"
	"meshnet/link"
)

// MaxNeighbors bounds the neighbor table the same way the adjacency graph
// is bounded (§4.10, compile-time cluster size).
const MaxNeighbors = 16

// neighborExpiry: a neighbor not refreshed within this window is considered
// gone and removed on the next Execute sweep.
const neighborExpiry clock.Duration = 60000

type neighborEntry struct {
	id       NodeId
	addr     link.Address
	linkCost Cost
	destCost Cost // the neighbor's own advertised cost, for gateway weighting
	lastSeen clock.Instant
}

// NeighborTable is the local node's destination lookup: which link address
// to hand a frame to in order to reach a given next-hop NodeId, plus the
// link cost used when recomputing this node's own dynamic cost.
type NeighborTable struct {
	entries  []neighborEntry
	notifier *NotificationService
}

func NewNeighborTable(notifier *NotificationService) *NeighborTable {
	return &NeighborTable{notifier: notifier}
}

// Upsert records (or refreshes) a neighbor observation, firing
// NeighborUpdated when the neighbor is new or its costs changed.
func (t *NeighborTable) Upsert(id NodeId, addr link.Address, linkCost, destCost Cost, now clock.Instant) {
	for i := range t.entries {
		if t.entries[i].id.Equal(id) {
			changed := t.entries[i].linkCost != linkCost || t.entries[i].destCost != destCost
			t.entries[i].addr = addr
			t.entries[i].linkCost = linkCost
			t.entries[i].destCost = destCost
			t.entries[i].lastSeen = now
			if changed {
				t.notifier.Notify(NeighborUpdated(id, linkCost, destCost))
			}
			return
		}
	}
	if len(t.entries) >= MaxNeighbors {
		return // table full: new neighbors are silently not tracked
	}
	t.entries = append(t.entries, neighborEntry{id: id, addr: addr, linkCost: linkCost, destCost: destCost, lastSeen: now})
	t.notifier.Notify(NeighborUpdated(id, linkCost, destCost))
}

// Lookup returns the link address to use to reach neighbor id.
func (t *NeighborTable) Lookup(id NodeId) (link.Address, bool) {
	for _, e := range t.entries {
		if e.id.Equal(id) {
			return e.addr, true
		}
	}
	return link.Address{}, false
}

// LinkCost returns the observed link cost to neighbor id, used when
// advertising this node's own adjacency in a LinkStateFrame.
func (t *NeighborTable) LinkCost(id NodeId) (Cost, bool) {
	for _, e := range t.entries {
		if e.id.Equal(id) {
			return e.linkCost, true
		}
	}
	return 0, false
}

// DestCost returns neighbor id's own advertised cost — the vertex-entry
// weight ResolveGatewayVertex applies when that neighbor sits mid-path
// (§4.10's "vertex cost on entry" rule).
func (t *NeighborTable) DestCost(id NodeId) (Cost, bool) {
	for _, e := range t.entries {
		if e.id.Equal(id) {
			return e.destCost, true
		}
	}
	return 0, false
}

// Neighbors returns a read-only snapshot of the current table, used by
// RoutingSocket.Neighbors() for introspection (SPEC_FULL.md supplement).
func (t *NeighborTable) Neighbors() []NodeId {
	out := make([]NodeId, len(t.entries))
	for i, e := range t.entries {
		out[i] = e.id
	}
	return out
}

// Execute sweeps neighbors that have not been refreshed within
// neighborExpiry, notifying NeighborRemoved for each.
func (t *NeighborTable) Execute(now clock.Instant) {
	kept := t.entries[:0]
	for _, e := range t.entries {
		if now.Sub(e.lastSeen) >= neighborExpiry {
			t.notifier.Notify(NeighborRemoved(e.id))
			continue
		}
		kept = append(kept, e)
	}
	t.entries = kept
}
