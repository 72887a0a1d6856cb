package socket

import (
	"meshnet/clock"
	"meshnet/link"
	"meshnet/nb"
	"meshnet/netcore"
)

// helloInterval is how often a node re-announces itself on the Discover
// protocol when auto neighbor discovery is enabled (spec.md §4.9's
// "until the link layer reports a media address" bring-up gate applies
// here too: DiscoverySocket only broadcasts once the local node is Ready).
const helloInterval clock.Duration = 10000

// HelloFrame is the Discover protocol's sole payload: an unsolicited
// announcement of the sender's own NodeId and current cost, used by peers
// to populate their neighbor table without any request/response exchange.
type HelloFrame struct {
	Node netcore.NodeId
	Cost netcore.Cost
}

func (h HelloFrame) marshal() []byte {
	out := h.Node.Addr.MarshalBinary()
	return append(out, byte(h.Cost), byte(h.Cost>>8))
}

func unmarshalHello(b []byte) (HelloFrame, bool) {
	addr, n, ok := link.UnmarshalAddress(b)
	if !ok || len(b) < n+2 {
		return HelloFrame{}, false
	}
	cost := netcore.Cost(uint16(b[n]) | uint16(b[n+1])<<8)
	return HelloFrame{Node: netcore.NodeId{Addr: addr}, Cost: cost}, true
}

// DiscoverySocket periodically broadcasts a HelloFrame to every currently
// known neighbor and upserts the sender of every inbound HelloFrame it
// sees into the local neighbor table, grounded on spec.md §4.9's
// LocalNodeInfo/NeighborTable pairing — this is the active side that keeps
// the table populated instead of requiring link-state floods alone.
type DiscoverySocket struct {
	core     *CoreSocket
	debounce *nb.Debounce
}

func NewDiscoverySocket(core *CoreSocket, now clock.Instant) *DiscoverySocket {
	return &DiscoverySocket{core: core, debounce: nb.NewDebounce(now, helloInterval)}
}

// Execute announces the local node to every known neighbor (rate-limited to
// once per helloInterval) and drains inbound HelloFrames, upserting each
// sender into neighbors with defaultHelloLinkCost as the observed link cost.
func (s *DiscoverySocket) Execute(now clock.Instant, local netcore.NodeId, cost netcore.Cost, neighbors *netcore.NeighborTable) {
	if s.debounce.Poll(now).IsReady() {
		body := HelloFrame{Node: local, Cost: cost}.marshal()
		for _, id := range neighbors.Neighbors() {
			if addr, ok := neighbors.Lookup(id); ok {
				if w, ready := s.core.PollFrameWriter(len(body)).Get(); ready {
					w.Write(body)
					s.core.PollSendFrame(addr, w.InitialReader(), now)
				}
			}
		}
	}

	for {
		f, ok := s.core.PollReceiveLinkFrame(now).Get()
		if !ok {
			return
		}
		raw := f.Reader.ReadUnchecked(f.Reader.ReadableCount())
		hello, ok := unmarshalHello(raw)
		if !ok {
			continue
		}
		neighbors.Upsert(hello.Node, f.Peer, defaultHelloLinkCost, hello.Cost, now)
	}
}

// defaultHelloLinkCost is the link cost assigned to a neighbor discovered
// purely via Hello exchange, before any dynamic cost observation exists for
// that link specifically — link-state floods (routing/linkstate.go) refine
// costs for vertices beyond direct neighbors.
const defaultHelloLinkCost netcore.Cost = 1
