package routing

import (
	"meshnet/link"
	"meshnet/netcore"
)

// NeighborCostPair is one (neighbor_id, link_cost) entry inside a link-state
// frame.
type NeighborCostPair struct {
	Neighbor link.Address
	LinkCost uint8
}

// LinkStateFrame carries {frame_id, origin, (neighbor_id, link_cost)*} —
// the payload rebroadcast by flooding (§4.10).
type LinkStateFrame struct {
	FrameID   FrameID
	Origin    link.Address
	Neighbors []NeighborCostPair
}

// MarshalBinary writes frame_id(LE) | origin(tagged) | (neighbor(tagged),
// link_cost)*.
func (f LinkStateFrame) MarshalBinary() []byte {
	out := []byte{byte(f.FrameID), byte(f.FrameID >> 8)}
	out = append(out, f.Origin.MarshalBinary()...)
	for _, n := range f.Neighbors {
		out = append(out, n.Neighbor.MarshalBinary()...)
		out = append(out, n.LinkCost)
	}
	return out
}

// UnmarshalLinkStateFrame parses a LinkStateFrame, returning ok=false on any
// truncation or unknown address tag.
func UnmarshalLinkStateFrame(b []byte) (LinkStateFrame, bool) {
	if len(b) < 2 {
		return LinkStateFrame{}, false
	}
	id := FrameID(uint16(b[0]) | uint16(b[1])<<8)
	b = b[2:]
	origin, n, ok := link.UnmarshalAddress(b)
	if !ok {
		return LinkStateFrame{}, false
	}
	b = b[n:]
	var pairs []NeighborCostPair
	for len(b) > 0 {
		addr, n, ok := link.UnmarshalAddress(b)
		if !ok || len(b) < n+1 {
			return LinkStateFrame{}, false
		}
		cost := b[n]
		pairs = append(pairs, NeighborCostPair{Neighbor: addr, LinkCost: cost})
		b = b[n+1:]
	}
	return LinkStateFrame{FrameID: id, Origin: origin, Neighbors: pairs}, true
}

// AcceptFloodFrame implements the flood rule: accept a frame iff its
// frame_id is not already cached; on acceptance the id is inserted so a
// duplicate arriving on another medium is dropped (§4.10, §8 scenario 6).
func AcceptFloodFrame(cache *FrameIDCache, id FrameID) bool {
	if cache.Contains(id) {
		return false
	}
	cache.Insert(id)
	return true
}

// ApplyLinkStateFrame folds a flooded frame's neighbor/cost pairs into g,
// keyed by vertexOf (a caller-supplied address->vertex-index mapping, since
// the graph is index-based but frames carry link addresses).
func ApplyLinkStateFrame(g *Graph, f LinkStateFrame, vertexOf func(link.Address) (int, bool)) {
	origin, ok := vertexOf(f.Origin)
	if !ok {
		return
	}
	g.SetValid(origin, true)
	for _, pair := range f.Neighbors {
		v, ok := vertexOf(pair.Neighbor)
		if !ok {
			continue
		}
		g.SetValid(v, true)
		g.SetEdge(origin, v, pair.LinkCost)
	}
}

// vertexForNode is a small helper some callers use to build the vertexOf
// closure from a netcore NodeId list.
func vertexForNode(nodes []netcore.NodeId, addr link.Address) (int, bool) {
	for i, n := range nodes {
		if n.Addr.Equal(addr) {
			return i, true
		}
	}
	return 0, false
}

// VertexOf returns a vertexOf closure over a stable node list — callers
// (the routing socket) own the node-list-to-vertex-index assignment.
func VertexOf(nodes []netcore.NodeId) func(link.Address) (int, bool) {
	return func(addr link.Address) (int, bool) {
		return vertexForNode(nodes, addr)
	}
}
