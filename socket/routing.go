package socket

import (
	"meshnet/clock"
	"meshnet/link"
	"meshnet/nb"
	"meshnet/netcore"
	"meshnet/rng"
	"meshnet/routing"
)

// maxHopCount bounds how many times a routed frame may be rebroadcast before
// it is silently dropped, the routed-frame analog of a TTL.
const maxHopCount uint8 = 8

// routingHeader is frame_id(u16) | origin | destination | hop_count(u8) |
// cluster_id(u8), preceding payload (spec.md §6).
type routingHeader struct {
	frameID     routing.FrameID
	origin      netcore.NodeId
	destination netcore.Destination
	hopCount    uint8
	cluster     netcore.ClusterId
}

func (h routingHeader) marshal() []byte {
	out := []byte{byte(h.frameID), byte(h.frameID >> 8)}
	out = append(out, h.origin.Addr.MarshalBinary()...)
	out = append(out, h.destination.MarshalBinary()...)
	out = append(out, h.hopCount, byte(h.cluster))
	return out
}

func unmarshalRoutingHeader(b []byte) (h routingHeader, n int, ok bool) {
	if len(b) < 2 {
		return routingHeader{}, 0, false
	}
	h.frameID = routing.FrameID(uint16(b[0]) | uint16(b[1])<<8)
	n = 2
	origin, m, ok := link.UnmarshalAddress(b[n:])
	if !ok {
		return routingHeader{}, 0, false
	}
	h.origin = netcore.NodeId{Addr: origin}
	n += m
	dest, m, ok := netcore.UnmarshalDestination(b[n:])
	if !ok {
		return routingHeader{}, 0, false
	}
	h.destination = dest
	n += m
	if len(b) < n+2 {
		return routingHeader{}, 0, false
	}
	h.hopCount = b[n]
	h.cluster = netcore.ClusterId(b[n+1])
	n += 2
	return h, n, true
}

// RoutingSocket composes a core socket with a frame-id flood cache and the
// gateway resolver (spec.md §4.10/§4.11): outbound it injects the routing
// header and resolves a first-hop neighbor; inbound it increments
// hop_count, dropping once it reaches maxHopCount, consults the cache, and
// either delivers locally, drops (seen or hop-exhausted), or rebroadcasts.
type RoutingSocket struct {
	core      *CoreSocket
	local     netcore.NodeId
	cluster   netcore.ClusterId
	nodes     *[]netcore.NodeId // vertex index -> NodeId, index 0 is local; owned by App, grows over time
	graph     *routing.Graph
	neighbors *netcore.NeighborTable
	cache     *routing.FrameIDCache
	rnd       rng.Source
}

// NewRoutingSocket builds a RoutingSocket. nodes is a pointer to the App's
// shared vertex-index table: it grows as new neighbors are discovered, so
// every socket sharing it must see appended entries rather than a stale
// snapshot.
func NewRoutingSocket(
	core *CoreSocket,
	local netcore.NodeId,
	cluster netcore.ClusterId,
	nodes *[]netcore.NodeId,
	graph *routing.Graph,
	neighbors *netcore.NeighborTable,
	cache *routing.FrameIDCache,
	rnd rng.Source,
) *RoutingSocket {
	return &RoutingSocket{
		core: core, local: local, cluster: cluster, nodes: nodes,
		graph: graph, neighbors: neighbors, cache: cache, rnd: rnd,
	}
}

// Neighbors returns the current neighbor table snapshot — a read-only
// debug/introspection accessor exercised by cmd/meshctl.
func (s *RoutingSocket) Neighbors() []netcore.NodeId {
	return s.neighbors.Neighbors()
}

func (s *RoutingSocket) localVertex() (int, bool) {
	return routing.VertexOf(*s.nodes)(s.local.Addr)
}

// Send injects a fresh routing header around payload and forwards it toward
// dest: a one-hop broadcast/cluster send fans out to every known neighbor;
// a node-addressed send resolves the gateway vertex and sends to that
// neighbor alone. It returns false if no route is available or the frame
// pool/link queue rejects the send.
func (s *RoutingSocket) Send(dest netcore.Destination, payload []byte, now clock.Instant) bool {
	id := s.cache.Generate(s.rnd)
	s.cache.Insert(id)
	h := routingHeader{frameID: id, origin: s.local, destination: dest, hopCount: 0, cluster: s.cluster}
	return s.sendHeader(h, payload, now)
}

func (s *RoutingSocket) sendHeader(h routingHeader, payload []byte, now clock.Instant) bool {
	targets := s.resolveTargets(h.destination)
	if len(targets) == 0 {
		return false
	}
	header := h.marshal()
	w, ready := s.core.PollFrameWriter(len(header) + len(payload)).Get()
	if !ready {
		return false
	}
	w.Write(header)
	w.Write(payload)

	sent := false
	for _, addr := range targets {
		if s.core.PollSendFrame(addr, w.InitialReader(), now).Value() == nil {
			sent = true
		}
	}
	return sent
}

// resolveTargets maps a Destination to the link addresses of the neighbors
// a frame bound there must be handed to next.
func (s *RoutingSocket) resolveTargets(dest netcore.Destination) []link.Address {
	switch dest.Kind() {
	case netcore.DestBroadcast, netcore.DestCluster:
		out := make([]link.Address, 0, len(*s.nodes))
		for _, n := range s.neighbors.Neighbors() {
			if addr, ok := s.neighbors.Lookup(n); ok {
				out = append(out, addr)
			}
		}
		return out
	default:
		srcV, ok := s.localVertex()
		if !ok {
			return nil
		}
		dstV, ok := routing.VertexOf(*s.nodes)(s.destNodeAddr(dest))
		if !ok {
			return nil
		}
		gatewayV, ok := routing.ResolveGatewayVertex(s.graph, srcV, dstV)
		if !ok {
			return nil
		}
		addr, ok := s.neighbors.Lookup((*s.nodes)[gatewayV])
		if !ok {
			return nil
		}
		return []link.Address{addr}
	}
}

func (s *RoutingSocket) destNodeAddr(dest netcore.Destination) link.Address {
	// Matches against every known node; the first whose NodeId satisfies
	// Destination.Matches is the addressed node. Cluster-only destinations
	// never reach here (handled in resolveTargets above).
	for _, n := range *s.nodes {
		if dest.Matches(n, s.cluster) {
			return n.Addr
		}
	}
	return link.Address{}
}

// Receive drains one inbound routed frame, applying the flood-cache and
// hop-count rules. It returns Ready(payload) exactly when the frame is
// addressed to this node (locally deliverable); frames that are seen
// before, hop-exhausted, or not addressed here are consumed without being
// surfaced (dropped or silently rebroadcast).
func (s *RoutingSocket) Receive(now clock.Instant) nb.Poll[[]byte] {
	f, ok := s.core.PollReceiveLinkFrame(now).Get()
	if !ok {
		return nb.Pending[[]byte]()
	}
	reader := f.Reader
	raw := reader.ReadUnchecked(reader.ReadableCount())
	h, n, ok := unmarshalRoutingHeader(raw)
	if !ok {
		return nb.Pending[[]byte]()
	}
	payload := raw[n:]

	if s.cache.Contains(h.frameID) {
		return nb.Pending[[]byte]() // seen: silently dropped
	}
	s.cache.Insert(h.frameID)

	deliverLocally := h.destination.Matches(s.local, s.cluster)

	if h.destination.Kind() == netcore.DestBroadcast || h.destination.Kind() == netcore.DestCluster {
		if h.hopCount < maxHopCount {
			h.hopCount++
			s.sendHeader(h, payload, now)
		}
		if deliverLocally {
			return nb.Ready(payload)
		}
		return nb.Pending[[]byte]()
	}

	if deliverLocally {
		return nb.Ready(payload)
	}
	if h.hopCount >= maxHopCount {
		return nb.Pending[[]byte]() // hop-exhausted: dropped
	}
	h.hopCount++
	s.sendHeader(h, payload, now)
	return nb.Pending[[]byte]()
}
