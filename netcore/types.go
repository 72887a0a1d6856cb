// Package netcore implements node identity, the neighbor table, the
// notification ring, and the dynamic-cost updater (§4.9) — the layer
// between the link facade and routing.
package netcore

import "meshnet/link"

// NodeId wraps a link.Address as this node's network identity.
type NodeId struct {
	Addr link.Address
}

func (n NodeId) Equal(other NodeId) bool { return n.Addr.Equal(other.Addr) }

// NoCluster is the reserved "no cluster" tag value.
const NoCluster uint8 = 0xFF

// ClusterId is an 8-bit cluster tag; NoCluster means "unassigned".
type ClusterId uint8

func (c ClusterId) Valid() bool { return c != ClusterId(NoCluster) }

// Cost is a non-negative duration-like scalar where higher is worse.
type Cost uint16

const MaxCost Cost = 0xFFFF

// Source pairs a NodeId with an optional ClusterId.
type Source struct {
	Node    NodeId
	Cluster ClusterId
	HasCluster bool
}

// DestKind tags which Destination variant is in play.
type DestKind uint8

const (
	DestBroadcast DestKind = iota
	DestNode
	DestCluster
	DestNodeAndCluster
)

// Destination is the sum {Broadcast, NodeId, ClusterId, NodeIdAndClusterId}.
type Destination struct {
	kind    DestKind
	node    NodeId
	cluster ClusterId
}

func Broadcast() Destination { return Destination{kind: DestBroadcast} }
func ToNode(n NodeId) Destination { return Destination{kind: DestNode, node: n} }
func ToCluster(c ClusterId) Destination { return Destination{kind: DestCluster, cluster: c} }
func ToNodeAndCluster(n NodeId, c ClusterId) Destination {
	return Destination{kind: DestNodeAndCluster, node: n, cluster: c}
}

func (d Destination) Kind() DestKind { return d.kind }

// Matches reports whether this destination addresses node/cluster.
func (d Destination) Matches(node NodeId, cluster ClusterId) bool {
	switch d.kind {
	case DestBroadcast:
		return true
	case DestNode:
		return d.node.Equal(node)
	case DestCluster:
		return d.cluster == cluster
	case DestNodeAndCluster:
		return d.node.Equal(node) && d.cluster == cluster
	default:
		return false
	}
}

// MarshalBinary writes the tagged destination form used by the routing
// header (spec.md §6): tag(u8), then a node address when the kind carries
// one, then a cluster byte when the kind carries one.
func (d Destination) MarshalBinary() []byte {
	out := []byte{byte(d.kind)}
	switch d.kind {
	case DestNode:
		out = append(out, d.node.Addr.MarshalBinary()...)
	case DestCluster:
		out = append(out, byte(d.cluster))
	case DestNodeAndCluster:
		out = append(out, d.node.Addr.MarshalBinary()...)
		out = append(out, byte(d.cluster))
	}
	return out
}

// UnmarshalDestination decodes a tagged Destination from the front of b,
// returning the number of bytes consumed.
func UnmarshalDestination(b []byte) (dest Destination, n int, ok bool) {
	if len(b) < 1 {
		return Destination{}, 0, false
	}
	switch DestKind(b[0]) {
	case DestBroadcast:
		return Broadcast(), 1, true
	case DestNode:
		addr, m, ok := link.UnmarshalAddress(b[1:])
		if !ok {
			return Destination{}, 0, false
		}
		return ToNode(NodeId{Addr: addr}), 1 + m, true
	case DestCluster:
		if len(b) < 2 {
			return Destination{}, 0, false
		}
		return ToCluster(ClusterId(b[1])), 2, true
	case DestNodeAndCluster:
		addr, m, ok := link.UnmarshalAddress(b[1:])
		if !ok || len(b) < 1+m+1 {
			return Destination{}, 0, false
		}
		cluster := ClusterId(b[1+m])
		return ToNodeAndCluster(NodeId{Addr: addr}, cluster), 1 + m + 1, true
	default:
		return Destination{}, 0, false
	}
}
