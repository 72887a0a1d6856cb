package routing

import (
	"testing"

	"meshnet/link"
	"meshnet/netcore"
)

func TestLinkStateFrameRoundTrip(t *testing.T) {
	f := LinkStateFrame{
		FrameID: 0xBEEF,
		Origin:  link.UHF(0x10),
		Neighbors: []NeighborCostPair{
			{Neighbor: link.Serial(3), LinkCost: 5},
			{Neighbor: link.UHF(0x20), LinkCost: 9},
		},
	}
	b := f.MarshalBinary()
	got, ok := UnmarshalLinkStateFrame(b)
	if !ok {
		t.Fatal("unmarshal failed")
	}
	if got.FrameID != f.FrameID || !got.Origin.Equal(f.Origin) {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if len(got.Neighbors) != 2 {
		t.Fatalf("got %d neighbors, want 2", len(got.Neighbors))
	}
	for i, n := range got.Neighbors {
		if !n.Neighbor.Equal(f.Neighbors[i].Neighbor) || n.LinkCost != f.Neighbors[i].LinkCost {
			t.Fatalf("neighbor %d mismatch: %+v", i, n)
		}
	}
}

func TestUnmarshalLinkStateFrameTruncated(t *testing.T) {
	if _, ok := UnmarshalLinkStateFrame([]byte{1}); ok {
		t.Fatal("expected failure on truncated input")
	}
}

func TestAcceptFloodFrameDropsDuplicate(t *testing.T) {
	var c FrameIDCache
	if !AcceptFloodFrame(&c, 100) {
		t.Fatal("first sighting should be accepted")
	}
	if AcceptFloodFrame(&c, 100) {
		t.Fatal("duplicate frame_id must be dropped")
	}
}

func TestApplyLinkStateFrameUpdatesGraph(t *testing.T) {
	g := NewGraph()
	nodes := []netcore.NodeId{
		{Addr: link.UHF(1)},
		{Addr: link.UHF(2)},
	}
	for i := range nodes {
		g.SetValid(i, true)
	}
	f := LinkStateFrame{
		FrameID: 1,
		Origin:  link.UHF(1),
		Neighbors: []NeighborCostPair{
			{Neighbor: link.UHF(2), LinkCost: 6},
		},
	}
	ApplyLinkStateFrame(g, f, VertexOf(nodes))
	if got := g.LinkCost(0, 1); got != 6 {
		t.Fatalf("LinkCost(0,1) = %d, want 6", got)
	}
}
