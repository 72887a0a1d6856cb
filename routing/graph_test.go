package routing

import "testing"

func TestGraphEdgeSymmetricAndInvalid(t *testing.T) {
	g := NewGraph()
	g.SetValid(0, true)
	g.SetValid(1, true)
	g.SetEdge(0, 1, 7)

	if got := g.LinkCost(0, 1); got != 7 {
		t.Fatalf("LinkCost(0,1) = %d, want 7", got)
	}
	if got := g.LinkCost(1, 0); got != 7 {
		t.Fatalf("LinkCost(1,0) = %d, want 7 (symmetric)", got)
	}
	if got := g.LinkCost(0, 2); got != Infinity {
		t.Fatalf("LinkCost to invalid vertex = %d, want Infinity", got)
	}
}

func TestGraphRemoveVertexClearsEdges(t *testing.T) {
	g := NewGraph()
	for i := 0; i < 3; i++ {
		g.SetValid(i, true)
	}
	g.SetEdge(0, 1, 3)
	g.SetEdge(1, 2, 4)
	g.RemoveVertex(1)

	if g.Valid(1) {
		t.Fatal("vertex 1 should be invalid after RemoveVertex")
	}
	if got := g.LinkCost(0, 1); got != Infinity {
		t.Fatalf("LinkCost(0,1) after removal = %d, want Infinity", got)
	}
}

func TestGraphVertexCost(t *testing.T) {
	g := NewGraph()
	g.SetVertexCost(3, 9)
	if got := g.VertexCost(3); got != 9 {
		t.Fatalf("VertexCost(3) = %d, want 9", got)
	}
}
