package routing

import "testing"

// buildScenario mirrors the worked gateway-resolution examples: a small
// ring/star of vertices A..D (0..3) with per-vertex costs.
func buildScenario(t *testing.T) *Graph {
	t.Helper()
	g := NewGraph()
	for i := 0; i < 4; i++ {
		g.SetValid(i, true)
	}
	// A=0 B=1 C=2 D=3
	g.SetEdge(0, 1, 1)
	g.SetEdge(0, 2, 4)
	g.SetEdge(1, 2, 1)
	g.SetEdge(1, 3, 10)
	g.SetEdge(2, 3, 1)
	g.SetVertexCost(1, 2)
	g.SetVertexCost(2, 3)
	g.SetVertexCost(3, 5)
	return g
}

func TestResolveGatewayPrefersLowerTotalCost(t *testing.T) {
	g := buildScenario(t)
	// A -> C direct: 4 + vertexCost(C)=3 = 7.
	// A -> B -> C: (1+vertexCost(B)=2) + (1+vertexCost(C)=3) = 3+4 = 7 (ties, no relax).
	// A -> C -> D: 7 + 1 (dst cost excluded) = 8, beating A -> B -> D (3+10=13).
	// So C is settled via the direct edge (reached before B's relax), and D's
	// shortest path runs through C alone — gateway is C (vertex 2).
	vertex, ok := ResolveGatewayVertex(g, 0, 3)
	if !ok {
		t.Fatal("expected a route from A to D")
	}
	if vertex != 2 {
		t.Fatalf("gateway = %d, want 2 (C)", vertex)
	}
}

func TestResolveGatewayUnreachable(t *testing.T) {
	g := NewGraph()
	g.SetValid(0, true)
	g.SetValid(1, true)
	// no edge between them
	if _, ok := ResolveGatewayVertex(g, 0, 1); ok {
		t.Fatal("expected unreachable dst to fail")
	}
}

func TestResolveGatewayInvalidDst(t *testing.T) {
	g := NewGraph()
	g.SetValid(0, true)
	if _, ok := ResolveGatewayVertex(g, 0, 5); ok {
		t.Fatal("expected invalid dst to fail")
	}
}

func TestResolveGatewayDstCostExcludedOnEntry(t *testing.T) {
	g := NewGraph()
	for i := 0; i < 3; i++ {
		g.SetValid(i, true)
	}
	g.SetEdge(0, 1, 5)
	g.SetEdge(1, 2, 5)
	g.SetVertexCost(2, 100) // must NOT be added to the path cost
	vertex, ok := ResolveGatewayVertex(g, 0, 2)
	if !ok {
		t.Fatal("expected a route")
	}
	if vertex != 1 {
		t.Fatalf("gateway = %d, want 1", vertex)
	}
}

func TestResolveGatewaySrcEqualsDst(t *testing.T) {
	g := NewGraph()
	g.SetValid(0, true)
	if _, ok := ResolveGatewayVertex(g, 0, 0); ok {
		t.Fatal("src==dst should never resolve a gateway")
	}
}
