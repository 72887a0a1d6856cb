package routing

// ResolveGatewayVertex runs Dijkstra from src over valid vertices, edge
// weight link_cost(u,v) + vertex_cost(v) — except the weight entering dst
// itself never includes vertex_cost(dst), per §4.10 — and returns the first
// hop (src's neighbor) on the resulting shortest path to dst. Ties are
// broken by preferring the smaller vertex index, both when selecting the
// next frontier vertex and when relaxing an edge of equal weight.
//
// It returns ok=false if dst is invalid, src is invalid, or dst is
// unreachable from src via valid vertices.
func ResolveGatewayVertex(g *Graph, src, dst int) (vertex int, ok bool) {
	if !g.Valid(src) || !g.Valid(dst) || src == dst {
		return 0, false
	}

	const inf = int(^uint(0) >> 1)
	dist := [MaxVertices]int{}
	prev := [MaxVertices]int{}
	visited := [MaxVertices]bool{}
	for i := range dist {
		dist[i] = inf
		prev[i] = -1
	}
	dist[src] = 0

	for {
		u := -1
		best := inf
		for v := 0; v < MaxVertices; v++ {
			if !g.Valid(v) || visited[v] {
				continue
			}
			if dist[v] < best {
				best = dist[v]
				u = v
			}
		}
		if u == -1 {
			break // no more reachable unvisited vertices
		}
		visited[u] = true
		if u == dst {
			break
		}

		for v := 0; v < MaxVertices; v++ {
			if !g.Valid(v) || visited[v] || v == u {
				continue
			}
			lc := g.LinkCost(u, v)
			if lc == Infinity {
				continue
			}
			weight := int(lc)
			if v != dst {
				weight += int(g.VertexCost(v))
			}
			if dist[u] == inf {
				continue
			}
			newDist := dist[u] + weight
			if newDist < dist[v] || (newDist == dist[v] && u < prev[v]) {
				dist[v] = newDist
				prev[v] = u
			}
		}
	}

	if dist[dst] == inf {
		return 0, false
	}

	// Walk back from dst to the neighbor of src.
	cur := dst
	for prev[cur] != src {
		if prev[cur] == -1 {
			return 0, false
		}
		cur = prev[cur]
	}
	return cur, true
}
