package graph

// color marks DFS progress for cycle detection.
type color int

const (
	white color = iota // unvisited
	gray               // on the current DFS path
	black              // fully explored
)

// IsCyclic reports whether the graph contains a directed cycle, including
// self-loops.
func (g *Graph[N]) IsCyclic() bool {
	marks := make(map[N]color, len(g.nodes))
	for _, n := range g.nodes {
		if marks[n] == white && g.hasBackEdge(n, marks) {
			return true
		}
	}
	return false
}

// hasBackEdge explores n depth-first and reports a back edge to a gray node.
func (g *Graph[N]) hasBackEdge(n N, marks map[N]color) bool {
	marks[n] = gray
	for _, s := range g.succ[n] {
		switch marks[s] {
		case gray:
			return true
		case white:
			if g.hasBackEdge(s, marks) {
				return true
			}
		}
	}
	marks[n] = black
	return false
}

// Level returns 1 for a node without predecessors and 1 plus the highest
// predecessor level otherwise. Unknown nodes have level 0. The result is
// only meaningful on an acyclic graph.
func (g *Graph[N]) Level(n N) int {
	if !g.HasNode(n) {
		return 0
	}
	return g.level(n, make(map[N]int))
}

func (g *Graph[N]) level(n N, memo map[N]int) int {
	if l, ok := memo[n]; ok {
		return l
	}
	// Placeholder guards against unbounded recursion on cyclic input.
	memo[n] = 0
	l := 1
	for _, p := range g.pred[n] {
		if pl := g.level(p, memo) + 1; pl > l {
			l = pl
		}
	}
	memo[n] = l
	return l
}

// levels computes the level of every node in one pass.
func (g *Graph[N]) levels() map[N]int {
	memo := make(map[N]int, len(g.nodes))
	for _, n := range g.nodes {
		g.level(n, memo)
	}
	return memo
}

// Depth returns the highest node level, or 0 for an empty graph.
func (g *Graph[N]) Depth() int {
	depth := 0
	for _, l := range g.levels() {
		if l > depth {
			depth = l
		}
	}
	return depth
}

// NodesAtLevel returns the nodes at level k in node insertion order.
func (g *Graph[N]) NodesAtLevel(k int) []N {
	lv := g.levels()
	nodes := []N{}
	for _, n := range g.nodes {
		if lv[n] == k {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// Subtree returns the subgraph induced by the seeds and all of their
// descendants, as a successor mapping restricted to that node set.
// Seeds that are not in the graph are ignored.
func (g *Graph[N]) Subtree(seeds []N) map[N][]N {
	keep := make(map[N]bool)
	for _, s := range seeds {
		if g.HasNode(s) {
			g.collect(s, keep)
		}
	}

	sub := make(map[N][]N, len(keep))
	for n := range keep {
		succ := []N{}
		for _, s := range g.succ[n] {
			if keep[s] {
				succ = append(succ, s)
			}
		}
		sub[n] = succ
	}
	return sub
}

// collect marks n and every node reachable from it.
func (g *Graph[N]) collect(n N, keep map[N]bool) {
	if keep[n] {
		return
	}
	keep[n] = true
	for _, s := range g.succ[n] {
		g.collect(s, keep)
	}
}
