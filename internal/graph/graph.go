package graph

import "slices"

// Edge is a directed edge From -> To.
type Edge[N comparable] struct {
	From N
	To   N
}

// Adjacency is a single entry of the dict-of-lists form: a node and its
// ordered direct successors.
type Adjacency[N comparable] struct {
	Node       N   `yaml:"node" json:"node"`
	Successors []N `yaml:"successors" json:"successors"`
}

// Graph is a mutable directed graph over comparable node identities.
// succ and pred are always transposes of each other and every node has an
// entry in both, possibly empty.
type Graph[N comparable] struct {
	nodes []N
	succ  map[N][]N
	pred  map[N][]N
}

// New creates an empty graph.
func New[N comparable]() *Graph[N] {
	return &Graph[N]{
		succ: make(map[N][]N),
		pred: make(map[N][]N),
	}
}

// AddNode adds n to the graph. Adding an existing node is a no-op.
func (g *Graph[N]) AddNode(n N) {
	if _, ok := g.succ[n]; ok {
		return
	}
	g.nodes = append(g.nodes, n)
	g.succ[n] = []N{}
	g.pred[n] = []N{}
}

// AddNodesFrom adds every node in order.
func (g *Graph[N]) AddNodesFrom(nodes []N) {
	for _, n := range nodes {
		g.AddNode(n)
	}
}

// AddEdge adds the edge u -> v, adding missing nodes first. Adding an
// existing edge is a no-op. No cycle check is performed.
func (g *Graph[N]) AddEdge(u, v N) {
	g.AddNode(u)
	g.AddNode(v)
	if slices.Contains(g.succ[u], v) {
		return
	}
	g.succ[u] = append(g.succ[u], v)
	g.pred[v] = append(g.pred[v], u)
}

// AddEdgesFrom adds every edge in order. Duplicates collapse.
func (g *Graph[N]) AddEdgesFrom(edges []Edge[N]) {
	for _, e := range edges {
		g.AddEdge(e.From, e.To)
	}
}

// RemoveNode removes n together with every edge touching it.
// Returns *NotFoundError if n is not in the graph.
func (g *Graph[N]) RemoveNode(n N) error {
	if _, ok := g.succ[n]; !ok {
		return &NotFoundError{Node: n}
	}

	for _, p := range g.pred[n] {
		g.succ[p] = without(g.succ[p], n)
	}
	for _, s := range g.succ[n] {
		g.pred[s] = without(g.pred[s], n)
	}
	delete(g.succ, n)
	delete(g.pred, n)

	if i := slices.Index(g.nodes, n); i >= 0 {
		g.nodes = slices.Delete(g.nodes, i, i+1)
	}
	return nil
}

// RemoveNodesFrom removes every node in the batch. Unlike RemoveNode,
// nodes missing from the graph are skipped silently.
func (g *Graph[N]) RemoveNodesFrom(nodes []N) {
	for _, n := range nodes {
		_ = g.RemoveNode(n)
	}
}

// RemoveEdge removes the edge u -> v. Removing a missing edge is a no-op.
func (g *Graph[N]) RemoveEdge(u, v N) {
	if _, ok := g.succ[u]; !ok {
		return
	}
	if _, ok := g.pred[v]; !ok {
		return
	}
	g.succ[u] = without(g.succ[u], v)
	g.pred[v] = without(g.pred[v], u)
}

// RemoveEdgesFrom removes every edge in the batch.
func (g *Graph[N]) RemoveEdgesFrom(edges []Edge[N]) {
	for _, e := range edges {
		g.RemoveEdge(e.From, e.To)
	}
}

// Nodes returns the nodes in insertion order.
func (g *Graph[N]) Nodes() []N {
	return slices.Clone(g.nodes)
}

// Len returns the number of nodes.
func (g *Graph[N]) Len() int {
	return len(g.nodes)
}

// HasNode reports whether n is in the graph.
func (g *Graph[N]) HasNode(n N) bool {
	_, ok := g.succ[n]
	return ok
}

// HasEdge reports whether the edge u -> v exists.
func (g *Graph[N]) HasEdge(u, v N) bool {
	return slices.Contains(g.succ[u], v)
}

// Successors returns the direct successors of n in insertion order.
func (g *Graph[N]) Successors(n N) []N {
	return slices.Clone(g.succ[n])
}

// Predecessors returns the direct predecessors of n in insertion order.
func (g *Graph[N]) Predecessors(n N) []N {
	return slices.Clone(g.pred[n])
}

// Edges returns every edge, grouped by source node in node order.
func (g *Graph[N]) Edges() []Edge[N] {
	var edges []Edge[N]
	for _, u := range g.nodes {
		for _, v := range g.succ[u] {
			edges = append(edges, Edge[N]{From: u, To: v})
		}
	}
	return edges
}

// Root returns the nodes without predecessors, in node order.
func (g *Graph[N]) Root() []N {
	roots := []N{}
	for _, n := range g.nodes {
		if len(g.pred[n]) == 0 {
			roots = append(roots, n)
		}
	}
	return roots
}

// Copy returns a graph sharing node identities but no containers with g.
func (g *Graph[N]) Copy() *Graph[N] {
	c := &Graph[N]{
		nodes: slices.Clone(g.nodes),
		succ:  make(map[N][]N, len(g.succ)),
		pred:  make(map[N][]N, len(g.pred)),
	}
	for n, s := range g.succ {
		c.succ[n] = slices.Clone(s)
	}
	for n, p := range g.pred {
		c.pred[n] = slices.Clone(p)
	}
	return c
}

// SuccessorMap returns a detached node -> successors mapping.
func (g *Graph[N]) SuccessorMap() map[N][]N {
	m := make(map[N][]N, len(g.succ))
	for n, s := range g.succ {
		m[n] = slices.Clone(s)
	}
	return m
}

// PredecessorMap returns a detached node -> predecessors mapping.
func (g *Graph[N]) PredecessorMap() map[N][]N {
	m := make(map[N][]N, len(g.pred))
	for n, p := range g.pred {
		m[n] = slices.Clone(p)
	}
	return m
}

// ToDictOfLists serializes the graph as node -> successor list entries in
// node insertion order.
func (g *Graph[N]) ToDictOfLists() []Adjacency[N] {
	adj := make([]Adjacency[N], 0, len(g.nodes))
	for _, n := range g.nodes {
		adj = append(adj, Adjacency[N]{Node: n, Successors: slices.Clone(g.succ[n])})
	}
	return adj
}

// FromDictOfLists rebuilds a graph from its dict-of-lists form. Every entry
// node is added first, in order, then the edges; pred is the exact
// transpose of the given successor lists.
func FromDictOfLists[N comparable](adj []Adjacency[N]) *Graph[N] {
	g := New[N]()
	for _, a := range adj {
		g.AddNode(a.Node)
	}
	for _, a := range adj {
		for _, s := range a.Successors {
			g.AddEdge(a.Node, s)
		}
	}
	return g
}

// without returns s with the first occurrence of n removed.
func without[N comparable](s []N, n N) []N {
	if i := slices.Index(s, n); i >= 0 {
		return slices.Delete(s, i, i+1)
	}
	return s
}
