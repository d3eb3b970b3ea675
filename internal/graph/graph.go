package graph

import (
	"fmt"
	"sort"

	"github.com/philloidin/prohlatype/internal/alleles"
)

// Edge is one labeled outgoing edge. Traversing it is valid exactly for the
// alleles in Label.
type Edge struct {
	Label alleles.Set
	To    NodeID
}

// Seed is one entry of the frontier returned by AdjacentsAt: a sequence node
// together with the alleles that enter it at the looked-up position.
type Seed struct {
	Node  NodeID
	Label alleles.Set
}

// Graph is the allele string graph. It is read-only after construction.
type Graph struct {
	Alleles   *alleles.Index
	Reference string
	DNA       bool

	nodes []Node
	out   [][]Edge

	start NodeID
	end   NodeID

	// seeds maps an alignment position to the frontier of sequence nodes
	// reachable there, with the alleles arriving at each.
	seeds  map[int][]Seed
	minPos int
	maxPos int
}

// Start returns the start sentinel's ID.
func (g *Graph) Start() NodeID { return g.start }

// End returns the end sentinel's ID.
func (g *Graph) End() NodeID { return g.end }

// Node returns the node for an ID.
func (g *Graph) Node(id NodeID) Node { return g.nodes[id] }

// NumNodes returns the number of nodes, sentinels included.
func (g *Graph) NumNodes() int { return len(g.nodes) }

// Span returns the inclusive range of alignment positions covered.
func (g *Graph) Span() (min, max int) { return g.minPos, g.maxPos }

// FoldSuccessors calls fn for every outgoing (edge label, successor) pair.
func (g *Graph) FoldSuccessors(id NodeID, fn func(label alleles.Set, succ NodeID)) {
	for _, e := range g.out[id] {
		fn(e.Label, e.To)
	}
}

// AdjacentsAt returns the seed frontier for an alignment position together
// with the union of allele bits present in it.
func (g *Graph) AdjacentsAt(pos int) ([]Seed, alleles.Set, error) {
	if pos < g.minPos || pos > g.maxPos {
		return nil, alleles.Set{}, fmt.Errorf("position %d outside graph span [%d,%d]", pos, g.minPos, g.maxPos)
	}
	entries := g.seeds[pos]
	seen := g.Alleles.NewSet()
	for _, s := range entries {
		seen.UnionWith(s.Label)
	}
	return entries, seen, nil
}

// addEdge unions the allele set onto the (from, to) edge, creating it if
// needed. Successor positions never decrease; the graph is a DAG on the
// position axis.
func (g *Graph) addEdge(from, to NodeID, set alleles.Set) error {
	if Compare(g.nodes[from], g.nodes[to]) > 0 {
		return fmt.Errorf("edge %s -> %s goes backward on the position axis",
			g.nodes[from], g.nodes[to])
	}
	for i := range g.out[from] {
		if g.out[from][i].To == to {
			g.out[from][i].Label.UnionWith(set)
			return nil
		}
	}
	g.out[from] = append(g.out[from], Edge{Label: set.Clone(), To: to})
	return nil
}

// sortEdges puts every adjacency list in node order for deterministic folds.
func (g *Graph) sortEdges() {
	for id := range g.out {
		es := g.out[id]
		sort.Slice(es, func(i, j int) bool {
			return Compare(g.nodes[es[i].To], g.nodes[es[j].To]) < 0
		})
	}
	for pos := range g.seeds {
		ss := g.seeds[pos]
		sort.Slice(ss, func(i, j int) bool {
			return Compare(g.nodes[ss[i].Node], g.nodes[ss[j].Node]) < 0
		})
	}
}
