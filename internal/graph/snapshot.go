package graph

import (
	"fmt"

	"github.com/philloidin/prohlatype/internal/alleles"
)

// Snapshot is the gob-friendly serialized form of a Graph.
type Snapshot struct {
	Reference   string
	DNA         bool
	AlleleNames []string
	Nodes       []Node
	Edges       []SnapshotEdge
	Start       int
	End         int
	MinPos      int
	MaxPos      int
	Seeds       []SnapshotSeed
}

// SnapshotEdge is one labeled edge in serialized form.
type SnapshotEdge struct {
	From  int
	To    int
	Words []uint64
}

// SnapshotSeed is one frontier entry in serialized form.
type SnapshotSeed struct {
	Pos   int
	Node  int
	Words []uint64
}

// Snapshot captures the graph for serialization.
func (g *Graph) Snapshot() *Snapshot {
	s := &Snapshot{
		Reference:   g.Reference,
		DNA:         g.DNA,
		AlleleNames: g.Alleles.Names(),
		Nodes:       g.nodes,
		Start:       int(g.start),
		End:         int(g.end),
		MinPos:      g.minPos,
		MaxPos:      g.maxPos,
	}
	for from, edges := range g.out {
		for _, e := range edges {
			s.Edges = append(s.Edges, SnapshotEdge{From: from, To: int(e.To), Words: e.Label.Words()})
		}
	}
	for pos, seeds := range g.seeds {
		for _, sd := range seeds {
			s.Seeds = append(s.Seeds, SnapshotSeed{Pos: pos, Node: int(sd.Node), Words: sd.Label.Words()})
		}
	}
	return s
}

// FromSnapshot rebuilds a Graph from its serialized form.
func FromSnapshot(s *Snapshot) (*Graph, error) {
	ix, err := alleles.NewIndex(s.AlleleNames)
	if err != nil {
		return nil, fmt.Errorf("restore allele index: %w", err)
	}

	g := &Graph{
		Alleles:   ix,
		Reference: s.Reference,
		DNA:       s.DNA,
		nodes:     s.Nodes,
		out:       make([][]Edge, len(s.Nodes)),
		start:     NodeID(s.Start),
		end:       NodeID(s.End),
		seeds:     make(map[int][]Seed),
		minPos:    s.MinPos,
		maxPos:    s.MaxPos,
	}
	for _, e := range s.Edges {
		if e.From < 0 || e.From >= len(g.nodes) || e.To < 0 || e.To >= len(g.nodes) {
			return nil, fmt.Errorf("restore edge %d->%d: node out of range", e.From, e.To)
		}
		g.out[e.From] = append(g.out[e.From], Edge{Label: ix.SetFromWords(e.Words), To: NodeID(e.To)})
	}
	for _, sd := range s.Seeds {
		g.seeds[sd.Pos] = append(g.seeds[sd.Pos], Seed{Node: NodeID(sd.Node), Label: ix.SetFromWords(sd.Words)})
	}
	g.sortEdges()
	return g, nil
}
