// Package index provides the k-mer anchoring index over the allele graph.
package index

import (
	"fmt"
	"sort"

	"github.com/philloidin/prohlatype/internal/alleles"
	"github.com/philloidin/prohlatype/internal/graph"
)

// Index maps every k-length string spelled by a graph path to the alignment
// positions where it starts. It is read-only after construction.
type Index struct {
	K         int
	positions map[string][]int
}

// Build enumerates the k-mers of every path through the graph. K-mers that
// span node borders are followed across edges; boundary nodes spell nothing.
func Build(g *graph.Graph, k int) (*Index, error) {
	if k < 1 {
		return nil, fmt.Errorf("k-mer size must be positive, got %d", k)
	}

	ix := &Index{K: k, positions: make(map[string][]int)}
	seen := make(map[string]map[int]bool)

	record := func(kmer string, pos int) {
		at, ok := seen[kmer]
		if !ok {
			at = make(map[int]bool)
			seen[kmer] = at
		}
		if !at[pos] {
			at[pos] = true
			ix.positions[kmer] = append(ix.positions[kmer], pos)
		}
	}

	var extend func(id graph.NodeID, offset int, prefix string, startPos int)
	extend = func(id graph.NodeID, offset int, prefix string, startPos int) {
		n := g.Node(id)
		switch n.Kind {
		case graph.NodeSeq:
			need := k - len(prefix)
			if avail := len(n.Seq) - offset; avail >= need {
				record(prefix+n.Seq[offset:offset+need], startPos)
				return
			}
			grown := prefix + n.Seq[offset:]
			g.FoldSuccessors(id, func(_ alleles.Set, succ graph.NodeID) {
				extend(succ, 0, grown, startPos)
			})
		case graph.NodeBoundary:
			g.FoldSuccessors(id, func(_ alleles.Set, succ graph.NodeID) {
				extend(succ, 0, prefix, startPos)
			})
		}
	}

	for id := 0; id < g.NumNodes(); id++ {
		n := g.Node(graph.NodeID(id))
		if n.Kind != graph.NodeSeq {
			continue
		}
		for off := 0; off < len(n.Seq); off++ {
			extend(graph.NodeID(id), off, "", n.Pos+off)
		}
	}

	for kmer := range ix.positions {
		sort.Ints(ix.positions[kmer])
	}
	return ix, nil
}

// NumKmers returns the number of distinct k-mers indexed.
func (ix *Index) NumKmers() int {
	return len(ix.positions)
}

// Lookup returns the candidate anchor positions for a read, taken from its
// leading k-mer. The positions come back sorted; no hits is an empty slice,
// not an error.
func (ix *Index) Lookup(read string) ([]int, error) {
	if len(read) < ix.K {
		return nil, fmt.Errorf("read of length %d shorter than k-mer size %d", len(read), ix.K)
	}
	found := ix.positions[read[:ix.K]]
	out := make([]int, len(found))
	copy(out, found)
	return out, nil
}

// Restore rebuilds an Index from its serialized form.
func Restore(k int, positions map[string][]int) *Index {
	return &Index{K: k, positions: positions}
}

// Positions exposes the underlying table for serialization.
func (ix *Index) Positions() map[string][]int {
	return ix.positions
}
