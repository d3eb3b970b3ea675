package align

import (
	"container/heap"
	"fmt"

	"github.com/philloidin/prohlatype/internal/alleles"
	"github.com/philloidin/prohlatype/internal/graph"
)

// Outcome tells whether a traversal ran to completion or hit the early-stop
// budget.
type Outcome int

const (
	// Finished means the frontier drained.
	Finished Outcome = iota
	// Stopped means the early-stop budget was exhausted.
	Stopped
)

// Result is one traversal's per-allele accumulator map.
type Result[A any] struct {
	Outcome Outcome
	Scores  *alleles.Map[A]
}

// cursorSet pairs a read cursor with the alleles arriving at a node with
// that cursor.
type cursorSet struct {
	cursor int
	set    alleles.Set
}

// frontier is the min-priority queue over nodes, ordered by the graph's node
// ordering. Each queued node carries its (cursor, allele set) entries,
// coalesced by cursor under set union.
type frontier struct {
	g       *graph.Graph
	ids     []graph.NodeID
	entries map[graph.NodeID][]cursorSet
}

func newFrontier(g *graph.Graph) *frontier {
	return &frontier{g: g, entries: make(map[graph.NodeID][]cursorSet)}
}

func (f *frontier) Len() int { return len(f.ids) }

func (f *frontier) Less(i, j int) bool {
	return graph.Compare(f.g.Node(f.ids[i]), f.g.Node(f.ids[j])) < 0
}

func (f *frontier) Swap(i, j int) { f.ids[i], f.ids[j] = f.ids[j], f.ids[i] }

func (f *frontier) Push(x any) { f.ids = append(f.ids, x.(graph.NodeID)) }

func (f *frontier) Pop() any {
	id := f.ids[len(f.ids)-1]
	f.ids = f.ids[:len(f.ids)-1]
	return id
}

// add coalesces a (cursor, set) entry onto a node, enqueueing the node if it
// is not already on the frontier. The set must be owned by the caller.
func (f *frontier) add(id graph.NodeID, cursor int, set alleles.Set) {
	ent, queued := f.entries[id]
	for i := range ent {
		if ent[i].cursor == cursor {
			ent[i].set.UnionWith(set)
			return
		}
	}
	f.entries[id] = append(ent, cursorSet{cursor: cursor, set: set})
	if !queued {
		heap.Push(f, id)
	}
}

type batchItem struct {
	id      graph.NodeID
	entries []cursorSet
}

// popBatch removes every queued node sharing the minimum position.
func (f *frontier) popBatch() []batchItem {
	var batch []batchItem
	pos := f.g.Node(f.ids[0]).Pos
	for len(f.ids) > 0 && f.g.Node(f.ids[0]).Pos == pos {
		id := heap.Pop(f).(graph.NodeID)
		batch = append(batch, batchItem{id: id, entries: f.entries[id]})
		delete(f.entries, id)
	}
	return batch
}

// AlignAt matches a read against the graph starting from one anchor
// position, returning the per-allele accumulator map. A single traversal
// advances the read cursor through successive nodes along every edge
// compatible with progressively refined allele sets; the read itself is
// never split.
func AlignAt[A, S any](g *graph.Graph, grp Group[A, S], es EarlyStop, read Read, anchor int) (*Result[A], error) {
	m := alleles.NewMap(g.Alleles, grp.Zero())
	stop := grp.InitStop()
	readLen := len(read.Seq)

	commit := func(acc A, set alleles.Set) {
		m.UpdateSet(set, func(old A) A {
			merged := grp.Merge(old, acc)
			stop = grp.UpdateStop(stop, merged)
			return merged
		})
	}

	fr := newFrontier(g)
	expand := func(id graph.NodeID, cursor int, set alleles.Set) {
		g.FoldSuccessors(id, func(label alleles.Set, succ graph.NodeID) {
			inter := label.Intersect(set)
			if inter.IsEmpty() {
				return
			}
			fr.add(succ, cursor, inter)
		})
	}

	seeds, seen, err := g.AdjacentsAt(anchor)
	if err != nil {
		return nil, fmt.Errorf("seed read %s: %w", read.Name, err)
	}

	// Alleles absent from the seed frontier cannot explain the read at all;
	// they take a full-read-length penalty up front.
	if comp := seen.Complement(); !comp.IsEmpty() {
		commit(grp.Incr(0, 0, readLen, grp.Zero()), comp)
	}

	for _, sd := range seeds {
		n := g.Node(sd.Node)
		dist := n.Pos - anchor
		switch {
		case dist <= 0:
			acc, cur, done := localAlign(grp, read, 0, n, -dist, grp.Zero())
			commit(acc, sd.Label)
			if !done {
				expand(sd.Node, cur, sd.Label)
			}
		case dist < readLen:
			// The node starts inside the read span; the skipped prefix is
			// unmatched.
			acc := grp.Incr(0, 0, dist, grp.Zero())
			acc, cur, done := localAlign(grp, read, dist, n, 0, acc)
			commit(acc, sd.Label)
			if !done {
				expand(sd.Node, cur, sd.Label)
			}
		default:
			commit(grp.Incr(0, 0, readLen, grp.Zero()), sd.Label)
		}
	}

	if grp.ShouldStop(es, readLen, stop) {
		return &Result[A]{Outcome: Stopped, Scores: m}, nil
	}

	for fr.Len() > 0 {
		for _, item := range fr.popBatch() {
			n := g.Node(item.id)
			switch n.Kind {
			case graph.NodeStart:
				return nil, &InvariantError{
					Msg: fmt.Sprintf("start sentinel on frontier while aligning read %s", read.Name),
				}

			case graph.NodeBoundary:
				for _, cs := range item.entries {
					expand(item.id, cs.cursor, cs.set)
				}

			case graph.NodeEnd:
				// The read runs past the allele; the tail is unmatched.
				for _, cs := range item.entries {
					if rem := readLen - cs.cursor; rem > 0 {
						commit(grp.Incr(cs.cursor, cs.cursor, rem, grp.Zero()), cs.set)
					}
				}

			case graph.NodeSeq:
				for _, cs := range item.entries {
					acc, cur, done := localAlign(grp, read, cs.cursor, n, 0, grp.Zero())
					commit(acc, cs.set)
					if !done {
						expand(item.id, cur, cs.set)
					}
				}
			}
		}
		if grp.ShouldStop(es, readLen, stop) {
			return &Result[A]{Outcome: Stopped, Scores: m}, nil
		}
	}

	return &Result[A]{Outcome: Finished, Scores: m}, nil
}

// localAlign walks the read suffix at cursor against the node string at
// offset until either ends, folding mismatches into acc. done reports that
// the read was exhausted.
func localAlign[A, S any](grp Group[A, S], read Read, cursor int, n graph.Node, offset int, acc A) (_ A, newCursor int, done bool) {
	i, j := cursor, offset
	for i < len(read.Seq) && j < len(n.Seq) {
		if read.Seq[i] != n.Seq[j] {
			acc = grp.Incr(n.Pos+j, i, 1, acc)
		} else {
			acc = grp.Match(i, 1, acc)
		}
		i++
		j++
	}
	return acc, i, i >= len(read.Seq)
}
