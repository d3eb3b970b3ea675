package graph

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/philloidin/prohlatype/internal/alleles"
	"github.com/philloidin/prohlatype/internal/msa"
)

// Options select which alternate alleles participate and how nodes are
// shared.
type Options struct {
	// NumAlt limits the number of alternate alleles; 0 means all.
	NumAlt int
	// Regex keeps only alternates whose name matches.
	Regex string
	// Specific keeps only the named alternates.
	Specific []string
	// Without drops the named alternates.
	Without []string
	// JoinSameSeq shares one node between alleles carrying the same
	// fragment at the same position. Off, every allele gets its own chain.
	JoinSameSeq bool
}

// DefaultOptions returns the options used by the CLI when no selectors are
// given.
func DefaultOptions() Options {
	return Options{JoinSameSeq: true}
}

// Builder turns a parse result into the allele graph.
type Builder struct {
	opts   Options
	logger *zap.Logger
}

// NewBuilder creates a builder with the given options.
func NewBuilder(opts Options) *Builder {
	return &Builder{opts: opts, logger: zap.NewNop()}
}

// SetLogger sets the logger used for build diagnostics.
func (b *Builder) SetLogger(l *zap.Logger) {
	b.logger = l
}

// Build assembles the graph from a parse result.
func (b *Builder) Build(res *msa.Result) (*Graph, error) {
	alts, err := b.selectAlternates(res)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(alts)+1)
	names = append(names, res.Reference)
	for _, a := range alts {
		names = append(names, a.Name)
	}
	ix, err := alleles.NewIndex(names)
	if err != nil {
		return nil, err
	}

	all := make([]msa.Allele, 0, len(alts)+1)
	all = append(all, msa.Allele{Name: res.Reference, Elements: res.RefElements})
	all = append(all, alts...)

	if err := checkBoundaries(res.RefElements, alts); err != nil {
		return nil, err
	}

	splits := b.splitPoints(res, all)

	g := &Graph{
		Alleles:   ix,
		Reference: res.Reference,
		DNA:       res.DNA,
		seeds:     make(map[int][]Seed),
	}
	g.start = g.addNode(startSentinel())
	g.end = g.addNode(endSentinel())

	nodeByKey := make(map[string]NodeID)
	intern := func(key string, n Node) NodeID {
		if id, ok := nodeByKey[key]; ok {
			return id
		}
		id := g.addNode(n)
		nodeByKey[key] = id
		return id
	}

	seedSets := make(map[int]map[NodeID]alleles.Set)
	g.minPos, g.maxPos = 0, 0
	spanSet := false

	for ai, allele := range all {
		bit := ix.NewSet()
		bit.Add(ai)

		path := []NodeID{g.start}
		var seqNodes []NodeID
		for _, e := range allele.Elements {
			switch e.Kind {
			case msa.KindBoundary:
				key := fmt.Sprintf("B%d:%d", e.Index, e.Pos)
				path = append(path, intern(key, Node{Kind: NodeBoundary, Pos: e.Pos, Idx: e.Index}))
			case msa.KindSequence:
				for _, f := range cut(e, splits) {
					key := fmt.Sprintf("%d:%s", f.Pos, f.Seq)
					if !b.opts.JoinSameSeq {
						key = fmt.Sprintf("%s#%d", key, ai)
					}
					id := intern(key, Node{Kind: NodeSeq, Pos: f.Pos, Seq: f.Seq})
					path = append(path, id)
					seqNodes = append(seqNodes, id)
				}
			}
		}
		path = append(path, g.end)

		for i := 1; i < len(path); i++ {
			if err := g.addEdge(path[i-1], path[i], bit); err != nil {
				return nil, fmt.Errorf("allele %s: %w", allele.Name, err)
			}
		}

		// Seed coverage: each position belongs to the sequence node that
		// covers it, or to the next node on the path when it falls in a gap.
		for i, id := range seqNodes {
			n := g.nodes[id]
			from := n.Pos
			if i > 0 {
				from = g.nodes[seqNodes[i-1]].EndPos()
			}
			for pos := from; pos < n.EndPos(); pos++ {
				m, ok := seedSets[pos]
				if !ok {
					m = make(map[NodeID]alleles.Set)
					seedSets[pos] = m
				}
				s, ok := m[id]
				if !ok {
					s = ix.NewSet()
					m[id] = s
				}
				s.Add(ai)
			}
		}

		if len(seqNodes) > 0 {
			lo := g.nodes[seqNodes[0]].Pos
			hi := g.nodes[seqNodes[len(seqNodes)-1]].EndPos() - 1
			if !spanSet || lo < g.minPos {
				g.minPos = lo
			}
			if !spanSet || hi > g.maxPos {
				g.maxPos = hi
			}
			spanSet = true
		}
	}

	if !spanSet {
		return nil, fmt.Errorf("no sequence data in alignment of %s", res.Reference)
	}

	for pos, m := range seedSets {
		for id, set := range m {
			g.seeds[pos] = append(g.seeds[pos], Seed{Node: id, Label: set})
		}
	}
	g.sortEdges()

	b.logger.Info("built allele graph",
		zap.String("reference", res.Reference),
		zap.Int("alleles", ix.Size()),
		zap.Int("nodes", g.NumNodes()))

	return g, nil
}

func (g *Graph) addNode(n Node) NodeID {
	g.nodes = append(g.nodes, n)
	g.out = append(g.out, nil)
	return NodeID(len(g.nodes) - 1)
}

// selectAlternates applies the allele selectors in Options.
func (b *Builder) selectAlternates(res *msa.Result) ([]msa.Allele, error) {
	alts := res.Alternates

	if b.opts.Regex != "" {
		re, err := regexp.Compile(b.opts.Regex)
		if err != nil {
			return nil, fmt.Errorf("compile allele regex: %w", err)
		}
		var kept []msa.Allele
		for _, a := range alts {
			if re.MatchString(a.Name) {
				kept = append(kept, a)
			}
		}
		alts = kept
	}

	if len(b.opts.Specific) > 0 {
		want := make(map[string]bool, len(b.opts.Specific))
		for _, n := range b.opts.Specific {
			want[n] = true
		}
		var kept []msa.Allele
		for _, a := range alts {
			if want[a.Name] {
				kept = append(kept, a)
				delete(want, a.Name)
			}
		}
		if len(want) > 0 {
			missing := make([]string, 0, len(want))
			for n := range want {
				missing = append(missing, n)
			}
			sort.Strings(missing)
			return nil, fmt.Errorf("alleles not present in alignment: %s", strings.Join(missing, ", "))
		}
		alts = kept
	}

	if len(b.opts.Without) > 0 {
		drop := make(map[string]bool, len(b.opts.Without))
		for _, n := range b.opts.Without {
			drop[n] = true
		}
		var kept []msa.Allele
		for _, a := range alts {
			if !drop[a.Name] {
				kept = append(kept, a)
			}
		}
		alts = kept
	}

	if b.opts.NumAlt > 0 && len(alts) > b.opts.NumAlt {
		alts = alts[:b.opts.NumAlt]
	}

	return alts, nil
}

// splitPoints collects the positions where sequence fragments must be cut:
// every element boundary of every allele, plus the flanks of every position
// where an alternate differs from the reference. Cutting at differences lets
// identical flanking fragments intern to shared nodes.
func (b *Builder) splitPoints(res *msa.Result, all []msa.Allele) map[int]bool {
	refChar := make(map[int]byte)
	for _, e := range res.RefElements {
		if e.Kind == msa.KindSequence {
			for i := 0; i < len(e.Seq); i++ {
				refChar[e.Pos+i] = e.Seq[i]
			}
		}
	}

	splits := make(map[int]bool)
	for _, a := range all {
		isRef := a.Name == res.Reference
		for _, e := range a.Elements {
			splits[e.Pos] = true
			splits[e.EndPos()] = true
			if e.Kind != msa.KindSequence || isRef {
				continue
			}
			for i := 0; i < len(e.Seq); i++ {
				pos := e.Pos + i
				if rc, ok := refChar[pos]; !ok || rc != e.Seq[i] {
					splits[pos] = true
					splits[pos+1] = true
				}
			}
		}
	}
	return splits
}

type frag struct {
	Pos int
	Seq string
}

// cut slices a Sequence element at the split points inside its span.
func cut(e msa.Element, splits map[int]bool) []frag {
	var out []frag
	start := 0
	for i := 1; i < len(e.Seq); i++ {
		if splits[e.Pos+i] {
			out = append(out, frag{Pos: e.Pos + start, Seq: e.Seq[start:i]})
			start = i
		}
	}
	out = append(out, frag{Pos: e.Pos + start, Seq: e.Seq[start:]})
	return out
}

// checkBoundaries verifies that every alternate's boundary markers agree with
// the reference's, up to truncation.
func checkBoundaries(ref []msa.Element, alts []msa.Allele) error {
	refB := make(map[int]int) // idx -> pos
	for _, e := range ref {
		if e.Kind == msa.KindBoundary {
			refB[e.Index] = e.Pos
		}
	}
	for _, a := range alts {
		for _, e := range a.Elements {
			if e.Kind != msa.KindBoundary {
				continue
			}
			pos, ok := refB[e.Index]
			if !ok {
				return fmt.Errorf("allele %s has boundary %d absent from reference", a.Name, e.Index)
			}
			if pos != e.Pos {
				return fmt.Errorf("allele %s boundary %d at position %d, reference has it at %d",
					a.Name, e.Index, e.Pos, pos)
			}
		}
	}
	return nil
}
