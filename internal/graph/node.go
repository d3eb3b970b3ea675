// Package graph builds and exposes the allele string graph: a DAG over
// sequence fragments in alignment coordinates whose edges carry
// allele-membership sets.
package graph

import (
	"fmt"
	"math"
	"strings"
)

// NodeKind discriminates graph node variants.
type NodeKind int

const (
	// NodeStart is the start sentinel.
	NodeStart NodeKind = iota
	// NodeBoundary is a segment marker at a position.
	NodeBoundary
	// NodeSeq holds a sequence fragment and its starting position.
	NodeSeq
	// NodeEnd is the end sentinel.
	NodeEnd
)

// NodeID identifies a node within one Graph.
type NodeID int

// Node is one vertex of the allele graph. Sentinels sit at the extremes of
// the position axis so the traversal order stays a simple position sort.
type Node struct {
	Kind NodeKind
	Pos  int
	Idx  int    // boundary index
	Seq  string // sequence fragment
}

func startSentinel() Node { return Node{Kind: NodeStart, Pos: math.MinInt} }
func endSentinel() Node   { return Node{Kind: NodeEnd, Pos: math.MaxInt} }

// EndPos returns the first position strictly after the node's span.
func (n Node) EndPos() int {
	if n.Kind == NodeSeq {
		return n.Pos + len(n.Seq)
	}
	return n.Pos
}

// Compare orders nodes by position, then kind, then contents. The order is
// total so the aligner's frontier has a deterministic batch order.
func Compare(a, b Node) int {
	if a.Pos != b.Pos {
		if a.Pos < b.Pos {
			return -1
		}
		return 1
	}
	if a.Kind != b.Kind {
		if a.Kind < b.Kind {
			return -1
		}
		return 1
	}
	if a.Idx != b.Idx {
		if a.Idx < b.Idx {
			return -1
		}
		return 1
	}
	return strings.Compare(a.Seq, b.Seq)
}

// String renders the node for diagnostics.
func (n Node) String() string {
	switch n.Kind {
	case NodeStart:
		return "S"
	case NodeEnd:
		return "E"
	case NodeBoundary:
		return fmt.Sprintf("B(%d,%d)", n.Idx, n.Pos)
	case NodeSeq:
		return fmt.Sprintf("N(%d,%q)", n.Pos, n.Seq)
	default:
		return fmt.Sprintf("Node(kind=%d)", n.Kind)
	}
}
