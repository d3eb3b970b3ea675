// Package msa parses IMGT/HLA multiple-sequence alignment files into
// per-allele lists of alignment elements in reference coordinates.
package msa

import (
	"fmt"
	"strings"
)

// ElementKind discriminates the alignment element variants.
type ElementKind int

const (
	// KindStart marks where an allele's sequence data begins.
	KindStart ElementKind = iota
	// KindEnd marks the position strictly after the last sequence data.
	KindEnd
	// KindBoundary is a segment marker (UTR/exon/intron delimiter).
	KindBoundary
	// KindSequence is a contiguous run of residues.
	KindSequence
	// KindGap is a run of alignment gaps.
	KindGap
)

// Element is one alignment element of an allele, expressed in the shared
// alignment-position coordinate system.
//
//   - Start:    Pos is where data begins.
//   - End:      data ends strictly before Pos.
//   - Boundary: Index-th segment marker at Pos. A boundary occupies no
//     alignment column; it shares Pos with the column that follows it.
//   - Sequence: residues Seq beginning at Pos.
//   - Gap:      Length gap columns beginning at Pos.
type Element struct {
	Kind   ElementKind
	Pos    int
	Index  int
	Seq    string
	Length int
}

func Start(pos int) Element            { return Element{Kind: KindStart, Pos: pos} }
func End(pos int) Element              { return Element{Kind: KindEnd, Pos: pos} }
func Boundary(idx, pos int) Element    { return Element{Kind: KindBoundary, Pos: pos, Index: idx} }
func Sequence(pos int, s string) Element { return Element{Kind: KindSequence, Pos: pos, Seq: s} }
func Gap(pos, length int) Element      { return Element{Kind: KindGap, Pos: pos, Length: length} }

// EndPos returns the first alignment position strictly after the element.
func (e Element) EndPos() int {
	switch e.Kind {
	case KindSequence:
		return e.Pos + len(e.Seq)
	case KindGap:
		return e.Pos + e.Length
	default:
		return e.Pos
	}
}

// String renders the element for diagnostics.
func (e Element) String() string {
	switch e.Kind {
	case KindStart:
		return fmt.Sprintf("Start(%d)", e.Pos)
	case KindEnd:
		return fmt.Sprintf("End(%d)", e.Pos)
	case KindBoundary:
		return fmt.Sprintf("Boundary(%d,%d)", e.Index, e.Pos)
	case KindSequence:
		return fmt.Sprintf("Sequence(%d,%q)", e.Pos, e.Seq)
	case KindGap:
		return fmt.Sprintf("Gap(%d,%d)", e.Pos, e.Length)
	default:
		return fmt.Sprintf("Element(kind=%d)", e.Kind)
	}
}

// Reserialize renders an element list back into the residue stream the parser
// would consume to reproduce it, spelling out copied residues and filling the
// span between an End and a following Start with unknown markers.
func Reserialize(elems []Element) string {
	var b strings.Builder
	pendingEnd := -1
	for _, e := range elems {
		switch e.Kind {
		case KindStart:
			if pendingEnd >= 0 {
				for p := pendingEnd; p < e.Pos; p++ {
					b.WriteByte('*')
				}
				pendingEnd = -1
			}
		case KindEnd:
			pendingEnd = e.Pos
		case KindBoundary:
			b.WriteByte('|')
		case KindSequence:
			b.WriteString(e.Seq)
		case KindGap:
			for i := 0; i < e.Length; i++ {
				b.WriteByte('.')
			}
		}
	}
	return b.String()
}

// SequenceString applies an element list and returns the allele's residues
// with gaps removed. Unknown spans between segments are omitted.
func SequenceString(elems []Element) string {
	var b strings.Builder
	for _, e := range elems {
		if e.Kind == KindSequence {
			b.WriteString(e.Seq)
		}
	}
	return b.String()
}
