package alleles

import (
	"math/bits"
	"strconv"
	"strings"
)

const wordBits = 64

// Set is a fixed-size bitset over an allele Index. Edge labels and frontier
// entries in the aligner are Sets; intersection against edge labels is how
// mismatches get attributed to the right alleles.
type Set struct {
	words []uint64
	n     int
}

// NewSet returns an empty set sized for this index.
func (ix *Index) NewSet() Set {
	n := ix.Size()
	return Set{words: make([]uint64, (n+wordBits-1)/wordBits), n: n}
}

// FullSet returns the set containing every allele in the index.
func (ix *Index) FullSet() Set {
	s := ix.NewSet()
	for i := range s.words {
		s.words[i] = ^uint64(0)
	}
	s.maskTail()
	return s
}

// maskTail clears bits past the index size in the last word.
func (s *Set) maskTail() {
	if s.n%wordBits != 0 && len(s.words) > 0 {
		s.words[len(s.words)-1] &= (uint64(1) << (s.n % wordBits)) - 1
	}
}

// SetFromWords rebuilds a set from its serialized word array.
func (ix *Index) SetFromWords(words []uint64) Set {
	s := ix.NewSet()
	copy(s.words, words)
	s.maskTail()
	return s
}

// Words exposes the underlying word array for serialization.
func (s Set) Words() []uint64 {
	out := make([]uint64, len(s.words))
	copy(out, s.words)
	return out
}

// Clone returns an independent copy of the set.
func (s Set) Clone() Set {
	out := Set{words: make([]uint64, len(s.words)), n: s.n}
	copy(out.words, s.words)
	return out
}

// Add sets the bit for allele i.
func (s Set) Add(i int) {
	s.words[i/wordBits] |= uint64(1) << (i % wordBits)
}

// Contains reports whether allele i is in the set.
func (s Set) Contains(i int) bool {
	return s.words[i/wordBits]&(uint64(1)<<(i%wordBits)) != 0
}

// Union returns a new set holding s ∪ t.
func (s Set) Union(t Set) Set {
	out := s.Clone()
	out.UnionWith(t)
	return out
}

// UnionWith folds t into s in place.
func (s Set) UnionWith(t Set) {
	for i := range s.words {
		s.words[i] |= t.words[i]
	}
}

// Intersect returns a new set holding s ∩ t.
func (s Set) Intersect(t Set) Set {
	out := Set{words: make([]uint64, len(s.words)), n: s.n}
	for i := range s.words {
		out.words[i] = s.words[i] & t.words[i]
	}
	return out
}

// Complement returns a new set holding the alleles not in s.
func (s Set) Complement() Set {
	out := Set{words: make([]uint64, len(s.words)), n: s.n}
	for i := range s.words {
		out.words[i] = ^s.words[i]
	}
	out.maskTail()
	return out
}

// IsEmpty reports whether no allele is in the set.
func (s Set) IsEmpty() bool {
	for _, w := range s.words {
		if w != 0 {
			return false
		}
	}
	return true
}

// Cardinality returns the number of alleles in the set.
func (s Set) Cardinality() int {
	c := 0
	for _, w := range s.words {
		c += bits.OnesCount64(w)
	}
	return c
}

// ForEach calls fn for every allele index in the set, in ascending order.
func (s Set) ForEach(fn func(i int)) {
	for wi, w := range s.words {
		for w != 0 {
			b := bits.TrailingZeros64(w)
			fn(wi*wordBits + b)
			w &= w - 1
		}
	}
}

// String renders the set as a list of indices, for diagnostics.
func (s Set) String() string {
	var b strings.Builder
	b.WriteByte('{')
	first := true
	s.ForEach(func(i int) {
		if !first {
			b.WriteByte(',')
		}
		first = false
		b.WriteString(strconv.Itoa(i))
	})
	b.WriteByte('}')
	return b.String()
}
