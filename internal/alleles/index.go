// Package alleles provides the dense allele enumeration plus the bitset and
// map containers keyed by it. Every per-allele quantity in the typing pipeline
// lives in one of these containers.
package alleles

import "fmt"

// Index is a fixed enumeration mapping allele names to dense indices.
// It is immutable after construction; sets and maps built from it share
// its size.
type Index struct {
	names  []string
	byName map[string]int
}

// NewIndex creates an index over the given allele names, in order.
// Duplicate names are an error.
func NewIndex(names []string) (*Index, error) {
	ix := &Index{
		names:  make([]string, len(names)),
		byName: make(map[string]int, len(names)),
	}
	copy(ix.names, names)
	for i, name := range names {
		if _, dup := ix.byName[name]; dup {
			return nil, fmt.Errorf("duplicate allele name %q", name)
		}
		ix.byName[name] = i
	}
	return ix, nil
}

// Size returns the number of alleles in the enumeration.
func (ix *Index) Size() int {
	return len(ix.names)
}

// Name returns the allele name at index i.
func (ix *Index) Name(i int) string {
	return ix.names[i]
}

// Names returns all allele names in index order.
func (ix *Index) Names() []string {
	out := make([]string, len(ix.names))
	copy(out, ix.names)
	return out
}

// IndexOf returns the dense index for an allele name.
func (ix *Index) IndexOf(name string) (int, bool) {
	i, ok := ix.byName[name]
	return i, ok
}
