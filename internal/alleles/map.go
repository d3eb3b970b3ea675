package alleles

// Map is a dense per-allele value array. One Map is owned by a single
// alignment call; aggregation across reads merges Maps under an associative
// combiner.
type Map[V any] struct {
	vals []V
}

// NewMap creates a map with every allele set to zero.
func NewMap[V any](ix *Index, zero V) *Map[V] {
	vals := make([]V, ix.Size())
	for i := range vals {
		vals[i] = zero
	}
	return &Map[V]{vals: vals}
}

// Len returns the number of alleles covered.
func (m *Map[V]) Len() int {
	return len(m.vals)
}

// Get returns the value for allele i.
func (m *Map[V]) Get(i int) V {
	return m.vals[i]
}

// Set stores the value for allele i.
func (m *Map[V]) Set(i int, v V) {
	m.vals[i] = v
}

// UpdateSet applies f to the value of every allele selected by s.
func (m *Map[V]) UpdateSet(s Set, f func(V) V) {
	s.ForEach(func(i int) {
		m.vals[i] = f(m.vals[i])
	})
}

// UpdateFrom merges other into m under combine, position by position.
func (m *Map[V]) UpdateFrom(other *Map[V], combine func(V, V) V) {
	for i := range m.vals {
		m.vals[i] = combine(m.vals[i], other.vals[i])
	}
}

// Fold reduces the map left to right.
func Fold[V, A any](m *Map[V], init A, f func(A, int, V) A) A {
	acc := init
	for i, v := range m.vals {
		acc = f(acc, i, v)
	}
	return acc
}

// MapValues returns a new map with f applied to every value.
func MapValues[V, W any](m *Map[V], f func(V) W) *Map[W] {
	out := &Map[W]{vals: make([]W, len(m.vals))}
	for i, v := range m.vals {
		out.vals[i] = f(v)
	}
	return out
}
