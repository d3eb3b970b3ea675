package alleles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIndex(t *testing.T, n int) *Index {
	t.Helper()
	names := make([]string, n)
	for i := range names {
		names[i] = "A*" + string(rune('0'+i/10)) + string(rune('0'+i%10))
	}
	ix, err := NewIndex(names)
	require.NoError(t, err)
	return ix
}

func TestIndex_Lookup(t *testing.T) {
	ix, err := NewIndex([]string{"A*01:01", "A*02:01", "B*07:02"})
	require.NoError(t, err)

	assert.Equal(t, 3, ix.Size())
	assert.Equal(t, "A*02:01", ix.Name(1))

	i, ok := ix.IndexOf("B*07:02")
	require.True(t, ok)
	assert.Equal(t, 2, i)

	_, ok = ix.IndexOf("C*04:01")
	assert.False(t, ok)
}

func TestIndex_RejectsDuplicates(t *testing.T) {
	_, err := NewIndex([]string{"A*01:01", "A*01:01"})
	assert.Error(t, err)
}

func TestSet_Operations(t *testing.T) {
	ix := testIndex(t, 70) // spans more than one word

	a := ix.NewSet()
	a.Add(0)
	a.Add(65)
	b := ix.NewSet()
	b.Add(65)
	b.Add(69)

	union := a.Union(b)
	assert.Equal(t, 3, union.Cardinality())
	assert.True(t, union.Contains(0))
	assert.True(t, union.Contains(65))
	assert.True(t, union.Contains(69))

	inter := a.Intersect(b)
	assert.Equal(t, 1, inter.Cardinality())
	assert.True(t, inter.Contains(65))

	assert.False(t, a.IsEmpty())
	assert.True(t, ix.NewSet().IsEmpty())
	assert.True(t, a.Intersect(ix.NewSet()).IsEmpty())
}

func TestSet_ComplementMasksTail(t *testing.T) {
	ix := testIndex(t, 70)

	full := ix.FullSet()
	assert.Equal(t, 70, full.Cardinality())
	assert.True(t, full.Complement().IsEmpty())

	s := ix.NewSet()
	s.Add(3)
	comp := s.Complement()
	assert.Equal(t, 69, comp.Cardinality())
	assert.False(t, comp.Contains(3))
	assert.True(t, comp.Contains(69))
}

func TestSet_ForEachAscending(t *testing.T) {
	ix := testIndex(t, 70)
	s := ix.NewSet()
	for _, i := range []int{69, 2, 64, 17} {
		s.Add(i)
	}

	var got []int
	s.ForEach(func(i int) { got = append(got, i) })
	assert.Equal(t, []int{2, 17, 64, 69}, got)
}

func TestSet_CloneIsIndependent(t *testing.T) {
	ix := testIndex(t, 10)
	a := ix.NewSet()
	a.Add(1)

	b := a.Clone()
	b.Add(2)

	assert.False(t, a.Contains(2))
	assert.True(t, b.Contains(1))
}

func TestSet_WordsRoundTrip(t *testing.T) {
	ix := testIndex(t, 70)
	s := ix.NewSet()
	s.Add(0)
	s.Add(69)

	restored := ix.SetFromWords(s.Words())
	assert.Equal(t, s.Cardinality(), restored.Cardinality())
	assert.True(t, restored.Contains(0))
	assert.True(t, restored.Contains(69))
}

func TestMap_UpdateSetAndFold(t *testing.T) {
	ix := testIndex(t, 5)
	m := NewMap(ix, 0)

	sel := ix.NewSet()
	sel.Add(1)
	sel.Add(3)
	m.UpdateSet(sel, func(v int) int { return v + 7 })

	assert.Equal(t, 0, m.Get(0))
	assert.Equal(t, 7, m.Get(1))
	assert.Equal(t, 7, m.Get(3))

	total := Fold(m, 0, func(acc, _, v int) int { return acc + v })
	assert.Equal(t, 14, total)
}

func TestMap_UpdateFrom(t *testing.T) {
	ix := testIndex(t, 3)
	a := NewMap(ix, 1)
	b := NewMap(ix, 0)
	b.Set(2, 5)

	a.UpdateFrom(b, func(x, y int) int { return x + y })
	assert.Equal(t, 1, a.Get(0))
	assert.Equal(t, 6, a.Get(2))
}

func TestMapValues(t *testing.T) {
	ix := testIndex(t, 3)
	m := NewMap(ix, 2)
	doubled := MapValues(m, func(v int) float64 { return float64(v * 2) })
	assert.Equal(t, 4.0, doubled.Get(1))
}
