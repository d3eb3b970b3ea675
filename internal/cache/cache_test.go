package cache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/philloidin/prohlatype/internal/graph"
	"github.com/philloidin/prohlatype/internal/index"
	"github.com/philloidin/prohlatype/internal/msa"
)

func testGraph(t *testing.T) *graph.Graph {
	t.Helper()
	res, err := msa.NewParserFromReader(strings.NewReader("gDNA 0\n A*01 ACGTACGT\n A*02 ----T---\n")).Parse()
	require.NoError(t, err)
	g, err := graph.NewBuilder(graph.DefaultOptions()).Build(res)
	require.NoError(t, err)
	return g
}

func TestGraphKey_Deterministic(t *testing.T) {
	opts := graph.Options{NumAlt: 5, Regex: "A.*", JoinSameSeq: true}
	assert.Equal(t, GraphKey("A_gen.txt", opts), GraphKey("A_gen.txt", opts))
	assert.NotEqual(t, GraphKey("A_gen.txt", opts), GraphKey("B_gen.txt", opts))

	other := opts
	other.NumAlt = 6
	assert.NotEqual(t, GraphKey("A_gen.txt", opts), GraphKey("A_gen.txt", other))

	// Selector order must not change the key.
	a := graph.Options{Specific: []string{"A*01", "A*02"}}
	b := graph.Options{Specific: []string{"A*02", "A*01"}}
	assert.Equal(t, GraphKey("A_gen.txt", a), GraphKey("A_gen.txt", b))
}

func TestStore_GraphRoundTrip(t *testing.T) {
	g := testGraph(t)
	st := New(t.TempDir())
	fp := FileFingerprint{Size: 123, ModTime: time.Unix(1700000000, 0)}

	_, ok := st.LoadGraph("k1", fp)
	assert.False(t, ok, "empty cache must miss")

	require.NoError(t, st.WriteGraph("k1", fp, g))

	loaded, ok := st.LoadGraph("k1", fp)
	require.True(t, ok)
	assert.Equal(t, g.NumNodes(), loaded.NumNodes())
	assert.Equal(t, g.Alleles.Names(), loaded.Alleles.Names())
}

func TestStore_StaleFingerprintMisses(t *testing.T) {
	g := testGraph(t)
	st := New(t.TempDir())
	fp := FileFingerprint{Size: 123, ModTime: time.Unix(1700000000, 0)}
	require.NoError(t, st.WriteGraph("k1", fp, g))

	changed := FileFingerprint{Size: 124, ModTime: fp.ModTime}
	_, ok := st.LoadGraph("k1", changed)
	assert.False(t, ok, "source change must invalidate the entry")
}

func TestStore_IndexRoundTrip(t *testing.T) {
	g := testGraph(t)
	ix, err := index.Build(g, 4)
	require.NoError(t, err)

	st := New(t.TempDir())
	fp := FileFingerprint{Size: 5, ModTime: time.Unix(1700000000, 0)}
	require.NoError(t, st.WriteIndex("i1", fp, ix))

	loaded, ok := st.LoadIndex("i1", fp)
	require.True(t, ok)
	assert.Equal(t, ix.NumKmers(), loaded.NumKmers())

	a, err := ix.Lookup("ACGTACGT")
	require.NoError(t, err)
	b, err := loaded.Lookup("ACGTACGT")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestStore_Clear(t *testing.T) {
	g := testGraph(t)
	dir := t.TempDir()
	st := New(dir)
	fp := FileFingerprint{Size: 1, ModTime: time.Unix(1700000000, 0)}
	require.NoError(t, st.WriteGraph("k1", fp, g))

	st.Clear("k1")
	_, ok := st.LoadGraph("k1", fp)
	assert.False(t, ok)

	entries, err := os.ReadDir(filepath.Join(dir, "graphs"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFingerprint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alignment.txt")
	require.NoError(t, os.WriteFile(path, []byte("gDNA 0\n A*01 ACGT\n"), 0644))

	fp, err := Fingerprint(path)
	require.NoError(t, err)
	assert.Equal(t, int64(18), fp.Size)

	_, err = Fingerprint(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
