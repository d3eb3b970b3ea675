package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/philloidin/prohlatype/internal/align"
	"github.com/philloidin/prohlatype/internal/alleles"
)

func totalsFor(t *testing.T, model align.Model, scores map[string]float64) (*alleles.Index, *align.Totals) {
	t.Helper()
	names := make([]string, 0, len(scores))
	for name := range scores {
		names = append(names, name)
	}
	// Deterministic index order.
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			if names[j] < names[i] {
				names[i], names[j] = names[j], names[i]
			}
		}
	}
	ix, err := alleles.NewIndex(names)
	require.NoError(t, err)

	m := alleles.NewMap(ix, 0.0)
	for name, score := range scores {
		i, _ := ix.IndexOf(name)
		m.Set(i, score)
	}
	return ix, &align.Totals{Model: model, Scores: m}
}

func TestReport_MismatchesRankAscending(t *testing.T) {
	ix, totals := totalsFor(t, align.ModelMismatches, map[string]float64{
		"A*01:01": 12,
		"A*02:01": 3,
		"A*03:01": 7,
	})

	r := NewReport(ix, totals, Options{Bucket: true})
	require.Len(t, r.Entries, 3)
	assert.Equal(t, "A*02:01", r.Entries[0].Allele)
	assert.Equal(t, "A*01:01", r.Entries[2].Allele)
	assert.Equal(t, 1, r.Entries[0].Rank)
}

func TestReport_LikelihoodRankDescendingAndNormalized(t *testing.T) {
	ix, totals := totalsFor(t, align.ModelLikelihood, map[string]float64{
		"A*01:01": 0.2,
		"A*02:01": 0.6,
	})

	r := NewReport(ix, totals, Options{Normalize: true, Bucket: true})
	assert.Equal(t, "A*02:01", r.Entries[0].Allele)
	assert.InDelta(t, 0.75, r.Entries[0].Score, 1e-12)
	assert.InDelta(t, 0.25, r.Entries[1].Score, 1e-12)
}

func TestReport_LogLikelihoodSoftmax(t *testing.T) {
	ix, totals := totalsFor(t, align.ModelLogLikelihood, map[string]float64{
		"A*01:01": -10,
		"A*02:01": -10,
	})

	r := NewReport(ix, totals, Options{Normalize: true, Bucket: true})
	assert.InDelta(t, 0.5, r.Entries[0].Score, 1e-12)
	assert.InDelta(t, 0.5, r.Entries[1].Score, 1e-12)
}

func TestReport_Bucketing(t *testing.T) {
	ix, totals := totalsFor(t, align.ModelMismatches, map[string]float64{
		"A*01:01": 5,
		"A*02:01": 5,
		"A*03:01": 9,
	})

	r := NewReport(ix, totals, Options{Bucket: true})
	assert.Equal(t, 1, r.Entries[0].Rank)
	assert.Equal(t, 1, r.Entries[1].Rank)
	assert.Equal(t, 3, r.Entries[2].Rank)

	r = NewReport(ix, totals, Options{Bucket: false})
	assert.Equal(t, []int{1, 2, 3}, []int{r.Entries[0].Rank, r.Entries[1].Rank, r.Entries[2].Rank})
}

func TestReport_TopN(t *testing.T) {
	ix, totals := totalsFor(t, align.ModelMismatches, map[string]float64{
		"A*01:01": 1, "A*02:01": 2, "A*03:01": 3, "A*04:01": 4,
	})

	r := NewReport(ix, totals, Options{TopN: 2})
	assert.Len(t, r.Entries, 2)
	assert.Equal(t, "A*01:01", r.Entries[0].Allele)
}

func TestTabWriter(t *testing.T) {
	ix, totals := totalsFor(t, align.ModelMismatches, map[string]float64{
		"A*01:01": 2,
		"A*02:01": 0,
	})
	r := NewReport(ix, totals, Options{Bucket: true})

	var buf bytes.Buffer
	require.NoError(t, NewTabWriter(&buf, align.ModelMismatches).WriteAll(r))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Rank\tAllele\tScore", lines[0])
	assert.Equal(t, "1\tA*02:01\t0", lines[1])
	assert.Equal(t, "2\tA*01:01\t2", lines[2])
}

func TestTabWriter_MisList(t *testing.T) {
	ix, err := alleles.NewIndex([]string{"A*01:01"})
	require.NoError(t, err)

	scores := alleles.NewMap(ix, 3.0)
	lists := alleles.NewMap[[]align.PosCount](ix, nil)
	lists.Set(0, []align.PosCount{{Pos: 7, Count: 2}, {Pos: 2, Count: 1}})

	totals := &align.Totals{Model: align.ModelMisList, Scores: scores, Lists: lists}
	r := NewReport(ix, totals, Options{Bucket: true})

	var buf bytes.Buffer
	require.NoError(t, NewTabWriter(&buf, align.ModelMisList).WriteAll(r))

	out := buf.String()
	assert.Contains(t, out, "Mismatches")
	assert.Contains(t, out, "2:1,7:2", "positions must be sorted")
}
