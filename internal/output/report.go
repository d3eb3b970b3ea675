// Package output turns aggregated typing totals into ranked reports and
// renders them.
package output

import (
	"math"
	"sort"

	"github.com/philloidin/prohlatype/internal/align"
	"github.com/philloidin/prohlatype/internal/alleles"
)

// Entry is one ranked allele.
type Entry struct {
	Rank   int
	Allele string
	Score  float64
	// Mismatches carries per-position counts for the mis-list model.
	Mismatches []align.PosCount
}

// Report is a ranked view of a typing run's totals.
type Report struct {
	Model   align.Model
	Entries []Entry
	Errors  []align.ReadError
}

// Options control ranking presentation.
type Options struct {
	// Normalize converts likelihood-family scores into probabilities
	// summing to one. Ignored for the mismatch models.
	Normalize bool
	// Bucket gives alleles with equal scores equal ranks.
	Bucket bool
	// TopN keeps only the best N entries; 0 keeps everything.
	TopN int
}

// NewReport ranks the aggregated totals.
func NewReport(ix *alleles.Index, totals *align.Totals, opts Options) *Report {
	entries := make([]Entry, ix.Size())
	for i := 0; i < ix.Size(); i++ {
		entries[i] = Entry{Allele: ix.Name(i), Score: totals.Scores.Get(i)}
		if totals.Lists != nil {
			pcs := append([]align.PosCount(nil), totals.Lists.Get(i)...)
			align.SortPosCounts(pcs)
			entries[i].Mismatches = pcs
		}
	}

	lower := totals.Model.LowerIsBetter()
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			if lower {
				return entries[i].Score < entries[j].Score
			}
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Allele < entries[j].Allele
	})

	if opts.Normalize && !lower {
		normalize(entries, totals.Model)
	}

	for i := range entries {
		if opts.Bucket && i > 0 && entries[i].Score == entries[i-1].Score {
			entries[i].Rank = entries[i-1].Rank
		} else {
			entries[i].Rank = i + 1
		}
	}

	if opts.TopN > 0 && len(entries) > opts.TopN {
		entries = entries[:opts.TopN]
	}

	return &Report{Model: totals.Model, Entries: entries, Errors: totals.Errors}
}

// normalize rescales likelihood-family scores to probabilities.
func normalize(entries []Entry, model align.Model) {
	if len(entries) == 0 {
		return
	}
	switch model {
	case align.ModelLikelihood:
		sum := 0.0
		for _, e := range entries {
			sum += e.Score
		}
		if sum > 0 {
			for i := range entries {
				entries[i].Score /= sum
			}
		}
	case align.ModelLogLikelihood, align.ModelPhred:
		// Softmax against the best score for numerical stability.
		best := entries[0].Score
		sum := 0.0
		for _, e := range entries {
			sum += math.Exp(e.Score - best)
		}
		for i := range entries {
			entries[i].Score = math.Exp(entries[i].Score-best) / sum
		}
	}
}
