package align

import (
	"errors"
	"fmt"
	"math"

	"github.com/philloidin/prohlatype/internal/alleles"
)

// ErrNoPositions reports that the index produced no anchors for a read.
var ErrNoPositions = errors.New("no anchor positions for read")

// AllStoppedError reports that every anchor's traversal hit the early-stop
// budget.
type AllStoppedError struct {
	N int
}

func (e *AllStoppedError) Error() string {
	return fmt.Sprintf("all %d anchor alignments stopped early", e.N)
}

// AdapterError reports that a FASTQ record could not be converted to the
// aligner's input.
type AdapterError struct {
	Op  string
	Err error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("adapter %s: %v", e.Op, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }

// InvariantError is a programming error inside a traversal; it aborts the
// whole run rather than being collected per read.
type InvariantError struct {
	Msg string
}

func (e *InvariantError) Error() string {
	return "invariant violation: " + e.Msg
}

// Policy selects which anchor's map wins when a read seeded at several
// positions.
type Policy int

const (
	// BestByMinimum picks the map whose smallest per-allele metric is
	// smallest; right for mismatch accumulators.
	BestByMinimum Policy = iota
	// BestByMaximum picks the map whose largest per-allele metric is
	// largest; right for likelihood accumulators.
	BestByMaximum
)

// Reduce collapses the per-anchor results of one read into a single map.
// Finished results are preferred over Stopped ones; if every anchor stopped,
// the reduction fails with AllStoppedError.
func Reduce[A, S any](grp Group[A, S], results []*Result[A], policy Policy) (*Result[A], error) {
	if len(results) == 0 {
		return nil, ErrNoPositions
	}

	pool := make([]*Result[A], 0, len(results))
	for _, r := range results {
		if r.Outcome == Finished {
			pool = append(pool, r)
		}
	}
	if len(pool) == 0 {
		return nil, &AllStoppedError{N: len(results)}
	}

	best := pool[0]
	bestScore := summarize(grp, best.Scores, policy)
	for _, r := range pool[1:] {
		score := summarize(grp, r.Scores, policy)
		switch policy {
		case BestByMinimum:
			if score < bestScore {
				best, bestScore = r, score
			}
		case BestByMaximum:
			if score > bestScore {
				best, bestScore = r, score
			}
		}
	}
	return best, nil
}

// summarize computes the per-allele extreme the policy compares on.
func summarize[A, S any](grp Group[A, S], m *alleles.Map[A], policy Policy) float64 {
	if policy == BestByMinimum {
		return alleles.Fold(m, math.Inf(1), func(acc float64, _ int, v A) float64 {
			return math.Min(acc, grp.Metric(v))
		})
	}
	return alleles.Fold(m, math.Inf(-1), func(acc float64, _ int, v A) float64 {
		return math.Max(acc, grp.Metric(v))
	})
}
