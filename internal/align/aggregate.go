package align

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/philloidin/prohlatype/internal/alleles"
	"github.com/philloidin/prohlatype/internal/fastq"
	"github.com/philloidin/prohlatype/internal/graph"
	"github.com/philloidin/prohlatype/internal/index"
)

const alphabetSize = 4

// DefaultErrRate is the uniform per-base error rate used by the likelihood
// models when no rate is given.
const DefaultErrRate = 0.025

// Model selects the statistic aggregated across reads.
type Model int

const (
	// ModelMismatches sums mismatch counts per allele.
	ModelMismatches Model = iota
	// ModelMisList concatenates per-position mismatch lists per allele.
	ModelMisList
	// ModelLikelihood multiplies per-read likelihoods under a uniform
	// error rate.
	ModelLikelihood
	// ModelLogLikelihood sums per-read log-likelihoods under a uniform
	// error rate.
	ModelLogLikelihood
	// ModelPhred sums per-read log-likelihoods weighted by base qualities.
	ModelPhred
)

func (m Model) String() string {
	switch m {
	case ModelMismatches:
		return "mismatches"
	case ModelMisList:
		return "mis-list"
	case ModelLikelihood:
		return "likelihood"
	case ModelLogLikelihood:
		return "log-likelihood"
	case ModelPhred:
		return "phred-llhd"
	default:
		return fmt.Sprintf("model(%d)", int(m))
	}
}

// ParseModel maps a statistic name to its Model.
func ParseModel(s string) (Model, error) {
	switch strings.ToLower(s) {
	case "mismatches":
		return ModelMismatches, nil
	case "mis-list":
		return ModelMisList, nil
	case "likelihood":
		return ModelLikelihood, nil
	case "log-likelihood":
		return ModelLogLikelihood, nil
	case "phred-llhd":
		return ModelPhred, nil
	default:
		return 0, fmt.Errorf("unknown statistic %q", s)
	}
}

// LowerIsBetter reports whether smaller aggregated scores rank first.
func (m Model) LowerIsBetter() bool {
	return m == ModelMismatches || m == ModelMisList
}

// LogLikelihood is the uniform-error-rate read score: (len-m)·log(1-er) +
// m·log(er/(alphabet-1)).
func LogLikelihood(er float64, length, mismatches int) float64 {
	return float64(length-mismatches)*math.Log(1-er) +
		float64(mismatches)*math.Log(er/float64(alphabetSize-1))
}

// ReadError pairs a failed read with its error. The aggregator collects
// these and keeps going; only an invariant violation aborts a run.
type ReadError struct {
	Read string
	Err  error
}

// Config parameterizes a typing run.
type Config struct {
	Model     Model
	EarlyStop EarlyStop
	ErrRate   float64
	Workers   int
}

// Totals is the aggregated outcome over a read stream.
type Totals struct {
	Model  Model
	Reads  int
	Scores *alleles.Map[float64]
	// Lists is populated only by ModelMisList.
	Lists  *alleles.Map[[]PosCount]
	Errors []ReadError
}

// RecordSource yields FASTQ records; nil, nil ends the stream.
type RecordSource interface {
	Next() (*fastq.Record, error)
}

// Typer runs the whole per-read pipeline: index lookup, one traversal per
// anchor, per-read reduction, and the cross-read fold.
type Typer struct {
	graph  *graph.Graph
	index  *index.Index
	cfg    Config
	logger *zap.Logger
}

// NewTyper creates a typer over a prebuilt graph and index.
func NewTyper(g *graph.Graph, ix *index.Index, cfg Config) *Typer {
	if cfg.ErrRate <= 0 || cfg.ErrRate >= 1 {
		cfg.ErrRate = DefaultErrRate
	}
	return &Typer{graph: g, index: ix, cfg: cfg, logger: zap.NewNop()}
}

// SetLogger sets the logger for per-read diagnostics.
func (t *Typer) SetLogger(l *zap.Logger) {
	t.logger = l
}

// Run folds the read stream into per-allele totals. Read-stream errors are
// fatal; per-read alignment errors are collected into Totals.Errors, except
// invariant violations, which abort the run.
func (t *Typer) Run(src RecordSource) (*Totals, error) {
	switch t.cfg.Model {
	case ModelMisList:
		return t.runLists(src)
	case ModelPhred:
		return t.runPhred(src)
	default:
		return t.runCounts(src)
	}
}

// feed pumps records into a work channel, numbering them.
func feed(src RecordSource, items chan<- workItem, readErr *error) {
	defer close(items)
	seq := 0
	for {
		rec, err := src.Next()
		if err != nil {
			*readErr = fmt.Errorf("read fastq record: %w", err)
			return
		}
		if rec == nil {
			return
		}
		items <- workItem{seq: seq, rec: rec}
		seq++
	}
}

// perReadCounts aligns one read under the mismatch-count group.
func (t *Typer) perReadCounts(rec *fastq.Record) (*Result[int], error) {
	return alignRead[int, int](t, MismatchCount{}, Read{Name: rec.Name, Seq: rec.Seq}, BestByMinimum)
}

func (t *Typer) runCounts(src RecordSource) (*Totals, error) {
	totals := &Totals{Model: t.cfg.Model, Scores: alleles.NewMap(t.graph.Alleles, initScore(t.cfg.Model))}

	items := make(chan workItem, 2*max(t.cfg.Workers, 1))
	var readErr error
	go feed(src, items, &readErr)

	results := parallelMap(items, t.cfg.Workers, t.perReadCounts)
	err := orderedCollect(results, func(r workResult[*Result[int]]) error {
		if r.err != nil {
			return t.collectReadError(totals, r.rec, r.err)
		}
		totals.Reads++
		readLen := len(r.rec.Seq)
		for i := 0; i < totals.Scores.Len(); i++ {
			m := r.res.Scores.Get(i)
			switch t.cfg.Model {
			case ModelLikelihood:
				totals.Scores.Set(i, totals.Scores.Get(i)*math.Exp(LogLikelihood(t.cfg.ErrRate, readLen, m)))
			case ModelLogLikelihood:
				totals.Scores.Set(i, totals.Scores.Get(i)+LogLikelihood(t.cfg.ErrRate, readLen, m))
			default:
				totals.Scores.Set(i, totals.Scores.Get(i)+float64(m))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if readErr != nil {
		return nil, readErr
	}
	return totals, nil
}

func (t *Typer) runLists(src RecordSource) (*Totals, error) {
	totals := &Totals{
		Model:  ModelMisList,
		Scores: alleles.NewMap(t.graph.Alleles, 0.0),
		Lists:  alleles.NewMap[[]PosCount](t.graph.Alleles, nil),
	}

	items := make(chan workItem, 2*max(t.cfg.Workers, 1))
	var readErr error
	go feed(src, items, &readErr)

	grp := MismatchList{}
	results := parallelMap(items, t.cfg.Workers, func(rec *fastq.Record) (*Result[[]PosCount], error) {
		return alignRead[[]PosCount, int](t, grp, Read{Name: rec.Name, Seq: rec.Seq}, BestByMinimum)
	})
	err := orderedCollect(results, func(r workResult[*Result[[]PosCount]]) error {
		if r.err != nil {
			return t.collectReadError(totals, r.rec, r.err)
		}
		totals.Reads++
		for i := 0; i < totals.Lists.Len(); i++ {
			pcs := r.res.Scores.Get(i)
			totals.Lists.Set(i, grp.Merge(totals.Lists.Get(i), pcs))
			totals.Scores.Set(i, totals.Scores.Get(i)+grp.Metric(pcs))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if readErr != nil {
		return nil, readErr
	}
	return totals, nil
}

func (t *Typer) runPhred(src RecordSource) (*Totals, error) {
	totals := &Totals{Model: ModelPhred, Scores: alleles.NewMap(t.graph.Alleles, 0.0)}

	items := make(chan workItem, 2*max(t.cfg.Workers, 1))
	var readErr error
	go feed(src, items, &readErr)

	results := parallelMap(items, t.cfg.Workers, func(rec *fastq.Record) (*Result[PhredAcc], error) {
		errs, err := fastq.DecodeQual(rec.Qual)
		if err != nil {
			return nil, &AdapterError{Op: "ToThread", Err: err}
		}
		grp := NewPhredLikelihood(errs, t.cfg.ErrRate)
		return alignRead[PhredAcc, float64](t, grp, Read{Name: rec.Name, Seq: rec.Seq, Errs: errs}, BestByMaximum)
	})
	err := orderedCollect(results, func(r workResult[*Result[PhredAcc]]) error {
		if r.err != nil {
			return t.collectReadError(totals, r.rec, r.err)
		}
		totals.Reads++
		for i := 0; i < totals.Scores.Len(); i++ {
			totals.Scores.Set(i, totals.Scores.Get(i)+r.res.Scores.Get(i).LogL)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if readErr != nil {
		return nil, readErr
	}
	return totals, nil
}

// alignRead runs one traversal per anchor and reduces the results.
func alignRead[A, S any](t *Typer, grp Group[A, S], read Read, policy Policy) (*Result[A], error) {
	positions, err := t.index.Lookup(read.Seq)
	if err != nil {
		return nil, &AdapterError{Op: "Lookup", Err: err}
	}
	if len(positions) == 0 {
		return nil, ErrNoPositions
	}

	results := make([]*Result[A], 0, len(positions))
	for _, pos := range positions {
		r, err := AlignAt(t.graph, grp, t.cfg.EarlyStop, read, pos)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return Reduce(grp, results, policy)
}

// collectReadError records a per-read failure and decides whether it is
// fatal. Invariant violations abort the run; everything else is collected.
func (t *Typer) collectReadError(totals *Totals, rec *fastq.Record, err error) error {
	if isInvariant(err) {
		return err
	}
	t.logger.Warn("read failed to align",
		zap.String("read", rec.Name),
		zap.Error(err))
	totals.Errors = append(totals.Errors, ReadError{Read: rec.Name, Err: err})
	return nil
}

func isInvariant(err error) bool {
	var iv *InvariantError
	return errors.As(err, &iv)
}

func initScore(m Model) float64 {
	if m == ModelLikelihood {
		return 1
	}
	return 0
}
