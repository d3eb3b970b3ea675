package output

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/philloidin/prohlatype/internal/align"
)

// TabWriter writes a ranked report in tab-delimited format.
type TabWriter struct {
	w       *bufio.Writer
	model   align.Model
	columns []string
}

// NewTabWriter creates a tab-delimited report writer.
func NewTabWriter(w io.Writer, model align.Model) *TabWriter {
	columns := []string{"Rank", "Allele", "Score"}
	if model == align.ModelMisList {
		columns = append(columns, "Mismatches")
	}
	return &TabWriter{
		w:       bufio.NewWriter(w),
		model:   model,
		columns: columns,
	}
}

// WriteHeader writes the header line.
func (tw *TabWriter) WriteHeader() error {
	_, err := tw.w.WriteString(strings.Join(tw.columns, "\t") + "\n")
	return err
}

// Write writes a single ranked entry.
func (tw *TabWriter) Write(e Entry) error {
	score := formatScore(tw.model, e.Score)
	if tw.model == align.ModelMisList {
		_, err := fmt.Fprintf(tw.w, "%d\t%s\t%s\t%s\n", e.Rank, e.Allele, score, formatPosCounts(e.Mismatches))
		return err
	}
	_, err := fmt.Fprintf(tw.w, "%d\t%s\t%s\n", e.Rank, e.Allele, score)
	return err
}

// WriteAll writes the whole report and flushes.
func (tw *TabWriter) WriteAll(r *Report) error {
	if err := tw.WriteHeader(); err != nil {
		return err
	}
	for _, e := range r.Entries {
		if err := tw.Write(e); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// Flush flushes buffered output.
func (tw *TabWriter) Flush() error {
	return tw.w.Flush()
}

func formatScore(model align.Model, score float64) string {
	if model.LowerIsBetter() {
		return fmt.Sprintf("%.0f", score)
	}
	return fmt.Sprintf("%g", score)
}

func formatPosCounts(pcs []align.PosCount) string {
	if len(pcs) == 0 {
		return "-"
	}
	parts := make([]string, len(pcs))
	for i, pc := range pcs {
		parts[i] = fmt.Sprintf("%d:%d", pc.Pos, pc.Count)
	}
	return strings.Join(parts, ",")
}
