package output

import (
	"fmt"
	"os"
	"strings"

	"github.com/kshedden/gonpy"
)

// WriteNpy exports the ranked scores as a 1-D float64 NumPy array, with the
// allele names in a sidecar text file next to it.
func WriteNpy(path string, r *Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create npy file: %w", err)
	}

	npw, err := gonpy.NewWriter(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("create npy writer: %w", err)
	}

	scores := make([]float64, len(r.Entries))
	names := make([]string, len(r.Entries))
	for i, e := range r.Entries {
		scores[i] = e.Score
		names[i] = e.Allele
	}

	npw.Shape = []int{len(scores)}
	if err := npw.WriteFloat64(scores); err != nil {
		f.Close()
		return fmt.Errorf("write npy scores: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close npy file: %w", err)
	}

	namesPath := path + ".alleles"
	if err := os.WriteFile(namesPath, []byte(strings.Join(names, "\n")+"\n"), 0644); err != nil {
		return fmt.Errorf("write allele names: %w", err)
	}
	return nil
}
