package align

import (
	"runtime"
	"sync"

	"github.com/philloidin/prohlatype/internal/fastq"
)

// workItem holds a parsed FASTQ record ready for alignment.
type workItem struct {
	seq int
	rec *fastq.Record
}

// workResult holds the per-read reduction for a single record.
type workResult[R any] struct {
	seq int
	rec *fastq.Record
	res R
	err error
}

// parallelMap aligns work items using a pool of workers. Results arrive in
// completion order; use orderedCollect to consume them in sequence order.
// If workers is 0, runtime.NumCPU() is used.
func parallelMap[R any](items <-chan workItem, workers int, fn func(*fastq.Record) (R, error)) <-chan workResult[R] {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make(chan workResult[R], 2*workers)

	var wg sync.WaitGroup
	wg.Add(workers)

	for range workers {
		go func() {
			defer wg.Done()
			for item := range items {
				res, err := fn(item.rec)
				results <- workResult[R]{
					seq: item.seq,
					rec: item.rec,
					res: res,
					err: err,
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// orderedCollect calls fn for each result in sequence-number order. It
// buffers out-of-order results in a pending map and emits them as soon as
// the next expected sequence number is available. Blocks until the results
// channel is closed.
func orderedCollect[R any](results <-chan workResult[R], fn func(workResult[R]) error) error {
	pending := make(map[int]workResult[R])
	nextSeq := 0

	for r := range results {
		pending[r.seq] = r

		for {
			rr, ok := pending[nextSeq]
			if !ok {
				break
			}
			delete(pending, nextSeq)
			nextSeq++
			if err := fn(rr); err != nil {
				// Drain remaining results to unblock workers.
				for range results {
				}
				return err
			}
		}
	}

	return nil
}
