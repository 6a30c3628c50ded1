package cleavage

import (
	"context"
	"runtime"
	"sync"

	"github.com/biogo/hts/sam"

	"github.com/inodb/vibe-polya/internal/polya"
)

// WorkItem holds a contig alignment ready for detection.
type WorkItem struct {
	Seq    int
	Record *sam.Record
}

// WorkResult holds the detection output for a single contig alignment.
type WorkResult struct {
	Seq        int
	Record     *sam.Record
	Context    *AlignmentContext
	Candidates []*polya.Candidate
	Err        error
}

// ParallelDetect prepares and searches contig alignments using a pool of
// workers. Results are sent to the returned channel in arrival order (not
// sequence order). Use OrderedCollect to consume results in sequence-number
// order. If workers is 0, runtime.NumCPU() is used.
func (c *Caller) ParallelDetect(ctx context.Context, items <-chan WorkItem, workers int) <-chan WorkResult {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make(chan WorkResult, 2*workers)

	var wg sync.WaitGroup
	wg.Add(workers)

	for range workers {
		go func() {
			defer wg.Done()
			for item := range items {
				ac, cands, err := c.detect(ctx, item.Record)
				results <- WorkResult{
					Seq:        item.Seq,
					Record:     item.Record,
					Context:    ac,
					Candidates: cands,
					Err:        err,
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

// OrderedCollect calls fn for each result in sequence-number order.
// It buffers out-of-order results in a pending map and emits them
// as soon as the next expected sequence number is available.
// Blocks until the results channel is closed.
func OrderedCollect(results <-chan WorkResult, fn func(WorkResult) error) error {
	pending := make(map[int]WorkResult)
	nextSeq := 0

	for r := range results {
		pending[r.Seq] = r

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
