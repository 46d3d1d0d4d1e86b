package neoepitope

import (
	"runtime"
	"sync"

	"github.com/inodb/vibe-neo/internal/cache"
	"github.com/inodb/vibe-neo/internal/haplotype"
)

// WorkItem holds one transcript and the haplotypes that edit it.
type WorkItem struct {
	Seq        int
	Transcript *cache.Transcript
	Haplotypes []haplotype.Haplotype
}

// WorkResult holds the peptides predicted for a single transcript.
type WorkResult struct {
	Seq         int
	Transcript  *cache.Transcript
	Neoepitopes []*Neoepitope
	Err         error
}

// ParallelPredict predicts work items using a pool of workers.
// Results are sent to the returned channel in arrival order (not sequence order).
// Use OrderedCollect to consume results in sequence-number order.
// If workers is 0, runtime.NumCPU() is used.
func (p *Predictor) ParallelPredict(items <-chan WorkItem, workers int) <-chan WorkResult {
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
				neos, err := p.Predict(item)
				results <- WorkResult{
					Seq:         item.Seq,
					Transcript:  item.Transcript,
					Neoepitopes: neos,
					Err:         err,
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
// Out-of-order results wait in a pending map until the next expected
// sequence number arrives. Blocks until the results channel is closed.
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
