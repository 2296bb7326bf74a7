package harvester

import (
	"context"
	"sync"
)

// BatchResult is the outcome of harvesting one record in a batch.
type BatchResult struct {
	RecordID string
	Tracked  int
	Err      error
}

// HarvestBatch fans a set of record ids over a bounded worker pool. Each
// record is harvested independently; one record's failure is reported in
// its result and does not stop the batch. Results are in completion
// order, not input order.
func (h *Harvester) HarvestBatch(ctx context.Context, ids []string, registry *Registry, workers int) []BatchResult {
	if len(ids) == 0 {
		return nil
	}
	if workers < 1 {
		workers = 1
	}
	if workers > len(ids) {
		workers = len(ids)
	}

	jobs := make(chan string)
	results := make(chan BatchResult, len(ids))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				tracked, err := h.HarvestRecord(ctx, id, registry)
				results <- BatchResult{RecordID: id, Tracked: tracked, Err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, id := range ids {
			select {
			case jobs <- id:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()
	close(results)

	out := make([]BatchResult, 0, len(ids))
	for r := range results {
		out = append(out, r)
	}
	return out
}
