package ocr

import (
	"context"
	"image"
	"sync"

	"golang.org/x/sync/errgroup"
)

// BatchJob is one OCR request in a batch, keyed by the caller.
type BatchJob struct {
	Image  image.Image
	Offset image.Point
}

// BatchResult pairs the recognized fragments with the per-job error, if any.
type BatchResult struct {
	Boxes []Box
	Err   error
}

// RunBatch dispatches the jobs to the recognizer on a bounded worker pool
// and collects results keyed by job key. Completion order is irrelevant:
// every result lands under the key it was submitted with. Per-job errors
// are captured in the result map, never propagated, so one bad region does
// not sink the whole batch.
func RunBatch(ctx context.Context, rec Recognizer, jobs map[string]BatchJob, workers int) map[string]BatchResult {
	if workers <= 0 {
		workers = 4
	}

	var mu sync.Mutex
	results := make(map[string]BatchResult, len(jobs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for key, job := range jobs {
		key, job := key, job
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				mu.Lock()
				results[key] = BatchResult{Err: err}
				mu.Unlock()
				return nil
			}
			boxes, err := rec.RecognizeText(job.Image, job.Offset)
			mu.Lock()
			results[key] = BatchResult{Boxes: boxes, Err: err}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return results
}
