package downloader

import (
	"context"

	"pinharvest/pkg/extract"
	"pinharvest/pkg/logger"
)

// Pipeline fetches batches of media references concurrently. Each call to
// FetchAll runs its own worker pool, so pipelines are cheap and need no
// lifecycle management.
type Pipeline struct {
	client  MediaFetcher
	store   MediaStore
	workers int
	log     logger.Logger
}

// NewPipeline creates a fetch pipeline with the given concurrency.
func NewPipeline(client MediaFetcher, store MediaStore, workers int) *Pipeline {
	if workers <= 0 {
		workers = 1
	}
	return &Pipeline{
		client:  client,
		store:   store,
		workers: workers,
		log:     logger.GetLogger(),
	}
}

// FetchAll fetches every reference and returns exactly one outcome per
// input, in input order. A failed sibling never aborts the batch; on
// cancellation the unfetched remainder is reported with the context error.
func (p *Pipeline) FetchAll(ctx context.Context, refs []extract.MediaReference) []Outcome {
	if len(refs) == 0 {
		return nil
	}

	pool := NewWorkerPool(ctx, p.workers, p.client, p.store, p.log)
	pool.Start()

	go func() {
		for _, ref := range refs {
			if err := pool.Submit(Job{Ref: ref}); err != nil {
				break
			}
		}
		pool.Stop()
	}()

	byURL := make(map[string]Outcome, len(refs))
	for outcome := range pool.Outcomes() {
		byURL[outcome.Ref.SourceURL] = outcome
	}

	outcomes := make([]Outcome, len(refs))
	for i, ref := range refs {
		if o, ok := byURL[ref.SourceURL]; ok {
			outcomes[i] = o
			continue
		}
		err := ctx.Err()
		if err == nil {
			err = context.Canceled
		}
		outcomes[i] = Outcome{Ref: ref, Err: err}
	}
	return outcomes
}
