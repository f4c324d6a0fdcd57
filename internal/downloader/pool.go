package downloader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"pinharvest/pkg/extract"
	"pinharvest/pkg/logger"
)

// Job represents a single media fetch task
type Job struct {
	Ref extract.MediaReference
}

// Outcome represents the result of a fetch job
type Outcome struct {
	Ref       extract.MediaReference
	Success   bool
	LocalPath string
	Err       error
	Duration  time.Duration
	Size      int
}

// MediaFetcher interface for fetching media bytes
type MediaFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// MediaStore interface for storing fetched media
type MediaStore interface {
	Exists(url string) bool
	Save(r io.Reader, url string) (string, error)
	PathFor(url string) string
}

// WorkerPool manages concurrent fetch workers
type WorkerPool struct {
	numWorkers   int
	jobQueue     chan Job
	outcomeQueue chan Outcome
	wg           sync.WaitGroup
	ctx          context.Context
	cancel       context.CancelFunc
	client       MediaFetcher
	store        MediaStore
	logger       logger.Logger
}

// NewWorkerPool creates a new fetch worker pool
func NewWorkerPool(ctx context.Context, numWorkers int, client MediaFetcher, store MediaStore, log logger.Logger) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}

	poolCtx, cancel := context.WithCancel(ctx)

	return &WorkerPool{
		numWorkers:   numWorkers,
		jobQueue:     make(chan Job, numWorkers*2),
		outcomeQueue: make(chan Outcome, numWorkers),
		ctx:          poolCtx,
		cancel:       cancel,
		client:       client,
		store:        store,
		logger:       log,
	}
}

// Start initializes and starts all workers
func (wp *WorkerPool) Start() {
	wp.logger.DebugWithFields("Starting fetch pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop gracefully shuts down the worker pool. Pending jobs are drained
// before the outcome queue closes.
func (wp *WorkerPool) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.outcomeQueue)
	wp.cancel()
}

// Submit adds a new fetch job to the queue
func (wp *WorkerPool) Submit(job Job) error {
	select {
	case wp.jobQueue <- job:
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("fetch pool is shutting down")
	}
}

// Outcomes returns the channel for consuming fetch outcomes
func (wp *WorkerPool) Outcomes() <-chan Outcome {
	return wp.outcomeQueue
}

// worker is the main worker routine
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		var outcome Outcome
		select {
		case <-wp.ctx.Done():
			outcome = Outcome{Ref: job.Ref, Err: wp.ctx.Err()}
		default:
			outcome = wp.processJob(job, id)
		}

		select {
		case wp.outcomeQueue <- outcome:
		case <-wp.ctx.Done():
			// Try once more without blocking so FetchAll still gets
			// one outcome per submitted job during shutdown.
			select {
			case wp.outcomeQueue <- outcome:
			default:
				return
			}
		}
	}
}

// processJob handles a single fetch job
func (wp *WorkerPool) processJob(job Job, workerID int) Outcome {
	start := time.Now()
	outcome := Outcome{Ref: job.Ref}

	// Content-addressed naming makes refetching the same URL a no-op.
	if wp.store.Exists(job.Ref.SourceURL) {
		outcome.Success = true
		outcome.LocalPath = wp.store.PathFor(job.Ref.SourceURL)
		outcome.Duration = time.Since(start)
		wp.logger.DebugWithFields("Media already fetched", map[string]interface{}{
			"worker_id": workerID,
			"url":       job.Ref.SourceURL,
		})
		return outcome
	}

	data, err := wp.client.Fetch(wp.ctx, job.Ref.SourceURL)
	if err != nil {
		outcome.Err = fmt.Errorf("fetch failed: %w", err)
		outcome.Duration = time.Since(start)
		wp.logger.ErrorWithFields("Worker failed to fetch media", map[string]interface{}{
			"worker_id": workerID,
			"url":       job.Ref.SourceURL,
			"error":     err.Error(),
		})
		return outcome
	}

	outcome.Size = len(data)

	path, err := wp.store.Save(bytes.NewReader(data), job.Ref.SourceURL)
	if err != nil {
		outcome.Err = fmt.Errorf("save failed: %w", err)
		outcome.Duration = time.Since(start)
		wp.logger.ErrorWithFields("Worker failed to save media", map[string]interface{}{
			"worker_id": workerID,
			"url":       job.Ref.SourceURL,
			"error":     err.Error(),
		})
		return outcome
	}

	outcome.Success = true
	outcome.LocalPath = path
	outcome.Duration = time.Since(start)

	wp.logger.DebugWithFields("Worker completed fetch", map[string]interface{}{
		"worker_id": workerID,
		"url":       job.Ref.SourceURL,
		"size":      outcome.Size,
		"duration":  outcome.Duration,
	})

	return outcome
}
