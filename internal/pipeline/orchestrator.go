package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Options sizes the orchestrator.
type Options struct {
	WorkerCount  int
	MaxQueueSize int
	JobTTL       time.Duration
	// CleanupEvery defaults to five minutes.
	CleanupEvery time.Duration
}

// Orchestrator runs jobs from a bounded queue on a fixed number of workers.
type Orchestrator struct {
	jobs   *JobStore
	queue  chan *Job
	runner *Runner
	log    *slog.Logger
	opts   Options

	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// NewOrchestrator creates the pipeline. Call Start to launch workers.
func NewOrchestrator(runner *Runner, opts Options, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	if opts.WorkerCount <= 0 {
		opts.WorkerCount = 1
	}
	if opts.MaxQueueSize <= 0 {
		opts.MaxQueueSize = 100
	}
	if opts.JobTTL <= 0 {
		opts.JobTTL = time.Hour
	}
	if opts.CleanupEvery <= 0 {
		opts.CleanupEvery = 5 * time.Minute
	}
	return &Orchestrator{
		jobs:   NewJobStore(opts.JobTTL),
		queue:  make(chan *Job, opts.MaxQueueSize),
		runner: runner,
		log:    log,
		opts:   opts,
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range o.opts.WorkerCount {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := NewWorker(o.runner, o.jobs, o.log)
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					w.Process(workerCtx, job)
				}
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(o.opts.CleanupEvery)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop gracefully shuts down the pipeline. Queued jobs that were not
// picked up stay queued.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	close(o.queue)
	o.mu.Unlock()

	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
}

// Submit queues a new job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return fmt.Errorf("pipeline is stopped")
	}
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		o.log.Debug("job queued", "job_id", job.ID, "kind", job.Kind)
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("job queue is full (%d)", o.opts.MaxQueueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// Runner returns the runner for synchronous use by API handlers.
func (o *Orchestrator) Runner() *Runner {
	return o.runner
}
