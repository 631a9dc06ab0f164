// Package batch resolves many post URLs on a fixed set of workers.
package batch

import (
	"context"
	"errors"
	"sync"
	"time"

	"postmedia/pkg/logger"
	"postmedia/pkg/resolver"
)

// ErrPoolClosed is returned by Submit once the pool has been stopped or its
// context cancelled.
var ErrPoolClosed = errors.New("worker pool is shutting down")

// Job is a single URL to resolve. Index is the caller's position for it.
type Job struct {
	Index int
	URL   string
}

// Result is the outcome of one Job
type Result struct {
	Job      Job
	Media    []string
	Strategy string
	Duration time.Duration
}

// Empty reports whether the job found no media
func (r Result) Empty() bool { return len(r.Media) == 0 }

// MediaResolver is satisfied by *resolver.Resolver
type MediaResolver interface {
	Resolve(ctx context.Context, rawURL string) resolver.Result
}

// WorkerPool manages concurrent resolve workers
type WorkerPool struct {
	numWorkers  int
	jobQueue    chan Job
	resultQueue chan Result
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	resolver    MediaResolver
	logger      logger.Logger

	stopOnce sync.Once
}

// NewWorkerPool creates a pool bound to ctx. numWorkers below 1 means 1.
func NewWorkerPool(ctx context.Context, numWorkers int, res MediaResolver, log logger.Logger) *WorkerPool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}
	ctx, cancel := context.WithCancel(ctx)

	return &WorkerPool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan Job, numWorkers*2),
		resultQueue: make(chan Result, numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		resolver:    res,
		logger:      log,
	}
}

// Start launches the workers
func (wp *WorkerPool) Start() {
	wp.logger.DebugWithFields("starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop closes the job queue, waits for the workers to drain it and closes
// Results. Safe to call more than once.
func (wp *WorkerPool) Stop() {
	wp.stopOnce.Do(func() {
		close(wp.jobQueue)
		wp.wg.Wait()
		close(wp.resultQueue)
		wp.cancel()
	})
}

// Submit queues a job, blocking while the queue is full
func (wp *WorkerPool) Submit(job Job) error {
	select {
	case <-wp.ctx.Done():
		return ErrPoolClosed
	default:
	}

	select {
	case wp.jobQueue <- job:
		return nil
	case <-wp.ctx.Done():
		return ErrPoolClosed
	}
}

// Results returns the channel results are delivered on. It must be drained
// while jobs are being submitted.
func (wp *WorkerPool) Results() <-chan Result {
	return wp.resultQueue
}

// QueueSize returns the number of jobs waiting for a worker
func (wp *WorkerPool) QueueSize() int {
	return len(wp.jobQueue)
}

// Workers returns the number of workers
func (wp *WorkerPool) Workers() int {
	return wp.numWorkers
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		if wp.ctx.Err() != nil {
			continue
		}

		result := wp.process(job, id)

		select {
		case wp.resultQueue <- result:
		case <-wp.ctx.Done():
		}
	}
}

func (wp *WorkerPool) process(job Job, workerID int) Result {
	start := time.Now()
	res := wp.resolver.Resolve(wp.ctx, job.URL)

	result := Result{
		Job:      job,
		Media:    res.URLs,
		Strategy: res.Strategy,
		Duration: time.Since(start),
	}

	wp.logger.DebugWithFields("worker finished job", map[string]interface{}{
		"worker_id": workerID,
		"url":       job.URL,
		"count":     len(result.Media),
		"duration":  result.Duration,
	})

	return result
}

// ResolveAll resolves urls on numWorkers workers and returns one Result per
// url in input order. URLs never reached because ctx was cancelled come back
// empty.
func ResolveAll(ctx context.Context, res MediaResolver, urls []string, numWorkers int, log logger.Logger) []Result {
	results := make([]Result, len(urls))
	for i, u := range urls {
		results[i].Job = Job{Index: i, URL: u}
	}
	if len(urls) == 0 {
		return results
	}
	if numWorkers > len(urls) {
		numWorkers = len(urls)
	}

	pool := NewWorkerPool(ctx, numWorkers, res, log)
	pool.Start()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for r := range pool.Results() {
			results[r.Job.Index] = r
		}
	}()

	for i, u := range urls {
		if err := pool.Submit(Job{Index: i, URL: u}); err != nil {
			break
		}
	}

	pool.Stop()
	<-done

	return results
}
