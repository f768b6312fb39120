// Package runner executes independent crawl jobs on a bounded worker pool.
package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"igcrawler/pkg/crawler"
	"igcrawler/pkg/logger"
	"igcrawler/pkg/session"
)

// JobRunner runs one crawl job. *crawler.Crawler implements it.
type JobRunner interface {
	Run(ctx context.Context, sess *session.Session, mode crawler.Mode, sink crawler.Sink) error
}

// Job is one entry of a batch
type Job struct {
	// ID identifies the job within its batch
	ID int
	// Line is the batch file line the job came from, 0 when not from a file
	Line int
	Mode crawler.Mode
}

func (j Job) key() string {
	return string(j.Mode.Kind()) + ":" + j.Mode.Target()
}

// Result is the outcome of a job
type Result struct {
	Job      Job
	Err      error
	Skipped  bool
	Duration time.Duration
}

// Success reports whether the job ran and succeeded
func (r Result) Success() bool {
	return r.Err == nil && !r.Skipped
}

// WorkerPool runs jobs concurrently against one shared session. A failing
// job does not affect the others.
type WorkerPool struct {
	numWorkers  int
	jobQueue    chan Job
	resultQueue chan Result
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	runner      JobRunner
	session     *session.Session
	sink        crawler.Sink
	logger      logger.Logger

	mu   sync.Mutex
	seen map[string]bool
}

// NewWorkerPool creates a pool of numWorkers workers
func NewWorkerPool(numWorkers int, runner JobRunner, sess *session.Session, sink crawler.Sink, log logger.Logger) *WorkerPool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &WorkerPool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan Job, numWorkers*2),
		resultQueue: make(chan Result, numWorkers),
		runner:      runner,
		session:     sess,
		sink:        sink,
		logger:      log,
		seen:        make(map[string]bool),
	}
}

// Start launches the workers. Cancelling ctx makes the remaining queued jobs
// fail with the context error.
func (wp *WorkerPool) Start(ctx context.Context) {
	wp.ctx, wp.cancel = context.WithCancel(ctx)
	wp.logger.InfoWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop closes the queue, waits for queued jobs and closes Results
func (wp *WorkerPool) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()
	wp.logger.Debug("Worker pool stopped")
}

// Submit queues a job
func (wp *WorkerPool) Submit(job Job) error {
	if job.Mode == nil {
		return crawler.ErrNoMode
	}
	select {
	case wp.jobQueue <- job:
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down: %w", wp.ctx.Err())
	}
}

// Results returns the result channel. It must be drained while jobs run.
func (wp *WorkerPool) Results() <-chan Result {
	return wp.resultQueue
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		wp.resultQueue <- wp.process(job, id)
	}
}

func (wp *WorkerPool) process(job Job, workerID int) Result {
	start := time.Now()
	log := wp.logger.WithFields(map[string]interface{}{
		"worker_id": workerID,
		"kind":      string(job.Mode.Kind()),
		"target":    job.Mode.Target(),
	})

	if err := wp.ctx.Err(); err != nil {
		return Result{Job: job, Err: err}
	}

	if wp.markSeen(job) {
		log.Debug("Duplicate job skipped")
		return Result{Job: job, Skipped: true}
	}

	err := wp.runner.Run(wp.ctx, wp.session, job.Mode, wp.sink)
	result := Result{Job: job, Err: err, Duration: time.Since(start)}
	if err != nil {
		log.WithError(err).Debug("Worker job failed")
	}
	return result
}

// markSeen reports whether an identical job was already taken
func (wp *WorkerPool) markSeen(job Job) bool {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	key := job.key()
	if wp.seen[key] {
		return true
	}
	wp.seen[key] = true
	return false
}

// RunAll runs jobs on a fresh pool and returns their results in job order
func RunAll(ctx context.Context, numWorkers int, runner JobRunner, sess *session.Session, sink crawler.Sink, jobs []Job, log logger.Logger) []Result {
	pool := NewWorkerPool(numWorkers, runner, sess, sink, log)
	pool.Start(ctx)

	results := make([]Result, len(jobs))
	done := make(chan struct{})
	go func() {
		defer close(done)
		for r := range pool.Results() {
			results[r.Job.ID] = r
		}
	}()

	for i, job := range jobs {
		job.ID = i
		if err := pool.Submit(job); err != nil {
			results[i] = Result{Job: job, Err: err}
		}
	}
	pool.Stop()
	<-done

	return results
}

// Summary counts the outcomes of a batch
type Summary struct {
	Succeeded int
	Failed    int
	Skipped   int
}

// Summarize counts results
func Summarize(results []Result) Summary {
	var s Summary
	for _, r := range results {
		switch {
		case r.Skipped:
			s.Skipped++
		case r.Err != nil:
			s.Failed++
		default:
			s.Succeeded++
		}
	}
	return s
}
