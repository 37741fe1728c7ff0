package worker

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	schematron "github.com/goschematron/validator"
)

// ValidateFunc validates one document and returns its report. The engine
// Validator's Validate method satisfies it.
type ValidateFunc func(ctx context.Context, document []byte) (*schematron.Report, error)

// Pool manages a set of worker goroutines validating submitted jobs.
type Pool struct {
	workers  int
	jobs     chan Job
	results  chan *JobResult
	validate ValidateFunc
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	closed   atomic.Bool

	jobsSubmitted atomic.Uint64
	jobsCompleted atomic.Uint64
	totalDuration atomic.Uint64
}

// NewPool starts a pool of workers validating with validate.
// If workers <= 0, it defaults to runtime.NumCPU().
func NewPool(validate ValidateFunc, workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	ctx, cancel := context.WithCancel(context.Background())

	p := &Pool{
		workers:  workers,
		jobs:     make(chan Job, workers*2),
		results:  make(chan *JobResult, workers*2),
		validate: validate,
		ctx:      ctx,
		cancel:   cancel,
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}

	return p
}

// Submit queues a job for processing, blocking while the queue is full.
// It reports false once the pool is closed.
func (p *Pool) Submit(job Job) bool {
	if p.closed.Load() {
		return false
	}

	select {
	case <-p.ctx.Done():
		return false
	case p.jobs <- job:
		p.jobsSubmitted.Add(1)
		return true
	}
}

// SubmitAsync queues a job without blocking. It reports false when the
// queue is full or the pool is closed.
func (p *Pool) SubmitAsync(job Job) bool {
	if p.closed.Load() {
		return false
	}

	select {
	case <-p.ctx.Done():
		return false
	case p.jobs <- job:
		p.jobsSubmitted.Add(1)
		return true
	default:
		return false
	}
}

// Results returns the channel job results arrive on.
func (p *Pool) Results() <-chan *JobResult {
	return p.results
}

// Close shuts the pool down and waits for the workers to finish.
// Undelivered results are discarded; use CloseAndWait to collect them.
func (p *Pool) Close() {
	if p.closed.Swap(true) {
		return
	}

	p.cancel()
	close(p.jobs)

	// Drain results so no worker blocks on delivery
	done := make(chan struct{})
	go func() {
		for range p.results {
		}
		close(done)
	}()

	p.wg.Wait()
	close(p.results)
	<-done
}

// CloseAndWait closes the pool and collects all pending results.
func (p *Pool) CloseAndWait() *BatchResult {
	if p.closed.Swap(true) {
		return &BatchResult{}
	}

	p.cancel()
	close(p.jobs)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(p.results)
		close(done)
	}()

	collected := make([]*JobResult, 0)
	var failed int
	for result := range p.results {
		collected = append(collected, result)
		if result.Err != nil {
			failed++
		}
	}

	<-done

	return &BatchResult{
		Results:       collected,
		TotalJobs:     int(p.jobsSubmitted.Load()),
		CompletedJobs: int(p.jobsCompleted.Load()),
		FailedJobs:    failed,
		TotalDuration: time.Duration(p.totalDuration.Load()),
	}
}

// Stats returns current pool statistics.
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Workers:       p.workers,
		JobsSubmitted: p.jobsSubmitted.Load(),
		JobsCompleted: p.jobsCompleted.Load(),
		AvgDuration:   p.averageDuration(),
	}
}

// PoolStats contains pool statistics.
type PoolStats struct {
	Workers       int
	JobsSubmitted uint64
	JobsCompleted uint64
	AvgDuration   time.Duration
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for job := range p.jobs {
		select {
		case <-p.ctx.Done():
			return
		default:
		}

		result := p.process(job)
		p.jobsCompleted.Add(1)
		p.totalDuration.Add(uint64(result.Duration))

		select {
		case <-p.ctx.Done():
			return
		case p.results <- result:
		}
	}
}

func (p *Pool) process(job Job) *JobResult {
	start := time.Now()

	result := &JobResult{ID: job.ID, Index: -1}

	if p.validate == nil {
		result.Err = ErrNoValidator
		result.Duration = time.Since(start)
		return result
	}

	report, err := p.validate(p.ctx, job.Document)
	if err != nil {
		result.Err = err
	} else if report != nil {
		if job.ID != "" {
			report.JobID = job.ID
		}
		result.Report = report
	}

	result.Duration = time.Since(start)
	return result
}

func (p *Pool) averageDuration() time.Duration {
	completed := p.jobsCompleted.Load()
	if completed == 0 {
		return 0
	}
	return time.Duration(p.totalDuration.Load() / completed)
}

// ErrNoValidator is returned when the pool has no validate function.
var ErrNoValidator = poolError("worker: no validate function configured")

type poolError string

func (e poolError) Error() string {
	return string(e)
}
