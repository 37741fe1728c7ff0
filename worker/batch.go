package worker

import (
	"context"
	"runtime"
	"strconv"
	"sync"
	"time"
)

// Run validates documents in parallel and returns one result per input,
// in input order. If workers <= 0, it defaults to runtime.NumCPU().
// Cancelling ctx stops the run; documents not reached stay nil in the
// batch results.
func Run(ctx context.Context, validate ValidateFunc, documents [][]byte, workers int) *BatchResult {
	if len(documents) == 0 {
		return &BatchResult{Results: make([]*JobResult, 0)}
	}

	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	// Small batches are not worth the fan-out
	if len(documents) <= 2 || workers == 1 {
		return runSequential(ctx, validate, documents)
	}

	return runParallel(ctx, validate, documents, workers)
}

func runSequential(ctx context.Context, validate ValidateFunc, documents [][]byte) *BatchResult {
	batch := &BatchResult{
		Results:   make([]*JobResult, len(documents)),
		TotalJobs: len(documents),
	}

	for i, document := range documents {
		select {
		case <-ctx.Done():
			return batch
		default:
		}

		batch.add(process(ctx, validate, i, document))
	}

	return batch
}

func runParallel(ctx context.Context, validate ValidateFunc, documents [][]byte, workers int) *BatchResult {
	if workers > len(documents) {
		workers = len(documents)
	}

	jobs := make(chan int, len(documents))
	completed := make(chan *JobResult, len(documents))

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for index := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}

				completed <- process(ctx, validate, index, documents[index])
			}
		}()
	}

	for i := range documents {
		jobs <- i
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(completed)
	}()

	batch := &BatchResult{
		Results:   make([]*JobResult, len(documents)),
		TotalJobs: len(documents),
	}
	for result := range completed {
		batch.add(result)
	}

	return batch
}

func process(ctx context.Context, validate ValidateFunc, index int, document []byte) *JobResult {
	start := time.Now()

	result := &JobResult{ID: strconv.Itoa(index), Index: index}

	if validate == nil {
		result.Err = ErrNoValidator
		result.Duration = time.Since(start)
		return result
	}

	report, err := validate(ctx, document)
	if err != nil {
		result.Err = err
	} else if report != nil {
		report.JobID = result.ID
		result.Report = report
	}

	result.Duration = time.Since(start)
	return result
}
