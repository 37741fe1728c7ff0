// Package stream provides streaming validation over document sets: feed
// documents in, receive one result per document in input order.
package stream

import (
	"context"
	"fmt"
	"sync"

	schematron "github.com/goschematron/validator"
)

// Document is one named XML document in a stream.
type Document struct {
	// Name identifies the document in results, typically a file path.
	Name string

	// Data is the document text.
	Data []byte
}

// Result is the validation outcome for one streamed document.
type Result struct {
	// Index is the document's position in the stream.
	Index int

	// Name echoes the document's name.
	Name string

	// Report holds the validation outcome. Nil when Err is set.
	Report *schematron.Report

	// Err is set when the document could not be processed at all.
	Err error
}

// ValidateFunc validates one document. The engine Validator's Validate
// method satisfies it.
type ValidateFunc func(ctx context.Context, document []byte) (*schematron.Report, error)

// Validator streams documents through a validate function.
type Validator struct {
	validate    ValidateFunc
	bufferSize  int
	workerCount int
}

// NewValidator creates a streaming validator around validate.
func NewValidator(validate ValidateFunc) *Validator {
	return &Validator{
		validate:    validate,
		bufferSize:  100,
		workerCount: 4,
	}
}

// WithBufferSize sets the result channel buffer size.
func (v *Validator) WithBufferSize(size int) *Validator {
	if size > 0 {
		v.bufferSize = size
	}
	return v
}

// WithWorkerCount sets the number of parallel workers.
func (v *Validator) WithWorkerCount(count int) *Validator {
	if count > 0 {
		v.workerCount = count
	}
	return v
}

// FromSlice adapts a document slice into the channel form the stream
// methods consume.
func FromSlice(documents []Document) <-chan Document {
	ch := make(chan Document, len(documents))
	for _, doc := range documents {
		ch <- doc
	}
	close(ch)
	return ch
}

// ValidateStream validates documents one at a time as they arrive,
// emitting results in arrival order. The result channel closes when the
// input closes or ctx is cancelled.
func (v *Validator) ValidateStream(ctx context.Context, documents <-chan Document) <-chan *Result {
	results := make(chan *Result, v.bufferSize)

	go func() {
		defer close(results)

		index := 0
		for doc := range documents {
			select {
			case <-ctx.Done():
				results <- &Result{Index: index, Name: doc.Name, Err: ctx.Err()}
				return
			default:
			}

			results <- v.process(ctx, doc, index)
			index++
		}
	}()

	return results
}

// ValidateStreamParallel validates documents on workerCount workers while
// emitting results in arrival order.
func (v *Validator) ValidateStreamParallel(ctx context.Context, documents <-chan Document) <-chan *Result {
	results := make(chan *Result, v.bufferSize)

	go func() {
		defer close(results)

		type workItem struct {
			index int
			doc   Document
		}

		work := make(chan workItem, v.bufferSize)
		completed := make(chan *Result, v.bufferSize)

		var wg sync.WaitGroup
		for i := 0; i < v.workerCount; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for item := range work {
					select {
					case <-ctx.Done():
						completed <- &Result{Index: item.index, Name: item.doc.Name, Err: ctx.Err()}
						continue
					default:
					}
					completed <- v.process(ctx, item.doc, item.index)
				}
			}()
		}

		go func() {
			index := 0
		dispatch:
			for doc := range documents {
				select {
				case work <- workItem{index: index, doc: doc}:
					index++
				case <-ctx.Done():
					break dispatch
				}
			}
			close(work)
			wg.Wait()
			close(completed)
		}()

		// Reorder: every dispatched index produces exactly one result,
		// so emitting consecutive indexes drains the pending map.
		pending := make(map[int]*Result)
		next := 0
		for result := range completed {
			pending[result.Index] = result
			for {
				r, ok := pending[next]
				if !ok {
					break
				}
				results <- r
				delete(pending, next)
				next++
			}
		}
		for len(pending) > 0 {
			if r, ok := pending[next]; ok {
				results <- r
				delete(pending, next)
			}
			next++
		}
	}()

	return results
}

func (v *Validator) process(ctx context.Context, doc Document, index int) *Result {
	result := &Result{Index: index, Name: doc.Name}

	report, err := v.validate(ctx, doc.Data)
	if err != nil {
		result.Err = err
		return result
	}
	if report != nil && doc.Name != "" {
		report.JobID = doc.Name
	}
	result.Report = report
	return result
}

// Summary aggregates a result stream.
type Summary struct {
	// TotalDocuments is the number of documents that produced a report
	TotalDocuments int

	// InvalidDocuments counts reports with fired asserts
	InvalidDocuments int

	// IncompleteDocuments counts reports carrying eval-error markers
	IncompleteDocuments int

	// FiredAsserts is the total fired assert count across all documents
	FiredAsserts int

	// FiredReports is the total fired report count across all documents
	FiredReports int

	// ProcessingErrors holds failures that produced no report
	ProcessingErrors []error

	// ResultsByIndex maps document indexes to their fired checks
	ResultsByIndex map[int][]schematron.CheckResult
}

// Aggregate drains a result stream into a summary. Reports are released
// back to their pool; fired checks are copied out first.
func Aggregate(results <-chan *Result) *Summary {
	agg := &Summary{
		ResultsByIndex: make(map[int][]schematron.CheckResult),
	}

	for result := range results {
		if result.Err != nil {
			name := result.Name
			if name == "" {
				name = fmt.Sprintf("document %d", result.Index)
			}
			agg.ProcessingErrors = append(agg.ProcessingErrors, fmt.Errorf("%s: %w", name, result.Err))
			continue
		}

		agg.TotalDocuments++

		report := result.Report
		if report == nil {
			continue
		}

		if !report.Valid {
			agg.InvalidDocuments++
		}
		if !report.Complete() {
			agg.IncompleteDocuments++
		}
		agg.FiredAsserts += report.AssertCount()
		agg.FiredReports += report.ReportCount()

		if len(report.Results) > 0 {
			agg.ResultsByIndex[result.Index] = append([]schematron.CheckResult(nil), report.Results...)
		}

		report.Release()
	}

	return agg
}

// HasFailures returns true if any document failed validation or could not
// be processed.
func (s *Summary) HasFailures() bool {
	return s.InvalidDocuments > 0 || len(s.ProcessingErrors) > 0
}

// String returns a one-line summary.
func (s *Summary) String() string {
	return fmt.Sprintf(
		"validated %d documents: %d invalid, %d incomplete, %d failed asserts, %d fired reports",
		s.TotalDocuments,
		s.InvalidDocuments,
		s.IncompleteDocuments,
		s.FiredAsserts,
		s.FiredReports,
	)
}
