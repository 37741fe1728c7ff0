package worker

import (
	"time"

	schematron "github.com/goschematron/validator"
)

// Job is one document to validate.
type Job struct {
	// ID correlates the job with its result and is copied to the
	// report's JobID. Optional.
	ID string

	// Document is the XML document to validate.
	Document []byte
}

// JobResult is the outcome of one job.
type JobResult struct {
	// ID matches the Job.ID that produced this result.
	ID string

	// Index is the job's position within its batch, -1 for pool jobs.
	Index int

	// Report holds the validation outcome. Nil when Err is set.
	Report *schematron.Report

	// Err is set when the document could not be validated at all, for
	// example because it does not parse. Fired asserts are not errors;
	// they live in the report.
	Err error

	// Duration is the time taken to validate this document.
	Duration time.Duration
}

// BatchResult aggregates the results of one batch run. Results holds one
// entry per input document in input order; entries are nil when the run
// was cancelled before reaching them.
type BatchResult struct {
	Results       []*JobResult
	TotalJobs     int
	CompletedJobs int
	FailedJobs    int
	TotalDuration time.Duration
}

// add records one completed job. Callers serialize access.
func (br *BatchResult) add(r *JobResult) {
	br.Results[r.Index] = r
	br.CompletedJobs++
	br.TotalDuration += r.Duration
	if r.Err != nil {
		br.FailedJobs++
	}
}

// InvalidCount returns the number of completed documents whose report
// carries fired asserts.
func (br *BatchResult) InvalidCount() int {
	count := 0
	for _, r := range br.Results {
		if r != nil && r.Err == nil && r.Report != nil && !r.Report.Valid {
			count++
		}
	}
	return count
}

// HasFailures returns true if any job errored before producing a report.
func (br *BatchResult) HasFailures() bool {
	for _, r := range br.Results {
		if r != nil && r.Err != nil {
			return true
		}
	}
	return false
}

// AllValid returns true if every document completed with a valid report.
func (br *BatchResult) AllValid() bool {
	if br.CompletedJobs != br.TotalJobs {
		return false
	}
	for _, r := range br.Results {
		if r == nil || r.Err != nil || r.Report == nil || !r.Report.Valid {
			return false
		}
	}
	return true
}
