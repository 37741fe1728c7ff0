package schematron

import (
	"sort"
	"sync"
	"time"
)

// Report contains the outcome of validating one document. Results appear in
// active-pattern order, document order within each pattern, declaration
// order within each rule. Use Release() to return it to the pool when done
// for better performance.
type Report struct {
	// Valid is true if no asserts fired (fired reports are informational)
	Valid bool `json:"valid"`

	// SchemaTitle is the title of the schema that was applied
	SchemaTitle string `json:"schemaTitle,omitempty"`

	// Phase is the phase the run was scoped to, or #ALL
	Phase string `json:"phase,omitempty"`

	// JobID is set when using batch validation to correlate reports
	JobID string `json:"jobId,omitempty"`

	// ActivePatterns lists the pattern ids that ran, in execution order
	ActivePatterns []string `json:"activePatterns,omitempty"`

	// Results contains all fired checks in order
	Results []CheckResult `json:"results,omitempty"`

	// Outcomes records fired/suppressed/skipped rule dispositions,
	// populated when outcome tracking is enabled
	Outcomes []RuleOutcome `json:"outcomes,omitempty"`

	// Errors contains evaluation-error markers; a non-empty slice means
	// the report is incomplete, not that the document is invalid
	Errors []EvalError `json:"errors,omitempty"`

	// Duration is the wall time of the validation run
	Duration time.Duration `json:"duration,omitempty"`

	// flags holds the union of flags activated by fired checks
	flags map[string]struct{}

	// mu protects concurrent mutation during assembly
	mu sync.Mutex
}

// reportPool holds reusable Report instances.
var reportPool = sync.Pool{
	New: func() any {
		return &Report{
			Results: make([]CheckResult, 0, 32), // Pre-allocate for typical case
			flags:   make(map[string]struct{}),
		}
	},
}

// AcquireReport gets a Report from the pool.
// The report starts as valid with no results.
func AcquireReport() *Report {
	r := reportPool.Get().(*Report)
	r.Reset()
	return r
}

// Release returns the Report to the pool.
// After calling Release, the Report should not be used.
func (r *Report) Release() {
	if r == nil {
		return
	}
	// Don't return reports with oversized result slices
	if cap(r.Results) <= 1024 {
		reportPool.Put(r)
	}
}

// Reset clears the report for reuse.
func (r *Report) Reset() {
	r.Valid = true
	r.SchemaTitle = ""
	r.Phase = ""
	r.JobID = ""
	r.ActivePatterns = r.ActivePatterns[:0]
	r.Results = r.Results[:0]
	r.Outcomes = r.Outcomes[:0]
	r.Errors = r.Errors[:0]
	r.Duration = 0
	if r.flags == nil {
		r.flags = make(map[string]struct{})
	} else {
		clear(r.flags)
	}
}

// AddResult adds a fired check to the report.
// This method is thread-safe.
func (r *Report) AddResult(res CheckResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addResultLocked(res)
}

// AddResults adds multiple fired checks to the report.
// This method is thread-safe.
func (r *Report) AddResults(results []CheckResult) {
	if len(results) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, res := range results {
		r.addResultLocked(res)
	}
}

func (r *Report) addResultLocked(res CheckResult) {
	r.Results = append(r.Results, res)
	if res.IsAssert() {
		r.Valid = false
	}
	if res.Flag != "" {
		r.flags[res.Flag] = struct{}{}
	}
}

// AddOutcome records a rule disposition.
// This method is thread-safe.
func (r *Report) AddOutcome(o RuleOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Outcomes = append(r.Outcomes, o)
}

// AddOutcomes records multiple rule dispositions.
// This method is thread-safe.
func (r *Report) AddOutcomes(outcomes []RuleOutcome) {
	if len(outcomes) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.Outcomes = append(r.Outcomes, outcomes...)
}

// AddEvalError attaches an evaluation-error marker.
// This method is thread-safe.
func (r *Report) AddEvalError(e EvalError) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Errors = append(r.Errors, e)
}

// AddEvalErrors attaches multiple evaluation-error markers.
// This method is thread-safe.
func (r *Report) AddEvalErrors(errs []EvalError) {
	if len(errs) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.Errors = append(r.Errors, errs...)
}

// Complete returns true if every expression of the run evaluated cleanly.
// A valid but incomplete report means some checks could not be evaluated,
// never that the document passed them.
func (r *Report) Complete() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.Errors) == 0
}

// HasFailures returns true if any asserts fired.
func (r *Report) HasFailures() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, res := range r.Results {
		if res.IsAssert() {
			return true
		}
	}
	return false
}

// FailedAsserts returns all fired assert results.
func (r *Report) FailedAsserts() []CheckResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	var failed []CheckResult
	for _, res := range r.Results {
		if res.IsAssert() {
			failed = append(failed, res)
		}
	}
	return failed
}

// FiredReports returns all fired report results.
func (r *Report) FiredReports() []CheckResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	var fired []CheckResult
	for _, res := range r.Results {
		if res.IsReport() {
			fired = append(fired, res)
		}
	}
	return fired
}

// AssertCount returns the number of fired asserts.
func (r *Report) AssertCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, res := range r.Results {
		if res.IsAssert() {
			count++
		}
	}
	return count
}

// ReportCount returns the number of fired reports.
func (r *Report) ReportCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, res := range r.Results {
		if res.IsReport() {
			count++
		}
	}
	return count
}

// FlagActive returns true if a fired check activated the named flag.
func (r *Report) FlagActive(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.flags[name]
	return ok
}

// Flags returns the activated flags in sorted order.
func (r *Report) Flags() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.flags) == 0 {
		return nil
	}
	flags := make([]string, 0, len(r.flags))
	for f := range r.flags {
		flags = append(flags, f)
	}
	sort.Strings(flags)
	return flags
}

// Merge combines another report into this one. Results, outcomes, errors,
// and flags are appended; validity follows the merged results.
func (r *Report) Merge(other *Report) {
	if other == nil {
		return
	}

	other.mu.Lock()
	results := make([]CheckResult, len(other.Results))
	copy(results, other.Results)
	outcomes := make([]RuleOutcome, len(other.Outcomes))
	copy(outcomes, other.Outcomes)
	errs := make([]EvalError, len(other.Errors))
	copy(errs, other.Errors)
	other.mu.Unlock()

	r.AddResults(results)
	r.AddOutcomes(outcomes)
	r.AddEvalErrors(errs)
}

// Clone creates a copy of the report (not pooled).
func (r *Report) Clone() *Report {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := &Report{
		Valid:          r.Valid,
		SchemaTitle:    r.SchemaTitle,
		Phase:          r.Phase,
		JobID:          r.JobID,
		ActivePatterns: make([]string, len(r.ActivePatterns)),
		Results:        make([]CheckResult, len(r.Results)),
		Outcomes:       make([]RuleOutcome, len(r.Outcomes)),
		Errors:         make([]EvalError, len(r.Errors)),
		Duration:       r.Duration,
		flags:          make(map[string]struct{}, len(r.flags)),
	}
	copy(clone.ActivePatterns, r.ActivePatterns)
	copy(clone.Results, r.Results)
	copy(clone.Outcomes, r.Outcomes)
	copy(clone.Errors, r.Errors)
	for f := range r.flags {
		clone.flags[f] = struct{}{}
	}
	return clone
}

// NewReport creates a new (non-pooled) report.
// Prefer AcquireReport() for better performance.
func NewReport() *Report {
	return &Report{
		Valid:   true,
		Results: make([]CheckResult, 0, 8),
		flags:   make(map[string]struct{}),
	}
}
