package pipeline

import (
	"sync"

	"github.com/antchfx/xmlquery"

	schematron "github.com/goschematron/validator"
	"github.com/goschematron/validator/query"
)

// patternSlot collects one pattern's output. Each pattern, sequential or
// parallel, writes only its own slot; report assembly concatenates slots
// in active-pattern order.
type patternSlot struct {
	// results are the fired checks, in document order
	results []schematron.CheckResult

	// outcomes are the fired/suppressed/skipped dispositions, populated
	// when outcome tracking is enabled
	outcomes []schematron.RuleOutcome

	// errors are the evaluation-failure markers, context failures first
	errors []schematron.EvalError
}

// run holds the state of one validation: the document under test, the
// base evaluation context carrying the settled phase variables, and one
// slot per active pattern.
//
// run instances are pooled when pooling is enabled. acquireRun and
// releaseRun on the Runner manage them.
type run struct {
	// doc is the parsed document being validated
	doc *xmlquery.Node

	// base is positioned at the document root with the phase scope set
	base *query.Context

	// slots has one entry per active pattern, in execution order
	slots []patternSlot
}

// runPool holds reusable run instances.
var runPool = sync.Pool{
	New: func() any {
		return &run{slots: make([]patternSlot, 0, 8)}
	},
}

// acquireRun gets a run from the pool, or builds a fresh one when pooling
// is disabled.
func (r *Runner) acquireRun(doc *xmlquery.Node, patterns int) *run {
	var rn *run
	if r.options.EnablePooling {
		rn = runPool.Get().(*run)
		if r.metrics != nil {
			r.metrics.RecordPoolAcquire()
		}
	} else {
		rn = &run{}
	}
	rn.reset(patterns)
	rn.doc = doc
	return rn
}

// releaseRun returns the run to the pool. After the call the run must not
// be used; the report keeps no references into it.
func (r *Runner) releaseRun(rn *run) {
	if rn == nil || !r.options.EnablePooling {
		return
	}
	rn.doc = nil
	rn.base = nil
	// Don't return runs with oversized slot arrays
	if cap(rn.slots) <= 256 {
		runPool.Put(rn)
		if r.metrics != nil {
			r.metrics.RecordPoolRelease()
		}
	}
}

// reset clears the run for reuse and sizes it for the given pattern
// count.
func (rn *run) reset(patterns int) {
	rn.doc = nil
	rn.base = nil

	if cap(rn.slots) < patterns {
		rn.slots = make([]patternSlot, patterns)
		return
	}
	rn.slots = rn.slots[:patterns]
	for i := range rn.slots {
		rn.slots[i] = patternSlot{}
	}
}
