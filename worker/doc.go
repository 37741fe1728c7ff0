// Package worker provides a bounded worker pool for validating many XML
// documents against one schema in parallel.
//
// Two shapes are offered. Pool is a long-lived submit/collect pool for
// callers that produce jobs over time:
//
//	pool := worker.NewPool(validator.Validate, 4)
//	defer pool.Close()
//
//	for name, doc := range documents {
//	    pool.Submit(worker.Job{ID: name, Document: doc})
//	}
//
//	for result := range pool.Results() {
//	    if result.Err != nil {
//	        // the document could not be validated at all
//	    }
//	    // inspect result.Report
//	}
//
// Run is a one-shot helper over a fixed document slice; its results come
// back in input order.
package worker
