// Package schematron provides rule-based XML validation in the Schematron
// style: schemas group rules into patterns and phases, each rule binds a
// context of document nodes, and asserts and reports fire against the nodes
// a rule matched.
//
// This package is designed from the ground up to leverage Go's strengths:
// concurrency with goroutines, sync.Pool for memory efficiency, generics
// for type-safe caches, and small composable interfaces.
//
// # Quick Start
//
//	import (
//	    sch "github.com/goschematron/validator"
//	    "github.com/goschematron/validator/engine"
//	    "github.com/goschematron/validator/parser"
//	)
//
//	schema, err := parser.ParseSchema(schemaFile)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	validator, err := engine.New(ctx, schema)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	report, err := validator.Validate(ctx, documentXML)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !report.Valid {
//	    for _, res := range report.FailedAsserts() {
//	        fmt.Println(res)
//	    }
//	}
//	report.Release() // Return to pool for better performance
//
// # Functional Options
//
//	validator, err := engine.New(ctx, schema,
//	    sch.WithPhase("delivery"),
//	    sch.WithParallelPatterns(true),
//	    sch.WithWorkerCount(runtime.NumCPU()),
//	    sch.WithFailFast(false),
//	)
//
// # Validation Flow
//
// Validation runs in fixed stages over an immutable schema AST:
//
//   - Resolve: extends chains are flattened into assembled rules,
//     with cycles and dangling references rejected
//   - Select: the requested phase picks the active patterns, in order
//   - Match: each document node binds to at most one rule per pattern,
//     first declared match wins
//   - Check: each bound rule's asserts and reports are evaluated;
//     asserts fire on false, reports fire on true
//   - Aggregate: fired results, flags, and evaluation errors collect
//     into an ordered Report
//
// The AST is read-only input throughout, so a resolved schema may be
// shared by any number of concurrent validations.
//
// # Architecture
//
// The root package holds the shared value types: CheckResult, Report,
// Options, Metrics, and the error taxonomy. The heavy lifting lives in
// subpackages:
//
//   - ast: the immutable schema syntax tree
//   - resolver: extends resolution and phase selection
//   - match: document-order node-to-rule matching
//   - check: assert/report evaluation over matched nodes
//   - pipeline: per-pattern orchestration and report assembly
//   - engine: the validator facade
//   - parser: .sch documents into the ast
//   - query, query/xpathbind: the XPath expression capability
package schematron
