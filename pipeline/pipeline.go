// Package pipeline runs a phase selection against parsed documents. For
// every active pattern a Runner matches rules to nodes, evaluates the
// checks of the resulting bindings, and assembles one report: results in
// active-pattern order, document order within a pattern, declaration
// order within a rule. Patterns execute sequentially or, when enabled, on
// a bounded errgroup; each pattern writes only its own slot either way,
// so parallel runs produce reports identical to sequential runs.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"time"

	"github.com/antchfx/xmlquery"
	"golang.org/x/sync/errgroup"

	schematron "github.com/goschematron/validator"
	"github.com/goschematron/validator/check"
	"github.com/goschematron/validator/match"
	"github.com/goschematron/validator/query"
	"github.com/goschematron/validator/resolver"
)

// Runner executes one phase selection against documents. A Runner holds
// no per-document state and is safe for concurrent use; every Run carries
// its state in a pooled run context.
type Runner struct {
	// selection holds the active patterns and phase variables
	selection *resolver.PhaseSelection

	// parser compiles context, test, subject, and variable expressions
	parser query.Parser

	// matcher binds nodes to rules per pattern
	matcher *match.Matcher

	// evaluator runs the checks of bound rules
	evaluator *check.Evaluator

	// options holds validation configuration
	options *schematron.Options

	// metrics collects counters when enabled, nil otherwise
	metrics *schematron.Metrics

	// logger traces pattern execution when set
	logger *slog.Logger

	// title is stamped on every report as the schema title
	title string

	// patternIDs caches the active pattern ids in execution order
	patternIDs []string
}

// NewRunner builds a Runner for one phase selection. A nil opts uses
// DefaultOptions. When metrics collection is enabled the Runner creates
// its own collector; SetMetrics replaces it, letting an engine share one
// collector between the runner and its expression cache.
func NewRunner(selection *resolver.PhaseSelection, parser query.Parser, opts *schematron.Options) *Runner {
	if opts == nil {
		opts = schematron.DefaultOptions()
	}

	r := &Runner{
		selection: selection,
		parser:    parser,
		matcher: &match.Matcher{
			Parser:        parser,
			FailFast:      opts.FailFast,
			TrackOutcomes: opts.TrackOutcomes,
		},
		evaluator: &check.Evaluator{
			Parser:   parser,
			FailFast: opts.FailFast,
		},
		options: opts,
		logger:  opts.Logger,
	}

	if opts.CollectMetrics {
		r.metrics = schematron.NewMetrics()
	}

	r.patternIDs = make([]string, len(selection.Patterns))
	for i, pat := range selection.Patterns {
		r.patternIDs[i] = pat.ID
	}

	return r
}

// SetSchemaTitle sets the title stamped on every report.
func (r *Runner) SetSchemaTitle(title string) {
	r.title = title
}

// SetMetrics sets the metrics collector. A nil collector disables
// recording.
func (r *Runner) SetMetrics(m *schematron.Metrics) {
	r.metrics = m
}

// Metrics returns the metrics collector, nil when disabled.
func (r *Runner) Metrics() *schematron.Metrics {
	return r.metrics
}

// Phase returns the phase the runner is scoped to.
func (r *Runner) Phase() string {
	return r.selection.Phase
}

// PatternCount returns the number of active patterns.
func (r *Runner) PatternCount() int {
	return len(r.selection.Patterns)
}

// Run validates one parsed document and returns its report. The caller
// owns the report; its Release method returns it to the pool. Under
// fail-fast the first expression failure aborts the run with a nil report
// and an ExpressionEvaluationError; cancellation aborts with the context
// error.
func (r *Runner) Run(ctx context.Context, doc *xmlquery.Node) (*schematron.Report, error) {
	if doc == nil {
		return nil, schematron.ErrNilDocument
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()

	report := r.acquireReport()
	report.SchemaTitle = r.title
	report.Phase = r.selection.Phase
	report.ActivePatterns = append(report.ActivePatterns, r.patternIDs...)

	rn := r.acquireRun(doc, len(r.selection.Patterns))
	defer r.releaseRun(rn)

	env := query.NewScope(nil)
	rn.base = query.NewContext(doc).WithScope(env)
	check.BindVariables(env, r.selection.Variables, r.parser, rn.base)

	// The phase scope is shared across patterns; settle it up front so
	// lookups during the fan-out stay read-only.
	if failed := env.Force(); failed != nil {
		if r.options.FailFast {
			r.releaseReport(report)
			return nil, firstFailure(env, failed)
		}
		for _, name := range env.Names() {
			err, ok := failed[name]
			if !ok {
				continue
			}
			report.AddEvalError(schematron.EvalError{
				Stage: schematron.StageVariable,
				Err:   variableFailure(name, err),
			})
			if r.metrics != nil {
				r.metrics.RecordEvalError()
			}
		}
	}

	if err := r.runPatterns(ctx, rn); err != nil {
		r.releaseReport(report)
		return nil, err
	}

	for i := range rn.slots {
		slot := &rn.slots[i]
		report.AddResults(slot.results)
		report.AddOutcomes(slot.outcomes)
		report.AddEvalErrors(slot.errors)
	}

	report.Duration = time.Since(start)
	return report, nil
}

// runPatterns executes every active pattern into its slot.
func (r *Runner) runPatterns(ctx context.Context, rn *run) error {
	patterns := r.selection.Patterns

	if r.options.ParallelPatterns && len(patterns) > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.workers())
		for i, pat := range patterns {
			i, pat := i, pat
			g.Go(func() error {
				return r.runPattern(gctx, rn, pat, &rn.slots[i])
			})
		}
		return g.Wait()
	}

	for i, pat := range patterns {
		if err := r.runPattern(ctx, rn, pat, &rn.slots[i]); err != nil {
			return err
		}
	}
	return nil
}

// runPattern matches and evaluates one pattern. It touches only its own
// slot, never the report.
func (r *Runner) runPattern(ctx context.Context, rn *run, pat *resolver.ResolvedPattern, slot *patternSlot) error {
	if !pat.Documents.IsEmpty() {
		// The pattern is scoped to subordinate documents, not this one.
		if r.logger != nil {
			r.logger.Debug("skipping pattern scoped to other documents",
				slog.String("pattern", pat.ID),
				slog.String("documents", pat.Documents.String()))
		}
		return nil
	}

	start := time.Now()

	scope := query.NewScope(rn.base.Scope())
	pbase := rn.base.WithScope(scope)
	check.BindVariables(scope, pat.Variables, r.parser, pbase)

	mres, err := r.matcher.Match(ctx, pat, rn.doc, scope)
	if err != nil {
		return err
	}

	results, markers, err := r.evaluator.Evaluate(ctx, pat, mres.Bindings, pbase)
	if err != nil {
		return err
	}

	slot.results = results
	slot.outcomes = mres.Outcomes
	slot.errors = append(mres.Errors, markers...)

	elapsed := time.Since(start)
	if r.metrics != nil {
		r.recordPattern(pat, mres, results, len(slot.errors), elapsed)
	}
	if r.logger != nil {
		r.logger.Debug("pattern evaluated",
			slog.String("pattern", pat.ID),
			slog.Int("bindings", len(mres.Bindings)),
			slog.Int("fired", len(results)),
			slog.Duration("elapsed", elapsed))
	}
	return nil
}

// recordPattern folds one pattern's results into the metrics.
func (r *Runner) recordPattern(pat *resolver.ResolvedPattern, mres *match.Result, results []schematron.CheckResult, evalErrors int, elapsed time.Duration) {
	m := r.metrics
	m.RecordPattern(pat.ID, elapsed, len(results))
	m.RecordNodesVisited(mres.NodesVisited)

	for _, b := range mres.Bindings {
		m.RecordRuleMatched()
		for range b.Rule.Checks {
			m.RecordCheckEvaluated()
		}
	}
	for _, o := range mres.Outcomes {
		if o.Kind == schematron.OutcomeSuppressed {
			m.RecordRuleSuppressed()
		}
	}
	for _, res := range results {
		m.RecordCheckFired(res.Kind)
	}
	for i := 0; i < evalErrors; i++ {
		m.RecordEvalError()
	}
}

// workers returns the parallel execution limit.
func (r *Runner) workers() int {
	if r.options.WorkerCount > 0 {
		return r.options.WorkerCount
	}
	return runtime.NumCPU()
}

func (r *Runner) acquireReport() *schematron.Report {
	if r.options.EnablePooling {
		return schematron.AcquireReport()
	}
	return schematron.NewReport()
}

// releaseReport returns a report the caller will never see back to the
// pool.
func (r *Runner) releaseReport(report *schematron.Report) {
	if r.options.EnablePooling {
		report.Release()
	}
}

// firstFailure returns the failure of the first variable, in declaration
// order, that could not be settled.
func firstFailure(env *query.Scope, failed map[string]error) error {
	for _, name := range env.Names() {
		if err, ok := failed[name]; ok {
			return variableFailure(name, err)
		}
	}
	return nil
}

// variableFailure normalizes a settled binding error for reporting. Query
// failures already carry the failing expression; anything else, such as a
// circular reference, is attributed to the variable by name.
func variableFailure(name string, err error) *schematron.ExpressionEvaluationError {
	var ee *schematron.ExpressionEvaluationError
	if errors.As(err, &ee) {
		return ee
	}
	return &schematron.ExpressionEvaluationError{Expr: "$" + name, Cause: err}
}
