// Package engine provides the validation facade: build a Validator from a
// schema once, then validate any number of documents against it.
package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/antchfx/xmlquery"
	"github.com/expr-lang/expr"

	schematron "github.com/goschematron/validator"
	"github.com/goschematron/validator/ast"
	"github.com/goschematron/validator/match"
	"github.com/goschematron/validator/pipeline"
	"github.com/goschematron/validator/query"
	"github.com/goschematron/validator/query/xpathbind"
	"github.com/goschematron/validator/resolver"
	"github.com/goschematron/validator/stream"
	"github.com/goschematron/validator/worker"
)

// Validator validates XML documents against one schema, scoped to one
// phase. Construction resolves the schema once; validation reuses the
// resolution, the compiled-expression cache, and the pipeline runner. A
// Validator is safe for concurrent use.
type Validator struct {
	// Configuration
	schema  *ast.Schema
	options *schematron.Options

	// Resolved once at construction
	resolution *resolver.Resolution
	selection  *resolver.PhaseSelection

	// Query capability shared by every run
	parser query.Parser

	// Pipeline
	runner *pipeline.Runner

	// Observability
	metrics *schematron.Metrics
	logger  *slog.Logger

	// closed rejects new validations after Close
	closed atomic.Bool
}

// New creates a Validator for the given schema. The schema is resolved
// eagerly: extension assembly, phase selection, and, when enabled, pattern
// filtering and query precompilation all happen here, so construction
// errors name schema problems and Validate errors name document problems.
func New(ctx context.Context, schema *ast.Schema, opts ...schematron.Option) (*Validator, error) {
	if schema == nil {
		return nil, schematron.ErrNilSchema
	}

	options := schematron.DefaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	binding := schematron.QueryBinding(schema.QueryBinding).Normalize()
	if !binding.IsValid() {
		return nil, fmt.Errorf("schematron: unsupported query binding %q", schema.QueryBinding)
	}

	v := &Validator{
		schema:  schema,
		options: options,
		logger:  options.Logger,
	}
	if options.CollectMetrics {
		v.metrics = schematron.NewMetrics()
	}

	parserOpts := []xpathbind.Option{
		xpathbind.WithCacheSize(options.ExpressionCacheSize),
	}
	if ns := namespaceMap(schema.Namespaces); ns != nil {
		parserOpts = append(parserOpts, xpathbind.WithNamespaces(ns))
	}
	if v.metrics != nil {
		parserOpts = append(parserOpts, xpathbind.WithRecorder(v.metrics))
	}
	v.parser = xpathbind.New(parserOpts...)

	resolution, err := resolver.Resolve(schema,
		resolver.WithPartialResolution(options.PartialResolution))
	if err != nil {
		return nil, err
	}
	v.resolution = resolution

	selection, err := resolver.SelectPhase(schema, resolution, options.Phase)
	if err != nil {
		return nil, err
	}

	if options.PatternFilter != "" {
		selection.Patterns, err = filterPatterns(selection.Patterns, options.PatternFilter)
		if err != nil {
			return nil, err
		}
	}

	if options.PrecompileQueries {
		if err := v.precompile(ctx, selection); err != nil {
			return nil, err
		}
	}

	v.selection = selection
	v.runner = pipeline.NewRunner(selection, v.parser, options)
	v.runner.SetSchemaTitle(schema.Title)
	v.runner.SetMetrics(v.metrics)

	if v.logger != nil {
		v.logger.Debug("validator ready",
			slog.String("phase", selection.Phase),
			slog.Int("patterns", len(selection.Patterns)),
			slog.Int("droppedRules", len(resolution.Dropped)))
	}

	return v, nil
}

// Validate parses an XML document and validates it. The caller owns the
// returned report.
func (v *Validator) Validate(ctx context.Context, document []byte) (*schematron.Report, error) {
	return v.ValidateReader(ctx, bytes.NewReader(document))
}

// ValidateReader parses an XML document from r and validates it.
func (v *Validator) ValidateReader(ctx context.Context, r io.Reader) (*schematron.Report, error) {
	if v.closed.Load() {
		return nil, schematron.ErrValidatorClosed
	}

	start := time.Now()
	doc, err := xmlquery.Parse(r)
	if err != nil {
		if v.metrics != nil {
			v.metrics.RecordValidation(time.Since(start), false)
		}
		return nil, fmt.Errorf("schematron: parsing document: %w", err)
	}

	return v.run(ctx, doc, start)
}

// ValidateDocument validates an already parsed document. The document is
// not mutated and may be shared across concurrent calls.
func (v *Validator) ValidateDocument(ctx context.Context, doc *xmlquery.Node) (*schematron.Report, error) {
	if v.closed.Load() {
		return nil, schematron.ErrValidatorClosed
	}
	if doc == nil {
		return nil, schematron.ErrNilDocument
	}
	return v.run(ctx, doc, time.Now())
}

func (v *Validator) run(ctx context.Context, doc *xmlquery.Node, start time.Time) (*schematron.Report, error) {
	report, err := v.runner.Run(ctx, doc)
	if err != nil {
		if v.metrics != nil {
			v.metrics.RecordValidation(time.Since(start), false)
		}
		return nil, err
	}
	if v.metrics != nil {
		v.metrics.RecordValidation(time.Since(start), report.Valid)
	}
	return report, nil
}

// ValidateBatch validates multiple documents in parallel and returns one
// report per input, in input order. A document that cannot be validated,
// for example because it does not parse, gets a report carrying a parse
// marker instead of failing the batch.
func (v *Validator) ValidateBatch(ctx context.Context, documents [][]byte) []*schematron.Report {
	batch := worker.Run(ctx, v.Validate, documents, v.options.WorkerCount)

	reports := make([]*schematron.Report, len(documents))
	for i, result := range batch.Results {
		switch {
		case result == nil:
			reports[i] = v.failureReport(ctx.Err())
		case result.Err != nil:
			reports[i] = v.failureReport(result.Err)
		default:
			reports[i] = result.Report
		}
	}
	return reports
}

// failureReport wraps a hard validation failure so batch callers get one
// report per input. The report is incomplete, never pooled, and carries
// the failure as a parse-stage marker.
func (v *Validator) failureReport(err error) *schematron.Report {
	report := schematron.NewReport()
	report.SchemaTitle = v.schema.Title
	report.Phase = v.selection.Phase

	var ee *schematron.ExpressionEvaluationError
	if !errors.As(err, &ee) {
		ee = &schematron.ExpressionEvaluationError{Expr: "document", Cause: err}
	}
	report.AddEvalError(schematron.EvalError{Stage: schematron.StageParse, Err: ee})
	return report
}

// ValidateStream validates documents as they arrive on the channel,
// emitting one result per document in input order. The result channel
// closes when the input closes or ctx is cancelled.
func (v *Validator) ValidateStream(ctx context.Context, documents <-chan stream.Document) <-chan *stream.Result {
	sv := stream.NewValidator(v.Validate).
		WithWorkerCount(v.options.WorkerCount).
		WithBufferSize(100)

	return sv.ValidateStream(ctx, documents)
}

// ValidateStreamParallel validates streamed documents on the configured
// worker count while still emitting results in input order.
func (v *Validator) ValidateStreamParallel(ctx context.Context, documents <-chan stream.Document) <-chan *stream.Result {
	sv := stream.NewValidator(v.Validate).
		WithWorkerCount(v.options.WorkerCount).
		WithBufferSize(100)

	return sv.ValidateStreamParallel(ctx, documents)
}

// AggregateStreamResults drains a result stream into a summary.
func AggregateStreamResults(results <-chan *stream.Result) *stream.Summary {
	return stream.Aggregate(results)
}

// Close marks the validator closed. Validations in flight finish; new
// calls fail with ErrValidatorClosed.
func (v *Validator) Close() error {
	v.closed.Store(true)
	return nil
}

// Schema returns the schema the validator was built from.
func (v *Validator) Schema() *ast.Schema {
	return v.schema
}

// Phase returns the phase the validator is scoped to, after sentinel
// resolution.
func (v *Validator) Phase() string {
	return v.selection.Phase
}

// Options returns the validator's options.
func (v *Validator) Options() *schematron.Options {
	return v.options
}

// Metrics returns the validator's metrics collector, nil unless
// collection was enabled.
func (v *Validator) Metrics() *schematron.Metrics {
	return v.metrics
}

// Dropped lists rules dropped by partial resolution.
func (v *Validator) Dropped() []resolver.DroppedRule {
	return v.resolution.Dropped
}

// ActivePatterns returns the ids of the patterns validation runs, in
// execution order.
func (v *Validator) ActivePatterns() []string {
	ids := make([]string, len(v.selection.Patterns))
	for i, pat := range v.selection.Patterns {
		ids[i] = pat.ID
	}
	return ids
}

// patternEnv is the expression environment a pattern filter evaluates
// against, one pattern at a time.
type patternEnv struct {
	ID    string `expr:"id"`
	Title string `expr:"title"`
	Rules int    `expr:"rules"`
}

// filterPatterns keeps the patterns the filter expression accepts,
// preserving execution order.
func filterPatterns(patterns []*resolver.ResolvedPattern, filter string) ([]*resolver.ResolvedPattern, error) {
	program, err := expr.Compile(filter, expr.Env(patternEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("schematron: compiling pattern filter: %w", err)
	}

	kept := make([]*resolver.ResolvedPattern, 0, len(patterns))
	for _, pat := range patterns {
		out, err := expr.Run(program, patternEnv{
			ID:    pat.ID,
			Title: pat.Title,
			Rules: len(pat.Rules),
		})
		if err != nil {
			return nil, fmt.Errorf("schematron: pattern filter on %q: %w", pat.ID, err)
		}
		if out.(bool) {
			kept = append(kept, pat)
		}
	}
	return kept, nil
}

// precompile parses every expression of the selection so the first
// validation pays no compile cost and schema-wide syntax errors surface at
// construction. Expressions referencing variables compile lazily at
// evaluation time and are skipped here.
func (v *Validator) precompile(ctx context.Context, selection *resolver.PhaseSelection) error {
	compile := func(q ast.Query) error {
		if q.IsEmpty() {
			return nil
		}
		_, err := v.parser.Parse(q.String())
		return err
	}
	compileVars := func(vars []ast.Variable) error {
		for _, decl := range vars {
			if qv, ok := decl.(ast.QueryVariable); ok {
				if err := compile(qv.Value); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if err := compileVars(selection.Variables); err != nil {
		return err
	}
	for _, pat := range selection.Patterns {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := compileVars(pat.Variables); err != nil {
			return err
		}
		for _, rule := range pat.Rules {
			if err := compile(ast.Query(match.NormalizeContext(rule.Context.String()))); err != nil {
				return err
			}
			if err := compile(rule.Subject); err != nil {
				return err
			}
			if err := compileVars(rule.Variables); err != nil {
				return err
			}
			for _, chk := range rule.Checks {
				body := chk.Body()
				if err := compile(body.Test); err != nil {
					return err
				}
				if err := compile(body.Subject); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// namespaceMap flattens declared namespaces into the prefix map the query
// parser expects. Later declarations of the same prefix win.
func namespaceMap(decls []ast.Namespace) map[string]string {
	if len(decls) == 0 {
		return nil
	}
	ns := make(map[string]string, len(decls))
	for _, d := range decls {
		ns[d.Prefix] = d.URI
	}
	return ns
}
