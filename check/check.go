// Package check evaluates the checks of matched rules. Every check of a
// bound rule runs, in assembled order: an assert fires when its test is
// false, a report when its test is true. Fired checks become results with
// their message content resolved against the bound node.
package check

import (
	"context"
	"strings"

	schematron "github.com/goschematron/validator"
	"github.com/goschematron/validator/ast"
	"github.com/goschematron/validator/location"
	"github.com/goschematron/validator/match"
	"github.com/goschematron/validator/query"
	"github.com/goschematron/validator/resolver"
)

// Evaluator runs rule checks. It holds no per-document state; one
// evaluator serves any number of Evaluate calls, concurrently.
type Evaluator struct {
	// Parser compiles test, subject, variable, and message expressions.
	Parser query.Parser

	// FailFast aborts on the first expression failure instead of marking
	// it and continuing.
	FailFast bool
}

// Evaluate runs the checks of every binding, in binding order. base must
// be positioned at the document root and carry the pattern-level scope;
// each binding gets a nested rule scope with the rule's own variables.
// Expression failures become markers and evaluation continues, unless
// fail-fast is set, in which case the first failure aborts.
func (e *Evaluator) Evaluate(ctx context.Context, pattern *resolver.ResolvedPattern, bindings []match.Binding, base *query.Context) ([]schematron.CheckResult, []schematron.EvalError, error) {
	var (
		results []schematron.CheckResult
		markers []schematron.EvalError
	)

	for _, b := range bindings {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		ec := e.bindingContext(base, b)
		loc := location.Path(b.Node)

		for _, chk := range b.Rule.Checks {
			result, errs := e.evaluateCheck(ec, pattern, b, chk, loc)
			if len(errs) > 0 {
				if e.FailFast {
					return nil, nil, errs[0].Err
				}
				markers = append(markers, errs...)
			}
			if result != nil {
				results = append(results, *result)
			}
		}
	}

	return results, markers, nil
}

// bindingContext derives the evaluation context for one binding: the bound
// node plus a rule scope nested inside the pattern scope. Query variables
// evaluate lazily against this same context, so they can reference the
// bound node and any enclosing binding.
func (e *Evaluator) bindingContext(base *query.Context, b match.Binding) *query.Context {
	scope := query.NewScope(base.Scope())
	ec := base.WithNode(b.Node).WithScope(scope)
	BindVariables(scope, b.Rule.Variables, e.Parser, ec)
	return ec
}

// BindVariables adds declared variables to scope. Literal values bind
// immediately; query values bind lazily and evaluate against ec at most
// once, on first lookup. A failing query surfaces on lookup as an
// ExpressionEvaluationError naming the variable's query.
func BindVariables(scope *query.Scope, vars []ast.Variable, parser query.Parser, ec *query.Context) {
	for _, v := range vars {
		switch vv := v.(type) {
		case ast.LiteralVariable:
			scope.BindValue(vv.Name, vv.Value)
		case ast.QueryVariable:
			src := vv.Value.String()
			scope.BindLazy(vv.Name, func() (query.Value, error) {
				expr, err := parser.Parse(src)
				if err != nil {
					return nil, evalFailure(src, "", err)
				}
				val, err := expr.Eval(ec)
				if err != nil {
					return nil, evalFailure(src, "", err)
				}
				return val, nil
			})
		}
	}
}

func (e *Evaluator) evaluateCheck(ec *query.Context, pattern *resolver.ResolvedPattern, b match.Binding, chk ast.Check, loc string) (*schematron.CheckResult, []schematron.EvalError) {
	body := chk.Body()
	_, isAssert := chk.(*ast.Assert)

	pass, err := e.evalTest(ec, body.Test.String())
	if err != nil {
		return nil, []schematron.EvalError{{
			Stage:     schematron.StageTest,
			PatternID: pattern.ID,
			RuleID:    b.Rule.Label(),
			CheckID:   body.ID,
			Err:       evalFailure(body.Test.String(), loc, err),
		}}
	}

	fired := pass != isAssert // assert fires on false, report on true
	if !fired {
		return nil, nil
	}

	var markers []schematron.EvalError
	fail := func(stage schematron.EvalStage, expr string, cause error) {
		markers = append(markers, schematron.EvalError{
			Stage:     stage,
			PatternID: pattern.ID,
			RuleID:    b.Rule.Label(),
			CheckID:   body.ID,
			Err:       evalFailure(expr, loc, cause),
		})
	}

	message := e.resolveMessage(ec, b, body, fail)
	subject := e.resolveSubject(ec, b, body, loc, fail)

	builder := schematron.NewCheckResult(schematron.KindReport)
	if isAssert {
		builder = schematron.NewCheckResult(schematron.KindAssert)
	}
	result := builder.
		Test(body.Test.String()).
		CheckID(body.ID).
		Message(message).
		In(pattern.ID).
		ByRule(b.Rule.ID, b.Rule.Context.String()).
		At(loc).
		SubjectAt(subject).
		Flagged(firstNonEmpty(body.Flag, b.Rule.Flag)).
		Role(firstNonEmpty(body.Role, b.Rule.Role)).
		Diagnostics(body.Diagnostics...).
		Properties(body.Properties...).
		Lang(firstNonEmpty(body.XMLLang, b.Rule.XMLLang)).
		Space(firstNonEmpty(body.XMLSpace, b.Rule.XMLSpace)).
		Build()

	return &result, markers
}

func (e *Evaluator) evalTest(ec *query.Context, test string) (bool, error) {
	expr, err := e.Parser.Parse(test)
	if err != nil {
		return false, err
	}
	return expr.EvalBool(ec)
}

// resolveMessage renders the check's mixed content: literal text verbatim,
// value-of parts as the string value of their select, name parts as the
// bound node's name or the name of the first node their path selects. A
// failing part contributes nothing and records a marker. Whitespace is
// collapsed unless the effective xml:space is preserve.
func (e *Evaluator) resolveMessage(ec *query.Context, b match.Binding, body *ast.CheckBody, fail func(schematron.EvalStage, string, error)) string {
	if body.Content.IsEmpty() {
		return ""
	}

	var sb strings.Builder
	for _, part := range body.Content {
		switch p := part.(type) {
		case ast.Text:
			sb.WriteString(string(p))
		case ast.ValueOf:
			expr, err := e.Parser.Parse(p.Select.String())
			if err != nil {
				fail(schematron.StageMessage, p.Select.String(), err)
				continue
			}
			s, err := expr.EvalString(ec)
			if err != nil {
				fail(schematron.StageMessage, p.Select.String(), err)
				continue
			}
			sb.WriteString(s)
		case ast.NameOf:
			name, err := e.resolveName(ec, b, p)
			if err != nil {
				fail(schematron.StageMessage, p.Path.String(), err)
				continue
			}
			sb.WriteString(name)
		}
	}

	msg := sb.String()
	if firstNonEmpty(body.XMLSpace, b.Rule.XMLSpace) == "preserve" {
		return msg
	}
	return strings.Join(strings.Fields(msg), " ")
}

func (e *Evaluator) resolveName(ec *query.Context, b match.Binding, p ast.NameOf) (string, error) {
	if p.Path.IsEmpty() {
		return b.Node.Name(), nil
	}
	expr, err := e.Parser.Parse(p.Path.String())
	if err != nil {
		return "", err
	}
	nodes, err := expr.EvalNodes(ec)
	if err != nil {
		return "", err
	}
	if len(nodes) == 0 {
		return "", nil
	}
	return nodes[0].Name(), nil
}

// resolveSubject evaluates the subject override, check over rule, relative
// to the bound node. No override, an empty selection, or a failure all
// fall back to the bound node's own location.
func (e *Evaluator) resolveSubject(ec *query.Context, b match.Binding, body *ast.CheckBody, loc string, fail func(schematron.EvalStage, string, error)) string {
	subjectQuery := body.Subject
	if subjectQuery.IsEmpty() {
		subjectQuery = b.Rule.Subject
	}
	if subjectQuery.IsEmpty() {
		return loc
	}

	expr, err := e.Parser.Parse(subjectQuery.String())
	if err != nil {
		fail(schematron.StageSubject, subjectQuery.String(), err)
		return loc
	}
	nodes, err := expr.EvalNodes(ec)
	if err != nil {
		fail(schematron.StageSubject, subjectQuery.String(), err)
		return loc
	}
	if len(nodes) == 0 {
		return loc
	}
	return location.Path(nodes[0])
}

func evalFailure(expr, loc string, cause error) *schematron.ExpressionEvaluationError {
	if ee, ok := cause.(*schematron.ExpressionEvaluationError); ok {
		return ee
	}
	return &schematron.ExpressionEvaluationError{Expr: expr, Location: loc, Cause: cause}
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
