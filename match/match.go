// Package match binds document nodes to assembled rules. Within a pattern
// every node binds to at most one rule: rules are tried in declaration
// order and the first whose context selects the node wins. Later rules
// that also select the node are recorded as suppressed, never evaluated.
package match

import (
	"context"

	"github.com/antchfx/xmlquery"

	schematron "github.com/goschematron/validator"
	"github.com/goschematron/validator/location"
	"github.com/goschematron/validator/query"
	"github.com/goschematron/validator/resolver"
)

// Binding pairs one document node with the rule that matched it.
type Binding struct {
	Node query.Node
	Rule *resolver.AssembledRule

	// RuleIndex is the rule's position within its pattern.
	RuleIndex int
}

// Result is the outcome of matching one pattern against one document.
type Result struct {
	// Bindings in document order of the bound nodes.
	Bindings []Binding

	// Outcomes records the fired/suppressed/skipped disposition per
	// (node, rule). Populated only when the matcher tracks outcomes.
	Outcomes []schematron.RuleOutcome

	// Errors holds context expressions that failed to compile or
	// evaluate. The affected rules match nothing.
	Errors []schematron.EvalError

	// NodesVisited counts the candidate nodes walked.
	NodesVisited int
}

// Matcher matches patterns against documents. It holds no per-document
// state; one matcher serves any number of Match calls, concurrently.
type Matcher struct {
	// Parser compiles rule contexts.
	Parser query.Parser

	// FailFast aborts on the first context failure instead of skipping
	// the rule.
	FailFast bool

	// TrackOutcomes records fired, suppressed, and skipped outcomes.
	TrackOutcomes bool
}

// Match evaluates every rule context of pattern against doc and binds each
// candidate node to its first matching rule. Contexts are evaluated once,
// from the document root, with env supplying variable bindings. Candidate
// nodes are the document node, every element in document order, and each
// element's attributes; text, comment, and processing-instruction nodes are
// never candidates.
func (m *Matcher) Match(ctx context.Context, pattern *resolver.ResolvedPattern, doc *xmlquery.Node, env *query.Scope) (*Result, error) {
	res := &Result{}

	sets := make([]map[query.Node]struct{}, len(pattern.Rules))
	root := query.NewContext(doc).WithScope(env)

	for i, rule := range pattern.Rules {
		nodes, err := m.contextNodes(root, rule)
		if err != nil {
			evalErr, ok := err.(*schematron.ExpressionEvaluationError)
			if !ok {
				evalErr = &schematron.ExpressionEvaluationError{Expr: rule.Context.String(), Cause: err}
			}
			if m.FailFast {
				return nil, evalErr
			}
			res.Errors = append(res.Errors, schematron.EvalError{
				Stage:     schematron.StageContext,
				PatternID: pattern.ID,
				RuleID:    rule.Label(),
				Err:       evalErr,
			})
			if m.TrackOutcomes {
				res.Outcomes = append(res.Outcomes, schematron.RuleOutcome{
					Kind:        schematron.OutcomeSkipped,
					PatternID:   pattern.ID,
					RuleID:      rule.Label(),
					RuleContext: rule.Context.String(),
				})
			}
			continue
		}
		sets[i] = nodes
	}

	err := forEachCandidate(ctx, doc, func(n query.Node) {
		res.NodesVisited++
		for i, set := range sets {
			if _, ok := set[n]; !ok {
				continue
			}
			rule := pattern.Rules[i]
			res.Bindings = append(res.Bindings, Binding{Node: n, Rule: rule, RuleIndex: i})
			if m.TrackOutcomes {
				loc := location.Path(n)
				res.Outcomes = append(res.Outcomes, schematron.RuleOutcome{
					Kind:        schematron.OutcomeFired,
					PatternID:   pattern.ID,
					RuleID:      rule.Label(),
					RuleContext: rule.Context.String(),
					Location:    loc,
				})
				for j := i + 1; j < len(sets); j++ {
					if _, also := sets[j][n]; also {
						res.Outcomes = append(res.Outcomes, schematron.RuleOutcome{
							Kind:        schematron.OutcomeSuppressed,
							PatternID:   pattern.ID,
							RuleID:      pattern.Rules[j].Label(),
							RuleContext: pattern.Rules[j].Context.String(),
							Location:    loc,
						})
					}
				}
			}
			return
		}
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}

// contextNodes evaluates one rule's context from the document root into an
// identity set.
func (m *Matcher) contextNodes(root *query.Context, rule *resolver.AssembledRule) (map[query.Node]struct{}, error) {
	expr, err := m.Parser.Parse(NormalizeContext(rule.Context.String()))
	if err != nil {
		return nil, err
	}
	nodes, err := expr.EvalNodes(root)
	if err != nil {
		return nil, err
	}
	set := make(map[query.Node]struct{}, len(nodes))
	for _, n := range nodes {
		set[n] = struct{}{}
	}
	return set, nil
}

// forEachCandidate visits the document node, then elements pre-order with
// each element's attributes directly after it, before its children.
// Namespace declaration attributes are not candidates.
func forEachCandidate(ctx context.Context, doc *xmlquery.Node, visit func(query.Node)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	visit(query.ElementNode(doc))

	var stack []*xmlquery.Node
	pushChildren := func(parent *xmlquery.Node) {
		for c := parent.LastChild; c != nil; c = c.PrevSibling {
			if c.Type == xmlquery.ElementNode {
				stack = append(stack, c)
			}
		}
	}
	pushChildren(doc)

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		el := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		visit(query.ElementNode(el))
		for i, attr := range el.Attr {
			if isNamespaceDecl(attr) {
				continue
			}
			visit(query.AttributeNode(el, i))
		}
		pushChildren(el)
	}
	return nil
}

// isNamespaceDecl reports whether the attribute is an xmlns declaration.
// Those are namespace nodes in the query data model, not attributes.
func isNamespaceDecl(a xmlquery.Attr) bool {
	return a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns")
}
