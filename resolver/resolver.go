// Package resolver turns a schema tree into matchable form: it folds
// extends chains into assembled rules, instantiates abstract patterns, and
// selects the active pattern set for a validation phase.
//
// Resolution is a pure function of the tree. The same schema resolves to a
// structurally identical Resolution every time, and a failed resolution
// leaves no partial state behind.
package resolver

import (
	"errors"

	schematron "github.com/goschematron/validator"
	"github.com/goschematron/validator/ast"
)

// AssembledRule is a rule with its extends chain folded in: the rule's own
// checks, variables, and paragraphs first, then those of each extended rule
// in declaration order, recursively. Duplicates from diamond chains are
// kept. The carried attributes are always the extending rule's own.
type AssembledRule struct {
	ID      string
	Context ast.Query

	// External marks rules that were loaded from another schema document
	// and are matchable through their own context.
	External bool

	Checks     []ast.Check
	Variables  []ast.Variable
	Paragraphs []ast.Paragraph

	Flag    string
	Subject ast.Query
	Role    string
	See     string
	FPI     string
	Icon    string

	XMLLang  string
	XMLSpace string
}

// Label identifies the rule in errors and outcome records: its id when
// declared, otherwise its context expression.
func (r *AssembledRule) Label() string {
	if r.ID != "" {
		return r.ID
	}
	if !r.Context.IsEmpty() {
		return r.Context.String()
	}
	return "<anonymous>"
}

// ResolvedPattern is an activatable pattern with every matchable rule
// assembled, in declaration order.
type ResolvedPattern struct {
	ID    string
	Title string

	// Documents restricts the pattern to subordinate documents when set.
	Documents ast.Query

	Variables []ast.Variable
	Rules     []*AssembledRule
}

// DroppedRule records a rule removed under partial resolution together
// with the failure that removed it.
type DroppedRule struct {
	PatternID string
	RuleID    string
	Err       error
}

// Resolution is the resolved form of one schema: activatable patterns in
// declaration order with assembled rules. It is built once and read-only
// afterwards; concurrent readers need no locking.
type Resolution struct {
	Schema   *ast.Schema
	Patterns []*ResolvedPattern

	// Dropped lists rules removed under partial resolution. Empty in
	// strict mode.
	Dropped []DroppedRule

	byID map[string]*ResolvedPattern
}

// Pattern returns the resolved pattern with the given id, or nil.
func (r *Resolution) Pattern(id string) *ResolvedPattern {
	if id == "" {
		return nil
	}
	return r.byID[id]
}

// Option adjusts resolution behavior.
type Option func(*config)

type config struct {
	partial bool
}

// WithPartialResolution drops rules whose extends reference cannot be
// resolved instead of failing the whole schema. The dropped rules and
// their errors are recorded on the Resolution. Cyclic extends chains stay
// fatal; a cycle is a structural defect, not a missing piece.
func WithPartialResolution(enabled bool) Option {
	return func(c *config) {
		c.partial = enabled
	}
}

// Resolve assembles every matchable rule of every activatable pattern.
// Abstract patterns are instantiated per instance reference; abstract rules
// are folded into the rules extending them and never emitted themselves.
func Resolve(schema *ast.Schema, opts ...Option) (*Resolution, error) {
	if schema == nil {
		return nil, schematron.ErrNilSchema
	}

	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	res := &Resolution{
		Schema: schema,
		byID:   make(map[string]*ResolvedPattern),
	}

	global := abstractRuleIndex(schema.Patterns)

	for _, pat := range schema.Patterns {
		switch p := pat.(type) {
		case *ast.AbstractPattern:
			// templates are instantiated by instance patterns, never
			// activated directly
			continue

		case *ast.ConcretePattern:
			rp, err := resolvePattern(res, &cfg, p, global)
			if err != nil {
				return nil, err
			}
			appendPattern(res, rp)

		case *ast.InstancePattern:
			expanded, err := instantiate(schema, p)
			if err != nil {
				return nil, err
			}
			// rules expanded from the template shadow the schema-wide
			// index so extends inside the instance see substituted text
			idx := overlayIndex(global, expanded.Rules)
			rp, err := resolvePattern(res, &cfg, expanded, idx)
			if err != nil {
				return nil, err
			}
			appendPattern(res, rp)
		}
	}

	return res, nil
}

func appendPattern(res *Resolution, rp *ResolvedPattern) {
	res.Patterns = append(res.Patterns, rp)
	if rp.ID != "" {
		res.byID[rp.ID] = rp
	}
}

// abstractRuleIndex maps abstract rule ids to their rules across every
// declared pattern. Id uniqueness is the parser's invariant.
func abstractRuleIndex(patterns []ast.Pattern) map[string]ast.Rule {
	idx := make(map[string]ast.Rule)
	for _, pat := range patterns {
		for _, rule := range patternRules(pat) {
			if ar, ok := rule.(*ast.AbstractRule); ok && ar.ID != "" {
				idx[ar.ID] = ar
			}
		}
	}
	return idx
}

func overlayIndex(global map[string]ast.Rule, rules []ast.Rule) map[string]ast.Rule {
	idx := make(map[string]ast.Rule, len(global))
	for id, r := range global {
		idx[id] = r
	}
	for _, rule := range rules {
		if ar, ok := rule.(*ast.AbstractRule); ok && ar.ID != "" {
			idx[ar.ID] = ar
		}
	}
	return idx
}

func patternRules(pat ast.Pattern) []ast.Rule {
	switch p := pat.(type) {
	case *ast.ConcretePattern:
		return p.Rules
	case *ast.AbstractPattern:
		return p.Rules
	}
	return nil
}

func resolvePattern(res *Resolution, cfg *config, pat *ast.ConcretePattern, abstract map[string]ast.Rule) (*ResolvedPattern, error) {
	run := &assembler{
		abstract: abstract,
		state:    make(map[ast.Rule]visitState),
		memo:     make(map[ast.Rule]*ruleParts),
	}

	rp := &ResolvedPattern{
		ID:        pat.ID,
		Title:     pat.Title,
		Documents: pat.Documents,
		Variables: pat.Variables,
	}

	for _, rule := range pat.Rules {
		var (
			context  ast.Query
			external bool
		)
		switch r := rule.(type) {
		case *ast.AbstractRule:
			continue
		case *ast.ConcreteRule:
			context = r.Context
		case *ast.ExternalRule:
			if r.Context.IsEmpty() {
				continue
			}
			context = r.Context
			external = true
		}

		parts, err := run.assemble(rule)
		if err != nil {
			var cyc *schematron.CyclicExtensionError
			if errors.As(err, &cyc) || !cfg.partial {
				return nil, err
			}
			res.Dropped = append(res.Dropped, DroppedRule{
				PatternID: pat.ID,
				RuleID:    ruleLabel(rule),
				Err:       err,
			})
			continue
		}

		body := rule.Body()
		rp.Rules = append(rp.Rules, &AssembledRule{
			ID:         rule.RuleID(),
			Context:    context,
			External:   external,
			Checks:     parts.checks,
			Variables:  parts.variables,
			Paragraphs: parts.paragraphs,
			Flag:       body.Flag,
			Subject:    body.Subject,
			Role:       body.Role,
			See:        body.See,
			FPI:        body.FPI,
			Icon:       body.Icon,
			XMLLang:    body.XMLLang,
			XMLSpace:   body.XMLSpace,
		})
	}

	return rp, nil
}

type visitState uint8

const (
	stateUnvisited visitState = iota
	stateInProgress
	stateDone
)

// ruleParts is the assembled content of one rule, own entries first, then
// each extended rule's in declaration order.
type ruleParts struct {
	checks     []ast.Check
	variables  []ast.Variable
	paragraphs []ast.Paragraph
}

// assembler folds extends chains within one pattern. Memoization is per
// rule value, so diamond chains assemble the shared tail once but still
// contribute its checks through every path.
type assembler struct {
	abstract map[string]ast.Rule
	state    map[ast.Rule]visitState
	memo     map[ast.Rule]*ruleParts
	stack    []ast.Rule
}

func (a *assembler) assemble(rule ast.Rule) (*ruleParts, error) {
	switch a.state[rule] {
	case stateDone:
		return a.memo[rule], nil
	case stateInProgress:
		return nil, a.cycleError(rule)
	}

	a.state[rule] = stateInProgress
	a.stack = append(a.stack, rule)

	parts, err := a.assembleBody(rule)

	a.stack = a.stack[:len(a.stack)-1]
	if err != nil {
		// unwind so an unrelated later rule does not see a stale
		// in-progress marker
		delete(a.state, rule)
		return nil, err
	}

	a.state[rule] = stateDone
	a.memo[rule] = parts
	return parts, nil
}

func (a *assembler) assembleBody(rule ast.Rule) (*ruleParts, error) {
	body := rule.Body()

	parts := &ruleParts{}
	parts.checks = append(parts.checks, body.Checks...)
	parts.variables = append(parts.variables, body.Variables...)
	parts.paragraphs = append(parts.paragraphs, body.Paragraphs...)

	for _, ext := range body.Extends {
		var target ast.Rule
		switch e := ext.(type) {
		case *ast.ExtendsByID:
			t, ok := a.abstract[e.IDPointer]
			if !ok {
				return nil, &schematron.UnresolvedExtensionReferenceError{
					RuleID: ruleLabel(rule),
					Ref:    e.IDPointer,
				}
			}
			target = t
		case *ast.ExtendsExternal:
			target = e.Rule
		default:
			continue
		}

		inherited, err := a.assemble(target)
		if err != nil {
			return nil, err
		}
		parts.checks = append(parts.checks, inherited.checks...)
		parts.variables = append(parts.variables, inherited.variables...)
		parts.paragraphs = append(parts.paragraphs, inherited.paragraphs...)
	}

	return parts, nil
}

// cycleError renders the chain from the first visit of rule back to itself.
func (a *assembler) cycleError(rule ast.Rule) error {
	start := 0
	for i, r := range a.stack {
		if r == rule {
			start = i
			break
		}
	}
	cycle := make([]string, 0, len(a.stack)-start+1)
	for _, r := range a.stack[start:] {
		cycle = append(cycle, ruleLabel(r))
	}
	cycle = append(cycle, ruleLabel(rule))
	return &schematron.CyclicExtensionError{Cycle: cycle}
}

func ruleLabel(rule ast.Rule) string {
	if id := rule.RuleID(); id != "" {
		return id
	}
	switch r := rule.(type) {
	case *ast.ConcreteRule:
		if !r.Context.IsEmpty() {
			return r.Context.String()
		}
	case *ast.ExternalRule:
		if !r.Context.IsEmpty() {
			return r.Context.String()
		}
	}
	return "<anonymous>"
}
