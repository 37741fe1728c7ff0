package resolver

import (
	"sort"
	"strings"

	schematron "github.com/goschematron/validator"
	"github.com/goschematron/validator/ast"
)

// instantiate expands an instance pattern from its abstract template. Every
// $name placeholder in queries, variable values, and message text is
// replaced by the instance's parameter value; the result is a concrete
// pattern under the instance's own id.
func instantiate(schema *ast.Schema, inst *ast.InstancePattern) (*ast.ConcretePattern, error) {
	target, ok := schema.PatternByID(inst.IsA).(*ast.AbstractPattern)
	if !ok {
		return nil, &schematron.UnknownPatternReferenceError{
			Phase:     inst.ID,
			PatternID: inst.IsA,
		}
	}

	sub := newSubstituter(inst.Params)

	out := &ast.ConcretePattern{
		ID:         inst.ID,
		Title:      target.Title,
		FPI:        target.FPI,
		Icon:       target.Icon,
		See:        target.See,
		Variables:  sub.variables(target.Variables),
		Paragraphs: append([]ast.Paragraph(nil), target.Paragraphs...),
		Rules:      make([]ast.Rule, 0, len(target.Rules)),
	}
	for _, rule := range target.Rules {
		out.Rules = append(out.Rules, sub.rule(rule))
	}
	return out, nil
}

// substituter rewrites $name placeholders. Replacement pairs are ordered
// longest name first, so a $typename parameter is never clobbered by a
// shorter $type one.
type substituter struct {
	rep *strings.Replacer
}

func newSubstituter(params []ast.PatternParam) *substituter {
	kept := make([]ast.PatternParam, 0, len(params))
	for _, p := range params {
		if p.Name != "" {
			kept = append(kept, p)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return len(kept[i].Name) > len(kept[j].Name)
	})

	pairs := make([]string, 0, 2*len(kept))
	for _, p := range kept {
		pairs = append(pairs, "$"+p.Name, p.Value)
	}
	return &substituter{rep: strings.NewReplacer(pairs...)}
}

func (s *substituter) text(in string) string {
	return s.rep.Replace(in)
}

func (s *substituter) query(q ast.Query) ast.Query {
	return ast.Query(s.rep.Replace(q.String()))
}

func (s *substituter) rule(rule ast.Rule) ast.Rule {
	switch r := rule.(type) {
	case *ast.ConcreteRule:
		return &ast.ConcreteRule{
			ID:       r.ID,
			Context:  s.query(r.Context),
			RuleBody: s.body(&r.RuleBody),
		}
	case *ast.AbstractRule:
		return &ast.AbstractRule{
			ID:       r.ID,
			RuleBody: s.body(&r.RuleBody),
		}
	case *ast.ExternalRule:
		return &ast.ExternalRule{
			ID:       r.ID,
			Context:  s.query(r.Context),
			RuleBody: s.body(&r.RuleBody),
		}
	}
	return rule
}

func (s *substituter) body(b *ast.RuleBody) ast.RuleBody {
	out := *b
	out.Subject = s.query(b.Subject)
	out.Variables = s.variables(b.Variables)
	out.Paragraphs = append([]ast.Paragraph(nil), b.Paragraphs...)
	out.Extends = append([]ast.Extends(nil), b.Extends...)

	out.Checks = make([]ast.Check, len(b.Checks))
	for i, c := range b.Checks {
		out.Checks[i] = s.check(c)
	}
	return out
}

func (s *substituter) check(c ast.Check) ast.Check {
	switch chk := c.(type) {
	case *ast.Assert:
		return &ast.Assert{CheckBody: s.checkBody(&chk.CheckBody)}
	case *ast.Report:
		return &ast.Report{CheckBody: s.checkBody(&chk.CheckBody)}
	}
	return c
}

func (s *substituter) checkBody(b *ast.CheckBody) ast.CheckBody {
	out := *b
	out.Test = s.query(b.Test)
	out.Subject = s.query(b.Subject)
	out.Content = s.content(b.Content)
	out.Diagnostics = append([]string(nil), b.Diagnostics...)
	out.Properties = append([]string(nil), b.Properties...)
	return out
}

func (s *substituter) content(m ast.MixedContent) ast.MixedContent {
	if len(m) == 0 {
		return nil
	}
	out := make(ast.MixedContent, len(m))
	for i, part := range m {
		switch p := part.(type) {
		case ast.Text:
			out[i] = ast.Text(s.text(string(p)))
		case ast.ValueOf:
			out[i] = ast.ValueOf{Select: s.query(p.Select)}
		case ast.NameOf:
			out[i] = ast.NameOf{Path: s.query(p.Path)}
		default:
			out[i] = part
		}
	}
	return out
}

func (s *substituter) variables(vars []ast.Variable) []ast.Variable {
	if len(vars) == 0 {
		return nil
	}
	out := make([]ast.Variable, len(vars))
	for i, v := range vars {
		switch vv := v.(type) {
		case ast.QueryVariable:
			out[i] = ast.QueryVariable{Name: vv.Name, Value: s.query(vv.Value)}
		case ast.LiteralVariable:
			out[i] = ast.LiteralVariable{Name: vv.Name, Value: s.text(vv.Value)}
		default:
			out[i] = v
		}
	}
	return out
}
