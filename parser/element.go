package parser

import (
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/goschematron/validator/ast"
)

// parsePattern dispatches on the pattern form: abstract="true" builds an
// AbstractPattern, is-a an InstancePattern, anything else a
// ConcretePattern.
func (p *parser) parsePattern(el *xmlquery.Node) (ast.Pattern, error) {
	abstract := attr(el, "abstract") == "true"
	isA := attr(el, "is-a")

	switch {
	case abstract && isA != "":
		return nil, p.structural(el, "pattern cannot be both abstract and is-a")
	case abstract:
		return p.parseAbstractPattern(el)
	case isA != "":
		return p.parseInstancePattern(el, isA)
	default:
		return p.parseConcretePattern(el)
	}
}

func (p *parser) parseConcretePattern(el *xmlquery.Node) (*ast.ConcretePattern, error) {
	pattern := &ast.ConcretePattern{
		ID:        attr(el, "id"),
		Documents: ast.Query(attr(el, "documents")),
		FPI:       attr(el, "fpi"),
		Icon:      attr(el, "icon"),
		See:       attr(el, "see"),
	}

	err := p.parsePatternBody(el, &pattern.Title, &pattern.Rules, &pattern.Variables, &pattern.Paragraphs)
	if err != nil {
		return nil, err
	}
	return pattern, nil
}

func (p *parser) parseAbstractPattern(el *xmlquery.Node) (*ast.AbstractPattern, error) {
	id := attr(el, "id")
	if id == "" {
		return nil, p.structural(el, "abstract pattern requires an id attribute")
	}

	pattern := &ast.AbstractPattern{
		ID:   id,
		FPI:  attr(el, "fpi"),
		Icon: attr(el, "icon"),
		See:  attr(el, "see"),
	}

	err := p.parsePatternBody(el, &pattern.Title, &pattern.Rules, &pattern.Variables, &pattern.Paragraphs)
	if err != nil {
		return nil, err
	}
	return pattern, nil
}

func (p *parser) parseInstancePattern(el *xmlquery.Node, isA string) (*ast.InstancePattern, error) {
	pattern := &ast.InstancePattern{
		ID:  attr(el, "id"),
		IsA: isA,
	}

	var loopErr error
	schematronChildren(el)(func(child *xmlquery.Node) bool {
		switch child.Data {
		case "param":
			name := attr(child, "name")
			if name == "" {
				loopErr = p.structural(child, "param requires a name attribute")
				return false
			}
			pattern.Params = append(pattern.Params, ast.PatternParam{
				Name:  name,
				Value: attr(child, "value"),
			})
		case "rule", "let", "p":
			loopErr = p.structural(child, "an is-a pattern holds only param elements")
			return false
		}
		return true
	})
	if loopErr != nil {
		return nil, loopErr
	}
	return pattern, nil
}

// parsePatternBody fills the shared content of concrete and abstract
// patterns: title, rules, variables, paragraphs, spliced includes.
func (p *parser) parsePatternBody(el *xmlquery.Node, title *string, rules *[]ast.Rule, vars *[]ast.Variable, paras *[]ast.Paragraph) error {
	var loopErr error
	schematronChildren(el)(func(child *xmlquery.Node) bool {
		switch child.Data {
		case "title":
			*title = strings.TrimSpace(child.InnerText())
		case "rule":
			rule, err := p.parseRule(child)
			if err != nil {
				loopErr = err
				return false
			}
			*rules = append(*rules, rule)
		case "let":
			v, err := p.parseVariable(child)
			if err != nil {
				loopErr = err
				return false
			}
			*vars = append(*vars, v)
		case "p":
			*paras = append(*paras, p.parseParagraph(child))
		case "param":
			loopErr = p.structural(child, "param is only allowed in is-a patterns")
			return false
		case "include":
			node, err := p.parseInclude(child)
			if err != nil {
				loopErr = err
				return false
			}
			switch n := node.(type) {
			case ast.Rule:
				*rules = append(*rules, n)
			case ast.Variable:
				*vars = append(*vars, n)
			case ast.Paragraph:
				*paras = append(*paras, n)
			case includedTitle:
				*title = strings.TrimSpace(string(n))
			default:
				loopErr = p.structural(child, "included content is not valid inside pattern")
				return false
			}
		}
		return true
	})
	return loopErr
}

// parseRule dispatches on the rule form. abstract="true" builds an
// AbstractRule, a context attribute a ConcreteRule, neither an
// ExternalRule, which only participates through extends.
func (p *parser) parseRule(el *xmlquery.Node) (ast.Rule, error) {
	abstract := attr(el, "abstract") == "true"
	context := attr(el, "context")

	switch {
	case abstract && context != "":
		return nil, p.structural(el, "abstract rule cannot carry a context")
	case abstract:
		id := attr(el, "id")
		if id == "" {
			return nil, p.structural(el, "abstract rule requires an id attribute")
		}
		rule := &ast.AbstractRule{ID: id}
		if err := p.parseRuleBody(el, &rule.RuleBody); err != nil {
			return nil, err
		}
		return rule, nil
	case context != "":
		rule := &ast.ConcreteRule{ID: attr(el, "id"), Context: ast.Query(context)}
		if err := p.parseRuleBody(el, &rule.RuleBody); err != nil {
			return nil, err
		}
		return rule, nil
	default:
		rule := &ast.ExternalRule{ID: attr(el, "id")}
		if err := p.parseRuleBody(el, &rule.RuleBody); err != nil {
			return nil, err
		}
		return rule, nil
	}
}

// parseExternalRule parses the root rule of an extends href target. The
// context attribute is optional there; a context makes the loaded rule
// matchable as well as extendable.
func (p *parser) parseExternalRule(el *xmlquery.Node) (*ast.ExternalRule, error) {
	rule := &ast.ExternalRule{
		ID:      attr(el, "id"),
		Context: ast.Query(attr(el, "context")),
	}
	if err := p.parseRuleBody(el, &rule.RuleBody); err != nil {
		return nil, err
	}
	return rule, nil
}

// parseRuleBody fills the content shared by all rule forms. Checks keep
// document order; asserts and reports may interleave.
func (p *parser) parseRuleBody(el *xmlquery.Node, body *ast.RuleBody) error {
	body.Flag = attr(el, "flag")
	body.FPI = attr(el, "fpi")
	body.Icon = attr(el, "icon")
	body.Role = attr(el, "role")
	body.See = attr(el, "see")
	body.Subject = ast.Query(attr(el, "subject"))
	body.XMLLang = xmlAttr(el, "lang")
	body.XMLSpace = xmlAttr(el, "space")

	var loopErr error
	schematronChildren(el)(func(child *xmlquery.Node) bool {
		switch child.Data {
		case "assert", "report":
			check, err := p.parseCheck(child)
			if err != nil {
				loopErr = err
				return false
			}
			body.Checks = append(body.Checks, check)
		case "let":
			v, err := p.parseVariable(child)
			if err != nil {
				loopErr = err
				return false
			}
			body.Variables = append(body.Variables, v)
		case "p":
			body.Paragraphs = append(body.Paragraphs, p.parseParagraph(child))
		case "extends":
			ext, err := p.parseExtends(child)
			if err != nil {
				loopErr = err
				return false
			}
			body.Extends = append(body.Extends, ext)
		case "include":
			node, err := p.parseInclude(child)
			if err != nil {
				loopErr = err
				return false
			}
			switch n := node.(type) {
			case ast.Check:
				body.Checks = append(body.Checks, n)
			case ast.Variable:
				body.Variables = append(body.Variables, n)
			case ast.Paragraph:
				body.Paragraphs = append(body.Paragraphs, n)
			case ast.Extends:
				body.Extends = append(body.Extends, n)
			default:
				loopErr = p.structural(child, "included content is not valid inside rule")
				return false
			}
		}
		return true
	})
	return loopErr
}

// parseExtends builds an ExtendsByID from a rule reference or loads the
// target document of an href into an ExtendsExternal.
func (p *parser) parseExtends(el *xmlquery.Node) (ast.Extends, error) {
	if ref := attr(el, "rule"); ref != "" {
		return &ast.ExtendsByID{IDPointer: ref}, nil
	}

	href := attr(el, "href")
	if href == "" {
		return nil, p.structural(el, "extends requires a rule or href attribute")
	}

	root, closeDoc, err := p.loadDocument(el, href)
	if err != nil {
		return nil, err
	}
	defer closeDoc()

	if !schematronElement(root, "rule") {
		return nil, p.structural(el, "extends href must reference a rule document")
	}

	p.depth++
	defer func() { p.depth-- }()

	rule, err := p.parseExternalRule(root)
	if err != nil {
		return nil, err
	}
	return &ast.ExtendsExternal{Rule: rule, Path: href}, nil
}

// parseCheck builds an Assert or Report from el.
func (p *parser) parseCheck(el *xmlquery.Node) (ast.Check, error) {
	test := attr(el, "test")
	if test == "" {
		return nil, p.structural(el, el.Data+" requires a test attribute")
	}

	body := ast.CheckBody{
		ID:       attr(el, "id"),
		Test:     ast.Query(test),
		Subject:  ast.Query(attr(el, "subject")),
		Flag:     attr(el, "flag"),
		FPI:      attr(el, "fpi"),
		Icon:     attr(el, "icon"),
		Role:     attr(el, "role"),
		See:      attr(el, "see"),
		XMLLang:  xmlAttr(el, "lang"),
		XMLSpace: xmlAttr(el, "space"),
	}
	if diagnostics := attr(el, "diagnostics"); diagnostics != "" {
		body.Diagnostics = strings.Fields(diagnostics)
	}
	if properties := attr(el, "properties"); properties != "" {
		body.Properties = strings.Fields(properties)
	}

	content, err := p.parseContent(el)
	if err != nil {
		return nil, err
	}
	body.Content = content

	if el.Data == "assert" {
		return &ast.Assert{CheckBody: body}, nil
	}
	return &ast.Report{CheckBody: body}, nil
}

// parseContent reads a check's mixed message content. value-of and name
// become placeholder parts; emph, span, dir, and foreign markup flatten to
// their text. Whitespace stays raw here; rendering collapses it unless
// xml:space is preserve.
func (p *parser) parseContent(el *xmlquery.Node) (ast.MixedContent, error) {
	var content ast.MixedContent
	for child := el.FirstChild; child != nil; child = child.NextSibling {
		switch child.Type {
		case xmlquery.TextNode, xmlquery.CharDataNode:
			if child.Data != "" {
				content = append(content, ast.Text(child.Data))
			}
		case xmlquery.ElementNode:
			switch {
			case schematronElement(child, "value-of"):
				sel := attr(child, "select")
				if sel == "" {
					return nil, p.structural(child, "value-of requires a select attribute")
				}
				content = append(content, ast.ValueOf{Select: ast.Query(sel)})
			case schematronElement(child, "name"):
				content = append(content, ast.NameOf{Path: ast.Query(attr(child, "path"))})
			default:
				if text := child.InnerText(); text != "" {
					content = append(content, ast.Text(text))
				}
			}
		}
	}
	return content, nil
}

// parseVariable builds a let binding. A value attribute makes a query
// variable; element content makes a literal one.
func (p *parser) parseVariable(el *xmlquery.Node) (ast.Variable, error) {
	name := attr(el, "name")
	if name == "" {
		return nil, p.structural(el, "let requires a name attribute")
	}

	for _, a := range el.Attr {
		if a.Name.Space == "" && a.Name.Local == "value" {
			return ast.QueryVariable{Name: name, Value: ast.Query(a.Value)}, nil
		}
	}
	return ast.LiteralVariable{Name: name, Value: el.InnerText()}, nil
}

func (p *parser) parseParagraph(el *xmlquery.Node) ast.Paragraph {
	return ast.Paragraph{
		ID:      attr(el, "id"),
		Class:   attr(el, "class"),
		Icon:    attr(el, "icon"),
		Content: strings.TrimSpace(el.InnerText()),
	}
}
