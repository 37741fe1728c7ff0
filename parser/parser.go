// Package parser reads Schematron schema documents (.sch) into the AST.
//
// ParseSchema accepts the ISO namespace, the legacy 1.x namespace, and
// schemas written without a namespace. Elements from other namespaces are
// documentation and are skipped. Include and external-extends references
// are resolved through a pluggable Loader; ParseSchemaFile wires a file
// loader rooted at the schema's directory.
package parser

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/goschematron/validator/ast"
	"github.com/goschematron/validator/location"
	"github.com/goschematron/validator/query"
)

// Schematron namespaces accepted on schema elements.
const (
	// NamespaceISO is the ISO/IEC 19757-3 Schematron namespace.
	NamespaceISO = "http://purl.oclc.org/dsdl/schematron"

	// NamespaceLegacy is the pre-ISO Schematron 1.x namespace.
	NamespaceLegacy = "http://www.ascc.net/xml/schematron"
)

// ParseError reports a structural defect in a schema document: a missing
// required attribute, a misplaced element, or an include that could not be
// resolved. Element names the offending element and Path locates it.
type ParseError struct {
	Element string
	Path    string
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	var sb strings.Builder
	sb.WriteString("schematron: ")
	sb.WriteString(e.Message)
	if e.Element != "" {
		sb.WriteString(" (element ")
		sb.WriteString(e.Element)
		if e.Path != "" {
			sb.WriteString(" at ")
			sb.WriteString(e.Path)
		}
		sb.WriteString(")")
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

// Unwrap returns the wrapped cause, if any.
func (e *ParseError) Unwrap() error { return e.Err }

// Options configures parsing.
type Options struct {
	// Loader resolves include and external-extends hrefs. Defaults to a
	// FileLoader rooted at the working directory.
	Loader Loader
}

// Option mutates parser options.
type Option func(*Options)

// WithLoader sets the loader used for include and extends hrefs.
func WithLoader(l Loader) Option {
	return func(o *Options) {
		o.Loader = l
	}
}

// ParseSchema reads one schema document from r and builds its AST. The
// document's root element must be a Schematron schema element.
func ParseSchema(r io.Reader, opts ...Option) (*ast.Schema, error) {
	options := &Options{Loader: FileLoader{}}
	for _, opt := range opts {
		opt(options)
	}

	doc, err := xmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("schematron: parsing schema document: %w", err)
	}

	root := rootElement(doc)
	if root == nil {
		return nil, &ParseError{Message: "document has no root element"}
	}
	if !schematronElement(root, "schema") {
		return nil, &ParseError{
			Element: elementName(root),
			Message: "root element must be a Schematron schema",
		}
	}

	p := &parser{loader: options.Loader}
	return p.parseSchema(root)
}

// ParseSchemaFile reads the schema at path. Relative include and extends
// hrefs resolve against the schema's directory unless a WithLoader option
// overrides the loader.
func ParseSchemaFile(path string, opts ...Option) (*ast.Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("schematron: opening schema: %w", err)
	}
	defer f.Close()

	merged := make([]Option, 0, len(opts)+1)
	merged = append(merged, WithLoader(FileLoader{Base: filepath.Dir(path)}))
	merged = append(merged, opts...)
	return ParseSchema(f, merged...)
}

// parser carries parse state: the href loader and the current include
// nesting depth.
type parser struct {
	loader Loader
	depth  int
}

func (p *parser) parseSchema(el *xmlquery.Node) (*ast.Schema, error) {
	schema := &ast.Schema{
		ID:            attr(el, "id"),
		QueryBinding:  attr(el, "queryBinding"),
		DefaultPhase:  attr(el, "defaultPhase"),
		SchemaVersion: attr(el, "schemaVersion"),
		FPI:           attr(el, "fpi"),
		Icon:          attr(el, "icon"),
		See:           attr(el, "see"),
	}

	var loopErr error
	schematronChildren(el)(func(child *xmlquery.Node) bool {
		switch child.Data {
		case "title":
			schema.Title = strings.TrimSpace(child.InnerText())
		case "ns":
			ns, err := p.parseNamespace(child)
			if err != nil {
				loopErr = err
				return false
			}
			schema.Namespaces = append(schema.Namespaces, ns)
		case "let":
			v, err := p.parseVariable(child)
			if err != nil {
				loopErr = err
				return false
			}
			schema.Variables = append(schema.Variables, v)
		case "phase":
			phase, err := p.parsePhase(child)
			if err != nil {
				loopErr = err
				return false
			}
			schema.Phases = append(schema.Phases, phase)
		case "pattern":
			pattern, err := p.parsePattern(child)
			if err != nil {
				loopErr = err
				return false
			}
			schema.Patterns = append(schema.Patterns, pattern)
		case "include":
			node, err := p.parseInclude(child)
			if err != nil {
				loopErr = err
				return false
			}
			switch n := node.(type) {
			case ast.Pattern:
				schema.Patterns = append(schema.Patterns, n)
			case *ast.Phase:
				schema.Phases = append(schema.Phases, n)
			case ast.Variable:
				schema.Variables = append(schema.Variables, n)
			case ast.Namespace:
				schema.Namespaces = append(schema.Namespaces, n)
			case includedTitle:
				schema.Title = strings.TrimSpace(string(n))
			default:
				loopErr = p.structural(child, "included content is not valid inside schema")
				return false
			}
		}
		// p, diagnostics, and properties declarations are documentation;
		// checks carry diagnostic and property ids unresolved.
		return true
	})
	if loopErr != nil {
		return nil, loopErr
	}

	if err := validateIDs(schema); err != nil {
		return nil, err
	}
	return schema, nil
}

// validateIDs enforces the schema-wide id invariants resolution builds on:
// pattern ids are unique when present, and abstract rule ids are unique
// across the whole schema since they are extension targets.
func validateIDs(schema *ast.Schema) error {
	patterns := make(map[string]bool)
	rules := make(map[string]bool)
	for _, pat := range schema.Patterns {
		if id := pat.PatternID(); id != "" {
			if patterns[id] {
				return &ParseError{Message: fmt.Sprintf("duplicate pattern id %q", id)}
			}
			patterns[id] = true
		}
		for _, rule := range patternRules(pat) {
			ar, ok := rule.(*ast.AbstractRule)
			if !ok {
				continue
			}
			if rules[ar.ID] {
				return &ParseError{Message: fmt.Sprintf("duplicate abstract rule id %q", ar.ID)}
			}
			rules[ar.ID] = true
		}
	}
	return nil
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

func (p *parser) parseNamespace(el *xmlquery.Node) (ast.Namespace, error) {
	prefix := attr(el, "prefix")
	uri := attr(el, "uri")
	if prefix == "" || uri == "" {
		return ast.Namespace{}, p.structural(el, "ns requires prefix and uri attributes")
	}
	return ast.Namespace{Prefix: prefix, URI: uri}, nil
}

func (p *parser) parsePhase(el *xmlquery.Node) (*ast.Phase, error) {
	id := attr(el, "id")
	if id == "" {
		return nil, p.structural(el, "phase requires an id attribute")
	}

	phase := &ast.Phase{ID: id}
	var loopErr error
	schematronChildren(el)(func(child *xmlquery.Node) bool {
		switch child.Data {
		case "active":
			ref := attr(child, "pattern")
			if ref == "" {
				loopErr = p.structural(child, "active requires a pattern attribute")
				return false
			}
			phase.Active = append(phase.Active, ref)
		case "let":
			v, err := p.parseVariable(child)
			if err != nil {
				loopErr = err
				return false
			}
			phase.Variables = append(phase.Variables, v)
		case "include":
			node, err := p.parseInclude(child)
			if err != nil {
				loopErr = err
				return false
			}
			switch n := node.(type) {
			case includedActive:
				phase.Active = append(phase.Active, string(n))
			case ast.Variable:
				phase.Variables = append(phase.Variables, n)
			default:
				loopErr = p.structural(child, "included content is not valid inside phase")
				return false
			}
		}
		return true
	})
	if loopErr != nil {
		return nil, loopErr
	}
	return phase, nil
}

// structural builds a ParseError naming el and its location.
func (p *parser) structural(el *xmlquery.Node, msg string) error {
	return &ParseError{
		Element: elementName(el),
		Path:    location.Path(query.ElementNode(el)),
		Message: msg,
	}
}

// schematronNS reports whether uri is one of the accepted schema
// namespaces. Schemas written without namespaces are accepted too.
func schematronNS(uri string) bool {
	return uri == NamespaceISO || uri == NamespaceLegacy || uri == ""
}

// schematronElement reports whether n is a schema element with the given
// local name.
func schematronElement(n *xmlquery.Node, local string) bool {
	return n.Type == xmlquery.ElementNode && n.Data == local && schematronNS(n.NamespaceURI)
}

// schematronChildren iterates el's child elements in document order,
// skipping foreign-namespace documentation.
func schematronChildren(el *xmlquery.Node) func(yield func(*xmlquery.Node) bool) {
	return func(yield func(*xmlquery.Node) bool) {
		for child := el.FirstChild; child != nil; child = child.NextSibling {
			if child.Type != xmlquery.ElementNode || !schematronNS(child.NamespaceURI) {
				continue
			}
			if !yield(child) {
				return
			}
		}
	}
}

// rootElement returns the document's root element, nil if there is none.
func rootElement(doc *xmlquery.Node) *xmlquery.Node {
	for child := doc.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			return child
		}
	}
	return nil
}

// attr returns the value of the named unprefixed attribute, "" if absent.
func attr(n *xmlquery.Node, local string) string {
	for _, a := range n.Attr {
		if a.Name.Space == "" && a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// xmlAttr returns the value of the named xml-prefixed attribute, such as
// xml:lang or xml:space. The decoder reports the reserved prefix either
// verbatim or as the XML namespace URI depending on version.
func xmlAttr(n *xmlquery.Node, local string) string {
	const xmlNamespace = "http://www.w3.org/XML/1998/namespace"
	for _, a := range n.Attr {
		if (a.Name.Space == "xml" || a.Name.Space == xmlNamespace) && a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// elementName returns n's qualified name.
func elementName(n *xmlquery.Node) string {
	if n.Prefix != "" {
		return n.Prefix + ":" + n.Data
	}
	return n.Data
}
