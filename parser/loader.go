package parser

import (
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/antchfx/xmlquery"
)

// maxIncludeDepth bounds include and extends nesting so reference cycles
// between documents cannot recurse forever.
const maxIncludeDepth = 32

// Loader resolves include and extends hrefs to document content. The
// caller closes the returned reader.
type Loader interface {
	Load(href string) (io.ReadCloser, error)
}

// FileLoader loads hrefs from the filesystem. Relative hrefs resolve
// against Base; an empty Base means the working directory.
type FileLoader struct {
	Base string
}

// Load opens the referenced file.
func (l FileLoader) Load(href string) (io.ReadCloser, error) {
	path := href
	if !filepath.IsAbs(path) && l.Base != "" {
		path = filepath.Join(l.Base, path)
	}
	return os.Open(path)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(href string) (io.ReadCloser, error)

// Load calls f.
func (f LoaderFunc) Load(href string) (io.ReadCloser, error) {
	return f(href)
}

// includedTitle and includedActive carry title text and active pattern
// references through the include dispatch, which otherwise returns AST
// nodes.
type (
	includedTitle  string
	includedActive string
)

// loadDocument resolves href through the loader and parses it, returning
// the root element. closeDoc releases the underlying reader.
func (p *parser) loadDocument(el *xmlquery.Node, href string) (root *xmlquery.Node, closeDoc func(), err error) {
	if p.depth >= maxIncludeDepth {
		return nil, nil, p.structural(el, "reference nesting exceeds "+strconv.Itoa(maxIncludeDepth)+" documents")
	}

	rc, err := p.loader.Load(href)
	if err != nil {
		return nil, nil, &ParseError{
			Element: elementName(el),
			Message: "loading " + href,
			Err:     err,
		}
	}

	doc, err := xmlquery.Parse(rc)
	if err != nil {
		rc.Close()
		return nil, nil, &ParseError{
			Element: elementName(el),
			Message: "parsing " + href,
			Err:     err,
		}
	}

	root = rootElement(doc)
	if root == nil {
		rc.Close()
		return nil, nil, &ParseError{
			Element: elementName(el),
			Message: href + " has no root element",
		}
	}
	return root, func() { rc.Close() }, nil
}

// parseInclude loads the referenced document and parses its root element
// by local name. The caller splices the result where its type fits.
func (p *parser) parseInclude(el *xmlquery.Node) (any, error) {
	href := attr(el, "href")
	if href == "" {
		return nil, p.structural(el, "include requires an href attribute")
	}

	root, closeDoc, err := p.loadDocument(el, href)
	if err != nil {
		return nil, err
	}
	defer closeDoc()

	if !schematronNS(root.NamespaceURI) {
		return nil, p.structural(el, href+" is not a Schematron document")
	}

	p.depth++
	defer func() { p.depth-- }()

	switch root.Data {
	case "pattern":
		return p.parsePattern(root)
	case "rule":
		return p.parseRule(root)
	case "phase":
		return p.parsePhase(root)
	case "let":
		return p.parseVariable(root)
	case "p":
		return p.parseParagraph(root), nil
	case "extends":
		return p.parseExtends(root)
	case "assert", "report":
		return p.parseCheck(root)
	case "ns":
		return p.parseNamespace(root)
	case "title":
		return includedTitle(root.InnerText()), nil
	case "active":
		ref := attr(root, "pattern")
		if ref == "" {
			return nil, p.structural(el, href+" active element has no pattern attribute")
		}
		return includedActive(ref), nil
	default:
		return nil, p.structural(el, href+" holds an unsupported element "+root.Data)
	}
}

