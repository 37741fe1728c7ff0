package query

import "github.com/antchfx/xmlquery"

// Context carries the inputs of one evaluation: the document root that
// anchors absolute paths, the context node the expression is relative to,
// and the variable scope. Contexts are immutable; the With methods derive
// new ones, so a context can be shared across goroutines freely.
type Context struct {
	root  *xmlquery.Node
	node  Node
	scope *Scope
}

// NewContext returns a context positioned on the document root itself,
// with no variables in scope.
func NewContext(root *xmlquery.Node) *Context {
	return &Context{root: root, node: ElementNode(root)}
}

// WithNode derives a context positioned on n.
func (c *Context) WithNode(n Node) *Context {
	d := *c
	d.node = n
	return &d
}

// WithScope derives a context using s for variable lookups.
func (c *Context) WithScope(s *Scope) *Context {
	d := *c
	d.scope = s
	return &d
}

// Root returns the document root.
func (c *Context) Root() *xmlquery.Node {
	return c.root
}

// Node returns the context node.
func (c *Context) Node() Node {
	return c.node
}

// Scope returns the variable scope, possibly nil.
func (c *Context) Scope() *Scope {
	return c.scope
}
