package query

import "github.com/antchfx/xmlquery"

// Node identifies one document node. Elements, the document itself, and
// text nodes are identified by their tree pointer. Attributes have no
// stable pointer of their own in the document model, so an attribute is
// identified by its owner element plus its index in the owner's attribute
// list. Node is comparable; two Nodes are equal exactly when they identify
// the same document node.
type Node struct {
	// Elem is the tree node: the element, document, or text node itself,
	// or the owner element when the node is an attribute.
	Elem *xmlquery.Node

	// Attr is the attribute index within Elem's attribute list, or -1 when
	// the node is Elem itself.
	Attr int
}

// ElementNode identifies n itself.
func ElementNode(n *xmlquery.Node) Node {
	return Node{Elem: n, Attr: -1}
}

// AttributeNode identifies the idx-th attribute of owner.
func AttributeNode(owner *xmlquery.Node, idx int) Node {
	return Node{Elem: owner, Attr: idx}
}

// IsZero reports whether the Node identifies nothing.
func (n Node) IsZero() bool {
	return n.Elem == nil
}

// IsAttribute reports whether the Node identifies an attribute.
func (n Node) IsAttribute() bool {
	return n.Elem != nil && n.Attr >= 0 && n.Attr < len(n.Elem.Attr)
}

// Name returns the node's qualified name: prefix:local for prefixed
// elements and attributes, the local name otherwise, and the empty string
// for the document node and text nodes.
func (n Node) Name() string {
	if n.Elem == nil {
		return ""
	}
	if n.IsAttribute() {
		a := n.Elem.Attr[n.Attr]
		if a.Name.Space != "" {
			return a.Name.Space + ":" + a.Name.Local
		}
		return a.Name.Local
	}
	if n.Elem.Type != xmlquery.ElementNode {
		return ""
	}
	if n.Elem.Prefix != "" {
		return n.Elem.Prefix + ":" + n.Elem.Data
	}
	return n.Elem.Data
}

// Value returns the node's string value: the attribute value for
// attributes, the concatenated text content otherwise.
func (n Node) Value() string {
	if n.Elem == nil {
		return ""
	}
	if n.IsAttribute() {
		return n.Elem.Attr[n.Attr].Value
	}
	return n.Elem.InnerText()
}

// NodeSet is an ordered sequence of nodes in document order.
type NodeSet []Node

// Value is the result of evaluating an expression: bool, float64, string,
// or NodeSet. Coercion between them follows the binding's own rules.
type Value any

// Parser compiles expression text. Implementations are safe for concurrent
// use and are expected to cache compiled expressions.
type Parser interface {
	// Parse compiles source. Expressions that reference variables may
	// defer parts of compilation until evaluation, when the variable
	// values are known.
	Parse(source string) (Expr, error)

	// WithNamespaces returns a parser that compiles expressions under the
	// given prefix bindings. The receiver is unchanged.
	WithNamespaces(ns map[string]string) Parser
}

// Expr is a compiled expression, evaluated under a Context.
type Expr interface {
	// Source returns the expression text the Expr was compiled from.
	Source() string

	// Eval returns the raw result.
	Eval(ec *Context) (Value, error)

	// EvalBool coerces the result to a boolean under the binding's rules.
	EvalBool(ec *Context) (bool, error)

	// EvalString coerces the result to a string under the binding's rules.
	EvalString(ec *Context) (string, error)

	// EvalNodes returns the selected node-set. The result is empty, never
	// an error, when the expression selects nothing; it is an error when
	// the result is not a node-set at all.
	EvalNodes(ec *Context) (NodeSet, error)
}
