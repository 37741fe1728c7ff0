package xpathbind

import (
	"errors"
	"fmt"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/goschematron/validator/query"
)

var _ query.Expr = (*expr)(nil)

// expr is a compiled XPath expression. Variable-free expressions carry
// their compiled form; variable-bearing ones rewrite and compile per
// evaluation through the shared cache.
type expr struct {
	p      *Parser
	source string
	refs   []varRef
	static *compiled
}

// Source returns the original expression text.
func (e *expr) Source() string {
	return e.source
}

// Eval returns the raw result: bool, float64, string, or query.NodeSet.
func (e *expr) Eval(ec *query.Context) (query.Value, error) {
	if ec == nil || ec.Root() == nil {
		return nil, errors.New("xpathbind: evaluation without a document")
	}

	c := e.static
	if c == nil {
		src, err := substitute(e.source, e.refs, ec.Scope())
		if err != nil {
			return nil, err
		}
		c, err = e.p.compile(src)
		if err != nil {
			return nil, err
		}
	}

	nav, err := navigatorAt(ec.Root(), ec.Node())
	if err != nil {
		return nil, err
	}

	switch v := c.evaluate(nav).(type) {
	case bool:
		return v, nil
	case float64:
		return v, nil
	case string:
		return v, nil
	case *xpath.NodeIterator:
		return collect(v), nil
	default:
		return nil, fmt.Errorf("xpathbind: unexpected result type %T for %q", v, e.source)
	}
}

// EvalBool coerces the result with the XPath boolean() rules.
func (e *expr) EvalBool(ec *query.Context) (bool, error) {
	v, err := e.Eval(ec)
	if err != nil {
		return false, err
	}
	return ToBool(v), nil
}

// EvalString coerces the result with the XPath string() rules.
func (e *expr) EvalString(ec *query.Context) (string, error) {
	v, err := e.Eval(ec)
	if err != nil {
		return "", err
	}
	return ToString(v), nil
}

// EvalNodes returns the selected node-set; selecting nothing yields an
// empty set, a non-node-set result is an error.
func (e *expr) EvalNodes(ec *query.Context) (query.NodeSet, error) {
	v, err := e.Eval(ec)
	if err != nil {
		return nil, err
	}
	ns, ok := v.(query.NodeSet)
	if !ok {
		return nil, fmt.Errorf("xpathbind: %q evaluates to %T, not a node-set", e.source, v)
	}
	return ns, nil
}

// collect drains a node iterator into a NodeSet. The iterator's navigator
// is reused as iteration advances, so each position is converted
// immediately.
func collect(it *xpath.NodeIterator) query.NodeSet {
	var out query.NodeSet
	for it.MoveNext() {
		nav, ok := it.Current().(*xmlquery.NodeNavigator)
		if !ok {
			continue
		}
		out = append(out, nodeOf(nav))
	}
	return out
}

// nodeOf converts one navigator position into a node identity. Attribute
// positions have no tree pointer of their own; the owner element plus the
// attribute index identifies them.
func nodeOf(nav *xmlquery.NodeNavigator) query.Node {
	cur := nav.Current()
	if nav.NodeType() == xpath.AttributeNode {
		local, val := nav.LocalName(), nav.Value()
		for i, a := range cur.Attr {
			if a.Name.Local == local && a.Value == val {
				return query.AttributeNode(cur, i)
			}
		}
	}
	return query.ElementNode(cur)
}

// navigatorAt returns a navigator rooted at the document and positioned on
// n. Navigators treat their construction node as the root of every
// absolute path, so positioning must start from the document itself and
// descend.
func navigatorAt(root *xmlquery.Node, n query.Node) (*xmlquery.NodeNavigator, error) {
	nav := xmlquery.CreateXPathNavigator(root)
	target := n.Elem
	if target == nil {
		target = root
	}

	if target != root {
		var chain []*xmlquery.Node
		for cur := target; cur != nil && cur != root; cur = cur.Parent {
			chain = append(chain, cur)
		}
		if len(chain) == 0 || chain[len(chain)-1].Parent != root {
			return nil, errors.New("xpathbind: context node is not in the document tree")
		}
		for i := len(chain) - 1; i >= 0; i-- {
			if !nav.MoveToChild() {
				return nil, errors.New("xpathbind: context node unreachable from root")
			}
			for nav.Current() != chain[i] {
				if !nav.MoveToNext() {
					return nil, errors.New("xpathbind: context node unreachable from root")
				}
			}
		}
	}

	if n.Attr >= 0 {
		for i := 0; i <= n.Attr; i++ {
			if !nav.MoveToNextAttribute() {
				return nil, fmt.Errorf("xpathbind: attribute index %d out of range", n.Attr)
			}
		}
	}
	return nav, nil
}
