// Package location renders XPath location paths for nodes of a parsed
// document, such as /catalog[1]/item[2]/@id. Paths identify the exact
// node a validation finding refers to, so element steps always carry a
// 1-based position even when the name is unambiguous.
package location

import (
	"strconv"
	"sync"

	"github.com/antchfx/xmlquery"

	"github.com/goschematron/validator/query"
)

// builder accumulates path segments in a reusable byte buffer.
type builder struct {
	buf []byte
}

var builderPool = sync.Pool{
	New: func() any {
		return &builder{
			buf: make([]byte, 0, 256),
		}
	},
}

func acquireBuilder() *builder {
	b := builderPool.Get().(*builder)
	b.buf = b.buf[:0]
	return b
}

func (b *builder) release() {
	// oversized buffers are dropped instead of pinned in the pool
	if cap(b.buf) <= 4096 {
		builderPool.Put(b)
	}
}

func (b *builder) writeString(s string) {
	b.buf = append(b.buf, s...)
}

func (b *builder) writeByte(c byte) {
	b.buf = append(b.buf, c)
}

func (b *builder) writeIndex(index int) {
	b.buf = append(b.buf, '[')
	b.buf = strconv.AppendInt(b.buf, int64(index), 10)
	b.buf = append(b.buf, ']')
}

func (b *builder) string() string {
	return string(b.buf)
}

// Path returns the location path of n. The document node maps to "/",
// attributes to ownerPath/@name, text and comment nodes to the node-test
// steps text() and comment(). A zero node yields the empty string.
func Path(n query.Node) string {
	if n.IsZero() {
		return ""
	}

	b := acquireBuilder()
	defer b.release()

	writeElementPath(b, n.Elem)
	if n.IsAttribute() && n.Attr < len(n.Elem.Attr) {
		b.writeByte('/')
		b.writeByte('@')
		b.writeString(attrName(n.Elem.Attr[n.Attr]))
	}
	return b.string()
}

// writeElementPath writes the path of an element, text, or comment node by
// walking its ancestor chain down from the document.
func writeElementPath(b *builder, n *xmlquery.Node) {
	if n.Type == xmlquery.DocumentNode {
		b.writeByte('/')
		return
	}

	var chain []*xmlquery.Node
	for cur := n; cur != nil && cur.Type != xmlquery.DocumentNode; cur = cur.Parent {
		chain = append(chain, cur)
	}

	for i := len(chain) - 1; i >= 0; i-- {
		b.writeByte('/')
		writeStep(b, chain[i])
	}
}

// writeStep writes one step, name[pos], where pos counts preceding siblings
// that the same node-test selects.
func writeStep(b *builder, n *xmlquery.Node) {
	switch n.Type {
	case xmlquery.TextNode, xmlquery.CharDataNode:
		b.writeString("text()")
		b.writeIndex(siblingIndex(n))
	case xmlquery.CommentNode:
		b.writeString("comment()")
		b.writeIndex(siblingIndex(n))
	default:
		if n.Prefix != "" {
			b.writeString(n.Prefix)
			b.writeByte(':')
		}
		b.writeString(n.Data)
		b.writeIndex(siblingIndex(n))
	}
}

// siblingIndex returns the 1-based position of n among preceding siblings
// matched by the same step.
func siblingIndex(n *xmlquery.Node) int {
	pos := 1
	for sib := n.PrevSibling; sib != nil; sib = sib.PrevSibling {
		if sameStep(n, sib) {
			pos++
		}
	}
	return pos
}

func sameStep(n, sib *xmlquery.Node) bool {
	switch n.Type {
	case xmlquery.TextNode, xmlquery.CharDataNode:
		return sib.Type == xmlquery.TextNode || sib.Type == xmlquery.CharDataNode
	case xmlquery.CommentNode:
		return sib.Type == xmlquery.CommentNode
	default:
		return sib.Type == n.Type && sib.Data == n.Data && sib.Prefix == n.Prefix
	}
}

func attrName(a xmlquery.Attr) string {
	if a.Name.Space != "" {
		return a.Name.Space + ":" + a.Name.Local
	}
	return a.Name.Local
}
