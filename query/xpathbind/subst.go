package xpathbind

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/goschematron/validator/query"
)

// varRef is one $name occurrence outside string literals.
type varRef struct {
	start, end int
	name       string
}

// scanRefs finds variable references in src. References inside single- or
// double-quoted literals are left alone; a bare $ with no name following
// is left for the compiler to reject.
func scanRefs(src string) []varRef {
	var refs []varRef
	var quote byte
	for i := 0; i < len(src); i++ {
		ch := src[i]
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
		case ch == '\'' || ch == '"':
			quote = ch
		case ch == '$':
			j := i + 1
			for j < len(src) && isNameByte(src[j]) {
				j++
			}
			if j > i+1 {
				refs = append(refs, varRef{start: i, end: j, name: src[i+1 : j]})
				i = j - 1
			}
		}
	}
	return refs
}

func isNameByte(c byte) bool {
	return c == '_' || c == '-' || c == '.' ||
		(c >= '0' && c <= '9') ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z')
}

// substitute rewrites src with every $name replaced by its value from the
// scope, rendered as an XPath literal.
func substitute(src string, refs []varRef, scope *query.Scope) (string, error) {
	if len(refs) == 0 {
		return src, nil
	}
	if scope == nil {
		return "", fmt.Errorf("xpathbind: %q references variables but no scope is set", src)
	}

	var b strings.Builder
	b.Grow(len(src))
	pos := 0
	for _, r := range refs {
		v, err := scope.Lookup(r.name)
		if err != nil {
			return "", err
		}
		lit, err := literal(r.name, v)
		if err != nil {
			return "", err
		}
		b.WriteString(src[pos:r.start])
		b.WriteString(lit)
		pos = r.end
	}
	b.WriteString(src[pos:])
	return b.String(), nil
}

// literal renders a variable value as XPath source text.
func literal(name string, v query.Value) (string, error) {
	switch t := v.(type) {
	case bool:
		if t {
			return "true()", nil
		}
		return "false()", nil
	case float64:
		return numberLiteral(t), nil
	case string:
		return stringLiteral(t), nil
	case query.NodeSet:
		return "", fmt.Errorf("xpathbind: variable $%s holds a node-set and cannot be inlined into a dependent expression", name)
	default:
		return "", fmt.Errorf("xpathbind: variable $%s has unsupported value type %T", name, v)
	}
}

// numberLiteral renders a float64 as source text that evaluates back to
// the same number. Non-finite values have no literal form in XPath 1.0 and
// are produced through arithmetic instead.
func numberLiteral(f float64) string {
	switch {
	case math.IsNaN(f):
		return "number('NaN')"
	case math.IsInf(f, 1):
		return "(1 div 0)"
	case math.IsInf(f, -1):
		return "(-1 div 0)"
	case f < 0 || math.Signbit(f):
		// parenthesized so "2-$x" stays parseable after substitution
		return "(" + strconv.FormatFloat(f, 'f', -1, 64) + ")"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// stringLiteral quotes s as an XPath string. A value containing both quote
// kinds has no direct literal form and is assembled with concat().
func stringLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	var b strings.Builder
	b.WriteString("concat(")
	for i, part := range parts {
		if i > 0 {
			b.WriteString(`, "'", `)
		}
		b.WriteString("'")
		b.WriteString(part)
		b.WriteString("'")
	}
	b.WriteString(")")
	return b.String()
}
