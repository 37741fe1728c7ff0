package xpathbind

import (
	"math"
	"strconv"

	"github.com/goschematron/validator/query"
)

// ToBool applies the XPath boolean() rules to a raw result: a node-set is
// true when non-empty, a number when non-zero and not NaN, a string when
// non-empty.
func ToBool(v query.Value) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0 && !math.IsNaN(t)
	case string:
		return t != ""
	case query.NodeSet:
		return len(t) > 0
	default:
		return false
	}
}

// ToString applies the XPath string() rules to a raw result: a node-set
// yields its first node's string value, numbers format without a trailing
// decimal point when integral.
func ToString(v query.Value) string {
	switch t := v.(type) {
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		return formatNumber(t)
	case string:
		return t
	case query.NodeSet:
		if len(t) == 0 {
			return ""
		}
		return t[0].Value()
	default:
		return ""
	}
}

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
