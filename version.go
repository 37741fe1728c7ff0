package schematron

import "strings"

// QueryBinding identifies the query language a schema declares through its
// queryBinding attribute.
type QueryBinding string

// Supported query bindings. Every supported binding evaluates through the
// XPath engine; the higher bindings differ only in the function library
// available to expressions.
const (
	// XSLT is the XSLT 1.0 binding, which scopes expressions to XPath 1.0.
	XSLT QueryBinding = "xslt"
	// XSLT2 is the XSLT 2.0 binding.
	XSLT2 QueryBinding = "xslt2"
	// XSLT3 is the XSLT 3.0 binding.
	XSLT3 QueryBinding = "xslt3"
	// XPath is the plain XPath 1.0 binding.
	XPath QueryBinding = "xpath"
	// XPath2 is the plain XPath 2.0 binding.
	XPath2 QueryBinding = "xpath2"
	// XPath3 is the plain XPath 3.0 binding.
	XPath3 QueryBinding = "xpath3"
	// XPath31 is the plain XPath 3.1 binding.
	XPath31 QueryBinding = "xpath31"
)

// DefaultQueryBinding is assumed when a schema omits the queryBinding
// attribute.
const DefaultQueryBinding = XSLT

// String returns the binding identifier.
func (b QueryBinding) String() string {
	return string(b)
}

// Normalize lowercases the binding and maps the empty value to the default.
// Binding identifiers are case-insensitive in schema documents.
func (b QueryBinding) Normalize() QueryBinding {
	if b == "" {
		return DefaultQueryBinding
	}
	return QueryBinding(strings.ToLower(string(b)))
}

// IsValid returns true if this is a recognized query binding.
func (b QueryBinding) IsValid() bool {
	switch b.Normalize() {
	case XSLT, XSLT2, XSLT3, XPath, XPath2, XPath3, XPath31:
		return true
	default:
		return false
	}
}
