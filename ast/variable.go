package ast

// Variable is the sealed interface over the two let-binding forms.
type Variable interface {
	variableNode()

	// VarName returns the bound name, without any reference sigil.
	VarName() string
}

// QueryVariable binds a name to a query. The query is evaluated lazily, at
// most once per scope, against the node current when the scope was built.
type QueryVariable struct {
	Name  string
	Value Query
}

func (QueryVariable) variableNode() {}

// VarName returns the bound name.
func (v QueryVariable) VarName() string { return v.Name }

// LiteralVariable binds a name to verbatim text. The value is never
// evaluated as a query.
type LiteralVariable struct {
	Name  string
	Value string
}

func (LiteralVariable) variableNode() {}

// VarName returns the bound name.
func (v LiteralVariable) VarName() string { return v.Name }
