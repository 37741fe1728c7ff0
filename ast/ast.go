package ast

// Query is a not-yet-compiled expression in the schema's query language.
// The engine never interprets it; compilation and evaluation happen behind
// the query binding.
type Query string

// String returns the expression text.
func (q Query) String() string {
	return string(q)
}

// IsEmpty returns true when no expression was given.
func (q Query) IsEmpty() bool {
	return q == ""
}

// Schema is the root of the tree. Pattern ids are unique when present, and
// abstract rule ids are unique across the schema; both invariants are the
// parser's to enforce and the engine's to assume.
type Schema struct {
	// Title is the schema's human-readable title.
	Title string

	// ID is the schema's declared id, if any.
	ID string

	// QueryBinding names the query language (queryBinding attribute).
	// Empty means the default binding.
	QueryBinding string

	// DefaultPhase names the phase used when validation requests #DEFAULT.
	// Empty means all patterns.
	DefaultPhase string

	// SchemaVersion is the declared schemaVersion attribute, if any.
	SchemaVersion string

	// FPI, Icon, and See carry the schema's documentation attributes.
	FPI  string
	Icon string
	See  string

	// Namespaces declares prefix bindings used by expressions.
	Namespaces []Namespace

	// Variables are schema-level bindings, outermost in every scope.
	Variables []Variable

	// Phases declares the selectable validation phases.
	Phases []*Phase

	// Patterns in declaration order. Order is load-bearing: it is the
	// execution order for #ALL and #DEFAULT-without-default runs.
	Patterns []Pattern
}

// PhaseByID returns the phase with the given id, or nil.
func (s *Schema) PhaseByID(id string) *Phase {
	for _, p := range s.Phases {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// PatternByID returns the pattern with the given id, or nil.
func (s *Schema) PatternByID(id string) Pattern {
	for _, p := range s.Patterns {
		if p.PatternID() == id {
			return p
		}
	}
	return nil
}

// Namespace binds a prefix to a URI for use in expressions.
type Namespace struct {
	Prefix string
	URI    string
}

// Phase names a selectable subset of patterns. Its Active list holds
// pattern ids in execution order; the #ALL sentinel is allowed as an entry
// and splices all concrete patterns at that position.
type Phase struct {
	ID string

	// Active lists pattern ids in the order they run.
	Active []string

	// Variables are phase-level bindings, visible to every pattern the
	// phase activates.
	Variables []Variable
}

// Paragraph is documentary prose attached to a schema, pattern, or rule.
// The engine carries paragraphs through assembly but never interprets them.
type Paragraph struct {
	ID      string
	Class   string
	Icon    string
	Content string
}
