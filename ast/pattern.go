package ast

// Pattern is the sealed interface over the three pattern forms: concrete
// (directly activatable), abstract (a template, never activated), and
// instance (a reference instantiating an abstract pattern with parameters).
type Pattern interface {
	patternNode()

	// PatternID returns the pattern's declared id, possibly empty.
	PatternID() string
}

// ConcretePattern is a directly activatable pattern.
type ConcretePattern struct {
	ID    string
	Title string

	// Documents optionally restricts the pattern to subordinate documents
	// selected by this query. Empty means the validated document itself.
	Documents Query

	FPI  string
	Icon string
	See  string

	// Variables are pattern-level bindings, visible to this pattern's rules.
	Variables []Variable

	Paragraphs []Paragraph

	// Rules in declaration order. Order is load-bearing: it is the
	// first-match-wins tie-break order.
	Rules []Rule
}

func (*ConcretePattern) patternNode() {}

// PatternID returns the declared id.
func (p *ConcretePattern) PatternID() string { return p.ID }

// AbstractPattern is a pattern template. Its rules may reference $name
// parameters in contexts, tests, variable values, and message text; the
// resolver expands them per instance. Abstract patterns are never active
// themselves.
type AbstractPattern struct {
	ID    string
	Title string

	FPI  string
	Icon string
	See  string

	Variables []Variable

	Paragraphs []Paragraph

	Rules []Rule
}

func (*AbstractPattern) patternNode() {}

// PatternID returns the declared id.
func (p *AbstractPattern) PatternID() string { return p.ID }

// InstancePattern instantiates an abstract pattern with parameter values.
type InstancePattern struct {
	ID string

	// IsA names the abstract pattern being instantiated.
	IsA string

	// Params bind $name placeholders to replacement text.
	Params []PatternParam
}

func (*InstancePattern) patternNode() {}

// PatternID returns the declared id.
func (p *InstancePattern) PatternID() string { return p.ID }

// PatternParam is one name/value binding of an instance pattern.
type PatternParam struct {
	Name  string
	Value string
}
