package ast

// Check is the sealed interface over the two check forms. An Assert fires
// when its test evaluates to false; a Report fires when its test evaluates
// to true. Firing polarity is the only difference.
type Check interface {
	checkNode()

	// Body returns the check's content. Never nil.
	Body() *CheckBody
}

// CheckBody is the content shared by asserts and reports.
type CheckBody struct {
	ID string

	// Test is the check's test expression, evaluated against the node the
	// enclosing rule bound.
	Test Query

	// Content is the check's message: mixed literal text and query-driven
	// placeholders, resolved only when the check fires.
	Content MixedContent

	// Diagnostics and Properties reference diagnostic and property
	// declarations by id. The engine carries the ids through to fired
	// results without resolving them.
	Diagnostics []string
	Properties  []string

	// Subject optionally redirects the fired result to a node selected
	// relative to the bound node, overriding the rule's subject.
	Subject Query

	// Flag names the flag this check activates when it fires. Empty defers
	// to the rule's flag.
	Flag string

	FPI  string
	Icon string
	Role string
	See  string

	// XMLLang and XMLSpace carry xml:lang and xml:space; a check's values
	// win over the rule's.
	XMLLang  string
	XMLSpace string
}

// Assert is a check that fires when its test is false.
type Assert struct {
	CheckBody
}

func (*Assert) checkNode() {}

// Body returns the shared check content.
func (a *Assert) Body() *CheckBody { return &a.CheckBody }

// Report is a check that fires when its test is true.
type Report struct {
	CheckBody
}

func (*Report) checkNode() {}

// Body returns the shared check content.
func (r *Report) Body() *CheckBody { return &r.CheckBody }

// MixedContent is a check message: an ordered sequence of literal text and
// placeholder parts. The engine keeps it opaque until the check fires.
type MixedContent []ContentPart

// IsEmpty returns true when the message has no parts.
func (m MixedContent) IsEmpty() bool {
	return len(m) == 0
}

// ContentPart is the sealed interface over message parts.
type ContentPart interface {
	contentPart()
}

// Text is a literal message fragment.
type Text string

func (Text) contentPart() {}

// ValueOf is a placeholder resolved to the string value of a query
// evaluated against the bound node.
type ValueOf struct {
	Select Query
}

func (ValueOf) contentPart() {}

// NameOf is a placeholder resolved to the name of the bound node, or of
// the first node selected by Path when Path is non-empty.
type NameOf struct {
	Path Query
}

func (NameOf) contentPart() {}
