package ast

// Rule is the sealed interface over the three rule forms. Concrete rules
// carry a context and are matchable. Abstract rules are inheritance targets
// only: no context, never matched directly. External rules come from other
// schema documents; they always act as inheritance sources and are
// additionally matchable when they carry a context of their own.
type Rule interface {
	ruleNode()

	// RuleID returns the rule's declared id, possibly empty.
	RuleID() string

	// Body returns the rule's shared content. Never nil.
	Body() *RuleBody
}

// RuleBody is the content shared by every rule form: checks, variable
// bindings, paragraphs, extends references, and the carried attribute set.
type RuleBody struct {
	// Checks in declaration order. During assembly a rule's own checks
	// precede inherited ones.
	Checks []Check

	// Variables are rule-level bindings, innermost in the scope chain.
	Variables []Variable

	Paragraphs []Paragraph

	// Extends references the abstract rules whose content this rule
	// inherits, in declaration order.
	Extends []Extends

	// Flag names the flag activated when one of this rule's checks fires
	// and the check declares no flag of its own.
	Flag string

	FPI  string
	Icon string
	Role string
	See  string

	// Subject optionally redirects fired results to a node selected
	// relative to the context node.
	Subject Query

	// XMLLang and XMLSpace carry xml:lang and xml:space through to fired
	// results.
	XMLLang  string
	XMLSpace string
}

// ConcreteRule is a matchable rule declared in the schema itself.
type ConcreteRule struct {
	ID string

	// Context selects the nodes this rule applies to, evaluated from the
	// document root.
	Context Query

	RuleBody
}

func (*ConcreteRule) ruleNode() {}

// RuleID returns the declared id.
func (r *ConcreteRule) RuleID() string { return r.ID }

// Body returns the shared rule content.
func (r *ConcreteRule) Body() *RuleBody { return &r.RuleBody }

// AbstractRule is an inheritance target. It has no context and never
// matches nodes; its checks, variables, and paragraphs are folded into the
// rules that extend it.
type AbstractRule struct {
	ID string

	RuleBody
}

func (*AbstractRule) ruleNode() {}

// RuleID returns the declared id.
func (r *AbstractRule) RuleID() string { return r.ID }

// Body returns the shared rule content.
func (r *AbstractRule) Body() *RuleBody { return &r.RuleBody }

// ExternalRule is a rule loaded from another schema document, attached by
// the parser when an extends names a document rather than an id. Its
// identity is the attachment itself; no id lookup happens at resolution
// time. A non-empty Context makes it matchable like a concrete rule.
type ExternalRule struct {
	ID string

	Context Query

	RuleBody
}

func (*ExternalRule) ruleNode() {}

// RuleID returns the declared id.
func (r *ExternalRule) RuleID() string { return r.ID }

// Body returns the shared rule content.
func (r *ExternalRule) Body() *RuleBody { return &r.RuleBody }

// Extends is the sealed interface over the two extension reference forms.
type Extends interface {
	extendsNode()
}

// ExtendsByID references an abstract rule in the same schema by id.
// Resolution looks the id up in the schema's abstract rule index.
type ExtendsByID struct {
	// IDPointer is the referenced abstract rule's id.
	IDPointer string
}

func (*ExtendsByID) extendsNode() {}

// ExtendsExternal carries an already-loaded external rule. Resolution uses
// the attached rule directly; there is nothing to look up.
type ExtendsExternal struct {
	// Rule is the loaded external rule. Never nil in a well-formed tree.
	Rule *ExternalRule

	// Path records where the rule was loaded from, for diagnostics.
	Path string
}

func (*ExtendsExternal) extendsNode() {}
