package schematron

// CheckKind distinguishes the two check forms of the rule language.
type CheckKind string

const (
	// KindAssert marks a check that fires when its test evaluates to false.
	KindAssert CheckKind = "assert"
	// KindReport marks a check that fires when its test evaluates to true.
	KindReport CheckKind = "report"
)

// OutcomeKind classifies how an assembled rule disposed of one node.
type OutcomeKind string

const (
	// OutcomeFired indicates the rule bound the node and its checks ran.
	OutcomeFired OutcomeKind = "fired"
	// OutcomeSuppressed indicates the rule matched a node already bound to
	// an earlier rule of the same pattern; its checks never ran.
	OutcomeSuppressed OutcomeKind = "suppressed"
	// OutcomeSkipped indicates the rule's context expression could not be
	// evaluated, so the rule matched nothing this run.
	OutcomeSkipped OutcomeKind = "skipped"
)

// EvalStage identifies which expression of a rule failed to evaluate.
type EvalStage string

const (
	// StageContext is a rule context expression.
	StageContext EvalStage = "context"
	// StageVariable is a let-variable value expression.
	StageVariable EvalStage = "variable"
	// StageTest is an assert or report test expression.
	StageTest EvalStage = "test"
	// StageSubject is a subject path expression.
	StageSubject EvalStage = "subject"
	// StageMessage is a value-of or name expression inside message content.
	StageMessage EvalStage = "message"
	// StageParse marks a document that could not be parsed or validated at
	// all, used by batch and stream validation where one bad document must
	// not fail the rest.
	StageParse EvalStage = "parse"
)

// CheckResult is one fired check instance: an assert whose test evaluated
// to false, or a report whose test evaluated to true.
type CheckResult struct {
	// Kind is assert or report
	Kind CheckKind `json:"kind"`

	// CheckID is the check's declared id, if any
	CheckID string `json:"checkId,omitempty"`

	// Test is the check's test expression
	Test string `json:"test"`

	// Message is the check's content with value-of and name parts resolved
	Message string `json:"message,omitempty"`

	// PatternID identifies the active pattern the rule belongs to
	PatternID string `json:"patternId,omitempty"`

	// RuleID is the matched rule's declared id, if any
	RuleID string `json:"ruleId,omitempty"`

	// RuleContext is the matched rule's context expression
	RuleContext string `json:"ruleContext,omitempty"`

	// Location is the path of the bound context node
	Location string `json:"location,omitempty"`

	// Subject is the path of the resolved subject node; equals Location
	// unless the rule or check declared a subject override
	Subject string `json:"subject,omitempty"`

	// Flag names the flag this result activates, if any
	Flag string `json:"flag,omitempty"`

	// Role is the check's declared role, if any
	Role string `json:"role,omitempty"`

	// Diagnostics holds referenced diagnostic ids, not resolved further
	Diagnostics []string `json:"diagnostics,omitempty"`

	// Properties holds referenced property ids, not resolved further
	Properties []string `json:"properties,omitempty"`

	// Lang is the effective xml:lang, check over rule
	Lang string `json:"lang,omitempty"`

	// Space is the effective xml:space, check over rule
	Space string `json:"space,omitempty"`
}

// IsAssert returns true for a failed assertion.
func (c CheckResult) IsAssert() bool {
	return c.Kind == KindAssert
}

// IsReport returns true for a successful report.
func (c CheckResult) IsReport() bool {
	return c.Kind == KindReport
}

// String returns a human-readable representation of the result.
func (c CheckResult) String() string {
	loc := ""
	if c.Location != "" {
		loc = " at " + c.Location
	}
	msg := c.Message
	if msg == "" {
		msg = "test " + c.Test
	}
	return string(c.Kind) + ": " + msg + loc
}

// RuleOutcome records how one assembled rule participated for one node.
// Fired and suppressed outcomes carry the node's location; a skipped
// outcome is rule-level and carries none.
type RuleOutcome struct {
	// Kind is fired, suppressed, or skipped
	Kind OutcomeKind `json:"kind"`

	// PatternID identifies the active pattern
	PatternID string `json:"patternId,omitempty"`

	// RuleID identifies the rule: its declared id, or its context when no
	// id was declared
	RuleID string `json:"ruleId,omitempty"`

	// RuleContext is the rule's context expression
	RuleContext string `json:"ruleContext,omitempty"`

	// Location is the path of the node, empty for skipped rules
	Location string `json:"location,omitempty"`
}

// EvalError marks an expression that could not be evaluated during a run.
// The report stays usable; markers let callers tell a clean document apart
// from one whose validation was incomplete.
type EvalError struct {
	// Stage names the expression role that failed
	Stage EvalStage `json:"stage"`

	// PatternID identifies the active pattern
	PatternID string `json:"patternId,omitempty"`

	// RuleID identifies the affected rule: its declared id, or its context
	// when no id was declared
	RuleID string `json:"ruleId,omitempty"`

	// CheckID is the affected check's declared id, for test-stage failures
	CheckID string `json:"checkId,omitempty"`

	// Err is the underlying evaluation failure
	Err *ExpressionEvaluationError `json:"-"`
}

// String returns a human-readable representation of the marker.
func (e EvalError) String() string {
	msg := string(e.Stage)
	if e.RuleID != "" {
		msg += " in rule " + e.RuleID
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// ResultBuilder provides a fluent API for building check results.
type ResultBuilder struct {
	result CheckResult
}

// NewCheckResult creates a new ResultBuilder for the given kind.
func NewCheckResult(kind CheckKind) *ResultBuilder {
	return &ResultBuilder{
		result: CheckResult{
			Kind: kind,
		},
	}
}

// FailedAssert creates a builder for a fired assert.
func FailedAssert(test string) *ResultBuilder {
	return NewCheckResult(KindAssert).Test(test)
}

// FiredReport creates a builder for a fired report.
func FiredReport(test string) *ResultBuilder {
	return NewCheckResult(KindReport).Test(test)
}

// Test sets the test expression.
func (b *ResultBuilder) Test(expr string) *ResultBuilder {
	b.result.Test = expr
	return b
}

// Message sets the resolved message content.
func (b *ResultBuilder) Message(msg string) *ResultBuilder {
	b.result.Message = msg
	return b
}

// In sets the active pattern id.
func (b *ResultBuilder) In(patternID string) *ResultBuilder {
	b.result.PatternID = patternID
	return b
}

// ByRule sets the matched rule's id and context.
func (b *ResultBuilder) ByRule(id, context string) *ResultBuilder {
	b.result.RuleID = id
	b.result.RuleContext = context
	return b
}

// At sets the context node location.
func (b *ResultBuilder) At(location string) *ResultBuilder {
	b.result.Location = location
	return b
}

// SubjectAt sets the resolved subject location.
func (b *ResultBuilder) SubjectAt(location string) *ResultBuilder {
	b.result.Subject = location
	return b
}

// Flagged sets the activated flag name.
func (b *ResultBuilder) Flagged(flag string) *ResultBuilder {
	b.result.Flag = flag
	return b
}

// Role sets the declared role.
func (b *ResultBuilder) Role(role string) *ResultBuilder {
	b.result.Role = role
	return b
}

// CheckID sets the check's declared id.
func (b *ResultBuilder) CheckID(id string) *ResultBuilder {
	b.result.CheckID = id
	return b
}

// Diagnostics sets the referenced diagnostic ids.
func (b *ResultBuilder) Diagnostics(ids ...string) *ResultBuilder {
	b.result.Diagnostics = ids
	return b
}

// Properties sets the referenced property ids.
func (b *ResultBuilder) Properties(ids ...string) *ResultBuilder {
	b.result.Properties = ids
	return b
}

// Lang sets the effective xml:lang.
func (b *ResultBuilder) Lang(lang string) *ResultBuilder {
	b.result.Lang = lang
	return b
}

// Space sets the effective xml:space.
func (b *ResultBuilder) Space(space string) *ResultBuilder {
	b.result.Space = space
	return b
}

// Build returns the constructed result.
func (b *ResultBuilder) Build() CheckResult {
	return b.result
}
