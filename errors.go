package schematron

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors returned by the validator facade.
var (
	// ErrNilSchema is returned when a validator is constructed without a schema.
	ErrNilSchema = errors.New("schematron: nil schema")
	// ErrNilDocument is returned when validation is invoked on a nil document.
	ErrNilDocument = errors.New("schematron: nil document")
	// ErrValidatorClosed is returned by operations on a closed validator.
	ErrValidatorClosed = errors.New("schematron: validator closed")
)

// CyclicExtensionError reports a cycle in the rule extension graph. A cycle
// is a structural defect of the schema: resolution of the whole schema is
// aborted, no partial result is produced.
type CyclicExtensionError struct {
	// Cycle holds the rule identifiers along the cycle in traversal order.
	// The final entry repeats the first, closing the loop.
	Cycle []string
}

func (e *CyclicExtensionError) Error() string {
	return "schematron: cyclic extends chain: " + strings.Join(e.Cycle, " -> ")
}

// UnresolvedExtensionReferenceError reports an extends entry whose target id
// does not name an abstract rule in the schema. It is fatal for the affected
// rule's assembly, and fatal for the schema overall unless partial
// resolution is enabled.
type UnresolvedExtensionReferenceError struct {
	// RuleID identifies the rule whose extends failed. Rules without an id
	// are identified by their context expression.
	RuleID string
	// Ref is the id pointer that did not resolve.
	Ref string
}

func (e *UnresolvedExtensionReferenceError) Error() string {
	return fmt.Sprintf("schematron: rule %q extends unknown rule %q", e.RuleID, e.Ref)
}

// UnknownPatternReferenceError reports a phase whose active list names a
// pattern that is not declared in the schema, an unknown phase id, or an
// instance pattern referencing an unknown abstract pattern. Fatal for phase
// selection.
type UnknownPatternReferenceError struct {
	// Phase is the phase (or referring pattern) in which the reference
	// appears. Empty when the phase id itself is unknown.
	Phase string
	// PatternID is the reference that did not resolve.
	PatternID string
}

func (e *UnknownPatternReferenceError) Error() string {
	if e.Phase == "" {
		return fmt.Sprintf("schematron: unknown phase %q", e.PatternID)
	}
	return fmt.Sprintf("schematron: phase %q references unknown pattern %q", e.Phase, e.PatternID)
}

// ExpressionEvaluationError reports an expression that could not be parsed
// or evaluated. By default it is recoverable at check granularity: the
// single check is skipped, an error marker is attached to the report, and
// validation continues. Under fail-fast it aborts the run.
type ExpressionEvaluationError struct {
	// Expr is the offending expression text.
	Expr string
	// Location is the path of the context node, when known.
	Location string
	// Cause is the underlying parse or evaluation failure.
	Cause error
}

func (e *ExpressionEvaluationError) Error() string {
	msg := fmt.Sprintf("schematron: evaluating %q", e.Expr)
	if e.Location != "" {
		msg += " at " + e.Location
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying failure.
func (e *ExpressionEvaluationError) Unwrap() error {
	return e.Cause
}
