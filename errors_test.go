package schematron

import (
	"errors"
	"fmt"
	"testing"
)

func TestCyclicExtensionError(t *testing.T) {
	err := &CyclicExtensionError{Cycle: []string{"a", "b", "c", "a"}}

	want := "schematron: cyclic extends chain: a -> b -> c -> a"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q; want %q", got, want)
	}
}

func TestCyclicExtensionError_SelfLoop(t *testing.T) {
	err := &CyclicExtensionError{Cycle: []string{"a", "a"}}

	want := "schematron: cyclic extends chain: a -> a"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q; want %q", got, want)
	}
}

func TestUnresolvedExtensionReferenceError(t *testing.T) {
	err := &UnresolvedExtensionReferenceError{RuleID: "item-rule", Ref: "missing"}

	want := `schematron: rule "item-rule" extends unknown rule "missing"`
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q; want %q", got, want)
	}
}

func TestUnknownPatternReferenceError(t *testing.T) {
	tests := []struct {
		err  *UnknownPatternReferenceError
		want string
	}{
		{
			err:  &UnknownPatternReferenceError{Phase: "basic", PatternID: "missing"},
			want: `schematron: phase "basic" references unknown pattern "missing"`,
		},
		{
			// Empty phase means the phase id itself did not resolve
			err:  &UnknownPatternReferenceError{Phase: "", PatternID: "nosuchphase"},
			want: `schematron: unknown phase "nosuchphase"`,
		},
	}

	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q; want %q", got, tt.want)
		}
	}
}

func TestExpressionEvaluationError(t *testing.T) {
	tests := []struct {
		err  *ExpressionEvaluationError
		want string
	}{
		{
			err:  &ExpressionEvaluationError{Expr: "@id"},
			want: `schematron: evaluating "@id"`,
		},
		{
			err:  &ExpressionEvaluationError{Expr: "@id", Location: "/catalog[1]/item[2]"},
			want: `schematron: evaluating "@id" at /catalog[1]/item[2]`,
		},
		{
			err: &ExpressionEvaluationError{
				Expr:  "item[",
				Cause: errors.New("unexpected end of expression"),
			},
			want: `schematron: evaluating "item[": unexpected end of expression`,
		},
	}

	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q; want %q", got, tt.want)
		}
	}
}

func TestExpressionEvaluationError_Unwrap(t *testing.T) {
	cause := errors.New("unexpected end of expression")
	err := &ExpressionEvaluationError{Expr: "item[", Cause: cause}

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
}

func TestErrorTypes_As(t *testing.T) {
	var wrapped error = fmt.Errorf("resolving schema: %w",
		&CyclicExtensionError{Cycle: []string{"a", "b", "a"}})

	var cycErr *CyclicExtensionError
	if !errors.As(wrapped, &cycErr) {
		t.Fatal("errors.As should unwrap to *CyclicExtensionError")
	}
	if len(cycErr.Cycle) != 3 {
		t.Errorf("len(Cycle) = %d; want 3", len(cycErr.Cycle))
	}

	wrapped = fmt.Errorf("selecting phase: %w",
		&UnknownPatternReferenceError{Phase: "basic", PatternID: "p9"})

	var patErr *UnknownPatternReferenceError
	if !errors.As(wrapped, &patErr) {
		t.Fatal("errors.As should unwrap to *UnknownPatternReferenceError")
	}
	if patErr.PatternID != "p9" {
		t.Errorf("PatternID = %q; want %q", patErr.PatternID, "p9")
	}
}

func TestSentinelErrors(t *testing.T) {
	if ErrNilSchema.Error() == "" {
		t.Error("ErrNilSchema should have a message")
	}
	if ErrNilDocument.Error() == "" {
		t.Error("ErrNilDocument should have a message")
	}
	if ErrValidatorClosed.Error() == "" {
		t.Error("ErrValidatorClosed should have a message")
	}

	wrapped := fmt.Errorf("validate: %w", ErrValidatorClosed)
	if !errors.Is(wrapped, ErrValidatorClosed) {
		t.Error("errors.Is should match the wrapped sentinel")
	}
}
