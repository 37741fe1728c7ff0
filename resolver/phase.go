package resolver

import (
	schematron "github.com/goschematron/validator"
	"github.com/goschematron/validator/ast"
)

// Phase sentinels. PhaseAll activates every pattern; PhaseDefault defers to
// the schema's defaultPhase, falling back to PhaseAll when none is declared.
const (
	PhaseAll     = "#ALL"
	PhaseDefault = "#DEFAULT"
)

// PhaseSelection is the outcome of phase selection: the patterns to run, in
// execution order, and the variable bindings the phase layers on top of the
// schema's.
type PhaseSelection struct {
	// Phase is the effective phase id: the named phase, the schema default
	// it resolved to, or PhaseAll.
	Phase string

	// Patterns in execution order. A phase's active list order is
	// preserved exactly; it is not declaration order.
	Patterns []*ResolvedPattern

	// Variables holds schema-level bindings followed by phase-level ones.
	// Scope nesting at evaluation time makes the phase bindings win.
	Variables []ast.Variable
}

// SelectPhase picks the active patterns for phaseID. The empty string and
// PhaseDefault resolve through the schema's defaultPhase; PhaseAll and the
// no-default fallback activate every pattern in declaration order. A named
// phase activates exactly the patterns its active list names, in list
// order, with a PhaseAll entry splicing all patterns at that position.
func SelectPhase(schema *ast.Schema, res *Resolution, phaseID string) (*PhaseSelection, error) {
	if schema == nil {
		return nil, schematron.ErrNilSchema
	}

	if phaseID == "" || phaseID == PhaseDefault {
		if schema.DefaultPhase != "" {
			phaseID = schema.DefaultPhase
		} else {
			phaseID = PhaseAll
		}
	}

	if phaseID == PhaseAll {
		return &PhaseSelection{
			Phase:     PhaseAll,
			Patterns:  append([]*ResolvedPattern(nil), res.Patterns...),
			Variables: append([]ast.Variable(nil), schema.Variables...),
		}, nil
	}

	phase := schema.PhaseByID(phaseID)
	if phase == nil {
		return nil, &schematron.UnknownPatternReferenceError{PatternID: phaseID}
	}

	sel := &PhaseSelection{
		Phase:    phase.ID,
		Patterns: make([]*ResolvedPattern, 0, len(phase.Active)),
	}
	for _, id := range phase.Active {
		if id == PhaseAll {
			sel.Patterns = append(sel.Patterns, res.Patterns...)
			continue
		}
		rp := res.Pattern(id)
		if rp == nil {
			return nil, &schematron.UnknownPatternReferenceError{
				Phase:     phase.ID,
				PatternID: id,
			}
		}
		sel.Patterns = append(sel.Patterns, rp)
	}

	sel.Variables = make([]ast.Variable, 0, len(schema.Variables)+len(phase.Variables))
	sel.Variables = append(sel.Variables, schema.Variables...)
	sel.Variables = append(sel.Variables, phase.Variables...)
	return sel, nil
}
