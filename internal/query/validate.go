package query

import (
	"fmt"

	"github.com/roach88/defgeneric/internal/ir"
)

// Validate reports every problem in q: unknown fields, values of the
// wrong type for their column, nil predicates inside And and negative
// limits. It returns nil for a valid query.
func Validate(q Select) []error {
	v := &validator{}
	if q.Limit < 0 {
		v.addError("limit must not be negative, got %d", q.Limit)
	}
	if q.Filter != nil {
		v.validatePredicate(q.Filter)
	}
	return v.errs
}

type validator struct {
	errs []error
}

func (v *validator) addError(format string, args ...any) {
	v.errs = append(v.errs, fmt.Errorf(format, args...))
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case Equals:
		v.validateEquals(pred)
	case *Equals:
		v.validateEquals(*pred)
	case And:
		v.validateAnd(pred)
	case *And:
		v.validateAnd(*pred)
	case nil:
		v.addError("nil predicate")
	default:
		v.addError("unknown predicate type: %T", p)
	}
}

func (v *validator) validateEquals(eq Equals) {
	want, ok := fieldKinds[eq.Field]
	if !ok {
		v.addError("unknown field %q", eq.Field)
		return
	}
	switch eq.Value.(type) {
	case ir.IRString:
		if want != "string" {
			v.addError("field %q compares against %s, got string", eq.Field, want)
		}
	case ir.IRInt:
		if want != "int" {
			v.addError("field %q compares against %s, got int", eq.Field, want)
		}
	case nil, ir.IRNull:
		v.addError("field %q compared to null", eq.Field)
	default:
		v.addError("field %q: unsupported value type %T", eq.Field, eq.Value)
	}
}

func (v *validator) validateAnd(and And) {
	for _, p := range and.Predicates {
		v.validatePredicate(p)
	}
}
