package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/defgeneric/internal/classes"
	"github.com/roach88/defgeneric/internal/ir"
)

// Expression is an opaque guard or body understood by an Evaluator.
// Source returns normalized text; two expressions with equal Source are
// treated as the same query when comparing restrictions.
type Expression interface {
	Source() string
}

// Bindings is what an expression sees while it runs: the arguments of
// the active call, the parameter variables of the method and, inside a
// guard, the candidate argument being tested.
type Bindings struct {
	Args    ir.IRArray
	Vars    map[string]ir.IRValue
	Current ir.IRValue // nil outside guards
}

// Evaluator evaluates guard and body expressions.
// A guard passes unless the result is FALSE; an error aborts dispatch.
type Evaluator interface {
	Evaluate(ctx context.Context, expr Expression, b Bindings) (ir.IRValue, error)
}

// Restriction is the acceptance rule of one parameter position: a list of
// type tags (empty = unrestricted) and an optional guard query.
type Restriction struct {
	Types []*classes.Class
	Query Expression

	queryHash string
}

// NewRestriction validates a type list and retains each tag on the
// hierarchy. Tags must be pairwise unrelated: no tag may equal, inherit
// from, or be inherited by another tag in the same list.
func NewRestriction(h *classes.Hierarchy, types []*classes.Class, query Expression) (Restriction, error) {
	for i := range types {
		for j := i + 1; j < len(types); j++ {
			if classes.Related(types[i], types[j]) {
				return Restriction{}, newError(ErrCodeDefinitionConflict, "", 0,
					"redundant type restrictions %s and %s", types[i].Name, types[j].Name)
			}
		}
	}

	r := Restriction{Types: append([]*classes.Class(nil), types...), Query: query}
	if query != nil {
		r.queryHash = ir.ExpressionHash(query.Source())
	}
	for _, c := range r.Types {
		h.Retain(c)
	}
	return r, nil
}

// release drops the references taken by NewRestriction.
func (r *Restriction) release(h *classes.Hierarchy) {
	for _, c := range r.Types {
		h.Release(c)
	}
}

// HasQuery reports whether the restriction carries a guard.
func (r *Restriction) HasQuery() bool {
	return r.Query != nil
}

// sameQuery reports whether both restrictions carry syntactically
// identical guards.
func (r *Restriction) sameQuery(other *Restriction) bool {
	return r.queryHash == other.queryHash
}

// Unrestricted reports whether the restriction accepts any type.
func (r *Restriction) Unrestricted() bool {
	return len(r.Types) == 0
}

// String renders the restriction the way method signatures show it:
// type names followed by <qry> when a guard is present.
func (r *Restriction) String() string {
	parts := make([]string, 0, len(r.Types)+1)
	for _, c := range r.Types {
		parts = append(parts, c.Name)
	}
	if r.Query != nil {
		parts = append(parts, "<qry>")
	}
	return strings.Join(parts, " ")
}

// buildRestrictions resolves parameter definitions against the hierarchy.
// On failure every restriction built so far is released.
func buildRestrictions(h *classes.Hierarchy, generic string, params []ParamDef) ([]Restriction, error) {
	out := make([]Restriction, 0, len(params))
	fail := func(err error) ([]Restriction, error) {
		for i := range out {
			out[i].release(h)
		}
		return nil, err
	}

	for i, p := range params {
		types := make([]*classes.Class, 0, len(p.Types))
		for _, name := range p.Types {
			c, ok := h.Lookup(name)
			if !ok {
				return fail(&DispatchError{
					Code:    ErrCodeDefinitionConflict,
					Generic: generic,
					Message: fmt.Sprintf("parameter %d (%s): unknown class %s", i+1, p.Name, name),
				})
			}
			types = append(types, c)
		}
		r, err := NewRestriction(h, types, p.Query)
		if err != nil {
			var de *DispatchError
			if errors.As(err, &de) {
				de.Generic = generic
				de.Message = fmt.Sprintf("parameter %d (%s): %s", i+1, p.Name, de.Message)
			}
			return fail(err)
		}
		out = append(out, r)
	}
	return out, nil
}
