package engine

import (
	"context"
	"fmt"

	"github.com/roach88/defgeneric/internal/ir"
)

// Unbounded marks a method whose last parameter is a wildcard.
const Unbounded = ir.Unbounded

// AllMethods selects every user method in UndefineMethod.
const AllMethods = -1

// Action is a method body.
type Action interface {
	Execute(ctx context.Context, b Bindings) (ir.IRValue, error)
}

// ActionFunc adapts a Go function to Action.
type ActionFunc func(ctx context.Context, b Bindings) (ir.IRValue, error)

// Execute calls f.
func (f ActionFunc) Execute(ctx context.Context, b Bindings) (ir.IRValue, error) {
	return f(ctx, b)
}

// ExpressionAction is a body evaluated by an Evaluator. When Evaluator is
// nil the engine's evaluator is filled in at definition time.
type ExpressionAction struct {
	Expr      Expression
	Evaluator Evaluator
}

// Execute evaluates the body expression.
func (a ExpressionAction) Execute(ctx context.Context, b Bindings) (ir.IRValue, error) {
	if a.Evaluator == nil {
		return nil, fmt.Errorf("no evaluator for body %s", a.Expr.Source())
	}
	return a.Evaluator.Evaluate(ctx, a.Expr, b)
}

// ParamDef is one parameter of a method definition.
type ParamDef struct {
	Name  string
	Types []string
	Query Expression
}

// MethodDef describes a method to define. ID 0 assigns the next free
// index; a non-zero ID must match the method being redefined or be unused.
type MethodDef struct {
	ID       int
	Params   []ParamDef
	Wildcard *ParamDef
	Body     Action
}

func (d MethodDef) allParams() []ParamDef {
	if d.Wildcard == nil {
		return d.Params
	}
	return append(append([]ParamDef(nil), d.Params...), *d.Wildcard)
}

func (d MethodDef) arity() (minArgs, maxArgs int) {
	if d.Wildcard != nil {
		return len(d.Params), Unbounded
	}
	return len(d.Params), len(d.Params)
}

// Method is one implementation of a generic function.
//
// The identity (ID) is assigned once and never reused while the method
// exists; it survives reordering and redefinition in place.
type Method struct {
	ID           int
	Params       []string // Includes the wildcard name last
	Restrictions []Restriction
	MinArgs      int
	MaxArgs      int // Unbounded for a trailing wildcard
	System       bool
	Body         Action

	busy int
}

// Wildcard reports whether the last parameter absorbs remaining arguments.
func (m *Method) Wildcard() bool {
	return m.MaxArgs == Unbounded
}

// Busy returns the number of active executions of m.
func (m *Method) Busy() int {
	return m.busy
}

// restrictionFor returns the restriction governing argument position i.
// Positions past the last restriction reuse the wildcard restriction.
func (m *Method) restrictionFor(i int) *Restriction {
	if i >= len(m.Restrictions) {
		return &m.Restrictions[len(m.Restrictions)-1]
	}
	return &m.Restrictions[i]
}

// acquire increments the busy count; the returned func undoes it.
func (m *Method) acquire() func() {
	m.busy++
	return func() { m.busy-- }
}

// bindings builds the variables a body or guard sees for args.
// Fixed parameters bind positionally; the wildcard binds the rest as a
// multifield.
func (m *Method) bindings(args ir.IRArray) Bindings {
	vars := make(map[string]ir.IRValue, len(m.Params))
	for i, name := range m.Params {
		switch {
		case m.Wildcard() && i == len(m.Params)-1:
			rest := ir.IRArray{}
			if i < len(args) {
				rest = append(rest, args[i:]...)
			}
			vars[name] = rest
		case i < len(args):
			vars[name] = args[i]
		}
	}
	return Bindings{Args: args, Vars: vars}
}
