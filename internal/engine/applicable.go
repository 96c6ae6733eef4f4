package engine

import (
	"context"

	"github.com/roach88/defgeneric/internal/classes"
	"github.com/roach88/defgeneric/internal/ir"
)

// isApplicable reports whether m accepts args.
//
// Arity is checked first. Each argument must then match a type tag of its
// restriction before the guard is evaluated; a failed type check skips
// the guard. A guard passes unless it yields FALSE. A guard error aborts
// the whole dispatch and is returned.
func (e *Engine) isApplicable(ctx context.Context, g *Generic, m *Method, args ir.IRArray) (bool, error) {
	if len(args) < m.MinArgs {
		return false, nil
	}
	if m.MaxArgs != Unbounded && len(args) > m.MaxArgs {
		return false, nil
	}
	if len(m.Restrictions) == 0 {
		return true, nil
	}

	var b Bindings
	haveBindings := false
	for i, arg := range args {
		r := m.restrictionFor(i)
		if !e.typeMatches(r, arg) {
			return false, nil
		}
		if r.Query == nil {
			continue
		}

		if err := e.checkHalt(ctx, g.Name); err != nil {
			return false, err
		}
		if !haveBindings {
			b = m.bindings(args)
			haveBindings = true
		}
		b.Current = arg
		result, err := e.evaluator.Evaluate(ctx, r.Query, b)
		if err != nil {
			if IsHalted(err) {
				return false, err
			}
			e.logger.Error("guard evaluation failed",
				"generic", g.Name,
				"method", m.ID,
				"position", i+1,
				"query", r.Query.Source(),
				"error", err)
			return false, &DispatchError{
				Code:     ErrCodeGuardEvaluation,
				Generic:  g.Name,
				MethodID: m.ID,
				Message:  "guard " + r.Query.Source() + " failed",
				Err:      err,
			}
		}
		if ir.IsFalse(result) {
			return false, nil
		}
	}
	return true, nil
}

// typeMatches tests one argument against a restriction's type tags.
// Only the instance markers also match by representation: an instance
// address is an INSTANCE-ADDRESS and an instance name an INSTANCE-NAME,
// whatever user class they belong to. Every other tag matches the
// argument's class or one of its superclasses.
func (e *Engine) typeMatches(r *Restriction, arg ir.IRValue) bool {
	if r.Unrestricted() {
		return true
	}
	actual := e.classes.ClassOf(arg)
	repr := e.representationOf(arg)
	for _, tag := range r.Types {
		switch tag.Kind {
		case classes.KindInstanceMarker:
			if repr != nil && inherits(repr, tag) {
				return true
			}
		case classes.KindPrimitive, classes.KindUser, classes.KindAbstract:
			if inherits(actual, tag) {
				return true
			}
		}
	}
	return false
}

func inherits(c, tag *classes.Class) bool {
	return c == tag || c.IsSubclassOf(tag)
}

// representationOf returns INSTANCE-ADDRESS or INSTANCE-NAME for
// instance values and nil for everything else.
func (e *Engine) representationOf(arg ir.IRValue) *classes.Class {
	switch arg.(type) {
	case ir.IRInstance:
		return e.classes.MustLookup(classes.InstanceAddress)
	case ir.IRInstanceName:
		return e.classes.MustLookup(classes.InstanceName)
	default:
		return nil
	}
}

// selectMethod scans from start for the first applicable method.
// Returns slot -1 when nothing applies.
func (e *Engine) selectMethod(ctx context.Context, g *Generic, args ir.IRArray, start int) (int, *Method, error) {
	for i := start; i < len(g.methods); i++ {
		if err := e.checkHalt(ctx, g.Name); err != nil {
			return -1, nil, err
		}
		m := g.methods[i]
		ok, err := e.isApplicable(ctx, g, m, args)
		if err != nil {
			return -1, nil, err
		}
		if ok {
			return i, m, nil
		}
	}
	return -1, nil, nil
}

// checkHalt fails once Halt was called or ctx is done.
func (e *Engine) checkHalt(ctx context.Context, generic string) error {
	if e.halted.Load() {
		return newError(ErrCodeHaltRequested, generic, 0, "evaluation halted")
	}
	if err := ctx.Err(); err != nil {
		return &DispatchError{
			Code:    ErrCodeHaltRequested,
			Generic: generic,
			Message: "evaluation cancelled",
			Err:     err,
		}
	}
	return nil
}
