package engine

import (
	"context"
	"fmt"
	"slices"

	"github.com/roach88/defgeneric/internal/ir"
)

// Call dispatches the named generic function. When no generic exists but
// a primitive of that name is registered, the primitive runs directly.
func (e *Engine) Call(ctx context.Context, name string, args ir.IRArray) (ir.IRValue, error) {
	if g, ok := e.generics[name]; ok {
		return e.Dispatch(ctx, g, args)
	}
	if p, ok := e.primitives[name]; ok && p.Func != nil {
		if len(args) < p.MinArgs || (p.MaxArgs != Unbounded && len(args) > p.MaxArgs) {
			return nil, fmt.Errorf("function %s expects %s arguments, got %d", name, arityText(p.MinArgs, p.MaxArgs), len(args))
		}
		return p.Func(ctx, Bindings{Args: cloneArgs(args)})
	}
	return nil, newError(ErrCodeGenericNotFound, name, 0, "no such generic function")
}

// Dispatch runs the most specific applicable method of g.
//
// The arguments are bound once and shared by every candidate tried and
// by any shadow chain the selected method starts. The generic and the
// selected method stay busy until the call returns, on every path.
func (e *Engine) Dispatch(ctx context.Context, g *Generic, args ir.IRArray) (ir.IRValue, error) {
	return e.dispatch(ctx, g, cloneArgs(args), 0, ir.KindCall)
}

// CallNextMethod runs the next applicable method after the executing one,
// with the same arguments. Fails with SHADOW_CONTEXT outside a method
// body or when no less specific method applies.
func (e *Engine) CallNextMethod(ctx context.Context) (ir.IRValue, error) {
	f := frameFrom(ctx)
	if f == nil || f.method == nil {
		return nil, newError(ErrCodeShadowContext, "", 0, "call-next-method called outside a method body")
	}
	return e.dispatch(ctx, f.generic, f.args, f.slot+1, ir.KindNext)
}

// NextMethodP reports whether CallNextMethod would find a method. It runs
// the same scan, guards included, but executes nothing.
func (e *Engine) NextMethodP(ctx context.Context) (bool, error) {
	f := frameFrom(ctx)
	if f == nil || f.method == nil {
		return false, newError(ErrCodeShadowContext, "", 0, "next-methodp called outside a method body")
	}
	if err := e.checkHalt(ctx, f.generic.Name); err != nil {
		return false, err
	}

	release := f.generic.acquire()
	_, m, err := e.selectMethod(ctx, f.generic, f.args, f.slot+1)
	release()
	if err != nil {
		return false, err
	}
	return m != nil, nil
}

// OverrideNextMethod is CallNextMethod with new arguments: a fresh
// selection pass over the methods after the executing one.
func (e *Engine) OverrideNextMethod(ctx context.Context, args ir.IRArray) (ir.IRValue, error) {
	f := frameFrom(ctx)
	if f == nil || f.method == nil {
		return nil, newError(ErrCodeShadowContext, "", 0, "override-next-method called outside a method body")
	}
	return e.dispatch(ctx, f.generic, cloneArgs(args), f.slot+1, ir.KindOverride)
}

// CallSpecificMethod runs one method by index, bypassing precedence. The
// method must still be applicable to args. It opens a fresh frame, so
// CallNextMethod works from inside it.
func (e *Engine) CallSpecificMethod(ctx context.Context, name string, id int, args ir.IRArray) (result ir.IRValue, err error) {
	g, ok := e.generics[name]
	if !ok {
		return nil, newError(ErrCodeGenericNotFound, name, id, "no such generic function")
	}
	slot, m := g.findMethod(id)
	if m == nil {
		return nil, newError(ErrCodeMethodNotFound, name, id, "no such method")
	}

	args = cloneArgs(args)
	f, err := e.enter(ctx, g, args, ir.KindSpecific)
	if err != nil {
		return nil, err
	}
	release := g.acquire()
	defer release()
	defer func() { err = e.exit(ctx, f, result, err) }()

	applicable, err := e.isApplicable(ctx, g, m, args)
	if err != nil {
		return nil, err
	}
	if !applicable {
		return nil, newError(ErrCodeNoApplicableMethod, name, id,
			"method is not applicable to %s", ir.Format(args))
	}
	return e.invoke(ctx, f, slot, m)
}

// dispatch is the selection state machine shared by every entry point.
// start is 0 for a fresh call and the slot after the executing method for
// shadow calls.
func (e *Engine) dispatch(ctx context.Context, g *Generic, args ir.IRArray, start int, kind string) (result ir.IRValue, err error) {
	f, err := e.enter(ctx, g, args, kind)
	if err != nil {
		return nil, err
	}
	release := g.acquire()
	defer release()
	defer func() { err = e.exit(ctx, f, result, err) }()

	slot, m, err := e.selectMethod(ctx, g, args, start)
	if err != nil {
		return nil, err
	}
	if m == nil {
		if kind == ir.KindCall {
			e.logger.Debug("no applicable method", "generic", g.Name, "args", ir.Format(args))
			return nil, newError(ErrCodeNoApplicableMethod, g.Name, 0,
				"no applicable methods for %s", ir.Format(args))
		}
		return nil, newError(ErrCodeShadowContext, g.Name, 0,
			"shadowed methods not applicable in current context")
	}
	return e.invoke(ctx, f, slot, m)
}

// invoke executes m as the current method of f.
func (e *Engine) invoke(ctx context.Context, f *frame, slot int, m *Method) (ir.IRValue, error) {
	release := m.acquire()
	defer release()
	f.method, f.slot = m, slot

	e.logger.Debug("method selected",
		"generic", f.generic.Name,
		"method", m.ID,
		"kind", f.kind,
		"depth", f.depth)

	result, err := m.Body.Execute(withFrame(ctx, f), m.bindings(f.args))
	if err != nil {
		return nil, err
	}
	if err := e.checkHalt(ctx, f.generic.Name); err != nil {
		return nil, err
	}
	if result == nil {
		result = ir.IRNull{}
	}
	return result, nil
}

// enter opens a frame. Halt, the depth limit and the per-call step quota
// are checked here, before any busy count is taken.
func (e *Engine) enter(ctx context.Context, g *Generic, args ir.IRArray, kind string) (*frame, error) {
	if err := e.checkHalt(ctx, g.Name); err != nil {
		return nil, err
	}

	parent := frameFrom(ctx)
	f := &frame{
		generic: g,
		args:    args,
		parent:  parent,
		kind:    kind,
		slot:    -1,
		depth:   1,
		seq:     e.clock.Next(),
	}
	if parent != nil {
		f.depth = parent.depth + 1
		f.token = parent.token
		f.quota = parent.quota
	} else {
		f.quota = NewQuotaEnforcer(e.maxDepth, e.maxSteps)
		if e.journal != nil {
			f.token = e.tokens.Generate()
		}
	}

	if err := f.quota.Enter(g.Name, f.token, f.depth); err != nil {
		e.logger.Warn("dispatch quota exceeded", "generic", g.Name, "depth", f.depth,
			"steps", f.quota.Steps(), "error", err)
		return nil, err
	}

	if e.journal != nil {
		id, err := ir.CallID(f.token, g.Name, args, f.seq)
		if err != nil {
			return nil, fmt.Errorf("dispatch %s: %w", g.Name, err)
		}
		f.id = id
	}
	return f, nil
}

// exit writes the journal record of f. A journal failure surfaces only
// when the dispatch itself succeeded.
func (e *Engine) exit(ctx context.Context, f *frame, result ir.IRValue, err error) error {
	if e.journal == nil {
		return err
	}

	if jerr := e.journal.WriteDispatch(context.WithoutCancel(ctx), record(f, result, err)); jerr != nil {
		e.logger.Error("journal write failed", "generic", f.generic.Name, "seq", f.seq, "error", jerr)
		if err == nil {
			return fmt.Errorf("journal dispatch %s: %w", f.generic.Name, jerr)
		}
	}
	return err
}

func cloneArgs(args ir.IRArray) ir.IRArray {
	if args == nil {
		return ir.IRArray{}
	}
	return slices.Clone(args)
}

func arityText(minArgs, maxArgs int) string {
	switch {
	case maxArgs == Unbounded:
		return fmt.Sprintf("at least %d", minArgs)
	case minArgs == maxArgs:
		return fmt.Sprintf("exactly %d", minArgs)
	default:
		return fmt.Sprintf("%d to %d", minArgs, maxArgs)
	}
}
