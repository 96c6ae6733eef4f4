package expr

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/defgeneric/internal/classes"
	"github.com/roach88/defgeneric/internal/engine"
	"github.com/roach88/defgeneric/internal/ir"
)

// Special forms. Their arguments are not evaluated up front.
const (
	formIf                 = "if"
	formAnd                = "and"
	formOr                 = "or"
	formProgn              = "progn"
	formCallNextMethod     = "call-next-method"
	formNextMethodP        = "next-methodp"
	formOverrideNextMethod = "override-next-method"
	formCallSpecificMethod = "call-specific-method"
	formHalt               = "halt"
)

// CurrentArgument names the variable bound to the argument under test
// while a guard runs.
const CurrentArgument = "current-argument"

// SpecialForms lists the names evaluated by the evaluator itself. They
// cannot become generic functions.
var SpecialForms = []string{
	formIf, formAnd, formOr, formProgn,
	formCallNextMethod, formNextMethodP, formOverrideNextMethod,
	formCallSpecificMethod, formHalt,
}

// Evaluator evaluates parsed expressions against an engine.
type Evaluator struct {
	engine *engine.Engine
}

// NewEngine creates an engine over h whose guards and expression bodies
// are evaluated by a new Evaluator, with the builtins registered as
// primitives and the special forms reserved.
func NewEngine(h *classes.Hierarchy, opts ...engine.EngineOption) (*engine.Engine, *Evaluator) {
	ev := &Evaluator{}
	base := []engine.EngineOption{
		engine.WithEvaluator(ev),
		engine.WithReservedNames("special form", SpecialForms...),
	}
	for _, p := range Builtins(h) {
		base = append(base, engine.WithPrimitive(p))
	}
	ev.engine = engine.New(h, append(base, opts...)...)
	return ev.engine, ev
}

// Engine returns the engine function calls are dispatched to.
func (ev *Evaluator) Engine() *engine.Engine {
	return ev.engine
}

// Evaluate implements engine.Evaluator.
func (ev *Evaluator) Evaluate(ctx context.Context, x engine.Expression, b engine.Bindings) (ir.IRValue, error) {
	e, ok := x.(*Expr)
	if !ok {
		return nil, fmt.Errorf("expr: cannot evaluate %T", x)
	}
	return ev.eval(ctx, e.root, b)
}

// Eval parses and evaluates src outside any method, as a top-level call
// would.
func (ev *Evaluator) Eval(ctx context.Context, src string) (ir.IRValue, error) {
	x, err := Parse(src)
	if err != nil {
		return nil, err
	}
	return ev.Evaluate(ctx, x, engine.Bindings{})
}

func (ev *Evaluator) eval(ctx context.Context, n Node, b engine.Bindings) (ir.IRValue, error) {
	switch n := n.(type) {
	case *Literal:
		return n.Value, nil
	case *Variable:
		return lookup(n, b)
	case *Call:
		return ev.evalCall(ctx, n, b)
	default:
		return nil, fmt.Errorf("expr: unknown node %T", n)
	}
}

func lookup(v *Variable, b engine.Bindings) (ir.IRValue, error) {
	if val, ok := b.Vars[v.Name]; ok {
		return val, nil
	}
	if v.Name == CurrentArgument && b.Current != nil {
		return b.Current, nil
	}
	return nil, &EvalError{Fn: v.String(), Message: "unbound variable"}
}

func (ev *Evaluator) evalCall(ctx context.Context, c *Call, b engine.Bindings) (ir.IRValue, error) {
	switch c.Fn {
	case formIf:
		return ev.evalIf(ctx, c, b)
	case formAnd:
		for _, a := range c.Args {
			v, err := ev.eval(ctx, a, b)
			if err != nil {
				return nil, err
			}
			if ir.IsFalse(v) {
				return ir.False, nil
			}
		}
		return ir.True, nil
	case formOr:
		for _, a := range c.Args {
			v, err := ev.eval(ctx, a, b)
			if err != nil {
				return nil, err
			}
			if !ir.IsFalse(v) {
				return ir.True, nil
			}
		}
		return ir.False, nil
	case formProgn:
		var result ir.IRValue = ir.False
		for _, a := range c.Args {
			v, err := ev.eval(ctx, a, b)
			if err != nil {
				return nil, err
			}
			result = v
		}
		return result, nil
	case formCallNextMethod:
		if len(c.Args) != 0 {
			return nil, evalErrorf(c.Fn, "expects no arguments")
		}
		return ev.engine.CallNextMethod(ctx)
	case formNextMethodP:
		if len(c.Args) != 0 {
			return nil, evalErrorf(c.Fn, "expects no arguments")
		}
		ok, err := ev.engine.NextMethodP(ctx)
		if err != nil {
			return nil, err
		}
		return ir.Bool(ok), nil
	case formOverrideNextMethod:
		args, err := ev.evalArgs(ctx, c.Args, b)
		if err != nil {
			return nil, err
		}
		return ev.engine.OverrideNextMethod(ctx, args)
	case formCallSpecificMethod:
		return ev.evalCallSpecific(ctx, c, b)
	case formHalt:
		ev.engine.Halt()
		return ir.False, nil
	}

	args, err := ev.evalArgs(ctx, c.Args, b)
	if err != nil {
		return nil, err
	}
	v, err := ev.engine.Call(ctx, c.Fn, args)
	if err != nil {
		var de *engine.DispatchError
		if errors.As(err, &de) && de.Code == engine.ErrCodeGenericNotFound && de.Generic == c.Fn {
			return nil, evalErrorf(c.Fn, "unknown function")
		}
		return nil, err
	}
	return v, nil
}

func (ev *Evaluator) evalArgs(ctx context.Context, nodes []Node, b engine.Bindings) (ir.IRArray, error) {
	args := make(ir.IRArray, 0, len(nodes))
	for _, a := range nodes {
		v, err := ev.eval(ctx, a, b)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	return args, nil
}

func (ev *Evaluator) evalIf(ctx context.Context, c *Call, b engine.Bindings) (ir.IRValue, error) {
	if len(c.Args) < 2 || len(c.Args) > 3 {
		return nil, evalErrorf(c.Fn, "expects a condition, a then branch and an optional else branch")
	}
	cond, err := ev.eval(ctx, c.Args[0], b)
	if err != nil {
		return nil, err
	}
	if !ir.IsFalse(cond) {
		return ev.eval(ctx, c.Args[1], b)
	}
	if len(c.Args) == 3 {
		return ev.eval(ctx, c.Args[2], b)
	}
	return ir.False, nil
}

// evalCallSpecific handles (call-specific-method generic index args...).
func (ev *Evaluator) evalCallSpecific(ctx context.Context, c *Call, b engine.Bindings) (ir.IRValue, error) {
	if len(c.Args) < 2 {
		return nil, evalErrorf(c.Fn, "expects a generic name and a method index")
	}
	vals, err := ev.evalArgs(ctx, c.Args, b)
	if err != nil {
		return nil, err
	}
	name, ok := vals[0].(ir.IRSymbol)
	if !ok {
		return nil, evalErrorf(c.Fn, "generic name must be a symbol, got %s", ir.Format(vals[0]))
	}
	id, ok := vals[1].(ir.IRInt)
	if !ok {
		return nil, evalErrorf(c.Fn, "method index must be an integer, got %s", ir.Format(vals[1]))
	}
	return ev.engine.CallSpecificMethod(ctx, string(name), int(id), vals[2:])
}
