package expr

import (
	"context"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/roach88/defgeneric/internal/classes"
	"github.com/roach88/defgeneric/internal/engine"
	"github.com/roach88/defgeneric/internal/ir"
)

// Builtins returns the builtin functions as engine primitives.
//
// Arithmetic, str-cat, sym-cat and length$ are overloadable: defining a
// method for one of them creates a generic whose system method is the
// builtin. The rest are fixed.
func Builtins(h *classes.Hierarchy) []engine.Primitive {
	numeric := []string{classes.Number}
	return []engine.Primitive{
		{Name: "+", Overloadable: true, MinArgs: 2, MaxArgs: engine.Unbounded, ArgTypes: numeric, Func: arith("+")},
		{Name: "-", Overloadable: true, MinArgs: 2, MaxArgs: engine.Unbounded, ArgTypes: numeric, Func: arith("-")},
		{Name: "*", Overloadable: true, MinArgs: 2, MaxArgs: engine.Unbounded, ArgTypes: numeric, Func: arith("*")},
		{Name: "/", Overloadable: true, MinArgs: 2, MaxArgs: engine.Unbounded, ArgTypes: numeric, Func: divide},
		{Name: "div", Overloadable: true, MinArgs: 2, MaxArgs: engine.Unbounded, ArgTypes: numeric, Func: intDivide},

		{Name: "=", MinArgs: 2, MaxArgs: engine.Unbounded, Func: compare("=", func(c int) bool { return c == 0 })},
		{Name: "<>", MinArgs: 2, MaxArgs: engine.Unbounded, Func: numNotEqual},
		{Name: "<", MinArgs: 2, MaxArgs: engine.Unbounded, Func: compare("<", func(c int) bool { return c < 0 })},
		{Name: "<=", MinArgs: 2, MaxArgs: engine.Unbounded, Func: compare("<=", func(c int) bool { return c <= 0 })},
		{Name: ">", MinArgs: 2, MaxArgs: engine.Unbounded, Func: compare(">", func(c int) bool { return c > 0 })},
		{Name: ">=", MinArgs: 2, MaxArgs: engine.Unbounded, Func: compare(">=", func(c int) bool { return c >= 0 })},

		{Name: "eq", MinArgs: 2, MaxArgs: engine.Unbounded, Func: eq},
		{Name: "neq", MinArgs: 2, MaxArgs: engine.Unbounded, Func: neq},
		{Name: "not", MinArgs: 1, MaxArgs: 1, Func: not},

		{Name: "str-cat", Overloadable: true, MinArgs: 1, MaxArgs: engine.Unbounded, Func: strCat},
		{Name: "sym-cat", Overloadable: true, MinArgs: 1, MaxArgs: engine.Unbounded, Func: symCat},
		{Name: "length$", Overloadable: true, MinArgs: 1, MaxArgs: 1, Func: length},
		{Name: "create$", MinArgs: 0, MaxArgs: engine.Unbounded, Func: create},
		{Name: "nth$", MinArgs: 2, MaxArgs: 2, Func: nth},
		{Name: "first$", MinArgs: 1, MaxArgs: 1, Func: first},
		{Name: "rest$", MinArgs: 1, MaxArgs: 1, Func: rest},

		{Name: "integerp", MinArgs: 1, MaxArgs: 1, Func: predicate(func(v ir.IRValue) bool { _, ok := v.(ir.IRInt); return ok })},
		{Name: "floatp", MinArgs: 1, MaxArgs: 1, Func: predicate(func(v ir.IRValue) bool { _, ok := v.(ir.IRFloat); return ok })},
		{Name: "numberp", MinArgs: 1, MaxArgs: 1, Func: predicate(isNumber)},
		{Name: "stringp", MinArgs: 1, MaxArgs: 1, Func: predicate(func(v ir.IRValue) bool { _, ok := v.(ir.IRString); return ok })},
		{Name: "symbolp", MinArgs: 1, MaxArgs: 1, Func: predicate(func(v ir.IRValue) bool { _, ok := v.(ir.IRSymbol); return ok })},
		{Name: "lexemep", MinArgs: 1, MaxArgs: 1, Func: predicate(isLexeme)},
		{Name: "multifieldp", MinArgs: 1, MaxArgs: 1, Func: predicate(func(v ir.IRValue) bool { _, ok := v.(ir.IRArray); return ok })},
		{Name: "instancep", MinArgs: 1, MaxArgs: 1, Func: predicate(isInstance)},

		{Name: "class", MinArgs: 1, MaxArgs: 1, Func: func(_ context.Context, b engine.Bindings) (ir.IRValue, error) {
			return ir.IRSymbol(h.ClassOf(b.Args[0]).Name), nil
		}},
	}
}

// number is an integer or float operand.
type number struct {
	i       int64
	f       float64
	isFloat bool
}

func (n number) float() float64 {
	if n.isFloat {
		return n.f
	}
	return float64(n.i)
}

func (n number) value() ir.IRValue {
	if n.isFloat {
		return ir.IRFloat(n.f)
	}
	return ir.IRInt(n.i)
}

func toNumber(fn string, pos int, v ir.IRValue) (number, error) {
	switch n := v.(type) {
	case ir.IRInt:
		return number{i: int64(n)}, nil
	case ir.IRFloat:
		return number{f: float64(n), isFloat: true}, nil
	default:
		return number{}, evalErrorf(fn, "argument %d must be a number, got %s", pos+1, ir.Format(v))
	}
}

func numbers(fn string, args ir.IRArray) ([]number, error) {
	out := make([]number, len(args))
	for i, a := range args {
		n, err := toNumber(fn, i, a)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

// arith folds +, - or * left to right. The result is an integer unless an
// operand is a float.
func arith(op string) engine.ActionFunc {
	return func(_ context.Context, b engine.Bindings) (ir.IRValue, error) {
		ns, err := numbers(op, b.Args)
		if err != nil {
			return nil, err
		}
		acc := ns[0]
		for _, n := range ns[1:] {
			if acc.isFloat || n.isFloat {
				x, y := acc.float(), n.float()
				switch op {
				case "+":
					acc = number{f: x + y, isFloat: true}
				case "-":
					acc = number{f: x - y, isFloat: true}
				case "*":
					acc = number{f: x * y, isFloat: true}
				}
				continue
			}
			switch op {
			case "+":
				acc.i += n.i
			case "-":
				acc.i -= n.i
			case "*":
				acc.i *= n.i
			}
		}
		return acc.value(), nil
	}
}

// divide always yields a float.
func divide(_ context.Context, b engine.Bindings) (ir.IRValue, error) {
	ns, err := numbers("/", b.Args)
	if err != nil {
		return nil, err
	}
	acc := ns[0].float()
	for _, n := range ns[1:] {
		if n.float() == 0 {
			return nil, evalErrorf("/", "division by zero")
		}
		acc /= n.float()
	}
	if math.IsInf(acc, 0) || math.IsNaN(acc) {
		return nil, evalErrorf("/", "result out of range")
	}
	return ir.IRFloat(acc), nil
}

// intDivide truncates every operand and the quotient to integers.
func intDivide(_ context.Context, b engine.Bindings) (ir.IRValue, error) {
	ns, err := numbers("div", b.Args)
	if err != nil {
		return nil, err
	}
	acc := int64(ns[0].float())
	for _, n := range ns[1:] {
		d := int64(n.float())
		if d == 0 {
			return nil, evalErrorf("div", "division by zero")
		}
		acc /= d
	}
	return ir.IRInt(acc), nil
}

func cmpNumbers(a, b number) int {
	if !a.isFloat && !b.isFloat {
		switch {
		case a.i < b.i:
			return -1
		case a.i > b.i:
			return 1
		}
		return 0
	}
	x, y := a.float(), b.float()
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

// compare checks ok for every adjacent pair of operands.
func compare(fn string, ok func(int) bool) engine.ActionFunc {
	return func(_ context.Context, b engine.Bindings) (ir.IRValue, error) {
		ns, err := numbers(fn, b.Args)
		if err != nil {
			return nil, err
		}
		for i := 1; i < len(ns); i++ {
			if !ok(cmpNumbers(ns[i-1], ns[i])) {
				return ir.False, nil
			}
		}
		return ir.True, nil
	}
}

// numNotEqual is TRUE when the first operand differs from all others.
func numNotEqual(_ context.Context, b engine.Bindings) (ir.IRValue, error) {
	ns, err := numbers("<>", b.Args)
	if err != nil {
		return nil, err
	}
	for _, n := range ns[1:] {
		if cmpNumbers(ns[0], n) == 0 {
			return ir.False, nil
		}
	}
	return ir.True, nil
}

func eq(_ context.Context, b engine.Bindings) (ir.IRValue, error) {
	for _, v := range b.Args[1:] {
		if !ir.Equal(b.Args[0], v) {
			return ir.False, nil
		}
	}
	return ir.True, nil
}

func neq(_ context.Context, b engine.Bindings) (ir.IRValue, error) {
	for _, v := range b.Args[1:] {
		if ir.Equal(b.Args[0], v) {
			return ir.False, nil
		}
	}
	return ir.True, nil
}

func not(_ context.Context, b engine.Bindings) (ir.IRValue, error) {
	return ir.Bool(ir.IsFalse(b.Args[0])), nil
}

// text renders a value for concatenation: lexemes and instance names
// without quotes or brackets.
func text(v ir.IRValue) string {
	switch val := v.(type) {
	case ir.IRString:
		return string(val)
	case ir.IRSymbol:
		return string(val)
	case ir.IRInstanceName:
		return string(val)
	case ir.IRInstance:
		return val.Name
	default:
		return ir.Format(v)
	}
}

func concat(args ir.IRArray) string {
	var sb strings.Builder
	for _, a := range args {
		sb.WriteString(text(a))
	}
	return sb.String()
}

func strCat(_ context.Context, b engine.Bindings) (ir.IRValue, error) {
	return ir.IRString(concat(b.Args)), nil
}

func symCat(_ context.Context, b engine.Bindings) (ir.IRValue, error) {
	return ir.IRSymbol(concat(b.Args)), nil
}

func length(_ context.Context, b engine.Bindings) (ir.IRValue, error) {
	switch v := b.Args[0].(type) {
	case ir.IRArray:
		return ir.IRInt(len(v)), nil
	case ir.IRString:
		return ir.IRInt(utf8.RuneCountInString(string(v))), nil
	case ir.IRSymbol:
		return ir.IRInt(utf8.RuneCountInString(string(v))), nil
	default:
		return nil, evalErrorf("length$", "expects a multifield or lexeme, got %s", ir.Format(v))
	}
}

// create flattens its arguments into one multifield.
func create(_ context.Context, b engine.Bindings) (ir.IRValue, error) {
	out := ir.IRArray{}
	for _, a := range b.Args {
		if mf, ok := a.(ir.IRArray); ok {
			out = append(out, mf...)
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func multifield(fn string, v ir.IRValue) (ir.IRArray, error) {
	mf, ok := v.(ir.IRArray)
	if !ok {
		return nil, evalErrorf(fn, "expects a multifield, got %s", ir.Format(v))
	}
	return mf, nil
}

// nth returns the 1-based element, or nil when out of range.
func nth(_ context.Context, b engine.Bindings) (ir.IRValue, error) {
	i, ok := b.Args[0].(ir.IRInt)
	if !ok {
		return nil, evalErrorf("nth$", "index must be an integer, got %s", ir.Format(b.Args[0]))
	}
	mf, err := multifield("nth$", b.Args[1])
	if err != nil {
		return nil, err
	}
	if i < 1 || int(i) > len(mf) {
		return ir.IRSymbol("nil"), nil
	}
	return mf[i-1], nil
}

func first(_ context.Context, b engine.Bindings) (ir.IRValue, error) {
	mf, err := multifield("first$", b.Args[0])
	if err != nil {
		return nil, err
	}
	if len(mf) == 0 {
		return ir.IRArray{}, nil
	}
	return ir.IRArray{mf[0]}, nil
}

func rest(_ context.Context, b engine.Bindings) (ir.IRValue, error) {
	mf, err := multifield("rest$", b.Args[0])
	if err != nil {
		return nil, err
	}
	if len(mf) == 0 {
		return ir.IRArray{}, nil
	}
	return append(ir.IRArray{}, mf[1:]...), nil
}

func predicate(test func(ir.IRValue) bool) engine.ActionFunc {
	return func(_ context.Context, b engine.Bindings) (ir.IRValue, error) {
		return ir.Bool(test(b.Args[0])), nil
	}
}

func isNumber(v ir.IRValue) bool {
	switch v.(type) {
	case ir.IRInt, ir.IRFloat:
		return true
	}
	return false
}

func isLexeme(v ir.IRValue) bool {
	switch v.(type) {
	case ir.IRString, ir.IRSymbol:
		return true
	}
	return false
}

func isInstance(v ir.IRValue) bool {
	switch v.(type) {
	case ir.IRInstance, ir.IRInstanceName:
		return true
	}
	return false
}
