package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/defgeneric/internal/classes"
	"github.com/roach88/defgeneric/internal/ir"
)

// testExpr is an expression implemented by a Go closure.
type testExpr struct {
	src string
	fn  func(ctx context.Context, b Bindings) (ir.IRValue, error)
}

func (x testExpr) Source() string { return x.src }

// testEvaluator runs testExpr closures.
type testEvaluator struct{}

func (testEvaluator) Evaluate(ctx context.Context, expr Expression, b Bindings) (ir.IRValue, error) {
	x, ok := expr.(testExpr)
	if !ok {
		return nil, fmt.Errorf("unsupported expression %T", expr)
	}
	return x.fn(ctx, b)
}

// guard builds a query that tests the current argument.
func guard(src string, pred func(v ir.IRValue) bool) Expression {
	return testExpr{src: src, fn: func(_ context.Context, b Bindings) (ir.IRValue, error) {
		return ir.Bool(pred(b.Current)), nil
	}}
}

// failingGuard builds a query whose evaluation always fails.
func failingGuard(src string) Expression {
	return testExpr{src: src, fn: func(context.Context, Bindings) (ir.IRValue, error) {
		return nil, fmt.Errorf("boom")
	}}
}

// returns is a body that yields v.
func returns(v ir.IRValue) Action {
	return ActionFunc(func(context.Context, Bindings) (ir.IRValue, error) {
		return v, nil
	})
}

// body adapts a closure to Action.
func body(fn func(ctx context.Context, b Bindings) (ir.IRValue, error)) Action {
	return ActionFunc(fn)
}

func param(name string, types ...string) ParamDef {
	return ParamDef{Name: name, Types: types}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// setupEngine creates an engine over SHAPE ⊃ CIRCLE and an unrelated BOX,
// with instances c1 (CIRCLE) and b1 (BOX).
func setupEngine(t *testing.T, opts ...EngineOption) *Engine {
	t.Helper()
	h := classes.New(classes.WithLogger(quietLogger()))
	_, err := h.DefineClass("SHAPE", nil, true)
	require.NoError(t, err)
	_, err = h.DefineClass("CIRCLE", []string{"SHAPE"}, false)
	require.NoError(t, err)
	_, err = h.DefineClass("BOX", nil, false)
	require.NoError(t, err)
	_, err = h.DefineInstance("c1", "CIRCLE")
	require.NoError(t, err)
	_, err = h.DefineInstance("b1", "BOX")
	require.NoError(t, err)

	base := []EngineOption{WithLogger(quietLogger()), WithEvaluator(testEvaluator{})}
	return New(h, append(base, opts...)...)
}

// define defines a method and fails the test on error.
func define(t *testing.T, e *Engine, name string, def MethodDef) MethodInfo {
	t.Helper()
	info, err := e.DefineMethod(name, def)
	require.NoError(t, err)
	return info
}

// methodIDs lists method IDs of a generic in stored order.
func methodIDs(t *testing.T, e *Engine, name string) []int {
	t.Helper()
	infos, err := e.Methods(name)
	require.NoError(t, err)
	ids := make([]int, len(infos))
	for i, info := range infos {
		ids[i] = info.ID
	}
	return ids
}

func circle() ir.IRValue { return ir.IRInstance{Name: "c1", Class: "CIRCLE"} }

func box() ir.IRValue { return ir.IRInstance{Name: "b1", Class: "BOX"} }

func args(vals ...ir.IRValue) ir.IRArray { return ir.IRArray(vals) }

// recordingJournal keeps journal records in memory.
type recordingJournal struct {
	records []ir.DispatchRecord
	err     error
}

func (j *recordingJournal) WriteDispatch(_ context.Context, rec ir.DispatchRecord) error {
	if j.err != nil {
		return j.err
	}
	j.records = append(j.records, rec)
	return nil
}
