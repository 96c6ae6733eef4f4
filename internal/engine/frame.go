package engine

import (
	"context"

	"github.com/roach88/defgeneric/internal/ir"
)

// frame is the context of one dispatch: the generic, the selected method
// and its slot, and the arguments bound once for the whole shadow chain.
// Frames travel in context.Context, so the caller's frame is restored
// simply by returning to the caller's ctx.
type frame struct {
	generic *Generic
	method  *Method
	slot    int
	args    ir.IRArray
	parent  *frame
	kind    string
	depth   int
	seq     int64
	token   string
	id      string
	quota   *QuotaEnforcer
}

type frameKey struct{}

func withFrame(ctx context.Context, f *frame) context.Context {
	return context.WithValue(ctx, frameKey{}, f)
}

func frameFrom(ctx context.Context) *frame {
	f, _ := ctx.Value(frameKey{}).(*frame)
	return f
}

// CurrentArgs returns the arguments of the innermost executing method.
func CurrentArgs(ctx context.Context) (ir.IRArray, bool) {
	f := frameFrom(ctx)
	if f == nil || f.method == nil {
		return nil, false
	}
	return f.args, true
}

// CurrentMethod returns the generic name and method ID executing in ctx.
func CurrentMethod(ctx context.Context) (generic string, id int, ok bool) {
	f := frameFrom(ctx)
	if f == nil || f.method == nil {
		return "", 0, false
	}
	return f.generic.Name, f.method.ID, true
}

// InMethod reports whether ctx is inside a method body.
func InMethod(ctx context.Context) bool {
	f := frameFrom(ctx)
	return f != nil && f.method != nil
}
