package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"

	"github.com/roach88/defgeneric/internal/classes"
	"github.com/roach88/defgeneric/internal/ir"
)

// Primitive is a builtin operation registered with the engine.
//
// A non-overloadable primitive name can never become a generic function.
// An overloadable one may: when its generic is created the engine adds a
// system method whose restrictions come from the primitive's signature
// (ArgTypes applies to every argument) and whose body is Func.
type Primitive struct {
	Name         string
	Overloadable bool
	MinArgs      int
	MaxArgs      int // Unbounded for variadic primitives
	ArgTypes     []string
	Func         ActionFunc
}

// Defaults for runaway protection.
const (
	// DefaultMaxDepth is the default limit on nested dispatch frames.
	DefaultMaxDepth = 256

	// DefaultMaxSteps is the default limit on frames per top-level call.
	DefaultMaxSteps = 100000
)

// Engine owns every generic function and dispatches calls to them.
//
// Thread-safety model: none. Dispatch recursion is ordinary call-stack
// recursion on the caller's goroutine; only Halt may be called from
// another goroutine.
//
// INVARIANTS:
//   - generic order never changes except by definition and removal
//   - a generic or method is never mutated while its busy count is non-zero
//   - restriction tags are retained on the hierarchy for as long as the
//     method exists
type Engine struct {
	classes    *classes.Hierarchy
	evaluator  Evaluator
	logger     *slog.Logger
	generics   map[string]*Generic
	order      []string
	primitives map[string]Primitive
	reserved   map[string]string // name -> construct kind
	journal    Journal
	tokens     CallTokenGenerator
	clock      *Clock
	maxDepth   int
	maxSteps   int
	halted     atomic.Bool
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithEvaluator sets the evaluator used for guards and expression bodies.
func WithEvaluator(ev Evaluator) EngineOption {
	return func(e *Engine) {
		e.evaluator = ev
	}
}

// WithMaxDepth sets the nested dispatch depth limit.
//
// Default: 256 (DefaultMaxDepth).
// Deeper recursion fails with DEPTH_EXCEEDED instead of growing the stack.
func WithMaxDepth(depth int) EngineOption {
	return func(e *Engine) {
		e.maxDepth = depth
	}
}

// WithMaxSteps sets the limit on dispatch frames per top-level call.
//
// Default: 100000 (DefaultMaxSteps). 0 disables the limit.
func WithMaxSteps(maxSteps int) EngineOption {
	return func(e *Engine) {
		e.maxSteps = maxSteps
	}
}

// WithPrimitive registers a builtin operation.
func WithPrimitive(p Primitive) EngineOption {
	return func(e *Engine) {
		e.primitives[p.Name] = p
	}
}

// WithReservedNames marks names owned by another construct kind
// (for example "deftemplate"). Generic functions may not use them.
func WithReservedNames(kind string, names ...string) EngineOption {
	return func(e *Engine) {
		for _, n := range names {
			e.reserved[n] = kind
		}
	}
}

// WithJournal records every dispatch frame.
func WithJournal(j Journal) EngineOption {
	return func(e *Engine) {
		e.journal = j
	}
}

// WithTokenGenerator sets the call token generator used for journaling.
// Default: UUIDv7Generator.
func WithTokenGenerator(g CallTokenGenerator) EngineOption {
	return func(e *Engine) {
		e.tokens = g
	}
}

// WithClock sets the logical clock stamping dispatch frames.
// Used for replay to resume from a specific sequence number.
func WithClock(c *Clock) EngineOption {
	return func(e *Engine) {
		e.clock = c
	}
}

// New creates an Engine over the given class hierarchy.
//
// Options can be passed to configure the engine (e.g., WithEvaluator,
// WithPrimitive, WithMaxDepth).
func New(h *classes.Hierarchy, opts ...EngineOption) *Engine {
	e := &Engine{
		classes:    h,
		logger:     slog.Default(),
		generics:   make(map[string]*Generic),
		primitives: make(map[string]Primitive),
		reserved:   make(map[string]string),
		tokens:     UUIDv7Generator{},
		clock:      NewClock(),
		maxDepth:   DefaultMaxDepth,
		maxSteps:   DefaultMaxSteps,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Classes returns the class hierarchy the engine dispatches over.
func (e *Engine) Classes() *classes.Hierarchy {
	return e.classes
}

// Clock returns the logical clock stamping dispatch frames.
func (e *Engine) Clock() *Clock {
	return e.clock
}

// Primitive looks up a registered builtin.
func (e *Engine) Primitive(name string) (Primitive, bool) {
	p, ok := e.primitives[name]
	return p, ok
}

// checkName enforces the name-collision rules for generic functions.
func (e *Engine) checkName(name string) error {
	if kind, ok := e.reserved[name]; ok {
		return newError(ErrCodeDefinitionConflict, name, 0, "name is already used by a %s", kind)
	}
	if p, ok := e.primitives[name]; ok && !p.Overloadable {
		return newError(ErrCodeDefinitionConflict, name, 0, "cannot overload non-overloadable primitive")
	}
	return nil
}

// newGenericFor builds an unregistered generic, with its system method
// when name is an overloadable primitive.
func (e *Engine) newGenericFor(name string) (*Generic, error) {
	if err := e.checkName(name); err != nil {
		return nil, err
	}
	g := newGeneric(name)

	p, ok := e.primitives[name]
	if !ok {
		return g, nil
	}

	var body Action = p.Func
	if p.Func == nil {
		body = ActionFunc(func(context.Context, Bindings) (ir.IRValue, error) {
			return nil, fmt.Errorf("primitive %s has no implementation", name)
		})
	}
	def := MethodDef{Body: body}
	for i := 0; i < p.MinArgs; i++ {
		def.Params = append(def.Params, ParamDef{Name: fmt.Sprintf("arg%d", i+1), Types: p.ArgTypes})
	}
	if p.MaxArgs != p.MinArgs {
		def.Wildcard = &ParamDef{Name: "rest", Types: p.ArgTypes}
	}
	rs, err := buildRestrictions(e.classes, name, def.allParams())
	if err != nil {
		return nil, fmt.Errorf("system method for %s: %w", name, err)
	}
	minArgs, maxArgs := def.arity()
	if _, _, err := g.placeMethod(e.classes, rs, paramNames(def), minArgs, maxArgs, 0, def.Body, true); err != nil {
		return nil, err
	}
	return g, nil
}

func (e *Engine) register(g *Generic) {
	e.generics[g.Name] = g
	e.order = append(e.order, g.Name)
	e.logger.Info("generic defined", "generic", g.Name, "system_methods", g.Len())
}

// DefineGeneric creates the generic function header if it does not exist.
// Idempotent.
func (e *Engine) DefineGeneric(name string) error {
	if _, ok := e.generics[name]; ok {
		return nil
	}
	g, err := e.newGenericFor(name)
	if err != nil {
		return err
	}
	e.register(g)
	return nil
}

// DefineMethod defines or redefines a method, creating the generic on
// first use. A method whose restrictions are identical to an existing
// one replaces its body in place, keeping slot and ID.
//
// Fails with DEFINITION_CONFLICT on redundant type lists, unknown
// classes, explicit index collisions or a clash with a system method,
// and with REENTRANCY_VIOLATION while the generic is executing. On
// failure nothing is registered.
func (e *Engine) DefineMethod(name string, def MethodDef) (MethodInfo, error) {
	if def.Body == nil {
		return MethodInfo{}, newError(ErrCodeDefinitionConflict, name, def.ID, "method has no body")
	}
	if def.ID < 0 {
		return MethodInfo{}, newError(ErrCodeDefinitionConflict, name, def.ID, "method index must be positive")
	}

	g, exists := e.generics[name]
	if exists && g.busy > 0 {
		return MethodInfo{}, newError(ErrCodeReentrancyViolation, name, def.ID,
			"cannot define methods while the generic is executing")
	}
	if !exists {
		var err error
		if g, err = e.newGenericFor(name); err != nil {
			return MethodInfo{}, err
		}
	}
	abandon := func(err error) (MethodInfo, error) {
		if !exists {
			g.destroy(e.classes)
		}
		return MethodInfo{}, err
	}

	params := def.allParams()
	for _, p := range params {
		if p.Query != nil && e.evaluator == nil {
			return abandon(newError(ErrCodeDefinitionConflict, name, def.ID,
				"parameter %s has a query but no evaluator is configured", p.Name))
		}
	}
	if ea, ok := def.Body.(ExpressionAction); ok && ea.Evaluator == nil {
		if e.evaluator == nil {
			return abandon(newError(ErrCodeDefinitionConflict, name, def.ID, "expression body but no evaluator is configured"))
		}
		ea.Evaluator = e.evaluator
		def.Body = ea
	}

	rs, err := buildRestrictions(e.classes, name, params)
	if err != nil {
		return abandon(err)
	}
	minArgs, maxArgs := def.arity()
	m, replaced, err := g.placeMethod(e.classes, rs, paramNames(def), minArgs, maxArgs, def.ID, def.Body, false)
	if err != nil {
		for i := range rs {
			rs[i].release(e.classes)
		}
		return abandon(err)
	}

	if !exists {
		e.register(g)
	}
	info := methodInfo(g, m)
	if replaced {
		e.logger.Info("method redefined", "generic", name, "method", m.ID, "signature", info.Signature())
	} else {
		e.logger.Info("method defined", "generic", name, "method", m.ID, "signature", info.Signature())
	}
	return info, nil
}

func paramNames(def MethodDef) []string {
	params := def.allParams()
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = p.Name
	}
	return names
}

// UndefineMethod removes one user method, or every user method when id
// is AllMethods. Removing the last user method destroys the generic.
//
// Refused with REENTRANCY_VIOLATION while the generic or method is busy;
// the removal is not queued.
func (e *Engine) UndefineMethod(name string, id int) error {
	g, ok := e.generics[name]
	if !ok {
		return newError(ErrCodeGenericNotFound, name, 0, "no such generic function")
	}
	if g.busy > 0 {
		e.logger.Warn("method removal refused", "generic", name, "method", id, "busy", g.busy)
		return newError(ErrCodeReentrancyViolation, name, id, "generic function is executing")
	}

	if id == AllMethods {
		for i := len(g.methods) - 1; i >= 0; i-- {
			if !g.methods[i].System {
				g.removeAt(e.classes, i)
			}
		}
		e.logger.Info("methods removed", "generic", name)
	} else {
		slot, m := g.findMethod(id)
		if m == nil {
			return newError(ErrCodeMethodNotFound, name, id, "no such method")
		}
		if m.System {
			return newError(ErrCodeDefinitionConflict, name, id, "cannot remove a method provided by the runtime")
		}
		if m.busy > 0 {
			e.logger.Warn("method removal refused", "generic", name, "method", id, "busy", m.busy)
			return newError(ErrCodeReentrancyViolation, name, id, "method is executing")
		}
		g.removeAt(e.classes, slot)
		e.logger.Info("method removed", "generic", name, "method", id)
	}

	if g.userMethods() == 0 {
		e.remove(g)
	}
	return nil
}

// UndefineGeneric removes a generic function and all its methods, or
// every generic when name is "*". Refused with REENTRANCY_VIOLATION while
// any affected generic is executing; nothing is removed in that case.
func (e *Engine) UndefineGeneric(name string) error {
	var targets []*Generic
	if name == "*" {
		for _, n := range e.order {
			targets = append(targets, e.generics[n])
		}
	} else {
		g, ok := e.generics[name]
		if !ok {
			return newError(ErrCodeGenericNotFound, name, 0, "no such generic function")
		}
		targets = []*Generic{g}
	}

	for _, g := range targets {
		if g.busy > 0 {
			e.logger.Warn("generic removal refused", "generic", g.Name, "busy", g.busy)
			return newError(ErrCodeReentrancyViolation, g.Name, 0, "generic function is executing")
		}
	}
	for _, g := range targets {
		e.remove(g)
	}
	return nil
}

func (e *Engine) remove(g *Generic) {
	g.destroy(e.classes)
	delete(e.generics, g.Name)
	e.order = slices.DeleteFunc(e.order, func(n string) bool { return n == g.Name })
	e.logger.Info("generic removed", "generic", g.Name)
}

// Generic looks up a generic function by name.
func (e *Engine) Generic(name string) (*Generic, bool) {
	g, ok := e.generics[name]
	return g, ok
}

// Generics returns generic function names in definition order.
func (e *Engine) Generics() []string {
	return slices.Clone(e.order)
}

// Halt requests that every active dispatch unwind. Safe to call from any
// goroutine.
func (e *Engine) Halt() {
	e.halted.Store(true)
}

// ClearHalt allows dispatch again after Halt.
func (e *Engine) ClearHalt() {
	e.halted.Store(false)
}

// Halted reports whether Halt is in effect.
func (e *Engine) Halted() bool {
	return e.halted.Load()
}
