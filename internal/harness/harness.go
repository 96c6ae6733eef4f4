package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/defgeneric/internal/classes"
	"github.com/roach88/defgeneric/internal/compiler"
	"github.com/roach88/defgeneric/internal/engine"
	"github.com/roach88/defgeneric/internal/expr"
	"github.com/roach88/defgeneric/internal/ir"
	"github.com/roach88/defgeneric/internal/store"
	"github.com/roach88/defgeneric/internal/testutil"
)

// Harness is the test execution engine.
// It runs scenarios with sequential call tokens and a fresh logical clock.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	eval   *expr.Evaluator
	tokens *testutil.SequentialTokenGenerator
	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database and a fresh engine for
// isolation, so two runs of one scenario produce identical traces.
//
// Execution flow:
// 1. Load, compile and validate the definitions
// 2. Record them in the store and install them in the engine
// 3. Execute steps, checking each expect clause
// 4. Read the journal back as the trace
// 5. Evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	defs, err := LoadDefinitions(scenario.Definitions, scenario.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to load definitions: %w", err)
	}
	if verrs := compiler.Validate(defs); len(verrs) > 0 {
		errs := make([]error, len(verrs))
		for i, ve := range verrs {
			errs[i] = ve
		}
		return nil, fmt.Errorf("invalid definitions: %w", errors.Join(errs...))
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	hash, err := st.WriteDefinitions(ctx, defs)
	if err != nil {
		return nil, fmt.Errorf("failed to record definitions: %w", err)
	}

	logger := testutil.DiscardLogger()
	tokens := testutil.NewSequentialTokenGenerator(scenario.TokenPrefix)
	opts := []engine.EngineOption{
		engine.WithLogger(logger),
		engine.WithJournal(st),
		engine.WithTokenGenerator(tokens),
	}
	if scenario.MaxDepth > 0 {
		opts = append(opts, engine.WithMaxDepth(scenario.MaxDepth))
	}
	eng, ev := expr.NewEngine(classes.New(classes.WithLogger(logger)), opts...)
	if err := expr.Install(eng, defs); err != nil {
		return nil, fmt.Errorf("failed to install definitions: %w", err)
	}

	h := &Harness{
		store:  st,
		engine: eng,
		eval:   ev,
		tokens: tokens,
		logger: logger,
	}

	result := NewResult()
	result.DefinitionsHash = hash
	for i, step := range scenario.Steps {
		h.executeStep(ctx, i, step, result)
	}

	recs, err := st.ReadAllDispatches(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}
	result.Trace = buildTrace(recs)
	h.logger.Info("scenario executed",
		"scenario", scenario.Name,
		"calls", h.tokens.Issued(),
		"frames", len(recs),
	)

	actx := &AssertionContext{
		Engine:  eng,
		Records: recs,
		Ctx:     ctx,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

// executeStep runs one step and checks its expect clause. Failures are
// recorded on the result; later steps still run.
func (h *Harness) executeStep(ctx context.Context, i int, step Step, result *Result) {
	sr := StepResult{Action: step.Action()}

	var err error
	switch sr.Action {
	case "eval":
		sr.Input = step.Eval
		var v ir.IRValue
		v, err = h.eval.Eval(ctx, step.Eval)
		if err == nil {
			sr.Result = ir.Format(v)
		}
	case "define":
		sr.Input = "generic " + step.Define.Generic
		var info engine.MethodInfo
		info, err = h.define(step.Define)
		if err == nil {
			sr.Result = info.Signature()
		}
	case "undefine":
		sr.Input = step.Undefine.Generic
		if step.Undefine.Method != "" {
			sr.Input += "#" + step.Undefine.Method
		}
		err = h.undefine(step.Undefine)
	case "halt":
		h.engine.Halt()
	case "resume":
		h.engine.ClearHalt()
	}
	if err != nil {
		sr.Error = ErrorCode(err)
	}
	result.AddStep(sr)

	h.logger.Info("step completed",
		"step", i,
		"action", sr.Action,
		"input", sr.Input,
		"result", sr.Result,
		"error", sr.Error,
	)

	switch {
	case step.Expect == nil && err != nil:
		result.AddError(fmt.Sprintf("steps[%d] %s %q: unexpected error %s: %v", i, sr.Action, sr.Input, sr.Error, err))
	case step.Expect == nil:
	case step.Expect.Error != "":
		if sr.Error != step.Expect.Error {
			result.AddError(fmt.Sprintf("steps[%d] %s %q: expected error %s, got %s", i, sr.Action, sr.Input, step.Expect.Error, describe(sr)))
		}
	case sr.Result != step.Expect.Result:
		result.AddError(fmt.Sprintf("steps[%d] %s %q: expected %s, got %s", i, sr.Action, sr.Input, step.Expect.Result, describe(sr)))
	}
}

// describe renders what a step produced for failure messages.
func describe(sr StepResult) string {
	if sr.Error != "" {
		return "error " + sr.Error
	}
	if sr.Result == "" {
		return "no value"
	}
	return sr.Result
}

// define converts a define step into an engine method definition.
func (h *Harness) define(d *DefineStep) (engine.MethodInfo, error) {
	spec := ir.MethodSpec{Index: d.Index, Body: d.Body}
	for _, p := range d.Params {
		spec.Params = append(spec.Params, ir.ParamSpec{Name: p.Name, Types: p.Types, Query: p.Query})
	}
	if d.Wildcard != nil {
		spec.Wildcard = &ir.ParamSpec{Name: d.Wildcard.Name, Types: d.Wildcard.Types, Query: d.Wildcard.Query}
	}
	def, err := expr.MethodDef(spec)
	if err != nil {
		return engine.MethodInfo{}, err
	}
	return h.engine.DefineMethod(d.Generic, def)
}

// undefine removes a method, every user method, or the generic.
func (h *Harness) undefine(u *UndefineStep) error {
	switch u.Method {
	case "":
		return h.engine.UndefineGeneric(u.Generic)
	case "*":
		return h.engine.UndefineMethod(u.Generic, engine.AllMethods)
	default:
		id, err := strconv.Atoi(u.Method)
		if err != nil {
			return fmt.Errorf("method index %q: %w", u.Method, err)
		}
		return h.engine.UndefineMethod(u.Generic, id)
	}
}

// ErrorCode classifies an error for expect clauses and traces: the
// dispatch error code when there is one, otherwise the kind of failure.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case engine.CodeOf(err) != "":
		return string(engine.CodeOf(err))
	case engine.IsStepsExceededError(err):
		return "STEPS_EXCEEDED"
	case expr.IsSyntaxError(err):
		return "SYNTAX_ERROR"
	case expr.IsEvalError(err):
		return "EVALUATION_ERROR"
	default:
		return "ERROR"
	}
}

// buildTrace flattens journal records, replacing parent IDs with the
// parent's sequence number.
func buildTrace(recs []ir.DispatchRecord) []TraceEvent {
	seqByID := make(map[string]int64, len(recs))
	for _, r := range recs {
		seqByID[r.ID] = r.Seq
	}

	trace := make([]TraceEvent, len(recs))
	for i, r := range recs {
		trace[i] = TraceEvent{
			Token:   r.Token,
			Seq:     r.Seq,
			Parent:  seqByID[r.ParentID],
			Depth:   r.Depth,
			Kind:    r.Kind,
			Generic: r.Generic,
			Args:    ir.Format(r.Args),
			Method:  r.MethodID,
			Outcome: r.Outcome,
			Result:  r.Result,
		}
	}
	return trace
}

// LoadDefinitions compiles CUE definition files and inline source into
// one set of definitions. All inputs are unified into a single value, so
// blocks may be split across files.
func LoadDefinitions(files []string, source string) (*ir.Definitions, error) {
	cctx := cuecontext.New()
	value := cctx.CompileString("{}")

	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		v := cctx.CompileBytes(data, cue.Filename(path))
		if err := v.Err(); err != nil {
			return nil, fmt.Errorf("compile %s: %w", path, err)
		}
		value = value.Unify(v)
	}
	if source != "" {
		v := cctx.CompileString(source, cue.Filename("source"))
		if err := v.Err(); err != nil {
			return nil, fmt.Errorf("compile inline source: %w", err)
		}
		value = value.Unify(v)
	}
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("unify definitions: %w", err)
	}

	return compiler.Compile(value)
}
