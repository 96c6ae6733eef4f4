package harness

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/defgeneric/internal/engine"
	"github.com/roach88/defgeneric/internal/ir"
)

// AssertionContext provides what assertions may inspect besides the trace.
type AssertionContext struct {
	Engine  *engine.Engine
	Records []ir.DispatchRecord // raw journal, for replay
	Ctx     context.Context
}

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s%s %s #%d %s %s\n",
				event.Seq, strings.Repeat("  ", event.Depth-1), event.Kind,
				event.Generic, event.Method, event.Args, event.Outcome)
		}
	}

	return buf.String()
}

// EvaluateAssertions checks every assertion and returns one message per
// failure.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var failures []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertMethods:
			err = assertMethods(actx, a)
		case AssertReplay:
			err = assertReplay(actx)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

// frameMatches applies the optional filters of a trace assertion.
func frameMatches(event TraceEvent, a Assertion) bool {
	if event.Generic != a.Generic {
		return false
	}
	if a.Kind != "" && event.Kind != a.Kind {
		return false
	}
	if a.Method != nil && event.Method != *a.Method {
		return false
	}
	if a.Outcome != "" && event.Outcome != a.Outcome {
		return false
	}
	return true
}

// assertTraceContains checks if some frame matches the assertion.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if frameMatches(event, assertion) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: describeFilter(assertion),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// describeFilter renders the filters of a trace assertion.
func describeFilter(a Assertion) string {
	parts := []string{"generic " + a.Generic}
	if a.Kind != "" {
		parts = append(parts, "kind "+a.Kind)
	}
	if a.Method != nil {
		parts = append(parts, fmt.Sprintf("method %d", *a.Method))
	}
	if a.Outcome != "" {
		parts = append(parts, "outcome "+a.Outcome)
	}
	return "frame with " + strings.Join(parts, ", ")
}

// parseFrameRef splits "generic#method".
func parseFrameRef(ref string) (string, int, error) {
	i := strings.LastIndexByte(ref, '#')
	if i <= 0 {
		return "", 0, fmt.Errorf("frame %q: want generic#method", ref)
	}
	id, err := strconv.Atoi(ref[i+1:])
	if err != nil {
		return "", 0, fmt.Errorf("frame %q: bad method index: %w", ref, err)
	}
	return ref[:i], id, nil
}

// assertTraceOrder checks that the frames appear in the given order.
// Frames don't need to be consecutive (intervening frames are allowed).
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	next := 0
	for _, event := range trace {
		if next == len(assertion.Frames) {
			break
		}
		generic, id, err := parseFrameRef(assertion.Frames[next])
		if err != nil {
			return err
		}
		if event.Generic == generic && event.Method == id {
			next++
		}
	}

	if next < len(assertion.Frames) {
		return &AssertionError{
			Type:     AssertTraceOrder,
			Expected: fmt.Sprintf("frames in order: %v", assertion.Frames),
			Actual:   fmt.Sprintf("missing %s after %v", assertion.Frames[next], assertion.Frames[:next]),
			Trace:    trace,
		}
	}
	return nil
}

// assertTraceCount checks if the generic appears exactly the specified
// number of times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Generic == assertion.Generic && (assertion.Kind == "" || event.Kind == assertion.Kind) {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d frames of %s", assertion.Count, assertion.Generic),
			Actual:   fmt.Sprintf("%d frames", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertMethods checks the precedence order of a generic's methods.
func assertMethods(actx *AssertionContext, assertion Assertion) error {
	infos, err := actx.Engine.Methods(assertion.Generic)
	if err != nil {
		return &AssertionError{
			Type:     AssertMethods,
			Expected: fmt.Sprintf("generic %s with methods %v", assertion.Generic, assertion.IDs),
			Actual:   err.Error(),
		}
	}

	ids := make([]int, len(infos))
	for i, info := range infos {
		ids[i] = info.ID
	}
	if !slices.Equal(ids, assertion.IDs) && !(len(ids) == 0 && len(assertion.IDs) == 0) {
		return &AssertionError{
			Type:     AssertMethods,
			Expected: fmt.Sprintf("methods of %s in order %v", assertion.Generic, assertion.IDs),
			Actual:   fmt.Sprintf("%v", ids),
		}
	}
	return nil
}

// assertReplay re-executes every recorded call and checks that each
// selects the same methods.
func assertReplay(actx *AssertionContext) error {
	results, err := actx.Engine.Replay(actx.Ctx, actx.Records)
	if err != nil {
		return &AssertionError{
			Type:     AssertReplay,
			Expected: "all recorded calls replayed",
			Actual:   err.Error(),
		}
	}

	for _, r := range results {
		if !r.Match {
			return &AssertionError{
				Type:     AssertReplay,
				Expected: fmt.Sprintf("call %s (%s %s) selects %v", r.Token, r.Generic, ir.Format(r.Args), r.Recorded),
				Actual:   fmt.Sprintf("%v", r.Replayed),
			}
		}
	}
	return nil
}
