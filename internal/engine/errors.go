package engine

import (
	"errors"
	"fmt"
)

// DispatchError represents an error detected while defining, removing or
// dispatching generic functions.
//
// Dispatch errors include:
//   - Definition conflicts: redundant type tags, name collisions, system methods
//   - No applicable method: selection exhausted the method sequence
//   - Shadow context: call-next-method outside a method body or with nothing left
//   - Reentrancy violation: removal of a busy method or generic
//   - Guard evaluation: the evaluator failed on a restriction query
//   - Halt: evaluation was halted or the context was cancelled
//
// DispatchError includes structured fields for diagnostics.
type DispatchError struct {
	// Code identifies the error category.
	Code DispatchErrorCode

	// Generic names the generic function involved, if any.
	Generic string

	// MethodID identifies the method involved (0 when none).
	MethodID int

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause (evaluator or hierarchy error).
	Err error
}

// DispatchErrorCode categorizes dispatch errors.
type DispatchErrorCode string

const (
	// ErrCodeDefinitionConflict indicates a definition was refused and nothing was registered.
	ErrCodeDefinitionConflict DispatchErrorCode = "DEFINITION_CONFLICT"

	// ErrCodeNoApplicableMethod indicates no method accepts the arguments.
	ErrCodeNoApplicableMethod DispatchErrorCode = "NO_APPLICABLE_METHOD"

	// ErrCodeShadowContext indicates a call-next protocol operation with no method to resume from.
	ErrCodeShadowContext DispatchErrorCode = "SHADOW_CONTEXT"

	// ErrCodeReentrancyViolation indicates a mutation of a generic or method that is busy.
	ErrCodeReentrancyViolation DispatchErrorCode = "REENTRANCY_VIOLATION"

	// ErrCodeGuardEvaluation indicates a restriction query raised an evaluation error.
	ErrCodeGuardEvaluation DispatchErrorCode = "GUARD_EVALUATION"

	// ErrCodeHaltRequested indicates evaluation was halted.
	ErrCodeHaltRequested DispatchErrorCode = "HALT_REQUESTED"

	// ErrCodeMethodNotFound indicates an unknown method index.
	ErrCodeMethodNotFound DispatchErrorCode = "METHOD_NOT_FOUND"

	// ErrCodeGenericNotFound indicates an unknown generic function name.
	ErrCodeGenericNotFound DispatchErrorCode = "GENERIC_NOT_FOUND"

	// ErrCodeDepthExceeded indicates nested dispatch went deeper than the configured limit.
	ErrCodeDepthExceeded DispatchErrorCode = "DEPTH_EXCEEDED"
)

// Error implements the error interface.
func (e *DispatchError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	switch {
	case e.Generic != "" && e.MethodID != 0:
		msg = fmt.Sprintf("%s (generic=%s, method=#%d)", msg, e.Generic, e.MethodID)
	case e.Generic != "":
		msg = fmt.Sprintf("%s (generic=%s)", msg, e.Generic)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *DispatchError) Unwrap() error {
	return e.Err
}

func newError(code DispatchErrorCode, generic string, methodID int, format string, args ...any) *DispatchError {
	return &DispatchError{
		Code:     code,
		Generic:  generic,
		MethodID: methodID,
		Message:  fmt.Sprintf(format, args...),
	}
}

// CodeOf returns the code of the outermost DispatchError in err's chain,
// or "" if there is none.
func CodeOf(err error) DispatchErrorCode {
	var de *DispatchError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

func hasCode(err error, code DispatchErrorCode) bool {
	return CodeOf(err) == code
}

// IsDefinitionConflict returns true if a definition was refused.
// Uses errors.As to handle wrapped errors.
func IsDefinitionConflict(err error) bool {
	return hasCode(err, ErrCodeDefinitionConflict)
}

// IsNoApplicableMethod returns true if no method accepted the arguments.
func IsNoApplicableMethod(err error) bool {
	return hasCode(err, ErrCodeNoApplicableMethod)
}

// IsShadowContext returns true if a call-next protocol operation had nothing to resume.
func IsShadowContext(err error) bool {
	return hasCode(err, ErrCodeShadowContext)
}

// IsReentrancyViolation returns true if a mutation was refused because the target was busy.
func IsReentrancyViolation(err error) bool {
	return hasCode(err, ErrCodeReentrancyViolation)
}

// IsGuardError returns true if a restriction query failed to evaluate.
func IsGuardError(err error) bool {
	return hasCode(err, ErrCodeGuardEvaluation)
}

// IsHalted returns true if evaluation was halted.
func IsHalted(err error) bool {
	return hasCode(err, ErrCodeHaltRequested)
}

// IsNotFound returns true for unknown generic or method errors.
func IsNotFound(err error) bool {
	code := CodeOf(err)
	return code == ErrCodeGenericNotFound || code == ErrCodeMethodNotFound
}

// IsDepthExceeded returns true if nested dispatch exceeded the depth limit.
func IsDepthExceeded(err error) bool {
	return hasCode(err, ErrCodeDepthExceeded)
}
