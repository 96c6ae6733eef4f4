package expr

import (
	"errors"
	"fmt"
)

// SyntaxError reports a malformed expression.
type SyntaxError struct {
	Line    int
	Column  int
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Message)
}

// EvalError reports a failure inside a function or special form.
type EvalError struct {
	Fn      string
	Message string
	Err     error
}

func (e *EvalError) Error() string {
	msg := fmt.Sprintf("(%s): %s", e.Fn, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *EvalError) Unwrap() error {
	return e.Err
}

func evalErrorf(fn, format string, args ...any) *EvalError {
	return &EvalError{Fn: fn, Message: fmt.Sprintf(format, args...)}
}

// IsSyntaxError returns true if err is or wraps a SyntaxError.
func IsSyntaxError(err error) bool {
	var se *SyntaxError
	return errors.As(err, &se)
}

// IsEvalError returns true if err is or wraps an EvalError.
func IsEvalError(err error) bool {
	var ee *EvalError
	return errors.As(err, &ee)
}
