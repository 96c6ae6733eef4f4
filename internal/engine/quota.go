package engine

import (
	"errors"
	"fmt"
)

// QuotaEnforcer bounds the work of one top-level call. One instance is
// created per top-level call and shared by every frame the call opens;
// Enter is called once per frame.
//
// Two limits apply:
//   - depth: frames nested inside each other (f calls f calls f ...),
//     reported as DEPTH_EXCEEDED
//   - steps: frames opened in total, however shallow (a body calling
//     g a million times), reported as *StepsExceededError
//
// Zero disables a limit.
type QuotaEnforcer struct {
	maxDepth int
	maxSteps int
	steps    int
	deepest  int
}

// NewQuotaEnforcer creates the quota of one top-level call.
func NewQuotaEnforcer(maxDepth, maxSteps int) *QuotaEnforcer {
	return &QuotaEnforcer{maxDepth: maxDepth, maxSteps: maxSteps}
}

// Enter accounts for a frame of generic opened at depth by the call
// identified by token.
func (q *QuotaEnforcer) Enter(generic, token string, depth int) error {
	if q.maxDepth > 0 && depth > q.maxDepth {
		return newError(ErrCodeDepthExceeded, generic, 0,
			"nested dispatch depth %d exceeds limit %d", depth, q.maxDepth)
	}
	q.steps++
	q.deepest = max(q.deepest, depth)
	if q.maxSteps > 0 && q.steps > q.maxSteps {
		return &StepsExceededError{
			CallToken: token,
			Steps:     q.steps,
			Limit:     q.maxSteps,
		}
	}
	return nil
}

// Steps returns the number of frames opened so far.
func (q *QuotaEnforcer) Steps() int {
	return q.steps
}

// Deepest returns the greatest depth reached so far.
func (q *QuotaEnforcer) Deepest() int {
	return q.deepest
}

// StepsExceededError is returned when a top-level call opens more frames
// than the quota allows. It unwinds the entire call.
type StepsExceededError struct {
	CallToken string // empty when the engine is not journaling
	Steps     int
	Limit     int
}

func (e *StepsExceededError) Error() string {
	if e.CallToken == "" {
		return fmt.Sprintf("call exceeded max steps quota: %d steps > %d limit", e.Steps, e.Limit)
	}
	return fmt.Sprintf("call %s exceeded max steps quota: %d steps > %d limit",
		e.CallToken, e.Steps, e.Limit)
}

// IsStepsExceededError reports whether err is or wraps a StepsExceededError.
func IsStepsExceededError(err error) bool {
	var se *StepsExceededError
	return errors.As(err, &se)
}
