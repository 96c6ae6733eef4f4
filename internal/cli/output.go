package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/defgeneric/internal/engine"
	"github.com/roach88/defgeneric/internal/expr"
	"github.com/roach88/defgeneric/internal/ir"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Invalid definitions, failed evaluation, replay divergence, failed scenarios
	ExitCommandError = 2 // Command error (invalid paths, unreadable database, bad flags)
)

// Codes shown for evaluation failures that are not dispatch errors.
const (
	CodeStepsExceeded = "STEPS_EXCEEDED"
	CodeSyntax        = "SYNTAX_ERROR"
	CodeEvaluation    = "EVALUATION_ERROR"
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // verbose diagnostics; defaults to Writer
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"` // E1xx, E0xx or a dispatch error code
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Success outputs a successful result in the configured format. In text
// mode a runtime value is printed in expression syntax.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{Status: "ok", Data: data})
	}

	if v, ok := data.(ir.IRValue); ok {
		fmt.Fprintln(f.Writer, ir.Format(v))
		return nil
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// encode writes a response as indented JSON.
func (f *OutputFormatter) encode(resp CLIResponse) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

// Failure outputs an evaluation or dispatch failure under its code.
func (f *OutputFormatter) Failure(err error) error {
	e := failureOf(err)
	return f.Error(e.Code, e.Message, e.Details)
}

// VerboseLog outputs a message only if verbose mode is enabled. It writes
// to ErrWriter when set so JSON output stays clean.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}

// failureOf describes an evaluation failure. Dispatch errors carry the
// generic and method they were raised for.
func failureOf(err error) *CLIError {
	e := &CLIError{Code: errorCode(err), Message: err.Error()}
	var de *engine.DispatchError
	if errors.As(err, &de) && de.Generic != "" {
		details := map[string]any{"generic": de.Generic}
		if de.MethodID > 0 {
			details["method"] = de.MethodID
		}
		e.Details = details
	}
	return e
}

// errorCode returns the code shown for an evaluation failure.
func errorCode(err error) string {
	switch {
	case engine.CodeOf(err) != "":
		return string(engine.CodeOf(err))
	case engine.IsStepsExceededError(err):
		return CodeStepsExceeded
	case expr.IsSyntaxError(err):
		return CodeSyntax
	case expr.IsEvalError(err):
		return CodeEvaluation
	default:
		return ErrCodeGeneric
	}
}
