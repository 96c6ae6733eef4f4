package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/defgeneric/internal/engine"
	"github.com/roach88/defgeneric/internal/expr"
	"github.com/roach88/defgeneric/internal/ir"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Success(map[string]string{"generic": "describe"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]any{"generic": "describe"}, resp.Data)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	tests := []struct {
		name string
		data any
		want string
	}{
		{"plain", "All definitions valid", "All definitions valid\n"},
		{"string value", ir.IRString("circle>thing"), "\"circle>thing\"\n"},
		{"multifield", ir.IRArray{ir.IRInt(1), ir.IRSymbol("a")}, "(1 a)\n"},
		{"instance name", ir.IRInstanceName("c1"), "[c1]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "text", Writer: buf}

			require.NoError(t, formatter.Success(tt.data))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	details := map[string]string{"file": "shapes.cue"}
	require.NoError(t, formatter.Error("E102", "unknown superclass", details))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E102", resp.Error.Code)
	assert.Equal(t, "unknown superclass", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextError(t *testing.T) {
	tests := []struct {
		name        string
		verbose     bool
		wantDetails bool
	}{
		{"quiet", false, false},
		{"verbose", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: tt.verbose}

			require.NoError(t, formatter.Error("E105", "unknown class CIRCEL", map[string]string{"field": "instance.c1"}))
			assert.Contains(t, buf.String(), "Error [E105]: unknown class CIRCEL")
			if tt.wantDetails {
				assert.Contains(t, buf.String(), "Details:")
			} else {
				assert.NotContains(t, buf.String(), "Details:")
			}
		})
	}
}

func TestOutputFormatter_FailureJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	sess := openTestSession(t, writeDefs(t, shapesDefs))

	_, err := sess.eval.Eval(t.Context(), "(describe)")
	require.Error(t, err)

	formatter := &OutputFormatter{Format: "json", Writer: buf}
	require.NoError(t, formatter.Failure(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NO_APPLICABLE_METHOD", resp.Error.Code)
	assert.Equal(t, map[string]any{"generic": "describe"}, resp.Error.Details)
}

func TestErrorCode(t *testing.T) {
	_, syntaxErr := expr.Parse("(describe")
	require.Error(t, syntaxErr)

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"dispatch", &engine.DispatchError{Code: engine.ErrCodeShadowContext, Message: "no frame"}, "SHADOW_CONTEXT"},
		{"wrapped dispatch", fmt.Errorf("body: %w", &engine.DispatchError{Code: engine.ErrCodeHaltRequested}), "HALT_REQUESTED"},
		{"steps", &engine.StepsExceededError{Limit: 10}, CodeStepsExceeded},
		{"syntax", syntaxErr, CodeSyntax},
		{"evaluation", &expr.EvalError{Fn: "+", Message: "expected a number"}, CodeEvaluation},
		{"other", errors.New("boom"), ErrCodeGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errorCode(tt.err))
		})
	}
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &bytes.Buffer{}
			diag := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:    "json",
				Writer:    out,
				ErrWriter: diag,
				Verbose:   tt.verbose,
			}

			formatter.VerboseLog("Compiling generic: %s", "describe")

			assert.Empty(t, out.String(), "diagnostics never reach the JSON stream")
			if tt.wantLog {
				assert.Contains(t, diag.String(), "Compiling generic: describe")
			} else {
				assert.Empty(t, diag.String())
			}
		})
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(WrapExitError(ExitCommandError, "open", errors.New("missing"))))
	assert.Equal(t, ExitFailure, GetExitCode(fmt.Errorf("run: %w", NewExitError(ExitFailure, "diverged"))))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
}
