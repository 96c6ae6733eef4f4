package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/defgeneric/internal/compiler"
)

func TestValidateValidDefinitions(t *testing.T) {
	dir := writeDefs(t, shapesDefs)

	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "✓ All definitions valid")
}

func TestValidateValidDefinitionsJSON(t *testing.T) {
	dir := writeDefs(t, shapesDefs)

	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	require.NoError(t, cmd.Execute())

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
}

func TestValidateNonExistentDirectory(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"/nonexistent/directory/path"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeNotFound)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestValidateEmptyDirectory(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{t.TempDir()})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeNoFiles)
}

func TestValidateInvalidDefinitions(t *testing.T) {
	dir := writeDefs(t, `
package test

class: SHAPE: abstract: true
instance: s1: class: "SHAPE"
`)

	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	err := cmd.Execute()
	require.Error(t, err)
	// Validation failures exit 1, not 2.
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "✗ Validation failed")
	assert.Contains(t, buf.String(), compiler.ErrAbstractInstance)
	assert.Contains(t, buf.String(), "cannot instantiate abstract or system class SHAPE")
}

func TestValidateInvalidDefinitionsJSON(t *testing.T) {
	dir := writeDefs(t, `
package test

instance: x1: class: "NOPE"
`)

	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	err := cmd.Execute()
	require.Error(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.NotNil(t, resp.Error)
	assert.Equal(t, compiler.ErrUnknownClass, resp.Error.Code)
}

func TestValidateMultipleErrors(t *testing.T) {
	dir := writeDefs(t, `
package test

class: CIRCLE: superclasses: ["SHAPE"]
instance: x1: class: "NOPE"
generic: area: method: [
	{params: [{name: "c", types: ["SQUARE"]}], body: "1"},
]
`)

	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	err := cmd.Execute()
	require.Error(t, err)

	output := buf.String()
	assert.Contains(t, output, compiler.ErrUnknownSuperclass)
	assert.Contains(t, output, compiler.ErrUnknownClass)
	assert.Contains(t, output, `unknown class "SQUARE"`)
}

func TestValidateBadBody(t *testing.T) {
	dir := writeDefs(t, shapesHeader+`
generic: describe: method: [
	{params: [{name: "x"}], body: "(str-cat \"unterminated\""},
]
`)

	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, buf.String(), compiler.ErrInvalidExpression)
}

func TestValidateMalformedBlockReported(t *testing.T) {
	dir := writeDefs(t, `
package test

instance: x1: {}
`)

	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, buf.String(), ErrCodeInstanceBlock)
	assert.Contains(t, buf.String(), "class is required")
}

func TestCheckDefinitions(t *testing.T) {
	result, defs, err := checkDefinitions(writeDefs(t, shapesDefs), &OutputFormatter{Writer: io.Discard})
	require.NoError(t, err)
	require.NotNil(t, defs)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 3, result.Classes)
	assert.Equal(t, 2, result.Instances)
	assert.Equal(t, 1, result.Generics)
	assert.Equal(t, 3, result.Methods)
}

func TestCheckDefinitionsInheritanceLoop(t *testing.T) {
	result, _, err := checkDefinitions(writeDefs(t, `
package test

class: A: superclasses: ["B"]
class: B: superclasses: ["A"]
`), &OutputFormatter{Writer: io.Discard})
	require.NoError(t, err)
	assert.False(t, result.Valid)
	require.NotEmpty(t, result.Errors)
	assert.Equal(t, compiler.ErrInheritanceLoop, result.Errors[0].Code)
}

func TestCheckDefinitionsNonExistent(t *testing.T) {
	_, _, err := checkDefinitions("/nonexistent/path", &OutputFormatter{Writer: io.Discard})
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, ErrCodeNotFound, loadErr.Code)
}

func TestValidationErrorsByLine(t *testing.T) {
	errs := []compiler.ValidationError{
		{Code: "E1", Line: 0},
		{Code: "E2", Line: 9},
		{Code: "E3", Line: 2},
		{Code: "E4", Line: 0},
	}
	slices.SortStableFunc(errs, byLine)

	codes := make([]string, len(errs))
	for i, e := range errs {
		codes[i] = e.Code
	}
	assert.Equal(t, []string{"E3", "E2", "E1", "E4"}, codes)
}

func TestValidateReportsCounts(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{writeDefs(t, shapesDefs)})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "(3 classes, 2 instances, 1 generics, 3 methods)")
}
