package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvalPrintsResults(t *testing.T) {
	dir := writeDefs(t, shapesDefs)

	buf := &bytes.Buffer{}
	cmd := NewEvalCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{dir, "(describe [c1])", "(describe [b1])"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "\"circle>shape>thing\"\n\"thing\"\n", buf.String())
}

func TestEvalFailureContinues(t *testing.T) {
	dir := writeDefs(t, shapesDefs)

	buf := &bytes.Buffer{}
	cmd := NewEvalCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{dir, "(describe)", "(describe [b1])", "(describe"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "2 expression(s) failed")

	output := buf.String()
	assert.Contains(t, output, "Error [NO_APPLICABLE_METHOD]")
	assert.Contains(t, output, "\"thing\"\n")
	assert.Contains(t, output, "Error [SYNTAX_ERROR]")
}

func TestEvalJSON(t *testing.T) {
	dir := writeDefs(t, shapesDefs)

	buf := &bytes.Buffer{}
	cmd := NewEvalCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{dir, "(describe [c1])", "(describe [c1] [b1])"})

	err := cmd.Execute()
	require.Error(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   []EvalResult `json:"data"`
		Error  *CLIError    `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "\"circle>shape>thing\"", resp.Data[0].Result)
	assert.Nil(t, resp.Data[0].Error)
	require.NotNil(t, resp.Data[1].Error)
	assert.Equal(t, "NO_APPLICABLE_METHOD", resp.Data[1].Error.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_EVAL", resp.Error.Code)
}

func TestEvalDepthLimit(t *testing.T) {
	dir := writeDefs(t, `
package test

generic: loop: method: [
	{params: [{name: "n"}], body: "(loop (+ ?n 1))"},
]
`)

	buf := &bytes.Buffer{}
	cmd := NewEvalCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--max-depth", "4", dir, "(loop 0)"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, buf.String(), "Error [DEPTH_EXCEEDED]")
}

func TestEvalInvalidDefinitions(t *testing.T) {
	dir := writeDefs(t, `
package test

instance: x1: class: "NOPE"
`)

	cmd := NewEvalCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{dir, "(describe [x1])"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load definitions")
}

func TestEvalJournalsToDatabase(t *testing.T) {
	dir := writeDefs(t, shapesDefs)
	dbPath := filepath.Join(t.TempDir(), "calls.db")

	buf := &bytes.Buffer{}
	cmd := NewEvalCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--db", dbPath, dir, "(describe [c1])"})
	require.NoError(t, cmd.Execute())

	frames := readAllFrames(t, dbPath)
	require.Len(t, frames, 3)
	assert.Equal(t, int64(1), frames[0].Seq)
}

func TestEvalResumesSequence(t *testing.T) {
	dir := writeDefs(t, shapesDefs)
	dbPath := filepath.Join(t.TempDir(), "calls.db")

	for range 2 {
		cmd := NewEvalCommand(&RootOptions{Format: "text"})
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"--db", dbPath, dir, "(describe [b1])"})
		require.NoError(t, cmd.Execute())
	}

	frames := readAllFrames(t, dbPath)
	require.Len(t, frames, 2)
	assert.Equal(t, int64(1), frames[0].Seq)
	assert.Equal(t, int64(2), frames[1].Seq, "second run continues the logical clock")
	assert.NotEqual(t, frames[0].Token, frames[1].Token)
}
