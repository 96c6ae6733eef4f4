package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/defgeneric/internal/ir"
	"github.com/roach88/defgeneric/internal/store"
)

func TestTraceShowsFrameTree(t *testing.T) {
	dir := writeDefs(t, shapesDefs)
	dbPath := filepath.Join(t.TempDir(), "calls.db")
	journalCalls(t, dir, dbPath, "t", "(describe [c1])")

	buf := &bytes.Buffer{}
	cmd := NewTraceCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath, "--call", "t-1"})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	assert.Contains(t, output, "Trace for Call: t-1")
	assert.Contains(t, output, "Status: Complete")
	assert.Contains(t, output, "Definitions: ")
	assert.Contains(t, output, `  [1] call describe#3 ([c1]) -> "circle>shape>thing"`)
	assert.Contains(t, output, `  [2]   next describe#2 ([c1]) -> "shape>thing"`)
	assert.Contains(t, output, `  [3]     next describe#1 ([c1]) -> "thing"`)
	assert.Contains(t, output, "Total Frames: 3")
	assert.Contains(t, output, "Next Methods: 2")
	assert.Contains(t, output, "Max Depth:    3")
}

func TestTraceFailedCall(t *testing.T) {
	dir := writeDefs(t, shapesDefs)
	dbPath := filepath.Join(t.TempDir(), "calls.db")
	journalCalls(t, dir, dbPath, "t", "(describe)")

	buf := &bytes.Buffer{}
	cmd := NewTraceCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath, "--call", "t-1"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "Status: Failed (NO_APPLICABLE_METHOD)")
	assert.Contains(t, buf.String(), "[1] call describe () !! NO_APPLICABLE_METHOD")
}

func TestTraceJSON(t *testing.T) {
	dir := writeDefs(t, shapesDefs)
	dbPath := filepath.Join(t.TempDir(), "calls.db")
	journalCalls(t, dir, dbPath, "t", "(describe [c1])")

	buf := &bytes.Buffer{}
	cmd := NewTraceCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath, "--call", "t-1"})

	require.NoError(t, cmd.Execute())

	var resp struct {
		Status string      `json:"status"`
		Data   TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "t-1", resp.Data.CallToken)
	require.Len(t, resp.Data.Timeline, 3)
	assert.Equal(t, ir.KindCall, resp.Data.Timeline[0].Kind)
	assert.Equal(t, 3, resp.Data.Timeline[0].MethodID)
	assert.Equal(t, resp.Data.Timeline[0].ID, resp.Data.Timeline[1].ParentID)
	assert.True(t, resp.Data.Stats.IsComplete)
	assert.Equal(t, ir.OutcomeOK, resp.Data.Stats.Outcome)
}

func TestTraceGenericFilter(t *testing.T) {
	dir := writeDefs(t, shapesHeader+`
generic: describe: method: [
	{params: [{name: "x"}], body: "(label ?x)"},
]
generic: label: method: [
	{params: [{name: "x"}], body: "\"label\""},
]
`)
	dbPath := filepath.Join(t.TempDir(), "calls.db")
	journalCalls(t, dir, dbPath, "t", "(describe [b1])")

	buf := &bytes.Buffer{}
	cmd := NewTraceCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath, "--call", "t-1", "--generic", "label"})

	require.NoError(t, cmd.Execute())

	var resp struct {
		Data TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.Len(t, resp.Data.Timeline, 1)
	assert.Equal(t, "label", resp.Data.Timeline[0].Generic)
	assert.Equal(t, 2, resp.Data.Timeline[0].Depth)
	// Stats cover the whole call regardless of the filter.
	assert.Equal(t, 2, resp.Data.Stats.TotalFrames)
}

func TestTraceKindFilter(t *testing.T) {
	dir := writeDefs(t, shapesDefs)
	dbPath := filepath.Join(t.TempDir(), "calls.db")
	journalCalls(t, dir, dbPath, "t", "(describe [c1])", "(describe [c1])")

	buf := &bytes.Buffer{}
	cmd := NewTraceCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath, "--call", "t-2", "--kind", "next"})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	assert.Contains(t, output, `  [5]   next describe#2 ([c1]) -> "shape>thing"`)
	assert.Contains(t, output, `  [6]     next describe#1 ([c1]) -> "thing"`)
	assert.NotContains(t, output, "] call describe")
	assert.NotContains(t, output, "[2]", "frames of t-1 are excluded")
	assert.Contains(t, output, "Total Frames: 3")
}

func TestTraceUnknownCall(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "calls.db")
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	buf := &bytes.Buffer{}
	cmd := NewTraceCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath, "--call", "missing"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "No frames found for call: missing")
}

func TestTraceRequiresFlags(t *testing.T) {
	cmd := NewTraceCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--db", "x.db"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "call")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "short", truncateID("short"))
	assert.Equal(t, "0123456789abcdef", truncateID("0123456789abcdef"))
	assert.Equal(t, "01234567...89abcdef", truncateID("0123456789_xyz_0123456789abcdef"))
}
