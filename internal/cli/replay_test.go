package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/defgeneric/internal/ir"
)

func TestReplayMatchesRecordedDefinitions(t *testing.T) {
	dir := writeDefs(t, shapesDefs)
	dbPath := filepath.Join(t.TempDir(), "calls.db")
	journalCalls(t, dir, dbPath, "r", "(describe [c1])", "(describe [b1])", "(describe)")

	buf := &bytes.Buffer{}
	cmd := NewReplayCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--db", dbPath})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	assert.Contains(t, output, "Replay Summary: 3 call(s)")
	assert.Contains(t, output, "✓ Call: r-1")
	assert.Contains(t, output, "(describe [c1]) 3 frame(s)")
	assert.Contains(t, output, "(describe) 1 frame(s)")
	assert.Contains(t, output, "✓ All calls replayed identically")
}

func TestReplayDivergesOnChangedDefinitions(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "calls.db")
	journalCalls(t, writeDefs(t, shapesDefs), dbPath, "r", "(describe [c1])", "(describe [b1])")

	buf := &bytes.Buffer{}
	cmd := NewReplayCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{writeDefs(t, boxDefs), "--db", dbPath})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	output := buf.String()
	assert.Contains(t, output, "✓ Call: r-1")
	assert.Contains(t, output, "✗ Call: r-2")
	assert.Contains(t, output, "Recorded: call/describe#1")
	assert.Contains(t, output, "Replayed: call/describe#4")
	assert.Contains(t, output, "✗ Replay diverged")
}

func TestReplayJSON(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "calls.db")
	journalCalls(t, writeDefs(t, shapesDefs), dbPath, "r", "(describe [b1])")

	buf := &bytes.Buffer{}
	cmd := NewReplayCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{writeDefs(t, boxDefs), "--db", dbPath})

	err := cmd.Execute()
	require.Error(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   ReplayResult `json:"data"`
		Error  *CLIError    `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_REPLAY_DIVERGED", resp.Error.Code)
	assert.False(t, resp.Data.AllMatch)
	require.Len(t, resp.Data.Calls, 1)

	call := resp.Data.Calls[0]
	assert.Equal(t, "describe", call.Generic)
	assert.Equal(t, 1, call.Recorded[0].MethodID)
	assert.Equal(t, 4, call.Replayed[0].MethodID)
	assert.Equal(t, ir.OutcomeOK, call.Replayed[0].Outcome)
}

func TestReplaySingleCall(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "calls.db")
	journalCalls(t, writeDefs(t, shapesDefs), dbPath, "r", "(describe [c1])", "(describe [b1])")

	buf := &bytes.Buffer{}
	cmd := NewReplayCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	// r-2 diverges under boxDefs but is not selected.
	cmd.SetArgs([]string{writeDefs(t, boxDefs), "--db", dbPath, "--call", "r-1"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "Replay Summary: 1 call(s)")
	assert.NotContains(t, buf.String(), "r-2")
}

func TestReplayEmptyDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "calls.db")

	buf := &bytes.Buffer{}
	cmd := NewReplayCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--db", dbPath})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "No calls found in database.")
}

func TestCallText(t *testing.T) {
	assert.Equal(t, "(describe)", callText("describe", nil))
	assert.Equal(t, "(describe [c1] 2)", callText("describe", ir.IRArray{ir.IRInstanceName("c1"), ir.IRInt(2)}))
}
