package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunReadsExpressions(t *testing.T) {
	dir := writeDefs(t, shapesDefs)

	buf := &bytes.Buffer{}
	cmd := NewRunCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader("(describe [c1])\n; a comment\n\n(describe)\n(describe [b1])\n"))
	cmd.SetArgs([]string{dir})

	require.NoError(t, cmd.Execute())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Engine started. Reading expressions...", lines[0])
	assert.Equal(t, `"circle>shape>thing"`, lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "Error [NO_APPLICABLE_METHOD]"), lines[2])
	assert.Equal(t, `"thing"`, lines[3])
}

func TestRunJournalsToDatabase(t *testing.T) {
	dir := writeDefs(t, shapesDefs)
	dbPath := filepath.Join(t.TempDir(), "calls.db")

	cmd := NewRunCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader("(describe [c1])\n"))
	cmd.SetArgs([]string{"--db", dbPath, dir})

	require.NoError(t, cmd.Execute())
	assert.Len(t, readAllFrames(t, dbPath), 3)
}

func TestRunInvalidDefinitions(t *testing.T) {
	dir := writeDefs(t, `
package test

class: A: superclasses: ["B"]
class: B: superclasses: ["A"]
`)

	buf := &bytes.Buffer{}
	cmd := NewRunCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs([]string{dir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load definitions")
}

func TestRunNonExistentDefinitionsDir(t *testing.T) {
	cmd := NewRunCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"/nonexistent/defs"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRunStopsOnContextCancel(t *testing.T) {
	dir := writeDefs(t, shapesDefs)

	// A reader that never returns keeps the engine waiting for input.
	pr, pw := newBlockingInput()
	defer pw.Close()

	buf := &syncBuffer{}
	cmd := NewRunCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(pr)
	cmd.SetArgs([]string{dir})

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- cmd.ExecuteContext(ctx)
	}()

	select {
	case err := <-errChan:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("command did not respect context timeout")
	}

	assert.Contains(t, buf.String(), "Engine started")
}

func TestRunHelpText(t *testing.T) {
	cmd := NewRunCommand(&RootOptions{})
	assert.Contains(t, cmd.Long, "interrupt")
	assert.Equal(t, "run <defs-dir>", cmd.Use)
}
