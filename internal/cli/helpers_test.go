package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/defgeneric/internal/ir"
	"github.com/roach88/defgeneric/internal/store"
	"github.com/roach88/defgeneric/internal/testutil"
)

const shapesHeader = `
package test

class: SHAPE: abstract: true
class: CIRCLE: superclasses: ["SHAPE"]
class: BOX: {}

instance: c1: class: "CIRCLE"
instance: b1: class: "BOX"
`

const shapesDefs = shapesHeader + `
generic: describe: method: [
	{params: [{name: "x"}], body: "\"thing\""},
	{params: [{name: "s", types: ["SHAPE"]}], body: "(str-cat \"shape>\" (call-next-method))"},
	{params: [{name: "c", types: ["CIRCLE"]}], body: "(str-cat \"circle>\" (call-next-method))"},
]
`

// boxDefs is shapesDefs plus a describe method for BOX.
const boxDefs = shapesHeader + `
generic: describe: method: [
	{params: [{name: "x"}], body: "\"thing\""},
	{params: [{name: "s", types: ["SHAPE"]}], body: "(str-cat \"shape>\" (call-next-method))"},
	{params: [{name: "c", types: ["CIRCLE"]}], body: "(str-cat \"circle>\" (call-next-method))"},
	{params: [{name: "b", types: ["BOX"]}], body: "\"box\""},
]
`

// writeDefs writes src as defs.cue in a fresh directory and returns it.
func writeDefs(t *testing.T, src string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "defs.cue"), []byte(src), 0644))
	return dir
}

// openTestSession installs the definitions in dir into an engine without
// a journal.
func openTestSession(t *testing.T, dir string) *session {
	t.Helper()
	defs, err := loadValidDefinitions(dir)
	require.NoError(t, err)
	sess, err := openSession(context.Background(), defs, sessionConfig{Logger: testutil.DiscardLogger()})
	require.NoError(t, err)
	t.Cleanup(sess.Close)
	return sess
}

// testCommand returns a bare command writing to buf, for calling run
// functions directly with options the flags do not expose.
func testCommand(buf *bytes.Buffer) *cobra.Command {
	cmd := &cobra.Command{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	return cmd
}

// readAllFrames returns every journaled frame in dbPath in seq order.
func readAllFrames(t *testing.T, dbPath string) []ir.DispatchRecord {
	t.Helper()
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	frames, err := st.ReadAllDispatches(context.Background())
	require.NoError(t, err)
	return frames
}

// journalCalls evaluates exprs against the definitions in dir, journaling
// to dbPath with tokens prefix-1, prefix-2, ...
func journalCalls(t *testing.T, dir, dbPath, prefix string, exprs ...string) {
	t.Helper()
	opts := &EvalOptions{
		RootOptions:    &RootOptions{Format: "text"},
		Database:       dbPath,
		TokenGenerator: testutil.NewSequentialTokenGenerator(prefix),
	}
	// Failed expressions are part of some fixtures.
	_ = runEval(opts, dir, exprs, testCommand(&bytes.Buffer{}))
}

// syncBuffer is a bytes.Buffer safe for a writer and a reader on
// different goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// newBlockingInput returns a reader that blocks until the writer is
// closed.
func newBlockingInput() (*io.PipeReader, *io.PipeWriter) {
	return io.Pipe()
}
