package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceSnapshotMarshal(t *testing.T) {
	snap := TraceSnapshot{
		ScenarioName: "tiny",
		Steps: []StepResult{
			{Action: "eval", Input: "(f <1>)", Result: `"a>b"`},
			{Action: "halt"},
		},
		Trace: []TraceEvent{
			{Token: "t-1", Seq: 1, Depth: 1, Kind: "call", Generic: "f", Args: "(1)", Method: 2, Outcome: "ok", Result: `"a>b"`},
		},
	}

	data, err := snap.Marshal()
	require.NoError(t, err)

	want := `{
  "scenario_name": "tiny",
  "steps": [
    {
      "action": "eval",
      "input": "(f <1>)",
      "result": "\"a>b\""
    },
    {
      "action": "halt",
      "input": ""
    }
  ],
  "trace": [
    {
      "args": "(1)",
      "depth": 1,
      "generic": "f",
      "kind": "call",
      "method": 2,
      "outcome": "ok",
      "parent": 0,
      "result": "\"a>b\"",
      "seq": 1,
      "token": "t-1"
    }
  ]
}
`
	assert.Equal(t, want, string(data))
}

func TestTraceSnapshotMarshal_Stable(t *testing.T) {
	result, err := Run(loadScenario(t, "describe_chain"))
	require.NoError(t, err)

	snap := TraceSnapshot{ScenarioName: "describe_chain", Steps: result.Steps, Trace: result.Trace}
	first, err := snap.Marshal()
	require.NoError(t, err)
	second, err := snap.Marshal()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestAssertGolden(t *testing.T) {
	result, err := Run(loadScenario(t, "depth_limit"))
	require.NoError(t, err)
	require.NoError(t, AssertGolden(t, "depth_limit", result))
}

func TestGoldenPath(t *testing.T) {
	assert.Equal(t,
		filepath.Join("a", "b", "golden", "x.golden"),
		GoldenPath(filepath.Join("a", "b", "x.yaml")))
}

func TestCheckGolden(t *testing.T) {
	file := filepath.Join(t.TempDir(), "tiny.yaml")
	snap := TraceSnapshot{
		ScenarioName: "tiny",
		Steps:        []StepResult{{Action: "eval", Input: "(f)", Result: "1"}},
		Trace:        []TraceEvent{},
	}

	status, err := CheckGolden(file, snap, false)
	require.NoError(t, err)
	assert.Equal(t, GoldenMissing, status)

	status, err = CheckGolden(file, snap, true)
	require.NoError(t, err)
	assert.Equal(t, GoldenUpdated, status)
	assert.FileExists(t, GoldenPath(file))

	status, err = CheckGolden(file, snap, false)
	require.NoError(t, err)
	assert.Equal(t, GoldenMatch, status)

	snap.Steps[0].Result = "2"
	status, err = CheckGolden(file, snap, false)
	require.NoError(t, err)
	assert.Equal(t, GoldenMismatch, status)
}

func TestCheckGolden_Unreadable(t *testing.T) {
	file := filepath.Join(t.TempDir(), "tiny.yaml")
	// A directory where the golden file should be cannot be read.
	require.NoError(t, os.MkdirAll(GoldenPath(file), 0755))

	_, err := CheckGolden(file, TraceSnapshot{ScenarioName: "tiny"}, false)
	assert.Error(t, err)
}
