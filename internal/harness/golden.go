package harness

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/defgeneric/internal/ir"
)

// TraceSnapshot captures what a scenario produced: step outcomes and the
// dispatch trace. Serialized as indented canonical JSON for deterministic
// comparison.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Steps        []StepResult `json:"steps"`
	Trace        []TraceEvent `json:"trace"`
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical JSON serialization.
// This is required because ir.MarshalCanonical only handles IR types and primitives.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	steps := make([]any, len(s.Steps))
	for i, step := range s.Steps {
		m := map[string]any{
			"action": step.Action,
			"input":  step.Input,
		}
		if step.Result != "" {
			m["result"] = step.Result
		}
		if step.Error != "" {
			m["error"] = step.Error
		}
		steps[i] = m
	}

	trace := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		m := map[string]any{
			"token":   event.Token,
			"seq":     event.Seq,
			"parent":  event.Parent,
			"depth":   event.Depth,
			"kind":    event.Kind,
			"generic": event.Generic,
			"args":    event.Args,
			"method":  event.Method,
			"outcome": event.Outcome,
		}
		if event.Result != "" {
			m["result"] = event.Result
		}
		trace[i] = m
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"steps":         steps,
		"trace":         trace,
	}
}

// Marshal renders the snapshot: canonical key order, two-space indent and
// a trailing newline.
func (s *TraceSnapshot) Marshal() ([]byte, error) {
	canonical, err := ir.MarshalCanonical(s.toCanonicalMap())
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, canonical, "", "  "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// GoldenStatus is the outcome of comparing a snapshot with its golden file.
type GoldenStatus int

const (
	GoldenMissing GoldenStatus = iota // no golden file; nothing compared
	GoldenMatch
	GoldenMismatch
	GoldenUpdated
)

// GoldenPath returns where the golden file of a scenario file lives:
// golden/<name>.golden in the scenario's directory.
func GoldenPath(scenarioFile string) string {
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(scenarioFile), "golden", name+".golden")
}

// CheckGolden compares snap with the golden file of scenarioFile, or
// rewrites the golden file when update is set. This is the file-based
// counterpart of AssertGolden for use outside go test.
func CheckGolden(scenarioFile string, snap TraceSnapshot, update bool) (GoldenStatus, error) {
	data, err := snap.Marshal()
	if err != nil {
		return GoldenMissing, fmt.Errorf("marshal trace: %w", err)
	}

	path := GoldenPath(scenarioFile)
	if update {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return GoldenMissing, fmt.Errorf("create golden directory: %w", err)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return GoldenMissing, fmt.Errorf("write golden file: %w", err)
		}
		return GoldenUpdated, nil
	}

	golden, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return GoldenMissing, nil
	}
	if err != nil {
		return GoldenMissing, fmt.Errorf("read golden file: %w", err)
	}
	if !bytes.Equal(golden, data) {
		return GoldenMismatch, nil
	}
	return GoldenMatch, nil
}

// RunWithGolden executes a scenario and compares the snapshot against a
// golden file. The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an already computed result against a golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Steps:        result.Steps,
		Trace:        result.Trace,
	}
	data, err := snapshot.Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}
