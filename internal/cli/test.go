package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/defgeneric/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	File   string   `json:"file"`
	Pass   bool     `json:"pass"`
	Golden string   `json:"golden,omitempty"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-path>",
		Short: "Run conformance scenarios",
		Long: `Run YAML conformance scenarios against the engine.

Each scenario loads its definitions, runs its steps (evaluate, define
and undefine methods, halt and resume), checks every expected result
or error code and evaluates its assertions over the dispatch trace.

When a golden file exists next to a scenario (golden/<name>.golden),
the steps and trace must match it exactly. Use --update to write the
golden files from the current run.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  defgeneric test ./scenarios
  defgeneric test ./scenarios --filter "describe*"
  defgeneric test ./scenarios --update
  defgeneric test ./scenarios/depth_limit.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, scenariosPath string, cmd *cobra.Command) error {
	if _, err := filepath.Match(opts.Filter, ""); err != nil {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid filter pattern: %v", err))
	}

	files, err := harness.DiscoverScenarios(scenariosPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}
	files = filterScenarios(files, opts.Filter)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}
	result := TestResult{Scenarios: make([]ScenarioResult, 0, len(files)), Total: len(files)}

	for _, file := range files {
		formatter.VerboseLog("Running %s", file)
		sr := runScenario(ctx, file, opts.Update)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		result.Scenarios = append(result.Scenarios, sr)
		if formatter.Format != "json" {
			writeScenarioResult(formatter.Writer, sr)
		}
	}

	var failed error
	if result.Failed > 0 {
		failed = NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	if formatter.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: result}
		if failed != nil {
			resp.Status = "error"
			resp.Error = &CLIError{Code: "E_TEST_FAILED", Message: failed.Error()}
		}
		if err := formatter.encode(resp); err != nil {
			return err
		}
		return failed
	}

	w := formatter.Writer
	if result.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return nil
	}
	fmt.Fprintf(w, "\nTest Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	if failed == nil {
		fmt.Fprintln(w, "✓ All scenarios passed")
	}
	return failed
}

// filterScenarios keeps files whose base name, without extension,
// matches pattern. The pattern has already been checked.
func filterScenarios(files []string, pattern string) []string {
	if pattern == "" {
		return files
	}
	var kept []string
	for _, f := range files {
		name := strings.TrimSuffix(filepath.Base(f), filepath.Ext(f))
		if ok, _ := filepath.Match(pattern, name); ok {
			kept = append(kept, f)
		}
	}
	return kept
}

// runScenario loads and runs one scenario file, then checks it against
// its golden file.
func runScenario(ctx context.Context, file string, update bool) ScenarioResult {
	sr := ScenarioResult{Name: filepath.Base(file), File: file}

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("failed to load scenario: %v", err)}
		return sr
	}
	sr.Name = scenario.Name

	result, err := harness.RunContext(ctx, scenario)
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("execution failed: %v", err)}
		return sr
	}

	status, err := harness.CheckGolden(file, harness.TraceSnapshot{
		ScenarioName: scenario.Name,
		Steps:        result.Steps,
		Trace:        result.Trace,
	}, update)
	switch {
	case err != nil:
		result.AddError(err.Error())
	case status == harness.GoldenMismatch:
		result.AddError("trace does not match golden file (run with --update to regenerate)")
	}
	sr.Golden = goldenLabel(status)

	sr.Pass = result.Pass
	sr.Errors = result.Errors
	return sr
}

func goldenLabel(s harness.GoldenStatus) string {
	switch s {
	case harness.GoldenMatch:
		return "match"
	case harness.GoldenMismatch:
		return "mismatch"
	case harness.GoldenUpdated:
		return "updated"
	default:
		return ""
	}
}

func writeScenarioResult(w io.Writer, r ScenarioResult) {
	if r.Pass {
		fmt.Fprintf(w, "✓ %s\n", r.Name)
		return
	}
	fmt.Fprintf(w, "✗ %s\n", r.Name)
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}
