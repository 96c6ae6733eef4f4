package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
// Scenarios load definitions, drive the engine through a list of steps
// and assert on the resulting dispatch trace.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Definitions lists CUE files with class, instance and generic blocks.
	// Relative paths are resolved against the scenario file location.
	Definitions []string `yaml:"definitions,omitempty"`

	// Source holds inline CUE, unified with the Definitions files.
	Source string `yaml:"source,omitempty"`

	// Steps run in order against one engine.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and method tables.
	// Supported types: trace_contains, trace_order, trace_count, methods, replay
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// TokenPrefix names the call tokens of this scenario: prefix-1, prefix-2...
	// If empty, tokens are "call-1", "call-2", ...
	TokenPrefix string `yaml:"token_prefix,omitempty"`

	// MaxDepth overrides the engine's nested dispatch limit when non-zero.
	MaxDepth int `yaml:"max_depth,omitempty"`
}

// Step is one action against the engine. Exactly one of Eval, Define,
// Undefine, Halt and Resume is set.
type Step struct {
	// Eval is an expression evaluated as a top-level call,
	// e.g. "(describe [c1])".
	Eval string `yaml:"eval,omitempty"`

	// Define adds or replaces a method.
	Define *DefineStep `yaml:"define,omitempty"`

	// Undefine removes a method or a whole generic function.
	Undefine *UndefineStep `yaml:"undefine,omitempty"`

	// Halt requests a halt, as another goroutine would.
	Halt bool `yaml:"halt,omitempty"`

	// Resume clears a pending halt.
	Resume bool `yaml:"resume,omitempty"`

	// Expect specifies the expected outcome.
	// If nil, the step must succeed and its value is not checked.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// DefineStep adds one method to a generic function.
type DefineStep struct {
	Generic  string      `yaml:"generic"`
	Index    int         `yaml:"index,omitempty"`
	Params   []ParamStep `yaml:"params,omitempty"`
	Wildcard *ParamStep  `yaml:"wildcard,omitempty"`
	Body     string      `yaml:"body,omitempty"`
}

// ParamStep is one parameter of a defined method.
type ParamStep struct {
	Name  string   `yaml:"name"`
	Types []string `yaml:"types,omitempty"`
	Query string   `yaml:"query,omitempty"`
}

// UndefineStep removes one method by index, every user method (Method
// "*"), or the whole generic function (Method empty).
type UndefineStep struct {
	Generic string `yaml:"generic"`
	Method  string `yaml:"method,omitempty"`
}

// ExpectClause specifies the expected outcome of a step.
type ExpectClause struct {
	// Result is the printed form of the expected value, e.g. "\"thing\"" or 4.
	Result string `yaml:"result,omitempty"`

	// Error is the expected error code, e.g. NO_APPLICABLE_METHOD.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the trace or the final method tables.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": a frame matches generic and the optional filters
	// - "trace_order": frames appear in the given order
	// - "trace_count": generic (and kind, if set) appears exactly Count times
	// - "methods": the generic lists its methods in precedence order IDs
	// - "replay": re-executing every recorded call selects the same methods
	Type string `yaml:"type"`

	// Generic names the generic function (trace_contains, trace_count, methods).
	Generic string `yaml:"generic,omitempty"`

	// Kind filters frames by dispatch kind (trace_contains, trace_count).
	Kind string `yaml:"kind,omitempty"`

	// Method filters frames by selected method index (trace_contains).
	Method *int `yaml:"method,omitempty"`

	// Outcome filters frames by outcome, e.g. ok or NO_APPLICABLE_METHOD (trace_contains).
	Outcome string `yaml:"outcome,omitempty"`

	// Count is the expected number of frames (trace_count).
	Count int `yaml:"count,omitempty"`

	// Frames is the expected frame order as "generic#method" (trace_order).
	Frames []string `yaml:"frames,omitempty"`

	// IDs is the expected method order (methods).
	IDs []int `yaml:"ids,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertMethods       = "methods"
	AssertReplay        = "replay"
)

// Action returns the step's action name.
func (s Step) Action() string {
	switch {
	case s.Eval != "":
		return "eval"
	case s.Define != nil:
		return "define"
	case s.Undefine != nil:
		return "undefine"
	case s.Halt:
		return "halt"
	case s.Resume:
		return "resume"
	default:
		return ""
	}
}

// actionCount returns how many actions the step sets.
func (s Step) actionCount() int {
	n := 0
	for _, set := range []bool{s.Eval != "", s.Define != nil, s.Undefine != nil, s.Halt, s.Resume} {
		if set {
			n++
		}
	}
	return n
}

// LoadScenario reads and parses a scenario YAML file.
// Relative definition paths are resolved against the scenario file's
// directory. Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving definition paths relative to the provided base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Resolve definition paths BEFORE validation
	for i, defPath := range scenario.Definitions {
		if !filepath.IsAbs(defPath) && basePath != "" {
			scenario.Definitions[i] = filepath.Join(basePath, defPath)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if s.MaxDepth < 0 {
		return fmt.Errorf("max_depth must be non-negative")
	}

	for _, defPath := range s.Definitions {
		if _, err := os.Stat(defPath); os.IsNotExist(err) {
			return fmt.Errorf("definitions file not found: %s", defPath)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateStep checks a single step.
func validateStep(index int, s *Step) error {
	switch s.actionCount() {
	case 0:
		return fmt.Errorf("steps[%d]: one of eval, define, undefine, halt, resume is required", index)
	case 1:
	default:
		return fmt.Errorf("steps[%d]: only one of eval, define, undefine, halt, resume may be set", index)
	}

	if s.Define != nil {
		if s.Define.Generic == "" {
			return fmt.Errorf("steps[%d].define: generic is required", index)
		}
		if s.Define.Index < 0 {
			return fmt.Errorf("steps[%d].define: index must be non-negative", index)
		}
	}
	if s.Undefine != nil && s.Undefine.Generic == "" {
		return fmt.Errorf("steps[%d].undefine: generic is required", index)
	}

	if e := s.Expect; e != nil {
		if e.Result == "" && e.Error == "" {
			return fmt.Errorf("steps[%d].expect: result or error is required", index)
		}
		if e.Result != "" && e.Error != "" {
			return fmt.Errorf("steps[%d].expect: result and error are mutually exclusive", index)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Generic == "" {
			return fmt.Errorf("assertions[%d]: generic is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Frames) == 0 {
			return fmt.Errorf("assertions[%d]: frames list is required for trace_order", index)
		}
		for _, f := range a.Frames {
			if _, _, err := parseFrameRef(f); err != nil {
				return fmt.Errorf("assertions[%d]: %w", index, err)
			}
		}
	case AssertTraceCount:
		if a.Generic == "" {
			return fmt.Errorf("assertions[%d]: generic is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertMethods:
		if a.Generic == "" {
			return fmt.Errorf("assertions[%d]: generic is required for methods", index)
		}
	case AssertReplay:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
