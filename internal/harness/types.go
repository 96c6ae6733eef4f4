package harness

// TraceEvent is one journaled dispatch frame, flattened for assertions and
// golden comparison. Frame IDs are content hashes and are left out; Parent
// is the sequence number of the calling frame (0 for a top-level call).
type TraceEvent struct {
	Token   string `json:"token"`
	Seq     int64  `json:"seq"`
	Parent  int64  `json:"parent"`
	Depth   int    `json:"depth"`
	Kind    string `json:"kind"`
	Generic string `json:"generic"`
	Args    string `json:"args"`
	Method  int    `json:"method"`
	Outcome string `json:"outcome"`
	Result  string `json:"result,omitempty"`
}

// StepResult is what one step produced.
type StepResult struct {
	Action string `json:"action"`
	Input  string `json:"input"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every step met its expectation and every assertion held.
	Pass bool `json:"pass"`

	// Steps holds one entry per scenario step.
	Steps []StepResult `json:"steps"`

	// Trace contains all dispatch frames in sequence order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// DefinitionsHash identifies the loaded definitions.
	DefinitionsHash string `json:"definitions_hash,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Steps:  []StepResult{},
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddStep records the outcome of a step.
func (r *Result) AddStep(step StepResult) {
	r.Steps = append(r.Steps, step)
}
