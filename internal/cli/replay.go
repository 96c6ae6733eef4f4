package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/defgeneric/internal/engine"
	"github.com/roach88/defgeneric/internal/ir"
	"github.com/roach88/defgeneric/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database  string
	CallToken string // optional - specific call only
}

// ReplayCallResult holds the replay result for a single call.
type ReplayCallResult struct {
	CallToken   string        `json:"call_token"`
	Generic     string        `json:"generic,omitempty"`
	Args        ir.IRArray    `json:"args,omitempty"`
	Definitions string        `json:"definitions,omitempty"`
	Frames      int           `json:"frames"`
	IsComplete  bool          `json:"is_complete"`
	Match       bool          `json:"match"`
	Recorded    []engine.Step `json:"recorded,omitempty"`
	Replayed    []engine.Step `json:"replayed,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Calls      []ReplayCallResult `json:"calls"`
	TotalCalls int                `json:"total_calls"`
	Skipped    int                `json:"skipped"`
	AllMatch   bool               `json:"all_match"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay [defs-dir]",
		Short: "Re-run journaled calls and compare method selection",
		Long: `Re-execute every journaled top-level call and compare the methods
selected at each frame with the recorded ones.

Without a definitions directory, each call is replayed against the
definitions it was recorded with, which verifies that dispatch is
deterministic. With a directory, calls are replayed against those
definitions instead, which shows where a change to the definitions
alters dispatch.

Calls without a top-level frame (interrupted before returning) are
reported and skipped. Method bodies run for real; the journal is not
written during replay.

Exit codes:
  0 - Every replayed call selected the same methods
  1 - At least one call diverged
  2 - Command error (database not found, etc.)

Examples:
  defgeneric replay --db ./calls.db
  defgeneric replay ./defs --db ./calls.db
  defgeneric replay --db ./calls.db --call 0192f1c4-... --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			defsDir := ""
			if len(args) == 1 {
				defsDir = args[0]
			}
			return runReplay(opts, defsDir, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.CallToken, "call", "", "replay specific call only")

	return cmd
}

func runReplay(opts *ReplayOptions, defsDir string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	var tokens []string
	if opts.CallToken != "" {
		tokens = []string{opts.CallToken}
	} else {
		tokens, err = st.ListCallTokens(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list call tokens", err)
		}
	}

	if len(tokens) == 0 {
		if opts.Format == "json" {
			return outputReplayJSON(cmd, ReplayResult{Calls: []ReplayCallResult{}, AllMatch: true})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No calls found in database.")
		return nil
	}

	// Sessions are shared by every call recorded against the same
	// definitions. With a defs-dir there is exactly one.
	var fixed *session
	sessions := make(map[string]*session)
	defer func() {
		for _, s := range sessions {
			s.Close()
		}
		if fixed != nil {
			fixed.Close()
		}
	}()

	if defsDir != "" {
		defs, err := loadValidDefinitions(defsDir)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load definitions", err)
		}
		fixed, err = openSession(ctx, defs, sessionConfig{Logger: logger})
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to start engine", err)
		}
	}

	sessionFor := func(hash string) (*session, error) {
		if fixed != nil {
			return fixed, nil
		}
		if s, ok := sessions[hash]; ok {
			return s, nil
		}
		if hash == "" {
			return nil, fmt.Errorf("no definitions recorded; pass a definitions directory")
		}
		defs, err := st.ReadDefinitions(ctx, hash)
		if err != nil {
			return nil, fmt.Errorf("read definitions %s: %w", truncateID(hash), err)
		}
		s, err := openSession(ctx, defs, sessionConfig{Logger: logger})
		if err != nil {
			return nil, err
		}
		sessions[hash] = s
		return s, nil
	}

	result := ReplayResult{
		Calls:      make([]ReplayCallResult, 0, len(tokens)),
		TotalCalls: len(tokens),
		AllMatch:   true,
	}

	for _, token := range tokens {
		callResult, err := replayCall(ctx, st, token, sessionFor)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay call %s", token), err)
		}
		if !callResult.IsComplete {
			result.Skipped++
		} else if !callResult.Match {
			result.AllMatch = false
		}
		result.Calls = append(result.Calls, callResult)
	}

	if opts.Format == "json" {
		return outputReplayJSON(cmd, result)
	}

	return outputReplayText(cmd, result, opts.Verbose)
}

// replayCall re-executes one recorded call. Incomplete calls are returned
// unreplayed.
func replayCall(ctx context.Context, st *store.Store, token string, sessionFor func(string) (*session, error)) (ReplayCallResult, error) {
	state, err := st.GetCallState(ctx, token)
	if err != nil {
		return ReplayCallResult{}, err
	}
	if len(state.Frames) == 0 {
		return ReplayCallResult{}, fmt.Errorf("no frames recorded for call %s", token)
	}

	res := ReplayCallResult{
		CallToken:  token,
		Frames:     len(state.Frames),
		IsComplete: state.IsComplete,
	}
	if !state.IsComplete {
		return res, nil
	}
	res.Generic = state.TopLevel.Generic
	res.Args = state.TopLevel.Args

	hash, err := st.ReadCallDefinitionsHash(ctx, token)
	if err != nil {
		return res, err
	}
	res.Definitions = hash

	sess, err := sessionFor(hash)
	if err != nil {
		return res, err
	}

	replayed, err := sess.engine.Replay(ctx, state.Frames)
	if err != nil {
		return res, err
	}
	if len(replayed) != 1 {
		return res, fmt.Errorf("expected one replayed call, got %d", len(replayed))
	}

	res.Match = replayed[0].Match
	res.Recorded = replayed[0].Recorded
	res.Replayed = replayed[0].Replayed
	return res, nil
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(cmd *cobra.Command, result ReplayResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	if !result.AllMatch {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_REPLAY_DIVERGED",
			Message: "replay diverged from the recorded dispatch",
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if !result.AllMatch {
		// Divergence = exit code 1
		return NewExitError(ExitFailure, "replay diverged")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(cmd *cobra.Command, result ReplayResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Replay Summary: %d call(s)\n", result.TotalCalls)
	fmt.Fprintln(w)

	for _, call := range result.Calls {
		switch {
		case !call.IsComplete:
			fmt.Fprintf(w, "- Call: %s\n", call.CallToken)
			fmt.Fprintf(w, "  Skipped: no top-level frame (%d frame(s) recorded)\n", call.Frames)
		case call.Match:
			fmt.Fprintf(w, "✓ Call: %s\n", call.CallToken)
			fmt.Fprintf(w, "  %s %d frame(s)\n", callText(call.Generic, call.Args), call.Frames)
		default:
			fmt.Fprintf(w, "✗ Call: %s\n", call.CallToken)
			fmt.Fprintf(w, "  %s %d frame(s)\n", callText(call.Generic, call.Args), call.Frames)
			fmt.Fprintln(w, "  Warning: method selection diverged!")
			writeSteps(w, "Recorded", call.Recorded)
			writeSteps(w, "Replayed", call.Replayed)
		}
		if verbose && call.IsComplete && call.Match {
			writeSteps(w, "Methods", call.Recorded)
		}
		fmt.Fprintln(w)
	}

	if result.Skipped > 0 {
		fmt.Fprintf(w, "Skipped %d incomplete call(s)\n", result.Skipped)
	}

	if result.AllMatch {
		fmt.Fprintln(w, "✓ All calls replayed identically")
		return nil
	}

	fmt.Fprintln(w, "✗ Replay diverged")
	// Divergence = exit code 1
	return NewExitError(ExitFailure, "replay diverged")
}

// callText prints a call the way it would be typed: (describe [c1]).
func callText(generic string, args ir.IRArray) string {
	if len(args) == 0 {
		return "(" + generic + ")"
	}
	s := ir.Format(args)
	return "(" + generic + " " + s[1:]
}

func writeSteps(w io.Writer, label string, steps []engine.Step) {
	fmt.Fprintf(w, "  %s:", label)
	if len(steps) == 0 {
		fmt.Fprint(w, " (none)")
	}
	for _, s := range steps {
		fmt.Fprintf(w, " %s/%s#%d", s.Kind, s.Generic, s.MethodID)
		if s.Outcome != ir.OutcomeOK {
			fmt.Fprintf(w, "!%s", s.Outcome)
		}
	}
	fmt.Fprintln(w)
}
