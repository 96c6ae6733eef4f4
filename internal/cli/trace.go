package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/defgeneric/internal/ir"
	"github.com/roach88/defgeneric/internal/query"
	"github.com/roach88/defgeneric/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database  string
	CallToken string
	Generic   string // optional - filter to one generic function
	Kind      string // optional - filter to one frame kind
}

// TraceEvent is one dispatch frame in the trace timeline.
type TraceEvent struct {
	Seq      int64      `json:"seq"`
	ID       string     `json:"id"`
	ParentID string     `json:"parent_id,omitempty"`
	Kind     string     `json:"kind"`
	Generic  string     `json:"generic"`
	Args     ir.IRArray `json:"args"`
	MethodID int        `json:"method_id"`
	Outcome  string     `json:"outcome"`
	Result   string     `json:"result,omitempty"`
	Depth    int        `json:"depth"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	CallToken   string       `json:"call_token"`
	Definitions string       `json:"definitions,omitempty"`
	Timeline    []TraceEvent `json:"timeline"`
	Stats       TraceStats   `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalFrames int    `json:"total_frames"`
	NextMethods int    `json:"next_methods"`
	Overrides   int    `json:"overrides"`
	Specific    int    `json:"specific"`
	Failed      int    `json:"failed"`
	MaxDepth    int    `json:"max_depth"`
	IsComplete  bool   `json:"is_complete"`
	Outcome     string `json:"outcome,omitempty"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the recorded dispatch frames of a call",
		Long: `Show every dispatch frame journaled for one top-level call.

Frames are listed in the order they were entered and indented by
nesting depth, so call-next-method chains and nested calls read as a
tree. The output includes:
- Timeline: each frame with its kind, selected method and outcome
- Stats: frame counts by kind, failures and maximum depth

Examples:
  defgeneric trace --db ./calls.db --call 0192f1c4-...
  defgeneric trace --db ./calls.db --call 0192f1c4-... --generic describe
  defgeneric trace --db ./calls.db --call 0192f1c4-... --kind next
  defgeneric trace --db ./calls.db --call 0192f1c4-... --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.CallToken, "call", "", "call token to trace (required)")
	_ = cmd.MarkFlagRequired("call")
	cmd.Flags().StringVar(&opts.Generic, "generic", "", "filter to one generic function")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "filter to one frame kind (call, next, override, specific)")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	state, err := st.GetCallState(ctx, opts.CallToken)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to get call state", err)
	}

	if len(state.Frames) == 0 {
		if opts.Format == "json" {
			return outputTraceJSON(cmd, TraceResult{
				CallToken: opts.CallToken,
				Timeline:  []TraceEvent{},
			})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "No frames found for call: %s\n", opts.CallToken)
		return nil
	}

	frames, err := st.SelectDispatches(ctx, query.Select{Filter: timelineFilter(opts)})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to query frames", err)
	}

	hash, err := st.ReadCallDefinitionsHash(ctx, opts.CallToken)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read definitions hash", err)
	}

	result := TraceResult{
		CallToken:   opts.CallToken,
		Definitions: hash,
		Timeline:    buildTimeline(frames),
		Stats:       buildStats(state),
	}

	if opts.Format == "json" {
		return outputTraceJSON(cmd, result)
	}

	return outputTraceText(cmd, result, opts.Verbose)
}

// timelineFilter selects the call's frames, narrowed by the optional
// --generic and --kind flags.
func timelineFilter(opts *TraceOptions) query.Predicate {
	preds := []query.Predicate{
		query.Equals{Field: query.FieldToken, Value: ir.IRString(opts.CallToken)},
	}
	if opts.Generic != "" {
		preds = append(preds, query.Equals{Field: query.FieldGeneric, Value: ir.IRString(opts.Generic)})
	}
	if opts.Kind != "" {
		preds = append(preds, query.Equals{Field: query.FieldKind, Value: ir.IRString(opts.Kind)})
	}
	return query.And{Predicates: preds}
}

// buildTimeline converts frames, already in entry order, to events.
func buildTimeline(frames []ir.DispatchRecord) []TraceEvent {
	timeline := []TraceEvent{}
	for _, f := range frames {
		timeline = append(timeline, TraceEvent{
			Seq:      f.Seq,
			ID:       f.ID,
			ParentID: f.ParentID,
			Kind:     f.Kind,
			Generic:  f.Generic,
			Args:     f.Args,
			MethodID: f.MethodID,
			Outcome:  f.Outcome,
			Result:   f.Result,
			Depth:    f.Depth,
		})
	}
	return timeline
}

func buildStats(state store.CallState) TraceStats {
	stats := TraceStats{
		TotalFrames: len(state.Frames),
		Failed:      state.Failed,
		IsComplete:  state.IsComplete,
		Outcome:     state.Outcome,
	}
	for _, f := range state.Frames {
		switch f.Kind {
		case ir.KindNext:
			stats.NextMethods++
		case ir.KindOverride:
			stats.Overrides++
		case ir.KindSpecific:
			stats.Specific++
		}
		stats.MaxDepth = max(stats.MaxDepth, f.Depth)
	}
	return stats
}

// outputTraceJSON outputs the trace result as JSON.
func outputTraceJSON(cmd *cobra.Command, result TraceResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// outputTraceText outputs the trace result as text.
func outputTraceText(cmd *cobra.Command, result TraceResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Trace for Call: %s\n", result.CallToken)
	fmt.Fprintf(w, "Status: %s\n", completeStatus(result.Stats))
	if result.Definitions != "" {
		fmt.Fprintf(w, "Definitions: %s\n", truncateID(result.Definitions))
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no frames)")
	}
	for _, event := range result.Timeline {
		formatTimelineEvent(w, event, verbose)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total Frames: %d\n", result.Stats.TotalFrames)
	fmt.Fprintf(w, "  Next Methods: %d\n", result.Stats.NextMethods)
	fmt.Fprintf(w, "  Overrides:    %d\n", result.Stats.Overrides)
	fmt.Fprintf(w, "  Specific:     %d\n", result.Stats.Specific)
	fmt.Fprintf(w, "  Failed:       %d\n", result.Stats.Failed)
	fmt.Fprintf(w, "  Max Depth:    %d\n", result.Stats.MaxDepth)

	return nil
}

// formatTimelineEvent formats a single frame for text output.
//
//	[3]   next describe#2 ([c1]) -> "shape>thing"
func formatTimelineEvent(w io.Writer, event TraceEvent, verbose bool) {
	indent := strings.Repeat("  ", max(event.Depth-1, 0))
	method := ""
	if event.MethodID > 0 {
		method = fmt.Sprintf("#%d", event.MethodID)
	}

	fmt.Fprintf(w, "  [%d] %s%s %s%s %s", event.Seq, indent, event.Kind, event.Generic, method, ir.Format(event.Args))
	if event.Outcome == ir.OutcomeOK {
		fmt.Fprintf(w, " -> %s\n", event.Result)
	} else {
		fmt.Fprintf(w, " !! %s\n", event.Outcome)
	}
	if verbose {
		fmt.Fprintf(w, "       %sID: %s\n", indent, truncateID(event.ID))
		if event.ParentID != "" {
			fmt.Fprintf(w, "       %sParent: %s\n", indent, truncateID(event.ParentID))
		}
	}
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}

// completeStatus returns a human-readable completion status.
func completeStatus(stats TraceStats) string {
	switch {
	case !stats.IsComplete:
		return "Incomplete (no top-level frame)"
	case stats.Outcome != ir.OutcomeOK:
		return "Failed (" + stats.Outcome + ")"
	default:
		return "Complete"
	}
}
