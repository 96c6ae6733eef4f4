package engine

// # Replay
//
// A journal holds one record per dispatch frame. Records of one top-level
// call share a call token; the depth-1 record of kind "call" carries the
// generic name and arguments the caller passed.
//
// Replay re-executes each recorded top-level call against the current
// definitions and compares the sequence of selected methods, in frame
// order, with the recorded one. Dispatch is deterministic: the same
// definitions and the same arguments select the same methods. A
// divergence therefore means the definitions changed between the run
// and the replay (a method was added, removed or redefined with other
// restrictions).
//
// Replay reuses the recorded call token, so content-addressed frame IDs
// computed during replay line up with the recorded ones when the frame
// sequence numbers do. Sequence numbers come from the engine's clock and
// are not compared.
//
// Bodies run for real. Side effects of the replayed calls are not undone.

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/defgeneric/internal/ir"
)

// ReplayResult compares one recorded top-level call with its re-execution.
type ReplayResult struct {
	Token    string     `json:"token"`
	Generic  string     `json:"generic"`
	Args     ir.IRArray `json:"args"`
	Recorded []Step     `json:"recorded"`
	Replayed []Step     `json:"replayed"`
	Match    bool       `json:"match"`
}

// Step is one frame of a call: which kind of dispatch selected which
// method, and how it ended.
type Step struct {
	Kind     string `json:"kind"`
	Generic  string `json:"generic"`
	MethodID int    `json:"method_id"`
	Outcome  string `json:"outcome"`
}

// ErrNoTopLevelCall is returned when a token's records lack the depth-1
// call record.
var ErrNoTopLevelCall = errors.New("no top-level call record")

// captureJournal collects the frames of the call being replayed.
type captureJournal struct {
	records []ir.DispatchRecord
}

func (j *captureJournal) WriteDispatch(_ context.Context, rec ir.DispatchRecord) error {
	j.records = append(j.records, rec)
	return nil
}

// replayToken hands out the recorded token of the call being replayed.
type replayToken struct {
	token string
}

func (r *replayToken) Generate() string {
	return r.token
}

// Replay re-executes the recorded calls in recs, grouped by call token in
// order of first appearance, and reports one result per call.
//
// The engine's own journal is not written during replay.
func (e *Engine) Replay(ctx context.Context, recs []ir.DispatchRecord) ([]ReplayResult, error) {
	groups, order := groupByToken(recs)

	savedJournal, savedTokens := e.journal, e.tokens
	defer func() { e.journal, e.tokens = savedJournal, savedTokens }()

	capture := &captureJournal{}
	token := &replayToken{}
	e.journal, e.tokens = capture, token

	results := make([]ReplayResult, 0, len(order))
	for _, tok := range order {
		frames := groups[tok]
		top := slices.IndexFunc(frames, func(r ir.DispatchRecord) bool {
			return r.Depth == 1 && r.Kind == ir.KindCall
		})
		if top < 0 {
			e.logger.Error("replay skipped", "token", tok, "error", ErrNoTopLevelCall)
			return results, fmt.Errorf("replay %s: %w", tok, ErrNoTopLevelCall)
		}

		capture.records = capture.records[:0]
		token.token = tok
		_, err := e.Call(ctx, frames[top].Generic, frames[top].Args)
		if IsHalted(err) {
			return results, err
		}

		res := ReplayResult{
			Token:    tok,
			Generic:  frames[top].Generic,
			Args:     frames[top].Args,
			Recorded: steps(frames),
			Replayed: steps(capture.records),
		}
		res.Match = slices.Equal(res.Recorded, res.Replayed)
		if !res.Match {
			e.logger.Warn("replay diverged", "token", tok, "generic", res.Generic)
		} else {
			e.logger.Debug("replay matched", "token", tok, "generic", res.Generic)
		}
		results = append(results, res)
	}
	return results, nil
}

// groupByToken splits records by call token, keeping first-appearance
// order of tokens.
func groupByToken(recs []ir.DispatchRecord) (map[string][]ir.DispatchRecord, []string) {
	groups := make(map[string][]ir.DispatchRecord)
	var order []string
	for _, r := range recs {
		if _, ok := groups[r.Token]; !ok {
			order = append(order, r.Token)
		}
		groups[r.Token] = append(groups[r.Token], r)
	}
	return groups, order
}

// steps orders frames by sequence number, which is frame entry order.
func steps(frames []ir.DispatchRecord) []Step {
	sorted := slices.Clone(frames)
	slices.SortStableFunc(sorted, func(a, b ir.DispatchRecord) int {
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		default:
			return 0
		}
	})
	out := make([]Step, len(sorted))
	for i, r := range sorted {
		out[i] = Step{Kind: r.Kind, Generic: r.Generic, MethodID: r.MethodID, Outcome: r.Outcome}
	}
	return out
}
