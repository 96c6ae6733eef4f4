package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/defgeneric/internal/ir"
)

// CallState summarizes the recorded frames of one top-level call.
type CallState struct {
	Token      string
	Frames     []ir.DispatchRecord
	TopLevel   *ir.DispatchRecord // nil while the call has not returned
	LastSeq    int64
	Failed     int    // Frames whose outcome is not "ok"
	IsComplete bool   // True once the top-level frame is recorded
	Outcome    string // Outcome of the top-level frame, empty if incomplete
}

// GetCallState retrieves every frame of a call with an analysis of
// completeness.
//
// Frames are written when they exit, so a call interrupted by a crash
// has inner frames but no depth-1 frame.
func (s *Store) GetCallState(ctx context.Context, token string) (CallState, error) {
	state := CallState{Token: token}

	frames, err := s.ReadCall(ctx, token)
	if err != nil {
		return state, fmt.Errorf("get call state: %w", err)
	}
	state.Frames = frames

	for i := range frames {
		f := &frames[i]
		if f.Seq > state.LastSeq {
			state.LastSeq = f.Seq
		}
		if f.Outcome != ir.OutcomeOK {
			state.Failed++
		}
		if f.Depth == 1 && f.Kind == ir.KindCall {
			state.TopLevel = f
		}
	}

	if state.TopLevel != nil {
		state.IsComplete = true
		state.Outcome = state.TopLevel.Outcome
	}

	return state, nil
}

// FindIncompleteCalls returns calls whose top-level frame was never
// recorded, in call order.
func (s *Store) FindIncompleteCalls(ctx context.Context) ([]CallState, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT token
		FROM dispatches
		GROUP BY token
		HAVING SUM(CASE WHEN depth = 1 AND kind = 'call' THEN 1 ELSE 0 END) = 0
		ORDER BY MIN(seq) ASC, token COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("find incomplete calls: %w", err)
	}
	tokens, err := scanTokens(rows)
	if err != nil {
		return nil, fmt.Errorf("find incomplete calls: %w", err)
	}

	var states []CallState
	for _, token := range tokens {
		state, err := s.GetCallState(ctx, token)
		if err != nil {
			return nil, err
		}
		states = append(states, state)
	}

	return states, nil
}

// GetLastSeq returns the highest seq number used in the store.
// Used to resume the logical clock so seq keeps increasing across runs.
func (s *Store) GetLastSeq(ctx context.Context) (int64, error) {
	var maxSeq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM dispatches
	`).Scan(&maxSeq)
	if err != nil {
		return 0, fmt.Errorf("get last seq: %w", err)
	}
	return maxSeq, nil
}

// GetLastSeqForCall returns the highest seq number used by one call.
func (s *Store) GetLastSeqForCall(ctx context.Context, token string) (int64, error) {
	var maxSeq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM dispatches WHERE token = ?
	`, token).Scan(&maxSeq)
	if err != nil {
		return 0, fmt.Errorf("get last seq for call: %w", err)
	}
	return maxSeq, nil
}

// ListCallTokens returns every call token in call order (lowest seq first).
// Used for trace and replay commands to enumerate all calls.
func (s *Store) ListCallTokens(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT token
		FROM dispatches
		GROUP BY token
		ORDER BY MIN(seq) ASC, token COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list call tokens: %w", err)
	}
	tokens, err := scanTokens(rows)
	if err != nil {
		return nil, fmt.Errorf("list call tokens: %w", err)
	}
	return tokens, nil
}

func scanTokens(rows *sql.Rows) ([]string, error) {
	defer rows.Close()

	tokens := []string{}
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tokens: %w", err)
	}
	return tokens, nil
}
