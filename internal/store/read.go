package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/defgeneric/internal/ir"
	"github.com/roach88/defgeneric/internal/query"
)

const dispatchColumns = `id, token, parent_id, kind, generic, args, method_id, outcome, result, seq, depth`

// ReadCall returns every frame of one top-level call.
// Results ordered by seq ASC, id ASC: frame entry order.
func (s *Store) ReadCall(ctx context.Context, token string) ([]ir.DispatchRecord, error) {
	return s.queryDispatches(ctx, "read call", `
		SELECT `+dispatchColumns+`
		FROM dispatches
		WHERE token = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, token)
}

// ReadAllDispatches returns every frame in the journal.
// Used for replay. Results ordered by seq ASC, id ASC.
func (s *Store) ReadAllDispatches(ctx context.Context) ([]ir.DispatchRecord, error) {
	return s.queryDispatches(ctx, "read all dispatches", `
		SELECT `+dispatchColumns+`
		FROM dispatches
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
}

// ReadGeneric returns every frame that dispatched on one generic.
func (s *Store) ReadGeneric(ctx context.Context, generic string) ([]ir.DispatchRecord, error) {
	return s.queryDispatches(ctx, "read generic", `
		SELECT `+dispatchColumns+`
		FROM dispatches
		WHERE generic = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, generic)
}

// ReadChildren returns the frames entered directly from parentID: its
// shadow calls and every generic call made by its body.
func (s *Store) ReadChildren(ctx context.Context, parentID string) ([]ir.DispatchRecord, error) {
	return s.queryDispatches(ctx, "read children", `
		SELECT `+dispatchColumns+`
		FROM dispatches
		WHERE parent_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, parentID)
}

// SelectDispatches returns the frames matching q, in entry order.
func (s *Store) SelectDispatches(ctx context.Context, q query.Select) ([]ir.DispatchRecord, error) {
	suffix, params, err := query.Compile(q)
	if err != nil {
		return nil, fmt.Errorf("select dispatches: %w", err)
	}
	return s.queryDispatches(ctx, "select dispatches", `
		SELECT `+dispatchColumns+`
		FROM dispatches
		`+suffix, params...)
}

// ReadDispatch retrieves a single frame by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadDispatch(ctx context.Context, id string) (ir.DispatchRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+dispatchColumns+`
		FROM dispatches
		WHERE id = ?
	`, id)
	return scanDispatch(row)
}

// ReadDefinitions retrieves a stored definition set by hash.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadDefinitions(ctx context.Context, hash string) (*ir.Definitions, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `
		SELECT definitions FROM definition_sets WHERE hash = ?
	`, hash).Scan(&data)
	if err != nil {
		return nil, err
	}
	return unmarshalDefinitions(data)
}

// ReadCallDefinitionsHash returns the definition set a call ran against,
// or "" when none was recorded.
func (s *Store) ReadCallDefinitionsHash(ctx context.Context, token string) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, `
		SELECT definitions_hash FROM dispatches
		WHERE token = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
		LIMIT 1
	`, token).Scan(&hash)
	if err != nil {
		return "", fmt.Errorf("read call definitions: %w", err)
	}
	return hash, nil
}

func (s *Store) queryDispatches(ctx context.Context, op, query string, args ...any) ([]ir.DispatchRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var recs []ir.DispatchRecord
	for rows.Next() {
		rec, err := scanDispatch(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate: %w", op, err)
	}

	// Return empty slice instead of nil
	if recs == nil {
		recs = []ir.DispatchRecord{}
	}

	return recs, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanDispatch(sc scanner) (ir.DispatchRecord, error) {
	var rec ir.DispatchRecord
	var argsJSON string

	err := sc.Scan(
		&rec.ID,
		&rec.Token,
		&rec.ParentID,
		&rec.Kind,
		&rec.Generic,
		&argsJSON,
		&rec.MethodID,
		&rec.Outcome,
		&rec.Result,
		&rec.Seq,
		&rec.Depth,
	)
	if err == sql.ErrNoRows {
		return rec, err
	}
	if err != nil {
		return rec, fmt.Errorf("scan dispatch: %w", err)
	}

	rec.Args, err = unmarshalArgs(argsJSON)
	if err != nil {
		return rec, err
	}

	return rec, nil
}
