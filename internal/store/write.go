package store

import (
	"context"
	"fmt"

	"github.com/roach88/defgeneric/internal/ir"
)

// WriteDispatch inserts one dispatch frame. It implements engine.Journal.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
// Other constraint violations (e.g., an unknown kind) still return errors.
//
// The record is stamped with the definition set last passed to
// WriteDefinitions and with the engine and IR versions.
func (s *Store) WriteDispatch(ctx context.Context, rec ir.DispatchRecord) error {
	argsJSON, err := marshalArgs(rec.Args)
	if err != nil {
		return fmt.Errorf("write dispatch: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO dispatches
		(id, token, parent_id, kind, generic, args, method_id, outcome, result, seq, depth,
		 definitions_hash, engine_version, ir_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.Token,
		rec.ParentID,
		rec.Kind,
		rec.Generic,
		argsJSON,
		rec.MethodID,
		rec.Outcome,
		rec.Result,
		rec.Seq,
		rec.Depth,
		s.DefinitionsHash(),
		ir.EngineVersion,
		ir.IRVersion,
	)
	if err != nil {
		return fmt.Errorf("write dispatch: %w", err)
	}

	return nil
}

// WriteDefinitions stores a definition set under its content hash and
// makes it the set stamped on subsequent dispatch records. Writing the
// same set twice is a no-op.
func (s *Store) WriteDefinitions(ctx context.Context, defs *ir.Definitions) (string, error) {
	hash, err := ir.DefinitionsHash(defs)
	if err != nil {
		return "", fmt.Errorf("write definitions: %w", err)
	}
	data, err := marshalDefinitions(defs)
	if err != nil {
		return "", fmt.Errorf("write definitions: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO definition_sets (hash, definitions, ir_version)
		VALUES (?, ?, ?)
		ON CONFLICT(hash) DO NOTHING
	`, hash, data, ir.IRVersion)
	if err != nil {
		return "", fmt.Errorf("write definitions: %w", err)
	}

	s.mu.Lock()
	s.defHash = hash
	s.mu.Unlock()
	return hash, nil
}

// DefinitionsHash returns the hash stamped on new dispatch records, or ""
// before any WriteDefinitions.
func (s *Store) DefinitionsHash() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.defHash
}
