package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/defgeneric/internal/ir"
)

// marshalArgs converts call arguments to canonical JSON TEXT for storage.
// Symbols, floats and instances keep their type through the tagged form.
func marshalArgs(args ir.IRArray) (string, error) {
	if args == nil {
		args = ir.IRArray{}
	}
	data, err := ir.MarshalCanonical(args)
	if err != nil {
		return "", fmt.Errorf("marshal args: %w", err)
	}
	return string(data), nil
}

// unmarshalArgs parses canonical JSON TEXT back to call arguments.
// Uses ir.IRArray.UnmarshalJSON which keeps large integers exact and
// restores tagged values.
func unmarshalArgs(data string) (ir.IRArray, error) {
	if data == "" || data == "[]" {
		return ir.IRArray{}, nil
	}
	var arr ir.IRArray
	if err := json.Unmarshal([]byte(data), &arr); err != nil {
		return nil, fmt.Errorf("unmarshal args: %w", err)
	}
	return arr, nil
}

// marshalDefinitions converts a definition set to JSON TEXT.
// Field order is fixed by the struct, so equal sets encode equally.
func marshalDefinitions(defs *ir.Definitions) (string, error) {
	data, err := json.Marshal(defs)
	if err != nil {
		return "", fmt.Errorf("marshal definitions: %w", err)
	}
	return string(data), nil
}

// unmarshalDefinitions parses JSON TEXT to a definition set.
func unmarshalDefinitions(data string) (*ir.Definitions, error) {
	var defs ir.Definitions
	if err := json.Unmarshal([]byte(data), &defs); err != nil {
		return nil, fmt.Errorf("unmarshal definitions: %w", err)
	}
	return &defs, nil
}
