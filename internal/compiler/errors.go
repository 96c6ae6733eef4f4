package compiler

import (
	"fmt"

	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// CompileError is a malformed definition block. Field is the dotted path
// of the offending value, e.g. "generic.area.method[2].body".
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if !e.Pos.IsValid() {
		return e.Field + ": " + e.Message
	}
	return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Field, e.Message)
}

// cueError turns a CUE evaluation error into a CompileError at the
// position of its first reported problem. Errors without a position are
// returned unchanged.
func cueError(err error) error {
	list := errors.Errors(err)
	if len(list) == 0 {
		return err
	}
	first := list[0]
	pos := errors.Positions(first)
	if len(pos) == 0 {
		return err
	}
	return &CompileError{Field: "cue", Message: first.Error(), Pos: pos[0]}
}
