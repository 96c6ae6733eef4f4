package compiler

import (
	"strings"

	"cuelang.org/go/cue"

	"github.com/roach88/defgeneric/internal/ir"
)

// Compile reads every class, instance and generic block of a CUE value
// into definition IR and stops at the first malformed entry. Classes come
// back parents first; instances and generics keep declaration order.
//
//	v := cuecontext.New().CompileString(`class: SHAPE: {} ...`)
//	defs, err := Compile(v)
func Compile(v cue.Value) (*ir.Definitions, error) {
	if err := v.Err(); err != nil {
		return nil, cueError(err)
	}

	var classes []ir.ClassSpec
	err := eachEntry(v, "class", func(e cue.Value) error {
		spec, err := CompileClass(e)
		if err == nil {
			classes = append(classes, *spec)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	defs := &ir.Definitions{}
	if classes != nil {
		defs.Classes, err = OrderClasses(classes)
		if err != nil {
			block := v.LookupPath(cue.ParsePath("class"))
			return nil, &CompileError{Field: "class", Message: err.Error(), Pos: block.Pos()}
		}
	}

	err = eachEntry(v, "instance", func(e cue.Value) error {
		spec, err := CompileInstance(e)
		if err == nil {
			defs.Instances = append(defs.Instances, *spec)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	err = eachEntry(v, "generic", func(e cue.Value) error {
		spec, err := CompileGeneric(e)
		if err == nil {
			defs.Generics = append(defs.Generics, *spec)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return defs, nil
}

// eachEntry calls fn for each field of the top-level block, in order. A
// missing block has no entries.
func eachEntry(v cue.Value, block string, fn func(cue.Value) error) error {
	b := v.LookupPath(cue.ParsePath(block))
	if !b.Exists() {
		return nil
	}
	iter, err := b.Fields()
	if err != nil {
		return cueError(err)
	}
	for iter.Next() {
		if err := fn(iter.Value()); err != nil {
			return err
		}
	}
	return nil
}

// label is the name a block entry is declared under.
func label(v cue.Value) string {
	sels := v.Path().Selectors()
	if len(sels) == 0 {
		return ""
	}
	return strings.Trim(sels[len(sels)-1].String(), `"`)
}

func stringList(v cue.Value, field string) ([]string, error) {
	iter, err := v.List()
	if err != nil {
		return nil, &CompileError{Field: field, Message: "must be a list of strings", Pos: v.Pos()}
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, cueError(err)
		}
		out = append(out, s)
	}
	return out, nil
}
