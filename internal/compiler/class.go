package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/defgeneric/internal/ir"
)

// CompileClass parses a CUE value into a ClassSpec. The class name is the
// struct label:
//
//	class: CIRCLE: {superclasses: ["SHAPE"]}
//	class: SHAPE: {abstract: true}
//
// superclasses is optional; an empty list means the class inherits
// from USER.
func CompileClass(v cue.Value) (*ir.ClassSpec, error) {
	if err := v.Err(); err != nil {
		return nil, cueError(err)
	}

	spec := &ir.ClassSpec{Name: label(v)}
	field := "class." + spec.Name

	supVal := v.LookupPath(cue.ParsePath("superclasses"))
	if supVal.Exists() {
		supers, err := stringList(supVal, field+".superclasses")
		if err != nil {
			return nil, err
		}
		spec.Superclasses = supers
	}

	absVal := v.LookupPath(cue.ParsePath("abstract"))
	if absVal.Exists() {
		abstract, err := absVal.Bool()
		if err != nil {
			return nil, &CompileError{
				Field:   field + ".abstract",
				Message: fmt.Sprintf("must be a bool, got %v", absVal.IncompleteKind()),
				Pos:     absVal.Pos(),
			}
		}
		spec.Abstract = abstract
	}

	return spec, nil
}

// CompileInstance parses a CUE value into an InstanceSpec:
//
//	instance: c1: class: "CIRCLE"
func CompileInstance(v cue.Value) (*ir.InstanceSpec, error) {
	if err := v.Err(); err != nil {
		return nil, cueError(err)
	}

	spec := &ir.InstanceSpec{Name: label(v)}

	classVal := v.LookupPath(cue.ParsePath("class"))
	if !classVal.Exists() {
		return nil, &CompileError{
			Field:   "instance." + spec.Name + ".class",
			Message: "class is required",
			Pos:     v.Pos(),
		}
	}
	class, err := classVal.String()
	if err != nil {
		return nil, cueError(err)
	}
	spec.Class = class

	return spec, nil
}
