package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/defgeneric/internal/ir"
)

// CompileGeneric parses a CUE value into a GenericSpec. Methods keep
// declaration order, which is the order they are defined in.
//
//	generic: area: method: [
//		{params: [{name: "s", types: ["CIRCLE"]}], body: "(* 3.14 ?r ?r)"},
//		{index: 7, params: [{name: "n", query: "(> ?n 0)"}], wildcard: {name: "rest"}},
//	]
//
// A generic with no method block declares an empty generic function.
func CompileGeneric(v cue.Value) (*ir.GenericSpec, error) {
	if err := v.Err(); err != nil {
		return nil, cueError(err)
	}

	spec := &ir.GenericSpec{Name: label(v)}

	methodVal := v.LookupPath(cue.ParsePath("method"))
	if !methodVal.Exists() {
		return spec, nil
	}

	iter, err := methodVal.List()
	if err != nil {
		return nil, &CompileError{
			Field:   fmt.Sprintf("generic.%s.method", spec.Name),
			Message: "must be a list of methods",
			Pos:     methodVal.Pos(),
		}
	}
	for i := 0; iter.Next(); i++ {
		m, err := parseMethod(iter.Value(), fmt.Sprintf("generic.%s.method[%d]", spec.Name, i))
		if err != nil {
			return nil, err
		}
		spec.Methods = append(spec.Methods, m)
	}

	return spec, nil
}

// parseMethod extracts one method definition.
func parseMethod(v cue.Value, field string) (ir.MethodSpec, error) {
	var m ir.MethodSpec

	idxVal := v.LookupPath(cue.ParsePath("index"))
	if idxVal.Exists() {
		idx, err := idxVal.Int64()
		if err != nil {
			return m, &CompileError{Field: field + ".index", Message: "must be an integer", Pos: idxVal.Pos()}
		}
		m.Index = int(idx)
	}

	paramsVal := v.LookupPath(cue.ParsePath("params"))
	if paramsVal.Exists() {
		iter, err := paramsVal.List()
		if err != nil {
			return m, &CompileError{Field: field + ".params", Message: "must be a list of parameters", Pos: paramsVal.Pos()}
		}
		for i := 0; iter.Next(); i++ {
			p, err := parseParam(iter.Value(), fmt.Sprintf("%s.params[%d]", field, i))
			if err != nil {
				return m, err
			}
			m.Params = append(m.Params, p)
		}
	}

	wildVal := v.LookupPath(cue.ParsePath("wildcard"))
	if wildVal.Exists() {
		p, err := parseParam(wildVal, field+".wildcard")
		if err != nil {
			return m, err
		}
		m.Wildcard = &p
	}

	bodyVal := v.LookupPath(cue.ParsePath("body"))
	if bodyVal.Exists() {
		body, err := bodyVal.String()
		if err != nil {
			return m, &CompileError{Field: field + ".body", Message: "must be a string", Pos: bodyVal.Pos()}
		}
		m.Body = body
	}

	return m, nil
}

// parseParam extracts a parameter restriction.
func parseParam(v cue.Value, field string) (ir.ParamSpec, error) {
	var p ir.ParamSpec

	nameVal := v.LookupPath(cue.ParsePath("name"))
	if !nameVal.Exists() {
		return p, &CompileError{Field: field + ".name", Message: "parameter name is required", Pos: v.Pos()}
	}
	name, err := nameVal.String()
	if err != nil {
		return p, cueError(err)
	}
	p.Name = name

	typesVal := v.LookupPath(cue.ParsePath("types"))
	if typesVal.Exists() {
		types, err := stringList(typesVal, field+".types")
		if err != nil {
			return p, err
		}
		p.Types = types
	}

	queryVal := v.LookupPath(cue.ParsePath("query"))
	if queryVal.Exists() {
		query, err := queryVal.String()
		if err != nil {
			return p, &CompileError{Field: field + ".query", Message: "must be a string", Pos: queryVal.Pos()}
		}
		p.Query = query
	}

	return p, nil
}
