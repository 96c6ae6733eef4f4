package ir

import (
	"fmt"
	"regexp"
)

// ClassSpec represents a compiled user class declaration.
// Only the inheritance edges are modelled; slots and instance storage live
// outside this runtime.
type ClassSpec struct {
	Name         string   `json:"name"`
	Superclasses []string `json:"superclasses"`
	Abstract     bool     `json:"abstract,omitempty"`
}

// InstanceSpec declares a named object instance of a user class.
type InstanceSpec struct {
	Name  string `json:"name"`
	Class string `json:"class"`
}

// GenericSpec represents a compiled generic function and its methods in
// declaration order.
type GenericSpec struct {
	Name    string       `json:"name"`
	Methods []MethodSpec `json:"methods"`
}

// MethodSpec represents one method definition.
// Index 0 means "assign the next free index".
type MethodSpec struct {
	Index    int         `json:"index,omitempty"`
	Params   []ParamSpec `json:"params"`
	Wildcard *ParamSpec  `json:"wildcard,omitempty"`
	Body     string      `json:"body"`
}

// ParamSpec is one parameter restriction: allowed class names plus an
// optional guard query. Empty Types means unrestricted.
type ParamSpec struct {
	Name  string   `json:"name"`
	Types []string `json:"types,omitempty"`
	Query string   `json:"query,omitempty"`
}

// Definitions bundles everything loaded from one definitions directory.
type Definitions struct {
	Classes   []ClassSpec    `json:"classes"`
	Instances []InstanceSpec `json:"instances"`
	Generics  []GenericSpec  `json:"generics"`
}

// Unbounded is the MaxArgs value of a method with a wildcard parameter.
const Unbounded = -1

// MinArgs returns the number of mandatory arguments.
func (m MethodSpec) MinArgs() int {
	return len(m.Params)
}

// MaxArgs returns the maximum number of arguments, or Unbounded.
func (m MethodSpec) MaxArgs() int {
	if m.Wildcard != nil {
		return Unbounded
	}
	return len(m.Params)
}

// AllParams returns the fixed parameters followed by the wildcard, if any.
func (m MethodSpec) AllParams() []ParamSpec {
	if m.Wildcard == nil {
		return m.Params
	}
	out := make([]ParamSpec, 0, len(m.Params)+1)
	out = append(out, m.Params...)
	return append(out, *m.Wildcard)
}

// ValidationError represents a validation error with field path and message.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var paramNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_\-]*$`)

// Validate checks a method definition against schema rules that do not
// need the class hierarchy. Redundant type tags are checked by the engine.
// Returns all errors (not fail-fast) for better developer experience.
func (m *MethodSpec) Validate() []ValidationError {
	var errs []ValidationError

	if m.Index < 0 {
		errs = append(errs, ValidationError{
			Field:   "index",
			Message: fmt.Sprintf("method index must be positive, got %d", m.Index),
		})
	}

	seen := make(map[string]bool)
	for i, p := range m.AllParams() {
		field := fmt.Sprintf("params[%d]", i)
		if m.Wildcard != nil && i == len(m.Params) {
			field = "wildcard"
		}
		if !paramNamePattern.MatchString(p.Name) {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("invalid parameter name %q", p.Name),
			})
		}
		if seen[p.Name] {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("duplicate parameter name %q", p.Name),
			})
		}
		seen[p.Name] = true

		types := make(map[string]bool)
		for j, typ := range p.Types {
			if typ == "" {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s.types[%d]", field, j),
					Message: "type name must not be empty",
				})
			}
			if types[typ] {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s.types[%d]", field, j),
					Message: fmt.Sprintf("duplicate type %q", typ),
				})
			}
			types[typ] = true
		}
	}

	return errs
}

// toIR converts the definition set to an IRObject for canonical
// serialization.
func (d *Definitions) toIR() IRObject {
	cls := make(IRArray, len(d.Classes))
	for i, c := range d.Classes {
		cls[i] = IRObject{
			"name":         IRString(c.Name),
			"superclasses": stringArray(c.Superclasses),
			"abstract":     IRBool(c.Abstract),
		}
	}
	insts := make(IRArray, len(d.Instances))
	for i, inst := range d.Instances {
		insts[i] = IRObject{"name": IRString(inst.Name), "class": IRString(inst.Class)}
	}
	gens := make(IRArray, len(d.Generics))
	for i, g := range d.Generics {
		methods := make(IRArray, len(g.Methods))
		for j, m := range g.Methods {
			params := make(IRArray, len(m.Params))
			for k, p := range m.Params {
				params[k] = p.toIR()
			}
			obj := IRObject{
				"index":  IRInt(m.Index),
				"params": params,
				"body":   IRString(m.Body),
			}
			if m.Wildcard != nil {
				obj["wildcard"] = m.Wildcard.toIR()
			}
			methods[j] = obj
		}
		gens[i] = IRObject{"name": IRString(g.Name), "methods": methods}
	}
	return IRObject{"classes": cls, "instances": insts, "generics": gens}
}

func (p ParamSpec) toIR() IRObject {
	return IRObject{
		"name":  IRString(p.Name),
		"types": stringArray(p.Types),
		"query": IRString(p.Query),
	}
}

func stringArray(ss []string) IRArray {
	out := make(IRArray, len(ss))
	for i, s := range ss {
		out[i] = IRString(s)
	}
	return out
}
