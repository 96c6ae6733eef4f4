package expr

import (
	"fmt"

	"github.com/roach88/defgeneric/internal/engine"
	"github.com/roach88/defgeneric/internal/ir"
)

// MethodDef converts a compiled method into an engine definition, parsing
// its guards and body.
func MethodDef(spec ir.MethodSpec) (engine.MethodDef, error) {
	def := engine.MethodDef{ID: spec.Index}

	for i, p := range spec.Params {
		pd, err := paramDef(p)
		if err != nil {
			return engine.MethodDef{}, fmt.Errorf("params[%d] %s: %w", i, p.Name, err)
		}
		def.Params = append(def.Params, pd)
	}
	if spec.Wildcard != nil {
		pd, err := paramDef(*spec.Wildcard)
		if err != nil {
			return engine.MethodDef{}, fmt.Errorf("wildcard %s: %w", spec.Wildcard.Name, err)
		}
		def.Wildcard = &pd
	}

	body, err := ParseBody(spec.Body)
	if err != nil {
		return engine.MethodDef{}, fmt.Errorf("body: %w", err)
	}
	def.Body = engine.ExpressionAction{Expr: body}
	return def, nil
}

func paramDef(p ir.ParamSpec) (engine.ParamDef, error) {
	pd := engine.ParamDef{Name: p.Name, Types: p.Types}
	if p.Query != "" {
		q, err := Parse(p.Query)
		if err != nil {
			return engine.ParamDef{}, fmt.Errorf("query: %w", err)
		}
		pd.Query = q
	}
	return pd, nil
}

// Install defines classes, instances and generic functions in order.
// Superclasses must precede their subclasses, as the compiler emits them.
// Installation stops at the first failure; what was defined before it
// stays defined.
func Install(e *engine.Engine, defs *ir.Definitions) error {
	h := e.Classes()
	for _, c := range defs.Classes {
		if _, err := h.DefineClass(c.Name, c.Superclasses, c.Abstract); err != nil {
			return fmt.Errorf("class %s: %w", c.Name, err)
		}
	}
	for _, in := range defs.Instances {
		if _, err := h.DefineInstance(in.Name, in.Class); err != nil {
			return fmt.Errorf("instance %s: %w", in.Name, err)
		}
	}
	for _, g := range defs.Generics {
		if len(g.Methods) == 0 {
			if err := e.DefineGeneric(g.Name); err != nil {
				return fmt.Errorf("generic %s: %w", g.Name, err)
			}
			continue
		}
		for i, m := range g.Methods {
			def, err := MethodDef(m)
			if err != nil {
				return fmt.Errorf("generic %s method[%d]: %w", g.Name, i, err)
			}
			if _, err := e.DefineMethod(g.Name, def); err != nil {
				return fmt.Errorf("generic %s method[%d]: %w", g.Name, i, err)
			}
		}
	}
	return nil
}
