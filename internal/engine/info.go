package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/defgeneric/internal/ir"
)

// ParamInfo describes one parameter restriction for tooling.
type ParamInfo struct {
	Name     string   `json:"name"`
	Types    []string `json:"types"`
	Query    string   `json:"query,omitempty"`
	Wildcard bool     `json:"wildcard,omitempty"`
}

// MethodInfo is a read-only description of a method.
type MethodInfo struct {
	Generic string      `json:"generic"`
	ID      int         `json:"id"`
	System  bool        `json:"system,omitempty"`
	MinArgs int         `json:"min_args"`
	MaxArgs int         `json:"max_args"` // -1 when unbounded
	Params  []ParamInfo `json:"params"`
}

// Signature renders the method the way listings show it:
//
//	area #2 (CIRCLE <qry>) ($? NUMBER)
func (mi MethodInfo) Signature() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s #%d", mi.Generic, mi.ID)
	for _, p := range mi.Params {
		parts := make([]string, 0, len(p.Types)+2)
		if p.Wildcard {
			parts = append(parts, "$?")
		}
		parts = append(parts, p.Types...)
		if p.Query != "" {
			parts = append(parts, "<qry>")
		}
		sb.WriteString(" (" + strings.Join(parts, " ") + ")")
	}
	if mi.System {
		sb.WriteString(" [system]")
	}
	return sb.String()
}

func methodInfo(g *Generic, m *Method) MethodInfo {
	info := MethodInfo{
		Generic: g.Name,
		ID:      m.ID,
		System:  m.System,
		MinArgs: m.MinArgs,
		MaxArgs: m.MaxArgs,
		Params:  make([]ParamInfo, len(m.Restrictions)),
	}
	for i := range m.Restrictions {
		r := &m.Restrictions[i]
		p := ParamInfo{
			Types:    make([]string, len(r.Types)),
			Wildcard: m.Wildcard() && i == len(m.Restrictions)-1,
		}
		if i < len(m.Params) {
			p.Name = m.Params[i]
		}
		for j, c := range r.Types {
			p.Types[j] = c.Name
		}
		if r.Query != nil {
			p.Query = r.Query.Source()
		}
		info.Params[i] = p
	}
	return info
}

// Methods lists the methods of a generic in precedence order.
func (e *Engine) Methods(name string) ([]MethodInfo, error) {
	g, ok := e.generics[name]
	if !ok {
		return nil, newError(ErrCodeGenericNotFound, name, 0, "no such generic function")
	}
	infos := make([]MethodInfo, len(g.methods))
	for i, m := range g.methods {
		infos[i] = methodInfo(g, m)
	}
	return infos, nil
}

// MethodRestrictions describes one method: arity bounds, parameter types
// and guard presence.
func (e *Engine) MethodRestrictions(name string, id int) (MethodInfo, error) {
	g, ok := e.generics[name]
	if !ok {
		return MethodInfo{}, newError(ErrCodeGenericNotFound, name, id, "no such generic function")
	}
	_, m := g.findMethod(id)
	if m == nil {
		return MethodInfo{}, newError(ErrCodeMethodNotFound, name, id, "no such method")
	}
	return methodInfo(g, m), nil
}

// Preview lists the methods applicable to args in the order a call would
// try them, without executing any body. Guards are evaluated.
func (e *Engine) Preview(ctx context.Context, name string, args ir.IRArray) ([]MethodInfo, error) {
	g, ok := e.generics[name]
	if !ok {
		return nil, newError(ErrCodeGenericNotFound, name, 0, "no such generic function")
	}
	if err := e.checkHalt(ctx, name); err != nil {
		return nil, err
	}

	release := g.acquire()
	defer release()

	var infos []MethodInfo
	for _, m := range g.methods {
		ok, err := e.isApplicable(ctx, g, m, args)
		if err != nil {
			return nil, err
		}
		if ok {
			infos = append(infos, methodInfo(g, m))
		}
	}
	return infos, nil
}
