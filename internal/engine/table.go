package engine

import (
	"slices"

	"github.com/roach88/defgeneric/internal/classes"
)

// Generic is a named operation with methods kept sorted from most to
// least specific.
//
// INVARIANTS:
//   - methods is sorted by CompareRestrictions at all times
//   - method IDs are unique and below nextID
//   - the method sequence is never mutated while busy > 0
type Generic struct {
	Name string

	methods []*Method
	busy    int
	nextID  int
}

func newGeneric(name string) *Generic {
	return &Generic{Name: name, nextID: 1}
}

// Busy returns the number of active dispatches through g.
func (g *Generic) Busy() int {
	return g.busy
}

// Len returns the number of methods, system methods included.
func (g *Generic) Len() int {
	return len(g.methods)
}

// acquire increments the busy count; the returned func undoes it.
func (g *Generic) acquire() func() {
	g.busy++
	return func() { g.busy-- }
}

// findMethod returns the slot and method with the given ID.
func (g *Generic) findMethod(id int) (int, *Method) {
	for i, m := range g.methods {
		if m.ID == id {
			return i, m
		}
	}
	return -1, nil
}

// userMethods counts methods that were not provided by the runtime.
func (g *Generic) userMethods() int {
	n := 0
	for _, m := range g.methods {
		if !m.System {
			n++
		}
	}
	return n
}

// locate scans the methods in precedence order. The first method the new
// restrictions outrank fixes the insertion slot; an Identical verdict
// marks a redefinition of the method at that slot. With no decisive
// verdict the method goes last.
func (g *Generic) locate(rs []Restriction, minArgs, maxArgs int) (slot int, replace bool) {
	for i, m := range g.methods {
		switch CompareRestrictions(rs, minArgs, maxArgs, m) {
		case Higher:
			return i, false
		case Identical:
			return i, true
		}
	}
	return len(g.methods), false
}

// placeMethod installs a method built from rs. It returns the method that
// now occupies the slot. On a redefinition the existing method keeps its
// slot and ID and only its restrictions, parameters and body change.
func (g *Generic) placeMethod(h *classes.Hierarchy, rs []Restriction, params []string, minArgs, maxArgs, explicitID int, body Action, system bool) (*Method, bool, error) {
	slot, replace := g.locate(rs, minArgs, maxArgs)

	if replace {
		m := g.methods[slot]
		if m.System {
			return nil, false, newError(ErrCodeDefinitionConflict, g.Name, m.ID,
				"cannot replace a method provided by the runtime")
		}
		if explicitID != 0 && explicitID != m.ID {
			return nil, false, newError(ErrCodeDefinitionConflict, g.Name, explicitID,
				"restrictions are identical to method #%d", m.ID)
		}
		for i := range m.Restrictions {
			m.Restrictions[i].release(h)
		}
		m.Restrictions = rs
		m.Params = params
		m.Body = body
		return m, true, nil
	}

	id := explicitID
	if id != 0 {
		if _, existing := g.findMethod(id); existing != nil {
			return nil, false, newError(ErrCodeDefinitionConflict, g.Name, id,
				"method index already in use by a method with different restrictions")
		}
		if id >= g.nextID {
			g.nextID = id + 1
		}
	} else {
		id = g.nextID
		g.nextID++
	}

	m := &Method{
		ID:           id,
		Params:       params,
		Restrictions: rs,
		MinArgs:      minArgs,
		MaxArgs:      maxArgs,
		System:       system,
		Body:         body,
	}
	g.methods = slices.Insert(g.methods, slot, m)
	return m, false, nil
}

// removeAt deletes the method at slot and releases its restrictions.
func (g *Generic) removeAt(h *classes.Hierarchy, slot int) {
	m := g.methods[slot]
	for i := range m.Restrictions {
		m.Restrictions[i].release(h)
	}
	g.methods = slices.Delete(g.methods, slot, slot+1)
}

// destroy releases every method.
func (g *Generic) destroy(h *classes.Hierarchy) {
	for len(g.methods) > 0 {
		g.removeAt(h, len(g.methods)-1)
	}
}

// Methods returns the methods in precedence order.
func (g *Generic) Methods() []*Method {
	return slices.Clone(g.methods)
}
