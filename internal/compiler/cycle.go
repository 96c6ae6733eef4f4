package compiler

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/defgeneric/internal/ir"
)

// ErrInheritanceCycle is returned by OrderClasses when classes inherit
// from each other.
var ErrInheritanceCycle = errors.New("inheritance cycle")

// InheritanceCycle is a set of user classes that are their own ancestors.
type InheritanceCycle struct {
	Path    []string `json:"path"` // e.g. ["A", "B", "A"]
	Message string   `json:"message"`
}

// AnalyzeCycles finds inheritance cycles among declared classes.
//
// Edges run from a class to each of its superclasses. Superclasses that
// are not declared in specs (system classes, typos) end the walk; the
// validator reports unknown names separately. Tarjan's algorithm finds the
// strongly connected components; every component with more than one class
// or a class naming itself is a cycle.
//
// Results are ordered by the declaration position of the first class of
// each cycle.
func AnalyzeCycles(specs []ir.ClassSpec) []InheritanceCycle {
	graph, order := buildInheritanceGraph(specs)

	var cycles []InheritanceCycle
	for _, scc := range tarjanSCC(graph, order) {
		if len(scc) > 1 || hasSelfLoop(scc[0], graph) {
			cycles = append(cycles, sccToCycle(scc, graph, order))
		}
	}
	slices.SortStableFunc(cycles, func(a, b InheritanceCycle) int {
		return slices.Index(order, a.Path[0]) - slices.Index(order, b.Path[0])
	})
	return cycles
}

// OrderClasses returns specs sorted parents first. Classes whose parents
// are all undeclared keep their relative declaration order.
func OrderClasses(specs []ir.ClassSpec) ([]ir.ClassSpec, error) {
	if cycles := AnalyzeCycles(specs); len(cycles) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInheritanceCycle, strings.Join(cycles[0].Path, " → "))
	}

	byName := make(map[string]ir.ClassSpec, len(specs))
	for _, s := range specs {
		byName[s.Name] = s
	}

	placed := make(map[string]bool, len(specs))
	out := make([]ir.ClassSpec, 0, len(specs))
	var place func(ir.ClassSpec)
	place = func(s ir.ClassSpec) {
		if placed[s.Name] {
			return
		}
		placed[s.Name] = true
		for _, sup := range s.Superclasses {
			if parent, ok := byName[sup]; ok {
				place(parent)
			}
		}
		out = append(out, s)
	}
	for _, s := range specs {
		place(s)
	}
	return out, nil
}

// inheritanceGraph maps class name → declared superclasses.
type inheritanceGraph map[string][]string

// buildInheritanceGraph keeps only edges between declared classes and
// returns the declaration order of the nodes.
func buildInheritanceGraph(specs []ir.ClassSpec) (inheritanceGraph, []string) {
	graph := make(inheritanceGraph, len(specs))
	order := make([]string, 0, len(specs))
	for _, s := range specs {
		if _, seen := graph[s.Name]; !seen {
			order = append(order, s.Name)
			graph[s.Name] = []string{}
		}
	}
	for _, s := range specs {
		for _, sup := range s.Superclasses {
			if _, declared := graph[sup]; declared {
				graph[s.Name] = append(graph[s.Name], sup)
			}
		}
	}
	return graph, order
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph inheritanceGraph) bool {
	return slices.Contains(graph[node], node)
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes are visited in the given order so the result is deterministic.
func tarjanSCC(graph inheritanceGraph, order []string) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is a root: pop its component.
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range order {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

// sccToCycle converts a component to a cycle starting at its earliest
// declared class.
func sccToCycle(scc []string, graph inheritanceGraph, order []string) InheritanceCycle {
	start := slices.MinFunc(scc, func(a, b string) int {
		return slices.Index(order, a) - slices.Index(order, b)
	})
	if len(scc) == 1 {
		return InheritanceCycle{
			Path:    []string{start, start},
			Message: fmt.Sprintf("class %s inherits from itself", start),
		}
	}

	path := reconstructCyclePath(start, scc, graph)
	return InheritanceCycle{
		Path:    path,
		Message: fmt.Sprintf("inheritance cycle: %s", strings.Join(path, " → ")),
	}
}

// reconstructCyclePath searches depth first inside the component for a
// path from start back to start.
func reconstructCyclePath(start string, scc []string, graph inheritanceGraph) []string {
	inSCC := make(map[string]bool, len(scc))
	for _, node := range scc {
		inSCC[node] = true
	}

	visited := make(map[string]bool, len(scc))
	var walk func(node string, path []string) []string
	walk = func(node string, path []string) []string {
		visited[node] = true
		for _, next := range graph[node] {
			if next == start {
				return append(path, start)
			}
			if inSCC[next] && !visited[next] {
				if found := walk(next, append(path, next)); found != nil {
					return found
				}
			}
		}
		return nil
	}
	return walk(start, []string{start})
}
