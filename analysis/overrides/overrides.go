// Package overrides computes which methods may run in place of a
// method when it is invoked through virtual or interface dispatch.
package overrides

import (
	"slices"

	"honnef.co/go/cse/ir"
)

// A Graph records direct override relationships between methods. An
// edge from a parent to a child means that a dispatched call to the
// parent may execute the child instead.
type Graph struct {
	children map[*ir.Method][]*ir.Method
	parents  map[*ir.Method][]*ir.Method
}

func NewGraph() *Graph {
	return &Graph{
		children: map[*ir.Method][]*ir.Method{},
		parents:  map[*ir.Method][]*ir.Method{},
	}
}

// Build computes the override graph of a sealed program.
func Build(prog *ir.Program) *Graph {
	g := NewGraph()
	for _, c := range prog.Classes {
		for _, m := range c.Methods {
			if pm := overridden(m); pm != nil {
				g.Add(pm, m)
			}
		}

		if c.Interface {
			// Redeclarations in subinterfaces.
			for _, m := range c.Methods {
				if !m.IsVirtual() {
					continue
				}
				for _, i := range allInterfaces(c) {
					if im := i.DeclaredMethod(m.Name, m.Desc); im != nil && im != m {
						g.Add(im, m)
					}
				}
			}
			continue
		}

		// A concrete class may implement an interface method with a
		// method it inherits from a superclass that does not itself
		// implement the interface.
		for _, i := range allInterfaces(c) {
			for _, im := range i.Methods {
				if !im.IsVirtual() {
					continue
				}
				if impl := implementation(c, im); impl != nil && impl != im && !impl.Class.Interface {
					g.Add(im, impl)
				}
			}
		}
	}
	return g
}

// Add records that child overrides or implements parent. Adding an
// edge never removes existing ones.
func (g *Graph) Add(parent, child *ir.Method) {
	if parent == child || slices.Contains(g.children[parent], child) {
		return
	}
	g.children[parent] = append(g.children[parent], child)
	g.parents[child] = append(g.parents[child], parent)
}

// Children returns the methods that directly override m.
func (g *Graph) Children(m *ir.Method) []*ir.Method { return g.children[m] }

// Parents returns the methods that m directly overrides.
func (g *Graph) Parents(m *ir.Method) []*ir.Method { return g.parents[m] }

// Overriders returns all methods that transitively override m, not
// including m itself, ordered by ID.
func (g *Graph) Overriders(m *ir.Method) []*ir.Method {
	seen := map[*ir.Method]bool{m: true}
	var out []*ir.Method
	wl := slices.Clone(g.children[m])
	for len(wl) > 0 {
		c := wl[len(wl)-1]
		wl = wl[:len(wl)-1]
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
		wl = append(wl, g.children[c]...)
	}
	slices.SortFunc(out, func(a, b *ir.Method) int { return a.ID - b.ID })
	return out
}
