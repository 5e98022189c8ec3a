package overrides

import (
	"honnef.co/go/cse/ir"
)

// allInterfaces returns the interfaces c implements, directly or through
// its superclasses and superinterfaces, in a deterministic order.
func allInterfaces(c *ir.Class) []*ir.Class {
	var out []*ir.Class
	seen := map[*ir.Class]bool{}
	var visit func(i *ir.Class)
	visit = func(i *ir.Class) {
		if seen[i] {
			return
		}
		seen[i] = true
		out = append(out, i)
		for _, sup := range i.Interfaces {
			visit(sup)
		}
	}
	for s := c; s != nil; s = s.Super {
		for _, i := range s.Interfaces {
			visit(i)
		}
	}
	return out
}

// implementation returns the method that runs when m, declared in an
// interface, is invoked on an instance of the concrete class c.
func implementation(c *ir.Class, m *ir.Method) *ir.Method {
	impl := ir.LookupMethod(c, m.Name, m.Desc)
	if impl == nil || impl.Static || !impl.IsVirtual() {
		return nil
	}
	return impl
}

// overridden returns the method that m directly overrides in the
// superclass chain of its class, or nil.
func overridden(m *ir.Method) *ir.Method {
	if !m.IsVirtual() {
		return nil
	}
	for s := m.Class.Super; s != nil; s = s.Super {
		if pm := s.DeclaredMethod(m.Name, m.Desc); pm != nil {
			if !pm.IsVirtual() {
				return nil
			}
			return pm
		}
	}
	return nil
}
