package cse

import (
	"encoding/binary"
	"maps"
	"slices"

	"honnef.co/go/cse/analysis/location"
	"honnef.co/go/cse/ir"
)

// A valueID names a value computed at run time. Registers holding the
// same valueID hold the same value.
type valueID uint32

// A signature identifies a computation by its operation and the values
// of its inputs.
type signature struct {
	op     ir.Opcode
	field  *ir.Field
	method *ir.MethodRef
	class  *ir.Class
	typ    string
	lit    int64
	str    string
	// srcs holds the valueIDs of the inputs, in order.
	srcs string
}

func encodeValues(vs []valueID) string {
	b := make([]byte, 0, 4*len(vs))
	for _, v := range vs {
		b = binary.LittleEndian.AppendUint32(b, uint32(v))
	}
	return string(b)
}

// An entry records that a computation is available, and which
// instruction produced it.
type entry struct {
	value valueID
	insn  *ir.Instruction
	// deps holds the locations the value was read from, or nil.
	deps *location.Set
}

func (e entry) same(o entry) bool { return e.value == o.value && e.insn == o.insn }

// A state is what is known at one point of a method: the values held by
// registers and the computations available.
type state struct {
	regs  map[ir.Reg]valueID
	table map[signature]entry
}

func newState() *state {
	return &state{
		regs:  map[ir.Reg]valueID{},
		table: map[signature]entry{},
	}
}

func (st *state) clone() *state {
	return &state{
		regs:  maps.Clone(st.regs),
		table: maps.Clone(st.table),
	}
}

// meet restricts st to the facts that also hold in o.
func (st *state) meet(o *state) {
	for r, v := range st.regs {
		if ov, ok := o.regs[r]; !ok || ov != v {
			delete(st.regs, r)
		}
	}
	for sig, e := range st.table {
		if oe, ok := o.table[sig]; !ok || !e.same(oe) {
			delete(st.table, sig)
		}
	}
}

// readLocations returns the union of the dependencies of all available
// computations.
func (st *state) readLocations() *location.Set {
	out := location.NewSet()
	for _, e := range st.table {
		if e.deps != nil {
			out.UnionWith(e.deps)
		}
	}
	return out
}

// invalidate removes the computations that depend on any of locs. If
// locs contains the general location, all computations that depend on
// memory are removed. It returns the number of removed computations.
func (st *state) invalidate(locs *location.Set) int {
	n := 0
	general := locs.HasGeneral()
	for sig, e := range st.table {
		if e.deps == nil || e.deps.IsEmpty() {
			continue
		}
		if general || e.deps.Intersects(locs) {
			delete(st.table, sig)
			n++
		}
	}
	return n
}

// sortedRegs returns the registers with known values, in ascending
// order.
func (st *state) sortedRegs() []ir.Reg {
	return slices.Sorted(maps.Keys(st.regs))
}
