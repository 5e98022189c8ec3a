package cse

import (
	"bytes"
	"fmt"

	"honnef.co/go/cse/analysis/location"
	"honnef.co/go/cse/internal/trace"
	"honnef.co/go/cse/ir"
	"honnef.co/go/cse/ir/irutil"
)

// A TypeOracle knows the exact class of the receiver of some virtual
// and interface calls.
type TypeOracle interface {
	// ExactReceiver returns the exact class of the receiver of insn, or
	// nil if it is not known.
	ExactReceiver(insn *ir.Instruction) *ir.Class
}

// A Forward records that Later recomputes the value of Earlier, and
// may be replaced by a copy of it.
type Forward struct {
	Earlier *ir.Instruction
	Later   *ir.Instruction
}

// CSE holds the redundancies found in one method.
type CSE struct {
	shared *SharedState
	code   *ir.Code
	oracle TypeOracle
	tr     *trace.Logger

	forwards []Forward
	stats    Stats
	next     valueID

	fieldDeps map[*ir.Field]*location.Set
	arrayDeps map[ir.Opcode]*location.Set
}

// New analyzes code. It does not modify it; see Patch. oracle may be
// nil. An error is returned if code is malformed.
func New(shared *SharedState, code *ir.Code, oracle TypeOracle) (*CSE, error) {
	c := &CSE{
		shared:    shared,
		code:      code,
		oracle:    oracle,
		tr:        shared.tr,
		fieldDeps: map[*ir.Field]*location.Set{},
		arrayDeps: map[ir.Opcode]*location.Set{},
	}
	if err := c.analyze(); err != nil {
		return nil, err
	}
	return c, nil
}

// Forwards returns the redundancies found, in the order in which the
// later instructions were visited.
func (c *CSE) Forwards() []Forward { return c.forwards }

func (c *CSE) Stats() Stats { return c.stats }

func (c *CSE) analyze() error {
	if err := ir.Validate(c.code); err != nil {
		return err
	}
	if c.tr.Enabled(3) {
		var buf bytes.Buffer
		ir.WriteDomTree(&buf, c.code)
		c.tr.Printf(3, "%s: dominator tree:\n%s", c.code.Method, buf.String())
	}
	order := c.code.ReversePostorder()
	exits := make([]*state, len(c.code.Blocks))
	for _, b := range order {
		st, err := c.entryState(b, exits)
		if err != nil {
			return err
		}
		for _, insn := range b.Instrs {
			c.step(st, insn)
		}
		exits[b.Index] = st
		if c.tr.Enabled(3) {
			c.tr.Printf(3, "%s: exit of %s: %d values, %d registers %v",
				c.code.Method, b, len(st.table), len(st.regs), st.sortedRegs())
		}
	}
	c.stats.MaxValueIDs = int(c.next)
	c.tr.Printf(2, "%s: %d forwards, %d values", c.code.Method, len(c.forwards), c.next)
	return nil
}

func (c *CSE) fresh() valueID {
	v := c.next
	c.next++
	return v
}

// value returns the value held by r, numbering it if it is unknown.
func (c *CSE) value(st *state, r ir.Reg) valueID {
	if v, ok := st.regs[r]; ok {
		return v
	}
	v := c.fresh()
	st.regs[r] = v
	return v
}

func (c *CSE) exact(insn *ir.Instruction) *ir.Class {
	if c.oracle == nil || !insn.Op.IsVirtualInvoke() {
		return nil
	}
	return c.oracle.ExactReceiver(insn)
}

// entryState computes the state at the entry of b from the exit states
// of its predecessors. Predecessors that have not been visited yet are
// the sources of retreating edges; for those, the state is weakened by
// everything that may happen in the blocks between b and them.
func (c *CSE) entryState(b *ir.BasicBlock, exits []*state) (*state, error) {
	if b.Index == 0 {
		return newState(), nil
	}
	var visited, pending []*ir.BasicBlock
	for _, p := range b.Preds {
		switch {
		case exits[p.Index] != nil:
			visited = append(visited, p)
		case p.Reachable():
			pending = append(pending, p)
		}
	}
	if len(visited) == 0 {
		return nil, fmt.Errorf("%s has no visited predecessor", b)
	}
	st := exits[visited[0].Index].clone()
	for _, p := range visited[1:] {
		st.meet(exits[p.Index])
	}
	if len(pending) > 0 {
		c.weaken(st, b, pending)
	}
	return st, nil
}

// weaken removes from st the facts that may not survive a path from b
// back to b through one of tails.
func (c *CSE) weaken(st *state, b *ir.BasicBlock, tails []*ir.BasicBlock) {
	writes := location.NewSet()
	defs := map[ir.Reg]bool{}
	for _, rb := range irutil.Region(b, tails) {
		for _, insn := range rb.Instrs {
			if w := c.shared.writtenLocations(insn, c.exact(insn)); w != nil {
				writes.UnionWith(w)
			}
			if insn.HasDest() {
				defs[insn.Dest] = true
			}
		}
	}
	general := writes.HasGeneral()
	for sig, e := range st.table {
		switch {
		case !e.insn.Block().Dominates(b):
			// In an irreducible region, b may be entered on a path that
			// skips the producer.
			delete(st.table, sig)
		case e.deps == nil || e.deps.IsEmpty():
		case general || e.deps.Intersects(writes):
			delete(st.table, sig)
		}
	}
	for r := range defs {
		delete(st.regs, r)
	}
}

// mayWrite reports whether instructions with opcode op can write
// memory.
func mayWrite(insn *ir.Instruction) bool {
	op := insn.Op
	return op.IsStore() || op.IsInvoke() || op.IsMonitor() ||
		(op.IsFieldGet() && insn.Field.Volatile)
}

func (c *CSE) step(st *state, insn *ir.Instruction) {
	exact := c.exact(insn)

	if mayWrite(insn) && len(st.table) > 0 {
		if rel := c.shared.RelevantWrittenLocations(insn, exact, st.readLocations()); rel != nil {
			n := st.invalidate(rel)
			c.shared.LogBarrier(insn)
			c.tr.Printf(2, "%s: %s invalidates %d values reading %s",
				c.code.Method, insn, n, rel.Format(c.shared.universe))
		}
	}

	op := insn.Op
	switch op {
	case ir.OpMove:
		st.regs[insn.Dest] = c.value(st, insn.Srcs[0])
		return
	case ir.OpConst, ir.OpConstString:
		// Constants are numbered so that computations on equal
		// constants match, but are never replaced themselves.
		sig := signature{op: op, lit: insn.Literal, str: insn.Str}
		e, ok := st.table[sig]
		if !ok {
			e = entry{value: c.fresh(), insn: insn}
			st.table[sig] = e
		}
		st.regs[insn.Dest] = e.value
		return
	case ir.OpNewArray:
		size := c.value(st, insn.Srcs[0])
		v := c.fresh()
		st.regs[insn.Dest] = v
		sig := signature{op: ir.OpArrayLength, srcs: encodeValues([]valueID{v})}
		st.table[sig] = entry{value: size, insn: insn}
		return
	}

	if sig, deps, ok := c.candidate(st, insn, exact); ok {
		if e, ok := st.table[sig]; ok {
			c.forwards = append(c.forwards, Forward{Earlier: e.insn, Later: insn})
			st.regs[insn.Dest] = e.value
			c.tr.Printf(2, "%s: forwarding %s to %s", c.code.Method, insn, e.insn)
			return
		}
		v := c.fresh()
		st.table[sig] = entry{value: v, insn: insn, deps: deps}
		st.regs[insn.Dest] = v
		return
	}

	if op.IsStore() {
		c.captureStore(st, insn)
	}
	if insn.HasDest() {
		st.regs[insn.Dest] = c.fresh()
	}
}

// candidate returns the signature of insn and the locations its result
// depends on, if insn may be replaced by an earlier equivalent
// instruction.
func (c *CSE) candidate(st *state, insn *ir.Instruction, exact *ir.Class) (signature, *location.Set, bool) {
	if !insn.HasDest() {
		return signature{}, nil, false
	}
	op := insn.Op
	var deps *location.Set
	switch {
	case op.IsUnary(), op.IsBinary(), op == ir.OpArrayLength, op == ir.OpInstanceOf:
	case op.IsFieldGet():
		if insn.Field.Volatile {
			return signature{}, nil, false
		}
		deps = c.fieldLocations(insn.Field)
	case op.IsAGet():
		deps = c.arrayLocations(op)
	case op.IsInvoke():
		if c.shared.isPureCall(insn, exact) {
			break
		}
		deps = c.shared.conditionallyPureReads(insn, exact)
		if deps == nil {
			return signature{}, nil, false
		}
	default:
		return signature{}, nil, false
	}

	vals := make([]valueID, len(insn.Srcs))
	for i, r := range insn.Srcs {
		vals[i] = c.value(st, r)
	}
	if op.IsCommutative() && vals[0] > vals[1] {
		vals[0], vals[1] = vals[1], vals[0]
	}
	sig := signature{
		op:     op,
		field:  insn.Field,
		method: insn.Method,
		class:  insn.Class,
		typ:    insn.Type,
		lit:    insn.Literal,
		str:    insn.Str,
		srcs:   encodeValues(vals),
	}
	return sig, deps, true
}

// captureStore makes the value stored by insn available to later reads
// of the same location.
func (c *CSE) captureStore(st *state, insn *ir.Instruction) {
	op := insn.Op
	var (
		srcs []valueID
		deps *location.Set
		sig  signature
	)
	switch {
	case op.IsFieldPut():
		if insn.Field.Volatile {
			return
		}
		for _, r := range insn.Srcs[1:] {
			srcs = append(srcs, c.value(st, r))
		}
		deps = c.fieldLocations(insn.Field)
		sig.field = insn.Field
	case op.IsAPut():
		srcs = []valueID{c.value(st, insn.Srcs[1]), c.value(st, insn.Srcs[2])}
		deps = c.arrayLocations(op)
	default:
		return
	}
	sig.op = op.AccessFor()
	sig.srcs = encodeValues(srcs)
	st.table[sig] = entry{value: c.value(st, insn.Srcs[0]), insn: insn, deps: deps}
}

func (c *CSE) fieldLocations(f *ir.Field) *location.Set {
	s, ok := c.fieldDeps[f]
	if !ok {
		s = location.NewSet(location.FieldLocation(f))
		c.fieldDeps[f] = s
	}
	return s
}

func (c *CSE) arrayLocations(op ir.Opcode) *location.Set {
	if op.IsAPut() {
		op = op.AccessFor()
	}
	s, ok := c.arrayDeps[op]
	if !ok {
		s = location.NewSet(location.ArrayComponent(op))
		c.arrayDeps[op] = s
	}
	return s
}
