package cse

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"honnef.co/go/cse/analysis/location"
	"honnef.co/go/cse/analysis/overrides"
	"honnef.co/go/cse/ir"
	"honnef.co/go/cse/ir/irutil"
)

// generalSet is the effect of code about which nothing is known.
var generalSet = location.NewSet(location.Special(location.General))

// MethodBarriersStats describe the computation of method effects.
type MethodBarriersStats struct {
	// Iterations is the number of worklist items processed.
	Iterations int
	// MethodsTouched is the number of methods whose effect was widened
	// by that of a callee or an overrider.
	MethodsTouched int
	// MethodsScanned is the number of method bodies that were scanned.
	MethodsScanned int
	// MethodBarriers is the number of methods whose calls may write
	// memory.
	MethodBarriers int
	SafeMethods    int
}

// A methodScan is what a single pass over a method body reveals.
type methodScan struct {
	writes *location.Set
	reads  *location.Set
	calls  []*ir.Instruction
	// readOnly is set if, ignoring calls, the method returns a value
	// computed without allocating, synchronizing or writing memory.
	readOnly bool
}

func (s *SharedState) scanMethod(m *ir.Method) (*methodScan, error) {
	if err := ir.Validate(m.Code); err != nil {
		return nil, err
	}
	sc := &methodScan{
		writes:   location.NewSet(),
		reads:    location.NewSet(),
		readOnly: m.ReturnsValue(),
	}
	general := location.Special(location.General)
	irutil.Instructions(m.Code, func(insn *ir.Instruction) {
		op := insn.Op
		switch {
		case op.IsInvoke():
			sc.calls = append(sc.calls, insn)
		case op.IsFieldPut():
			if insn.Field.Volatile {
				sc.writes.Insert(general)
			} else {
				sc.writes.Insert(location.FieldLocation(insn.Field))
			}
			sc.readOnly = false
		case op.IsAPut():
			sc.writes.Insert(location.ArrayComponent(op))
			sc.readOnly = false
		case op.IsMonitor():
			sc.writes.Insert(general)
			sc.readOnly = false
		case op.IsFieldGet():
			if insn.Field.Volatile {
				sc.writes.Insert(general)
				sc.readOnly = false
			} else {
				sc.reads.Insert(location.FieldLocation(insn.Field))
			}
		case op.IsAGet():
			sc.reads.Insert(location.ArrayComponent(op))
		case op == ir.OpNewInstance, op == ir.OpNewArray:
			sc.readOnly = false
		}
	})
	return sc, nil
}

// InitMethodBarriers computes the effects of calling each method of
// the program. The bodies of methods are scanned concurrently; methods
// with bodies that are not in methods are assumed to write arbitrary
// memory. An error is returned if a body is malformed.
func (s *SharedState) InitMethodBarriers(methods []*ir.Method) (MethodBarriersStats, error) {
	all := s.prog.Methods()
	scans := make([]*methodScan, len(all))

	g := &errgroup.Group{}
	g.SetLimit(s.workers)
	for _, m := range methods {
		if !m.HasBody() {
			continue
		}
		g.Go(func() error {
			sc, err := s.scanMethod(m)
			if err != nil {
				return fmt.Errorf("%s: %w", m, err)
			}
			// Each goroutine writes its own slot.
			scans[m.ID] = sc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return MethodBarriersStats{}, err
	}

	s.graph = overrides.Build(s.prog)
	s.pureDispatch = make([]bool, len(all))
	for _, m := range all {
		if !s.IsPure(m) {
			continue
		}
		s.pureDispatch[m.ID] = true
		for _, o := range s.graph.Overriders(m) {
			if !s.IsPure(o) {
				s.pureDispatch[m.ID] = false
				break
			}
		}
	}

	stats := s.propagateEffects(all, scans)

	s.initialized = true
	s.computeConditionallyPure(all, scans)

	s.stats.MethodBarriers = stats.MethodBarriers
	s.stats.MethodBarriersIterations = stats.Iterations
	s.tr.Printf(1, "method effects: %d iterations, %d of %d methods touched, %d barriers",
		stats.Iterations, stats.MethodsTouched, len(all), stats.MethodBarriers)
	return stats, nil
}

// propagateEffects computes own and dispatch effects as the least
// fixpoint of the equations
//
//	own(m)      = writes(m) ∪ ⋃ effect of each call in m
//	dispatch(m) = own(m) ∪ ⋃ dispatch(c) for each child c of m
//
// Sets only ever grow, so the worklist terminates.
func (s *SharedState) propagateEffects(all []*ir.Method, scans []*methodScan) MethodBarriersStats {
	var stats MethodBarriersStats
	n := len(all)
	s.own = make([]*location.Set, n)
	s.dispatch = make([]*location.Set, n)
	initial := make([]*location.Set, n)
	general := location.Special(location.General)

	// callers of a method's own effect and of its dispatch effect.
	callersOwn := make([][]int, n)
	callersDispatch := make([][]int, n)

	for _, m := range all {
		own := location.NewSet()
		switch sc := scans[m.ID]; {
		case sc != nil:
			stats.MethodsScanned++
			own.Copy(sc.writes)
			for _, call := range sc.calls {
				if s.isPureCall(call, nil) {
					continue
				}
				t := s.prog.Resolve(call.Op, call.Method)
				switch {
				case t == nil:
					own.Insert(general)
				case call.Op.IsVirtualInvoke():
					callersDispatch[t.ID] = append(callersDispatch[t.ID], m.ID)
				default:
					callersOwn[t.ID] = append(callersOwn[t.ID], m.ID)
				}
			}
		case s.IsPure(m), s.safe[m.String()] && !m.HasBody():
		default:
			// Bodiless, or a body we were not given.
			own.Insert(general)
		}
		if s.safe[m.String()] {
			own.Remove(general)
		}
		s.own[m.ID] = own
		s.dispatch[m.ID] = location.NewSet()
		initial[m.ID] = own.Clone()
	}

	wl := make([]int, 0, n)
	inList := make([]bool, n)
	push := func(ids ...int) {
		for _, id := range ids {
			if !inList[id] {
				inList[id] = true
				wl = append(wl, id)
			}
		}
	}
	for _, m := range all {
		push(m.ID)
	}

	tmp := location.NewSet()
	for len(wl) > 0 {
		id := wl[0]
		wl = wl[1:]
		inList[id] = false
		stats.Iterations++
		m := all[id]

		ownChanged := false
		if sc := scans[id]; sc != nil {
			tmp.Clear()
			for _, call := range sc.calls {
				if s.isPureCall(call, nil) {
					continue
				}
				t := s.prog.Resolve(call.Op, call.Method)
				switch {
				case t == nil:
				case call.Op.IsVirtualInvoke():
					tmp.UnionWith(s.dispatch[t.ID])
				default:
					tmp.UnionWith(s.own[t.ID])
				}
			}
			if s.safe[m.String()] {
				tmp.Remove(general)
			}
			ownChanged = s.own[id].UnionWith(tmp)
		}

		dispatchChanged := s.dispatch[id].UnionWith(s.own[id])
		for _, c := range s.graph.Children(m) {
			if s.dispatch[id].UnionWith(s.dispatch[c.ID]) {
				dispatchChanged = true
			}
		}

		if ownChanged {
			push(callersOwn[id]...)
		}
		if dispatchChanged {
			push(callersDispatch[id]...)
			for _, p := range s.graph.Parents(m) {
				push(p.ID)
			}
		}
	}

	s.isSafe = make([]bool, n)
	for _, m := range all {
		id := m.ID
		if !s.dispatch[id].Equals(initial[id]) {
			stats.MethodsTouched++
		}
		if !s.dispatch[id].IsEmpty() {
			stats.MethodBarriers++
		}
		if s.safe[m.String()] || (scans[id] != nil && !s.dispatch[id].HasGeneral()) {
			s.isSafe[id] = true
			stats.SafeMethods++
		}
	}
	return stats
}

// writtenLocations returns the locations that insn may write, or nil if
// it writes none. exact is the exact class of the receiver of a virtual
// call, if known. The result must not be modified.
func (s *SharedState) writtenLocations(insn *ir.Instruction, exact *ir.Class) *location.Set {
	op := insn.Op
	switch {
	case op.IsFieldGet(), op.IsFieldPut():
		if insn.Field.Volatile {
			return generalSet
		}
		if op.IsFieldPut() {
			return location.NewSet(location.FieldLocation(insn.Field))
		}
	case op.IsAPut():
		return location.NewSet(location.ArrayComponent(op))
	case op.IsMonitor():
		return generalSet
	case op.IsInvoke():
		return s.callEffect(insn, exact)
	}
	return nil
}

func (s *SharedState) callEffect(insn *ir.Instruction, exact *ir.Class) *location.Set {
	if s.isPureCall(insn, exact) {
		return nil
	}
	if !s.initialized {
		return generalSet
	}
	if insn.Op.IsVirtualInvoke() && exact != nil {
		if t := ir.LookupMethod(exact, insn.Method.Name, insn.Method.Desc); t != nil {
			return s.own[t.ID]
		}
		return generalSet
	}
	t := s.prog.Resolve(insn.Op, insn.Method)
	switch {
	case t == nil:
		return generalSet
	case insn.Op.IsVirtualInvoke():
		return s.dispatch[t.ID]
	default:
		return s.own[t.ID]
	}
}

// RelevantWrittenLocations returns the locations in read that insn may
// write, or nil if it writes none of them. If insn may write arbitrary
// memory and read is not empty, the result is the general location.
func (s *SharedState) RelevantWrittenLocations(insn *ir.Instruction, exact *ir.Class, read *location.Set) *location.Set {
	if read == nil || read.IsEmpty() {
		return nil
	}
	w := s.writtenLocations(insn, exact)
	if w == nil || w.IsEmpty() {
		return nil
	}
	if w.HasGeneral() {
		return generalSet
	}
	if !w.Intersects(read) {
		return nil
	}
	out := w.Clone()
	out.IntersectionWith(read)
	return out
}

// RelevantWrittenLocation is like RelevantWrittenLocations but
// summarizes the result in a single location: the general location
// stands for more than one. It reports false if insn writes nothing in
// read.
func (s *SharedState) RelevantWrittenLocation(insn *ir.Instruction, exact *ir.Class, read *location.Set) (location.Location, bool) {
	w := s.RelevantWrittenLocations(insn, exact, read)
	if w == nil {
		return location.Location{}, false
	}
	if w.Len() == 1 {
		return w.Locations(s.universe)[0], true
	}
	return location.Special(location.General), true
}
