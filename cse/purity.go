package cse

import (
	"honnef.co/go/cse/analysis/location"
	"honnef.co/go/cse/ir"
)

// computeConditionallyPure finds the methods whose result is determined
// by their arguments and the memory they read, and which have no side
// effects. Two calls of such a method with the same arguments return
// the same value if none of the locations it reads were written in
// between.
//
// The computation is optimistic: every candidate starts out as
// conditionally pure, and candidates calling anything but pure methods
// and other candidates are removed until nothing changes. At the same
// time, the read locations of candidates grow to include those of their
// callees.
func (s *SharedState) computeConditionallyPure(all []*ir.Method, scans []*methodScan) {
	n := len(all)
	reads := make([]*location.Set, n)
	for _, m := range all {
		sc := scans[m.ID]
		if sc == nil || !sc.readOnly || !s.own[m.ID].IsEmpty() || s.IsPure(m) {
			continue
		}
		reads[m.ID] = sc.reads.Clone()
	}

	// targets returns the methods that call may invoke, or nil if they
	// are not all known.
	targets := func(call *ir.Instruction) []*ir.Method {
		t := s.prog.Resolve(call.Op, call.Method)
		if t == nil {
			return nil
		}
		if !call.Op.IsVirtualInvoke() {
			return []*ir.Method{t}
		}
		return append([]*ir.Method{t}, s.graph.Overriders(t)...)
	}

	iterations := 0
	for changed := true; changed; {
		changed = false
		iterations++
		for _, m := range all {
			r := reads[m.ID]
			if r == nil {
				continue
			}
		calls:
			for _, call := range scans[m.ID].calls {
				if s.isPureCall(call, nil) {
					continue
				}
				ts := targets(call)
				if ts == nil {
					reads[m.ID] = nil
					changed = true
					break
				}
				for _, t := range ts {
					if reads[t.ID] == nil {
						reads[m.ID] = nil
						changed = true
						break calls
					}
					if t != m && r.UnionWith(reads[t.ID]) {
						changed = true
					}
				}
			}
		}
	}

	s.condPure = make([]*location.Set, n)
	s.condPureDispatch = make([]*location.Set, n)
	count := 0
	for _, m := range all {
		if reads[m.ID] == nil {
			continue
		}
		count++
		s.condPure[m.ID] = reads[m.ID]
		s.tr.Printf(2, "conditionally pure: %s reads %s", m, reads[m.ID].Format(s.universe))
	}
	for _, m := range all {
		r := s.condPure[m.ID]
		if r == nil {
			continue
		}
		d := r.Clone()
		for _, o := range s.graph.Overriders(m) {
			if s.condPure[o.ID] == nil {
				d = nil
				break
			}
			d.UnionWith(s.condPure[o.ID])
		}
		s.condPureDispatch[m.ID] = d
	}

	s.stats.ConditionallyPureMethods = count
	s.stats.ConditionallyPureMethodsIterations = iterations
}

// conditionallyPureReads returns the locations read by the
// conditionally pure method invoked by insn, or nil if the invoked
// method is not known to be conditionally pure. The result must not be
// modified.
func (s *SharedState) conditionallyPureReads(insn *ir.Instruction, exact *ir.Class) *location.Set {
	if !s.initialized || !insn.Op.IsInvoke() {
		return nil
	}
	if insn.Op.IsVirtualInvoke() {
		if exact != nil {
			if t := ir.LookupMethod(exact, insn.Method.Name, insn.Method.Desc); t != nil {
				return s.condPure[t.ID]
			}
			return nil
		}
		if t := s.prog.Resolve(insn.Op, insn.Method); t != nil {
			return s.condPureDispatch[t.ID]
		}
		return nil
	}
	if t := s.prog.Resolve(insn.Op, insn.Method); t != nil {
		return s.condPure[t.ID]
	}
	return nil
}
