// Package cse eliminates redundant computations within methods.
//
// A computation is redundant if an earlier instruction, on every path
// to it, already produced the same value: same operation, same inputs,
// and no intervening write to any memory location the value depends on.
// The pass replaces such computations with a copy of the earlier result.
//
// Running the pass has two phases. First, a SharedState summarizes which
// memory locations every method of the program may write when called,
// and which methods are conditionally pure. Second, every method is
// analyzed independently (see New) and the redundancies that were found
// are removed (see CSE.Patch). Methods may be analyzed and patched
// concurrently, but all analyses must complete before the first patch,
// because patching changes method bodies that the summaries were
// computed from.
package cse

import (
	"runtime"

	"honnef.co/go/cse/analysis/location"
	"honnef.co/go/cse/analysis/overrides"
	"honnef.co/go/cse/internal/trace"
	"honnef.co/go/cse/ir"
)

// Options configure a SharedState.
type Options struct {
	// PureMethods names methods, as Class.name(desc), whose result
	// depends only on their arguments and that have no side effects.
	PureMethods []string
	// SafeMethods names bodiless methods whose calls write no tracked
	// memory, and methods with bodies that must never be considered to
	// have arbitrary effects.
	SafeMethods []string
	// Workers bounds the parallelism of InitMethodBarriers. Zero means
	// GOMAXPROCS.
	Workers int
	Trace   *trace.Logger
}

// SharedState holds the whole-program facts consulted by the analysis
// of individual methods. After InitMethodBarriers returns, a
// SharedState is safe for concurrent use.
type SharedState struct {
	prog     *ir.Program
	universe *location.Universe
	workers  int
	tr       *trace.Logger

	pure map[string]bool
	safe map[string]bool

	barriers BarrierRegistry

	// The following are set by InitMethodBarriers, indexed by method
	// ID, and read-only afterwards.
	initialized bool
	graph       *overrides.Graph
	own         []*location.Set // effect of calling exactly this method
	dispatch    []*location.Set // effect of dispatching to this method or an overrider
	isSafe      []bool
	// pureDispatch records, for pure seeds, whether every overrider is
	// a pure seed too.
	pureDispatch []bool
	// condPure and condPureDispatch hold the read locations of
	// conditionally pure methods, and nil for all other methods.
	condPure         []*location.Set
	condPureDispatch []*location.Set

	stats SharedStateStats
}

// SharedStateStats describe the whole-program analyses.
type SharedStateStats struct {
	MethodBarriers                     int
	MethodBarriersIterations           int
	ConditionallyPureMethods           int
	ConditionallyPureMethodsIterations int
}

// Add accumulates o into s.
func (s *SharedStateStats) Add(o SharedStateStats) {
	s.MethodBarriers += o.MethodBarriers
	s.MethodBarriersIterations += o.MethodBarriersIterations
	s.ConditionallyPureMethods += o.ConditionallyPureMethods
	s.ConditionallyPureMethodsIterations += o.ConditionallyPureMethodsIterations
}

// Report passes the statistics to sink.
func (s SharedStateStats) Report(sink MetricSink) {
	sink.IncrMetric("method_barriers", s.MethodBarriers)
	sink.IncrMetric("method_barriers_iterations", s.MethodBarriersIterations)
	sink.IncrMetric("conditionally_pure_methods", s.ConditionallyPureMethods)
	sink.IncrMetric("conditionally_pure_methods_iterations", s.ConditionallyPureMethodsIterations)
}

// NewSharedState returns the shared state for a sealed program. Until
// InitMethodBarriers has been called, every call that is not to a pure
// method is assumed to write arbitrary memory.
func NewSharedState(prog *ir.Program, opts Options) *SharedState {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	s := &SharedState{
		prog:     prog,
		universe: location.NewUniverse(prog),
		workers:  workers,
		tr:       opts.Trace,
		pure:     make(map[string]bool, len(opts.PureMethods)),
		safe:     make(map[string]bool, len(opts.SafeMethods)),
	}
	for _, name := range opts.PureMethods {
		s.pure[name] = true
	}
	for _, name := range opts.SafeMethods {
		s.safe[name] = true
	}
	return s
}

// Universe returns the location universe of the program.
func (s *SharedState) Universe() *location.Universe { return s.universe }

// HasPureMethod reports whether insn invokes a method from the set of
// pure methods, either by its reference or by the method the reference
// resolves to.
func (s *SharedState) HasPureMethod(insn *ir.Instruction) bool {
	if !insn.Op.IsInvoke() || insn.Method == nil {
		return false
	}
	if s.pure[insn.Method.String()] {
		return true
	}
	m := s.prog.Resolve(insn.Op, insn.Method)
	return m != nil && s.IsPure(m)
}

// isPureCall reports whether insn may be treated as a call to a pure
// method. A dispatched call is pure only if every method it may reach
// is. Until the overriders are known, dispatched calls are not pure.
func (s *SharedState) isPureCall(insn *ir.Instruction, exact *ir.Class) bool {
	if !s.HasPureMethod(insn) {
		return false
	}
	if !insn.Op.IsVirtualInvoke() {
		return true
	}
	if exact != nil {
		m := ir.LookupMethod(exact, insn.Method.Name, insn.Method.Desc)
		return m != nil && s.IsPure(m)
	}
	if s.pureDispatch == nil {
		return false
	}
	m := s.prog.Resolve(insn.Op, insn.Method)
	return m == nil || s.pureDispatch[m.ID]
}

// IsPure reports whether m is in the set of pure methods.
func (s *SharedState) IsPure(m *ir.Method) bool { return s.pure[m.String()] }

// IsSafe reports whether calling m never writes arbitrary memory,
// either because it was declared safe or because its effect, including
// all overriders, is limited to specific locations.
func (s *SharedState) IsSafe(m *ir.Method) bool {
	if s.safe[m.String()] {
		return true
	}
	return s.initialized && s.isSafe[m.ID]
}

// Effect returns the locations that a dispatched call to m may write.
// The result must not be modified.
func (s *SharedState) Effect(m *ir.Method) *location.Set {
	if !s.initialized {
		return generalSet
	}
	return s.dispatch[m.ID]
}

// OwnEffect returns the locations that a call to exactly m may write.
// The result must not be modified.
func (s *SharedState) OwnEffect(m *ir.Method) *location.Set {
	if !s.initialized {
		return generalSet
	}
	return s.own[m.ID]
}

// IsConditionallyPure reports whether m's result depends only on its
// arguments and on the memory locations it reads, and m has no side
// effects.
func (s *SharedState) IsConditionallyPure(m *ir.Method) bool {
	return s.initialized && s.condPure[m.ID] != nil
}

// LogBarrier records that insn invalidated tracked values.
func (s *SharedState) LogBarrier(insn *ir.Instruction) {
	s.barriers.Log(Barrier{Opcode: insn.Op, Field: insn.Field})
}

// Barriers returns the barrier counts logged so far.
func (s *SharedState) Barriers() []BarrierCount { return s.barriers.Counts() }

func (s *SharedState) Stats() SharedStateStats { return s.stats }

// Cleanup releases the whole-program summaries. The SharedState must
// not be used to analyze methods afterwards; statistics and barrier
// counts remain available.
func (s *SharedState) Cleanup() {
	s.initialized = false
	s.graph = nil
	s.own = nil
	s.dispatch = nil
	s.isSafe = nil
	s.pureDispatch = nil
	s.condPure = nil
	s.condPureDispatch = nil
}
