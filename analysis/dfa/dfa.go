// Package dfa provides types and functions for implementing data-flow
// analyses over the registers of a method.
package dfa

import (
	"fmt"
	"log"
	"slices"
	"sync"

	"honnef.co/go/cse/ir"

	"golang.org/x/exp/constraints"
)

const debugging = false

func debugf(f string, args ...any) {
	if debugging {
		log.Printf(f, args...)
	}
}

// Join defines the [∨] operation for a [join-semilattice]. It must implement a commutative and associative binary operation
// that returns the least upper bound of two states from S.
//
// Code that calls Join functions is expected to handle the [⊥ and ⊤ elements], as well as implement idempotency. That is,
// the following properties will be enforced:
//
//   - x ∨ ⊥ = x
//   - x ∨ ⊤ = ⊤
//   - x ∨ x = x
//
// Simple table-based join functions can be created using [JoinTable].
//
// [∨]: https://en.wikipedia.org/wiki/Join_and_meet
// [join-semilattice]: https://en.wikipedia.org/wiki/Semilattice
// [⊥ and ⊤ elements]: https://en.wikipedia.org/wiki/Greatest_element_and_least_element#Top_and_bottom
type Join[S comparable] func(S, S) S

// Regs maps registers to abstract states. Registers that are missing
// are in the ⊥ state.
type Regs[S comparable] map[ir.Reg]S

// Framework describes a monotone data-flow framework ⟨S, ∨, Transfer⟩ using a bounded join-semilattice ⟨S, ∨⟩ and a
// monotonic transfer function.
//
// Transfer implements the transfer function. It is called for every instruction that defines a register and returns
// the abstract state of that register after the instruction. The states of the instruction's operands can be read
// from regs. Transfer must be monotonic.
//
// The set S is defined implicitly by the values returned by Join and Transfer and must have finite height. In
// addition, it contains the elements ⊥ and ⊤ (Bottom and Top) with Join(x, ⊥) = x and Join(x, ⊤) = ⊤. The provided
// Join function is wrapped to handle these elements automatically. All registers start in the ⊥ state.
//
// Unlike an SSA form, registers may be redefined, so states are tracked per basic block: the state at the start of a
// block is the join of the states at the end of its predecessors.
type Framework[S comparable] struct {
	Join     Join[S]
	Transfer func(ins *Instance[S], insn *ir.Instruction, regs Regs[S]) S
	Bottom   S
	Top      S
}

// Start returns a new instance of the framework. See also [Framework.Forward].
func (fw *Framework[S]) Start() *Instance[S] {
	if fw.Bottom == fw.Top {
		panic("framework's ⊥ and ⊤ are identical; did you forget to specify them?")
	}
	return &Instance[S]{Framework: fw}
}

// Forward runs an intraprocedural forward data flow analysis, using an iterative fixed-point algorithm, given the
// functions specified in the framework. It combines [Framework.Start] and [Instance.Forward].
func (fw *Framework[S]) Forward(code *ir.Code) *Instance[S] {
	ins := fw.Start()
	ins.Forward(code)
	return ins
}

// Instance is an instance of a data-flow analysis. It is created by [Framework.Forward].
type Instance[S comparable] struct {
	Framework *Framework[S]
	// In and Out hold the states at the start and end of each block,
	// indexed by block index. They are nil for unreachable blocks.
	In  []Regs[S]
	Out []Regs[S]
}

// Value returns the abstract value of r in regs. If none was set, it returns ⊥.
func (ins *Instance[S]) Value(regs Regs[S], r ir.Reg) S {
	if s, ok := regs[r]; ok {
		return s
	}
	return ins.Framework.Bottom
}

var dfsDebugMu sync.Mutex

func join[S comparable](fn Join[S], a, b, bottom, top S) S {
	switch {
	case a == top || b == top:
		return top
	case a == bottom:
		return b
	case b == bottom:
		return a
	case a == b:
		return a
	default:
		return fn(a, b)
	}
}

func (ins *Instance[S]) joinRegs(dst, src Regs[S]) {
	fw := ins.Framework
	for r, s := range src {
		dst[r] = join(fw.Join, ins.Value(dst, r), s, fw.Bottom, fw.Top)
	}
}

// transferBlock computes the state at the end of b, calling fn, if
// not nil, before each instruction.
func (ins *Instance[S]) transferBlock(b *ir.BasicBlock, fn func(*ir.Instruction, Regs[S])) Regs[S] {
	regs := make(Regs[S], len(ins.In[b.Index]))
	for r, s := range ins.In[b.Index] {
		regs[r] = s
	}
	for _, insn := range b.Instrs {
		if fn != nil {
			fn(insn, regs)
		}
		if insn.HasDest() {
			regs[insn.Dest] = ins.Framework.Transfer(ins, insn, regs)
		}
	}
	return regs
}

// Forward runs a forward data-flow analysis on code.
func (ins *Instance[S]) Forward(code *ir.Code) {
	if debugging {
		dfsDebugMu.Lock()
		defer dfsDebugMu.Unlock()
	}

	debugf("Analyzing %s\n", code)
	fw := ins.Framework
	n := len(code.Blocks)
	ins.In = make([]Regs[S], n)
	ins.Out = make([]Regs[S], n)

	order := code.ReversePostorder()
	inList := make([]bool, n)
	worklist := make([]*ir.BasicBlock, 0, len(order))
	for _, b := range order {
		worklist = append(worklist, b)
		inList[b.Index] = true
	}
	for len(worklist) > 0 {
		b := worklist[0]
		worklist = worklist[1:]
		inList[b.Index] = false

		in := Regs[S]{}
		for _, pred := range b.Preds {
			if out := ins.Out[pred.Index]; out != nil {
				ins.joinRegs(in, out)
			}
		}
		ins.In[b.Index] = in
		out := ins.transferBlock(b, nil)

		old := ins.Out[b.Index]
		changed := old == nil
		for r, s := range out {
			prev := ins.Value(old, r)
			if s == prev {
				continue
			}
			if j := join(fw.Join, prev, s, fw.Bottom, fw.Top); j != s {
				panic(fmt.Sprintf("transfer function isn't monotonic; %s: %s = %v; join(%v, %v) = %v", b, r, s, prev, s, j))
			}
			changed = true
		}
		if !changed {
			continue
		}
		ins.Out[b.Index] = out
		printMapping(b, out)
		for _, succ := range b.Succs {
			if !inList[succ.Index] {
				inList[succ.Index] = true
				worklist = append(worklist, succ)
			}
		}
	}
}

// Walk calls fn for every instruction of b, together with the states
// of all registers immediately before the instruction. It must only be
// called after [Instance.Forward]. fn must not modify regs.
func (ins *Instance[S]) Walk(b *ir.BasicBlock, fn func(insn *ir.Instruction, regs Regs[S])) {
	if ins.In[b.Index] == nil {
		return
	}
	ins.transferBlock(b, fn)
}

func printMapping[S comparable](b *ir.BasicBlock, m Regs[S]) {
	if !debugging {
		return
	}

	debugf("Mapping at the end of %s:\n", b)
	for _, r := range sortedKeys(m) {
		debugf("\t%s = %v\n", r, m[r])
	}
}

func sortedKeys[K constraints.Ordered, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// JoinTable returns a [Join] function based on the provided mapping.
// For missing pairs of values, the default value will be returned.
func JoinTable[S comparable](top S, m map[[2]S]S) Join[S] {
	return func(a, b S) S {
		if d, ok := m[[2]S{a, b}]; ok {
			return d
		} else if d, ok := m[[2]S{b, a}]; ok {
			return d
		} else {
			return top
		}
	}
}
