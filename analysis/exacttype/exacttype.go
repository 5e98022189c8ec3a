// Package exacttype determines, for virtual and interface calls, the
// exact runtime class of the receiver when it can be proven.
//
// A register holds an object of an exact class if, on every path, it
// was last assigned the result of a new-instance of that class, possibly
// through moves.
package exacttype

import (
	"honnef.co/go/cse/analysis/dfa"
	"honnef.co/go/cse/ir"
)

// unknown is the ⊤ element: the register may hold an object of any
// class, or a non-object value.
var unknown = &ir.Class{Name: "⊤"}

var framework = &dfa.Framework[*ir.Class]{
	// Two different exact classes join to unknown.
	Join: dfa.JoinTable[*ir.Class](unknown, nil),
	Transfer: func(ins *dfa.Instance[*ir.Class], insn *ir.Instruction, regs dfa.Regs[*ir.Class]) *ir.Class {
		switch insn.Op {
		case ir.OpNewInstance:
			return insn.Class
		case ir.OpMove:
			return ins.Value(regs, insn.Srcs[0])
		default:
			return unknown
		}
	},
	Bottom: nil,
	Top:    unknown,
}

// Result holds the exact receiver classes of the calls in one method.
type Result struct {
	receivers map[*ir.Instruction]*ir.Class
}

// Analyze computes exact receiver classes for the calls in code.
func Analyze(code *ir.Code) *Result {
	ins := framework.Forward(code)
	res := &Result{receivers: map[*ir.Instruction]*ir.Class{}}
	for _, b := range code.Blocks {
		ins.Walk(b, func(insn *ir.Instruction, regs dfa.Regs[*ir.Class]) {
			if !insn.Op.IsVirtualInvoke() || len(insn.Srcs) == 0 {
				return
			}
			// A receiver of an unrelated class means the call is
			// unreachable or the code is ill-typed.
			c := ins.Value(regs, insn.Srcs[0])
			if c != nil && c != unknown && c.IsSubclassOf(insn.Method.Class) {
				res.receivers[insn] = c
			}
		})
	}
	return res
}

// ExactReceiver returns the exact class of the receiver of insn, or nil
// if it is not known.
func (r *Result) ExactReceiver(insn *ir.Instruction) *ir.Class {
	if r == nil {
		return nil
	}
	return r.receivers[insn]
}
