package cse

import (
	"fmt"

	"honnef.co/go/cse/ir"
)

// insertRuntimeAssertions adds, after every later instruction, a check
// that its result equals the register holding the forwarded value. On
// mismatch, control transfers to a block that traps.
func (c *CSE) insertRuntimeAssertions(temps map[*ir.Instruction]ir.Reg) {
	for _, f := range c.forwards {
		later := f.Later
		b := later.Block()
		if b == nil {
			panic(fmt.Sprintf("internal error: %s was removed from %s", later, c.code.Method))
		}
		rest := b.SplitAfter(later)

		trap := c.code.NewBlock("cse.trap")
		trap.Emit(ir.NewTrap(fmt.Sprintf("%s: %s does not match %s", c.code.Method, later, f.Earlier)))

		b.Emit(ir.NewBranch(ir.OpIfNe, later.Dest, temps[f.Earlier]))
		ir.AddEdge(b, trap)
		ir.AddEdge(b, rest)
	}
}
