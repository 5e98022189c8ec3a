package cse

import (
	"fmt"

	"honnef.co/go/cse/ir"
)

// Patch rewrites the method to reuse earlier results instead of
// recomputing them. Each earlier instruction gets a fresh register that
// holds its result (or, for stores and array allocations, the stored
// value or the length), and every later instruction is replaced with a
// move from that register. With runtimeAssertions, later instructions
// are kept, and code is added that traps if their result differs from
// the forwarded one.
//
// Patch reports whether the method changed. It must be called at most
// once, and only after all methods of the program have been analyzed.
func (c *CSE) Patch(runtimeAssertions bool) bool {
	if len(c.forwards) == 0 {
		return false
	}

	temps := map[*ir.Instruction]ir.Reg{}
	for _, f := range c.forwards {
		earlier := f.Earlier
		if earlier.Block() == nil {
			panic(fmt.Sprintf("internal error: %s was removed from %s", earlier, c.code.Method))
		}
		if _, ok := temps[earlier]; ok {
			continue
		}
		tmp := c.code.NewReg()
		temps[earlier] = tmp
		b := earlier.Block()
		switch {
		case earlier.Op.IsStore():
			b.InsertBefore(earlier, ir.NewMove(tmp, earlier.Srcs[0]))
			c.stats.StoresCaptured++
		case earlier.Op == ir.OpNewArray:
			b.InsertBefore(earlier, ir.NewMove(tmp, earlier.Srcs[0]))
			c.stats.ArrayLengthsCaptured++
		default:
			b.InsertAfter(earlier, ir.NewMove(tmp, earlier.Dest))
			c.stats.ResultsCaptured++
		}
	}

	if runtimeAssertions {
		c.insertRuntimeAssertions(temps)
		return true
	}

	for _, f := range c.forwards {
		later := f.Later
		b := later.Block()
		if b == nil {
			panic(fmt.Sprintf("internal error: %s was removed from %s", later, c.code.Method))
		}
		b.Replace(later, ir.NewMove(later.Dest, temps[f.Earlier]))
		c.stats.InstructionsEliminated++
		if c.stats.EliminatedOpcodes == nil {
			c.stats.EliminatedOpcodes = map[ir.Opcode]int{}
		}
		c.stats.EliminatedOpcodes[later.Op]++
	}
	return true
}
