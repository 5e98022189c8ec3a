package irutil

import (
	"honnef.co/go/cse/ir"
)

// WalkBackward visits every block from which b can be reached,
// including b itself, following predecessor edges. If fn returns false,
// the predecessors of the visited block are skipped.
func WalkBackward(b *ir.BasicBlock, fn func(*ir.BasicBlock) bool) {
	seen := map[*ir.BasicBlock]bool{}
	wl := []*ir.BasicBlock{b}
	for len(wl) > 0 {
		b := wl[len(wl)-1]
		wl = wl[:len(wl)-1]
		if seen[b] {
			continue
		}
		seen[b] = true
		if !fn(b) {
			continue
		}
		wl = append(wl, b.Preds...)
	}
}

// Region returns head together with every block that can reach one of
// tails without passing through head. For a loop header and the sources
// of its back edges, this is the loop body. Blocks are returned in
// index order.
func Region(head *ir.BasicBlock, tails []*ir.BasicBlock) []*ir.BasicBlock {
	code := head.Parent()
	in := make([]bool, len(code.Blocks))
	in[head.Index] = true
	for _, t := range tails {
		WalkBackward(t, func(b *ir.BasicBlock) bool {
			if in[b.Index] {
				return false
			}
			in[b.Index] = true
			return true
		})
	}
	var out []*ir.BasicBlock
	for i, ok := range in {
		if ok {
			out = append(out, code.Blocks[i])
		}
	}
	return out
}

// Instructions calls fn for every instruction of c, in block order.
func Instructions(c *ir.Code, fn func(*ir.Instruction)) {
	for _, b := range c.Blocks {
		for _, insn := range b.Instrs {
			fn(insn)
		}
	}
}
