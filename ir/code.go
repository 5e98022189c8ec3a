package ir

import (
	"fmt"
	"slices"
)

// A Reg is a virtual register of a method.
type Reg uint32

// NoReg is the destination of instructions that do not define a register.
const NoReg Reg = 1<<32 - 1

func (r Reg) String() string {
	if r == NoReg {
		return "_"
	}
	return fmt.Sprintf("v%d", uint32(r))
}

// An Instruction is a single operation. Which of the operand fields are
// meaningful depends on Op.
type Instruction struct {
	Op      Opcode
	Dest    Reg
	Srcs    []Reg
	Field   *Field     // field accesses
	Method  *MethodRef // invokes
	Class   *Class     // new-instance, check-cast, instance-of
	Type    string     // element type of new-array
	Literal int64      // const, param index
	Str     string     // const-string, trap message

	block *BasicBlock
	id    int
}

// Block returns the basic block containing the instruction, or nil if
// it has been removed from its method.
func (insn *Instruction) Block() *BasicBlock { return insn.block }

// ID returns the instruction's position in the most recent numbering of
// its method, see Code.NumberInstructions.
func (insn *Instruction) ID() int { return insn.id }

// HasDest reports whether the instruction defines a register.
func (insn *Instruction) HasDest() bool { return insn.Dest != NoReg }

// A BasicBlock is a maximal sequence of instructions with a single
// entry. Successors of a block ending in a conditional branch are
// ordered (taken, fallthrough).
type BasicBlock struct {
	Index   int
	Comment string
	Instrs  []*Instruction
	Preds   []*BasicBlock
	Succs   []*BasicBlock

	parent *Code
	dom    domInfo
	post   int
}

// Code is the control flow graph of a method body. Blocks[0] is the
// entry block.
type Code struct {
	Method  *Method
	Blocks  []*BasicBlock
	NumRegs int

	domValid bool
}

// NewCode creates an empty body for m using numRegs registers, and
// attaches it to m.
func NewCode(m *Method, numRegs int) *Code {
	c := &Code{Method: m, NumRegs: numRegs}
	if m != nil {
		m.Code = c
	}
	return c
}

// NewBlock appends a new, empty block to the CFG.
func (c *Code) NewBlock(comment string) *BasicBlock {
	b := &BasicBlock{
		Index:   len(c.Blocks),
		Comment: comment,
		parent:  c,
	}
	c.Blocks = append(c.Blocks, b)
	c.domValid = false
	return b
}

// NewReg allocates a fresh register.
func (c *Code) NewReg() Reg {
	r := Reg(c.NumRegs)
	c.NumRegs++
	return r
}

// NumberInstructions assigns IDs to all instructions in block order and
// returns their count.
func (c *Code) NumberInstructions() int {
	n := 0
	for _, b := range c.Blocks {
		for _, insn := range b.Instrs {
			insn.id = n
			n++
		}
	}
	return n
}

func (c *Code) String() string {
	if c.Method == nil {
		return "<anonymous>"
	}
	return c.Method.String()
}

// AddEdge adds a control-flow edge between two blocks of the same method.
func AddEdge(from, to *BasicBlock) {
	from.Succs = append(from.Succs, to)
	to.Preds = append(to.Preds, from)
	from.parent.domValid = false
}

// Parent returns the code containing b.
func (b *BasicBlock) Parent() *Code { return b.parent }

func (b *BasicBlock) String() string {
	if b.Comment != "" {
		return b.Comment
	}
	return fmt.Sprintf("b%d", b.Index)
}

// Control returns the last instruction of b if it is a terminator.
func (b *BasicBlock) Control() *Instruction {
	if len(b.Instrs) == 0 {
		return nil
	}
	if last := b.Instrs[len(b.Instrs)-1]; last.Op.IsTerminator() {
		return last
	}
	return nil
}

// Emit appends insn to b.
func (b *BasicBlock) Emit(insn *Instruction) *Instruction {
	insn.block = b
	b.Instrs = append(b.Instrs, insn)
	return insn
}

func (b *BasicBlock) indexOf(insn *Instruction) int {
	if insn.block != b {
		panic(fmt.Sprintf("internal error: instruction %s is not in block %s", insn, b))
	}
	i := slices.Index(b.Instrs, insn)
	if i < 0 {
		panic(fmt.Sprintf("internal error: instruction %s is not in block %s", insn, b))
	}
	return i
}

// InsertBefore inserts insn immediately before at.
func (b *BasicBlock) InsertBefore(at, insn *Instruction) {
	i := b.indexOf(at)
	insn.block = b
	b.Instrs = slices.Insert(b.Instrs, i, insn)
}

// InsertAfter inserts insn immediately after at.
func (b *BasicBlock) InsertAfter(at, insn *Instruction) {
	i := b.indexOf(at)
	insn.block = b
	b.Instrs = slices.Insert(b.Instrs, i+1, insn)
}

// Replace substitutes insn for old, which is detached from b.
func (b *BasicBlock) Replace(old, insn *Instruction) {
	i := b.indexOf(old)
	insn.block = b
	b.Instrs[i] = insn
	old.block = nil
}

// SplitAfter moves the instructions following at, together with b's
// successor edges, into a new block, and returns it. The new block has
// no predecessors; b has no successors.
func (b *BasicBlock) SplitAfter(at *Instruction) *BasicBlock {
	i := b.indexOf(at)
	nb := b.parent.NewBlock("")
	nb.Instrs = append(nb.Instrs, b.Instrs[i+1:]...)
	for _, insn := range nb.Instrs {
		insn.block = nb
	}
	clear(b.Instrs[i+1:])
	b.Instrs = b.Instrs[:i+1]

	nb.Succs = b.Succs
	b.Succs = nil
	for _, succ := range nb.Succs {
		succ.replacePred(b, nb)
	}
	return nb
}

// replacePred replaces all occurrences of p in b's predecessor list with q.
func (b *BasicBlock) replacePred(p, q *BasicBlock) {
	for i, pred := range b.Preds {
		if pred == p {
			b.Preds[i] = q
		}
	}
}
