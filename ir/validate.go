package ir

import (
	"errors"
	"fmt"
)

// ErrMalformed is wrapped by all errors returned by Validate.
var ErrMalformed = errors.New("malformed control flow graph")

type validationError struct {
	block *BasicBlock
	msg   string
}

func (err *validationError) Error() string {
	if err.block == nil {
		return fmt.Sprintf("%s: %s", ErrMalformed, err.msg)
	}
	return fmt.Sprintf("%s: block %s: %s", ErrMalformed, err.block, err.msg)
}

func (err *validationError) Unwrap() error { return ErrMalformed }

// Validate checks the structural integrity of c: consistent
// predecessor and successor lists, terminators matching the number of
// successors, and well-formed operands. Blocks unreachable from the
// entry are checked like all others.
func Validate(c *Code) error {
	fail := func(b *BasicBlock, format string, args ...any) error {
		return &validationError{b, fmt.Sprintf(format, args...)}
	}
	if len(c.Blocks) == 0 {
		return fail(nil, "no blocks")
	}
	for i, b := range c.Blocks {
		if b.Index != i {
			return fail(b, "has index %d, want %d", b.Index, i)
		}
		if b.parent != c {
			return fail(b, "belongs to a different method")
		}

		// Edges must be mirrored, with matching multiplicity.
		for _, s := range b.Succs {
			if s.parent != c {
				return fail(b, "successor %s belongs to a different method", s)
			}
			if count(s.Preds, b) != count(b.Succs, s) {
				return fail(b, "successor %s does not list it as a predecessor", s)
			}
		}
		for _, p := range b.Preds {
			if p.parent != c {
				return fail(b, "predecessor %s belongs to a different method", p)
			}
			if count(p.Succs, b) != count(b.Preds, p) {
				return fail(b, "predecessor %s does not list it as a successor", p)
			}
		}

		for j, insn := range b.Instrs {
			if insn.block != b {
				return fail(b, "instruction %d (%s) has wrong parent", j, insn)
			}
			if insn.Op.IsTerminator() && j != len(b.Instrs)-1 {
				return fail(b, "terminator %s is not the last instruction", insn)
			}
			if err := validateOperands(c, insn); err != nil {
				return fail(b, "%s: %s", insn, err)
			}
		}

		if ctrl := b.Control(); ctrl != nil {
			if want := ctrl.Op.NumSuccs(); len(b.Succs) != want {
				return fail(b, "%s needs %d successors, has %d", ctrl.Op, want, len(b.Succs))
			}
		} else if len(b.Succs) != 1 {
			return fail(b, "falls through to %d successors", len(b.Succs))
		}
	}
	return nil
}

func validateOperands(c *Code, insn *Instruction) error {
	if n := insn.Op.NumSrcs(); n >= 0 && len(insn.Srcs) != n {
		return fmt.Errorf("has %d operands, want %d", len(insn.Srcs), n)
	}
	for _, r := range insn.Srcs {
		if int(r) >= c.NumRegs {
			return fmt.Errorf("uses register %s, method has %d", r, c.NumRegs)
		}
	}
	switch {
	case insn.Op.HasDest():
		if insn.Dest == NoReg {
			return errors.New("missing destination")
		}
	case insn.Op.IsInvoke():
		if insn.Dest != NoReg && !insn.Method.ReturnsValue() {
			return errors.New("void method has a destination")
		}
	default:
		if insn.Dest != NoReg {
			return errors.New("unexpected destination")
		}
	}
	if insn.Dest != NoReg && int(insn.Dest) >= c.NumRegs {
		return fmt.Errorf("defines register %s, method has %d", insn.Dest, c.NumRegs)
	}
	switch {
	case insn.Op.IsFieldGet(), insn.Op.IsFieldPut():
		if insn.Field == nil {
			return errors.New("missing field")
		}
		static := insn.Op == OpSGet || insn.Op == OpSPut
		if insn.Field.Static != static {
			return fmt.Errorf("field %s has the wrong kind", insn.Field)
		}
	case insn.Op.IsInvoke():
		if insn.Method == nil {
			return errors.New("missing method reference")
		}
	case insn.Op == OpNewInstance, insn.Op == OpCheckCast, insn.Op == OpInstanceOf:
		if insn.Class == nil {
			return errors.New("missing class")
		}
	}
	return nil
}

func count(bs []*BasicBlock, b *BasicBlock) int {
	n := 0
	for _, x := range bs {
		if x == b {
			n++
		}
	}
	return n
}

// SanityCheck validates c and cross-checks its dominator tree against
// a naive computation. It is considerably slower than Validate.
func SanityCheck(c *Code) error {
	if err := Validate(c); err != nil {
		return err
	}
	return sanityCheckDomTree(c)
}
