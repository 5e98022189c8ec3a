package ir

// This file implements the textual form of method bodies. The output is
// accepted by the irtext parser.

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
)

func (insn *Instruction) String() string {
	return formatInstruction(insn, (*BasicBlock).String)
}

func formatInstruction(insn *Instruction, label func(*BasicBlock) string) string {
	var sb strings.Builder
	if insn.HasDest() {
		fmt.Fprintf(&sb, "%s = ", insn.Dest)
	}
	sb.WriteString(insn.Op.String())
	srcs := func(regs []Reg) {
		for _, r := range regs {
			sb.WriteByte(' ')
			sb.WriteString(r.String())
		}
	}
	switch op := insn.Op; {
	case op == OpConst:
		fmt.Fprintf(&sb, " %d", insn.Literal)
	case op == OpConstString, op == OpTrap:
		sb.WriteByte(' ')
		sb.WriteString(strconv.Quote(insn.Str))
	case op == OpNewInstance:
		fmt.Fprintf(&sb, " %s", className(insn.Class))
	case op == OpNewArray:
		srcs(insn.Srcs)
		fmt.Fprintf(&sb, " %s", insn.Type)
	case op == OpCheckCast, op == OpInstanceOf:
		srcs(insn.Srcs)
		fmt.Fprintf(&sb, " %s", className(insn.Class))
	case op.IsFieldGet(), op.IsFieldPut():
		srcs(insn.Srcs)
		if insn.Field != nil {
			fmt.Fprintf(&sb, " %s", insn.Field)
		}
	case op.IsInvoke():
		if insn.Method != nil {
			fmt.Fprintf(&sb, " %s", insn.Method)
		}
		srcs(insn.Srcs)
	case op.IsIf(), op == OpGoto:
		srcs(insn.Srcs)
		if b := insn.block; b != nil {
			for _, succ := range b.Succs {
				fmt.Fprintf(&sb, " @%s", label(succ))
			}
		}
	default:
		srcs(insn.Srcs)
	}
	return sb.String()
}

func className(c *Class) string {
	if c == nil {
		return "?"
	}
	return c.Name
}

// blockLabels assigns each block a unique label, preferring its comment.
func blockLabels(c *Code) map[*BasicBlock]string {
	labels := make(map[*BasicBlock]string, len(c.Blocks))
	taken := make(map[string]bool, len(c.Blocks))
	for _, b := range c.Blocks {
		l := b.String()
		if taken[l] {
			l = fmt.Sprintf("%s.%d", l, b.Index)
		}
		for taken[l] {
			l += "_"
		}
		taken[l] = true
		labels[b] = l
	}
	return labels
}

// WriteCode writes to buf a human-readable listing of c.
func WriteCode(buf *bytes.Buffer, c *Code) {
	labels := blockLabels(c)
	label := func(b *BasicBlock) string { return labels[b] }
	for i, b := range c.Blocks {
		fmt.Fprintf(buf, "%s:\n", labels[b])
		for _, insn := range b.Instrs {
			buf.WriteString("\t")
			buf.WriteString(formatInstruction(insn, label))
			buf.WriteString("\n")
		}
		if b.Control() == nil && len(b.Succs) == 1 {
			if i+1 >= len(c.Blocks) || c.Blocks[i+1] != b.Succs[0] {
				fmt.Fprintf(buf, "\tfallthrough @%s\n", labels[b.Succs[0]])
			}
		}
	}
}

// WriteMethod writes a listing of m, preceded by its signature, to w.
func WriteMethod(w io.Writer, m *Method) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s", m)
	if m.Code == nil {
		buf.WriteString(" (no body)\n")
	} else {
		fmt.Fprintf(&buf, " (%d registers)\n", m.Code.NumRegs)
		WriteCode(&buf, m.Code)
	}
	_, err := w.Write(buf.Bytes())
	return err
}
