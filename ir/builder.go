package ir

// Constructors for instructions. Operand order follows the textual form.

func NewInsn(op Opcode, dest Reg, srcs ...Reg) *Instruction {
	return &Instruction{Op: op, Dest: dest, Srcs: srcs}
}

func NewMove(dest, src Reg) *Instruction {
	return &Instruction{Op: OpMove, Dest: dest, Srcs: []Reg{src}}
}

func NewConst(dest Reg, v int64) *Instruction {
	return &Instruction{Op: OpConst, Dest: dest, Literal: v}
}

func NewFieldGet(dest Reg, f *Field, obj ...Reg) *Instruction {
	op := OpIGet
	if f.Static {
		op = OpSGet
	}
	return &Instruction{Op: op, Dest: dest, Field: f, Srcs: obj}
}

func NewFieldPut(f *Field, srcs ...Reg) *Instruction {
	op := OpIPut
	if f.Static {
		op = OpSPut
	}
	return &Instruction{Op: op, Dest: NoReg, Field: f, Srcs: srcs}
}

func NewInvoke(op Opcode, dest Reg, ref *MethodRef, args ...Reg) *Instruction {
	return &Instruction{Op: op, Dest: dest, Method: ref, Srcs: args}
}

func NewBranch(op Opcode, srcs ...Reg) *Instruction {
	return &Instruction{Op: op, Dest: NoReg, Srcs: srcs}
}

func NewTrap(msg string) *Instruction {
	return &Instruction{Op: OpTrap, Dest: NoReg, Str: msg}
}
