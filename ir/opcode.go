package ir

import "fmt"

// Opcode identifies the operation performed by an Instruction.
type Opcode uint16

const (
	OpNop Opcode = iota

	// Values
	OpParam
	OpConst
	OpConstString
	OpMove

	// Pure computations
	OpNeg
	OpNot
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpRem
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpUshr
	OpCmp

	// Objects and arrays
	OpNewInstance
	OpNewArray
	OpArrayLength
	OpCheckCast
	OpInstanceOf

	OpAGet
	OpAGetWide
	OpAGetObject
	OpAGetBoolean
	OpAGetByte
	OpAGetChar
	OpAGetShort

	OpAPut
	OpAPutWide
	OpAPutObject
	OpAPutBoolean
	OpAPutByte
	OpAPutChar
	OpAPutShort

	OpIGet
	OpIPut
	OpSGet
	OpSPut

	// Calls
	OpInvokeVirtual
	OpInvokeSuper
	OpInvokeDirect
	OpInvokeStatic
	OpInvokeInterface

	OpMonitorEnter
	OpMonitorExit

	// Control flow
	OpGoto
	OpIfEq
	OpIfNe
	OpIfLt
	OpIfGe
	OpIfGt
	OpIfLe
	OpIfEqz
	OpIfNez
	OpIfLtz
	OpIfGez
	OpIfGtz
	OpIfLez
	OpReturn
	OpReturnVoid
	OpThrow
	OpTrap

	numOpcodes
)

var opcodeNames = [...]string{
	OpNop:             "nop",
	OpParam:           "param",
	OpConst:           "const",
	OpConstString:     "const-string",
	OpMove:            "move",
	OpNeg:             "neg",
	OpNot:             "not",
	OpAdd:             "add",
	OpSub:             "sub",
	OpMul:             "mul",
	OpDiv:             "div",
	OpRem:             "rem",
	OpAnd:             "and",
	OpOr:              "or",
	OpXor:             "xor",
	OpShl:             "shl",
	OpShr:             "shr",
	OpUshr:            "ushr",
	OpCmp:             "cmp",
	OpNewInstance:     "new-instance",
	OpNewArray:        "new-array",
	OpArrayLength:     "array-length",
	OpCheckCast:       "check-cast",
	OpInstanceOf:      "instance-of",
	OpAGet:            "aget",
	OpAGetWide:        "aget-wide",
	OpAGetObject:      "aget-object",
	OpAGetBoolean:     "aget-boolean",
	OpAGetByte:        "aget-byte",
	OpAGetChar:        "aget-char",
	OpAGetShort:       "aget-short",
	OpAPut:            "aput",
	OpAPutWide:        "aput-wide",
	OpAPutObject:      "aput-object",
	OpAPutBoolean:     "aput-boolean",
	OpAPutByte:        "aput-byte",
	OpAPutChar:        "aput-char",
	OpAPutShort:       "aput-short",
	OpIGet:            "iget",
	OpIPut:            "iput",
	OpSGet:            "sget",
	OpSPut:            "sput",
	OpInvokeVirtual:   "invoke-virtual",
	OpInvokeSuper:     "invoke-super",
	OpInvokeDirect:    "invoke-direct",
	OpInvokeStatic:    "invoke-static",
	OpInvokeInterface: "invoke-interface",
	OpMonitorEnter:    "monitor-enter",
	OpMonitorExit:     "monitor-exit",
	OpGoto:            "goto",
	OpIfEq:            "if-eq",
	OpIfNe:            "if-ne",
	OpIfLt:            "if-lt",
	OpIfGe:            "if-ge",
	OpIfGt:            "if-gt",
	OpIfLe:            "if-le",
	OpIfEqz:           "if-eqz",
	OpIfNez:           "if-nez",
	OpIfLtz:           "if-ltz",
	OpIfGez:           "if-gez",
	OpIfGtz:           "if-gtz",
	OpIfLez:           "if-lez",
	OpReturn:          "return",
	OpReturnVoid:      "return-void",
	OpThrow:           "throw",
	OpTrap:            "trap",
}

var opcodesByName map[string]Opcode

func init() {
	opcodesByName = make(map[string]Opcode, len(opcodeNames))
	for op, name := range opcodeNames {
		opcodesByName[name] = Opcode(op)
	}
}

func (op Opcode) String() string {
	if int(op) < len(opcodeNames) && opcodeNames[op] != "" {
		return opcodeNames[op]
	}
	return fmt.Sprintf("opcode(%d)", uint16(op))
}

// LookupOpcode returns the opcode with the given mnemonic.
func LookupOpcode(name string) (Opcode, bool) {
	op, ok := opcodesByName[name]
	return op, ok
}

func (op Opcode) IsBinary() bool { return op >= OpAdd && op <= OpCmp }
func (op Opcode) IsUnary() bool  { return op == OpNeg || op == OpNot }

// IsCommutative reports whether the operands of a binary operation
// may be swapped without changing its result.
func (op Opcode) IsCommutative() bool {
	switch op {
	case OpAdd, OpMul, OpAnd, OpOr, OpXor:
		return true
	}
	return false
}

func (op Opcode) IsAGet() bool { return op >= OpAGet && op <= OpAGetShort }
func (op Opcode) IsAPut() bool { return op >= OpAPut && op <= OpAPutShort }

// IsFieldGet reports whether op reads an instance or static field.
func (op Opcode) IsFieldGet() bool { return op == OpIGet || op == OpSGet }

// IsFieldPut reports whether op writes an instance or static field.
func (op Opcode) IsFieldPut() bool { return op == OpIPut || op == OpSPut }

// IsStore reports whether op writes a field or an array element.
func (op Opcode) IsStore() bool { return op.IsFieldPut() || op.IsAPut() }

func (op Opcode) IsInvoke() bool { return op >= OpInvokeVirtual && op <= OpInvokeInterface }

// IsVirtualInvoke reports whether the target of op is chosen by
// dispatch on the receiver's runtime type.
func (op Opcode) IsVirtualInvoke() bool {
	return op == OpInvokeVirtual || op == OpInvokeInterface
}

func (op Opcode) IsMonitor() bool { return op == OpMonitorEnter || op == OpMonitorExit }

func (op Opcode) IsIf() bool   { return op >= OpIfEq && op <= OpIfLez }
func (op Opcode) IsIfZ() bool  { return op >= OpIfEqz && op <= OpIfLez }
func (op Opcode) IsGoto() bool { return op == OpGoto }

// IsReturn reports whether op leaves the method normally.
func (op Opcode) IsReturn() bool { return op == OpReturn || op == OpReturnVoid }

// IsTerminator reports whether op must be the last instruction of a
// basic block.
func (op Opcode) IsTerminator() bool {
	return op.IsIf() || op == OpGoto || op.IsReturn() || op == OpThrow || op == OpTrap
}

// NumSuccs returns the number of successors a block ending in op has,
// or -1 if op does not end a block.
func (op Opcode) NumSuccs() int {
	switch {
	case op.IsIf():
		return 2
	case op == OpGoto:
		return 1
	case op.IsReturn(), op == OpThrow, op == OpTrap:
		return 0
	}
	return -1
}

// AccessFor maps an array get to the array put of the same component
// kind, and vice versa.
func (op Opcode) AccessFor() Opcode {
	switch {
	case op.IsAGet():
		return op - OpAGet + OpAPut
	case op.IsAPut():
		return op - OpAPut + OpAGet
	case op == OpIPut:
		return OpIGet
	case op == OpIGet:
		return OpIPut
	case op == OpSPut:
		return OpSGet
	case op == OpSGet:
		return OpSPut
	}
	panic(fmt.Sprintf("internal error: %s has no corresponding access", op))
}

// arity describes the register operands of an opcode. A negative value
// denotes a variable number of operands.
var arity = [numOpcodes]struct {
	srcs int
	dest bool
}{
	OpNop:             {0, false},
	OpParam:           {0, true},
	OpConst:           {0, true},
	OpConstString:     {0, true},
	OpMove:            {1, true},
	OpNeg:             {1, true},
	OpNot:             {1, true},
	OpAdd:             {2, true},
	OpSub:             {2, true},
	OpMul:             {2, true},
	OpDiv:             {2, true},
	OpRem:             {2, true},
	OpAnd:             {2, true},
	OpOr:              {2, true},
	OpXor:             {2, true},
	OpShl:             {2, true},
	OpShr:             {2, true},
	OpUshr:            {2, true},
	OpCmp:             {2, true},
	OpNewInstance:     {0, true},
	OpNewArray:        {1, true},
	OpArrayLength:     {1, true},
	OpCheckCast:       {1, false},
	OpInstanceOf:      {1, true},
	OpAGet:            {2, true},
	OpAGetWide:        {2, true},
	OpAGetObject:      {2, true},
	OpAGetBoolean:     {2, true},
	OpAGetByte:        {2, true},
	OpAGetChar:        {2, true},
	OpAGetShort:       {2, true},
	OpAPut:            {3, false},
	OpAPutWide:        {3, false},
	OpAPutObject:      {3, false},
	OpAPutBoolean:     {3, false},
	OpAPutByte:        {3, false},
	OpAPutChar:        {3, false},
	OpAPutShort:       {3, false},
	OpIGet:            {1, true},
	OpIPut:            {2, false},
	OpSGet:            {0, true},
	OpSPut:            {1, false},
	OpInvokeVirtual:   {-1, false},
	OpInvokeSuper:     {-1, false},
	OpInvokeDirect:    {-1, false},
	OpInvokeStatic:    {-1, false},
	OpInvokeInterface: {-1, false},
	OpMonitorEnter:    {1, false},
	OpMonitorExit:     {1, false},
	OpGoto:            {0, false},
	OpIfEq:            {2, false},
	OpIfNe:            {2, false},
	OpIfLt:            {2, false},
	OpIfGe:            {2, false},
	OpIfGt:            {2, false},
	OpIfLe:            {2, false},
	OpIfEqz:           {1, false},
	OpIfNez:           {1, false},
	OpIfLtz:           {1, false},
	OpIfGez:           {1, false},
	OpIfGtz:           {1, false},
	OpIfLez:           {1, false},
	OpReturn:          {1, false},
	OpReturnVoid:      {0, false},
	OpThrow:           {1, false},
	OpTrap:            {0, false},
}

// HasDest reports whether op always defines a register. Invokes define
// one only when their result is used, see Instruction.HasDest.
func (op Opcode) HasDest() bool { return arity[op].dest }

// NumSrcs returns the number of register operands of op, or -1 for
// opcodes with a variable number of operands.
func (op Opcode) NumSrcs() int { return arity[op].srcs }
