package ir

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

// buildLoop constructs
//
//	b0: v0 = param; if-eqz v0 -> b1, b2
//	b1: goto b3
//	b2: -> b3
//	b3: if-eqz v0 -> b5, b4
//	b4: goto b3
//	b5: return-void
//	b6: return-void (unreachable)
func buildLoop(t *testing.T) *Code {
	t.Helper()
	prog := NewProgram()
	c := prog.NewClass("T")
	m := c.AddMethod("f", "(I)V")
	m.Static = true
	prog.Seal()

	code := NewCode(m, 1)
	b := make([]*BasicBlock, 7)
	for i := range b {
		b[i] = code.NewBlock("")
	}
	b[0].Emit(NewInsn(OpParam, 0))
	b[0].Emit(NewBranch(OpIfEqz, 0))
	AddEdge(b[0], b[1])
	AddEdge(b[0], b[2])
	b[1].Emit(NewBranch(OpGoto))
	AddEdge(b[1], b[3])
	AddEdge(b[2], b[3])
	b[3].Emit(NewBranch(OpIfEqz, 0))
	AddEdge(b[3], b[5])
	AddEdge(b[3], b[4])
	b[4].Emit(NewBranch(OpGoto))
	AddEdge(b[4], b[3])
	b[5].Emit(NewBranch(OpReturnVoid))
	b[6].Emit(NewBranch(OpReturnVoid))
	return code
}

func TestDominators(t *testing.T) {
	code := buildLoop(t)
	if err := SanityCheck(code); err != nil {
		t.Fatal(err)
	}
	b := code.Blocks

	tests := []struct {
		a, b int
		want bool
	}{
		{0, 3, true},
		{0, 5, true},
		{1, 3, false},
		{2, 3, false},
		{3, 4, true},
		{3, 5, true},
		{4, 3, false},
		{4, 5, false},
		{0, 6, false},
		{6, 6, false},
		{3, 3, true},
	}
	for _, tt := range tests {
		if got := b[tt.a].Dominates(b[tt.b]); got != tt.want {
			t.Errorf("b%d.Dominates(b%d) = %t, want %t", tt.a, tt.b, got, tt.want)
		}
	}
	if idom := b[3].Idom(); idom != b[0] {
		t.Errorf("idom(b3) = %v, want b0", idom)
	}
	if b[6].Reachable() {
		t.Errorf("b6 should be unreachable")
	}
}

func TestWriteDomTree(t *testing.T) {
	code := buildLoop(t)
	if err := SanityCheck(code); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	WriteDomTree(&buf, code)
	want := `b0
    b1
    b2
    b3
        b4
        b5
`
	if got := buf.String(); got != want {
		t.Errorf("got\n%s\nwant\n%s", got, want)
	}
}

func TestReversePostorder(t *testing.T) {
	code := buildLoop(t)
	order := code.ReversePostorder()
	if len(order) != 6 {
		t.Fatalf("got %d blocks, want 6", len(order))
	}
	pos := map[*BasicBlock]int{}
	for i, b := range order {
		pos[b] = i
	}
	if order[0] != code.Blocks[0] {
		t.Errorf("entry is not first")
	}
	b := code.Blocks
	for _, edge := range [][2]int{{0, 1}, {0, 2}, {1, 3}, {2, 3}, {3, 4}, {3, 5}} {
		if pos[b[edge[0]]] >= pos[b[edge[1]]] {
			t.Errorf("b%d should come before b%d", edge[0], edge[1])
		}
	}
	if _, ok := pos[b[6]]; ok {
		t.Errorf("unreachable block in reverse postorder")
	}
}

func TestValidate(t *testing.T) {
	code := buildLoop(t)
	if err := Validate(code); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	// drop one half of an edge
	b3 := code.Blocks[3]
	b3.Preds = b3.Preds[:len(b3.Preds)-1]
	err := Validate(code)
	if err == nil {
		t.Fatal("expected an error for a missing predecessor")
	}
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("error %q does not wrap ErrMalformed", err)
	}

	code = buildLoop(t)
	b1 := code.Blocks[1]
	b1.InsertAfter(b1.Instrs[0], NewConst(0, 1))
	if err := Validate(code); err == nil || !strings.Contains(err.Error(), "not the last instruction") {
		t.Errorf("got %v, want error about terminator position", err)
	}

	code = buildLoop(t)
	code.Blocks[5].Instrs[0].Op = OpGoto
	if err := Validate(code); err == nil {
		t.Errorf("goto without successor was accepted")
	}
}

func TestSplitAfter(t *testing.T) {
	code := buildLoop(t)
	b0 := code.Blocks[0]
	param := b0.Instrs[0]
	nb := b0.SplitAfter(param)

	if len(b0.Instrs) != 1 || b0.Instrs[0] != param {
		t.Fatalf("unexpected instructions left in b0: %v", b0.Instrs)
	}
	if len(nb.Instrs) != 1 || nb.Instrs[0].Op != OpIfEqz || nb.Instrs[0].Block() != nb {
		t.Fatalf("unexpected instructions in new block: %v", nb.Instrs)
	}
	if len(b0.Succs) != 0 || len(nb.Succs) != 2 {
		t.Fatalf("successors were not moved")
	}
	for _, s := range nb.Succs {
		if len(s.Preds) != 1 || s.Preds[0] != nb {
			t.Errorf("%s has predecessors %v, want [%s]", s, s.Preds, nb)
		}
	}
	AddEdge(b0, nb)
	if err := SanityCheck(code); err != nil {
		t.Fatal(err)
	}
}

func TestWriteCode(t *testing.T) {
	code := buildLoop(t)
	var buf bytes.Buffer
	WriteCode(&buf, code)
	want := `b0:
	v0 = param
	if-eqz v0 @b1 @b2
b1:
	goto @b3
b2:
b3:
	if-eqz v0 @b5 @b4
b4:
	goto @b3
b5:
	return-void
b6:
	return-void
`
	if got := buf.String(); got != want {
		t.Errorf("got\n%s\nwant\n%s", got, want)
	}
}

func TestResolve(t *testing.T) {
	prog := NewProgram()
	obj := prog.NewClass("Object")
	base := prog.NewClass("Base")
	base.Super = obj
	sub := prog.NewClass("Sub")
	sub.Super = base
	iface := prog.NewClass("Getter")
	iface.Interface = true
	sub.Interfaces = []*Class{iface}

	get := base.AddMethod("get", "()I")
	iget := iface.AddMethod("get", "()I")
	iget.Abstract = true
	other := iface.AddMethod("other", "()V")
	other.Abstract = true
	prog.Seal()

	if m := prog.Resolve(OpInvokeVirtual, prog.MethodRef(sub, "get", "()I")); m != get {
		t.Errorf("virtual resolution through superclass: got %v, want %v", m, get)
	}
	if m := prog.Resolve(OpInvokeInterface, prog.MethodRef(iface, "get", "()I")); m != iget {
		t.Errorf("interface resolution: got %v, want %v", m, iget)
	}
	if m := prog.Resolve(OpInvokeVirtual, prog.MethodRef(sub, "other", "()V")); m != other {
		t.Errorf("resolution through interfaces: got %v, want %v", m, other)
	}
	if m := prog.Resolve(OpInvokeStatic, prog.MethodRef(sub, "missing", "()V")); m != nil {
		t.Errorf("got %v for a missing method", m)
	}
	if prog.MethodRef(sub, "get", "()I") != prog.MethodRef(sub, "get", "()I") {
		t.Errorf("method references are not interned")
	}
}

func TestNumParams(t *testing.T) {
	tests := map[string]int{
		"()V":                     0,
		"(I)I":                    1,
		"(IJ)V":                   2,
		"([ILjava/lang/String;)V": 2,
		"([[Ljava/lang/Object;Z)": 2,
	}
	for desc, want := range tests {
		if got := NumParams(desc); got != want {
			t.Errorf("NumParams(%q) = %d, want %d", desc, got, want)
		}
	}
}
