package exacttype

import (
	"testing"

	"honnef.co/go/cse/ir"
	"honnef.co/go/cse/ir/irtext"
)

const src = `
classes:
  - name: A
    methods:
      - {name: get, desc: ()I}
  - name: B
    super: A
  - name: C
  - name: T
    methods:
      - name: f
        desc: (LA;)I
        flags: [static]
        code: |
          v0 = param
          v1 = new-instance A
          v2 = move v1
          v3 = invoke-virtual A.get()I v2
          v4 = invoke-virtual A.get()I v0
          if-eqz v3 @other
          v5 = new-instance A
          goto @join
          other:
          v5 = new-instance A
          join:
          v6 = invoke-virtual A.get()I v5
          if-eqz v6 @mixed
          v7 = new-instance A
          goto @end
          mixed:
          v7 = new-instance B
          end:
          v8 = invoke-virtual A.get()I v7
          v9 = new-instance B
          loop:
          v10 = invoke-virtual A.get()I v9
          v9 = move v0
          if-eqz v10 @loop
          v11 = new-instance C
          v12 = invoke-virtual A.get()I v11
          return v8
`

func TestAnalyze(t *testing.T) {
	prog, err := irtext.ParseString("exact.yaml", src)
	if err != nil {
		t.Fatal(err)
	}
	code := prog.Class("T").DeclaredMethod("f", "(LA;)I").Code
	res := Analyze(code)

	var calls []*ir.Instruction
	for _, b := range code.Blocks {
		for _, insn := range b.Instrs {
			if insn.Op == ir.OpInvokeVirtual {
				calls = append(calls, insn)
			}
		}
	}
	if len(calls) != 6 {
		t.Fatalf("found %d calls, want 6", len(calls))
	}
	a := prog.Class("A")
	want := []*ir.Class{
		a,   // through a move
		nil, // parameter
		a,   // same class on both paths
		nil, // different classes
		nil, // redefined in the loop
		nil, // unrelated class
	}
	for i, call := range calls {
		if got := res.ExactReceiver(call); got != want[i] {
			t.Errorf("%s: got %v, want %v", call, got, want[i])
		}
	}
}
