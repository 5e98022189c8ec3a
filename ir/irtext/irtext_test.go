package irtext

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"honnef.co/go/cse/ir"

	"github.com/google/go-cmp/cmp"
)

const pointProgram = `
classes:
  - name: Point
    super: java.lang.Object
    flags: [final]
    fields:
      - {name: x, type: I}
      - {name: y, type: I}
      - {name: count, type: I, flags: [static, volatile]}
    methods:
      - name: sum
        desc: ()I
        code: |
          v0 = param
          v1 = iget v0 Point.x
          v2 = iget v0 Point.y
          v3 = add v1 v2
          if-lez v3 @neg
          v4 = invoke-static java.lang.Math.abs(I)I v3
          return v4
          neg:
          v5 = const -1
          sput v5 Point.count
          return v5
      - name: loop
        desc: (I)V
        flags: [static]
        code: |
          v0 = param
          head:
          if-eqz v0 @done
          v1 = const-string "tick \"tock\""
          goto @head
          done:
          return-void
      - name: native
        desc: ()V
        flags: [native]
`

func TestParse(t *testing.T) {
	prog, err := ParseString("point.yaml", pointProgram)
	if err != nil {
		t.Fatal(err)
	}
	point := prog.Class("Point")
	if point == nil || !point.Final || point.External {
		t.Fatalf("unexpected class %#v", point)
	}
	if obj := prog.Class("java.lang.Object"); obj == nil || !obj.External || point.Super != obj {
		t.Errorf("superclass was not linked to an external placeholder")
	}
	if math := prog.Class("java.lang.Math"); math == nil || !math.External {
		t.Errorf("referenced class java.lang.Math is missing")
	}

	var names []string
	for _, f := range prog.Fields() {
		names = append(names, f.String())
	}
	if diff := cmp.Diff([]string{"Point.count", "Point.x", "Point.y"}, names); diff != "" {
		t.Errorf("fields are not ordered by qualified name (-want +got):\n%s", diff)
	}
	if f := prog.Fields()[0]; !f.Static || !f.Volatile {
		t.Errorf("flags of %s were not parsed", f)
	}

	sum := point.DeclaredMethod("sum", "()I")
	if sum.Code == nil || len(sum.Code.Blocks) != 3 || sum.Code.NumRegs != 6 {
		t.Fatalf("unexpected body for %s", sum)
	}
	entry := sum.Code.Blocks[0]
	if s := entry.Succs; len(s) != 2 || s[0].Comment != "neg" || s[1] != sum.Code.Blocks[1] {
		t.Errorf("unexpected successors of the entry block: %v", s)
	}
	call := sum.Code.Blocks[1].Instrs[0]
	if call.Op != ir.OpInvokeStatic || call.Method.String() != "java.lang.Math.abs(I)I" || call.Dest != 4 {
		t.Errorf("unexpected call %s", call)
	}

	loop := point.DeclaredMethod("loop", "(I)V")
	str := loop.Code.Blocks[2].Instrs[0]
	if str.Op != ir.OpConstString || str.Str != `tick "tock"` {
		t.Errorf("unexpected string constant %s", str)
	}
	if native := point.DeclaredMethod("native", "()V"); !native.Native || native.HasBody() {
		t.Errorf("native method was not declared correctly")
	}
}

func TestRoundTrip(t *testing.T) {
	prog, err := ParseString("point.yaml", pointProgram)
	if err != nil {
		t.Fatal(err)
	}
	printed := map[string]string{}
	src := "classes:\n" + pointDecls + "\n"
	for _, m := range prog.Methods() {
		if m.Code == nil {
			continue
		}
		var buf bytes.Buffer
		ir.WriteCode(&buf, m.Code)
		printed[m.String()] = buf.String()
		src = strings.Replace(src, "CODE("+m.Name+")", indent(buf.String(), 10), 1)
	}
	if len(printed) != 2 {
		t.Fatalf("got %d bodies, want 2", len(printed))
	}

	prog2, err := ParseString("roundtrip.yaml", src)
	if err != nil {
		t.Fatalf("reparsing printed code: %s\n%s", err, src)
	}
	for _, m := range prog2.Methods() {
		first, ok := printed[m.String()]
		if !ok {
			continue
		}
		var second bytes.Buffer
		ir.WriteCode(&second, m.Code)
		if diff := cmp.Diff(first, second.String()); diff != "" {
			t.Errorf("%s: printing is not stable (-first +second):\n%s", m, diff)
		}
	}
}

// pointDecls repeats the declarations of pointProgram with
// placeholders for method bodies.
const pointDecls = `  - name: Point
    super: java.lang.Object
    flags: [final]
    fields:
      - {name: x, type: I}
      - {name: y, type: I}
      - {name: count, type: I, flags: [static, volatile]}
    methods:
      - name: sum
        desc: ()I
        code: |
CODE(sum)
      - name: loop
        desc: (I)V
        flags: [static]
        code: |
CODE(loop)`

func indent(s string, n int) string {
	pad := strings.Repeat(" ", n)
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = pad + strings.TrimLeft(l, "\t")
	}
	return strings.Join(lines, "\n")
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
		msg  string
	}{
		{
			"unknown opcode",
			"classes:\n  - name: A\n    methods:\n      - name: f\n        desc: ()V\n        code: |\n          return-void\n          frobnicate v0\n",
			8,
			`unknown opcode "frobnicate"`,
		},
		{
			"unknown field",
			"classes:\n  - name: A\n    methods:\n      - name: f\n        desc: ()V\n        code: |\n          v0 = sget A.nope\n          return-void\n",
			7,
			"unknown field A.nope",
		},
		{
			"undefined label",
			"classes:\n  - name: A\n    methods:\n      - name: f\n        desc: ()V\n        code: |\n          goto @nowhere\n",
			7,
			"undefined label nowhere",
		},
		{
			"falls off the end",
			"classes:\n  - name: A\n    methods:\n      - name: f\n        desc: ()V\n        code: |\n          v0 = const 1\n",
			0,
			"control falls off the end",
		},
		{
			"duplicate class",
			"classes:\n  - name: A\n  - name: A\n",
			3,
			"class A declared more than once",
		},
		{
			"bad descriptor",
			"classes:\n  - name: A\n    methods:\n      - name: f\n        desc: V\n",
			4,
			"malformed method descriptor",
		},
		{
			"void result",
			"classes:\n  - name: A\n    methods:\n      - name: f\n        desc: ()V\n        code: |\n          v0 = invoke-static A.g()V\n          return-void\n",
			7,
			"does not return a value",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseString("test.yaml", tt.src)
			if err == nil {
				t.Fatal("expected an error")
			}
			var perr Error
			if !errors.As(err, &perr) {
				t.Fatalf("got %T, want irtext.Error", err)
			}
			if tt.line != 0 && perr.Line != tt.line {
				t.Errorf("got line %d, want %d (%s)", perr.Line, tt.line, err)
			}
			if !strings.Contains(perr.Msg, tt.msg) {
				t.Errorf("got %q, want it to contain %q", perr.Msg, tt.msg)
			}
		})
	}
}
