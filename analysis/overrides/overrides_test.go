package overrides

import (
	"testing"

	"honnef.co/go/cse/ir"
	"honnef.co/go/cse/ir/irtext"

	"github.com/google/go-cmp/cmp"
)

const hierarchy = `
classes:
  - name: Shape
    flags: [interface]
    methods:
      - {name: area, desc: ()I, flags: [abstract]}
  - name: Solid
    flags: [interface]
    interfaces: [Shape]
    methods:
      - {name: area, desc: ()I, flags: [abstract]}
  - name: Base
    methods:
      - name: area
        desc: ()I
        code: |
          v0 = param
          v1 = const 0
          return v1
      - name: helper
        desc: ()V
        flags: [private]
        code: |
          return-void
  - name: Square
    super: Base
    interfaces: [Shape]
    methods:
      - name: helper
        desc: ()V
        code: |
          return-void
  - name: Cube
    super: Square
    interfaces: [Solid]
    methods:
      - name: area
        desc: ()I
        code: |
          v0 = param
          v1 = const 6
          return v1
`

func names(ms []*ir.Method) []string {
	var out []string
	for _, m := range ms {
		out = append(out, m.String())
	}
	return out
}

func TestBuild(t *testing.T) {
	prog, err := irtext.ParseString("hierarchy.yaml", hierarchy)
	if err != nil {
		t.Fatal(err)
	}
	g := Build(prog)
	lookup := func(class, name string) *ir.Method {
		return prog.Class(class).DeclaredMethod(name, map[string]string{"area": "()I", "helper": "()V"}[name])
	}

	tests := []struct {
		method string
		class  string
		want   []string
	}{
		// Square inherits Base.area, which thereby implements Shape.area.
		{"area", "Shape", []string{"Base.area()I", "Cube.area()I", "Solid.area()I"}},
		{"area", "Solid", []string{"Cube.area()I"}},
		{"area", "Base", []string{"Cube.area()I"}},
		{"area", "Cube", nil},
		// Private methods are not overridden.
		{"helper", "Base", nil},
	}
	for _, tt := range tests {
		got := names(g.Overriders(lookup(tt.class, tt.method)))
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("overriders of %s.%s (-want +got):\n%s", tt.class, tt.method, diff)
		}
	}

	want := []string{"Base.area()I", "Solid.area()I", "Shape.area()I"}
	if diff := cmp.Diff(want, names(g.Parents(lookup("Cube", "area")))); diff != "" {
		t.Errorf("parents of Cube.area (-want +got):\n%s", diff)
	}
}

func TestAddIsMonotonic(t *testing.T) {
	prog, err := irtext.ParseString("hierarchy.yaml", hierarchy)
	if err != nil {
		t.Fatal(err)
	}
	g := Build(prog)
	base := prog.Class("Base").DeclaredMethod("area", "()I")
	helper := prog.Class("Square").DeclaredMethod("helper", "()V")
	before := names(g.Overriders(base))
	g.Add(base, helper)
	g.Add(base, helper)
	after := names(g.Overriders(base))
	if len(after) != len(before)+1 {
		t.Fatalf("got %v after adding an edge to %v", after, before)
	}
	for _, m := range before {
		if !contains(after, m) {
			t.Errorf("%s disappeared after adding an edge", m)
		}
	}
}

func contains(xs []string, x string) bool {
	for _, y := range xs {
		if x == y {
			return true
		}
	}
	return false
}
