package location

import (
	"testing"

	"honnef.co/go/cse/ir"

	"github.com/google/go-cmp/cmp"
)

func testProgram() *ir.Program {
	prog := ir.NewProgram()
	b := prog.NewClass("B")
	b.AddField("z", "I")
	a := prog.NewClass("A")
	a.AddField("y", "I")
	a.AddField("x", "I")
	prog.Seal()
	return prog
}

func TestOrdering(t *testing.T) {
	prog := testProgram()
	u := NewUniverse(prog)

	ax := FieldLocation(ir.LookupField(prog.Class("A"), "x"))
	ay := FieldLocation(ir.LookupField(prog.Class("A"), "y"))
	bz := FieldLocation(ir.LookupField(prog.Class("B"), "z"))

	s := NewSet(bz, Special(ArrayObject), ay, Special(General), ax, Special(ArrayInt))
	var got []string
	for _, l := range s.Locations(u) {
		got = append(got, l.String())
	}
	want := []string{"<general>", "<array-int>", "<array-object>", "A.x", "A.y", "B.z"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected order (-want +got):\n%s", diff)
	}

	if ax.Compare(ay) >= 0 || bz.Compare(ay) <= 0 || ax.Compare(ax) != 0 {
		t.Errorf("Compare is inconsistent with qualified names")
	}
	for k := General; k < Field; k++ {
		if Special(k).Compare(ax) >= 0 {
			t.Errorf("%s does not sort before fields", k)
		}
		if Special(k).Ordinal() == ax.Ordinal() {
			t.Errorf("%s aliases a field", k)
		}
	}
	if u.Size() != numSpecial+3 {
		t.Errorf("got universe of size %d, want %d", u.Size(), numSpecial+3)
	}
}

func TestSetOperations(t *testing.T) {
	prog := testProgram()
	ax := FieldLocation(ir.LookupField(prog.Class("A"), "x"))
	bz := FieldLocation(ir.LookupField(prog.Class("B"), "z"))

	var s Set
	if !s.IsEmpty() || s.HasGeneral() {
		t.Fatal("zero Set is not empty")
	}
	if !s.Insert(ax) || s.Insert(ax) {
		t.Errorf("Insert reported the wrong change")
	}
	o := NewSet(bz, Special(ArrayChar))
	if s.Intersects(o) {
		t.Errorf("disjoint sets intersect")
	}
	if !s.UnionWith(o) || s.UnionWith(o) {
		t.Errorf("UnionWith reported the wrong change")
	}
	if s.Len() != 3 || !s.Has(bz) {
		t.Errorf("union is wrong: %s", s.Format(NewUniverse(prog)))
	}

	c := s.Clone()
	c.IntersectionWith(NewSet(ax, Special(ArrayWide)))
	if !c.Equals(NewSet(ax)) {
		t.Errorf("intersection is wrong: %s", c.Format(NewUniverse(prog)))
	}
	if s.Len() != 3 {
		t.Errorf("Clone shares storage with the original")
	}
	if !NewSet(Special(General)).HasGeneral() {
		t.Errorf("HasGeneral is wrong")
	}
}

func TestArrayComponent(t *testing.T) {
	tests := []struct {
		get, put ir.Opcode
		kind     Kind
	}{
		{ir.OpAGet, ir.OpAPut, ArrayInt},
		{ir.OpAGetWide, ir.OpAPutWide, ArrayWide},
		{ir.OpAGetObject, ir.OpAPutObject, ArrayObject},
		{ir.OpAGetBoolean, ir.OpAPutBoolean, ArrayBoolean},
		{ir.OpAGetByte, ir.OpAPutByte, ArrayByte},
		{ir.OpAGetChar, ir.OpAPutChar, ArrayChar},
		{ir.OpAGetShort, ir.OpAPutShort, ArrayShort},
	}
	for _, tt := range tests {
		if got := ArrayComponent(tt.get).Kind(); got != tt.kind {
			t.Errorf("%s: got %s, want %s", tt.get, got, tt.kind)
		}
		if got := ArrayComponent(tt.put).Kind(); got != tt.kind {
			t.Errorf("%s: got %s, want %s", tt.put, got, tt.kind)
		}
		if tt.get.AccessFor() != tt.put {
			t.Errorf("%s does not pair with %s", tt.get, tt.put)
		}
	}
}
