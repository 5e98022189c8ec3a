package cse

import (
	"testing"

	"honnef.co/go/cse/analysis/location"
	"honnef.co/go/cse/ir"
)

const hierarchyProgram = `
classes:
  - name: G
    fields:
      - {name: s, type: I, flags: [static]}
      - {name: t, type: I, flags: [static]}
  - name: Base
    methods:
      - name: m
        desc: ()V
        code: |
          v0 = const 1
          sput v0 G.s
          return-void
  - name: Sub
    super: Base
    methods:
      - name: m
        desc: ()V
        code: |
          v0 = const 2
          sput v0 G.t
          return-void
  - name: C
    methods:
      - name: dispatched
        desc: (LBase;)V
        flags: [static]
        code: |
          v0 = param
          invoke-virtual Base.m()V v0
          return-void
      - name: direct
        desc: (LBase;)V
        flags: [static]
        code: |
          v0 = param
          invoke-direct Base.m()V v0
          return-void
      - name: native
        desc: ()V
        flags: [static, native]
      - name: callsNative
        desc: ()V
        flags: [static]
        code: |
          invoke-static C.native()V
          return-void
      - name: recursive
        desc: ()V
        flags: [static]
        code: |
          invoke-static C.recursive()V
          invoke-static C.callsNative()V
          return-void
`

func TestEffects(t *testing.T) {
	prog := load(t, hierarchyProgram)
	s := NewSharedState(prog, Options{Workers: 2})
	stats, err := s.InitMethodBarriers(bodies(prog))
	if err != nil {
		t.Fatal(err)
	}
	if stats.MethodsScanned != 6 {
		t.Errorf("scanned %d methods, want 6", stats.MethodsScanned)
	}
	if stats.Iterations < len(prog.Methods()) {
		t.Errorf("%d iterations cannot have visited all %d methods", stats.Iterations, len(prog.Methods()))
	}

	u := s.Universe()
	tests := []struct {
		method string
		own    string
		effect string
		safe   bool
	}{
		{"Base.m()V", "{G.s}", "{G.s G.t}", true},
		{"Sub.m()V", "{G.t}", "{G.t}", true},
		{"C.dispatched(LBase;)V", "{G.s G.t}", "{G.s G.t}", true},
		{"C.direct(LBase;)V", "{G.s}", "{G.s}", true},
		{"C.native()V", "{<general>}", "{<general>}", false},
		{"C.callsNative()V", "{<general>}", "{<general>}", false},
		{"C.recursive()V", "{<general>}", "{<general>}", false},
	}
	for _, tt := range tests {
		m := lookup(t, prog, tt.method)
		if got := s.OwnEffect(m).Format(u); got != tt.own {
			t.Errorf("OwnEffect(%s) = %s, want %s", m, got, tt.own)
		}
		if got := s.Effect(m).Format(u); got != tt.effect {
			t.Errorf("Effect(%s) = %s, want %s", m, got, tt.effect)
		}
		if got := s.IsSafe(m); got != tt.safe {
			t.Errorf("IsSafe(%s) = %t, want %t", m, got, tt.safe)
		}
	}

	// A dispatched call may run any overrider.
	for _, m := range prog.Methods() {
		for _, o := range s.graph.Overriders(m) {
			u := s.Effect(m).Clone()
			u.UnionWith(s.Effect(o))
			if !u.Equals(s.Effect(m)) {
				t.Errorf("effect of %s does not include that of its overrider %s", m, o)
			}
		}
	}
}

func TestSafeSeeds(t *testing.T) {
	prog := load(t, hierarchyProgram)
	s := newShared(t, prog, Options{SafeMethods: []string{"C.native()V"}})
	u := s.Universe()
	for _, name := range []string{"C.native()V", "C.callsNative()V", "C.recursive()V"} {
		m := lookup(t, prog, name)
		if got := s.Effect(m).Format(u); got != "{}" {
			t.Errorf("Effect(%s) = %s, want {}", m, got)
		}
		if !s.IsSafe(m) {
			t.Errorf("%s is not safe", m)
		}
	}
}

func TestRelevantWrittenLocation(t *testing.T) {
	prog := load(t, hierarchyProgram)
	s := newShared(t, prog, Options{})
	gs := location.FieldLocation(ir.LookupField(prog.Class("G"), "s"))
	gt := location.FieldLocation(ir.LookupField(prog.Class("G"), "t"))
	both := location.NewSet(gs, gt)
	onlyT := location.NewSet(gt)

	sput := lookup(t, prog, "Base.m()V").Code.Blocks[0].Instrs[1]
	call := lookup(t, prog, "C.dispatched(LBase;)V").Code.Blocks[0].Instrs[1]
	native := lookup(t, prog, "C.callsNative()V").Code.Blocks[0].Instrs[0]
	general := location.Special(location.General)

	tests := []struct {
		name string
		insn *ir.Instruction
		read *location.Set
		want location.Location
		ok   bool
	}{
		{"store of a read field", sput, both, gs, true},
		{"store of another field", sput, onlyT, location.Location{}, false},
		{"call writing several read fields", call, both, general, true},
		{"call writing one read field", call, onlyT, gt, true},
		{"call with unknown effects", native, onlyT, general, true},
		{"nothing read", native, location.NewSet(), location.Location{}, false},
	}
	for _, tt := range tests {
		got, ok := s.RelevantWrittenLocation(tt.insn, nil, tt.read)
		if ok != tt.ok || !got.Equal(tt.want) {
			t.Errorf("%s: got (%s, %t), want (%s, %t)", tt.name, got, ok, tt.want, tt.ok)
		}
	}
}

func TestUninitialized(t *testing.T) {
	prog := load(t, hierarchyProgram)
	s := NewSharedState(prog, Options{})
	m := lookup(t, prog, "Sub.m()V")
	if !s.Effect(m).HasGeneral() {
		t.Errorf("effects must be unknown before InitMethodBarriers")
	}
	s = newShared(t, prog, Options{})
	s.Cleanup()
	if !s.OwnEffect(m).HasGeneral() {
		t.Errorf("effects must be unknown after Cleanup")
	}
}

const pureProgram = `
classes:
  - name: V
    methods:
      - name: hash
        desc: ()I
        code: |
          v0 = param
          v1 = const 1
          return v1
  - name: W
    super: V
  - name: X
  - name: U
    methods:
      - name: call
        desc: (LV;)I
        flags: [static]
        code: |
          v0 = param
          v1 = invoke-virtual V.hash()I v0
          return v1
`

func TestPureCalls(t *testing.T) {
	prog := load(t, pureProgram)
	opts := Options{PureMethods: []string{"V.hash()I"}}
	call := lookup(t, prog, "U.call(LV;)I").Code.Blocks[0].Instrs[1]

	s := NewSharedState(prog, opts)
	if s.isPureCall(call, nil) {
		t.Errorf("%s is pure before the overriders of V.hash are known", call)
	}
	if _, err := s.InitMethodBarriers(bodies(prog)); err != nil {
		t.Fatal(err)
	}
	if !s.IsPure(lookup(t, prog, "V.hash()I")) || s.IsPure(lookup(t, prog, "U.call(LV;)I")) {
		t.Errorf("IsPure does not match the configured methods")
	}

	tests := []struct {
		name  string
		exact *ir.Class
		want  bool
	}{
		{"unknown receiver", nil, true},
		{"receiver declaring the method", prog.Class("V"), true},
		{"receiver inheriting the method", prog.Class("W"), true},
		{"receiver without the method", prog.Class("X"), false},
	}
	for _, tt := range tests {
		if got := s.isPureCall(call, tt.exact); got != tt.want {
			t.Errorf("%s: isPureCall = %t, want %t", tt.name, got, tt.want)
		}
	}
}
