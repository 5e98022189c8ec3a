package cse

import (
	"cmp"
	"slices"
	"sync"
	"sync/atomic"

	"honnef.co/go/cse/ir"
)

// A Barrier is a class of instructions that invalidated tracked
// values, identified by opcode and field. Calls are grouped by opcode
// alone.
type Barrier struct {
	Opcode ir.Opcode
	Field  *ir.Field
}

func (b Barrier) String() string {
	if b.Field != nil {
		return b.Opcode.String() + " " + b.Field.String()
	}
	return b.Opcode.String()
}

// BarrierRegistry counts barriers by class. It is safe for concurrent
// use.
type BarrierRegistry struct {
	counts sync.Map // Barrier -> *atomic.Uint64
}

// Log records one occurrence of b.
func (r *BarrierRegistry) Log(b Barrier) {
	v, ok := r.counts.Load(b)
	if !ok {
		v, _ = r.counts.LoadOrStore(b, new(atomic.Uint64))
	}
	v.(*atomic.Uint64).Add(1)
}

// A BarrierCount is the number of occurrences of one class of barriers.
type BarrierCount struct {
	Barrier Barrier
	Count   uint64
}

// Counts returns the number of occurrences per class, most frequent
// first.
func (r *BarrierRegistry) Counts() []BarrierCount {
	var out []BarrierCount
	r.counts.Range(func(key, value any) bool {
		out = append(out, BarrierCount{key.(Barrier), value.(*atomic.Uint64).Load()})
		return true
	})
	slices.SortFunc(out, func(a, b BarrierCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Barrier.Opcode, b.Barrier.Opcode); c != 0 {
			return c
		}
		return cmp.Compare(fieldName(a.Barrier.Field), fieldName(b.Barrier.Field))
	})
	return out
}

func fieldName(f *ir.Field) string {
	if f == nil {
		return ""
	}
	return f.String()
}
