package cse

import (
	"slices"

	"golang.org/x/exp/constraints"

	"honnef.co/go/cse/ir"
)

// A MetricSink receives named counters.
type MetricSink interface {
	IncrMetric(name string, n int)
}

// Stats describe the redundancies found and removed in one or more
// methods.
type Stats struct {
	ResultsCaptured        int
	StoresCaptured         int
	ArrayLengthsCaptured   int
	InstructionsEliminated int
	// MaxValueIDs is the largest number of distinct values numbered in
	// a single method.
	MaxValueIDs       int
	EliminatedOpcodes map[ir.Opcode]int
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.ResultsCaptured += o.ResultsCaptured
	s.StoresCaptured += o.StoresCaptured
	s.ArrayLengthsCaptured += o.ArrayLengthsCaptured
	s.InstructionsEliminated += o.InstructionsEliminated
	s.MaxValueIDs = max(s.MaxValueIDs, o.MaxValueIDs)
	if len(o.EliminatedOpcodes) > 0 && s.EliminatedOpcodes == nil {
		s.EliminatedOpcodes = make(map[ir.Opcode]int, len(o.EliminatedOpcodes))
	}
	for op, n := range o.EliminatedOpcodes {
		s.EliminatedOpcodes[op] += n
	}
}

// Report passes the statistics to sink, with one counter per
// eliminated opcode.
func (s Stats) Report(sink MetricSink) {
	sink.IncrMetric("results_captured", s.ResultsCaptured)
	sink.IncrMetric("stores_captured", s.StoresCaptured)
	sink.IncrMetric("array_lengths_captured", s.ArrayLengthsCaptured)
	sink.IncrMetric("instructions_eliminated", s.InstructionsEliminated)
	sink.IncrMetric("max_value_ids", s.MaxValueIDs)
	for _, op := range sortedKeys(s.EliminatedOpcodes) {
		sink.IncrMetric("eliminated_opcode_"+op.String(), s.EliminatedOpcodes[op])
	}
}

func sortedKeys[K constraints.Ordered, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
