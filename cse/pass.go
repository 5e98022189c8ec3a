package cse

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"honnef.co/go/cse/analysis/exacttype"
	"honnef.co/go/cse/internal/trace"
	"honnef.co/go/cse/ir"
)

// Config controls a run of the pass over a whole program.
type Config struct {
	PureMethods []string
	SafeMethods []string
	// RuntimeAssertions keeps eliminated instructions and checks their
	// results against the forwarded values.
	RuntimeAssertions bool
	// Debug verifies every patched method.
	Debug   bool
	Workers int
}

// A Pass eliminates redundant computations in all methods of a program.
type Pass struct {
	Config
	Trace *trace.Logger
}

// Result summarizes a run of the pass.
type Result struct {
	Stats          Stats
	Shared         SharedStateStats
	MethodBarriers MethodBarriersStats
	Barriers       []BarrierCount
	// Changed lists the methods that were modified, ordered by ID.
	Changed []*ir.Method
}

// Report passes all statistics to sink.
func (r *Result) Report(sink MetricSink) {
	r.Stats.Report(sink)
	r.Shared.Report(sink)
}

// Run analyzes and patches every method with a body in prog, which
// must be sealed. If any method is malformed, Run returns an error
// and no method is modified.
func (p *Pass) Run(prog *ir.Program) (*Result, error) {
	workers := p.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	var methods []*ir.Method
	for _, m := range prog.Methods() {
		if m.HasBody() {
			methods = append(methods, m)
		}
	}

	shared := NewSharedState(prog, Options{
		PureMethods: p.PureMethods,
		SafeMethods: p.SafeMethods,
		Workers:     workers,
		Trace:       p.Trace,
	})
	defer shared.Cleanup()
	mstats, err := shared.InitMethodBarriers(methods)
	if err != nil {
		return nil, fmt.Errorf("cse: %w", err)
	}

	// All methods are analyzed before any is patched, because the
	// shared state reflects the unpatched program.
	analyses := make([]*CSE, len(methods))
	g := &errgroup.Group{}
	g.SetLimit(workers)
	for i, m := range methods {
		g.Go(func() error {
			c, err := New(shared, m.Code, exacttype.Analyze(m.Code))
			if err != nil {
				return fmt.Errorf("cse: %s: %w", m, err)
			}
			analyses[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	changed := make([]bool, len(methods))
	g = &errgroup.Group{}
	g.SetLimit(workers)
	for i, c := range analyses {
		g.Go(func() error {
			changed[i] = c.Patch(p.RuntimeAssertions)
			if changed[i] && p.Debug {
				if err := ir.SanityCheck(c.code); err != nil {
					panic(fmt.Sprintf("internal error: %s is malformed after patching: %s", c.code.Method, err))
				}
			}
			return nil
		})
	}
	g.Wait()

	res := &Result{MethodBarriers: mstats}
	for i, c := range analyses {
		res.Stats.Add(c.Stats())
		if changed[i] {
			res.Changed = append(res.Changed, methods[i])
		}
	}
	res.Shared = shared.Stats()
	res.Barriers = shared.Barriers()
	p.Trace.Printf(1, "cse: %d instructions eliminated in %d of %d methods",
		res.Stats.InstructionsEliminated, len(res.Changed), len(methods))
	return res, nil
}
