package optcmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/mattn/go-runewidth"
	"gopkg.in/yaml.v3"
)

type metric struct {
	Name  string `json:"name" yaml:"name"`
	Value int    `json:"value" yaml:"value"`
}

type metrics []metric

func (ms *metrics) IncrMetric(name string, n int) {
	for i := range *ms {
		if (*ms)[i].Name == name {
			(*ms)[i].Value += n
			return
		}
	}
	*ms = append(*ms, metric{name, n})
}

type barrierEntry struct {
	Barrier string `json:"barrier" yaml:"barrier"`
	Count   uint64 `json:"count" yaml:"count"`
}

type changedMethod struct {
	Method string `json:"method" yaml:"method"`
	Code   string `json:"code,omitempty" yaml:"code,omitempty"`
}

type report struct {
	Metrics  metrics         `json:"metrics" yaml:"metrics"`
	Barriers []barrierEntry  `json:"barriers" yaml:"barriers"`
	Changed  []changedMethod `json:"changed" yaml:"changed"`
}

type formatter interface {
	Format(r *report) error
}

type nullFormatter struct{}

func (nullFormatter) Format(*report) error { return nil }

type jsonFormatter struct {
	W io.Writer
}

func (o jsonFormatter) Format(r *report) error {
	enc := json.NewEncoder(o.W)
	enc.SetIndent("", "\t")
	return enc.Encode(r)
}

type yamlFormatter struct {
	W io.Writer
}

func (o yamlFormatter) Format(r *report) error {
	enc := yaml.NewEncoder(o.W)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}

type textFormatter struct {
	W io.Writer
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (o textFormatter) Format(r *report) error {
	var b strings.Builder
	bold := isTerminal(o.W)
	header := func(s string) {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		if bold {
			// SGR bold, then reset
			fmt.Fprintf(&b, "\x1b[1m%s\x1b[0m\n", s)
		} else {
			fmt.Fprintf(&b, "%s\n", s)
		}
	}

	header("Metrics")
	width := 0
	for _, m := range r.Metrics {
		width = max(width, runewidth.StringWidth(m.Name))
	}
	for _, m := range r.Metrics {
		fmt.Fprintf(&b, "  %s  %d\n", runewidth.FillRight(m.Name, width), m.Value)
	}

	if len(r.Barriers) > 0 {
		header("Barriers")
		width = 0
		for _, e := range r.Barriers {
			width = max(width, runewidth.StringWidth(e.Barrier))
		}
		for _, e := range r.Barriers {
			fmt.Fprintf(&b, "  %s  %d\n", runewidth.FillRight(e.Barrier, width), e.Count)
		}
	}

	if len(r.Changed) > 0 {
		header("Changed methods")
		for _, c := range r.Changed {
			fmt.Fprintf(&b, "  %s\n", c.Method)
			if c.Code != "" {
				for _, line := range strings.SplitAfter(strings.TrimSuffix(c.Code, "\n"), "\n") {
					b.WriteString("    ")
					b.WriteString(line)
				}
				b.WriteString("\n")
			}
		}
	}

	_, err := io.WriteString(o.W, b.String())
	return err
}
