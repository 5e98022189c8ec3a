// Package trace provides leveled debug output. A nil *Logger discards
// everything, so callers need not check whether tracing is enabled
// before calling Printf, only before doing expensive work to produce
// its arguments.
package trace

import (
	"io"
	"log"
)

type Logger struct {
	level int
	l     *log.Logger
}

// New returns a logger that writes messages of at most the given level
// to w.
func New(w io.Writer, level int) *Logger {
	return &Logger{level: level, l: log.New(w, "", 0)}
}

// Enabled reports whether messages of the given level are written.
func (t *Logger) Enabled(level int) bool {
	return t != nil && level <= t.level
}

func (t *Logger) Printf(level int, format string, args ...any) {
	if !t.Enabled(level) {
		return
	}
	t.l.Printf(format, args...)
}
