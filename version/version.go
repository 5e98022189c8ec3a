// Package version reports the version of the running binary.
package version

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
)

// version returns a version descriptor and reports whether the version
// is a known release.
func version(human, machine string) (string, string, bool) {
	if human != "devel" && machine != "devel" {
		return human, machine, true
	}
	v, ok := buildInfoVersion()
	if ok {
		return human, v, false
	}
	return "devel", "", false
}

// Print writes the name and version of the program to w.
func Print(w io.Writer, human, machine string) {
	human, machine, release := version(human, machine)
	name := filepath.Base(os.Args[0])

	switch {
	case release:
		fmt.Fprintf(w, "%s %s (%s)\n", name, human, machine)
	case machine == "":
		fmt.Fprintf(w, "%s (no version)\n", name)
	default:
		fmt.Fprintf(w, "%s (devel, %s)\n", name, machine)
	}
}

// Verbose is like Print, followed by the Go version and the modules the
// program was built from.
func Verbose(w io.Writer, human, machine string) {
	Print(w, human, machine)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Compiled with Go version:", runtime.Version())
	printBuildInfo(w)
}

func printModule(w io.Writer, m *debug.Module) {
	fmt.Fprintf(w, "\t%s", m.Path)
	if m.Version != "(devel)" {
		fmt.Fprintf(w, "@%s", m.Version)
	}
	if m.Sum != "" {
		fmt.Fprintf(w, " (sum: %s)", m.Sum)
	}
	if m.Replace != nil {
		fmt.Fprintf(w, " (replace: %s)", m.Replace.Path)
	}
	fmt.Fprintln(w)
}
