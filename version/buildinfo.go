package version

import (
	"fmt"
	"io"
	"runtime/debug"
)

func printBuildInfo(w io.Writer) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		fmt.Fprintln(w, "Built without Go modules")
		return
	}
	fmt.Fprintln(w, "Main module:")
	printModule(w, &info.Main)
	fmt.Fprintln(w, "Dependencies:")
	for _, dep := range info.Deps {
		printModule(w, dep)
	}
}

// buildInfoVersion returns the version of the main module, if it was
// built from a tagged module version.
func buildInfoVersion() (string, bool) {
	info, ok := debug.ReadBuildInfo()
	if !ok || info.Main.Version == "" || info.Main.Version == "(devel)" {
		return "", false
	}
	return info.Main.Version, true
}
