// cse eliminates redundant computations from programs in the textual
// register IR and reports what it removed.
package main

import (
	"errors"
	"flag"
	"os"

	"honnef.co/go/cse/optcmd"
)

func main() {
	cmd := optcmd.NewCommand("cse")
	if err := cmd.ParseFlags(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}
	cmd.Run()
}
