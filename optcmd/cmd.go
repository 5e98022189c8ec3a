// Package optcmd implements the frontend of the redundancy elimination
// pass. It serves as the entry-point for the cse command.
package optcmd

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"reflect"
	"runtime"
	"runtime/pprof"
	rtrace "runtime/trace"
	"strings"

	"honnef.co/go/cse/config"
	"honnef.co/go/cse/cse"
	"honnef.co/go/cse/internal/trace"
	"honnef.co/go/cse/ir"
	"honnef.co/go/cse/ir/irtext"
	"honnef.co/go/cse/version"
)

// Command represents the command line tool.
type Command struct {
	name           string
	version        string
	machineVersion string

	stdout io.Writer
	stderr io.Writer

	flags struct {
		fs *flag.FlagSet

		printVersion      bool
		formatter         string
		configDir         string
		debug             bool
		traceLevel        int
		runtimeAssertions bool
		printCode         bool
		workers           int

		debugCpuprofile string
		debugMemprofile string
		debugVersion    bool
		debugTrace      string

		pure list
		safe list
	}
}

// NewCommand returns a new Command.
func NewCommand(name string) *Command {
	cmd := &Command{
		name:           name,
		version:        "devel",
		machineVersion: "devel",
		stdout:         os.Stdout,
		stderr:         os.Stderr,
	}
	cmd.initFlagSet(name)
	return cmd
}

// SetVersion sets the command's version.
// It is divided into a human part and a machine part.
// If you only use Semver, you can set both parts to the same value.
//
// Calling this method is optional. Both versions default to "devel", and we'll attempt to deduce more version information from the Go module.
func (cmd *Command) SetVersion(human, machine string) {
	cmd.version = human
	cmd.machineVersion = machine
}

// FlagSet returns the command's flag set.
// This can be used to add additional command line arguments.
func (cmd *Command) FlagSet() *flag.FlagSet {
	return cmd.flags.fs
}

func (cmd *Command) initFlagSet(name string) {
	flags := flag.NewFlagSet(name, flag.ContinueOnError)
	cmd.flags.fs = flags
	flags.Usage = usage(name, flags)

	flags.BoolVar(&cmd.flags.printVersion, "version", false, "Print version and exit")
	flags.StringVar(&cmd.flags.formatter, "f", "text", "Output `format` (valid choices are 'text', 'json', 'yaml' and 'null')")
	flags.StringVar(&cmd.flags.configDir, "config", ".", "Look for cse.conf in `dir` and its parents")
	flags.BoolVar(&cmd.flags.debug, "debug", false, "Trace the pass's decisions and verify every patched method")
	flags.IntVar(&cmd.flags.traceLevel, "trace-level", 1, "Verbosity `level` of -debug output")
	flags.BoolVar(&cmd.flags.runtimeAssertions, "runtime-assertions", false, "Keep eliminated instructions and trap if they disagree with the forwarded value")
	flags.BoolVar(&cmd.flags.printCode, "print", false, "Include listings of modified methods in the report")
	flags.IntVar(&cmd.flags.workers, "workers", 0, "Number of methods to process concurrently, 0 meaning one per CPU")
	flags.Var(&cmd.flags.pure, "pure", "Comma-separated list of additional pure `methods`")
	flags.Var(&cmd.flags.safe, "safe", "Comma-separated list of additional safe `methods`")

	flags.StringVar(&cmd.flags.debugCpuprofile, "debug.cpuprofile", "", "Write CPU profile to `file`")
	flags.StringVar(&cmd.flags.debugMemprofile, "debug.memprofile", "", "Write memory profile to `file`")
	flags.BoolVar(&cmd.flags.debugVersion, "debug.version", false, "Print detailed version information about this program")
	flags.StringVar(&cmd.flags.debugTrace, "debug.trace", "", "Write trace to `file`")
}

type list []string

func (list *list) String() string {
	return `"` + strings.Join(*list, ",") + `"`
}

func (list *list) Set(s string) error {
	if s == "" {
		*list = nil
		return nil
	}

	*list = strings.Split(s, ",")
	return nil
}

// ParseFlags parses command line flags.
// It must be called before calling Run.
// After calling ParseFlags, the values of flags can be accessed.
//
// Example:
//
//	cmd.ParseFlags(os.Args[1:])
func (cmd *Command) ParseFlags(args []string) error {
	return cmd.flags.fs.Parse(args)
}

// Run optimizes the program files named on the command line and
// reports what was eliminated.
// It always calls os.Exit and does not return.
func (cmd *Command) Run() {
	exit := func(code int) {
		if cmd.flags.debugCpuprofile != "" {
			pprof.StopCPUProfile()
		}
		if path := cmd.flags.debugMemprofile; path != "" {
			f, err := os.Create(path)
			if err != nil {
				panic(err)
			}
			runtime.GC()
			pprof.WriteHeapProfile(f)
		}
		if cmd.flags.debugTrace != "" {
			rtrace.Stop()
		}
		os.Exit(code)
	}
	if path := cmd.flags.debugCpuprofile; path != "" {
		f, err := os.Create(path)
		if err != nil {
			log.Fatal(err)
		}
		pprof.StartCPUProfile(f)
	}
	if path := cmd.flags.debugTrace; path != "" {
		f, err := os.Create(path)
		if err != nil {
			log.Fatal(err)
		}
		rtrace.Start(f)
	}

	exit(cmd.run())
}

// run does the work of Run and returns the exit status.
func (cmd *Command) run() int {
	if cmd.flags.debugVersion {
		version.Verbose(cmd.stdout, cmd.version, cmd.machineVersion)
		return 0
	}
	if cmd.flags.printVersion {
		version.Print(cmd.stdout, cmd.version, cmd.machineVersion)
		return 0
	}

	var f formatter
	switch cmd.flags.formatter {
	case "text":
		f = textFormatter{W: cmd.stdout}
	case "json":
		f = jsonFormatter{W: cmd.stdout}
	case "yaml":
		f = yamlFormatter{W: cmd.stdout}
	case "null":
		f = nullFormatter{}
	default:
		fmt.Fprintf(cmd.stderr, "unsupported output format %q\n", cmd.flags.formatter)
		return 2
	}

	args := cmd.flags.fs.Args()
	if len(args) == 0 {
		cmd.flags.fs.SetOutput(cmd.stderr)
		cmd.flags.fs.Usage()
		return 2
	}

	cfg, err := config.Load(cmd.flags.configDir)
	if err != nil {
		fmt.Fprintln(cmd.stderr, err)
		return 1
	}
	cmd.applyFlags(&cfg.CSE)
	if cfg.CSE.Workers < 0 {
		fmt.Fprintf(cmd.stderr, "invalid value %d for flag -workers\n", cfg.CSE.Workers)
		return 2
	}

	prog, err := irtext.Load(args...)
	if err != nil {
		fmt.Fprintln(cmd.stderr, err)
		return 1
	}

	var tr *trace.Logger
	if cfg.CSE.Debug {
		tr = trace.New(cmd.stderr, cfg.CSE.TraceLevel)
	}
	pass := &cse.Pass{
		Config: cse.Config{
			PureMethods:       cfg.CSE.PureMethods,
			SafeMethods:       cfg.CSE.SafeMethods,
			RuntimeAssertions: cfg.CSE.RuntimeAssertions,
			Debug:             cfg.CSE.Debug,
			Workers:           cfg.CSE.Workers,
		},
		Trace: tr,
	}
	res, err := pass.Run(prog)
	if err != nil {
		fmt.Fprintln(cmd.stderr, err)
		return 1
	}

	if err := f.Format(cmd.newReport(res)); err != nil {
		fmt.Fprintln(cmd.stderr, "error writing report:", err)
		return 1
	}
	return 0
}

// applyFlags overrides the configuration with the flags that were set
// explicitly.
func (cmd *Command) applyFlags(cfg *config.CSEConfig) {
	cmd.flags.fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "debug":
			cfg.Debug = cmd.flags.debug
		case "trace-level":
			cfg.TraceLevel = cmd.flags.traceLevel
		case "runtime-assertions":
			cfg.RuntimeAssertions = cmd.flags.runtimeAssertions
		case "workers":
			cfg.Workers = cmd.flags.workers
		case "pure":
			cfg.PureMethods = append(cfg.PureMethods, cmd.flags.pure...)
		case "safe":
			cfg.SafeMethods = append(cfg.SafeMethods, cmd.flags.safe...)
		}
	})
}

func (cmd *Command) newReport(res *cse.Result) *report {
	r := &report{}
	res.Report(&r.Metrics)
	for _, b := range res.Barriers {
		r.Barriers = append(r.Barriers, barrierEntry{Barrier: b.Barrier.String(), Count: b.Count})
	}
	for _, m := range res.Changed {
		c := changedMethod{Method: m.String()}
		if cmd.flags.printCode {
			var buf bytes.Buffer
			ir.WriteCode(&buf, m.Code)
			c.Code = buf.String()
		}
		r.Changed = append(r.Changed, c)
	}
	return r
}

func usage(name string, fs *flag.FlagSet) func() {
	return func() {
		fmt.Fprintf(fs.Output(), "Usage: %s [flags] <program files>\n", name)

		fmt.Fprintln(fs.Output())
		fmt.Fprintln(fs.Output(), "Flags:")
		printDefaults(fs)

		fmt.Fprintln(fs.Output())
		fmt.Fprintln(fs.Output(), "Settings not given as flags are read from cse.conf.")
	}
}

// isZeroValue determines whether the string represents the zero
// value for a flag.
//
// this function has been copied from the Go standard library's 'flag' package.
func isZeroValue(f *flag.Flag, value string) bool {
	// Build a zero value of the flag's Value type, and see if the
	// result of calling its String method equals the value passed in.
	// This works unless the Value type is itself an interface type.
	typ := reflect.TypeOf(f.Value)
	var z reflect.Value
	if typ.Kind() == reflect.Ptr {
		z = reflect.New(typ.Elem())
	} else {
		z = reflect.Zero(typ)
	}
	return value == z.Interface().(flag.Value).String()
}

// this function has been copied from the Go standard library's 'flag' package and modified to skip debug flags.
func printDefaults(fs *flag.FlagSet) {
	fs.VisitAll(func(f *flag.Flag) {
		// Don't print debug flags
		if strings.HasPrefix(f.Name, "debug.") {
			return
		}

		var b strings.Builder
		fmt.Fprintf(&b, "  -%s", f.Name) // Two spaces before -; see next two comments.
		name, usage := flag.UnquoteUsage(f)
		if len(name) > 0 {
			b.WriteString(" ")
			b.WriteString(name)
		}
		// Boolean flags of one ASCII letter are so common we
		// treat them specially, putting their usage on the same line.
		if b.Len() <= 4 { // space, space, '-', 'x'.
			b.WriteString("\t")
		} else {
			// Four spaces before the tab triggers good alignment
			// for both 4- and 8-space tab stops.
			b.WriteString("\n    \t")
		}
		b.WriteString(strings.ReplaceAll(usage, "\n", "\n    \t"))

		if !isZeroValue(f, f.DefValue) {
			if T := reflect.TypeOf(f.Value); T.Name() == "*stringValue" && T.PkgPath() == "flag" {
				// put quotes on the value
				fmt.Fprintf(&b, " (default %q)", f.DefValue)
			} else {
				fmt.Fprintf(&b, " (default %v)", f.DefValue)
			}
		}
		fmt.Fprint(fs.Output(), b.String(), "\n")
	})
}
