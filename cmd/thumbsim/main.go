// Command thumbsim runs ARM Thumb ELF programs on a cycle-level
// out-of-order core, or on the functional emulator with -emu.
//
// Usage:
//
//	thumbsim [flags] <program.elf>
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/thumbsim/emu"
	"github.com/sarchlab/thumbsim/insts"
	"github.com/sarchlab/thumbsim/loader"
	"github.com/sarchlab/thumbsim/statsview"
	"github.com/sarchlab/thumbsim/timing/cache"
	"github.com/sarchlab/thumbsim/timing/core"
	"github.com/sarchlab/thumbsim/timing/latency"
	"github.com/sarchlab/thumbsim/timing/ooo"
	"github.com/sarchlab/thumbsim/trace"
)

var (
	configPath  = flag.String("config", "", "Path to timing configuration JSON file")
	policyName  = flag.String("policy", "untaken", "Branch prediction policy: taken, untaken or bimodal")
	robSize     = flag.Int("rob", 0, "Reorder buffer entries (0 keeps the default)")
	maxCycles   = flag.Uint64("max-cycles", 0, "Stop after this many cycles (0 = unlimited)")
	tracePath   = flag.String("trace", "", "Write a commit trace to this file")
	traceFormat = flag.String("trace-format", "text", "Commit trace format: text or json")
	functional  = flag.Bool("emu", false, "Run the functional emulator instead of the timing model")
	step        = flag.Bool("step", false, "Single-step the core, printing its state every cycle")
	dcache      = flag.Bool("dcache", false, "Simulate an L1 data cache")
	stats       = flag.Bool("statsview", false, "Serve runtime statistics (needs -tags statsview)")
	statsAddr   = flag.String("statsview-addr", statsview.DefaultAddr, "Listen address for -statsview")
	verbose     = flag.Bool("v", false, "Verbose output")
)

// options holds the parsed command line.
type options struct {
	timing      *latency.TimingConfig
	policy      ooo.Policy
	robSize     int
	maxCycles   uint64
	tracePath   string
	traceFormat trace.Format
	functional  bool
	dcache      bool
	log         *logrus.Logger
	verbose     bool
}

func main() {
	flag.Parse()

	log := logrus.New()
	log.SetOutput(os.Stderr)
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	opts, err := parseOptions(log)
	if err != nil {
		fatal(log, err)
	}

	stopStats := func() {}
	if *stats {
		stopStats = statsview.Launch(*statsAddr, log)
	}

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: thumbsim [options] <program.elf>\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	programPath := flag.Arg(0)
	prog, err := loader.Load(programPath)
	if err != nil {
		fatal(log, err)
	}

	log.WithFields(logrus.Fields{
		"path":     programPath,
		"entry":    fmt.Sprintf("0x%08x", prog.EntryPoint),
		"sp":       fmt.Sprintf("0x%08x", prog.InitialSP),
		"segments": len(prog.Segments),
	}).Debug("loaded program")

	c, closeTrace, err := newCore(prog, opts, os.Stdout)
	if err != nil {
		fatal(log, err)
	}

	var exitCode int32
	if *step {
		exitCode, err = stepLoop(c, os.Stdin, os.Stdout, opts.maxCycles)
	} else {
		exitCode, err = c.Run(opts.maxCycles)
	}
	if cerr := closeTrace(); cerr != nil && err == nil {
		err = cerr
	}

	fmt.Println()
	report(os.Stdout, programPath, exitCode, c.Stats())

	if err != nil && !errors.Is(err, errQuit) {
		fatal(log, err)
	}
	stopStats()
	os.Exit(int(exitCode))
}

func parseOptions(log *logrus.Logger) (options, error) {
	opts := options{
		robSize:    *robSize,
		maxCycles:  *maxCycles,
		tracePath:  *tracePath,
		functional: *functional,
		dcache:     *dcache,
		log:        log,
		verbose:    *verbose,
	}

	var err error
	if opts.policy, err = ooo.ParsePolicy(*policyName); err != nil {
		return opts, err
	}
	if opts.traceFormat, err = trace.ParseFormat(*traceFormat); err != nil {
		return opts, err
	}

	if *configPath != "" {
		opts.timing, err = latency.LoadConfig(*configPath)
		if err != nil {
			return opts, fmt.Errorf("loading timing config: %w", err)
		}
	}

	return opts, nil
}

// newCore builds the CPU selected by opts with prog loaded. The returned
// function closes the commit trace, if any.
func newCore(prog *loader.Program, opts options, stdout io.Writer) (*core.Core, func() error, error) {
	noop := func() error { return nil }

	mem, err := prog.NewMemory()
	if err != nil {
		return nil, noop, err
	}

	if opts.functional {
		if opts.tracePath != "" {
			opts.log.Warn("commit traces need the timing model; -trace ignored")
		}
		cpu := core.NewFunctional(prog.EntryPoint, mem,
			emu.WithStdout(stdout),
			emu.WithStackPointer(prog.InitialSP),
		)
		return core.NewCore(cpu), noop, nil
	}

	regs := &emu.RegFile{}
	regs.R[insts.RegSP] = prog.InitialSP
	regs.R[insts.RegPC] = prog.EntryPoint

	config := ooo.DefaultConfig()
	if opts.robSize > 0 {
		config.ROBSize = opts.robSize
	}

	engineOpts := []ooo.Option{
		ooo.WithConfig(config),
		ooo.WithPolicy(opts.policy),
		ooo.WithStdout(stdout),
	}
	if opts.timing != nil {
		engineOpts = append(engineOpts, ooo.WithTimingConfig(opts.timing))
	}
	if opts.dcache {
		engineOpts = append(engineOpts, ooo.WithDCache(cache.DefaultL1DConfig()))
	}
	if opts.verbose {
		engineOpts = append(engineOpts, ooo.WithLogger(opts.log))
	}

	closeTrace := noop
	if opts.tracePath != "" {
		f, err := os.Create(opts.tracePath)
		if err != nil {
			return nil, noop, fmt.Errorf("creating trace: %w", err)
		}
		engineOpts = append(engineOpts, ooo.WithCommitObserver(trace.NewWriter(f, opts.traceFormat)))
		closeTrace = f.Close
	}

	cpu, err := core.NewOutOfOrder(regs, mem, engineOpts...)
	if err != nil {
		_ = closeTrace()
		return nil, noop, err
	}
	return core.NewCore(cpu), closeTrace, nil
}

// report prints the end-of-run summary.
func report(w io.Writer, programPath string, exitCode int32, stats core.Stats) {
	_, _ = fmt.Fprintf(w, "Program: %s\n", programPath)
	_, _ = fmt.Fprintf(w, "Exit code: %d\n", exitCode)
	_, _ = fmt.Fprintf(w, "Total Cycles: %d\n", stats.Cycles)
	_, _ = fmt.Fprintf(w, "Total Instructions: %d\n", stats.Instructions)
	_, _ = fmt.Fprintf(w, "Micro-ops: %d\n", stats.MicroOps)
	_, _ = fmt.Fprintf(w, "IPC: %.3f\n", stats.IPC())
	_, _ = fmt.Fprintf(w, "\n")
	_, _ = fmt.Fprintf(w, "Branch Prediction:\n")
	_, _ = fmt.Fprintf(w, "  Correct:        %d\n", stats.CorrectPredictions)
	_, _ = fmt.Fprintf(w, "  Mispredictions: %d\n", stats.Mispredictions)
	_, _ = fmt.Fprintf(w, "  Accuracy:       %.1f%%\n", stats.Accuracy())
	_, _ = fmt.Fprintf(w, "\n")
	_, _ = fmt.Fprintf(w, "Pipeline Events:\n")
	_, _ = fmt.Fprintf(w, "  Stalls:  %d\n", stats.Stalls)
	_, _ = fmt.Fprintf(w, "  Flushes: %d\n", stats.Flushes)
}

// fatal logs err with the failing instruction, when known, and exits.
func fatal(log *logrus.Logger, err error) {
	entry := log.WithError(err)

	var simErr *ooo.SimError
	if errors.As(err, &simErr) {
		entry = entry.WithField("pc", fmt.Sprintf("0x%08x", simErr.PC))
		if simErr.Inst != nil {
			entry = entry.WithField("inst", simErr.Inst.String())
		}
	}

	entry.Error("simulation failed")
	os.Exit(1)
}
