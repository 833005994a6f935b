// Command benchmark runs the timing benchmark harness on the out-of-order
// Thumb core.
//
// Usage:
//
//	go run ./cmd/benchmark [flags]
//
// Flags:
//
//	-csv        Output results in CSV format (default: human-readable)
//	-json       Output results as a JSON report
//	-policy     Branch prediction policy: taken, untaken or bimodal
//	-no-dcache  Disable data cache simulation
//	-core       Run only the core benchmarks
//
// Example:
//
//	# Compare prediction policies
//	go run ./cmd/benchmark -policy untaken -csv > untaken.csv
//	go run ./cmd/benchmark -policy bimodal -csv > bimodal.csv
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/thumbsim/benchmarks"
	"github.com/sarchlab/thumbsim/timing/latency"
	"github.com/sarchlab/thumbsim/timing/ooo"
)

func main() {
	csvOutput := flag.Bool("csv", false, "Output results in CSV format")
	jsonOutput := flag.Bool("json", false, "Output results as a JSON report")
	policyName := flag.String("policy", "bimodal", "Branch prediction policy: taken, untaken or bimodal")
	configPath := flag.String("config", "", "Path to timing configuration JSON file")
	robSize := flag.Int("rob", 0, "Reorder buffer entries (0 keeps the default)")
	noDCache := flag.Bool("no-dcache", false, "Disable data cache simulation")
	coreOnly := flag.Bool("core", false, "Run only the core benchmarks")
	verbose := flag.Bool("v", false, "Print stall breakdowns")
	flag.Parse()

	log := logrus.New()
	log.SetOutput(os.Stderr)

	policy, err := ooo.ParsePolicy(*policyName)
	if err != nil {
		log.WithError(err).Fatal("invalid flags")
	}

	config := benchmarks.DefaultConfig()
	config.Policy = policy
	config.EnableDCache = !*noDCache
	config.Verbose = *verbose
	config.Output = os.Stdout
	if *robSize > 0 {
		config.Engine.ROBSize = *robSize
	}
	if *configPath != "" {
		config.Timing, err = latency.LoadConfig(*configPath)
		if err != nil {
			log.WithError(err).Fatal("loading timing config")
		}
	}

	harness := benchmarks.NewHarness(config)
	if *coreOnly {
		harness.AddBenchmarks(benchmarks.GetCoreBenchmarks())
	} else {
		harness.AddBenchmarks(benchmarks.GetMicrobenchmarks())
	}

	human := !*csvOutput && !*jsonOutput
	if human {
		fmt.Println("Thumb OoO Timing Benchmark Harness")
		fmt.Println("==================================")
		fmt.Printf("Policy:   %v\n", config.Policy)
		fmt.Printf("D-Cache:  %v\n", config.EnableDCache)
		fmt.Printf("ROB size: %d\n", config.Engine.ROBSize)
		fmt.Println("")
	}

	results := harness.RunAll()

	switch {
	case *jsonOutput:
		if err := harness.PrintJSON(results); err != nil {
			log.WithError(err).Fatal("writing report")
		}
	case *csvOutput:
		harness.PrintCSV(results)
	default:
		harness.PrintResults(results)
	}

	failed := 0
	for _, r := range results {
		if !r.Passed {
			failed++
			log.WithFields(logrus.Fields{
				"benchmark": r.Name,
				"exit":      r.ExitCode,
				"error":     r.Error,
			}).Error("benchmark failed")
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}
