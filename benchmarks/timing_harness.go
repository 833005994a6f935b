// Package benchmarks provides timing benchmark infrastructure for the
// out-of-order Thumb core.
package benchmarks

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sarchlab/thumbsim/emu"
	"github.com/sarchlab/thumbsim/insts"
	"github.com/sarchlab/thumbsim/timing/cache"
	"github.com/sarchlab/thumbsim/timing/latency"
	"github.com/sarchlab/thumbsim/timing/ooo"
)

// BenchmarkResult holds the timing results for a single benchmark run.
type BenchmarkResult struct {
	// Name identifies the benchmark
	Name string `json:"name"`

	// Description explains what the benchmark measures
	Description string `json:"description"`

	// Policy is the branch prediction policy used
	Policy string `json:"policy"`

	// SimulatedCycles is the total cycle count from the timing simulator
	SimulatedCycles uint64 `json:"simulated_cycles"`

	// InstructionsRetired is the number of committed instructions
	InstructionsRetired uint64 `json:"instructions_retired"`

	// MicroOpsRetired is the number of committed micro-ops
	MicroOpsRetired uint64 `json:"micro_ops_retired"`

	// CPI is cycles per instruction
	CPI float64 `json:"cpi"`

	// IPC is instructions per cycle
	IPC float64 `json:"ipc"`

	// Stalls counts blocked cycles by reason
	Stalls map[string]uint64 `json:"stalls"`

	// PipelineFlushes is the number of recoveries
	PipelineFlushes uint64 `json:"pipeline_flushes"`

	// MaxROBOccupancy is the largest number of in-flight micro-ops
	MaxROBOccupancy int `json:"max_rob_occupancy"`

	// DCacheHits/Misses (if cache enabled)
	DCacheHits   uint64 `json:"dcache_hits,omitempty"`
	DCacheMisses uint64 `json:"dcache_misses,omitempty"`

	// Branch stats
	BranchCorrect         uint64  `json:"branch_correct,omitempty"`
	BranchMispredictions  uint64  `json:"branch_mispredictions,omitempty"`
	BranchAccuracyPercent float64 `json:"branch_accuracy_percent,omitempty"`

	// ExitCode is the program's exit code
	ExitCode int32 `json:"exit_code"`

	// Output is what the program printed
	Output string `json:"output,omitempty"`

	// Error is set when the run failed
	Error string `json:"error,omitempty"`

	// Passed reports whether exit code and output matched expectations
	Passed bool `json:"passed"`

	// OracleMatch reports whether the emulator reached the same final
	// registers, when validation is enabled
	OracleMatch *bool `json:"oracle_match,omitempty"`

	// WallTime is the actual time taken to run the simulation
	WallTime time.Duration `json:"wall_time_ns"`
}

// Benchmark defines a single benchmark program.
type Benchmark struct {
	// Name identifies the benchmark
	Name string

	// Description explains what the benchmark measures
	Description string

	// Program is the Thumb code, loaded at address 0
	Program Program

	// ExpectedExit is the expected exit code (for validation)
	ExpectedExit int32

	// ExpectedOutput is the expected program output (for validation)
	ExpectedOutput string
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// Policy is the branch prediction policy
	Policy ooo.Policy

	// EnableDCache enables data cache simulation
	EnableDCache bool

	// Engine holds the structural parameters of the core
	Engine ooo.Config

	// Timing holds instruction latencies; nil uses the defaults
	Timing *latency.TimingConfig

	// MaxCycles bounds each run; 0 means no limit
	MaxCycles uint64

	// ValidateAgainstEmulator runs the functional emulator on each
	// benchmark and compares the final registers
	ValidateAgainstEmulator bool

	// Output is where to write results (default: os.Stdout)
	Output io.Writer

	// Verbose enables detailed output
	Verbose bool
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		Policy:                  ooo.PolicyBimodal,
		EnableDCache:            true,
		Engine:                  ooo.DefaultConfig(),
		MaxCycles:               1_000_000,
		ValidateAgainstEmulator: true,
		Output:                  os.Stdout,
	}
}

// Harness runs timing benchmarks and reports results.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	return &Harness{
		config:     config,
		benchmarks: []Benchmark{},
	}
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// RunAll executes all benchmarks and returns results.
func (h *Harness) RunAll() []BenchmarkResult {
	results := make([]BenchmarkResult, 0, len(h.benchmarks))

	for _, bench := range h.benchmarks {
		result := h.runBenchmark(bench)
		results = append(results, result)
	}

	return results
}

func (h *Harness) load(bench Benchmark) (*emu.RegFile, *emu.Memory, error) {
	memory := emu.NewMemory()
	if err := memory.LoadHalfwords(0, bench.Program); err != nil {
		return nil, nil, fmt.Errorf("load %s: %w", bench.Name, err)
	}
	regFile := &emu.RegFile{}
	regFile.R[insts.RegSP] = emu.DefaultRAMBase + emu.DefaultRAMSize
	return regFile, memory, nil
}

// runBenchmark executes a single benchmark.
func (h *Harness) runBenchmark(bench Benchmark) BenchmarkResult {
	result := BenchmarkResult{
		Name:        bench.Name,
		Description: bench.Description,
		Policy:      h.config.Policy.String(),
	}

	regFile, memory, err := h.load(bench)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	var out bytes.Buffer
	opts := []ooo.Option{
		ooo.WithConfig(h.config.Engine),
		ooo.WithPolicy(h.config.Policy),
		ooo.WithStdout(&out),
	}
	if h.config.Timing != nil {
		opts = append(opts, ooo.WithTimingConfig(h.config.Timing))
	}
	if h.config.EnableDCache {
		opts = append(opts, ooo.WithDCache(cache.DefaultL1DConfig()))
	}

	engine, err := ooo.New(regFile, memory, opts...)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	// Run simulation and measure time
	start := time.Now()
	exitCode, runErr := engine.Run(h.config.MaxCycles)
	result.WallTime = time.Since(start)

	stats := engine.Stats()
	result.SimulatedCycles = stats.Cycles
	result.InstructionsRetired = stats.Instructions
	result.MicroOpsRetired = stats.MicroOps
	result.CPI = stats.CPI()
	result.IPC = stats.IPC()
	result.PipelineFlushes = stats.Flushes
	result.MaxROBOccupancy = stats.MaxROBOccupancy
	result.BranchCorrect = stats.CorrectPredictions
	result.BranchMispredictions = stats.Mispredictions
	result.BranchAccuracyPercent = stats.Accuracy()
	result.Stalls = make(map[string]uint64)
	for _, reason := range ooo.StallReasons() {
		result.Stalls[reason.String()] = stats.Stall(reason)
	}
	if dc, ok := engine.DCacheStats(); ok {
		result.DCacheHits = dc.Hits
		result.DCacheMisses = dc.Misses
	}

	result.ExitCode = exitCode
	result.Output = out.String()
	if runErr != nil {
		result.Error = runErr.Error()
		return result
	}
	result.Passed = exitCode == bench.ExpectedExit && result.Output == bench.ExpectedOutput

	if h.config.ValidateAgainstEmulator {
		match := h.matchesEmulator(bench, engine.Registers())
		result.OracleMatch = &match
		result.Passed = result.Passed && match
	}

	return result
}

// matchesEmulator runs the benchmark on the functional emulator and
// compares its final registers with the timing model's.
func (h *Harness) matchesEmulator(bench Benchmark, final emu.RegFile) bool {
	regFile, memory, err := h.load(bench)
	if err != nil {
		return false
	}

	e := emu.NewEmulator(
		emu.WithStdout(io.Discard),
		emu.WithStackPointer(regFile.SP()),
		emu.WithMaxInstructions(h.config.MaxCycles),
	)
	e.LoadProgram(0, memory)
	if _, err := e.Run(); err != nil {
		return false
	}

	ref := e.RegFile()
	for r := uint8(0); r < insts.RegPC; r++ {
		if ref.Get(r) != final.Get(r) {
			return false
		}
	}
	return ref.APSR == final.APSR
}

// PrintResults outputs benchmark results in a human-readable format.
func (h *Harness) PrintResults(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output, "=== Thumb OoO Timing Benchmark Results ===")
	_, _ = fmt.Fprintln(h.config.Output, "")

	for _, r := range results {
		status := "PASS"
		if !r.Passed {
			status = "FAIL"
		}
		_, _ = fmt.Fprintf(h.config.Output, "Benchmark: %s [%s]\n", r.Name, status)
		_, _ = fmt.Fprintf(h.config.Output, "  Description: %s\n", r.Description)
		_, _ = fmt.Fprintf(h.config.Output, "  Policy: %s\n", r.Policy)
		_, _ = fmt.Fprintf(h.config.Output, "  Exit Code: %d\n", r.ExitCode)
		if r.Error != "" {
			_, _ = fmt.Fprintf(h.config.Output, "  Error: %s\n", r.Error)
		}
		_, _ = fmt.Fprintln(h.config.Output, "  --- Timing ---")
		_, _ = fmt.Fprintf(h.config.Output, "  Simulated Cycles:     %d\n", r.SimulatedCycles)
		_, _ = fmt.Fprintf(h.config.Output, "  Instructions Retired: %d\n", r.InstructionsRetired)
		_, _ = fmt.Fprintf(h.config.Output, "  Micro-ops Retired:    %d\n", r.MicroOpsRetired)
		_, _ = fmt.Fprintf(h.config.Output, "  CPI:                  %.3f\n", r.CPI)
		_, _ = fmt.Fprintf(h.config.Output, "  Pipeline Flushes:     %d\n", r.PipelineFlushes)
		_, _ = fmt.Fprintf(h.config.Output, "  Max ROB Occupancy:    %d\n", r.MaxROBOccupancy)

		if h.config.Verbose {
			_, _ = fmt.Fprintln(h.config.Output, "  --- Stalls ---")
			for _, reason := range ooo.StallReasons() {
				_, _ = fmt.Fprintf(h.config.Output, "  %-18s %d\n", reason.String()+":", r.Stalls[reason.String()])
			}
		}

		if r.DCacheHits > 0 || r.DCacheMisses > 0 {
			_, _ = fmt.Fprintln(h.config.Output, "  --- D-Cache ---")
			_, _ = fmt.Fprintf(h.config.Output, "  Hits:   %d\n", r.DCacheHits)
			_, _ = fmt.Fprintf(h.config.Output, "  Misses: %d\n", r.DCacheMisses)
		}

		if r.BranchCorrect > 0 || r.BranchMispredictions > 0 {
			_, _ = fmt.Fprintln(h.config.Output, "  --- Branch Prediction ---")
			_, _ = fmt.Fprintf(h.config.Output, "  Correct:         %d\n", r.BranchCorrect)
			_, _ = fmt.Fprintf(h.config.Output, "  Mispredictions:  %d\n", r.BranchMispredictions)
			_, _ = fmt.Fprintf(h.config.Output, "  Accuracy:        %.1f%%\n", r.BranchAccuracyPercent)
		}

		_, _ = fmt.Fprintf(h.config.Output, "  Wall Time: %v\n", r.WallTime)
		_, _ = fmt.Fprintln(h.config.Output, "")
	}
}

// PrintCSV outputs benchmark results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output,
		"name,policy,cycles,instructions,micro_ops,cpi,flushes,mispredictions,dcache_hits,dcache_misses,exit_code,passed")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "%s,%s,%d,%d,%d,%.3f,%d,%d,%d,%d,%d,%t\n",
			r.Name,
			r.Policy,
			r.SimulatedCycles,
			r.InstructionsRetired,
			r.MicroOpsRetired,
			r.CPI,
			r.PipelineFlushes,
			r.BranchMispredictions,
			r.DCacheHits,
			r.DCacheMisses,
			r.ExitCode,
			r.Passed,
		)
	}
}

// BenchmarkReport is the complete output format for benchmark results.
type BenchmarkReport struct {
	// Metadata about the benchmark run
	Metadata ReportMetadata `json:"metadata"`

	// Results is the list of individual benchmark results
	Results []BenchmarkResult `json:"results"`

	// Summary contains aggregate statistics
	Summary ReportSummary `json:"summary"`
}

// ReportMetadata contains information about the benchmark run.
type ReportMetadata struct {
	// Timestamp when the benchmark was run
	Timestamp string `json:"timestamp"`

	// Config describes the benchmark configuration
	Config BenchmarkConfig `json:"config"`
}

// BenchmarkConfig describes the harness configuration used.
type BenchmarkConfig struct {
	Policy        string `json:"policy"`
	DCacheEnabled bool   `json:"dcache_enabled"`
	ROBSize       int    `json:"rob_size"`
	IssueWidth    int    `json:"issue_width"`
	CommitWidth   int    `json:"commit_width"`
}

// ReportSummary contains aggregate statistics across all benchmarks.
type ReportSummary struct {
	// TotalBenchmarks is the number of benchmarks run
	TotalBenchmarks int `json:"total_benchmarks"`

	// Passed is the number of benchmarks that passed validation
	Passed int `json:"passed"`

	// TotalCycles is the sum of all simulated cycles
	TotalCycles uint64 `json:"total_cycles"`

	// TotalInstructions is the sum of all instructions retired
	TotalInstructions uint64 `json:"total_instructions"`

	// AverageCPI is the average cycles per instruction
	AverageCPI float64 `json:"average_cpi"`

	// TotalWallTime is the total wall clock time for all benchmarks
	TotalWallTime time.Duration `json:"total_wall_time_ns"`
}

// PrintJSON outputs benchmark results in JSON format for automated comparison.
func (h *Harness) PrintJSON(results []BenchmarkResult) error {
	var totalCycles, totalInstructions uint64
	var totalWallTime time.Duration
	passed := 0
	for _, r := range results {
		totalCycles += r.SimulatedCycles
		totalInstructions += r.InstructionsRetired
		totalWallTime += r.WallTime
		if r.Passed {
			passed++
		}
	}

	avgCPI := float64(0)
	if totalInstructions > 0 {
		avgCPI = float64(totalCycles) / float64(totalInstructions)
	}

	report := BenchmarkReport{
		Metadata: ReportMetadata{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Config: BenchmarkConfig{
				Policy:        h.config.Policy.String(),
				DCacheEnabled: h.config.EnableDCache,
				ROBSize:       h.config.Engine.ROBSize,
				IssueWidth:    h.config.Engine.IssueWidth,
				CommitWidth:   h.config.Engine.CommitWidth,
			},
		},
		Results: results,
		Summary: ReportSummary{
			TotalBenchmarks:   len(results),
			Passed:            passed,
			TotalCycles:       totalCycles,
			TotalInstructions: totalInstructions,
			AverageCPI:        avgCPI,
			TotalWallTime:     totalWallTime,
		},
	}

	encoder := json.NewEncoder(h.config.Output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
