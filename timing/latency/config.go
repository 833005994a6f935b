package latency

import (
	"encoding/json"
	"fmt"
	"os"
)

// TimingConfig holds latency values for the functional unit classes.
// Values are cycles between an operation starting execution and its result
// becoming eligible for broadcast.
type TimingConfig struct {
	// ALULatency is the execution latency for arithmetic, logical, move,
	// extend and byte-reverse operations. Default: 1 cycle.
	ALULatency uint64 `json:"alu_latency"`

	// ShiftLatency is the execution latency for LSL, LSR, ASR and ROR.
	// Default: 1 cycle.
	ShiftLatency uint64 `json:"shift_latency"`

	// MultiplyLatency is the latency of the 32-bit truncating multiply.
	// Default: 2 cycles.
	MultiplyLatency uint64 `json:"multiply_latency"`

	// LoadLatency is the latency of a load once it leaves the load queue,
	// not counting cache effects. Default: 1 cycle.
	LoadLatency uint64 `json:"load_latency"`

	// StoreLatency is the latency of a store address calculation.
	// Default: 1 cycle.
	StoreLatency uint64 `json:"store_latency"`

	// BranchLatency is the execution latency for branch resolution.
	// Default: 1 cycle.
	BranchLatency uint64 `json:"branch_latency"`

	// SyscallLatency is the execution latency for supervisor calls.
	// Default: 1 cycle.
	SyscallLatency uint64 `json:"syscall_latency"`

	// FlushDelay is the number of cycles fetch waits after a pipeline
	// flush before it resumes at the corrected PC. Default: 2 cycles.
	FlushDelay uint64 `json:"flush_delay"`
}

// DefaultTimingConfig returns a TimingConfig with the default values.
func DefaultTimingConfig() *TimingConfig {
	return &TimingConfig{
		ALULatency:      1,
		ShiftLatency:    1,
		MultiplyLatency: 2,
		LoadLatency:     1,
		StoreLatency:    1,
		BranchLatency:   1,
		SyscallLatency:  1,
		FlushDelay:      2,
	}
}

// LoadConfig loads a TimingConfig from a JSON file. Fields missing from
// the file keep their default values.
func LoadConfig(path string) (*TimingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timing config file: %w", err)
	}

	config := DefaultTimingConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse timing config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid timing config %s: %w", path, err)
	}

	return config, nil
}

// SaveConfig writes a TimingConfig to a JSON file.
func (c *TimingConfig) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize timing config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write timing config file: %w", err)
	}

	return nil
}

// Validate checks that all latency values are valid (> 0). The flush
// delay may be zero.
func (c *TimingConfig) Validate() error {
	if c.ALULatency == 0 {
		return fmt.Errorf("alu_latency must be > 0")
	}
	if c.ShiftLatency == 0 {
		return fmt.Errorf("shift_latency must be > 0")
	}
	if c.MultiplyLatency == 0 {
		return fmt.Errorf("multiply_latency must be > 0")
	}
	if c.LoadLatency == 0 {
		return fmt.Errorf("load_latency must be > 0")
	}
	if c.StoreLatency == 0 {
		return fmt.Errorf("store_latency must be > 0")
	}
	if c.BranchLatency == 0 {
		return fmt.Errorf("branch_latency must be > 0")
	}
	if c.SyscallLatency == 0 {
		return fmt.Errorf("syscall_latency must be > 0")
	}
	return nil
}

// Clone returns a copy of the TimingConfig.
func (c *TimingConfig) Clone() *TimingConfig {
	clone := *c
	return &clone
}
