// Package latency provides instruction timing models for cycle-level
// simulation.
//
// Every micro-op has a fixed latency determined by its functional unit
// class and, within the ALU/shift class, by whether it is a shift. The
// values can be configured via TimingConfig.
package latency

import (
	"github.com/sarchlab/thumbsim/insts"
)

// Table provides instruction latency lookups.
type Table struct {
	config *TimingConfig
}

// NewTable creates a new latency table with default timing values.
func NewTable() *Table {
	return &Table{
		config: DefaultTimingConfig(),
	}
}

// NewTableWithConfig creates a new latency table with custom timing configuration.
func NewTableWithConfig(config *TimingConfig) *Table {
	return &Table{
		config: config,
	}
}

// Latency returns the execution latency in cycles of an operation of the
// given class.
func (t *Table) Latency(class insts.Class, op insts.Op) uint64 {
	switch class {
	case insts.ClassALUShift:
		if isShift(op) {
			return t.config.ShiftLatency
		}
		return t.config.ALULatency

	case insts.ClassMul:
		return t.config.MultiplyLatency

	case insts.ClassLoadStore:
		if IsStoreOp(op) {
			return t.config.StoreLatency
		}
		return t.config.LoadLatency

	case insts.ClassControl:
		if op == insts.OpSVC {
			return t.config.SyscallLatency
		}
		return t.config.BranchLatency

	default:
		return 1
	}
}

// GetLatency returns the execution latency in cycles for the given
// instruction, or 1 for instructions without a functional unit.
func (t *Table) GetLatency(inst *insts.Instruction) uint64 {
	if inst == nil {
		return 1
	}

	class, err := insts.ClassOf(inst.Op)
	if err != nil {
		return 1
	}
	return t.Latency(class, inst.Op)
}

// FlushDelay returns the number of cycles fetch waits after a flush.
func (t *Table) FlushDelay() uint64 {
	return t.config.FlushDelay
}

func isShift(op insts.Op) bool {
	switch op {
	case insts.OpLSL, insts.OpLSR, insts.OpASR, insts.OpROR:
		return true
	default:
		return false
	}
}

// IsLoadOp returns true if the micro-op reads memory.
func IsLoadOp(op insts.Op) bool {
	switch op {
	case insts.OpLDR, insts.OpLDRH, insts.OpLDRB, insts.OpLDRSH, insts.OpLDRSB, insts.OpSetPC:
		return true
	default:
		return false
	}
}

// IsStoreOp returns true if the micro-op writes memory.
func IsStoreOp(op insts.Op) bool {
	switch op {
	case insts.OpSTR, insts.OpSTRH, insts.OpSTRB:
		return true
	default:
		return false
	}
}

// IsBranchOp returns true if the micro-op may redirect the PC.
func IsBranchOp(op insts.Op) bool {
	switch op {
	case insts.OpB, insts.OpBL, insts.OpBX, insts.OpBLX, insts.OpSetPC:
		return true
	default:
		return false
	}
}

// Config returns the current timing configuration.
func (t *Table) Config() *TimingConfig {
	return t.config
}
