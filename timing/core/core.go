// Package core provides the CPU façade used by the command line and the
// benchmarks. It runs either the out-of-order engine or the functional
// emulator behind the same interface.
package core

import (
	"fmt"
	"io"

	"github.com/sarchlab/thumbsim/emu"
	"github.com/sarchlab/thumbsim/insts"
	"github.com/sarchlab/thumbsim/timing/ooo"
)

// ErrMaxCycles is returned by Run when the cycle limit is reached. It is
// the engine's own sentinel.
var ErrMaxCycles = ooo.ErrMaxCycles

// Stats holds performance statistics for a CPU.
type Stats struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Instructions is the number of instructions retired.
	Instructions uint64
	// MicroOps is the number of micro-ops retired.
	MicroOps uint64
	// Mispredictions is the number of committed branches predicted wrongly.
	Mispredictions uint64
	// CorrectPredictions is the number of committed branches predicted
	// correctly.
	CorrectPredictions uint64
	// Flushes is the number of pipeline flushes.
	Flushes uint64
	// Stalls is the number of stall events of every kind.
	Stalls uint64
}

// IPC returns the retired instructions per cycle.
func (s Stats) IPC() float64 {
	if s.Cycles == 0 {
		return 0
	}
	return float64(s.Instructions) / float64(s.Cycles)
}

// Accuracy returns the branch prediction accuracy as a percentage.
func (s Stats) Accuracy() float64 {
	total := s.Mispredictions + s.CorrectPredictions
	if total == 0 {
		return 0
	}
	return float64(s.CorrectPredictions) / float64(total) * 100
}

// CPU is a processor model advanced one cycle at a time.
type CPU interface {
	Tick() error
	Halted() bool
	ExitCode() int32
	Render(w io.Writer) error
	Stats() Stats
}

// OutOfOrder adapts the out-of-order engine to CPU.
type OutOfOrder struct {
	*ooo.Engine
}

// NewOutOfOrder creates an out-of-order CPU.
func NewOutOfOrder(regs *emu.RegFile, mem *emu.Memory, opts ...ooo.Option) (*OutOfOrder, error) {
	engine, err := ooo.New(regs, mem, opts...)
	if err != nil {
		return nil, err
	}
	return &OutOfOrder{Engine: engine}, nil
}

// Stats summarizes the engine statistics.
func (c *OutOfOrder) Stats() Stats {
	s := c.Engine.Stats()
	out := Stats{
		Cycles:             s.Cycles,
		Instructions:       s.Instructions,
		MicroOps:           s.MicroOps,
		Mispredictions:     s.Mispredictions,
		CorrectPredictions: s.CorrectPredictions,
		Flushes:            s.Flushes,
	}
	for _, n := range s.Stalls {
		out.Stalls += n
	}
	return out
}

// Functional adapts the emulator to CPU. Every tick executes one
// instruction.
type Functional struct {
	emu    *emu.Emulator
	cycles uint64
	err    error
}

// NewFunctional creates a functional CPU running the program in mem from
// entry.
func NewFunctional(entry uint32, mem *emu.Memory, opts ...emu.EmulatorOption) *Functional {
	e := emu.NewEmulator(opts...)
	e.LoadProgram(entry, mem)
	return &Functional{emu: e}
}

// Emulator returns the wrapped emulator.
func (c *Functional) Emulator() *emu.Emulator { return c.emu }

// Tick executes one instruction.
func (c *Functional) Tick() error {
	if c.err != nil {
		return c.err
	}
	if c.emu.Halted() {
		return nil
	}

	c.cycles++
	if res := c.emu.Step(); res.Err != nil {
		c.err = res.Err
	}
	return c.err
}

// Halted reports whether the program has exited.
func (c *Functional) Halted() bool { return c.emu.Halted() }

// ExitCode returns the exit status.
func (c *Functional) ExitCode() int32 { return c.emu.ExitCode() }

// Stats returns the instruction count; the emulator retires one
// instruction per cycle.
func (c *Functional) Stats() Stats {
	n := c.emu.InstructionCount()
	return Stats{Cycles: c.cycles, Instructions: n, MicroOps: n}
}

// Render writes the architectural registers.
func (c *Functional) Render(w io.Writer) error {
	regs := c.emu.RegFile()
	for r := uint8(0); r < 16; r++ {
		sep := "  "
		if r%4 == 3 {
			sep = "\n"
		}
		if _, err := fmt.Fprintf(w, "%-3s 0x%08x%s", insts.RegName(r), regs.R[r], sep); err != nil {
			return err
		}
	}
	f := regs.APSR
	_, err := fmt.Fprintf(w, "N=%d Z=%d C=%d V=%d\n", b2i(f.N), b2i(f.Z), b2i(f.C), b2i(f.V))
	return err
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Core drives a CPU.
type Core struct {
	cpu CPU
}

// NewCore creates a new Core around cpu.
func NewCore(cpu CPU) *Core {
	return &Core{cpu: cpu}
}

// CPU returns the driven processor.
func (c *Core) CPU() CPU { return c.cpu }

// Tick advances the CPU by one cycle.
func (c *Core) Tick() error { return c.cpu.Tick() }

// Halted returns true if the program has exited.
func (c *Core) Halted() bool { return c.cpu.Halted() }

// ExitCode returns the exit code if the core has halted.
func (c *Core) ExitCode() int32 { return c.cpu.ExitCode() }

// Stats returns performance statistics for the core.
func (c *Core) Stats() Stats { return c.cpu.Stats() }

// Run executes the core until it halts, fails or runs maxCycles cycles.
// maxCycles of 0 means no limit. Returns the exit code.
func (c *Core) Run(maxCycles uint64) (int32, error) {
	for n := uint64(0); !c.cpu.Halted(); n++ {
		if maxCycles > 0 && n >= maxCycles {
			return -1, fmt.Errorf("%w (%d)", ErrMaxCycles, maxCycles)
		}
		if err := c.cpu.Tick(); err != nil {
			return -1, err
		}
	}
	return c.cpu.ExitCode(), nil
}

// RunCycles executes the core for the specified number of cycles.
// Returns true if still running, false if halted.
func (c *Core) RunCycles(cycles uint64) (bool, error) {
	for i := uint64(0); i < cycles && !c.cpu.Halted(); i++ {
		if err := c.cpu.Tick(); err != nil {
			return false, err
		}
	}
	return !c.cpu.Halted(), nil
}
