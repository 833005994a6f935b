package emu

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sarchlab/thumbsim/insts"
)

// ErrMaxInstructions is returned when the instruction limit is reached.
var ErrMaxInstructions = errors.New("max instructions reached")

// ErrBreakpoint is returned when a BKPT instruction executes.
var ErrBreakpoint = errors.New("breakpoint")

// StepResult represents the result of executing a single instruction.
type StepResult struct {
	// Exited is true if the program terminated (via SVC #0).
	Exited bool

	// ExitCode is the exit status if Exited is true.
	ExitCode int32

	// Err is set if an error occurred during execution.
	Err error
}

// Emulator executes Thumb instructions functionally, one instruction per
// step, in program order. It shares the decoder, expander and ALU with the
// timing model and serves as its reference.
type Emulator struct {
	regFile        *RegFile
	memory         *Memory
	decoder        *insts.Decoder
	syscallHandler SyscallHandler

	stdout io.Writer

	instructionCount uint64
	maxInstructions  uint64 // 0 means no limit

	halted   bool
	exitCode int32
}

// EmulatorOption is a functional option for configuring the Emulator.
type EmulatorOption func(*Emulator)

// WithStdout sets a custom stdout writer.
func WithStdout(w io.Writer) EmulatorOption {
	return func(e *Emulator) {
		e.stdout = w
	}
}

// WithSyscallHandler sets a custom syscall handler.
func WithSyscallHandler(handler SyscallHandler) EmulatorOption {
	return func(e *Emulator) {
		e.syscallHandler = handler
	}
}

// WithStackPointer sets the initial stack pointer value.
func WithStackPointer(sp uint32) EmulatorOption {
	return func(e *Emulator) {
		e.regFile.R[insts.RegSP] = sp
	}
}

// WithMaxInstructions sets the maximum number of instructions to execute.
// A value of 0 means no limit.
func WithMaxInstructions(max uint64) EmulatorOption {
	return func(e *Emulator) {
		e.maxInstructions = max
	}
}

// NewEmulator creates a new Thumb emulator over the default memory layout.
func NewEmulator(opts ...EmulatorOption) *Emulator {
	e := &Emulator{
		regFile: &RegFile{},
		memory:  NewMemory(),
		decoder: insts.NewDecoder(),
		stdout:  os.Stdout,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.syscallHandler == nil {
		e.syscallHandler = NewDefaultSyscallHandler(e.stdout)
	}

	return e
}

// RegFile returns the emulator's register file.
func (e *Emulator) RegFile() *RegFile {
	return e.regFile
}

// Memory returns the emulator's memory.
func (e *Emulator) Memory() *Memory {
	return e.memory
}

// InstructionCount returns the number of instructions executed.
func (e *Emulator) InstructionCount() uint64 {
	return e.instructionCount
}

// Halted reports whether the program has exited.
func (e *Emulator) Halted() bool {
	return e.halted
}

// ExitCode returns the exit status once halted.
func (e *Emulator) ExitCode() int32 {
	return e.exitCode
}

// LoadProgram installs memory and sets the entry point.
func (e *Emulator) LoadProgram(entry uint32, memory *Memory) {
	e.memory = memory
	e.regFile.R[insts.RegPC] = entry
}

// FetchWord reads the encoding at pc: one halfword, or two for 32-bit
// instructions with the second in the upper half.
func FetchWord(mem *Memory, pc uint32) (uint32, error) {
	hw, err := mem.Read16(pc)
	if err != nil {
		return 0, err
	}
	if !insts.IsWide(uint16(hw)) {
		return hw, nil
	}
	hw2, err := mem.Read16(pc + 2)
	if err != nil {
		return 0, err
	}
	return hw | hw2<<16, nil
}

// Step executes a single instruction.
func (e *Emulator) Step() StepResult {
	if e.halted {
		return StepResult{Exited: true, ExitCode: e.exitCode}
	}
	if e.maxInstructions > 0 && e.instructionCount >= e.maxInstructions {
		return StepResult{Err: ErrMaxInstructions}
	}

	pc := e.regFile.PC()
	word, err := FetchWord(e.memory, pc)
	if err != nil {
		return StepResult{Err: fmt.Errorf("fetch at 0x%08x: %w", pc, err)}
	}

	inst, err := e.decoder.Decode(word)
	if err != nil {
		return StepResult{Err: fmt.Errorf("decode at 0x%08x: %w", pc, err)}
	}

	next := pc + inst.Length
	for _, uop := range insts.Expand(inst) {
		result, target, err := e.execute(pc, uop.Inst)
		if err != nil {
			return StepResult{Err: fmt.Errorf("0x%08x %v: %w", pc, uop.Inst, err)}
		}
		if target != nil {
			next = *target
		}
		if result.Exited {
			e.instructionCount++
			e.halted = true
			e.exitCode = result.ExitCode
			return StepResult{Exited: true, ExitCode: result.ExitCode}
		}
	}

	e.regFile.R[insts.RegPC] = next
	e.instructionCount++
	return StepResult{}
}

// Run executes instructions until the program exits or an error occurs.
func (e *Emulator) Run() (int32, error) {
	for {
		result := e.Step()
		if result.Exited {
			return result.ExitCode, nil
		}
		if result.Err != nil {
			return -1, result.Err
		}
	}
}

func (e *Emulator) operands(pc uint32, inst *insts.Instruction) [insts.NumSources]uint32 {
	var vals [insts.NumSources]uint32
	for i, src := range insts.Sources(inst) {
		switch {
		case src.Kind == insts.SrcImm:
			vals[i] = src.Imm
		case src.Kind == insts.SrcReg && src.Reg == insts.RegPC:
			vals[i] = insts.PCOperand(inst, pc)
		case src.Kind == insts.SrcReg:
			vals[i] = e.regFile.Get(src.Reg)
		}
	}
	return vals
}

// execute runs one micro-op. A non-nil target redirects the PC.
func (e *Emulator) execute(pc uint32, inst *insts.Instruction) (SyscallResult, *uint32, error) {
	class, err := insts.ClassOf(inst.Op)
	if err != nil {
		return SyscallResult{}, nil, err
	}
	ops := e.operands(pc, inst)

	switch class {
	case insts.ClassALUShift, insts.ClassMul:
		res, err := ALU(inst.Op, ops[0], ops[1], ops[2] != 0)
		if err != nil {
			return SyscallResult{}, nil, err
		}
		if rd := insts.DestReg(inst); rd != insts.RegNone {
			e.regFile.Set(rd, res.Value)
		}
		e.regFile.ApplyFlags(res.Flags.Restrict(insts.FlagsWritten(inst)))
		return SyscallResult{}, nil, nil

	case insts.ClassLoadStore:
		addr := ops[0] + ops[1]
		if inst.IsStore() {
			return SyscallResult{}, nil, StoreValue(e.memory, inst.Op, addr, ops[2])
		}
		v, err := LoadValue(e.memory, inst.Op, addr)
		if err != nil {
			return SyscallResult{}, nil, err
		}
		if inst.Op == insts.OpSetPC {
			target := v &^ 1
			return SyscallResult{}, &target, nil
		}
		e.regFile.Set(inst.Rt, v)
		return SyscallResult{}, nil, nil
	}

	switch inst.Op {
	case insts.OpNOP:
		return SyscallResult{}, nil, nil
	case insts.OpBKPT:
		return SyscallResult{}, nil, fmt.Errorf("%w #%d", ErrBreakpoint, inst.Imm)
	case insts.OpSVC:
		res, err := e.syscallHandler.Handle(uint8(inst.Imm), e.regFile, e.memory)
		return res, nil, err
	}

	out, err := ResolveBranch(inst, pc, e.regFile.APSR, ops[1])
	if err != nil {
		return SyscallResult{}, nil, err
	}
	if rd := insts.DestReg(inst); rd != insts.RegNone {
		e.regFile.Set(rd, out.Link)
	}
	return SyscallResult{}, &out.Target, nil
}
