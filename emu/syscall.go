package emu

import (
	"errors"
	"fmt"
	"io"
)

// Supervisor call numbers, taken from the SVC immediate.
const (
	SyscallExit   uint8 = 0 // exit(r0)
	SyscallPuts   uint8 = 1 // puts(r0): print the NUL-terminated string at r0
	SyscallPutInt uint8 = 3 // putint(r0): print r0 as a signed decimal
)

// maxStringLength bounds the string printed by SyscallPuts.
const maxStringLength = 4096

// ErrUnsupportedSyscall is returned for unknown SVC numbers.
var ErrUnsupportedSyscall = errors.New("unsupported supervisor call")

// SyscallResult represents the result of a supervisor call.
type SyscallResult struct {
	// Exited is true if the call terminated the program.
	Exited bool

	// ExitCode is the exit status if Exited is true.
	ExitCode int32
}

// SyscallHandler is the interface for handling supervisor calls.
type SyscallHandler interface {
	// Handle performs the call numbered imm. Arguments are read from the
	// architectural registers, R0 first.
	Handle(imm uint8, regs *RegFile, mem *Memory) (SyscallResult, error)
}

// IsSupportedSyscall reports whether the default handler knows imm.
func IsSupportedSyscall(imm uint8) bool {
	switch imm {
	case SyscallExit, SyscallPuts, SyscallPutInt:
		return true
	}
	return false
}

// DefaultSyscallHandler implements exit, puts and putint.
type DefaultSyscallHandler struct {
	stdout io.Writer
}

// NewDefaultSyscallHandler creates a default syscall handler writing to
// stdout. A nil writer discards output.
func NewDefaultSyscallHandler(stdout io.Writer) *DefaultSyscallHandler {
	if stdout == nil {
		stdout = io.Discard
	}
	return &DefaultSyscallHandler{stdout: stdout}
}

// Handle performs the supervisor call.
func (h *DefaultSyscallHandler) Handle(imm uint8, regs *RegFile, mem *Memory) (SyscallResult, error) {
	switch imm {
	case SyscallExit:
		return SyscallResult{Exited: true, ExitCode: int32(regs.Get(0))}, nil
	case SyscallPuts:
		s, err := mem.ReadCString(regs.Get(0), maxStringLength)
		if err != nil {
			return SyscallResult{}, fmt.Errorf("puts: %w", err)
		}
		if _, err := io.WriteString(h.stdout, s); err != nil {
			return SyscallResult{}, fmt.Errorf("puts: %w", err)
		}
		return SyscallResult{}, nil
	case SyscallPutInt:
		if _, err := fmt.Fprintf(h.stdout, "%d", int32(regs.Get(0))); err != nil {
			return SyscallResult{}, fmt.Errorf("putint: %w", err)
		}
		return SyscallResult{}, nil
	}
	return SyscallResult{}, fmt.Errorf("%w: #%d", ErrUnsupportedSyscall, imm)
}
