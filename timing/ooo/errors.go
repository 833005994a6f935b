package ooo

import (
	"errors"
	"fmt"

	"github.com/sarchlab/thumbsim/insts"
)

// ErrMaxCycles is returned by Run when the cycle limit is reached.
var ErrMaxCycles = errors.New("max cycles reached")

// errUnresolvedStore marks a store that reached commit without an address.
var errUnresolvedStore = errors.New("store committed without a resolved address")

// SimError is a fatal condition raised when the offending micro-op reaches
// the head of the reorder buffer.
type SimError struct {
	// PC is the address of the offending instruction.
	PC uint32
	// Word is the raw encoding, when it was fetched.
	Word uint32
	// Inst is the decoded micro-op, or nil for fetch and decode faults.
	Inst *insts.Instruction
	// Err is the underlying cause.
	Err error
}

func (e *SimError) Error() string {
	if e.Inst != nil {
		return fmt.Sprintf("0x%08x %v: %v", e.PC, e.Inst, e.Err)
	}
	return fmt.Sprintf("0x%08x [%08x]: %v", e.PC, e.Word, e.Err)
}

func (e *SimError) Unwrap() error {
	return e.Err
}
