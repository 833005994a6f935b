// Package emu provides the functional building blocks of the Thumb core:
// register file, ALU primitives, memory and a reference emulator.
package emu

import "github.com/sarchlab/thumbsim/insts"

// RegFile represents the Thumb register file.
// It contains the sixteen core registers R0-R15 (SP, LR and PC being R13,
// R14 and R15) and the APSR condition flags.
type RegFile struct {
	// R holds the core registers.
	R [16]uint32

	// APSR holds the condition flags.
	APSR Flags
}

// Flags represents the APSR condition flags.
type Flags struct {
	// N is the negative flag.
	N bool
	// Z is the zero flag.
	Z bool
	// C is the carry flag.
	C bool
	// V is the overflow flag.
	V bool
}

// Get reads a register by identifier. Identifiers 16-19 read the N, Z, C
// and V flags as 0 or 1.
func (r *RegFile) Get(id uint8) uint32 {
	switch {
	case id < 16:
		return r.R[id]
	case id == insts.RegN:
		return b2u(r.APSR.N)
	case id == insts.RegZ:
		return b2u(r.APSR.Z)
	case id == insts.RegC:
		return b2u(r.APSR.C)
	case id == insts.RegV:
		return b2u(r.APSR.V)
	}
	return 0
}

// Set writes a register by identifier. Flag identifiers take any non-zero
// value as set. Unknown identifiers are ignored.
func (r *RegFile) Set(id uint8, value uint32) {
	switch {
	case id < 16:
		r.R[id] = value
	case id == insts.RegN:
		r.APSR.N = value != 0
	case id == insts.RegZ:
		r.APSR.Z = value != 0
	case id == insts.RegC:
		r.APSR.C = value != 0
	case id == insts.RegV:
		r.APSR.V = value != 0
	}
}

// SP returns the stack pointer.
func (r *RegFile) SP() uint32 { return r.R[insts.RegSP] }

// PC returns the program counter.
func (r *RegFile) PC() uint32 { return r.R[insts.RegPC] }

// ApplyFlags updates the flags selected by the update's mask.
func (r *RegFile) ApplyFlags(u FlagUpdate) {
	for _, id := range u.Mask.Regs() {
		r.Set(id, u.Get(id))
	}
}

func b2u(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
