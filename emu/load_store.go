package emu

import (
	"fmt"

	"github.com/sarchlab/thumbsim/insts"
)

// AccessSize returns the number of bytes a load or store transfers.
func AccessSize(op insts.Op) uint32 {
	switch op {
	case insts.OpLDRB, insts.OpLDRSB, insts.OpSTRB:
		return 1
	case insts.OpLDRH, insts.OpLDRSH, insts.OpSTRH:
		return 2
	}
	return 4
}

// LoadValue performs the memory read of a load micro-op, including sign
// extension.
func LoadValue(mem *Memory, op insts.Op, addr uint32) (uint32, error) {
	switch op {
	case insts.OpLDR, insts.OpSetPC:
		return mem.Read32(addr)
	case insts.OpLDRH:
		return mem.Read16(addr)
	case insts.OpLDRB:
		return mem.Read8(addr)
	case insts.OpLDRSH:
		v, err := mem.Read16(addr)
		return uint32(int32(int16(v))), err
	case insts.OpLDRSB:
		v, err := mem.Read8(addr)
		return uint32(int32(int8(v))), err
	}
	return 0, fmt.Errorf("%v is not a load", op)
}

// StoreValue performs the memory write of a store micro-op.
func StoreValue(mem *Memory, op insts.Op, addr, value uint32) error {
	switch op {
	case insts.OpSTR:
		return mem.Write32(addr, value)
	case insts.OpSTRH:
		return mem.Write16(addr, value)
	case insts.OpSTRB:
		return mem.Write8(addr, value)
	}
	return fmt.Errorf("%v is not a store", op)
}
