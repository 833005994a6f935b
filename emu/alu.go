package emu

import (
	"fmt"
	"math/bits"

	"github.com/sarchlab/thumbsim/insts"
)

// FlagUpdate is a set of new flag values together with the mask of flags
// that actually change.
type FlagUpdate struct {
	Mask  insts.FlagMask
	Flags Flags
}

// Get returns the new value of a flag register as 0 or 1.
func (u FlagUpdate) Get(id uint8) uint32 {
	switch id {
	case insts.RegN:
		return b2u(u.Flags.N)
	case insts.RegZ:
		return b2u(u.Flags.Z)
	case insts.RegC:
		return b2u(u.Flags.C)
	case insts.RegV:
		return b2u(u.Flags.V)
	}
	return 0
}

// Restrict keeps only the flags in mask.
func (u FlagUpdate) Restrict(mask insts.FlagMask) FlagUpdate {
	u.Mask &= mask
	return u
}

// Result is the output of an ALU operation.
type Result struct {
	Value uint32
	Flags FlagUpdate
}

// AddWithCarry computes x + y + carry and the resulting NZCV flags.
func AddWithCarry(x, y uint32, carry bool) (uint32, Flags) {
	sum, c1 := bits.Add32(x, y, b2u(carry))
	signedOverflow := (x^sum)&(y^sum)&0x80000000 != 0
	return sum, Flags{
		N: sum&0x80000000 != 0,
		Z: sum == 0,
		C: c1 != 0,
		V: signedOverflow,
	}
}

// Shift applies a shift or rotate by amount and returns the result and the
// carry out. A zero amount leaves the value and carry unchanged.
func Shift(op insts.Op, value, amount uint32, carryIn bool) (uint32, bool, error) {
	if amount == 0 {
		return value, carryIn, nil
	}

	switch op {
	case insts.OpLSL:
		switch {
		case amount < 32:
			return value << amount, value&(1<<(32-amount)) != 0, nil
		case amount == 32:
			return 0, value&1 != 0, nil
		default:
			return 0, false, nil
		}
	case insts.OpLSR:
		switch {
		case amount < 32:
			return value >> amount, value&(1<<(amount-1)) != 0, nil
		case amount == 32:
			return 0, value&0x80000000 != 0, nil
		default:
			return 0, false, nil
		}
	case insts.OpASR:
		if amount >= 32 {
			sign := value&0x80000000 != 0
			if sign {
				return 0xFFFFFFFF, true, nil
			}
			return 0, false, nil
		}
		return uint32(int32(value) >> amount), value&(1<<(amount-1)) != 0, nil
	case insts.OpROR:
		result := bits.RotateLeft32(value, -int(amount&31))
		return result, result&0x80000000 != 0, nil
	}

	return 0, false, fmt.Errorf("%v is not a shift", op)
}

func nz(v uint32) Flags {
	return Flags{N: v&0x80000000 != 0, Z: v == 0}
}

// ALU computes an arithmetic, logic, shift or extend operation on operands
// n and m with the given carry in. The flag update carries the mask the
// operation can write; callers restrict it when flags are not set.
func ALU(op insts.Op, n, m uint32, carry bool) (Result, error) {
	var value uint32
	var flags Flags

	switch op {
	case insts.OpADD, insts.OpCMN:
		value, flags = AddWithCarry(n, m, false)
	case insts.OpADC:
		value, flags = AddWithCarry(n, m, carry)
	case insts.OpSUB, insts.OpCMP:
		value, flags = AddWithCarry(n, ^m, true)
	case insts.OpSBC:
		value, flags = AddWithCarry(n, ^m, carry)
	case insts.OpRSB:
		value, flags = AddWithCarry(^n, m, true)
	case insts.OpAND, insts.OpTST:
		value = n & m
	case insts.OpEOR:
		value = n ^ m
	case insts.OpORR:
		value = n | m
	case insts.OpBIC:
		value = n &^ m
	case insts.OpMVN:
		value = ^m
	case insts.OpMOV:
		value = m
	case insts.OpLSL, insts.OpLSR, insts.OpASR, insts.OpROR:
		var c bool
		var err error
		value, c, err = Shift(op, n, m&0xFF, carry)
		if err != nil {
			return Result{}, err
		}
		flags.C = c
	case insts.OpMUL:
		return Multiply(n, m), nil
	case insts.OpSXTH:
		value = uint32(int32(int16(m)))
	case insts.OpSXTB:
		value = uint32(int32(int8(m)))
	case insts.OpUXTH:
		value = m & 0xFFFF
	case insts.OpUXTB:
		value = m & 0xFF
	case insts.OpREV:
		value = bits.ReverseBytes32(m)
	case insts.OpREV16:
		value = uint32(bits.ReverseBytes16(uint16(m>>16)))<<16 | uint32(bits.ReverseBytes16(uint16(m)))
	case insts.OpREVSH:
		value = uint32(int32(int16(bits.ReverseBytes16(uint16(m)))))
	default:
		return Result{}, fmt.Errorf("%v is not an ALU operation", op)
	}

	switch op {
	case insts.OpADD, insts.OpCMN, insts.OpADC, insts.OpSUB, insts.OpCMP, insts.OpSBC, insts.OpRSB:
		return Result{Value: value, Flags: FlagUpdate{Mask: insts.FlagsNZCV, Flags: flags}}, nil
	case insts.OpLSL, insts.OpLSR, insts.OpASR, insts.OpROR:
		f := nz(value)
		f.C = flags.C
		return Result{Value: value, Flags: FlagUpdate{Mask: insts.FlagsNZC, Flags: f}}, nil
	case insts.OpAND, insts.OpTST, insts.OpEOR, insts.OpORR, insts.OpBIC, insts.OpMVN, insts.OpMOV:
		return Result{Value: value, Flags: FlagUpdate{Mask: insts.FlagsNZ, Flags: nz(value)}}, nil
	}
	return Result{Value: value}, nil
}

// Multiply computes the low 32 bits of n * m. Only N and Z are updated.
func Multiply(n, m uint32) Result {
	value := n * m
	return Result{Value: value, Flags: FlagUpdate{Mask: insts.FlagsNZ, Flags: nz(value)}}
}
