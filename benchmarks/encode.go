package benchmarks

import "github.com/sarchlab/thumbsim/insts"

// Thumb instruction encoding helpers. Register arguments are R0-R7 unless
// noted. Branch offsets are in bytes relative to the branch address plus 4.

// BranchOffset returns the offset from the halfword at index from to the
// halfword at index to.
func BranchOffset(from, to int) int32 {
	return int32(to-from)*2 - 4
}

// EncodeMOVImm encodes MOVS Rd, #imm8.
func EncodeMOVImm(rd uint8, imm uint8) uint16 {
	return 0x2000 | uint16(rd&7)<<8 | uint16(imm)
}

// EncodeMOVReg encodes MOVS Rd, Rm.
func EncodeMOVReg(rd, rm uint8) uint16 {
	return EncodeLSLImm(rd, rm, 0)
}

// EncodeADDImm encodes ADDS Rdn, #imm8.
func EncodeADDImm(rdn uint8, imm uint8) uint16 {
	return 0x3000 | uint16(rdn&7)<<8 | uint16(imm)
}

// EncodeSUBImm encodes SUBS Rdn, #imm8.
func EncodeSUBImm(rdn uint8, imm uint8) uint16 {
	return 0x3800 | uint16(rdn&7)<<8 | uint16(imm)
}

// EncodeCMPImm encodes CMP Rn, #imm8.
func EncodeCMPImm(rn uint8, imm uint8) uint16 {
	return 0x2800 | uint16(rn&7)<<8 | uint16(imm)
}

// EncodeADDReg encodes ADDS Rd, Rn, Rm.
func EncodeADDReg(rd, rn, rm uint8) uint16 {
	return 0x1800 | uint16(rm&7)<<6 | uint16(rn&7)<<3 | uint16(rd&7)
}

// EncodeSUBReg encodes SUBS Rd, Rn, Rm.
func EncodeSUBReg(rd, rn, rm uint8) uint16 {
	return 0x1A00 | uint16(rm&7)<<6 | uint16(rn&7)<<3 | uint16(rd&7)
}

// EncodeAND encodes ANDS Rdn, Rm.
func EncodeAND(rdn, rm uint8) uint16 {
	return 0x4000 | uint16(rm&7)<<3 | uint16(rdn&7)
}

// EncodeLSLImm encodes LSLS Rd, Rm, #imm5.
func EncodeLSLImm(rd, rm uint8, imm uint8) uint16 {
	return uint16(imm&0x1F)<<6 | uint16(rm&7)<<3 | uint16(rd&7)
}

// EncodeMUL encodes MULS Rdm, Rn, Rdm.
func EncodeMUL(rdm, rn uint8) uint16 {
	return 0x4340 | uint16(rn&7)<<3 | uint16(rdm&7)
}

// EncodeSTR encodes STR Rt, [Rn, #offset]; offset is a multiple of 4
// below 128.
func EncodeSTR(rt, rn uint8, offset uint8) uint16 {
	return 0x6000 | uint16(offset>>2&0x1F)<<6 | uint16(rn&7)<<3 | uint16(rt&7)
}

// EncodeLDR encodes LDR Rt, [Rn, #offset]; offset is a multiple of 4
// below 128.
func EncodeLDR(rt, rn uint8, offset uint8) uint16 {
	return 0x6800 | uint16(offset>>2&0x1F)<<6 | uint16(rn&7)<<3 | uint16(rt&7)
}

// EncodeBCond encodes B<cond> with a 9-bit signed offset.
func EncodeBCond(cond insts.Cond, offset int32) uint16 {
	return 0xD000 | uint16(cond&0xF)<<8 | uint16(offset>>1)&0xFF
}

// EncodeB encodes an unconditional B with a 12-bit signed offset.
func EncodeB(offset int32) uint16 {
	return 0xE000 | uint16(offset>>1)&0x7FF
}

// EncodeBL encodes the two halfwords of BL.
func EncodeBL(offset int32) [2]uint16 {
	v := uint32(offset >> 1)
	s := v >> 23 & 1
	i1 := v >> 22 & 1
	i2 := v >> 21 & 1
	j1 := (^i1 ^ s) & 1
	j2 := (^i2 ^ s) & 1

	hw1 := 0xF000 | s<<10 | v>>11&0x3FF
	hw2 := 0xD000 | j1<<13 | j2<<11 | v&0x7FF
	return [2]uint16{uint16(hw1), uint16(hw2)}
}

// EncodeBX encodes BX Rm; Rm may be any register.
func EncodeBX(rm uint8) uint16 {
	return 0x4700 | uint16(rm&0xF)<<3
}

// EncodePUSH encodes PUSH {list}, with LR when lr is set.
func EncodePUSH(list uint8, lr bool) uint16 {
	hw := 0xB400 | uint16(list)
	if lr {
		hw |= 1 << 8
	}
	return hw
}

// EncodePOP encodes POP {list}, with PC when pc is set.
func EncodePOP(list uint8, pc bool) uint16 {
	hw := 0xBC00 | uint16(list)
	if pc {
		hw |= 1 << 8
	}
	return hw
}

// EncodeSVC encodes SVC #imm.
func EncodeSVC(imm uint8) uint16 {
	return 0xDF00 | uint16(imm)
}

// EncodeNOP encodes NOP.
func EncodeNOP() uint16 {
	return 0xBF00
}

// Program accumulates halfwords.
type Program []uint16

// Emit appends halfwords and returns the index of the first one.
func (p *Program) Emit(hws ...uint16) int {
	idx := len(*p)
	*p = append(*p, hws...)
	return idx
}

// Here returns the index of the next halfword.
func (p *Program) Here() int {
	return len(*p)
}

// Patch replaces the halfword at idx.
func (p *Program) Patch(idx int, hw uint16) {
	(*p)[idx] = hw
}

// CString appends a NUL-terminated string, padded to a halfword, and
// returns its byte address relative to the program start.
func (p *Program) CString(s string) uint32 {
	addr := uint32(len(*p)) * 2
	data := append([]byte(s), 0)
	if len(data)%2 != 0 {
		data = append(data, 0)
	}
	for i := 0; i < len(data); i += 2 {
		*p = append(*p, uint16(data[i])|uint16(data[i+1])<<8)
	}
	return addr
}
