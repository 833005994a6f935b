// Package insts provides ARM Thumb instruction definitions and decoding.
//
// This package implements decoding of Thumb machine code into structured
// instruction records and the decomposition of those records into
// micro-operations. It supports the ARMv6-M subset:
//   - Shifts, add/subtract, move and compare with immediates
//   - Data Processing (Register): AND, EOR, LSL, LSR, ASR, ADC, SBC, ROR,
//     TST, RSB, CMP, CMN, ORR, MUL, BIC, MVN
//   - High register ADD, CMP, MOV and BX/BLX
//   - Loads and stores (word, halfword, byte, signed), PUSH/POP, LDM/STM
//   - Branches: B<cond>, B, BL, and SVC
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst, err := decoder.Decode(0x1842) // ADDS R2, R0, R1
//	fmt.Printf("Op: %v, Rd: %d, Rn: %d, Rm: %d\n", inst.Op, inst.Rd, inst.Rn, inst.Rm)
package insts

import (
	"fmt"
	"strings"
)

// Op represents a Thumb opcode.
type Op uint16

// Thumb opcodes.
const (
	OpUnknown Op = iota

	// Data processing
	OpADD
	OpADC
	OpSUB
	OpSBC
	OpRSB
	OpAND
	OpEOR
	OpORR
	OpBIC
	OpMVN
	OpMOV
	OpCMP
	OpCMN
	OpTST
	OpLSL
	OpLSR
	OpASR
	OpROR
	OpMUL
	OpSXTH
	OpSXTB
	OpUXTH
	OpUXTB
	OpREV
	OpREV16
	OpREVSH

	// Loads and stores
	OpLDR
	OpLDRH
	OpLDRB
	OpLDRSH
	OpLDRSB
	OpSTR
	OpSTRH
	OpSTRB
	OpPUSH
	OpPOP
	OpSTMIA
	OpLDMIA

	// Control
	OpB
	OpBL
	OpBX
	OpBLX
	OpSVC
	OpSetPC
	OpNOP
	OpBKPT
)

var opNames = map[Op]string{
	OpUnknown: "???",
	OpADD:     "ADD", OpADC: "ADC", OpSUB: "SUB", OpSBC: "SBC", OpRSB: "RSB",
	OpAND: "AND", OpEOR: "EOR", OpORR: "ORR", OpBIC: "BIC", OpMVN: "MVN",
	OpMOV: "MOV", OpCMP: "CMP", OpCMN: "CMN", OpTST: "TST",
	OpLSL: "LSL", OpLSR: "LSR", OpASR: "ASR", OpROR: "ROR", OpMUL: "MUL",
	OpSXTH: "SXTH", OpSXTB: "SXTB", OpUXTH: "UXTH", OpUXTB: "UXTB",
	OpREV: "REV", OpREV16: "REV16", OpREVSH: "REVSH",
	OpLDR: "LDR", OpLDRH: "LDRH", OpLDRB: "LDRB", OpLDRSH: "LDRSH", OpLDRSB: "LDRSB",
	OpSTR: "STR", OpSTRH: "STRH", OpSTRB: "STRB",
	OpPUSH: "PUSH", OpPOP: "POP", OpSTMIA: "STMIA", OpLDMIA: "LDMIA",
	OpB: "B", OpBL: "BL", OpBX: "BX", OpBLX: "BLX", OpSVC: "SVC",
	OpSetPC: "SETPC", OpNOP: "NOP", OpBKPT: "BKPT",
}

// String returns the mnemonic of the opcode.
func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Op(%d)", uint16(o))
}

// Cond represents an ARM condition code.
type Cond uint8

// ARM condition codes.
const (
	CondEQ Cond = 0b0000 // Equal (Z == 1)
	CondNE Cond = 0b0001 // Not Equal (Z == 0)
	CondCS Cond = 0b0010 // Carry Set / Unsigned higher or same (C == 1)
	CondCC Cond = 0b0011 // Carry Clear / Unsigned lower (C == 0)
	CondMI Cond = 0b0100 // Minus / Negative (N == 1)
	CondPL Cond = 0b0101 // Plus / Positive or zero (N == 0)
	CondVS Cond = 0b0110 // Overflow (V == 1)
	CondVC Cond = 0b0111 // No overflow (V == 0)
	CondHI Cond = 0b1000 // Unsigned higher (C == 1 && Z == 0)
	CondLS Cond = 0b1001 // Unsigned lower or same (C == 0 || Z == 1)
	CondGE Cond = 0b1010 // Signed greater than or equal (N == V)
	CondLT Cond = 0b1011 // Signed less than (N != V)
	CondGT Cond = 0b1100 // Signed greater than (Z == 0 && N == V)
	CondLE Cond = 0b1101 // Signed less than or equal (Z == 1 || N != V)
	CondAL Cond = 0b1110 // Always (unconditional)
)

var condNames = [...]string{
	"EQ", "NE", "CS", "CC", "MI", "PL", "VS", "VC",
	"HI", "LS", "GE", "LT", "GT", "LE", "", "NV",
}

// String returns the condition suffix; AL is rendered as the empty string.
func (c Cond) String() string {
	return condNames[c&0xF]
}

// Register identifiers. Flags share the identifier space so that they can
// be renamed like any other register.
const (
	RegSP uint8 = 13
	RegLR uint8 = 14
	RegPC uint8 = 15

	RegN uint8 = 16
	RegZ uint8 = 17
	RegC uint8 = 18
	RegV uint8 = 19

	// NumRegs is the number of renameable registers (R0-R15 and NZCV).
	NumRegs = 20

	// RegNone marks an unused register field.
	RegNone uint8 = 0xFF
)

// RegName returns the assembler name of a register identifier.
func RegName(r uint8) string {
	switch {
	case r < 13:
		return fmt.Sprintf("R%d", r)
	case r == RegSP:
		return "SP"
	case r == RegLR:
		return "LR"
	case r == RegPC:
		return "PC"
	case r >= RegN && r <= RegV:
		return [...]string{"N", "Z", "C", "V"}[r-RegN]
	default:
		return "-"
	}
}

// FlagMask is a set of condition flags.
type FlagMask uint8

// Condition flag bits.
const (
	FlagN FlagMask = 1 << iota
	FlagZ
	FlagC
	FlagV

	FlagsNZ   = FlagN | FlagZ
	FlagsNZC  = FlagN | FlagZ | FlagC
	FlagsNZCV = FlagN | FlagZ | FlagC | FlagV
)

// Has reports whether the flag register identifier reg is in the mask.
func (m FlagMask) Has(reg uint8) bool {
	if reg < RegN || reg > RegV {
		return false
	}
	return m&(1<<(reg-RegN)) != 0
}

// Regs returns the flag register identifiers in the mask in NZCV order.
func (m FlagMask) Regs() []uint8 {
	var regs []uint8
	for r := RegN; r <= RegV; r++ {
		if m.Has(r) {
			regs = append(regs, r)
		}
	}
	return regs
}

// String returns the flag letters in the mask, such as "NZC".
func (m FlagMask) String() string {
	var sb strings.Builder
	for i, name := range "NZCV" {
		if m&(1<<i) != 0 {
			sb.WriteRune(name)
		}
	}
	return sb.String()
}
