package insts

import "fmt"

// Class identifies the functional unit class that executes an operation.
type Class uint8

// Functional unit classes.
const (
	ClassNone Class = iota
	ClassALUShift
	ClassMul
	ClassLoadStore
	ClassControl
)

// NumClasses is the number of functional unit classes, ClassNone included.
const NumClasses = 5

var classNames = [NumClasses]string{"none", "alu/shift", "mul", "load/store", "control"}

// String returns the name of the class.
func (c Class) String() string {
	if int(c) < len(classNames) {
		return classNames[c]
	}
	return fmt.Sprintf("Class(%d)", uint8(c))
}

// ClassOf returns the functional unit class of a micro-op. Multi-register
// instructions must be expanded first and have no class of their own.
func ClassOf(op Op) (Class, error) {
	switch op {
	case OpADD, OpADC, OpSUB, OpSBC, OpRSB, OpAND, OpEOR, OpORR, OpBIC,
		OpMVN, OpMOV, OpCMP, OpCMN, OpTST, OpLSL, OpLSR, OpASR, OpROR,
		OpSXTH, OpSXTB, OpUXTH, OpUXTB, OpREV, OpREV16, OpREVSH:
		return ClassALUShift, nil
	case OpMUL:
		return ClassMul, nil
	case OpLDR, OpLDRH, OpLDRB, OpLDRSH, OpLDRSB, OpSTR, OpSTRH, OpSTRB, OpSetPC:
		return ClassLoadStore, nil
	case OpB, OpBL, OpBX, OpBLX, OpSVC, OpNOP, OpBKPT:
		return ClassControl, nil
	}
	return ClassNone, fmt.Errorf("no functional unit for %v", op)
}

// SourceKind tells where an operand value comes from.
type SourceKind uint8

// Operand source kinds.
const (
	SrcNone SourceKind = iota
	SrcReg
	SrcImm
)

// Source describes one operand slot of a micro-op.
type Source struct {
	Kind SourceKind
	Reg  uint8
	Imm  uint32
}

func regSource(r uint8) Source {
	if r == RegNone {
		return Source{}
	}
	return Source{Kind: SrcReg, Reg: r}
}

// NumSources is the number of operand slots of a micro-op.
const NumSources = 3

// Sources returns the operand slots of a micro-op. Slot 0 is the first
// operand (or base address), slot 1 the second operand (or offset) and
// slot 2 the carry flag, or the value to store. Conditional branches use
// the slots for the flags their condition reads.
func Sources(inst *Instruction) [NumSources]Source {
	var src [NumSources]Source

	second := regSource(inst.Rm)
	if inst.HasImm {
		second = Source{Kind: SrcImm, Imm: inst.Imm}
	}

	switch inst.Op {
	case OpADD, OpSUB, OpRSB, OpAND, OpEOR, OpORR, OpBIC, OpCMP, OpCMN, OpTST, OpMUL:
		src[0], src[1] = regSource(inst.Rn), second
	case OpADC, OpSBC, OpLSL, OpLSR, OpASR, OpROR:
		src[0], src[1] = regSource(inst.Rn), second
		src[2] = regSource(RegC)
	case OpMOV, OpMVN, OpSXTH, OpSXTB, OpUXTH, OpUXTB, OpREV, OpREV16, OpREVSH:
		src[1] = second
	case OpLDR, OpLDRH, OpLDRB, OpLDRSH, OpLDRSB, OpSetPC:
		src[0], src[1] = regSource(inst.Rn), second
	case OpSTR, OpSTRH, OpSTRB:
		src[0], src[1] = regSource(inst.Rn), second
		src[2] = regSource(inst.Rt)
	case OpB:
		for i, r := range FlagsNeeded(inst.Cond) {
			src[i] = regSource(r)
		}
	case OpBX, OpBLX:
		src[1] = regSource(inst.Rm)
	}

	return src
}

// FlagsNeeded returns the flag registers a condition code reads.
func FlagsNeeded(cond Cond) []uint8 {
	switch cond {
	case CondEQ, CondNE:
		return []uint8{RegZ}
	case CondCS, CondCC:
		return []uint8{RegC}
	case CondMI, CondPL:
		return []uint8{RegN}
	case CondVS, CondVC:
		return []uint8{RegV}
	case CondHI, CondLS:
		return []uint8{RegC, RegZ}
	case CondGE, CondLT:
		return []uint8{RegN, RegV}
	case CondGT, CondLE:
		return []uint8{RegZ, RegN, RegV}
	}
	return nil
}

// DestReg returns the register a micro-op writes, or RegNone.
func DestReg(inst *Instruction) uint8 {
	switch {
	case inst.IsCompare(), inst.IsStore(), inst.Op == OpSetPC:
		return RegNone
	case inst.IsLoad():
		return inst.Rt
	}
	return inst.Rd
}

// FlagsWritten returns the flags a micro-op updates.
func FlagsWritten(inst *Instruction) FlagMask {
	if !inst.SetFlags {
		return 0
	}

	switch inst.Op {
	case OpADD, OpADC, OpSUB, OpSBC, OpRSB, OpCMP, OpCMN:
		return FlagsNZCV
	case OpLSL, OpLSR, OpASR, OpROR:
		return FlagsNZC
	case OpAND, OpEOR, OpORR, OpBIC, OpMVN, OpMOV, OpTST, OpMUL:
		return FlagsNZ
	}
	return 0
}

// PCOperand returns the value an instruction at pc reads for the PC.
// ADR and literal loads see the word-aligned PC.
func PCOperand(inst *Instruction, pc uint32) uint32 {
	if inst.HasImm && (inst.Op == OpADD || inst.Op == OpLDR) {
		return (pc + 4) &^ 3
	}
	return pc + 4
}

// BranchTarget returns the target of a PC-relative branch at pc.
func BranchTarget(inst *Instruction, pc uint32) uint32 {
	return pc + 4 + uint32(inst.SImm)
}

// LinkValue returns the return address a call at pc writes to LR.
func LinkValue(inst *Instruction, pc uint32) uint32 {
	return (pc + inst.Length) | 1
}
