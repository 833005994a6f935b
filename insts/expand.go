package insts

import "math/bits"

// MicroOp is one primitive unit of work of a decoded instruction.
type MicroOp struct {
	Inst *Instruction

	// PCIncrement is how far the architectural PC advances when this
	// micro-op retires: the instruction length on the last micro-op of a
	// sequence and 0 on the others.
	PCIncrement uint32
}

// Last reports whether the micro-op completes its instruction.
func (m MicroOp) Last() bool {
	return m.PCIncrement != 0
}

// Expand decomposes an instruction into its micro-ops. Instructions with a
// single architectural effect expand to themselves.
func Expand(inst *Instruction) []MicroOp {
	var ops []*Instruction

	switch inst.Op {
	case OpPUSH:
		ops = expandPush(inst)
	case OpPOP:
		ops = expandPop(inst)
	case OpSTMIA:
		ops = expandStoreMultiple(inst)
	case OpLDMIA:
		ops = expandLoadMultiple(inst)
	default:
		return []MicroOp{{Inst: inst, PCIncrement: inst.Length}}
	}

	uops := make([]MicroOp, len(ops))
	for i, op := range ops {
		uops[i] = MicroOp{Inst: op}
	}
	uops[len(uops)-1].PCIncrement = inst.Length
	return uops
}

func derived(parent *Instruction, op Op) *Instruction {
	return newInst(op, parent.Word, parent.Length)
}

func adjust(parent *Instruction, op Op, rd uint8, amount uint32) *Instruction {
	inst := derived(parent, op)
	inst.Rd, inst.Rn = rd, rd
	inst.Imm = amount
	inst.HasImm = true
	return inst
}

func transfer(parent *Instruction, op Op, rt, rn uint8, offset uint32) *Instruction {
	inst := derived(parent, op)
	inst.Rt, inst.Rn = rt, rn
	inst.Imm = offset
	inst.HasImm = true
	return inst
}

func listRegs(list uint16) []uint8 {
	regs := make([]uint8, 0, bits.OnesCount16(list))
	for r := uint8(0); r < 16; r++ {
		if list&(1<<r) != 0 {
			regs = append(regs, r)
		}
	}
	return regs
}

// expandPush: SUB SP first, then one store per register, lowest address
// for the lowest register.
func expandPush(inst *Instruction) []*Instruction {
	regs := listRegs(inst.RegList)
	ops := []*Instruction{adjust(inst, OpSUB, RegSP, uint32(4*len(regs)))}
	for i, r := range regs {
		ops = append(ops, transfer(inst, OpSTR, r, RegSP, uint32(4*i)))
	}
	return ops
}

// expandPop: one load per register, then ADD SP. Popping the PC becomes a
// final SetPC reading the top slot below the new SP.
func expandPop(inst *Instruction) []*Instruction {
	regs := listRegs(inst.RegList)

	var ops []*Instruction
	for i, r := range regs {
		if r == RegPC {
			continue
		}
		ops = append(ops, transfer(inst, OpLDR, r, RegSP, uint32(4*i)))
	}
	ops = append(ops, adjust(inst, OpADD, RegSP, uint32(4*len(regs))))
	if inst.RegList&(1<<RegPC) != 0 {
		ops = append(ops, transfer(inst, OpSetPC, RegNone, RegSP, ^uint32(3)))
	}
	return ops
}

func expandStoreMultiple(inst *Instruction) []*Instruction {
	regs := listRegs(inst.RegList)

	var ops []*Instruction
	for i, r := range regs {
		ops = append(ops, transfer(inst, OpSTR, r, inst.Rn, uint32(4*i)))
	}
	return append(ops, adjust(inst, OpADD, inst.Rn, uint32(4*len(regs))))
}

// expandLoadMultiple orders the load of the base register last so that the
// other loads still see the original base. The base is only written back
// when it is not in the list.
func expandLoadMultiple(inst *Instruction) []*Instruction {
	regs := listRegs(inst.RegList)

	var ops []*Instruction
	var baseLoad *Instruction
	for i, r := range regs {
		ld := transfer(inst, OpLDR, r, inst.Rn, uint32(4*i))
		if r == inst.Rn {
			baseLoad = ld
			continue
		}
		ops = append(ops, ld)
	}

	if baseLoad != nil {
		return append(ops, baseLoad)
	}
	return append(ops, adjust(inst, OpADD, inst.Rn, uint32(4*len(regs))))
}
