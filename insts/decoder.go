package insts

import (
	"errors"
	"fmt"
	"strings"
)

// Errors returned for encodings outside the modeled subset.
var (
	ErrUndefined     = errors.New("undefined instruction")
	ErrUnpredictable = errors.New("unpredictable instruction")
)

// Instruction represents a decoded Thumb instruction.
type Instruction struct {
	Op Op // Operation code

	Rd uint8 // Destination register
	Rn uint8 // First source register, base register for memory ops
	Rm uint8 // Second source register, offset register for memory ops
	Rt uint8 // Transfer register for loads and stores

	RegList uint16 // Register list for PUSH, POP, LDM and STM

	Imm    uint32 // Unsigned immediate, used in place of Rm when HasImm
	SImm   int32  // Signed branch offset in bytes
	HasImm bool   // Second operand is Imm rather than Rm

	SetFlags bool // Instruction updates the condition flags
	Cond     Cond // Condition code for B<cond>; AL otherwise

	Length uint32 // Encoding size in bytes (2 or 4)
	Word   uint32 // Raw encoding, second halfword in bits [31:16]
}

func newInst(op Op, word uint32, length uint32) *Instruction {
	return &Instruction{
		Op:     op,
		Rd:     RegNone,
		Rn:     RegNone,
		Rm:     RegNone,
		Rt:     RegNone,
		Cond:   CondAL,
		Length: length,
		Word:   word,
	}
}

// String returns an assembler-like rendering of the instruction.
func (i *Instruction) String() string {
	if i == nil {
		return "<nil>"
	}

	var sb strings.Builder
	sb.WriteString(i.Op.String())
	if i.Op == OpB {
		sb.WriteString(i.Cond.String())
	}
	if i.SetFlags && !i.IsCompare() {
		sb.WriteString("S")
	}

	var args []string
	switch {
	case i.Op == OpB || i.Op == OpBL:
		args = append(args, fmt.Sprintf("#%d", i.SImm))
	case i.Op == OpSVC || i.Op == OpBKPT:
		args = append(args, fmt.Sprintf("#%d", i.Imm))
	case i.RegList != 0:
		if i.Rn != RegNone && i.Op != OpPUSH && i.Op != OpPOP {
			args = append(args, RegName(i.Rn)+"!")
		}
		args = append(args, "{"+regListString(i.RegList)+"}")
	case i.IsMemory():
		addr := "[" + RegName(i.Rn)
		if i.HasImm {
			addr += fmt.Sprintf(", #%d", int32(i.Imm))
		} else if i.Rm != RegNone {
			addr += ", " + RegName(i.Rm)
		}
		args = append(args, RegName(i.Rt), addr+"]")
	default:
		for _, r := range []uint8{i.Rd, i.Rn, i.Rm} {
			if r != RegNone {
				args = append(args, RegName(r))
			}
		}
		if i.HasImm {
			args = append(args, fmt.Sprintf("#%d", i.Imm))
		}
	}

	if len(args) > 0 {
		sb.WriteString(" ")
		sb.WriteString(strings.Join(args, ", "))
	}
	return sb.String()
}

func regListString(list uint16) string {
	var names []string
	for r := uint8(0); r < 16; r++ {
		if list&(1<<r) != 0 {
			names = append(names, RegName(r))
		}
	}
	return strings.Join(names, ", ")
}

// IsCompare reports whether the instruction only updates flags.
func (i *Instruction) IsCompare() bool {
	switch i.Op {
	case OpCMP, OpCMN, OpTST:
		return true
	}
	return false
}

// IsMemory reports whether the instruction is a single load or store.
func (i *Instruction) IsMemory() bool {
	return i.IsLoad() || i.IsStore()
}

// IsLoad reports whether the instruction reads memory.
func (i *Instruction) IsLoad() bool {
	switch i.Op {
	case OpLDR, OpLDRH, OpLDRB, OpLDRSH, OpLDRSB, OpSetPC:
		return true
	}
	return false
}

// IsStore reports whether the instruction writes memory.
func (i *Instruction) IsStore() bool {
	switch i.Op {
	case OpSTR, OpSTRH, OpSTRB:
		return true
	}
	return false
}

// IsWide reports whether a first halfword starts a 32-bit encoding.
func IsWide(hw uint16) bool {
	switch hw >> 11 {
	case 0b11101, 0b11110, 0b11111:
		return true
	}
	return false
}

// Length returns the size in bytes of the encoding that starts with word.
func Length(word uint32) uint32 {
	if IsWide(uint16(word)) {
		return 4
	}
	return 2
}

// Decoder decodes Thumb machine code into instructions.
type Decoder struct{}

// NewDecoder creates a new Thumb instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes a Thumb instruction. The first halfword is held in bits
// [15:0] of word and, for 32-bit encodings, the second in bits [31:16].
func (d *Decoder) Decode(word uint32) (*Instruction, error) {
	hw := uint16(word)
	if IsWide(hw) {
		return d.decodeWide(word)
	}

	word &= 0xFFFF
	switch {
	case hw>>14 == 0b00:
		return d.decodeShiftAddSubMovCmp(hw, word)
	case hw>>10 == 0b010000:
		return d.decodeDataProcessing(hw, word)
	case hw>>10 == 0b010001:
		return d.decodeSpecialDataBranch(hw, word)
	case hw>>11 == 0b01001:
		inst := newInst(OpLDR, word, 2)
		inst.Rt = uint8(hw>>8) & 7
		inst.Rn = RegPC
		inst.Imm = uint32(hw&0xFF) << 2
		inst.HasImm = true
		return inst, nil
	case hw>>12 == 0b0101:
		return d.decodeLoadStoreReg(hw, word)
	case hw>>13 == 0b011, hw>>12 == 0b1000, hw>>12 == 0b1001:
		return d.decodeLoadStoreImm(hw, word)
	case hw>>11 == 0b10100:
		// ADR
		inst := newInst(OpADD, word, 2)
		inst.Rd = uint8(hw>>8) & 7
		inst.Rn = RegPC
		inst.Imm = uint32(hw&0xFF) << 2
		inst.HasImm = true
		return inst, nil
	case hw>>11 == 0b10101:
		inst := newInst(OpADD, word, 2)
		inst.Rd = uint8(hw>>8) & 7
		inst.Rn = RegSP
		inst.Imm = uint32(hw&0xFF) << 2
		inst.HasImm = true
		return inst, nil
	case hw>>12 == 0b1011:
		return d.decodeMisc(hw, word)
	case hw>>12 == 0b1100:
		return d.decodeMultiple(hw, word)
	case hw>>12 == 0b1101:
		return d.decodeCondBranchSVC(hw, word)
	case hw>>11 == 0b11100:
		inst := newInst(OpB, word, 2)
		inst.SImm = signExtend(uint32(hw&0x7FF)<<1, 12)
		return inst, nil
	}

	return nil, undefined(word)
}

func undefined(word uint32) error {
	return fmt.Errorf("%w: 0x%04x", ErrUndefined, word)
}

func unpredictable(word uint32) error {
	return fmt.Errorf("%w: 0x%04x", ErrUnpredictable, word)
}

// decodeShiftAddSubMovCmp decodes the 00xxxx group.
func (d *Decoder) decodeShiftAddSubMovCmp(hw uint16, word uint32) (*Instruction, error) {
	op := (hw >> 11) & 7
	low := uint8(hw) & 7
	mid := uint8(hw>>3) & 7
	high := uint8(hw>>8) & 7

	var inst *Instruction
	switch op {
	case 0, 1, 2:
		inst = newInst([...]Op{OpLSL, OpLSR, OpASR}[op], word, 2)
		inst.Rd = low
		inst.Rn = mid
		inst.Imm = uint32(hw>>6) & 0x1F
		if inst.Imm == 0 && op != 0 {
			inst.Imm = 32
		}
		inst.HasImm = true
	case 3:
		inst = newInst(OpADD, word, 2)
		if hw&(1<<9) != 0 {
			inst.Op = OpSUB
		}
		inst.Rd = low
		inst.Rn = mid
		if hw&(1<<10) != 0 {
			inst.Imm = uint32(hw>>6) & 7
			inst.HasImm = true
		} else {
			inst.Rm = uint8(hw>>6) & 7
		}
	case 4:
		inst = newInst(OpMOV, word, 2)
		inst.Rd = high
	case 5:
		inst = newInst(OpCMP, word, 2)
		inst.Rn = high
	case 6:
		inst = newInst(OpADD, word, 2)
		inst.Rd, inst.Rn = high, high
	case 7:
		inst = newInst(OpSUB, word, 2)
		inst.Rd, inst.Rn = high, high
	}

	if op >= 4 {
		inst.Imm = uint32(hw & 0xFF)
		inst.HasImm = true
	}
	inst.SetFlags = true
	return inst, nil
}

var dataProcessingOps = [16]Op{
	OpAND, OpEOR, OpLSL, OpLSR, OpASR, OpADC, OpSBC, OpROR,
	OpTST, OpRSB, OpCMP, OpCMN, OpORR, OpMUL, OpBIC, OpMVN,
}

// decodeDataProcessing decodes the 010000 group (register operands).
func (d *Decoder) decodeDataProcessing(hw uint16, word uint32) (*Instruction, error) {
	op := dataProcessingOps[(hw>>6)&0xF]
	rdn := uint8(hw) & 7
	rm := uint8(hw>>3) & 7

	inst := newInst(op, word, 2)
	inst.SetFlags = true
	switch op {
	case OpTST, OpCMP, OpCMN:
		inst.Rn, inst.Rm = rdn, rm
	case OpMVN:
		inst.Rd, inst.Rm = rdn, rm
	case OpRSB:
		// NEGS Rd, Rn is RSBS Rd, Rn, #0
		inst.Rd, inst.Rn = rdn, rm
		inst.HasImm = true
	case OpMUL:
		inst.Rd, inst.Rn, inst.Rm = rdn, rm, rdn
	default:
		inst.Rd, inst.Rn, inst.Rm = rdn, rdn, rm
	}
	return inst, nil
}

// decodeSpecialDataBranch decodes high register operations and BX/BLX.
func (d *Decoder) decodeSpecialDataBranch(hw uint16, word uint32) (*Instruction, error) {
	rdn := uint8(hw)&7 | uint8(hw>>4)&8
	rm := uint8(hw>>3) & 0xF

	switch (hw >> 8) & 3 {
	case 0:
		if rdn == RegPC {
			return nil, unpredictable(word)
		}
		inst := newInst(OpADD, word, 2)
		inst.Rd, inst.Rn, inst.Rm = rdn, rdn, rm
		return inst, nil
	case 1:
		if rdn == RegPC || rm == RegPC || (rdn < 8 && rm < 8) {
			return nil, unpredictable(word)
		}
		inst := newInst(OpCMP, word, 2)
		inst.Rn, inst.Rm = rdn, rm
		inst.SetFlags = true
		return inst, nil
	case 2:
		if rdn == RegPC {
			// MOV PC, Rm behaves as a branch to Rm.
			inst := newInst(OpBX, word, 2)
			inst.Rm = rm
			return inst, nil
		}
		inst := newInst(OpMOV, word, 2)
		inst.Rd, inst.Rm = rdn, rm
		return inst, nil
	default:
		if hw&7 != 0 {
			return nil, unpredictable(word)
		}
		if hw&(1<<7) == 0 {
			inst := newInst(OpBX, word, 2)
			inst.Rm = rm
			return inst, nil
		}
		if rm == RegPC {
			return nil, unpredictable(word)
		}
		inst := newInst(OpBLX, word, 2)
		inst.Rd = RegLR
		inst.Rm = rm
		return inst, nil
	}
}

var loadStoreRegOps = [8]Op{
	OpSTR, OpSTRH, OpSTRB, OpLDRSB, OpLDR, OpLDRH, OpLDRB, OpLDRSH,
}

// decodeLoadStoreReg decodes loads and stores with a register offset.
func (d *Decoder) decodeLoadStoreReg(hw uint16, word uint32) (*Instruction, error) {
	inst := newInst(loadStoreRegOps[(hw>>9)&7], word, 2)
	inst.Rt = uint8(hw) & 7
	inst.Rn = uint8(hw>>3) & 7
	inst.Rm = uint8(hw>>6) & 7
	return inst, nil
}

// decodeLoadStoreImm decodes loads and stores with an immediate offset,
// including the SP-relative forms.
func (d *Decoder) decodeLoadStoreImm(hw uint16, word uint32) (*Instruction, error) {
	load := hw&(1<<11) != 0
	imm5 := uint32(hw>>6) & 0x1F

	inst := newInst(OpUnknown, word, 2)
	inst.Rt = uint8(hw) & 7
	inst.Rn = uint8(hw>>3) & 7
	inst.HasImm = true

	switch {
	case hw>>12 == 0b0110:
		inst.Op = pick(load, OpLDR, OpSTR)
		inst.Imm = imm5 << 2
	case hw>>12 == 0b0111:
		inst.Op = pick(load, OpLDRB, OpSTRB)
		inst.Imm = imm5
	case hw>>12 == 0b1000:
		inst.Op = pick(load, OpLDRH, OpSTRH)
		inst.Imm = imm5 << 1
	default:
		inst.Op = pick(load, OpLDR, OpSTR)
		inst.Rt = uint8(hw>>8) & 7
		inst.Rn = RegSP
		inst.Imm = uint32(hw&0xFF) << 2
	}
	return inst, nil
}

func pick(cond bool, a, b Op) Op {
	if cond {
		return a
	}
	return b
}

// decodeMisc decodes the 1011 miscellaneous group.
func (d *Decoder) decodeMisc(hw uint16, word uint32) (*Instruction, error) {
	rd := uint8(hw) & 7
	rm := uint8(hw>>3) & 7

	switch {
	case hw&0xFF00 == 0xB000:
		inst := newInst(OpADD, word, 2)
		if hw&0x80 != 0 {
			inst.Op = OpSUB
		}
		inst.Rd, inst.Rn = RegSP, RegSP
		inst.Imm = uint32(hw&0x7F) << 2
		inst.HasImm = true
		return inst, nil
	case hw&0xFF00 == 0xB200:
		inst := newInst([...]Op{OpSXTH, OpSXTB, OpUXTH, OpUXTB}[(hw>>6)&3], word, 2)
		inst.Rd, inst.Rm = rd, rm
		return inst, nil
	case hw&0xFE00 == 0xB400:
		inst := newInst(OpPUSH, word, 2)
		inst.Rn = RegSP
		inst.RegList = hw & 0xFF
		if hw&0x100 != 0 {
			inst.RegList |= 1 << RegLR
		}
		if inst.RegList == 0 {
			return nil, unpredictable(word)
		}
		return inst, nil
	case hw&0xFFC0 == 0xBA00, hw&0xFFC0 == 0xBA40, hw&0xFFC0 == 0xBAC0:
		op := OpREV
		switch hw & 0xFFC0 {
		case 0xBA40:
			op = OpREV16
		case 0xBAC0:
			op = OpREVSH
		}
		inst := newInst(op, word, 2)
		inst.Rd, inst.Rm = rd, rm
		return inst, nil
	case hw&0xFE00 == 0xBC00:
		inst := newInst(OpPOP, word, 2)
		inst.Rn = RegSP
		inst.RegList = hw & 0xFF
		if hw&0x100 != 0 {
			inst.RegList |= 1 << RegPC
		}
		if inst.RegList == 0 {
			return nil, unpredictable(word)
		}
		return inst, nil
	case hw&0xFF00 == 0xBE00:
		inst := newInst(OpBKPT, word, 2)
		inst.Imm = uint32(hw & 0xFF)
		return inst, nil
	case hw&0xFF0F == 0xBF00:
		// NOP, YIELD, WFE, WFI and SEV have no architectural effect here.
		if (hw>>4)&0xF > 4 {
			return nil, undefined(word)
		}
		return newInst(OpNOP, word, 2), nil
	}

	// CPS, IT and the remaining hints are outside the modeled subset.
	return nil, undefined(word)
}

// decodeMultiple decodes LDMIA and STMIA.
func (d *Decoder) decodeMultiple(hw uint16, word uint32) (*Instruction, error) {
	inst := newInst(pick(hw&(1<<11) != 0, OpLDMIA, OpSTMIA), word, 2)
	inst.Rn = uint8(hw>>8) & 7
	inst.RegList = hw & 0xFF
	if inst.RegList == 0 {
		return nil, unpredictable(word)
	}
	return inst, nil
}

// decodeCondBranchSVC decodes B<cond>, UDF and SVC.
func (d *Decoder) decodeCondBranchSVC(hw uint16, word uint32) (*Instruction, error) {
	cond := Cond((hw >> 8) & 0xF)
	switch cond {
	case 0xE:
		return nil, undefined(word)
	case 0xF:
		inst := newInst(OpSVC, word, 2)
		inst.Imm = uint32(hw & 0xFF)
		return inst, nil
	}

	inst := newInst(OpB, word, 2)
	inst.Cond = cond
	inst.SImm = signExtend(uint32(hw&0xFF)<<1, 9)
	return inst, nil
}

// decodeWide decodes the 32-bit encodings: BL and the memory barriers.
func (d *Decoder) decodeWide(word uint32) (*Instruction, error) {
	hw1 := uint16(word)
	hw2 := uint16(word >> 16)

	switch {
	case hw1&0xF800 == 0xF000 && hw2&0xD000 == 0xD000:
		inst := newInst(OpBL, word, 4)
		inst.Rd = RegLR
		inst.SImm = blOffset(hw1, hw2)
		return inst, nil
	case hw1 == 0xF3BF && hw2&0xFF00 == 0x8F00:
		switch (hw2 >> 4) & 0xF {
		case 0b0100, 0b0101, 0b0110:
			// DSB, DMB and ISB order nothing in a single-core model.
			return newInst(OpNOP, word, 4), nil
		}
		return nil, unpredictable(word)
	}

	return nil, fmt.Errorf("%w: 0x%04x 0x%04x", ErrUndefined, hw1, hw2)
}

// blOffset assembles the BL offset from S:I1:I2:imm10:imm11:'0'.
func blOffset(hw1, hw2 uint16) int32 {
	s := uint32(hw1>>10) & 1
	imm10 := uint32(hw1) & 0x3FF
	j1 := uint32(hw2>>13) & 1
	j2 := uint32(hw2>>11) & 1
	imm11 := uint32(hw2) & 0x7FF
	i1 := ^(j1 ^ s) & 1
	i2 := ^(j2 ^ s) & 1

	imm := s<<24 | i1<<23 | i2<<22 | imm10<<12 | imm11<<1
	return signExtend(imm, 25)
}

// signExtend sign-extends the low bits of value.
func signExtend(value uint32, bits uint) int32 {
	shift := 32 - bits
	return int32(value<<shift) >> shift
}
