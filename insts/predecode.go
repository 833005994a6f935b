package insts

// BranchKind classifies a raw encoding for fetch steering.
type BranchKind uint8

// Branch kinds recognized by PreDecode.
const (
	BranchNone     BranchKind = iota
	BranchCond                // B<cond>
	BranchUncond              // B
	BranchCall                // BL
	BranchIndirect            // BX, BLX, MOV PC and POP {..., PC}
	BranchSyscall             // SVC
)

// BranchHint is the fetch-time view of a control-flow instruction.
type BranchHint struct {
	Kind   BranchKind
	Offset int32 // PC-relative offset for direct branches
}

// Direct reports whether the target is known from the encoding alone.
func (h BranchHint) Direct() bool {
	switch h.Kind {
	case BranchCond, BranchUncond, BranchCall:
		return true
	}
	return false
}

// Serializing reports whether fetch must wait for the instruction to
// commit before continuing.
func (h BranchHint) Serializing() bool {
	return h.Kind == BranchSyscall
}

// Target returns the direct branch target for an instruction at pc.
func (h BranchHint) Target(pc uint32) uint32 {
	return pc + 4 + uint32(h.Offset)
}

// PreDecode recognizes control-flow instructions from their raw bits only.
// It is cheaper than Decode and never fails; anything it does not know is
// BranchNone.
func PreDecode(word uint32) BranchHint {
	hw := uint16(word)

	switch {
	case word&0xD000F800 == 0xD000F000:
		return BranchHint{Kind: BranchCall, Offset: blOffset(hw, uint16(word>>16))}
	case hw&0xF000 == 0xD000:
		switch (hw >> 8) & 0xF {
		case 0xF:
			return BranchHint{Kind: BranchSyscall}
		case 0xE:
			return BranchHint{}
		}
		return BranchHint{Kind: BranchCond, Offset: signExtend(uint32(hw&0xFF)<<1, 9)}
	case hw&0xF800 == 0xE000:
		return BranchHint{Kind: BranchUncond, Offset: signExtend(uint32(hw&0x7FF)<<1, 12)}
	case hw&0xFF00 == 0x4700, hw&0xFF87 == 0x4687, hw&0xFF00 == 0xBD00:
		return BranchHint{Kind: BranchIndirect}
	}
	return BranchHint{}
}
