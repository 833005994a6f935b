package emu

import (
	"fmt"

	"github.com/sarchlab/thumbsim/insts"
)

// CondPassed evaluates a condition code against the flags.
func CondPassed(cond insts.Cond, f Flags) (bool, error) {
	switch cond {
	case insts.CondEQ:
		return f.Z, nil
	case insts.CondNE:
		return !f.Z, nil
	case insts.CondCS:
		return f.C, nil
	case insts.CondCC:
		return !f.C, nil
	case insts.CondMI:
		return f.N, nil
	case insts.CondPL:
		return !f.N, nil
	case insts.CondVS:
		return f.V, nil
	case insts.CondVC:
		return !f.V, nil
	case insts.CondHI:
		return f.C && !f.Z, nil
	case insts.CondLS:
		return !f.C || f.Z, nil
	case insts.CondGE:
		return f.N == f.V, nil
	case insts.CondLT:
		return f.N != f.V, nil
	case insts.CondGT:
		return !f.Z && f.N == f.V, nil
	case insts.CondLE:
		return f.Z || f.N != f.V, nil
	case insts.CondAL:
		return true, nil
	}
	return false, fmt.Errorf("invalid condition code %d", cond)
}

// BranchOutcome is the resolved effect of a control-flow instruction.
type BranchOutcome struct {
	Taken  bool
	Target uint32
	// Link is the return address written to LR by BL and BLX.
	Link uint32
}

// ResolveBranch computes the outcome of a branch at pc. flags are only
// read by B<cond>; rm is the register operand of BX and BLX.
func ResolveBranch(inst *insts.Instruction, pc uint32, flags Flags, rm uint32) (BranchOutcome, error) {
	switch inst.Op {
	case insts.OpB:
		taken, err := CondPassed(inst.Cond, flags)
		if err != nil {
			return BranchOutcome{}, err
		}
		out := BranchOutcome{Taken: taken, Target: pc + inst.Length}
		if taken {
			out.Target = insts.BranchTarget(inst, pc)
		}
		return out, nil
	case insts.OpBL:
		return BranchOutcome{
			Taken:  true,
			Target: insts.BranchTarget(inst, pc),
			Link:   insts.LinkValue(inst, pc),
		}, nil
	case insts.OpBX:
		return BranchOutcome{Taken: true, Target: rm &^ 1}, nil
	case insts.OpBLX:
		return BranchOutcome{Taken: true, Target: rm &^ 1, Link: insts.LinkValue(inst, pc)}, nil
	}
	return BranchOutcome{}, fmt.Errorf("%v is not a branch", inst.Op)
}
