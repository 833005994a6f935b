package ooo

import (
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/thumbsim/insts"
)

// issueStage moves up to IssueWidth micro-ops, in order, from the
// instruction queue into the ROB and the reservation stations.
func (e *Engine) issueStage() {
	for n := 0; n < e.config.IssueWidth && len(e.queue) > 0; n++ {
		if e.rob.Full() {
			e.stall(StallIssueROBFull)
			return
		}
		if !e.issue(e.queue[0]) {
			return
		}
		e.queue = append(e.queue[:0], e.queue[1:]...)
	}
}

// issue places one micro-op. The ROB slot is staged first and only
// confirmed once a station slot is found, so a failed issue leaves no
// trace.
func (e *Engine) issue(qe QueueEntry) bool {
	entry := Entry{
		PC:             qe.PC,
		Word:           qe.Word,
		PCIncrement:    qe.UOp.PCIncrement,
		Status:         StatusExecuting,
		PredictedTaken: qe.PredictedTaken,
		IssueCycle:     e.stats.Cycles,
	}

	if qe.Err != nil {
		e.issueException(entry, qe.Err)
		return true
	}

	inst := qe.UOp.Inst
	entry.Inst = inst
	class, err := insts.ClassOf(inst.Op)
	if err != nil {
		e.issueException(entry, err)
		return true
	}
	entry.Class = class
	entry.Dest = destination(inst)
	entry.Flags = insts.FlagsWritten(inst)

	idx, _ := e.rob.Stage(entry)
	set := e.stations[class]
	slot := set.FreeSlot()
	if slot < 0 {
		e.rob.Discard()
		e.stall(StallIssueRSFull)
		return false
	}

	rs := StationEntry{ROB: idx, Inst: inst, SetFlags: entry.Flags != 0}
	for i, src := range insts.Sources(inst) {
		rs.Operands[i] = e.rename(src, inst, qe.PC)
	}

	e.rob.Confirm()
	set.Insert(slot, rs)
	if entry.Dest.Kind == DestRegister {
		e.status.Set(entry.Dest.Reg, idx)
	}
	for _, flag := range entry.Flags.Regs() {
		e.status.Set(flag, idx)
	}

	if e.debug {
		e.log.WithFields(logrus.Fields{
			"cycle": e.stats.Cycles,
			"rob":   idx,
			"pc":    qe.PC,
			"inst":  inst.String(),
			"class": class.String(),
		}).Debug("issue")
	}
	return true
}

// issueException enters a faulted micro-op into the ROB. It is ready
// immediately and raises its error if it ever reaches the head.
func (e *Engine) issueException(entry Entry, err error) {
	entry.Status = StatusException
	entry.Err = err
	entry.Ready = true
	e.rob.Stage(entry)
	e.rob.Confirm()
}

// rename reads an operand from the register file, from a completed ROB
// entry, or tags it with the ROB index of its producer.
func (e *Engine) rename(src insts.Source, inst *insts.Instruction, pc uint32) Operand {
	switch src.Kind {
	case insts.SrcImm:
		return ValueOperand(src.Imm)
	case insts.SrcReg:
	default:
		return ValueOperand(0)
	}

	if src.Reg == insts.RegPC {
		return ValueOperand(insts.PCOperand(inst, pc))
	}

	producer := e.status.Producer(src.Reg)
	if producer == NoProducer {
		return ValueOperand(e.regs.Get(src.Reg))
	}

	p := e.rob.At(producer)
	if !p.Ready {
		return PendingOperand(producer, src.Reg)
	}
	if src.Reg >= insts.RegN {
		return ValueOperand(p.FlagUpdate.Get(src.Reg))
	}
	return ValueOperand(p.Value)
}

// destination returns where the result of a micro-op goes. Stores learn
// their address only when they execute.
func destination(inst *insts.Instruction) Dest {
	if inst.IsStore() {
		return Dest{Kind: DestAwaitingAddress}
	}
	if rd := insts.DestReg(inst); rd != insts.RegNone {
		return Dest{Kind: DestRegister, Reg: rd}
	}
	return Dest{Kind: DestDiscard}
}
