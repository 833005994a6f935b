package ooo

import (
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/thumbsim/emu"
	"github.com/sarchlab/thumbsim/insts"
)

// commitStage retires up to CommitWidth completed entries from the head of
// the ROB in program order. Only here do registers, flags and memory
// change.
func (e *Engine) commitStage() error {
	for n := 0; n < e.config.CommitWidth; n++ {
		head := e.rob.HeadEntry()
		if head == nil || !head.Ready {
			return nil
		}

		redirected, err := e.retire(e.rob.Head(), head)
		if err != nil || e.halted || redirected {
			return err
		}
	}
	return nil
}

// retire applies the head entry to the architectural state. It reports
// whether the entry redirected fetch.
func (e *Engine) retire(idx int, entry *Entry) (bool, error) {
	if entry.Status == StatusException {
		return false, e.fault(entry, entry.Err)
	}

	inst := entry.Inst
	ev := CommitEvent{
		Cycle:      e.stats.Cycles,
		ROB:        idx,
		PC:         entry.PC,
		Inst:       inst,
		Last:       entry.PCIncrement != 0,
		Dest:       entry.Dest,
		Value:      entry.Value,
		Flags:      entry.Flags,
		IssueCycle: entry.IssueCycle,
		ExecCycle:  entry.ExecCycle,
		DoneCycle:  entry.DoneCycle,
	}

	switch entry.Dest.Kind {
	case DestAwaitingAddress:
		return false, e.fault(entry, errUnresolvedStore)
	case DestAddress:
		if err := e.store(inst.Op, entry.Dest.Addr, entry.StoreValue); err != nil {
			return false, e.fault(entry, err)
		}
		ev.Value = entry.StoreValue
	case DestRegister:
		e.regs.Set(entry.Dest.Reg, entry.Value)
		e.status.Release(entry.Dest.Reg, idx)
	}

	e.regs.ApplyFlags(entry.FlagUpdate.Restrict(entry.Flags))
	for _, flag := range entry.Flags.Regs() {
		e.status.Release(flag, idx)
	}

	next := entry.PC + entry.PCIncrement
	redirect := false

	switch inst.Op {
	case insts.OpSVC:
		res, err := e.syscalls.Handle(uint8(inst.Imm), e.regs, e.mem)
		if err != nil {
			return false, e.fault(entry, err)
		}
		if e.fetch == fetchSerialized {
			e.fetch = fetchRunning
		}
		switch {
		case res.Exited:
			e.halted = true
			e.exitCode = res.ExitCode
		case entry.Halt:
			e.halted = true
			e.exitCode = int32(e.regs.Get(0))
		}

	case insts.OpB, insts.OpBL:
		ev.Branch = true
		ev.Predicted = entry.PredictedTaken
		ev.Taken = entry.Taken
		e.predictor.Update(entry.PC, entry.Taken, entry.Target)
		next = entry.Target
		if entry.Taken != entry.PredictedTaken {
			e.stats.Mispredictions++
			ev.Mispredicted = true
			redirect = true
		} else {
			e.stats.CorrectPredictions++
		}

	case insts.OpBX, insts.OpBLX, insts.OpSetPC:
		next = entry.Target
		redirect = true
	}

	e.regs.R[insts.RegPC] = next
	e.stats.MicroOps++
	if ev.Last {
		e.stats.Instructions++
	}

	if redirect {
		ev.Redirect = true
		ev.Target = next
		e.recover(next)
	}
	e.rob.Pop()

	if e.debug {
		e.log.WithFields(logrus.Fields{
			"cycle": e.stats.Cycles,
			"rob":   idx,
			"pc":    entry.PC,
			"inst":  inst.String(),
		}).Debug("commit")
	}
	for _, o := range e.observers {
		o.OnCommit(ev)
	}

	return redirect, nil
}

func (e *Engine) store(op insts.Op, addr, value uint32) error {
	if err := emu.StoreValue(e.mem, op, addr, value); err != nil {
		return err
	}
	if e.dcache != nil {
		e.dcache.Access(addr, true)
	}
	return nil
}

func (e *Engine) fault(entry *Entry, err error) error {
	return &SimError{PC: entry.PC, Word: entry.Word, Inst: entry.Inst, Err: err}
}

// recover discards all speculative work younger than the committing head
// and restarts fetch at target after the flush delay.
func (e *Engine) recover(target uint32) {
	e.fetchBuffer = e.fetchBuffer[:0]
	e.queue = e.queue[:0]
	for _, set := range e.stations {
		if set != nil {
			set.Clear()
		}
	}
	e.rob.FlushAfterHead()
	e.status.Clear()
	e.loads.Clear()
	e.cdb.Clear()

	e.fetch = fetchRunning
	e.flushDelay = e.timing.FlushDelay()
	e.specPC = target
	e.stats.Flushes++

	e.log.WithFields(logrus.Fields{
		"cycle":  e.stats.Cycles,
		"target": target,
	}).Debug("flush")
}
