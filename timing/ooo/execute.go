package ooo

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/thumbsim/emu"
	"github.com/sarchlab/thumbsim/insts"
)

// executeStage starts ready station entries on free functional units,
// oldest first, and sends queued loads to memory.
//
// The load queue is served before new loads are dispatched into it, so a
// load reaches memory no earlier than the cycle after it executes.
func (e *Engine) executeStage() {
	e.drainLoads()

	loadQueueStalled := false
	for class := insts.ClassALUShift; class < insts.NumClasses; class++ {
		set := e.stations[class]
		started := 0
		for _, slot := range set.ReadyByAge(e.rob.Age) {
			if started == e.config.Units[class] {
				break
			}
			rs := set.At(slot)
			if rs.Inst.IsLoad() && e.loads.Full() {
				loadQueueStalled = true
				continue
			}
			e.dispatch(class, slot, rs)
			started++
		}
	}

	if loadQueueStalled {
		e.stall(StallLoadQueueFull)
	}
}

func (e *Engine) dispatch(class insts.Class, slot int, rs *StationEntry) {
	rs.Dispatched = true
	entry := e.rob.At(rs.ROB)
	entry.ExecCycle = e.stats.Cycles

	inst := rs.Inst
	vals := rs.Values()
	rec := Record{
		ROB:       rs.ROB,
		Class:     class,
		Slot:      slot,
		Started:   e.stats.Cycles,
		Countdown: e.timing.Latency(class, inst.Op),
	}

	switch class {
	case insts.ClassALUShift:
		res, err := emu.ALU(inst.Op, vals[0], vals[1], vals[2] != 0)
		rec.Value = res.Value
		rec.Flags = res.Flags.Restrict(entry.Flags)
		rec.Err = err

	case insts.ClassMul:
		res := emu.Multiply(vals[0], vals[1])
		rec.Value = res.Value
		rec.Flags = res.Flags.Restrict(entry.Flags)

	case insts.ClassLoadStore:
		addr := vals[0] + vals[1]
		if !inst.IsStore() {
			e.loads.Push(LoadQueueEntry{
				Addr:    addr,
				ROB:     rs.ROB,
				Op:      inst.Op,
				Started: e.stats.Cycles,
			})
			e.stations[class].Free(slot)
			e.logDispatch(rs, class)
			return
		}
		entry.StoreValue = vals[2]
		rec.Value = addr

	case insts.ClassControl:
		e.executeControl(entry, inst, vals, &rec)
	}

	e.cdb.Push(rec)
	e.logDispatch(rs, class)
}

func (e *Engine) executeControl(
	entry *Entry,
	inst *insts.Instruction,
	vals [insts.NumSources]uint32,
	rec *Record,
) {
	switch inst.Op {
	case insts.OpNOP:
		return
	case insts.OpBKPT:
		rec.Err = fmt.Errorf("%w #%d", emu.ErrBreakpoint, inst.Imm)
		return
	case insts.OpSVC:
		rec.Halt = uint8(inst.Imm) == emu.SyscallExit
		return
	}

	var flags emu.Flags
	if inst.Op == insts.OpB {
		flags = operandFlags(inst.Cond, vals)
	}

	out, err := emu.ResolveBranch(inst, entry.PC, flags, vals[1])
	rec.Taken = out.Taken
	rec.Target = out.Target
	rec.Value = out.Link
	rec.Err = err
}

// operandFlags rebuilds the flags a condition reads from the operand slots
// they were renamed into.
func operandFlags(cond insts.Cond, vals [insts.NumSources]uint32) emu.Flags {
	var regs emu.RegFile
	for i, flag := range insts.FlagsNeeded(cond) {
		regs.Set(flag, vals[i])
	}
	return regs.APSR
}

// drainLoads performs the memory reads of queued loads whose older stores
// are known not to conflict.
func (e *Engine) drainLoads() {
	for _, ld := range e.loads.Drain(e.rob, e.config.LoadPorts) {
		rec := Record{
			ROB:       ld.ROB,
			Class:     insts.ClassLoadStore,
			Slot:      -1,
			Started:   e.stats.Cycles,
			Countdown: e.timing.Latency(insts.ClassLoadStore, ld.Op),
		}

		value, err := emu.LoadValue(e.mem, ld.Op, ld.Addr)
		if err == nil && e.dcache != nil {
			rec.Countdown += e.dcache.Access(ld.Addr, false).Latency
		}
		rec.Value = value
		rec.Err = err
		if ld.Op == insts.OpSetPC {
			rec.Target = value &^ 1
		}

		e.cdb.Push(rec)

		if e.debug {
			e.log.WithFields(logrus.Fields{
				"cycle": e.stats.Cycles,
				"rob":   ld.ROB,
				"addr":  ld.Addr,
				"value": value,
			}).Debug("load")
		}
	}
}

func (e *Engine) logDispatch(rs *StationEntry, class insts.Class) {
	if !e.debug {
		return
	}
	e.log.WithFields(logrus.Fields{
		"cycle": e.stats.Cycles,
		"rob":   rs.ROB,
		"inst":  rs.Inst.String(),
		"class": class.String(),
	}).Debug("execute")
}
