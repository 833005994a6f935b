package ooo

import (
	"github.com/sirupsen/logrus"
)

// writebackStage broadcasts finished results on the CDB. Every broadcast
// completes its ROB entry and wakes up the station operands tagged with
// that entry.
func (e *Engine) writebackStage() {
	for _, rec := range e.cdb.Advance(e.rob.Age) {
		e.broadcast(rec)
	}
}

func (e *Engine) broadcast(rec Record) {
	entry := e.rob.At(rec.ROB)
	entry.Ready = true
	entry.Value = rec.Value
	entry.Target = rec.Target
	entry.Taken = rec.Taken
	entry.FlagUpdate = rec.Flags
	entry.Halt = rec.Halt
	entry.DoneCycle = e.stats.Cycles
	if rec.Err != nil {
		entry.Status = StatusException
		entry.Err = rec.Err
	}

	switch entry.Dest.Kind {
	case DestAwaitingAddress:
		entry.Dest = Dest{Kind: DestAddress, Addr: rec.Value}
	case DestRegister:
		e.wakeup(rec.ROB, entry.Dest.Reg, rec.Value)
	}
	for _, flag := range entry.Flags.Regs() {
		e.wakeup(rec.ROB, flag, rec.Flags.Get(flag))
	}

	if rec.Slot >= 0 {
		e.stations[rec.Class].Free(rec.Slot)
	}

	if e.debug {
		e.log.WithFields(logrus.Fields{
			"cycle": e.stats.Cycles,
			"rob":   rec.ROB,
			"value": rec.Value,
		}).Debug("broadcast")
	}
}

func (e *Engine) wakeup(rob int, reg uint8, value uint32) {
	for _, set := range e.stations {
		if set != nil {
			set.Resolve(rob, reg, value)
		}
	}
}
