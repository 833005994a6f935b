package ooo

import (
	"fmt"
	"sort"

	"github.com/sarchlab/thumbsim/insts"
)

// Operand is a reservation station operand: a value, or a tag naming the
// reorder buffer entry and register that will produce it.
type Operand struct {
	Pending bool
	Value   uint32
	ROB     int
	Reg     uint8
}

// ValueOperand returns a resolved operand.
func ValueOperand(v uint32) Operand {
	return Operand{Value: v}
}

// PendingOperand returns an operand waiting on register reg of entry rob.
func PendingOperand(rob int, reg uint8) Operand {
	return Operand{Pending: true, ROB: rob, Reg: reg}
}

func (o Operand) String() string {
	if o.Pending {
		return fmt.Sprintf("#%d.%s", o.ROB, insts.RegName(o.Reg))
	}
	return fmt.Sprintf("%08X", o.Value)
}

// StationEntry is one reservation station slot.
type StationEntry struct {
	Busy     bool
	Operands [insts.NumSources]Operand
	ROB      int
	Inst     *insts.Instruction
	SetFlags bool
	// Dispatched is set once the entry started executing. The slot stays
	// busy until its result is broadcast.
	Dispatched bool
}

// Ready reports whether the entry is busy with no pending operand.
func (e *StationEntry) Ready() bool {
	if !e.Busy {
		return false
	}
	for _, op := range e.Operands {
		if op.Pending {
			return false
		}
	}
	return true
}

// Values returns the operand values of a ready entry.
func (e *StationEntry) Values() [insts.NumSources]uint32 {
	var vals [insts.NumSources]uint32
	for i, op := range e.Operands {
		vals[i] = op.Value
	}
	return vals
}

// StationSet is the group of reservation stations of one functional unit
// class.
type StationSet struct {
	Class   insts.Class
	entries []StationEntry
}

// NewStationSet creates a set with size slots.
func NewStationSet(class insts.Class, size int) *StationSet {
	return &StationSet{Class: class, entries: make([]StationEntry, size)}
}

// Len returns the number of slots.
func (s *StationSet) Len() int { return len(s.entries) }

// At returns slot i.
func (s *StationSet) At(i int) *StationEntry { return &s.entries[i] }

// Busy returns the number of busy slots.
func (s *StationSet) Busy() int {
	n := 0
	for i := range s.entries {
		if s.entries[i].Busy {
			n++
		}
	}
	return n
}

// FreeSlot returns the index of a free slot, or -1.
func (s *StationSet) FreeSlot() int {
	for i := range s.entries {
		if !s.entries[i].Busy {
			return i
		}
	}
	return -1
}

// Insert fills slot i.
func (s *StationSet) Insert(i int, e StationEntry) {
	e.Busy = true
	s.entries[i] = e
}

// Free releases slot i.
func (s *StationSet) Free(i int) {
	s.entries[i] = StationEntry{}
}

// Resolve replaces every operand waiting on (rob, reg) with value.
func (s *StationSet) Resolve(rob int, reg uint8, value uint32) {
	for i := range s.entries {
		e := &s.entries[i]
		if !e.Busy {
			continue
		}
		for j := range e.Operands {
			op := &e.Operands[j]
			if op.Pending && op.ROB == rob && op.Reg == reg {
				*op = ValueOperand(value)
			}
		}
	}
}

// Waiting reports whether any operand still waits on rob.
func (s *StationSet) Waiting(rob int) bool {
	for i := range s.entries {
		e := &s.entries[i]
		if !e.Busy {
			continue
		}
		for _, op := range e.Operands {
			if op.Pending && op.ROB == rob {
				return true
			}
		}
	}
	return false
}

// ReadyByAge returns the slots that are ready and not dispatched, oldest
// first by reorder buffer age.
func (s *StationSet) ReadyByAge(age func(rob int) int) []int {
	var ready []int
	for i := range s.entries {
		if s.entries[i].Ready() && !s.entries[i].Dispatched {
			ready = append(ready, i)
		}
	}
	sort.Slice(ready, func(a, b int) bool {
		return age(s.entries[ready[a]].ROB) < age(s.entries[ready[b]].ROB)
	})
	return ready
}

// Clear frees every slot.
func (s *StationSet) Clear() {
	for i := range s.entries {
		s.entries[i] = StationEntry{}
	}
}

// Snapshot returns a copy of the slots.
func (s *StationSet) Snapshot() []StationEntry {
	out := make([]StationEntry, len(s.entries))
	copy(out, s.entries)
	return out
}
