package ooo

import (
	"sort"

	"github.com/sarchlab/thumbsim/emu"
	"github.com/sarchlab/thumbsim/insts"
)

// Record is a result on its way to the common data bus.
type Record struct {
	ROB    int
	Value  uint32
	Target uint32
	Taken  bool
	Flags  emu.FlagUpdate
	Halt   bool
	Err    error

	// Class and Slot locate the reservation station that produced the
	// record; Slot is -1 when none is held (queued loads).
	Class insts.Class
	Slot  int

	// Countdown is the number of writeback cycles left before the record
	// becomes eligible for broadcast.
	Countdown uint64
	// Started is the cycle the producing operation began executing.
	Started uint64
}

// CDB holds the records in flight to the bus and those waiting for a
// broadcast slot.
type CDB struct {
	width    int
	pending  []Record
	eligible []Record
}

// NewCDB creates a bus broadcasting width records per cycle.
func NewCDB(width int) *CDB {
	return &CDB{width: width}
}

// Push enqueues a record produced this cycle.
func (c *CDB) Push(r Record) {
	c.pending = append(c.pending, r)
}

// Advance counts down every pending record and returns up to the bus
// width of eligible records, earliest started first and then oldest by
// reorder buffer age.
func (c *CDB) Advance(age func(rob int) int) []Record {
	var matured []Record
	remaining := c.pending[:0]
	for _, r := range c.pending {
		if r.Countdown > 0 {
			r.Countdown--
		}
		if r.Countdown == 0 {
			matured = append(matured, r)
			continue
		}
		remaining = append(remaining, r)
	}
	c.pending = remaining

	sort.SliceStable(matured, func(a, b int) bool {
		if matured[a].Started != matured[b].Started {
			return matured[a].Started < matured[b].Started
		}
		return age(matured[a].ROB) < age(matured[b].ROB)
	})
	c.eligible = append(c.eligible, matured...)

	n := c.width
	if n > len(c.eligible) {
		n = len(c.eligible)
	}
	out := make([]Record, n)
	copy(out, c.eligible[:n])
	c.eligible = append(c.eligible[:0], c.eligible[n:]...)
	return out
}

// Len returns the number of records not yet broadcast.
func (c *CDB) Len() int {
	return len(c.pending) + len(c.eligible)
}

// Records returns a copy of the records not yet broadcast, eligible first.
func (c *CDB) Records() []Record {
	out := make([]Record, 0, c.Len())
	out = append(out, c.eligible...)
	return append(out, c.pending...)
}

// Clear drops every record.
func (c *CDB) Clear() {
	c.pending = c.pending[:0]
	c.eligible = c.eligible[:0]
}
