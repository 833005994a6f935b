package ooo

import (
	"github.com/sarchlab/thumbsim/emu"
	"github.com/sarchlab/thumbsim/insts"
)

// Status is the execution state of a reorder buffer entry.
type Status uint8

// Entry states.
const (
	StatusEmpty Status = iota
	StatusExecuting
	StatusException
)

var statusNames = [...]string{"empty", "executing", "exception"}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "unknown"
}

// DestKind says what committing an entry writes.
type DestKind uint8

// Destination kinds.
const (
	// DestDiscard entries write no register or memory (compares, branches).
	DestDiscard DestKind = iota
	// DestAwaitingAddress is a store whose address is not yet computed.
	DestAwaitingAddress
	// DestAddress is a store with a resolved address.
	DestAddress
	// DestRegister entries write Dest.Reg.
	DestRegister
)

var destNames = [...]string{"discard", "awaiting-address", "address", "register"}

func (k DestKind) String() string {
	if int(k) < len(destNames) {
		return destNames[k]
	}
	return "unknown"
}

// Dest is the destination descriptor of a reorder buffer entry.
type Dest struct {
	Kind DestKind
	// Reg is the destination register of DestRegister entries.
	Reg uint8
	// Addr is the store address of DestAddress entries.
	Addr uint32
}

// Entry is one reorder buffer slot.
type Entry struct {
	PC          uint32
	Word        uint32
	Inst        *insts.Instruction
	PCIncrement uint32
	Class       insts.Class

	Status Status
	// Err is the cause of a StatusException entry.
	Err error

	Dest Dest
	// Flags is the set of condition flags the entry produces.
	Flags insts.FlagMask

	Value      uint32
	StoreValue uint32
	Target     uint32
	Taken      bool
	FlagUpdate emu.FlagUpdate
	Ready      bool
	Halt       bool

	// PredictedTaken is the fetch-time prediction for direct branches.
	PredictedTaken bool

	IssueCycle uint64
	ExecCycle  uint64
	DoneCycle  uint64
}

// ReorderBuffer is a fixed-capacity circular buffer of entries. The
// occupied slots always form the range [head, tail) modulo the capacity.
type ReorderBuffer struct {
	entries []Entry
	head    int
	tail    int
	count   int

	staged    Entry
	hasStaged bool
}

// NewReorderBuffer creates a reorder buffer with size entries.
func NewReorderBuffer(size int) *ReorderBuffer {
	return &ReorderBuffer{entries: make([]Entry, size)}
}

// Cap returns the capacity.
func (r *ReorderBuffer) Cap() int { return len(r.entries) }

// Len returns the number of occupied entries.
func (r *ReorderBuffer) Len() int { return r.count }

// Head returns the index of the oldest entry.
func (r *ReorderBuffer) Head() int { return r.head }

// Tail returns the index the next entry will occupy.
func (r *ReorderBuffer) Tail() int { return r.tail }

// Full reports whether no slot is free.
func (r *ReorderBuffer) Full() bool { return r.count == len(r.entries) }

// Empty reports whether no slot is occupied.
func (r *ReorderBuffer) Empty() bool { return r.count == 0 }

// At returns the entry at index i.
func (r *ReorderBuffer) At(i int) *Entry { return &r.entries[i] }

// HeadEntry returns the oldest entry, or nil when empty.
func (r *ReorderBuffer) HeadEntry() *Entry {
	if r.Empty() {
		return nil
	}
	return &r.entries[r.head]
}

// Age returns the position of index i counted from the head.
func (r *ReorderBuffer) Age(i int) int {
	return (i - r.head + len(r.entries)) % len(r.entries)
}

// Occupied reports whether index i lies in the range [head, tail).
func (r *ReorderBuffer) Occupied(i int) bool {
	return i >= 0 && i < len(r.entries) && r.Age(i) < r.count
}

// Stage buffers an entry for the tail slot and returns the index it will
// take. Nothing is visible until Confirm.
func (r *ReorderBuffer) Stage(e Entry) (int, bool) {
	if r.Full() {
		return 0, false
	}
	r.staged = e
	r.hasStaged = true
	return r.tail, true
}

// Confirm commits the staged entry to the tail.
func (r *ReorderBuffer) Confirm() int {
	if !r.hasStaged {
		panic("ooo: confirm without staged entry")
	}

	idx := r.tail
	r.entries[idx] = r.staged
	r.tail = (r.tail + 1) % len(r.entries)
	r.count++
	r.staged = Entry{}
	r.hasStaged = false
	return idx
}

// Discard drops the staged entry.
func (r *ReorderBuffer) Discard() {
	r.staged = Entry{}
	r.hasStaged = false
}

// Pop retires the head entry.
func (r *ReorderBuffer) Pop() {
	if r.Empty() {
		return
	}
	r.entries[r.head] = Entry{}
	r.head = (r.head + 1) % len(r.entries)
	r.count--
}

// FlushAfterHead empties every entry younger than the head.
func (r *ReorderBuffer) FlushAfterHead() {
	r.Discard()
	if r.Empty() {
		return
	}
	for n := 1; n < r.count; n++ {
		r.entries[(r.head+n)%len(r.entries)] = Entry{}
	}
	r.tail = (r.head + 1) % len(r.entries)
	r.count = 1
}

// Reset empties the buffer and rewinds it to index 0.
func (r *ReorderBuffer) Reset() {
	for i := range r.entries {
		r.entries[i] = Entry{}
	}
	r.head, r.tail, r.count = 0, 0, 0
	r.Discard()
}

// Each calls fn for every occupied entry from oldest to youngest.
func (r *ReorderBuffer) Each(fn func(idx int, e *Entry)) {
	for n := 0; n < r.count; n++ {
		idx := (r.head + n) % len(r.entries)
		fn(idx, &r.entries[idx])
	}
}

// Snapshot returns a copy of all slots in index order.
func (r *ReorderBuffer) Snapshot() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}
