package ooo

import "github.com/sarchlab/thumbsim/insts"

// conflictDistance is how close a store address may be to a load address
// before the two are assumed to overlap.
const conflictDistance = 4

// LoadQueueEntry is a load whose address is known, waiting until no older
// store can conflict with it.
type LoadQueueEntry struct {
	Addr    uint32
	ROB     int
	Op      insts.Op
	Started uint64
}

// LoadQueue holds address-calculated loads in issue order.
type LoadQueue struct {
	size    int
	entries []LoadQueueEntry
}

// NewLoadQueue creates a load queue with size entries.
func NewLoadQueue(size int) *LoadQueue {
	return &LoadQueue{size: size}
}

// Len returns the number of queued loads.
func (q *LoadQueue) Len() int { return len(q.entries) }

// Full reports whether no entry is free.
func (q *LoadQueue) Full() bool { return len(q.entries) >= q.size }

// Push appends a load.
func (q *LoadQueue) Push(e LoadQueueEntry) bool {
	if q.Full() {
		return false
	}
	q.entries = append(q.entries, e)
	return true
}

// Entries returns a copy of the queued loads.
func (q *LoadQueue) Entries() []LoadQueueEntry {
	out := make([]LoadQueueEntry, len(q.entries))
	copy(out, q.entries)
	return out
}

// Clear drops every queued load.
func (q *LoadQueue) Clear() {
	q.entries = q.entries[:0]
}

// Drain removes and returns up to max loads that may access memory, in
// queue order. A load may go once every older store in the reorder buffer
// has a resolved address at least conflictDistance bytes away from it.
func (q *LoadQueue) Drain(rob *ReorderBuffer, max int) []LoadQueueEntry {
	var out []LoadQueueEntry
	remaining := q.entries[:0]
	for _, e := range q.entries {
		if len(out) < max && !blockedByStore(rob, e) {
			out = append(out, e)
			continue
		}
		remaining = append(remaining, e)
	}
	q.entries = remaining
	return out
}

func blockedByStore(rob *ReorderBuffer, load LoadQueueEntry) bool {
	for n := 0; n < rob.Age(load.ROB); n++ {
		e := rob.At((rob.Head() + n) % rob.Cap())
		switch e.Dest.Kind {
		case DestAwaitingAddress:
			return true
		case DestAddress:
			if overlaps(e.Dest.Addr, load.Addr) {
				return true
			}
		}
	}
	return false
}

func overlaps(a, b uint32) bool {
	return a-b < conflictDistance || b-a < conflictDistance
}
