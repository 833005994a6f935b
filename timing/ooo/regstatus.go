package ooo

import "github.com/sarchlab/thumbsim/insts"

// NoProducer marks a register whose value is in the register file.
const NoProducer = -1

// RegisterStatus maps each register and condition flag to the reorder
// buffer entry that will produce its next value.
type RegisterStatus struct {
	producer [insts.NumRegs]int
}

// NewRegisterStatus creates a table with no pending producers.
func NewRegisterStatus() *RegisterStatus {
	rs := &RegisterStatus{}
	rs.Clear()
	return rs
}

// Producer returns the pending producer of reg, or NoProducer.
func (t *RegisterStatus) Producer(reg uint8) int {
	if int(reg) >= len(t.producer) {
		return NoProducer
	}
	return t.producer[reg]
}

// Set records rob as the producer of reg.
func (t *RegisterStatus) Set(reg uint8, rob int) {
	if int(reg) < len(t.producer) {
		t.producer[reg] = rob
	}
}

// Release clears reg only if rob is still its recorded producer, and
// reports whether it did.
func (t *RegisterStatus) Release(reg uint8, rob int) bool {
	if int(reg) >= len(t.producer) || t.producer[reg] != rob {
		return false
	}
	t.producer[reg] = NoProducer
	return true
}

// Clear drops every pending producer.
func (t *RegisterStatus) Clear() {
	for i := range t.producer {
		t.producer[i] = NoProducer
	}
}

// References reports whether any slot names rob.
func (t *RegisterStatus) References(rob int) bool {
	for _, p := range t.producer {
		if p == rob {
			return true
		}
	}
	return false
}

// Snapshot returns a copy of the table indexed by register id.
func (t *RegisterStatus) Snapshot() [insts.NumRegs]int {
	return t.producer
}
