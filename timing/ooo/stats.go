package ooo

import (
	"github.com/sarchlab/thumbsim/insts"
)

// StallReason identifies a structural stall.
type StallReason uint8

// Stall reasons.
const (
	StallIssueROBFull StallReason = iota
	StallIssueRSFull
	StallLoadQueueFull
	StallDecodeQueueFull
	StallFetchBufferFull
	StallFetchSerialized
	numStallReasons
)

var stallNames = [numStallReasons]string{
	"issue-rob-full",
	"issue-rs-full",
	"load-queue-full",
	"decode-queue-full",
	"fetch-buffer-full",
	"fetch-serialized",
}

func (r StallReason) String() string {
	if r < numStallReasons {
		return stallNames[r]
	}
	return "unknown"
}

// StallReasons lists every stall reason in order.
func StallReasons() []StallReason {
	reasons := make([]StallReason, numStallReasons)
	for i := range reasons {
		reasons[i] = StallReason(i)
	}
	return reasons
}

// Stats holds engine performance statistics.
type Stats struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Instructions is the number of instructions committed.
	Instructions uint64
	// MicroOps is the number of micro-ops committed.
	MicroOps uint64
	// Mispredictions is the number of committed direct branches whose
	// outcome differed from the fetch-time prediction.
	Mispredictions uint64
	// CorrectPredictions is the number of committed direct branches
	// predicted correctly.
	CorrectPredictions uint64
	// Flushes is the number of pipeline flushes, from mispredictions and
	// from indirect branches.
	Flushes uint64
	// Stalls counts cycles a stage was blocked, by reason.
	Stalls [numStallReasons]uint64
	// MaxROBOccupancy is the largest number of in-flight entries seen.
	MaxROBOccupancy int
	// Predictor holds the predictor's own counters.
	Predictor PredictorStats
}

// Stall returns the count for one reason.
func (s Stats) Stall(reason StallReason) uint64 {
	if reason >= numStallReasons {
		return 0
	}
	return s.Stalls[reason]
}

// IPC returns the instructions committed per cycle.
func (s Stats) IPC() float64 {
	if s.Cycles == 0 {
		return 0
	}
	return float64(s.Instructions) / float64(s.Cycles)
}

// CPI returns the cycles per instruction.
func (s Stats) CPI() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Instructions)
}

// Accuracy returns the share of correctly predicted branches as a
// percentage.
func (s Stats) Accuracy() float64 {
	total := s.CorrectPredictions + s.Mispredictions
	if total == 0 {
		return 0
	}
	return float64(s.CorrectPredictions) / float64(total) * 100
}

// CommitEvent describes one committed micro-op.
type CommitEvent struct {
	Cycle uint64
	ROB   int
	PC    uint32
	Inst  *insts.Instruction
	Last  bool

	Dest  Dest
	Value uint32
	Flags insts.FlagMask

	// Branch is set for B and BL, whose outcome is compared with the
	// fetch-time prediction.
	Branch       bool
	Predicted    bool
	Taken        bool
	Mispredicted bool
	// Redirect is set when the commit restarted fetch at Target.
	Redirect bool
	Target   uint32

	IssueCycle uint64
	ExecCycle  uint64
	DoneCycle  uint64
}

// CommitObserver receives every committed micro-op.
type CommitObserver interface {
	OnCommit(CommitEvent)
}

// CommitObserverFunc adapts a function to CommitObserver.
type CommitObserverFunc func(CommitEvent)

// OnCommit calls f.
func (f CommitObserverFunc) OnCommit(e CommitEvent) { f(e) }
