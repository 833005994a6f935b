package ooo

import (
	"fmt"

	"github.com/sarchlab/thumbsim/insts"
)

// Policy selects how fetch predicts direct branches.
type Policy uint8

// Prediction policies.
const (
	// PolicyAlwaysUntaken lets fetch continue past every branch.
	PolicyAlwaysUntaken Policy = iota
	// PolicyAlwaysTaken redirects fetch to the target of every direct branch.
	PolicyAlwaysTaken
	// PolicyBimodal predicts each branch with a 2-bit saturating counter.
	PolicyBimodal
)

var policyNames = map[Policy]string{
	PolicyAlwaysUntaken: "untaken",
	PolicyAlwaysTaken:   "taken",
	PolicyBimodal:       "bimodal",
}

// String returns the name used on the command line.
func (p Policy) String() string {
	if name, ok := policyNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Policy(%d)", uint8(p))
}

// ParsePolicy converts a policy name to a Policy.
func ParsePolicy(name string) (Policy, error) {
	for p, n := range policyNames {
		if n == name {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown prediction policy %q (want taken, untaken or bimodal)", name)
}

// Config holds the structural parameters of the engine.
type Config struct {
	// FetchWidth is the number of instructions fetched per cycle.
	FetchWidth int
	// FetchBufferSize is the capacity of the fetch buffer.
	FetchBufferSize int
	// InstructionQueueSize is the capacity of the micro-op queue between
	// decode and issue.
	InstructionQueueSize int
	// DecodeReserve is the number of free queue slots decode requires
	// before it expands another instruction.
	DecodeReserve int
	// IssueWidth is the maximum number of micro-ops issued per cycle.
	IssueWidth int
	// CommitWidth is the maximum number of micro-ops retired per cycle.
	CommitWidth int
	// ROBSize is the number of reorder buffer entries.
	ROBSize int
	// CDBWidth is the number of results broadcast per cycle.
	CDBWidth int
	// LoadQueueSize is the capacity of the load queue.
	LoadQueueSize int
	// LoadPorts is the number of queued loads that may access memory per
	// cycle.
	LoadPorts int
	// StationSizes is the number of reservation station entries per
	// functional unit class.
	StationSizes [insts.NumClasses]int
	// Units is the number of functional units per class; each unit starts
	// at most one operation per cycle.
	Units [insts.NumClasses]int
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	c := Config{
		FetchWidth:           1,
		FetchBufferSize:      4,
		InstructionQueueSize: 16,
		DecodeReserve:        4,
		IssueWidth:           4,
		CommitWidth:          1,
		ROBSize:              64,
		CDBWidth:             2,
		LoadQueueSize:        16,
		LoadPorts:            2,
	}

	c.StationSizes[insts.ClassALUShift] = 8
	c.StationSizes[insts.ClassMul] = 4
	c.StationSizes[insts.ClassLoadStore] = 4
	c.StationSizes[insts.ClassControl] = 4

	c.Units[insts.ClassALUShift] = 2
	c.Units[insts.ClassMul] = 1
	c.Units[insts.ClassLoadStore] = 2
	c.Units[insts.ClassControl] = 1

	return c
}

// Validate checks that every structure has room for at least one entry.
func (c Config) Validate() error {
	positive := []struct {
		name  string
		value int
	}{
		{"fetch width", c.FetchWidth},
		{"fetch buffer size", c.FetchBufferSize},
		{"instruction queue size", c.InstructionQueueSize},
		{"issue width", c.IssueWidth},
		{"commit width", c.CommitWidth},
		{"ROB size", c.ROBSize},
		{"CDB width", c.CDBWidth},
		{"load queue size", c.LoadQueueSize},
		{"load ports", c.LoadPorts},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("%s must be > 0, got %d", p.name, p.value)
		}
	}

	if c.DecodeReserve < 0 || c.DecodeReserve > c.InstructionQueueSize {
		return fmt.Errorf("decode reserve must be between 0 and the instruction queue size, got %d",
			c.DecodeReserve)
	}

	for class := insts.ClassALUShift; class < insts.NumClasses; class++ {
		if c.StationSizes[class] <= 0 {
			return fmt.Errorf("%v reservation stations must be > 0", class)
		}
		if c.Units[class] <= 0 {
			return fmt.Errorf("%v units must be > 0", class)
		}
	}

	return nil
}
