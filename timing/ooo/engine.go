// Package ooo implements a cycle-level model of an out-of-order, speculative
// Thumb core built around a reorder buffer, reservation stations and a
// common data bus.
//
// Each call to Tick advances the machine by one clock cycle. Stages run
// from the back of the pipeline to the front (commit, writeback, execute,
// issue, decode, fetch), so every stage sees the state its predecessor left
// at the end of the previous cycle.
package ooo

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/thumbsim/emu"
	"github.com/sarchlab/thumbsim/insts"
	"github.com/sarchlab/thumbsim/timing/cache"
	"github.com/sarchlab/thumbsim/timing/latency"
)

// FetchEntry is a raw instruction word in the fetch buffer.
type FetchEntry struct {
	PC   uint32
	Word uint32
	// Err is set when the fetch itself faulted.
	Err error
	// PredictedTaken records the fetch-time prediction of a direct branch.
	PredictedTaken bool
}

// QueueEntry is a decoded micro-op waiting in the instruction queue. A
// non-nil Err turns the entry into an exception when it reaches the ROB.
type QueueEntry struct {
	PC             uint32
	Word           uint32
	UOp            insts.MicroOp
	Err            error
	PredictedTaken bool
}

type fetchState uint8

const (
	fetchRunning fetchState = iota
	// fetchSerialized waits for an SVC to commit.
	fetchSerialized
	// fetchFaulted waits for a flush after a fetch fault.
	fetchFaulted
)

// Engine is the out-of-order core.
type Engine struct {
	config          Config
	policy          Policy
	predictorConfig PredictorConfig
	timingConfig    *latency.TimingConfig
	dcacheConfig    *cache.Config
	stdout          io.Writer
	observers       []CommitObserver
	log             logrus.FieldLogger
	debug           bool

	regs      *emu.RegFile
	mem       *emu.Memory
	decoder   *insts.Decoder
	timing    *latency.Table
	predictor Predictor
	dcache    *cache.Cache
	syscalls  emu.SyscallHandler

	specPC      uint32
	fetchBuffer []FetchEntry
	queue       []QueueEntry
	rob         *ReorderBuffer
	status      *RegisterStatus
	stations    [insts.NumClasses]*StationSet
	loads       *LoadQueue
	cdb         *CDB

	fetch      fetchState
	flushDelay uint64

	stats    Stats
	halted   bool
	exitCode int32
	err      error
}

// New creates an engine that runs the program in mem starting from the
// architectural state in regs. Fetch starts at regs.PC().
func New(regs *emu.RegFile, mem *emu.Memory, opts ...Option) (*Engine, error) {
	e := &Engine{
		config:          DefaultConfig(),
		policy:          PolicyAlwaysUntaken,
		predictorConfig: DefaultPredictorConfig(),
		stdout:          os.Stdout,
		regs:            regs,
		mem:             mem,
		decoder:         insts.NewDecoder(),
	}

	for _, opt := range opts {
		opt(e)
	}

	if err := e.config.Validate(); err != nil {
		return nil, err
	}

	if e.timingConfig == nil {
		e.timingConfig = latency.DefaultTimingConfig()
	}
	if err := e.timingConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid timing config: %w", err)
	}
	e.timing = latency.NewTableWithConfig(e.timingConfig)

	if e.dcacheConfig != nil {
		dcache, err := cache.New(*e.dcacheConfig)
		if err != nil {
			return nil, fmt.Errorf("invalid data cache: %w", err)
		}
		e.dcache = dcache
	}

	if e.log == nil {
		logger := logrus.New()
		logger.SetOutput(io.Discard)
		e.log = logger
	}
	e.debug = debugEnabled(e.log)

	if e.syscalls == nil {
		e.syscalls = emu.NewDefaultSyscallHandler(e.stdout)
	}

	e.predictor = NewPredictor(e.policy, e.predictorConfig)
	e.rob = NewReorderBuffer(e.config.ROBSize)
	e.status = NewRegisterStatus()
	for class := insts.ClassALUShift; class < insts.NumClasses; class++ {
		e.stations[class] = NewStationSet(class, e.config.StationSizes[class])
	}
	e.loads = NewLoadQueue(e.config.LoadQueueSize)
	e.cdb = NewCDB(e.config.CDBWidth)
	e.specPC = regs.PC()

	return e, nil
}

func debugEnabled(log logrus.FieldLogger) bool {
	switch l := log.(type) {
	case *logrus.Logger:
		return l.IsLevelEnabled(logrus.DebugLevel)
	case *logrus.Entry:
		return l.Logger.IsLevelEnabled(logrus.DebugLevel)
	}
	return true
}

// Tick advances the engine by one cycle. It returns a *SimError when the
// oldest instruction faulted, and keeps returning it afterwards. Ticking a
// halted engine does nothing.
func (e *Engine) Tick() error {
	if e.err != nil {
		return e.err
	}
	if e.halted {
		return nil
	}

	e.stats.Cycles++

	if err := e.commitStage(); err != nil {
		e.err = err
		e.log.WithFields(logrus.Fields{
			"cycle": e.stats.Cycles,
			"error": err,
		}).Debug("commit fault")
		return err
	}
	if e.halted {
		return nil
	}

	e.writebackStage()
	e.executeStage()
	e.issueStage()
	e.decodeStage()
	e.fetchStage()

	if n := e.rob.Len(); n > e.stats.MaxROBOccupancy {
		e.stats.MaxROBOccupancy = n
	}
	return nil
}

// Run ticks until the program exits, a fault is raised or maxCycles cycles
// have elapsed. maxCycles of 0 means no limit.
func (e *Engine) Run(maxCycles uint64) (int32, error) {
	for !e.halted {
		if maxCycles > 0 && e.stats.Cycles >= maxCycles {
			return -1, fmt.Errorf("%w after %d cycles", ErrMaxCycles, maxCycles)
		}
		if err := e.Tick(); err != nil {
			return -1, err
		}
	}
	return e.exitCode, nil
}

// Reset drops all speculative state and restarts fetch at the architectural
// PC. Registers, memory and statistics are kept.
func (e *Engine) Reset() {
	e.fetchBuffer = nil
	e.queue = nil
	e.rob.Reset()
	e.status.Clear()
	for _, set := range e.stations {
		if set != nil {
			set.Clear()
		}
	}
	e.loads.Clear()
	e.cdb.Clear()
	e.fetch = fetchRunning
	e.flushDelay = 0
	e.specPC = e.regs.PC()
	e.err = nil
}

func (e *Engine) stall(reason StallReason) {
	e.stats.Stalls[reason]++
}

// Halted reports whether the program has exited.
func (e *Engine) Halted() bool { return e.halted }

// ExitCode returns the exit status once Halted is true.
func (e *Engine) ExitCode() int32 { return e.exitCode }

// Err returns the fault that stopped the engine, if any.
func (e *Engine) Err() error { return e.err }

// Cycle returns the number of elapsed cycles.
func (e *Engine) Cycle() uint64 { return e.stats.Cycles }

// Config returns the structural configuration.
func (e *Engine) Config() Config { return e.config }

// Stats returns a copy of the statistics.
func (e *Engine) Stats() Stats {
	s := e.stats
	s.Predictor = e.predictor.Stats()
	return s
}

// DCacheStats returns the data cache statistics, if a cache is configured.
func (e *Engine) DCacheStats() (cache.Statistics, bool) {
	if e.dcache == nil {
		return cache.Statistics{}, false
	}
	return e.dcache.Stats(), true
}

// Registers returns a copy of the architectural register file.
func (e *Engine) Registers() emu.RegFile { return *e.regs }

// Memory returns the memory the engine commits stores to.
func (e *Engine) Memory() *emu.Memory { return e.mem }

// SpeculativePC returns the address of the next fetch.
func (e *Engine) SpeculativePC() uint32 { return e.specPC }

// ROBSnapshot is a copy of the reorder buffer.
type ROBSnapshot struct {
	Head    int
	Tail    int
	Len     int
	Entries []Entry
}

// ROB returns a copy of the reorder buffer.
func (e *Engine) ROB() ROBSnapshot {
	return ROBSnapshot{
		Head:    e.rob.Head(),
		Tail:    e.rob.Tail(),
		Len:     e.rob.Len(),
		Entries: e.rob.Snapshot(),
	}
}

// ReservationStations returns a copy of the station entries of a class.
func (e *Engine) ReservationStations(class insts.Class) []StationEntry {
	if int(class) >= len(e.stations) || e.stations[class] == nil {
		return nil
	}
	return e.stations[class].Snapshot()
}

// RegisterStatus returns the producing ROB index of every register, or
// NoProducer.
func (e *Engine) RegisterStatus() [insts.NumRegs]int { return e.status.Snapshot() }

// LoadQueue returns the loads waiting for memory.
func (e *Engine) LoadQueue() []LoadQueueEntry { return e.loads.Entries() }

// PendingBroadcasts returns the results in flight toward the CDB.
func (e *Engine) PendingBroadcasts() []Record { return e.cdb.Records() }

// InstructionQueue returns the decoded micro-ops waiting for issue.
func (e *Engine) InstructionQueue() []QueueEntry {
	out := make([]QueueEntry, len(e.queue))
	copy(out, e.queue)
	return out
}

// FetchBuffer returns the fetched words waiting for decode.
func (e *Engine) FetchBuffer() []FetchEntry {
	out := make([]FetchEntry, len(e.fetchBuffer))
	copy(out, e.fetchBuffer)
	return out
}
