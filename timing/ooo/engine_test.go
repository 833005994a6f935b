package ooo_test

import (
	"bytes"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/thumbsim/emu"
	"github.com/sarchlab/thumbsim/insts"
	"github.com/sarchlab/thumbsim/timing/cache"
	"github.com/sarchlab/thumbsim/timing/latency"
	"github.com/sarchlab/thumbsim/timing/ooo"
)

const stackTop = emu.DefaultRAMBase + emu.DefaultRAMSize

type recorder struct {
	events []ooo.CommitEvent
}

func (r *recorder) OnCommit(ev ooo.CommitEvent) {
	r.events = append(r.events, ev)
}

func (r *recorder) at(pc uint32) ooo.CommitEvent {
	for _, ev := range r.events {
		if ev.PC == pc {
			return ev
		}
	}
	Fail("no commit at the given pc")
	return ooo.CommitEvent{}
}

func (r *recorder) pcs() []uint32 {
	out := make([]uint32, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.PC
	}
	return out
}

// countingHandler accepts every supervisor call without exiting.
type countingHandler struct {
	calls int
}

func (h *countingHandler) Handle(uint8, *emu.RegFile, *emu.Memory) (emu.SyscallResult, error) {
	h.calls++
	return emu.SyscallResult{}, nil
}

func newEngine(code []uint16, opts ...ooo.Option) (*ooo.Engine, *bytes.Buffer) {
	mem := emu.NewMemory()
	ExpectWithOffset(1, mem.LoadHalfwords(0, code)).To(Succeed())

	regs := &emu.RegFile{}
	regs.R[insts.RegSP] = stackTop

	out := &bytes.Buffer{}
	e, err := ooo.New(regs, mem, append([]ooo.Option{ooo.WithStdout(out)}, opts...)...)
	ExpectWithOffset(1, err).ToNot(HaveOccurred())
	return e, out
}

// checkInvariants verifies the structural invariants of the engine after a
// cycle.
func checkInvariants(e *ooo.Engine) {
	rob := e.ROB()
	capacity := len(rob.Entries)
	occupied := func(i int) bool {
		return (i-rob.Head+capacity)%capacity < rob.Len
	}

	for i, entry := range rob.Entries {
		ExpectWithOffset(1, entry.Status != ooo.StatusEmpty).To(Equal(occupied(i)),
			"ROB slot %d (head %d, len %d)", i, rob.Head, rob.Len)
	}

	for class := insts.ClassALUShift; class < insts.NumClasses; class++ {
		for _, rs := range e.ReservationStations(class) {
			if rs.Busy {
				ExpectWithOffset(1, occupied(rs.ROB)).To(BeTrue(), "station tag %d", rs.ROB)
			}
		}
	}
	for reg, p := range e.RegisterStatus() {
		if p != ooo.NoProducer {
			ExpectWithOffset(1, occupied(p)).To(BeTrue(), "producer of %s", insts.RegName(uint8(reg)))
		}
	}

	ExpectWithOffset(1, len(e.InstructionQueue())).To(BeNumerically("<=", e.Config().InstructionQueueSize))
	ExpectWithOffset(1, len(e.FetchBuffer())).To(BeNumerically("<=", e.Config().FetchBufferSize))
}

func runChecked(e *ooo.Engine, maxCycles int) (int32, error) {
	for i := 0; i < maxCycles && !e.Halted(); i++ {
		if err := e.Tick(); err != nil {
			return -1, err
		}
		checkInvariants(e)
	}
	ExpectWithOffset(1, e.Halted()).To(BeTrue(), "program did not halt")
	return e.ExitCode(), nil
}

var straightLine = []uint16{
	0x2005, // MOVS R0, #5
	0x2103, // MOVS R1, #3
	0x1842, // ADDS R2, R0, R1
	0x0010, // MOVS R0, R2
	0xDF00, // SVC #0
}

// falseBranch falls through a BEQ whose condition is false.
var falseBranch = []uint16{
	0x2001, // 0:  MOVS R0, #1
	0x2800, // 2:  CMP R0, #0
	0xD001, // 4:  BEQ skip
	0x2007, // 6:  MOVS R0, #7
	0xDF00, // 8:  SVC #0
	0x2009, // 10: skip: MOVS R0, #9
	0xDF00, // 12: SVC #0
}

// storeThenLoad stores 42 through a base register computed by a chain of
// multiplies, then loads from the same or a different address.
func storeThenLoad(load uint16) []uint16 {
	return []uint16{
		0x2001, // 0:  MOVS R0, #1
		0x0740, // 2:  LSLS R0, R0, #29
		0x212A, // 4:  MOVS R1, #42
		0x2401, // 6:  MOVS R4, #1
		0x0003, // 8:  MOVS R3, R0
		0x4363, // 10: MULS R3, R4, R3
		0x4363, // 12: MULS R3, R4, R3
		0x4363, // 14: MULS R3, R4, R3
		0x6019, // 16: STR R1, [R3]
		load,   // 18
		0x0010, // 20: MOVS R0, R2
		0xDF00, // 22: SVC #0
	}
}

const (
	storePC uint32 = 16
	loadPC  uint32 = 18
)

var _ = Describe("Engine", func() {
	It("should commit a dependent chain in program order", func() {
		rec := &recorder{}
		e, _ := newEngine(straightLine, ooo.WithCommitObserver(rec))

		code, err := runChecked(e, 100)
		Expect(err).ToNot(HaveOccurred())
		Expect(code).To(Equal(int32(8)))

		Expect(rec.pcs()).To(Equal([]uint32{0, 2, 4, 6, 8}))
		regs := e.Registers()
		Expect(regs.R[2]).To(Equal(uint32(8)))
		Expect(regs.R[1]).To(Equal(uint32(3)))

		stats := e.Stats()
		Expect(stats.Instructions).To(Equal(uint64(5)))
		Expect(stats.MicroOps).To(Equal(uint64(5)))
		Expect(stats.Stall(ooo.StallFetchSerialized)).To(BeNumerically(">", 0))
		Expect(stats.CPI()).To(BeNumerically(">", 1.0))
	})

	It("should halt on an exit request even when the handler does not exit", func() {
		handler := &countingHandler{}
		e, _ := newEngine(straightLine, ooo.WithSyscallHandler(handler))

		code, err := runChecked(e, 100)
		Expect(err).ToNot(HaveOccurred())
		Expect(code).To(Equal(int32(8)))
		Expect(handler.calls).To(Equal(1))
	})

	It("should wait for an operand produced by an older instruction", func() {
		rec := &recorder{}
		e, _ := newEngine(straightLine, ooo.WithCommitObserver(rec))
		_, err := e.Run(100)
		Expect(err).ToNot(HaveOccurred())

		add := rec.at(4)
		mov := rec.at(2)
		Expect(add.ExecCycle).To(BeNumerically(">=", mov.DoneCycle))
		Expect(add.Flags).To(Equal(insts.FlagsNZCV))
	})

	Context("when a prediction is wrong", func() {
		It("should flush the wrong path and resume at the fall-through", func() {
			e, out := newEngine(falseBranch, ooo.WithPolicy(ooo.PolicyAlwaysTaken))

			for i := 0; i < 100 && e.Stats().Mispredictions == 0; i++ {
				Expect(e.Tick()).To(Succeed())
			}

			Expect(e.Stats().Mispredictions).To(Equal(uint64(1)))
			Expect(e.Stats().Flushes).To(Equal(uint64(1)))
			Expect(e.InstructionQueue()).To(BeEmpty())
			Expect(e.FetchBuffer()).To(BeEmpty())
			Expect(e.SpeculativePC()).To(Equal(uint32(6)))
			Expect(e.ROB().Len).To(Equal(0))
			Expect(e.LoadQueue()).To(BeEmpty())
			Expect(e.PendingBroadcasts()).To(BeEmpty())
			for class := insts.ClassALUShift; class < insts.NumClasses; class++ {
				for _, rs := range e.ReservationStations(class) {
					Expect(rs.Busy).To(BeFalse())
				}
			}
			for _, p := range e.RegisterStatus() {
				Expect(p).To(Equal(ooo.NoProducer))
			}

			code, err := e.Run(200)
			Expect(err).ToNot(HaveOccurred())
			Expect(code).To(Equal(int32(7)))
			Expect(out.String()).To(BeEmpty())
		})

		It("should not fetch during the flush delay", func() {
			e, _ := newEngine(falseBranch, ooo.WithPolicy(ooo.PolicyAlwaysTaken))
			for i := 0; i < 100 && e.Stats().Mispredictions == 0; i++ {
				Expect(e.Tick()).To(Succeed())
			}

			Expect(e.Tick()).To(Succeed())
			Expect(e.FetchBuffer()).To(BeEmpty())
			Expect(e.SpeculativePC()).To(Equal(uint32(6)))

			Expect(e.Tick()).To(Succeed())
			Expect(e.SpeculativePC()).To(Equal(uint32(8)))
		})

		It("should report the misprediction to the observer", func() {
			rec := &recorder{}
			e, _ := newEngine(falseBranch,
				ooo.WithPolicy(ooo.PolicyAlwaysTaken), ooo.WithCommitObserver(rec))
			_, err := e.Run(200)
			Expect(err).ToNot(HaveOccurred())

			ev := rec.at(4)
			Expect(ev.Branch).To(BeTrue())
			Expect(ev.Predicted).To(BeTrue())
			Expect(ev.Taken).To(BeFalse())
			Expect(ev.Mispredicted).To(BeTrue())
			Expect(ev.Redirect).To(BeTrue())
			Expect(ev.Target).To(Equal(uint32(6)))
			Expect(rec.pcs()).To(Equal([]uint32{0, 2, 4, 6, 8}))
		})

		It("should ignore faults on the wrong path", func() {
			code := append([]uint16{}, falseBranch[:5]...)
			code = append(code, 0xDE00) // skip: UDF
			e, _ := newEngine(code, ooo.WithPolicy(ooo.PolicyAlwaysTaken))

			exit, err := runChecked(e, 200)
			Expect(err).ToNot(HaveOccurred())
			Expect(exit).To(Equal(int32(7)))
		})
	})

	It("should not flush when the prediction is right", func() {
		e, _ := newEngine(falseBranch, ooo.WithPolicy(ooo.PolicyAlwaysUntaken))
		code, err := runChecked(e, 200)
		Expect(err).ToNot(HaveOccurred())
		Expect(code).To(Equal(int32(7)))

		stats := e.Stats()
		Expect(stats.Mispredictions).To(BeZero())
		Expect(stats.CorrectPredictions).To(Equal(uint64(1)))
		Expect(stats.Flushes).To(BeZero())
		Expect(stats.Accuracy()).To(BeNumerically("~", 100.0))
	})

	Context("with a load after a store", func() {
		It("should hold the load until the store commits", func() {
			rec := &recorder{}
			e, _ := newEngine(storeThenLoad(0x6802), // LDR R2, [R0]
				ooo.WithCommitObserver(rec))

			sawQueued := false
			for i := 0; i < 200 && !e.Halted(); i++ {
				Expect(e.Tick()).To(Succeed())
				checkInvariants(e)
				storeCommitted := len(rec.events) > 0 && rec.events[len(rec.events)-1].PC >= storePC
				if !storeCommitted && len(e.LoadQueue()) > 0 {
					sawQueued = true
				}
			}

			Expect(e.Halted()).To(BeTrue())
			Expect(e.ExitCode()).To(Equal(int32(42)))
			Expect(sawQueued).To(BeTrue())
			Expect(rec.at(loadPC).DoneCycle).To(BeNumerically(">", rec.at(storePC).Cycle))
		})

		It("should let a load to another address go ahead", func() {
			rec := &recorder{}
			e, _ := newEngine(storeThenLoad(0x6902), // LDR R2, [R0, #16]
				ooo.WithCommitObserver(rec))

			queued, leftEarly := false, false
			for i := 0; i < 200 && !e.Halted(); i++ {
				Expect(e.Tick()).To(Succeed())
				checkInvariants(e)
				storeCommitted := len(rec.events) > 0 && rec.events[len(rec.events)-1].PC >= storePC
				if len(e.LoadQueue()) > 0 {
					queued = true
				} else if queued && !storeCommitted {
					leftEarly = true
				}
			}

			Expect(e.Halted()).To(BeTrue())
			Expect(e.ExitCode()).To(Equal(int32(0)))
			Expect(queued).To(BeTrue())
			Expect(leftEarly).To(BeTrue())
			Expect(rec.at(loadPC).DoneCycle).To(BeNumerically("<=", rec.at(storePC).Cycle))

			value, err := e.Memory().Read32(emu.DefaultRAMBase)
			Expect(err).ToNot(HaveOccurred())
			Expect(value).To(Equal(uint32(42)))
		})

		It("should add the data cache latency to loads", func() {
			rec := &recorder{}
			e, _ := newEngine(storeThenLoad(0x6902),
				ooo.WithCommitObserver(rec), ooo.WithDCache(cache.DefaultL1DConfig()))

			_, err := runChecked(e, 300)
			Expect(err).ToNot(HaveOccurred())

			stats, ok := e.DCacheStats()
			Expect(ok).To(BeTrue())
			Expect(stats.Reads).To(Equal(uint64(1)))
			Expect(stats.Writes).To(Equal(uint64(1)))

			load := rec.at(loadPC)
			Expect(load.DoneCycle - load.ExecCycle).To(BeNumerically(">", 8))
		})
	})

	Context("with a long straight-line program", func() {
		program := func() []uint16 {
			var code []uint16
			for i := 0; i < 128; i++ {
				code = append(code, 0x2000|uint16(i%8)<<8|uint16(i&0xFF))
			}
			return append(code, 0x2063, 0xDF00) // MOVS R0, #99; SVC #0
		}

		It("should never fill the default ROB", func() {
			e, _ := newEngine(program())
			code, err := runChecked(e, 2000)
			Expect(err).ToNot(HaveOccurred())
			Expect(code).To(Equal(int32(99)))

			stats := e.Stats()
			Expect(stats.Instructions).To(Equal(uint64(130)))
			Expect(stats.Stall(ooo.StallIssueROBFull)).To(BeZero())
			Expect(stats.MaxROBOccupancy).To(BeNumerically("<=", 64))
		})

		It("should stall issue on a small ROB", func() {
			config := ooo.DefaultConfig()
			config.ROBSize = 2
			e, _ := newEngine(program(), ooo.WithConfig(config))

			code, err := runChecked(e, 2000)
			Expect(err).ToNot(HaveOccurred())
			Expect(code).To(Equal(int32(99)))

			stats := e.Stats()
			Expect(stats.Stall(ooo.StallIssueROBFull)).To(BeNumerically(">", 0))
			Expect(stats.MaxROBOccupancy).To(BeNumerically("<=", 2))
		})
	})

	Context("with multi-cycle operations", func() {
		mulProgram := []uint16{
			0x2003, // 0:  MOVS R0, #3
			0x2104, // 2:  MOVS R1, #4
			0x4341, // 4:  MULS R1, R0, R1
			0x1842, // 6:  ADDS R2, R0, R1
			0x1803, // 8:  ADDS R3, R0, R0
			0x0010, // 10: MOVS R0, R2
			0xDF00, // 12: SVC #0
		}

		It("should take the multiply latency", func() {
			rec := &recorder{}
			e, _ := newEngine(mulProgram, ooo.WithCommitObserver(rec))
			code, err := runChecked(e, 200)
			Expect(err).ToNot(HaveOccurred())
			Expect(code).To(Equal(int32(15)))

			mul := rec.at(4)
			Expect(mul.DoneCycle - mul.ExecCycle).To(Equal(uint64(2)))
			add := rec.at(6)
			Expect(add.DoneCycle - add.ExecCycle).To(Equal(uint64(1)))
			Expect(add.ExecCycle).To(BeNumerically(">=", mul.DoneCycle))
			Expect(rec.at(8).DoneCycle - rec.at(8).ExecCycle).To(Equal(uint64(1)))
		})

		It("should use the configured latencies", func() {
			timing := latency.DefaultTimingConfig()
			timing.MultiplyLatency = 4
			rec := &recorder{}
			e, _ := newEngine(mulProgram, ooo.WithCommitObserver(rec), ooo.WithTimingConfig(timing))
			_, err := e.Run(200)
			Expect(err).ToNot(HaveOccurred())

			mul := rec.at(4)
			Expect(mul.DoneCycle - mul.ExecCycle).To(Equal(uint64(4)))
		})
	})

	Context("when the oldest instruction faults", func() {
		It("should stop on a breakpoint", func() {
			e, _ := newEngine([]uint16{
				0x2001, // MOVS R0, #1
				0xBE00, // BKPT #0
				0xDF00, // SVC #0
			})

			_, err := e.Run(100)
			Expect(errors.Is(err, emu.ErrBreakpoint)).To(BeTrue())

			var simErr *ooo.SimError
			Expect(errors.As(err, &simErr)).To(BeTrue())
			Expect(simErr.PC).To(Equal(uint32(2)))
			Expect(e.Registers().R[0]).To(Equal(uint32(1)))

			Expect(e.Tick()).To(MatchError(err))
			Expect(e.Err()).To(MatchError(err))
		})

		It("should report fetches outside memory", func() {
			e, _ := newEngine([]uint16{
				0x2001, // MOVS R0, #1
				0x0700, // LSLS R0, R0, #28
				0x4700, // BX R0
			})

			_, err := e.Run(100)
			Expect(errors.Is(err, emu.ErrOutOfBounds)).To(BeTrue())

			var simErr *ooo.SimError
			Expect(errors.As(err, &simErr)).To(BeTrue())
			Expect(simErr.PC).To(Equal(uint32(0x10000000)))
			Expect(simErr.Inst).To(BeNil())
		})

		It("should report undefined instructions", func() {
			e, _ := newEngine([]uint16{0xDE00})
			_, err := e.Run(100)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("0x00000000"))
		})
	})

	It("should stop at the cycle limit", func() {
		e, _ := newEngine([]uint16{0xE7FE}) // B .
		_, err := e.Run(50)
		Expect(errors.Is(err, ooo.ErrMaxCycles)).To(BeTrue())
		Expect(e.Cycle()).To(Equal(uint64(50)))
	})

	It("should do nothing once halted", func() {
		e, _ := newEngine(straightLine)
		_, err := e.Run(100)
		Expect(err).ToNot(HaveOccurred())

		cycles := e.Cycle()
		Expect(e.Tick()).To(Succeed())
		Expect(e.Cycle()).To(Equal(cycles))
	})

	It("should restart cleanly after a reset", func() {
		e, _ := newEngine(straightLine)
		for i := 0; i < 3; i++ {
			Expect(e.Tick()).To(Succeed())
		}

		e.Reset()
		Expect(e.ROB().Len).To(Equal(0))
		Expect(e.InstructionQueue()).To(BeEmpty())
		regs := e.Registers()
		Expect(e.SpeculativePC()).To(Equal(regs.PC()))

		code, err := e.Run(100)
		Expect(err).ToNot(HaveOccurred())
		Expect(code).To(Equal(int32(8)))
	})

	It("should render its state", func() {
		e, _ := newEngine(straightLine)
		for i := 0; i < 4; i++ {
			Expect(e.Tick()).To(Succeed())
		}

		var buf bytes.Buffer
		Expect(e.Render(&buf)).To(Succeed())
		Expect(buf.String()).To(ContainSubstring("spec-pc"))
		Expect(buf.String()).To(ContainSubstring("ROB"))
		Expect(buf.String()).To(ContainSubstring("MOVS"))
	})

	It("should reject an invalid configuration", func() {
		config := ooo.DefaultConfig()
		config.ROBSize = 0
		_, err := ooo.New(&emu.RegFile{}, emu.NewMemory(), ooo.WithConfig(config))
		Expect(err).To(HaveOccurred())
	})
})
