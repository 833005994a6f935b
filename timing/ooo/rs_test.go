package ooo_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/thumbsim/insts"
	"github.com/sarchlab/thumbsim/timing/ooo"
)

var _ = Describe("StationSet", func() {
	var (
		set *ooo.StationSet
		add *insts.Instruction
	)

	BeforeEach(func() {
		set = ooo.NewStationSet(insts.ClassALUShift, 2)
		add = &insts.Instruction{Op: insts.OpADD}
	})

	It("should hand out free slots until full", func() {
		Expect(set.FreeSlot()).To(Equal(0))
		set.Insert(0, ooo.StationEntry{ROB: 1, Inst: add})
		Expect(set.FreeSlot()).To(Equal(1))
		set.Insert(1, ooo.StationEntry{ROB: 2, Inst: add})
		Expect(set.FreeSlot()).To(Equal(-1))
		Expect(set.Busy()).To(Equal(2))

		set.Free(0)
		Expect(set.FreeSlot()).To(Equal(0))
	})

	It("should wake up operands waiting on a broadcast", func() {
		set.Insert(0, ooo.StationEntry{
			ROB:  4,
			Inst: add,
			Operands: [insts.NumSources]ooo.Operand{
				ooo.PendingOperand(2, 1),
				ooo.PendingOperand(3, 1),
			},
		})
		Expect(set.At(0).Ready()).To(BeFalse())
		Expect(set.Waiting(2)).To(BeTrue())

		set.Resolve(2, 1, 10)
		Expect(set.At(0).Ready()).To(BeFalse())
		Expect(set.Waiting(2)).To(BeFalse())

		set.Resolve(3, 0, 99)
		Expect(set.At(0).Ready()).To(BeFalse())

		set.Resolve(3, 1, 20)
		Expect(set.At(0).Ready()).To(BeTrue())
		Expect(set.At(0).Values()).To(Equal([insts.NumSources]uint32{10, 20, 0}))
	})

	It("should list ready entries oldest first", func() {
		set.Insert(0, ooo.StationEntry{ROB: 7, Inst: add})
		set.Insert(1, ooo.StationEntry{ROB: 5, Inst: add})

		age := func(rob int) int { return rob }
		Expect(set.ReadyByAge(age)).To(Equal([]int{1, 0}))

		set.At(1).Dispatched = true
		Expect(set.ReadyByAge(age)).To(Equal([]int{0}))
	})

	It("should clear every slot", func() {
		set.Insert(0, ooo.StationEntry{ROB: 1, Inst: add})
		set.Clear()
		Expect(set.Busy()).To(Equal(0))
	})

	It("should format operands", func() {
		Expect(ooo.ValueOperand(0x2A).String()).To(Equal("0000002A"))
		Expect(ooo.PendingOperand(3, 2).String()).To(Equal("#3.R2"))
	})
})

var _ = Describe("CDB", func() {
	age := func(rob int) int { return rob }

	It("should broadcast once the countdown expires", func() {
		bus := ooo.NewCDB(2)
		bus.Push(ooo.Record{ROB: 1, Countdown: 2, Slot: -1})

		Expect(bus.Advance(age)).To(BeEmpty())
		out := bus.Advance(age)
		Expect(out).To(HaveLen(1))
		Expect(out[0].ROB).To(Equal(1))
		Expect(bus.Len()).To(Equal(0))
	})

	It("should limit broadcasts to the bus width", func() {
		bus := ooo.NewCDB(2)
		for i := 0; i < 3; i++ {
			bus.Push(ooo.Record{ROB: i, Countdown: 1})
		}

		Expect(bus.Advance(age)).To(HaveLen(2))
		Expect(bus.Len()).To(Equal(1))
		out := bus.Advance(age)
		Expect(out).To(HaveLen(1))
		Expect(out[0].ROB).To(Equal(2))
	})

	It("should order results maturing together by start cycle, then age", func() {
		bus := ooo.NewCDB(3)
		bus.Push(ooo.Record{ROB: 3, Countdown: 1, Started: 5})
		bus.Push(ooo.Record{ROB: 1, Countdown: 1, Started: 5})
		bus.Push(ooo.Record{ROB: 2, Countdown: 1, Started: 4})

		out := bus.Advance(age)
		Expect(out).To(HaveLen(3))
		Expect([]int{out[0].ROB, out[1].ROB, out[2].ROB}).To(Equal([]int{2, 1, 3}))
	})

	It("should keep matured results ahead of later ones", func() {
		bus := ooo.NewCDB(1)
		bus.Push(ooo.Record{ROB: 3, Countdown: 1, Started: 5})
		bus.Push(ooo.Record{ROB: 1, Countdown: 1, Started: 5})
		bus.Push(ooo.Record{ROB: 2, Countdown: 2, Started: 4})

		var order []int
		for bus.Len() > 0 {
			for _, r := range bus.Advance(age) {
				order = append(order, r.ROB)
			}
		}
		Expect(order).To(Equal([]int{1, 3, 2}))
	})

	It("should drop everything on clear", func() {
		bus := ooo.NewCDB(1)
		bus.Push(ooo.Record{ROB: 1, Countdown: 3})
		bus.Clear()
		Expect(bus.Records()).To(BeEmpty())
	})
})

var _ = Describe("LoadQueue", func() {
	var (
		rob *ooo.ReorderBuffer
		lq  *ooo.LoadQueue
	)

	push := func(dest ooo.Dest) int {
		rob.Stage(ooo.Entry{Status: ooo.StatusExecuting, Dest: dest})
		return rob.Confirm()
	}

	BeforeEach(func() {
		rob = ooo.NewReorderBuffer(8)
		lq = ooo.NewLoadQueue(2)
	})

	It("should refuse loads when full", func() {
		Expect(lq.Push(ooo.LoadQueueEntry{ROB: 0})).To(BeTrue())
		Expect(lq.Push(ooo.LoadQueueEntry{ROB: 1})).To(BeTrue())
		Expect(lq.Full()).To(BeTrue())
		Expect(lq.Push(ooo.LoadQueueEntry{ROB: 2})).To(BeFalse())
	})

	It("should release a load with no older stores", func() {
		idx := push(ooo.Dest{Kind: ooo.DestRegister, Reg: 1})
		lq.Push(ooo.LoadQueueEntry{ROB: idx, Addr: 0x100, Op: insts.OpLDR})

		out := lq.Drain(rob, 2)
		Expect(out).To(HaveLen(1))
		Expect(lq.Len()).To(Equal(0))
	})

	It("should hold a load behind a store with an unknown address", func() {
		push(ooo.Dest{Kind: ooo.DestAwaitingAddress})
		idx := push(ooo.Dest{Kind: ooo.DestRegister, Reg: 1})
		lq.Push(ooo.LoadQueueEntry{ROB: idx, Addr: 0x100})

		Expect(lq.Drain(rob, 2)).To(BeEmpty())
		Expect(lq.Len()).To(Equal(1))
	})

	DescribeTable("older stores with known addresses",
		func(storeAddr uint32, blocked bool) {
			push(ooo.Dest{Kind: ooo.DestAddress, Addr: storeAddr})
			idx := push(ooo.Dest{Kind: ooo.DestRegister, Reg: 1})
			lq.Push(ooo.LoadQueueEntry{ROB: idx, Addr: 0x100})

			if blocked {
				Expect(lq.Drain(rob, 2)).To(BeEmpty())
			} else {
				Expect(lq.Drain(rob, 2)).To(HaveLen(1))
			}
		},
		Entry("same address", uint32(0x100), true),
		Entry("overlapping below", uint32(0x0FD), true),
		Entry("overlapping above", uint32(0x103), true),
		Entry("adjacent word below", uint32(0x0FC), false),
		Entry("adjacent word above", uint32(0x104), false),
		Entry("far away", uint32(0x2000), false),
	)

	It("should ignore stores younger than the load", func() {
		idx := push(ooo.Dest{Kind: ooo.DestRegister, Reg: 1})
		push(ooo.Dest{Kind: ooo.DestAwaitingAddress})
		lq.Push(ooo.LoadQueueEntry{ROB: idx, Addr: 0x100})

		Expect(lq.Drain(rob, 2)).To(HaveLen(1))
	})

	It("should release at most the number of ports", func() {
		a := push(ooo.Dest{Kind: ooo.DestRegister, Reg: 1})
		b := push(ooo.Dest{Kind: ooo.DestRegister, Reg: 2})
		lq.Push(ooo.LoadQueueEntry{ROB: a, Addr: 0x100})
		lq.Push(ooo.LoadQueueEntry{ROB: b, Addr: 0x200})

		out := lq.Drain(rob, 1)
		Expect(out).To(HaveLen(1))
		Expect(out[0].ROB).To(Equal(a))
		Expect(lq.Entries()[0].ROB).To(Equal(b))
	})
})
