package emu_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/thumbsim/emu"
	"github.com/sarchlab/thumbsim/insts"
)

var _ = Describe("Emulator", func() {
	var (
		e      *emu.Emulator
		memory *emu.Memory
		stdout *bytes.Buffer
	)

	load := func(code ...uint16) {
		Expect(memory.LoadHalfwords(0, code)).To(Succeed())
		e.LoadProgram(0, memory)
	}

	BeforeEach(func() {
		stdout = &bytes.Buffer{}
		memory = emu.NewMemory()
		e = emu.NewEmulator(
			emu.WithStdout(stdout),
			emu.WithStackPointer(emu.DefaultRAMBase+emu.DefaultRAMSize),
			emu.WithMaxInstructions(1000),
		)
	})

	It("should run straight-line code to exit", func() {
		load(
			0x2005, // MOVS R0, #5
			0x2103, // MOVS R1, #3
			0x1842, // ADDS R2, R0, R1
			0x0010, // MOVS R0, R2
			0xDF00, // SVC #0
		)

		code, err := e.Run()
		Expect(err).ToNot(HaveOccurred())
		Expect(code).To(Equal(int32(8)))
		Expect(e.InstructionCount()).To(Equal(uint64(5)))
		Expect(e.Halted()).To(BeTrue())
	})

	It("should run a counted loop", func() {
		load(
			0x2000, // MOVS R0, #0
			0x2105, // MOVS R1, #5
			0x1840, // loop: ADDS R0, R0, R1
			0x3901, // SUBS R1, #1
			0xD1FC, // BNE loop
			0xDF00, // SVC #0
		)

		code, err := e.Run()
		Expect(err).ToNot(HaveOccurred())
		Expect(code).To(Equal(int32(15)))
		Expect(e.RegFile().APSR.Z).To(BeTrue())
	})

	It("should call and return through the stack", func() {
		load(
			0x2006, // MOVS R0, #6
			0xF000, 0xF801, // BL f
			0xDF00, // SVC #0
			0xB510, // f: PUSH {R4, LR}
			0x2407, // MOVS R4, #7
			0x4360, // MULS R0, R4, R0
			0xBD10, // POP {R4, PC}
		)

		code, err := e.Run()
		Expect(err).ToNot(HaveOccurred())
		Expect(code).To(Equal(int32(42)))
		Expect(e.RegFile().R[insts.RegLR]).To(Equal(uint32(7)))
		Expect(e.RegFile().SP()).To(Equal(emu.DefaultRAMBase + emu.DefaultRAMSize))
	})

	It("should store and load through RAM", func() {
		load(
			0x2101, // MOVS R1, #1
			0x0749, // LSLS R1, R1, #29
			0x204D, // MOVS R0, #77
			0x6048, // STR R0, [R1, #4]
			0x2000, // MOVS R0, #0
			0x6848, // LDR R0, [R1, #4]
			0xDF00, // SVC #0
		)

		code, err := e.Run()
		Expect(err).ToNot(HaveOccurred())
		Expect(code).To(Equal(int32(77)))
	})

	It("should print through SVC #1", func() {
		load(
			0x2010, // MOVS R0, #16
			0xDF01, // SVC #1
			0x2000, // MOVS R0, #0
			0xDF00, // SVC #0
			0x0000, 0x0000, 0x0000, 0x0000,
			0x6968, 0x0000, // "hi"
		)

		_, err := e.Run()
		Expect(err).ToNot(HaveOccurred())
		Expect(stdout.String()).To(Equal("hi"))
	})

	It("should fail on a store to flash", func() {
		load(
			0x2100, // MOVS R1, #0
			0x6008, // STR R0, [R1, #0]
		)

		_, err := e.Run()
		Expect(err).To(MatchError(emu.ErrReadOnly))
	})

	It("should fail on an undefined instruction", func() {
		load(0xDE00)

		_, err := e.Run()
		Expect(err).To(MatchError(insts.ErrUndefined))
	})

	It("should stop at the instruction limit", func() {
		load(0xE7FE) // B .

		_, err := e.Run()
		Expect(err).To(MatchError(emu.ErrMaxInstructions))
		Expect(e.InstructionCount()).To(Equal(uint64(1000)))
	})
})
