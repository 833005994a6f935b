package emu_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/thumbsim/emu"
)

var _ = Describe("DefaultSyscallHandler", func() {
	var (
		handler *emu.DefaultSyscallHandler
		regs    *emu.RegFile
		memory  *emu.Memory
		stdout  *bytes.Buffer
	)

	BeforeEach(func() {
		stdout = &bytes.Buffer{}
		handler = emu.NewDefaultSyscallHandler(stdout)
		regs = &emu.RegFile{}
		memory = emu.NewMemory()
	})

	It("should exit with R0", func() {
		regs.R[0] = 0xFFFFFFFF

		res, err := handler.Handle(emu.SyscallExit, regs, memory)
		Expect(err).ToNot(HaveOccurred())
		Expect(res.Exited).To(BeTrue())
		Expect(res.ExitCode).To(Equal(int32(-1)))
	})

	It("should print the string at R0", func() {
		Expect(memory.Load(0x80, []byte("hi there\x00"))).To(Succeed())
		regs.R[0] = 0x80

		res, err := handler.Handle(emu.SyscallPuts, regs, memory)
		Expect(err).ToNot(HaveOccurred())
		Expect(res.Exited).To(BeFalse())
		Expect(stdout.String()).To(Equal("hi there"))
	})

	It("should print R0 as a signed integer", func() {
		regs.R[0] = uint32(0xFFFFFFF9)

		_, err := handler.Handle(emu.SyscallPutInt, regs, memory)
		Expect(err).ToNot(HaveOccurred())
		Expect(stdout.String()).To(Equal("-7"))
	})

	It("should report a bad string address", func() {
		regs.R[0] = 0x30000000

		_, err := handler.Handle(emu.SyscallPuts, regs, memory)
		Expect(err).To(MatchError(emu.ErrOutOfBounds))
	})

	It("should reject unknown calls", func() {
		_, err := handler.Handle(9, regs, memory)
		Expect(err).To(MatchError(emu.ErrUnsupportedSyscall))
		Expect(emu.IsSupportedSyscall(9)).To(BeFalse())
	})
})
