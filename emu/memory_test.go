package emu_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/thumbsim/emu"
)

var _ = Describe("Memory", func() {
	var memory *emu.Memory

	BeforeEach(func() {
		memory = emu.NewMemory()
	})

	It("should use the default flash and RAM layout", func() {
		regions := memory.Regions()

		Expect(regions).To(HaveLen(2))
		Expect(regions[0].ReadOnly).To(BeTrue())
		Expect(regions[1].Base).To(Equal(emu.DefaultRAMBase))
	})

	It("should read back little-endian values", func() {
		Expect(memory.Write32(emu.DefaultRAMBase, 0x11223344)).To(Succeed())

		b, err := memory.Read8(emu.DefaultRAMBase)
		Expect(err).ToNot(HaveOccurred())
		Expect(b).To(Equal(uint32(0x44)))

		h, err := memory.Read16(emu.DefaultRAMBase + 2)
		Expect(err).ToNot(HaveOccurred())
		Expect(h).To(Equal(uint32(0x1122)))
	})

	It("should truncate narrow writes", func() {
		Expect(memory.Write8(emu.DefaultRAMBase, 0x1FF)).To(Succeed())
		Expect(memory.Write16(emu.DefaultRAMBase+2, 0xABCDEF)).To(Succeed())

		w, err := memory.Read32(emu.DefaultRAMBase)
		Expect(err).ToNot(HaveOccurred())
		Expect(w).To(Equal(uint32(0xCDEF00FF)))
	})

	It("should refuse writes to flash", func() {
		err := memory.Write32(0x100, 1)

		Expect(err).To(MatchError(emu.ErrReadOnly))
		var accessErr *emu.AccessError
		Expect(errors.As(err, &accessErr)).To(BeTrue())
		Expect(accessErr.Addr).To(Equal(uint32(0x100)))
		Expect(accessErr.Write).To(BeTrue())
	})

	It("should allow program loading into flash", func() {
		Expect(memory.LoadHalfwords(0x10, []uint16{0x2005, 0xDF00})).To(Succeed())

		w, err := memory.Read32(0x10)
		Expect(err).ToNot(HaveOccurred())
		Expect(w).To(Equal(uint32(0xDF002005)))
	})

	It("should fail outside every region", func() {
		_, err := memory.Read32(0x10000000)
		Expect(err).To(MatchError(emu.ErrOutOfBounds))

		err = memory.Write8(emu.DefaultRAMBase+emu.DefaultRAMSize, 0)
		Expect(err).To(MatchError(emu.ErrOutOfBounds))
	})

	It("should fail accesses straddling the end of a region", func() {
		_, err := memory.Read32(emu.DefaultRAMBase + emu.DefaultRAMSize - 2)
		Expect(err).To(MatchError(emu.ErrOutOfBounds))
	})

	It("should read NUL-terminated strings", func() {
		Expect(memory.Load(0x40, []byte("hello\x00world"))).To(Succeed())

		s, err := memory.ReadCString(0x40, 64)
		Expect(err).ToNot(HaveOccurred())
		Expect(s).To(Equal("hello"))
	})

	It("should support custom layouts", func() {
		memory = emu.NewMemory(emu.Region{Name: "ram", Base: 0x1000, Size: 16})

		Expect(memory.Write32(0x100C, 7)).To(Succeed())
		Expect(memory.Write32(0x1010, 7)).To(MatchError(emu.ErrOutOfBounds))
	})
})
