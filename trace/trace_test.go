package trace_test

import (
	"bufio"
	"bytes"
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/thumbsim/emu"
	"github.com/sarchlab/thumbsim/insts"
	"github.com/sarchlab/thumbsim/timing/ooo"
	"github.com/sarchlab/thumbsim/trace"
)

func decodeLines(buf *bytes.Buffer) []map[string]interface{} {
	var out []map[string]interface{}
	scanner := bufio.NewScanner(buf)
	for scanner.Scan() {
		var record map[string]interface{}
		ExpectWithOffset(1, json.Unmarshal(scanner.Bytes(), &record)).To(Succeed())
		out = append(out, record)
	}
	return out
}

var _ = Describe("Writer", func() {
	var (
		buf  *bytes.Buffer
		movs *insts.Instruction
	)

	BeforeEach(func() {
		buf = &bytes.Buffer{}
		var err error
		movs, err = insts.NewDecoder().Decode(0x2005) // MOVS R0, #5
		Expect(err).ToNot(HaveOccurred())
	})

	It("should write register results as JSON", func() {
		w := trace.NewWriter(buf, trace.FormatJSON)
		w.OnCommit(ooo.CommitEvent{
			Cycle: 4,
			ROB:   0,
			PC:    0,
			Inst:  movs,
			Dest:  ooo.Dest{Kind: ooo.DestRegister, Reg: 0},
			Value: 5,
			Flags: insts.FlagsNZ,
		})

		records := decodeLines(buf)
		Expect(records).To(HaveLen(1))
		Expect(records[0]).To(HaveKeyWithValue("msg", "commit"))
		Expect(records[0]).To(HaveKeyWithValue("pc", "0x00000000"))
		Expect(records[0]).To(HaveKeyWithValue("dest", "R0"))
		Expect(records[0]).To(HaveKeyWithValue("result", "0x00000005"))
		Expect(records[0]).To(HaveKeyWithValue("flags", "NZ"))
		Expect(records[0]).To(HaveKeyWithValue("cycle", BeNumerically("==", 4)))
		Expect(records[0]).ToNot(HaveKey("time"))
		Expect(w.Records()).To(Equal(uint64(1)))
	})

	It("should write branch outcomes", func() {
		w := trace.NewWriter(buf, trace.FormatJSON)
		w.OnCommit(ooo.CommitEvent{
			PC:           4,
			Inst:         &insts.Instruction{Op: insts.OpB, Cond: insts.CondEQ},
			Branch:       true,
			Predicted:    true,
			Mispredicted: true,
			Redirect:     true,
			Target:       6,
		})

		records := decodeLines(buf)
		Expect(records[0]).To(HaveKeyWithValue("mispredicted", true))
		Expect(records[0]).To(HaveKeyWithValue("taken", false))
		Expect(records[0]).To(HaveKeyWithValue("target", "0x00000006"))
		Expect(records[0]).ToNot(HaveKey("dest"))
	})

	It("should write text records", func() {
		w := trace.NewWriter(buf, trace.FormatText)
		w.OnCommit(ooo.CommitEvent{
			PC:    0x10,
			Inst:  movs,
			Dest:  ooo.Dest{Kind: ooo.DestAddress, Addr: 0x20000000},
			Value: 42,
		})

		Expect(buf.String()).To(ContainSubstring("msg=commit"))
		Expect(buf.String()).To(ContainSubstring("pc=0x00000010"))
		Expect(buf.String()).To(ContainSubstring("addr=0x20000000"))
	})

	It("should trace every committed micro-op of a program", func() {
		mem := emu.NewMemory()
		Expect(mem.LoadHalfwords(0, []uint16{
			0x2005, // MOVS R0, #5
			0xB401, // PUSH {R0}
			0xBC02, // POP {R1}
			0xDF00, // SVC #0
		})).To(Succeed())
		regs := &emu.RegFile{}
		regs.R[insts.RegSP] = emu.DefaultRAMBase + emu.DefaultRAMSize

		w := trace.NewWriter(buf, trace.FormatJSON)
		e, err := ooo.New(regs, mem, ooo.WithCommitObserver(w))
		Expect(err).ToNot(HaveOccurred())

		code, err := e.Run(200)
		Expect(err).ToNot(HaveOccurred())
		Expect(code).To(Equal(int32(5)))

		Expect(w.Records()).To(Equal(e.Stats().MicroOps))
		Expect(decodeLines(buf)).To(HaveLen(int(e.Stats().MicroOps)))
	})

	DescribeTable("format names",
		func(name string, want trace.Format) {
			f, err := trace.ParseFormat(name)
			Expect(err).ToNot(HaveOccurred())
			Expect(f).To(Equal(want))
		},
		Entry("text", "text", trace.FormatText),
		Entry("json", "json", trace.FormatJSON),
	)

	It("should reject unknown formats", func() {
		_, err := trace.ParseFormat("xml")
		Expect(err).To(HaveOccurred())
	})
})
