package ooo

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/sarchlab/thumbsim/insts"
)

// Render writes a human-readable dump of the machine state: registers,
// register status, ROB, reservation stations, load queue and CDB.
func (e *Engine) Render(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "cycle %d  spec-pc 0x%08x  fetch-buffer %d  iq %d/%d\n",
		e.stats.Cycles, e.specPC, len(e.fetchBuffer), len(e.queue), e.config.InstructionQueueSize)

	fmt.Fprintln(tw, "\nREG\tVALUE\tPRODUCER")
	for r := uint8(0); r < insts.NumRegs; r++ {
		producer := "-"
		if p := e.status.Producer(r); p != NoProducer {
			producer = fmt.Sprintf("rob%d", p)
		}
		fmt.Fprintf(tw, "%s\t0x%08x\t%s\n", insts.RegName(r), e.regs.Get(r), producer)
	}

	fmt.Fprintf(tw, "\nROB\tPC\tINST\tSTATUS\tDEST\tREADY\tVALUE\t(head %d, tail %d, %d/%d)\n",
		e.rob.Head(), e.rob.Tail(), e.rob.Len(), e.rob.Cap())
	e.rob.Each(func(idx int, entry *Entry) {
		fmt.Fprintf(tw, "%d\t0x%08x\t%s\t%v\t%s\t%v\t0x%08x\n",
			idx, entry.PC, instName(entry.Inst), entry.Status, destString(entry.Dest),
			entry.Ready, entry.Value)
	})

	fmt.Fprintln(tw, "\nRS\tSLOT\tROB\tINST\tOPERANDS")
	for _, set := range e.stations {
		if set == nil {
			continue
		}
		for i := 0; i < set.Len(); i++ {
			rs := set.At(i)
			if !rs.Busy {
				continue
			}
			ops := make([]string, len(rs.Operands))
			for j, op := range rs.Operands {
				ops[j] = op.String()
			}
			fmt.Fprintf(tw, "%v\t%d\t%d\t%s\t%s\n",
				set.Class, i, rs.ROB, instName(rs.Inst), strings.Join(ops, " "))
		}
	}

	fmt.Fprintln(tw, "\nLQ\tROB\tADDR")
	for i, ld := range e.loads.Entries() {
		fmt.Fprintf(tw, "%d\t%d\t0x%08x\n", i, ld.ROB, ld.Addr)
	}

	fmt.Fprintln(tw, "\nCDB\tROB\tVALUE\tCOUNTDOWN")
	for i, rec := range e.cdb.Records() {
		fmt.Fprintf(tw, "%d\t%d\t0x%08x\t%d\n", i, rec.ROB, rec.Value, rec.Countdown)
	}

	return tw.Flush()
}

func instName(inst *insts.Instruction) string {
	if inst == nil {
		return "<fault>"
	}
	return inst.String()
}

func destString(d Dest) string {
	switch d.Kind {
	case DestRegister:
		return insts.RegName(d.Reg)
	case DestAddress:
		return fmt.Sprintf("[0x%08x]", d.Addr)
	}
	return d.Kind.String()
}
