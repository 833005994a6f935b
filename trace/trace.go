// Package trace writes one structured record per committed micro-op.
package trace

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/thumbsim/insts"
	"github.com/sarchlab/thumbsim/timing/ooo"
)

// Format selects the record encoding.
type Format uint8

// Trace formats.
const (
	FormatText Format = iota
	FormatJSON
)

// ParseFormat converts a format name to a Format.
func ParseFormat(name string) (Format, error) {
	switch name {
	case "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	}
	return 0, fmt.Errorf("unknown trace format %q (want text or json)", name)
}

// Writer is a commit observer that logs every committed micro-op.
type Writer struct {
	log     *logrus.Logger
	records uint64
}

// NewWriter creates a trace writer emitting records to w.
func NewWriter(w io.Writer, format Format) *Writer {
	log := logrus.New()
	log.SetOutput(w)
	log.SetLevel(logrus.InfoLevel)

	switch format {
	case FormatJSON:
		log.SetFormatter(&logrus.JSONFormatter{DisableTimestamp: true})
	default:
		log.SetFormatter(&logrus.TextFormatter{
			DisableTimestamp: true,
			DisableColors:    true,
		})
	}

	return &Writer{log: log}
}

// OnCommit records ev.
func (w *Writer) OnCommit(ev ooo.CommitEvent) {
	fields := logrus.Fields{
		"cycle": ev.Cycle,
		"rob":   ev.ROB,
		"pc":    fmt.Sprintf("0x%08x", ev.PC),
		"inst":  ev.Inst.String(),
	}

	switch ev.Dest.Kind {
	case ooo.DestRegister:
		fields["dest"] = insts.RegName(ev.Dest.Reg)
		fields["result"] = fmt.Sprintf("0x%08x", ev.Value)
	case ooo.DestAddress:
		fields["addr"] = fmt.Sprintf("0x%08x", ev.Dest.Addr)
		fields["result"] = fmt.Sprintf("0x%08x", ev.Value)
	}
	if ev.Flags != 0 {
		fields["flags"] = ev.Flags.String()
	}

	if ev.Branch {
		fields["predicted"] = ev.Predicted
		fields["taken"] = ev.Taken
		fields["mispredicted"] = ev.Mispredicted
	}
	if ev.Redirect {
		fields["target"] = fmt.Sprintf("0x%08x", ev.Target)
	}

	w.log.WithFields(fields).Info("commit")
	w.records++
}

// Records returns the number of records written.
func (w *Writer) Records() uint64 { return w.records }
