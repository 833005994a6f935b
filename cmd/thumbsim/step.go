package main

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/sarchlab/thumbsim/timing/core"
)

// errQuit is returned by stepLoop when the user quits before the program
// halts.
var errQuit = errors.New("quit")

const stepPrompt = "-- [enter/space] step  [c] continue  [q] quit --\n"

// crlfWriter turns \n into \r\n for a terminal in raw mode.
type crlfWriter struct {
	w io.Writer
}

func (c crlfWriter) Write(p []byte) (int, error) {
	if _, err := c.w.Write(bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))); err != nil {
		return 0, err
	}
	return len(p), nil
}

// stepLoop renders the core, then advances it one cycle per key press.
// When in is a terminal it is put in raw mode so single keys are read.
func stepLoop(c *core.Core, in io.Reader, out io.Writer, maxCycles uint64) (int32, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd := int(f.Fd())
		old, err := term.MakeRaw(fd)
		if err != nil {
			return -1, fmt.Errorf("raw terminal: %w", err)
		}
		defer func() { _ = term.Restore(fd, old) }()
		out = crlfWriter{w: out}
	}

	keys := bufio.NewReader(in)
	for n := uint64(0); !c.Halted(); n++ {
		if maxCycles > 0 && n >= maxCycles {
			return -1, fmt.Errorf("%w (%d)", core.ErrMaxCycles, maxCycles)
		}

		if err := c.CPU().Render(out); err != nil {
			return -1, err
		}
		if _, err := io.WriteString(out, stepPrompt); err != nil {
			return -1, err
		}

		key, err := keys.ReadByte()
		if errors.Is(err, io.EOF) {
			key = 'c'
		} else if err != nil {
			return -1, err
		}

		switch key {
		case 'q', 3: // 3 is Ctrl-C in raw mode
			return -1, errQuit
		case 'c':
			var remaining uint64
			if maxCycles > 0 {
				remaining = maxCycles - n
			}
			return c.Run(remaining)
		}

		if err := c.Tick(); err != nil {
			return -1, err
		}
	}
	return c.ExitCode(), nil
}
