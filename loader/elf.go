// Package loader provides ELF binary loading for ARM Thumb executables.
package loader

import (
	"debug/elf"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sarchlab/thumbsim/emu"
)

// Linker symbols describing the memory layout of a program.
const (
	SymFlash     = "__flash"
	SymFlashSize = "__flash_size"
	SymRAM       = "__ram"
	SymRAMSize   = "__ram_size"
	SymStackSize = "__stack_size"
)

// SegmentFlags represents memory protection flags for a segment.
type SegmentFlags uint32

const (
	// SegmentFlagExecute indicates the segment is executable.
	SegmentFlagExecute SegmentFlags = 1 << iota
	// SegmentFlagWrite indicates the segment is writable.
	SegmentFlagWrite
	// SegmentFlagRead indicates the segment is readable.
	SegmentFlagRead
)

// Segment represents a loadable segment from an ELF binary.
type Segment struct {
	// Addr is the load (physical) address of the segment.
	Addr uint32
	// Data contains the segment contents from the file.
	Data []byte
	// MemSize is the size in memory (may be larger than len(Data) for BSS).
	MemSize uint32
	// Flags contains the segment protection flags.
	Flags SegmentFlags
}

// Program represents a loaded ELF program ready for execution.
type Program struct {
	// EntryPoint is the address of the first instruction, Thumb bit cleared.
	EntryPoint uint32
	// InitialSP is the initial stack pointer value: the top of RAM.
	InitialSP uint32
	// StackSize is the stack size requested by the linker script, if any.
	StackSize uint32
	// Layout is the memory map: flash (read-only) then RAM.
	Layout []emu.Region
	// Segments contains all loadable segments from the ELF file.
	Segments []Segment
	// Functions maps function addresses to their symbol names.
	Functions map[uint32]string
}

// Load parses an ARM ELF binary from a file.
func Load(path string) (*Program, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ELF file: %w", err)
	}
	defer func() { _ = file.Close() }()

	return LoadReader(file)
}

// LoadReader parses an ARM ELF binary.
func LoadReader(r io.ReaderAt) (*Program, error) {
	f, err := elf.NewFile(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ELF file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if f.Class != elf.ELFCLASS32 {
		return nil, fmt.Errorf("not a 32-bit ELF file")
	}
	if f.Data != elf.ELFDATA2LSB {
		return nil, fmt.Errorf("not a little-endian ELF file")
	}
	if f.Machine != elf.EM_ARM {
		return nil, fmt.Errorf("not an ARM ELF file (machine type: %v)", f.Machine)
	}

	prog := &Program{
		EntryPoint: uint32(f.Entry) &^ 1,
		Layout:     emu.DefaultLayout(),
		Functions:  map[uint32]string{},
	}

	if err := prog.readSymbols(f); err != nil {
		return nil, err
	}

	ram := prog.Layout[len(prog.Layout)-1]
	prog.InitialSP = uint32(ram.End())

	for _, phdr := range f.Progs {
		if phdr.Type != elf.PT_LOAD {
			continue
		}

		data := make([]byte, phdr.Filesz)
		if phdr.Filesz > 0 {
			n, err := phdr.ReadAt(data, 0)
			if err != nil && err != io.EOF {
				return nil, fmt.Errorf("failed to read segment at 0x%x: %w", phdr.Paddr, err)
			}
			if uint64(n) != phdr.Filesz {
				return nil, fmt.Errorf("short read for segment at 0x%x: got %d bytes, expected %d",
					phdr.Paddr, n, phdr.Filesz)
			}
		}

		var flags SegmentFlags
		if phdr.Flags&elf.PF_X != 0 {
			flags |= SegmentFlagExecute
		}
		if phdr.Flags&elf.PF_W != 0 {
			flags |= SegmentFlagWrite
		}
		if phdr.Flags&elf.PF_R != 0 {
			flags |= SegmentFlagRead
		}

		prog.Segments = append(prog.Segments, Segment{
			Addr:    uint32(phdr.Paddr),
			Data:    data,
			MemSize: uint32(phdr.Memsz),
			Flags:   flags,
		})
	}

	return prog, nil
}

// readSymbols takes the memory layout from the linker symbols when all of
// them are present, and collects function names.
func (p *Program) readSymbols(f *elf.File) error {
	syms, err := f.Symbols()
	if errors.Is(err, elf.ErrNoSymbols) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read symbols: %w", err)
	}

	values := map[string]uint32{}
	for _, sym := range syms {
		values[sym.Name] = uint32(sym.Value)
		if elf.ST_TYPE(sym.Info) == elf.STT_FUNC && sym.Section != elf.SHN_UNDEF {
			p.Functions[uint32(sym.Value)&^1] = sym.Name
		}
	}

	var missing []string
	for _, name := range []string{SymFlash, SymFlashSize, SymRAM, SymRAMSize} {
		if _, ok := values[name]; !ok {
			missing = append(missing, name)
		}
	}
	switch {
	case len(missing) == 4:
		return nil
	case len(missing) > 0:
		return fmt.Errorf("incomplete memory layout: missing symbols %v", missing)
	}

	p.Layout = []emu.Region{
		{Name: "flash", Base: values[SymFlash], Size: values[SymFlashSize], ReadOnly: true},
		{Name: "ram", Base: values[SymRAM], Size: values[SymRAMSize]},
	}
	p.StackSize = values[SymStackSize]
	return nil
}

// NewMemory creates a memory with the program's layout and segments.
// BSS is zero by construction.
func (p *Program) NewMemory() (*emu.Memory, error) {
	mem := emu.NewMemory(p.Layout...)
	for _, seg := range p.Segments {
		if err := mem.Load(seg.Addr, seg.Data); err != nil {
			return nil, fmt.Errorf("segment at 0x%x does not fit the memory layout: %w", seg.Addr, err)
		}
	}
	return mem, nil
}

// FunctionAt returns the name of the function starting at addr.
func (p *Program) FunctionAt(addr uint32) (string, bool) {
	name, ok := p.Functions[addr]
	return name, ok
}
