package emu

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Memory access errors.
var (
	ErrOutOfBounds = errors.New("address out of bounds")
	ErrReadOnly    = errors.New("write to read-only memory")
)

// AccessError describes a failed memory access.
type AccessError struct {
	Addr  uint32
	Size  uint32
	Write bool
	Err   error
}

func (e *AccessError) Error() string {
	kind := "read"
	if e.Write {
		kind = "write"
	}
	return fmt.Sprintf("%d-byte %s at 0x%08x: %v", e.Size, kind, e.Addr, e.Err)
}

func (e *AccessError) Unwrap() error {
	return e.Err
}

// Default memory layout of a small microcontroller.
const (
	DefaultFlashBase uint32 = 0x00000000
	DefaultFlashSize uint32 = 256 * 1024
	DefaultRAMBase   uint32 = 0x20000000
	DefaultRAMSize   uint32 = 64 * 1024
)

// Region describes a contiguous range of the address space.
type Region struct {
	Name     string
	Base     uint32
	Size     uint32
	ReadOnly bool
}

// End returns the first address past the region.
func (r Region) End() uint64 {
	return uint64(r.Base) + uint64(r.Size)
}

// DefaultLayout returns the default flash and RAM regions.
func DefaultLayout() []Region {
	return []Region{
		{Name: "flash", Base: DefaultFlashBase, Size: DefaultFlashSize, ReadOnly: true},
		{Name: "ram", Base: DefaultRAMBase, Size: DefaultRAMSize},
	}
}

type bank struct {
	Region
	data []byte
}

// Memory is a flat 32-bit little-endian address space made of regions.
// Accesses outside every region fail.
type Memory struct {
	banks []*bank
}

// NewMemory creates a memory with the given regions, or the default layout
// when none are given.
func NewMemory(regions ...Region) *Memory {
	if len(regions) == 0 {
		regions = DefaultLayout()
	}

	m := &Memory{}
	for _, r := range regions {
		m.banks = append(m.banks, &bank{Region: r, data: make([]byte, r.Size)})
	}
	return m
}

// Regions returns the layout of the memory.
func (m *Memory) Regions() []Region {
	regions := make([]Region, len(m.banks))
	for i, b := range m.banks {
		regions[i] = b.Region
	}
	return regions
}

func (m *Memory) locate(addr, size uint32, write, bypassRO bool) ([]byte, error) {
	for _, b := range m.banks {
		if addr < b.Base || uint64(addr)+uint64(size) > b.End() {
			continue
		}
		if write && b.ReadOnly && !bypassRO {
			return nil, &AccessError{Addr: addr, Size: size, Write: write, Err: ErrReadOnly}
		}
		off := addr - b.Base
		return b.data[off : off+size], nil
	}
	return nil, &AccessError{Addr: addr, Size: size, Write: write, Err: ErrOutOfBounds}
}

// Read8 reads a byte.
func (m *Memory) Read8(addr uint32) (uint32, error) {
	p, err := m.locate(addr, 1, false, false)
	if err != nil {
		return 0, err
	}
	return uint32(p[0]), nil
}

// Read16 reads a little-endian halfword.
func (m *Memory) Read16(addr uint32) (uint32, error) {
	p, err := m.locate(addr, 2, false, false)
	if err != nil {
		return 0, err
	}
	return uint32(binary.LittleEndian.Uint16(p)), nil
}

// Read32 reads a little-endian word.
func (m *Memory) Read32(addr uint32) (uint32, error) {
	p, err := m.locate(addr, 4, false, false)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(p), nil
}

// Write8 writes the low byte of value.
func (m *Memory) Write8(addr, value uint32) error {
	p, err := m.locate(addr, 1, true, false)
	if err != nil {
		return err
	}
	p[0] = byte(value)
	return nil
}

// Write16 writes the low halfword of value.
func (m *Memory) Write16(addr, value uint32) error {
	p, err := m.locate(addr, 2, true, false)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(p, uint16(value))
	return nil
}

// Write32 writes a word.
func (m *Memory) Write32(addr, value uint32) error {
	p, err := m.locate(addr, 4, true, false)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(p, value)
	return nil
}

// Load copies data into memory at addr, ignoring read-only protection.
// It is used to place program images.
func (m *Memory) Load(addr uint32, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	p, err := m.locate(addr, uint32(len(data)), true, true)
	if err != nil {
		return err
	}
	copy(p, data)
	return nil
}

// LoadHalfwords places a sequence of Thumb halfwords at addr.
func (m *Memory) LoadHalfwords(addr uint32, code []uint16) error {
	data := make([]byte, 2*len(code))
	for i, hw := range code {
		binary.LittleEndian.PutUint16(data[2*i:], hw)
	}
	return m.Load(addr, data)
}

// ReadCString reads a NUL-terminated string of at most max bytes.
func (m *Memory) ReadCString(addr uint32, max int) (string, error) {
	var buf []byte
	for i := 0; i < max; i++ {
		b, err := m.Read8(addr + uint32(i))
		if err != nil {
			return "", err
		}
		if b == 0 {
			return string(buf), nil
		}
		buf = append(buf, byte(b))
	}
	return string(buf), nil
}
