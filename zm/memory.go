package zm

import (
	"fmt"
)

// ---------------------------------------------------------------------------
// Memory: the flat addressable story image
// ---------------------------------------------------------------------------

// Memory owns the byte image of the loaded story, divided into the dynamic
// region (writable, below staticBase), the static region and high memory
// (both read-only). Its size is fixed at load time; there is no allocation.
// Words are big-endian throughout.
type Memory struct {
	data       []byte
	staticBase uint32

	// Packed address unpacking parameters, fixed by the story version.
	packMultiplier uint32
	routinesOffset uint32 // v6-7 only, already multiplied by 8
	stringsOffset  uint32 // v6-7 only, already multiplied by 8
}

// newMemory wraps a story buffer. The caller has validated the header.
func newMemory(data []byte, h *Header) *Memory {
	m := &Memory{
		data:       data,
		staticBase: uint32(h.StaticBase),
	}
	switch {
	case h.Version <= 3:
		m.packMultiplier = 2
	case h.Version <= 7:
		// v6 and v7 keep the 4x multiplier but add the header-declared
		// routine/string offsets (stored divided by 8).
		m.packMultiplier = 4
		if h.Version >= 6 {
			m.routinesOffset = uint32(beWord(data, hdrRoutinesOffset)) * 8
			m.stringsOffset = uint32(beWord(data, hdrStringsOffset)) * 8
		}
	default:
		m.packMultiplier = 8
	}
	return m
}

// Size returns the image length in bytes.
func (m *Memory) Size() uint32 {
	return uint32(len(m.data))
}

// StaticBase returns the first address outside dynamic memory.
func (m *Memory) StaticBase() uint32 {
	return m.staticBase
}

// ReadByte reads one byte.
func (m *Memory) ReadByte(addr uint32) (byte, error) {
	if addr >= uint32(len(m.data)) {
		return 0, fmt.Errorf("%w: read byte at 0x%X (size 0x%X)", ErrOutOfBounds, addr, len(m.data))
	}
	return m.data[addr], nil
}

// ReadWord reads a big-endian word.
func (m *Memory) ReadWord(addr uint32) (uint16, error) {
	if addr+1 >= uint32(len(m.data)) {
		return 0, fmt.Errorf("%w: read word at 0x%X (size 0x%X)", ErrOutOfBounds, addr, len(m.data))
	}
	return uint16(m.data[addr])<<8 | uint16(m.data[addr+1]), nil
}

// WriteByte writes one byte. Writes at or above the static base fail.
func (m *Memory) WriteByte(addr uint32, v byte) error {
	if addr >= m.staticBase {
		return fmt.Errorf("%w: byte at 0x%X (static base 0x%X)", ErrIllegalWrite, addr, m.staticBase)
	}
	m.data[addr] = v
	return nil
}

// WriteWord writes a big-endian word. Both bytes must be inside dynamic
// memory.
func (m *Memory) WriteWord(addr uint32, v uint16) error {
	if addr+1 >= m.staticBase {
		return fmt.Errorf("%w: word at 0x%X (static base 0x%X)", ErrIllegalWrite, addr, m.staticBase)
	}
	m.data[addr] = byte(v >> 8)
	m.data[addr+1] = byte(v)
	return nil
}

// writeHeaderByte bypasses the dynamic-region check for the few header
// bytes the interpreter itself owns (capability flags, screen size). Only
// the loader and Capabilities.apply use it.
func (m *Memory) writeHeaderByte(addr uint32, v byte) {
	if addr < headerSize {
		m.data[addr] = v
	}
}

// UnpackRoutine converts a packed routine address to a byte address.
func (m *Memory) UnpackRoutine(packed uint16) uint32 {
	return uint32(packed)*m.packMultiplier + m.routinesOffset
}

// UnpackString converts a packed string address to a byte address.
func (m *Memory) UnpackString(packed uint16) uint32 {
	return uint32(packed)*m.packMultiplier + m.stringsOffset
}

// Dynamic returns the writable region as a slice. The save machinery diffs
// and overwrites it; nothing else should hold on to the slice.
func (m *Memory) Dynamic() []byte {
	return m.data[:m.staticBase]
}

// bytes returns the raw image. Internal consumers (text decoding, checksum)
// read through this without per-byte bounds errors once the enclosing range
// has been checked.
func (m *Memory) bytes() []byte {
	return m.data
}

// checkRange verifies that [addr, addr+n) lies inside the image.
func (m *Memory) checkRange(addr, n uint32) error {
	if addr+n > uint32(len(m.data)) || addr+n < addr {
		return fmt.Errorf("%w: range 0x%X+0x%X (size 0x%X)", ErrOutOfBounds, addr, n, len(m.data))
	}
	return nil
}

// ---------------------------------------------------------------------------
// Signed 16-bit helpers
// ---------------------------------------------------------------------------

// toSigned reinterprets a machine word as a signed 16-bit value.
func toSigned(v uint16) int16 {
	return int16(v)
}

// toUnsigned reinterprets a signed 16-bit value as a machine word, with
// standard twos-complement wraparound.
func toUnsigned(v int16) uint16 {
	return uint16(v)
}
