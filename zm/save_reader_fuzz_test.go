package zm

import (
	"testing"
)

// FuzzReadQuetzal throws arbitrary bytes at the save-file reader. Any
// input may be rejected with ErrSaveData, but nothing may panic or
// succeed with a snapshot that fails the basic shape checks.
func FuzzReadQuetzal(f *testing.F) {
	seedStory := func() *Machine {
		b := newStory(3)
		b.code(0x0D, 0x10, 0x07, 0xB5, 0xC2, 0xBA)
		m, err := Load(b.bytes(), DefaultCapabilities())
		if err != nil {
			f.Fatalf("Load: %v", err)
		}
		return m
	}

	// Seed 1: a real save file.
	m := seedStory()
	if _, err := m.Run(); err != nil {
		f.Fatalf("Run: %v", err)
	}
	f.Add(m.PendingSave())

	// Seed 2: just the container header.
	f.Add([]byte("FORM\x00\x00\x00\x04IFZS"))

	// Seed 3: truncated mid-chunk.
	full := m.PendingSave()
	f.Add(full[:len(full)/2])

	// Seed 4: not IFF at all.
	f.Add([]byte("GLUL"))

	f.Fuzz(func(t *testing.T, data []byte) {
		m := seedStory()
		s, err := readQuetzal(m, data)
		if err != nil {
			return
		}
		if len(s.dynamic) != len(m.mem.Dynamic()) {
			t.Errorf("accepted snapshot with dynamic size %d", len(s.dynamic))
		}
		if len(s.frames) == 0 {
			t.Error("accepted snapshot with no frames")
		}
	})
}

// FuzzDecodeText runs the Z-string decoder over arbitrary memory. Decoding
// may fail, but must terminate and never panic.
func FuzzDecodeText(f *testing.F) {
	f.Add([]byte{0xB5, 0xC5})             // "hi"
	f.Add([]byte{0x14, 0xC3, 0xA0, 0xA5}) // ten-bit literal
	f.Add([]byte{0x84, 0x05})             // abbreviation reference
	f.Add([]byte{0x00, 0x00})             // never sets the end bit

	f.Fuzz(func(t *testing.T, data []byte) {
		b := newStory(3)
		n := len(data)
		if n > 0x80 {
			n = 0x80
		}
		copy(b.mem[tbText:], data[:n])
		m, err := Load(b.bytes(), DefaultCapabilities())
		if err != nil {
			t.Skip()
		}
		m.codec.Decode(tbText)
	})
}
