package zm

import (
	"errors"
	"testing"
)

func TestMemoryBounds(t *testing.T) {
	m := newStory(3).code(0xBA).build(t)

	if _, err := m.mem.ReadByte(tbSize); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("ReadByte past end: got %v, want ErrOutOfBounds", err)
	}
	if _, err := m.mem.ReadWord(tbSize - 1); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("ReadWord straddling end: got %v, want ErrOutOfBounds", err)
	}
	if err := m.mem.WriteByte(tbStatic, 1); !errors.Is(err, ErrIllegalWrite) {
		t.Errorf("WriteByte into static memory: got %v, want ErrIllegalWrite", err)
	}
	if err := m.mem.WriteWord(tbStatic-1, 1); !errors.Is(err, ErrIllegalWrite) {
		t.Errorf("WriteWord straddling static base: got %v, want ErrIllegalWrite", err)
	}
	if err := m.mem.WriteWord(tbGlobals, 0xBEEF); err != nil {
		t.Fatalf("WriteWord in dynamic memory: %v", err)
	}
	v, err := m.mem.ReadWord(tbGlobals)
	if err != nil || v != 0xBEEF {
		t.Errorf("ReadWord back: got %04x, %v", v, err)
	}
}

func TestMemoryHeaderWrites(t *testing.T) {
	m := newStory(3).code(0xBA).build(t)

	// Regular writes to the header go through the dynamic rules.
	if err := m.mem.WriteByte(hdrFlags2+1, 0x01); err != nil {
		t.Fatalf("game write to Flags2: %v", err)
	}
	// Interpreter writes bypass nothing in v3 but must work in any case.
	m.mem.writeHeaderByte(hdrInterpNumber, 6)
	v, _ := m.mem.ReadByte(hdrInterpNumber)
	if v != 6 {
		t.Errorf("writeHeaderByte: got %d, want 6", v)
	}
}

func TestSignedConversionRoundTrip(t *testing.T) {
	cases := []struct {
		raw  uint16
		want int16
	}{
		{0, 0},
		{1, 1},
		{0x7FFF, 32767},
		{0x8000, -32768},
		{0xFFFF, -1},
	}
	for _, c := range cases {
		if got := toSigned(c.raw); got != c.want {
			t.Errorf("toSigned(%04x) = %d, want %d", c.raw, got, c.want)
		}
		if got := toUnsigned(c.want); got != c.raw {
			t.Errorf("toUnsigned(%d) = %04x, want %04x", c.want, got, c.raw)
		}
	}
}

func TestPackedAddresses(t *testing.T) {
	cases := []struct {
		version byte
		packed  uint16
		want    uint32
	}{
		{1, 0x0100, 0x0200},
		{3, 0x0100, 0x0200},
		{4, 0x0100, 0x0400},
		{5, 0x0100, 0x0400},
		{8, 0x0100, 0x0800},
	}
	for _, c := range cases {
		m := newStory(c.version).code(0xBA).build(t)
		if got := m.mem.UnpackRoutine(c.packed); got != c.want {
			t.Errorf("v%d UnpackRoutine(%04x) = %05x, want %05x", c.version, c.packed, got, c.want)
		}
		if got := m.mem.UnpackString(c.packed); got != c.want {
			t.Errorf("v%d UnpackString(%04x) = %05x, want %05x", c.version, c.packed, got, c.want)
		}
	}
}

func TestVersionClasses(t *testing.T) {
	cases := []struct {
		version byte
		want    VersionClass
	}{
		{1, V1_3}, {2, V1_3}, {3, V1_3},
		{4, V4},
		{5, V5_8}, {6, V5_8}, {7, V5_8}, {8, V5_8},
	}
	for _, c := range cases {
		if got := versionClass(c.version); got != c.want {
			t.Errorf("versionClass(%d) = %s, want %s", c.version, got, c.want)
		}
	}
}

func TestLoadRejectsBadStories(t *testing.T) {
	if _, err := Load([]byte{3, 0, 0}, DefaultCapabilities()); !errors.Is(err, ErrLoad) {
		t.Errorf("short story: got %v, want ErrLoad", err)
	}

	bad := newStory(3).code(0xBA).bytes()
	bad = append([]byte(nil), bad...)
	bad[hdrVersion] = 9
	if _, err := Load(bad, DefaultCapabilities()); !errors.Is(err, ErrLoad) {
		t.Errorf("version 9: got %v, want ErrLoad", err)
	}
}
