package zm

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCapabilitiesApplyV3(t *testing.T) {
	m := newStory(3).code(0xBA).build(t)

	flags1, _ := m.mem.ReadByte(hdrFlags1)
	if flags1&flags1StatusUnavailable != 0 {
		t.Error("status line should be available under default capabilities")
	}
	if flags1&flags1ScreenSplit == 0 {
		t.Error("screen splitting bit should be set")
	}
}

func TestCapabilitiesApplyV5(t *testing.T) {
	m := newStory(5).code(0xBA).build(t)

	flags1, _ := m.mem.ReadByte(hdrFlags1)
	if flags1&flags1Boldface == 0 || flags1&flags1Italic == 0 || flags1&flags1FixedPitch == 0 {
		t.Errorf("style bits missing from Flags1: %02x", flags1)
	}
	if flags1&flags1Sound != 0 || flags1&flags1Colours != 0 {
		t.Errorf("sound/colour bits should be clear by default: %02x", flags1)
	}

	if n, _ := m.mem.ReadByte(hdrInterpNumber); n != 6 {
		t.Errorf("interpreter number = %d, want 6", n)
	}
	if lines, _ := m.mem.ReadByte(hdrScreenHeight); lines != 24 {
		t.Errorf("screen height = %d, want 24", lines)
	}
	if cols, _ := m.mem.ReadByte(hdrScreenWidth); cols != 80 {
		t.Errorf("screen width = %d, want 80", cols)
	}
	if rev, _ := m.mem.ReadWord(hdrStandardRev); rev != 0x0101 {
		t.Errorf("standard revision = %04x, want 0101", rev)
	}
}

func TestCapabilitiesClearUnsupportedFlags2(t *testing.T) {
	b := newStory(5)
	// The game asks for sound and undo in Flags2.
	b.setWord(hdrFlags2, flags2Sound|flags2Undo)
	m := b.code(0xBA).build(t)

	flags2, _ := m.mem.ReadWord(hdrFlags2)
	if flags2&flags2Sound != 0 {
		t.Error("sound request should be cleared without sound support")
	}
	if flags2&flags2Undo == 0 {
		t.Error("undo request should survive; undo is always available")
	}
}

func TestLoadCapabilitiesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "caps.toml")
	content := `
undo-slots = 3

[screen]
lines = 30
columns = 120

[features]
sound = true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	caps, err := LoadCapabilities(path)
	if err != nil {
		t.Fatalf("LoadCapabilities: %v", err)
	}
	if caps.Screen.Lines != 30 || caps.Screen.Columns != 120 {
		t.Errorf("screen = %dx%d, want 30x120", caps.Screen.Lines, caps.Screen.Columns)
	}
	if !caps.Features.Sound {
		t.Error("sound should be enabled")
	}
	if caps.UndoSlots != 3 {
		t.Errorf("undo slots = %d, want 3", caps.UndoSlots)
	}
	// Unmentioned fields keep their defaults.
	if !caps.Features.StatusLine {
		t.Error("status line default should survive a partial file")
	}
}

func TestLoadCapabilitiesMissingFile(t *testing.T) {
	if _, err := LoadCapabilities(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}
