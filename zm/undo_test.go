package zm

import (
	"bytes"
	"testing"
)

func TestSaveUndoRestoreUndo(t *testing.T) {
	m := newStory(5).
		code(0x0D, 0x10, 0x07).       // store g0 7
		code(0xBE, 0x09, 0xFF, 0x11). // save_undo -> g1
		code(0x41, 0x11, 0x02, 0xCA). // je g1 2 ?done
		code(0x0D, 0x10, 0x09).       // store g0 9
		code(0xBE, 0x0A, 0xFF, 0x12). // restore_undo -> g2
		code(0xBA).                   // quit (only on failed restore)
		code(0xB2, 0xF8, 0xA5).       // done: print "y"
		code(0xBA).
		build(t)
	out := &CommandBuffer{}
	m.SetOutput(out)

	runToState(t, m, Halted)

	if got := out.Text(0); got != "y" {
		t.Fatalf("output = %q, want %q", got, "y")
	}
	if v, _ := m.mem.ReadWord(tbGlobals); v != 7 {
		t.Errorf("g0 = %d, want 7 (undo must discard the later store)", v)
	}
	if v, _ := m.mem.ReadWord(tbGlobals + 2); v != 2 {
		t.Errorf("g1 = %d, want 2 (restored save_undo stores 2)", v)
	}
}

func TestRestoreUndoWithEmptyRing(t *testing.T) {
	m := newStory(5).
		global(0, 0xFFFF).
		code(0xBE, 0x0A, 0xFF, 0x10). // restore_undo -> g0
		code(0xBA).
		build(t)

	runToState(t, m, Halted)
	if v, _ := m.mem.ReadWord(tbGlobals); v != 0 {
		t.Errorf("g0 = %d, want 0 with nothing to restore", v)
	}
}

func TestUndoRecordRoundTrip(t *testing.T) {
	m := newStory(5).code(0xBA).build(t)
	m.frames = []*callFrame{
		{storeVar: -1},
		{returnPC: 0x0802, locals: []uint16{3}, stack: []uint16{1, 2}, storeVar: 5, argCount: 1},
	}
	m.pc = 0x0790

	data, err := encodeUndo(m.captureSnapshot())
	if err != nil {
		t.Fatalf("encodeUndo: %v", err)
	}
	s, err := decodeUndo(data)
	if err != nil {
		t.Fatalf("decodeUndo: %v", err)
	}
	if s.pc != 0x0790 {
		t.Errorf("pc = %05x, want 00790", s.pc)
	}
	if !bytes.Equal(s.dynamic, m.mem.Dynamic()) {
		t.Error("dynamic memory did not round-trip")
	}
	if len(s.frames) != 2 || s.frames[1].storeVar != 5 || s.frames[1].argCount != 1 {
		t.Errorf("frames did not round-trip: %+v", s.frames)
	}

	// Canonical encoding is deterministic.
	again, err := encodeUndo(m.captureSnapshot())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, again) {
		t.Error("encoding the same snapshot twice differs")
	}
}

func TestUndoRingIsBounded(t *testing.T) {
	m := newStory(5).code(0xBA).build(t)
	m.undoLimit = 2

	// Five save_undo store bytes in a row; each call consumes one.
	for i := uint32(0); i < 5; i++ {
		m.mem.WriteByte(tbText+i, 0x10)
	}
	m.pc = tbText
	for i := 0; i < 5; i++ {
		if err := m.opSaveUndo(); err != nil {
			t.Fatalf("opSaveUndo %d: %v", i, err)
		}
	}
	if len(m.undo) != 2 {
		t.Errorf("ring holds %d snapshots, want 2", len(m.undo))
	}
}
