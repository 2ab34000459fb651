package zm

import (
	"strings"
	"testing"
)

func TestSessionRunsToHalt(t *testing.T) {
	m := newStory(3).
		code(0xB2, 0xB5, 0xC5). // print "hi"
		code(0xBA).
		build(t)
	buf := &CommandBuffer{}
	m.SetOutput(buf)

	s := NewSession(m)
	defer s.Close()

	st, save, err := s.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if st != Halted {
		t.Errorf("state = %v, want Halted", st)
	}
	if save != nil {
		t.Errorf("save payload outside AwaitingSave: %v", save)
	}
	if got := buf.Text(0); got != "hi" {
		t.Errorf("output = %q, want %q", got, "hi")
	}
}

func TestSessionFeedLineRunsOn(t *testing.T) {
	b := newStory(3)
	b.dictionary("", encLook)
	b.setByte(tbText, 20)
	b.setByte(tbParse, 10)
	m := b.
		code(0xE4, 0x0F, 0x06, 0x00, 0x06, 0x40). // sread text parse
		code(0xBA).
		build(t)

	s := NewSession(m)
	defer s.Close()

	if st, _, err := s.Run(); err != nil || st != AwaitingLine {
		t.Fatalf("Run = %v, %v, want AwaitingLine", st, err)
	}
	// One FeedLine both answers the read and carries on to the quit.
	st, _, err := s.FeedLine("look")
	if err != nil {
		t.Fatalf("FeedLine: %v", err)
	}
	if st != Halted {
		t.Errorf("state after FeedLine = %v, want Halted", st)
	}
	count, _ := m.mem.ReadByte(tbParse + 1)
	if count != 1 {
		t.Errorf("parse count = %d, want 1", count)
	}
}

func TestSessionCarriesSavePayload(t *testing.T) {
	m := newStory(3).
		code(0xB5, 0xC6).             // save [->] success path
		code(0xB2, 0xCC, 0xA5, 0xBA). // print "n"; quit
		code(0xB2, 0xF8, 0xA5, 0xBA). // print "y"; quit
		build(t)

	s := NewSession(m)
	defer s.Close()

	st, save, err := s.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if st != AwaitingSave {
		t.Fatalf("state = %v, want AwaitingSave", st)
	}
	if len(save) < 12 || string(save[8:12]) != "IFZS" {
		t.Fatalf("save payload is not an IFZS container (%d bytes)", len(save))
	}
	if st, _, err = s.FinishSave(true); err != nil || st != Halted {
		t.Errorf("FinishSave = %v, %v, want Halted", st, err)
	}
}

func TestSessionRecoversPanics(t *testing.T) {
	m := newStory(3).code(0xBA).build(t)
	s := NewSession(m)
	defer s.Close()

	st, _, err := s.call(func(*Machine) (State, error) {
		panic("boom")
	})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("call after panic: got %v, want error containing boom", err)
	}
	if st != Halted {
		t.Errorf("state after panic = %v, want Halted", st)
	}

	// The session goroutine keeps serving.
	if got := s.State(); got != Halted {
		t.Errorf("State = %v, want Halted", got)
	}
}
