package zm

import (
	"testing"
)

func TestDictionaryLookup(t *testing.T) {
	b := newStory(3)
	b.dictionary(",", encLook, encTake)
	m := b.code(0xBA).build(t)

	lookAddr := m.dict.LookupWord("look")
	takeAddr := m.dict.LookupWord("take")
	if lookAddr == 0 || takeAddr == 0 {
		t.Fatalf("dictionary words not found: look=%04x take=%04x", lookAddr, takeAddr)
	}
	if lookAddr >= takeAddr {
		t.Errorf("entry addresses out of order: look=%04x take=%04x", lookAddr, takeAddr)
	}
	if addr := m.dict.LookupWord("sword"); addr != 0 {
		t.Errorf("LookupWord(sword) = %04x, want 0", addr)
	}
	// Truncation makes over-long words match their prefix entry.
	if addr := m.dict.LookupWord("looking"); addr != lookAddr {
		t.Errorf("LookupWord(looking) = %04x, want %04x", addr, lookAddr)
	}
}

func TestDictionarySplitInput(t *testing.T) {
	b := newStory(3)
	b.dictionary(",", encLook, encTake)
	m := b.code(0xBA).build(t)

	tokens := m.dict.splitInput("look, take all")
	want := []token{
		{text: "look", pos: 0},
		{text: ",", pos: 4},
		{text: "take", pos: 6},
		{text: "all", pos: 11},
	}
	if len(tokens) != len(want) {
		t.Fatalf("splitInput: got %d tokens %v, want %d", len(tokens), tokens, len(want))
	}
	for i := range want {
		if tokens[i] != want[i] {
			t.Errorf("token %d = %+v, want %+v", i, tokens[i], want[i])
		}
	}

	if got := m.dict.splitInput("   "); len(got) != 0 {
		t.Errorf("splitInput(spaces) = %v, want empty", got)
	}
}

func TestUserDictionaryUnsorted(t *testing.T) {
	m := newStory(3).code(0xBA).build(t)

	// A user dictionary with a negative entry count is unsorted and gets
	// the linear scan. Entries here are deliberately out of order.
	at := uint32(0x0680)
	m.mem.WriteByte(at, 0)         // no separators
	m.mem.WriteByte(at+1, 5)       // entry length
	m.mem.WriteWord(at+2, 0xFFFE)  // -2 entries
	copy(m.mem.Dynamic()[at+4:], encTake)
	copy(m.mem.Dynamic()[at+9:], encLook)

	d, err := newDictionary(m.mem, m.codec, at)
	if err != nil {
		t.Fatalf("newDictionary: %v", err)
	}
	if addr := d.LookupWord("look"); addr != uint16(at+9) {
		t.Errorf("LookupWord(look) = %04x, want %04x", addr, at+9)
	}
	if addr := d.LookupWord("take"); addr != uint16(at+4) {
		t.Errorf("LookupWord(take) = %04x, want %04x", addr, at+4)
	}
	if addr := d.LookupWord("all"); addr != 0 {
		t.Errorf("LookupWord(all) = %04x, want 0", addr)
	}
}
