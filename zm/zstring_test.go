package zm

import (
	"bytes"
	"errors"
	"testing"
)

func decodeAt(t *testing.T, m *Machine, words ...uint16) string {
	t.Helper()
	at := uint32(tbText)
	for i, w := range words {
		if err := m.mem.WriteWord(at+uint32(i)*2, w); err != nil {
			t.Fatalf("WriteWord: %v", err)
		}
	}
	s, _, err := m.codec.Decode(at)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return s
}

func TestDecodeBasic(t *testing.T) {
	m := newStory(3).code(0xBA).build(t)

	if got := decodeAt(t, m, 0xB5C5); got != "hi" {
		t.Errorf("decode: got %q, want %q", got, "hi")
	}
	if got := decodeAt(t, m, 0x1807, 0x94A5); got != "a b" {
		t.Errorf("decode with space: got %q, want %q", got, "a b")
	}
}

func TestDecodeShiftResetsInV3(t *testing.T) {
	m := newStory(3).code(0xBA).build(t)

	// Shift to A1 affects exactly one character in v3+.
	if got := decodeAt(t, m, 0x11AE, 0x94A5); got != "Hi" {
		t.Errorf("v3 shift: got %q, want %q", got, "Hi")
	}
}

func TestDecodeShiftLocksInV1(t *testing.T) {
	m := newStory(1).code(0xBA).build(t)

	// The same z-characters lock the alphabet in v1.
	if got := decodeAt(t, m, 0x11AE, 0x94A5); got != "HI" {
		t.Errorf("v1 shift lock: got %q, want %q", got, "HI")
	}
}

func TestDecodeTenBitLiteral(t *testing.T) {
	m := newStory(3).code(0xBA).build(t)

	// Shift to A2, escape 6, then 104 ('h') split 3/8.
	if got := decodeAt(t, m, 0x14C3, 0xA0A5); got != "h" {
		t.Errorf("ten-bit literal: got %q, want %q", got, "h")
	}
}

func TestDecodeCustomAlphabetKeepsNewline(t *testing.T) {
	b := newStory(5)
	const tableAt = 0x0660
	for i := 0; i < 26; i++ {
		b.setByte(tableAt+uint32(i), byte('a'+i))
		b.setByte(tableAt+26+uint32(i), byte('A'+i))
		b.setByte(tableAt+52+uint32(i), '*')
	}
	b.setByte(tableAt+54, '@') // A2 position 2
	b.setWord(hdrAlphabetTable, tableAt)
	m := b.code(0xBA).build(t)

	// A2 position 2 comes from the table, but position 1 stays newline
	// even though the table puts '*' there.
	if got := decodeAt(t, m, 0x14E5, 0xA0A5); got != "\n@" {
		t.Errorf("custom A2: got %q, want %q", got, "\n@")
	}
}

func TestDecodeAbbreviation(t *testing.T) {
	b := newStory(3)
	b.abbrev(0, 0xB5C5) // "hi"
	m := b.code(0xBA).build(t)

	// Abbreviation code 1, index 0.
	if got := decodeAt(t, m, 0x8405); got != "hi" {
		t.Errorf("abbreviation: got %q, want %q", got, "hi")
	}
}

func TestDecodeAbbreviationInsideAbbreviationFails(t *testing.T) {
	b := newStory(3)
	b.abbrev(0, 0x0405|0x8000) // the abbreviation expands abbreviation 0
	m := b.code(0xBA).build(t)

	if err := m.mem.WriteWord(tbText, 0x8405); err != nil {
		t.Fatal(err)
	}
	if _, _, err := m.codec.Decode(tbText); !errors.Is(err, ErrGame) {
		t.Errorf("recursive abbreviation: got %v, want ErrGame", err)
	}
}

func TestEncodeDictionaryWords(t *testing.T) {
	m := newStory(3).code(0xBA).build(t)

	if got := m.codec.Encode("look"); !bytes.Equal(got, encLook) {
		t.Errorf("Encode(look) = % x, want % x", got, encLook)
	}
	if got := m.codec.Encode("take"); !bytes.Equal(got, encTake) {
		t.Errorf("Encode(take) = % x, want % x", got, encTake)
	}
	// Encoding is case-insensitive and truncates to the version's length.
	if got := m.codec.Encode("LOOKING"); !bytes.Equal(got, m.codec.Encode("lookin")) {
		t.Errorf("Encode should fold case and truncate: % x", got)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	m := newStory(5).code(0xBA).build(t)

	for _, word := range []string{"sword", "lantern", "x", "q10"} {
		enc := m.codec.Encode(word)
		at := uint32(tbText)
		for i, v := range enc {
			if err := m.mem.WriteByte(at+uint32(i), v); err != nil {
				t.Fatal(err)
			}
		}
		dec, _, err := m.codec.Decode(at)
		if err != nil {
			t.Fatalf("Decode(%q): %v", word, err)
		}
		want := word
		if len(want) > 9 {
			want = want[:9]
		}
		if dec != want {
			t.Errorf("round trip %q: got %q", word, dec)
		}
	}
}
