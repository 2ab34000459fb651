package zm

import (
	"bytes"
)

// ---------------------------------------------------------------------------
// Dictionary: the story's word list
// ---------------------------------------------------------------------------

// A dictionary starts with a separator list (count byte, then the ZSCII
// separator characters), an entry-length byte, and a signed entry count.
// A negative count marks an unsorted table (legal for the user dictionaries
// passed to tokenise); the main dictionary is sorted and binary-searched.
type dictionary struct {
	mem        *Memory
	codec      *textCodec
	addr       uint32
	separators []byte
	entryLen   uint32
	count      uint32
	sorted     bool
	entries    uint32 // address of the first entry
}

func newDictionary(mem *Memory, codec *textCodec, addr uint32) (*dictionary, error) {
	if err := mem.checkRange(addr, 1); err != nil {
		return nil, err
	}
	raw := mem.bytes()
	nsep := uint32(raw[addr])
	if err := mem.checkRange(addr+1, nsep+3); err != nil {
		return nil, err
	}

	d := &dictionary{
		mem:        mem,
		codec:      codec,
		addr:       addr,
		separators: append([]byte(nil), raw[addr+1:addr+1+nsep]...),
		entryLen:   uint32(raw[addr+1+nsep]),
		sorted:     true,
	}

	rawCount := toSigned(beWord(raw, addr+1+nsep+1))
	if rawCount < 0 {
		d.sorted = false
		rawCount = -rawCount
	}
	d.count = uint32(rawCount)
	d.entries = addr + 1 + nsep + 3

	if d.entryLen < uint32(d.codec.wordLen/3*2) {
		return nil, gameErrf("dictionary entry length %d too short", d.entryLen)
	}
	if err := mem.checkRange(d.entries, d.count*d.entryLen); err != nil {
		return nil, err
	}
	return d, nil
}

// wordBytes returns the encoded-word width of an entry: 4 bytes for v1-3,
// 6 for v4+.
func (d *dictionary) wordBytes() uint32 {
	return uint32(d.codec.wordLen / 3 * 2)
}

// Lookup finds the entry matching an encoded word, returning its byte
// address or 0 when absent. Unknown words are a normal outcome, not an
// error. Comparison is unsigned bytewise over the encoded bytes.
func (d *dictionary) Lookup(encoded []byte) uint16 {
	n := d.wordBytes()
	raw := d.mem.bytes()

	if !d.sorted {
		for i := uint32(0); i < d.count; i++ {
			at := d.entries + i*d.entryLen
			if bytes.Equal(raw[at:at+n], encoded[:n]) {
				return uint16(at)
			}
		}
		return 0
	}

	lo, hi := int64(0), int64(d.count)-1
	for lo <= hi {
		mid := lo + (hi-lo)/2
		at := d.entries + uint32(mid)*d.entryLen
		switch bytes.Compare(encoded[:n], raw[at:at+n]) {
		case 0:
			return uint16(at)
		case -1:
			hi = mid - 1
		default:
			lo = mid + 1
		}
	}
	return 0
}

// LookupWord encodes a word and looks it up.
func (d *dictionary) LookupWord(word string) uint16 {
	return d.Lookup(d.codec.Encode(word))
}

// token is one word produced by the lexical splitter: its text and the
// position of its first character within the input.
type token struct {
	text string
	pos  int
}

// splitInput performs the standard lexical analysis: spaces separate words
// and are discarded; dictionary separator characters separate words and
// also count as words of their own.
func (d *dictionary) splitInput(text string) []token {
	var tokens []token
	start := -1

	flush := func(end int) {
		if start >= 0 {
			tokens = append(tokens, token{text: text[start:end], pos: start})
			start = -1
		}
	}

	for i := 0; i < len(text); i++ {
		ch := text[i]
		switch {
		case ch == ' ':
			flush(i)
		case bytes.IndexByte(d.separators, ch) >= 0:
			flush(i)
			tokens = append(tokens, token{text: text[i : i+1], pos: i})
		default:
			if start < 0 {
				start = i
			}
		}
	}
	flush(len(text))
	return tokens
}
