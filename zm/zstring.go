package zm

import (
	"strings"
)

// ---------------------------------------------------------------------------
// Z-character stream codec
// ---------------------------------------------------------------------------

// Z-characters are 5-bit codes packed three per word; bit 15 of a word marks
// the end of a string. Codes 1-5 are version-dependent control characters,
// code 6 in alphabet A2 escapes a ten-bit ZSCII literal, and codes 6-31
// index one of three alphabet tables.

const (
	zcharSpace   = 0
	zcharPad     = 5 // also the A2 shift in v3+; used to pad short words
	zcharEscape  = 6 // A2 position 0: ten-bit ZSCII literal follows
	zcharAlphaLo = 6
)

// textCodec decodes and encodes Z-character streams for one loaded story.
// It resolves the alphabet tables (default or story-supplied) and the
// unicode translation table once, at load.
type textCodec struct {
	mem        *Memory
	version    byte
	abbrevAddr uint32
	alphabets  [3]string
	unicode    []rune // nil = default translation
	wordLen    int    // Z-characters per dictionary word: 6 (v1-3) or 9 (v4+)
}

func newTextCodec(mem *Memory, h *Header) (*textCodec, error) {
	c := &textCodec{
		mem:        mem,
		version:    h.Version,
		abbrevAddr: uint32(h.Abbreviations),
		wordLen:    6,
	}
	if h.Class != V1_3 {
		c.wordLen = 9
	}

	c.alphabets = [3]string{alphabetA0, alphabetA1, alphabetA2}
	if h.Version == 1 {
		c.alphabets[2] = alphabetA2v1
	}
	if h.AlphabetTable != 0 {
		if err := c.loadAlphabets(uint32(h.AlphabetTable)); err != nil {
			return nil, err
		}
	}
	if h.UnicodeTable != 0 {
		if err := c.loadUnicode(uint32(h.UnicodeTable)); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// loadAlphabets reads a story-supplied alphabet table: 78 bytes of ZSCII,
// 26 per alphabet. A2 position 0 remains the escape regardless of the
// table's contents.
func (c *textCodec) loadAlphabets(addr uint32) error {
	if err := c.mem.checkRange(addr, 78); err != nil {
		return err
	}
	raw := c.mem.bytes()
	for a := 0; a < 3; a++ {
		var sb strings.Builder
		for i := 0; i < 26; i++ {
			// A2 position 1 is newline no matter what the table says,
			// just as position 0 stays the ten-bit escape.
			if a == 2 && i == 1 {
				sb.WriteByte('\n')
				continue
			}
			code := uint16(raw[addr+uint32(a*26+i)])
			r := c.zsciiToRune(code)
			if r == 0 {
				r = ' '
			}
			sb.WriteRune(r)
		}
		c.alphabets[a] = sb.String()
	}
	return nil
}

// loadUnicode reads the header-extension unicode translation table: a count
// byte followed by that many 16-bit code points.
func (c *textCodec) loadUnicode(addr uint32) error {
	if err := c.mem.checkRange(addr, 1); err != nil {
		return err
	}
	raw := c.mem.bytes()
	n := uint32(raw[addr])
	if err := c.mem.checkRange(addr+1, n*2); err != nil {
		return err
	}
	c.unicode = make([]rune, n)
	for i := uint32(0); i < n; i++ {
		c.unicode[i] = rune(beWord(raw, addr+1+i*2))
	}
	return nil
}

// ---------------------------------------------------------------------------
// Decoding
// ---------------------------------------------------------------------------

// Decode expands the Z-character stream at addr into text, returning the
// decoded string and the address of the first byte past it.
func (c *textCodec) Decode(addr uint32) (string, uint32, error) {
	return c.decode(addr, true)
}

func (c *textCodec) decode(addr uint32, allowAbbrev bool) (string, uint32, error) {
	zchars, next, err := c.readZChars(addr)
	if err != nil {
		return "", 0, err
	}

	var sb strings.Builder
	alphabet := 0 // current single-shift alphabet
	lock := 0     // locked alphabet (v1-2 only; always 0 in v3+)

	for i := 0; i < len(zchars); i++ {
		zc := zchars[i]

		switch {
		case zc == zcharSpace:
			sb.WriteByte(' ')
			alphabet = lock

		case zc == 1 && c.version == 1:
			sb.WriteByte('\n')
			alphabet = lock

		case c.isAbbrevCode(zc):
			if i+1 >= len(zchars) {
				break // string ends inside an escape; nothing to print
			}
			i++
			if !allowAbbrev {
				return "", 0, gameErrf("abbreviation expands another abbreviation")
			}
			text, err := c.expandAbbrev(zc, zchars[i])
			if err != nil {
				return "", 0, err
			}
			sb.WriteString(text)
			alphabet = lock

		case zc >= 2 && zc <= 5:
			alphabet, lock = c.applyShift(zc, alphabet, lock)

		case zc == zcharEscape && alphabet == 2:
			// Ten-bit ZSCII literal from the next two Z-characters.
			if i+2 >= len(zchars) {
				i = len(zchars)
				break
			}
			code := uint16(zchars[i+1])<<5 | uint16(zchars[i+2])
			i += 2
			if r := c.zsciiToRune(code); r != 0 {
				sb.WriteRune(r)
			}
			alphabet = lock

		default:
			row := c.alphabets[alphabet]
			ix := int(zc - zcharAlphaLo)
			if ix < len(row) {
				// Alphabet rows are pure ASCII unless story-supplied, so
				// index by rune to stay correct for custom tables.
				sb.WriteRune([]rune(row)[ix])
			}
			alphabet = lock
		}
	}

	return sb.String(), next, nil
}

// readZChars unpacks the raw 5-bit stream starting at addr, stopping at the
// word with the end bit set.
func (c *textCodec) readZChars(addr uint32) ([]byte, uint32, error) {
	var zchars []byte
	for {
		w, err := c.mem.ReadWord(addr)
		if err != nil {
			return nil, 0, err
		}
		zchars = append(zchars, byte(w>>10)&0x1F, byte(w>>5)&0x1F, byte(w)&0x1F)
		addr += 2
		if w&0x8000 != 0 {
			return zchars, addr, nil
		}
	}
}

// isAbbrevCode reports whether zc begins an abbreviation escape in this
// version: none in v1, code 1 in v2, codes 1-3 in v3+.
func (c *textCodec) isAbbrevCode(zc byte) bool {
	switch {
	case c.version == 1:
		return false
	case c.version == 2:
		return zc == 1
	default:
		return zc >= 1 && zc <= 3
	}
}

// applyShift updates the alphabet state for shift codes 2-5. In v3+ codes
// 4 and 5 are single shifts to A1 and A2; 2 and 3 never reach here (they
// are abbreviation escapes). In v1-2 codes 2/3 shift for one character and
// 4/5 lock, cycling through the alphabets in order.
func (c *textCodec) applyShift(zc byte, alphabet, lock int) (int, int) {
	if c.version >= 3 {
		if zc == 4 {
			return 1, lock
		}
		return 2, lock
	}
	switch zc {
	case 2:
		return (alphabet + 1) % 3, lock
	case 3:
		return (alphabet + 2) % 3, lock
	case 4:
		lock = (alphabet + 1) % 3
	case 5:
		lock = (alphabet + 2) % 3
	}
	return lock, lock
}

// expandAbbrev decodes entry 32*(z-1)+x of the abbreviations table.
// Expansion is non-recursive: an abbreviation whose text contains a further
// abbreviation escape is a malformed story.
func (c *textCodec) expandAbbrev(zc, index byte) (string, error) {
	entry := c.abbrevAddr + uint32(32*(zc-1)+index)*2
	wordAddr, err := c.mem.ReadWord(entry)
	if err != nil {
		return "", err
	}
	// Abbreviation entries are word addresses in every version.
	text, _, err := c.decode(uint32(wordAddr)*2, false)
	return text, err
}

// ---------------------------------------------------------------------------
// Encoding (dictionary form)
// ---------------------------------------------------------------------------

// Encode converts a single input word to its fixed-length dictionary form:
// lowercased, truncated to the version's Z-character count, padded with
// Z-character 5, and packed big-endian with the end bit on the final word.
// Returns 4 bytes for v1-3, 6 for v4+.
func (c *textCodec) Encode(word string) []byte {
	zchars := make([]byte, 0, c.wordLen+4)

	for _, r := range strings.ToLower(word) {
		if len(zchars) >= c.wordLen {
			break
		}
		zchars = append(zchars, c.encodeRune(r)...)
	}
	if len(zchars) > c.wordLen {
		zchars = zchars[:c.wordLen]
	}
	for len(zchars) < c.wordLen {
		zchars = append(zchars, zcharPad)
	}

	words := c.wordLen / 3
	out := make([]byte, 0, words*2)
	for i := 0; i < words; i++ {
		w := uint16(zchars[i*3])<<10 | uint16(zchars[i*3+1])<<5 | uint16(zchars[i*3+2])
		if i == words-1 {
			w |= 0x8000
		}
		out = append(out, byte(w>>8), byte(w))
	}
	return out
}

// encodeRune maps one rune to the Z-characters that produce it.
func (c *textCodec) encodeRune(r rune) []byte {
	if ix := strings.IndexRune(c.alphabets[0], r); ix >= 0 {
		return []byte{byte(ix + zcharAlphaLo)}
	}
	// A2 positions 0 (escape) and, in v2+, 1 (newline) are not reachable
	// from input text.
	if ix := strings.IndexRune(c.alphabets[2], r); ix >= 1 {
		return []byte{c.shiftA2(), byte(ix + zcharAlphaLo)}
	}
	// Anything else becomes a ten-bit ZSCII literal.
	code := c.runeToZSCII(r)
	return []byte{c.shiftA2(), zcharEscape, byte(code>>5) & 0x1F, byte(code) & 0x1F}
}

// shiftA2 returns the single-shift code selecting alphabet A2: 5 in v3+,
// 3 (shift down) in v1-2.
func (c *textCodec) shiftA2() byte {
	if c.version >= 3 {
		return 5
	}
	return 3
}
