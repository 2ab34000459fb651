package zm

// ---------------------------------------------------------------------------
// ZSCII: the story format's character set
// ---------------------------------------------------------------------------

// Default alphabet tables. Each string covers Z-characters 6..31 of one
// alphabet. A2 position 0 (Z-character 6) is the escape introducing a
// ten-bit ZSCII literal and never renders from the table.
const (
	alphabetA0 = "abcdefghijklmnopqrstuvwxyz"
	alphabetA1 = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	// v2+ A2: escape, newline, digits, punctuation.
	alphabetA2 = " \n0123456789.,!?_#'\"/\\-:()"
	// v1 has no newline in A2 (Z-character 1 prints it) and keeps '<'.
	alphabetA2v1 = " 0123456789.,!?_#'\"/\\<-:()"
)

// ZSCII codes with fixed meanings.
const (
	zsciiNull      = 0
	zsciiDelete    = 8
	zsciiNewline   = 13
	zsciiEscape    = 27
	zsciiSpace     = 32
	zsciiExtraBase = 155 // first entry of the unicode translation table
	zsciiExtraTop  = 251
)

// defaultUnicode is the standard translation for the extra characters
// ZSCII 155-223 when the story supplies no table of its own.
var defaultUnicode = []rune{
	'ä', 'ö', 'ü', 'Ä', 'Ö', 'Ü', 'ß', '»', '«', 'ë', // 155-164
	'ï', 'ÿ', 'Ë', 'Ï', 'á', 'é', 'í', 'ó', 'ú', 'ý', // 165-174
	'Á', 'É', 'Í', 'Ó', 'Ú', 'Ý', 'à', 'è', 'ì', 'ò', // 175-184
	'ù', 'À', 'È', 'Ì', 'Ò', 'Ù', 'â', 'ê', 'î', 'ô', // 185-194
	'û', 'Â', 'Ê', 'Î', 'Ô', 'Û', 'å', 'Å', 'ø', 'Ø', // 195-204
	'ã', 'ñ', 'õ', 'Ã', 'Ñ', 'Õ', 'æ', 'Æ', 'ç', 'Ç', // 205-214
	'þ', 'ð', 'Þ', 'Ð', '£', 'œ', 'Œ', '¡', '¿', // 215-223
}

// Input-only ZSCII codes delivered by read_char.
const (
	zsciiCursorUp    = 129
	zsciiCursorDown  = 130
	zsciiCursorLeft  = 131
	zsciiCursorRight = 132
	zsciiF1          = 133
	zsciiKeypad0     = 145
)

// zsciiToRune maps an output ZSCII code to a rune, using the story's custom
// translation table when one is present. Unknown codes fail closed to the
// standard set: out-of-table codes render as nothing (rune 0).
func (c *textCodec) zsciiToRune(code uint16) rune {
	switch {
	case code == zsciiNull:
		return 0
	case code == zsciiNewline:
		return '\n'
	case code >= 32 && code <= 126:
		return rune(code)
	case code >= zsciiExtraBase && code <= zsciiExtraTop:
		if c.unicode != nil {
			i := int(code - zsciiExtraBase)
			if i < len(c.unicode) {
				return c.unicode[i]
			}
			return 0
		}
		i := int(code - zsciiExtraBase)
		if i < len(defaultUnicode) {
			return defaultUnicode[i]
		}
		return 0
	default:
		return 0
	}
}

// runeToZSCII maps an input rune to a ZSCII code, the inverse of
// zsciiToRune. Unmappable runes become '?', which is what a conforming
// interpreter feeds the game for characters outside the set.
func (c *textCodec) runeToZSCII(r rune) uint16 {
	switch {
	case r == '\n' || r == '\r':
		return zsciiNewline
	case r == 8 || r == 127:
		return zsciiDelete
	case r >= 32 && r <= 126:
		return uint16(r)
	}
	if c.unicode != nil {
		for i, u := range c.unicode {
			if u == r {
				return uint16(zsciiExtraBase + i)
			}
		}
		return '?'
	}
	for i, u := range defaultUnicode {
		if u == r {
			return uint16(zsciiExtraBase + i)
		}
	}
	return '?'
}
