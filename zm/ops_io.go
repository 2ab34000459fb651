package zm

import (
	"strings"
)

// Input opcode handlers and the read-resume path, plus the opcodes tied to
// the driver's screen.

// opRead (sread/aread) suspends for a line of input. In v1-3 the status
// line is redisplayed first. Timed input operands are accepted and left to
// the driver; the machine suspends the same way regardless.
func (m *Machine) opRead(ops []uint16) error {
	if err := need(ops, 1, "read"); err != nil {
		return err
	}
	if m.header.Version <= 3 {
		if err := m.showStatus(); err != nil {
			return err
		}
	}

	m.pending = pendingInput{textAddr: uint32(ops[0])}
	if len(ops) >= 2 {
		m.pending.parseAddr = uint32(ops[1])
	}
	if m.header.Version >= 5 {
		store, err := m.fetchByte()
		if err != nil {
			return err
		}
		m.pending.storeVar = store
		m.pending.hasStore = true
	}
	m.state = AwaitingLine
	return nil
}

// finishRead completes a suspended read: the line lands in the text buffer
// in the version's layout, is tokenized, and in v5+ the terminator is
// stored.
func (m *Machine) finishRead(text string) error {
	text = strings.ToLower(strings.TrimRight(text, "\r\n"))
	buf := m.pending.textAddr

	maxLen, err := m.mem.ReadByte(buf)
	if err != nil {
		return err
	}
	if int(maxLen) < len(text) {
		text = text[:maxLen]
	}

	if m.header.Version <= 4 {
		// Characters from byte 1, zero-terminated.
		for i := 0; i < len(text); i++ {
			if err := m.mem.WriteByte(buf+1+uint32(i), byte(m.codec.runeToZSCII(rune(text[i])))); err != nil {
				return err
			}
		}
		if err := m.mem.WriteByte(buf+1+uint32(len(text)), 0); err != nil {
			return err
		}
	} else {
		// Byte 1 counts the typed characters; text from byte 2.
		if err := m.mem.WriteByte(buf+1, byte(len(text))); err != nil {
			return err
		}
		for i := 0; i < len(text); i++ {
			if err := m.mem.WriteByte(buf+2+uint32(i), byte(m.codec.runeToZSCII(rune(text[i])))); err != nil {
				return err
			}
		}
	}

	if m.pending.parseAddr != 0 {
		if err := m.tokenizeInto(text, m.pending.parseAddr, m.dict, false); err != nil {
			return err
		}
	}

	if m.pending.hasStore {
		// The only terminator we deliver is newline.
		return m.storeVariable(m.pending.storeVar, zsciiNewline)
	}
	return nil
}

// opReadChar suspends for one keystroke.
func (m *Machine) opReadChar(ops []uint16) error {
	// Operand 1 must be 1 (keyboard); time and routine follow for timed
	// input, which is answered as ordinary input.
	if err := need(ops, 1, "read_char"); err != nil {
		return err
	}
	if ops[0] != 1 {
		return gameErrf("read_char from device %d", ops[0])
	}
	store, err := m.fetchByte()
	if err != nil {
		return err
	}
	m.pending = pendingInput{storeVar: store, hasStore: true}
	m.state = AwaitingChar
	return nil
}

// tokenizeInto runs lexical analysis over text and fills a parse buffer:
// a capacity byte, a count byte, then a four-byte record per word holding
// the dictionary address (0 for unknown), the letter count, and the
// position within the text buffer. With skipUnknown set, records for
// unknown words are left untouched (the tokenise opcode's flag).
func (m *Machine) tokenizeInto(text string, parseAddr uint32, dict *dictionary, skipUnknown bool) error {
	maxTokens, err := m.mem.ReadByte(parseAddr)
	if err != nil {
		return err
	}

	// Text positions are reported relative to the buffer start: input text
	// begins at byte 1 in v1-4 and byte 2 in v5+.
	posBase := 1
	if m.header.Version >= 5 {
		posBase = 2
	}

	tokens := dict.splitInput(text)
	if len(tokens) > int(maxTokens) {
		tokens = tokens[:maxTokens]
	}
	if err := m.mem.WriteByte(parseAddr+1, byte(len(tokens))); err != nil {
		return err
	}

	at := parseAddr + 2
	for _, tok := range tokens {
		addr := dict.LookupWord(tok.text)
		if addr != 0 || !skipUnknown {
			if err := m.mem.WriteWord(at, addr); err != nil {
				return err
			}
			if err := m.mem.WriteByte(at+2, byte(len(tok.text))); err != nil {
				return err
			}
			if err := m.mem.WriteByte(at+3, byte(tok.pos+posBase)); err != nil {
				return err
			}
		}
		at += 4
	}
	return nil
}

// readTextBuffer recovers the stored input line from a text buffer, used
// by the tokenise opcode.
func (m *Machine) readTextBuffer(addr uint32) (string, error) {
	var sb strings.Builder
	if m.header.Version <= 4 {
		for at := addr + 1; ; at++ {
			b, err := m.mem.ReadByte(at)
			if err != nil {
				return "", err
			}
			if b == 0 {
				break
			}
			sb.WriteRune(m.codec.zsciiToRune(uint16(b)))
		}
		return sb.String(), nil
	}
	n, err := m.mem.ReadByte(addr + 1)
	if err != nil {
		return "", err
	}
	for i := uint32(0); i < uint32(n); i++ {
		b, err := m.mem.ReadByte(addr + 2 + i)
		if err != nil {
			return "", err
		}
		sb.WriteRune(m.codec.zsciiToRune(uint16(b)))
	}
	return sb.String(), nil
}

// opTokenise re-runs lexical analysis on a stored line, optionally against
// a user dictionary (which may be unsorted).
func (m *Machine) opTokenise(ops []uint16) error {
	if err := need(ops, 2, "tokenise"); err != nil {
		return err
	}
	text, err := m.readTextBuffer(uint32(ops[0]))
	if err != nil {
		return err
	}

	dict := m.dict
	if len(ops) >= 3 && ops[2] != 0 {
		dict, err = newDictionary(m.mem, m.codec, uint32(ops[2]))
		if err != nil {
			return err
		}
	}
	skipUnknown := len(ops) >= 4 && ops[3] != 0
	return m.tokenizeInto(text, uint32(ops[1]), dict, skipUnknown)
}

// opOutputStream selects or deselects an output stream. Stream 3 redirects
// into a memory table and nests; streams 2 and 4 are surfaced to the
// driver; stream 1 is the screen.
func (m *Machine) opOutputStream(ops []uint16) error {
	if err := need(ops, 1, "output_stream"); err != nil {
		return err
	}
	switch n := toSigned(ops[0]); n {
	case 0:
		return nil
	case 1:
		m.screenOn = true
	case -1:
		m.screenOn = false
	case 2, -2:
		on := n > 0
		flags2, err := m.mem.ReadWord(hdrFlags2)
		if err != nil {
			return err
		}
		if on {
			flags2 |= flags2Transcript
		} else {
			flags2 &^= flags2Transcript
		}
		if err := m.mem.WriteWord(hdrFlags2, flags2); err != nil {
			return err
		}
		m.transcript = on
		m.emit(TranscriptCommand{Enabled: on})
	case 3:
		if err := need(ops, 2, "output_stream 3"); err != nil {
			return err
		}
		if len(m.stream3) >= maxStream3Depth {
			return gameErrf("output_stream 3 nested deeper than %d", maxStream3Depth)
		}
		m.stream3 = append(m.stream3, stream3Dest{table: uint32(ops[1])})
	case -3:
		if len(m.stream3) == 0 {
			return gameErrf("output_stream -3 with stream 3 not selected")
		}
		dest := m.stream3[len(m.stream3)-1]
		m.stream3 = m.stream3[:len(m.stream3)-1]
		if err := m.mem.WriteWord(dest.table, uint16(len(dest.data))); err != nil {
			return err
		}
		for i, b := range dest.data {
			if err := m.mem.WriteByte(dest.table+2+uint32(i), b); err != nil {
				return err
			}
		}
	case 4, -4:
		// Stream 4 records the player's input; capturing input is the
		// driver's job, so selecting it is a no-op here.
	default:
		return gameErrf("output_stream %d unknown", toSigned(ops[0]))
	}
	return nil
}

func (m *Machine) opSoundEffect(ops []uint16) error {
	cmd := SoundEffectCommand{Number: 1, Effect: 2, Volume: 8}
	if len(ops) >= 1 {
		cmd.Number = ops[0]
	}
	if len(ops) >= 2 {
		cmd.Effect = ops[1]
	}
	if len(ops) >= 3 {
		cmd.Volume = ops[2]
	}
	m.emit(cmd)
	return nil
}

// opGetCursor writes the cursor position into a word array. The machine
// does not model the screen, so it reports the home position; drivers that
// track the cursor can intercept SetCursorCommand instead.
func (m *Machine) opGetCursor(ops []uint16) error {
	if err := need(ops, 1, "get_cursor"); err != nil {
		return err
	}
	if err := m.mem.WriteWord(uint32(ops[0]), 1); err != nil {
		return err
	}
	return m.mem.WriteWord(uint32(ops[0])+2, 1)
}

// opSetFont stores the previous font and announces the new one. Font 1
// (normal) and 4 (fixed pitch) are always available; font 3, the character
// graphics set, depends on the driver's declared capabilities.
func (m *Machine) opSetFont(ops []uint16) error {
	if err := need(ops, 1, "set_font"); err != nil {
		return err
	}
	font := ops[0]
	if font == 0 {
		// Query only: report the previous font without changing it.
		return m.storeResult(uint16(m.font))
	}
	if font != 1 && font != 4 && !(font == 3 && m.caps.GraphicsFont) {
		return m.storeResult(0)
	}
	prev := m.font
	m.font = font
	m.emit(SetFontCommand{Font: font})
	return m.storeResult(uint16(prev))
}

// showStatus renders the v1-3 status line from the first three globals:
// the location object, then score/moves or hours/minutes depending on the
// Flags1 time-game bit.
func (m *Machine) showStatus() error {
	if m.header.Version > 3 {
		return nil
	}
	locObj, err := m.readVariable(16)
	if err != nil {
		return err
	}
	a, err := m.readVariable(17)
	if err != nil {
		return err
	}
	b, err := m.readVariable(18)
	if err != nil {
		return err
	}

	var location string
	if locObj != 0 {
		if location, err = m.objectName(locObj); err != nil {
			return err
		}
	}

	flags1, err := m.mem.ReadByte(hdrFlags1)
	if err != nil {
		return err
	}
	cmd := StatusLineCommand{Location: location}
	if m.header.Version == 3 && flags1&flags1StatusTimeGame != 0 {
		cmd.TimeGame = true
		cmd.Hours, cmd.Minutes = a, b
	} else {
		cmd.Score, cmd.Moves = toSigned(a), b
	}
	m.emit(cmd)
	return nil
}
