package zm

// Header field offsets within the first 64 bytes of the story image.
const (
	hdrVersion         = 0x00
	hdrFlags1          = 0x01
	hdrRelease         = 0x02
	hdrHighBase        = 0x04
	hdrInitialPC       = 0x06 // packed main routine address in v6
	hdrDictionary      = 0x08
	hdrObjectTable     = 0x0A
	hdrGlobals         = 0x0C
	hdrStaticBase      = 0x0E
	hdrFlags2          = 0x10
	hdrSerial          = 0x12 // 6 bytes
	hdrAbbreviations   = 0x18
	hdrFileLength      = 0x1A // divided by the length multiplier
	hdrChecksum        = 0x1C
	hdrInterpNumber    = 0x1E
	hdrInterpVersion   = 0x1F
	hdrScreenHeight    = 0x20 // lines
	hdrScreenWidth     = 0x21 // characters
	hdrScreenWidthU    = 0x22 // units, v5+
	hdrScreenHeightU   = 0x24
	hdrFontWidth       = 0x26
	hdrFontHeight      = 0x27
	hdrRoutinesOffset  = 0x28 // divided by 8, v6-7
	hdrStringsOffset   = 0x2A // divided by 8, v6-7
	hdrTermCharsTable  = 0x2E
	hdrStandardRev     = 0x32
	hdrAlphabetTable   = 0x34 // v5+
	hdrExtensionTable  = 0x36 // v5+
	headerSize         = 64
	headerExtUnicodeIx = 3 // word index of the unicode table in the extension
)

// Flags1 capability bits (v1-3).
const (
	flags1StatusUnavailable = 1 << 4
	flags1ScreenSplit       = 1 << 5
	flags1VarPitchDefault   = 1 << 6
	flags1StatusTimeGame    = 1 << 1 // set by the game, read by show_status
)

// Flags1 capability bits (v4+).
const (
	flags1Colours    = 1 << 0
	flags1Pictures   = 1 << 1
	flags1Boldface   = 1 << 2
	flags1Italic     = 1 << 3
	flags1FixedPitch = 1 << 4
	flags1Sound      = 1 << 5
	flags1TimedInput = 1 << 7
)

// Flags2 bits. Bits 0 and 1 are under game control and survive restart.
const (
	flags2Transcript = 1 << 0
	flags2FixedPitch = 1 << 1
	flags2Pictures   = 1 << 3
	flags2Undo       = 1 << 4
	flags2Mouse      = 1 << 5
	flags2Colours    = 1 << 6
	flags2Sound      = 1 << 7
	flags2Menus      = 1 << 8
)

// ---------------------------------------------------------------------------
// VersionClass: the closed set of behaviour classes
// ---------------------------------------------------------------------------

// VersionClass partitions the eight story versions into the three classes
// the instruction set actually distinguishes. Opcode handlers that vary by
// version switch on this tag (or on the exact version where the standard
// splits finer, e.g. save/restore in v4).
type VersionClass int

const (
	// V1_3 covers versions 1-3: byte object ids, 32 attributes, 31
	// properties, 2x packed addresses, 6 Z-character dictionary words.
	V1_3 VersionClass = iota
	// V4 covers version 4: word object ids, 48 attributes, 63 properties,
	// save/restore store a result instead of branching.
	V4
	// V5_8 covers versions 5-8: extended opcodes, undo, custom alphabets
	// and unicode translation.
	V5_8
)

func (c VersionClass) String() string {
	switch c {
	case V1_3:
		return "v1-3"
	case V4:
		return "v4"
	default:
		return "v5-8"
	}
}

// ---------------------------------------------------------------------------
// Header: parsed fixed-layout record
// ---------------------------------------------------------------------------

// Header is the parsed first 64 bytes of a story image. It is read-only
// after load except for the interpreter-capability bytes, which are written
// back into the image by Capabilities.apply; callers should reread mutable
// fields (Flags1, Flags2) from Memory rather than from here.
type Header struct {
	Version       byte
	Class         VersionClass
	Release       uint16
	Serial        [6]byte
	HighBase      uint16
	InitialPC     uint16
	Dictionary    uint16
	ObjectTable   uint16
	Globals       uint16
	StaticBase    uint16
	Abbreviations uint16
	FileLength    uint32 // in bytes, after applying the length multiplier
	Checksum      uint16
	AlphabetTable uint16 // 0 = default alphabets
	UnicodeTable  uint16 // 0 = default translation
}

// lengthMultiplier returns the divisor stored in the file-length field:
// 2 for v1-3, 4 for v4-5, 8 for v6-8.
func lengthMultiplier(version byte) uint32 {
	switch {
	case version <= 3:
		return 2
	case version <= 5:
		return 4
	default:
		return 8
	}
}

func versionClass(version byte) VersionClass {
	switch {
	case version <= 3:
		return V1_3
	case version == 4:
		return V4
	default:
		return V5_8
	}
}

// parseHeader decodes the fixed 64-byte header. The buffer is the whole
// story image; callers have already checked it holds at least headerSize
// bytes.
func parseHeader(data []byte) (*Header, error) {
	version := data[hdrVersion]
	if version < 1 || version > 8 {
		return nil, loadErrf("unsupported story version %d", version)
	}

	h := &Header{
		Version:       version,
		Class:         versionClass(version),
		Release:       beWord(data, hdrRelease),
		HighBase:      beWord(data, hdrHighBase),
		InitialPC:     beWord(data, hdrInitialPC),
		Dictionary:    beWord(data, hdrDictionary),
		ObjectTable:   beWord(data, hdrObjectTable),
		Globals:       beWord(data, hdrGlobals),
		StaticBase:    beWord(data, hdrStaticBase),
		Abbreviations: beWord(data, hdrAbbreviations),
		FileLength:    uint32(beWord(data, hdrFileLength)) * lengthMultiplier(version),
		Checksum:      beWord(data, hdrChecksum),
	}
	copy(h.Serial[:], data[hdrSerial:hdrSerial+6])

	if version >= 5 {
		h.AlphabetTable = beWord(data, hdrAlphabetTable)
		ext := beWord(data, hdrExtensionTable)
		if ext != 0 {
			// Word 0 of the extension is its length in words.
			if int(ext)+2 <= len(data) {
				words := beWord(data, uint32(ext))
				if words >= headerExtUnicodeIx && int(ext)+2*headerExtUnicodeIx+2 <= len(data) {
					h.UnicodeTable = beWord(data, uint32(ext)+2*headerExtUnicodeIx)
				}
			}
		}
	}

	// Stories assembled before the length field was mandatory leave it
	// zero; fall back to the buffer length.
	if h.FileLength == 0 || h.FileLength > uint32(len(data)) {
		h.FileLength = uint32(len(data))
	}

	if uint32(h.StaticBase) > uint32(len(data)) {
		return nil, loadErrf("static memory base 0x%X beyond file end", h.StaticBase)
	}
	if h.StaticBase < headerSize {
		return nil, loadErrf("static memory base 0x%X inside the header", h.StaticBase)
	}

	return h, nil
}

// beWord reads a big-endian word straight out of a raw buffer. Used during
// header parsing, before a Memory exists to do checked reads.
func beWord(data []byte, addr uint32) uint16 {
	return uint16(data[addr])<<8 | uint16(data[addr+1])
}

// MaxObjects returns the largest legal object id for the class.
func (h *Header) MaxObjects() uint16 {
	if h.Class == V1_3 {
		return 255
	}
	return 65535
}

// MaxProperty returns the largest legal property number for the class.
func (h *Header) MaxProperty() uint16 {
	if h.Class == V1_3 {
		return 31
	}
	return 63
}

// AttributeCount returns the width of the attribute flag vector in bits.
func (h *Header) AttributeCount() uint16 {
	if h.Class == V1_3 {
		return 32
	}
	return 48
}
