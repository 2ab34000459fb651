package zm

import (
	"testing"
)

// storyBuilder assembles a synthetic story image for tests. The layout is
// fixed: globals at 0x0040, abbreviation table at 0x0220, object table at
// 0x0300, dictionary at 0x0500, scratch buffers at 0x0600, static memory
// (and code) from 0x0700, routines from 0x0800.
const (
	tbGlobals = 0x0040
	tbAbbrev  = 0x0220
	tbAbbrevX = 0x02E0 // abbreviation string area
	tbObjects = 0x0300
	tbProps   = 0x0400 // property table area
	tbDict    = 0x0500
	tbText    = 0x0600 // text buffer scratch
	tbParse   = 0x0640 // parse buffer scratch
	tbStatic  = 0x0700
	tbCode    = 0x0701
	tbRoutine = 0x0800
	tbSize    = 0x1000
)

type storyBuilder struct {
	version   byte
	mem       []byte
	codeAt    uint32
	routineAt uint32
	propAt    uint32
	objCount  uint16
	abbrevAt  uint32
}

func newStory(version byte) *storyBuilder {
	b := &storyBuilder{
		version:   version,
		mem:       make([]byte, tbSize),
		codeAt:    tbCode,
		routineAt: tbRoutine,
		propAt:    tbProps,
		abbrevAt:  tbAbbrevX,
	}
	b.mem[hdrVersion] = version
	b.setWord(hdrRelease, 1)
	copy(b.mem[hdrSerial:], "260829")
	b.setWord(hdrHighBase, tbStatic)
	b.setWord(hdrInitialPC, tbCode)
	b.setWord(hdrDictionary, tbDict)
	b.setWord(hdrObjectTable, tbObjects)
	b.setWord(hdrGlobals, tbGlobals)
	b.setWord(hdrStaticBase, tbStatic)
	b.setWord(hdrAbbreviations, tbAbbrev)
	// Empty dictionary: no separators, entry length, zero entries.
	wordLen := uint32(4)
	if version >= 4 {
		wordLen = 6
	}
	b.mem[tbDict] = 0
	b.mem[tbDict+1] = byte(wordLen + 3)
	return b
}

func (b *storyBuilder) setByte(addr uint32, v byte) {
	b.mem[addr] = v
}

func (b *storyBuilder) setWord(addr uint32, v uint16) {
	b.mem[addr] = byte(v >> 8)
	b.mem[addr+1] = byte(v)
}

// code appends instruction bytes at the entry point.
func (b *storyBuilder) code(bs ...byte) *storyBuilder {
	copy(b.mem[b.codeAt:], bs)
	b.codeAt += uint32(len(bs))
	return b
}

func (b *storyBuilder) global(n int, v uint16) *storyBuilder {
	b.setWord(tbGlobals+uint32(n)*2, v)
	return b
}

// abbrev installs an abbreviation string (already Z-encoded) and points
// table entry n at it.
func (b *storyBuilder) abbrev(n int, words ...uint16) *storyBuilder {
	b.setWord(tbAbbrev+uint32(n)*2, uint16(b.abbrevAt/2))
	for _, w := range words {
		b.setWord(b.abbrevAt, w)
		b.abbrevAt += 2
	}
	return b
}

// routine lays down a routine header plus body in the routine area and
// returns its packed address. Local defaults are written for v1-4 only.
func (b *storyBuilder) routine(defaults []uint16, body ...byte) uint16 {
	mult := uint32(2)
	if b.version >= 4 {
		mult = 4
	}
	if b.version == 8 {
		mult = 8
	}
	for b.routineAt%mult != 0 {
		b.routineAt++
	}
	packed := uint16(b.routineAt / mult)
	b.mem[b.routineAt] = byte(len(defaults))
	b.routineAt++
	if b.version <= 4 {
		for _, d := range defaults {
			b.setWord(b.routineAt, d)
			b.routineAt += 2
		}
	}
	copy(b.mem[b.routineAt:], body)
	b.routineAt += uint32(len(body))
	return packed
}

// dictionary installs entries (each a Z-encoded word as bytes) in the
// given order, which must be sorted for the default lookup path.
func (b *storyBuilder) dictionary(separators string, entries ...[]byte) *storyBuilder {
	wordLen := uint32(4)
	if b.version >= 4 {
		wordLen = 6
	}
	at := uint32(tbDict)
	b.mem[at] = byte(len(separators))
	at++
	for i := 0; i < len(separators); i++ {
		b.mem[at] = separators[i]
		at++
	}
	entryLen := wordLen + 1
	b.mem[at] = byte(entryLen)
	at++
	b.setWord(at, uint16(len(entries)))
	at += 2
	for _, e := range entries {
		copy(b.mem[at:], e)
		at += entryLen
	}
	return b
}

// testObject describes one object for the builder.
type testObject struct {
	attrs   []uint16
	parent  uint16
	sibling uint16
	child   uint16
	name    []uint16        // encoded short name words
	props   map[byte][]byte // property number -> data
}

// objects lays out the defaults table and the object entries. Object ids
// are assigned in order starting at 1.
func (b *storyBuilder) objects(objs ...testObject) *storyBuilder {
	defaults := uint32(31)
	entrySize := uint32(9)
	attrBytes := uint32(4)
	if b.version >= 4 {
		defaults = 63
		entrySize = 14
		attrBytes = 6
	}
	base := uint32(tbObjects) + defaults*2
	for i, o := range objs {
		at := base + uint32(i)*entrySize
		for _, bit := range o.attrs {
			b.mem[at+uint32(bit)/8] |= 0x80 >> (bit % 8)
		}
		if b.version <= 3 {
			b.mem[at+attrBytes] = byte(o.parent)
			b.mem[at+attrBytes+1] = byte(o.sibling)
			b.mem[at+attrBytes+2] = byte(o.child)
			b.setWord(at+attrBytes+3, uint16(b.propAt))
		} else {
			b.setWord(at+attrBytes, o.parent)
			b.setWord(at+attrBytes+2, o.sibling)
			b.setWord(at+attrBytes+4, o.child)
			b.setWord(at+attrBytes+6, uint16(b.propAt))
		}
		b.writePropTable(o)
	}
	b.objCount = uint16(len(objs))
	return b
}

func (b *storyBuilder) setDefaultProp(n uint16, v uint16) *storyBuilder {
	b.setWord(tbObjects+uint32(n-1)*2, v)
	return b
}

func (b *storyBuilder) writePropTable(o testObject) {
	at := b.propAt
	b.mem[at] = byte(len(o.name))
	at++
	for _, w := range o.name {
		b.setWord(at, w)
		at += 2
	}
	// Properties in descending number order.
	for n := byte(63); n >= 1; n-- {
		data, ok := o.props[n]
		if !ok {
			continue
		}
		if b.version <= 3 {
			b.mem[at] = (byte(len(data))-1)<<5 | n
			at++
		} else if len(data) <= 2 {
			sz := byte(0)
			if len(data) == 2 {
				sz = 0x40
			}
			b.mem[at] = sz | n
			at++
		} else {
			b.mem[at] = 0x80 | n
			b.mem[at+1] = 0x80 | byte(len(data))
			at += 2
		}
		copy(b.mem[at:], data)
		at += uint32(len(data))
	}
	b.mem[at] = 0
	at++
	b.propAt = at
}

// build finalizes length and checksum and loads the machine.
func (b *storyBuilder) build(t *testing.T) *Machine {
	t.Helper()
	mult := lengthMultiplier(b.version)
	b.setWord(hdrFileLength, uint16(uint32(len(b.mem))/mult))

	var sum uint16
	for _, v := range b.mem[0x40:] {
		sum += uint16(v)
	}
	b.setWord(hdrChecksum, sum)

	m, err := Load(b.mem, DefaultCapabilities())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return m
}

// bytes finalizes without loading, for Load failure tests.
func (b *storyBuilder) bytes() []byte {
	mult := lengthMultiplier(b.version)
	b.setWord(hdrFileLength, uint16(uint32(len(b.mem))/mult))
	var sum uint16
	for _, v := range b.mem[0x40:] {
		sum += uint16(v)
	}
	b.setWord(hdrChecksum, sum)
	return b.mem
}

// Hand-encoded dictionary words (v3: four bytes, two words).
var (
	encLook = []byte{0x46, 0x94, 0xC0, 0xA5} // "look"
	encTake = []byte{0x64, 0xD0, 0xAA, 0xA5} // "take"
)

// runToState drives the machine and fails the test unless it lands in the
// wanted state.
func runToState(t *testing.T, m *Machine, want State) {
	t.Helper()
	st, err := m.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if st != want {
		t.Fatalf("Run ended in %s, want %s", st, want)
	}
}
