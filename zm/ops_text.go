package zm

import (
	"strconv"
)

// Text output opcode handlers.

// opPrintLiteral prints the Z-string embedded immediately after the opcode,
// advancing the PC past it. print_ret also prints a newline and returns
// true.
func (m *Machine) opPrintLiteral(ret bool) error {
	text, next, err := m.codec.Decode(m.pc)
	if err != nil {
		return err
	}
	m.pc = next
	m.print(text)
	if ret {
		m.print("\n")
		return m.returnValue(1)
	}
	return nil
}

// opPrintAddr prints the Z-string at a byte address (print_addr) or an
// unpacked string address (print_paddr; the caller unpacks).
func (m *Machine) opPrintAddr(addr uint32) error {
	text, _, err := m.codec.Decode(addr)
	if err != nil {
		return err
	}
	m.print(text)
	return nil
}

func (m *Machine) opPrintChar(ops []uint16) error {
	if err := need(ops, 1, "print_char"); err != nil {
		return err
	}
	m.printRune(m.codec.zsciiToRune(ops[0]))
	return nil
}

func (m *Machine) opPrintNum(ops []uint16) error {
	if err := need(ops, 1, "print_num"); err != nil {
		return err
	}
	m.print(strconv.Itoa(int(toSigned(ops[0]))))
	return nil
}

func (m *Machine) opPrintUnicode(ops []uint16) error {
	if err := need(ops, 1, "print_unicode"); err != nil {
		return err
	}
	m.printRune(rune(ops[0]))
	return nil
}

// opCheckUnicode reports what the interpreter can do with a code point:
// bit 0 = printable, bit 1 = receivable as input.
func (m *Machine) opCheckUnicode(ops []uint16) error {
	if err := need(ops, 1, "check_unicode"); err != nil {
		return err
	}
	return m.storeResult(3)
}

// opEncodeText encodes a word from a ZSCII buffer into dictionary form and
// writes it at the destination address.
func (m *Machine) opEncodeText(ops []uint16) error {
	if err := need(ops, 4, "encode_text"); err != nil {
		return err
	}
	zsciiText, length, from := uint32(ops[0]), uint32(ops[1]), uint32(ops[2])
	dest := uint32(ops[3])

	if err := m.mem.checkRange(zsciiText+from, length); err != nil {
		return err
	}
	raw := m.mem.bytes()
	word := string(raw[zsciiText+from : zsciiText+from+length])

	for i, b := range m.codec.Encode(word) {
		if err := m.mem.WriteByte(dest+uint32(i), b); err != nil {
			return err
		}
	}
	return nil
}

// opPrintTable prints a rectangle of ZSCII text: width x height characters
// with skip bytes between rows, each row on its own line of the current
// window.
func (m *Machine) opPrintTable(ops []uint16) error {
	if err := need(ops, 2, "print_table"); err != nil {
		return err
	}
	addr, width := uint32(ops[0]), uint32(ops[1])
	height := uint32(1)
	if len(ops) >= 3 {
		height = uint32(ops[2])
	}
	skip := uint32(0)
	if len(ops) >= 4 {
		skip = uint32(ops[3])
	}

	for row := uint32(0); row < height; row++ {
		if row > 0 {
			m.print("\n")
		}
		for col := uint32(0); col < width; col++ {
			b, err := m.mem.ReadByte(addr)
			if err != nil {
				return err
			}
			addr++
			m.printRune(m.codec.zsciiToRune(uint16(b)))
		}
		addr += skip
	}
	return nil
}
