package zm

import (
	"fmt"
)

// ---------------------------------------------------------------------------
// Instruction decode
// ---------------------------------------------------------------------------

// Operand type codes, as they appear in type bytes and the short form.
const (
	operandLarge    = 0
	operandSmall    = 1
	operandVariable = 2
	operandOmitted  = 3
)

func (m *Machine) fetchByte() (byte, error) {
	b, err := m.mem.ReadByte(m.pc)
	if err != nil {
		return 0, err
	}
	m.pc++
	return b, nil
}

func (m *Machine) fetchWord() (uint16, error) {
	w, err := m.mem.ReadWord(m.pc)
	if err != nil {
		return 0, err
	}
	m.pc += 2
	return w, nil
}

// fetchOperand resolves one operand: a large constant, a small constant, or
// a variable reference (which may pop the stack).
func (m *Machine) fetchOperand(opType byte) (uint16, error) {
	switch opType {
	case operandLarge:
		return m.fetchWord()
	case operandSmall:
		b, err := m.fetchByte()
		return uint16(b), err
	case operandVariable:
		v, err := m.fetchByte()
		if err != nil {
			return 0, err
		}
		return m.readVariable(v)
	default:
		return 0, gameErrf("operand fetch for omitted type")
	}
}

// fetchTyped reads typeBytes operand-type bytes (1 for variable form, 2 for
// call_vs2/call_vn2) and resolves the operands they describe. All type
// bytes precede all operands; the operand list ends at the first omitted
// code, but every type byte is consumed regardless.
func (m *Machine) fetchTyped(typeBytes int) ([]uint16, error) {
	types := make([]byte, 0, typeBytes*4)
	done := false
	for i := 0; i < typeBytes; i++ {
		tb, err := m.fetchByte()
		if err != nil {
			return nil, err
		}
		for shift := 6; shift >= 0; shift -= 2 {
			t := (tb >> shift) & 0x3
			if t == operandOmitted {
				done = true
			}
			if !done {
				types = append(types, t)
			}
		}
	}
	ops := make([]uint16, 0, len(types))
	for _, t := range types {
		v, err := m.fetchOperand(t)
		if err != nil {
			return nil, err
		}
		ops = append(ops, v)
	}
	return ops, nil
}

// storeResult reads the store-variable byte and writes the result.
func (m *Machine) storeResult(v uint16) error {
	target, err := m.fetchByte()
	if err != nil {
		return err
	}
	return m.storeVariable(target, v)
}

// branch reads the 1- or 2-byte branch specifier and acts on it. Bit 7 of
// the first byte selects branch-on-true; bit 6 selects the short unsigned
// form over the long 14-bit signed form. Offsets 0 and 1 return false/true
// from the current routine instead of jumping.
func (m *Machine) branch(cond bool) error {
	b1, err := m.fetchByte()
	if err != nil {
		return err
	}
	branchOnTrue := b1&0x80 != 0

	var offset int32
	if b1&0x40 != 0 {
		offset = int32(b1 & 0x3F)
	} else {
		b2, err := m.fetchByte()
		if err != nil {
			return err
		}
		raw := uint16(b1&0x3F)<<8 | uint16(b2)
		if raw&0x2000 != 0 {
			raw |= 0xC000 // sign-extend 14 bits
		}
		offset = int32(int16(raw))
	}

	if cond != branchOnTrue {
		return nil
	}
	switch offset {
	case 0:
		return m.returnValue(0)
	case 1:
		return m.returnValue(1)
	default:
		m.pc = uint32(int64(m.pc) + int64(offset) - 2)
		return m.mem.checkRange(m.pc, 1)
	}
}

// ---------------------------------------------------------------------------
// Execute: one instruction
// ---------------------------------------------------------------------------

// execute runs exactly one instruction. On return the PC sits at the next
// instruction boundary (or at a branch/store byte for a suspended
// save/restore, which is where the save format wants it).
func (m *Machine) execute() error {
	at := m.pc
	op, err := m.fetchByte()
	if err != nil {
		return err
	}
	m.traceOp(at, op)

	switch {
	case op == 0xBE && m.header.Version >= 5:
		return m.executeExtended()

	case op < 0x80:
		// Long form, always 2OP: bit 6/5 give the operand types
		// (small constant or variable).
		t1 := byte(operandSmall)
		if op&0x40 != 0 {
			t1 = operandVariable
		}
		t2 := byte(operandSmall)
		if op&0x20 != 0 {
			t2 = operandVariable
		}
		a, err := m.fetchOperand(t1)
		if err != nil {
			return err
		}
		b, err := m.fetchOperand(t2)
		if err != nil {
			return err
		}
		return m.dispatch2OP(op&0x1F, []uint16{a, b})

	case op < 0xB0:
		// Short form, 1OP: bits 4-5 give the operand type.
		v, err := m.fetchOperand((op >> 4) & 0x3)
		if err != nil {
			return err
		}
		return m.dispatch1OP(op&0x0F, v)

	case op < 0xC0:
		// Short form with omitted operand: 0OP.
		return m.dispatch0OP(op & 0x0F)

	case op < 0xE0:
		// Variable form encoding a 2OP; je may legally receive up to four
		// operands this way.
		ops, err := m.fetchTyped(1)
		if err != nil {
			return err
		}
		return m.dispatch2OP(op&0x1F, ops)

	default:
		// Variable form, VAR count. call_vs2 and call_vn2 carry two type
		// bytes for up to eight operands.
		typeBytes := 1
		if op == 0xEC || op == 0xFA {
			typeBytes = 2
		}
		ops, err := m.fetchTyped(typeBytes)
		if err != nil {
			return err
		}
		return m.dispatchVAR(op&0x1F, ops)
	}
}

func (m *Machine) executeExtended() error {
	op, err := m.fetchByte()
	if err != nil {
		return err
	}
	ops, err := m.fetchTyped(1)
	if err != nil {
		return err
	}
	return m.dispatchEXT(op, ops)
}

// need reports a malformed operand count as a game error. Stories produced
// by conforming compilers never trip this; hand-assembled ones can.
func need(ops []uint16, n int, name string) error {
	if len(ops) < n {
		return gameErrf("%s needs %d operands, got %d", name, n, len(ops))
	}
	return nil
}

func (m *Machine) unsupported(form string, op byte) error {
	return fmt.Errorf("%w: %s:0x%02X in version %d", ErrUnsupportedOpcode, form, op, m.header.Version)
}

// ---------------------------------------------------------------------------
// Dispatch tables
// ---------------------------------------------------------------------------

func (m *Machine) dispatch2OP(op byte, ops []uint16) error {
	// 2OP opcodes reached through the variable form may carry fewer or
	// more operands; je is the only one defined for more than two.
	if op != 0x01 {
		if err := need(ops, 2, name2OP(op)); err != nil {
			return err
		}
	} else if err := need(ops, 1, "je"); err != nil {
		return err
	}

	switch op {
	case 0x01:
		return m.opJE(ops)
	case 0x02:
		return m.branch(toSigned(ops[0]) < toSigned(ops[1]))
	case 0x03:
		return m.branch(toSigned(ops[0]) > toSigned(ops[1]))
	case 0x04:
		return m.opDecChk(ops)
	case 0x05:
		return m.opIncChk(ops)
	case 0x06:
		return m.opJin(ops)
	case 0x07:
		return m.branch(ops[0]&ops[1] == ops[1])
	case 0x08:
		return m.storeResult(ops[0] | ops[1])
	case 0x09:
		return m.storeResult(ops[0] & ops[1])
	case 0x0A:
		return m.opTestAttr(ops)
	case 0x0B:
		return m.opSetAttr(ops)
	case 0x0C:
		return m.opClearAttr(ops)
	case 0x0D:
		return m.opStore(ops)
	case 0x0E:
		return m.opInsertObj(ops)
	case 0x0F:
		return m.opLoadW(ops)
	case 0x10:
		return m.opLoadB(ops)
	case 0x11:
		return m.opGetProp(ops)
	case 0x12:
		return m.opGetPropAddr(ops)
	case 0x13:
		return m.opGetNextProp(ops)
	case 0x14:
		return m.storeResult(toUnsigned(toSigned(ops[0]) + toSigned(ops[1])))
	case 0x15:
		return m.storeResult(toUnsigned(toSigned(ops[0]) - toSigned(ops[1])))
	case 0x16:
		return m.storeResult(toUnsigned(toSigned(ops[0]) * toSigned(ops[1])))
	case 0x17:
		return m.opDiv(ops)
	case 0x18:
		return m.opMod(ops)
	case 0x19:
		if m.header.Version < 4 {
			return m.unsupported("2OP", op)
		}
		return m.opCallStore(ops) // call_2s
	case 0x1A:
		if m.header.Version < 5 {
			return m.unsupported("2OP", op)
		}
		return m.opCallDiscard(ops) // call_2n
	case 0x1B:
		if m.header.Version < 5 {
			return m.unsupported("2OP", op)
		}
		m.emit(SetColourCommand{Foreground: ops[0], Background: ops[1]})
		return nil
	case 0x1C:
		if m.header.Version < 5 {
			return m.unsupported("2OP", op)
		}
		return m.opThrow(ops)
	default:
		return m.unsupported("2OP", op)
	}
}

func (m *Machine) dispatch1OP(op byte, v uint16) error {
	switch op {
	case 0x00:
		return m.branch(v == 0)
	case 0x01:
		return m.opGetSibling(v)
	case 0x02:
		return m.opGetChild(v)
	case 0x03:
		return m.opGetParent(v)
	case 0x04:
		return m.opGetPropLen(v)
	case 0x05:
		return m.opIncDec(v, 1)
	case 0x06:
		return m.opIncDec(v, -1)
	case 0x07:
		return m.opPrintAddr(uint32(v))
	case 0x08:
		if m.header.Version < 4 {
			return m.unsupported("1OP", op)
		}
		return m.opCallStore([]uint16{v}) // call_1s
	case 0x09:
		return m.opRemoveObj(v)
	case 0x0A:
		return m.opPrintObj(v)
	case 0x0B:
		return m.returnValue(v)
	case 0x0C:
		// Unconditional jump with a signed word offset.
		m.pc = uint32(int64(m.pc) + int64(toSigned(v)) - 2)
		return m.mem.checkRange(m.pc, 1)
	case 0x0D:
		return m.opPrintAddr(m.mem.UnpackString(v))
	case 0x0E:
		return m.opLoad(v)
	case 0x0F:
		if m.header.Version >= 5 {
			return m.opCallDiscard([]uint16{v}) // call_1n
		}
		return m.storeResult(^v) // not
	default:
		return m.unsupported("1OP", op)
	}
}

func (m *Machine) dispatch0OP(op byte) error {
	switch op {
	case 0x00:
		return m.returnValue(1)
	case 0x01:
		return m.returnValue(0)
	case 0x02:
		return m.opPrintLiteral(false)
	case 0x03:
		return m.opPrintLiteral(true)
	case 0x04:
		return nil // nop
	case 0x05:
		if m.header.Version >= 5 {
			return m.unsupported("0OP", op)
		}
		return m.opSave()
	case 0x06:
		if m.header.Version >= 5 {
			return m.unsupported("0OP", op)
		}
		return m.opRestore()
	case 0x07:
		return m.restart()
	case 0x08:
		return m.opRetPopped()
	case 0x09:
		if m.header.Version >= 5 {
			return m.opCatch()
		}
		_, err := m.popEval() // pop
		return err
	case 0x0A:
		m.emit(QuitCommand{})
		m.halt(nil)
		return nil
	case 0x0B:
		m.print("\n")
		return nil
	case 0x0C:
		if m.header.Version != 3 {
			return m.unsupported("0OP", op)
		}
		return m.showStatus()
	case 0x0D:
		if m.header.Version < 3 {
			return m.unsupported("0OP", op)
		}
		return m.branch(m.checksum() == m.header.Checksum)
	case 0x0F:
		if m.header.Version < 5 {
			return m.unsupported("0OP", op)
		}
		// piracy: interpreters are asked to be gullible.
		return m.branch(true)
	default:
		return m.unsupported("0OP", op)
	}
}

func (m *Machine) dispatchVAR(op byte, ops []uint16) error {
	switch op {
	case 0x00:
		return m.opCallStore(ops) // call / call_vs
	case 0x01:
		return m.opStoreW(ops)
	case 0x02:
		return m.opStoreB(ops)
	case 0x03:
		return m.opPutProp(ops)
	case 0x04:
		return m.opRead(ops)
	case 0x05:
		return m.opPrintChar(ops)
	case 0x06:
		return m.opPrintNum(ops)
	case 0x07:
		return m.opRandom(ops)
	case 0x08:
		return m.opPush(ops)
	case 0x09:
		return m.opPull(ops)
	case 0x0A:
		if m.header.Version < 3 {
			return m.unsupported("VAR", op)
		}
		if err := need(ops, 1, "split_window"); err != nil {
			return err
		}
		m.emit(SplitWindowCommand{Lines: ops[0]})
		return nil
	case 0x0B:
		if m.header.Version < 3 {
			return m.unsupported("VAR", op)
		}
		if err := need(ops, 1, "set_window"); err != nil {
			return err
		}
		m.window = int(ops[0])
		m.emit(SetWindowCommand{Window: int(ops[0])})
		return nil
	case 0x0C:
		if m.header.Version < 4 {
			return m.unsupported("VAR", op)
		}
		return m.opCallStore(ops) // call_vs2
	case 0x0D:
		if m.header.Version < 4 {
			return m.unsupported("VAR", op)
		}
		if err := need(ops, 1, "erase_window"); err != nil {
			return err
		}
		m.emit(EraseWindowCommand{Window: int(toSigned(ops[0]))})
		return nil
	case 0x0E:
		if m.header.Version < 4 {
			return m.unsupported("VAR", op)
		}
		m.emit(EraseLineCommand{})
		return nil
	case 0x0F:
		if m.header.Version < 4 {
			return m.unsupported("VAR", op)
		}
		if err := need(ops, 2, "set_cursor"); err != nil {
			return err
		}
		m.emit(SetCursorCommand{Line: ops[0], Column: ops[1]})
		return nil
	case 0x10:
		if m.header.Version < 4 {
			return m.unsupported("VAR", op)
		}
		return m.opGetCursor(ops)
	case 0x11:
		if m.header.Version < 4 {
			return m.unsupported("VAR", op)
		}
		if err := need(ops, 1, "set_text_style"); err != nil {
			return err
		}
		m.emit(SetTextStyleCommand{Style: ops[0]})
		return nil
	case 0x12:
		if m.header.Version < 4 {
			return m.unsupported("VAR", op)
		}
		if err := need(ops, 1, "buffer_mode"); err != nil {
			return err
		}
		m.emit(BufferModeCommand{Buffered: ops[0] != 0})
		return nil
	case 0x13:
		if m.header.Version < 3 {
			return m.unsupported("VAR", op)
		}
		return m.opOutputStream(ops)
	case 0x14:
		if m.header.Version < 3 {
			return m.unsupported("VAR", op)
		}
		if err := need(ops, 1, "input_stream"); err != nil {
			return err
		}
		m.emit(InputStreamCommand{Stream: ops[0]})
		return nil
	case 0x15:
		return m.opSoundEffect(ops)
	case 0x16:
		if m.header.Version < 4 {
			return m.unsupported("VAR", op)
		}
		return m.opReadChar(ops)
	case 0x17:
		if m.header.Version < 4 {
			return m.unsupported("VAR", op)
		}
		return m.opScanTable(ops)
	case 0x18:
		if m.header.Version < 5 {
			return m.unsupported("VAR", op)
		}
		if err := need(ops, 1, "not"); err != nil {
			return err
		}
		return m.storeResult(^ops[0])
	case 0x19, 0x1A:
		if m.header.Version < 5 {
			return m.unsupported("VAR", op)
		}
		return m.opCallDiscard(ops) // call_vn / call_vn2
	case 0x1B:
		if m.header.Version < 5 {
			return m.unsupported("VAR", op)
		}
		return m.opTokenise(ops)
	case 0x1C:
		if m.header.Version < 5 {
			return m.unsupported("VAR", op)
		}
		return m.opEncodeText(ops)
	case 0x1D:
		if m.header.Version < 5 {
			return m.unsupported("VAR", op)
		}
		return m.opCopyTable(ops)
	case 0x1E:
		if m.header.Version < 5 {
			return m.unsupported("VAR", op)
		}
		return m.opPrintTable(ops)
	case 0x1F:
		if m.header.Version < 5 {
			return m.unsupported("VAR", op)
		}
		if err := need(ops, 1, "check_arg_count"); err != nil {
			return err
		}
		return m.branch(int(ops[0]) <= m.curFrame().argCount)
	default:
		return m.unsupported("VAR", op)
	}
}

func (m *Machine) dispatchEXT(op byte, ops []uint16) error {
	switch op {
	case 0x00:
		return m.opSave()
	case 0x01:
		return m.opRestore()
	case 0x02:
		return m.opLogShift(ops)
	case 0x03:
		return m.opArtShift(ops)
	case 0x04:
		return m.opSetFont(ops)
	case 0x09:
		return m.opSaveUndo()
	case 0x0A:
		return m.opRestoreUndo()
	case 0x0B:
		return m.opPrintUnicode(ops)
	case 0x0C:
		return m.opCheckUnicode(ops)
	default:
		return m.unsupported("EXT", op)
	}
}
