package zm

// Memory and variable transfer opcode handlers.

// opStore writes through an indirect variable reference; storing to
// variable 0 replaces the stack top.
func (m *Machine) opStore(ops []uint16) error {
	if ops[0] > 255 {
		return gameErrf("store to variable %d out of range", ops[0])
	}
	return m.storeVariableInPlace(byte(ops[0]), ops[1])
}

// opLoad reads through an indirect variable reference without popping.
func (m *Machine) opLoad(ref uint16) error {
	if ref > 255 {
		return gameErrf("load of variable %d out of range", ref)
	}
	v, err := m.readVariableInPlace(byte(ref))
	if err != nil {
		return err
	}
	return m.storeResult(v)
}

func (m *Machine) opLoadW(ops []uint16) error {
	addr := uint32(ops[0]) + 2*uint32(ops[1])
	v, err := m.mem.ReadWord(addr)
	if err != nil {
		return err
	}
	return m.storeResult(v)
}

func (m *Machine) opLoadB(ops []uint16) error {
	addr := uint32(ops[0]) + uint32(ops[1])
	b, err := m.mem.ReadByte(addr)
	if err != nil {
		return err
	}
	return m.storeResult(uint16(b))
}

func (m *Machine) opStoreW(ops []uint16) error {
	if err := need(ops, 3, "storew"); err != nil {
		return err
	}
	return m.mem.WriteWord(uint32(ops[0])+2*uint32(ops[1]), ops[2])
}

func (m *Machine) opStoreB(ops []uint16) error {
	if err := need(ops, 3, "storeb"); err != nil {
		return err
	}
	return m.mem.WriteByte(uint32(ops[0])+uint32(ops[1]), byte(ops[2]))
}

func (m *Machine) opPush(ops []uint16) error {
	if err := need(ops, 1, "push"); err != nil {
		return err
	}
	m.pushEval(ops[0])
	return nil
}

func (m *Machine) opPull(ops []uint16) error {
	if err := need(ops, 1, "pull"); err != nil {
		return err
	}
	if ops[0] > 255 {
		return gameErrf("pull to variable %d out of range", ops[0])
	}
	v, err := m.popEval()
	if err != nil {
		return err
	}
	return m.storeVariableInPlace(byte(ops[0]), v)
}

// opScanTable searches a table for a word (or byte, per the form operand)
// and branches on a hit, storing the match address or 0.
func (m *Machine) opScanTable(ops []uint16) error {
	if err := need(ops, 3, "scan_table"); err != nil {
		return err
	}
	target, table, length := ops[0], uint32(ops[1]), uint32(ops[2])
	form := byte(0x82) // default: words, entry size 2
	if len(ops) >= 4 {
		form = byte(ops[3])
	}
	entrySize := uint32(form & 0x7F)
	if entrySize == 0 {
		return gameErrf("scan_table with zero entry size")
	}
	words := form&0x80 != 0

	found := uint16(0)
	for i := uint32(0); i < length; i++ {
		at := table + i*entrySize
		if words {
			w, err := m.mem.ReadWord(at)
			if err != nil {
				return err
			}
			if w == target {
				found = uint16(at)
				break
			}
		} else {
			b, err := m.mem.ReadByte(at)
			if err != nil {
				return err
			}
			if uint16(b) == target {
				found = uint16(at)
				break
			}
		}
	}
	if err := m.storeResult(found); err != nil {
		return err
	}
	return m.branch(found != 0)
}

// opCopyTable copies size bytes from first to second, copying backwards
// when the ranges overlap unless a negative size forces a forward copy.
// A zero second operand zeroes the source instead.
func (m *Machine) opCopyTable(ops []uint16) error {
	if err := need(ops, 3, "copy_table"); err != nil {
		return err
	}
	first, second := uint32(ops[0]), uint32(ops[1])
	size := toSigned(ops[2])

	if second == 0 {
		for i := int16(0); i < size; i++ {
			if err := m.mem.WriteByte(first+uint32(i), 0); err != nil {
				return err
			}
		}
		return nil
	}

	n := size
	forced := false
	if n < 0 {
		n = -n
		forced = true
	}

	if !forced && second > first && second < first+uint32(n) {
		// Overlapping ranges: copy high-to-low so the source survives.
		for i := int32(n) - 1; i >= 0; i-- {
			b, err := m.mem.ReadByte(first + uint32(i))
			if err != nil {
				return err
			}
			if err := m.mem.WriteByte(second+uint32(i), b); err != nil {
				return err
			}
		}
		return nil
	}
	for i := int32(0); i < int32(n); i++ {
		b, err := m.mem.ReadByte(first + uint32(i))
		if err != nil {
			return err
		}
		if err := m.mem.WriteByte(second+uint32(i), b); err != nil {
			return err
		}
	}
	return nil
}
