package zm

// Save, restore, and the undo pair. On-disk saves go through the driver:
// the save opcode serializes the machine and suspends, the restore opcode
// suspends empty-handed and the driver answers with a save file. Undo
// snapshots never leave the machine; they live in a bounded in-memory ring.

// defaultUndoSlots bounds the undo ring when the capability declaration
// does not say otherwise.
const defaultUndoSlots = 8

// opSave serializes the current state and suspends until the driver
// reports whether it was persisted. The recorded PC addresses this
// instruction's branch or store byte, which is where both the save outcome
// and a later restore resume.
func (m *Machine) opSave() error {
	data, err := writeQuetzal(m, m.captureSnapshot())
	if err != nil {
		return err
	}
	m.pendingSave = data
	m.state = AwaitingSave
	return nil
}

// finishSave consumes the save opcode's branch or store byte with the
// driver's verdict: a branch in v1-3, a stored 0 or 1 in v4+.
func (m *Machine) finishSave(ok bool) error {
	if m.header.Class == V1_3 {
		return m.branch(ok)
	}
	if ok {
		return m.storeResult(1)
	}
	return m.storeResult(0)
}

// opRestore suspends until the driver supplies a save file.
func (m *Machine) opRestore() error {
	m.state = AwaitingRestore
	return nil
}

// finishRestore installs a save file. A rejected file leaves the running
// state intact and the restore opcode reporting failure, exactly as if the
// interpreter had refused it at the prompt. On success execution resumes
// at the original save's branch or store byte, which now reports the
// distinguishing outcome: branch taken in v1-3, a stored 2 in v4+.
func (m *Machine) finishRestore(data []byte) error {
	s, err := readQuetzal(m, data)
	if err != nil {
		if !isFatal(err) {
			if ferr := m.finishSave(false); ferr != nil {
				return ferr
			}
		}
		return err
	}

	// The two game-controlled Flags2 bits reflect the live session, not
	// the one that saved.
	flags2, err := m.mem.ReadWord(hdrFlags2)
	if err != nil {
		return err
	}
	keep := flags2 & (flags2Transcript | flags2FixedPitch)

	if err := m.applySnapshot(s); err != nil {
		if ferr := m.finishSave(false); ferr != nil {
			return ferr
		}
		return err
	}

	flags2, err = m.mem.ReadWord(hdrFlags2)
	if err != nil {
		return err
	}
	if err := m.mem.WriteWord(hdrFlags2, flags2&^(flags2Transcript|flags2FixedPitch)|keep); err != nil {
		return err
	}

	if m.header.Class == V1_3 {
		return m.branch(true)
	}
	return m.storeResult(2)
}

// opSaveUndo snapshots the machine into the undo ring and stores 1. The
// snapshot's PC sits at this instruction's store byte so that restore_undo
// resumes by storing 2 into the same variable.
func (m *Machine) opSaveUndo() error {
	rec, err := encodeUndo(m.captureSnapshot())
	if err != nil {
		return err
	}
	if len(m.undo) >= m.undoLimit {
		m.undo = m.undo[len(m.undo)-m.undoLimit+1:]
	}
	m.undo = append(m.undo, rec)
	return m.storeResult(1)
}

// opRestoreUndo pops the most recent undo snapshot. With nothing to
// restore it stores 0; otherwise the restored save_undo stores 2.
func (m *Machine) opRestoreUndo() error {
	if len(m.undo) == 0 {
		return m.storeResult(0)
	}
	rec := m.undo[len(m.undo)-1]
	m.undo = m.undo[:len(m.undo)-1]

	s, err := decodeUndo(rec)
	if err != nil {
		return err
	}
	if err := m.applySnapshot(s); err != nil {
		return err
	}
	return m.storeResult(2)
}
