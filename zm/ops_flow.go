package zm

// Control-flow opcode handlers: tests, calls, returns, catch/throw.

// opJE branches when the first operand equals any of the others.
func (m *Machine) opJE(ops []uint16) error {
	hit := false
	for _, v := range ops[1:] {
		if v == ops[0] {
			hit = true
			break
		}
	}
	return m.branch(hit)
}

// opCallStore covers every call form that stores a result: call/call_vs,
// call_vs2, call_2s, call_1s.
func (m *Machine) opCallStore(ops []uint16) error {
	if err := need(ops, 1, "call"); err != nil {
		return err
	}
	store, err := m.fetchByte()
	if err != nil {
		return err
	}
	return m.callRoutine(ops[0], ops[1:], int16(store))
}

// opCallDiscard covers the v5+ call forms that throw the result away:
// call_vn, call_vn2, call_2n, call_1n.
func (m *Machine) opCallDiscard(ops []uint16) error {
	if err := need(ops, 1, "call_n"); err != nil {
		return err
	}
	return m.callRoutine(ops[0], ops[1:], -1)
}

func (m *Machine) opRetPopped() error {
	v, err := m.popEval()
	if err != nil {
		return err
	}
	return m.returnValue(v)
}

// opCatch stores a token identifying the current frame for a later throw.
// The token is simply the frame depth.
func (m *Machine) opCatch() error {
	return m.storeResult(uint16(len(m.frames)))
}

// opThrow unwinds the call stack to the frame identified by a catch token
// and returns the given value from it.
func (m *Machine) opThrow(ops []uint16) error {
	value, token := ops[0], int(ops[1])
	if token < 2 || token > len(m.frames) {
		return gameErrf("throw to invalid frame token %d (depth %d)", token, len(m.frames))
	}
	m.frames = m.frames[:token]
	return m.returnValue(value)
}
