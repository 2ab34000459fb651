package zm

import (
	"time"
)

// Arithmetic opcode handlers. All arithmetic is signed 16-bit with
// twos-complement wraparound; division truncates toward zero.

func (m *Machine) opDiv(ops []uint16) error {
	if ops[1] == 0 {
		return gameErrf("division by zero")
	}
	return m.storeResult(toUnsigned(toSigned(ops[0]) / toSigned(ops[1])))
}

func (m *Machine) opMod(ops []uint16) error {
	if ops[1] == 0 {
		return gameErrf("modulo by zero")
	}
	return m.storeResult(toUnsigned(toSigned(ops[0]) % toSigned(ops[1])))
}

// addToVariable adjusts a variable in place (variable 0 modifies the stack
// top) and returns the new value. Shared by inc, dec, inc_chk and dec_chk.
func (m *Machine) addToVariable(ref uint16, delta int16) (uint16, error) {
	if ref > 255 {
		return 0, gameErrf("indirect variable reference %d out of range", ref)
	}
	v, err := m.readVariableInPlace(byte(ref))
	if err != nil {
		return 0, err
	}
	v = toUnsigned(toSigned(v) + delta)
	return v, m.storeVariableInPlace(byte(ref), v)
}

func (m *Machine) opIncDec(ref uint16, delta int16) error {
	_, err := m.addToVariable(ref, delta)
	return err
}

func (m *Machine) opDecChk(ops []uint16) error {
	v, err := m.addToVariable(ops[0], -1)
	if err != nil {
		return err
	}
	return m.branch(toSigned(v) < toSigned(ops[1]))
}

func (m *Machine) opIncChk(ops []uint16) error {
	v, err := m.addToVariable(ops[0], 1)
	if err != nil {
		return err
	}
	return m.branch(toSigned(v) > toSigned(ops[1]))
}

// opLogShift shifts logically: positive counts left, negative right with
// zero fill.
func (m *Machine) opLogShift(ops []uint16) error {
	if err := need(ops, 2, "log_shift"); err != nil {
		return err
	}
	places := toSigned(ops[1])
	if places < -15 || places > 15 {
		return gameErrf("log_shift by %d places", places)
	}
	if places >= 0 {
		return m.storeResult(ops[0] << uint(places))
	}
	return m.storeResult(ops[0] >> uint(-places))
}

// opArtShift shifts arithmetically: right shifts keep the sign bit.
func (m *Machine) opArtShift(ops []uint16) error {
	if err := need(ops, 2, "art_shift"); err != nil {
		return err
	}
	places := toSigned(ops[1])
	if places < -15 || places > 15 {
		return gameErrf("art_shift by %d places", places)
	}
	if places >= 0 {
		return m.storeResult(toUnsigned(toSigned(ops[0]) << uint(places)))
	}
	return m.storeResult(toUnsigned(toSigned(ops[0]) >> uint(-places)))
}

// opRandom: a positive range stores a uniform value in 1..range; a negative
// value reseeds the generator with it; zero reseeds unpredictably.
func (m *Machine) opRandom(ops []uint16) error {
	if err := need(ops, 1, "random"); err != nil {
		return err
	}
	n := toSigned(ops[0])
	switch {
	case n > 0:
		return m.storeResult(uint16(m.rng.Int31n(int32(n))) + 1)
	case n < 0:
		m.SetRandomSeed(int64(-n))
		return m.storeResult(0)
	default:
		m.rng.Seed(time.Now().UnixNano())
		return m.storeResult(0)
	}
}
