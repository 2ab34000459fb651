package zm

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Undo snapshots are encoded rather than held as live structures so the
// ring's cost is a flat byte slice per slot and a restored snapshot can
// never alias machine state. Canonical mode keeps the encoding
// deterministic, which the tests rely on.

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("zm: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

type undoFrame struct {
	ReturnPC uint32   `cbor:"1,keyasint"`
	Locals   []uint16 `cbor:"2,keyasint"`
	Stack    []uint16 `cbor:"3,keyasint"`
	StoreVar int16    `cbor:"4,keyasint"`
	ArgCount int      `cbor:"5,keyasint"`
}

type undoRecord struct {
	PC      uint32      `cbor:"1,keyasint"`
	Dynamic []byte      `cbor:"2,keyasint"`
	Frames  []undoFrame `cbor:"3,keyasint"`
}

// encodeUndo serializes a snapshot to CBOR bytes.
func encodeUndo(s *snapshot) ([]byte, error) {
	rec := undoRecord{
		PC:      s.pc,
		Dynamic: s.dynamic,
		Frames:  make([]undoFrame, len(s.frames)),
	}
	for i, f := range s.frames {
		rec.Frames[i] = undoFrame{
			ReturnPC: f.returnPC,
			Locals:   f.locals,
			Stack:    f.stack,
			StoreVar: f.storeVar,
			ArgCount: f.argCount,
		}
	}
	return cborEncMode.Marshal(&rec)
}

// decodeUndo deserializes a snapshot from CBOR bytes.
func decodeUndo(data []byte) (*snapshot, error) {
	var rec undoRecord
	if err := cbor.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("zm: unmarshal undo record: %w", err)
	}
	s := &snapshot{
		pc:      rec.PC,
		dynamic: rec.Dynamic,
		frames:  make([]*callFrame, len(rec.Frames)),
	}
	for i, f := range rec.Frames {
		s.frames[i] = &callFrame{
			returnPC: f.ReturnPC,
			locals:   f.Locals,
			stack:    f.Stack,
			storeVar: f.StoreVar,
			argCount: f.ArgCount,
		}
	}
	return s, nil
}
