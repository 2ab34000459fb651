package zm

import (
	"bytes"
	"math/bits"
)

// ---------------------------------------------------------------------------
// SaveReader: Reads a Quetzal save file back into a snapshot
// ---------------------------------------------------------------------------

// saveReader walks the chunk sequence of one IFZS form.
type saveReader struct {
	data   []byte
	offset int
}

// readQuetzal parses a Quetzal save file and validates it against the
// loaded story. IFhd must come first and match the story's release, serial,
// and checksum. Dynamic memory arrives as either CMem or UMem; unknown
// chunks are skipped. All rejections wrap ErrSaveData, so a bad file fails
// the restore without halting the machine.
func readQuetzal(m *Machine, data []byte) (*snapshot, error) {
	if len(data) < 12 || !bytes.Equal(data[0:4], iffForm[:]) {
		return nil, saveErrf("not an IFF form")
	}
	formLen := int(readBE32(data[4:]))
	if formLen < len(iffIFZS) || 8+formLen > len(data) {
		return nil, saveErrf("form length %d exceeds file size %d", formLen, len(data))
	}
	if !bytes.Equal(data[8:12], iffIFZS[:]) {
		return nil, saveErrf("form type %q is not IFZS", data[8:12])
	}

	r := &saveReader{data: data[:8+formLen], offset: 12}
	s := &snapshot{}
	sawIFhd := false
	for !r.done() {
		id, payload, err := r.nextChunk()
		if err != nil {
			return nil, err
		}
		if !sawIFhd && id != chunkIFhd {
			return nil, saveErrf("chunk %q precedes IFhd", id[:])
		}
		switch id {
		case chunkIFhd:
			if sawIFhd {
				return nil, saveErrf("duplicate IFhd chunk")
			}
			sawIFhd = true
			pc, err := parseIFhd(m, payload)
			if err != nil {
				return nil, err
			}
			s.pc = pc
		case chunkCMem:
			if s.dynamic, err = expandDynamic(payload, m.pristine); err != nil {
				return nil, err
			}
		case chunkUMem:
			if len(payload) != len(m.pristine) {
				return nil, saveErrf("UMem size %d does not match dynamic size %d", len(payload), len(m.pristine))
			}
			s.dynamic = append([]byte(nil), payload...)
		case chunkStks:
			if s.frames, err = decodeStacks(payload); err != nil {
				return nil, err
			}
		default:
			// Unknown chunks (IntD, AUTH, ANNO, ...) are skipped.
		}
	}
	if !sawIFhd {
		return nil, saveErrf("missing IFhd chunk")
	}
	if s.dynamic == nil {
		return nil, saveErrf("missing CMem or UMem chunk")
	}
	if len(s.frames) == 0 {
		return nil, saveErrf("missing or empty Stks chunk")
	}
	return s, nil
}

func (r *saveReader) done() bool {
	return r.offset >= len(r.data)
}

func (r *saveReader) nextChunk() (id [4]byte, payload []byte, err error) {
	if len(r.data)-r.offset < 8 {
		return id, nil, saveErrf("truncated chunk header at offset %d", r.offset)
	}
	copy(id[:], r.data[r.offset:])
	size := int(readBE32(r.data[r.offset+4:]))
	r.offset += 8
	if size < 0 || len(r.data)-r.offset < size {
		return id, nil, saveErrf("chunk %q overruns file", id[:])
	}
	payload = r.data[r.offset : r.offset+size]
	r.offset += size
	if size%2 == 1 && r.offset < len(r.data) {
		r.offset++ // IFF pad byte
	}
	return id, payload, nil
}

// parseIFhd checks the story identity fields and returns the resume PC.
func parseIFhd(m *Machine, payload []byte) (uint32, error) {
	if len(payload) < ifhdSize {
		return 0, saveErrf("IFhd is %d bytes, want at least %d", len(payload), ifhdSize)
	}
	release := uint16(payload[0])<<8 | uint16(payload[1])
	if release != m.header.Release {
		return 0, saveErrf("release %d does not match story release %d", release, m.header.Release)
	}
	if !bytes.Equal(payload[2:8], m.header.Serial[:]) {
		return 0, saveErrf("serial %q does not match story serial %q", payload[2:8], m.header.Serial[:])
	}
	sum := uint16(payload[8])<<8 | uint16(payload[9])
	if sum != m.header.Checksum {
		return 0, saveErrf("checksum %04x does not match story checksum %04x", sum, m.header.Checksum)
	}
	pc := uint32(payload[10])<<16 | uint32(payload[11])<<8 | uint32(payload[12])
	return pc, nil
}

// expandDynamic reverses compressDynamic: run-length-expand the zeros, XOR
// against the pristine image, and treat everything past the encoded data as
// an implicit zero run.
func expandDynamic(payload, pristine []byte) ([]byte, error) {
	out := make([]byte, len(pristine))
	pos := 0
	for i := 0; i < len(payload); i++ {
		if pos >= len(out) {
			return nil, saveErrf("CMem data longer than dynamic memory")
		}
		b := payload[i]
		if b != 0 {
			out[pos] = b
			pos++
			continue
		}
		i++
		if i >= len(payload) {
			return nil, saveErrf("CMem zero run missing length byte")
		}
		run := int(payload[i]) + 1
		if pos+run > len(out) {
			return nil, saveErrf("CMem zero run overruns dynamic memory")
		}
		pos += run
	}
	for i := range out {
		out[i] ^= pristine[i]
	}
	return out, nil
}

// decodeStacks rebuilds the frame stack from a Stks chunk, oldest frame
// first.
func decodeStacks(payload []byte) ([]*callFrame, error) {
	var frames []*callFrame
	pos := 0
	for pos < len(payload) {
		if len(payload)-pos < 8 {
			return nil, saveErrf("truncated Stks frame at offset %d", pos)
		}
		f := &callFrame{
			returnPC: uint32(payload[pos])<<16 | uint32(payload[pos+1])<<8 | uint32(payload[pos+2]),
		}
		flags := payload[pos+3]
		nlocals := int(flags & 0x0F)
		if flags&stksFlagDiscard != 0 {
			f.storeVar = -1
		} else {
			f.storeVar = int16(payload[pos+4])
		}
		args := payload[pos+5]
		if args&(args+1) != 0 {
			return nil, saveErrf("Stks argument mask %02x is not contiguous", args)
		}
		f.argCount = bits.OnesCount8(args)
		evalDepth := int(payload[pos+6])<<8 | int(payload[pos+7])
		pos += 8

		need := (nlocals + evalDepth) * 2
		if len(payload)-pos < need {
			return nil, saveErrf("Stks frame words overrun chunk")
		}
		f.locals = make([]uint16, nlocals)
		for i := range f.locals {
			f.locals[i] = uint16(payload[pos])<<8 | uint16(payload[pos+1])
			pos += 2
		}
		f.stack = make([]uint16, evalDepth)
		for i := range f.stack {
			f.stack[i] = uint16(payload[pos])<<8 | uint16(payload[pos+1])
			pos += 2
		}
		frames = append(frames, f)
	}
	return frames, nil
}

func readBE32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
