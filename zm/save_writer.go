package zm

import (
	"bytes"
)

// ---------------------------------------------------------------------------
// Quetzal Save Format Constants
// ---------------------------------------------------------------------------

// Quetzal chunk and container identifiers. The save file is an IFF FORM of
// type IFZS.
var (
	iffForm   = [4]byte{'F', 'O', 'R', 'M'}
	iffIFZS   = [4]byte{'I', 'F', 'Z', 'S'}
	chunkIFhd = [4]byte{'I', 'F', 'h', 'd'}
	chunkCMem = [4]byte{'C', 'M', 'e', 'm'}
	chunkUMem = [4]byte{'U', 'M', 'e', 'm'}
	chunkStks = [4]byte{'S', 't', 'k', 's'}
)

// IFhd payload: release word, serial (6 bytes), checksum word, PC (3 bytes).
const ifhdSize = 13

// Stks frame flag: bit 4 set means the call discards its result.
const stksFlagDiscard = 0x10

// ---------------------------------------------------------------------------
// SaveWriter: Serializes a snapshot to a Quetzal save file
// ---------------------------------------------------------------------------

// saveWriter accumulates IFF chunks for one save file.
type saveWriter struct {
	buf *bytes.Buffer
}

// writeQuetzal serializes a snapshot as a Quetzal save file: an IFhd
// identifying the story, a CMem chunk holding dynamic memory XOR-compressed
// against the pristine load image, and a Stks chunk holding the call stack.
func writeQuetzal(m *Machine, s *snapshot) ([]byte, error) {
	w := &saveWriter{buf: bytes.NewBuffer(nil)}

	w.writeChunk(chunkIFhd, w.encodeIFhd(m, s.pc))
	w.writeChunk(chunkCMem, compressDynamic(s.dynamic, m.pristine))
	w.writeChunk(chunkStks, encodeStacks(s.frames))

	body := w.buf.Bytes()
	out := bytes.NewBuffer(nil)
	out.Write(iffForm[:])
	writeBE32(out, uint32(len(body)+len(iffIFZS)))
	out.Write(iffIFZS[:])
	out.Write(body)
	return out.Bytes(), nil
}

func (w *saveWriter) writeChunk(id [4]byte, data []byte) {
	w.buf.Write(id[:])
	writeBE32(w.buf, uint32(len(data)))
	w.buf.Write(data)
	if len(data)%2 == 1 {
		w.buf.WriteByte(0) // IFF pad byte
	}
}

func (w *saveWriter) encodeIFhd(m *Machine, pc uint32) []byte {
	out := make([]byte, 0, ifhdSize)
	out = append(out, byte(m.header.Release>>8), byte(m.header.Release))
	out = append(out, m.header.Serial[:]...)
	sum := m.header.Checksum
	out = append(out, byte(sum>>8), byte(sum))
	out = append(out, byte(pc>>16), byte(pc>>8), byte(pc))
	return out
}

// compressDynamic XORs the live dynamic region against the pristine image
// and run-length encodes the zeros: a zero byte is followed by the run
// length minus one, and a trailing zero run is dropped entirely.
func compressDynamic(dynamic, pristine []byte) []byte {
	out := bytes.NewBuffer(nil)
	zeros := 0
	flush := func() {
		for zeros > 0 {
			run := zeros
			if run > 256 {
				run = 256
			}
			out.WriteByte(0)
			out.WriteByte(byte(run - 1))
			zeros -= run
		}
	}
	for i := range dynamic {
		b := dynamic[i] ^ pristine[i]
		if b == 0 {
			zeros++
			continue
		}
		flush()
		out.WriteByte(b)
	}
	return out.Bytes()
}

// encodeStacks lays out the frame records, oldest first. Each record holds
// the return PC (3 bytes), a flags byte carrying the local count and the
// discard bit, the result variable, a bitmask of supplied arguments, the
// eval stack depth, then the locals and eval words.
func encodeStacks(frames []*callFrame) []byte {
	out := bytes.NewBuffer(nil)
	for _, f := range frames {
		out.WriteByte(byte(f.returnPC >> 16))
		out.WriteByte(byte(f.returnPC >> 8))
		out.WriteByte(byte(f.returnPC))

		flags := byte(len(f.locals))
		resultVar := byte(0)
		if f.storeVar < 0 {
			flags |= stksFlagDiscard
		} else {
			resultVar = byte(f.storeVar)
		}
		out.WriteByte(flags)
		out.WriteByte(resultVar)
		out.WriteByte(byte((1 << f.argCount) - 1))
		writeBE16(out, uint16(len(f.stack)))

		for _, v := range f.locals {
			writeBE16(out, v)
		}
		for _, v := range f.stack {
			writeBE16(out, v)
		}
	}
	return out.Bytes()
}

func writeBE16(buf *bytes.Buffer, v uint16) {
	buf.WriteByte(byte(v >> 8))
	buf.WriteByte(byte(v))
}

func writeBE32(buf *bytes.Buffer, v uint32) {
	buf.WriteByte(byte(v >> 24))
	buf.WriteByte(byte(v >> 16))
	buf.WriteByte(byte(v >> 8))
	buf.WriteByte(byte(v))
}
