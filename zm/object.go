package zm

// ---------------------------------------------------------------------------
// Object Store: the object tree and property tables
// ---------------------------------------------------------------------------

// Objects live as raw bytes inside the dynamic region; an object is only
// ever addressed by its 1-based id into the fixed table. v1-3 entries are
// 9 bytes (32 attribute bits, byte-sized parent/sibling/child); v4+ entries
// are 14 bytes (48 attribute bits, word-sized links). The table is preceded
// by the property defaults: one word per property number.

type objectTable struct {
	mem  *Memory
	hdr  *Header
	base uint32 // address of the property defaults table
}

func newObjectTable(mem *Memory, h *Header) *objectTable {
	return &objectTable{mem: mem, hdr: h, base: uint32(h.ObjectTable)}
}

// Layout parameters per version class.
func (t *objectTable) entrySize() uint32 {
	if t.hdr.Class == V1_3 {
		return 9
	}
	return 14
}

func (t *objectTable) attrBytes() uint32 {
	if t.hdr.Class == V1_3 {
		return 4
	}
	return 6
}

func (t *objectTable) defaultsCount() uint32 {
	return uint32(t.hdr.MaxProperty())
}

// entryAddr returns the address of an object's table slot.
func (t *objectTable) entryAddr(id uint16) (uint32, error) {
	if id == 0 || id > t.hdr.MaxObjects() {
		return 0, gameErrf("invalid object id %d", id)
	}
	return t.base + t.defaultsCount()*2 + uint32(id-1)*t.entrySize(), nil
}

// ---------------------------------------------------------------------------
// Tree links
// ---------------------------------------------------------------------------

// Link slot offsets within an entry, after the attribute bytes.
const (
	linkParent  = 0
	linkSibling = 1
	linkChild   = 2
)

func (t *objectTable) readLink(id uint16, slot uint32) (uint16, error) {
	addr, err := t.entryAddr(id)
	if err != nil {
		return 0, err
	}
	if t.hdr.Class == V1_3 {
		b, err := t.mem.ReadByte(addr + t.attrBytes() + slot)
		return uint16(b), err
	}
	return t.mem.ReadWord(addr + t.attrBytes() + slot*2)
}

func (t *objectTable) writeLink(id uint16, slot uint32, target uint16) error {
	addr, err := t.entryAddr(id)
	if err != nil {
		return err
	}
	if t.hdr.Class == V1_3 {
		return t.mem.WriteByte(addr+t.attrBytes()+slot, byte(target))
	}
	return t.mem.WriteWord(addr+t.attrBytes()+slot*2, target)
}

// Parent returns the parent object id, 0 for none. Object 0 is the absent
// object; asking for its links yields 0 rather than an error, since games
// routinely probe it.
func (t *objectTable) Parent(id uint16) (uint16, error) {
	if id == 0 {
		return 0, nil
	}
	return t.readLink(id, linkParent)
}

// Sibling returns the next object in the parent's child chain.
func (t *objectTable) Sibling(id uint16) (uint16, error) {
	if id == 0 {
		return 0, nil
	}
	return t.readLink(id, linkSibling)
}

// Child returns the object's first child.
func (t *objectTable) Child(id uint16) (uint16, error) {
	if id == 0 {
		return 0, nil
	}
	return t.readLink(id, linkChild)
}

func (t *objectTable) SetParent(id, parent uint16) error {
	return t.writeLink(id, linkParent, parent)
}

func (t *objectTable) SetSibling(id, sibling uint16) error {
	return t.writeLink(id, linkSibling, sibling)
}

func (t *objectTable) SetChild(id, child uint16) error {
	return t.writeLink(id, linkChild, child)
}

// RemoveFromTree detaches id from its parent's child chain, relinking the
// left sibling (or the parent's child pointer) around it. The object keeps
// its children.
func (t *objectTable) RemoveFromTree(id uint16) error {
	parent, err := t.Parent(id)
	if err != nil {
		return err
	}
	if parent == 0 {
		return nil
	}

	sibling, err := t.Sibling(id)
	if err != nil {
		return err
	}

	first, err := t.Child(parent)
	if err != nil {
		return err
	}
	if first == id {
		if err := t.SetChild(parent, sibling); err != nil {
			return err
		}
	} else {
		// Walk the chain to the object's left sibling.
		prev := first
		for {
			if prev == 0 {
				return gameErrf("object %d missing from parent %d's child chain", id, parent)
			}
			next, err := t.Sibling(prev)
			if err != nil {
				return err
			}
			if next == id {
				break
			}
			prev = next
		}
		if err := t.SetSibling(prev, sibling); err != nil {
			return err
		}
	}

	if err := t.SetSibling(id, 0); err != nil {
		return err
	}
	return t.SetParent(id, 0)
}

// InsertTo detaches id and re-inserts it as newParent's first child.
func (t *objectTable) InsertTo(id, newParent uint16) error {
	if err := t.RemoveFromTree(id); err != nil {
		return err
	}
	oldFirst, err := t.Child(newParent)
	if err != nil {
		return err
	}
	if err := t.SetSibling(id, oldFirst); err != nil {
		return err
	}
	if err := t.SetChild(newParent, id); err != nil {
		return err
	}
	return t.SetParent(id, newParent)
}

// ---------------------------------------------------------------------------
// Attribute flags
// ---------------------------------------------------------------------------

// attrLoc resolves an attribute bit to its byte address and mask. Bit
// numbering is big-endian within the vector: bit 0 is the most significant
// bit of the first byte.
func (t *objectTable) attrLoc(id, bit uint16) (uint32, byte, error) {
	if bit >= t.hdr.AttributeCount() {
		return 0, 0, gameErrf("attribute %d out of range for %s", bit, t.hdr.Class)
	}
	addr, err := t.entryAddr(id)
	if err != nil {
		return 0, 0, err
	}
	return addr + uint32(bit/8), byte(0x80 >> (bit % 8)), nil
}

func (t *objectTable) IsFlagBitSet(id, bit uint16) (bool, error) {
	addr, mask, err := t.attrLoc(id, bit)
	if err != nil {
		return false, err
	}
	b, err := t.mem.ReadByte(addr)
	return b&mask != 0, err
}

func (t *objectTable) SetFlagBit(id, bit uint16) error {
	addr, mask, err := t.attrLoc(id, bit)
	if err != nil {
		return err
	}
	b, err := t.mem.ReadByte(addr)
	if err != nil {
		return err
	}
	return t.mem.WriteByte(addr, b|mask)
}

func (t *objectTable) UnsetFlagBit(id, bit uint16) error {
	addr, mask, err := t.attrLoc(id, bit)
	if err != nil {
		return err
	}
	b, err := t.mem.ReadByte(addr)
	if err != nil {
		return err
	}
	return t.mem.WriteByte(addr, b&^mask)
}

// ---------------------------------------------------------------------------
// Property tables
// ---------------------------------------------------------------------------

// propTableAddr returns the address of the object's property table.
func (t *objectTable) propTableAddr(id uint16) (uint32, error) {
	addr, err := t.entryAddr(id)
	if err != nil {
		return 0, err
	}
	w, err := t.mem.ReadWord(addr + t.entrySize() - 2)
	return uint32(w), err
}

// firstPropAddr skips the short-name header: a length byte counting words,
// then that many words of encoded text.
func (t *objectTable) firstPropAddr(id uint16) (uint32, error) {
	table, err := t.propTableAddr(id)
	if err != nil {
		return 0, err
	}
	nameWords, err := t.mem.ReadByte(table)
	if err != nil {
		return 0, err
	}
	return table + 1 + uint32(nameWords)*2, nil
}

// ShortNameAddr returns the address of the object's encoded short name.
func (t *objectTable) ShortNameAddr(id uint16) (uint32, error) {
	table, err := t.propTableAddr(id)
	if err != nil {
		return 0, err
	}
	return table + 1, nil
}

// propInfo describes one entry found while scanning a property table.
type propInfo struct {
	num      uint16
	dataAddr uint32
	length   uint32
	sizeLen  uint32 // size field width: 1 or 2 bytes
}

// decodePropSize decodes the size byte(s) at addr. v1-3 packs length-1 in
// the top three bits and the number in the bottom five. v4+ uses the top
// bit to select a two-byte form whose second byte carries the length in its
// low six bits (0 meaning 64); the one-byte form encodes length 1 or 2 in
// bit 6.
func (t *objectTable) decodePropSize(addr uint32) (propInfo, error) {
	b, err := t.mem.ReadByte(addr)
	if err != nil {
		return propInfo{}, err
	}
	if b == 0 {
		return propInfo{}, nil // terminator
	}

	if t.hdr.Class == V1_3 {
		return propInfo{
			num:      uint16(b & 0x1F),
			dataAddr: addr + 1,
			length:   uint32(b>>5) + 1,
			sizeLen:  1,
		}, nil
	}

	if b&0x80 != 0 {
		b2, err := t.mem.ReadByte(addr + 1)
		if err != nil {
			return propInfo{}, err
		}
		length := uint32(b2 & 0x3F)
		if length == 0 {
			length = 64
		}
		return propInfo{
			num:      uint16(b & 0x3F),
			dataAddr: addr + 2,
			length:   length,
			sizeLen:  2,
		}, nil
	}

	length := uint32(1)
	if b&0x40 != 0 {
		length = 2
	}
	return propInfo{
		num:      uint16(b & 0x3F),
		dataAddr: addr + 1,
		length:   length,
		sizeLen:  1,
	}, nil
}

// findProp scans an object's property table for propNum. A zero-valued
// propInfo means the property is absent.
func (t *objectTable) findProp(id, propNum uint16) (propInfo, error) {
	addr, err := t.firstPropAddr(id)
	if err != nil {
		return propInfo{}, err
	}
	for {
		info, err := t.decodePropSize(addr)
		if err != nil || info.num == 0 {
			return propInfo{}, err
		}
		// Properties are stored in descending number order.
		if info.num == propNum {
			return info, nil
		}
		if info.num < propNum {
			return propInfo{}, nil
		}
		addr = info.dataAddr + info.length
	}
}

// GetPropertyAddress returns the address of the property's data, or 0 when
// the object does not define it.
func (t *objectTable) GetPropertyAddress(id, propNum uint16) (uint16, error) {
	info, err := t.findProp(id, propNum)
	if err != nil || info.num == 0 {
		return 0, err
	}
	return uint16(info.dataAddr), nil
}

// GetPropertyValue returns the 1- or 2-byte property value, falling back to
// the defaults table when the object does not define the property. Reading
// a longer property as a value is a game error.
func (t *objectTable) GetPropertyValue(id, propNum uint16) (uint16, error) {
	info, err := t.findProp(id, propNum)
	if err != nil {
		return 0, err
	}
	if info.num == 0 {
		return t.GetPropertyDefault(propNum)
	}
	switch info.length {
	case 1:
		b, err := t.mem.ReadByte(info.dataAddr)
		return uint16(b), err
	case 2:
		return t.mem.ReadWord(info.dataAddr)
	default:
		return 0, gameErrf("get_prop on %d-byte property %d of object %d", info.length, propNum, id)
	}
}

// SetPropertyValue writes a 1- or 2-byte property. The property must exist
// on the object; defaults are read-only.
func (t *objectTable) SetPropertyValue(id, propNum, value uint16) error {
	info, err := t.findProp(id, propNum)
	if err != nil {
		return err
	}
	if info.num == 0 {
		return gameErrf("put_prop on undefined property %d of object %d", propNum, id)
	}
	switch info.length {
	case 1:
		return t.mem.WriteByte(info.dataAddr, byte(value))
	case 2:
		return t.mem.WriteWord(info.dataAddr, value)
	default:
		return gameErrf("put_prop on %d-byte property %d of object %d", info.length, propNum, id)
	}
}

// GetNextProperty returns the number of the property following propNum in
// the object's table, the first property for propNum 0, and 0 at the end of
// the list.
func (t *objectTable) GetNextProperty(id, propNum uint16) (uint16, error) {
	var addr uint32
	if propNum == 0 {
		first, err := t.firstPropAddr(id)
		if err != nil {
			return 0, err
		}
		addr = first
	} else {
		info, err := t.findProp(id, propNum)
		if err != nil {
			return 0, err
		}
		if info.num == 0 {
			return 0, gameErrf("get_next_prop on undefined property %d of object %d", propNum, id)
		}
		addr = info.dataAddr + info.length
	}
	info, err := t.decodePropSize(addr)
	if err != nil {
		return 0, err
	}
	return info.num, nil
}

// PropertyLength decodes the data length of the property whose data starts
// at dataAddr, by reading the size byte immediately before it. A zero
// address yields 0, matching get_prop_len's documented edge case.
func (t *objectTable) PropertyLength(dataAddr uint16) (uint16, error) {
	if dataAddr == 0 {
		return 0, nil
	}
	b, err := t.mem.ReadByte(uint32(dataAddr) - 1)
	if err != nil {
		return 0, err
	}
	if t.hdr.Class == V1_3 {
		return uint16(b>>5) + 1, nil
	}
	if b&0x80 != 0 {
		// Second size byte: explicit length, 0 meaning 64.
		length := uint16(b & 0x3F)
		if length == 0 {
			length = 64
		}
		return length, nil
	}
	if b&0x40 != 0 {
		return 2, nil
	}
	return 1, nil
}

// PropertyNumber decodes the property number of the property whose data
// starts at dataAddr. In the v4+ two-byte form the byte before the data is
// the length byte (top bit set); the number lives one byte further back.
func (t *objectTable) PropertyNumber(dataAddr uint16) (uint16, error) {
	if dataAddr == 0 {
		return 0, nil
	}
	b, err := t.mem.ReadByte(uint32(dataAddr) - 1)
	if err != nil {
		return 0, err
	}
	if t.hdr.Class == V1_3 {
		return uint16(b & 0x1F), nil
	}
	if b&0x80 != 0 {
		first, err := t.mem.ReadByte(uint32(dataAddr) - 2)
		if err != nil {
			return 0, err
		}
		return uint16(first & 0x3F), nil
	}
	return uint16(b & 0x3F), nil
}

// GetPropertyDefault returns the defaults-table word for propNum. The bound
// is strict: max+1 is already invalid.
func (t *objectTable) GetPropertyDefault(propNum uint16) (uint16, error) {
	if propNum < 1 || propNum > t.hdr.MaxProperty() {
		return 0, gameErrf("property number %d out of range for %s", propNum, t.hdr.Class)
	}
	return t.mem.ReadWord(t.base + uint32(propNum-1)*2)
}
