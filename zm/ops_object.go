package zm

// Object and property opcode handlers. These all delegate to the object
// store; the handlers only add store/branch plumbing.

func (m *Machine) opJin(ops []uint16) error {
	parent, err := m.objects.Parent(ops[0])
	if err != nil {
		return err
	}
	return m.branch(parent == ops[1])
}

func (m *Machine) opTestAttr(ops []uint16) error {
	set, err := m.objects.IsFlagBitSet(ops[0], ops[1])
	if err != nil {
		return err
	}
	return m.branch(set)
}

func (m *Machine) opSetAttr(ops []uint16) error {
	return m.objects.SetFlagBit(ops[0], ops[1])
}

func (m *Machine) opClearAttr(ops []uint16) error {
	return m.objects.UnsetFlagBit(ops[0], ops[1])
}

func (m *Machine) opInsertObj(ops []uint16) error {
	if ops[0] == 0 || ops[1] == 0 {
		return gameErrf("insert_obj with object 0")
	}
	return m.objects.InsertTo(ops[0], ops[1])
}

func (m *Machine) opRemoveObj(obj uint16) error {
	if obj == 0 {
		return gameErrf("remove_obj with object 0")
	}
	return m.objects.RemoveFromTree(obj)
}

func (m *Machine) opGetProp(ops []uint16) error {
	v, err := m.objects.GetPropertyValue(ops[0], ops[1])
	if err != nil {
		return err
	}
	return m.storeResult(v)
}

func (m *Machine) opGetPropAddr(ops []uint16) error {
	addr, err := m.objects.GetPropertyAddress(ops[0], ops[1])
	if err != nil {
		return err
	}
	return m.storeResult(addr)
}

func (m *Machine) opGetNextProp(ops []uint16) error {
	n, err := m.objects.GetNextProperty(ops[0], ops[1])
	if err != nil {
		return err
	}
	return m.storeResult(n)
}

func (m *Machine) opPutProp(ops []uint16) error {
	if err := need(ops, 3, "put_prop"); err != nil {
		return err
	}
	return m.objects.SetPropertyValue(ops[0], ops[1], ops[2])
}

func (m *Machine) opGetPropLen(dataAddr uint16) error {
	n, err := m.objects.PropertyLength(dataAddr)
	if err != nil {
		return err
	}
	return m.storeResult(n)
}

// get_sibling and get_child both store and branch on existence.
func (m *Machine) opGetSibling(obj uint16) error {
	sib, err := m.objects.Sibling(obj)
	if err != nil {
		return err
	}
	if err := m.storeResult(sib); err != nil {
		return err
	}
	return m.branch(sib != 0)
}

func (m *Machine) opGetChild(obj uint16) error {
	child, err := m.objects.Child(obj)
	if err != nil {
		return err
	}
	if err := m.storeResult(child); err != nil {
		return err
	}
	return m.branch(child != 0)
}

func (m *Machine) opGetParent(obj uint16) error {
	parent, err := m.objects.Parent(obj)
	if err != nil {
		return err
	}
	return m.storeResult(parent)
}

// objectName decodes an object's short name.
func (m *Machine) objectName(obj uint16) (string, error) {
	addr, err := m.objects.ShortNameAddr(obj)
	if err != nil {
		return "", err
	}
	name, _, err := m.codec.Decode(addr)
	return name, err
}

func (m *Machine) opPrintObj(obj uint16) error {
	if obj == 0 {
		return gameErrf("print_obj with object 0")
	}
	name, err := m.objectName(obj)
	if err != nil {
		return err
	}
	m.print(name)
	return nil
}
