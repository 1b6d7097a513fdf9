package classfile

// RawAttribute is a generically decoded (name, bytes) attribute, before any
// attempt to interpret it. Class/field/method attribute sections are all
// decoded this way first; callers then recognise specific names (Code,
// ConstantValue, Deprecated, Exceptions, LineNumberTable, SourceFile) per
// spec.md §4.1 and ignore the rest.
type RawAttribute struct {
	Name string
	Data []byte
}

func readRawAttributes(r *reader, cp *ConstantPool) ([]RawAttribute, error) {
	count, err := r.u2()
	if err != nil {
		return nil, err
	}
	attrs := make([]RawAttribute, 0, count)
	for i := 0; i < int(count); i++ {
		attr, err := readRawAttribute(r, cp)
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, attr)
	}
	return attrs, nil
}

func readRawAttribute(r *reader, cp *ConstantPool) (RawAttribute, error) {
	nameIndex, err := r.u2()
	if err != nil {
		return RawAttribute{}, err
	}
	name, err := cp.Utf8(nameIndex)
	if err != nil {
		return RawAttribute{}, err
	}
	length, err := r.u4()
	if err != nil {
		return RawAttribute{}, err
	}
	data, err := r.bytesN(int(length))
	if err != nil {
		return RawAttribute{}, err
	}
	return RawAttribute{Name: name, Data: data}, nil
}

func findAttribute(attrs []RawAttribute, name string) (RawAttribute, bool) {
	for _, a := range attrs {
		if a.Name == name {
			return a, true
		}
	}
	return RawAttribute{}, false
}

// LineNumberEntry maps a bytecode offset to a source line, per JVMS 4.7.12.
type LineNumberEntry struct {
	StartPC uint16
	Line    uint16
}

// LineNumberTable returns the source line active at pc: the entry with the
// greatest StartPC <= pc (spec.md §4.6, seed scenario 6).
type LineNumberTable []LineNumberEntry

func (t LineNumberTable) LineAt(pc uint16) (uint16, bool) {
	found := false
	var best LineNumberEntry
	for _, e := range t {
		if e.StartPC <= pc && (!found || e.StartPC > best.StartPC) {
			best = e
			found = true
		}
	}
	return best.Line, found
}

func parseLineNumberTable(data []byte) (LineNumberTable, error) {
	r := newReaderFromBytes(data)
	count, err := r.u2()
	if err != nil {
		return nil, err
	}
	table := make(LineNumberTable, 0, count)
	for i := 0; i < int(count); i++ {
		startPC, err := r.u2()
		if err != nil {
			return nil, err
		}
		line, err := r.u2()
		if err != nil {
			return nil, err
		}
		table = append(table, LineNumberEntry{StartPC: startPC, Line: line})
	}
	return table, nil
}

func newReaderFromBytes(data []byte) *reader {
	return newReader(data)
}
