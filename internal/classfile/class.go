package classfile

const magicNumber = 0xCAFEBABE

// Supported major version range: JDK 1.1 (45) through JDK 8 (52). Higher
// majors MAY still decode; unsupported bytecode features inside them fail
// later, at the instruction or attribute that needs them (spec.md §4.1).
const minSupportedMajor = 45
const maxKnownMajor = 52

// ExceptionTableEntry is one row of a Code attribute's exception table.
// CatchTypeIndex == 0 means "catch any" (used for finally blocks).
type ExceptionTableEntry struct {
	StartPC, EndPC, HandlerPC uint16
	CatchTypeIndex            uint16
	CatchClassName            string // "" when CatchTypeIndex == 0
}

// Code is the re-parsed body of a Code attribute (spec.md §4.1).
type Code struct {
	MaxStack       uint16
	MaxLocals      uint16
	Bytes          []byte
	ExceptionTable []ExceptionTableEntry
	LineNumbers    LineNumberTable // nil if no LineNumberTable attribute present
}

// Field is one field_info entry, fully decoded.
type Field struct {
	Name           string
	Descriptor     string
	Type           FieldType
	Flags          AccessFlags
	ConstantValue  *Loadable // non-nil when a ConstantValue attribute is present
	Deprecated     bool
}

func (f *Field) IsStatic() bool { return f.Flags.Has(AccStatic) }

// Method is one method_info entry, fully decoded.
type Method struct {
	Name       string
	Descriptor string
	Type       MethodDescriptor
	Flags      AccessFlags
	Code       *Code // nil for native/abstract methods
	Exceptions []string
	Deprecated bool
}

func (m *Method) IsStatic() bool   { return m.Flags.Has(AccStatic) }
func (m *Method) IsNative() bool   { return m.Flags.Has(AccNative) }
func (m *Method) IsAbstract() bool { return m.Flags.Has(AccAbstract) }

// ClassFile is the fully decoded representation of one class-file (spec.md
// §3). Superclass/interfaces are carried as names; resolving them to actual
// Class references is the class manager's job (internal/vm), not the
// decoder's.
type ClassFile struct {
	MinorVersion, MajorVersion uint16
	Constants                  *ConstantPool
	Flags                      AccessFlags
	Name                       string
	SuperClassName             string // "" for java/lang/Object
	InterfaceNames             []string
	Fields                     []*Field
	Methods                    []*Method
	SourceFile                 string // "" if no SourceFile attribute
}

// Read decodes a complete class file from data.
func Read(data []byte) (*ClassFile, error) {
	r := newReader(data)

	magic, err := r.u4()
	if err != nil {
		return nil, err
	}
	if magic != magicNumber {
		return nil, newErr(InvalidClassData, "bad magic number 0x%08x", magic)
	}

	minor, err := r.u2()
	if err != nil {
		return nil, err
	}
	major, err := r.u2()
	if err != nil {
		return nil, err
	}
	if major < minSupportedMajor {
		return nil, newErr(UnsupportedVersion, "major version %d below minimum %d", major, minSupportedMajor)
	}

	cp, err := readConstantPool(r)
	if err != nil {
		return nil, err
	}

	flagsRaw, err := r.u2()
	if err != nil {
		return nil, err
	}
	flags := AccessFlags(flagsRaw)

	thisClassIndex, err := r.u2()
	if err != nil {
		return nil, err
	}
	className, err := cp.ClassName(thisClassIndex)
	if err != nil {
		return nil, err
	}

	superClassIndex, err := r.u2()
	if err != nil {
		return nil, err
	}
	var superClassName string
	if superClassIndex != 0 {
		superClassName, err = cp.ClassName(superClassIndex)
		if err != nil {
			return nil, err
		}
	}

	interfaceCount, err := r.u2()
	if err != nil {
		return nil, err
	}
	interfaces := make([]string, 0, interfaceCount)
	for i := 0; i < int(interfaceCount); i++ {
		idx, err := r.u2()
		if err != nil {
			return nil, err
		}
		name, err := cp.ClassName(idx)
		if err != nil {
			return nil, err
		}
		interfaces = append(interfaces, name)
	}

	fields, err := readFields(r, cp)
	if err != nil {
		return nil, err
	}

	methods, err := readMethods(r, cp)
	if err != nil {
		return nil, err
	}

	classAttrs, err := readRawAttributes(r, cp)
	if err != nil {
		return nil, err
	}
	sourceFile := ""
	if attr, ok := findAttribute(classAttrs, "SourceFile"); ok {
		sfIndex, err := newReader(attr.Data).u2()
		if err != nil {
			return nil, err
		}
		sourceFile, err = cp.Utf8(sfIndex)
		if err != nil {
			return nil, err
		}
	}

	return &ClassFile{
		MinorVersion:   minor,
		MajorVersion:   major,
		Constants:      cp,
		Flags:          flags,
		Name:           className,
		SuperClassName: superClassName,
		InterfaceNames: interfaces,
		Fields:         fields,
		Methods:        methods,
		SourceFile:     sourceFile,
	}, nil
}

func readFields(r *reader, cp *ConstantPool) ([]*Field, error) {
	count, err := r.u2()
	if err != nil {
		return nil, err
	}
	fields := make([]*Field, 0, count)
	for i := 0; i < int(count); i++ {
		flagsRaw, err := r.u2()
		if err != nil {
			return nil, err
		}
		nameIndex, err := r.u2()
		if err != nil {
			return nil, err
		}
		name, err := cp.Utf8(nameIndex)
		if err != nil {
			return nil, err
		}
		descIndex, err := r.u2()
		if err != nil {
			return nil, err
		}
		descriptor, err := cp.Utf8(descIndex)
		if err != nil {
			return nil, err
		}
		fieldType, err := ParseFieldType(descriptor)
		if err != nil {
			return nil, err
		}
		attrs, err := readRawAttributes(r, cp)
		if err != nil {
			return nil, err
		}

		field := &Field{
			Name:       name,
			Descriptor: descriptor,
			Type:       fieldType,
			Flags:      AccessFlags(flagsRaw),
		}
		if attr, ok := findAttribute(attrs, "ConstantValue"); ok {
			idx, err := newReader(attr.Data).u2()
			if err != nil {
				return nil, err
			}
			loadable, err := cp.Loadable(idx)
			if err != nil {
				return nil, err
			}
			field.ConstantValue = &loadable
		}
		if _, ok := findAttribute(attrs, "Deprecated"); ok {
			field.Deprecated = true
		}
		fields = append(fields, field)
	}
	return fields, nil
}

func readMethods(r *reader, cp *ConstantPool) ([]*Method, error) {
	count, err := r.u2()
	if err != nil {
		return nil, err
	}
	methods := make([]*Method, 0, count)
	for i := 0; i < int(count); i++ {
		flagsRaw, err := r.u2()
		if err != nil {
			return nil, err
		}
		nameIndex, err := r.u2()
		if err != nil {
			return nil, err
		}
		name, err := cp.Utf8(nameIndex)
		if err != nil {
			return nil, err
		}
		descIndex, err := r.u2()
		if err != nil {
			return nil, err
		}
		descriptor, err := cp.Utf8(descIndex)
		if err != nil {
			return nil, err
		}
		methodType, err := ParseMethodDescriptor(descriptor)
		if err != nil {
			return nil, err
		}
		attrs, err := readRawAttributes(r, cp)
		if err != nil {
			return nil, err
		}

		flags := AccessFlags(flagsRaw)
		method := &Method{
			Name:       name,
			Descriptor: descriptor,
			Type:       methodType,
			Flags:      flags,
		}
		if _, ok := findAttribute(attrs, "Deprecated"); ok {
			method.Deprecated = true
		}
		if attr, ok := findAttribute(attrs, "Exceptions"); ok {
			exceptions, err := parseExceptionsAttribute(attr.Data, cp)
			if err != nil {
				return nil, err
			}
			method.Exceptions = exceptions
		}
		if !flags.Has(AccNative) && !flags.Has(AccAbstract) {
			if attr, ok := findAttribute(attrs, "Code"); ok {
				code, err := parseCodeAttribute(attr.Data, cp)
				if err != nil {
					return nil, err
				}
				method.Code = code
			}
		}
		methods = append(methods, method)
	}
	return methods, nil
}

func parseExceptionsAttribute(data []byte, cp *ConstantPool) ([]string, error) {
	r := newReader(data)
	count, err := r.u2()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, count)
	for i := 0; i < int(count); i++ {
		idx, err := r.u2()
		if err != nil {
			return nil, err
		}
		name, err := cp.ClassName(idx)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

func parseCodeAttribute(data []byte, cp *ConstantPool) (*Code, error) {
	r := newReader(data)

	maxStack, err := r.u2()
	if err != nil {
		return nil, err
	}
	maxLocals, err := r.u2()
	if err != nil {
		return nil, err
	}
	codeLength, err := r.u4()
	if err != nil {
		return nil, err
	}
	codeBytes, err := r.bytesN(int(codeLength))
	if err != nil {
		return nil, err
	}

	excTableLen, err := r.u2()
	if err != nil {
		return nil, err
	}
	excTable := make([]ExceptionTableEntry, 0, excTableLen)
	for i := 0; i < int(excTableLen); i++ {
		startPC, err := r.u2()
		if err != nil {
			return nil, err
		}
		endPC, err := r.u2()
		if err != nil {
			return nil, err
		}
		handlerPC, err := r.u2()
		if err != nil {
			return nil, err
		}
		catchTypeIndex, err := r.u2()
		if err != nil {
			return nil, err
		}
		entry := ExceptionTableEntry{StartPC: startPC, EndPC: endPC, HandlerPC: handlerPC, CatchTypeIndex: catchTypeIndex}
		if catchTypeIndex != 0 {
			name, err := cp.ClassName(catchTypeIndex)
			if err != nil {
				return nil, err
			}
			entry.CatchClassName = name
		}
		excTable = append(excTable, entry)
	}

	attrs, err := readRawAttributes(r, cp)
	if err != nil {
		return nil, err
	}
	var lineNumbers LineNumberTable
	if attr, ok := findAttribute(attrs, "LineNumberTable"); ok {
		lineNumbers, err = parseLineNumberTable(attr.Data)
		if err != nil {
			return nil, err
		}
	}

	return &Code{
		MaxStack:       maxStack,
		MaxLocals:      maxLocals,
		Bytes:          codeBytes,
		ExceptionTable: excTable,
		LineNumbers:    lineNumbers,
	}, nil
}
