package classfile

import "strings"

// BaseType is a primitive field type.
type BaseType byte

const (
	Byte BaseType = iota
	Char
	Double
	Float
	Int
	Long
	Short
	Boolean
)

func (b BaseType) String() string {
	switch b {
	case Byte:
		return "Byte"
	case Char:
		return "Char"
	case Double:
		return "Double"
	case Float:
		return "Float"
	case Int:
		return "Int"
	case Long:
		return "Long"
	case Short:
		return "Short"
	case Boolean:
		return "Boolean"
	default:
		return "Unknown"
	}
}

// Size is the natural width in bytes of this primitive type. The VM's heap
// does not use it: every field and array element there occupies an 8-byte
// slot, and the interpreter carries ints on the operand stack regardless.
func (b BaseType) Size() int {
	switch b {
	case Byte, Boolean:
		return 1
	case Char, Short:
		return 2
	case Int, Float:
		return 4
	case Long, Double:
		return 8
	default:
		return 0
	}
}

// FieldTypeKind discriminates the three shapes a FieldType can take.
type FieldTypeKind int

const (
	KindBase FieldTypeKind = iota
	KindObject
	KindArray
)

// FieldType models the type of a field or a method parameter, per JVMS 4.3.2.
type FieldType struct {
	Kind      FieldTypeKind
	Base      BaseType   // valid when Kind == KindBase
	ClassName string     // valid when Kind == KindObject
	Elem      *FieldType // valid when Kind == KindArray
}

func (f FieldType) String() string {
	switch f.Kind {
	case KindBase:
		return f.Base.String()
	case KindObject:
		return f.ClassName
	case KindArray:
		return f.Elem.String() + "[]"
	default:
		return "?"
	}
}

// IsReference reports whether values of this type are heap references
// (Object, Null, or array), as opposed to a primitive carried as Int/Long/
// Float/Double on the operand stack.
func (f FieldType) IsReference() bool {
	return f.Kind == KindObject || f.Kind == KindArray
}

// ParseFieldType parses a single field/parameter descriptor and requires it
// consume the entire string (JVMS 4.3.2).
func ParseFieldType(descriptor string) (FieldType, error) {
	rest := descriptor
	ft, rest, err := parseFieldTypeFrom(descriptor, rest)
	if err != nil {
		return FieldType{}, err
	}
	if rest != "" {
		return FieldType{}, newErr(InvalidTypeDescriptor, "%s", descriptor)
	}
	return ft, nil
}

// parseFieldTypeFrom parses one field type off the front of rest, returning
// the unconsumed remainder. original points at the full descriptor only for
// error messages.
func parseFieldTypeFrom(original, rest string) (FieldType, string, error) {
	if rest == "" {
		return FieldType{}, rest, newErr(InvalidTypeDescriptor, "%s", original)
	}
	c := rest[0]
	rest = rest[1:]
	switch c {
	case 'B':
		return FieldType{Kind: KindBase, Base: Byte}, rest, nil
	case 'C':
		return FieldType{Kind: KindBase, Base: Char}, rest, nil
	case 'D':
		return FieldType{Kind: KindBase, Base: Double}, rest, nil
	case 'F':
		return FieldType{Kind: KindBase, Base: Float}, rest, nil
	case 'I':
		return FieldType{Kind: KindBase, Base: Int}, rest, nil
	case 'J':
		return FieldType{Kind: KindBase, Base: Long}, rest, nil
	case 'S':
		return FieldType{Kind: KindBase, Base: Short}, rest, nil
	case 'Z':
		return FieldType{Kind: KindBase, Base: Boolean}, rest, nil
	case 'L':
		idx := strings.IndexByte(rest, ';')
		if idx < 0 {
			return FieldType{}, rest, newErr(InvalidTypeDescriptor, "%s", original)
		}
		className := rest[:idx]
		return FieldType{Kind: KindObject, ClassName: className}, rest[idx+1:], nil
	case '[':
		elem, rest2, err := parseFieldTypeFrom(original, rest)
		if err != nil {
			return FieldType{}, rest, err
		}
		return FieldType{Kind: KindArray, Elem: &elem}, rest2, nil
	default:
		return FieldType{}, rest, newErr(InvalidTypeDescriptor, "%s", original)
	}
}

// MethodDescriptor is the parsed parameter/return-type signature of a method.
type MethodDescriptor struct {
	Parameters []FieldType
	ReturnType *FieldType // nil means void
}

func (m MethodDescriptor) NumArguments() int {
	return len(m.Parameters)
}

func (m MethodDescriptor) String() string {
	var sb strings.Builder
	sb.WriteByte('(')
	for i, p := range m.Parameters {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(p.String())
	}
	sb.WriteString(") -> ")
	if m.ReturnType == nil {
		sb.WriteString("void")
	} else {
		sb.WriteString(m.ReturnType.String())
	}
	return sb.String()
}

// ParseMethodDescriptor parses a method descriptor per JVMS 4.3.3.
func ParseMethodDescriptor(descriptor string) (MethodDescriptor, error) {
	if descriptor == "" || descriptor[0] != '(' {
		return MethodDescriptor{}, newErr(InvalidTypeDescriptor, "%s", descriptor)
	}
	rest := descriptor[1:]
	var params []FieldType
	for {
		if rest == "" {
			return MethodDescriptor{}, newErr(InvalidTypeDescriptor, "%s", descriptor)
		}
		if rest[0] == ')' {
			rest = rest[1:]
			break
		}
		ft, rest2, err := parseFieldTypeFrom(descriptor, rest)
		if err != nil {
			return MethodDescriptor{}, err
		}
		params = append(params, ft)
		rest = rest2
	}
	if rest == "V" {
		return MethodDescriptor{Parameters: params, ReturnType: nil}, nil
	}
	ret, rest2, err := parseFieldTypeFrom(descriptor, rest)
	if err != nil {
		return MethodDescriptor{}, err
	}
	if rest2 != "" {
		return MethodDescriptor{}, newErr(InvalidTypeDescriptor, "%s", descriptor)
	}
	return MethodDescriptor{Parameters: params, ReturnType: &ret}, nil
}
