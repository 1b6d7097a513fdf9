package vm

// Ref is an offset into the heap buffer identifying one allocated object or
// array cell. Ref(0) is reserved as the null reference: the allocator never
// places a cell at offset 0 (the bump pointer starts past it), so a
// zero-valued reference slot reads back as Null exactly as spec.md §4.3
// requires, with no separate "is it null" tag needed.
type Ref uint32

const NullRef Ref = 0

func (r Ref) IsNull() bool { return r == NullRef }

// Kind discriminates the cases of Value, spec.md §3: "Uninitialised, Int
// (i32), Long (i64), Float (f32), Double (f64), Object (cell pointer),
// Null." Sub-int primitives (byte, char, short, boolean) are carried as
// Int on the operand stack, per spec.md §3.
type Kind int

const (
	Uninitialized Kind = iota
	VInt
	VLong
	VFloat
	VDouble
	VObject
	VNull
)

func (k Kind) String() string {
	switch k {
	case Uninitialized:
		return "Uninitialized"
	case VInt:
		return "Int"
	case VLong:
		return "Long"
	case VFloat:
		return "Float"
	case VDouble:
		return "Double"
	case VObject:
		return "Object"
	case VNull:
		return "Null"
	default:
		return "?"
	}
}

// Value is the tagged union every operand-stack slot and local-variable
// slot holds. Long and Double occupy two logical local slots; the caller
// (frame.go) is responsible for padding the second slot with Uninitialized,
// as spec.md §3 describes.
type Value struct {
	Kind   Kind
	Int    int32
	Long   int64
	Float  float32
	Double float64
	Ref    Ref
}

func IntValue(v int32) Value      { return Value{Kind: VInt, Int: v} }
func LongValue(v int64) Value     { return Value{Kind: VLong, Long: v} }
func FloatValue(v float32) Value  { return Value{Kind: VFloat, Float: v} }
func DoubleValue(v float64) Value { return Value{Kind: VDouble, Double: v} }
func ObjectValue(r Ref) Value     { return Value{Kind: VObject, Ref: r} }
func NullValue() Value            { return Value{Kind: VNull} }

// IsCategory2 reports whether this value occupies two stack/local slots
// (long, double) as opposed to one (everything else).
func (v Value) IsCategory2() bool { return v.Kind == VLong || v.Kind == VDouble }

// IsReference reports whether v may be stored into a reference-typed field,
// array element or local: Object, Null (spec.md §4: "the a variants also
// accept Null and arrays").
func (v Value) IsReference() bool { return v.Kind == VObject || v.Kind == VNull }
