package vm

import (
	"unicode/utf16"

	"github.com/mabhi256/jdiag-vm/internal/classfile"
)

var charArrayElementType = classfile.FieldType{Kind: classfile.KindBase, Base: classfile.Char}

// javaStringClassName and javaClassClassName are the classes ldc and
// class-literal loading resolve against to materialise heap objects
// (spec.md §6). Both must be present on the embedder's classpath (normally
// minimal stand-ins for the real rt.jar classes) with at least the fields
// this package touches by index.
const (
	javaStringClassName = "java/lang/String"
	javaClassClassName  = "java/lang/Class"

	// stringValueFieldIndex is java/lang/String's first field: the char[]
	// holding the UTF-16 code units of the string's content (spec.md §6).
	stringValueFieldIndex = 0

	// classNameFieldIndex is the slot the bundled rt.jar layout uses for
	// java/lang/Class's binary-name string field (spec.md §6).
	classNameFieldIndex = 5
)

// NewJavaString materialises a java/lang/String instance for s: resolves
// the class (triggering its <clinit> exactly once, same as any other
// class use), allocates an instance, and stores a freshly allocated char[]
// of s's UTF-16 code units into the string's first field. Every other
// declared field is left at its zero value, matching spec.md §6.
//
// The String instance is pinned across the char[] allocation that follows
// it: both are heap allocations, and the second can trigger a GC that
// relocates the first (spec.md §4.4, §5) before it has anywhere else to be
// found as a root.
func (v *Vm) NewJavaString(stack *CallStack, s string) (Ref, MethodCallFailed) {
	class, failed := v.GetOrResolveClass(stack, javaStringClassName)
	if failed != nil {
		return 0, failed
	}
	pinned := v.pinRef(v.newObjectOfClass(class))
	defer v.unpinRef(pinned)

	chars := utf16.Encode([]rune(s))
	arr := v.NewCharArray(chars)
	v.heap.SetRef(pinned.Ref, stringValueFieldIndex, arr)
	return pinned.Ref, nil
}

var javaStringArrayElementType = classfile.FieldType{Kind: classfile.KindObject, ClassName: javaStringClassName}

// NewStringArray builds a java/lang/String[] populated with args, the
// array an embedder constructs for static void main(String[]) (spec.md
// §6). The array is pinned across each element's NewJavaString call:
// every element is itself a multi-step allocation that can trigger a GC
// (spec.md §4.4, §5), and the array would otherwise be a bare Ref in the
// caller's hands, outside any package's root scan, for the whole loop.
func (v *Vm) NewStringArray(stack *CallStack, args []string) (Ref, MethodCallFailed) {
	pinned := v.pinRef(v.NewArray(javaStringArrayElementType, len(args)))
	defer v.unpinRef(pinned)

	for i, a := range args {
		s, failed := v.NewJavaString(stack, a)
		if failed != nil {
			return 0, failed
		}
		v.heap.SetRef(pinned.Ref, i, s)
	}
	return pinned.Ref, nil
}

// NewCharArray allocates a char[] populated with the given UTF-16 code
// units; NewJavaString uses it for a string's backing array.
func (v *Vm) NewCharArray(units []uint16) Ref {
	arr := v.NewArray(charArrayElementType, len(units))
	for i, u := range units {
		v.heap.SetInt(arr, i, int32(u))
	}
	return arr
}

// ExtractString reads back a java/lang/String instance's content: the
// inverse of NewJavaString, for embedders that want a Go string instead of
// a raw Value (spec.md §8's ldc/extract_string round-trip property).
func (v *Vm) ExtractString(ref Ref) string {
	arr := v.heap.GetRef(ref, stringValueFieldIndex)
	length := v.heap.ArrayLength(arr)
	units := make([]uint16, length)
	for i := 0; i < length; i++ {
		units[i] = uint16(v.heap.GetInt(arr, i))
	}
	return string(utf16.Decode(units))
}

// NewClassLiteral materialises the java/lang/Class instance a class
// literal (ldc of a Class constant) or java/lang/Object.getClass() would
// produce: the binary name is stored as a java/lang/String in the
// designated slot (spec.md §6). className need not itself be resolved —
// a class literal for a class that is never instantiated is still valid
// Java — so this does not trigger GetOrResolveClass(className).
func (v *Vm) NewClassLiteral(stack *CallStack, className string) (Ref, MethodCallFailed) {
	class, failed := v.GetOrResolveClass(stack, javaClassClassName)
	if failed != nil {
		return 0, failed
	}
	pinned := v.pinRef(v.newObjectOfClass(class))
	defer v.unpinRef(pinned)

	nameRef, failed := v.NewJavaString(stack, className)
	if failed != nil {
		return 0, failed
	}
	v.heap.SetRef(pinned.Ref, classNameFieldIndex, nameRef)
	return pinned.Ref, nil
}
