package classfile

import "testing"

func TestParseFieldTypePrimitives(t *testing.T) {
	cases := map[string]BaseType{
		"B": Byte, "C": Char, "D": Double, "F": Float,
		"I": Int, "J": Long, "S": Short, "Z": Boolean,
	}
	for descriptor, want := range cases {
		ft, err := ParseFieldType(descriptor)
		if err != nil {
			t.Fatalf("%s: %v", descriptor, err)
		}
		if ft.Kind != KindBase || ft.Base != want {
			t.Errorf("%s: expected base type %v, got %+v", descriptor, want, ft)
		}
	}
}

func TestParseFieldTypeObject(t *testing.T) {
	ft, err := ParseFieldType("Ljava/lang/String;")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ft.Kind != KindObject || ft.ClassName != "java/lang/String" {
		t.Errorf("expected object type java/lang/String, got %+v", ft)
	}
}

func TestParseFieldTypeNestedArray(t *testing.T) {
	ft, err := ParseFieldType("[[I")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ft.Kind != KindArray || ft.Elem.Kind != KindArray || ft.Elem.Elem.Base != Int {
		t.Errorf("expected int[][], got %+v", ft)
	}
}

func TestParseFieldTypeRejectsTrailingGarbage(t *testing.T) {
	if _, err := ParseFieldType("II"); err == nil {
		t.Error("expected an error when the descriptor has unconsumed trailing characters")
	}
}

func TestParseFieldTypeRejectsUnterminatedObject(t *testing.T) {
	if _, err := ParseFieldType("Ljava/lang/String"); err == nil {
		t.Error("expected an error for a missing terminating semicolon")
	}
}

func TestParseMethodDescriptorVoidNoArgs(t *testing.T) {
	md, err := ParseMethodDescriptor("()V")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if md.NumArguments() != 0 || md.ReturnType != nil {
		t.Errorf("expected 0 args and void return, got %+v", md)
	}
}

func TestParseMethodDescriptorMainSignature(t *testing.T) {
	md, err := ParseMethodDescriptor("([Ljava/lang/String;)V")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if md.NumArguments() != 1 {
		t.Fatalf("expected 1 argument, got %d", md.NumArguments())
	}
	arg := md.Parameters[0]
	if arg.Kind != KindArray || arg.Elem.Kind != KindObject || arg.Elem.ClassName != "java/lang/String" {
		t.Errorf("expected String[], got %+v", arg)
	}
	if md.ReturnType != nil {
		t.Error("expected a void return type")
	}
}

func TestParseMethodDescriptorMixedArgsAndReturn(t *testing.T) {
	md, err := ParseMethodDescriptor("(IDLjava/lang/Object;)Z")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if md.NumArguments() != 3 {
		t.Fatalf("expected 3 arguments, got %d", md.NumArguments())
	}
	if md.Parameters[0].Base != Int || md.Parameters[1].Base != Double {
		t.Errorf("unexpected parameter types: %+v", md.Parameters)
	}
	if md.Parameters[2].ClassName != "java/lang/Object" {
		t.Errorf("expected java/lang/Object, got %+v", md.Parameters[2])
	}
	if md.ReturnType == nil || md.ReturnType.Base != Boolean {
		t.Errorf("expected boolean return type, got %+v", md.ReturnType)
	}
}

func TestParseMethodDescriptorMissingOpenParen(t *testing.T) {
	if _, err := ParseMethodDescriptor("V"); err == nil {
		t.Error("expected an error for a descriptor missing the leading '('")
	}
}
