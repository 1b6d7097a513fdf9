package vm

import (
	"testing"

	"github.com/mabhi256/jdiag-vm/internal/classfile"
)

func newTestClass(id ClassId, name string, super *Class, fields ...string) *Class {
	first := 0
	if super != nil {
		first = super.NumTotalFields
	}
	fs := make([]*classfile.Field, len(fields))
	for i, n := range fields {
		fs[i] = &classfile.Field{Name: n, Descriptor: "I", Type: classfile.FieldType{Kind: classfile.KindBase, Base: classfile.Int}}
	}
	return &Class{
		Id:              id,
		Name:            name,
		Superclass:      super,
		Fields:          fs,
		FirstFieldIndex: first,
		NumTotalFields:  first + len(fields),
	}
}

func TestIsSubclassOfReflexive(t *testing.T) {
	object := newTestClass(1, "java/lang/Object", nil)
	if !object.IsSubclassOf(object) {
		t.Fatal("a class must be a subclass of itself")
	}
}

func TestIsSubclassOfTransitive(t *testing.T) {
	object := newTestClass(1, "java/lang/Object", nil)
	animal := newTestClass(2, "Animal", object)
	dog := newTestClass(3, "Dog", animal)

	if !dog.IsSubclassOf(animal) {
		t.Error("Dog should be a subclass of its direct superclass Animal")
	}
	if !dog.IsSubclassOf(object) {
		t.Error("Dog should be a subclass of Animal's superclass Object (transitive)")
	}
	if animal.IsSubclassOf(dog) {
		t.Error("Animal must not be a subclass of its own subclass Dog")
	}
}

func TestIsSubclassOfInterfaceClosure(t *testing.T) {
	object := newTestClass(1, "java/lang/Object", nil)
	comparable := newTestClass(2, "Comparable", nil)
	dog := newTestClass(3, "Dog", object)
	dog.Interfaces = []*Class{comparable}

	if !dog.IsSubclassOf(comparable) {
		t.Error("Dog implementing Comparable should satisfy IsSubclassOf(Comparable)")
	}
}

func TestFindFieldWalksToSuperclass(t *testing.T) {
	object := newTestClass(1, "java/lang/Object", nil)
	animal := newTestClass(2, "Animal", object, "age")
	dog := newTestClass(3, "Dog", animal, "breed")

	field, slot := dog.FindField("age")
	if field == nil {
		t.Fatal("expected to find inherited field \"age\"")
	}
	if slot != 0 {
		t.Errorf("age should resolve to global slot 0 (declared first, on Animal), got %d", slot)
	}

	field, slot = dog.FindField("breed")
	if field == nil {
		t.Fatal("expected to find own field \"breed\"")
	}
	if slot != 1 {
		t.Errorf("breed should resolve to global slot 1 (after Animal's one field), got %d", slot)
	}

	if field, _ := dog.FindField("nonexistent"); field != nil {
		t.Error("expected nil for an undeclared field name")
	}
}

func TestFindFieldResolvesAgainstRuntimeClass(t *testing.T) {
	// A field re-declared in a subclass shadows the superclass's slot of the
	// same name when resolved via the subclass (spec.md §9's Open Question:
	// resolve field access against the object's runtime class, not the
	// constant pool's statically declared owner).
	object := newTestClass(1, "java/lang/Object", nil)
	base := newTestClass(2, "Base", object, "x")
	derived := newTestClass(3, "Derived", base, "x")

	_, baseSlot := base.FindField("x")
	_, derivedSlot := derived.FindField("x")
	if baseSlot != 0 {
		t.Fatalf("Base.x should be slot 0, got %d", baseSlot)
	}
	if derivedSlot != 1 {
		t.Fatalf("Derived.x should shadow at slot 1 (Derived's own declaration), got %d", derivedSlot)
	}
}

func TestFindMethodNeverWalksInterfaces(t *testing.T) {
	object := newTestClass(1, "java/lang/Object", nil)
	iface := newTestClass(2, "Runnable", nil)
	iface.Methods = []*classfile.Method{{Name: "run", Descriptor: "()V"}}
	dog := newTestClass(3, "Dog", object)
	dog.Interfaces = []*Class{iface}

	if m, _ := dog.FindMethod("run", "()V"); m != nil {
		t.Error("FindMethod must not resolve through implemented interfaces (spec.md §4.5)")
	}
}

func TestAllFieldsAncestorsFirst(t *testing.T) {
	object := newTestClass(1, "java/lang/Object", nil)
	animal := newTestClass(2, "Animal", object, "age")
	dog := newTestClass(3, "Dog", animal, "breed")

	fields := dog.AllFields()
	if len(fields) != 2 {
		t.Fatalf("expected 2 total fields, got %d", len(fields))
	}
	if fields[0].Name != "age" || fields[1].Name != "breed" {
		t.Errorf("expected [age, breed] in global slot order, got [%s, %s]", fields[0].Name, fields[1].Name)
	}
}

func TestFieldAtIndex(t *testing.T) {
	object := newTestClass(1, "java/lang/Object", nil)
	animal := newTestClass(2, "Animal", object, "age")
	dog := newTestClass(3, "Dog", animal, "breed")

	f, ok := dog.FieldAtIndex(0)
	if !ok || f.Name != "age" {
		t.Errorf("slot 0 should be Animal's age field")
	}
	f, ok = dog.FieldAtIndex(1)
	if !ok || f.Name != "breed" {
		t.Errorf("slot 1 should be Dog's own breed field")
	}
	if _, ok := dog.FieldAtIndex(2); ok {
		t.Error("slot 2 is out of range and should not resolve")
	}
}
