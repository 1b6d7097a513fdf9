package vm

import (
	"testing"

	"github.com/mabhi256/jdiag-vm/internal/classfile"
)

func TestHeapObjectRoundTrip(t *testing.T) {
	h := NewHeap(4096)
	ref, ok := h.AllocObject(7, 2)
	if !ok {
		t.Fatal("allocation should succeed in a fresh 4K heap")
	}
	h.SetInt(ref, 0, 42)
	h.SetRef(ref, 1, Ref(0))

	if got := h.GetInt(ref, 0); got != 42 {
		t.Errorf("expected field 0 to read back 42, got %d", got)
	}
	if got := h.GetRef(ref, 1); !got.IsNull() {
		t.Errorf("expected field 1 to read back null, got %v", got)
	}
	if h.ObjectClassId(ref) != 7 {
		t.Errorf("expected class id 7, got %d", h.ObjectClassId(ref))
	}
}

func TestHeapArrayRoundTrip(t *testing.T) {
	h := NewHeap(4096)
	ref, ok := h.AllocArray(classfile.FieldType{Kind: classfile.KindBase, Base: classfile.Int}, 3)
	if !ok {
		t.Fatal("array allocation should succeed")
	}
	h.SetInt(ref, 0, 10)
	h.SetInt(ref, 1, 20)
	h.SetInt(ref, 2, 30)

	if h.ArrayLength(ref) != 3 {
		t.Fatalf("expected length 3, got %d", h.ArrayLength(ref))
	}
	for i, want := range []int32{10, 20, 30} {
		if got := h.GetInt(ref, i); got != want {
			t.Errorf("element %d: expected %d, got %d", i, want, got)
		}
	}
}

func TestAllocationFailsWhenFull(t *testing.T) {
	h := NewHeap(32)
	if _, ok := h.AllocObject(1, 100); ok {
		t.Error("expected allocation to fail when it does not fit the heap's max size")
	}
}

func TestIdentityHashStableAcrossCollection(t *testing.T) {
	object := newTestClass(1, "java/lang/Object", nil)
	holder := newTestClass(2, "Holder", object, "ref")
	holder.Fields[0].Descriptor = "Ljava/lang/Object;"
	holder.Fields[0].Type = classfile.FieldType{Kind: classfile.KindObject, ClassName: "java/lang/Object"}
	classes := &ClassManager{byId: map[ClassId]*Class{1: object, 2: holder}}

	h := NewHeap(4096)
	target, _ := h.AllocObject(object.Id, 0)
	root, _ := h.AllocObject(holder.Id, 1)
	h.SetRef(root, 0, target)

	wantHash := h.IdentityHash(target)

	rootVal := ObjectValue(root)
	h.Collect([]*Value{&rootVal}, classes)

	movedRoot := rootVal.Ref
	movedTarget := h.GetRef(movedRoot, 0)

	if movedTarget == target {
		t.Fatal("expected the referenced object to have moved to a new offset in the fresh heap")
	}
	if got := h.IdentityHash(movedTarget); got != wantHash {
		t.Errorf("identity hash changed across collection: before=%d after=%d", wantHash, got)
	}
}

func TestCollectionPreservesUnreachableGarbageIsDropped(t *testing.T) {
	object := newTestClass(1, "java/lang/Object", nil)
	classes := &ClassManager{byId: map[ClassId]*Class{1: object}}

	h := NewHeap(256)
	_, _ = h.AllocObject(object.Id, 0) // unreachable: no root points at it
	reachable, _ := h.AllocObject(object.Id, 0)

	rootVal := ObjectValue(reachable)
	usedBefore := h.Used()
	h.Collect([]*Value{&rootVal}, classes)

	if h.Used() >= usedBefore {
		t.Errorf("collection should have reclaimed the unreachable object: used before=%d after=%d", usedBefore, h.Used())
	}
}

func TestCollectionPreservesArrayContents(t *testing.T) {
	object := newTestClass(1, "java/lang/Object", nil)
	classes := &ClassManager{byId: map[ClassId]*Class{1: object}}

	h := NewHeap(4096)
	arr, _ := h.AllocArray(classfile.FieldType{Kind: classfile.KindBase, Base: classfile.Int}, 2)
	h.SetInt(arr, 0, 111)
	h.SetInt(arr, 1, 222)

	rootVal := ObjectValue(arr)
	h.Collect([]*Value{&rootVal}, classes)

	moved := rootVal.Ref
	if h.ArrayLength(moved) != 2 {
		t.Fatalf("expected array length 2 to survive collection, got %d", h.ArrayLength(moved))
	}
	if h.GetInt(moved, 0) != 111 || h.GetInt(moved, 1) != 222 {
		t.Errorf("array contents did not survive collection intact")
	}
}
