package vm

import "github.com/mabhi256/jdiag-vm/internal/classfile"

// Collect runs a single-threaded, stop-the-world copying collection
// (spec.md §4.4): every reachable cell is evacuated into a fresh buffer of
// the same maximum size, in Cheney two-finger scan order, which keeps
// allocation a simple bump pointer both before and after a collection.
//
// roots is every live Value slot that might hold a heap reference — one
// per static pseudo-instance plus one per operand-stack/local-variable slot
// of every live call frame, across every live call stack (spec.md §4.4). It
// is gathered by the caller (Vm.runGarbageCollection) via
// CallStack.GCRoots and the statics map, mirroring
// _examples/original_source/vm/src/vm.rs's run_garbage_collection.
func (h *Heap) Collect(roots []*Value, classes *ClassManager) {
	newBuf := make([]byte, h.max)
	newHeap := &Heap{
		buf:           newBuf,
		next:          slotSize,
		max:           h.max,
		arrayRefTypes: make(map[Ref]classfile.FieldType),
	}
	forwarded := make(map[Ref]Ref)
	var scanQueue []Ref

	evacuate := func(old Ref) Ref {
		if old.IsNull() {
			return NullRef
		}
		if newRef, ok := forwarded[old]; ok {
			return newRef
		}
		size := h.Size(old)
		newOffset := newHeap.next
		newHeap.next += size // size is already 8-byte aligned from allocation
		copy(newHeap.buf[newOffset:newOffset+size], h.buf[uint32(old):uint32(old)+size])
		newRef := Ref(newOffset)
		forwarded[old] = newRef
		if h.Kind(old) == KindArray {
			if t, ok := h.arrayRefTypes[old]; ok {
				newHeap.arrayRefTypes[newRef] = t
			}
		}
		scanQueue = append(scanQueue, newRef)
		return newRef
	}

	for _, root := range roots {
		if root.Kind != VObject || root.Ref.IsNull() {
			continue
		}
		root.Ref = evacuate(root.Ref)
	}

	for len(scanQueue) > 0 {
		ref := scanQueue[0]
		scanQueue = scanQueue[1:]

		if newHeap.Kind(ref) == KindObject {
			classId := newHeap.ObjectClassId(ref)
			class, ok := classes.ById(classId)
			if !ok {
				continue // defensive: should never happen for a live object
			}
			fields := class.AllFields()
			for i, f := range fields {
				if !f.Type.IsReference() {
					continue
				}
				old := newHeap.GetRef(ref, i)
				newHeap.SetRef(ref, i, evacuate(old))
			}
		} else {
			elemType := newHeap.ArrayElementType(ref)
			if !elemType.IsReference() {
				continue
			}
			length := newHeap.ArrayLength(ref)
			for i := 0; i < length; i++ {
				old := newHeap.GetRef(ref, i)
				newHeap.SetRef(ref, i, evacuate(old))
			}
		}
	}

	h.buf = newHeap.buf
	h.next = newHeap.next
	h.arrayRefTypes = newHeap.arrayRefTypes
}
