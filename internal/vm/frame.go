package vm

import "github.com/mabhi256/jdiag-vm/internal/classfile"

// CallFrame is the per-invocation execution context spec.md §3 describes: a
// reference to the class+method, a program counter, a fixed-size local
// array, and a bounded operand stack.
type CallFrame struct {
	Class  *Class
	Method *classfile.Method
	Code   *classfile.Code

	PC     uint16
	Locals []Value
	Stack  *ValueStack
}

// NewCallFrame allocates a frame's locals (receiver, then args padded for
// long/double, then Uninitialized up to max_locals) and operand stack
// (bounded by max_stack), following
// _examples/original_source/vm/src/call_stack.rs's prepare_locals.
func NewCallFrame(class *Class, method *classfile.Method, receiver *Ref, args []Value) (*CallFrame, *VmError) {
	if method.Code == nil {
		return nil, newVmErr(NotImplemented, "%s.%s%s has no code (native or abstract)", class.Name, method.Name, method.Descriptor)
	}
	code := method.Code

	locals := make([]Value, 0, code.MaxLocals)
	if receiver != nil {
		locals = append(locals, ObjectValue(*receiver))
	}
	for _, a := range args {
		locals = append(locals, a)
		if a.IsCategory2() {
			locals = append(locals, Value{Kind: Uninitialized})
		}
	}
	for len(locals) < int(code.MaxLocals) {
		locals = append(locals, Value{Kind: Uninitialized})
	}

	return &CallFrame{
		Class:  class,
		Method: method,
		Code:   code,
		Locals: locals,
		Stack:  NewValueStack(int(code.MaxStack)),
	}, nil
}

// LocalSlots exposes pointers to every local-variable slot, for GC rooting.
func (f *CallFrame) LocalSlots() []*Value {
	ptrs := make([]*Value, len(f.Locals))
	for i := range f.Locals {
		ptrs[i] = &f.Locals[i]
	}
	return ptrs
}

// GCRoots returns every reference-carrying slot (locals + operand stack)
// this frame currently exposes (spec.md §4.4, §9).
func (f *CallFrame) GCRoots() []*Value {
	roots := f.LocalSlots()
	roots = append(roots, f.Stack.Slots()...)
	return roots
}

// LineAt resolves the source line active at pc via the method's
// LineNumberTable, by last-entry-<=-pc search (spec.md §4.6, seed scenario
// 6).
func (f *CallFrame) LineAt(pc uint16) (uint16, bool) {
	if f.Code == nil || f.Code.LineNumbers == nil {
		return 0, false
	}
	return f.Code.LineNumbers.LineAt(pc)
}
