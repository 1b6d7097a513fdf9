package vm

import (
	"log/slog"

	"github.com/mabhi256/jdiag-vm/internal/classfile"
)

const OneMegabyte = 1024 * 1024
const DefaultMaxMemory = 100 * OneMegabyte

// Vm is a single instance of the virtual machine: single-threaded, loads
// class files lazily through a ClassResolver, and executes their bytecode
// (spec.md §1). Its shape — class manager, bounded object allocator, static
// pseudo-instances, native registry, per-throwable stack-trace side table,
// debug print sink — follows
// _examples/original_source/vm/src/vm.rs's Vm struct field for field.
type Vm struct {
	classManager *ClassManager
	heap         *Heap
	callStacks   []*CallStack

	// Per-class static pseudo-instance, spec.md §3, §4.2.
	statics map[ClassId]Ref

	natives *NativeRegistry

	// Stack traces captured at throw time, keyed by the throwable object's
	// identity hash, since the rt.jar layout used has no native field for
	// it (spec.md §4.6, §9).
	throwableStackTraces map[uint32][]StackTraceElement

	// Debug sink the tempPrint native writes to; asserted against in the
	// seed end-to-end scenarios (spec.md §8).
	Printed []Value

	// pinned protects Ref values that a multi-step allocation helper holds
	// only in a Go local across a further allocation that might trigger a
	// GC (spec.md §4.4, §5) — e.g. NewJavaString allocates its String
	// instance, then allocates its backing char[] before wiring the two
	// together. A bare Go local is invisible to the collector's root
	// scan; pinning the ref here makes it one more root the collector
	// relocates in place, same as any frame slot.
	pinned []*Value

	// StepHook, when non-nil, is invoked by Execute once per executed
	// instruction, before the instruction runs. Nil by default so the
	// interpreter's hot loop pays no cost for observers that don't exist;
	// cmd/inspect sets this to drive its live frame-stack and heap views
	// (SPEC_FULL.md's DOMAIN STACK section).
	StepHook func(stack *CallStack, frame *CallFrame, insn classfile.Instruction)

	log *slog.Logger
}

func NewVm(maxMemory uint32, resolver ClassResolver, logger *slog.Logger) *Vm {
	if logger == nil {
		logger = slog.Default()
	}
	v := &Vm{
		classManager:         NewClassManager(resolver),
		heap:                 NewHeap(maxMemory),
		statics:              make(map[ClassId]Ref),
		throwableStackTraces: make(map[uint32][]StackTraceElement),
		log:                  logger,
	}
	v.natives = NewNativeRegistry()
	RegisterBuiltins(v.natives)
	logger.Info("created vm", "max_memory", maxMemory)
	return v
}

// AllocateCallStack creates a new tracked call stack. The Vm keeps every
// allocated call stack alive for the purpose of extracting GC roots, as
// _examples/original_source/vm/src/vm.rs's allocate_call_stack does via its
// arena.
func (v *Vm) AllocateCallStack() *CallStack {
	cs := NewCallStack()
	v.callStacks = append(v.callStacks, cs)
	return cs
}

func (v *Vm) Natives() *NativeRegistry { return v.natives }

func (v *Vm) GetStaticInstance(classId ClassId) (Ref, bool) {
	r, ok := v.statics[classId]
	return r, ok
}

const throwableClassName = "java/lang/Throwable"

// isThrowableClass reports whether class descends from java/lang/Throwable,
// the trigger for capturing a stack-trace snapshot at construction time
// (spec.md §4.6). Resolution failure (an embedder classpath without
// Throwable at all) is treated as "not a throwable" rather than fatal,
// since plain object allocation must not depend on exception-class setup.
func (v *Vm) isThrowableClass(class *Class) bool {
	throwable, ok := v.FindClassByName(throwableClassName)
	if !ok {
		return false
	}
	return class.IsSubclassOf(throwable)
}

// GetOrResolveClass resolves class_name (triggering load + recursive
// superclass/interface resolution via the ClassManager) and runs <clinit>
// on every newly-loaded class in root-first order (spec.md §4.2, §5).
func (v *Vm) GetOrResolveClass(stack *CallStack, className string) (*Class, MethodCallFailed) {
	class, newlyInitialized, err := v.classManager.GetOrResolve(className)
	if err != nil {
		return nil, &InternalError{Err: err}
	}
	for _, c := range newlyInitialized {
		if failed := v.initClass(stack, c); failed != nil {
			return nil, failed
		}
	}
	return class, nil
}

func (v *Vm) initClass(stack *CallStack, class *Class) MethodCallFailed {
	v.log.Debug("initializing class", "class", class.Name)
	static := v.newObjectOfClass(class)
	v.statics[class.Id] = static
	if clinit, owner := class.FindMethod("<clinit>", "()V"); clinit != nil && owner == class {
		v.log.Debug("invoking <clinit>", "class", class.Name)
		_, failed := v.Invoke(stack, class, clinit, nil, nil)
		if failed != nil {
			return failed
		}
	}
	return nil
}

func (v *Vm) GetClassById(id ClassId) (*Class, *VmError) {
	c, ok := v.classManager.ById(id)
	if !ok {
		return nil, newVmErr(ValidationException, "no class registered with id %d", id)
	}
	return c, nil
}

func (v *Vm) FindClassByName(name string) (*Class, bool) {
	return v.classManager.ByName(name)
}

// ResolveClassMethod resolves className then looks up methodName/descriptor
// on it or its superclasses (Class.FindMethod). The embedders in cmd/ use it
// to locate main.
func (v *Vm) ResolveClassMethod(stack *CallStack, className, methodName, descriptor string) (*Class, *classfile.Method, MethodCallFailed) {
	class, failed := v.GetOrResolveClass(stack, className)
	if failed != nil {
		return nil, nil, failed
	}
	method, _ := class.FindMethod(methodName, descriptor)
	if method == nil {
		return nil, nil, &InternalError{Err: newVmErr(MethodNotFoundException, "%s.%s%s", className, methodName, descriptor)}
	}
	return class, method, nil
}

// Invoke runs one method call: native dispatch through the registry, or a
// fresh interpreter frame (spec.md §4.5). The receiver must already be
// validated (non-nil for non-static, nil for static) by the caller — the
// invocation instructions in interpreter_invoke.go do this before calling
// Invoke.
func (v *Vm) Invoke(stack *CallStack, class *Class, method *classfile.Method, receiver *Ref, args []Value) (Value, MethodCallFailed) {
	if method.IsNative() {
		return v.invokeNative(stack, class, method, receiver, args)
	}
	frame, err := NewCallFrame(class, method, receiver, args)
	if err != nil {
		return Value{}, &InternalError{Err: err}
	}
	stack.PushFrame(frame)
	result, failed := Execute(v, stack, frame)
	if popErr := stack.PopFrame(); popErr != nil {
		// Should be unreachable: we just pushed this exact frame.
		v.log.Error("popped an unexpected call stack", "error", popErr)
	}
	return result, failed
}

func (v *Vm) invokeNative(stack *CallStack, class *Class, method *classfile.Method, receiver *Ref, args []Value) (Value, MethodCallFailed) {
	cb, ok := v.natives.Lookup(class.Name, method.Name, method.Descriptor)
	if !ok {
		if cb2, ok2 := v.natives.LookupTempPrint(class.Name, method.Name); ok2 {
			cb = cb2
			ok = true
		}
	}
	if !ok {
		v.log.Error("unresolved native method", "class", class.Name, "method", method.Name, "descriptor", method.Descriptor)
		return Value{}, internalErr(NotImplemented, "native %s.%s%s", class.Name, method.Name, method.Descriptor)
	}
	v.log.Debug("executing native method", "class", class.Name, "method", method.Name)
	return cb(v, stack, receiver, args)
}

// newObjectOfClass allocates a new instance, running a garbage collection
// and retrying once on allocation failure; a second failure is fatal
// (spec.md §4.3), matching
// _examples/original_source/vm/src/vm.rs's new_object_of_class.
func (v *Vm) newObjectOfClass(class *Class) Ref {
	if ref, ok := v.heap.AllocObject(class.Id, class.NumTotalFields); ok {
		return ref
	}
	v.runGarbageCollection()
	ref, ok := v.heap.AllocObject(class.Id, class.NumTotalFields)
	if !ok {
		panic("cannot allocate object even after full garbage collection")
	}
	return ref
}

func (v *Vm) NewObject(stack *CallStack, className string) (Ref, MethodCallFailed) {
	class, failed := v.GetOrResolveClass(stack, className)
	if failed != nil {
		return 0, failed
	}
	return v.newObjectOfClass(class), nil
}

func (v *Vm) NewArray(elemType classfile.FieldType, length int) Ref {
	if ref, ok := v.heap.AllocArray(elemType, length); ok {
		return ref
	}
	v.runGarbageCollection()
	ref, ok := v.heap.AllocArray(elemType, length)
	if !ok {
		panic("cannot allocate array even after full garbage collection")
	}
	return ref
}

// CloneArray backs the supplemented java/lang/Object.clone() native for
// array receivers (SPEC_FULL.md, grounded on
// _examples/original_source/vm/src/vm.rs's clone_array). The source ref is
// pinned across NewArray: that allocation can trigger a GC that relocates
// it, and ref would otherwise be a plain Go local invisible to the
// collector's root scan (spec.md §4.4, §5).
func (v *Vm) CloneArray(ref Ref) Ref {
	elemType := v.heap.ArrayElementType(ref)
	length := v.heap.ArrayLength(ref)
	pinned := v.pinRef(ref)
	defer v.unpinRef(pinned)

	newRef := v.NewArray(elemType, length)
	for i := 0; i < length; i++ {
		v.copyArraySlot(pinned.Ref, newRef, i, i)
	}
	return newRef
}

func (v *Vm) copyArraySlot(src, dst Ref, srcIdx, dstIdx int) {
	elemType := v.heap.ArrayElementType(src)
	if elemType.IsReference() {
		v.heap.SetRef(dst, dstIdx, v.heap.GetRef(src, srcIdx))
		return
	}
	switch elemType.Base {
	case classfile.Long:
		v.heap.SetLong(dst, dstIdx, v.heap.GetLong(src, srcIdx))
	case classfile.Double:
		v.heap.SetDouble(dst, dstIdx, v.heap.GetDouble(src, srcIdx))
	case classfile.Float:
		v.heap.SetFloat(dst, dstIdx, v.heap.GetFloat(src, srcIdx))
	default:
		v.heap.SetInt(dst, dstIdx, v.heap.GetInt(src, srcIdx))
	}
}

func (v *Vm) AssociateStackTrace(throwable Ref, trace []StackTraceElement) {
	v.throwableStackTraces[v.heap.IdentityHash(throwable)] = trace
}

func (v *Vm) GetStackTrace(throwable Ref) ([]StackTraceElement, bool) {
	trace, ok := v.throwableStackTraces[v.heap.IdentityHash(throwable)]
	return trace, ok
}

func (v *Vm) DebugStats() {
	v.log.Debug("vm stats", "classes", len(v.statics), "heap_used", v.heap.Used(), "heap_max", v.heap.Max())
}

// HeapUsed and HeapMax back the inspect TUI's sparkline (cmd/inspect.go).
func (v *Vm) HeapUsed() uint32 { return v.heap.Used() }
func (v *Vm) HeapMax() uint32  { return v.heap.Max() }

// ArrayRefAt and ArrayLength expose read-only reference-array inspection to
// embedders (spec.md §6) that want to look at an array's contents from
// outside the package without reaching into the heap directly.
func (v *Vm) ArrayRefAt(arr Ref, index int) Ref { return v.heap.GetRef(arr, index) }
func (v *Vm) ArrayLength(arr Ref) int           { return v.heap.ArrayLength(arr) }

// ClassIdOf reports the class id an object reference was allocated with,
// for embedders reporting an uncaught exception's runtime type (spec.md
// §4.6).
func (v *Vm) ClassIdOf(ref Ref) ClassId { return v.heap.ObjectClassId(ref) }

// pinRef registers ref as a temporary extra GC root and returns the *Value
// cell holding it; callers must read the (possibly relocated) ref back via
// this cell, not the original local, and must call unpinRef once it is no
// longer needed (typically via defer).
func (v *Vm) pinRef(ref Ref) *Value {
	p := &Value{Kind: VObject, Ref: ref}
	v.pinned = append(v.pinned, p)
	return p
}

func (v *Vm) unpinRef(p *Value) {
	for i, q := range v.pinned {
		if q == p {
			v.pinned = append(v.pinned[:i], v.pinned[i+1:]...)
			return
		}
	}
}

func (v *Vm) runGarbageCollection() {
	// Map values aren't addressable in Go, so copy each static reference
	// into an addressable slice first; the collector updates these in
	// place, and we write the (possibly moved) references back afterwards.
	classIds := make([]ClassId, 0, len(v.statics))
	staticValues := make([]Value, 0, len(v.statics))
	for classId, ref := range v.statics {
		classIds = append(classIds, classId)
		staticValues = append(staticValues, ObjectValue(ref))
	}

	var roots []*Value
	for i := range staticValues {
		roots = append(roots, &staticValues[i])
	}
	for _, cs := range v.callStacks {
		roots = append(roots, cs.GCRoots()...)
	}
	roots = append(roots, v.pinned...)

	v.log.Debug("running garbage collection", "roots", len(roots))
	v.heap.Collect(roots, v.classManager)

	for i, classId := range classIds {
		v.statics[classId] = staticValues[i].Ref
	}
}
