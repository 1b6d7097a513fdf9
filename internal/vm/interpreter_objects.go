package vm

import "github.com/mabhi256/jdiag-vm/internal/classfile"

func isObjectFieldArrayOp(op classfile.Opcode) bool {
	switch op {
	case classfile.OpNew, classfile.OpGetfield, classfile.OpPutfield,
		classfile.OpGetstatic, classfile.OpPutstatic,
		classfile.OpInstanceof, classfile.OpCheckcast,
		classfile.OpArraylength, classfile.OpNewarray, classfile.OpAnewarray,
		classfile.OpIaload, classfile.OpLaload, classfile.OpFaload, classfile.OpDaload,
		classfile.OpAaload, classfile.OpBaload, classfile.OpCaload, classfile.OpSaload,
		classfile.OpIastore, classfile.OpLastore, classfile.OpFastore, classfile.OpDastore,
		classfile.OpAastore, classfile.OpBastore, classfile.OpCastore, classfile.OpSastore:
		return true
	default:
		return false
	}
}

func execObjectFieldArray(v *Vm, stack *CallStack, frame *CallFrame, insn classfile.Instruction) MethodCallFailed {
	s := frame.Stack
	switch insn.Opcode {
	case classfile.OpNew:
		className, err := frame.Class.Constants.ClassName(insn.U2())
		if err != nil {
			return internalErr(ClassLoadingError, "%v", err)
		}
		class, failed := v.GetOrResolveClass(stack, className)
		if failed != nil {
			return failed
		}
		ref := v.newObjectOfClass(class)
		if v.isThrowableClass(class) {
			v.AssociateStackTrace(ref, stack.StackTraceElements())
		}
		return asFailed(s.Push(ObjectValue(ref)))

	case classfile.OpGetfield:
		return execGetfield(v, frame, insn)
	case classfile.OpPutfield:
		return execPutfield(v, frame, insn)
	case classfile.OpGetstatic:
		return execGetstatic(v, stack, frame, insn)
	case classfile.OpPutstatic:
		return execPutstatic(v, stack, frame, insn)

	case classfile.OpInstanceof:
		return execInstanceof(v, stack, frame, insn)
	case classfile.OpCheckcast:
		return execCheckcast(v, stack, frame, insn)

	case classfile.OpArraylength:
		ref, err := s.Pop()
		if err != nil {
			return asFailed(err)
		}
		if ref.Kind != VObject {
			return internalErr(NullPointerException, "arraylength on null")
		}
		return asFailed(s.Push(IntValue(int32(v.heapArrayLength(ref.Ref)))))

	case classfile.OpNewarray:
		return execNewarray(v, frame, insn)
	case classfile.OpAnewarray:
		return execAnewarray(v, stack, frame, insn)

	case classfile.OpIaload, classfile.OpLaload, classfile.OpFaload, classfile.OpDaload,
		classfile.OpAaload, classfile.OpBaload, classfile.OpCaload, classfile.OpSaload:
		return execArrayLoad(v, frame, insn.Opcode)

	case classfile.OpIastore, classfile.OpLastore, classfile.OpFastore, classfile.OpDastore,
		classfile.OpAastore, classfile.OpBastore, classfile.OpCastore, classfile.OpSastore:
		return execArrayStore(v, frame, insn.Opcode)

	default:
		return internalErr(NotImplemented, "opcode %s", insn.Opcode)
	}
}

func (v *Vm) heapArrayLength(ref Ref) int { return v.heap.ArrayLength(ref) }

// fieldrefName resolves a getfield/putfield/getstatic/putstatic instruction's
// constant-pool Fieldref to its declared class name and field name (the
// descriptor is not needed: resolution is by name, against the object's
// run-time class for getfield/putfield per spec.md §4.5 and §9's Open
// Question resolution, and against the declared class for
// getstatic/putstatic).
func fieldrefName(frame *CallFrame, insn classfile.Instruction) (className, fieldName string, err error) {
	info, err := frame.Class.Constants.Fieldref(insn.U2())
	if err != nil {
		return "", "", err
	}
	return info.ClassName, info.Name, nil
}

func execGetfield(v *Vm, frame *CallFrame, insn classfile.Instruction) MethodCallFailed {
	_, fieldName, err := fieldrefName(frame, insn)
	if err != nil {
		return internalErr(ClassLoadingError, "%v", err)
	}
	objVal, perr := frame.Stack.Pop()
	if perr != nil {
		return asFailed(perr)
	}
	if objVal.Kind != VObject {
		return internalErr(NullPointerException, "getfield on null")
	}
	class, verr := v.GetClassById(v.heap.ObjectClassId(objVal.Ref))
	if verr != nil {
		return &InternalError{Err: verr}
	}
	field, slot := class.FindField(fieldName)
	if field == nil {
		return internalErr(FieldNotFoundException, "%s.%s", class.Name, fieldName)
	}
	return asFailed(frame.Stack.Push(readField(v.heap, objVal.Ref, slot, field.Type)))
}

func execPutfield(v *Vm, frame *CallFrame, insn classfile.Instruction) MethodCallFailed {
	_, fieldName, err := fieldrefName(frame, insn)
	if err != nil {
		return internalErr(ClassLoadingError, "%v", err)
	}
	value, perr := frame.Stack.Pop()
	if perr != nil {
		return asFailed(perr)
	}
	objVal, perr := frame.Stack.Pop()
	if perr != nil {
		return asFailed(perr)
	}
	if objVal.Kind != VObject {
		return internalErr(NullPointerException, "putfield on null")
	}
	class, verr := v.GetClassById(v.heap.ObjectClassId(objVal.Ref))
	if verr != nil {
		return &InternalError{Err: verr}
	}
	field, slot := class.FindField(fieldName)
	if field == nil {
		return internalErr(FieldNotFoundException, "%s.%s", class.Name, fieldName)
	}
	if !valueMatchesType(value, field.Type) {
		return internalErr(ValidationException, "putfield %s.%s: value kind %s does not match %s",
			class.Name, fieldName, value.Kind, field.Type)
	}
	writeField(v.heap, objVal.Ref, slot, field.Type, value)
	return nil
}

func execGetstatic(v *Vm, stack *CallStack, frame *CallFrame, insn classfile.Instruction) MethodCallFailed {
	className, fieldName, err := fieldrefName(frame, insn)
	if err != nil {
		return internalErr(ClassLoadingError, "%v", err)
	}
	class, failed := v.GetOrResolveClass(stack, className)
	if failed != nil {
		return failed
	}
	field, slot := class.FindField(fieldName)
	if field == nil {
		return internalErr(FieldNotFoundException, "%s.%s", className, fieldName)
	}
	static, ok := v.GetStaticInstance(class.Id)
	if !ok {
		return internalErr(ValidationException, "no static instance for %s", className)
	}
	return asFailed(frame.Stack.Push(readField(v.heap, static, slot, field.Type)))
}

func execPutstatic(v *Vm, stack *CallStack, frame *CallFrame, insn classfile.Instruction) MethodCallFailed {
	className, fieldName, err := fieldrefName(frame, insn)
	if err != nil {
		return internalErr(ClassLoadingError, "%v", err)
	}
	class, failed := v.GetOrResolveClass(stack, className)
	if failed != nil {
		return failed
	}
	field, slot := class.FindField(fieldName)
	if field == nil {
		return internalErr(FieldNotFoundException, "%s.%s", className, fieldName)
	}
	value, perr := frame.Stack.Pop()
	if perr != nil {
		return asFailed(perr)
	}
	if !valueMatchesType(value, field.Type) {
		return internalErr(ValidationException, "putstatic %s.%s: value kind %s does not match %s",
			className, fieldName, value.Kind, field.Type)
	}
	static, ok := v.GetStaticInstance(class.Id)
	if !ok {
		return internalErr(ValidationException, "no static instance for %s", className)
	}
	writeField(v.heap, static, slot, field.Type, value)
	return nil
}

func readField(h *Heap, obj Ref, slot int, t classfile.FieldType) Value {
	if t.IsReference() {
		return ObjectValue(h.GetRef(obj, slot))
	}
	switch t.Base {
	case classfile.Long:
		return LongValue(h.GetLong(obj, slot))
	case classfile.Double:
		return DoubleValue(h.GetDouble(obj, slot))
	case classfile.Float:
		return FloatValue(h.GetFloat(obj, slot))
	default:
		return IntValue(h.GetInt(obj, slot))
	}
}

func writeField(h *Heap, obj Ref, slot int, t classfile.FieldType, v Value) {
	if t.IsReference() {
		h.SetRef(obj, slot, refIdentity(v))
		return
	}
	switch t.Base {
	case classfile.Long:
		h.SetLong(obj, slot, v.Long)
	case classfile.Double:
		h.SetDouble(obj, slot, v.Double)
	case classfile.Float:
		h.SetFloat(obj, slot, v.Float)
	default:
		h.SetInt(obj, slot, v.Int)
	}
}

// valueMatchesType validates a value against a declared field/parameter
// type before a store (spec.md §4.5's "validate value type").
func valueMatchesType(v Value, t classfile.FieldType) bool {
	if t.IsReference() {
		return v.IsReference()
	}
	switch t.Base {
	case classfile.Long:
		return v.Kind == VLong
	case classfile.Double:
		return v.Kind == VDouble
	case classfile.Float:
		return v.Kind == VFloat
	default: // Byte, Char, Short, Boolean, Int all travel as Int
		return v.Kind == VInt
	}
}

// execInstanceof and execCheckcast peek the operand rather than popping it
// before resolving the target class: class resolution can run <clinit>,
// which allocates and may trigger a GC (spec.md §4.4, §5), and a popped
// reference sitting in a plain Go local is invisible to the collector's
// root scan. Keeping the value on the operand stack until after resolution
// lets the collector relocate it in place like any other live root; it is
// only popped (re-read, post-GC) once resolution has returned.
func execInstanceof(v *Vm, stack *CallStack, frame *CallFrame, insn classfile.Instruction) MethodCallFailed {
	top, err := peekTop(frame.Stack)
	if err != nil {
		return asFailed(err)
	}
	if top.Kind == VNull || top.Ref.IsNull() {
		if _, err := frame.Stack.Pop(); err != nil {
			return asFailed(err)
		}
		return asFailed(frame.Stack.Push(IntValue(0)))
	}
	target, failed := resolveClassOperand(v, stack, frame, insn)
	if failed != nil {
		return failed
	}
	val, err := frame.Stack.Pop()
	if err != nil {
		return asFailed(err)
	}
	objClass, verr := v.GetClassById(v.heap.ObjectClassId(val.Ref))
	if verr != nil {
		return &InternalError{Err: verr}
	}
	result := int32(0)
	if objClass.IsSubclassOf(target) {
		result = 1
	}
	return asFailed(frame.Stack.Push(IntValue(result)))
}

func execCheckcast(v *Vm, stack *CallStack, frame *CallFrame, insn classfile.Instruction) MethodCallFailed {
	top, err := peekTop(frame.Stack)
	if err != nil {
		return asFailed(err)
	}
	if top.Kind == VNull || top.Ref.IsNull() {
		return nil // value is already in place atop the stack
	}
	target, failed := resolveClassOperand(v, stack, frame, insn)
	if failed != nil {
		return failed
	}
	val, err := frame.Stack.Pop()
	if err != nil {
		return asFailed(err)
	}
	objClass, verr := v.GetClassById(v.heap.ObjectClassId(val.Ref))
	if verr != nil {
		return &InternalError{Err: verr}
	}
	if !objClass.IsSubclassOf(target) {
		return internalErr(ClassCastException, "cannot cast %s to %s", objClass.Name, target.Name)
	}
	return asFailed(frame.Stack.Push(val))
}

// peekTop reads the operand stack's top slot without removing it.
func peekTop(s *ValueStack) (Value, error) {
	if s.Len() == 0 {
		return Value{}, newVmErr(ValidationException, "operand stack underflow")
	}
	return s.Get(s.Len() - 1), nil
}

func resolveClassOperand(v *Vm, stack *CallStack, frame *CallFrame, insn classfile.Instruction) (*Class, MethodCallFailed) {
	className, err := frame.Class.Constants.ClassName(insn.U2())
	if err != nil {
		return nil, internalErr(ClassLoadingError, "%v", err)
	}
	return v.GetOrResolveClass(stack, className)
}

// newarrayBaseType maps a newarray operand byte to its primitive type, per
// JVMS Table 6.5 (4=boolean .. 11=long).
func newarrayBaseType(code uint8) (classfile.BaseType, bool) {
	switch code {
	case 4:
		return classfile.Boolean, true
	case 5:
		return classfile.Char, true
	case 6:
		return classfile.Float, true
	case 7:
		return classfile.Double, true
	case 8:
		return classfile.Byte, true
	case 9:
		return classfile.Short, true
	case 10:
		return classfile.Int, true
	case 11:
		return classfile.Long, true
	default:
		return 0, false
	}
}

func execNewarray(v *Vm, frame *CallFrame, insn classfile.Instruction) MethodCallFailed {
	base, ok := newarrayBaseType(insn.U1())
	if !ok {
		return internalErr(ValidationException, "invalid newarray type code %d", insn.U1())
	}
	lengthVal, err := frame.Stack.Pop()
	if err != nil {
		return asFailed(err)
	}
	if lengthVal.Kind != VInt {
		return internalErr(ValidationException, "newarray length must be int")
	}
	if lengthVal.Int < 0 {
		return internalErr(ValidationException, "negative array size")
	}
	ref := v.NewArray(classfile.FieldType{Kind: classfile.KindBase, Base: base}, int(lengthVal.Int))
	return asFailed(frame.Stack.Push(ObjectValue(ref)))
}

func execAnewarray(v *Vm, stack *CallStack, frame *CallFrame, insn classfile.Instruction) MethodCallFailed {
	className, err := frame.Class.Constants.ClassName(insn.U2())
	if err != nil {
		return internalErr(ClassLoadingError, "%v", err)
	}
	lengthVal, perr := frame.Stack.Pop()
	if perr != nil {
		return asFailed(perr)
	}
	if lengthVal.Kind != VInt {
		return internalErr(ValidationException, "anewarray length must be int")
	}
	if lengthVal.Int < 0 {
		return internalErr(ValidationException, "negative array size")
	}
	if _, failed := v.GetOrResolveClass(stack, className); failed != nil {
		return failed
	}
	elemType := classfile.FieldType{Kind: classfile.KindObject, ClassName: className}
	ref := v.NewArray(elemType, int(lengthVal.Int))
	return asFailed(frame.Stack.Push(ObjectValue(ref)))
}

func arrayIndexArgs(frame *CallFrame) (arrayRef Ref, index int32, failed MethodCallFailed) {
	idxVal, err := frame.Stack.Pop()
	if err != nil {
		return 0, 0, asFailed(err)
	}
	arrVal, err := frame.Stack.Pop()
	if err != nil {
		return 0, 0, asFailed(err)
	}
	if idxVal.Kind != VInt {
		return 0, 0, internalErr(ValidationException, "array index must be int")
	}
	if arrVal.Kind != VObject {
		return 0, 0, internalErr(NullPointerException, "array access on null")
	}
	return arrVal.Ref, idxVal.Int, nil
}

func checkArrayBounds(h *Heap, ref Ref, index int32) MethodCallFailed {
	if index < 0 || int(index) >= h.ArrayLength(ref) {
		return internalErr(ArrayIndexOutOfBoundsException, "index %d out of bounds for length %d", index, h.ArrayLength(ref))
	}
	return nil
}

func execArrayLoad(v *Vm, frame *CallFrame, op classfile.Opcode) MethodCallFailed {
	ref, index, failed := arrayIndexArgs(frame)
	if failed != nil {
		return failed
	}
	if failed := checkArrayBounds(v.heap, ref, index); failed != nil {
		return failed
	}
	elemType := v.heap.ArrayElementType(ref)
	if !arrayLoadOpMatches(op, elemType) {
		return internalErr(ValidationException, "%s on array of %s", op, elemType)
	}
	return asFailed(frame.Stack.Push(readArraySlot(v.heap, ref, int(index), elemType)))
}

func arrayLoadOpMatches(op classfile.Opcode, elemType classfile.FieldType) bool {
	switch op {
	case classfile.OpAaload:
		return elemType.IsReference()
	case classfile.OpIaload:
		return elemType.Kind == classfile.KindBase && elemType.Base == classfile.Int
	case classfile.OpLaload:
		return elemType.Kind == classfile.KindBase && elemType.Base == classfile.Long
	case classfile.OpFaload:
		return elemType.Kind == classfile.KindBase && elemType.Base == classfile.Float
	case classfile.OpDaload:
		return elemType.Kind == classfile.KindBase && elemType.Base == classfile.Double
	case classfile.OpBaload:
		return elemType.Kind == classfile.KindBase && (elemType.Base == classfile.Byte || elemType.Base == classfile.Boolean)
	case classfile.OpCaload:
		return elemType.Kind == classfile.KindBase && elemType.Base == classfile.Char
	case classfile.OpSaload:
		return elemType.Kind == classfile.KindBase && elemType.Base == classfile.Short
	default:
		return false
	}
}

func execArrayStore(v *Vm, frame *CallFrame, op classfile.Opcode) MethodCallFailed {
	value, err := frame.Stack.Pop()
	if err != nil {
		return asFailed(err)
	}
	ref, index, failed := arrayIndexArgs(frame)
	if failed != nil {
		return failed
	}
	if failed := checkArrayBounds(v.heap, ref, index); failed != nil {
		return failed
	}
	elemType := v.heap.ArrayElementType(ref)
	if !arrayLoadOpMatches(storeToLoadOp(op), elemType) {
		return internalErr(ValidationException, "%s on array of %s", op, elemType)
	}
	if op == classfile.OpAastore {
		if value.Kind == VObject && elemType.Kind == classfile.KindObject {
			valClass, verr := v.GetClassById(v.heap.ObjectClassId(value.Ref))
			if verr != nil {
				return &InternalError{Err: verr}
			}
			elemClass, ok := v.FindClassByName(elemType.ClassName)
			if ok && !valClass.IsSubclassOf(elemClass) {
				// ArrayStoreException, surfaced as a validation error in the
				// simplified model (spec.md §4.5).
				return internalErr(ValidationException, "array store: %s is not assignable to %s", valClass.Name, elemType.ClassName)
			}
		}
	}
	writeArraySlot(v.heap, ref, int(index), elemType, value)
	return nil
}

func storeToLoadOp(op classfile.Opcode) classfile.Opcode {
	switch op {
	case classfile.OpIastore:
		return classfile.OpIaload
	case classfile.OpLastore:
		return classfile.OpLaload
	case classfile.OpFastore:
		return classfile.OpFaload
	case classfile.OpDastore:
		return classfile.OpDaload
	case classfile.OpAastore:
		return classfile.OpAaload
	case classfile.OpBastore:
		return classfile.OpBaload
	case classfile.OpCastore:
		return classfile.OpCaload
	case classfile.OpSastore:
		return classfile.OpSaload
	default:
		return op
	}
}
