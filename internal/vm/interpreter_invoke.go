package vm

import "github.com/mabhi256/jdiag-vm/internal/classfile"

func isInvokeOp(op classfile.Opcode) bool {
	switch op {
	case classfile.OpInvokevirtual, classfile.OpInvokespecial,
		classfile.OpInvokestatic, classfile.OpInvokeinterface:
		return true
	default:
		return false
	}
}

// execInvoke implements spec.md §4.5's invocation procedure for all four
// invoke variants. invokestatic/invokespecial resolve the method directly
// on the constant pool's declared class (never via the receiver's runtime
// class); invokevirtual/invokeinterface dispatch on the receiver's actual
// class, walking class+superclass only, never interfaces, per the same
// section.
func execInvoke(v *Vm, stack *CallStack, frame *CallFrame, insn classfile.Instruction) (bool, Value, MethodCallFailed) {
	info, err := frame.Class.Constants.Methodref(insn.U2())
	if err != nil {
		return false, Value{}, internalErr(ClassLoadingError, "%v", err)
	}
	desc, derr := classfile.ParseMethodDescriptor(info.Descriptor)
	if derr != nil {
		return false, Value{}, internalErr(ValidationException, "%v", derr)
	}

	isStatic := insn.Opcode == classfile.OpInvokestatic

	// Resolve the constant pool's declared class first, while the
	// not-yet-popped receiver and arguments are still operand-stack slots
	// (and therefore still GC roots): resolution can run <clinit>, which
	// allocates and may trigger a collection (spec.md §4.4, §5). Popping
	// them into plain Go locals first would leave their references
	// invisible to the collector's root scan during that allocation.
	declClass, failed := v.GetOrResolveClass(stack, info.ClassName)
	if failed != nil {
		return false, Value{}, failed
	}

	args := make([]Value, len(desc.Parameters))
	for i := len(desc.Parameters) - 1; i >= 0; i-- {
		arg, perr := frame.Stack.Pop()
		if perr != nil {
			return false, Value{}, asFailed(perr)
		}
		if !valueMatchesType(arg, desc.Parameters[i]) {
			return false, Value{}, internalErr(ValidationException,
				"argument %d to %s.%s%s: kind %s does not match %s", i, info.ClassName, info.Name, info.Descriptor, arg.Kind, desc.Parameters[i])
		}
		args[i] = arg
	}

	var receiver *Ref
	if !isStatic {
		recv, perr := frame.Stack.Pop()
		if perr != nil {
			return false, Value{}, asFailed(perr)
		}
		if recv.Kind != VObject || recv.Ref.IsNull() {
			return false, Value{}, internalErr(NullPointerException, "invoking %s.%s on a null receiver", info.ClassName, info.Name)
		}
		receiver = &recv.Ref
	}

	var class *Class
	var method *classfile.Method
	switch insn.Opcode {
	case classfile.OpInvokestatic, classfile.OpInvokespecial:
		method, _ = declClass.FindMethod(info.Name, info.Descriptor)
		if method == nil {
			return false, Value{}, internalErr(MethodNotFoundException, "%s.%s%s", info.ClassName, info.Name, info.Descriptor)
		}
		class = declClass
	default: // invokevirtual, invokeinterface
		runtimeClass, verr := v.GetClassById(v.heap.ObjectClassId(*receiver))
		if verr != nil {
			return false, Value{}, &InternalError{Err: verr}
		}
		method, _ = runtimeClass.FindMethod(info.Name, info.Descriptor)
		if method == nil {
			return false, Value{}, internalErr(MethodNotFoundException, "%s.%s%s", runtimeClass.Name, info.Name, info.Descriptor)
		}
		class = runtimeClass
	}

	result, failed := v.Invoke(stack, class, method, receiver, args)
	if failed != nil {
		return false, Value{}, failed
	}

	if desc.ReturnType == nil {
		return false, Value{}, nil
	}
	if !valueMatchesType(result, *desc.ReturnType) {
		return false, Value{}, internalErr(ValidationException,
			"%s.%s%s returned %s, expected %s", class.Name, method.Name, method.Descriptor, result.Kind, desc.ReturnType)
	}
	return false, Value{}, asFailed(frame.Stack.Push(result))
}

// execLdc implements ldc/ldc_w/ldc2_w: int/float/long/double constants push
// directly; strings and class literals are materialised as heap objects
// (spec.md §4.5, §6).
func execLdc(v *Vm, stack *CallStack, frame *CallFrame, insn classfile.Instruction) MethodCallFailed {
	var index uint16
	if insn.Opcode == classfile.OpLdc {
		index = uint16(insn.U1())
	} else {
		index = insn.U2()
	}
	loadable, err := frame.Class.Constants.Loadable(index)
	if err != nil {
		return internalErr(ClassLoadingError, "%v", err)
	}
	switch loadable.Kind {
	case classfile.LoadableInt:
		return asFailed(frame.Stack.Push(IntValue(loadable.IntValue)))
	case classfile.LoadableFloat:
		return asFailed(frame.Stack.Push(FloatValue(loadable.FloatValue)))
	case classfile.LoadableLong:
		return asFailed(frame.Stack.Push(LongValue(loadable.LongValue)))
	case classfile.LoadableDouble:
		return asFailed(frame.Stack.Push(DoubleValue(loadable.DoubleValue)))
	case classfile.LoadableString:
		ref, failed := v.NewJavaString(stack, loadable.StringValue)
		if failed != nil {
			return failed
		}
		return asFailed(frame.Stack.Push(ObjectValue(ref)))
	case classfile.LoadableClass:
		ref, failed := v.NewClassLiteral(stack, loadable.ClassName)
		if failed != nil {
			return failed
		}
		return asFailed(frame.Stack.Push(ObjectValue(ref)))
	default:
		return internalErr(ValidationException, "unsupported ldc constant kind")
	}
}
