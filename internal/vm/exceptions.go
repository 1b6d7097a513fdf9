package vm

// execAthrow implements spec.md §4.5's athrow: pop a reference, require
// non-null, and raise it as a Java exception in flight.
func execAthrow(v *Vm, stack *CallStack, frame *CallFrame) MethodCallFailed {
	val, err := frame.Stack.Pop()
	if err != nil {
		return asFailed(err)
	}
	if val.Kind != VObject || val.Ref.IsNull() {
		return internalErr(NullPointerException, "athrow with a null exception")
	}
	return &ExceptionThrown{Exception: val.Ref}
}

// tryHandle implements the exception unwinder of spec.md §4.6 for one
// frame: internal errors (VmError-backed MethodCallFailed) never match a
// handler and always propagate; a Java exception in flight is matched
// against frame's exception table in declaration order, first entry whose
// range contains atPC and whose catch class is "any" or a superclass of
// the exception's run-time class wins. On match the frame's operand stack
// is cleared, the exception pushed, and pc set to the handler — execution
// resumes in the same frame, so the caller should continue its loop rather
// than unwind further.
func tryHandle(v *Vm, frame *CallFrame, atPC uint16, failed MethodCallFailed) (handled bool, reraise MethodCallFailed) {
	thrown, ok := failed.(*ExceptionThrown)
	if !ok {
		return false, failed
	}
	excClass, err := v.GetClassById(v.heap.ObjectClassId(thrown.Exception))
	if err != nil {
		return false, &InternalError{Err: err}
	}
	for _, ent := range frame.Code.ExceptionTable {
		if atPC < ent.StartPC || atPC >= ent.EndPC {
			continue
		}
		if ent.CatchClassName != "" {
			catchClass, ok := v.FindClassByName(ent.CatchClassName)
			if !ok || !excClass.IsSubclassOf(catchClass) {
				continue
			}
		}
		frame.Stack.Truncate(0)
		if perr := frame.Stack.Push(ObjectValue(thrown.Exception)); perr != nil {
			return false, asFailed(perr)
		}
		frame.PC = ent.HandlerPC
		return true, nil
	}
	return false, failed
}
