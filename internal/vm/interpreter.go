package vm

import "github.com/mabhi256/jdiag-vm/internal/classfile"

// asFailed lifts a plain error (as returned by ValueStack/CallStack helpers,
// always in practice a *VmError) into a MethodCallFailed.
func asFailed(err error) MethodCallFailed {
	if err == nil {
		return nil
	}
	if ve, ok := err.(*VmError); ok {
		return &InternalError{Err: ve}
	}
	return &InternalError{Err: newVmErr(ValidationException, "%v", err)}
}

// Execute runs frame's bytecode to completion: a normal return, or an
// uncaught/re-raised exception. It owns the fetch-decode-execute loop
// spec.md §4.5 describes, delegating exception handling to tryHandle
// (exceptions.go).
func Execute(v *Vm, stack *CallStack, frame *CallFrame) (Value, MethodCallFailed) {
	code := frame.Code.Bytes
	for {
		insn, nextPC, err := classfile.Decode(code, frame.PC)
		if err != nil {
			return Value{}, internalErr(ValidationException, "decoding %s.%s at pc %d: %v",
				frame.Class.Name, frame.Method.Name, frame.PC, err)
		}
		frame.PC = nextPC

		if insn.Unsupported() {
			return Value{}, internalErr(NotImplemented, "opcode %s", insn.Opcode)
		}

		atPC := insn.PC
		if v.StepHook != nil {
			v.StepHook(stack, frame, insn)
		}
		returned, retVal, failed := step(v, stack, frame, insn)
		if failed != nil {
			handled, reraise := tryHandle(v, frame, atPC, failed)
			if handled {
				continue
			}
			return Value{}, reraise
		}
		if returned {
			return retVal, nil
		}
	}
}

// step executes one decoded instruction against frame, returning whether
// the method returned (and its value), or a failure. Branch instructions
// mutate frame.PC directly instead of leaving the loop's post-decode
// advance in place.
func step(v *Vm, stack *CallStack, frame *CallFrame, insn classfile.Instruction) (returned bool, retVal Value, failed MethodCallFailed) {
	s := frame.Stack
	op := insn.Opcode

	switch op {
	// --- stack manipulation ---
	case classfile.OpNop:
	case classfile.OpPop:
		if _, err := s.Pop(); err != nil {
			return false, Value{}, asFailed(err)
		}
	case classfile.OpPop2:
		if _, err := s.Pop2(); err != nil {
			return false, Value{}, asFailed(err)
		}
	case classfile.OpDup:
		return false, Value{}, asFailed(s.Dup())
	case classfile.OpDupX1:
		return false, Value{}, asFailed(s.DupX1())
	case classfile.OpDupX2:
		return false, Value{}, asFailed(s.DupX2())
	case classfile.OpDup2:
		return false, Value{}, asFailed(s.Dup2())
	case classfile.OpDup2X1:
		return false, Value{}, asFailed(s.Dup2X1())
	case classfile.OpDup2X2:
		return false, Value{}, asFailed(s.Dup2X2())
	case classfile.OpSwap:
		return false, Value{}, asFailed(s.Swap())

	// --- constants ---
	case classfile.OpAconstNull:
		return false, Value{}, asFailed(s.Push(NullValue()))
	case classfile.OpIconstM1, classfile.OpIconst0, classfile.OpIconst1, classfile.OpIconst2,
		classfile.OpIconst3, classfile.OpIconst4, classfile.OpIconst5:
		return false, Value{}, asFailed(s.Push(IntValue(int32(op) - int32(classfile.OpIconst0))))
	case classfile.OpLconst0, classfile.OpLconst1:
		return false, Value{}, asFailed(s.Push(LongValue(int64(op) - int64(classfile.OpLconst0))))
	case classfile.OpFconst0, classfile.OpFconst1, classfile.OpFconst2:
		return false, Value{}, asFailed(s.Push(FloatValue(float32(op) - float32(classfile.OpFconst0))))
	case classfile.OpDconst0, classfile.OpDconst1:
		return false, Value{}, asFailed(s.Push(DoubleValue(float64(op) - float64(classfile.OpDconst0))))
	case classfile.OpBipush:
		return false, Value{}, asFailed(s.Push(IntValue(int32(insn.I1()))))
	case classfile.OpSipush:
		return false, Value{}, asFailed(s.Push(IntValue(int32(insn.I2()))))
	case classfile.OpLdc, classfile.OpLdcW, classfile.OpLdc2W:
		return false, Value{}, execLdc(v, stack, frame, insn)

	// --- loads ---
	case classfile.OpIload:
		return false, Value{}, loadIndexed(frame, int(insn.U1()), VInt)
	case classfile.OpLload:
		return false, Value{}, loadIndexed(frame, int(insn.U1()), VLong)
	case classfile.OpFload:
		return false, Value{}, loadIndexed(frame, int(insn.U1()), VFloat)
	case classfile.OpDload:
		return false, Value{}, loadIndexed(frame, int(insn.U1()), VDouble)
	case classfile.OpAload:
		return false, Value{}, loadReference(frame, int(insn.U1()))
	case classfile.OpIload0, classfile.OpIload1, classfile.OpIload2, classfile.OpIload3:
		return false, Value{}, loadIndexed(frame, int(op-classfile.OpIload0), VInt)
	case classfile.OpLload0, classfile.OpLload1, classfile.OpLload2, classfile.OpLload3:
		return false, Value{}, loadIndexed(frame, int(op-classfile.OpLload0), VLong)
	case classfile.OpFload0, classfile.OpFload1, classfile.OpFload2, classfile.OpFload3:
		return false, Value{}, loadIndexed(frame, int(op-classfile.OpFload0), VFloat)
	case classfile.OpDload0, classfile.OpDload1, classfile.OpDload2, classfile.OpDload3:
		return false, Value{}, loadIndexed(frame, int(op-classfile.OpDload0), VDouble)
	case classfile.OpAload0, classfile.OpAload1, classfile.OpAload2, classfile.OpAload3:
		return false, Value{}, loadReference(frame, int(op-classfile.OpAload0))

	// --- stores ---
	case classfile.OpIstore:
		return false, Value{}, storeIndexed(frame, int(insn.U1()), VInt)
	case classfile.OpLstore:
		return false, Value{}, storeIndexed(frame, int(insn.U1()), VLong)
	case classfile.OpFstore:
		return false, Value{}, storeIndexed(frame, int(insn.U1()), VFloat)
	case classfile.OpDstore:
		return false, Value{}, storeIndexed(frame, int(insn.U1()), VDouble)
	case classfile.OpAstore:
		return false, Value{}, storeReference(frame, int(insn.U1()))
	case classfile.OpIstore0, classfile.OpIstore1, classfile.OpIstore2, classfile.OpIstore3:
		return false, Value{}, storeIndexed(frame, int(op-classfile.OpIstore0), VInt)
	case classfile.OpLstore0, classfile.OpLstore1, classfile.OpLstore2, classfile.OpLstore3:
		return false, Value{}, storeIndexed(frame, int(op-classfile.OpLstore0), VLong)
	case classfile.OpFstore0, classfile.OpFstore1, classfile.OpFstore2, classfile.OpFstore3:
		return false, Value{}, storeIndexed(frame, int(op-classfile.OpFstore0), VFloat)
	case classfile.OpDstore0, classfile.OpDstore1, classfile.OpDstore2, classfile.OpDstore3:
		return false, Value{}, storeIndexed(frame, int(op-classfile.OpDstore0), VDouble)
	case classfile.OpAstore0, classfile.OpAstore1, classfile.OpAstore2, classfile.OpAstore3:
		return false, Value{}, storeReference(frame, int(op-classfile.OpAstore0))

	// --- control flow ---
	case classfile.OpGoto:
		frame.PC = branchTarget(insn)
	case classfile.OpIfeq, classfile.OpIfne, classfile.OpIflt, classfile.OpIfge, classfile.OpIfgt, classfile.OpIfle:
		return false, Value{}, execIfCond(frame, insn, op)
	case classfile.OpIfIcmpeq, classfile.OpIfIcmpne, classfile.OpIfIcmplt, classfile.OpIfIcmpge,
		classfile.OpIfIcmpgt, classfile.OpIfIcmple:
		return false, Value{}, execIfIcmp(frame, insn, op)
	case classfile.OpIfAcmpeq, classfile.OpIfAcmpne:
		return false, Value{}, execIfAcmp(frame, insn, op)
	case classfile.OpIfnull, classfile.OpIfnonnull:
		return false, Value{}, execIfNull(frame, insn, op)

	// --- returns ---
	case classfile.OpReturn:
		return true, Value{}, nil
	case classfile.OpIreturn, classfile.OpLreturn, classfile.OpFreturn, classfile.OpDreturn, classfile.OpAreturn:
		v, err := s.Pop()
		if err != nil {
			return false, Value{}, asFailed(err)
		}
		if !returnKindMatches(op, v.Kind) {
			return false, Value{}, internalErr(ValidationException, "return value kind %s does not match opcode %s", v.Kind, op)
		}
		return true, v, nil

	case classfile.OpAthrow:
		return false, Value{}, execAthrow(v, stack, frame)

	case classfile.OpIinc:
		idx, delta := insn.IincArgs()
		local := &frame.Locals[idx]
		if local.Kind != VInt {
			return false, Value{}, internalErr(ValidationException, "iinc on non-int local")
		}
		local.Int += int32(delta)

	case classfile.OpMonitorenter, classfile.OpMonitorexit:
		if _, err := s.Pop(); err != nil {
			return false, Value{}, asFailed(err)
		}

	default:
		return execOther(v, stack, frame, insn)
	}
	return false, Value{}, nil
}

// execOther dispatches the opcode groups implemented in the sibling
// interpreter_*.go files, keeping this file's switch to a manageable size.
func execOther(v *Vm, stack *CallStack, frame *CallFrame, insn classfile.Instruction) (bool, Value, MethodCallFailed) {
	op := insn.Opcode
	switch {
	case isArithmeticOp(op):
		return false, Value{}, execArithmetic(frame, insn)
	case isConversionOp(op):
		return false, Value{}, execConversion(frame, insn)
	case isObjectFieldArrayOp(op):
		return false, Value{}, execObjectFieldArray(v, stack, frame, insn)
	case isInvokeOp(op):
		return execInvoke(v, stack, frame, insn)
	default:
		return false, Value{}, internalErr(NotImplemented, "opcode %s", op)
	}
}

func branchTarget(insn classfile.Instruction) uint16 {
	return uint16(int32(insn.PC) + int32(insn.I2()))
}

func loadIndexed(frame *CallFrame, index int, want Kind) MethodCallFailed {
	v := frame.Locals[index]
	if v.Kind != want {
		return internalErr(ValidationException, "local %d is %s, expected %s", index, v.Kind, want)
	}
	return asFailed(frame.Stack.Push(v))
}

func loadReference(frame *CallFrame, index int) MethodCallFailed {
	v := frame.Locals[index]
	if !v.IsReference() {
		return internalErr(ValidationException, "local %d is %s, expected a reference", index, v.Kind)
	}
	return asFailed(frame.Stack.Push(v))
}

func storeIndexed(frame *CallFrame, index int, want Kind) MethodCallFailed {
	v, err := frame.Stack.Pop()
	if err != nil {
		return asFailed(err)
	}
	if v.Kind != want {
		return internalErr(ValidationException, "cannot store %s into %s local", v.Kind, want)
	}
	frame.Locals[index] = v
	return nil
}

func storeReference(frame *CallFrame, index int) MethodCallFailed {
	v, err := frame.Stack.Pop()
	if err != nil {
		return asFailed(err)
	}
	if !v.IsReference() {
		return internalErr(ValidationException, "cannot store %s into a reference local", v.Kind)
	}
	frame.Locals[index] = v
	return nil
}

func returnKindMatches(op classfile.Opcode, kind Kind) bool {
	switch op {
	case classfile.OpIreturn:
		return kind == VInt
	case classfile.OpLreturn:
		return kind == VLong
	case classfile.OpFreturn:
		return kind == VFloat
	case classfile.OpDreturn:
		return kind == VDouble
	case classfile.OpAreturn:
		return kind == VObject || kind == VNull
	default:
		return false
	}
}

func execIfCond(frame *CallFrame, insn classfile.Instruction, op classfile.Opcode) MethodCallFailed {
	v, err := frame.Stack.Pop()
	if err != nil {
		return asFailed(err)
	}
	if v.Kind != VInt {
		return internalErr(ValidationException, "if<cond> on non-int value")
	}
	if evalCmpToZero(op, v.Int) {
		frame.PC = branchTarget(insn)
	}
	return nil
}

func evalCmpToZero(op classfile.Opcode, n int32) bool {
	switch op {
	case classfile.OpIfeq:
		return n == 0
	case classfile.OpIfne:
		return n != 0
	case classfile.OpIflt:
		return n < 0
	case classfile.OpIfge:
		return n >= 0
	case classfile.OpIfgt:
		return n > 0
	case classfile.OpIfle:
		return n <= 0
	default:
		return false
	}
}

func execIfIcmp(frame *CallFrame, insn classfile.Instruction, op classfile.Opcode) MethodCallFailed {
	b, err := frame.Stack.Pop()
	if err != nil {
		return asFailed(err)
	}
	a, err := frame.Stack.Pop()
	if err != nil {
		return asFailed(err)
	}
	if a.Kind != VInt || b.Kind != VInt {
		return internalErr(ValidationException, "if_icmp<cond> on non-int values")
	}
	var taken bool
	switch op {
	case classfile.OpIfIcmpeq:
		taken = a.Int == b.Int
	case classfile.OpIfIcmpne:
		taken = a.Int != b.Int
	case classfile.OpIfIcmplt:
		taken = a.Int < b.Int
	case classfile.OpIfIcmpge:
		taken = a.Int >= b.Int
	case classfile.OpIfIcmpgt:
		taken = a.Int > b.Int
	case classfile.OpIfIcmple:
		taken = a.Int <= b.Int
	}
	if taken {
		frame.PC = branchTarget(insn)
	}
	return nil
}

func execIfAcmp(frame *CallFrame, insn classfile.Instruction, op classfile.Opcode) MethodCallFailed {
	b, err := frame.Stack.Pop()
	if err != nil {
		return asFailed(err)
	}
	a, err := frame.Stack.Pop()
	if err != nil {
		return asFailed(err)
	}
	if !a.IsReference() || !b.IsReference() {
		return internalErr(ValidationException, "if_acmp<cond> on non-reference values")
	}
	same := refIdentity(a) == refIdentity(b)
	if op == classfile.OpIfAcmpne {
		same = !same
	}
	if same {
		frame.PC = branchTarget(insn)
	}
	return nil
}

// refIdentity maps Null to the null reference for identity comparison
// purposes, regardless of its Kind tag.
func refIdentity(v Value) Ref {
	if v.Kind == VNull {
		return NullRef
	}
	return v.Ref
}

func execIfNull(frame *CallFrame, insn classfile.Instruction, op classfile.Opcode) MethodCallFailed {
	v, err := frame.Stack.Pop()
	if err != nil {
		return asFailed(err)
	}
	if !v.IsReference() {
		return internalErr(ValidationException, "ifnull/ifnonnull on non-reference value")
	}
	isNull := refIdentity(v).IsNull()
	if op == classfile.OpIfnonnull {
		isNull = !isNull
	}
	if isNull {
		frame.PC = branchTarget(insn)
	}
	return nil
}
