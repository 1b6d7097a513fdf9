package vm

import (
	"math"

	"github.com/mabhi256/jdiag-vm/internal/classfile"
)

func isArithmeticOp(op classfile.Opcode) bool {
	switch op {
	case classfile.OpIadd, classfile.OpLadd, classfile.OpFadd, classfile.OpDadd,
		classfile.OpIsub, classfile.OpLsub, classfile.OpFsub, classfile.OpDsub,
		classfile.OpImul, classfile.OpLmul, classfile.OpFmul, classfile.OpDmul,
		classfile.OpIdiv, classfile.OpLdiv, classfile.OpFdiv, classfile.OpDdiv,
		classfile.OpIrem, classfile.OpLrem, classfile.OpFrem, classfile.OpDrem,
		classfile.OpIneg, classfile.OpLneg, classfile.OpFneg, classfile.OpDneg,
		classfile.OpIshl, classfile.OpLshl, classfile.OpIshr, classfile.OpLshr,
		classfile.OpIushr, classfile.OpLushr,
		classfile.OpIand, classfile.OpLand, classfile.OpIor, classfile.OpLor,
		classfile.OpIxor, classfile.OpLxor,
		classfile.OpLcmp, classfile.OpFcmpl, classfile.OpFcmpg, classfile.OpDcmpl, classfile.OpDcmpg:
		return true
	default:
		return false
	}
}

// execArithmetic implements spec.md §4.5's arithmetic group: two's-complement
// wrapping add/sub/mul (Go's int32/int64 arithmetic already wraps that way),
// divide-by-zero as ArithmeticException, 5-bit/6-bit shift-count masking,
// and the IEEE-754 NaN rules for float/double compare and div/rem.
func execArithmetic(frame *CallFrame, insn classfile.Instruction) MethodCallFailed {
	s := frame.Stack
	op := insn.Opcode

	if isUnaryArith(op) {
		v, err := s.Pop()
		if err != nil {
			return asFailed(err)
		}
		result, failed := negate(op, v)
		if failed != nil {
			return failed
		}
		return asFailed(s.Push(result))
	}

	b, err := s.Pop()
	if err != nil {
		return asFailed(err)
	}
	a, err := s.Pop()
	if err != nil {
		return asFailed(err)
	}
	result, failed := binaryArith(op, a, b)
	if failed != nil {
		return failed
	}
	return asFailed(s.Push(result))
}

func isUnaryArith(op classfile.Opcode) bool {
	switch op {
	case classfile.OpIneg, classfile.OpLneg, classfile.OpFneg, classfile.OpDneg:
		return true
	default:
		return false
	}
}

func negate(op classfile.Opcode, v Value) (Value, MethodCallFailed) {
	switch op {
	case classfile.OpIneg:
		return IntValue(-v.Int), nil
	case classfile.OpLneg:
		return LongValue(-v.Long), nil
	case classfile.OpFneg:
		return FloatValue(-v.Float), nil
	case classfile.OpDneg:
		return DoubleValue(-v.Double), nil
	default:
		return Value{}, internalErr(ValidationException, "not a unary arithmetic opcode: %s", op)
	}
}

func binaryArith(op classfile.Opcode, a, b Value) (Value, MethodCallFailed) {
	switch op {
	case classfile.OpIadd:
		return IntValue(a.Int + b.Int), nil
	case classfile.OpIsub:
		return IntValue(a.Int - b.Int), nil
	case classfile.OpImul:
		return IntValue(a.Int * b.Int), nil
	case classfile.OpIdiv:
		if b.Int == 0 {
			return Value{}, internalErr(ArithmeticException, "/ by zero")
		}
		return IntValue(a.Int / b.Int), nil
	case classfile.OpIrem:
		if b.Int == 0 {
			return Value{}, internalErr(ArithmeticException, "/ by zero")
		}
		return IntValue(a.Int % b.Int), nil
	case classfile.OpIand:
		return IntValue(a.Int & b.Int), nil
	case classfile.OpIor:
		return IntValue(a.Int | b.Int), nil
	case classfile.OpIxor:
		return IntValue(a.Int ^ b.Int), nil
	case classfile.OpIshl:
		return IntValue(a.Int << (uint32(b.Int) & 0x1F)), nil
	case classfile.OpIshr:
		return IntValue(a.Int >> (uint32(b.Int) & 0x1F)), nil
	case classfile.OpIushr:
		return IntValue(int32(uint32(a.Int) >> (uint32(b.Int) & 0x1F))), nil

	case classfile.OpLadd:
		return LongValue(a.Long + b.Long), nil
	case classfile.OpLsub:
		return LongValue(a.Long - b.Long), nil
	case classfile.OpLmul:
		return LongValue(a.Long * b.Long), nil
	case classfile.OpLdiv:
		if b.Long == 0 {
			return Value{}, internalErr(ArithmeticException, "/ by zero")
		}
		return LongValue(a.Long / b.Long), nil
	case classfile.OpLrem:
		if b.Long == 0 {
			return Value{}, internalErr(ArithmeticException, "/ by zero")
		}
		return LongValue(a.Long % b.Long), nil
	case classfile.OpLand:
		return LongValue(a.Long & b.Long), nil
	case classfile.OpLor:
		return LongValue(a.Long | b.Long), nil
	case classfile.OpLxor:
		return LongValue(a.Long ^ b.Long), nil
	// Long shifts take an int right-hand side, masked to 6 bits (spec.md
	// §4.5), unlike the int shifts' 5-bit mask.
	case classfile.OpLshl:
		return LongValue(a.Long << (uint64(uint32(b.Int)) & 0x3F)), nil
	case classfile.OpLshr:
		return LongValue(a.Long >> (uint64(uint32(b.Int)) & 0x3F)), nil
	case classfile.OpLushr:
		return LongValue(int64(uint64(a.Long) >> (uint64(uint32(b.Int)) & 0x3F))), nil

	case classfile.OpFadd:
		return FloatValue(a.Float + b.Float), nil
	case classfile.OpFsub:
		return FloatValue(a.Float - b.Float), nil
	case classfile.OpFmul:
		return FloatValue(a.Float * b.Float), nil
	case classfile.OpFdiv:
		return FloatValue(a.Float / b.Float), nil
	case classfile.OpFrem:
		return FloatValue(float32(math.Mod(float64(a.Float), float64(b.Float)))), nil

	case classfile.OpDadd:
		return DoubleValue(a.Double + b.Double), nil
	case classfile.OpDsub:
		return DoubleValue(a.Double - b.Double), nil
	case classfile.OpDmul:
		return DoubleValue(a.Double * b.Double), nil
	case classfile.OpDdiv:
		return DoubleValue(a.Double / b.Double), nil
	case classfile.OpDrem:
		return DoubleValue(math.Mod(a.Double, b.Double)), nil

	case classfile.OpLcmp:
		return IntValue(signOf3Way(a.Long < b.Long, a.Long > b.Long)), nil
	case classfile.OpFcmpl:
		return IntValue(compareNaNAware(float64(a.Float), float64(b.Float), -1)), nil
	case classfile.OpFcmpg:
		return IntValue(compareNaNAware(float64(a.Float), float64(b.Float), 1)), nil
	case classfile.OpDcmpl:
		return IntValue(compareNaNAware(a.Double, b.Double, -1)), nil
	case classfile.OpDcmpg:
		return IntValue(compareNaNAware(a.Double, b.Double, 1)), nil

	default:
		return Value{}, internalErr(ValidationException, "not a binary arithmetic opcode: %s", op)
	}
}

func signOf3Way(less, greater bool) int32 {
	switch {
	case less:
		return -1
	case greater:
		return 1
	default:
		return 0
	}
}

// compareNaNAware implements fcmpg/dcmpg (nanResult=+1) and fcmpl/dcmpl
// (nanResult=-1) per spec.md §4.5: NaN compares as the given sentinel,
// Go's float comparisons otherwise already give the right answer since
// `NaN < x` and `NaN > x` are both false, which this NaN check overrides.
func compareNaNAware(a, b float64, nanResult int32) int32 {
	if math.IsNaN(a) || math.IsNaN(b) {
		return nanResult
	}
	return signOf3Way(a < b, a > b)
}

func isConversionOp(op classfile.Opcode) bool {
	switch op {
	case classfile.OpI2l, classfile.OpI2f, classfile.OpI2d,
		classfile.OpL2i, classfile.OpL2f, classfile.OpL2d,
		classfile.OpF2i, classfile.OpF2l, classfile.OpF2d,
		classfile.OpD2i, classfile.OpD2l, classfile.OpD2f,
		classfile.OpI2b, classfile.OpI2c, classfile.OpI2s:
		return true
	default:
		return false
	}
}

// execConversion implements spec.md §4.5's numeric conversions: i2b/i2c/i2s
// narrow by bit-casting (no saturation — these truncate, matching JVMS);
// the float/double-to-integral conversions saturate toward the target
// type's limits and map NaN to zero, per JVMS's f2i/f2l/d2i/d2l semantics
// that spec.md's "saturation toward the limits" refers to.
func execConversion(frame *CallFrame, insn classfile.Instruction) MethodCallFailed {
	v, err := frame.Stack.Pop()
	if err != nil {
		return asFailed(err)
	}
	var result Value
	switch insn.Opcode {
	case classfile.OpI2l:
		result = LongValue(int64(v.Int))
	case classfile.OpI2f:
		result = FloatValue(float32(v.Int))
	case classfile.OpI2d:
		result = DoubleValue(float64(v.Int))
	case classfile.OpL2i:
		result = IntValue(int32(v.Long))
	case classfile.OpL2f:
		result = FloatValue(float32(v.Long))
	case classfile.OpL2d:
		result = DoubleValue(float64(v.Long))
	case classfile.OpF2i:
		result = IntValue(saturateToInt32(float64(v.Float)))
	case classfile.OpF2l:
		result = LongValue(saturateToInt64(float64(v.Float)))
	case classfile.OpF2d:
		result = DoubleValue(float64(v.Float))
	case classfile.OpD2i:
		result = IntValue(saturateToInt32(v.Double))
	case classfile.OpD2l:
		result = LongValue(saturateToInt64(v.Double))
	case classfile.OpD2f:
		result = FloatValue(float32(v.Double))
	case classfile.OpI2b:
		result = IntValue(int32(int8(v.Int)))
	case classfile.OpI2c:
		result = IntValue(int32(uint16(v.Int)))
	case classfile.OpI2s:
		result = IntValue(int32(int16(v.Int)))
	default:
		return internalErr(ValidationException, "not a conversion opcode: %s", insn.Opcode)
	}
	return asFailed(frame.Stack.Push(result))
}

func saturateToInt32(f float64) int32 {
	if math.IsNaN(f) {
		return 0
	}
	if f >= math.MaxInt32 {
		return math.MaxInt32
	}
	if f <= math.MinInt32 {
		return math.MinInt32
	}
	return int32(f)
}

func saturateToInt64(f float64) int64 {
	if math.IsNaN(f) {
		return 0
	}
	if f >= math.MaxInt64 {
		return math.MaxInt64
	}
	if f <= math.MinInt64 {
		return math.MinInt64
	}
	return int64(f)
}
