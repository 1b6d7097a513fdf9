package classfile

import "testing"

func TestDecodeNoOperand(t *testing.T) {
	code := []byte{byte(OpNop), byte(OpIadd)}
	insn, next, err := Decode(code, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if insn.Opcode != OpNop || len(insn.Operands) != 0 {
		t.Errorf("expected a bare nop, got %+v", insn)
	}
	if next != 1 {
		t.Errorf("expected next pc 1, got %d", next)
	}
}

func TestDecodeOneByteOperand(t *testing.T) {
	code := []byte{byte(OpBipush), 0x7F}
	insn, next, err := Decode(code, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if insn.I1() != 127 {
		t.Errorf("expected bipush operand 127, got %d", insn.I1())
	}
	if next != 2 {
		t.Errorf("expected next pc 2, got %d", next)
	}
}

func TestDecodeTwoByteOperand(t *testing.T) {
	code := []byte{byte(OpSipush), 0x01, 0x00}
	insn, next, err := Decode(code, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if insn.I2() != 256 {
		t.Errorf("expected sipush operand 256, got %d", insn.I2())
	}
	if next != 3 {
		t.Errorf("expected next pc 3, got %d", next)
	}
}

func TestDecodeIincArgs(t *testing.T) {
	code := []byte{byte(OpIinc), 3, 0xFF} // local 3, const -1
	insn, _, err := Decode(code, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	index, value := insn.IincArgs()
	if index != 3 || value != -1 {
		t.Errorf("expected (3, -1), got (%d, %d)", index, value)
	}
}

func TestDecodeAtPCOffset(t *testing.T) {
	code := []byte{byte(OpNop), byte(OpBipush), 9}
	insn, next, err := Decode(code, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if insn.PC != 1 || insn.I1() != 9 {
		t.Errorf("expected bipush 9 at pc 1, got %+v", insn)
	}
	if next != 3 {
		t.Errorf("expected next pc 3, got %d", next)
	}
}

func TestDecodeRejectsVariableLengthOpcodes(t *testing.T) {
	for _, op := range []Opcode{OpTableswitch, OpLookupswitch, OpWide} {
		code := []byte{byte(op), 0, 0, 0, 0}
		if _, _, err := Decode(code, 0); err == nil {
			t.Errorf("expected %s to be rejected as an unsupported variable-length instruction", op)
		}
	}
}

func TestDecodeRejectsTruncatedOperand(t *testing.T) {
	code := []byte{byte(OpSipush), 0x01} // needs 2 operand bytes, only 1 present
	if _, _, err := Decode(code, 0); err == nil {
		t.Error("expected an error for a truncated operand")
	}
}

func TestDecodeRejectsOutOfRangePC(t *testing.T) {
	code := []byte{byte(OpNop)}
	if _, _, err := Decode(code, 5); err == nil {
		t.Error("expected an error for a pc beyond the code array")
	}
}

func TestUnsupportedReportsExecutionGaps(t *testing.T) {
	insn := Instruction{Opcode: OpMultianewarray}
	if !insn.Unsupported() {
		t.Error("multianewarray should be reported as unsupported at execution")
	}
	insn = Instruction{Opcode: OpNop}
	if insn.Unsupported() {
		t.Error("nop should not be reported as unsupported")
	}
}

func TestDecodeAllVisitsEveryByteOnce(t *testing.T) {
	// nop; bipush 5; iadd; goto +0 (branches to itself, decode doesn't follow it); return
	code := []byte{
		byte(OpNop),
		byte(OpBipush), 5,
		byte(OpIadd),
		byte(OpGoto), 0x00, 0x00,
		byte(OpReturn),
	}
	instructions, err := DecodeAll(code)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(instructions) != 5 {
		t.Fatalf("expected 5 instructions, got %d", len(instructions))
	}
	wantPCs := []uint16{0, 1, 3, 4, 7}
	for i, want := range wantPCs {
		if instructions[i].PC != want {
			t.Errorf("instruction %d: expected pc %d, got %d", i, want, instructions[i].PC)
		}
	}
}

func TestDecodeAllPropagatesError(t *testing.T) {
	code := []byte{byte(OpSipush), 0x01} // truncated
	if _, err := DecodeAll(code); err == nil {
		t.Error("expected DecodeAll to surface a decode error")
	}
}
