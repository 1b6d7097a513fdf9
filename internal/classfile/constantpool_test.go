package classfile

import (
	"testing"
)

// buildPool encodes count (including the unused index 0) followed by the
// given raw tag+payload bytes, mirroring the constant_pool_count/cp_info
// layout of JVMS 4.1.
func buildPool(t *testing.T, count uint16, body []byte) *ConstantPool {
	t.Helper()
	data := append([]byte{byte(count >> 8), byte(count)}, body...)
	cp, err := readConstantPool(newReader(data))
	if err != nil {
		t.Fatalf("readConstantPool: %v", err)
	}
	return cp
}

func TestConstantPoolUtf8RoundTrip(t *testing.T) {
	// count=2: one Utf8 entry "Hi" at index 1.
	body := []byte{
		byte(TagUtf8), 0x00, 0x02, 'H', 'i',
	}
	cp := buildPool(t, 2, body)

	s, err := cp.Utf8(1)
	if err != nil {
		t.Fatalf("Utf8(1): %v", err)
	}
	if s != "Hi" {
		t.Errorf("expected %q, got %q", "Hi", s)
	}
}

func TestConstantPoolIndexZeroIsInvalid(t *testing.T) {
	cp := buildPool(t, 2, []byte{byte(TagUtf8), 0x00, 0x01, 'x'})
	if _, err := cp.Utf8(0); err == nil {
		t.Error("index 0 must always be rejected (constant pool is 1-based)")
	}
}

func TestConstantPoolLongEntryLeavesTombstone(t *testing.T) {
	// count=3: a Long at index 1 (occupying slots 1 and 2), then nothing
	// else — index 2 must read back as a tombstone error, per JVMS 4.4.5.
	body := []byte{
		byte(TagLong), 0, 0, 0, 0, 0, 0, 0, 42,
	}
	cp := buildPool(t, 3, body)

	if cp.Len() != 2 {
		t.Fatalf("expected Len() == 2 (two slots consumed by the Long), got %d", cp.Len())
	}
	if _, err := cp.get(2); err == nil {
		t.Error("the slot after a Long entry must be an unreadable tombstone")
	}
}

func TestConstantPoolOutOfRangeIndex(t *testing.T) {
	cp := buildPool(t, 2, []byte{byte(TagUtf8), 0x00, 0x01, 'x'})
	if _, err := cp.Utf8(5); err == nil {
		t.Error("expected an error for an index beyond the pool's length")
	}
}

func TestConstantPoolClassNameResolution(t *testing.T) {
	// index 1: Utf8 "Foo"; index 2: Class -> index 1.
	body := []byte{
		byte(TagUtf8), 0x00, 0x03, 'F', 'o', 'o',
		byte(TagClass), 0x00, 0x01,
	}
	cp := buildPool(t, 3, body)

	name, err := cp.ClassName(2)
	if err != nil {
		t.Fatalf("ClassName(2): %v", err)
	}
	if name != "Foo" {
		t.Errorf("expected %q, got %q", "Foo", name)
	}
}

func TestDecodeModifiedUtf8EncodedNull(t *testing.T) {
	// The Java modified-UTF-8 encoded null: 0xC0 0x80, not a plain 0x00 byte.
	units, err := decodeToUtf16([]byte{0xC0, 0x80})
	if err != nil {
		t.Fatalf("decodeToUtf16: %v", err)
	}
	if len(units) != 1 || units[0] != 0 {
		t.Errorf("expected a single NUL code unit, got %v", units)
	}
}

func TestDecodeModifiedUtf8SurrogatePair(t *testing.T) {
	// U+10000 encoded as the surrogate pair D800 DC00, each as a 3-byte
	// modified-UTF-8 sequence (this dialect never uses a genuine 4-byte form).
	high := []byte{0xED, 0xA0, 0x80} // 0xD800
	low := []byte{0xED, 0xB0, 0x80}  // 0xDC00
	raw := append(append([]byte{}, high...), low...)

	s, err := decodeModifiedUtf8(raw)
	if err != nil {
		t.Fatalf("decodeModifiedUtf8: %v", err)
	}
	if s != string(rune(0x10000)) {
		t.Errorf("expected U+10000, got %q", s)
	}
}
