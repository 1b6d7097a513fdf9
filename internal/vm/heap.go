package vm

import (
	"encoding/binary"

	"github.com/mabhi256/jdiag-vm/internal/classfile"
)

// Cell layout (spec.md §3, §4.3):
//
//	[0:8)   header   — kind bit, 2-bit GC colour, 29-bit identity hash, 32-bit size
//	[8:16)  meta      — Object: low 32 bits hold the ClassId.
//	                    Array: byte 7 holds the element-type tag, low 32 bits hold the length.
//	[16:..) slots     — one 8-byte slot per field (objects) or element (arrays).
const headerSize = 8
const metaSize = 8
const slotSize = 8
const cellDataOffset = headerSize + metaSize

// CellKind is the header's kind bit.
type CellKind uint8

const (
	KindObject CellKind = 0
	KindArray  CellKind = 1
)

// GCColor is the header's 2-bit mark colour.
type GCColor uint8

const (
	ColorUnmarked GCColor = iota
	ColorInProgress
	ColorMarked
)

// arrayRefTag marks an array's meta tag byte as holding reference-typed
// elements; the exact element FieldType (which may itself be an array type,
// or a named class) lives in Heap.arrayRefTypes since it does not fit
// compactly in the one-byte tag spec.md's header allows.
const arrayRefTag = 0xFF

// Heap is the single contiguous, bump-allocated byte buffer spec.md §4.3
// describes. It has no notion of classes beyond ClassId — class lookups
// happen through the ClassManager the Vm holds separately.
type Heap struct {
	buf           []byte
	next          uint32
	max           uint32
	arrayRefTypes map[Ref]classfile.FieldType
}

func NewHeap(maxSize uint32) *Heap {
	return &Heap{
		buf:           make([]byte, maxSize),
		next:          slotSize, // offset 0 is reserved so Ref(0) always means null
		max:           maxSize,
		arrayRefTypes: make(map[Ref]classfile.FieldType),
	}
}

func align8(n uint32) uint32 { return (n + 7) &^ 7 }

func packHeader(kind CellKind, color GCColor, hash uint32, size uint32) uint64 {
	h := uint64(kind&1) << 63
	h |= uint64(color&3) << 61
	h |= uint64(hash&0x1FFFFFFF) << 32
	h |= uint64(size)
	return h
}

func unpackHeader(h uint64) (kind CellKind, color GCColor, hash uint32, size uint32) {
	kind = CellKind((h >> 63) & 1)
	color = GCColor((h >> 61) & 3)
	hash = uint32((h >> 32) & 0x1FFFFFFF)
	size = uint32(h)
	return
}

func identityHashFor(offset uint32) uint32 {
	addr := uint64(offset)
	return uint32((addr>>32)^addr) & 0x1FFFFFFF
}

func (h *Heap) readU64(offset uint32) uint64 {
	return binary.BigEndian.Uint64(h.buf[offset : offset+8])
}

func (h *Heap) writeU64(offset uint32, v uint64) {
	binary.BigEndian.PutUint64(h.buf[offset:offset+8], v)
}

func (h *Heap) header(ref Ref) uint64 { return h.readU64(uint32(ref)) }

func (h *Heap) setHeader(ref Ref, v uint64) { h.writeU64(uint32(ref), v) }

// allocRaw bump-allocates size bytes (header + meta + slots, 8-byte
// aligned) and returns the new cell's Ref, or false if it does not fit.
func (h *Heap) allocRaw(size uint32) (Ref, bool) {
	size = align8(size)
	if h.next+size > h.max {
		return 0, false
	}
	ref := Ref(h.next)
	h.next += size
	return ref, true
}

// AllocObject reserves a cell for an instance of class classId with
// numFields field slots, all zero-initialized (spec.md §4.3: zero reference
// slots read back as Null, zero primitives read back as 0).
func (h *Heap) AllocObject(classId ClassId, numFields int) (Ref, bool) {
	size := cellDataOffset + uint32(numFields)*slotSize
	ref, ok := h.allocRaw(size)
	if !ok {
		return 0, false
	}
	hash := identityHashFor(uint32(ref))
	h.setHeader(ref, packHeader(KindObject, ColorUnmarked, hash, size))
	h.writeU64(uint32(ref)+headerSize, uint64(classId))
	return ref, true
}

// AllocArray reserves a cell for an array of elemType with the given
// length, all zero-initialized.
func (h *Heap) AllocArray(elemType classfile.FieldType, length int) (Ref, bool) {
	size := cellDataOffset + uint32(length)*slotSize
	ref, ok := h.allocRaw(size)
	if !ok {
		return 0, false
	}
	hash := identityHashFor(uint32(ref))
	h.setHeader(ref, packHeader(KindArray, ColorUnmarked, hash, size))

	var tag uint8
	if elemType.IsReference() {
		tag = arrayRefTag
		h.arrayRefTypes[ref] = elemType
	} else {
		tag = uint8(elemType.Base)
	}
	meta := uint64(tag)<<56 | uint64(uint32(length))
	h.writeU64(uint32(ref)+headerSize, meta)
	return ref, true
}

func (h *Heap) Kind(ref Ref) CellKind {
	kind, _, _, _ := unpackHeader(h.header(ref))
	return kind
}

func (h *Heap) Color(ref Ref) GCColor {
	_, color, _, _ := unpackHeader(h.header(ref))
	return color
}

func (h *Heap) SetColor(ref Ref, color GCColor) {
	kind, _, hash, size := unpackHeader(h.header(ref))
	h.setHeader(ref, packHeader(kind, color, hash, size))
}

// IdentityHash is stable across garbage collection because it is read back
// out of the (possibly relocated) cell's own header (spec.md §3, §8).
func (h *Heap) IdentityHash(ref Ref) uint32 {
	_, _, hash, _ := unpackHeader(h.header(ref))
	return hash
}

func (h *Heap) Size(ref Ref) uint32 {
	_, _, _, size := unpackHeader(h.header(ref))
	return size
}

func (h *Heap) ObjectClassId(ref Ref) ClassId {
	return ClassId(h.readU64(uint32(ref) + headerSize))
}

func (h *Heap) ArrayLength(ref Ref) int {
	meta := h.readU64(uint32(ref) + headerSize)
	return int(uint32(meta))
}

// ArrayElementType reports the array's element type. For primitive arrays
// it is reconstructed from the meta tag byte; for reference arrays it comes
// from the side table populated at allocation time.
func (h *Heap) ArrayElementType(ref Ref) classfile.FieldType {
	meta := h.readU64(uint32(ref) + headerSize)
	tag := uint8(meta >> 56)
	if tag == arrayRefTag {
		return h.arrayRefTypes[ref]
	}
	return classfile.FieldType{Kind: classfile.KindBase, Base: classfile.BaseType(tag)}
}

func (h *Heap) slotOffset(ref Ref, index int) uint32 {
	return uint32(ref) + cellDataOffset + uint32(index)*slotSize
}

func (h *Heap) GetInt(ref Ref, index int) int32 {
	return int32(h.readU64(h.slotOffset(ref, index)))
}

func (h *Heap) SetInt(ref Ref, index int, v int32) {
	h.writeU64(h.slotOffset(ref, index), uint64(uint32(v)))
}

func (h *Heap) GetLong(ref Ref, index int) int64 {
	return int64(h.readU64(h.slotOffset(ref, index)))
}

func (h *Heap) SetLong(ref Ref, index int, v int64) {
	h.writeU64(h.slotOffset(ref, index), uint64(v))
}

func (h *Heap) GetFloat(ref Ref, index int) float32 {
	bits := uint32(h.readU64(h.slotOffset(ref, index)))
	return float32FromBits(bits)
}

func (h *Heap) SetFloat(ref Ref, index int, v float32) {
	h.writeU64(h.slotOffset(ref, index), uint64(float32ToBits(v)))
}

func (h *Heap) GetDouble(ref Ref, index int) float64 {
	bits := h.readU64(h.slotOffset(ref, index))
	return float64FromBits(bits)
}

func (h *Heap) SetDouble(ref Ref, index int, v float64) {
	h.writeU64(h.slotOffset(ref, index), float64ToBits(v))
}

// GetRef reads a reference-typed slot; an all-zero slot reads back as
// NullRef (spec.md §4.3).
func (h *Heap) GetRef(ref Ref, index int) Ref {
	return Ref(uint32(h.readU64(h.slotOffset(ref, index))))
}

func (h *Heap) SetRef(ref Ref, index int, v Ref) {
	h.writeU64(h.slotOffset(ref, index), uint64(uint32(v)))
}

// Used reports how much of the arena has been handed out, for diagnostics
// (Vm.DebugStats) and for the inspect TUI's heap sparkline.
func (h *Heap) Used() uint32 { return h.next }
func (h *Heap) Max() uint32  { return h.max }
