package ffi

import (
	"encoding/binary"
	"math"
	"unsafe"
)

// Lower writes the value pointed to by v (a caller-owned value of
// canonicalised type t) into buf at the wasm-ABI byte layout, and
// returns the number of bytes written, which always equals ABISize(t).
// buf must have at least that much room; the buffer
// is unaligned at the byte level and Lower never inserts padding.
//
// Integer arguments narrower than i32 are widened to i32 following
// signedness (unsigned zero-extends, signed sign-extends). STRUCT
// values are passed by pointer: the pointer value itself, not the
// struct's bytes, is written into the slot. This is sound only when the
// callee executes in this same process; Call relocates STRUCT slots
// through StructMemory instead whenever the DynamicCaller implements
// it, and never calls Lower for them. FLOAT/DOUBLE are written
// little-endian; LONGDOUBLE writes 16 raw bytes verbatim.
func Lower(t *TypeDescriptor, v Pointer, buf []byte) uint32 {
	switch t.Kind {
	case KindVoid:
		return 0
	case KindUint8:
		binary.LittleEndian.PutUint32(buf, uint32(*(*uint8)(v)))
		return 4
	case KindSint8:
		binary.LittleEndian.PutUint32(buf, uint32(int32(*(*int8)(v))))
		return 4
	case KindUint16:
		binary.LittleEndian.PutUint32(buf, uint32(*(*uint16)(v)))
		return 4
	case KindSint16:
		binary.LittleEndian.PutUint32(buf, uint32(int32(*(*int16)(v))))
		return 4
	case KindInt, KindSint32:
		binary.LittleEndian.PutUint32(buf, uint32(*(*int32)(v)))
		return 4
	case KindUint32:
		binary.LittleEndian.PutUint32(buf, *(*uint32)(v))
		return 4
	case KindPointer:
		binary.LittleEndian.PutUint32(buf, uint32(uintptr(*(*Pointer)(v))))
		return 4
	case KindFloat:
		binary.LittleEndian.PutUint32(buf, math.Float32bits(*(*float32)(v)))
		return 4
	case KindUint64:
		binary.LittleEndian.PutUint64(buf, *(*uint64)(v))
		return 8
	case KindSint64:
		binary.LittleEndian.PutUint64(buf, uint64(*(*int64)(v)))
		return 8
	case KindDouble:
		binary.LittleEndian.PutUint64(buf, math.Float64bits(*(*float64)(v)))
		return 8
	case KindStruct:
		// Passed by pointer: write v itself into the slot.
		binary.LittleEndian.PutUint32(buf, uint32(uintptr(v)))
		return 4
	case KindLongDouble:
		src := unsafe.Slice((*byte)(v), 16)
		copy(buf[:16], src)
		return 16
	default:
		abort("Lower", "unknown kind after canonicalisation: %s", KindName(t.Kind))
		return 0
	}
}
