package ffi

import "unsafe"

// Raise is the inverse of Lower: given canonicalised type t and a
// cursor into a wasm-ABI buffer, it returns a pointer into the buffer
// suitable for handing to a caller expecting a *t, and the number of
// bytes consumed (always ABISize(t)).
//
// For non-struct kinds the returned pointer is simply buf's start; for
// KindStruct the slot contains a pointer rather than the value, so one
// extra dereference is performed.
func Raise(t *TypeDescriptor, buf []byte) (Pointer, uint32) {
	switch t.Kind {
	case KindVoid:
		return nil, 0
	case KindUint8, KindSint8, KindUint16, KindSint16, KindInt, KindUint32, KindSint32, KindFloat, KindPointer:
		return unsafe.Pointer(&buf[0]), 4
	case KindUint64, KindSint64, KindDouble:
		return unsafe.Pointer(&buf[0]), 8
	case KindStruct:
		// The slot holds a 32-bit address rather than the struct's
		// bytes. Reconstructing a Go pointer from it directly is only
		// sound when that address was itself produced by this same
		// process's Lower (as with the in-process test doubles); a
		// caller fielding a real callee's address space must instead
		// go through StructMemory.CopyOut before calling Raise.
		structAddr := *(*uint32)(unsafe.Pointer(&buf[0]))
		return unsafe.Pointer(uintptr(structAddr)), 4
	case KindLongDouble:
		return unsafe.Pointer(&buf[0]), 16
	default:
		abort("Raise", "unknown kind after canonicalisation: %s", KindName(t.Kind))
		return nil, 0
	}
}
