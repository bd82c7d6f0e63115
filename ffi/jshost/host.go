package jshost

import "github.com/wasix-org/libffi/ffi"

// Addr is a byte offset into the host's linear memory. It is never
// dereferenced directly by this package; all access goes through Memory.
type Addr uint32

// Memory is read/write access to the host's wasm32 linear memory, typed
// the way the JS variant's EM_JS DEREF_* macros view it.
type Memory interface {
	ReadU8(addr Addr) uint8
	ReadS8(addr Addr) int8
	ReadU16(addr Addr) uint16
	ReadS16(addr Addr) int16
	ReadU32(addr Addr) uint32
	ReadS32(addr Addr) int32
	ReadU64(addr Addr) uint64
	ReadF32(addr Addr) float32
	ReadF64(addr Addr) float64

	WriteU8(addr Addr, v uint8)
	WriteS8(addr Addr, v int8)
	WriteU16(addr Addr, v uint16)
	WriteS16(addr Addr, v int16)
	WriteU32(addr Addr, v uint32)
	WriteU64(addr Addr, v uint64)
	WriteF32(addr Addr, v float32)
	WriteF64(addr Addr, v float64)

	// CopyBytes copies size bytes from src to dst, both addresses into
	// this same linear memory.
	CopyBytes(dst, src Addr, size uint32)
}

// Stack is the JS variant's separate value stack used to spill
// varargs and struct-by-value copies outside the callee's own frame.
type Stack interface {
	StackSave() Addr
	StackRestore(addr Addr)

	// StackAlloc moves the stack pointer down by size, aligns it to
	// align, and returns the new (already-aligned) pointer, mirroring
	// the STACK_ALLOC/ALIGN_ADDRESS macro pair.
	StackAlloc(size, align uint32) Addr
}

// WasmFunc is an opaque callable the host understands, either a slot
// already present in the indirect function table or one newly minted
// by ConvertJsFunctionToWasm.
type WasmFunc interface {
	// Call invokes the function with args in call_indirect order and
	// returns its single result, or nil for a void-returning function.
	Call(args []interface{}) (interface{}, error)
}

// Callback is the Go-level signature ConvertJsFunctionToWasm wraps: it
// receives call_indirect-order arguments already converted to Go
// values per the JS-variant per-letter convention (i=uint32, j=uint64,
// f=float32, d=float64) and returns a single result of the same kind,
// or nil for sig 'v'.
type Callback func(args []interface{}) interface{}

// Table is the subset of table management the host must expose: slot
// lookup/installation, reservation of a free slot, and JS-function-to
// -wasm-function conversion for closures.
type Table interface {
	GetWasmTableEntry(slot ffi.TableSlot) WasmFunc
	SetWasmTableEntry(slot ffi.TableSlot, fn WasmFunc)
	GetEmptyTableSlot() (ffi.TableSlot, error)

	// FreeTableSlot returns slot to the host's free list once its
	// closure is no longer needed.
	FreeTableSlot(slot ffi.TableSlot) error

	// ConvertJsFunctionToWasm builds a WasmFunc whose call_indirect
	// signature is sig (one letter per FFI_WASM_TYPE-style argument,
	// see BuildSignature) and which forwards every call to cb.
	ConvertJsFunctionToWasm(cb Callback, sig string) (WasmFunc, error)
}

// Host bundles the three primitives the JS variant needs from its
// embedder.
type Host interface {
	Memory
	Stack
	Table
}
