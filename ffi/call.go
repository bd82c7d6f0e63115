package ffi

import "encoding/binary"

// DynamicCaller is the single host primitive the Forward Caller needs:
// variant A's call_dynamic. results points directly at the caller's
// rvalue storage (or is nil/zero-length when the return is indirect,
// since the callee has already written through the hidden first
// argument); the host writes the wasm-ABI result bytes straight into
// it rather than handing back a copy. It returns an error if the host
// could not perform the call; that is always fatal to the caller of
// Call.
type DynamicCaller interface {
	CallDynamic(fn TableSlot, values []byte, results Pointer, resultsLen uint32) error
}

// StructMemory is an optional interface a DynamicCaller implements when
// its callees execute in an address space distinct from this process's
// own heap, such as a real wasm engine instance. Call and the wasihost
// closure dispatch path type-assert for it and, when present, relocate
// STRUCT arguments and returns through it rather than passing a native
// Go pointer value, which such a callee cannot dereference.
//
// A DynamicCaller that does not implement StructMemory is assumed to
// run its callees in this same process, where Lower/Raise's plain
// pointer-passing is itself sound (as with the in-process test doubles
// in wasihost/jshost's own tests).
type StructMemory interface {
	// Alloc reserves size bytes aligned to align in the callee's own
	// address space and returns their address there.
	Alloc(size, align uint32) uint32

	// CopyIn copies size bytes from src, a native pointer, into the
	// callee's address space at dst.
	CopyIn(dst uint32, src Pointer, size uint32)

	// CopyOut copies size bytes from addr in the callee's address space
	// into dst, a native pointer.
	CopyOut(dst Pointer, addr uint32, size uint32)
}

// Call implements ffi_call: it lowers avalue into a wasm-ABI
// values buffer per cif and invokes dyn's dynamic-call primitive
// against fn, which writes the call's result directly into rvalue.
//
// cif must already have been prepared with PrepCIFMachdep. Call aborts
// (panics with *FatalError) if cif.ABI is WASM32 and the varargs flag
// is set, if cif names an ABI this core does not recognise, or if dyn
// reports an error — none of these are recoverable at this layer.
func Call(dyn DynamicCaller, cif *CIF, fn TableSlot, rvalue Pointer, avalue []Pointer) {
	switch cif.ABI {
	case WASM32:
		if cif.IsVarargs() {
			abort("Call", "variadic call under WASM32 ABI is not supported")
		}
	case WASM32Emscripten:
		// The JS variant drives emscripten calls through its own Call
		// in jshost, which speaks the host's table-invocation primitive
		// directly instead of CallDynamic.
		abort("Call", "WASM32_EMSCRIPTEN must be driven through the jshost engine")
	default:
		abort("Call", "unrecognised ABI tag %s", cif.ABI)
	}

	indirect := IndirectReturn(cif.RType)
	mem, relocate := dyn.(StructMemory)

	total := uint32(0)
	if indirect {
		total += 4 // hidden result pointer
	}
	for _, arg := range cif.ArgTypes {
		total += ABISize(arg)
	}

	values := make([]byte, total)
	cursor := uint32(0)

	var resultAddr uint32
	if indirect {
		if relocate {
			resultAddr = mem.Alloc(cif.RType.Size, uint32(cif.RType.Alignment))
			binary.LittleEndian.PutUint32(values[:4], resultAddr)
		} else {
			binary.LittleEndian.PutUint32(values[:4], uint32(uintptr(rvalue)))
		}
		cursor = 4
	}
	for i, arg := range cif.ArgTypes {
		if arg.Kind == KindStruct && relocate {
			addr := mem.Alloc(arg.Size, uint32(arg.Alignment))
			mem.CopyIn(addr, avalue[i], arg.Size)
			binary.LittleEndian.PutUint32(values[cursor:], addr)
			cursor += 4
			continue
		}
		cursor += Lower(arg, avalue[i], values[cursor:])
	}

	var resultsLen uint32
	var results Pointer
	if !indirect {
		resultsLen = ABISize(cif.RType)
		results = rvalue
	}

	if err := dyn.CallDynamic(fn, values, results, resultsLen); err != nil {
		abort("Call", "host dynamic-call primitive failed: %v", err)
	}

	if indirect && relocate {
		mem.CopyOut(rvalue, resultAddr, cif.RType.Size)
	}
}
