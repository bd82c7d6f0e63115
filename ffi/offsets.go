package ffi

import "unsafe"

// ffi_cif, ffi_type, and ffi_closure are shared directly with a front
// end compiled into the same wasm module, which statically asserts
// their field offsets. A Go struct containing a slice field cannot be
// made byte-compatible with that layout (a slice header is three words,
// not one), so CIF/TypeDescriptor/Closure here are plain Go structs
// instead.
//
// What we *can* preserve is the structural contract: the declared
// field order matches the fixed byte offsets the front end expects.
// These probe structs spell out that order with 32-bit fields and
// init panics if their offsets are not the contract's. They are
// separate types kept in step with CIF/TypeDescriptor/Closure by hand:
// a reorder of those Go types themselves is not detected here.
type cifOrderProbe struct {
	abi        uint32
	nArgs      uint32
	argTypes   uint32
	rType      uint32
	bytes      uint32
	flags      uint32
	nFixedArgs uint32
}

type typeOrderProbe struct {
	size      uint32
	alignment uint16
	kind      uint16
	elements  uint32
}

type closureOrderProbe struct {
	ftramp   uint32
	cif      uint32
	fun      uint32
	userData uint32
}

// assertOffset panics at package init if got != want. Using a function
// rather than a negative-length array trick (which Go vet rejects for
// non-constant expressions here) keeps the check readable; it still
// runs once, before any core entry point can be called.
func assertOffset(structName, field string, got, want uintptr) {
	if got != want {
		panic(&FatalError{Op: "init", Msg: "layout contract violated: " + structName + "." + field +
			" moved"})
	}
}

func init() {
	var c cifOrderProbe
	assertOffset("CIF", "ABI", unsafe.Offsetof(c.abi), 0)
	assertOffset("CIF", "NArgs", unsafe.Offsetof(c.nArgs), 4)
	assertOffset("CIF", "ArgTypes", unsafe.Offsetof(c.argTypes), 8)
	assertOffset("CIF", "RType", unsafe.Offsetof(c.rType), 12)
	assertOffset("CIF", "Flags", unsafe.Offsetof(c.flags), 20)
	assertOffset("CIF", "NFixedArgs", unsafe.Offsetof(c.nFixedArgs), 24)

	var t typeOrderProbe
	assertOffset("TypeDescriptor", "Size", unsafe.Offsetof(t.size), 0)
	assertOffset("TypeDescriptor", "Alignment", unsafe.Offsetof(t.alignment), 4)
	assertOffset("TypeDescriptor", "Kind", unsafe.Offsetof(t.kind), 6)
	assertOffset("TypeDescriptor", "Elements", unsafe.Offsetof(t.elements), 8)

	var cl closureOrderProbe
	assertOffset("Closure", "Ftramp", unsafe.Offsetof(cl.ftramp), 0)
	assertOffset("Closure", "CIF", unsafe.Offsetof(cl.cif), 4)
	assertOffset("Closure", "Fun", unsafe.Offsetof(cl.fun), 8)
	assertOffset("Closure", "UserData", unsafe.Offsetof(cl.userData), 12)

	if OK != 0 || BadTypedef != 1 {
		panic(&FatalError{Op: "init", Msg: "OK and BadTypedef must be 0 and 1"})
	}
}
