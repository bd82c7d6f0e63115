package ffi

import (
	"fmt"
	"unsafe"
)

// Pointer is an opaque caller-owned address: a pointer to an argument
// value, a result area, or user data. It is an alias for unsafe.Pointer
// so front ends can hand in Go values directly via unsafe.Pointer(&v).
type Pointer = unsafe.Pointer

// Kind classifies a TypeDescriptor. The numeric values follow the
// ordering used by the upstream libffi type enumeration so that a front
// end already speaking that enumeration needs no translation table.
//
// Note: This is a type alias, the same trick api.ValueType uses in
// wazero, so callers can use untyped uint16 literals without a cast.
type Kind = uint16

const (
	KindVoid Kind = iota
	KindInt
	KindFloat
	KindDouble
	KindLongDouble
	KindUint8
	KindSint8
	KindUint16
	KindSint16
	KindUint32
	KindSint32
	KindUint64
	KindSint64
	KindStruct
	KindPointer
	KindComplex
)

// KindName returns the name of k, or "unknown" if k is not a defined Kind.
func KindName(k Kind) string {
	switch k {
	case KindVoid:
		return "void"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindDouble:
		return "double"
	case KindLongDouble:
		return "longdouble"
	case KindUint8:
		return "uint8"
	case KindSint8:
		return "sint8"
	case KindUint16:
		return "uint16"
	case KindSint16:
		return "sint16"
	case KindUint32:
		return "uint32"
	case KindSint32:
		return "sint32"
	case KindUint64:
		return "uint64"
	case KindSint64:
		return "sint64"
	case KindStruct:
		return "struct"
	case KindPointer:
		return "pointer"
	case KindComplex:
		return "complex"
	}
	return "unknown"
}

// ABI enumerates the calling conventions this core understands.
type ABI uint32

const (
	// WASM32 is the non-JS (WASI-like) ABI. Varargs are not supported.
	WASM32 ABI = 1
	// WASM32Emscripten is the JS-hosted ABI. Supports varargs.
	WASM32Emscripten ABI = 2
)

func (a ABI) String() string {
	switch a {
	case WASM32:
		return "wasm32"
	case WASM32Emscripten:
		return "wasm32-emscripten"
	default:
		return fmt.Sprintf("abi(%d)", uint32(a))
	}
}

// Status is the return code of the declarative-error entry points:
// PrepCIFMachdep, PrepCIFMachdepVar, and PrepClosureLoc.
//
// OK and BadTypedef must be numerically 0 and 1 respectively; this is
// asserted in offsets.go.
type Status int

const (
	OK Status = 0
	// BadTypedef indicates a type the core cannot lay out: an emscripten
	// top-level COMPLEX, or nargs exceeding MaxArgs.
	BadTypedef Status = 1
	// BadABI indicates a CIF naming an ABI this entry point does not
	// implement (e.g. varargs under WASM32, or the wrong variant's ABI
	// tag reaching PrepClosureLoc).
	BadABI Status = 2
)

func (s Status) String() string {
	switch s {
	case OK:
		return "OK"
	case BadTypedef:
		return "BAD_TYPEDEF"
	case BadABI:
		return "BAD_ABI"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// MaxArgs is the hard implementation limit on CIF.NArgs and
// CIF.NFixedArgs, reflecting wasm host trampoline arity limits.
const MaxArgs = 1000

// FlagVarargs is the CIF.Flags bit set by PrepCIFMachdepVar.
const FlagVarargs uint32 = 1

// TypeDescriptor represents one C type. Elements is non-nil only when
// Kind is KindStruct or KindComplex, and is owned by the front end: this
// package only reads and, during canonicalisation, mutates it in place.
type TypeDescriptor struct {
	Size      uint32
	Alignment uint16
	Kind      Kind
	Elements  []*TypeDescriptor
}

// NewScalar returns a TypeDescriptor for a non-aggregate kind, with the
// size and alignment the wasm-ABI assigns each primitive kind.
func NewScalar(kind Kind) *TypeDescriptor {
	switch kind {
	case KindVoid:
		return &TypeDescriptor{Kind: KindVoid}
	case KindUint8, KindSint8:
		return &TypeDescriptor{Size: 1, Alignment: 1, Kind: kind}
	case KindUint16, KindSint16:
		return &TypeDescriptor{Size: 2, Alignment: 2, Kind: kind}
	case KindInt, KindUint32, KindSint32, KindFloat, KindPointer:
		return &TypeDescriptor{Size: 4, Alignment: 4, Kind: kind}
	case KindUint64, KindSint64, KindDouble:
		return &TypeDescriptor{Size: 8, Alignment: 8, Kind: kind}
	case KindLongDouble:
		return &TypeDescriptor{Size: 16, Alignment: 16, Kind: kind}
	default:
		panic(fmt.Errorf("ffi: NewScalar: not a scalar kind: %s", KindName(kind)))
	}
}

// NewStruct returns a TypeDescriptor for a struct with the given
// elements, size, and alignment. Size and alignment are not derived
// automatically because the wasm-ABI size of a struct depends on the
// front end's own layout rules (padding, packing), which this package
// does not recompute.
func NewStruct(size uint32, alignment uint16, elements ...*TypeDescriptor) *TypeDescriptor {
	return &TypeDescriptor{Size: size, Alignment: alignment, Kind: KindStruct, Elements: elements}
}

// NewComplex returns a TypeDescriptor for a complex number over the
// given floating-point element kind (KindFloat, KindDouble, or
// KindLongDouble).
func NewComplex(elem Kind) *TypeDescriptor {
	e := NewScalar(elem)
	return &TypeDescriptor{Size: e.Size * 2, Alignment: e.Alignment, Kind: KindComplex, Elements: []*TypeDescriptor{e, e}}
}

// CIF describes one call site: its ABI, argument types, and return
// type. Field order matches the fixed-offset contract asserted in
// offsets.go.
type CIF struct {
	ABI      ABI
	NArgs    uint32
	ArgTypes []*TypeDescriptor
	RType    *TypeDescriptor // nil means void
	// Bytes is owned by the generic front end (stack bytes needed on
	// architectures that pass arguments on a native stack); the wasm32
	// machdep core never reads or writes it, but it occupies a slot in
	// the layout contract between RType and Flags.
	Bytes      uint32
	Flags      uint32
	NFixedArgs uint32
}

// IsVarargs reports whether c was prepared by PrepCIFMachdepVar.
func (c *CIF) IsVarargs() bool { return c.Flags&FlagVarargs != 0 }

// ClosureHandler is the signature of a user-supplied closure callback.
// result is a pointer to where the handler must write its return value
// (ignored if the CIF's return type is void); argv[i] points to a value
// of the type cif.ArgTypes[i]; userData is whatever was passed to
// PrepClosureLoc.
type ClosureHandler func(cif *CIF, result Pointer, argv []Pointer, userData Pointer)
