package jshost

import "github.com/wasix-org/libffi/ffi"

// Engine drives forward calls and closures against a Host under the
// WASM32_EMSCRIPTEN ABI.
type Engine struct {
	Host Host
}

// NewEngine returns an Engine backed by host.
func NewEngine(host Host) *Engine {
	return &Engine{Host: host}
}

// Call implements the JS-hosted ffi_call: it converts avalue, addresses
// into the host's linear memory, into call_indirect-order Go values per
// cif's unboxed argument types, spills any variadic tail into a packed
// buffer on the host's value stack, invokes fn, and writes the result
// back through rvalue unless the return is by hidden pointer.
func (e *Engine) Call(cif *ffi.CIF, fn ffi.TableSlot, rvalue Addr, avalue []Addr) {
	if cif.ABI != ffi.WASM32Emscripten {
		ffi.Abort("Call", "jshost only drives the WASM32_EMSCRIPTEN ABI")
	}

	rt := UnboxSmallStructs(cif.RType)
	retByArg := rt != nil && (rt.Kind == ffi.KindStruct || rt.Kind == ffi.KindLongDouble)

	orig := e.Host.StackSave()

	args := make([]interface{}, 0, cif.NArgs+2)
	if retByArg {
		args = append(args, uint32(rvalue))
	}

	for i := uint32(0); i < cif.NFixedArgs; i++ {
		args = append(args, e.readArg(UnboxSmallStructs(cif.ArgTypes[i]), avalue[i])...)
	}

	if cif.NFixedArgs < cif.NArgs {
		args = append(args, uint32(e.spillVarargs(cif, avalue)))
	}

	result, err := e.Host.GetWasmTableEntry(fn).Call(args)
	if err != nil {
		ffi.Abort("Call", "host dynamic-call primitive failed: %v", err)
	}

	e.Host.StackRestore(orig)

	if retByArg || rt == nil || rt.Kind == ffi.KindVoid {
		return
	}
	e.writeResult(rt, rvalue, result)
}

// readArg reads one fixed argument out of linear memory at addr and
// returns it as the one or two call_indirect values it contributes
// (two only for a longdouble pair).
func (e *Engine) readArg(t *ffi.TypeDescriptor, addr Addr) []interface{} {
	switch t.Kind {
	case ffi.KindUint8:
		return []interface{}{uint32(e.Host.ReadU8(addr))}
	case ffi.KindSint8:
		return []interface{}{uint32(int32(e.Host.ReadS8(addr)))}
	case ffi.KindUint16:
		return []interface{}{uint32(e.Host.ReadU16(addr))}
	case ffi.KindSint16:
		return []interface{}{uint32(int32(e.Host.ReadS16(addr)))}
	case ffi.KindInt, ffi.KindUint32, ffi.KindSint32, ffi.KindPointer:
		return []interface{}{e.Host.ReadU32(addr)}
	case ffi.KindFloat:
		return []interface{}{e.Host.ReadF32(addr)}
	case ffi.KindDouble:
		return []interface{}{e.Host.ReadF64(addr)}
	case ffi.KindUint64, ffi.KindSint64:
		return []interface{}{e.Host.ReadU64(addr)}
	case ffi.KindLongDouble:
		return []interface{}{e.Host.ReadU64(addr), e.Host.ReadU64(addr + 8)}
	case ffi.KindStruct:
		dst := e.Host.StackAlloc(t.Size, uint32(t.Alignment))
		e.Host.CopyBytes(dst, addr, t.Size)
		return []interface{}{uint32(dst)}
	default:
		ffi.Abort("Call", "unexpected argument kind %s", ffi.KindName(t.Kind))
		return nil
	}
}

// spillVarargs packs cif's variadic tail into a tightly-packed buffer
// on the host's value stack, each argument at its natural wasm-ABI
// width (struct arguments copied by value at their declared size), and
// returns the buffer's address.
func (e *Engine) spillVarargs(cif *ffi.CIF, avalue []Addr) Addr {
	var total uint32
	for i := cif.NFixedArgs; i < cif.NArgs; i++ {
		total += varargSize(UnboxSmallStructs(cif.ArgTypes[i]))
	}
	base := e.Host.StackAlloc(total, 8)

	offset := uint32(0)
	for i := cif.NFixedArgs; i < cif.NArgs; i++ {
		t := UnboxSmallStructs(cif.ArgTypes[i])
		src := avalue[i]
		dst := base + Addr(offset)
		switch t.Kind {
		case ffi.KindStruct:
			e.Host.CopyBytes(dst, src, t.Size)
		case ffi.KindLongDouble:
			e.Host.WriteU64(dst, e.Host.ReadU64(src))
			e.Host.WriteU64(dst+8, e.Host.ReadU64(src+8))
		case ffi.KindFloat:
			e.Host.WriteF32(dst, e.Host.ReadF32(src))
		case ffi.KindDouble:
			e.Host.WriteF64(dst, e.Host.ReadF64(src))
		case ffi.KindUint64, ffi.KindSint64:
			e.Host.WriteU64(dst, e.Host.ReadU64(src))
		default:
			e.Host.WriteU32(dst, e.readScalarU32(t, src))
		}
		offset += varargSize(t)
	}
	return base
}

func (e *Engine) readScalarU32(t *ffi.TypeDescriptor, addr Addr) uint32 {
	switch t.Kind {
	case ffi.KindUint8:
		return uint32(e.Host.ReadU8(addr))
	case ffi.KindSint8:
		return uint32(int32(e.Host.ReadS8(addr)))
	case ffi.KindUint16:
		return uint32(e.Host.ReadU16(addr))
	case ffi.KindSint16:
		return uint32(int32(e.Host.ReadS16(addr)))
	default:
		return e.Host.ReadU32(addr)
	}
}

func varargSize(t *ffi.TypeDescriptor) uint32 {
	if t.Kind == ffi.KindStruct {
		return t.Size
	}
	return ffi.ABISize(t)
}

func (e *Engine) writeResult(rt *ffi.TypeDescriptor, rvalue Addr, result interface{}) {
	switch rt.Kind {
	case ffi.KindInt, ffi.KindUint32, ffi.KindSint32, ffi.KindPointer:
		e.Host.WriteU32(rvalue, toUint32(result))
	case ffi.KindUint8, ffi.KindSint8:
		e.Host.WriteU8(rvalue, uint8(toUint32(result)))
	case ffi.KindUint16, ffi.KindSint16:
		e.Host.WriteU16(rvalue, uint16(toUint32(result)))
	case ffi.KindFloat:
		e.Host.WriteF32(rvalue, result.(float32))
	case ffi.KindDouble:
		e.Host.WriteF64(rvalue, result.(float64))
	case ffi.KindUint64, ffi.KindSint64:
		e.Host.WriteU64(rvalue, toUint64(result))
	default:
		ffi.Abort("Call", "unexpected return kind %s", ffi.KindName(rt.Kind))
	}
}
