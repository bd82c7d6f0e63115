package jshost

import (
	"fmt"

	"github.com/wasix-org/libffi/ffi"
)

// ClosureHandler is the JS-hosted variant's closure callback: result,
// argv and userData are all addresses into the host's linear memory
// rather than Go pointers, since nothing about this closure's
// bookkeeping is shared with wasm-resident code the way ffi.Closure's
// fixed-offset fields are for the non-JS variant.
type ClosureHandler func(cif *ffi.CIF, result Addr, argv []Addr, userData Addr)

// Closure is this variant's analogue of ffi.Closure. It intentionally
// does not reuse ffi.Closure: that type's field order is a contract
// with wasm-resident code sharing the same struct, which has no
// counterpart here.
type Closure struct {
	Ftramp   ffi.TableSlot
	CIF      *ffi.CIF
	Fun      ClosureHandler
	UserData Addr
}

// ClosureEngine drives closure lifetime management for the JS-hosted
// variant: slot reservation through Host.GetEmptyTableSlot, trampoline
// construction through Host.ConvertJsFunctionToWasm, and dispatch of
// every call at that slot back into a Closure's Fun.
type ClosureEngine struct {
	Host   Host
	Config *ffi.EngineConfig
}

// NewClosureEngine returns a ClosureEngine backed by host, using a
// default ffi.EngineConfig.
func NewClosureEngine(host Host) *ClosureEngine {
	return NewClosureEngineWithConfig(host, ffi.NewEngineConfig())
}

// NewClosureEngineWithConfig returns a ClosureEngine backed by host,
// with closure lifecycle behavior controlled by cfg.
func NewClosureEngineWithConfig(host Host, cfg *ffi.EngineConfig) *ClosureEngine {
	return &ClosureEngine{Host: host, Config: cfg}
}

// Alloc reserves a table slot and returns a Closure bound to it.
func (e *ClosureEngine) Alloc(cif *ffi.CIF) (*Closure, error) {
	if cif.NArgs > e.Config.MaxArgs() {
		return nil, fmt.Errorf("jshost: %d arguments exceeds configured maximum of %d", cif.NArgs, e.Config.MaxArgs())
	}
	slot, err := e.Host.GetEmptyTableSlot()
	if err != nil {
		return nil, err
	}
	e.Config.Logger()("jshost: allocated closure at slot %d", slot)
	return &Closure{Ftramp: slot, CIF: cif}, nil
}

// Free releases c's table slot back to the host.
func (e *ClosureEngine) Free(c *Closure) error {
	if err := e.Host.FreeTableSlot(c.Ftramp); err != nil {
		return err
	}
	e.Config.Logger()("jshost: freed closure at slot %d", c.Ftramp)
	return nil
}

// PrepClosureLoc binds c to cif, fun and userData, builds the
// call_indirect signature cif implies, and installs a wasm trampoline
// at codeloc that dispatches every call back into c.Fun.
func (e *ClosureEngine) PrepClosureLoc(c *Closure, cif *ffi.CIF, fun ClosureHandler, userData Addr, codeloc ffi.TableSlot) ffi.Status {
	if cif.ABI != ffi.WASM32Emscripten {
		return ffi.BadABI
	}

	c.CIF = cif
	c.Fun = fun
	c.UserData = userData
	c.Ftramp = codeloc

	sig, retByArg := BuildSignature(cif)
	wasmFn, err := e.Host.ConvertJsFunctionToWasm(func(args []interface{}) interface{} {
		return e.dispatch(c, retByArg, args)
	}, sig)
	if err != nil {
		return ffi.BadTypedef
	}
	e.Host.SetWasmTableEntry(codeloc, wasmFn)
	e.Config.Logger()("jshost: prepared closure at slot %d", codeloc)
	return ffi.OK
}

// dispatch is the body of every closure's installed trampoline: it
// spills the incoming call_indirect arguments into fresh linear-memory
// slots, builds the argv the handler expects, invokes c.Fun, and
// converts the result (if any) back into a call_indirect return value.
func (e *ClosureEngine) dispatch(c *Closure, retByArg bool, args []interface{}) interface{} {
	e.Config.Logger()("jshost: dispatching closure at slot %d", c.Ftramp)
	orig := e.Host.StackSave()

	jsIdx := 0
	var result Addr
	if retByArg {
		result = Addr(toUint32(args[jsIdx]))
		jsIdx++
	} else {
		result = e.Host.StackAlloc(8, 8)
	}

	argv := make([]Addr, c.CIF.NArgs)
	for i := uint32(0); i < c.CIF.NFixedArgs; i++ {
		t := UnboxSmallStructs(c.CIF.ArgTypes[i])
		addr, consumed := e.spillOne(t, args[jsIdx:])
		argv[i] = addr
		jsIdx += consumed
	}

	if c.CIF.NFixedArgs < c.CIF.NArgs {
		varargsBase := Addr(toUint32(args[len(args)-1]))
		offset := uint32(0)
		for i := c.CIF.NFixedArgs; i < c.CIF.NArgs; i++ {
			argv[i] = varargsBase + Addr(offset)
			// The varargs cursor always advances by 4 bytes per slot,
			// even for a wider-than-i32 argument: this matches the
			// caller's own packing and must not be sized per argument.
			offset += 4
		}
	}

	c.Fun(c.CIF, result, argv, c.UserData)

	e.Host.StackRestore(orig)

	if retByArg {
		return nil
	}
	rt := UnboxSmallStructs(c.CIF.RType)
	if rt == nil || rt.Kind == ffi.KindVoid {
		return nil
	}
	switch rt.Kind {
	case ffi.KindInt, ffi.KindUint32, ffi.KindSint32, ffi.KindPointer:
		return e.Host.ReadU32(result)
	case ffi.KindUint8, ffi.KindSint8:
		return uint32(e.Host.ReadU8(result))
	case ffi.KindUint16, ffi.KindSint16:
		return uint32(e.Host.ReadU16(result))
	case ffi.KindFloat:
		return e.Host.ReadF32(result)
	case ffi.KindDouble:
		return e.Host.ReadF64(result)
	case ffi.KindUint64, ffi.KindSint64:
		return e.Host.ReadU64(result)
	default:
		ffi.Abort("dispatch", "unexpected return kind %s", ffi.KindName(rt.Kind))
		return nil
	}
}

// spillOne writes a single fixed argument's value, taken from the
// front of args, into a fresh linear-memory slot and returns its
// address along with the number of call_indirect values it consumed
// (2 for a longdouble pair, 1 otherwise). Struct arguments are already
// addresses and need no slot of their own.
func (e *ClosureEngine) spillOne(t *ffi.TypeDescriptor, args []interface{}) (Addr, int) {
	switch t.Kind {
	case ffi.KindUint8, ffi.KindSint8:
		addr := e.Host.StackAlloc(1, 4)
		e.Host.WriteU8(addr, uint8(toUint32(args[0])))
		return addr, 1
	case ffi.KindUint16, ffi.KindSint16:
		addr := e.Host.StackAlloc(2, 4)
		e.Host.WriteU16(addr, uint16(toUint32(args[0])))
		return addr, 1
	case ffi.KindInt, ffi.KindUint32, ffi.KindSint32, ffi.KindPointer:
		addr := e.Host.StackAlloc(4, 4)
		e.Host.WriteU32(addr, toUint32(args[0]))
		return addr, 1
	case ffi.KindFloat:
		addr := e.Host.StackAlloc(4, 4)
		e.Host.WriteF32(addr, args[0].(float32))
		return addr, 1
	case ffi.KindDouble:
		addr := e.Host.StackAlloc(8, 8)
		e.Host.WriteF64(addr, args[0].(float64))
		return addr, 1
	case ffi.KindUint64, ffi.KindSint64:
		addr := e.Host.StackAlloc(8, 8)
		e.Host.WriteU64(addr, toUint64(args[0]))
		return addr, 1
	case ffi.KindLongDouble:
		addr := e.Host.StackAlloc(16, 8)
		e.Host.WriteU64(addr, toUint64(args[0]))
		e.Host.WriteU64(addr+8, toUint64(args[1]))
		return addr, 2
	case ffi.KindStruct:
		return Addr(toUint32(args[0])), 1
	default:
		ffi.Abort("dispatch", "unexpected argument kind %s", ffi.KindName(t.Kind))
		return 0, 1
	}
}
