package wasihost

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	"github.com/wasix-org/libffi/ffi"
)

// Host is the complete set of primitives the non-JS variant needs from
// its embedder: calling a table-indexed function pointer with a flat
// argument buffer, reserving a table slot for a future closure,
// installing a trampoline into a previously reserved slot, and
// releasing a slot once its closure is freed.
//
// Host embeds ffi.DynamicCaller directly: a Host is itself usable as
// the dyn argument to ffi.Call.
type Host interface {
	ffi.DynamicCaller

	// ClosureAllocate reserves a spot in the indirect function table
	// for a future closure and returns its index.
	ClosureAllocate() (ffi.TableSlot, error)

	// ClosurePrepare installs backing as the function the host will
	// invoke when slot is called through call_indirect, with argTypes
	// and resultTypes describing the wasm-level signature the host
	// should expose at that slot. closure is opaque to the host: it is
	// handed back verbatim to backing on every call.
	ClosurePrepare(backing BackingFunction, slot ffi.TableSlot, argTypes, resultTypes []ffi.SlotKind, closure *ffi.Closure) error

	// ClosureFree releases a slot previously returned by
	// ClosureAllocate. Calling the function at slot after this returns
	// is undefined.
	ClosureFree(slot ffi.TableSlot) error
}

// BackingFunction is the single dispatcher every closure installs at
// its table slot. The host invokes it with the raw wasm-ABI argument
// buffer, an empty results buffer to fill in, and the *ffi.Closure that
// was bound to the slot by ClosurePrepare.
type BackingFunction func(wasmArguments, wasmResults []byte, closure *ffi.Closure)

// ClosureEngine drives closure lifetime management against a Host: it
// turns PrepClosureLoc's libffi-level inputs into the wasm-type-tag
// buffers ClosurePrepare expects, and supplies the one shared
// BackingFunction every closure is installed with.
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

// Alloc reserves a table slot and returns a Closure bound to it. The
// returned Closure still needs PrepClosureLoc before it is callable.
func (e *ClosureEngine) Alloc(cif *ffi.CIF) (*ffi.Closure, error) {
	if cif.NArgs > e.Config.MaxArgs() {
		return nil, fmt.Errorf("wasihost: %d arguments exceeds configured maximum of %d", cif.NArgs, e.Config.MaxArgs())
	}
	slot, err := e.Host.ClosureAllocate()
	if err != nil {
		return nil, err
	}
	e.Config.Logger()("wasihost: allocated closure at slot %d", slot)
	return &ffi.Closure{Ftramp: slot, CIF: cif}, nil
}

// Free releases c's table slot back to the host.
func (e *ClosureEngine) Free(c *ffi.Closure) error {
	if err := e.Host.ClosureFree(c.Ftramp); err != nil {
		return err
	}
	e.Config.Logger()("wasihost: freed closure at slot %d", c.Ftramp)
	return nil
}

// PrepClosureLoc binds c to cif, fun and userData, and asks the host to
// install the shared backing dispatcher at codeloc with the wasm-level
// signature cif implies. WASM32Emscripten CIFs are rejected with
// BadABI: the JS variant drives closures through its own engine. A
// failure of the host's ClosurePrepare primitive itself is fatal and
// aborts rather than returning a declarative status: unlike the JS
// variant's trampoline-conversion failure, there is no recoverable
// outcome here.
func (e *ClosureEngine) PrepClosureLoc(c *ffi.Closure, cif *ffi.CIF, fun ffi.ClosureHandler, userData ffi.Pointer, codeloc ffi.TableSlot) ffi.Status {
	if cif.ABI == ffi.WASM32Emscripten {
		return ffi.BadABI
	}

	var argTypes, resultTypes []ffi.SlotKind
	if ffi.IndirectReturn(cif.RType) {
		argTypes = append(argTypes, ffi.SlotKinds(cif.RType)...)
	} else {
		resultTypes = append(resultTypes, ffi.SlotKinds(cif.RType)...)
	}
	for _, arg := range cif.ArgTypes {
		argTypes = append(argTypes, ffi.SlotKinds(arg)...)
	}

	c.CIF = cif
	c.Fun = fun
	c.UserData = userData
	c.Ftramp = codeloc

	if err := e.Host.ClosurePrepare(e.dispatch, codeloc, argTypes, resultTypes, c); err != nil {
		ffi.Abort("PrepClosureLoc", "host closure-prepare primitive failed: %v", err)
	}
	e.Config.Logger()("wasihost: prepared closure at slot %d", codeloc)
	return ffi.OK
}

// dispatch is the sole BackingFunction every closure installs: it
// raises wasmArguments into libffi-level argument pointers per
// closure.CIF, locates the result storage, and forwards to closure.Fun.
//
// When e.Host also implements ffi.StructMemory, wasmArguments' STRUCT
// slots hold addresses in the host's own address space rather than
// native Go pointers; those are copied into a fresh native buffer
// before closure.Fun runs, and an indirect STRUCT return is copied back
// out through the same address afterward.
func (e *ClosureEngine) dispatch(wasmArguments, wasmResults []byte, closure *ffi.Closure) {
	e.Config.Logger()("wasihost: dispatching closure at slot %d", closure.Ftramp)
	cif := closure.CIF
	mem, relocate := e.Host.(ffi.StructMemory)

	var result ffi.Pointer
	var resultAddr uint32
	var resultBuf []byte
	cursor := uint32(0)
	if ffi.IndirectReturn(cif.RType) {
		if relocate {
			resultAddr = binary.LittleEndian.Uint32(wasmArguments[cursor:])
			resultBuf = make([]byte, cif.RType.Size)
			result = unsafe.Pointer(&resultBuf[0])
			cursor += 4
		} else {
			var n uint32
			result, n = ffi.Raise(cif.RType, wasmArguments[cursor:])
			cursor += n
		}
	} else if len(wasmResults) > 0 {
		result = unsafe.Pointer(&wasmResults[0])
	}

	args := make([]ffi.Pointer, len(cif.ArgTypes))
	for i, arg := range cif.ArgTypes {
		if arg.Kind == ffi.KindStruct && relocate {
			addr := binary.LittleEndian.Uint32(wasmArguments[cursor:])
			buf := make([]byte, arg.Size)
			mem.CopyOut(unsafe.Pointer(&buf[0]), addr, arg.Size)
			args[i] = unsafe.Pointer(&buf[0])
			cursor += 4
		} else {
			p, n := ffi.Raise(arg, wasmArguments[cursor:])
			args[i] = p
			cursor += n
		}
	}

	closure.Fun(cif, result, args, closure.UserData)

	if relocate && ffi.IndirectReturn(cif.RType) {
		mem.CopyIn(resultAddr, unsafe.Pointer(&resultBuf[0]), cif.RType.Size)
	}
}
