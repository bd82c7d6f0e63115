package wasmerhost

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/wasmerio/wasmer-go/wasmer"

	"github.com/wasix-org/libffi/ffi"
	"github.com/wasix-org/libffi/ffi/jshost"
)

// Host is a jshost.Host backed by a real wasmer.Instance: Memory reads
// and writes go straight through wasmer.Memory.Data, the value stack is
// driven by the module's own exported stackSave/stackRestore/stackAlloc
// functions the way emscripten output exposes them, and the indirect
// function table is a wasmer.Table sized and grown the same way the
// module's own table grows.
type Host struct {
	store    *wasmer.Store
	instance *wasmer.Instance
	memory   *wasmer.Memory
	table    *wasmer.Table

	stackSave    *wasmer.Function
	stackRestore *wasmer.Function
	stackAlloc   *wasmer.Function

	free     []ffi.TableSlot
	nextSlot uint32
}

// New wraps an already-instantiated module. memoryExport and
// tableExport are the export names of its linear memory and indirect
// function table (conventionally "memory" and "__indirect_function_table"
// in emscripten output); stackSaveFn, stackRestoreFn and stackAllocFn
// name its exported stack-bookkeeping functions.
func New(store *wasmer.Store, instance *wasmer.Instance, memoryExport, tableExport, stackSaveFn, stackRestoreFn, stackAllocFn string) (*Host, error) {
	mem, err := instance.Exports.GetMemory(memoryExport)
	if err != nil {
		return nil, fmt.Errorf("wasmerhost: %w", err)
	}
	tbl, err := instance.Exports.GetTable(tableExport)
	if err != nil {
		return nil, fmt.Errorf("wasmerhost: %w", err)
	}
	save, err := instance.Exports.GetRawFunction(stackSaveFn)
	if err != nil {
		return nil, fmt.Errorf("wasmerhost: %w", err)
	}
	restore, err := instance.Exports.GetRawFunction(stackRestoreFn)
	if err != nil {
		return nil, fmt.Errorf("wasmerhost: %w", err)
	}
	alloc, err := instance.Exports.GetRawFunction(stackAllocFn)
	if err != nil {
		return nil, fmt.Errorf("wasmerhost: %w", err)
	}
	return &Host{
		store: store, instance: instance, memory: mem, table: tbl,
		stackSave: save, stackRestore: restore, stackAlloc: alloc,
	}, nil
}

var _ jshost.Host = (*Host)(nil)

func (h *Host) bytes() []byte { return h.memory.Data() }

func (h *Host) ReadU8(a jshost.Addr) uint8   { return h.bytes()[a] }
func (h *Host) ReadS8(a jshost.Addr) int8    { return int8(h.bytes()[a]) }
func (h *Host) ReadU16(a jshost.Addr) uint16 { return binary.LittleEndian.Uint16(h.bytes()[a:]) }
func (h *Host) ReadS16(a jshost.Addr) int16 {
	return int16(binary.LittleEndian.Uint16(h.bytes()[a:]))
}
func (h *Host) ReadU32(a jshost.Addr) uint32 { return binary.LittleEndian.Uint32(h.bytes()[a:]) }
func (h *Host) ReadS32(a jshost.Addr) int32 {
	return int32(binary.LittleEndian.Uint32(h.bytes()[a:]))
}
func (h *Host) ReadU64(a jshost.Addr) uint64  { return binary.LittleEndian.Uint64(h.bytes()[a:]) }
func (h *Host) ReadF32(a jshost.Addr) float32 { return math.Float32frombits(h.ReadU32(a)) }
func (h *Host) ReadF64(a jshost.Addr) float64 { return math.Float64frombits(h.ReadU64(a)) }

func (h *Host) WriteU8(a jshost.Addr, v uint8)  { h.bytes()[a] = v }
func (h *Host) WriteS8(a jshost.Addr, v int8)   { h.bytes()[a] = uint8(v) }
func (h *Host) WriteU16(a jshost.Addr, v uint16) {
	binary.LittleEndian.PutUint16(h.bytes()[a:], v)
}
func (h *Host) WriteS16(a jshost.Addr, v int16) {
	binary.LittleEndian.PutUint16(h.bytes()[a:], uint16(v))
}
func (h *Host) WriteU32(a jshost.Addr, v uint32) {
	binary.LittleEndian.PutUint32(h.bytes()[a:], v)
}
func (h *Host) WriteU64(a jshost.Addr, v uint64) {
	binary.LittleEndian.PutUint64(h.bytes()[a:], v)
}
func (h *Host) WriteF32(a jshost.Addr, v float32) { h.WriteU32(a, math.Float32bits(v)) }
func (h *Host) WriteF64(a jshost.Addr, v float64) { h.WriteU64(a, math.Float64bits(v)) }

func (h *Host) CopyBytes(dst, src jshost.Addr, size uint32) {
	mem := h.bytes()
	copy(mem[dst:uint32(dst)+size], mem[src:uint32(src)+size])
}

func (h *Host) StackSave() jshost.Addr {
	ret, err := h.stackSave.Call()
	if err != nil {
		ffi.Abort("wasmerhost", "stackSave failed: %v", err)
	}
	return jshost.Addr(uint32(ret.(int32)))
}

func (h *Host) StackRestore(a jshost.Addr) {
	if _, err := h.stackRestore.Call(int32(a)); err != nil {
		ffi.Abort("wasmerhost", "stackRestore failed: %v", err)
	}
}

// StackAlloc calls the module's own stackAlloc export for size, then
// masks the result down to align, mirroring the ALIGN_ADDRESS macro the
// JS-hosted variant applies on top of emscripten's own allocator.
func (h *Host) StackAlloc(size, align uint32) jshost.Addr {
	ret, err := h.stackAlloc.Call(int32(size + align))
	if err != nil {
		ffi.Abort("wasmerhost", "stackAlloc failed: %v", err)
	}
	addr := uint32(ret.(int32))
	addr &^= align - 1
	return jshost.Addr(addr)
}

type wasmerFunc struct{ fn *wasmer.Function }

func (f wasmerFunc) Call(args []interface{}) (interface{}, error) {
	return f.fn.Call(args...)
}

func (h *Host) GetWasmTableEntry(slot ffi.TableSlot) jshost.WasmFunc {
	val, err := h.table.Get(int(slot))
	if err != nil || val == nil {
		return nil
	}
	fn, ok := val.(*wasmer.Function)
	if !ok {
		return nil
	}
	return wasmerFunc{fn: fn}
}

func (h *Host) SetWasmTableEntry(slot ffi.TableSlot, fn jshost.WasmFunc) {
	wf, ok := fn.(wasmerFunc)
	if !ok {
		ffi.Abort("wasmerhost", "SetWasmTableEntry given a non-wasmer WasmFunc")
	}
	if err := h.table.Set(int(slot), wf.fn); err != nil {
		ffi.Abort("wasmerhost", "setting table slot %d: %v", slot, err)
	}
}

func (h *Host) GetEmptyTableSlot() (ffi.TableSlot, error) {
	if n := len(h.free); n > 0 {
		slot := h.free[n-1]
		h.free = h.free[:n-1]
		return slot, nil
	}
	if err := h.table.Grow(1, nil); err != nil {
		return 0, fmt.Errorf("wasmerhost: growing table: %w", err)
	}
	h.nextSlot++
	return ffi.TableSlot(h.nextSlot), nil
}

func (h *Host) FreeTableSlot(slot ffi.TableSlot) error {
	if err := h.table.Set(int(slot), nil); err != nil {
		return fmt.Errorf("wasmerhost: clearing slot %d: %w", slot, err)
	}
	h.free = append(h.free, slot)
	return nil
}

// ConvertJsFunctionToWasm builds a host-defined wasmer.Function whose
// parameter/result kinds follow sig letter-for-letter ('i'=I32,
// 'j'=I64, 'f'=F32, 'd'=F64; a leading 'v' means no result) and which
// forwards every call to cb.
func (h *Host) ConvertJsFunctionToWasm(cb jshost.Callback, sig string) (jshost.WasmFunc, error) {
	if len(sig) == 0 {
		return nil, fmt.Errorf("wasmerhost: empty call_indirect signature")
	}
	retLetter, paramLetters := sig[0], sig[1:]

	params := make([]wasmer.ValueKind, len(paramLetters))
	for i, l := range paramLetters {
		params[i] = valueKind(byte(l))
	}
	var results []wasmer.ValueKind
	if retLetter != 'v' {
		results = []wasmer.ValueKind{valueKind(retLetter)}
	}

	fnType := wasmer.NewFunctionType(wasmer.NewValueTypes(params...), wasmer.NewValueTypes(results...))
	fn := wasmer.NewFunction(h.store, fnType, func(args []wasmer.Value) ([]wasmer.Value, error) {
		goArgs := make([]interface{}, len(args))
		for i, a := range args {
			goArgs[i] = valueToGo(a)
		}
		result := cb(goArgs)
		if retLetter == 'v' || result == nil {
			return []wasmer.Value{}, nil
		}
		return []wasmer.Value{goToValue(retLetter, result)}, nil
	})
	return wasmerFunc{fn: fn}, nil
}

func valueKind(letter byte) wasmer.ValueKind {
	switch letter {
	case 'i':
		return wasmer.I32
	case 'j':
		return wasmer.I64
	case 'f':
		return wasmer.F32
	case 'd':
		return wasmer.F64
	default:
		ffi.Abort("wasmerhost", "unknown call_indirect signature letter %q", letter)
		return wasmer.I32
	}
}

func valueToGo(v wasmer.Value) interface{} {
	switch v.Kind() {
	case wasmer.I32:
		return uint32(v.I32())
	case wasmer.I64:
		return uint64(v.I64())
	case wasmer.F32:
		return v.F32()
	case wasmer.F64:
		return v.F64()
	default:
		ffi.Abort("wasmerhost", "unsupported wasmer value kind %v", v.Kind())
		return nil
	}
}

func goToValue(letter byte, v interface{}) wasmer.Value {
	switch letter {
	case 'i':
		return wasmer.NewI32(int32(v.(uint32)))
	case 'j':
		return wasmer.NewI64(int64(v.(uint64)))
	case 'f':
		return wasmer.NewF32(v.(float32))
	case 'd':
		return wasmer.NewF64(v.(float64))
	default:
		ffi.Abort("wasmerhost", "unknown call_indirect signature letter %q", letter)
		return wasmer.Value{}
	}
}
