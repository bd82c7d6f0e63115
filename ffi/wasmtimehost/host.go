package wasmtimehost

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	"github.com/bytecodealliance/wasmtime-go"

	"github.com/wasix-org/libffi/ffi"
	"github.com/wasix-org/libffi/ffi/wasihost"
)

// Host is a wasihost.Host backed by a single wasmtime.Store, Instance
// and indirect function Table. Dynamic calls are dispatched by reading
// the callee's *wasmtime.Func straight out of the table and converting
// values' flat byte buffer to and from wasmtime.Val per the function's
// declared FuncType; closures are installed as host funcs wired into
// the same table.
//
// Host also implements ffi.StructMemory against memory, a bump-allocated
// arena reserved at the top of the driven module's linear memory: the
// WASI-like ABI has no module-side allocator convention a generic Host
// can call into (unlike jshost's Host.StackAlloc, which the JS-hosted
// ABI requires every module to export), so STRUCT arguments and returns
// are relocated into space this Host grows and owns itself.
type Host struct {
	store    *wasmtime.Store
	table    *wasmtime.Table
	memory   *wasmtime.Memory
	free     ffi.FreeSlotPool
	nextSlot uint32

	arenaBase uint32
	arenaNext uint32
}

// wasmPageSize is the byte size of one unit of wasmtime.Memory.Grow.
const wasmPageSize = 65536

// New wraps store, table and memory: an exported indirect function
// table and linear memory instantiated alongside the wasm module whose
// functions this Host will call and into which its closures will be
// installed.
func New(store *wasmtime.Store, table *wasmtime.Table, memory *wasmtime.Memory) *Host {
	return &Host{store: store, table: table, memory: memory}
}

var _ wasihost.Host = (*Host)(nil)
var _ ffi.StructMemory = (*Host)(nil)

// Alloc implements ffi.StructMemory: it bump-allocates size bytes
// aligned to align from an arena reserved at whatever offset linear
// memory had on the first call, growing memory as needed. The arena is
// never reclaimed within a Host's lifetime, which is adequate for the
// bounded call volume this variant drives through a single wasm
// instance.
func (h *Host) Alloc(size, align uint32) uint32 {
	data := h.memory.UnsafeData(h.store)
	if h.arenaBase == 0 {
		h.arenaBase = uint32(len(data))
		h.arenaNext = h.arenaBase
	}
	addr := alignUp(h.arenaNext, align)
	need := addr + size
	if need > uint32(len(data)) {
		grow := need - uint32(len(data))
		pages := (grow + wasmPageSize - 1) / wasmPageSize
		if _, err := h.memory.Grow(h.store, uint64(pages)); err != nil {
			ffi.Abort("wasmtimehost", "growing memory for struct relocation: %v", err)
		}
	}
	h.arenaNext = addr + size
	return addr
}

// CopyIn implements ffi.StructMemory.
func (h *Host) CopyIn(dst uint32, src ffi.Pointer, size uint32) {
	data := h.memory.UnsafeData(h.store)
	copy(data[dst:dst+size], unsafe.Slice((*byte)(src), size))
}

// CopyOut implements ffi.StructMemory.
func (h *Host) CopyOut(dst ffi.Pointer, addr uint32, size uint32) {
	data := h.memory.UnsafeData(h.store)
	copy(unsafe.Slice((*byte)(dst), size), data[addr:addr+size])
}

func alignUp(n, align uint32) uint32 {
	if align == 0 {
		return n
	}
	return (n + align - 1) &^ (align - 1)
}

// CallDynamic implements ffi.DynamicCaller: it looks up fn in the
// table, decodes values into one wasmtime.Val per declared parameter,
// invokes the function, and copies its results into results.
func (h *Host) CallDynamic(fn ffi.TableSlot, values []byte, results ffi.Pointer, resultsLen uint32) error {
	val := h.table.Get(h.store, uint32(fn))
	if val == nil {
		return fmt.Errorf("wasmtimehost: no function at table slot %d", fn)
	}
	callee := val.Funcref()
	if callee == nil {
		return fmt.Errorf("wasmtimehost: table slot %d is not a function", fn)
	}

	ty := callee.Type(h.store)
	params := ty.Params()

	args := make([]interface{}, len(params))
	cursor := uint32(0)
	for i, p := range params {
		v, n := readVal(p.Kind(), values[cursor:])
		args[i] = v
		cursor += n
	}

	ret, err := callee.Call(h.store, args...)
	if err != nil {
		return fmt.Errorf("wasmtimehost: call failed: %w", err)
	}
	if resultsLen == 0 {
		return nil
	}

	out := unsafe.Slice((*byte)(results), resultsLen)
	writeResult(ty.Results(), ret, out)
	return nil
}

// ClosureAllocate reserves a table slot, reusing one released by
// ClosureFree when available and growing the table otherwise.
func (h *Host) ClosureAllocate() (ffi.TableSlot, error) {
	if slot, ok := h.free.Take(); ok {
		return slot, nil
	}
	idx, err := h.table.Grow(h.store, 1, wasmtime.ValFuncref(nil))
	if err != nil {
		return 0, fmt.Errorf("wasmtimehost: growing table: %w", err)
	}
	h.nextSlot = idx
	return ffi.TableSlot(idx), nil
}

// ClosurePrepare builds a wasmtime FuncType from argTypes/resultTypes
// and installs a host func at slot that marshals every call into a
// flat byte buffer and forwards it to backing.
func (h *Host) ClosurePrepare(backing wasihost.BackingFunction, slot ffi.TableSlot, argTypes, resultTypes []ffi.SlotKind, closure *ffi.Closure) error {
	params := make([]*wasmtime.ValType, len(argTypes))
	for i, k := range argTypes {
		params[i] = wasmtime.NewValType(slotValKind(k))
	}
	results := make([]*wasmtime.ValType, len(resultTypes))
	for i, k := range resultTypes {
		results[i] = wasmtime.NewValType(slotValKind(k))
	}
	ty := wasmtime.NewFuncType(params, results)

	resultsSize := uint32(0)
	for _, k := range resultTypes {
		resultsSize += k.Size()
	}

	fn := wasmtime.NewFunc(h.store, ty, func(caller *wasmtime.Caller, vals []wasmtime.Val) ([]wasmtime.Val, *wasmtime.Trap) {
		wasmArguments := make([]byte, 0, 8*len(vals))
		for _, v := range vals {
			wasmArguments = appendVal(wasmArguments, v)
		}
		wasmResults := make([]byte, resultsSize)

		backing(wasmArguments, wasmResults, closure)

		out := make([]wasmtime.Val, len(resultTypes))
		cursor := uint32(0)
		for i, k := range resultTypes {
			out[i] = valFromBytes(k, wasmResults[cursor:])
			cursor += k.Size()
		}
		return out, nil
	})

	if err := h.table.Set(h.store, uint32(slot), wasmtime.ValFuncref(fn)); err != nil {
		return fmt.Errorf("wasmtimehost: installing closure at slot %d: %w", slot, err)
	}
	return nil
}

// ClosureFree clears slot's table entry and returns it to the free
// list for reuse by a later ClosureAllocate.
func (h *Host) ClosureFree(slot ffi.TableSlot) error {
	if err := h.table.Set(h.store, uint32(slot), wasmtime.ValFuncref(nil)); err != nil {
		return fmt.Errorf("wasmtimehost: clearing slot %d: %w", slot, err)
	}
	h.free.Release(slot)
	return nil
}

func slotValKind(k ffi.SlotKind) wasmtime.ValKind {
	switch k {
	case ffi.SlotI32:
		return wasmtime.KindI32
	case ffi.SlotI64:
		return wasmtime.KindI64
	case ffi.SlotF32:
		return wasmtime.KindF32
	case ffi.SlotF64:
		return wasmtime.KindF64
	default:
		ffi.Abort("wasmtimehost", "unknown slot kind %d", k)
		return wasmtime.KindI32
	}
}

func readVal(kind wasmtime.ValKind, buf []byte) (interface{}, uint32) {
	switch kind {
	case wasmtime.KindI32:
		return int32(binary.LittleEndian.Uint32(buf)), 4
	case wasmtime.KindI64:
		return int64(binary.LittleEndian.Uint64(buf)), 8
	case wasmtime.KindF32:
		return float32frombits(binary.LittleEndian.Uint32(buf)), 4
	case wasmtime.KindF64:
		return float64frombits(binary.LittleEndian.Uint64(buf)), 8
	default:
		ffi.Abort("wasmtimehost", "unsupported wasmtime value kind %v", kind)
		return nil, 0
	}
}

func writeResult(types []*wasmtime.ValType, ret interface{}, out []byte) {
	if len(types) == 0 {
		return
	}
	// wasmtime-go returns the single result bare (not wrapped in a
	// slice) when a func type has exactly one result.
	putVal(types[0].Kind(), ret, out)
	if len(types) <= 1 {
		return
	}
	cursor := uint32(slotSizeForKind(types[0].Kind()))
	for _, v := range ret.([]wasmtime.Val) {
		putVal(v.Kind(), v, out[cursor:])
		cursor += uint32(slotSizeForKind(v.Kind()))
	}
}

func putVal(kind wasmtime.ValKind, v interface{}, out []byte) {
	switch kind {
	case wasmtime.KindI32:
		binary.LittleEndian.PutUint32(out, uint32(toInt32(v)))
	case wasmtime.KindI64:
		binary.LittleEndian.PutUint64(out, uint64(toInt64(v)))
	case wasmtime.KindF32:
		binary.LittleEndian.PutUint32(out, float32bits(toFloat32(v)))
	case wasmtime.KindF64:
		binary.LittleEndian.PutUint64(out, float64bits(toFloat64(v)))
	default:
		ffi.Abort("wasmtimehost", "unsupported wasmtime value kind %v", kind)
	}
}

func appendVal(buf []byte, v wasmtime.Val) []byte {
	switch v.Kind() {
	case wasmtime.KindI32:
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(v.I32()))
		return append(buf, b[:]...)
	case wasmtime.KindI64:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], uint64(v.I64()))
		return append(buf, b[:]...)
	case wasmtime.KindF32:
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], float32bits(v.F32()))
		return append(buf, b[:]...)
	case wasmtime.KindF64:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], float64bits(v.F64()))
		return append(buf, b[:]...)
	default:
		ffi.Abort("wasmtimehost", "unsupported wasmtime value kind %v", v.Kind())
		return buf
	}
}

func valFromBytes(k ffi.SlotKind, buf []byte) wasmtime.Val {
	switch k {
	case ffi.SlotI32:
		return wasmtime.ValI32(int32(binary.LittleEndian.Uint32(buf)))
	case ffi.SlotI64:
		return wasmtime.ValI64(int64(binary.LittleEndian.Uint64(buf)))
	case ffi.SlotF32:
		return wasmtime.ValF32(float32frombits(binary.LittleEndian.Uint32(buf)))
	case ffi.SlotF64:
		return wasmtime.ValF64(float64frombits(binary.LittleEndian.Uint64(buf)))
	default:
		ffi.Abort("wasmtimehost", "unknown slot kind %d", k)
		return wasmtime.Val{}
	}
}

func slotSizeForKind(kind wasmtime.ValKind) int {
	switch kind {
	case wasmtime.KindI32, wasmtime.KindF32:
		return 4
	default:
		return 8
	}
}
