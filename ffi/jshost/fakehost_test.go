package jshost

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/wasix-org/libffi/ffi"
)

// fakeHost is an in-process Host backed by a plain Go byte slice acting
// as linear memory, a stack pointer into the tail of that same slice,
// and a map-based indirect function table. It exists only to exercise
// Engine/ClosureEngine without a real wasm runtime.
type fakeHost struct {
	mem   []byte
	sp    Addr
	table map[ffi.TableSlot]WasmFunc
	next  ffi.TableSlot
}

func newFakeHost(memSize uint32) *fakeHost {
	return &fakeHost{
		mem:   make([]byte, memSize),
		sp:    Addr(memSize),
		table: make(map[ffi.TableSlot]WasmFunc),
	}
}

func (h *fakeHost) ReadU8(a Addr) uint8    { return h.mem[a] }
func (h *fakeHost) ReadS8(a Addr) int8     { return int8(h.mem[a]) }
func (h *fakeHost) ReadU16(a Addr) uint16  { return binary.LittleEndian.Uint16(h.mem[a:]) }
func (h *fakeHost) ReadS16(a Addr) int16   { return int16(binary.LittleEndian.Uint16(h.mem[a:])) }
func (h *fakeHost) ReadU32(a Addr) uint32  { return binary.LittleEndian.Uint32(h.mem[a:]) }
func (h *fakeHost) ReadS32(a Addr) int32   { return int32(binary.LittleEndian.Uint32(h.mem[a:])) }
func (h *fakeHost) ReadU64(a Addr) uint64  { return binary.LittleEndian.Uint64(h.mem[a:]) }
func (h *fakeHost) ReadF32(a Addr) float32 { return math.Float32frombits(h.ReadU32(a)) }
func (h *fakeHost) ReadF64(a Addr) float64 { return math.Float64frombits(h.ReadU64(a)) }

func (h *fakeHost) WriteU8(a Addr, v uint8)   { h.mem[a] = v }
func (h *fakeHost) WriteS8(a Addr, v int8)    { h.mem[a] = uint8(v) }
func (h *fakeHost) WriteU16(a Addr, v uint16) { binary.LittleEndian.PutUint16(h.mem[a:], v) }
func (h *fakeHost) WriteS16(a Addr, v int16)  { binary.LittleEndian.PutUint16(h.mem[a:], uint16(v)) }
func (h *fakeHost) WriteU32(a Addr, v uint32) { binary.LittleEndian.PutUint32(h.mem[a:], v) }
func (h *fakeHost) WriteU64(a Addr, v uint64) { binary.LittleEndian.PutUint64(h.mem[a:], v) }
func (h *fakeHost) WriteF32(a Addr, v float32) { h.WriteU32(a, math.Float32bits(v)) }
func (h *fakeHost) WriteF64(a Addr, v float64) { h.WriteU64(a, math.Float64bits(v)) }

func (h *fakeHost) CopyBytes(dst, src Addr, size uint32) {
	copy(h.mem[dst:uint32(dst)+size], h.mem[src:uint32(src)+size])
}

func (h *fakeHost) StackSave() Addr { return h.sp }
func (h *fakeHost) StackRestore(a Addr) { h.sp = a }
func (h *fakeHost) StackAlloc(size, align uint32) Addr {
	h.sp -= Addr(size)
	h.sp &^= Addr(align - 1)
	return h.sp
}

type fakeWasmFunc func(args []interface{}) (interface{}, error)

func (f fakeWasmFunc) Call(args []interface{}) (interface{}, error) { return f(args) }

func (h *fakeHost) GetWasmTableEntry(slot ffi.TableSlot) WasmFunc { return h.table[slot] }
func (h *fakeHost) SetWasmTableEntry(slot ffi.TableSlot, fn WasmFunc) { h.table[slot] = fn }

func (h *fakeHost) GetEmptyTableSlot() (ffi.TableSlot, error) {
	h.next++
	return h.next, nil
}

func (h *fakeHost) FreeTableSlot(slot ffi.TableSlot) error {
	delete(h.table, slot)
	return nil
}

func (h *fakeHost) ConvertJsFunctionToWasm(cb Callback, sig string) (WasmFunc, error) {
	if len(sig) == 0 {
		return nil, fmt.Errorf("empty signature")
	}
	return fakeWasmFunc(func(args []interface{}) (interface{}, error) {
		return cb(args), nil
	}), nil
}
