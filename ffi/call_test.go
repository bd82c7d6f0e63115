package ffi

import (
	"encoding/binary"
	"math"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

// fakeDynamicCaller stands in for a wasm host: it records the values
// buffer it was asked to dispatch with and writes a caller-supplied
// result directly into the results pointer, mirroring what a real
// call_indirect-backed host would do.
type fakeDynamicCaller struct {
	gotFn     TableSlot
	gotValues []byte
	result    []byte
	err       error
}

func (f *fakeDynamicCaller) CallDynamic(fn TableSlot, values []byte, results Pointer, resultsLen uint32) error {
	f.gotFn = fn
	f.gotValues = append([]byte(nil), values...)
	if f.err != nil {
		return f.err
	}
	if resultsLen > 0 {
		copy(unsafe.Slice((*byte)(results), resultsLen), f.result)
	}
	return nil
}

func TestCall_AddValuesBufferAndResult(t *testing.T) {
	intTy := NewScalar(KindInt)
	cif := &CIF{ABI: WASM32, NArgs: 2, ArgTypes: []*TypeDescriptor{intTy, intTy}, RType: intTy}
	require.Equal(t, OK, PrepCIFMachdep(cif))

	a, b := int32(3), int32(4)
	avalue := []Pointer{unsafe.Pointer(&a), unsafe.Pointer(&b)}

	var result int32
	dyn := &fakeDynamicCaller{result: []byte{0x07, 0x00, 0x00, 0x00}}
	Call(dyn, cif, TableSlot(42), unsafe.Pointer(&result), avalue)

	require.EqualValues(t, 42, dyn.gotFn)
	require.Equal(t, []byte{0x03, 0x00, 0x00, 0x00, 0x04, 0x00, 0x00, 0x00}, dyn.gotValues)
	require.EqualValues(t, 7, result)
}

func TestCall_StructReturnIsIndirect(t *testing.T) {
	// struct { int a, b; } swap(struct { int a, b; } p) — indirect return.
	pairTy := NewStruct(8, 4, NewScalar(KindInt), NewScalar(KindInt))
	cif := &CIF{ABI: WASM32, NArgs: 1, ArgTypes: []*TypeDescriptor{pairTy}, RType: pairTy}
	require.Equal(t, OK, PrepCIFMachdep(cif))

	type pair struct{ a, b int32 }
	arg := pair{1, 2}
	var out pair

	dyn := &fakeDynamicCaller{}
	Call(dyn, cif, TableSlot(7), unsafe.Pointer(&out), []Pointer{unsafe.Pointer(&arg)})

	require.Len(t, dyn.gotValues, 8) // hidden result pointer + one struct-pointer slot
	gotResultPtr := binary.LittleEndian.Uint32(dyn.gotValues[0:4])
	require.EqualValues(t, uintptr(unsafe.Pointer(&out)), gotResultPtr)
	gotArgPtr := binary.LittleEndian.Uint32(dyn.gotValues[4:8])
	require.EqualValues(t, uintptr(unsafe.Pointer(&arg)), gotArgPtr)
}

func TestCall_MixedFloatDoubleArgs(t *testing.T) {
	cif := &CIF{
		ABI:      WASM32,
		NArgs:    2,
		ArgTypes: []*TypeDescriptor{NewScalar(KindDouble), NewScalar(KindFloat)},
		RType:    NewScalar(KindDouble),
	}
	require.Equal(t, OK, PrepCIFMachdep(cif))

	x := 1.5
	y := float32(2.0)
	var result float64
	dyn := &fakeDynamicCaller{result: make([]byte, 8)}
	binary.LittleEndian.PutUint64(dyn.result, math.Float64bits(3.0))

	Call(dyn, cif, TableSlot(1), unsafe.Pointer(&result), []Pointer{unsafe.Pointer(&x), unsafe.Pointer(&y)})

	require.Len(t, dyn.gotValues, 12)
	require.EqualValues(t, 3.0, result)
}

func TestCall_VariadicWASM32Aborts(t *testing.T) {
	cif := &CIF{ABI: WASM32, RType: NewScalar(KindVoid)}
	cif.Flags |= FlagVarargs
	require.Panics(t, func() {
		Call(&fakeDynamicCaller{}, cif, TableSlot(0), nil, nil)
	})
}

func TestCall_EmscriptenAbortsInCoreEngine(t *testing.T) {
	cif := &CIF{ABI: WASM32Emscripten, RType: NewScalar(KindVoid)}
	require.Panics(t, func() {
		Call(&fakeDynamicCaller{}, cif, TableSlot(0), nil, nil)
	})
}

func TestCall_HostErrorAborts(t *testing.T) {
	intTy := NewScalar(KindInt)
	cif := &CIF{ABI: WASM32, NArgs: 0, RType: intTy}
	require.Equal(t, OK, PrepCIFMachdep(cif))
	dyn := &fakeDynamicCaller{err: errCallFailed{}}
	var result int32
	require.Panics(t, func() {
		Call(dyn, cif, TableSlot(0), unsafe.Pointer(&result), nil)
	})
}

type errCallFailed struct{}

func (errCallFailed) Error() string { return "host call failed" }

// fakeMemoryCaller stands in for a real wasm engine instance: it
// implements StructMemory against its own byte slice, an address space
// entirely distinct from this process's own heap, and its CallDynamic
// only ever dereferences addresses into that arena — never a native Go
// pointer value — mirroring what a real callee driven through
// wasmtimehost would do.
type fakeMemoryCaller struct {
	gotFn     TableSlot
	gotValues []byte
	arena     []byte
	next      uint32
}

func (f *fakeMemoryCaller) Alloc(size, align uint32) uint32 {
	if align == 0 {
		align = 1
	}
	addr := (f.next + align - 1) &^ (align - 1)
	need := addr + size
	if need > uint32(len(f.arena)) {
		grown := make([]byte, need)
		copy(grown, f.arena)
		f.arena = grown
	}
	f.next = addr + size
	return addr
}

func (f *fakeMemoryCaller) CopyIn(dst uint32, src Pointer, size uint32) {
	copy(f.arena[dst:dst+size], unsafe.Slice((*byte)(src), size))
}

func (f *fakeMemoryCaller) CopyOut(dst Pointer, addr uint32, size uint32) {
	copy(unsafe.Slice((*byte)(dst), size), f.arena[addr:addr+size])
}

// CallDynamic simulates a callee that swaps a struct{int,int}'s two
// fields, writing its result only through the hidden pointer it was
// handed. Unlike fakeDynamicCaller, which only records the values
// buffer, it dereferences both pointers, and every address involved
// lives in f.arena, not in this process's heap.
func (f *fakeMemoryCaller) CallDynamic(fn TableSlot, values []byte, results Pointer, resultsLen uint32) error {
	f.gotFn = fn
	f.gotValues = append([]byte(nil), values...)

	resultAddr := binary.LittleEndian.Uint32(values[0:4])
	argAddr := binary.LittleEndian.Uint32(values[4:8])
	a := binary.LittleEndian.Uint32(f.arena[argAddr : argAddr+4])
	b := binary.LittleEndian.Uint32(f.arena[argAddr+4 : argAddr+8])
	binary.LittleEndian.PutUint32(f.arena[resultAddr:resultAddr+4], b)
	binary.LittleEndian.PutUint32(f.arena[resultAddr+4:resultAddr+8], a)
	return nil
}

func TestCall_StructArgsAndReturnRelocateThroughStructMemory(t *testing.T) {
	pairTy := NewStruct(8, 4, NewScalar(KindInt), NewScalar(KindInt))
	cif := &CIF{ABI: WASM32, NArgs: 1, ArgTypes: []*TypeDescriptor{pairTy}, RType: pairTy}
	require.Equal(t, OK, PrepCIFMachdep(cif))

	type pair struct{ a, b int32 }
	arg := pair{1, 2}
	var out pair

	dyn := &fakeMemoryCaller{}
	Call(dyn, cif, TableSlot(7), unsafe.Pointer(&out), []Pointer{unsafe.Pointer(&arg)})

	require.Len(t, dyn.gotValues, 8)
	gotResultAddr := binary.LittleEndian.Uint32(dyn.gotValues[0:4])
	gotArgAddr := binary.LittleEndian.Uint32(dyn.gotValues[4:8])

	// Neither address is the corresponding native Go pointer: both were
	// relocated into the callee's own arena.
	require.NotEqualValues(t, uintptr(unsafe.Pointer(&out)), gotResultAddr)
	require.NotEqualValues(t, uintptr(unsafe.Pointer(&arg)), gotArgAddr)
	require.LessOrEqual(t, int(gotResultAddr+4), len(dyn.arena))
	require.LessOrEqual(t, int(gotArgAddr+8), len(dyn.arena))

	require.Equal(t, pair{2, 1}, out)
}
