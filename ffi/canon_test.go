package ffi

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanonicalise_ComplexBecomesStruct(t *testing.T) {
	for _, tc := range []struct {
		name string
		elem Kind
		size uint32
	}{
		{"float", KindFloat, 4},
		{"double", KindDouble, 8},
		{"longdouble", KindLongDouble, 16},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ty := NewComplex(tc.elem)
			kind := Canonicalise(ty, false)
			require.Equal(t, KindStruct, kind)
			require.Equal(t, KindStruct, ty.Kind)
			require.Equal(t, tc.size*2, ty.Size)
			require.Len(t, ty.Elements, 2)
			require.Equal(t, tc.elem, ty.Elements[0].Kind)
		})
	}
}

func TestCanonicalise_ComplexUnsupportedElement(t *testing.T) {
	ty := &TypeDescriptor{Kind: KindComplex, Elements: []*TypeDescriptor{NewScalar(KindInt)}}
	require.Panics(t, func() { Canonicalise(ty, false) })
}

func TestCanonicalise_ReturnLongDoubleBecomesStruct(t *testing.T) {
	ty := NewScalar(KindLongDouble)
	kind := Canonicalise(ty, true)
	require.Equal(t, KindStruct, kind)
	require.EqualValues(t, 16, ty.Size)
	require.EqualValues(t, 16, ty.Alignment)
	require.Len(t, ty.Elements, 2)
	require.Equal(t, KindSint64, ty.Elements[0].Kind)
}

func TestCanonicalise_ArgumentLongDoubleUnchanged(t *testing.T) {
	ty := NewScalar(KindLongDouble)
	kind := Canonicalise(ty, false)
	require.Equal(t, KindLongDouble, kind)
}

func TestCanonicalise_ZeroSizeStructBecomesVoid(t *testing.T) {
	ty := &TypeDescriptor{Size: 0, Kind: KindStruct}
	kind := Canonicalise(ty, false)
	require.Equal(t, KindVoid, kind)
	require.Equal(t, KindVoid, ty.Kind)
}

func TestCanonicalise_SingleElementStructCollapses(t *testing.T) {
	// struct { int } -> int
	ty := NewStruct(4, 4, NewScalar(KindInt))
	kind := Canonicalise(ty, false)
	require.Equal(t, KindInt, kind)
	require.Equal(t, KindInt, ty.Kind)
	// size/alignment are not rewritten by the collapse
	require.EqualValues(t, 4, ty.Size)
}

func TestCanonicalise_SingleNonVoidPlusZeroSizeStructCollapses(t *testing.T) {
	// struct { int; struct{} } -> int
	emptyInner := &TypeDescriptor{Size: 0, Kind: KindStruct}
	ty := NewStruct(4, 4, NewScalar(KindInt), emptyInner)
	kind := Canonicalise(ty, false)
	require.Equal(t, KindInt, kind)
	require.Equal(t, KindVoid, emptyInner.Kind)
}

func TestCanonicalise_TwoNonVoidElementsStaysStruct(t *testing.T) {
	// struct { int; int } stays STRUCT
	ty := NewStruct(8, 4, NewScalar(KindInt), NewScalar(KindInt))
	kind := Canonicalise(ty, false)
	require.Equal(t, KindStruct, kind)
	require.Equal(t, KindStruct, ty.Kind)
}

func TestCanonicalise_NilReturnIsVoid(t *testing.T) {
	require.Equal(t, KindVoid, Canonicalise(nil, true))
}

func TestCanonicalise_NilArgumentPanics(t *testing.T) {
	require.Panics(t, func() { Canonicalise(nil, false) })
}

func TestCanonicalise_Idempotent(t *testing.T) {
	ty := NewStruct(8, 4, NewComplex(KindFloat), NewScalar(KindInt))
	first := Canonicalise(ty, false)
	// snapshot
	snapshotKind := ty.Kind
	snapshotSize := ty.Size
	second := Canonicalise(ty, false)
	require.Equal(t, first, second)
	require.Equal(t, snapshotKind, ty.Kind)
	require.Equal(t, snapshotSize, ty.Size)
}
