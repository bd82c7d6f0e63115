package ffi

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestABISizeAndSlots(t *testing.T) {
	for _, tc := range []struct {
		kind        Kind
		size        uint32
		slots       []SlotKind
		indirectRet bool
	}{
		{KindVoid, 0, nil, false},
		{KindInt, 4, []SlotKind{SlotI32}, false},
		{KindUint8, 4, []SlotKind{SlotI32}, false},
		{KindSint8, 4, []SlotKind{SlotI32}, false},
		{KindUint16, 4, []SlotKind{SlotI32}, false},
		{KindSint16, 4, []SlotKind{SlotI32}, false},
		{KindUint32, 4, []SlotKind{SlotI32}, false},
		{KindSint32, 4, []SlotKind{SlotI32}, false},
		{KindPointer, 4, []SlotKind{SlotI32}, false},
		{KindStruct, 4, []SlotKind{SlotI32}, true},
		{KindFloat, 4, []SlotKind{SlotF32}, false},
		{KindUint64, 8, []SlotKind{SlotI64}, false},
		{KindSint64, 8, []SlotKind{SlotI64}, false},
		{KindDouble, 8, []SlotKind{SlotF64}, false},
		{KindLongDouble, 16, []SlotKind{SlotI64, SlotI64}, false},
	} {
		t.Run(KindName(tc.kind), func(t *testing.T) {
			ty := &TypeDescriptor{Kind: tc.kind}
			require.Equal(t, tc.size, ABISize(ty))
			require.Equal(t, tc.slots, SlotKinds(ty))
			require.Equal(t, len(tc.slots), SlotCount(ty))
			require.Equal(t, tc.indirectRet, IndirectReturn(ty))

			var total uint32
			for _, s := range SlotKinds(ty) {
				total += s.Size()
			}
			require.Equal(t, tc.size, total, "slot/byte agreement")
		})
	}
}

func TestABISize_NilIsVoid(t *testing.T) {
	require.EqualValues(t, 0, ABISize(nil))
	require.Nil(t, SlotKinds(nil))
	require.Equal(t, 0, SlotCount(nil))
	require.False(t, IndirectReturn(nil))
}
