package jshost

import "github.com/wasix-org/libffi/ffi"

// UnboxSmallStructs walks down through single-non-void-element structs
// the same way the Type Canonicaliser does, but non-mutating and
// re-applied on every call: the JS variant's ffi_prep_cif_machdep never
// rewrites cif->rtype/arg_types in place, so this has to be redone
// fresh each time a call or closure is prepared.
//
// Unlike Canonicalise, a struct larger than 16 bytes is never unboxed
// even if it has exactly one non-void element: some FFI front ends
// report such a field as if it were a bare pointer-sized scalar, and
// collapsing it here would silently mis-describe the true calling
// convention.
func UnboxSmallStructs(t *ffi.TypeDescriptor) *ffi.TypeDescriptor {
	for t != nil && t.Kind == ffi.KindStruct {
		if t.Size > 16 {
			break
		}

		var onlyNonVoid *ffi.TypeDescriptor
		nonVoidCount := 0
		for _, elem := range t.Elements {
			if elem.Kind != ffi.KindVoid {
				nonVoidCount++
				onlyNonVoid = elem
			}
		}
		switch nonVoidCount {
		case 0:
			return &ffi.TypeDescriptor{Kind: ffi.KindVoid}
		case 1:
			t = onlyNonVoid
		default:
			return t
		}
	}
	return t
}
