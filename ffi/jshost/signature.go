package jshost

import "github.com/wasix-org/libffi/ffi"

// BuildSignature computes the call_indirect-style signature string a
// trampoline for cif must expose: one letter per fixed argument (i for
// i32-sized/pointer/struct, f for float32, d for float64, j for i64,
// jj for a longdouble pair), a leading return letter (or "vi" when the
// return is by hidden pointer), and a trailing "i" when cif is
// variadic, for the pointer to the spilled varargs buffer.
func BuildSignature(cif *ffi.CIF) (sig string, retByArg bool) {
	switch rt := UnboxSmallStructs(cif.RType); {
	case rt == nil || rt.Kind == ffi.KindVoid:
		sig = "v"
	case rt.Kind == ffi.KindStruct || rt.Kind == ffi.KindLongDouble:
		sig, retByArg = "vi", true
	case rt.Kind == ffi.KindFloat:
		sig = "f"
	case rt.Kind == ffi.KindDouble:
		sig = "d"
	case rt.Kind == ffi.KindUint64, rt.Kind == ffi.KindSint64:
		sig = "j"
	case rt.Kind == ffi.KindComplex:
		abort("BuildSignature", "complex return marshalling is not implemented")
	default:
		sig = "i"
	}

	for i := uint32(0); i < cif.NFixedArgs; i++ {
		sig += argLetter(UnboxSmallStructs(cif.ArgTypes[i]))
	}
	if cif.NFixedArgs < cif.NArgs {
		sig += "i" // pointer to the spilled varargs buffer
	}
	return sig, retByArg
}

func argLetter(t *ffi.TypeDescriptor) string {
	switch t.Kind {
	case ffi.KindFloat:
		return "f"
	case ffi.KindDouble:
		return "d"
	case ffi.KindLongDouble:
		return "jj"
	case ffi.KindUint64, ffi.KindSint64:
		return "j"
	case ffi.KindComplex:
		abort("BuildSignature", "complex argument marshalling is not implemented")
		return ""
	default:
		return "i"
	}
}

func abort(op, format string, args ...interface{}) {
	ffi.Abort(op, format, args...)
}
