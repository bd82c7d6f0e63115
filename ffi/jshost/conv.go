package jshost

import "github.com/wasix-org/libffi/ffi"

// toUint32 normalises an interface{} produced by a WasmFunc call or a
// Callback result into its underlying 32-bit pattern, accepting either
// the signed or unsigned flavour since the wasm i32 calling convention
// carries no signedness of its own.
func toUint32(v interface{}) uint32 {
	switch x := v.(type) {
	case uint32:
		return x
	case int32:
		return uint32(x)
	default:
		ffi.Abort("toUint32", "unexpected i32 argument value of type %T", v)
		return 0
	}
}

func toUint64(v interface{}) uint64 {
	switch x := v.(type) {
	case uint64:
		return x
	case int64:
		return uint64(x)
	default:
		ffi.Abort("toUint64", "unexpected i64 argument value of type %T", v)
		return 0
	}
}
