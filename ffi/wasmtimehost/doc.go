// Package wasmtimehost implements wasihost.Host against a real
// bytecodealliance/wasmtime-go instance: call_indirect dispatch through
// wasmtime's Table and Func, closure trampolines installed as
// host-defined funcs bound into the module's table, and ffi.StructMemory
// against wasmtime's Memory, so STRUCT arguments and returns are
// relocated into the driven instance's own linear memory rather than
// passed as a native Go pointer value a real callee cannot dereference.
package wasmtimehost
