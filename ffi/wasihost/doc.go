// Package wasihost implements the non-JS closure engine and dynamic-call
// primitive: a host exposes exactly four operations (call a
// table-indexed function pointer with a flat argument buffer, reserve a
// table slot, install a trampoline into a reserved slot, and release a
// slot) and this
// package drives libffi-level Call/PrepClosureLoc/ClosureFree semantics
// on top of them.
//
// A Host whose callees run outside this process (a real wasm engine
// instance, as opposed to the in-process test doubles this package's
// own tests use) should also implement ffi.StructMemory, so that
// ffi.Call and this package's closure dispatch relocate STRUCT
// arguments and returns through the callee's own address space instead
// of a native Go pointer value.
package wasihost
