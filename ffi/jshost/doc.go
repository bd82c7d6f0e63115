// Package jshost implements the JS-hosted closure engine and forward
// caller: a host exposes wasm linear memory, a separate value stack for
// spilling variadic arguments, an indirect function table, and a
// primitive that turns a Go callback into a directly call_indirect-able
// wasm function. Unlike wasihost, values here live in the host's linear
// memory and are addressed by wasm32 byte offset rather than by a Go
// unsafe.Pointer, since the driving code in this variant is never
// itself compiled into the wasm module.
package jshost
