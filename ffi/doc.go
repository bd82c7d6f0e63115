// Package ffi implements the machine-dependent core of a libffi-compatible
// foreign-function interface for the wasm32 calling convention.
//
// The package bridges the generic libffi front-end contract (a Call
// Interface describing a C call by ABI tag, return type, and argument
// types) and the wasm32 ABI, where arguments are lowered into a fixed
// sequence of i32/i64/f32/f64 primitive values and nontrivial aggregates
// are passed by pointer to a caller-stack copy.
//
// This package implements everything that is common to both hosting
// variants: type canonicalisation, ABI classification, argument
// lowering/raising, and the forward caller. The two closure-engine
// variants (a JavaScript-hosted runtime and a WASI-like runtime) live in
// the sibling packages jshost and wasihost, each consuming a small set of
// host-supplied primitives defined by its own Host interface.
package ffi
