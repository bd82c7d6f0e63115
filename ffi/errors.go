package ffi

import "fmt"

// FatalError represents a condition with no recoverable response: a
// host primitive failure, an unknown type kind reaching the
// Lowerer/Raiser/Classifier after canonicalisation, ffi_call under
// WASM32 with the varargs flag set, or an unrecognised ABI tag. None of
// these are retriable; the only correct response is to abort the
// process, which in a Go library means panicking with a typed error
// rather than silently returning a wrong answer.
type FatalError struct {
	Op  string
	Msg string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("ffi: fatal: %s: %s", e.Op, e.Msg)
}

// abort panics with a *FatalError built from op and the formatted
// message. Every fatal-error call site in this package funnels through
// here so the failure mode is consistent and greppable.
func abort(op, format string, args ...interface{}) {
	panic(&FatalError{Op: op, Msg: fmt.Sprintf(format, args...)})
}

// Abort is abort, exported for the host-variant packages: their fatal
// conditions (an unmarshallable type reaching a trampoline, a host
// primitive failure) are the same kind of unrecoverable error as this
// package's own, and should panic the same way.
func Abort(op, format string, args ...interface{}) {
	abort(op, format, args...)
}
