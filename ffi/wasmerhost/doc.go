// Package wasmerhost implements jshost.Host against a real
// wasmerio/wasmer-go instance: linear memory access through
// wasmer.Memory.Data, the value stack through the module's exported
// stackSave/stackRestore/stackAlloc functions, and the indirect
// function table through wasmer.Table, wasmer.Function and
// wasmer.NewFunction.
package wasmerhost
