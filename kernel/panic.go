package kernel

import (
	"rvos/kernel/kfmt/early"
	"rvos/kernel/sbi"
)

var (
	// shutdownFn is mocked by tests and is automatically inlined by the
	// compiler in the freestanding build.
	shutdownFn = sbi.Shutdown

	errRuntimePanic = &Error{Module: "rt", Message: "unknown cause"}
)

// Panic prints the supplied error (if any) to the early console and then
// calls shutdownFn (sbi.Shutdown) to power the machine off. There is no
// cpu.Halt fallback: if shutdownFn returns, Panic returns to its caller.
// Every invariant violation named in
// spec.md §7 category 1 (double-free of a frame, unmap of an unmapped VPN,
// writing an already-valid leaf PTE, re-entrant trap-from-kernel) and every
// allocation-exhaustion path that callers treat as fatal today routes here.
func Panic(e interface{}) {
	var err *Error

	switch t := e.(type) {
	case *Error:
		err = t
	case string:
		errRuntimePanic.Message = t
		err = errRuntimePanic
	case error:
		errRuntimePanic.Message = t.Error()
		err = errRuntimePanic
	case nil:
		err = nil
	default:
		err = errRuntimePanic
	}

	early.Printf("\n-----------------------------------\n")
	if err != nil {
		early.Printf("[%s] unrecoverable error: %s\n", err.Module, err.Message)
	}
	early.Printf("*** kernel panic: hart halted ***")
	early.Printf("\n-----------------------------------\n")

	shutdownFn()
}
