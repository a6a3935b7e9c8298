package vmm

import (
	"rvos/kernel/cpu"
	"rvos/kernel/mem"
)

// memcopyFn copies size bytes from src to dst. A seam over mem.Memcopy so
// tests driving MapArea.CopyData against fake (non-physical) frame
// addresses don't dereference raw pointers under a hosted `go test` run.
var memcopyFn = mem.Memcopy

// activateFn installs token as the active address space and flushes the
// TLB. A function-variable seam, same shape as entriesAtFn/panicFn, so
// MemorySet.Activate is exercisable under `go test` without touching the
// satp CSR.
var activateFn = func(token uint64) {
	cpu.WriteSatp(token)
	cpu.SfenceVMA()
}
