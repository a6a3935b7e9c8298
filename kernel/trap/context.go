// Package trap implements the U<->S transition: the fixed-layout save area
// (context.go), the shared trampoline assembly (trampoline.go,
// trampoline_riscv64.s), and the high-level scause/stval dispatcher
// (handler.go). Grounded on original_source/kernel/src/trap (context.rs,
// mod.rs, trap.S), translated from Rust's riscv::register CSR wrappers to
// the cpu package's bodiless-func convention.
package trap

import "rvos/kernel/cpu"

// sstatusSPP is bit 8 of sstatus: the previous privilege mode a trap
// returns to. Clearing it arranges for sret to drop to User mode.
const sstatusSPP = 1 << 8

// readSstatusFn is a seam over cpu.ReadSstatus, the same shape as vmm's
// entriesAtFn/panicFn, so NewTrapContext is exercisable under `go test`.
var readSstatusFn = cpu.ReadSstatus

// TrapContext is the fixed-layout structure the trampoline reads/writes at
// a task's TRAP_CONTEXT page when crossing the U<->S boundary (spec.md §3
// "Trap context"). Field order and size must match trampoline_riscv64.s
// exactly: the assembly indexes into this struct by raw byte offset.
type TrapContext struct {
	X           [32]uint64 // general-purpose registers x0..x31
	Sstatus     uint64
	Sepc        uint64
	KernelSatp  uint64
	KernelSp    uint64
	TrapHandler uint64
}

// NewTrapContext builds the initial TrapContext for a freshly loaded user
// program: sepc at entry, x2 (sp) at the user stack top, sstatus.SPP
// cleared to User so the first sret drops to user mode, and the kernel
// bookkeeping (satp, sp, handler address) the trampoline needs to re-enter
// the kernel on the very first trap (spec.md §4.6-§4.7).
func NewTrapContext(entry, userSP, kernelSatp, kernelSP, trapHandler uint64) TrapContext {
	cx := TrapContext{
		Sstatus:     readSstatusFn() &^ sstatusSPP,
		Sepc:        entry,
		KernelSatp:  kernelSatp,
		KernelSp:    kernelSP,
		TrapHandler: trapHandler,
	}
	cx.X[2] = userSP
	return cx
}
