package trap

import (
	"reflect"
	"rvos/kernel/platform"
)

// allTraps and restore are the two entry points in trampoline_riscv64.s.
// Neither is ever called directly from Go: the hardware jumps to allTraps
// on a trap (stvec points at its mapped trampoline VA), and TrapReturn
// computes restore's offset from allTraps to jump into it at its mapped
// VA. Taking reflect.ValueOf(fn).Pointer() is this codebase's translation
// of the Rust original's `__restore as usize - __alltraps as usize`
// (original_source/kernel/src/trap/mod.rs's trap_return).
func allTraps()
func restore()

// TrapFromKernelVA returns trapFromKernel's own address: the value
// SetTrapFromKernelVA should be given during boot. Unlike allTraps/
// restore, this symbol is never mapped into the trampoline page -- a
// trap while already in supervisor mode has no user context to save, so
// it runs at its ordinary kernel-image address and halts.
func TrapFromKernelVA() uintptr {
	return reflect.ValueOf(trapFromKernel).Pointer()
}

func trapFromKernel()

// EnterUser jumps to target (always RestoreVA()) with trapCxVA in a0 and
// userSatp in a1, the calling convention restore expects. It never
// returns -- the translation of original_source's trap_return building a
// raw `jr` with those two registers loaded (spec.md §4.6 "Return path...
// jumps there with a0=TRAP_CONTEXT, a1=user_satp").
func EnterUser(trapCxVA, userSatp uint64, target uintptr)


// restoreOffsetFn is a seam over the reflect-based address arithmetic so
// RestoreVA's logic is exercisable under `go test` without depending on
// where the linker actually places the two assembly symbols.
var restoreOffsetFn = func() uintptr {
	return reflect.ValueOf(restore).Pointer() - reflect.ValueOf(allTraps).Pointer()
}

// RestoreVA returns the virtual address, within the mapped trampoline
// page, that TrapReturn must jump to: the offset of restore from
// allTraps within the kernel's own (identity-mapped) image, added to the
// trampoline's fixed top-of-address-space VA (spec.md §4.6).
func RestoreVA() uintptr {
	return uintptr(platform.Trampoline) + restoreOffsetFn()
}
