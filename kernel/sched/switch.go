// Package sched implements the ready set, the idle/processor loop, and the
// raw context-switch primitive around kernel/task's TaskControlBlock.
// Grounded on original_source/kernel/src/task/{manager,processor,context,
// rand}.rs, with no direct gopher-os precedent -- the teacher has no
// process or scheduler subsystem at all (spec.md's own framing of this
// module: "gopher-os never reached this layer"). The idiom (function-
// variable seams over raw assembly, sparse doc comments, typed errors)
// still follows the teacher; the semantics follow original_source.
package sched

import "rvos/kernel/task"

// contextSwitch saves the caller's callee-saved registers into current
// and loads next's, then returns into whatever next.RA points at -- an
// ordinary function return if next was itself paused mid-switchTo, or a
// task's TrapReturnPC the first time it ever runs. Bodiless, implemented
// in switch_riscv64.s (original_source/kernel/src/task/switch.S's
// __switch, the one piece of this package with a direct assembly
// precedent).
func contextSwitch(current, next *task.Context)
