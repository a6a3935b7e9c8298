// Package timer exposes the supervisor-visible half of the timer
// subsystem: reading the free-running mtime counter in milliseconds. The
// machine-mode half -- reloading mtimecmp and forwarding a tick as a
// supervisor software interrupt via the five-word SCRATCH array -- runs
// entirely before the Go runtime starts and has no Go representation; it
// lives in kernel/platform/boot_riscv64.s's init_timer/time_handler,
// grounded on original_source/kernel/src/timer.rs (spec.md §4.10).
package timer

import (
	"rvos/kernel/cpu"
	"rvos/kernel/platform"
)

// readTimeFn seams cpu.ReadTime so this package's own tests can supply a
// synthetic tick count.
var readTimeFn = cpu.ReadTime

// ReadMs returns the current mtime value converted to milliseconds, per
// original_source's get_time_ms (time::read() / (CLOCK_FREQ / 1000)).
// Backs the get_time syscall (spec.md §4.9).
func ReadMs() uint64 {
	return readTimeFn() / (platform.TimerFreq / 1000)
}

// AckTick clears the pending supervisor-software-interrupt bit, called
// from the trap dispatcher once a forwarded timer tick has been handled
// (spec.md §4.10, §4.6 cause table).
func AckTick() {
	cpu.ClearSSIP()
}
