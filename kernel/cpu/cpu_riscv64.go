// Package cpu declares the small set of privileged operations that cannot be
// expressed in Go and must be implemented in hand-written assembly. Each
// function below has no body in Go; its implementation lives in
// cpu_riscv64.s, following the same bodiless-func-backed-by-.s convention
// gopher-os uses for cpu.FlushTLBEntry/SwitchPDT/Halt.
package cpu

// EnableInterrupts sets sstatus.SIE, allowing supervisor interrupts to be
// taken.
func EnableInterrupts()

// DisableInterrupts clears sstatus.SIE. The trap entry trampoline disables
// interrupts implicitly (S-mode traps always clear SIE on entry); no Go
// code in the kernel calls this.
func DisableInterrupts()

// Halt stops hart execution by looping on WFI. kernel.Panic does not call
// it; Panic relies on the SBI-style shutdown primitive alone.
func Halt()

// ReadSatp returns the current value of the satp CSR (paging mode + root
// page table PPN for the active address space).
func ReadSatp() uint64

// WriteSatp installs a new satp value, switching the active address space.
// Callers are responsible for fencing the instruction stream and the TLB.
func WriteSatp(token uint64)

// SfenceVMA flushes the entire TLB. The frameworks in this kernel never
// track individual ASIDs, so every address-space switch flushes globally.
func SfenceVMA()

// ReadTime returns the current value of the time CSR (mtime as seen from
// supervisor mode), used by the get_time syscall through kernel/timer.
func ReadTime() uint64

// ReadScause returns the scause CSR captured by the most recent trap.
func ReadScause() uint64

// ReadStval returns the stval CSR captured by the most recent trap.
func ReadStval() uint64

// WriteStvec installs the supervisor trap vector, used to switch between
// "trap from user" (the trampoline) and "trap from kernel" (halts on
// re-entry) modes, per spec.md §4.6.
func WriteStvec(addr uintptr)

// ClearSSIP clears the pending supervisor-software-interrupt bit (sip.SSIP),
// acknowledging the timer-forwarded tick.
func ClearSSIP()

// ReadSstatus returns the current sstatus CSR, used to seed a fresh trap
// context's saved status (spec.md §3 "Trap context").
func ReadSstatus() uint64

// WriteSstatus installs a new sstatus value. Nothing in the kernel calls
// it; NewTrapContext builds a task's first saved sstatus from ReadSstatus.
func WriteSstatus(status uint64)
