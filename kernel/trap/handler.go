package trap

import (
	"reflect"

	"rvos/kernel"
	"rvos/kernel/cpu"
)

// Cause is a decoded scause value. Kept as a small enum rather than the
// raw CSR bits so handler registration doesn't leak RISC-V's
// interrupt-bit/exception-code encoding to callers (spec.md §4.6).
type Cause int

const (
	CauseUserEnvCall Cause = iota
	CauseStoreFault
	CauseStorePageFault
	CauseInstructionFault
	CauseInstructionPageFault
	CauseLoadFault
	CauseLoadPageFault
	CauseIllegalInstruction
	CauseSupervisorTimer
	CauseUnknown
)

// raw scause values for the virt platform, the interrupt bit being bit 63.
const (
	interruptBit = uint64(1) << 63

	excInstructionFault     = 1
	excIllegalInstruction   = 2
	excLoadFault            = 5
	excStoreFault           = 7
	excUserEnvCall          = 8
	excInstructionPageFault = 12
	excLoadPageFault        = 13
	excStorePageFault       = 15

	intSupervisorSoft = 1
)

// DecodeCause maps a raw scause CSR value to a Cause, per spec.md §4.6's
// dispatch list. Anything else is CauseUnknown.
func DecodeCause(scause uint64) Cause {
	if scause&interruptBit != 0 {
		switch scause &^ interruptBit {
		case intSupervisorSoft:
			return CauseSupervisorTimer
		default:
			return CauseUnknown
		}
	}
	switch scause {
	case excUserEnvCall:
		return CauseUserEnvCall
	case excStoreFault:
		return CauseStoreFault
	case excStorePageFault:
		return CauseStorePageFault
	case excInstructionFault:
		return CauseInstructionFault
	case excInstructionPageFault:
		return CauseInstructionPageFault
	case excLoadFault:
		return CauseLoadFault
	case excLoadPageFault:
		return CauseLoadPageFault
	case excIllegalInstruction:
		return CauseIllegalInstruction
	default:
		return CauseUnknown
	}
}

// Handler processes one trapped cause for the currently running task,
// given its TrapContext and the faulting stval. Registered per Cause by
// the subsystem that owns the response (syscall dispatch, page-fault
// task teardown, the timer tick) rather than imported directly by this
// package, the same registration shape as gopher-os's
// irq.HandleException/HandleExceptionWithCode -- this keeps kernel/trap
// free of an import cycle back to kernel/task and kernel/syscall, both
// of which need the TrapContext type this package defines.
type Handler func(cx *TrapContext, stval uint64)

var handlers = map[Cause]Handler{}

// Register installs the handler invoked for cause. A later call for the
// same cause replaces the previous registration.
func Register(cause Cause, h Handler) { handlers[cause] = h }

// unhandledFn is invoked when no handler is registered for a decoded
// cause; a seam over kernel.Panic so tests can observe the failure
// without the process actually shutting down.
var unhandledFn = func(cause Cause, stval uint64) {
	kernel.Panic(&kernel.Error{Module: "trap", Message: "unsupported trap, no handler registered for decoded cause"})
}

// readScauseFn/readStvalFn/writeStvecFn are seams over the cpu package's
// bodiless CSR accessors, letting Dispatch be driven under `go test`
// without real supervisor-mode CSRs.
var (
	readScauseFn = cpu.ReadScause
	readStvalFn  = cpu.ReadStval
	writeStvecFn = cpu.WriteStvec
)

// trapFromKernelVA is installed as stvec for the duration of Dispatch, so
// a second trap while already handling the first one (a trap from kernel
// mode) lands on trapFromKernel instead of re-entering the trampoline
// with a clobbered TrapContext.
var trapFromKernelVA uintptr

// Dispatch is invoked by the trampoline (via the address stored in the
// task's TrapContext.TrapHandler) once a trap has landed in the kernel
// with cx fully spilled. It decodes scause, points stvec at
// trapFromKernel for the duration of the call (spec.md §4.6: "Return path
// sets stvec back to the trampoline" undoes this before resuming), and
// dispatches to whichever handler is registered for the decoded cause.
func Dispatch(cx *TrapContext) {
	scause := readScauseFn()
	stval := readStvalFn()

	if trapFromKernelVA != 0 {
		writeStvecFn(trapFromKernelVA)
	}

	cause := DecodeCause(scause)
	h, ok := handlers[cause]
	if !ok {
		unhandledFn(cause, stval)
		return
	}
	h(cx, stval)
}

// SetTrapFromKernelVA records the address stvec should point at while a
// trap is being handled, so a fault in kernel code is reported instead of
// silently corrupting user state. Called once during boot.
func SetTrapFromKernelVA(va uintptr) { trapFromKernelVA = va }

// Return restores stvec to the trampoline's mapped VA. It returns
// nothing: the trap-context VA and the target address space's satp token
// are passed to EnterUser by the caller (sched.TrapReturn), since
// kernel/trap does not itself know which task is scheduled next (spec.md
// §4.6 "trap_return").
func Return(trampolineVA uintptr) { writeStvecFn(trampolineVA) }

// DispatchVA returns Dispatch's own address: the value stored in a task's
// TrapContext.TrapHandler field, which allTraps jumps to once it has
// finished spilling registers.
func DispatchVA() uintptr { return reflect.ValueOf(Dispatch).Pointer() }
