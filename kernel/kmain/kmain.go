// Package kmain wires every subsystem together and hands the hart to the
// scheduler. Grounded on gopher-os's kernel/kmain/kmain.go's sequential
// init chaining and final kernel.Panic guard against Kmain returning,
// applied to this kernel's own boot order (original_source/kernel/src/
// main.rs's rust_main, spec.md §6 "Boot").
package kmain

import (
	"reflect"
	"unsafe"

	"rvos/kernel"
	"rvos/kernel/driver/console"
	"rvos/kernel/driver/uart"
	"rvos/kernel/loader"
	"rvos/kernel/mem"
	"rvos/kernel/mem/heap"
	"rvos/kernel/mem/pmm"
	"rvos/kernel/mem/pmm/allocator"
	"rvos/kernel/mem/vmm"
	"rvos/kernel/platform"
	"rvos/kernel/sched"
	"rvos/kernel/syscall"
	"rvos/kernel/task"
	"rvos/kernel/timer"
	"rvos/kernel/trap"
)

var errKmainReturned = &kernel.Error{Module: "kmain", Message: "Kmain returned"}
var errNoInitProc = &kernel.Error{Module: "kmain", Message: "initproc missing from app archive"}

// killExitCode is the only exit code a pending-kill consumption site ever
// produces: sys_kill implements signal 9 alone (spec.md §4.9), and a
// self-kill's deferred exit is consumed here with that same code.
const killExitCode = 9

// heapArena backs kernel/mem/heap's buddy allocator; sized by HeapSize the
// same way gopher-os's physical allocator bitmaps are pre-sized BSS arrays
// rather than something reached for with make() mid-boot.
var (
	heapArena  [heap.HeapSize]byte
	heapAlloc  heap.Allocator
	frameAlloc allocator.StackAllocator
)

// deallocFrame adapts StackAllocator.Dealloc's error return to the
// pmm.Deallocator shape every address space's Recycle expects: a frame
// accounting bug here is fatal (spec.md §7 category 2), not something a
// caller mid-teardown can meaningfully recover from.
func deallocFrame(f pmm.Frame) {
	if err := frameAlloc.Dealloc(f); err != nil {
		kernel.Panic(err)
	}
}

// Kmain brings every subsystem up in dependency order and never returns:
// once RunTasks starts switching between ready tasks, control only ever
// leaves through a trap into user mode and back (spec.md §6 "Boot").
//
//go:noinline
func Kmain() {
	platform.LoadSectionBounds()

	u := uart.New(uart.Base)
	u.Init()
	console.Attach(u)
	console.Println("Hello, world!")

	heapAlloc.Init(uintptr(unsafe.Pointer(&heapArena[0])))

	frameAlloc.Init(mem.PhysAddr(platform.EkernelAddr), mem.PhysAddr(platform.MemoryEnd))
	task.AllocFrame = frameAlloc.Alloc
	task.DeallocFrame = deallocFrame

	kernelSpace, err := vmm.NewKernelSpace(frameAlloc.Alloc, deallocFrame)
	if err != nil {
		kernel.Panic(err)
	}
	task.KernelSpace = kernelSpace
	task.KernelToken = kernelSpace.Token
	task.TrapReturnPC = func() uint64 { return uint64(reflect.ValueOf(sched.TrapReturn).Pointer()) }

	trap.SetTrapFromKernelVA(trap.TrapFromKernelVA())
	trap.Register(trap.CauseUserEnvCall, handleUserEnvCall)
	trap.Register(trap.CauseStoreFault, handleUserFault)
	trap.Register(trap.CauseStorePageFault, handleUserFault)
	trap.Register(trap.CauseInstructionFault, handleUserFault)
	trap.Register(trap.CauseInstructionPageFault, handleUserFault)
	trap.Register(trap.CauseLoadFault, handleUserFault)
	trap.Register(trap.CauseLoadPageFault, handleUserFault)
	trap.Register(trap.CauseIllegalInstruction, handleUserFault)
	trap.Register(trap.CauseSupervisorTimer, handleSupervisorTimer)

	kernelSpace.Activate()

	data, _, ok := loader.Lookup("initproc")
	if !ok {
		kernel.Panic(errNoInitProc)
	}
	initTask, err := task.New(data)
	if err != nil {
		kernel.Panic(err)
	}
	task.InitProc = initTask
	sched.Ready.Add(initTask)

	sched.RunTasks()

	kernel.Panic(errKmainReturned)
}

// dispatchSyscall advances sepc past the ecall that trapped (spec.md §4.6,
// so a retried instruction never re-executes the call), runs it through
// kernel/syscall.Dispatch, writes the result into a0, and reports whether
// the task that just made this call is now pending exit -- true only when
// the call was sys_kill targeting the caller itself, since RequestExit is
// otherwise never armed. Split out from handleUserEnvCall because it is
// the one piece of that handler with no divergent tail, and so the only
// piece host `go test` can exercise directly.
func dispatchSyscall(cx *trap.TrapContext) (pendingExit bool) {
	cx.Sepc += 4
	ret := syscall.Dispatch(cx.X[17], [3]uint64{cx.X[10], cx.X[11], cx.X[12]})
	cx.X[10] = uint64(ret)
	cur, ok := sched.CurrentTask().(*task.TaskControlBlock)
	return ok && cur.PendingExit()
}

// handleUserEnvCall is the registered UserEnvCall handler: run the
// syscall, then either consume a self-targeted sys_kill's deferred exit
// right here (the first scheduling point after the call) or return
// normally to user mode.
func handleUserEnvCall(cx *trap.TrapContext, stval uint64) {
	if dispatchSyscall(cx) {
		sched.ExitAndRunNext(killExitCode)
		kernel.Panic(&kernel.Error{Module: "kmain", Message: "unreachable area after deferred exit"})
	}
	sched.TrapReturn()
}

// handleUserFault tears the faulting task down with a negative exit code,
// used for every memory and instruction-fault cause this kernel routes to
// "kill the offending task" rather than a page-fault-service path (spec.md
// §4.6 "unhandled causes kill the current task").
func handleUserFault(cx *trap.TrapContext, stval uint64) {
	console.Println("user task triggered a fault, killed")
	sched.ExitAndRunNext(-2)
	kernel.Panic(&kernel.Error{Module: "kmain", Message: "unreachable area after fault teardown"})
}

// handleSupervisorTimer acknowledges the forwarded machine-mode tick and
// either returns straight to the running task (a pin is armed, spec.md
// §4.8 "server_status") or preempts it back into the ready set.
func handleSupervisorTimer(cx *trap.TrapContext, stval uint64) {
	timer.AckTick()
	if sched.Ready.Pinned() {
		sched.TrapReturn()
		return
	}
	sched.SuspendAndRunNext()
	sched.TrapReturn()
}
