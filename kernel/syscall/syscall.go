package syscall

import (
	"rvos/kernel"
	"rvos/kernel/driver/console"
	"rvos/kernel/loader"
	"rvos/kernel/sched"
	"rvos/kernel/task"
	"rvos/kernel/timer"
)

// Numeric syscall IDs, transliterated from
// original_source/kernel/src/syscall/mod.rs (spec.md §4.9).
const (
	Read    = 63
	Write   = 64
	Exit    = 93
	Yield   = 124
	Kill    = 129
	GetTime = 169
	GetPid  = 172
	Fork    = 220
	Exec    = 221
	Waitpid = 260
)

const fdStdin = 0
const fdStdout = 1

const sigKill = 9

var errUnsupportedSyscall = &kernel.Error{Module: "syscall", Message: "unsupported syscall id"}

// panicFn is mocked by tests; in the freestanding kernel it is
// kernel.Panic, exactly as kernel/mem/vmm's panicFn is.
var panicFn = kernel.Panic

// suspendAndRunNextFn/exitAndRunNextFn seam over kernel/sched's processor
// entry points, the same function-variable shape this codebase uses
// everywhere a real call would otherwise touch raw assembly (vmm's
// entriesAtFn, trap's readScauseFn): sched.SuspendAndRunNext/
// ExitAndRunNext ultimately drive a real context switch, which only
// exists on the target hardware, so this package's own tests replace
// them with plain bookkeeping.
var (
	suspendAndRunNextFn = sched.SuspendAndRunNext
	exitAndRunNextFn    = sched.ExitAndRunNext
)

// lookupAppFn seams over kernel/loader.Lookup so this package's tests can
// supply a real, parseable ELF image for an exec success path without
// depending on the loader's embedded app archive.
var lookupAppFn = loader.Lookup

// currentTCB asserts the scheduler's current task back to its concrete
// type. sched.Task is deliberately narrow (PID/Status/SetStatus/TaskCx/
// TrapCx/UserToken/Exit only) so kernel/sched's own tests don't need a real
// ELF-backed task; this package sits one layer further out and genuinely
// needs Fork/Exec/Waitpid/RequestExit, which only *task.TaskControlBlock
// provides. The sole production implementer of sched.Task is
// *task.TaskControlBlock, so this assertion never fails outside a test
// that deliberately installs something else as the current task.
func currentTCB() *task.TaskControlBlock {
	return sched.CurrentTask().(*task.TaskControlBlock)
}

// Dispatch runs the syscall named by id with the raw a0/a1/a2 argument
// registers and returns the value to load back into a0. Invoked by the
// registered UserEnvCall trap handler after advancing sepc past the
// ecall instruction (spec.md §4.6).
func Dispatch(id uint64, args [3]uint64) int64 {
	switch id {
	case Read:
		return sysRead(args[0], uintptr(args[1]), int(args[2]))
	case Write:
		return sysWrite(args[0], uintptr(args[1]), int(args[2]))
	case Exit:
		return sysExit(int32(args[0]))
	case Yield:
		return sysYield()
	case Kill:
		return sysKill(args[0], uint8(args[1]))
	case GetTime:
		return sysGetTime()
	case GetPid:
		return sysGetPid()
	case Fork:
		return sysFork()
	case Exec:
		return sysExec(uintptr(args[0]))
	case Waitpid:
		return sysWaitpid(int64(args[0]), uintptr(args[1]))
	default:
		panicFn(errUnsupportedSyscall)
		return -1
	}
}

// sysWrite copies len bytes from the caller's buf through its address
// space and emits them to the console. Only fd 1 (stdout) is supported
// (spec.md §4.9).
func sysWrite(fd uint64, buf uintptr, length int) int64 {
	if fd != fdStdout {
		panicFn(&kernel.Error{Module: "syscall", Message: "unsupported fd in sys_write"})
		return -1
	}
	chunks := translatedBytes(sched.CurrentUserToken(), buf, length)
	for _, c := range chunks {
		for _, b := range c {
			console.PutByte(b)
		}
	}
	return int64(length)
}

// sysRead reads from fd 0 (stdin). length==0 polls for one available byte
// without blocking, returning 1 if one was consumed or 0 if the UART's
// receive FIFO was empty. length>0 blocks (yielding the processor between
// polls) until a single byte is available, writes it to buf, and returns
// 1 -- mirroring original_source's sys_read, which only ever reads one
// byte per call regardless of the caller's requested length (spec.md
// §4.9 "read").
func sysRead(fd uint64, buf uintptr, length int) int64 {
	if fd != fdStdin {
		panicFn(&kernel.Error{Module: "syscall", Message: "unsupported fd in sys_read"})
		return -1
	}
	if length == 0 {
		if _, ok := console.TryReadByte(); ok {
			return 1
		}
		return 0
	}

	var b byte
	for {
		got, ok := console.TryReadByte()
		if ok {
			b = got
			break
		}
		suspendAndRunNextFn()
	}

	chunks := translatedBytes(sched.CurrentUserToken(), buf, 1)
	if len(chunks) > 0 && len(chunks[0]) > 0 {
		chunks[0][0] = b
	}
	return 1
}

// sysExit tears the current task down with code and never returns control
// to its caller in the running task's own flow: ExitAndRunNext switches
// the hart onto another task entirely (spec.md §4.9 "exit": "diverges").
func sysExit(code int32) int64 {
	exitAndRunNextFn(code)
	panicFn(&kernel.Error{Module: "syscall", Message: "unreachable area in sys_exit"})
	return 0
}

func sysYield() int64 {
	suspendAndRunNextFn()
	return 0
}

// sysKill implements only signal 9 (KILL); pid 0 and the reserved process
// manager cannot be killed (spec.md §4.9, §9's pinned-server exemption).
// Killing the running task only arms its pending-exit flag, consumed the
// next time it reaches a trap-return point; killing a task still sitting
// in the ready set pulls it out and runs its exit synchronously, since
// nothing else is ever going to switch onto it otherwise (spec.md §5
// "Cancellation": "of a non-current task, removes it from the ready set
// and runs its exit synchronously").
func sysKill(pid uint64, signal uint8) int64 {
	if signal != sigKill {
		return -1
	}
	if pid == 0 || (sched.Ready.Pinned() && pid == sched.CurrentTask().PID()) {
		return -1
	}
	target := findTask(pid)
	if target == nil {
		return -1
	}
	if target.PID() == currentTCB().PID() {
		target.RequestExit()
		return 0
	}
	if removed := sched.Ready.Remove(target.PID()); removed != nil {
		removed.Exit(int32(signal))
	} else {
		target.RequestExit()
	}
	return 0
}

// findTask locates a live task by PID among the current task's own family
// -- the only tasks this kernel can address without a global registry --
// starting with the current task itself.
func findTask(pid uint64) *task.TaskControlBlock {
	cur := currentTCB()
	if cur.PID() == pid {
		return cur
	}
	for _, c := range cur.Children() {
		if c.PID() == pid {
			return c
		}
	}
	return nil
}

func sysGetTime() int64 {
	return int64(timer.ReadMs())
}

func sysGetPid() int64 {
	return int64(sched.CurrentTask().PID())
}

// sysFork clones the current task, zeroes the child's a0 (so the child's
// own ecall return sees 0 rather than its own PID), and enqueues it
// Ready (spec.md §4.9 "fork").
func sysFork() int64 {
	cur := currentTCB()
	child, err := cur.Fork()
	if err != nil {
		panicFn(err)
		return -1
	}
	child.TrapCx().X[10] = 0
	sched.Ready.Add(child)
	return int64(child.PID())
}

// sysExec replaces the current task's address space with the named app's
// image. Returns -1 without touching the task if no such app exists
// (spec.md §4.9 "exec").
func sysExec(pathPtr uintptr) int64 {
	cur := currentTCB()
	name := translatedString(sched.CurrentUserToken(), pathPtr)
	data, _, ok := lookupAppFn(name)
	if !ok {
		return -1
	}
	if err := cur.Exec(data); err != nil {
		panicFn(err)
		return -1
	}
	return 0
}

// sysWaitpid reaps a Zombie child matching pid (-1 for any), writes its
// exit code through exitCodePtr if non-null, and releases it (spec.md
// §4.7 "waitpid", §4.9).
func sysWaitpid(pid int64, exitCodePtr uintptr) int64 {
	cur := currentTCB()
	child, result := cur.Waitpid(pid)
	if result != 0 {
		return result
	}

	childPID := child.PID()
	exitCode := child.ExitCode()
	if exitCodePtr != 0 {
		writeTranslatedInt32(sched.CurrentUserToken(), exitCodePtr, exitCode)
	}
	child.Release()
	return int64(childPID)
}
