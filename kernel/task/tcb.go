package task

import (
	"unsafe"

	"rvos/kernel"
	"rvos/kernel/mem/pmm"
	"rvos/kernel/mem/vmm"
	"rvos/kernel/platform"
	"rvos/kernel/trap"
)

// Status is a task's scheduling state (original_source's TaskStatus,
// spec.md §4 "Task control block").
type Status int

const (
	Ready Status = iota
	Running
	Zombie
)

var errNoTrapContext = &kernel.Error{Module: "task", Message: "address space has no mapped trap-context page"}

// InitProc is the well-known root task every orphan is reparented onto
// when its own parent exits (spec.md §4.7 "exit": "reparent children to
// INITPROC"). Wired once during boot, mirroring
// original_source/kernel/src/task/mod.rs's static INITPROC.
var InitProc *TaskControlBlock

// AllocFrame, DeallocFrame, KernelToken and TrapReturnPC are wired once
// during boot: AllocFrame/DeallocFrame to the physical frame allocator's
// Alloc/Dealloc, KernelToken to the kernel address space's satp token, and
// TrapReturnPC to kernel/sched's trap-return entry point. task cannot
// import kernel/sched directly (sched already imports task for
// TaskControlBlock/Context), so the address is threaded in as a seam
// instead -- the same import-cycle workaround kernel/trap's Register uses.
var (
	AllocFrame   vmm.FrameAllocatorFn
	DeallocFrame pmm.Deallocator
	KernelToken  func() uint64
	TrapReturnPC func() uint64
)

// trapCxAtFn and writeTrapContextFn overlay a trap-context page's physical
// frame as a *trap.TrapContext, the same function-variable-seam shape as
// vmm's entriesAtFn: real in the freestanding kernel, mocked in
// host `go test` runs against ordinary Go-allocated memory.
var trapCxAtFn = func(ppn pmm.Frame) *trap.TrapContext {
	return (*trap.TrapContext)(unsafe.Pointer(uintptr(ppn.Addr())))
}

var writeTrapContextFn = func(ppn pmm.Frame, cx trap.TrapContext) {
	*trapCxAtFn(ppn) = cx
}

// TaskControlBlock is one task's complete kernel-visible state: its
// identity, kernel stack, address space, saved switch context, trap
// context, and family tree (original_source/kernel/src/task/task.rs's
// TaskControlBlock, spec.md §4).
type TaskControlBlock struct {
	pid         PIDHandle
	kernelStack *KernelStack
	trapCxPPN   pmm.Frame
	baseSize    uint64
	taskCx      Context
	status      Status
	memorySet   *vmm.MemorySet

	parent      *TaskControlBlock
	children    []*TaskControlBlock
	exitCode    int32
	pendingKill bool
}

// New builds the initial task for an ELF image: a fresh address space, a
// fresh PID and kernel stack, a task context that resumes into
// TrapReturnPC, and an initial trap context seeded with the image's entry
// point and user stack top (spec.md §4.7 "new").
func New(elfData []byte) (*TaskControlBlock, *kernel.Error) {
	ms, userSP, entry, err := vmm.FromELF(elfData, AllocFrame, DeallocFrame)
	if err != nil {
		return nil, err
	}

	pte, ok := ms.Translate(platform.TrapContext.Floor())
	if !ok {
		return nil, errNoTrapContext
	}
	trapCxPPN := pte.PPN()

	pid := AllocPID()
	kstack, err := NewKernelStack(pid.PID)
	if err != nil {
		return nil, err
	}

	tcb := &TaskControlBlock{
		pid:         pid,
		kernelStack: kstack,
		trapCxPPN:   trapCxPPN,
		baseSize:    uint64(userSP),
		taskCx:      NewTrapReturnContext(uint64(kstack.Top()), TrapReturnPC()),
		status:      Ready,
		memorySet:   ms,
	}

	cx := trap.NewTrapContext(uint64(entry), uint64(userSP), KernelToken(), uint64(kstack.Top()), uint64(trap.DispatchVA()))
	writeTrapContextFn(trapCxPPN, cx)
	return tcb, nil
}

// Fork creates a child task that deep-copies this task's address space
// (vmm.Clone), with its own PID and kernel stack. The child's trap context
// starts as a byte-for-byte copy of the parent's (Clone copies every
// Framed page, the trap-context page included) with only KernelSp
// rewritten to the child's own stack (spec.md §4.7 "fork").
func (t *TaskControlBlock) Fork() (*TaskControlBlock, *kernel.Error) {
	ms, err := vmm.Clone(t.memorySet)
	if err != nil {
		return nil, err
	}

	pte, ok := ms.Translate(platform.TrapContext.Floor())
	if !ok {
		return nil, errNoTrapContext
	}
	trapCxPPN := pte.PPN()

	pid := AllocPID()
	kstack, err := NewKernelStack(pid.PID)
	if err != nil {
		return nil, err
	}

	child := &TaskControlBlock{
		pid:         pid,
		kernelStack: kstack,
		trapCxPPN:   trapCxPPN,
		baseSize:    t.baseSize,
		taskCx:      NewTrapReturnContext(uint64(kstack.Top()), TrapReturnPC()),
		status:      Ready,
		memorySet:   ms,
		parent:      t,
	}

	childCx := *trapCxAtFn(trapCxPPN)
	childCx.KernelSp = uint64(kstack.Top())
	writeTrapContextFn(trapCxPPN, childCx)

	t.children = append(t.children, child)
	return child, nil
}

// Exec replaces this task's address space in place with a freshly loaded
// ELF image, keeping its PID and kernel stack. The old address space's
// frames are released before the new one is installed (spec.md §4.7
// "exec").
func (t *TaskControlBlock) Exec(elfData []byte) *kernel.Error {
	ms, userSP, entry, err := vmm.FromELF(elfData, AllocFrame, DeallocFrame)
	if err != nil {
		return err
	}

	pte, ok := ms.Translate(platform.TrapContext.Floor())
	if !ok {
		return errNoTrapContext
	}
	trapCxPPN := pte.PPN()

	t.memorySet.Recycle()
	t.memorySet = ms
	t.trapCxPPN = trapCxPPN
	t.baseSize = uint64(userSP)

	cx := trap.NewTrapContext(uint64(entry), uint64(userSP), KernelToken(), uint64(t.kernelStack.Top()), uint64(trap.DispatchVA()))
	writeTrapContextFn(trapCxPPN, cx)
	return nil
}

// Exit marks this task Zombie, records its exit code, reparents any
// remaining children onto InitProc, and releases its address space. Its
// kernel stack and PID are left intact: they are only freed once a parent
// observes the exit code via Waitpid and calls Release (spec.md §4.7
// "exit").
func (t *TaskControlBlock) Exit(code int32) {
	t.status = Zombie
	t.exitCode = code
	if len(t.children) > 0 && InitProc != nil {
		t.AdoptChildren(InitProc)
	}
	t.memorySet.Recycle()
}

// Waitpid searches t's children for pid (-1 matches any child). Result
// values follow spec.md §4.7: -1 means no child matches pid at all; -2
// means a matching child exists but none are Zombie yet (the caller
// should yield and retry); 0 means a Zombie child was found, already
// removed from t's child list and returned as child -- the caller reads
// its exit code and PID and is responsible for calling child.Release().
func (t *TaskControlBlock) Waitpid(pid int64) (child *TaskControlBlock, result int64) {
	matched := false
	for _, c := range t.children {
		if pid != -1 && int64(c.PID()) != pid {
			continue
		}
		matched = true
		if c.Status() == Zombie {
			t.RemoveChild(c)
			return c, 0
		}
	}
	if !matched {
		return nil, -1
	}
	return nil, -2
}

// PID returns this task's process identifier.
func (t *TaskControlBlock) PID() uint64 { return t.pid.PID }

// Status returns the task's current scheduling state.
func (t *TaskControlBlock) Status() Status { return t.status }

// SetStatus updates the task's scheduling state.
func (t *TaskControlBlock) SetStatus(s Status) { t.status = s }

// UserToken returns this task's address space's satp token.
func (t *TaskControlBlock) UserToken() uint64 { return t.memorySet.Token() }

// TrapCx returns a pointer to this task's live trap context.
func (t *TaskControlBlock) TrapCx() *trap.TrapContext { return trapCxAtFn(t.trapCxPPN) }

// TaskCx returns a pointer to this task's saved switch context, the value
// __switch reads from and writes into.
func (t *TaskControlBlock) TaskCx() *Context { return &t.taskCx }

// Parent returns this task's parent, or nil for the root task.
func (t *TaskControlBlock) Parent() *TaskControlBlock { return t.parent }

// Children returns this task's live children.
func (t *TaskControlBlock) Children() []*TaskControlBlock { return t.children }

// RemoveChild drops child from this task's child list, used once the child
// has been reaped by Waitpid.
func (t *TaskControlBlock) RemoveChild(child *TaskControlBlock) {
	for i, c := range t.children {
		if c == child {
			t.children = append(t.children[:i], t.children[i+1:]...)
			return
		}
	}
}

// AdoptChildren reparents t's children onto newParent, used when t exits
// with children still outstanding (spec.md §4.8 "exit_current_and_run_next":
// orphans are reparented to the init task).
func (t *TaskControlBlock) AdoptChildren(newParent *TaskControlBlock) {
	for _, c := range t.children {
		c.parent = newParent
		newParent.children = append(newParent.children, c)
	}
	t.children = nil
}

// ExitCode returns the code this task exited with.
func (t *TaskControlBlock) ExitCode() int32 { return t.exitCode }

// SetExitCode records the code this task is exiting with.
func (t *TaskControlBlock) SetExitCode(code int32) { t.exitCode = code }

// RequestExit marks this task to be torn down at its next scheduling
// point rather than immediately, so sys_kill never has to interrupt a
// task's own in-progress kernel-mode work (spec.md's supplemented kill
// semantics).
func (t *TaskControlBlock) RequestExit() { t.pendingKill = true }

// PendingExit reports whether RequestExit has been called for this task.
func (t *TaskControlBlock) PendingExit() bool { return t.pendingKill }

// Release frees this task's address space and kernel stack and returns
// its PID for reuse. Called once a parent has observed the task's exit
// code via Waitpid.
func (t *TaskControlBlock) Release() {
	t.memorySet.Recycle()
	t.kernelStack.Release()
	t.pid.Release()
}
