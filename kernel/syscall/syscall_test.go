package syscall

import (
	"encoding/binary"
	"testing"
	"unsafe"

	"rvos/kernel"
	"rvos/kernel/driver/console"
	"rvos/kernel/mem"
	"rvos/kernel/mem/pmm"
	"rvos/kernel/mem/vmm"
	"rvos/kernel/sched"
	"rvos/kernel/task"
)

// arenaAllocator backs frame numbers with real, page-aligned Go memory so
// task.New/Fork/Exec's real (unmocked) page-table walk operates on valid
// addresses. Same pattern as kernel/task's own tcb_test.go, duplicated
// here since vmm's entriesAtFn seam is private to package vmm and
// unreachable from any other package's tests.
type arenaAllocator struct {
	next  pmm.Frame
	limit pmm.Frame
}

func newArenaAllocator(pages int) *arenaAllocator {
	buf := make([]byte, (pages+1)*int(mem.PageSize))
	base := uintptr(unsafe.Pointer(&buf[0]))
	aligned := (base + uintptr(mem.PageSize) - 1) &^ (uintptr(mem.PageSize) - 1)
	start := pmm.Frame(aligned >> mem.PageShift)
	return &arenaAllocator{next: start, limit: start + pmm.Frame(pages)}
}

func (a *arenaAllocator) alloc() (pmm.Frame, *kernel.Error) {
	if a.next >= a.limit {
		return pmm.InvalidFrame, &kernel.Error{Module: "test", Message: "arena exhausted"}
	}
	f := a.next
	a.next++
	return f, nil
}

func (a *arenaAllocator) dealloc(pmm.Frame) {}

type fakeAddressSpace struct{}

func (f *fakeAddressSpace) InsertFramedArea(beg, end mem.VirtPageNum, perm vmm.Flag) *kernel.Error {
	return nil
}
func (f *fakeAddressSpace) RemoveFramedArea(beg mem.VirtPageNum) {}

func withTaskTestSeams(t *testing.T, arena *arenaAllocator) {
	t.Helper()
	origAlloc, origDealloc := task.AllocFrame, task.DeallocFrame
	origToken, origTrapReturn := task.KernelToken, task.TrapReturnPC
	origSpace := task.KernelSpace

	task.AllocFrame = arena.alloc
	task.DeallocFrame = arena.dealloc
	task.KernelToken = func() uint64 { return 0xabc }
	task.TrapReturnPC = func() uint64 { return 0x9999 }
	task.KernelSpace = &fakeAddressSpace{}

	t.Cleanup(func() {
		task.AllocFrame, task.DeallocFrame = origAlloc, origDealloc
		task.KernelToken, task.TrapReturnPC = origToken, origTrapReturn
		task.KernelSpace = origSpace
		sched.SetCurrentTask(nil)
		sched.Ready = sched.NewFIFOReadySet()
	})
}

// buildMinimalELF assembles a one-segment ELF64 image: a single R+W+X+U
// PT_LOAD segment, generous enough that sys_write/sys_read's user-buffer
// pointers land inside mapped, writable memory.
func buildMinimalELF(t *testing.T, entry, vaddr uint64, memSize uint64) []byte {
	t.Helper()
	const ehdrSize, phdrSize = 64, 56
	const phoff = ehdrSize
	buf := make([]byte, phoff+phdrSize)
	copy(buf[0:4], []byte{0x7f, 'E', 'L', 'F'})
	buf[4], buf[5] = 2, 1
	binary.LittleEndian.PutUint64(buf[24:], entry)
	binary.LittleEndian.PutUint64(buf[32:], uint64(phoff))
	binary.LittleEndian.PutUint16(buf[54:], phdrSize)
	binary.LittleEndian.PutUint16(buf[56:], 1)

	code := []byte{1, 2, 3, 4}
	ph := buf[phoff : phoff+phdrSize]
	binary.LittleEndian.PutUint32(ph[0:], 1) // PT_LOAD
	binary.LittleEndian.PutUint32(ph[4:], 7) // R+W+X
	binary.LittleEndian.PutUint64(ph[8:], uint64(len(buf)))
	binary.LittleEndian.PutUint64(ph[16:], vaddr)
	binary.LittleEndian.PutUint64(ph[32:], uint64(len(code)))
	binary.LittleEndian.PutUint64(ph[40:], memSize)

	return append(buf, code...)
}

func newTestTask(t *testing.T, arena *arenaAllocator) *task.TaskControlBlock {
	t.Helper()
	data := buildMinimalELF(t, 0x1000, 0x1000, uint64(mem.PageSize)*4)
	tcb, err := task.New(data)
	if err != nil {
		t.Fatalf("unexpected error building test task: %v", err)
	}
	sched.SetCurrentTask(tcb)
	return tcb
}

type fakeTty struct {
	out   []byte
	queue []byte
}

func (f *fakeTty) Write(p []byte) (int, error) { f.out = append(f.out, p...); return len(p), nil }
func (f *fakeTty) WriteByte(b byte)             { f.out = append(f.out, b) }
func (f *fakeTty) TryReadByte() (byte, bool) {
	if len(f.queue) == 0 {
		return 0, false
	}
	b := f.queue[0]
	f.queue = f.queue[1:]
	return b, true
}
func (f *fakeTty) ReadByte() byte {
	for {
		if b, ok := f.TryReadByte(); ok {
			return b
		}
	}
}

func TestSysGetPidReturnsCurrentTasksPID(t *testing.T) {
	arena := newArenaAllocator(64)
	withTaskTestSeams(t, arena)
	tcb := newTestTask(t, arena)

	if got := Dispatch(GetPid, [3]uint64{}); got != int64(tcb.PID()) {
		t.Fatalf("Dispatch(GetPid) = %d, want %d", got, tcb.PID())
	}
}

func TestSysGetTimeReturnsTimerReading(t *testing.T) {
	arena := newArenaAllocator(64)
	withTaskTestSeams(t, arena)
	newTestTask(t, arena)

	// Just check it doesn't panic and returns a plausible value; the
	// conversion arithmetic itself is covered by kernel/timer's own tests.
	if got := Dispatch(GetTime, [3]uint64{}); got < 0 {
		t.Fatalf("Dispatch(GetTime) = %d, want >= 0", got)
	}
}

func TestSysWriteEmitsBufferContentsToConsole(t *testing.T) {
	arena := newArenaAllocator(64)
	withTaskTestSeams(t, arena)
	newTestTask(t, arena)

	tty := &fakeTty{}
	console.Attach(tty)
	defer console.Attach(nil)

	msg := "hi\n"
	bufVA := uintptr(0x2000)
	writeStringIntoUserSpace(t, sched.CurrentUserToken(), bufVA, msg)

	got := Dispatch(Write, [3]uint64{uint64(fdStdout), uint64(bufVA), uint64(len(msg))})
	if got != int64(len(msg)) {
		t.Fatalf("Dispatch(Write) = %d, want %d", got, len(msg))
	}
	if string(tty.out) != msg {
		t.Fatalf("console received %q, want %q", tty.out, msg)
	}
}

func TestSysReadNonBlockingPeekReportsAvailability(t *testing.T) {
	arena := newArenaAllocator(64)
	withTaskTestSeams(t, arena)
	newTestTask(t, arena)

	console.Attach(&fakeTty{})
	defer console.Attach(nil)
	if got := Dispatch(Read, [3]uint64{uint64(fdStdin), 0, 0}); got != 0 {
		t.Fatalf("Dispatch(Read, len=0) with no input = %d, want 0", got)
	}

	console.Attach(&fakeTty{queue: []byte{'x'}})
	if got := Dispatch(Read, [3]uint64{uint64(fdStdin), 0, 0}); got != 1 {
		t.Fatalf("Dispatch(Read, len=0) with input queued = %d, want 1", got)
	}
}

func TestSysReadBlockingConsumesOneByteIntoBuffer(t *testing.T) {
	arena := newArenaAllocator(64)
	withTaskTestSeams(t, arena)
	newTestTask(t, arena)

	console.Attach(&fakeTty{queue: []byte{'q'}})
	defer console.Attach(nil)

	bufVA := uintptr(0x2000)
	got := Dispatch(Read, [3]uint64{uint64(fdStdin), uint64(bufVA), 1})
	if got != 1 {
		t.Fatalf("Dispatch(Read) = %d, want 1", got)
	}
	if b := readUserByte(t, sched.CurrentUserToken(), bufVA); b != 'q' {
		t.Fatalf("buffer byte = %q, want 'q'", b)
	}
}

func TestSysForkZeroesChildA0AndEnqueuesReady(t *testing.T) {
	arena := newArenaAllocator(128)
	withTaskTestSeams(t, arena)
	parent := newTestTask(t, arena)

	childPID := Dispatch(Fork, [3]uint64{})
	if childPID == int64(parent.PID()) {
		t.Fatal("expected fork to return a distinct child pid")
	}
	if len(parent.Children()) != 1 {
		t.Fatalf("expected parent to track 1 child, got %d", len(parent.Children()))
	}
	child := parent.Children()[0]
	if child.TrapCx().X[10] != 0 {
		t.Errorf("expected child's a0 to be zeroed, got %d", child.TrapCx().X[10])
	}
	if sched.Ready.Len() != 1 {
		t.Fatalf("expected the child to be enqueued Ready, Ready.Len() = %d", sched.Ready.Len())
	}
}

func TestSysKillRejectsPIDZero(t *testing.T) {
	arena := newArenaAllocator(64)
	withTaskTestSeams(t, arena)
	newTestTask(t, arena)

	if got := Dispatch(Kill, [3]uint64{0, 9}); got != -1 {
		t.Fatalf("Dispatch(Kill, pid=0) = %d, want -1", got)
	}
}

func TestSysKillRejectsNonKillSignal(t *testing.T) {
	arena := newArenaAllocator(128)
	withTaskTestSeams(t, arena)
	parent := newTestTask(t, arena)
	Dispatch(Fork, [3]uint64{})
	child := parent.Children()[0]

	if got := Dispatch(Kill, [3]uint64{child.PID(), 2}); got != -1 {
		t.Fatalf("Dispatch(Kill, signal=2) = %d, want -1", got)
	}
}

func TestSysKillOfCurrentTaskOnlyMarksPendingExit(t *testing.T) {
	arena := newArenaAllocator(128)
	withTaskTestSeams(t, arena)
	cur := newTestTask(t, arena)

	if got := Dispatch(Kill, [3]uint64{cur.PID(), 9}); got != 0 {
		t.Fatalf("Dispatch(Kill) = %d, want 0", got)
	}
	if !cur.PendingExit() {
		t.Error("expected the running task to be marked pending-exit")
	}
	if cur.Status() == task.Zombie {
		t.Error("expected the running task's exit to be deferred, not synchronous")
	}
}

func TestSysKillOfReadyTaskRemovesItAndExitsSynchronously(t *testing.T) {
	arena := newArenaAllocator(128)
	withTaskTestSeams(t, arena)
	parent := newTestTask(t, arena)
	Dispatch(Fork, [3]uint64{})
	child := parent.Children()[0]

	if sched.Ready.Len() != 1 {
		t.Fatalf("expected the forked child to be enqueued Ready, Ready.Len() = %d", sched.Ready.Len())
	}

	if got := Dispatch(Kill, [3]uint64{child.PID(), 9}); got != 0 {
		t.Fatalf("Dispatch(Kill) = %d, want 0", got)
	}
	if child.PendingExit() {
		t.Error("a non-current task's exit should run synchronously, not be deferred")
	}
	if child.Status() != task.Zombie {
		t.Fatalf("expected the killed task to be Zombie, got %v", child.Status())
	}
	if child.ExitCode() != 9 {
		t.Errorf("expected exit code 9, got %d", child.ExitCode())
	}
	if sched.Ready.Len() != 0 {
		t.Errorf("expected the killed task to be removed from the ready set, Ready.Len() = %d", sched.Ready.Len())
	}
}

func TestSysWaitpidReturnsMinusTwoWhenChildNotYetZombie(t *testing.T) {
	arena := newArenaAllocator(128)
	withTaskTestSeams(t, arena)
	parent := newTestTask(t, arena)
	Dispatch(Fork, [3]uint64{})

	if got := Dispatch(Waitpid, [3]uint64{^uint64(0), 0}); got != -2 {
		t.Fatalf("Dispatch(Waitpid) on a non-zombie child = %d, want -2", got)
	}
	_ = parent
}

func TestSysWaitpidReturnsMinusOneWithNoMatchingChild(t *testing.T) {
	arena := newArenaAllocator(64)
	withTaskTestSeams(t, arena)
	newTestTask(t, arena)

	if got := Dispatch(Waitpid, [3]uint64{^uint64(0), 0}); got != -1 {
		t.Fatalf("Dispatch(Waitpid) with no children = %d, want -1", got)
	}
}

func TestSysWaitpidReapsZombieChildAndWritesExitCode(t *testing.T) {
	arena := newArenaAllocator(128)
	withTaskTestSeams(t, arena)
	parent := newTestTask(t, arena)
	Dispatch(Fork, [3]uint64{})
	child := parent.Children()[0]
	child.Exit(7)

	exitCodeVA := uintptr(0x2000)
	got := Dispatch(Waitpid, [3]uint64{^uint64(0), uint64(exitCodeVA)})
	if got != int64(child.PID()) {
		t.Fatalf("Dispatch(Waitpid) = %d, want child pid %d", got, child.PID())
	}
	if len(parent.Children()) != 0 {
		t.Error("expected the reaped child to be removed from the parent's list")
	}
	if code := readUserInt32(t, sched.CurrentUserToken(), exitCodeVA); code != 7 {
		t.Fatalf("exit code written through user pointer = %d, want 7", code)
	}
}

func TestSysExecReplacesAddressSpaceOnSuccess(t *testing.T) {
	arena := newArenaAllocator(128)
	withTaskTestSeams(t, arena)
	newTestTask(t, arena)

	origLookup := lookupAppFn
	elfData := buildMinimalELF(t, 0x2000, 0x2000, uint64(mem.PageSize)*4)
	lookupAppFn = func(name string) ([]byte, []string, bool) {
		if name != "hello" {
			return nil, nil, false
		}
		return elfData, nil, true
	}
	defer func() { lookupAppFn = origLookup }()

	pathVA := uintptr(0x3000)
	writeStringIntoUserSpace(t, sched.CurrentUserToken(), pathVA, "hello")

	got := Dispatch(Exec, [3]uint64{uint64(pathVA)})
	if got != 0 {
		t.Fatalf("Dispatch(Exec, \"hello\") = %d, want 0", got)
	}
	if cx := sched.CurrentTrapCx(); cx.Sepc != 0x2000 {
		t.Errorf("expected sepc to move to the new image's entry point, got %x", cx.Sepc)
	}
}

func TestSysExecReturnsMinusOneForUnknownApp(t *testing.T) {
	arena := newArenaAllocator(128)
	withTaskTestSeams(t, arena)
	newTestTask(t, arena)

	pathVA := uintptr(0x3000)
	writeStringIntoUserSpace(t, sched.CurrentUserToken(), pathVA, "no-such-app")

	if got := Dispatch(Exec, [3]uint64{uint64(pathVA)}); got != -1 {
		t.Fatalf("Dispatch(Exec, unknown) = %d, want -1", got)
	}
}

func TestDispatchPanicsOnUnknownSyscallID(t *testing.T) {
	arena := newArenaAllocator(64)
	withTaskTestSeams(t, arena)
	newTestTask(t, arena)

	origPanic := panicFn
	panicked := false
	panicFn = func(err interface{}) { panicked = true }
	defer func() { panicFn = origPanic }()

	Dispatch(9999, [3]uint64{})
	if !panicked {
		t.Error("expected Dispatch on an unknown id to panic")
	}
}

// writeStringIntoUserSpace and readUserByte/readUserInt32 poke the test
// task's real (arena-backed) address space directly through its page
// table, the same translation path sys_write/sys_read themselves use.
func writeStringIntoUserSpace(t *testing.T, token uint64, va uintptr, s string) {
	t.Helper()
	pt := vmm.FromToken(token)
	for i := 0; i < len(s); i++ {
		pa, ok := pt.TranslateVA(mem.VirtAddr(uintptr(va) + uintptr(i)))
		if !ok {
			t.Fatalf("address %#x not mapped in test task's address space", uintptr(va)+uintptr(i))
		}
		*(*byte)(unsafe.Pointer(uintptr(pa))) = s[i]
	}
	pa, ok := pt.TranslateVA(mem.VirtAddr(uintptr(va) + uintptr(len(s))))
	if !ok {
		t.Fatalf("address for NUL terminator not mapped")
	}
	*(*byte)(unsafe.Pointer(uintptr(pa))) = 0
}

func readUserByte(t *testing.T, token uint64, va uintptr) byte {
	t.Helper()
	pt := vmm.FromToken(token)
	pa, ok := pt.TranslateVA(mem.VirtAddr(va))
	if !ok {
		t.Fatalf("address %#x not mapped", va)
	}
	return *(*byte)(unsafe.Pointer(uintptr(pa)))
}

func readUserInt32(t *testing.T, token uint64, va uintptr) int32 {
	t.Helper()
	pt := vmm.FromToken(token)
	pa, ok := pt.TranslateVA(mem.VirtAddr(va))
	if !ok {
		t.Fatalf("address %#x not mapped", va)
	}
	return *(*int32)(unsafe.Pointer(uintptr(pa)))
}
