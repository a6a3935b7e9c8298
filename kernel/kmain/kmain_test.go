package kmain

import (
	"encoding/binary"
	"testing"
	"unsafe"

	"rvos/kernel"
	"rvos/kernel/mem"
	"rvos/kernel/mem/pmm"
	"rvos/kernel/mem/vmm"
	"rvos/kernel/sched"
	"rvos/kernel/syscall"
	"rvos/kernel/task"
	"rvos/kernel/trap"
)

// arenaAllocator/fakeAddressSpace/buildMinimalELF/withTaskTestSeams mirror
// kernel/syscall's own test harness (task.New's real, unmocked page-table
// walk needs real page-aligned memory and a fully wired task package, and
// every piece of that is private to its own package's tests).
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

func newTrapContext(tcb *task.TaskControlBlock) *trap.TrapContext {
	cx := tcb.TrapCx()
	cx.X[17] = syscall.GetPid
	return cx
}

func TestDispatchSyscallWritesResultIntoA0(t *testing.T) {
	arena := newArenaAllocator(64)
	withTaskTestSeams(t, arena)
	tcb := newTestTask(t, arena)

	cx := newTrapContext(tcb)
	cx.X[17] = syscall.GetPid

	if pendingExit := dispatchSyscall(cx); pendingExit {
		t.Fatal("get_pid should never leave the caller pending exit")
	}
	if cx.X[10] != tcb.PID() {
		t.Fatalf("a0 after get_pid = %d, want %d", cx.X[10], tcb.PID())
	}
}

func TestDispatchSyscallAdvancesSepcPastEcall(t *testing.T) {
	arena := newArenaAllocator(64)
	withTaskTestSeams(t, arena)
	tcb := newTestTask(t, arena)

	cx := newTrapContext(tcb)
	cx.X[17] = syscall.GetPid
	before := cx.Sepc

	dispatchSyscall(cx)

	if cx.Sepc != before+4 {
		t.Fatalf("sepc after dispatchSyscall = %#x, want %#x", cx.Sepc, before+4)
	}
}

func TestDispatchSyscallReportsPendingExitAfterSelfKill(t *testing.T) {
	arena := newArenaAllocator(64)
	withTaskTestSeams(t, arena)
	tcb := newTestTask(t, arena)

	cx := newTrapContext(tcb)
	cx.X[17] = syscall.Kill
	cx.X[10] = tcb.PID()
	cx.X[11] = 9

	if pendingExit := dispatchSyscall(cx); !pendingExit {
		t.Fatal("expected dispatchSyscall to report pending exit after a self-kill")
	}
	if tcb.Status() == task.Zombie {
		t.Fatal("a self-kill's exit must stay deferred, not run synchronously here")
	}
}

func TestDispatchSyscallNoPendingExitForOrdinaryCalls(t *testing.T) {
	arena := newArenaAllocator(64)
	withTaskTestSeams(t, arena)
	tcb := newTestTask(t, arena)

	cx := newTrapContext(tcb)
	cx.X[17] = syscall.GetTime

	if pendingExit := dispatchSyscall(cx); pendingExit {
		t.Fatal("get_time must never leave the caller pending exit")
	}
}
