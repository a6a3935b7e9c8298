// Package task implements the task control block and the per-task state
// around it: PID allocation, kernel stacks, and the task context __switch
// saves/restores. Grounded on original_source/kernel/src/task/{pid,task,
// context}.rs, translated into the same stack-recycling/explicit-Release
// idiom kernel/mem/pmm/allocator and kernel/mem/pmm.FrameTracker already
// establish for this codebase (spec.md §4 "Process identifiers").
package task

import "rvos/kernel/sync"

// pidAllocator hands out PIDs by advancing a monotonic counter, preferring
// a recycled PID over a fresh one -- the same shape as
// allocator.StackAllocator, applied to PIDs instead of physical frames
// (original_source's PidAllocator{current, recycled}).
type pidAllocator struct {
	next     uint64
	recycled []uint64
}

func (a *pidAllocator) alloc() uint64 {
	if n := len(a.recycled); n > 0 {
		pid := a.recycled[n-1]
		a.recycled = a.recycled[:n-1]
		return pid
	}
	pid := a.next
	a.next++
	return pid
}

func (a *pidAllocator) dealloc(pid uint64) {
	a.recycled = append(a.recycled, pid)
}

// pids is the one PID allocator singleton, guarded by an ExclusiveCell per
// spec.md §9's "global mutable singletons" design note: AllocPID/Release
// each hold the borrow only across their own short mutation, never across
// a context switch.
var pids = sync.NewExclusiveCell(pidAllocator{})

// PIDHandle owns one process identifier. Go has no Drop hook to return it
// automatically on scope exit (original_source's PidHandle does, via
// Rust's Drop trait), so every owner must call Release explicitly once the
// task it names has been reaped -- the same explicit-Release convention
// pmm.FrameTracker uses.
type PIDHandle struct {
	PID uint64
}

// AllocPID reserves a new process identifier.
func AllocPID() PIDHandle {
	b := pids.Borrow()
	defer b.Release()
	return PIDHandle{PID: b.Get().alloc()}
}

// Release returns this PID to the allocator for reuse.
func (h PIDHandle) Release() {
	b := pids.Borrow()
	defer b.Release()
	b.Get().dealloc(h.PID)
}
