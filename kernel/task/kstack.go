package task

import (
	"rvos/kernel"
	"rvos/kernel/mem"
	"rvos/kernel/mem/vmm"
	"rvos/kernel/platform"
)

// AddressSpace is the subset of *vmm.MemorySet a kernel stack needs to
// grow and shrink the kernel's own address space. Expressed as an
// interface, not the concrete type, so this package's tests exercise the
// real carve-out/release arithmetic without touching vmm's frame-backed
// page table (which would otherwise require a real or faked physical
// memory region just to allocate a kernel stack's two frames).
type AddressSpace interface {
	InsertFramedArea(beg, end mem.VirtPageNum, perm vmm.Flag) *kernel.Error
	RemoveFramedArea(beg mem.VirtPageNum)
}

// KernelSpace is the kernel's singleton address space, installed once
// during boot before any task is created (kernel/kmain wires this to the
// *vmm.MemorySet built by vmm.NewKernelSpace).
var KernelSpace AddressSpace

// KernelStack is a task's private slice of the kernel's address space: two
// guard-separated pages per PID, carved out of the region below the
// trampoline (spec.md §4.5 "Kernel stack allocation",
// platform.KStackTop/KStackBottom).
type KernelStack struct {
	pid uint64
}

// NewKernelStack maps a fresh kernel stack for pid into KernelSpace.
func NewKernelStack(pid uint64) (*KernelStack, *kernel.Error) {
	top := platform.KStackTop(pid)
	bottom := platform.KStackBottom(pid)
	if err := KernelSpace.InsertFramedArea(bottom.Floor(), top.Ceil(), vmm.FlagRead|vmm.FlagWrite); err != nil {
		return nil, err
	}
	return &KernelStack{pid: pid}, nil
}

// Top returns this stack's initial stack pointer value.
func (k *KernelStack) Top() mem.VirtAddr { return platform.KStackTop(k.pid) }

// Release unmaps this stack from KernelSpace. Like PIDHandle, this must be
// called explicitly once the owning task has been reaped; Go has no Drop
// hook to do it implicitly.
func (k *KernelStack) Release() {
	KernelSpace.RemoveFramedArea(platform.KStackBottom(k.pid).Floor())
}
