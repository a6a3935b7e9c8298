package vmm

import (
	"rvos/kernel"
	"rvos/kernel/elf"
	"rvos/kernel/mem"
	"rvos/kernel/mem/pmm"
	"rvos/kernel/platform"
)

// MemorySet is an address space: a page table plus the ordered map areas
// that make it up (spec.md §3 "Memory set"). The trampoline mapping is
// installed directly on the page table and is not tracked in areas, since
// it is shared verbatim by every address space and must survive Recycle.
type MemorySet struct {
	pt      *PageTable
	areas   []*MapArea
	allocFn FrameAllocatorFn
	dealloc pmm.Deallocator
}

// NewBare returns an empty address space: a fresh page table, no areas.
func NewBare(allocFn FrameAllocatorFn, dealloc pmm.Deallocator) (*MemorySet, *kernel.Error) {
	pt, err := New(allocFn, dealloc)
	if err != nil {
		return nil, err
	}
	return &MemorySet{pt: pt, allocFn: allocFn, dealloc: dealloc}, nil
}

// Push maps area through the page table and, if data is given and area is
// Framed, copies it page-by-page into the freshly mapped frames.
func (ms *MemorySet) Push(area *MapArea, data []byte) *kernel.Error {
	if err := area.Map(ms.pt, ms.allocFn, ms.dealloc); err != nil {
		return err
	}
	if data != nil && area.Mode == Framed {
		area.CopyData(ms.pt, data)
	}
	ms.areas = append(ms.areas, area)
	return nil
}

// MapTrampoline maps the single shared trampoline page at the top virtual
// page with (R|X). Not tracked in areas: it must not be unmapped by
// Recycle (spec.md §4.4).
func (ms *MemorySet) MapTrampoline() {
	trampolinePPN := pmm.Frame(mem.PhysAddr(platform.StrampolineAddr).Floor())
	ms.pt.Map(platform.Trampoline.Floor(), trampolinePPN, FlagRead|FlagExec)
}

// NewKernelSpace builds the identity-mapped kernel address space: the
// trampoline first, then every kernel section with its expected
// permissions and the UART/VIRT_TEST/CLINT MMIO windows (spec.md §3, §4.4
// "new_kernel").
func NewKernelSpace(allocFn FrameAllocatorFn, dealloc pmm.Deallocator) (*MemorySet, *kernel.Error) {
	ms, err := NewBare(allocFn, dealloc)
	if err != nil {
		return nil, err
	}
	ms.MapTrampoline()

	sections := []struct {
		beg, end uintptr
		perm     Flag
	}{
		{platform.STextAddr, platform.ETextAddr, FlagRead | FlagExec},
		{platform.SRodataAddr, platform.ERodataAddr, FlagRead},
		{platform.SDataAddr, platform.EDataAddr, FlagRead | FlagWrite},
		{platform.SBssWithStackAddr, platform.EBssAddr, FlagRead | FlagWrite},
		{platform.EkernelAddr, platform.MemoryEnd, FlagRead | FlagWrite},
		{platform.UARTMMIOBase, platform.UARTMMIOBase + uintptr(mem.PageSize), FlagRead | FlagWrite},
		{platform.VirtTestBase, platform.VirtTestBase + uintptr(mem.PageSize), FlagRead | FlagWrite},
		{platform.CLINTMTime, platform.CLINTMTime + uintptr(mem.PageSize), FlagRead | FlagWrite},
	}
	for _, s := range sections {
		area := NewMapArea(mem.VirtAddr(s.beg).Floor(), mem.VirtAddr(s.end).Ceil(), Identical, s.perm)
		if err := ms.Push(area, nil); err != nil {
			return nil, err
		}
	}
	return ms, nil
}

// FromELF builds a user address space from an ELF image: one Framed area
// per PT_LOAD segment (permissions derived from p_flags, plus U), a guard
// page, an 8 KiB Framed user stack, and a Framed trap-context page
// (spec.md §4.4 "from_elf"). Returns the new set, the user stack's top
// virtual address, and the entry point.
func FromELF(data []byte, allocFn FrameAllocatorFn, dealloc pmm.Deallocator) (*MemorySet, mem.VirtAddr, mem.VirtAddr, *kernel.Error) {
	f, err := elf.Parse(data)
	if err != nil {
		return nil, 0, 0, err
	}

	ms, err := NewBare(allocFn, dealloc)
	if err != nil {
		return nil, 0, 0, err
	}
	ms.MapTrampoline()

	var maxEndVPN mem.VirtPageNum
	for _, seg := range f.Segments {
		beg := mem.VirtAddr(seg.VAddr).Floor()
		end := mem.VirtAddr(uint64(seg.VAddr) + seg.MemSize).Ceil()

		perm := FlagUser
		if seg.Flags&elf.PermRead != 0 {
			perm |= FlagRead
		}
		if seg.Flags&elf.PermWrite != 0 {
			perm |= FlagWrite
		}
		if seg.Flags&elf.PermExec != 0 {
			perm |= FlagExec
		}

		area := NewMapArea(beg, end, Framed, perm)
		if err := ms.Push(area, seg.Data); err != nil {
			return nil, 0, 0, err
		}
		if end > maxEndVPN {
			maxEndVPN = end
		}
	}

	userStackBottom := mem.VirtAddr(uint64(maxEndVPN.Addr()) + uint64(platform.GuardPageSize))
	userStackTop := mem.VirtAddr(uint64(userStackBottom) + uint64(platform.UserStackSize))
	stackArea := NewMapArea(userStackBottom.Floor(), userStackTop.Ceil(), Framed, FlagRead|FlagWrite|FlagUser)
	if err := ms.Push(stackArea, nil); err != nil {
		return nil, 0, 0, err
	}

	trapCxArea := NewMapArea(platform.TrapContext.Floor(), platform.Trampoline.Floor(), Framed, FlagRead|FlagWrite)
	if err := ms.Push(trapCxArea, nil); err != nil {
		return nil, 0, 0, err
	}

	return ms, userStackTop, mem.VirtAddr(f.Entry), nil
}

// Token returns the satp value for this address space.
func (ms *MemorySet) Token() uint64 { return ms.pt.Token() }

// Translate resolves vpn through this address space's page table.
func (ms *MemorySet) Translate(vpn mem.VirtPageNum) (PTE, bool) { return ms.pt.Translate(vpn) }

// InsertFramedArea pushes a new anonymous Framed area with no initial
// data, used to grow the kernel space with a per-PID kernel stack.
func (ms *MemorySet) InsertFramedArea(beg, end mem.VirtPageNum, perm Flag) *kernel.Error {
	return ms.Push(NewMapArea(beg, end, Framed, perm), nil)
}

// RemoveFramedArea unmaps and drops the first area beginning at beg.
// Used to tear down a per-PID kernel stack (spec.md §4.5).
func (ms *MemorySet) RemoveFramedArea(beg mem.VirtPageNum) {
	for i, area := range ms.areas {
		if area.Beg == beg {
			area.Unmap(ms.pt)
			ms.areas = append(ms.areas[:i], ms.areas[i+1:]...)
			return
		}
	}
}

// Clone deep-copies obj into a fresh address space: the trampoline mapping,
// then one area per obj area with identical bounds/mode/perm, with every
// Framed page's bytes copied over (spec.md §4.7 fork: "forks by deep
// copy"). Identical areas (kernel sections) need no byte copy -- both
// spaces already see the same physical memory.
func Clone(obj *MemorySet) (*MemorySet, *kernel.Error) {
	ms, err := NewBare(obj.allocFn, obj.dealloc)
	if err != nil {
		return nil, err
	}
	ms.MapTrampoline()

	for _, srcArea := range obj.areas {
		dstArea := NewMapArea(srcArea.Beg, srcArea.End, srcArea.Mode, srcArea.Perm)
		if err := ms.Push(dstArea, nil); err != nil {
			return nil, err
		}
		if srcArea.Mode != Framed {
			continue
		}
		for vpn := srcArea.Beg; vpn < srcArea.End; vpn++ {
			srcPTE, ok := obj.pt.Translate(vpn)
			if !ok {
				return nil, ErrInvalidMapping
			}
			dstPTE, ok := ms.pt.Translate(vpn)
			if !ok {
				return nil, ErrInvalidMapping
			}
			memcopyFn(uintptr(dstPTE.PPN().Addr()), uintptr(srcPTE.PPN().Addr()), mem.PageSize)
		}
	}
	return ms, nil
}

// Activate installs this address space's token into satp and flushes the
// TLB, switching the running hart to it.
func (ms *MemorySet) Activate() {
	activateFn(ms.Token())
}

// Recycle releases every Framed area's frames and the page table's own
// frames. The trampoline mapping (never tracked as an area) is left
// alone: it lives in the kernel's own identity-mapped text, not in any
// frame this set owns.
func (ms *MemorySet) Recycle() {
	for _, area := range ms.areas {
		area.Unmap(ms.pt)
	}
	ms.areas = nil
	ms.pt.Recycle()
}
