package vmm

import (
	"unsafe"

	"rvos/kernel"
	"rvos/kernel/mem"
	"rvos/kernel/mem/pmm"
)

var (
	// entriesAtFn overlays a frame's contents as its 512-entry PTE array.
	// It is a function-variable seam, the same shape as gopher-os's
	// ptePtrFn in kernel/mem/vmm/walk.go, so host `go test` can point it
	// at ordinary Go-allocated backing memory instead of a real physical
	// frame.
	entriesAtFn = entriesAt

	// panicFn is mocked by tests; in the freestanding kernel it is
	// kernel.Panic, exactly as gopher-os's vmm.panicFn is.
	panicFn = kernel.Panic

	ErrInvalidMapping = &kernel.Error{Module: "vmm", Message: "virtual page does not have a mapping"}
	errHugePage       = &kernel.Error{Module: "vmm", Message: "huge pages are not supported"}
	errAllocExhausted = &kernel.Error{Module: "vmm", Message: "no free frame for an intermediate page table"}
)

func entriesAt(frame pmm.Frame) *[512]PTE {
	return (*[512]PTE)(unsafe.Pointer(uintptr(frame.Addr())))
}

// FrameAllocatorFn allocates a single physical frame.
type FrameAllocatorFn func() (pmm.Frame, *kernel.Error)

// PageTable is a three-level Sv39 walker. An owning PageTable allocates and
// frees its own intermediate frames as pages are mapped and unmapped; a
// transient, read-only PageTable constructed via FromToken walks an
// arbitrary satp token without owning (or being able to free) any frame --
// this is the "backdoor" view the kernel uses to translate a caller's
// pointers across address spaces (spec.md §4.3, §9).
type PageTable struct {
	root    pmm.Frame
	frames  []*pmm.FrameTracker // root + every intermediate frame this table owns
	allocFn FrameAllocatorFn
	dealloc pmm.Deallocator
}

// New allocates a fresh root frame and returns an owning PageTable.
func New(allocFn FrameAllocatorFn, dealloc pmm.Deallocator) (*PageTable, *kernel.Error) {
	root, err := allocFn()
	if err != nil {
		return nil, err
	}
	pt := &PageTable{allocFn: allocFn, dealloc: dealloc}
	pt.root = root
	pt.frames = append(pt.frames, pmm.NewFrameTracker(root, dealloc))
	return pt, nil
}

// FromToken reconstructs a read-only walker over an arbitrary satp-token
// address space without taking ownership of any of its frames. Used to
// translate a syscall caller's user-space pointers (spec.md §4.3, §4.9).
func FromToken(token uint64) *PageTable {
	return &PageTable{root: pmm.Frame(token & ((1 << 44) - 1))}
}

// Token returns the satp value for this table: mode=Sv39(8)<<60 | root PPN.
func (pt *PageTable) Token() uint64 {
	return (uint64(8) << 60) | uint64(pt.root)
}

// RootFrame returns the physical frame backing the root table.
func (pt *PageTable) RootFrame() pmm.Frame { return pt.root }

// find walks the three Sv39 levels for vpn. If create is true and an
// intermediate level is missing, a fresh frame is allocated and linked in;
// if create is false, a missing intermediate level yields ErrInvalidMapping.
// A huge-page leaf encountered above the terminal level is reported as
// errHugePage -- huge pages are not supported, so the walk simply can't
// continue past one (spec.md §4.3).
func (pt *PageTable) find(vpn mem.VirtPageNum, create bool) (*PTE, *kernel.Error) {
	idx := vpn.Indexes()
	frame := pt.root

	var entry *PTE
	for level := 0; level < 3; level++ {
		entries := entriesAtFn(frame)
		entry = &entries[idx[level]]

		if level == 2 {
			break
		}

		if !entry.IsValid() {
			if !create {
				return nil, ErrInvalidMapping
			}
			if pt.allocFn == nil {
				return nil, errAllocExhausted
			}
			newFrame, err := pt.allocFn()
			if err != nil {
				return nil, err
			}
			pt.frames = append(pt.frames, pmm.NewFrameTracker(newFrame, pt.dealloc))
			*entry = NewPTE(newFrame, FlagValid)
			frame = newFrame
			continue
		}

		if entry.IsLeaf() {
			return nil, errHugePage
		}
		frame = entry.PPN()
	}

	return entry, nil
}

// Map installs a leaf mapping for vpn. Overwriting an already-valid leaf
// is an invariant violation (spec.md §8 scenario 5) and panics rather than
// returning an error.
func (pt *PageTable) Map(vpn mem.VirtPageNum, ppn pmm.Frame, flags Flag) {
	entry, err := pt.find(vpn, true)
	if err != nil {
		panicFn(err)
		return
	}
	if entry.IsValid() {
		panicFn(&kernel.Error{Module: "vmm", Message: "refusing to remap an already-valid page table entry"})
		return
	}
	*entry = NewPTE(ppn, flags|FlagValid)
}

// Unmap clears vpn's leaf mapping. Unmapping an address with no mapping is
// an invariant violation and panics, per spec.md §4.3.
func (pt *PageTable) Unmap(vpn mem.VirtPageNum) {
	entry, err := pt.find(vpn, false)
	if err != nil || !entry.IsValid() {
		panicFn(&kernel.Error{Module: "vmm", Message: "unmap of a virtual page with no mapping"})
		return
	}
	*entry = 0
}

// Translate returns the terminal PTE for vpn if it is a valid leaf.
func (pt *PageTable) Translate(vpn mem.VirtPageNum) (PTE, bool) {
	entry, err := pt.find(vpn, false)
	if err != nil || !entry.IsValid() || !entry.IsLeaf() {
		return 0, false
	}
	return *entry, true
}

// TranslateVA resolves an arbitrary virtual address to its physical
// address by translating its containing page and re-adding the
// page offset.
func (pt *PageTable) TranslateVA(va mem.VirtAddr) (mem.PhysAddr, bool) {
	pte, ok := pt.Translate(va.Floor())
	if !ok {
		return 0, false
	}
	return mem.PhysAddr(uint64(pte.PPN().Addr()) + va.PageOffset()), true
}

// Recycle releases every frame this table owns (root and all intermediate
// tables). Framed map areas must release their own data frames separately
// before calling Recycle; a transient FromToken view owns nothing and
// Recycle is a no-op for it.
func (pt *PageTable) Recycle() {
	for _, f := range pt.frames {
		f.Release()
	}
	pt.frames = nil
}
