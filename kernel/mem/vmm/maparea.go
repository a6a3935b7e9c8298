package vmm

import (
	"unsafe"

	"rvos/kernel"
	"rvos/kernel/mem"
	"rvos/kernel/mem/pmm"
)

// Mode selects how a MapArea's VPN range is backed by physical frames.
type Mode int

const (
	// Identical maps each VPN to the PPN of the same numeric value
	// (kernel sections, where VA and PA coincide).
	Identical Mode = iota
	// Framed allocates an independent physical frame per VPN.
	Framed
)

// MapArea is a half-open VPN range [Beg, End) sharing one mapping mode and
// permission set (spec.md §3). A Framed area owns one FrameTracker per
// mapped page; an Identical area owns none.
type MapArea struct {
	Beg, End mem.VirtPageNum
	Mode     Mode
	Perm     Flag

	frames []*pmm.FrameTracker
}

// NewMapArea constructs an area over [beg, end) with no frames mapped yet.
func NewMapArea(beg, end mem.VirtPageNum, mode Mode, perm Flag) *MapArea {
	return &MapArea{Beg: beg, End: end, Mode: mode, Perm: perm}
}

// Map installs a leaf mapping for every VPN in the area, allocating a fresh
// frame per page when Framed. Satisfies the invariant that a mapped Framed
// area's frame list length equals End-Beg.
func (a *MapArea) Map(pt *PageTable, allocFn FrameAllocatorFn, dealloc pmm.Deallocator) *kernel.Error {
	for vpn := a.Beg; vpn < a.End; vpn++ {
		var ppn pmm.Frame
		switch a.Mode {
		case Identical:
			ppn = pmm.Frame(vpn)
		case Framed:
			frame, err := allocFn()
			if err != nil {
				return err
			}
			a.frames = append(a.frames, pmm.NewFrameTracker(frame, dealloc))
			ppn = frame
		}
		pt.Map(vpn, ppn, a.Perm)
	}
	return nil
}

// Unmap clears every VPN's mapping and releases any owned frames.
func (a *MapArea) Unmap(pt *PageTable) {
	for vpn := a.Beg; vpn < a.End; vpn++ {
		pt.Unmap(vpn)
	}
	for _, f := range a.frames {
		f.Release()
	}
	a.frames = nil
}

// CopyData writes data into the area's already-mapped Framed pages,
// page by page, per push's "copies the bytes page-by-page" contract.
// data must fit within the area; excess VPNs are left zeroed.
func (a *MapArea) CopyData(pt *PageTable, data []byte) {
	offset := 0
	for vpn := a.Beg; vpn < a.End && offset < len(data); vpn++ {
		pte, ok := pt.Translate(vpn)
		if !ok {
			panicFn(ErrInvalidMapping)
			return
		}
		n := len(data) - offset
		if n > int(mem.PageSize) {
			n = int(mem.PageSize)
		}
		dst := uintptr(pte.PPN().Addr())
		src := uintptr(unsafe.Pointer(&data[offset]))
		memcopyFn(dst, src, mem.Size(n))
		offset += n
	}
}

// FrameCount reports how many frames this area currently owns.
func (a *MapArea) FrameCount() int { return len(a.frames) }
