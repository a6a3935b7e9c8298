package vmm

import (
	"testing"

	"rvos/kernel"
	"rvos/kernel/mem"
	"rvos/kernel/mem/pmm"
)

func TestFramedAreaOwnsOneFramePerPage(t *testing.T) {
	pt, fm := newTestPageTable(t)
	area := NewMapArea(10, 13, Framed, FlagRead|FlagWrite)

	allocFn := func() (pmm.Frame, *kernel.Error) { return fm.alloc() }
	if err := area.Map(pt, allocFn, fm.dealloc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := area.FrameCount(); got != 3 {
		t.Errorf("expected 3 owned frames for a 3-page Framed area, got %d", got)
	}
	for vpn := area.Beg; vpn < area.End; vpn++ {
		if _, ok := pt.Translate(vpn); !ok {
			t.Errorf("expected vpn %d to be mapped", vpn)
		}
	}
}

func TestIdenticalAreaOwnsNoFrames(t *testing.T) {
	pt, fm := newTestPageTable(t)
	area := NewMapArea(100, 104, Identical, FlagRead)

	allocFn := func() (pmm.Frame, *kernel.Error) { return fm.alloc() }
	if err := area.Map(pt, allocFn, fm.dealloc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := area.FrameCount(); got != 0 {
		t.Errorf("expected an Identical area to own zero frames, got %d", got)
	}
	pte, ok := pt.Translate(mem.VirtPageNum(100))
	if !ok {
		t.Fatal("expected vpn 100 to be mapped")
	}
	if pte.PPN() != pmm.Frame(100) {
		t.Errorf("expected Identical mapping to use vpn as ppn, got %d", pte.PPN())
	}
}

func TestUnmapReleasesFramedAreaFrames(t *testing.T) {
	pt, fm := newTestPageTable(t)
	area := NewMapArea(5, 7, Framed, FlagRead|FlagWrite)

	allocFn := func() (pmm.Frame, *kernel.Error) { return fm.alloc() }
	if err := area.Map(pt, allocFn, fm.dealloc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	area.Unmap(pt)

	if area.FrameCount() != 0 {
		t.Error("expected Unmap to clear the owned-frame list")
	}
	if _, ok := pt.Translate(mem.VirtPageNum(5)); ok {
		t.Error("expected vpn 5 to be unmapped")
	}
	if len(fm.freed) != 2 {
		t.Errorf("expected both data frames to be released, got %d", len(fm.freed))
	}
}

func TestCopyDataWritesAcrossMultiplePages(t *testing.T) {
	pt, fm := newTestPageTable(t)
	area := NewMapArea(0, 2, Framed, FlagRead|FlagWrite)

	allocFn := func() (pmm.Frame, *kernel.Error) { return fm.alloc() }
	if err := area.Map(pt, allocFn, fm.dealloc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data := make([]byte, int(mem.PageSize)+10)
	for i := range data {
		data[i] = byte(i)
	}

	var chunkSizes []int
	origCopy := memcopyFn
	memcopyFn = func(dst, src uintptr, size mem.Size) {
		chunkSizes = append(chunkSizes, int(size))
	}
	defer func() { memcopyFn = origCopy }()

	area.CopyData(pt, data)

	if len(chunkSizes) != 2 {
		t.Fatalf("expected CopyData to write 2 chunks (one per page), got %d", len(chunkSizes))
	}
	if chunkSizes[0] != int(mem.PageSize) {
		t.Errorf("expected the first chunk to be a full page, got %d bytes", chunkSizes[0])
	}
	if chunkSizes[1] != 10 {
		t.Errorf("expected the second chunk to hold the remaining 10 bytes, got %d", chunkSizes[1])
	}
}
