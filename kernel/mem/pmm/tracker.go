package pmm

import "rvos/kernel/mem"

// Deallocator releases a frame previously handed out by an Allocator.
// FrameTracker holds one as a seam so this package does not import the
// concrete allocator package (mem/pmm/allocator), matching the
// FrameAllocatorFn seam vmm uses to avoid depending on a specific allocator.
type Deallocator func(Frame)

// Memset is a seam for the zero-fill step below, defaulted to mem.Memset;
// tests that construct frames backed by ordinary Go memory (rather than a
// real physical address) override it to avoid touching unmapped addresses.
var Memset = mem.Memset

// FrameTracker owns exactly one physical frame and releases it when
// Release is called. Go has no destructor/Drop hook to run this
// automatically, so -- unlike the Rust original -- every owner of a
// FrameTracker must call Release explicitly (typically via defer) when it
// gives up the frame; this is the idiomatic Go translation of an
// RAII-on-drop type, the same way gopher-os calls dealloc explicitly at
// every call site instead of modeling ownership as a droppable value.
type FrameTracker struct {
	Frame   Frame
	release Deallocator
}

// NewFrameTracker takes ownership of frame, zeroing its contents, and
// returns a tracker that will hand it back to release on Release.
func NewFrameTracker(frame Frame, release Deallocator) *FrameTracker {
	Memset(uintptr(frame.Addr()), 0, mem.PageSize)
	return &FrameTracker{Frame: frame, release: release}
}

// Release returns the frame to its owning allocator. Safe to call at most
// once; a second call is a double free, caught by the allocator's own
// Dealloc invariant check.
func (t *FrameTracker) Release() {
	t.release(t.Frame)
}
