// Package pmm defines the physical frame number type shared by the frame
// allocator and the vmm page-table code, mirroring gopher-os's
// kernel/mem/pmm.Frame.
package pmm

import "rvos/kernel/mem"

// Frame is a physical page frame number.
type Frame mem.PhysPageNum

// InvalidFrame is returned by allocators when no frame is available.
const InvalidFrame = Frame(^mem.PhysPageNum(0))

// Valid reports whether this is a real, allocator-returned frame.
func (f Frame) Valid() bool { return f != InvalidFrame }

// Addr returns the physical address of the first byte of this frame.
func (f Frame) Addr() mem.PhysAddr { return mem.PhysPageNum(f).Addr() }
