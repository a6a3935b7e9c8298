// Package heap implements the kernel's dynamic allocator: a buddy
// allocator over a fixed-size BSS-backed arena, per spec.md §4.1. The free
// lists are index-based (array slots in a pre-sized node table) rather than
// pointer-linked, the same shape gopher-os's bitmap allocator uses to avoid
// allocating while allocating -- see kernel/mem/physical/allocator.go in
// the teacher for the precedent of sizing auxiliary bitmaps/tables ahead of
// time instead of reaching for make() mid-allocation.
//
// This is translated from, and fixes three bugs recorded against,
// _examples/original_source/src/mm/buddy.rs: pop() must relink the
// removed node's *neighbours*, not the removed node itself; the top
// allocation level must terminate merge() with a plain push rather than
// falling through to buddy arithmetic that indexes past the last level;
// and get_link_index must divide by the block unit size, not take it
// modulo.
package heap

import "rvos/kernel/mem"

const (
	// blockUnitSize is the smallest block the allocator hands out.
	blockUnitSize = uint64(mem.PageSize)

	// maxLevel is the number of distinct block sizes: level L covers
	// blocks of size blockUnitSize << L.
	maxLevel = 11

	// tableSize bounds the number of simultaneously tracked blocks
	// (free or allocated-and-since-split) and therefore the arena size:
	// tableSize * blockUnitSize must cover HeapSize.
	tableSize = 1024

	// HeapSize is the size of the BSS-backed arena this allocator manages.
	HeapSize = uint64(tableSize) * blockUnitSize

	noNode = -1
)

// link is one slot of the index-based doubly-linked free list, keyed by
// block index (offset from the heap base in units of blockUnitSize).
type link struct {
	prev, next int32
	level      int8
	free       bool
}

// Allocator is a buddy allocator over a single contiguous arena.
type Allocator struct {
	freeHead [maxLevel]int32
	freeTail [maxLevel]int32
	nodes    [tableSize]link
	baseAddr uintptr
	size     uint64
}

// Init prepares the allocator to serve blocks out of [base, base+HeapSize).
// The caller supplies the backing memory (a fixed BSS array in the
// freestanding kernel; a byte slice under `go test`).
func (a *Allocator) Init(base uintptr) {
	for lvl := range a.freeHead {
		a.freeHead[lvl] = noNode
		a.freeTail[lvl] = noNode
	}
	a.baseAddr = base
	a.size = HeapSize
	a.push(a.index(base), maxLevel-1)
}

func (a *Allocator) index(addr uintptr) int32 {
	return int32((uint64(addr) - uint64(a.baseAddr)) / blockUnitSize)
}

func (a *Allocator) addr(index int32) uintptr {
	return a.baseAddr + uintptr(index)*uintptr(blockUnitSize)
}

// push adds the block at addr index, of the given level, to the head of
// that level's free list.
func (a *Allocator) push(index int32, level int) {
	a.nodes[index] = link{prev: noNode, next: a.freeHead[level], level: int8(level), free: true}
	if a.freeHead[level] == noNode {
		a.freeTail[level] = index
	} else {
		a.nodes[a.freeHead[level]].prev = index
	}
	a.freeHead[level] = index
}

// pop removes index from its level's free list, relinking the
// predecessor/successor around the removed node (not the removed node's
// own prev/next, which is the bug fixed relative to the Rust original).
func (a *Allocator) pop(index int32) {
	n := &a.nodes[index]
	n.free = false

	if n.prev == noNode {
		a.freeHead[n.level] = n.next
	} else {
		a.nodes[n.prev].next = n.next
	}

	if n.next == noNode {
		a.freeTail[n.level] = n.prev
	} else {
		a.nodes[n.next].prev = n.prev
	}
}

// popFreeAtLevel pops and returns the head of the free list at level, or
// noNode if that level has nothing free.
func (a *Allocator) popFreeAtLevel(level int) int32 {
	head := a.freeHead[level]
	if head == noNode {
		return noNode
	}
	a.pop(head)
	return head
}

// split finds the lowest non-empty level at or above the requested level,
// pops one block from it, and repeatedly halves it down to the requested
// level, pushing the unused half back onto the free list at each step.
// Returns the virtual address of the block, or 0 if no block large enough
// exists anywhere in the arena.
func (a *Allocator) split(level int) uintptr {
	foundLevel := level
	var index int32 = noNode
	for ; foundLevel < maxLevel; foundLevel++ {
		if index = a.popFreeAtLevel(foundLevel); index != noNode {
			break
		}
	}
	if foundLevel == maxLevel {
		return 0
	}

	for foundLevel > level {
		foundLevel--
		buddyIndex := index + (1 << foundLevel)
		a.push(buddyIndex, foundLevel)
	}
	return a.addr(index)
}

// merge returns the block at addr, of the given level, to the free lists,
// coalescing with its buddy while the buddy is free and at the same level.
// The top level is terminal: a block at maxLevel-1 has no buddy inside the
// arena, so it is simply pushed back rather than probing past the last
// free-list slot.
func (a *Allocator) merge(index int32, level int) {
	if level == maxLevel-1 {
		a.push(index, level)
		return
	}

	blockSize := int32(1) << uint(level)
	var buddyIndex int32
	if (index/blockSize)%2 == 0 {
		buddyIndex = index + blockSize
	} else {
		buddyIndex = index - blockSize
	}

	if a.nodes[buddyIndex].free && int(a.nodes[buddyIndex].level) == level {
		a.pop(buddyIndex)
		lower := index
		if buddyIndex < lower {
			lower = buddyIndex
		}
		a.merge(lower, level+1)
		return
	}

	a.push(index, level)
}

// levelFor returns the smallest level whose block size is >= size.
func levelFor(size uint64) int {
	if size < blockUnitSize {
		size = blockUnitSize
	}
	level := 0
	for blockUnitSize<<uint(level) < size {
		level++
	}
	return level
}

// Alloc rounds size up to max(next_pow2(size), blockUnitSize, align) and
// returns the address of a block of that size, or 0 if no block of
// sufficient size exists (allocation exhaustion, spec.md §7 category 2).
func (a *Allocator) Alloc(size, align uint64) uintptr {
	req := nextPow2(size)
	if align > req {
		req = nextPow2(align)
	}
	return a.split(levelFor(req))
}

// Dealloc returns a previously allocated block to the allocator. addr and
// size must exactly match a prior successful Alloc call; addr outside the
// managed arena is a fatal invariant violation (spec.md §7 category 1),
// reported via the ok return so callers can route it through kernel.Panic
// without this package depending on the kernel package.
func (a *Allocator) Dealloc(addr uintptr, size uint64) (ok bool) {
	if addr < a.baseAddr || addr >= a.baseAddr+uintptr(a.size) {
		return false
	}
	req := nextPow2(size)
	level := levelFor(req)
	a.merge(a.index(addr), level)
	return true
}

func nextPow2(v uint64) uint64 {
	if v <= 1 {
		return 1
	}
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v |= v >> 32
	return v + 1
}
