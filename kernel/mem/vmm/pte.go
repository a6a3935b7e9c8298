// Package vmm implements the Sv39 virtual memory subsystem: page table
// entries and the three-level walker (this file and pagetable.go), map
// areas and memory sets (maparea.go, memoryset.go), and TLB/SATP control
// (tlb.go). The PTE flag-bit API is carried over directly from gopher-os's
// kernel/mem/vmm.pageTableEntry (HasFlags/SetFlags/ClearFlags/Frame/
// SetFrame), generalized from the teacher's x86 flag layout to Sv39's.
package vmm

import "rvos/kernel/mem/pmm"

// Flag is a single Sv39 PTE bit, per spec.md §3.
type Flag uint64

const (
	FlagValid Flag = 1 << iota
	FlagRead
	FlagWrite
	FlagExec
	FlagUser
	FlagGlobal
	FlagAccessed
	FlagDirty
)

const (
	ppnShift = 10
	ppnMask  = ((uint64(1) << 44) - 1) << ppnShift
	flagMask = (uint64(1) << 8) - 1
)

// PTE is a single 64-bit Sv39 page table entry.
type PTE uint64

// NewPTE builds a PTE pointing at ppn with the given flags.
func NewPTE(ppn pmm.Frame, flags Flag) PTE {
	return PTE((uint64(ppn) << ppnShift) | uint64(flags))
}

// HasFlags reports whether every bit in flags is set.
func (p PTE) HasFlags(flags Flag) bool { return uint64(p)&uint64(flags) == uint64(flags) }

// HasAnyFlag reports whether at least one bit in flags is set.
func (p PTE) HasAnyFlag(flags Flag) bool { return uint64(p)&uint64(flags) != 0 }

// IsValid reports whether the V bit is set.
func (p PTE) IsValid() bool { return p.HasFlags(FlagValid) }

// IsLeaf reports whether this entry terminates a walk, per spec.md §3's
// invariant: a leaf has at least one of R/W/X; a non-leaf has none.
func (p PTE) IsLeaf() bool { return p.HasAnyFlag(FlagRead | FlagWrite | FlagExec) }

// PPN returns the physical page number this entry addresses.
func (p PTE) PPN() pmm.Frame { return pmm.Frame((uint64(p) & ppnMask) >> ppnShift) }

// Flags returns the low 8 flag bits.
func (p PTE) Flags() Flag { return Flag(uint64(p) & flagMask) }

// SetFlags ORs flags into the entry.
func (p *PTE) SetFlags(flags Flag) { *p = PTE(uint64(*p) | uint64(flags)) }

// ClearFlags clears flags from the entry.
func (p *PTE) ClearFlags(flags Flag) { *p = PTE(uint64(*p) &^ uint64(flags)) }

// SetPPN updates the physical page number, preserving flags.
func (p *PTE) SetPPN(ppn pmm.Frame) {
	*p = PTE((uint64(*p) &^ ppnMask) | (uint64(ppn) << ppnShift))
}
