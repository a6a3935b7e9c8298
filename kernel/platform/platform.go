// Package platform collects the fixed hardware addresses and linker-provided
// section boundaries for the virt RISC-V machine this kernel targets,
// mirroring the way gopher-os keeps its multiboot/MMIO constants in one
// small package (kernel/kmain.go's header parsing) rather than scattering
// magic numbers across every consumer.
package platform

import "rvos/kernel/mem"

// CLINT (core-local interruptor) registers driving the machine-mode timer.
const (
	CLINTBase     = 0x0200_0000
	CLINTMTime    = CLINTBase + 0xbff8
	CLINTMTimeCmp = CLINTBase + 0x4000

	// TimerFreq is the virt platform's fixed mtime tick rate.
	TimerFreq = 12_500_000
)

// MemoryEnd bounds the physical region the frame allocator manages
// (spec.md §4.2: "[ceil(end-of-kernel), floor(MEMORY_END))").
const MemoryEnd = 0x8800_0000

// MMIO windows identity-mapped into every kernel space (spec.md §3
// "Memory set": "plus MMIO regions"). Mirror driver/uart.Base and
// sbi's VIRT_TEST address; kept here too since NewKernelSpace maps
// windows, not individual registers, and should not import the drivers
// just to learn their base addresses.
const (
	UARTMMIOBase  = 0x1000_0000
	VirtTestBase  = 0x0010_0000
	MMIOPageCount = 1
)

// Linker-script symbols bounding the kernel's own sections. A freestanding
// build's linker script assigns these; they are declared here as the
// contract kernel/mem/vmm.NewKernelSpace walks to identity-map each
// section with its expected permissions (spec.md §3 "Memory set").
var (
	STextAddr, ETextAddr     uintptr
	SRodataAddr, ERodataAddr uintptr
	SDataAddr, EDataAddr     uintptr
	SBssWithStackAddr, EBssAddr uintptr
	EkernelAddr              uintptr

	// StrampolineAddr is the trampoline code's link address. Since the
	// kernel's own sections are identity-mapped, this doubles as its
	// physical address (spec.md §4.4 "map_trampoline").
	StrampolineAddr uintptr
)

// loadSectionBounds copies the section-boundary symbols link_riscv64.ld
// provides (stext, etext, srodata, erodata, sdata, edata,
// sbss_with_stack, ebss, ekernel, strampoline -- the same names
// rCore-tutorial's own linker.ld exports) into the vars above. Bodiless,
// implemented in layout_riscv64.s; the same declare-in-Go,
// define-in-assembly split kernel/cpu uses for CSR accessors, applied here
// to linker-provided addresses instead of instructions.
func loadSectionBounds()

// LoadSectionBounds populates every section-boundary var from the linker
// script. Called once, before any address space is built, from
// kernel/kmain's boot sequence.
func LoadSectionBounds() { loadSectionBounds() }

// Trampoline is mapped at the top virtual page of the 39-bit address space
// (spec.md §4.4 "map_trampoline": VA = usize::MAX − 0xFFF, truncated to the
// Sv39-addressable range).
const Trampoline = mem.VirtAddr((uint64(1) << mem.VAWidth) - uint64(mem.PageSize))

// TrapContext sits one page below the trampoline (spec.md §4.4/§4.6).
const TrapContext = mem.VirtAddr(uint64(Trampoline) - uint64(mem.PageSize))

// KStackSize is a per-PID kernel stack's size: two pages (spec.md §4.5).
const KStackSize = 2 * mem.PageSize

// KStackTop returns the top virtual address of the pid'th kernel stack,
// carved downward from the trampoline with a one-page guard between every
// stack and its neighbours (spec.md §4.5).
func KStackTop(pid uint64) mem.VirtAddr {
	return mem.VirtAddr(uint64(Trampoline) - (uint64(KStackSize)+uint64(mem.PageSize))*(pid+1) - uint64(mem.PageSize))
}

// KStackBottom returns the bottom of the pid'th kernel stack.
func KStackBottom(pid uint64) mem.VirtAddr {
	return mem.VirtAddr(uint64(KStackTop(pid)) - uint64(KStackSize))
}

// UserStackSize is the size of a freshly loaded program's user stack
// (spec.md §4.4 "from_elf": "8 KiB").
const UserStackSize = 8 * mem.Kb

// GuardPageSize separates the top of the ELF image from the user stack.
const GuardPageSize = mem.PageSize
