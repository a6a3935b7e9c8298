// Package syscall implements the numeric syscall dispatch table user tasks
// trap into: the handler kernel/trap.Dispatch invokes for an Environment
// Call from U-mode. Grounded on
// original_source/kernel/src/syscall/{mod,syscall}.rs.
package syscall

import (
	"unsafe"

	"rvos/kernel/mem"
	"rvos/kernel/mem/vmm"
)

// translatedBytes splits the len bytes at user virtual address ptr,
// translated through the address space named by token, into one []byte
// slice per physical page -- a user buffer that straddles a page boundary
// is not contiguous in physical memory, so callers (sys_write, sys_read)
// must iterate the returned slices in order. Grounded on
// original_source/kernel/src/mm/page_table.rs's translated_byte_buffer.
func translatedBytes(token uint64, ptr uintptr, length int) [][]byte {
	if length <= 0 {
		return nil
	}
	pt := vmm.FromToken(token)
	va := mem.VirtAddr(ptr)
	endVA := mem.VirtAddr(uint64(ptr) + uint64(length))

	var out [][]byte
	for va < endVA {
		vpn := va.Floor()
		pte, ok := pt.Translate(vpn)
		if !ok {
			return out
		}
		pageBase := pte.PPN().Addr()

		nextPageVA := mem.VirtAddr((uint64(vpn) + 1) << mem.PageShift)
		segEnd := endVA
		if nextPageVA < segEnd {
			segEnd = nextPageVA
		}

		begOff := va.PageOffset()
		endOff := segEnd.PageOffset()
		if endOff == 0 {
			endOff = uint64(mem.PageSize)
		}

		base := unsafe.Pointer(uintptr(pageBase))
		slice := unsafe.Slice((*byte)(unsafe.Add(base, begOff)), endOff-begOff)
		out = append(out, slice)

		va = segEnd
	}
	return out
}

// writeTranslatedInt32 stores value at the user virtual address ptr,
// translated through token. Used to write waitpid's exit-code result
// back through the caller's pointer (spec.md §4.7 "waitpid"). Mirrors
// original_source/kernel/src/mm/page_table.rs's translated_refmut,
// which also assumes the written object does not straddle a page
// boundary.
func writeTranslatedInt32(token uint64, ptr uintptr, value int32) bool {
	pt := vmm.FromToken(token)
	pa, ok := pt.TranslateVA(mem.VirtAddr(ptr))
	if !ok {
		return false
	}
	*(*int32)(unsafe.Pointer(uintptr(pa))) = value
	return true
}

// translatedString reads a NUL-terminated byte string at user virtual
// address ptr, translated through token, one byte at a time. Grounded on
// original_source/kernel/src/syscall/syscall.rs's sys_exec, which walks a
// path string this same way rather than through translatedBytes.
func translatedString(token uint64, ptr uintptr) string {
	pt := vmm.FromToken(token)
	var buf []byte
	va := uintptr(ptr)
	for {
		pa, ok := pt.TranslateVA(mem.VirtAddr(va))
		if !ok {
			break
		}
		b := *(*byte)(unsafe.Pointer(uintptr(pa)))
		if b == 0 {
			break
		}
		buf = append(buf, b)
		va++
	}
	return string(buf)
}
