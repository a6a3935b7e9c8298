package mem

import (
	"reflect"
	"unsafe"
)

// Memset sets size bytes starting at addr to value. It uses log2(size)
// copy calls, the same doubling trick gopher-os's kernel/mem.Memset uses,
// instead of a byte-at-a-time loop.
func Memset(addr uintptr, value byte, size Size) {
	if size == 0 {
		return
	}

	target := *(*[]byte)(unsafe.Pointer(&reflect.SliceHeader{
		Len:  int(size),
		Cap:  int(size),
		Data: addr,
	}))

	target[0] = value
	for index := Size(1); index < size; index *= 2 {
		copy(target[index:], target[:index])
	}
}

// Memcopy copies size bytes from src to dst. Used by the copy-on-fork path
// when duplicating a framed map area's backing pages.
func Memcopy(dst, src uintptr, size Size) {
	if size == 0 {
		return
	}

	dstSlice := *(*[]byte)(unsafe.Pointer(&reflect.SliceHeader{
		Len: int(size), Cap: int(size), Data: dst,
	}))
	srcSlice := *(*[]byte)(unsafe.Pointer(&reflect.SliceHeader{
		Len: int(size), Cap: int(size), Data: src,
	}))
	copy(dstSlice, srcSlice)
}
