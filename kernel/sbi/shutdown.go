// Package sbi implements the single SBI-like primitive this kernel needs:
// powering the virt machine off. A real SBI implementation (timer, IPI,
// console) is out of scope per spec.md §1; the timer is instead driven
// directly from M-mode (see kernel/timer) and the console goes through
// kernel/driver/uart.
package sbi

import "unsafe"

// testDeviceAddr is the VIRT_TEST MMIO word. Writing the magic value below
// powers the machine off under QEMU's virt platform.
const testDeviceAddr = 0x0010_0000

const shutdownMagic = 0x5555

// Shutdown powers off the machine. It does not return.
func Shutdown() {
	reg := (*uint32)(unsafe.Pointer(uintptr(testDeviceAddr)))
	*reg = shutdownMagic
	for {
	}
}
