// Package main exists only to keep the Go compiler from eliding
// kmain.Kmain: a freestanding build has no other caller of it, and an
// unreferenced package is dropped from the final image. Mirrors
// gopher-os's own stub.go/boot.go, reworded for this kernel's M-mode
// RISC-V entry (kernel/platform/boot_riscv64.s's _start/mret) in place of
// gopher-os's amd64 rt0/GDT trampoline.
package main

import "rvos/kernel/kmain"

func main() {
	kmain.Kmain()
}
