// Package uart drives the 16550-compatible serial line at the virt
// platform's fixed MMIO base. It is deliberately narrow: spec.md treats the
// serial driver as an external collaborator described only at its
// interface (byte-at-a-time, polled, no interrupts, no FIFO depth
// tracking beyond the status bits the hardware already exposes).
package uart

import "unsafe"

// Base is the MMIO base address of the UART on the virt platform.
const Base = 0x1000_0000

// Register offsets, 16550-compatible.
const (
	regRBR = 0 // receiver buffer register (DLAB=0, read)
	regTHR = 0 // transmitter holding register (DLAB=0, write)
	regIER = 1 // interrupt enable register
	regIIR = 2 // interrupt identification register (read)
	regFCR = 2 // FIFO control register (write)
	regLCR = 3 // line control register
	regMCR = 4 // modem control register
	regLSR = 5 // line status register
	regMSR = 6 // modem status register
	regSCR = 7 // scratch register

	lcrDLAB = 1 << 7
	lsrRxRdy = 1 << 0
	lsrTxRdy = 1 << 5
)

// Uart is a handle to a single 16550-compatible serial port.
type Uart struct {
	base uintptr
}

// New returns a Uart driving the device mapped at base.
func New(base uintptr) *Uart {
	return &Uart{base: base}
}

func (u *Uart) reg(offset uintptr) *byte {
	return (*byte)(unsafe.Pointer(u.base + offset))
}

// Init programs the line control register for 8N1 and enables the FIFO.
// Baud divisor programming is skipped: QEMU's virt UART ignores it and
// real hardware bring-up is out of scope per spec.md §1.
func (u *Uart) Init() {
	*u.reg(regIER) = 0x00
	*u.reg(regFCR) = 0x01
	*u.reg(regLCR) = 0x03
}

// WriteByte blocks until the transmitter is ready and then sends b.
func (u *Uart) WriteByte(b byte) {
	for *u.reg(regLSR)&lsrTxRdy == 0 {
	}
	*u.reg(regTHR) = b
}

// Write implements io.Writer by emitting each byte in order.
func (u *Uart) Write(p []byte) (int, error) {
	for _, b := range p {
		u.WriteByte(b)
	}
	return len(p), nil
}

// ReadByte blocks until a byte is available and returns it.
func (u *Uart) ReadByte() byte {
	for *u.reg(regLSR)&lsrRxRdy == 0 {
	}
	return *u.reg(regRBR)
}

// TryReadByte returns (byte, true) if a byte is already buffered in the
// receiver, or (0, false) without blocking otherwise. This backs the
// non-blocking single-byte peek described for read(fd=0, len=0) in
// spec.md §4.9.
func (u *Uart) TryReadByte() (byte, bool) {
	if *u.reg(regLSR)&lsrRxRdy == 0 {
		return 0, false
	}
	return *u.reg(regRBR), true
}
