// Package elf parses just enough of an ELF64 image to load a user program:
// the file header and PT_LOAD program headers (spec.md §1: the ELF parser
// is an external collaborator "described only at its interface"). Anything
// else in the format -- sections, relocations, dynamic linking -- is not
// interpreted: non-LOAD program headers are skipped and section headers are
// never read.
package elf

import (
	"encoding/binary"

	"rvos/kernel"
)

var magic = [4]byte{0x7f, 'E', 'L', 'F'}

const ptLoad = 1

// Perm bits mirror the ELF64 program header p_flags field.
type Perm uint32

const (
	PermExec Perm = 1 << iota
	PermWrite
	PermRead
)

// Segment is one PT_LOAD program header, plus the slice of the original
// image backing its on-disk bytes.
type Segment struct {
	VAddr    uintptr
	FileSize uint64
	MemSize  uint64
	Flags    Perm
	Data     []byte
}

// File is the subset of an ELF64 image this kernel needs to build a user
// address space: the entry point and its loadable segments, in the order
// they appear in the program header table.
type File struct {
	Entry    uintptr
	Segments []Segment
}

var (
	errTooShort    = &kernel.Error{Module: "elf", Message: "image shorter than an ELF64 header"}
	errBadMagic    = &kernel.Error{Module: "elf", Message: "missing \\x7fELF magic"}
	errNot64Bit    = &kernel.Error{Module: "elf", Message: "only ELFCLASS64 images are supported"}
	errNotLittle   = &kernel.Error{Module: "elf", Message: "only little-endian images are supported"}
	errPHOutOfFile = &kernel.Error{Module: "elf", Message: "program header table extends past the image"}
	errSegOutOfFile = &kernel.Error{Module: "elf", Message: "segment file range extends past the image"}
)

const (
	ehdrSize = 64
	phdrSize = 56

	offEType   = 16
	offEEntry  = 24
	offEPhoff  = 32
	offEPhentsize = 54
	offEPhnum  = 56
)

// Parse validates the ELF64 header and extracts every PT_LOAD program
// header. Non-LOAD headers (PT_DYNAMIC, PT_INTERP, PT_NOTE, ...) are
// skipped, matching spec.md §4.4's "iterates program headers of type LOAD".
func Parse(data []byte) (*File, *kernel.Error) {
	if len(data) < ehdrSize {
		return nil, errTooShort
	}
	if data[0] != magic[0] || data[1] != magic[1] || data[2] != magic[2] || data[3] != magic[3] {
		return nil, errBadMagic
	}
	if data[4] != 2 { // EI_CLASS: ELFCLASS64
		return nil, errNot64Bit
	}
	if data[5] != 1 { // EI_DATA: ELFDATA2LSB
		return nil, errNotLittle
	}

	entry := binary.LittleEndian.Uint64(data[offEEntry:])
	phoff := binary.LittleEndian.Uint64(data[offEPhoff:])
	phentsize := binary.LittleEndian.Uint16(data[offEPhentsize:])
	phnum := binary.LittleEndian.Uint16(data[offEPhnum:])

	f := &File{Entry: uintptr(entry)}

	for i := uint16(0); i < phnum; i++ {
		off := phoff + uint64(i)*uint64(phentsize)
		if off+phdrSize > uint64(len(data)) {
			return nil, errPHOutOfFile
		}
		ph := data[off:]
		pType := binary.LittleEndian.Uint32(ph[0:])
		if pType != ptLoad {
			continue
		}
		pFlags := binary.LittleEndian.Uint32(ph[4:])
		pOffset := binary.LittleEndian.Uint64(ph[8:])
		pVAddr := binary.LittleEndian.Uint64(ph[16:])
		pFileSz := binary.LittleEndian.Uint64(ph[32:])
		pMemSz := binary.LittleEndian.Uint64(ph[40:])

		if pOffset+pFileSz > uint64(len(data)) {
			return nil, errSegOutOfFile
		}

		f.Segments = append(f.Segments, Segment{
			VAddr:    uintptr(pVAddr),
			FileSize: pFileSz,
			MemSize:  pMemSz,
			Flags:    elfFlagsToPerm(pFlags),
			Data:     data[pOffset : pOffset+pFileSz],
		})
	}

	return f, nil
}

func elfFlagsToPerm(f uint32) Perm {
	var p Perm
	if f&1 != 0 {
		p |= PermExec
	}
	if f&2 != 0 {
		p |= PermWrite
	}
	if f&4 != 0 {
		p |= PermRead
	}
	return p
}
