package syscall

import (
	"rvkernel/kernel"
	"rvkernel/kernel/errors"
	"rvkernel/kernel/mem/vmm"
	"rvkernel/kernel/task"
	"unsafe"
)

// MaxUserString bounds how much of a NUL-terminated user string this
// package will ever copy into a kernel buffer in one call (§4.8: "strings
// are bounded-length-copied from user into a kernel buffer"), preventing a
// malicious or buggy user pointer from driving an unbounded kernel-side
// copy.
const MaxUserString = 4096

// validateUserRange walks t's active address space's VMAs to confirm addr
// .. addr+length is entirely covered by one VMA with at least the
// requested permission, before any dereference (§4.8). Returns
// errors.AddressFault if any part of the range is unmapped or the access
// would violate the VMA's protection.
func validateUserRange(t *task.Task, addr uintptr, length uintptr, write bool) *kernel.Error {
	if length == 0 {
		return nil
	}
	vma, err := t.AddressSpace.VMAFor(addr)
	if err != nil {
		return errors.AddressFault
	}
	if write && vma.Flags&vmm.VMAWrite == 0 {
		return errors.AddressFault
	}
	if !vma.Contains(addr + length - 1) {
		return errors.AddressFault
	}
	return nil
}

// CopyInString reads a NUL-terminated string of at most MaxUserString
// bytes (excluding the terminator) out of t's address space starting at
// addr, validating each page-sized stride against the VMA set before
// touching it.
func CopyInString(t *task.Task, addr uintptr) (string, *kernel.Error) {
	if verr := validateUserRange(t, addr, 1, false); verr != nil {
		return "", verr
	}

	buf := make([]byte, 0, 64)
	for i := uintptr(0); i < MaxUserString; i++ {
		if verr := validateUserRange(t, addr+i, 1, false); verr != nil {
			return "", verr
		}
		b := *(*byte)(unsafe.Pointer(addr + i))
		if b == 0 {
			return string(buf), nil
		}
		buf = append(buf, b)
	}
	return "", errors.NameTooLong
}

// CopyIn reads length bytes out of t's address space at addr into a fresh
// kernel-owned buffer, after validating the whole range up front.
func CopyIn(t *task.Task, addr uintptr, length uintptr) ([]byte, *kernel.Error) {
	if verr := validateUserRange(t, addr, length, false); verr != nil {
		return nil, verr
	}
	buf := make([]byte, length)
	kernel.Memcopy(addr, uintptr(unsafe.Pointer(&buf[0])), length)
	return buf, nil
}

// CopyOut writes buf into t's address space at addr, after validating the
// whole destination range for write access up front.
func CopyOut(t *task.Task, addr uintptr, buf []byte) *kernel.Error {
	if len(buf) == 0 {
		return nil
	}
	if verr := validateUserRange(t, addr, uintptr(len(buf)), true); verr != nil {
		return verr
	}
	kernel.Memcopy(uintptr(unsafe.Pointer(&buf[0])), addr, uintptr(len(buf)))
	return nil
}
