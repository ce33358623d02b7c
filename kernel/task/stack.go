package task

import (
	"rvkernel/kernel"
	"rvkernel/kernel/mem"
	"rvkernel/kernel/mem/vmm"
	"unsafe"
)

// layoutInitialStack builds the conventional argc/argv[]/NULL/envp[]/NULL
// initial-stack image (§4.6) in a plain Go buffer, then maps it into as
// page by page via vmm.MapTemporary -- the same "build the content in a
// real, GC-backed buffer; temp-map each destination frame into the active
// address space to populate it; map the frame into the (possibly inactive)
// target address space" sequence vmm.FromELF already uses to populate a
// process's segments, generalized here to a process's stack instead.
func layoutInitialStack(as *vmm.AddressSpace, argv, envp []string) (uintptr, *kernel.Error) {
	regionSize := uintptr(userStackPages) * uintptr(mem.PageSize)
	stackBase := userStackTop - regionSize

	image := make([]byte, regionSize)
	sp := writeStackImage(image, userStackTop, argv, envp)

	pageSize := uintptr(mem.PageSize)
	for off := uintptr(0); off < regionSize; off += pageSize {
		frame, ferr := mem.AllocFrame()
		if ferr != nil {
			return 0, ferr
		}

		tmpPage, terr := vmm.MapTemporary(frame)
		if terr != nil {
			return 0, terr
		}
		kernel.Memcopy(uintptr(unsafe.Pointer(&image[off])), tmpPage.Address(), pageSize)
		if terr := vmm.Unmap(tmpPage); terr != nil {
			return 0, terr
		}

		if merr := as.Map(mem.PageFromAddress(stackBase+off), frame, vmm.FlagPresent|vmm.FlagRead|vmm.FlagWrite|vmm.FlagUser); merr != nil {
			return 0, merr
		}
	}

	return sp, nil
}

// writeStackImage lays out argc, a NULL-terminated argv pointer array, a
// NULL-terminated envp pointer array, the argument/environment strings
// themselves, and a zero auxv terminator, all within buf (which backs the
// region ending at topAddr once mapped). Returns the resulting stack
// pointer, rounded down to a 16-byte boundary per the standard calling
// convention.
func writeStackImage(buf []byte, topAddr uintptr, argv, envp []string) uintptr {
	cursor := len(buf)

	writeString := func(s string) uintptr {
		cursor -= len(s) + 1
		copy(buf[cursor:], s)
		buf[cursor+len(s)] = 0
		return topAddr - uintptr(len(buf)-cursor)
	}

	argvAddrs := make([]uintptr, len(argv))
	for i, s := range argv {
		argvAddrs[i] = writeString(s)
	}
	envpAddrs := make([]uintptr, len(envp))
	for i, s := range envp {
		envpAddrs[i] = writeString(s)
	}

	// Align the pointer-array region so that, once every word below is
	// written, argc sits exactly at the 16-byte-aligned stack pointer.
	cursor &^= 15
	if (len(argv)+len(envp)+4)%2 != 0 {
		cursor -= 8
	}

	writeWord := func(w uint64) {
		cursor -= 8
		byteOrderPutUint64(buf[cursor:cursor+8], w)
	}

	writeWord(0) // auxv terminator (AT_NULL)
	writeWord(0) // envp terminator
	for i := len(envpAddrs) - 1; i >= 0; i-- {
		writeWord(uint64(envpAddrs[i]))
	}
	writeWord(0) // argv terminator
	for i := len(argvAddrs) - 1; i >= 0; i-- {
		writeWord(uint64(argvAddrs[i]))
	}
	writeWord(uint64(len(argv))) // argc

	cursor &^= 15
	return topAddr - uintptr(len(buf)-cursor)
}

func byteOrderPutUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * uint(i)))
	}
}
