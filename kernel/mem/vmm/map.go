package vmm

import (
	"rvkernel/kernel"
	"rvkernel/kernel/cpu"
	"rvkernel/kernel/mem"
	"unsafe"
)

// ReservedZeroedFrame is a blank, zero-filled frame allocated once by Init
// and reused with FlagCopyOnWrite to back lazily-allocated pages (e.g. BSS,
// anonymous mmap) without actually consuming a distinct frame until the
// first write.
var ReservedZeroedFrame mem.Frame

var (
	protectReservedZeroedPage bool

	// nextAddrFn lets tests override the address-shift arithmetic Map
	// uses to locate a freshly allocated table's virtual alias.
	nextAddrFn = func(entryAddr uintptr) uintptr { return entryAddr }

	flushTLBEntryFn = cpu.FlushTLBEntry

	earlyReserveRegionFn = EarlyReserveRegion
	mapFn                = Map
	unmapFn              = Unmap

	errAttemptToRWMapReservedFrame = &kernel.Error{Module: "vmm", Message: "reserved blank frame cannot be mapped with a RW flag"}
)

// Map establishes a mapping between page and frame in the currently active
// page table, allocating any missing interior tables along the way via the
// frame allocator registered with mem.SetFrameAllocator.
func Map(page mem.Page, frame mem.Frame, flags PageTableEntryFlag) *kernel.Error {
	if protectReservedZeroedPage && frame == ReservedZeroedFrame && (flags&FlagWrite) != 0 {
		return errAttemptToRWMapReservedFrame
	}

	var err *kernel.Error

	walk(page.Address(), func(pteLevel uint8, pte *pageTableEntry) bool {
		if pteLevel == pageLevels-1 {
			*pte = 0
			pte.SetFrame(frame)
			pte.SetFlags(flags | FlagPresent)
			flushTLBEntryFn(page.Address())
			return true
		}

		if !pte.HasFlags(FlagPresent) {
			var newTableFrame mem.Frame
			newTableFrame, err = mem.AllocFrame()
			if err != nil {
				return false
			}

			*pte = 0
			pte.SetFrame(newTableFrame)
			pte.SetFlags(FlagPresent)

			nextTableAddr := uintptr(unsafe.Pointer(pte)) << pageLevelBits[pteLevel+1]
			kernel.Memset(nextAddrFn(nextTableAddr), 0, mem.PageSize)
		}

		return true
	})

	return err
}

// MapRegion reserves the next available virtual address range via
// EarlyReserveRegion and maps size bytes (rounded up) starting at frame into
// it, returning the Page the region begins at.
func MapRegion(frame mem.Frame, size mem.Size, flags PageTableEntryFlag) (mem.Page, *kernel.Error) {
	size = (size + (mem.PageSize - 1)) &^ (mem.PageSize - 1)
	startAddr, err := earlyReserveRegionFn(size)
	if err != nil {
		return 0, err
	}

	pageCount := size >> mem.PageShift
	for page := mem.PageFromAddress(startAddr); pageCount > 0; pageCount, page, frame = pageCount-1, page+1, frame+1 {
		if err := mapFn(page, frame, flags); err != nil {
			return 0, err
		}
	}

	return mem.PageFromAddress(startAddr), nil
}

// MapTemporary maps frame, with RW permissions, at the fixed scratch address
// reserved for one-off kernel-side access to a physical frame (e.g. to zero
// a freshly allocated, not-yet-linked page table). Overwrites whatever was
// previously mapped there.
func MapTemporary(frame mem.Frame) (mem.Page, *kernel.Error) {
	if protectReservedZeroedPage && frame == ReservedZeroedFrame {
		return 0, errAttemptToRWMapReservedFrame
	}

	if err := Map(mem.PageFromAddress(tempMappingAddr), frame, FlagPresent|FlagRW); err != nil {
		return 0, err
	}

	return mem.PageFromAddress(tempMappingAddr), nil
}

// Unmap clears the leaf mapping for page, flushing its TLB entry. Interior
// tables that become empty as a result are not reclaimed (§4.3: "not
// reclaimed eagerly — simplicity over memory reclaim").
func Unmap(page mem.Page) *kernel.Error {
	var err *kernel.Error

	walk(page.Address(), func(pteLevel uint8, pte *pageTableEntry) bool {
		if pteLevel == pageLevels-1 {
			pte.ClearFlags(FlagPresent | leafFlags)
			flushTLBEntryFn(page.Address())
			return true
		}

		if !pte.HasFlags(FlagPresent) {
			err = ErrInvalidMapping
			return false
		}

		return true
	})

	return err
}

// noEscape hides a pointer from escape analysis so calls made before the
// frame allocator/heap exist don't trigger a heap-escaping allocation.
//go:nosplit
func noEscape(p unsafe.Pointer) unsafe.Pointer {
	x := uintptr(p)
	return unsafe.Pointer(x ^ 0)
}
