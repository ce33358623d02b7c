package vmm

import (
	"rvkernel/kernel"
	"rvkernel/kernel/mem"
)

var (
	// earlyReserveLastUsed tracks the last reserved virtual address; it
	// is decremented after each reservation. It starts just below
	// tempMappingAddr and grows downward through the tempSlotIndex
	// region, relying on Map's on-demand table allocation to backfill
	// whatever interior page tables that region needs.
	earlyReserveLastUsed = tempMappingAddr

	errEarlyReserveNoSpace = &kernel.Error{Module: "vmm", Message: "remaining virtual address space not large enough to satisfy reservation request"}
)

// EarlyReserveRegion reserves a page-aligned virtual memory region of size
// bytes (rounded up) in the kernel address space and returns its starting
// virtual address, without mapping any physical memory to it. Intended for
// the boot-time bookkeeping allocations (buddy allocator descriptors, SLAB
// cache metadata) that need a stable virtual home before a general-purpose
// kernel heap exists.
func EarlyReserveRegion(size mem.Size) (uintptr, *kernel.Error) {
	size = (size + (mem.PageSize - 1)) &^ (mem.PageSize - 1)

	if uintptr(size) > earlyReserveLastUsed {
		return 0, errEarlyReserveNoSpace
	}

	earlyReserveLastUsed -= uintptr(size)
	return earlyReserveLastUsed, nil
}
