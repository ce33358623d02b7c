package vmm

import (
	"rvkernel/kernel/mem"
	"unsafe"
)

var (
	// ptePtrFn returns a pointer to the page table entry at entryAddr. It
	// is overridden by tests so walk() can run against a plain byte slice
	// instead of real SV39 hardware tables.
	ptePtrFn = func(entryAddr uintptr) unsafe.Pointer {
		return unsafe.Pointer(entryAddr)
	}
)

// pageTableWalker is invoked by walk once per page-table level with the
// entry that corresponds to virtAddr at that level. Returning false aborts
// the walk.
type pageTableWalker func(pteLevel uint8, pte *pageTableEntry) bool

// walk performs a SV39 page table walk for virtAddr, invoking walkFn once
// per level (root, then each interior table) using the recursive
// self-mapping installed at root[recursiveIndex]. It never dereferences a
// physical address directly: every table, including the root, is accessed
// through its recursively-mapped virtual alias.
func walk(virtAddr uintptr, walkFn pageTableWalker) {
	var (
		level                            uint8
		tableAddr, entryAddr, entryIndex uintptr
		ok                               bool
	)

	for level, tableAddr = uint8(0), pdtVirtualAddr; level < pageLevels; level, tableAddr = level+1, entryAddr {
		entryIndex = (virtAddr >> pageLevelShifts[level]) & ((1 << pageLevelBits[level]) - 1)
		entryAddr = tableAddr + (entryIndex << mem.PointerShift)

		if ok = walkFn(level, (*pageTableEntry)(ptePtrFn(entryAddr))); !ok {
			return
		}

		entryAddr <<= pageLevelBits[level]
	}
}
