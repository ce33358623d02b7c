// Package slab implements the kernel's general-purpose heap (§4.2): a set
// of fixed-size object caches, each backed by whole physical frames mapped
// into a dedicated kernel virtual region, generalizing the same
// frame-to-bookkeeping-structure pattern kernel/mem/pmm's buddy allocator
// uses for physical memory into a Go-heap-shaped allocator for arbitrary
// small objects.
package slab

import (
	"rvkernel/kernel"
	"rvkernel/kernel/errors"
	"rvkernel/kernel/mem"
	"rvkernel/kernel/mem/vmm"
	"rvkernel/kernel/sync"
	"unsafe"
)

// sizeClasses lists the object sizes each cache serves. Allocate rounds a
// request up to the smallest class that fits it.
var sizeClasses = [...]uintptr{16, 32, 64, 128, 256, 512, 1024, 2048, 4096}

// freeObj is overlaid on top of a free object's storage to link it into its
// cache's free list. Objects must be at least pointer-sized, which the
// smallest size class (16) guarantees.
type freeObj struct {
	next *freeObj
}

// cache serves fixed-size allocations out of whole frames carved into
// objSize-sized slots.
type cache struct {
	lock     sync.Spinlock
	objSize  uintptr
	freeList *freeObj

	objsPerSlab uintptr
}

var caches [len(sizeClasses)]cache

var (
	// mapRegionFn maps a freshly allocated single frame into kernel virtual
	// space for a cache's grow step. Indirection exists so tests can
	// substitute a fake mapping without touching the real page tables.
	mapRegionFn = vmm.MapRegion

	earlyReserveRegionFn = vmm.EarlyReserveRegion
	mapFn                = vmm.Map
)

func init() {
	for i, size := range sizeClasses {
		caches[i].objSize = size
		caches[i].objsPerSlab = uintptr(mem.PageSize) / size
	}
}

// classFor returns the cache that should serve an allocation of the given
// size, or nil if no class is large enough (the caller must fall back to a
// direct multi-page mapping for outsized allocations).
func classFor(size uintptr) *cache {
	for i := range caches {
		if caches[i].objSize >= size {
			return &caches[i]
		}
	}
	return nil
}

// Allocate reserves size bytes of zeroed kernel heap memory, aligned to at
// least align bytes (align must be a power of two no larger than the
// smallest size class that fits size; §4.2 callers only ever request
// pointer or cache-line alignment, both of which every size class already
// satisfies by construction).
func Allocate(size, align uintptr) (uintptr, *kernel.Error) {
	if size == 0 {
		return 0, errors.InvalidArgument
	}

	c := classFor(size)
	if c == nil {
		return allocateLarge(size)
	}

	c.lock.Acquire()
	defer c.lock.Release()

	if c.freeList == nil {
		if err := c.grow(); err != nil {
			return 0, err
		}
	}

	obj := c.freeList
	c.freeList = obj.next
	kernel.Memset(uintptr(unsafe.Pointer(obj)), 0, c.objSize)
	return uintptr(unsafe.Pointer(obj)), nil
}

// Free releases an allocation previously returned by Allocate. size must
// match the size originally requested.
func Free(ptr, size uintptr) {
	if ptr == 0 || size == 0 {
		return
	}

	c := classFor(size)
	if c == nil {
		freeLarge(ptr, size)
		return
	}

	c.lock.Acquire()
	defer c.lock.Release()

	obj := (*freeObj)(unsafe.Pointer(ptr))
	obj.next = c.freeList
	c.freeList = obj
}

// grow allocates a fresh frame, maps it into kernel virtual space and carves
// it into objsPerSlab free objects. Must be called with c.lock held.
func (c *cache) grow() *kernel.Error {
	frame, err := mem.AllocFrame()
	if err != nil {
		return err
	}

	page, err := mapRegionFn(frame, mem.PageSize, vmm.FlagPresent|vmm.FlagRW)
	if err != nil {
		return err
	}

	regionStart := page.Address()
	for i := uintptr(0); i < c.objsPerSlab; i++ {
		obj := (*freeObj)(unsafe.Pointer(regionStart + i*c.objSize))
		obj.next = c.freeList
		c.freeList = obj
	}

	return nil
}

// allocateLarge serves allocations that don't fit any size class by
// reserving a multi-page virtual range and mapping it one physical frame at
// a time, since the registered frame allocator only hands out single,
// independently-placed frames (the buddy allocator's higher orders are not
// exposed through mem.AllocFrame).
func allocateLarge(size uintptr) (uintptr, *kernel.Error) {
	regionSize := (mem.Size(size) + mem.PageSize - 1) &^ (mem.PageSize - 1)

	startAddr, err := earlyReserveRegionFn(regionSize)
	if err != nil {
		return 0, err
	}

	pageCount := regionSize >> mem.PageShift
	for page := mem.PageFromAddress(startAddr); pageCount > 0; pageCount, page = pageCount-1, page+1 {
		frame, err := mem.AllocFrame()
		if err != nil {
			return 0, err
		}
		if err := mapFn(page, frame, vmm.FlagPresent|vmm.FlagRW); err != nil {
			return 0, err
		}
	}

	kernel.Memset(startAddr, 0, uintptr(regionSize))
	return startAddr, nil
}

// freeLarge is a no-op placeholder: the allocator never unmaps kernel
// virtual space reserved by allocateLarge, matching the teacher's own
// EarlyReserveRegion allocator which likewise never releases reservations.
// Neither the virtual range nor the frames backing it are returned; freed
// slab objects are likewise only recycled within their own cache, and no
// slab frame is ever given back to the frame allocator.
func freeLarge(_, _ uintptr) {}
