// Package kalloc is a thin, type-safe facade over kernel/mem/slab. Every
// allocation site outside the memory subsystem goes through New or Make
// instead of hand-rolling unsafe.Pointer arithmetic, keeping raw pointer
// math confined to kernel/mem_util.go and the mem/vmm/slab packages the way
// the teacher keeps all of its own unsafe usage inside a handful of files.
package kalloc

import (
	"rvkernel/kernel/mem/slab"
	"unsafe"
)

// allocateFn/freeFn indirect to the kernel heap so tests can substitute a
// fake backing store without exercising the real page-table code.
var (
	allocateFn = slab.Allocate
	freeFn     = slab.Free
)

// New allocates a single zeroed T from the kernel heap and returns a pointer
// to it. The caller must pass the returned pointer to Free (with the same T)
// once it is done with it; the kernel heap has no garbage collector.
func New[T any]() *T {
	var zero T
	size, align := unsafe.Sizeof(zero), unsafe.Alignof(zero)

	addr, err := allocateFn(size, align)
	if err != nil {
		return nil
	}

	return (*T)(unsafe.Pointer(addr))
}

// Make allocates a contiguous, zeroed array of n T values and returns it as
// a slice of length and capacity n.
func Make[T any](n int) []T {
	if n <= 0 {
		return nil
	}

	var zero T
	elemSize := unsafe.Sizeof(zero)
	align := unsafe.Alignof(zero)

	addr, err := allocateFn(elemSize*uintptr(n), align)
	if err != nil {
		return nil
	}

	return unsafe.Slice((*T)(unsafe.Pointer(addr)), n)
}

// Free releases a single T previously returned by New.
func Free[T any](p *T) {
	if p == nil {
		return
	}
	var zero T
	freeFn(uintptr(unsafe.Pointer(p)), unsafe.Sizeof(zero))
}

// FreeSlice releases a slice previously returned by Make. The slice must
// still have its original length; re-slicing before freeing corrupts the
// size passed back to the allocator.
func FreeSlice[T any](s []T) {
	if len(s) == 0 {
		return
	}
	var zero T
	elemSize := unsafe.Sizeof(zero)
	freeFn(uintptr(unsafe.Pointer(&s[0])), elemSize*uintptr(len(s)))
}
