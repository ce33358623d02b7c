package mem

import (
	"math"
	"rvkernel/kernel"
)

// Frame describes a physical memory page index (SV39 PPN, 44 bits).
type Frame uintptr

// InvalidFrame is returned by allocators that fail to reserve a frame.
const InvalidFrame = Frame(math.MaxUint64)

// Valid returns true if this is not the sentinel InvalidFrame value.
func (f Frame) Valid() bool {
	return f != InvalidFrame
}

// Address returns the physical address of the first byte of this frame.
func (f Frame) Address() uintptr {
	return uintptr(f) << PageShift
}

// FrameFromAddress returns the Frame containing the given physical address,
// rounding down if the address is not page-aligned.
func FrameFromAddress(physAddr uintptr) Frame {
	return Frame(physAddr >> PageShift)
}

// Page describes a virtual memory page index (SV39 VPN, 27 bits).
type Page uintptr

// Address returns the virtual address of the first byte of this page.
func (p Page) Address() uintptr {
	return uintptr(p) << PageShift
}

// PageFromAddress returns the Page containing the given virtual address,
// rounding down if the address is not page-aligned.
func PageFromAddress(virtAddr uintptr) Page {
	return Page(virtAddr >> PageShift)
}

// FrameAllocatorFn allocates a single physical frame.
type FrameAllocatorFn func() (Frame, *kernel.Error)

var frameAllocator FrameAllocatorFn

// SetFrameAllocator registers the function the vmm/slab packages use
// whenever they need a new physical frame. Called by kernel/mem/pmm during
// boot, first with the boot-time linear allocator and again once the
// buddy allocator has been bootstrapped from it (mirrors gopher-os's
// two-stage pmm.Init handoff).
func SetFrameAllocator(fn FrameAllocatorFn) {
	frameAllocator = fn
}

// AllocFrame allocates a new physical frame using the currently registered
// allocator.
func AllocFrame() (Frame, *kernel.Error) {
	return frameAllocator()
}

// FreeFrameFn releases a single physical frame previously returned by a
// FrameAllocatorFn.
type FreeFrameFn func(Frame)

var freeFrameAllocator FreeFrameFn

// SetFreeFrameAllocator registers the function the vmm package uses to give
// a frame back once nothing maps it any more. Mirrors SetFrameAllocator:
// kernel/mem/pmm registers the buddy-backed implementation at the end of
// pmm.Init, once the buddy allocator itself is up. This package (not
// kernel/mem/pmm, which imports kernel/mem/vmm) holds the indirection so
// vmm can free frames without importing pmm.
func SetFreeFrameAllocator(fn FreeFrameFn) {
	freeFrameAllocator = fn
}

// FreeFrame releases f using the currently registered free-frame allocator.
func FreeFrame(f Frame) {
	freeFrameAllocator(f)
}
