package pmm

import (
	"rvkernel/kernel"
	"rvkernel/kernel/errors"
	"rvkernel/kernel/mem"
)

// Region describes a span of usable physical memory, as reported by
// whatever boot-time collaborator parsed the device tree or SBI memory
// reservation map (§6: board/device-tree parsing is an external
// collaborator; the core only consumes its already-resolved output).
type Region struct {
	StartFrame mem.Frame
	EndFrame   mem.Frame // inclusive
}

// bootAllocator hands out frames linearly from the usable regions reported
// at boot, skipping over the kernel's own image. It cannot free frames: once
// the buddy allocator (see buddy.go) is bootstrapped from it, all further
// allocation/free traffic goes through the buddy allocator instead.
//
// Grounded on gopher-os's bootMemAllocator (kernel/mem/pmm/allocator/bootmem.go):
// same two-phase boot/steady-state split, generalized to accept the region
// list as an explicit argument instead of scanning a multiboot memory map.
type bootAllocator struct {
	regions []Region

	kernelStartFrame, kernelEndFrame mem.Frame // inclusive

	regionIndex    int
	nextFrame      mem.Frame
	allocatedCount uint64
}

func (a *bootAllocator) init(regions []Region, kernelStartFrame, kernelEndFrame mem.Frame) {
	a.regions = regions
	a.kernelStartFrame = kernelStartFrame
	a.kernelEndFrame = kernelEndFrame
	a.regionIndex = -1
}

// AllocFrame reserves and returns the next available free frame.
func (a *bootAllocator) AllocFrame() (mem.Frame, *kernel.Error) {
	for {
		if a.regionIndex == -1 {
			a.regionIndex = 0
			if len(a.regions) == 0 {
				return mem.InvalidFrame, errors.OutOfMemory
			}
			a.nextFrame = a.regions[0].StartFrame
		}

		if a.regionIndex >= len(a.regions) {
			return mem.InvalidFrame, errors.OutOfMemory
		}

		region := a.regions[a.regionIndex]
		if a.nextFrame > region.EndFrame {
			a.regionIndex++
			if a.regionIndex < len(a.regions) {
				a.nextFrame = a.regions[a.regionIndex].StartFrame
			}
			continue
		}

		candidate := a.nextFrame
		a.nextFrame++

		if candidate >= a.kernelStartFrame && candidate <= a.kernelEndFrame {
			continue
		}

		a.allocatedCount++
		return candidate, nil
	}
}
