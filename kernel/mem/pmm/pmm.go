// Package pmm implements the kernel's physical frame allocator: a boot-time
// linear allocator that bootstraps a buddy allocator, which then serves every
// subsequent frame request for the lifetime of the kernel (§4.1).
package pmm

import (
	"rvkernel/kernel"
	"rvkernel/kernel/mem"
	"rvkernel/kernel/mem/vmm"
)

// reserveRegionFn reserves size bytes of unmapped kernel virtual address
// space and returns its start address.
type reserveRegionFn func(size mem.Size) (uintptr, *kernel.Error)

// mapPageFn maps a single physical frame at the given virtual page, RW,
// kernel-only.
type mapPageFn func(page mem.Page, frame mem.Frame) *kernel.Error

// earlyAllocFrameFn allocates a single frame from the boot-time allocator.
type earlyAllocFrameFn func() (mem.Frame, *kernel.Error)

var (
	// FrameAllocator is the buddy allocator that serves every frame
	// request once Init has bootstrapped it from the boot-time allocator.
	FrameAllocator BuddyAllocator

	earlyAllocator bootAllocator

	reserveRegionFnVar  reserveRegionFn  = vmm.EarlyReserveRegion
	earlyAllocFrameFnVar earlyAllocFrameFn = earlyAllocFrameFromBootAllocator
)

func mapPageFnVar(page mem.Page, frame mem.Frame) *kernel.Error {
	return vmm.Map(page, frame, vmm.FlagPresent|vmm.FlagRW)
}

func earlyAllocFrameFromBootAllocator() (mem.Frame, *kernel.Error) {
	return earlyAllocator.AllocFrame()
}

// Init bootstraps the physical frame allocator: regions lists the usable RAM
// ranges reported at boot (by the board/device-tree collaborator, §6) and
// kernelStartFrame/kernelEndFrame bound the frames occupied by the kernel's
// own image, which must never be handed out.
//
// Init first serves every frame request through the boot-time linear
// allocator (bootalloc.go) so the buddy allocator's own bookkeeping storage
// can be reserved and mapped, then replays every frame the boot allocator
// handed out — plus the kernel image itself — as reservations in the buddy
// allocator before registering it as the system's sole frame source.
func Init(regions []Region, kernelStartFrame, kernelEndFrame mem.Frame) *kernel.Error {
	earlyAllocator.init(regions, kernelStartFrame, kernelEndFrame)
	mem.SetFrameAllocator(earlyAllocFrameFnVar)

	var (
		overallStart = regions[0].StartFrame
		overallEnd   = regions[0].EndFrame
	)
	for _, r := range regions[1:] {
		if r.StartFrame < overallStart {
			overallStart = r.StartFrame
		}
		if r.EndFrame > overallEnd {
			overallEnd = r.EndFrame
		}
	}

	reservedRuns := []Region{
		{StartFrame: kernelStartFrame, EndFrame: kernelEndFrame},
	}

	// Frames the boot allocator already issued (for the buddy allocator's
	// own bookkeeping storage, mapped by init below) must also be
	// excluded; once init returns, the loop after it reserves them by
	// replaying the boot allocator's allocation count the same way
	// gopher-os's BitmapAllocator replays earlyAllocator in
	// reserveEarlyAllocatorFrames.
	if err := FrameAllocator.init(overallStart, overallEnd, reservedRuns, reserveRegionFnVar, mapPageFnVar, earlyAllocFrameFnVar); err != nil {
		return err
	}

	replayedCount := earlyAllocator.allocatedCount
	earlyAllocator.regionIndex, earlyAllocator.nextFrame, earlyAllocator.allocatedCount = -1, 0, 0
	for i := uint64(0); i < replayedCount; i++ {
		frame, err := earlyAllocator.AllocFrame()
		if err != nil {
			return err
		}
		FrameAllocator.reserveFrame(frame)
	}

	mem.SetFrameAllocator(allocFrameFromBuddy)
	mem.SetFreeFrameAllocator(freeFrameToBuddy)
	return nil
}

func allocFrameFromBuddy() (mem.Frame, *kernel.Error) {
	return FrameAllocator.Alloc(0)
}

func freeFrameToBuddy(f mem.Frame) {
	FrameAllocator.Free(f, 0)
}
