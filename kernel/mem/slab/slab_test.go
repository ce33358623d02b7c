package slab

import (
	"reflect"
	"rvkernel/kernel"
	"rvkernel/kernel/mem"
	"rvkernel/kernel/mem/vmm"
	"testing"
)

// withFakeFrames registers a frame allocator that always succeeds and
// returns monotonically increasing frame numbers. The registration stays in
// place after the test finishes.
func withFakeFrames(t *testing.T) {
	t.Helper()
	var next mem.Frame
	mem.SetFrameAllocator(func() (mem.Frame, *kernel.Error) {
		next++
		return next, nil
	})
}

// withBackingMemory points mapRegionFn at a fresh, real Go-allocated byte
// slice on every call, so object writes during the test land in addressable
// memory instead of an unmapped page table and successive slabs (grow calls)
// never alias the same backing storage.
func withBackingMemory(t *testing.T, size int) {
	t.Helper()
	orig := mapRegionFn
	mapRegionFn = func(_ mem.Frame, _ mem.Size, _ vmm.PageTableEntryFlag) (mem.Page, *kernel.Error) {
		backing := make([]byte, size)
		return mem.PageFromAddress(reflect.ValueOf(backing).Pointer()), nil
	}
	t.Cleanup(func() { mapRegionFn = orig })
}

func resetCaches(t *testing.T) {
	t.Helper()
	orig := caches
	t.Cleanup(func() { caches = orig })
	for i := range caches {
		caches[i].freeList = nil
	}
}

func TestClassFor(t *testing.T) {
	cases := []struct {
		size     uintptr
		wantSize uintptr
	}{
		{1, 16},
		{16, 16},
		{17, 32},
		{4096, 4096},
	}

	for _, c := range cases {
		got := classFor(c.size)
		if got == nil {
			t.Fatalf("classFor(%d) returned nil", c.size)
		}
		if got.objSize != c.wantSize {
			t.Fatalf("classFor(%d): expected class %d; got %d", c.size, c.wantSize, got.objSize)
		}
	}

	if got := classFor(4097); got != nil {
		t.Fatalf("expected classFor(4097) to report no matching class; got size %d", got.objSize)
	}
}

func TestAllocateReturnsZeroedDistinctObjects(t *testing.T) {
	resetCaches(t)
	withFakeFrames(t)
	withBackingMemory(t, int(mem.PageSize))

	a, err := Allocate(32, 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err.Message)
	}

	b, err := Allocate(32, 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err.Message)
	}

	if a == b {
		t.Fatal("expected two live allocations from the same class to be distinct")
	}
}

func TestFreeRecyclesObject(t *testing.T) {
	resetCaches(t)
	withFakeFrames(t)
	withBackingMemory(t, int(mem.PageSize))

	a, err := Allocate(64, 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err.Message)
	}
	Free(a, 64)

	b, err := Allocate(64, 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err.Message)
	}
	if a != b {
		t.Fatalf("expected Free'd object to be recycled by the next Allocate of the same size; got %#x want %#x", b, a)
	}
}

func TestAllocateZeroSizeFails(t *testing.T) {
	if _, err := Allocate(0, 1); err == nil {
		t.Fatal("expected Allocate(0, _) to fail")
	}
}

func TestAllocateGrowsWhenFreeListExhausted(t *testing.T) {
	resetCaches(t)
	withFakeFrames(t)
	withBackingMemory(t, int(mem.PageSize))

	c := classFor(16)
	seen := make(map[uintptr]bool)
	for i := uintptr(0); i < c.objsPerSlab+1; i++ {
		ptr, err := Allocate(16, 8)
		if err != nil {
			t.Fatalf("unexpected error on allocation %d: %v", i, err.Message)
		}
		if seen[ptr] {
			t.Fatalf("allocation %d returned an address already handed out: %#x", i, ptr)
		}
		seen[ptr] = true
	}
}

func TestAllocateLargeFallsBackToMultiPageMapping(t *testing.T) {
	orig := earlyReserveRegionFn
	origMap := mapFn
	defer func() {
		earlyReserveRegionFn = orig
		mapFn = origMap
	}()

	backing := make([]byte, 3*int(mem.PageSize))
	base := mem.PageFromAddress(reflect.ValueOf(backing).Pointer()).Address()

	earlyReserveRegionFn = func(size mem.Size) (uintptr, *kernel.Error) {
		return base, nil
	}
	mapFn = func(page mem.Page, frame mem.Frame, flags vmm.PageTableEntryFlag) *kernel.Error {
		return nil
	}
	mem.SetFrameAllocator(func() (mem.Frame, *kernel.Error) { return 1, nil })

	addr, err := Allocate(uintptr(mem.PageSize)*2+1, 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err.Message)
	}
	if addr != base {
		t.Fatalf("expected large allocation to start at the reserved region; got %#x want %#x", addr, base)
	}
}
