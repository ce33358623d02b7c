package kalloc

import (
	"rvkernel/kernel"
	"unsafe"

	"testing"
)

// fakeHeap backs allocateFn/freeFn with ordinary Go-allocated memory so
// kalloc's pointer arithmetic can be exercised without the real kernel heap
// or page tables.
type fakeHeap struct {
	live map[uintptr][]byte
}

func newFakeHeap(t *testing.T) *fakeHeap {
	t.Helper()
	h := &fakeHeap{live: make(map[uintptr][]byte)}

	origAlloc, origFree := allocateFn, freeFn
	allocateFn = func(size, align uintptr) (uintptr, *kernel.Error) {
		buf := make([]byte, size)
		addr := uintptr(unsafe.Pointer(&buf[0]))
		h.live[addr] = buf
		return addr, nil
	}
	freeFn = func(ptr, size uintptr) {
		delete(h.live, ptr)
	}
	t.Cleanup(func() { allocateFn, freeFn = origAlloc, origFree })

	return h
}

type point struct {
	x, y int64
}

func TestNewZeroesAndReturnsDistinctObjects(t *testing.T) {
	newFakeHeap(t)

	a := New[point]()
	if a == nil {
		t.Fatal("expected New[point]() to succeed")
	}
	if a.x != 0 || a.y != 0 {
		t.Fatal("expected New[point]() to be zeroed")
	}

	a.x = 42
	b := New[point]()
	if b == nil {
		t.Fatal("expected second New[point]() to succeed")
	}
	if b.x != 0 {
		t.Fatal("expected unrelated allocations to not alias")
	}
}

func TestMakeReturnsSliceOfRequestedLength(t *testing.T) {
	newFakeHeap(t)

	s := Make[point](8)
	if len(s) != 8 || cap(s) != 8 {
		t.Fatalf("expected a slice of length/cap 8; got len=%d cap=%d", len(s), cap(s))
	}

	s[3].x = 7
	if s[4].x != 0 {
		t.Fatal("expected adjacent elements to be independent")
	}
}

func TestMakeNonPositiveReturnsNil(t *testing.T) {
	if s := Make[point](0); s != nil {
		t.Fatal("expected Make[point](0) to return nil")
	}
	if s := Make[point](-1); s != nil {
		t.Fatal("expected Make[point](-1) to return nil")
	}
}

func TestFreeNilIsNoOp(t *testing.T) {
	Free[point](nil)
}

func TestFreeRemovesFromHeap(t *testing.T) {
	h := newFakeHeap(t)

	a := New[point]()
	if len(h.live) != 1 {
		t.Fatalf("expected 1 live allocation; got %d", len(h.live))
	}

	Free(a)
	if len(h.live) != 0 {
		t.Fatalf("expected Free to remove the allocation; got %d still live", len(h.live))
	}
}

func TestFreeSliceRemovesFromHeap(t *testing.T) {
	h := newFakeHeap(t)

	s := Make[point](4)
	if len(h.live) != 1 {
		t.Fatalf("expected 1 live allocation; got %d", len(h.live))
	}

	FreeSlice(s)
	if len(h.live) != 0 {
		t.Fatalf("expected FreeSlice to remove the allocation; got %d still live", len(h.live))
	}
}

func TestFreeSliceEmptyIsNoOp(t *testing.T) {
	FreeSlice[point](nil)
}
