package sched

import "testing"

func TestRtQueuePushOrdersByPriorityThenFIFO(t *testing.T) {
	var q rtQueue

	low := &Entity{Priority: 5}
	high := &Entity{Priority: 1}
	mid1 := &Entity{Priority: 3}
	mid2 := &Entity{Priority: 3}

	q.push(low)
	q.push(high)
	q.push(mid1)
	q.push(mid2)

	want := []*Entity{high, mid1, mid2, low}
	for i, w := range want {
		got := q.peek()
		if got != w {
			t.Fatalf("pop %d: got %p, want %p", i, got, w)
		}
		q.pop()
	}
	if q.len() != 0 {
		t.Errorf("len() after draining = %d, want 0", q.len())
	}
}

func TestRtQueueRoundRobinTickExpiresAndReinserts(t *testing.T) {
	var q rtQueue
	ent := &Entity{Policy: PolicyRoundRobin, Priority: 1}
	q.push(ent)
	q.pop() // simulate it being scheduled

	for i := 0; i < DefaultTimeSlice-1; i++ {
		if q.tick(ent) {
			t.Fatalf("tick %d: expired too early", i)
		}
	}
	if !q.tick(ent) {
		t.Fatal("tick: expected expiry at DefaultTimeSlice")
	}
	if q.len() != 1 {
		t.Errorf("len() after expiry = %d, want 1 (reinserted)", q.len())
	}
}

func TestRtQueueFIFONeverExpires(t *testing.T) {
	var q rtQueue
	ent := &Entity{Policy: PolicyFIFO, Priority: 1}
	q.push(ent)
	q.pop()

	for i := 0; i < DefaultTimeSlice*2; i++ {
		if q.tick(ent) {
			t.Fatalf("tick %d: FIFO entity should never expire", i)
		}
	}
}
