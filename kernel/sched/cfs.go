package sched

import "container/heap"

// cfsQueue is a min-heap of Entity keyed by VRuntime, picking the leftmost
// (smallest vruntime) entity first (§4.7: "red-black tree keyed by
// vruntime; pick leftmost"). No pack repo ships a red-black tree or
// priority-queue library, so this uses the standard library's
// container/heap over a slice -- the same asymptotic behavior a
// rb-tree-by-key gives for find-min/insert/delete, which is all a CFS
// runqueue needs.
type cfsQueue struct {
	heap entityHeap
}

// weight0 is the nice-0 weight CFS measures every other priority's vruntime
// accrual against (§4.7: "vruntime += delta_exec * weight_nice_0 / weight").
// This kernel does not yet expose per-thread nice values, so every CFS
// thread currently runs at weight0 and accrues vruntime 1:1 with ticks; the
// division is kept explicit so a future nice-value weight table only has to
// change the divisor.
const weight0 = 1024

func (q *cfsQueue) len() int {
	return len(q.heap)
}

func (q *cfsQueue) push(ent *Entity) {
	heap.Push(&q.heap, ent)
}

func (q *cfsQueue) peek() *Entity {
	if len(q.heap) == 0 {
		return nil
	}
	return q.heap[0]
}

func (q *cfsQueue) pop() {
	heap.Pop(&q.heap)
}

// removeAt removes the entity at heap index i, used by the load balancer
// to pull a specific migratable entity out of a busy runqueue.
func (q *cfsQueue) removeAt(i int) {
	heap.Remove(&q.heap, i)
}

// minVRuntime returns the smallest vruntime currently queued, or 0 if the
// queue is empty -- a freshly admitted thread starts no further behind than
// the current leftmost entry, so it isn't starved by having accrued no
// vruntime at all against long-running peers.
func (q *cfsQueue) minVRuntime() uint64 {
	if len(q.heap) == 0 {
		return 0
	}
	return q.heap[0].VRuntime
}

// tick charges the running CFS entity one tick's worth of vruntime at
// weight0 and reports whether MinGranularity has been exceeded relative to
// the next-leftmost entity, in which case it is reinserted and should yield
// to whichever entity is now leftmost (§4.7: "minimum granularity prevents
// thrashing").
func (q *cfsQueue) tick(ent *Entity) bool {
	// delta_exec * weight_nice_0 / weight, with delta_exec == 1 tick and
	// every thread currently at weight0 (see weight0's doc comment) --
	// this collapses to a flat +1 until per-thread nice values exist.
	ent.VRuntime += weight0 / weight0

	if len(q.heap) == 0 {
		return false
	}
	if ent.VRuntime < q.heap[0].VRuntime+MinGranularity {
		return false
	}

	heap.Push(&q.heap, ent)
	return true
}

// entityHeap implements container/heap.Interface over *Entity, ordered by
// ascending VRuntime.
type entityHeap []*Entity

func (h entityHeap) Len() int            { return len(h) }
func (h entityHeap) Less(i, j int) bool  { return h[i].VRuntime < h[j].VRuntime }
func (h entityHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIdx = i
	h[j].heapIdx = j
}

func (h *entityHeap) Push(x interface{}) {
	ent := x.(*Entity)
	ent.heapIdx = len(*h)
	*h = append(*h, ent)
}

func (h *entityHeap) Pop() interface{} {
	old := *h
	n := len(old)
	ent := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return ent
}
