package sync

// Waiter is the minimal view of a schedulable entity that WaitQueue needs:
// something it can park and later hand back to the scheduler to wake.
// kernel/task.Task implements this interface; tests use a bare struct.
type Waiter interface{}

// BlockFn parks the calling task until WakeFn is later invoked for it.
// WaitQueue.Wait calls the registered BlockFn and Wake/WakeAll call the
// registered WakeFn; while none is registered they only track which waiters
// are queued. The scheduler registers the real implementations via
// SetSchedulerHooks, mirroring the teacher's indirection pattern for
// avoiding an import cycle between kernel/sync and kernel/sched.
type (
	BlockFn func(w Waiter)
	WakeFn  func(w Waiter)
)

var (
	blockFn BlockFn
	wakeFn  WakeFn
)

// SetSchedulerHooks wires WaitQueue to the scheduler's block/wake primitives.
// Called once during boot by kernel/sched.
func SetSchedulerHooks(block BlockFn, wake WakeFn) {
	blockFn = block
	wakeFn = wake
}

// WaitQueue is a FIFO list of tasks parked on some condition (a mutex
// becoming free, a pipe gaining data, a child exiting). It holds no lock of
// its own beyond the Spinlock guarding its internal slice; callers are
// expected to hold whatever lock protects the condition being waited on and
// release it only via the Wait callback sequencing below.
type WaitQueue struct {
	lock    Spinlock
	waiters []Waiter
}

// Wait appends the calling waiter to the queue and parks it by invoking the
// scheduler's BlockFn. The caller must have already arranged for some other
// task to call Wake/WakeAll once the condition holds; Wait returns only after
// that happens.
func (q *WaitQueue) Wait(w Waiter) {
	q.lock.Acquire()
	q.waiters = append(q.waiters, w)
	q.lock.Release()

	if blockFn != nil {
		blockFn(w)
	}
}

// Wake removes and wakes a single waiter, if any are parked. Returns false if
// the queue was empty.
func (q *WaitQueue) Wake() bool {
	q.lock.Acquire()
	if len(q.waiters) == 0 {
		q.lock.Release()
		return false
	}
	w := q.waiters[0]
	q.waiters = q.waiters[1:]
	q.lock.Release()

	if wakeFn != nil {
		wakeFn(w)
	}
	return true
}

// WakeAll wakes every waiter currently parked on the queue.
func (q *WaitQueue) WakeAll() {
	q.lock.Acquire()
	woken := q.waiters
	q.waiters = nil
	q.lock.Release()

	if wakeFn == nil {
		return
	}
	for _, w := range woken {
		wakeFn(w)
	}
}

// Len returns the number of tasks currently parked. Intended for
// diagnostics; the result may be stale the instant it is returned.
func (q *WaitQueue) Len() int {
	q.lock.Acquire()
	n := len(q.waiters)
	q.lock.Release()
	return n
}
