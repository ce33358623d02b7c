// Package sched implements the kernel's per-CPU scheduler (§4.7): three
// coexisting policies behind one SchedClass interface, real-time classes
// always beating CFS, and a bounded cross-CPU load balancer. There is no
// teacher precedent (gopher-os never grew a scheduler past a single
// "for {}" idle loop in Kmain), so the runqueue/class shape is grounded on
// spec.md §4.7 directly, wired into the rest of the tree via the same
// function-variable hook pattern kernel/sync and kernel/trap already use
// to avoid import cycles (kernel/sync.SetSchedulerHooks, kernel/trap's
// three handler setters).
package sched

import (
	"rvkernel/kernel/cpu"
	"rvkernel/kernel/sync"
	"rvkernel/kernel/task"
	"rvkernel/kernel/trap"
)

// Policy selects one of the three coexisting scheduling classes (§4.7).
// Real-time policies (FIFO, Priority) always strictly beat CFS; within
// real-time, FIFO and Priority compete by numeric priority.
type Policy uint8

const (
	PolicyCFS Policy = iota
	PolicyFIFO
	PolicyRoundRobin
)

// Entity is the policy-specific bookkeeping a thread carries while it is
// known to the scheduler, stored opaquely in task.Thread.SchedEntity (the
// same opacity kernel/sync.Waiter already uses to avoid a dependency from
// task back onto sched).
type Entity struct {
	Thread    *task.Thread
	Policy    Policy
	Priority  int // real-time priority; lower runs first among RT peers
	VRuntime  uint64
	ticksLeft int    // Round-Robin time-slice counter; unused by FIFO/CFS
	home      uint64 // hart this entity is currently queued/running on
	heapIdx   int    // CFS heap housekeeping; see cfs.go
}

// DefaultTimeSlice bounds how long a Priority/Round-Robin thread runs
// before being preempted by a peer of equal priority (§4.7).
const DefaultTimeSlice = 10 // timer ticks

// MinGranularity is the smallest vruntime delta the CFS class will grant a
// thread before considering a reschedule, preventing thrashing between two
// threads with near-identical vruntime (§4.7).
const MinGranularity = 1

var runqueues [cpu.MaxHarts]*RunQueue

// Init installs an empty runqueue for every HART up to cpu.MaxHarts, wires
// kernel/sync's block/wake hooks and kernel/trap's timer/software-interrupt
// handlers to this package, and creates one idle thread per HART (§4.7:
// "per-CPU current thread, per-CPU idle thread").
func Init() {
	for i := range runqueues {
		runqueues[i] = newRunQueue(uint64(i))
	}
	sync.SetSchedulerHooks(Block, Wake)
	trap.SetTimerHandler(onTimerTick)
	trap.SetSoftwareInterruptHandler(onSoftwareInterrupt)
}

// RunQueue is a single CPU's view of the runnable world: one real-time
// list (FIFO and Priority/Round-Robin threads, ordered by priority) and one
// CFS heap, plus the thread currently running and that CPU's idle thread.
type RunQueue struct {
	hartID uint64
	lock   sync.Spinlock

	rt  rtQueue
	cfs cfsQueue

	current *task.Thread
	idle    *task.Thread
}

func newRunQueue(hartID uint64) *RunQueue {
	rq := &RunQueue{hartID: hartID}
	rq.idle = newIdleThread(hartID)
	rq.current = rq.idle
	return rq
}

// runQueueFor returns the runqueue for the calling HART.
func runQueueFor(hartID uint64) *RunQueue {
	return runqueues[hartID]
}

// Enqueue admits th to the scheduler under the given policy. A thread whose
// Affinity is already pinned to a specific HART (§4.7/§5: "a task marked
// pinned is never migrated") is placed on that HART's runqueue; an
// unpinned thread (Affinity == -1) goes to whichever runqueue is currently
// least loaded.
func Enqueue(th *task.Thread, policy Policy, priority int) {
	var rq *RunQueue
	if th.Affinity >= 0 {
		rq = runQueueFor(uint64(th.Affinity))
	} else {
		rq = leastLoaded()
	}

	ent := &Entity{Thread: th, Policy: policy, Priority: priority, home: rq.hartID}
	th.SchedEntity = ent

	rq.lock.Acquire()
	admit(rq, ent)
	rq.lock.Release()
}

func admit(rq *RunQueue, ent *Entity) {
	switch ent.Policy {
	case PolicyFIFO, PolicyRoundRobin:
		rq.rt.push(ent)
	default:
		ent.VRuntime = rq.cfs.minVRuntime()
		rq.cfs.push(ent)
	}
	ent.Thread.State = task.Ready
}

func leastLoaded() *RunQueue {
	best := runqueues[0]
	bestLoad := best.load()
	for _, rq := range runqueues[1:] {
		if rq == nil {
			continue
		}
		if l := rq.load(); l < bestLoad {
			best, bestLoad = rq, l
		}
	}
	return best
}

// load is the runqueue's runnable count, used both for initial placement
// and by the load balancer (§4.7).
func (rq *RunQueue) load() int {
	rq.lock.Acquire()
	defer rq.lock.Release()
	return rq.rt.len() + rq.cfs.len()
}

// Current returns the thread presently running on hartID.
func Current(hartID uint64) *task.Thread {
	return runQueueFor(hartID).current
}

// SetPriority updates th's real-time priority in place (§4.7/§6:
// setpriority). Has no effect on a CFS thread's scheduling order -- CFS
// threads are ordered by vruntime, not priority -- but the value is still
// recorded so a later sched_setscheduler call that moves the thread into a
// real-time class has a priority ready to use.
func SetPriority(th *task.Thread, priority int) {
	if ent, ok := th.SchedEntity.(*Entity); ok {
		ent.Priority = priority
	}
}

// GetPriority returns th's currently recorded priority, or 0 if th is not
// yet known to the scheduler.
func GetPriority(th *task.Thread) int {
	if ent, ok := th.SchedEntity.(*Entity); ok {
		return ent.Priority
	}
	return 0
}

// GetPolicy returns th's currently assigned scheduling policy.
func GetPolicy(th *task.Thread) Policy {
	if ent, ok := th.SchedEntity.(*Entity); ok {
		return ent.Policy
	}
	return PolicyCFS
}

// SetPolicy moves th from whichever class it is currently queued under to
// the given policy (§6: sched_setscheduler). If th is currently runnable,
// it is re-admitted under the new policy on its next scheduling point
// rather than migrated mid-queue, keeping this O(1) instead of requiring a
// queue search.
func SetPolicy(th *task.Thread, policy Policy) {
	ent, ok := th.SchedEntity.(*Entity)
	if !ok {
		return
	}
	ent.Policy = policy
}

// Yield voluntarily gives up the remainder of the calling thread's slice
// (§4.7: explicit yield is a scheduling point). The caller must currently
// be the running thread on its own HART.
func Yield(hartID uint64) {
	Schedule(hartID)
}

// Block removes w (a *task.Task, per kernel/sync.Waiter's contract) from
// its current thread's running state and reschedules the calling HART
// (§5: "a thread may block only at explicit wait-queue sleep calls").
func Block(w sync.Waiter) {
	t, ok := w.(*task.Task)
	if !ok || len(t.Threads) == 0 {
		return
	}
	th := t.Threads[0]
	th.State = task.Blocked
	home := cpu.HartID()
	if ent, ok := th.SchedEntity.(*Entity); ok {
		home = ent.home
	}
	Schedule(home)
}

// Wake makes w's thread runnable again and re-admits it to its home
// runqueue's class (§4.7 wake of a higher-priority thread is itself a
// scheduling point, handled by the next Schedule call on that HART).
func Wake(w sync.Waiter) {
	t, ok := w.(*task.Task)
	if !ok || len(t.Threads) == 0 {
		return
	}
	th := t.Threads[0]
	if th.State != task.Blocked {
		return
	}

	ent, _ := th.SchedEntity.(*Entity)
	if ent == nil {
		ent = &Entity{Thread: th, Policy: PolicyCFS, home: cpu.HartID()}
		th.SchedEntity = ent
	}
	rq := runQueueFor(ent.home)

	rq.lock.Acquire()
	admit(rq, ent)
	rq.lock.Release()

	if ent.home != cpu.HartID() {
		cpu.SendIPI(cpu.HartMask(ent.home))
	}
}

func onTimerTick() {
	hartID := cpu.HartID()
	rq := runQueueFor(hartID)

	rq.lock.Acquire()
	expired := rq.tickCurrent()
	rq.lock.Release()

	serviceTimers()
	maybeBalance()

	if expired {
		Schedule(hartID)
	}
}

func onSoftwareInterrupt() {
	// A peer HART asked us to reschedule (Wake's cross-CPU IPI, or a
	// pending load-balancer migration); nothing else to do here since
	// Schedule already re-reads the runqueue under its own lock.
	Schedule(cpu.HartID())
}

// tickCurrent charges the running thread for one tick against whichever
// class it belongs to and reports whether it should now be preempted.
func (rq *RunQueue) tickCurrent() bool {
	ent, ok := rq.current.SchedEntity.(*Entity)
	if !ok {
		return false
	}
	switch ent.Policy {
	case PolicyFIFO:
		return false // no time-slice preemption among FIFO peers (§4.7)
	case PolicyRoundRobin:
		return rq.rt.tick(ent)
	default:
		return rq.cfs.tick(ent)
	}
}

// Schedule picks the next thread to run on hartID and context-switches
// into it (§4.7: timer expiry, yield, block and wake are all scheduling
// points that funnel through here). Real-time threads always win over CFS
// ones, per policy ordering.
func Schedule(hartID uint64) {
	rq := runQueueFor(hartID)

	rq.lock.Acquire()
	prev := rq.current
	next := rq.pickNext()
	if next == prev {
		rq.lock.Release()
		return
	}
	rq.current = next
	next.State = task.Running
	rq.lock.Release()

	if prev.State == task.Running {
		prev.State = task.Ready
	}

	if next.Process != nil && prev.Process != next.Process {
		next.Process.AddressSpace.Activate()
	}
	task.SwitchContext(&prev.Context, &next.Context)
}

// pickNext returns the highest-priority runnable thread, or the HART's
// idle thread if nothing else is runnable. Caller must hold rq.lock.
func (rq *RunQueue) pickNext() *task.Thread {
	if ent := rq.rt.peek(); ent != nil {
		rq.rt.pop()
		return ent.Thread
	}
	if ent := rq.cfs.peek(); ent != nil {
		rq.cfs.pop()
		return ent.Thread
	}
	return rq.idle
}
