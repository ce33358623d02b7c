package task

import "rvkernel/kernel/sync"

// Pid uniquely identifies a process. Monotonically increasing; a value is
// only reused once it wraps the full uint32 range, matching the teacher's
// "arena-by-handle, cross-referenced by handle not pointer" note for
// long-lived global tables -- reassigning a pid as soon as it's freed would
// let a stale reference in a zombie's own exit-status report alias a brand
// new, unrelated process.
type Pid uint32

var (
	pidLock sync.Spinlock
	nextPid Pid = 1
	table       = map[Pid]*Task{}

	tidLock sync.Spinlock
	nextTid Tid = 1

	// initPid is the pid orphaned children are reparented to on their
	// original parent's exit (§4.6). Set by NewInit; each call overwrites
	// it, and boot calls NewInit once.
	initPid Pid
)

func allocPid() Pid {
	pidLock.Acquire()
	defer pidLock.Release()
	p := nextPid
	nextPid++
	return p
}

func allocTid() Tid {
	tidLock.Acquire()
	defer tidLock.Release()
	t := nextTid
	nextTid++
	return t
}

func register(t *Task) {
	pidLock.Acquire()
	table[t.Pid] = t
	pidLock.Release()
}

func unregister(pid Pid) {
	pidLock.Acquire()
	delete(table, pid)
	pidLock.Release()
}

// Lookup returns the task registered under pid, or nil if none is (either
// never allocated, or already reaped by its parent's Wait).
func Lookup(pid Pid) *Task {
	pidLock.Acquire()
	defer pidLock.Release()
	return table[pid]
}
