package signal

import "rvkernel/kernel/task"

// init wires this package into kernel/task's three signal-shaped
// extension points, the same function-variable indirection kernel/task
// itself already documents (avoids an import cycle: kernel/task can't
// import kernel/signal, since kernel/signal already imports kernel/task).
func init() {
	task.SetSignalResetHook(resetDispositions)
	task.SetSignalForkHook(copyDispositions)
	task.SetParentNotifyHook(notifySIGCHLD)
}

// resetDispositions implements exec(2)'s "resets signal dispositions to
// default, keeping the blocked mask" (§4.6).
func resetDispositions(t *task.Task) {
	s := stateFor(t.Pid)
	s.lock.Acquire()
	for i := range s.Dispositions {
		s.Dispositions[i] = Disposition{}
	}
	s.lock.Release()
}

// copyDispositions implements fork(2)'s "copies signal dispositions"
// (§4.6): the child starts with the parent's disposition table and blocked
// mask, but no pending signals of its own.
func copyDispositions(parent, child *task.Task) {
	p := stateFor(parent.Pid)
	c := stateFor(child.Pid)

	p.lock.Acquire()
	dispositions := p.Dispositions
	blocked := p.Blocked
	p.lock.Release()

	c.lock.Acquire()
	c.Dispositions = dispositions
	c.Blocked = blocked
	c.lock.Release()
}

// notifySIGCHLD implements "the parent is notified via SIGCHLD" (§4.6) on
// a child's exit.
func notifySIGCHLD(parent *task.Task, child task.Pid) {
	Raise(parent.Pid, SIGCHLD)
}
