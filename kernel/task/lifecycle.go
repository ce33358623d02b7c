package task

import (
	"rvkernel/kernel"
	"rvkernel/kernel/errors"
)

// NotifyParentFn is invoked when a task becomes Zombie, so kernel/signal
// can raise SIGCHLD against the parent (§4.6: "the parent is notified via
// SIGCHLD"). Nil until kernel/signal registers one via SetParentNotifyHook.
type NotifyParentFn func(parent *Task, child Pid)

var notifyParent NotifyParentFn

// SetParentNotifyHook wires Exit's zombie transition to kernel/signal.
func SetParentNotifyHook(fn NotifyParentFn) {
	notifyParent = fn
}

// Exit marks every thread of t Zombie, reparents any of its own children to
// the init process, and notifies its parent (§4.6). t's resources
// (address space, file table) are not released here -- they remain valid
// until the parent's Wait reaps it, so a concurrent syscall already in
// flight against this task doesn't fault.
func Exit(t *Task, code int) {
	t.lock.Acquire()
	t.ExitCode = code
	t.Zombie = true
	for _, th := range t.Threads {
		th.State = Zombie
	}
	children := t.Children
	t.Children = nil
	t.lock.Release()

	reparent(children)

	if parent := Lookup(t.ParentPid); parent != nil {
		parent.waiters.WakeAll()
		if notifyParent != nil {
			notifyParent(parent, t.Pid)
		}
	}
}

// reparent hands each of an exiting task's own children over to the init
// process (§4.6: "orphans are reparented to the init process").
func reparent(children []Pid) {
	initProc := Lookup(initPid)
	if initProc == nil {
		return
	}

	initProc.lock.Acquire()
	defer initProc.lock.Release()
	for _, pid := range children {
		if child := Lookup(pid); child != nil {
			child.lock.Acquire()
			child.ParentPid = initProc.Pid
			child.lock.Release()
		}
		initProc.Children = append(initProc.Children, pid)
	}
}

// Wait blocks parent until one of its children becomes Zombie, reaps it
// (removing it from the pid table and the parent's children list) and
// returns its pid and exit code (§4.6). Returns errors.NoChildren
// immediately if parent currently has no children at all. Reaping loops
// rather than parking just once, since WakeAll fires on every child exit
// and an unrelated sibling's exit could otherwise wake this call spuriously.
func Wait(parent *Task) (Pid, int, *kernel.Error) {
	for {
		parent.lock.Acquire()
		if len(parent.Children) == 0 {
			parent.lock.Release()
			return 0, 0, errors.NoChildren
		}

		for i, pid := range parent.Children {
			child := Lookup(pid)
			if child == nil {
				continue
			}
			child.lock.Acquire()
			zombie := child.Zombie
			child.lock.Release()
			if !zombie {
				continue
			}

			parent.Children = append(parent.Children[:i], parent.Children[i+1:]...)
			parent.lock.Release()

			unregister(pid)
			return pid, child.ExitCode, nil
		}
		parent.lock.Release()

		parent.waiters.Wait(parent)
	}
}
