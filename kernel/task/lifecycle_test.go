package task

import (
	"testing"

	"rvkernel/kernel/errors"
)

func newBareTask(parent Pid) *Task {
	t := &Task{Pid: allocPid(), ParentPid: parent}
	register(t)
	return t
}

func TestExitMarksTaskAndThreadsZombie(t *testing.T) {
	parent := newBareTask(0)
	initPid = parent.Pid // stand in as the "init" process for this test
	defer unregister(parent.Pid)

	child := newBareTask(parent.Pid)
	child.Threads = []*Thread{{State: Running}, {State: Ready}}
	parent.Children = []Pid{child.Pid}
	defer unregister(child.Pid)

	Exit(child, 7)

	if !child.Zombie {
		t.Error("Exit did not mark task Zombie")
	}
	if child.ExitCode != 7 {
		t.Errorf("ExitCode = %d, want 7", child.ExitCode)
	}
	for i, th := range child.Threads {
		if th.State != Zombie {
			t.Errorf("Threads[%d].State = %v, want Zombie", i, th.State)
		}
	}
}

func TestExitReparentsOrphansToInit(t *testing.T) {
	initProc := newBareTask(0)
	initPid = initProc.Pid
	defer unregister(initProc.Pid)

	parent := newBareTask(initProc.Pid)
	defer unregister(parent.Pid)

	grandchild := newBareTask(parent.Pid)
	defer unregister(grandchild.Pid)
	parent.Children = []Pid{grandchild.Pid}

	Exit(parent, 0)

	if grandchild.ParentPid != initProc.Pid {
		t.Errorf("grandchild.ParentPid = %d, want init pid %d", grandchild.ParentPid, initProc.Pid)
	}

	found := false
	for _, pid := range initProc.Children {
		if pid == grandchild.Pid {
			found = true
		}
	}
	if !found {
		t.Error("init process did not inherit the orphaned grandchild")
	}
}

func TestWaitReturnsErrorWhenNoChildren(t *testing.T) {
	parent := newBareTask(0)
	defer unregister(parent.Pid)

	_, _, err := Wait(parent)
	if err != errors.NoChildren {
		t.Errorf("Wait() err = %v, want errors.NoChildren", err)
	}
}

func TestWaitReapsAnAlreadyZombieChild(t *testing.T) {
	parent := newBareTask(0)
	defer unregister(parent.Pid)

	child := newBareTask(parent.Pid)
	child.Zombie = true
	child.ExitCode = 42
	parent.Children = []Pid{child.Pid}

	pid, code, err := Wait(parent)
	if err != nil {
		t.Fatalf("Wait() err = %v, want nil", err)
	}
	if pid != child.Pid {
		t.Errorf("Wait() pid = %d, want %d", pid, child.Pid)
	}
	if code != 42 {
		t.Errorf("Wait() code = %d, want 42", code)
	}
	if len(parent.Children) != 0 {
		t.Errorf("parent.Children after reap = %v, want empty", parent.Children)
	}
	if Lookup(child.Pid) != nil {
		t.Error("reaped child is still present in the pid table")
	}
}

func TestWaitSkipsNonZombieChildAndReapsTheZombieOne(t *testing.T) {
	parent := newBareTask(0)
	defer unregister(parent.Pid)

	running := newBareTask(parent.Pid)
	defer unregister(running.Pid)
	zombie := newBareTask(parent.Pid)
	zombie.Zombie = true
	zombie.ExitCode = 3

	parent.Children = []Pid{running.Pid, zombie.Pid}

	pid, code, err := Wait(parent)
	if err != nil {
		t.Fatalf("Wait() err = %v, want nil", err)
	}
	if pid != zombie.Pid || code != 3 {
		t.Errorf("Wait() = (%d, %d), want (%d, 3)", pid, code, zombie.Pid)
	}
	if len(parent.Children) != 1 || parent.Children[0] != running.Pid {
		t.Errorf("parent.Children = %v, want only the still-running child", parent.Children)
	}
}

func TestSetParentNotifyHookInvokedOnExit(t *testing.T) {
	initProc := newBareTask(0)
	initPid = initProc.Pid
	defer unregister(initProc.Pid)

	parent := newBareTask(initProc.Pid)
	defer unregister(parent.Pid)
	child := newBareTask(parent.Pid)
	defer unregister(child.Pid)
	parent.Children = []Pid{child.Pid}

	var notifiedParent *Task
	var notifiedChild Pid
	SetParentNotifyHook(func(p *Task, c Pid) {
		notifiedParent = p
		notifiedChild = c
	})
	defer SetParentNotifyHook(nil)

	Exit(child, 0)

	if notifiedParent != parent {
		t.Errorf("notify hook parent = %v, want %v", notifiedParent, parent)
	}
	if notifiedChild != child.Pid {
		t.Errorf("notify hook child pid = %d, want %d", notifiedChild, child.Pid)
	}
}
