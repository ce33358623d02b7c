package syscall

import (
	"testing"

	"rvkernel/kernel/errors"
	"rvkernel/kernel/sched"
	"rvkernel/kernel/task"
	"rvkernel/kernel/trap"
)

func newEnqueuedTask(pid task.Pid) *task.Task {
	th := &task.Thread{Affinity: -1}
	sched.Enqueue(th, sched.PolicyCFS, 0)
	return &task.Task{Pid: pid, Threads: []*task.Thread{th}}
}

func TestTargetThreadPidZeroIsSelf(t *testing.T) {
	sched.Init()
	caller := newEnqueuedTask(1)
	got := targetThread(caller, 0)
	if got != caller.Threads[0] {
		t.Error("targetThread(t, 0) did not return the caller's own thread")
	}
}

func TestTargetThreadUnknownPidIsNil(t *testing.T) {
	caller := newEnqueuedTask(1)
	if got := targetThread(caller, 99999); got != nil {
		t.Errorf("targetThread(unknown pid) = %v, want nil", got)
	}
}

func TestSysSetGetPriorityRoundTrips(t *testing.T) {
	sched.Init()
	caller := newEnqueuedTask(1)

	sysSetpriority(caller, &trap.Frame{A0: 0, A1: 7})
	got := sysGetpriority(caller, &trap.Frame{A0: 0})
	if got != 7 {
		t.Errorf("sysGetpriority() = %d, want 7", got)
	}
}

func TestSysSetpriorityUnknownPidReturnsESRCH(t *testing.T) {
	caller := newEnqueuedTask(1)
	got := sysSetpriority(caller, &trap.Frame{A0: 42, A1: 5})
	want := int64(errors.ToErrno(errors.NoSuchProcess))
	if got != want {
		t.Errorf("sysSetpriority(unknown pid) = %d, want %d", got, want)
	}
}

func TestSysSchedSetschedulerRejectsUnknownPolicy(t *testing.T) {
	sched.Init()
	caller := newEnqueuedTask(1)
	got := sysSchedSetscheduler(caller, &trap.Frame{A0: 0, A1: 99, A2: 0})
	want := int64(errors.ToErrno(errors.InvalidArgument))
	if got != want {
		t.Errorf("sysSchedSetscheduler(bad policy) = %d, want %d", got, want)
	}
}

func TestSysSchedSetGetschedulerRoundTrips(t *testing.T) {
	sched.Init()
	caller := newEnqueuedTask(1)

	sysSchedSetscheduler(caller, &trap.Frame{A0: 0, A1: uint64(sched.PolicyRoundRobin), A2: 3})
	got := sysSchedGetscheduler(caller, &trap.Frame{A0: 0})
	if got != int64(sched.PolicyRoundRobin) {
		t.Errorf("sysSchedGetscheduler() = %d, want %d", got, sched.PolicyRoundRobin)
	}
}
