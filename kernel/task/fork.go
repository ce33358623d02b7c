package task

import (
	"rvkernel/kernel"
	"rvkernel/kernel/mem/vmm"
	"rvkernel/kernel/trap"
)

// Fork duplicates parent into a new child Task (§4.6): a copy-on-write
// address space built by vmm.FromFork, a cloned file descriptor table, and
// a single new thread whose trap frame is a copy of callerFrame with the
// syscall return slot set to 0. Returns the child's pid; the caller (the
// syscall dispatcher) is responsible for writing the child's pid back into
// the parent's own return slot and enqueuing the child thread with the
// scheduler.
func Fork(parent *Task, callerFrame *trap.Frame) (Pid, *kernel.Error) {
	childAS, err := vmm.FromFork(parent.AddressSpace)
	if err != nil {
		return 0, err
	}

	parent.lock.Acquire()
	files := cloneFiles(parent.Files)
	cwd := parent.Cwd
	parent.lock.Release()

	child := &Task{
		Pid:          allocPid(),
		ParentPid:    parent.Pid,
		AddressSpace: childAS,
		Files:        files,
		Cwd:          cwd,
	}

	childFrame := *callerFrame
	childFrame.SetReturn(0)

	child.Threads = append(child.Threads, &Thread{
		Tid:         allocTid(),
		Process:     child,
		KernelStack: make([]byte, KernelStackSize),
		TrapFrame:   &childFrame,
		State:       Ready,
		Affinity:    -1,
	})

	register(child)

	parent.lock.Acquire()
	parent.Children = append(parent.Children, child.Pid)
	parent.lock.Release()

	if copySignalDispositions != nil {
		copySignalDispositions(parent, child)
	}

	return child.Pid, nil
}

func cloneFiles(files []*FileDescriptor) []*FileDescriptor {
	if files == nil {
		return nil
	}
	cloned := make([]*FileDescriptor, len(files))
	for i, fd := range files {
		if fd == nil {
			continue
		}
		dup := *fd
		cloned[i] = &dup
	}
	return cloned
}
