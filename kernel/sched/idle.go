package sched

import (
	"rvkernel/kernel/task"
	"rvkernel/kernel/trap"
)

// idleKernelStackSize is deliberately small: the idle thread never does
// anything but cpu.Halt in a loop, so it never needs a deep call stack.
const idleKernelStackSize = 4096

// newIdleThread builds the per-CPU idle thread every runqueue falls back to
// when nothing else is runnable (§4.7: "per-CPU idle thread"). It belongs
// to no process: Schedule special-cases a nil Process to skip the
// address-space switch that would otherwise require one.
func newIdleThread(hartID uint64) *task.Thread {
	return &task.Thread{
		Tid:         0,
		KernelStack: make([]byte, idleKernelStackSize),
		TrapFrame:   &trap.Frame{},
		State:       task.Ready,
		Affinity:    int(hartID),
	}
}
