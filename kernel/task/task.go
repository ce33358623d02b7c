// Package task implements the kernel's process/thread control blocks and
// their fork/exec/exit/wait lifecycle (§4.6). There is no teacher
// precedent for this subsystem (gopher-os never grew a scheduler), so its
// shape is grounded on spec.md's own §3 Data Model plus the pack's
// tinyrange-cc/virt.go Instance type for the handle/lifecycle vocabulary
// (ID-addressed object, Wait() blocks until termination, Close() is
// idempotent) generalized from "one VM instance" to "one process", wired
// in the teacher's own idiom: kernel.Error sentinels, kernel/sync
// primitives, function-variable hooks into not-yet-built packages.
package task

import (
	"rvkernel/kernel/mem/vmm"
	"rvkernel/kernel/sync"
	"rvkernel/kernel/trap"
)

// ThreadState is a thread's position in its Ready/Running/Blocked/Zombie
// lifecycle (§3's Data Model).
type ThreadState uint8

const (
	Ready ThreadState = iota
	Running
	Blocked
	Zombie
)

func (s ThreadState) String() string {
	switch s {
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Blocked:
		return "blocked"
	case Zombie:
		return "zombie"
	default:
		return "unknown"
	}
}

// Tid uniquely identifies a thread within the lifetime of the kernel.
type Tid uint32

// Context holds the callee-saved register set a context switch preserves
// (§4.6: "saves the callee-saved register set plus return PC"): ra, sp and
// s0-s11. The full trap frame for whatever trap most recently entered this
// thread lives separately, in Thread.TrapFrame -- the same
// Context/Frame split the teacher draws between its (never-built, amd64
// only) context switch and gate.Registers, generalized here to RISC-V's
// register set.
type Context struct {
	RA, SP                                           uint64
	S0, S1, S2, S3, S4, S5, S6, S7, S8, S9, S10, S11 uint64
}

// Thread is a schedulable unit of execution within a Task (§3's TCB).
type Thread struct {
	Tid         Tid
	Process     *Task
	KernelStack []byte
	Context     Context
	TrapFrame   *trap.Frame
	State       ThreadState
	Affinity    int // HART id this thread is pinned to, or -1 for any

	// SchedEntity is opaque to this package: kernel/sched attaches
	// whatever policy-specific bookkeeping (priority, vruntime, heap
	// index) its SchedClass needs, the same way kernel/sync.Waiter is left
	// opaque to avoid an import cycle between the two packages.
	SchedEntity interface{}
}

// FileDescriptor is one slot of a Task's open-file table. kernel/fs
// supplies the concrete backing object once it exists; this package only
// ever clones or closes the slot, never interprets File itself.
type FileDescriptor struct {
	File        interface{}
	CloseOnExec bool
}

// Task is a process control block (§3's Data Model): pid, parent pid,
// address space, open-file table, working directory, exit code slot,
// children list, zombie status and one or more threads.
type Task struct {
	Pid       Pid
	ParentPid Pid

	AddressSpace *vmm.AddressSpace
	Files        []*FileDescriptor
	Cwd          string

	// Brk is the current end of the heap VMA brk(2) grows/shrinks, and
	// MmapNext is the next address sys_mmap's bump allocator hands out.
	// Both start at zero (no heap/mmap VMA yet) and are claimed lazily by
	// kernel/syscall's first brk/mmap call for this task.
	Brk      uintptr
	MmapNext uintptr

	ExitCode int
	Zombie   bool
	Children []Pid
	Threads  []*Thread

	lock    sync.Spinlock
	waiters sync.WaitQueue
}

// KernelStackSize is the size of a freshly allocated thread's kernel stack.
const KernelStackSize = 16 * 1024

// NewInit creates the very first task (pid 1, the init process): an empty
// address space, no open files, and a single Ready thread whose trap frame
// is the zero value (the boot sequence populates sepc/sstatus before the
// first return to user mode). There is no parent to register with or
// notify on exit.
func NewInit(as *vmm.AddressSpace) *Task {
	t := &Task{
		Pid:          allocPid(),
		ParentPid:    0,
		AddressSpace: as,
		Cwd:          "/",
	}
	t.Threads = append(t.Threads, &Thread{
		Tid:         allocTid(),
		Process:     t,
		KernelStack: make([]byte, KernelStackSize),
		TrapFrame:   &trap.Frame{},
		State:       Ready,
		Affinity:    -1,
	})
	register(t)
	initPid = t.Pid
	return t
}
