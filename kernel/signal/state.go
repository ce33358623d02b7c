package signal

import (
	"rvkernel/kernel/sync"
	"rvkernel/kernel/task"
	"rvkernel/kernel/trap"
)

// DispositionKind is the three-way choice sigaction(2) offers per signal
// (§4.10): fall back to the default table, ignore outright, or invoke a
// user handler.
type DispositionKind uint8

const (
	DispositionDefault DispositionKind = iota
	DispositionIgnore
	DispositionHandler
)

// Disposition is one signal's entry in a process's disposition table.
// Handler is the user-space entry point, meaningful only when Kind is
// DispositionHandler. Flags carries sa_flags verbatim; this kernel doesn't
// interpret any of them (no SA_RESTART-driven syscall restart, no
// SA_SIGINFO extended handler signature) -- sigaction(2) is bound to a
// minimal "handler(int signum)" calling convention (an Open Question this
// resolves toward "small and testable" over staging a siginfo/ucontext
// pair on the user stack).
type Disposition struct {
	Kind    DispositionKind
	Handler uintptr
	Flags   uint32
}

// State is one process's signal state (§3: "pending bitmask, blocked
// bitmask, disposition table, alternate-stack descriptor"; the altstack
// descriptor itself is never populated -- this kernel never stages a
// handler frame on anything but the thread's ordinary user stack, so there
// is nothing for sigaltstack(2) to redirect, and that syscall number was
// never part of this ABI's enumeration in the first place). SavedFrame is
// the "per thread: a saved trap frame used to resume after handler return"
// note -- kept per-process rather than per-thread since every Task here
// runs its signal-bearing work on Threads[0], the same simplification
// kernel/task's own Exec/Fork already make.
type State struct {
	lock sync.Spinlock

	Pending      uint32
	Blocked      uint32
	Dispositions [NSIG]Disposition

	// SavedFrame holds the trap frame that was live when a handler was
	// dispatched, nil when no handler is currently executing. Sigreturn
	// restores it and clears it back to nil.
	SavedFrame *trap.Frame

	// pendingWaiters backs sysPause's "block until any signal arrives"
	// contract (§4.10/§9): Raise wakes it whenever Pending gains a bit.
	pendingWaiters sync.WaitQueue
}

var (
	registryLock sync.Spinlock
	registry     = map[task.Pid]*State{}
)

// stateFor returns pid's signal state, creating a fresh, all-default one on
// first use. States are never removed from the registry even after their
// task is reaped, mirroring kernel/task.Pid's own "pids are for all
// practical purposes never reused" note -- a stale entry costs one small
// struct and is never consulted again once its pid can no longer resolve to
// a live task.
func stateFor(pid task.Pid) *State {
	registryLock.Acquire()
	defer registryLock.Release()
	s, ok := registry[pid]
	if !ok {
		s = &State{}
		registry[pid] = s
	}
	return s
}
