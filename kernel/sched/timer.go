package sched

import (
	"rvkernel/kernel/cpu"
	"rvkernel/kernel/sbi"
	"rvkernel/kernel/signal"
	"rvkernel/kernel/sync"
	"rvkernel/kernel/task"
)

// timerEntry is one deadline armed against the time CSR: either a sleeping
// task to wake once it passes (nanosleep) or a pid to deliver SIGALRM to
// (alarm). Exactly one of the two is set.
type timerEntry struct {
	deadline uint64
	sleeper  *task.Task
	alarmPid task.Pid
}

var (
	timerLock sync.Spinlock
	timers    []timerEntry
)

// ArmSleep registers a nanosleep wake-up for t once deadline (a time CSR
// tick count) passes and blocks the caller until then (§4.7/§5: nanosleep
// suspends the caller rather than merely arming a timer and returning).
// Only onTimerTick observes the deadline, so t stays asleep across however
// many unrelated timer interrupts fire before its own deadline is reached.
func ArmSleep(t *task.Task, deadline uint64) {
	armTimer(timerEntry{deadline: deadline, sleeper: t})
	Block(t)
}

// ArmAlarm registers delivery of SIGALRM to pid once deadline (a time CSR
// tick count) passes (§4.10/§9: alarm's deferred-signal half).
func ArmAlarm(pid task.Pid, deadline uint64) {
	armTimer(timerEntry{deadline: deadline, alarmPid: pid})
}

// earliestDeadline returns the soonest deadline among entries, and false if
// entries is empty. Pure arithmetic kept separate from the spinlock/hardware
// calls around it so it can be tested without cpu.ReadTime()/sbi.SetTimer.
func earliestDeadline(entries []timerEntry) (uint64, bool) {
	if len(entries) == 0 {
		return 0, false
	}
	earliest := entries[0].deadline
	for _, e := range entries[1:] {
		if e.deadline < earliest {
			earliest = e.deadline
		}
	}
	return earliest, true
}

// partitionExpired splits entries into those whose deadline has passed as of
// now and those still outstanding. Pure, for the same reason as
// earliestDeadline.
func partitionExpired(now uint64, entries []timerEntry) (fired, kept []timerEntry) {
	for _, e := range entries {
		if e.deadline <= now {
			fired = append(fired, e)
		} else {
			kept = append(kept, e)
		}
	}
	return fired, kept
}

// armTimer records e and re-programs the single hardware timer register for
// the earliest deadline now outstanding, since a later ArmSleep/ArmAlarm
// call must never push out a deadline an earlier call is still waiting on.
func armTimer(e timerEntry) {
	timerLock.Acquire()
	timers = append(timers, e)
	earliest, _ := earliestDeadline(timers)
	timerLock.Release()
	sbi.SetTimer(earliest)
}

// serviceTimers wakes every sleeper and raises every alarm whose deadline
// has passed, then re-arms the hardware timer for whatever deadline is now
// soonest. Called from onTimerTick on every timer interrupt, the way
// kernel/sched's own tick-based preemption already is.
func serviceTimers() {
	now := cpu.ReadTime()

	timerLock.Acquire()
	fired, kept := partitionExpired(now, timers)
	timers = kept
	next, hasNext := earliestDeadline(timers)
	timerLock.Release()

	for _, e := range fired {
		if e.sleeper != nil {
			Wake(e.sleeper)
		}
		if e.alarmPid != 0 {
			signal.Raise(e.alarmPid, signal.SIGALRM)
		}
	}

	if hasNext {
		sbi.SetTimer(next)
	}
}
