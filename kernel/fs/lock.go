package fs

import "rvkernel/kernel/errors"
import "rvkernel/kernel"
import "rvkernel/kernel/sync"

// byteRangeLock is one advisory lock held against a range of an inode's
// bytes (§4.9: "per-inode linked ranges"). Locks are advisory only: nothing
// in this package prevents a Read/Write call from ignoring one, matching
// POSIX's own advisory-lock contract.
type byteRangeLock struct {
	owner      int64 // holding task's pid; kept as a plain int64 to avoid an fs->task import
	start, end int64 // end is exclusive; end == 0 means "to end of file"
	exclusive  bool
}

func (l byteRangeLock) overlaps(start, end int64) bool {
	if end == 0 {
		return l.end == 0 || l.end > start
	}
	if l.end == 0 {
		return end > l.start
	}
	return l.start < end && start < l.end
}

// LockRange acquires an advisory lock on [start, end) of ino for owner,
// reporting errors.WouldBlock immediately on conflict (§4.9: "acquire
// (blocking or non-blocking)"). This is the non-blocking primitive;
// AcquireLock builds the blocking form on top of it.
func LockRange(ino *Inode, owner int64, start, end int64, exclusive bool) *kernel.Error {
	ino.lock.Acquire()
	defer ino.lock.Release()
	for _, l := range ino.locks {
		if l.owner == owner {
			continue
		}
		if (exclusive || l.exclusive) && l.overlaps(start, end) {
			return errors.WouldBlock
		}
	}
	ino.locks = append(ino.locks, byteRangeLock{owner: owner, start: start, end: end, exclusive: exclusive})
	return nil
}

// AcquireLock acquires an advisory lock on [start, end) of ino for owner,
// blocking the caller on ino's lock wait queue while a conflicting lock is
// held (§4.9: "acquire (blocking or non-blocking)"; §8's "File-lock
// blocking" scenario: a blocking acquire on a range another owner holds
// waits until that owner releases it). w is the calling task, parked and
// later woken the same way ipc.Pipe's Read/Write block their caller.
func AcquireLock(ino *Inode, w sync.Waiter, owner int64, start, end int64, exclusive bool) *kernel.Error {
	for {
		err := LockRange(ino, owner, start, end, exclusive)
		if err != errors.WouldBlock {
			return err
		}
		ino.lockWaiters.Wait(w)
	}
}

// UnlockRange releases every lock owner holds on ino that overlaps
// [start, end), then wakes any task blocked in AcquireLock so it can retry
// now that the range may be free.
func UnlockRange(ino *Inode, owner int64, start, end int64) {
	ino.lock.Acquire()
	kept := ino.locks[:0]
	for _, l := range ino.locks {
		if l.owner == owner && l.overlaps(start, end) {
			continue
		}
		kept = append(kept, l)
	}
	ino.locks = kept
	ino.lock.Release()
	ino.lockWaiters.WakeAll()
}

// UnlockAll releases every lock owner holds on ino, regardless of range
// (§4.9 invariant: "locks held by a process are released on its last close
// of the file or on process exit"), then wakes any task blocked in
// AcquireLock.
func UnlockAll(ino *Inode, owner int64) {
	ino.lock.Acquire()
	kept := ino.locks[:0]
	for _, l := range ino.locks {
		if l.owner != owner {
			kept = append(kept, l)
		}
	}
	ino.locks = kept
	ino.lock.Release()
	ino.lockWaiters.WakeAll()
}

// TestRange reports whether acquiring a lock over [start, end) would
// conflict with a lock some other owner already holds (fcntl(F_GETLK)'s
// semantics).
func TestRange(ino *Inode, owner int64, start, end int64, exclusive bool) bool {
	ino.lock.Acquire()
	defer ino.lock.Release()
	for _, l := range ino.locks {
		if l.owner == owner {
			continue
		}
		if (exclusive || l.exclusive) && l.overlaps(start, end) {
			return true
		}
	}
	return false
}
