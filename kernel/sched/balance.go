package sched

// balanceInterval is how many timer ticks pass between load-balancing
// attempts. Running it every tick would serialize every HART's runqueue
// lock far too often; spec.md only asks for "periodically" (§4.7).
const balanceInterval = 100

// maxMigrationsPerBalance bounds how many threads move in a single balance
// pass (§4.7: "migration count per tick is bounded").
const maxMigrationsPerBalance = 2

var balanceTickCounter uint64

// maybeBalance is called once per timer tick on whichever HART takes it;
// every balanceInterval ticks it pulls runnable, unpinned CFS threads from
// the most-loaded runqueue onto the least-loaded one (§4.7: "the
// least-loaded CPU pulls runnable non-pinned tasks from the most-loaded
// CPU"). Real-time threads are deliberately left out of balancing: a
// strictly-prioritized FIFO/Priority thread's CPU assignment is a
// scheduling decision, not a load-spreading one.
func maybeBalance() {
	balanceTickCounter++
	if balanceTickCounter%balanceInterval != 0 {
		return
	}

	most, least := busiestAndIdlest()
	if most == nil || least == nil || most == least {
		return
	}

	migrated := 0
	for migrated < maxMigrationsPerBalance {
		ent := most.stealCFSEntity()
		if ent == nil {
			break
		}
		least.receiveCFSEntity(ent)
		migrated++
	}
}

func busiestAndIdlest() (*RunQueue, *RunQueue) {
	var most, least *RunQueue
	var mostLoad, leastLoad int

	for i, rq := range runqueues {
		if rq == nil {
			continue
		}
		l := rq.load()
		if i == 0 || l > mostLoad {
			most, mostLoad = rq, l
		}
		if i == 0 || l < leastLoad {
			least, leastLoad = rq, l
		}
	}
	return most, least
}

// stealCFSEntity removes and returns one migratable (Affinity == -1) CFS
// entity from rq, or nil if none qualify. Real-time entities and pinned
// threads are never touched. Scans heap storage order rather than
// repeatedly popping the leftmost entry, so it doesn't disturb entities it
// skips over.
func (rq *RunQueue) stealCFSEntity() *Entity {
	rq.lock.Acquire()
	defer rq.lock.Release()

	for i, ent := range rq.cfs.heap {
		if ent.Thread.Affinity != -1 {
			continue
		}
		rq.cfs.removeAt(i)
		return ent
	}
	return nil
}

// receiveCFSEntity admits a migrated entity to rq, rebasing its vruntime
// against rq's own leftmost entry so it doesn't either starve or dominate
// its new runqueue's peers purely because of where it accrued vruntime
// before the move.
func (rq *RunQueue) receiveCFSEntity(ent *Entity) {
	rq.lock.Acquire()
	defer rq.lock.Release()

	ent.home = rq.hartID
	if min := rq.cfs.minVRuntime(); ent.VRuntime < min {
		ent.VRuntime = min
	}
	rq.cfs.push(ent)
}
