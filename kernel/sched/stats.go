package sched

// Stats is a snapshot of one runqueue's state, sampled without a debugger
// (SPEC_FULL.md §C.7), returned by StatsFor and AllStats. No DevFS file
// exposes it; nothing outside this package reads it.
type Stats struct {
	HartID        uint64
	RunnableRT    int
	RunnableCFS   int
	MinVRuntime   uint64
	CurrentIsIdle bool
}

// StatsFor returns a point-in-time snapshot of hartID's runqueue.
func StatsFor(hartID uint64) Stats {
	rq := runQueueFor(hartID)

	rq.lock.Acquire()
	defer rq.lock.Release()

	return Stats{
		HartID:        hartID,
		RunnableRT:    rq.rt.len(),
		RunnableCFS:   rq.cfs.len(),
		MinVRuntime:   rq.cfs.minVRuntime(),
		CurrentIsIdle: rq.current == rq.idle,
	}
}

// AllStats returns one Stats entry per configured HART, in HART order.
func AllStats() []Stats {
	out := make([]Stats, 0, len(runqueues))
	for i, rq := range runqueues {
		if rq == nil {
			continue
		}
		out = append(out, StatsFor(uint64(i)))
	}
	return out
}
