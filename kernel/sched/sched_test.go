package sched

import (
	"testing"

	"rvkernel/kernel/task"
)

// Schedule/Block/Wake/onTimerTick/Yield are NOT exercised here: all of them
// eventually call task.SwitchContext (a bodyless arch primitive with no Go
// body) or cpu.HartID()/cpu.SendIPI (same), which would be a link/runtime
// failure in a hosted test binary, not a meaningful test. Everything else in
// this package -- runqueue construction, admission, load balancing
// bookkeeping, stats -- is pure Go state and is covered below.

func TestInitPopulatesOneRunqueuePerHart(t *testing.T) {
	Init()
	for i, rq := range runqueues {
		if rq == nil {
			t.Fatalf("runqueues[%d] is nil after Init", i)
		}
	}
}

func TestEnqueueUnpinnedGoesToLeastLoaded(t *testing.T) {
	Init()
	th := &task.Thread{Affinity: -1}

	Enqueue(th, PolicyCFS, 0)

	ent, ok := th.SchedEntity.(*Entity)
	if !ok {
		t.Fatal("Enqueue did not attach a *Entity to SchedEntity")
	}
	rq := runQueueFor(ent.home)
	if rq.cfs.len() != 1 {
		t.Errorf("home runqueue cfs.len() = %d, want 1", rq.cfs.len())
	}
}

func TestEnqueuePinnedRespectsAffinity(t *testing.T) {
	Init()
	th := &task.Thread{Affinity: 3}

	Enqueue(th, PolicyFIFO, 10)

	ent := th.SchedEntity.(*Entity)
	if ent.home != 3 {
		t.Errorf("pinned thread's home = %d, want 3", ent.home)
	}
	if runqueues[3].rt.len() != 1 {
		t.Errorf("runqueues[3].rt.len() = %d, want 1", runqueues[3].rt.len())
	}
}

func TestLoadReflectsAdmittedEntities(t *testing.T) {
	Init()
	rq := runqueues[0]
	if rq.load() != 0 {
		t.Fatalf("fresh runqueue load() = %d, want 0", rq.load())
	}

	rq.lock.Acquire()
	admit(rq, &Entity{Policy: PolicyCFS})
	admit(rq, &Entity{Policy: PolicyFIFO})
	rq.lock.Release()

	if got := rq.load(); got != 2 {
		t.Errorf("load() = %d, want 2", got)
	}
}

func TestLeastLoadedPicksSmallestLoad(t *testing.T) {
	Init()
	rq1 := runqueues[1]
	rq1.lock.Acquire()
	admit(rq1, &Entity{Policy: PolicyCFS})
	admit(rq1, &Entity{Policy: PolicyCFS})
	rq1.lock.Release()

	got := leastLoaded()
	if got == rq1 {
		t.Error("leastLoaded() picked the more heavily loaded runqueue")
	}
}

func TestBusiestAndIdlestDistinguishRunqueues(t *testing.T) {
	Init()
	busy := runqueues[2]
	busy.lock.Acquire()
	admit(busy, &Entity{Policy: PolicyCFS})
	admit(busy, &Entity{Policy: PolicyCFS})
	admit(busy, &Entity{Policy: PolicyCFS})
	busy.lock.Release()

	most, least := busiestAndIdlest()
	if most != busy {
		t.Errorf("busiestAndIdlest most = %p, want the busy runqueue %p", most, busy)
	}
	if least == busy {
		t.Error("busiestAndIdlest returned the same runqueue for both ends")
	}
}

func TestStealCFSEntitySkipsPinnedThreads(t *testing.T) {
	Init()
	rq := runqueues[0]
	pinned := &Entity{Thread: &task.Thread{Affinity: 0}, Policy: PolicyCFS}
	migratable := &Entity{Thread: &task.Thread{Affinity: -1}, Policy: PolicyCFS, VRuntime: 5}

	rq.lock.Acquire()
	rq.cfs.push(pinned)
	rq.cfs.push(migratable)
	rq.lock.Release()

	stolen := rq.stealCFSEntity()
	if stolen != migratable {
		t.Errorf("stealCFSEntity() = %v, want the unpinned entity", stolen)
	}
	if rq.cfs.len() != 1 {
		t.Errorf("cfs.len() after steal = %d, want 1 (pinned entity remains)", rq.cfs.len())
	}
}

func TestReceiveCFSEntityRebasesVRuntimeAndSetsHome(t *testing.T) {
	Init()
	rq := runqueues[4]
	rq.lock.Acquire()
	rq.cfs.push(&Entity{VRuntime: 1000})
	rq.lock.Release()

	incoming := &Entity{Thread: &task.Thread{Affinity: -1}, VRuntime: 10, home: 7}
	rq.receiveCFSEntity(incoming)

	if incoming.home != 4 {
		t.Errorf("incoming.home = %d, want 4", incoming.home)
	}
	if incoming.VRuntime < 1000 {
		t.Errorf("incoming.VRuntime = %d, want rebased to at least 1000", incoming.VRuntime)
	}
}

func TestMaybeBalanceMigratesWithinBound(t *testing.T) {
	Init()
	balanceTickCounter = 0
	busy := runqueues[0]
	busy.lock.Acquire()
	for i := 0; i < 5; i++ {
		busy.cfs.push(&Entity{Thread: &task.Thread{Affinity: -1}, Policy: PolicyCFS, VRuntime: uint64(i)})
	}
	busy.lock.Release()

	for i := 0; i < balanceInterval; i++ {
		maybeBalance()
	}

	total := 0
	for _, rq := range runqueues {
		total += rq.load()
	}
	if total != 5 {
		t.Errorf("total runnable across runqueues = %d, want 5 (balancing must not drop or duplicate)", total)
	}
	if got := busy.load(); got < 5-maxMigrationsPerBalance {
		t.Errorf("busy runqueue load after one balance pass = %d, want at least %d (at most maxMigrationsPerBalance moved)", got, 5-maxMigrationsPerBalance)
	}
}

func TestStatsForReportsCurrentIsIdleOnFreshRunqueue(t *testing.T) {
	Init()
	stats := StatsFor(0)
	if !stats.CurrentIsIdle {
		t.Error("StatsFor(0).CurrentIsIdle = false on a freshly initialized runqueue")
	}
	if stats.RunnableRT != 0 || stats.RunnableCFS != 0 {
		t.Errorf("fresh runqueue stats = %+v, want zero runnable counts", stats)
	}
}

func TestSetGetPriorityRoundTrips(t *testing.T) {
	Init()
	th := &task.Thread{Affinity: -1}
	Enqueue(th, PolicyFIFO, 5)

	SetPriority(th, 9)
	if got := GetPriority(th); got != 9 {
		t.Errorf("GetPriority() = %d, want 9", got)
	}
}

func TestGetPriorityUnknownThreadIsZero(t *testing.T) {
	if got := GetPriority(&task.Thread{}); got != 0 {
		t.Errorf("GetPriority(unknown) = %d, want 0", got)
	}
}

func TestSetGetPolicyRoundTrips(t *testing.T) {
	Init()
	th := &task.Thread{Affinity: -1}
	Enqueue(th, PolicyCFS, 0)

	SetPolicy(th, PolicyRoundRobin)
	if got := GetPolicy(th); got != PolicyRoundRobin {
		t.Errorf("GetPolicy() = %v, want PolicyRoundRobin", got)
	}
}

func TestGetPolicyUnknownThreadIsCFS(t *testing.T) {
	if got := GetPolicy(&task.Thread{}); got != PolicyCFS {
		t.Errorf("GetPolicy(unknown) = %v, want PolicyCFS", got)
	}
}

func TestAllStatsReturnsOneEntryPerHart(t *testing.T) {
	Init()
	all := AllStats()
	if len(all) != len(runqueues) {
		t.Errorf("AllStats() returned %d entries, want %d", len(all), len(runqueues))
	}
}
