package sched

// rtQueue holds the FIFO and Priority/Round-Robin threads for one runqueue,
// ordered by ascending numeric priority (lower runs first) and FIFO within
// a priority level (§4.7: "within a priority, first-come-first-served").
// Real bounded kernel runqueues are small enough that an ordered slice with
// linear insertion beats the complexity of a proper priority queue.
type rtQueue struct {
	entities []*Entity
}

func (q *rtQueue) len() int {
	return len(q.entities)
}

func (q *rtQueue) push(ent *Entity) {
	if ent.Policy == PolicyRoundRobin {
		ent.ticksLeft = DefaultTimeSlice
	}

	i := len(q.entities)
	for i > 0 && q.entities[i-1].Priority > ent.Priority {
		i--
	}
	q.entities = append(q.entities, nil)
	copy(q.entities[i+1:], q.entities[i:])
	q.entities[i] = ent
}

// peek returns the head of the queue (highest priority, oldest of equals)
// without removing it.
func (q *rtQueue) peek() *Entity {
	if len(q.entities) == 0 {
		return nil
	}
	return q.entities[0]
}

// pop removes the head of the queue. Caller must have just peeked it.
func (q *rtQueue) pop() {
	q.entities = q.entities[1:]
}

// tick charges the running Round-Robin entity one tick of its slice and
// reports whether it has now expired and should be preempted by an equal-
// priority peer (§4.7). FIFO entities are never charged a slice: a FIFO
// thread only yields the CPU by blocking, exiting or being preempted by a
// strictly higher priority peer, which push's ordering already guarantees.
func (q *rtQueue) tick(ent *Entity) bool {
	if ent.Policy != PolicyRoundRobin {
		return false
	}
	ent.ticksLeft--
	if ent.ticksLeft > 0 {
		return false
	}
	q.push(ent)
	return true
}
