package kernel

// Scheduler internals: ready list maintenance, the delayed list, the
// block/wake paths and the context switch itself.  Everything here runs
// with k.mu held unless noted otherwise.

// pushReady appends t to the FIFO for its effective priority.
func (k *Kernel) pushReady(t *Task) {
	k.ready[t.priority] = append(k.ready[t.priority], t)
}

// removeReady deletes t from its ready FIFO.
func (k *Kernel) removeReady(t *Task) {
	q := k.ready[t.priority]
	for i, o := range q {
		if o == t {
			copy(q[i:], q[i+1:])
			k.ready[t.priority] = q[:len(q)-1]
			return
		}
	}
}

// highestReadyPrio returns the highest priority with a ready task, or -1
// when every task is blocked or suspended.
func (k *Kernel) highestReadyPrio() int {
	for p := len(k.ready) - 1; p >= 0; p-- {
		if len(k.ready[p]) > 0 {
			return p
		}
	}
	return -1
}

// popHighestReady removes and returns the next task to run.  The idle
// task guarantees the ready lists are never all empty once the scheduler
// is running.
func (k *Kernel) popHighestReady() *Task {
	p := k.highestReadyPrio()
	assert(p >= 0, "no ready task")
	q := k.ready[p]
	t := q[0]
	copy(q, q[1:])
	k.ready[p] = q[:len(q)-1]
	return t
}

// dispatch switches from the calling task to the highest-priority ready
// task.  The caller must already have moved k.current to its new list
// (ready, delayed, an event list, or suspended).  If the caller remains
// the best choice it keeps running and no switch happens.  Blocks until
// the calling task is scheduled again.
func (k *Kernel) dispatch() {
	prev := k.current
	next := k.popHighestReady()
	next.state = TaskRunning
	k.current = next
	if next == prev {
		return
	}
	recordTrace(EvtSwitch, k.tick, next.priority, 0, next.name)
	// Hand the processor over, then wait for our own gate.  The gate
	// send cannot block: each gate has one slot and a parked task has an
	// empty one.
	k.mu.Unlock()
	next.gate <- struct{}{}
	<-prev.gate
	k.mu.Lock()
}

// rescheduleLocked preempts the running task if a higher-priority task
// became ready, or an equal-priority one when a switch is pending.  It is
// a deferred no-op before Start and while the scheduler is suspended.
func (k *Kernel) rescheduleLocked() {
	cur := k.current
	if !k.started || cur == nil {
		return
	}
	if k.suspendDepth > 0 {
		k.switchPending = true
		return
	}
	hp := k.highestReadyPrio()
	if hp < 0 {
		return
	}
	if hp > cur.priority || (k.switchPending && hp >= cur.priority) {
		cur.state = TaskReady
		k.pushReady(cur)
		k.switchPending = false
		k.dispatch()
	}
}

// deadlineLocked converts a relative timeout to an absolute deadline,
// saturating to Forever if the addition would wrap the tick counter.
func (k *Kernel) deadlineLocked(timeout Tick) Tick {
	if timeout == Forever {
		return Forever
	}
	d := k.tick + timeout
	if d < k.tick {
		return Forever
	}
	return d
}

// blockOn blocks the calling task on the given event list (nil for a
// plain sleep) until woken or until the absolute deadline.  Forever means
// no deadline.  Reports whether the task was woken by the event rather
// than the timeout.
func (k *Kernel) blockOn(wl *waitList, deadline Tick) bool {
	t := k.current
	assert(t != nil && k.started, "blocking call outside a running task")
	assert(k.suspendDepth == 0, "blocking call with scheduler suspended")
	t.state = TaskBlocked
	t.timedOut = false
	t.waitList = wl
	if wl != nil {
		wl.add(t)
	}
	if deadline != Forever {
		k.delayedInsert(t, deadline)
	}
	k.dispatch()
	return !t.timedOut
}

// wakeLocked readies a task that was blocked on an event list.  The
// caller has already removed it from that list.
func (k *Kernel) wakeLocked(t *Task) {
	t.waitList = nil
	t.blockedOn = nil
	t.timedOut = false
	k.removeDelayed(t)
	t.state = TaskReady
	k.pushReady(t)
	recordTrace(EvtWake, k.tick, t.priority, 0, t.name)
	if cur := k.current; cur != nil && t.priority > cur.priority {
		k.switchPending = true
	}
}

// delayedInsert places t on the delayed list, sorted by wake time with
// ties kept in insertion order.
func (k *Kernel) delayedInsert(t *Task, wake Tick) {
	t.wakeTime = wake
	t.inDelayed = true
	i := len(k.delayed)
	for i > 0 && k.delayed[i-1].wakeTime > wake {
		i--
	}
	k.delayed = append(k.delayed, nil)
	copy(k.delayed[i+1:], k.delayed[i:])
	k.delayed[i] = t
}

// removeDelayed deletes t from the delayed list if present.
func (k *Kernel) removeDelayed(t *Task) {
	if !t.inDelayed {
		return
	}
	t.inDelayed = false
	for i, o := range k.delayed {
		if o == t {
			copy(k.delayed[i:], k.delayed[i+1:])
			k.delayed = k.delayed[:len(k.delayed)-1]
			return
		}
	}
}

// wakeExpiredLocked moves every delayed task whose wake time has arrived
// back to the ready lists.  A task still queued on an event list at that
// point has timed out.
func (k *Kernel) wakeExpiredLocked() {
	for len(k.delayed) > 0 && k.delayed[0].wakeTime <= k.tick {
		t := k.delayed[0]
		copy(k.delayed, k.delayed[1:])
		k.delayed = k.delayed[:len(k.delayed)-1]
		t.inDelayed = false
		if t.waitList != nil {
			t.waitList.remove(t)
			t.waitList = nil
			t.timedOut = true
			recordTrace(EvtTimeout, k.tick, t.priority, 0, t.name)
		}
		t.blockedOn = nil
		t.state = TaskReady
		k.pushReady(t)
		if cur := k.current; cur != nil && t.priority > cur.priority {
			k.switchPending = true
		}
	}
}

// setEffectiveLocked changes a task's effective priority and re-homes it
// on whichever list position depends on priority.
func (k *Kernel) setEffectiveLocked(t *Task, priority int) {
	if t.priority == priority {
		return
	}
	switch t.state {
	case TaskReady:
		k.removeReady(t)
		t.priority = priority
		k.pushReady(t)
	case TaskBlocked:
		t.priority = priority
		if t.waitList != nil {
			t.waitList.reposition(t)
		}
	default:
		t.priority = priority
	}
}
