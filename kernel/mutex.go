package kernel

// Mutex is a binary lock with priority inheritance.  While a task is
// blocked waiting for it, the owner's effective priority is raised to the
// waiter's, propagating along the chain if the owner is itself blocked on
// another mutex.  The inherited priority is dropped only when the owner
// releases the last mutex it holds, so holding several mutexes keeps the
// elevation until the final give.
//
// Availability is tracked separately from ownership: Reset leaves the
// mutex unowned but unavailable, which is the state an interrupt-given
// mutex cycles through.
type Mutex struct {
	k *Kernel

	avail     bool
	owner     *Task
	depth     int
	recursive bool
	waiters   waitList
}

// NewMutex creates an available, unowned mutex.
func (k *Kernel) NewMutex() *Mutex {
	return &Mutex{k: k, avail: true}
}

// NewRecursiveMutex creates a mutex the owner may re-take; it becomes
// available again after a matching number of gives.
func (k *Kernel) NewRecursiveMutex() *Mutex {
	return &Mutex{k: k, avail: true, recursive: true}
}

// Take acquires the mutex, blocking up to timeout ticks.  NoBlock fails
// immediately if the mutex is unavailable; Forever never times out.
// Returns ErrTimedOut when the wait expires unsatisfied.
func (m *Mutex) Take(timeout Tick) error {
	k := m.k
	k.mu.Lock()
	defer k.mu.Unlock()

	t := k.current
	deadline := k.deadlineLocked(timeout)
	for {
		if m.avail {
			m.avail = false
			m.owner = t
			m.depth = 1
			t.mutexesHeld++
			return nil
		}
		if m.recursive && m.owner == t {
			m.depth++
			return nil
		}
		if timeout == NoBlock || !k.started || (deadline != Forever && deadline <= k.tick) {
			return ErrTimedOut
		}
		m.inheritLocked(t)
		t.blockedOn = m
		if !k.blockOn(&m.waiters, deadline) {
			t.blockedOn = nil
			return ErrTimedOut
		}
	}
}

// inheritLocked raises the owner's effective priority to the waiter's and
// walks the waits-for chain iteratively so a blocked owner passes the
// bump along.  A cycle in the chain is a programming error and asserts.
func (m *Mutex) inheritLocked(waiter *Task) {
	k := m.k
	hops := 0
	cur := m
	for cur != nil && cur.owner != nil {
		owner := cur.owner
		if owner.priority >= waiter.priority {
			break
		}
		recordTrace(EvtInherit, k.tick, owner.priority, waiter.priority, owner.name)
		k.setEffectiveLocked(owner, waiter.priority)
		cur = owner.blockedOn
		hops++
		assert(hops <= len(k.tasks), "mutex waits-for cycle")
	}
}

// Give releases the mutex.  The caller must be the owner; a recursive
// mutex only becomes available once every nested Take has been matched.
// Dropping the last held mutex reverts the caller to its base priority.
// The highest-priority waiter, if any, is readied and acquires the mutex
// when it next runs.
func (m *Mutex) Give() error {
	k := m.k
	k.mu.Lock()
	defer k.mu.Unlock()

	t := k.current
	if m.owner != t {
		return ErrNotOwner
	}
	if m.recursive && m.depth > 1 {
		m.depth--
		return nil
	}
	m.depth = 0
	m.owner = nil
	m.avail = true
	t.mutexesHeld--
	if t.mutexesHeld == 0 && t.priority != t.basePriority {
		recordTrace(EvtDisinherit, k.tick, t.priority, t.basePriority, t.name)
		k.setEffectiveLocked(t, t.basePriority)
	}
	if w := m.waiters.popHighest(); w != nil {
		k.wakeLocked(w)
	}
	k.rescheduleLocked()
	return nil
}

// GiveFromISR makes the mutex available from interrupt context.  It
// fails with ErrAlreadyGiven when the mutex is already available, which
// is why a second consecutive interrupt give with no take in between is
// rejected.  Ownership bookkeeping and priority inheritance are not
// touched; interrupt gives are only meaningful for mutexes whose take and
// give otherwise happen in task context.  Reports via higherWoken whether
// a woken waiter outranks the running task, in which case the interrupt
// epilogue should request a yield.
func (m *Mutex) GiveFromISR() (higherWoken bool, err error) {
	k := m.k
	k.mu.Lock()
	defer k.mu.Unlock()

	if m.avail {
		return false, ErrAlreadyGiven
	}
	if m.owner != nil {
		// Giving away a task-held mutex from an interrupt would corrupt
		// the inheritance bookkeeping.
		return false, ErrNotOwner
	}
	m.avail = true
	if w := m.waiters.popHighest(); w != nil {
		k.wakeLocked(w)
		higherWoken = k.switchPending
	}
	return higherWoken, nil
}

// Reset forces the mutex to the unowned, unavailable state, as if it had
// been created and then taken by a task that no longer exists.  Used to
// re-arm a mutex between interrupt-give cycles.  Resetting a mutex that
// still has an owner releases the owner's bookkeeping first.
func (m *Mutex) Reset() {
	k := m.k
	k.mu.Lock()
	defer k.mu.Unlock()

	if t := m.owner; t != nil {
		t.mutexesHeld--
		if t.mutexesHeld == 0 && t.priority != t.basePriority {
			k.setEffectiveLocked(t, t.basePriority)
		}
		m.owner = nil
	}
	m.depth = 0
	m.avail = false
}

// Owner returns the task currently holding the mutex, or nil.
func (m *Mutex) Owner() *Task {
	m.k.mu.Lock()
	defer m.k.mu.Unlock()
	return m.owner
}

// Available reports whether a Take would succeed without blocking.
func (m *Mutex) Available() bool {
	m.k.mu.Lock()
	defer m.k.mu.Unlock()
	return m.avail
}
