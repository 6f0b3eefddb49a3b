package kernel

// Queue is a bounded FIFO message queue with blocking send and receive.
// Before the scheduler starts, block times clamp to zero so the queue can
// be pre-loaded without deadlocking the startup code.
type Queue struct {
	k *Kernel

	items []any
	cap   int

	sendWaiters waitList // blocked because the queue was full
	recvWaiters waitList // blocked because the queue was empty
}

// NewQueue creates a queue holding up to capacity items.
func (k *Kernel) NewQueue(capacity int) *Queue {
	assert(capacity > 0, "queue capacity must be nonzero")
	return &Queue{k: k, cap: capacity}
}

// Send appends an item, blocking up to timeout ticks while the queue is
// full.  Returns ErrQueueFull when the wait expires (or immediately with
// NoBlock).
func (q *Queue) Send(item any, timeout Tick) error {
	k := q.k
	k.mu.Lock()
	defer k.mu.Unlock()

	deadline := k.deadlineLocked(timeout)
	for {
		if len(q.items) < q.cap {
			q.items = append(q.items, item)
			if w := q.recvWaiters.popHighest(); w != nil {
				k.wakeLocked(w)
			}
			k.rescheduleLocked()
			return nil
		}
		if timeout == NoBlock || !k.started || (deadline != Forever && deadline <= k.tick) {
			return ErrQueueFull
		}
		if !k.blockOn(&q.sendWaiters, deadline) {
			return ErrQueueFull
		}
	}
}

// SendFromISR appends an item from interrupt context.  It never blocks;
// higherWoken reports whether a woken receiver outranks the running task.
func (q *Queue) SendFromISR(item any) (higherWoken bool, err error) {
	k := q.k
	k.mu.Lock()
	defer k.mu.Unlock()

	if len(q.items) == q.cap {
		return false, ErrQueueFull
	}
	q.items = append(q.items, item)
	if w := q.recvWaiters.popHighest(); w != nil {
		k.wakeLocked(w)
	}
	return k.switchPending, nil
}

// Receive removes and returns the oldest item, blocking up to timeout
// ticks while the queue is empty.  Returns ErrQueueEmpty when the wait
// expires.
func (q *Queue) Receive(timeout Tick) (any, error) {
	k := q.k
	k.mu.Lock()
	defer k.mu.Unlock()

	deadline := k.deadlineLocked(timeout)
	for {
		if len(q.items) > 0 {
			item := q.items[0]
			copy(q.items, q.items[1:])
			q.items = q.items[:len(q.items)-1]
			if w := q.sendWaiters.popHighest(); w != nil {
				k.wakeLocked(w)
			}
			k.rescheduleLocked()
			return item, nil
		}
		if timeout == NoBlock || !k.started || (deadline != Forever && deadline <= k.tick) {
			return nil, ErrQueueEmpty
		}
		if !k.blockOn(&q.recvWaiters, deadline) {
			return nil, ErrQueueEmpty
		}
	}
}

// Len returns the number of items waiting in the queue.
func (q *Queue) Len() int {
	q.k.mu.Lock()
	defer q.k.mu.Unlock()
	return len(q.items)
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int { return q.cap }

// Spaces returns how many sends would succeed without blocking.
func (q *Queue) Spaces() int {
	q.k.mu.Lock()
	defer q.k.mu.Unlock()
	return q.cap - len(q.items)
}
