package kernel

// Software timers.  Armed timers live on a deadline-ordered singly-linked
// list owned by the timer service task; every mutation travels through
// the timer command queue so callers never touch the list directly.
// Callbacks run in the service task's context and may themselves issue
// timer commands.

// TimerCallback is invoked by the timer service task when a timer
// expires.  It must not block for long; every armed timer waits behind
// it.
type TimerCallback func(*Timer)

// Timer is a one-shot or auto-reload software timer.
type Timer struct {
	k          *Kernel
	name       string
	period     Tick
	autoReload bool
	callback   TimerCallback
	id         any

	active   bool
	deadline Tick
	next     *Timer
}

type timerOp uint8

const (
	opStart timerOp = iota
	opStop
	opReset
	opChangePeriod
	opDelete
)

// timerCmd is one command queue entry.  The issue time travels with the
// command so deadlines are computed as if the command were processed the
// moment it was sent, even when the service task falls behind.
type timerCmd struct {
	op     timerOp
	t      *Timer
	period Tick // opChangePeriod only
	issued Tick
}

// NewTimer creates a dormant timer.  An auto-reload timer re-arms itself
// each time it expires; a one-shot timer fires once per start or reset.
// The id is opaque storage for the callback's own bookkeeping.
func (k *Kernel) NewTimer(name string, period Tick, autoReload bool, id any, cb TimerCallback) *Timer {
	assert(period > 0, "timer period must be nonzero")
	assert(cb != nil, "timer callback required")
	return &Timer{k: k, name: name, period: period, autoReload: autoReload, id: id, callback: cb}
}

// Start arms the timer to expire one period after now.  The command is
// queued to the service task; if the command queue is full the call
// blocks up to block ticks and then fails with ErrQueueFull.
func (t *Timer) Start(block Tick) error { return t.send(opStart, 0, block) }

// Stop disarms the timer.
func (t *Timer) Stop(block Tick) error { return t.send(opStop, 0, block) }

// Reset re-arms the timer to expire one period after now, whether or not
// it was already running.
func (t *Timer) Reset(block Tick) error { return t.send(opReset, 0, block) }

// ChangePeriod sets a new period and re-arms the timer to expire one new
// period after now.
func (t *Timer) ChangePeriod(period Tick, block Tick) error {
	assert(period > 0, "timer period must be nonzero")
	return t.send(opChangePeriod, period, block)
}

// Delete disarms the timer and detaches it from the service.  The handle
// must not be used afterwards.
func (t *Timer) Delete(block Tick) error { return t.send(opDelete, 0, block) }

func (t *Timer) send(op timerOp, period Tick, block Tick) error {
	k := t.k
	cmd := timerCmd{op: op, t: t, period: period, issued: k.TickCount()}
	return k.timerQueue.Send(cmd, block)
}

// StartFromISR, StopFromISR, ResetFromISR and ChangePeriodFromISR queue
// the corresponding command from interrupt context.  They never block;
// higherWoken reports whether the service task was woken and outranks the
// running task.
func (t *Timer) StartFromISR() (bool, error) { return t.sendFromISR(opStart, 0) }

func (t *Timer) StopFromISR() (bool, error) { return t.sendFromISR(opStop, 0) }

func (t *Timer) ResetFromISR() (bool, error) { return t.sendFromISR(opReset, 0) }

func (t *Timer) ChangePeriodFromISR(period Tick) (bool, error) {
	assert(period > 0, "timer period must be nonzero")
	return t.sendFromISR(opChangePeriod, period)
}

func (t *Timer) sendFromISR(op timerOp, period Tick) (bool, error) {
	k := t.k
	k.mu.Lock()
	issued := k.tick
	k.mu.Unlock()
	return k.timerQueue.SendFromISR(timerCmd{op: op, t: t, period: period, issued: issued})
}

// IsActive reports whether the timer is armed.  A start command still
// sitting in the command queue does not count; a one-shot timer goes
// dormant the moment it fires.
func (t *Timer) IsActive() bool {
	t.k.mu.Lock()
	defer t.k.mu.Unlock()
	return t.active
}

// Period returns the timer's current period.
func (t *Timer) Period() Tick {
	t.k.mu.Lock()
	defer t.k.mu.Unlock()
	return t.period
}

// Name returns the timer's debug name.
func (t *Timer) Name() string { return t.name }

// ID returns the opaque identifier stored on the timer.
func (t *Timer) ID() any {
	t.k.mu.Lock()
	defer t.k.mu.Unlock()
	return t.id
}

// SetID replaces the opaque identifier.  Callbacks use this as cheap
// per-timer state.
func (t *Timer) SetID(id any) {
	t.k.mu.Lock()
	t.id = id
	t.k.mu.Unlock()
}

// timerLoop is the body of the timer service task.  Each pass handles at
// most one expired timer, then drains every pending command before
// looking at the list again, so a stop issued from inside a callback is
// honored before any further catch-up fire of the same timer.
func (k *Kernel) timerLoop() {
	for {
		k.mu.Lock()
		now := k.tick
		var fired *Timer
		wait := Forever
		if head := k.timerList; head != nil {
			if head.deadline <= now {
				k.timerList = head.next
				head.next = nil
				fired = head
			} else {
				wait = head.deadline - now
			}
		}
		k.mu.Unlock()

		if fired != nil {
			k.fireTimer(fired, now)
		} else if msg, err := k.timerQueue.Receive(wait); err == nil {
			k.applyTimerCommand(msg.(timerCmd))
		}

		for {
			msg, err := k.timerQueue.Receive(NoBlock)
			if err != nil {
				break
			}
			k.applyTimerCommand(msg.(timerCmd))
		}
	}
}

// fireTimer invokes one expiry.  An auto-reload timer is re-armed from
// its old deadline before the callback runs, so if the service fell
// behind the timer expires again on the next pass, once per elapsed
// period, until the re-armed deadline lands in the future.
func (k *Kernel) fireTimer(t *Timer, now Tick) {
	k.mu.Lock()
	if t.autoReload {
		k.armTimerLocked(t, t.deadline+t.period)
	} else {
		t.active = false
	}
	cb := t.callback
	recordTrace(EvtTimerFire, now, int(t.period), 0, t.name)
	k.mu.Unlock()
	cb(t)
}

// applyTimerCommand executes one command from the service queue.  Start,
// reset and change-period deadlines derive from the command's issue time;
// a deadline that has already passed fires the callback immediately.
func (k *Kernel) applyTimerCommand(c timerCmd) {
	t := c.t
	k.mu.Lock()
	now := k.tick
	k.removeTimerLocked(t)

	switch c.op {
	case opStop, opDelete:
		t.active = false
		k.mu.Unlock()
		return

	case opChangePeriod:
		t.period = c.period
	}

	deadline := c.issued + t.period
	if deadline > now {
		k.armTimerLocked(t, deadline)
		k.mu.Unlock()
		return
	}

	// The deadline passed before the command was processed.  The timer
	// still fires: an auto-reload timer is armed on the expired deadline
	// and replayed by the service loop; a one-shot fires here and stays
	// dormant.
	if t.autoReload {
		k.armTimerLocked(t, deadline)
		k.mu.Unlock()
		return
	}
	t.active = false
	cb := t.callback
	k.mu.Unlock()
	cb(t)
}

// armTimerLocked marks the timer active and inserts it into the
// deadline-ordered list, behind timers with an equal deadline.
func (k *Kernel) armTimerLocked(t *Timer, deadline Tick) {
	t.active = true
	t.deadline = deadline
	recordTrace(EvtTimerArm, k.tick, int(deadline), 0, t.name)
	var prev *Timer
	for cur := k.timerList; cur != nil && cur.deadline <= deadline; cur = cur.next {
		prev = cur
	}
	if prev == nil {
		t.next = k.timerList
		k.timerList = t
	} else {
		t.next = prev.next
		prev.next = t
	}
}

// removeTimerLocked unlinks the timer from the active list if present.
func (k *Kernel) removeTimerLocked(t *Timer) {
	var prev *Timer
	for cur := k.timerList; cur != nil; cur = cur.next {
		if cur == t {
			if prev == nil {
				k.timerList = cur.next
			} else {
				prev.next = cur.next
			}
			cur.next = nil
			return
		}
		prev = cur
	}
}
