package kernel

// TaskState enumerates the lifecycle states of a task.
type TaskState uint8

const (
	TaskReady TaskState = iota
	TaskRunning
	TaskBlocked
	TaskSuspended
	TaskDone
)

func (s TaskState) String() string {
	switch s {
	case TaskReady:
		return "ready"
	case TaskRunning:
		return "running"
	case TaskBlocked:
		return "blocked"
	case TaskSuspended:
		return "suspended"
	case TaskDone:
		return "done"
	}
	return "invalid"
}

// Task is a schedulable unit of execution.  Each task is backed by a
// goroutine parked on a private gate channel; the scheduler wakes exactly
// one gate at a time, so task code never runs concurrently with other
// task code.
type Task struct {
	k    *Kernel
	name string

	state        TaskState
	basePriority int // priority assigned by creation / SetPriority
	priority     int // effective priority, may be raised by inheritance

	gate chan struct{}

	// blocking bookkeeping
	wakeTime  Tick      // absolute deadline while on the delayed list
	inDelayed bool      // member of the delayed list
	waitList  *waitList // event list the task is queued on, if any
	timedOut  bool      // result handed to the blocking call on wake
	blockedOn *Mutex    // mutex the task is waiting for (inheritance walk)

	mutexesHeld int // mutexes owned, for disinheritance
}

// CreateTask creates a task running fn at the given priority.  The task
// is ready immediately; if the scheduler is running and the new task has
// a higher priority than the caller it runs before CreateTask returns.
func (k *Kernel) CreateTask(name string, priority int, fn func()) *Task {
	assert(fn != nil, "task entry function required")
	k.mu.Lock()
	t := k.newTaskLocked(name, priority, fn)
	if k.started && k.current != nil {
		k.rescheduleLocked()
	}
	k.mu.Unlock()
	return t
}

// newTaskLocked builds the task record and, when fn is non-nil, spawns
// its goroutine parked on the gate and marks it ready.  A nil fn is used
// for adopting the caller's goroutine (the "main" task).
func (k *Kernel) newTaskLocked(name string, priority int, fn func()) *Task {
	assert(priority >= 0 && priority < k.cfg.NumPriorities, "task priority out of range")
	t := &Task{
		k:            k,
		name:         name,
		state:        TaskReady,
		basePriority: priority,
		priority:     priority,
		gate:         make(chan struct{}, 1),
	}
	k.tasks = append(k.tasks, t)
	if fn != nil {
		k.pushReady(t)
		go func() {
			<-t.gate
			fn()
			k.exitCurrent()
		}()
	}
	return t
}

// exitCurrent terminates the calling task when its entry function
// returns.  The goroutine ends; the task record is dropped.
func (k *Kernel) exitCurrent() {
	k.mu.Lock()
	t := k.current
	t.state = TaskDone
	for i, o := range k.tasks {
		if o == t {
			k.tasks = append(k.tasks[:i], k.tasks[i+1:]...)
			break
		}
	}
	next := k.popHighestReady()
	next.state = TaskRunning
	k.current = next
	k.mu.Unlock()
	next.gate <- struct{}{}
}

// Name returns the task's debug name.
func (t *Task) Name() string { return t.name }

// State returns the task's current lifecycle state.
func (t *Task) State() TaskState {
	t.k.mu.Lock()
	defer t.k.mu.Unlock()
	return t.state
}

// Priority returns the task's effective priority, including any
// temporary elevation inherited through a mutex.
func (t *Task) Priority() int {
	t.k.mu.Lock()
	defer t.k.mu.Unlock()
	return t.priority
}

// BasePriority returns the priority the task will return to once all
// inherited elevation is dropped.
func (t *Task) BasePriority() int {
	t.k.mu.Lock()
	defer t.k.mu.Unlock()
	return t.basePriority
}

// SetPriority changes the task's base priority.  An elevation inherited
// through a mutex is never lowered here; it persists until the mutex is
// released.  May cause an immediate context switch.
func (t *Task) SetPriority(priority int) {
	k := t.k
	k.mu.Lock()
	assert(priority >= 0 && priority < k.cfg.NumPriorities, "task priority out of range")
	inherited := t.priority != t.basePriority
	t.basePriority = priority
	if !inherited {
		k.setEffectiveLocked(t, priority)
	} else if priority > t.priority {
		k.setEffectiveLocked(t, priority)
	}
	k.rescheduleLocked()
	k.mu.Unlock()
}

// Suspend places the task in the Suspended state.  A suspended task is
// never scheduled, regardless of events or timeouts, until Resume is
// called.  Suspending the calling task switches away immediately.
func (t *Task) Suspend() {
	k := t.k
	k.mu.Lock()
	if t.state == TaskSuspended || t.state == TaskDone {
		k.mu.Unlock()
		return
	}
	if t == k.current {
		assert(k.suspendDepth == 0, "cannot suspend self with scheduler suspended")
		t.state = TaskSuspended
		k.dispatch()
		k.mu.Unlock()
		return
	}
	k.detachLocked(t)
	t.state = TaskSuspended
	k.mu.Unlock()
}

// Resume moves a suspended task back to the ready state.  If it was
// blocked when suspended, its blocking call returns a timeout result.
func (t *Task) Resume() {
	k := t.k
	k.mu.Lock()
	if t.state == TaskSuspended {
		t.state = TaskReady
		k.pushReady(t)
		k.rescheduleLocked()
	}
	k.mu.Unlock()
}

// ResumeFromISR is the interrupt-context variant of Resume.  It reports
// whether the resumed task has a higher priority than the running task,
// in which case the interrupt epilogue should request a yield.
func (t *Task) ResumeFromISR() bool {
	k := t.k
	k.mu.Lock()
	defer k.mu.Unlock()
	if t.state != TaskSuspended {
		return false
	}
	t.state = TaskReady
	k.pushReady(t)
	woken := k.current != nil && t.priority > k.current.priority
	if woken {
		k.switchPending = true
	}
	return woken
}

// detachLocked removes a task from whatever scheduler structure it is
// currently queued on.  A task detached from a blocking wait reports a
// timeout when it eventually resumes.
func (k *Kernel) detachLocked(t *Task) {
	switch t.state {
	case TaskReady:
		k.removeReady(t)
	case TaskBlocked:
		if t.waitList != nil {
			t.waitList.remove(t)
			t.waitList = nil
		}
		k.removeDelayed(t)
		t.timedOut = true
	}
}
