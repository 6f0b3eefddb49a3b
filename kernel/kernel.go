// Preemptive fixed-priority task kernel: ready/delayed task registries,
// a priority-inheritance mutex, counting semaphores, bounded queues and a
// software timer service, all driven from a single tick timebase.
package kernel

import (
	"runtime"
	"sync"
	"time"
)

// Tick is the kernel time unit.  The tick counter is 64 bits wide so
// wraparound is not a concern for any realistic run time.
type Tick uint64

const (
	// Forever blocks a call indefinitely.
	Forever Tick = ^Tick(0)

	// NoBlock makes a call fail immediately instead of waiting.
	NoBlock Tick = 0
)

// ClockMode selects how the tick counter advances.
type ClockMode uint8

const (
	// ClockSimulated advances the tick counter by one on every Yield.
	// Because the idle task yields in a loop, sleeping the whole task set
	// fast-forwards time deterministically.  This is the mode used by the
	// regression suites.
	ClockSimulated ClockMode = iota

	// ClockExternal leaves the tick counter alone until AdvanceTick is
	// called, typically from a ticker goroutine (see StartTicker).
	ClockExternal
)

// Config holds the kernel build-time parameters.
type Config struct {
	NumPriorities        int       // number of priority levels, 0 .. NumPriorities-1
	Clock                ClockMode // tick source
	TimerQueueLength     int       // capacity of the timer command queue
	TimerServicePriority int       // priority of the timer service task
}

func (c *Config) applyDefaults() {
	if c.NumPriorities == 0 {
		c.NumPriorities = 5
	}
	if c.TimerQueueLength == 0 {
		c.TimerQueueLength = 10
	}
	if c.TimerServicePriority == 0 {
		c.TimerServicePriority = c.NumPriorities - 2
	}
}

// Kernel is the scheduler state: per-priority ready lists, the delayed
// list, the tick counter and the timer service.  All fields are guarded
// by mu, which stands in for the interrupt-disable critical section of a
// hardware port.
type Kernel struct {
	mu  sync.Mutex
	cfg Config

	ready   [][]*Task // per-priority FIFO of ready tasks
	delayed []*Task   // sorted by wakeTime ascending, ties in insert order
	tasks   []*Task   // all live tasks, for diagnostics and cycle checks

	current *Task
	idle    *Task
	tick    Tick
	started bool

	suspendDepth  int  // scheduler suspension nesting
	pendedTicks   Tick // ticks received while the scheduler was suspended
	switchPending bool // a reschedule is owed at the next opportunity

	tickHooks []func()

	timerQueue *Queue
	timerList  *Timer // active timers sorted by expiry
	timerTask  *Task
}

// New creates a kernel instance.  The scheduler does not run until Start
// is called; tasks and timers may be created in between.
func New(cfg Config) *Kernel {
	cfg.applyDefaults()
	assert(cfg.NumPriorities >= 2, "at least two priority levels required")
	assert(cfg.TimerServicePriority > 0 && cfg.TimerServicePriority < cfg.NumPriorities,
		"timer service priority out of range")

	k := &Kernel{cfg: cfg}
	k.ready = make([][]*Task, cfg.NumPriorities)
	k.timerQueue = k.NewQueue(cfg.TimerQueueLength)
	return k
}

// Config returns a copy of the kernel configuration.
func (k *Kernel) Config() Config {
	return k.cfg
}

// MaxPriority returns the highest usable task priority.
func (k *Kernel) MaxPriority() int {
	return k.cfg.NumPriorities - 1
}

// Start turns the calling goroutine into a task named "main" at the given
// priority and starts the scheduler, the idle task and the timer service
// task.  It returns the main task handle.  If higher-priority tasks are
// already ready they run before Start returns.
func (k *Kernel) Start(mainPriority int) *Task {
	k.mu.Lock()
	assert(!k.started, "scheduler already started")

	main := k.newTaskLocked("main", mainPriority, nil)
	main.state = TaskRunning
	k.current = main

	k.idle = k.newTaskLocked("idle", 0, k.idleLoop)
	k.timerTask = k.newTaskLocked("timer-svc", k.cfg.TimerServicePriority, k.timerLoop)

	k.started = true
	k.rescheduleLocked()
	k.mu.Unlock()
	return main
}

// Started reports whether the scheduler is running.
func (k *Kernel) Started() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.started
}

// idleLoop is the body of the idle task.  It runs whenever nothing else
// is ready, yielding continuously so that the simulated clock keeps
// moving and newly readied tasks get dispatched.
func (k *Kernel) idleLoop() {
	for {
		k.Yield()
		if k.cfg.Clock == ClockExternal {
			// Busy-wait politely while waiting for the next tick.
			runtime.Gosched()
		}
	}
}

// TickCount returns the current tick count.  Safe from both task and
// interrupt context.
func (k *Kernel) TickCount() Tick {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.tick
}

// AddTickHook registers a function invoked in interrupt context on every
// tick.  Hooks may only call the *FromISR API variants.
func (k *Kernel) AddTickHook(fn func()) {
	k.mu.Lock()
	k.tickHooks = append(k.tickHooks, fn)
	k.mu.Unlock()
}

// AdvanceTick advances the clock by one tick from interrupt context.
// With ClockExternal this is the tick interrupt; call it from a ticker
// goroutine, never from a task.
func (k *Kernel) AdvanceTick() {
	k.mu.Lock()
	k.advanceLocked(1)
	k.mu.Unlock()
}

// StartTicker drives AdvanceTick from a real-time ticker and returns a
// stop function.  Only meaningful with ClockExternal.
func (k *Kernel) StartTicker(period time.Duration) func() {
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(period)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				k.AdvanceTick()
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}

// CatchUpTicks applies n ticks in a single batch from task context, as if
// the tick interrupt had been masked for that long.  No context switch
// happens until the whole batch is applied.
func (k *Kernel) CatchUpTicks(n Tick) {
	k.mu.Lock()
	k.advanceLocked(n)
	k.rescheduleLocked()
	k.mu.Unlock()
}

// SuspendScheduler disables context switches without masking the tick
// interrupt.  Ticks received meanwhile are pended and applied on resume.
// Calls nest.
func (k *Kernel) SuspendScheduler() {
	k.mu.Lock()
	k.suspendDepth++
	k.mu.Unlock()
}

// ResumeScheduler re-enables context switches, applies any pended ticks
// and performs the switch that was deferred, if any.
func (k *Kernel) ResumeScheduler() {
	k.mu.Lock()
	assert(k.suspendDepth > 0, "scheduler not suspended")
	k.suspendDepth--
	if k.suspendDepth == 0 {
		if n := k.pendedTicks; n > 0 {
			k.pendedTicks = 0
			k.advanceLocked(n)
		}
		k.rescheduleLocked()
	}
	k.mu.Unlock()
}

// Yield gives up the processor voluntarily.  Equal-priority ready tasks
// run next in round-robin order.  With ClockSimulated each yield also
// advances the clock by one tick.
func (k *Kernel) Yield() {
	k.mu.Lock()
	if k.started && k.cfg.Clock == ClockSimulated && k.suspendDepth == 0 {
		k.advanceLocked(1)
	}
	cur := k.current
	if cur == nil || k.suspendDepth > 0 {
		k.mu.Unlock()
		return
	}
	cur.state = TaskReady
	k.pushReady(cur)
	k.switchPending = false
	k.dispatch()
	k.mu.Unlock()
}

// Delay blocks the calling task for the given number of ticks.  A zero
// delay degenerates to a yield.
func (k *Kernel) Delay(ticks Tick) {
	if ticks == 0 {
		k.Yield()
		return
	}
	k.mu.Lock()
	k.blockOn(nil, k.tick+ticks)
	k.mu.Unlock()
}

// DelayUntil blocks until *lastWake + period and advances *lastWake by
// the period, giving a drift-free fixed cadence.  It reports whether the
// call actually blocked; false means the deadline had already passed.
func (k *Kernel) DelayUntil(lastWake *Tick, period Tick) bool {
	assert(period > 0, "DelayUntil period must be nonzero")
	k.mu.Lock()
	next := *lastWake + period
	*lastWake = next
	if next <= k.tick {
		k.rescheduleLocked()
		k.mu.Unlock()
		return false
	}
	k.blockOn(nil, next)
	k.mu.Unlock()
	return true
}

// CurrentTask returns the task the caller is running as, or nil from
// interrupt context or before Start.
func (k *Kernel) CurrentTask() *Task {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.current
}

// advanceLocked applies n ticks: bumps the counter, wakes expired delayed
// tasks and runs the tick hooks.  Hooks execute with mu released since
// they re-enter through the *FromISR APIs.  Called with mu held.
func (k *Kernel) advanceLocked(n Tick) {
	for i := Tick(0); i < n; i++ {
		if k.suspendDepth > 0 {
			k.pendedTicks++
			continue
		}
		k.tick++
		k.wakeExpiredLocked()
		if cur := k.current; cur != nil && len(k.ready[cur.priority]) > 0 {
			// Time-slice among equal-priority ready tasks.
			k.switchPending = true
		}
		if len(k.tickHooks) > 0 {
			hooks := k.tickHooks
			k.mu.Unlock()
			for _, h := range hooks {
				h()
			}
			k.mu.Lock()
		}
	}
}

func assert(cond bool, msg string) {
	if !cond {
		panic("kernel: " + msg)
	}
}
