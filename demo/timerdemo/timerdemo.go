// Package timerdemo is a self-checking workload for the software timer
// service.  A single demo task cycles through the scenarios the service
// has to get right: commands queued before the scheduler runs, expiry
// rates of auto-reload timers at staggered periods, stopping, one-shot
// behaviour, reset moving a deadline out, interrupt-context commands,
// and backlog catch-up with a timer stopping itself from its own
// callback.
package timerdemo

import (
	"sync/atomic"

	"gortos/kernel"
)

// Suite runs the timer service workload.  Create it with Start before
// the scheduler runs; the pre-scheduler phase depends on the command
// queue being undrained.
type Suite struct {
	k    *kernel.Kernel
	base kernel.Tick

	autoReload []*kernel.Timer
	counts     []uint32

	oneShot      *kernel.Timer
	oneShotCount uint32

	isrTimer *kernel.Timer
	isrCount uint32
	armISR   atomic.Bool

	backlog      *kernel.Timer
	backlogCount uint32

	errored bool
	loops   uint
	last    uint
}

// Start builds the timers, runs the pre-scheduler checks and creates the
// demo task.  The priority must be above the timer service priority so
// the backlog phase can starve the service deliberately.
func Start(k *kernel.Kernel, base kernel.Tick, priority int) *Suite {
	s := &Suite{k: k, base: base}

	n := k.Config().TimerQueueLength
	s.autoReload = make([]*kernel.Timer, n)
	s.counts = make([]uint32, n)
	for i := 0; i < n; i++ {
		slot := i
		s.autoReload[i] = k.NewTimer("demo-reload", kernel.Tick(i+1)*base, true, nil,
			func(*kernel.Timer) { s.counts[slot]++ })
	}
	s.oneShot = k.NewTimer("demo-oneshot", 3*base, false, nil,
		func(*kernel.Timer) { s.oneShotCount++ })
	s.isrTimer = k.NewTimer("demo-isr", 2*base, false, nil,
		func(*kernel.Timer) { s.isrCount++ })
	s.backlog = k.NewTimer("demo-backlog", base, true, nil, s.backlogCallback)

	s.checkQueueFillsBeforeStart()

	k.AddTickHook(s.tick)
	k.CreateTask("timer-demo", priority, s.run)
	return s
}

func (s *Suite) fail() { s.errored = true }

// checkQueueFillsBeforeStart starts every auto-reload timer while the
// scheduler is dormant.  The commands land in the service queue
// undrained, so they fill it exactly and one more start must fail fast
// even with an indefinite block time.
func (s *Suite) checkQueueFillsBeforeStart() {
	for _, tm := range s.autoReload {
		if tm.Start(kernel.NoBlock) != nil {
			s.fail()
		}
	}
	if s.oneShot.Start(kernel.Forever) != kernel.ErrQueueFull {
		s.fail()
	}
}

// tick runs in interrupt context and issues at most one start command
// when the demo task has armed it.
func (s *Suite) tick() {
	if s.armISR.CompareAndSwap(true, false) {
		if _, err := s.isrTimer.StartFromISR(); err != nil {
			s.fail()
		}
	}
}

func (s *Suite) backlogCallback(*kernel.Timer) {
	s.backlogCount++
	if s.backlogCount == 3 {
		if s.backlog.Stop(kernel.NoBlock) != nil {
			s.fail()
		}
	}
}

func (s *Suite) run() {
	// No timer may have fired before its first period elapsed.
	for _, c := range s.counts {
		if c != 0 {
			s.fail()
		}
	}
	if s.oneShotCount != 0 {
		s.fail()
	}

	// Let the service drain the pre-scheduler start commands before the
	// first pass restarts the timers.
	s.k.Delay(1)

	for {
		s.checkAutoReloadRates()
		s.checkAutoReloadStop()
		s.checkOneShot()
		s.checkReset()
		s.checkStartFromISR()
		s.checkBacklogStopsFromCallback()

		for i := range s.counts {
			s.counts[i] = 0
		}
		s.oneShotCount = 0
		s.isrCount = 0
		s.backlogCount = 0
		s.loops++
	}
}

// checkAutoReloadRates restarts the staggered timers together and sleeps
// one beat past the longest period, then verifies each fired once per
// elapsed period.  The fire landing on the wake tick itself may still be
// queued behind this task, hence the one fire of slack.
func (s *Suite) checkAutoReloadRates() {
	for _, tm := range s.autoReload {
		if tm.Start(kernel.NoBlock) != nil {
			s.fail()
		}
	}

	window := kernel.Tick(len(s.autoReload)+1) * s.base
	s.k.Delay(window)

	for i, c := range s.counts {
		period := kernel.Tick(i+1) * s.base
		expected := uint32(window / period)
		if c != expected && c != expected-1 {
			s.fail()
		}
		if !s.autoReload[i].IsActive() {
			s.fail()
		}
	}
}

// checkAutoReloadStop stops every timer and verifies the counts freeze.
func (s *Suite) checkAutoReloadStop() {
	for _, tm := range s.autoReload {
		if tm.Stop(kernel.NoBlock) != nil {
			s.fail()
		}
	}
	s.k.Delay(1) // let the service drain the stop commands
	frozen := make([]uint32, len(s.counts))
	copy(frozen, s.counts)

	s.k.Delay(2 * kernel.Tick(len(s.autoReload)) * s.base)
	for i, c := range s.counts {
		if c != frozen[i] {
			s.fail()
		}
		if s.autoReload[i].IsActive() {
			s.fail()
		}
	}
}

// checkOneShot verifies a one-shot timer fires exactly once and goes
// dormant.
func (s *Suite) checkOneShot() {
	if s.oneShot.Start(kernel.NoBlock) != nil {
		s.fail()
	}
	s.k.Delay(5 * s.base)
	if s.oneShotCount != 1 {
		s.fail()
	}
	if s.oneShot.IsActive() {
		s.fail()
	}
}

// checkReset verifies a reset mid-period pushes the deadline out to a
// full period after the reset.
func (s *Suite) checkReset() {
	tm := s.autoReload[1] // period 2*base
	count := &s.counts[1]
	before := *count

	if tm.Start(kernel.NoBlock) != nil {
		s.fail()
	}
	s.k.Delay(s.base)
	if tm.Reset(kernel.NoBlock) != nil {
		s.fail()
	}

	// The original deadline passes without a fire.
	s.k.Delay(s.base)
	if *count != before {
		s.fail()
	}

	// The reset deadline hits.
	s.k.Delay(s.base + 1)
	if *count != before+1 {
		s.fail()
	}
	if tm.Stop(kernel.NoBlock) != nil {
		s.fail()
	}
	s.k.Delay(1)
}

// checkStartFromISR arms the tick hook to start a one-shot timer from
// interrupt context.
func (s *Suite) checkStartFromISR() {
	s.armISR.Store(true)
	s.k.Delay(4 * s.base)
	if s.isrCount != 1 {
		s.fail()
	}
	if s.isrTimer.IsActive() {
		s.fail()
	}
}

// checkBacklogStopsFromCallback starves the timer service while a
// one-tick auto-reload timer falls many periods behind.  The catch-up
// replay must deliver one fire per elapsed period until the callback
// stops its own timer, which ends the burst immediately.
func (s *Suite) checkBacklogStopsFromCallback() {
	if s.backlog.Start(kernel.NoBlock) != nil {
		s.fail()
	}
	// The service runs below this priority, so the start command and the
	// elapsed periods pile up unprocessed.
	s.k.CatchUpTicks(6 * s.base)

	s.k.Delay(1)
	if s.backlogCount != 3 {
		s.fail()
	}
	if s.backlog.IsActive() {
		s.fail()
	}

	s.k.Delay(2 * s.base)
	if s.backlogCount != 3 {
		s.fail()
	}
}

// StillRunning reports whether the demo task has completed a full pass
// since the previous call and no check has failed.
func (s *Suite) StillRunning() bool {
	if s.errored {
		return false
	}
	ok := s.loops != s.last
	s.last = s.loops
	return ok
}
