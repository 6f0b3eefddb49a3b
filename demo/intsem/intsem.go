// Package intsem is a self-checking workload for the interrupt-context
// give paths.  A tick hook stands in for the interrupt: every give
// period it gives a mutex and a counting semaphore that tasks are
// blocked on.
//
// The master task pairs with a higher priority slave to force priority
// inheritance on a shared mutex while also holding the interrupt-given
// mutex, taking and giving the two in the same and then the opposite
// order, verifying at each step that the inherited priority is kept
// until the last held mutex is released.  A third task counts the
// interrupt-given semaphore up to its maximum and drains it again.
package intsem

import (
	"sync/atomic"

	"gortos/kernel"
)

const (
	masterPriority   = 0
	slavePriority    = 1
	countingPriority = 0

	// Ticks between interrupt gives.
	givePeriod = 100

	maxCount = 3
)

// Suite runs the interrupt semaphore workload.
type Suite struct {
	k *kernel.Kernel

	isrMutex    *kernel.Mutex
	sharedMutex *kernel.Mutex
	countingSem *kernel.Semaphore
	slave       *kernel.Task

	// Shared with the tick hook, which runs in interrupt context.
	hookTicks     atomic.Uint64
	okToGiveMutex atomic.Bool
	okToGiveSem   atomic.Bool
	errored       atomic.Bool

	masterLoops   atomic.Uint32
	countingLoops atomic.Uint32
	lastMaster    uint32
	lastCounting  uint32
}

// Start creates the workload tasks, registers the tick hook and returns
// the suite handle.
func Start(k *kernel.Kernel) *Suite {
	s := &Suite{
		k:           k,
		isrMutex:    k.NewMutex(),
		sharedMutex: k.NewMutex(),
		countingSem: k.NewSemaphore(maxCount, 0),
	}
	s.slave = k.CreateTask("intsem-slave", slavePriority, s.slaveTask)
	k.CreateTask("intsem-master", masterPriority, s.masterTask)
	k.CreateTask("intsem-count", countingPriority, s.countingTask)
	k.AddTickHook(s.tick)
	return s
}

func (s *Suite) fail() { s.errored.Store(true) }

// tick runs in interrupt context on every tick and performs the gives
// once per period.
func (s *Suite) tick() {
	if s.hookTicks.Add(1)%givePeriod != 0 {
		return
	}
	if s.okToGiveMutex.Load() {
		s.isrMutex.GiveFromISR()

		// A second consecutive interrupt give must never succeed, as the
		// first has not been taken yet.
		if _, err := s.isrMutex.GiveFromISR(); err == nil {
			s.fail()
		}
	}
	if s.okToGiveSem.Load() {
		// Ignore the result: once the semaphore is full further gives
		// fail, and the counting task checks the final count instead.
		s.countingSem.GiveFromISR()
	}
}

func (s *Suite) slaveTask() {
	self := s.k.CurrentTask()
	for {
		// Parked until the master, which already holds the shared
		// mutex, resumes it; the take then blocks and forces the master
		// to inherit this priority.
		self.Suspend()
		if s.sharedMutex.Take(kernel.Forever) != nil {
			s.fail()
		}
		if s.sharedMutex.Give() != nil {
			s.fail()
		}
	}
}

func (s *Suite) masterTask() {
	for {
		s.takeAndGiveInTheSameOrder()
		s.k.Delay(givePeriod)
		s.takeAndGiveInTheOppositeOrder()
		s.k.Delay(givePeriod)
		s.masterLoops.Add(1)
	}
}

// takeAndGiveInTheSameOrder holds the shared mutex, acquires the
// interrupt mutex, then releases in the same order, checking the
// inherited priority at every step.
func (s *Suite) takeAndGiveInTheSameOrder() {
	self := s.k.CurrentTask()

	if s.slave.State() != kernel.TaskSuspended {
		s.fail()
	}
	if self.Priority() != masterPriority {
		s.fail()
	}

	if s.sharedMutex.Take(kernel.NoBlock) != nil {
		s.fail()
	}

	// The higher priority slave runs and blocks on the shared mutex,
	// lending this task its priority.
	s.slave.Resume()
	if s.slave.State() != kernel.TaskBlocked {
		s.fail()
	}
	if self.Priority() != slavePriority {
		s.fail()
	}

	// Wait a little longer than the give period so the interrupt hands
	// over the second mutex.
	s.okToGiveMutex.Store(true)
	if s.isrMutex.Take(2*givePeriod) != nil {
		s.fail()
	}
	s.okToGiveMutex.Store(false)

	// Taking again immediately must fail, it is already held.
	if s.isrMutex.Take(kernel.NoBlock) == nil {
		s.fail()
	}
	if self.Priority() != slavePriority {
		s.fail()
	}

	// Giving the interrupt mutex back must not disinherit: the shared
	// mutex the slave is waiting on is still held.
	if s.isrMutex.Give() != nil {
		s.fail()
	}
	if self.Priority() != slavePriority {
		s.fail()
	}

	// The last held mutex goes back, the priority drops and the slave
	// runs through its cycle before this task continues.
	if s.sharedMutex.Give() != nil {
		s.fail()
	}
	if self.Priority() != masterPriority {
		s.fail()
	}
	if s.slave.State() != kernel.TaskSuspended {
		s.fail()
	}

	// Re-arm the interrupt mutex for the next round.
	s.isrMutex.Reset()
}

// takeAndGiveInTheOppositeOrder is the same flow but releases the shared
// mutex first; the inherited priority must survive until the interrupt
// mutex, the last one held, is given back.
func (s *Suite) takeAndGiveInTheOppositeOrder() {
	self := s.k.CurrentTask()

	if s.slave.State() != kernel.TaskSuspended {
		s.fail()
	}
	if self.Priority() != masterPriority {
		s.fail()
	}

	if s.sharedMutex.Take(kernel.NoBlock) != nil {
		s.fail()
	}
	s.slave.Resume()
	if s.slave.State() != kernel.TaskBlocked {
		s.fail()
	}
	if self.Priority() != slavePriority {
		s.fail()
	}

	s.okToGiveMutex.Store(true)
	if s.isrMutex.Take(2*givePeriod) != nil {
		s.fail()
	}
	s.okToGiveMutex.Store(false)

	if s.isrMutex.Take(kernel.NoBlock) == nil {
		s.fail()
	}
	if self.Priority() != slavePriority {
		s.fail()
	}

	// Give the shared mutex back first.  The priority must be retained
	// because the interrupt mutex is still held.
	if s.sharedMutex.Give() != nil {
		s.fail()
	}
	if self.Priority() != slavePriority {
		s.fail()
	}

	if s.isrMutex.Give() != nil {
		s.fail()
	}
	if self.Priority() != masterPriority {
		s.fail()
	}

	s.isrMutex.Reset()
}

func (s *Suite) countingTask() {
	self := s.k.CurrentTask()
	const fillTime = givePeriod * (maxCount + 1)

	for {
		// Expect to start with the semaphore empty.
		if s.countingSem.Count() != 0 {
			s.fail()
		}

		// Let the interrupt fill it to the maximum; the extra period
		// gives it room to attempt one give too many, which must fail
		// without disturbing the count.
		s.okToGiveSem.Store(true)
		s.k.Delay(fillTime)
		s.okToGiveSem.Store(false)

		if s.countingSem.Count() != maxCount {
			s.fail()
		}
		if s.countingSem.Spaces() != 0 {
			s.fail()
		}
		s.countingLoops.Add(1)

		// Drain it without blocking.
		drained := 0
		for s.countingSem.Take(kernel.NoBlock) == nil {
			drained++
		}
		if drained != maxCount {
			s.fail()
		}

		// Now raise the priority so this task runs the moment the
		// interrupt gives, and block on the semaphore directly.
		self.SetPriority(s.k.MaxPriority())
		s.okToGiveSem.Store(true)
		if s.countingSem.Take(kernel.Forever) != nil {
			s.fail()
		}
		if s.countingSem.Take(kernel.Forever) != nil {
			s.fail()
		}
		s.okToGiveSem.Store(false)
		self.SetPriority(countingPriority)

		s.countingLoops.Add(1)
	}
}

// StillRunning reports whether the master and counting tasks have cycled
// since the previous call and no check has failed.
func (s *Suite) StillRunning() bool {
	if s.errored.Load() {
		return false
	}
	master := s.masterLoops.Load()
	counting := s.countingLoops.Load()
	ok := master != s.lastMaster && counting != s.lastCounting
	s.lastMaster = master
	s.lastCounting = counting
	return ok
}
