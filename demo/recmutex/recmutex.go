// Package recmutex is a self-checking workload for the recursive mutex.
// Three tasks share one recursive mutex:
//
//   - the controlling task takes it to a depth of ten and unwinds,
//     verifying each nested take and give, then suspends itself;
//   - the blocking task performs a blocking take, which only completes
//     once the controlling task has fully unwound and suspended, then
//     gives the mutex back and suspends too;
//   - the polling task spins on non-blocking takes at the lowest
//     priority.  It only acquires the mutex with both other tasks
//     suspended, resumes them (both immediately block on the mutex,
//     making the polling task inherit the controlling priority), gives
//     the mutex back and checks the inheritance dropped again.
package recmutex

import "gortos/kernel"

const (
	controllingPriority = 2
	blockingPriority    = 1
	pollingPriority     = 0

	maxDepth    = 10
	shortDelay  = 20
	takeTimeout = 15
)

// Suite runs the recursive mutex workload.
type Suite struct {
	k     *kernel.Kernel
	mutex *kernel.Mutex

	controlling *kernel.Task
	blocking    *kernel.Task

	controllingSuspended bool
	blockingSuspended    bool

	errored           bool
	controllingCycles uint
	blockingCycles    uint
	pollingCycles     uint
	lastControlling   uint
	lastBlocking      uint
	lastPolling       uint
}

// Start creates the three workload tasks and returns the suite handle.
func Start(k *kernel.Kernel) *Suite {
	s := &Suite{k: k, mutex: k.NewRecursiveMutex()}
	s.controlling = k.CreateTask("rec-ctrl", controllingPriority, s.controllingTask)
	s.blocking = k.CreateTask("rec-block", blockingPriority, s.blockingTask)
	k.CreateTask("rec-poll", pollingPriority, s.pollingTask)
	return s
}

func (s *Suite) fail() { s.errored = true }

func (s *Suite) controllingTask() {
	for {
		// Giving before taking must fail.  First time through the mutex
		// is unused; afterwards the polling task holds it at this point.
		if s.mutex.Give() == nil {
			s.fail()
		}

		for i := 0; i < maxDepth; i++ {
			// The first take may block while the polling task holds the
			// mutex; the polling task inherits this priority and must
			// give it back well inside the timeout.
			if s.mutex.Take(takeTimeout) != nil {
				s.fail()
			}
			// Let the blocking and polling tasks run against the held
			// mutex so they block or fail as expected.
			s.k.Delay(shortDelay)
		}

		for i := 0; i < maxDepth; i++ {
			s.k.Delay(shortDelay)
			if s.mutex.Give() != nil {
				s.fail()
			}
		}

		// Fully unwound, so another give must fail.
		if s.mutex.Give() == nil {
			s.fail()
		}

		s.controllingCycles++
		s.controllingSuspended = true
		s.k.CurrentTask().Suspend()
		s.controllingSuspended = false
	}
}

func (s *Suite) blockingTask() {
	for {
		// Blocks until the controlling task has fully unwound, and does
		// not run until it has suspended itself.
		if s.mutex.Take(kernel.Forever) == nil {
			if !s.controllingSuspended {
				s.fail()
			}
			if s.mutex.Give() != nil {
				s.fail()
			}
			s.blockingSuspended = true
			s.k.CurrentTask().Suspend()
			s.blockingSuspended = false
		} else {
			s.fail()
		}

		// The controlling and blocking tasks move in lock step.
		if s.controllingCycles != s.blockingCycles+1 {
			s.fail()
		}
		s.blockingCycles++
	}
}

func (s *Suite) pollingTask() {
	self := s.k.CurrentTask()
	for {
		if s.mutex.Take(kernel.NoBlock) == nil {
			// Only obtainable once both other tasks are suspended.
			if !s.blockingSuspended || !s.controllingSuspended {
				s.fail()
			}
			if s.controlling.State() != kernel.TaskSuspended ||
				s.blocking.State() != kernel.TaskSuspended {
				s.fail()
			}
			s.pollingCycles++

			// Resuming the higher priority tasks makes each of them run
			// and block on the mutex held here, so this task inherits
			// the controlling priority.
			s.blocking.Resume()
			s.controlling.Resume()

			if s.blockingSuspended || s.controllingSuspended {
				s.fail()
			}
			if self.Priority() != controllingPriority {
				s.fail()
			}
			if s.controlling.State() != kernel.TaskBlocked ||
				s.blocking.State() != kernel.TaskBlocked {
				s.fail()
			}

			if s.mutex.Give() != nil {
				s.fail()
			}
			if self.Priority() != pollingPriority {
				s.fail()
			}
		}
		s.k.Yield()
	}
}

// StillRunning reports whether all three tasks have cycled since the
// previous call and no check has failed.
func (s *Suite) StillRunning() bool {
	if s.errored {
		return false
	}
	ok := s.controllingCycles != s.lastControlling &&
		s.blockingCycles != s.lastBlocking &&
		s.pollingCycles != s.lastPolling
	s.lastControlling = s.controllingCycles
	s.lastBlocking = s.blockingCycles
	s.lastPolling = s.pollingCycles
	return ok
}
