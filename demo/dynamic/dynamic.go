// Package dynamic is a self-checking workload for dynamic priority
// manipulation and scheduler suspension.
//
// Three tasks share a counter.  The continuous count task increments it
// forever, raising its own priority around each increment for exclusive
// access.  The limited count task increments it to a fixed limit and
// suspends itself.  The controller alternates between monitoring the
// continuous task (suspending it to snapshot the counter, and locking
// the scheduler to compare) and driving the limited task through a full
// count.  A further pair of tasks exchanges values over a queue with the
// scheduler suspended around every send and receive.
package dynamic

import "gortos/kernel"

const (
	counterPriority    = 0
	limitedPriority    = 1
	controllerPriority = 0
	queuePriority      = 0

	sleepTime     = 128
	monitorLoops  = 5
	counterLimit  = 0xff
	suspendedQLen = 1
)

// Suite runs the dynamic priority workload.
type Suite struct {
	k *kernel.Kernel

	continuous *kernel.Task
	limited    *kernel.Task

	counter uint32

	queue         *kernel.Queue
	valueToSend   uint32
	expectedValue uint32

	errored    bool
	checkVar   uint
	lastCheck  uint
	lastExpect uint32
}

// Start creates the five workload tasks and returns the suite handle.
func Start(k *kernel.Kernel) *Suite {
	s := &Suite{k: k, queue: k.NewQueue(suspendedQLen)}
	s.continuous = k.CreateTask("dyn-cont", counterPriority, s.continuousTask)
	s.limited = k.CreateTask("dyn-lim", limitedPriority, s.limitedTask)
	k.CreateTask("dyn-ctrl", controllerPriority, s.controllerTask)
	k.CreateTask("dyn-tx", queuePriority, s.queueSendTask)
	k.CreateTask("dyn-rx", queuePriority, s.queueReceiveTask)
	return s
}

func (s *Suite) fail() { s.errored = true }

// continuousTask counts the shared variable up forever.  The priority
// raise keeps the controller off the variable during the increment.
func (s *Suite) continuousTask() {
	self := s.k.CurrentTask()
	for {
		self.SetPriority(counterPriority + 1)
		if self.Priority() != counterPriority+1 {
			s.fail()
		}
		s.counter++
		self.SetPriority(counterPriority)

		s.k.Yield()
		if self.Priority() != counterPriority {
			s.fail()
		}
	}
}

// limitedTask counts the shared variable up to the limit and suspends.
// It outranks the controller, so once resumed the controller does not
// run again until the count is complete.
func (s *Suite) limitedTask() {
	self := s.k.CurrentTask()

	// Runs before the controller is ready for it; park immediately.
	self.Suspend()

	for {
		s.counter++
		if s.counter >= counterLimit {
			self.Suspend()
		}
	}
}

func (s *Suite) controllerTask() {
	for {
		s.counter = 0

		// First section: watch the continuous count task make progress.
		for i := 0; i < monitorLoops; i++ {
			// Snapshot the counter with the incrementing task suspended.
			s.continuous.Suspend()
			if s.continuous.State() != kernel.TaskSuspended {
				s.fail()
			}
			snapshot := s.counter
			s.continuous.Resume()
			if s.continuous.State() != kernel.TaskReady {
				s.fail()
			}

			s.k.Delay(sleepTime)

			// Compare under a locked scheduler, purely to exercise it.
			s.k.SuspendScheduler()
			if snapshot == s.counter {
				s.fail()
			}
			s.k.ResumeScheduler()
		}

		// Second section: drive the limited count task through a full
		// count.  It has the higher priority, so this task does not run
		// again until the limited task has suspended itself.
		s.continuous.Suspend()
		s.counter = 0
		if s.limited.State() != kernel.TaskSuspended {
			s.fail()
		}
		s.limited.Resume()
		if s.limited.State() != kernel.TaskSuspended {
			s.fail()
		}
		if s.counter != counterLimit {
			s.fail()
		}

		if !s.errored {
			s.checkVar++
		}
		s.continuous.Resume()
	}
}

// queueSendTask posts to the queue with the scheduler suspended; sends
// must not block there.
func (s *Suite) queueSendTask() {
	for {
		s.k.SuspendScheduler()
		if s.queue.Send(s.valueToSend, kernel.NoBlock) != nil {
			s.fail()
		}
		s.k.ResumeScheduler()

		s.k.Delay(sleepTime)
		s.valueToSend++
	}
}

// queueReceiveTask polls the queue with the scheduler suspended, nesting
// the suspension to exercise the depth counting.
func (s *Suite) queueReceiveTask() {
	for {
		var got any
		for {
			s.k.SuspendScheduler()
			s.k.SuspendScheduler()
			v, err := s.queue.Receive(kernel.NoBlock)
			s.k.ResumeScheduler()
			s.k.ResumeScheduler()
			if err == nil {
				got = v
				break
			}
			s.k.Yield()
		}

		if got != s.expectedValue {
			s.fail()
		} else {
			s.expectedValue++
		}
	}
}

// StillRunning reports whether the controller and the queue pair have
// made progress since the previous call and no check has failed.
func (s *Suite) StillRunning() bool {
	if s.errored {
		return false
	}
	ok := s.checkVar != s.lastCheck && s.expectedValue != s.lastExpect
	s.lastCheck = s.checkVar
	s.lastExpect = s.expectedValue
	return ok
}
