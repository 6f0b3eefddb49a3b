// Package countsem is a self-checking workload for the counting
// semaphore.  Two tasks each own a semaphore, one created full and one
// created empty, and repeatedly count it down to zero and back up to its
// maximum, verifying the count and the failure of out-of-range gives and
// takes at every step.
package countsem

import "gortos/kernel"

const maxCount = 200

// Suite runs the counting semaphore workload.
type Suite struct {
	k *kernel.Kernel

	errored bool
	loops   [2]uint
	last    [2]uint
}

// Start creates the two workload tasks at the given priority and returns
// the suite handle used for stall checking.
func Start(k *kernel.Kernel, priority int) *Suite {
	s := &Suite{k: k}

	startAtMax := k.NewSemaphore(maxCount, maxCount)
	startAtZero := k.NewSemaphore(maxCount, 0)
	k.CreateTask("count-max", priority, func() { s.run(startAtMax, 0, true) })
	k.CreateTask("count-zero", priority, func() { s.run(startAtZero, 1, false) })
	return s
}

func (s *Suite) fail() { s.errored = true }

func (s *Suite) run(sem *kernel.Semaphore, slot int, startsFull bool) {
	if startsFull {
		s.countDown(sem, slot)
	}

	// Either way the count is now zero, so a take must fail.
	if sem.Take(kernel.NoBlock) == nil {
		s.fail()
	}

	for {
		s.countUp(sem, slot)
		s.countDown(sem, slot)
	}
}

// countDown takes the semaphore from its maximum count to zero, checking
// the count on the way and the boundary failures at both ends.
func (s *Suite) countDown(sem *kernel.Semaphore, slot int) {
	if sem.Give() == nil {
		s.fail() // give at max must fail
	}
	for i := uint(0); i < maxCount; i++ {
		if sem.Count() != maxCount-i {
			s.fail()
		}
		if sem.Take(kernel.NoBlock) != nil {
			s.fail()
		}
		s.loops[slot]++
	}
	s.k.Yield()
	if sem.Count() != 0 {
		s.fail()
	}
	if sem.Take(kernel.NoBlock) == nil {
		s.fail() // take at zero must fail
	}
}

// countUp gives the semaphore from zero to its maximum count.
func (s *Suite) countUp(sem *kernel.Semaphore, slot int) {
	if sem.Take(kernel.NoBlock) == nil {
		s.fail()
	}
	for i := uint(0); i < maxCount; i++ {
		if sem.Count() != i {
			s.fail()
		}
		if sem.Give() != nil {
			s.fail()
		}
		s.loops[slot]++
	}
	s.k.Yield()
	if sem.Give() == nil {
		s.fail() // give at max must fail
	}
}

// StillRunning reports whether both tasks have made progress since the
// previous call and no check has failed.  Call it from a lower frequency
// monitor task.
func (s *Suite) StillRunning() bool {
	if s.errored {
		return false
	}
	for i := range s.loops {
		if s.loops[i] == s.last[i] {
			return false
		}
		s.last[i] = s.loops[i]
	}
	return true
}
