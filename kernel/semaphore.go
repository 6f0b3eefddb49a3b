package kernel

// Semaphore is a counting semaphore with a bounded count.  A binary
// semaphore is the max=1 specialization; unlike Mutex it carries no
// ownership and no priority inheritance.
type Semaphore struct {
	k *Kernel

	count   uint
	max     uint
	waiters waitList
}

// NewSemaphore creates a counting semaphore with the given maximum and
// initial count.
func (k *Kernel) NewSemaphore(max, initial uint) *Semaphore {
	assert(max > 0, "semaphore max count must be nonzero")
	assert(initial <= max, "semaphore initial count exceeds max")
	return &Semaphore{k: k, count: initial, max: max}
}

// NewBinarySemaphore creates an empty binary semaphore.
func (k *Kernel) NewBinarySemaphore() *Semaphore {
	return k.NewSemaphore(1, 0)
}

// Take decrements the count, blocking up to timeout ticks while it is
// zero.  Returns ErrTimedOut when the wait expires.
func (s *Semaphore) Take(timeout Tick) error {
	k := s.k
	k.mu.Lock()
	defer k.mu.Unlock()

	deadline := k.deadlineLocked(timeout)
	for {
		if s.count > 0 {
			s.count--
			return nil
		}
		if timeout == NoBlock || !k.started || (deadline != Forever && deadline <= k.tick) {
			return ErrTimedOut
		}
		if !k.blockOn(&s.waiters, deadline) {
			return ErrTimedOut
		}
	}
}

// Give increments the count.  It never blocks; at the maximum count it
// fails with ErrSemaphoreFull.
func (s *Semaphore) Give() error {
	k := s.k
	k.mu.Lock()
	defer k.mu.Unlock()

	if err := s.giveLocked(); err != nil {
		return err
	}
	k.rescheduleLocked()
	return nil
}

// GiveFromISR is the interrupt-context give.  Instead of switching
// context it reports via higherWoken whether a woken waiter outranks the
// running task.
func (s *Semaphore) GiveFromISR() (higherWoken bool, err error) {
	k := s.k
	k.mu.Lock()
	defer k.mu.Unlock()

	if err := s.giveLocked(); err != nil {
		return false, err
	}
	return k.switchPending, nil
}

func (s *Semaphore) giveLocked() error {
	if s.count == s.max {
		return ErrSemaphoreFull
	}
	s.count++
	if w := s.waiters.popHighest(); w != nil {
		s.k.wakeLocked(w)
	}
	return nil
}

// Count returns the current count.
func (s *Semaphore) Count() uint {
	s.k.mu.Lock()
	defer s.k.mu.Unlock()
	return s.count
}

// Spaces returns how many gives would succeed before the semaphore is
// full.
func (s *Semaphore) Spaces() uint {
	s.k.mu.Lock()
	defer s.k.mu.Unlock()
	return s.max - s.count
}
