package kernel

import "testing"

// The count must stay inside [0, max]: gives beyond max and zero-timeout
// takes at zero both fail.
func TestSemaphoreBounds(t *testing.T) {
	k := New(Config{})
	k.Start(1)

	s := k.NewSemaphore(3, 0)
	for i := 0; i < 3; i++ {
		if _, err := s.GiveFromISR(); err != nil {
			t.Errorf("Expected interrupt give %d to succeed, got %v", i, err)
		}
	}
	if _, err := s.GiveFromISR(); err != ErrSemaphoreFull {
		t.Errorf("Expected give beyond max to fail, got %v", err)
	}
	if got := s.Count(); got != 3 {
		t.Errorf("Expected count 3, got %d", got)
	}
	if got := s.Spaces(); got != 0 {
		t.Errorf("Expected no spaces at max, got %d", got)
	}

	for i := 0; i < 3; i++ {
		if err := s.Take(NoBlock); err != nil {
			t.Errorf("Expected take %d to succeed, got %v", i, err)
		}
	}
	if err := s.Take(NoBlock); err != ErrTimedOut {
		t.Errorf("Expected zero-timeout take at zero count to fail, got %v", err)
	}
	if got := s.Spaces(); got != 3 {
		t.Errorf("Expected 3 spaces after draining, got %d", got)
	}
}

func TestSemaphoreGiveWakesBlockedTaker(t *testing.T) {
	k := New(Config{})
	k.Start(1)

	s := k.NewSemaphore(1, 0)
	woke := false
	worker := k.CreateTask("taker", 2, func() {
		if err := s.Take(Forever); err != nil {
			t.Errorf("Expected take to succeed, got %v", err)
		}
		woke = true
	})
	if worker.State() != TaskBlocked {
		t.Errorf("Expected taker blocked, got %v", worker.State())
	}
	if err := s.Give(); err != nil {
		t.Errorf("Expected give to succeed, got %v", err)
	}
	if !woke {
		t.Errorf("Expected the higher priority taker to run on give")
	}
	if got := s.Count(); got != 0 {
		t.Errorf("Expected count consumed by the woken taker, got %d", got)
	}
}

func TestSemaphoreTakeTimeout(t *testing.T) {
	k := New(Config{})
	k.Start(1)

	s := k.NewSemaphore(1, 0)
	before := k.TickCount()
	if err := s.Take(7); err != ErrTimedOut {
		t.Errorf("Expected ErrTimedOut, got %v", err)
	}
	if got := k.TickCount() - before; got != 7 {
		t.Errorf("Expected a 7 tick wait, got %d", got)
	}
}

// Waiters are released highest priority first, wait order breaking ties.
func TestSemaphoreReleasesInPriorityOrder(t *testing.T) {
	k := New(Config{})
	k.Start(1)

	s := k.NewSemaphore(2, 0)
	var order []string
	take := func(name string) func() {
		return func() {
			if err := s.Take(Forever); err != nil {
				t.Errorf("Expected %s take to succeed, got %v", name, err)
			}
			order = append(order, name)
			k.CurrentTask().Suspend()
		}
	}
	k.CreateTask("lo", 2, take("lo"))
	k.CreateTask("hi", 3, take("hi"))

	if err := s.Give(); err != nil {
		t.Errorf("Expected give to succeed, got %v", err)
	}
	if err := s.Give(); err != nil {
		t.Errorf("Expected give to succeed, got %v", err)
	}
	if len(order) != 2 || order[0] != "hi" || order[1] != "lo" {
		t.Errorf("Expected release order [hi lo], got %v", order)
	}
}

func TestBinarySemaphore(t *testing.T) {
	k := New(Config{})
	k.Start(1)

	s := k.NewBinarySemaphore()
	if err := s.Take(NoBlock); err != ErrTimedOut {
		t.Errorf("Expected empty binary semaphore take to fail, got %v", err)
	}
	if err := s.Give(); err != nil {
		t.Errorf("Expected give to succeed, got %v", err)
	}
	if err := s.Give(); err != ErrSemaphoreFull {
		t.Errorf("Expected second give to fail, got %v", err)
	}
	if err := s.Take(NoBlock); err != nil {
		t.Errorf("Expected take to succeed, got %v", err)
	}
}
