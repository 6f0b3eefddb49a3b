package intsem

import (
	"testing"

	"gortos/kernel"
)

func TestInterruptSemaphoreTasksKeepRunning(t *testing.T) {
	k := kernel.New(kernel.Config{})
	k.Start(2)

	s := Start(k)
	for i := 0; i < 4; i++ {
		k.Delay(1500)
		if !s.StillRunning() {
			t.Errorf("Expected suite still running at check %d", i)
		}
	}
	if s.errored.Load() {
		t.Errorf("Expected no inheritance or count check failures")
	}
}

func TestSecondInterruptGiveFails(t *testing.T) {
	k := kernel.New(kernel.Config{})
	k.Start(2)

	s := Start(k)
	// Run long enough for several interrupt give periods in both the
	// same-order and opposite-order phases.
	k.Delay(3 * givePeriod * 10)
	if s.errored.Load() {
		t.Errorf("Expected the double-give check to hold across periods")
	}
	if s.masterLoops.Load() == 0 {
		t.Errorf("Expected the master task to complete at least one loop")
	}
}
