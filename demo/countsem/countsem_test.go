package countsem

import (
	"testing"

	"gortos/kernel"
)

func TestCountingSemaphoreTasksKeepRunning(t *testing.T) {
	k := kernel.New(kernel.Config{})
	k.Start(1)

	s := Start(k, 0)
	for i := 0; i < 5; i++ {
		k.Delay(50)
		if !s.StillRunning() {
			t.Errorf("Expected suite still running at check %d", i)
		}
	}
}

func TestStillRunningDetectsStall(t *testing.T) {
	k := kernel.New(kernel.Config{})
	k.Start(1)

	s := &Suite{k: k}
	if s.StillRunning() {
		t.Errorf("Expected a stalled suite to report not running")
	}
}
