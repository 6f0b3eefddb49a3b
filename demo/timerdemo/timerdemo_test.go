package timerdemo

import (
	"testing"

	"gortos/kernel"
)

func TestTimerDemoKeepsPassing(t *testing.T) {
	k := kernel.New(kernel.Config{})
	// The suite must exist before the scheduler starts so the command
	// queue fill check sees an undrained queue.
	s := Start(k, 10, k.MaxPriority())
	k.Start(1)

	for i := 0; i < 4; i++ {
		k.Delay(700)
		if !s.StillRunning() {
			t.Errorf("Expected a full demo pass before check %d", i)
		}
	}
}

func TestCommandQueueFillCheckedBeforeSchedulerStart(t *testing.T) {
	k := kernel.New(kernel.Config{TimerQueueLength: 4})
	s := Start(k, 5, k.MaxPriority())
	if s.errored {
		t.Errorf("Expected the pre-scheduler queue fill checks to pass")
	}

	k.Start(1)
	k.Delay(400)
	if s.errored {
		t.Errorf("Expected no check failures after the first pass")
	}
	if s.loops == 0 {
		t.Errorf("Expected at least one completed demo pass")
	}
}
