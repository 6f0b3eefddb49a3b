package kernel

import "testing"

func TestOneShotTimerFiresOnce(t *testing.T) {
	k := New(Config{})
	k.Start(1)

	count := 0
	tm := k.NewTimer("oneshot", 10, false, nil, func(*Timer) { count++ })
	if tm.IsActive() {
		t.Errorf("Expected a fresh timer to be dormant")
	}
	if err := tm.Start(NoBlock); err != nil {
		t.Errorf("Expected start to succeed, got %v", err)
	}
	if !tm.IsActive() {
		t.Errorf("Expected timer active after the start command was processed")
	}

	k.Delay(25)
	if count != 1 {
		t.Errorf("Expected exactly one fire, got %d", count)
	}
	if tm.IsActive() {
		t.Errorf("Expected one-shot timer dormant after firing")
	}
}

// Over a window D the auto-reload timer with period P fires D/P times,
// never more.
func TestAutoReloadTimerRate(t *testing.T) {
	k := New(Config{})
	k.Start(1)

	count := 0
	tm := k.NewTimer("reload", 10, true, nil, func(*Timer) { count++ })
	if err := tm.Start(NoBlock); err != nil {
		t.Errorf("Expected start to succeed, got %v", err)
	}

	k.Delay(100)
	if count != 10 {
		t.Errorf("Expected 10 fires over 100 ticks at period 10, got %d", count)
	}
	if !tm.IsActive() {
		t.Errorf("Expected auto-reload timer still active")
	}

	if err := tm.Stop(NoBlock); err != nil {
		t.Errorf("Expected stop to succeed, got %v", err)
	}
	if tm.IsActive() {
		t.Errorf("Expected timer dormant after stop")
	}
	k.Delay(25)
	if count != 10 {
		t.Errorf("Expected no fires after stop, got %d", count)
	}
}

func TestResetRestartsThePeriod(t *testing.T) {
	k := New(Config{})
	k.Start(1)

	count := 0
	tm := k.NewTimer("reset", 10, false, nil, func(*Timer) { count++ })
	tm.Start(NoBlock)
	k.Delay(5)
	if err := tm.Reset(NoBlock); err != nil {
		t.Errorf("Expected reset to succeed, got %v", err)
	}

	// The original deadline passes without a fire; the reset one hits.
	k.Delay(8)
	if count != 0 {
		t.Errorf("Expected no fire before the reset deadline, got %d", count)
	}
	k.Delay(2)
	if count != 1 {
		t.Errorf("Expected one fire at the reset deadline, got %d", count)
	}
}

// A new period takes effect from the moment the command was issued, even
// though the service task processes it later.
func TestChangePeriodDeadlineFromIssueTime(t *testing.T) {
	k := New(Config{})
	k.Start(1)

	count := 0
	tm := k.NewTimer("change", 100, false, nil, func(*Timer) { count++ })
	tm.Start(NoBlock)
	k.Delay(10)

	if err := tm.ChangePeriod(5, NoBlock); err != nil {
		t.Errorf("Expected change period to succeed, got %v", err)
	}
	if got := tm.Period(); got != 5 {
		t.Errorf("Expected period 5 after change, got %d", got)
	}
	k.Delay(3)
	if count != 0 {
		t.Errorf("Expected no fire before the new deadline, got %d", count)
	}
	k.Delay(2)
	if count != 1 {
		t.Errorf("Expected a fire 5 ticks after the change was issued, got %d", count)
	}
}

// A start processed after its deadline already passed still fires: the
// timer is momentarily active, expires immediately, and a one-shot goes
// dormant.
func TestLateStartFiresImmediately(t *testing.T) {
	k := New(Config{TimerServicePriority: 2})
	k.Start(3) // outrank the service task to delay its processing

	count := 0
	tm := k.NewTimer("late", 10, false, nil, func(*Timer) { count++ })
	tm.Start(NoBlock)
	k.CatchUpTicks(30)

	if count != 0 {
		t.Errorf("Expected no fire while the service task was starved, got %d", count)
	}
	k.Delay(1)
	if count != 1 {
		t.Errorf("Expected an immediate fire once the late start was processed, got %d", count)
	}
	if tm.IsActive() {
		t.Errorf("Expected one-shot timer dormant after the late fire")
	}
}

// When the service task falls behind, an auto-reload timer replays one
// fire per elapsed period; a stop issued from inside its own callback
// aborts the rest of the catch-up burst.
func TestBacklogStopFromCallback(t *testing.T) {
	k := New(Config{TimerServicePriority: 2})
	k.Start(3)

	count := 0
	var tm *Timer
	tm = k.NewTimer("backlog", 1, true, nil, func(*Timer) {
		count++
		if count == 3 {
			if err := tm.Stop(NoBlock); err != nil {
				t.Errorf("Expected stop from the callback to succeed, got %v", err)
			}
		}
	})
	tm.Start(NoBlock)
	k.CatchUpTicks(10)

	k.Delay(1)
	if count != 3 {
		t.Errorf("Expected the catch-up burst to stop after 3 fires, got %d", count)
	}
	if tm.IsActive() {
		t.Errorf("Expected timer inactive after stopping itself")
	}
	k.Delay(5)
	if count != 3 {
		t.Errorf("Expected no fires after the self stop, got %d", count)
	}
}

// Before the scheduler runs the command queue can fill; block times clamp
// to zero so startup code fails fast instead of hanging.
func TestTimerCommandQueueFillsBeforeStart(t *testing.T) {
	k := New(Config{TimerQueueLength: 3})

	count := 0
	tm := k.NewTimer("early", 5, false, nil, func(*Timer) { count++ })
	for i := 0; i < 3; i++ {
		if err := tm.Start(NoBlock); err != nil {
			t.Errorf("Expected pre-start command %d to queue, got %v", i, err)
		}
	}
	if err := tm.Start(Forever); err != ErrQueueFull {
		t.Errorf("Expected the 4th command to fail fast, got %v", err)
	}

	k.Start(1)
	k.Delay(10)
	if count != 1 {
		t.Errorf("Expected the queued starts to collapse into one fire, got %d", count)
	}
}

func TestTimerAccessors(t *testing.T) {
	k := New(Config{})
	k.Start(1)

	tm := k.NewTimer("probe", 42, true, 7, func(*Timer) {})
	if got := tm.Name(); got != "probe" {
		t.Errorf("Expected name 'probe', got %q", got)
	}
	if got := tm.Period(); got != 42 {
		t.Errorf("Expected period 42, got %d", got)
	}
	if got := tm.ID(); got != 7 {
		t.Errorf("Expected id 7, got %v", got)
	}
	tm.SetID("marked")
	if got := tm.ID(); got != "marked" {
		t.Errorf("Expected id 'marked', got %v", got)
	}
}

func TestTimerDelete(t *testing.T) {
	k := New(Config{})
	k.Start(1)

	count := 0
	tm := k.NewTimer("doomed", 10, true, nil, func(*Timer) { count++ })
	tm.Start(NoBlock)
	if err := tm.Delete(NoBlock); err != nil {
		t.Errorf("Expected delete to succeed, got %v", err)
	}
	if tm.IsActive() {
		t.Errorf("Expected timer inactive after delete")
	}
	k.Delay(25)
	if count != 0 {
		t.Errorf("Expected no fires after delete, got %d", count)
	}
}
