package kernel

import "testing"

func TestQueueFIFOOrder(t *testing.T) {
	k := New(Config{})
	k.Start(1)

	q := k.NewQueue(3)
	for _, v := range []int{10, 20, 30} {
		if err := q.Send(v, NoBlock); err != nil {
			t.Errorf("Expected send of %d to succeed, got %v", v, err)
		}
	}
	if err := q.Send(40, NoBlock); err != ErrQueueFull {
		t.Errorf("Expected send to a full queue to fail, got %v", err)
	}
	if got := q.Len(); got != 3 {
		t.Errorf("Expected length 3, got %d", got)
	}

	for _, want := range []int{10, 20, 30} {
		got, err := q.Receive(NoBlock)
		if err != nil {
			t.Errorf("Expected receive to succeed, got %v", err)
		}
		if got != want {
			t.Errorf("Expected %d, got %v", want, got)
		}
	}
	if _, err := q.Receive(NoBlock); err != ErrQueueEmpty {
		t.Errorf("Expected receive from an empty queue to fail, got %v", err)
	}
}

func TestQueueBlockingReceive(t *testing.T) {
	k := New(Config{})
	k.Start(1)

	q := k.NewQueue(1)
	var got any
	worker := k.CreateTask("receiver", 2, func() {
		v, err := q.Receive(Forever)
		if err != nil {
			t.Errorf("Expected receive to succeed, got %v", err)
		}
		got = v
	})
	if worker.State() != TaskBlocked {
		t.Errorf("Expected receiver blocked on the empty queue, got %v", worker.State())
	}
	if err := q.Send("ping", NoBlock); err != nil {
		t.Errorf("Expected send to succeed, got %v", err)
	}
	if got != "ping" {
		t.Errorf("Expected receiver to get 'ping', got %v", got)
	}
}

func TestQueueBlockingSend(t *testing.T) {
	k := New(Config{})
	k.Start(1)

	q := k.NewQueue(1)
	if err := q.Send(1, NoBlock); err != nil {
		t.Errorf("Expected send to succeed, got %v", err)
	}

	// A lower priority drainer runs only once the sender blocks.
	k.CreateTask("drainer", 0, func() {
		if _, err := q.Receive(NoBlock); err != nil {
			t.Errorf("Expected drain to succeed, got %v", err)
		}
	})
	if err := q.Send(2, 10); err != nil {
		t.Errorf("Expected blocked send to complete after the drain, got %v", err)
	}
	got, err := q.Receive(NoBlock)
	if err != nil || got != 2 {
		t.Errorf("Expected to receive 2, got %v (%v)", got, err)
	}
}

func TestQueueSendTimeout(t *testing.T) {
	k := New(Config{})
	k.Start(1)

	q := k.NewQueue(1)
	q.Send(1, NoBlock)
	before := k.TickCount()
	if err := q.Send(2, 5); err != ErrQueueFull {
		t.Errorf("Expected ErrQueueFull after the wait, got %v", err)
	}
	if got := k.TickCount() - before; got != 5 {
		t.Errorf("Expected a 5 tick wait, got %d", got)
	}
}

func TestQueueSendFromISR(t *testing.T) {
	k := New(Config{})
	k.Start(1)

	q := k.NewQueue(1)
	received := false
	k.CreateTask("receiver", 2, func() {
		if _, err := q.Receive(Forever); err != nil {
			t.Errorf("Expected receive to succeed, got %v", err)
		}
		received = true
	})

	higher, err := q.SendFromISR(7)
	if err != nil {
		t.Errorf("Expected interrupt send to succeed, got %v", err)
	}
	if !higher {
		t.Errorf("Expected a higher priority woken report")
	}
	k.Yield()
	if !received {
		t.Errorf("Expected the receiver to run after the yield")
	}

	q.Send(1, NoBlock)
	if _, err := q.SendFromISR(2); err != ErrQueueFull {
		t.Errorf("Expected interrupt send to a full queue to fail, got %v", err)
	}
}

// Block times clamp to zero before the scheduler starts so startup code
// can pre-load queues without deadlocking.
func TestQueueBlockTimeClampsBeforeStart(t *testing.T) {
	k := New(Config{})

	q := k.NewQueue(1)
	if err := q.Send(1, Forever); err != nil {
		t.Errorf("Expected pre-start send to succeed, got %v", err)
	}
	if err := q.Send(2, Forever); err != ErrQueueFull {
		t.Errorf("Expected pre-start send to a full queue to fail fast, got %v", err)
	}
	if _, err := q.Receive(NoBlock); err != nil {
		t.Errorf("Expected receive to succeed, got %v", err)
	}
	if _, err := q.Receive(Forever); err != ErrQueueEmpty {
		t.Errorf("Expected pre-start receive from an empty queue to fail fast, got %v", err)
	}
}
