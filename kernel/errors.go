package kernel

import "errors"

// Sentinel errors returned by blocking and non-blocking kernel calls.
// Invariant violations are not errors; they panic via assert.
var (
	// ErrTimedOut is returned when a blocking call's timeout expires
	// before the awaited event occurs.
	ErrTimedOut = errors.New("timed out")

	// ErrNotOwner is returned when a task gives a mutex it does not hold.
	ErrNotOwner = errors.New("not the mutex owner")

	// ErrQueueFull is returned by non-blocking sends to a full queue.
	ErrQueueFull = errors.New("queue full")

	// ErrQueueEmpty is returned by non-blocking receives from an empty
	// queue.
	ErrQueueEmpty = errors.New("queue empty")

	// ErrSemaphoreFull is returned when a give would exceed the
	// semaphore's maximum count.
	ErrSemaphoreFull = errors.New("semaphore at maximum count")

	// ErrAlreadyGiven is returned by an interrupt-context mutex give when
	// the mutex is already available.
	ErrAlreadyGiven = errors.New("mutex already given")
)
