package kernel

// waitList is an event wait list ordered by effective task priority,
// highest first, FIFO among equals.  Mutexes, semaphores and queues each
// keep one or two of these.
type waitList struct {
	tasks []*Task
}

// add inserts t behind any already-waiting task of equal or higher
// priority.
func (l *waitList) add(t *Task) {
	i := len(l.tasks)
	for i > 0 && l.tasks[i-1].priority < t.priority {
		i--
	}
	l.tasks = append(l.tasks, nil)
	copy(l.tasks[i+1:], l.tasks[i:])
	l.tasks[i] = t
}

// popHighest removes and returns the longest-waiting highest-priority
// task, or nil if the list is empty.
func (l *waitList) popHighest() *Task {
	if len(l.tasks) == 0 {
		return nil
	}
	t := l.tasks[0]
	copy(l.tasks, l.tasks[1:])
	l.tasks = l.tasks[:len(l.tasks)-1]
	return t
}

// remove deletes t from the list if present.
func (l *waitList) remove(t *Task) {
	for i, o := range l.tasks {
		if o == t {
			copy(l.tasks[i:], l.tasks[i+1:])
			l.tasks = l.tasks[:len(l.tasks)-1]
			return
		}
	}
}

// reposition re-sorts t after a priority change.  The task moves behind
// equal-priority waiters, the same as a fresh insertion.
func (l *waitList) reposition(t *Task) {
	l.remove(t)
	l.add(t)
}
