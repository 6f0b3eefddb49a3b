package kernel

import (
	"strconv"
	"sync"
)

// DebugWriter is a function type for writing debug messages.
type DebugWriter func(string)

// TraceEvent captures a scheduling event for post-mortem analysis.
type TraceEvent struct {
	EventType uint8
	Tick      Tick
	Value1    int // context-dependent, usually a priority
	Value2    int
	Name      string // task or timer name
}

// Event type codes.
const (
	EvtSwitch     = 1 // context switch to a task
	EvtWake       = 2 // blocked task readied by an event
	EvtTimeout    = 3 // blocked task readied by its deadline
	EvtInherit    = 4 // effective priority raised through a mutex
	EvtDisinherit = 5 // effective priority reverted to base
	EvtTimerFire  = 6 // timer callback invoked
	EvtTimerArm   = 7 // timer inserted into the active list
)

const traceRingSize = 64 // last 64 events kept for post-mortem

var (
	// debugPrintln is the global debug print function, settable by the
	// embedding program.  No-op by default.
	debugPrintln DebugWriter = func(string) {}

	// debugEnabled controls whether debug output is active.  Disabled by
	// default; tracing still records to the ring.
	debugEnabled bool

	traceMu       sync.Mutex
	traceRing     [traceRingSize]TraceEvent
	traceRingHead int
	traceEnabled  bool
)

// SetDebugWriter sets the platform-specific debug output function.
// This allows programs to redirect output to stdout, UART, USB, etc.
func SetDebugWriter(w DebugWriter) {
	debugPrintln = w
}

// SetDebugEnabled enables or disables debug output.
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// SetTraceEnabled enables or disables trace event capture.
func SetTraceEnabled(enabled bool) {
	traceMu.Lock()
	traceEnabled = enabled
	traceMu.Unlock()
}

// DebugPrintln writes a debug message using the configured writer.
func DebugPrintln(msg string) {
	if debugEnabled {
		debugPrintln(msg)
	}
}

// recordTrace captures one event in the ring buffer.  Non-blocking and
// cheap; safe to call with the kernel lock held.
func recordTrace(eventType uint8, tick Tick, v1, v2 int, name string) {
	traceMu.Lock()
	if traceEnabled {
		traceRing[traceRingHead] = TraceEvent{
			EventType: eventType,
			Tick:      tick,
			Value1:    v1,
			Value2:    v2,
			Name:      name,
		}
		traceRingHead = (traceRingHead + 1) % traceRingSize
	}
	traceMu.Unlock()
}

// DumpTraceRing writes the captured events, oldest first, through the
// debug writer.  Call after stopping the workload, never from a hot path.
func DumpTraceRing() {
	traceMu.Lock()
	defer traceMu.Unlock()

	debugPrintln("[TRACE] === Scheduler Trace Dump ===")
	start := traceRingHead
	for i := 0; i < traceRingSize; i++ {
		evt := &traceRing[(start+i)%traceRingSize]
		if evt.EventType == 0 {
			continue // empty slot
		}

		var name string
		switch evt.EventType {
		case EvtSwitch:
			name = "SWITCH"
		case EvtWake:
			name = "WAKE"
		case EvtTimeout:
			name = "TIMEOUT"
		case EvtInherit:
			name = "INHERIT"
		case EvtDisinherit:
			name = "DISINHERIT"
		case EvtTimerFire:
			name = "TIMER_FIRE"
		case EvtTimerArm:
			name = "TIMER_ARM"
		default:
			name = "UNKNOWN"
		}

		debugPrintln("[TRACE] " + name +
			" tick=" + strconv.FormatUint(uint64(evt.Tick), 10) +
			" v1=" + strconv.Itoa(evt.Value1) +
			" v2=" + strconv.Itoa(evt.Value2) +
			" " + evt.Name)
	}
	debugPrintln("[TRACE] === End Dump ===")
}

// ClearTraceRing empties the trace buffer.
func ClearTraceRing() {
	traceMu.Lock()
	traceRing = [traceRingSize]TraceEvent{}
	traceRingHead = 0
	traceMu.Unlock()
}
