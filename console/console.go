// Package console routes kernel debug output and demo check-in lines to
// a sink.  The stdout sink colorizes PASS/FAIL status lines; the serial
// sink forwards them to a board over a raw serial port.
package console

import (
	"fmt"
	"io"
	"sync"

	"github.com/mattn/go-colorable"

	"gortos/kernel"
)

// Sink receives one line at a time.
type Sink interface {
	Println(line string)
	Close() error
}

// ANSI sequences for the status colors.
const (
	colorGreen = "\x1b[32m"
	colorRed   = "\x1b[31m"
	colorReset = "\x1b[0m"
)

// StdoutSink writes lines to stdout through a colorable writer, so the
// ANSI status colors also work on Windows consoles.
type StdoutSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewStdout returns a sink on the process stdout.
func NewStdout() *StdoutSink {
	return &StdoutSink{w: colorable.NewColorableStdout()}
}

// Println writes one line.  Lines starting with "PASS" come out green
// and lines starting with "FAIL" come out red.
func (s *StdoutSink) Println(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case hasPrefix(line, "PASS"):
		fmt.Fprintf(s.w, "%s%s%s\n", colorGreen, line, colorReset)
	case hasPrefix(line, "FAIL"):
		fmt.Fprintf(s.w, "%s%s%s\n", colorRed, line, colorReset)
	default:
		fmt.Fprintln(s.w, line)
	}
}

// Close is a no-op; stdout stays open.
func (s *StdoutSink) Close() error { return nil }

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// Attach points the kernel's debug output at the sink and enables it.
func Attach(sink Sink) {
	kernel.SetDebugWriter(sink.Println)
	kernel.SetDebugEnabled(true)
}
