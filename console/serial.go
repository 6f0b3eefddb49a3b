package console

import (
	"fmt"
	"sync"
	"time"

	"github.com/tarm/serial"
)

// SerialConfig holds serial port configuration.
type SerialConfig struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string

	// Baud rate (USB CDC devices ignore this)
	Baud int

	// Write deadline in milliseconds (0 = blocking)
	Timeout int
}

// DefaultSerialConfig returns the configuration used by the demo runner.
func DefaultSerialConfig(device string) *SerialConfig {
	return &SerialConfig{
		Device:  device,
		Baud:    115200,
		Timeout: 100,
	}
}

// SerialSink forwards lines to a serial port.
type SerialSink struct {
	mu   sync.Mutex
	port *serial.Port
	cfg  *SerialConfig
}

// OpenSerial opens the port described by cfg.
func OpenSerial(cfg *SerialConfig) (*SerialSink, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: time.Duration(cfg.Timeout) * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Device, err)
	}

	return &SerialSink{port: port, cfg: cfg}, nil
}

// Println writes one CRLF-terminated line to the port.
func (s *SerialSink) Println(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// A write error on a serial console is not actionable here; the line
	// is simply lost.
	_, _ = s.port.Write([]byte(line + "\r\n"))
}

// Close closes the port.
func (s *SerialSink) Close() error {
	if s.port != nil {
		return s.port.Close()
	}
	return nil
}
