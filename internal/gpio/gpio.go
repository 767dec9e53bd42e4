// Package gpio provides the MPX bus line I/O with hardware abstraction.
// The real implementation uses the Linux GPIO character device; a second
// backend drives the bus through the modem-control lines of a serial port.
// The fake implementation allows testing without hardware.
//
// All levels crossing this interface are logical: true means the bus is
// asserted, false means released (idle). Polarity is handled per line by
// PinConfig.
package gpio

import "time"

// PinConfig describes one bus line.
type PinConfig struct {
	// Pin is the line offset (BCM numbering on a Raspberry Pi).
	Pin int
	// Inverted means a physical 1 is the asserted level. The usual
	// transistor interface inverts both lines.
	Inverted bool
}

// Edge is a level change on the receive line.
type Edge struct {
	Line     int
	Asserted bool          // level after the edge
	Time     time.Duration // monotonic, same base as Clock.Now
}

// EdgeHandler receives edges. It runs in the backend's edge context and
// must not block.
type EdgeHandler func(Edge)

// Bus is the pair of lines connected to the MPX bus.
type Bus interface {
	// ReadRx returns the current level of the receive line.
	ReadRx() (bool, error)

	// Watch attaches h to both edges of the receive line.
	// A nil handler detaches.
	Watch(h EdgeHandler) error

	// Drive switches the transmit line to output (true) or back to input (false).
	Drive(on bool) error

	// SetTx writes the transmit line. Only valid while driving.
	SetTx(asserted bool) error

	// RxLine identifies the receive line for edge routing.
	RxLine() int

	// Close releases line resources.
	Close() error
}

// Clock is the host's monotonic time source.
type Clock interface {
	// Now returns monotonic time on the same base as Edge.Time.
	Now() time.Duration
	// Delay busy-waits for d.
	Delay(d time.Duration)
	// Yield lets other goroutines run.
	Yield()
}

// Default pin assignment (BCM numbering).
const (
	DefaultPinRx = 17
	DefaultPinTx = 27
)
