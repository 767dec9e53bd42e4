package gpio

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.bug.st/serial"
)

// Compile-time interface checks.
var _ Bus = (*SerialBus)(nil)

// SerialBus drives the MPX bus through the modem-control lines of a serial
// port: CTS is the receive line and RTS the transmit line. The port's data
// lines are unused. Edges are found by polling CTS from a goroutine, so
// timing accuracy depends on the adapter's status latency.
type SerialBus struct {
	port    serial.Port
	rx      PinConfig
	tx      PinConfig
	clock   Clock
	handler atomic.Pointer[EdgeHandler]

	done chan struct{}
	wg   sync.WaitGroup
}

// NewSerialBus opens portName and starts watching CTS.
// rx.Pin and tx.Pin only identify the lines; the physical lines are fixed.
func NewSerialBus(portName string, rx, tx PinConfig, clock Clock) (*SerialBus, error) {
	if portName == "" {
		return nil, errors.New("serial port is required")
	}
	port, err := serial.Open(portName, &serial.Mode{BaudRate: 9600})
	if err != nil {
		return nil, fmt.Errorf("open serial port: %w", err)
	}

	b := &SerialBus{
		port:  port,
		rx:    rx,
		tx:    tx,
		clock: clock,
		done:  make(chan struct{}),
	}

	// Release the bus before anything else.
	if err := b.SetTx(false); err != nil {
		port.Close()
		return nil, err
	}

	level, err := b.ReadRx()
	if err != nil {
		port.Close()
		return nil, err
	}

	b.wg.Add(1)
	go b.pollLoop(level)
	return b, nil
}

func (b *SerialBus) pollLoop(level bool) {
	defer b.wg.Done()
	for {
		select {
		case <-b.done:
			return
		default:
		}

		now, err := b.ReadRx()
		if err != nil {
			b.clock.Yield()
			continue
		}
		if now == level {
			b.clock.Yield()
			continue
		}
		level = now
		if h := b.handler.Load(); h != nil && *h != nil {
			(*h)(Edge{Line: b.rx.Pin, Asserted: level, Time: b.clock.Now()})
		}
	}
}

// ReadRx returns the logical level of CTS.
func (b *SerialBus) ReadRx() (bool, error) {
	bits, err := b.port.GetModemStatusBits()
	if err != nil {
		return false, fmt.Errorf("read modem status: %w", err)
	}
	return bits.CTS == b.rx.Inverted, nil
}

// Watch installs the edge handler.
func (b *SerialBus) Watch(h EdgeHandler) error {
	if h == nil {
		b.handler.Store(nil)
		return nil
	}
	b.handler.Store(&h)
	return nil
}

// Drive is a no-op beyond releasing the line: RTS is always an output,
// so "input" means holding it at the released level.
func (b *SerialBus) Drive(on bool) error {
	if on {
		return nil
	}
	return b.SetTx(false)
}

// SetTx writes RTS.
func (b *SerialBus) SetTx(asserted bool) error {
	if err := b.port.SetRTS(asserted == b.tx.Inverted); err != nil {
		return fmt.Errorf("write rts: %w", err)
	}
	return nil
}

// RxLine returns the configured receive line id.
func (b *SerialBus) RxLine() int {
	return b.rx.Pin
}

// Close stops the poller, releases the bus and closes the port.
func (b *SerialBus) Close() error {
	b.handler.Store(nil)
	close(b.done)
	b.wg.Wait()

	var errs []error
	if err := b.SetTx(false); err != nil {
		errs = append(errs, err)
	}
	if err := b.port.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close serial port: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
