//go:build linux

package gpio

import (
	"fmt"
	"sync/atomic"

	"github.com/warthog618/go-gpiocdev"
)

const consumer = "mpx-bridge"

// Compile-time interface checks.
var _ Bus = (*RealBus)(nil)

// RealBus drives the MPX bus from the Linux GPIO character device.
type RealBus struct {
	chip    *gpiocdev.Chip
	rx      *gpiocdev.Line
	tx      *gpiocdev.Line
	rxPin   int
	txLow   bool // tx asserted level is physical 0
	handler atomic.Pointer[EdgeHandler]
}

// NewRealBus requests the receive and transmit lines on the given chip.
// The receive line is watched on both edges from the start; edges are
// dropped until Watch installs a handler.
func NewRealBus(chipName string, rx, tx PinConfig) (*RealBus, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	b := &RealBus{
		chip:  chip,
		rxPin: rx.Pin,
		txLow: !tx.Inverted,
	}

	// Asserted is logical 1 on both lines. Non-inverted wiring asserts
	// with a physical 0, so those lines are requested active-low.
	rxOpts := []gpiocdev.LineReqOption{
		gpiocdev.AsInput,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(b.onEvent),
	}
	if !rx.Inverted {
		rxOpts = append(rxOpts, gpiocdev.AsActiveLow)
	}
	rxLine, err := chip.RequestLine(rx.Pin, rxOpts...)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request rx pin %d: %w", rx.Pin, err)
	}

	// The transmit line idles as an input so the bus stays released.
	txOpts := []gpiocdev.LineReqOption{gpiocdev.AsInput}
	if b.txLow {
		txOpts = append(txOpts, gpiocdev.AsActiveLow)
	}
	txLine, err := chip.RequestLine(tx.Pin, txOpts...)
	if err != nil {
		rxLine.Close()
		chip.Close()
		return nil, fmt.Errorf("request tx pin %d: %w", tx.Pin, err)
	}

	b.rx = rxLine
	b.tx = txLine
	return b, nil
}

func (b *RealBus) onEvent(evt gpiocdev.LineEvent) {
	h := b.handler.Load()
	if h == nil || *h == nil {
		return
	}
	(*h)(Edge{
		Line:     evt.Offset,
		Asserted: evt.Type == gpiocdev.LineEventRisingEdge,
		Time:     evt.Timestamp,
	})
}

// ReadRx returns the logical level of the receive line.
func (b *RealBus) ReadRx() (bool, error) {
	v, err := b.rx.Value()
	if err != nil {
		return false, fmt.Errorf("read rx pin: %w", err)
	}
	return v == 1, nil
}

// Watch installs the edge handler.
func (b *RealBus) Watch(h EdgeHandler) error {
	if h == nil {
		b.handler.Store(nil)
		return nil
	}
	b.handler.Store(&h)
	return nil
}

// Drive switches the transmit line between output (released) and input.
func (b *RealBus) Drive(on bool) error {
	if on {
		if err := b.tx.Reconfigure(b.txConfig(gpiocdev.AsOutput(0))...); err != nil {
			return fmt.Errorf("tx pin to output: %w", err)
		}
		return nil
	}
	if err := b.tx.Reconfigure(b.txConfig(gpiocdev.AsInput)...); err != nil {
		return fmt.Errorf("tx pin to input: %w", err)
	}
	return nil
}

func (b *RealBus) txConfig(dir gpiocdev.LineConfigOption) []gpiocdev.LineConfigOption {
	if b.txLow {
		return []gpiocdev.LineConfigOption{dir, gpiocdev.AsActiveLow}
	}
	return []gpiocdev.LineConfigOption{dir}
}

// SetTx writes the logical level of the transmit line.
func (b *RealBus) SetTx(asserted bool) error {
	v := 0
	if asserted {
		v = 1
	}
	if err := b.tx.SetValue(v); err != nil {
		return fmt.Errorf("write tx pin: %w", err)
	}
	return nil
}

// RxLine returns the receive line offset.
func (b *RealBus) RxLine() int {
	return b.rxPin
}

// Close releases GPIO resources. The transmit line is returned to input
// first so the bus is never left asserted.
func (b *RealBus) Close() error {
	var errs []error

	b.handler.Store(nil)
	if b.tx != nil {
		if err := b.tx.Reconfigure(gpiocdev.AsInput); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure tx pin: %w", err))
		}
		if err := b.tx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close tx pin: %w", err))
		}
	}
	if b.rx != nil {
		if err := b.rx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close rx pin: %w", err))
		}
	}
	if b.chip != nil {
		if err := b.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
