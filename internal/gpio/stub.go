//go:build !linux

package gpio

import "errors"

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealBus is not available on non-Linux platforms.
type RealBus struct{}

// NewRealBus returns an error on non-Linux platforms.
func NewRealBus(chipName string, rx, tx PinConfig) (*RealBus, error) {
	return nil, errUnsupported
}

// ReadRx is not implemented on non-Linux platforms.
func (b *RealBus) ReadRx() (bool, error) { return false, errUnsupported }

// Watch is not implemented on non-Linux platforms.
func (b *RealBus) Watch(h EdgeHandler) error { return errUnsupported }

// Drive is not implemented on non-Linux platforms.
func (b *RealBus) Drive(on bool) error { return errUnsupported }

// SetTx is not implemented on non-Linux platforms.
func (b *RealBus) SetTx(asserted bool) error { return errUnsupported }

// RxLine returns 0 on non-Linux platforms.
func (b *RealBus) RxLine() int { return 0 }

// Close is not implemented on non-Linux platforms.
func (b *RealBus) Close() error {
	return nil
}
