package bus

import (
	"fmt"

	"github.com/sweeney/mpx-bridge/internal/logic"
)

// SendPacket waits for the bus to be free and transmits w.
func (c *Controller) SendPacket(w logic.Word) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendPacket(w)
}

// SendKey transmits the word sequence for k. Each word waits for the bus
// to be free on its own.
func (c *Controller) SendKey(k logic.Key) error {
	if !k.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownKey, int(k))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendKey(k)
}

// SendKeys transmits a string of digits in order. Nothing is sent unless
// every rune is 0-9.
func (c *Controller) SendKeys(digits string) error {
	keys := make([]logic.Key, 0, len(digits))
	for _, r := range digits {
		k, ok := logic.DigitKey(r)
		if !ok {
			return fmt.Errorf("%w: %q", ErrNotDigit, r)
		}
		keys = append(keys, k)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.debugf("Sending keys: %s", digits)
	for _, k := range keys {
		if err := c.sendKey(k); err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) sendKey(k logic.Key) error {
	for _, w := range logic.KeyWords(k) {
		if err := c.sendPacket(w); err != nil {
			return fmt.Errorf("send key %s: %w", k, err)
		}
	}
	return nil
}

func (c *Controller) sendPacket(w logic.Word) error {
	c.debugPacket(w, logic.Outbound)

	if err := c.waitBusFree(); err != nil {
		return err
	}

	c.muted.Store(true)
	defer func() {
		c.txEnd.Store(int64(c.clock.Now()))
		c.muted.Store(false)
	}()

	if err := c.pins.Drive(true); err != nil {
		return fmt.Errorf("enable transmit: %w", err)
	}
	err := c.emit(w)
	if derr := c.pins.Drive(false); derr != nil && err == nil {
		err = fmt.Errorf("disable transmit: %w", derr)
	}
	if err != nil {
		return err
	}
	c.sent.Add(1)
	return nil
}

// waitBusFree returns once the receive line has been released for CTSTime
// without interruption.
func (c *Controller) waitBusFree() error {
	quietSince := c.clock.Now()
	for {
		asserted, err := c.pins.ReadRx()
		if err != nil {
			return fmt.Errorf("read rx line: %w", err)
		}
		if asserted {
			quietSince = c.clock.Now()
		}
		c.clock.Yield()
		if c.clock.Now()-quietSince >= logic.CTSTime {
			return nil
		}
	}
}

func (c *Controller) emit(w logic.Word) error {
	for _, p := range logic.Waveform(w) {
		if err := c.pins.SetTx(p.Asserted); err != nil {
			return fmt.Errorf("write tx line: %w", err)
		}
		c.clock.Delay(p.Width)
	}
	return nil
}
