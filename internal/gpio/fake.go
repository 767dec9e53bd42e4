package gpio

import (
	"errors"
	"sync"
	"time"
)

// Compile-time interface checks.
var (
	_ Bus   = (*FakeBus)(nil)
	_ Clock = (*FakeClock)(nil)
)

// FakeClock is a manually advanced Clock. Delay advances time by exactly
// the requested duration; Yield advances by YieldStep and then runs OnYield.
type FakeClock struct {
	mu  sync.Mutex
	now time.Duration

	// YieldStep is how far each Yield moves time forward.
	YieldStep time.Duration

	// OnYield, if set, runs after every Yield with the new time. Tests use
	// it to deliver edges while the polling context is busy.
	OnYield func(now time.Duration)
}

// NewFakeClock creates a clock starting at start with a 100µs yield step.
func NewFakeClock(start time.Duration) *FakeClock {
	return &FakeClock{now: start, YieldStep: 100 * time.Microsecond}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves time forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	c.mu.Unlock()
}

// Delay advances time by d.
func (c *FakeClock) Delay(d time.Duration) {
	c.Advance(d)
}

// Yield advances time by YieldStep and runs OnYield.
func (c *FakeClock) Yield() {
	c.mu.Lock()
	c.now += c.YieldStep
	now := c.now
	hook := c.OnYield
	c.mu.Unlock()
	if hook != nil {
		hook(now)
	}
}

// OpKind identifies a recorded transmit-line operation.
type OpKind int

const (
	OpDrive OpKind = iota
	OpSet
)

// TxOp is one recorded transmit-line operation.
type TxOp struct {
	Kind OpKind
	On   bool // Drive: output enabled; Set: asserted
	At   time.Duration
}

// Pulse is a constant-level stretch reconstructed from recorded ops.
type Pulse struct {
	Asserted bool
	Width    time.Duration
}

// Transmission is everything written between Drive(true) and Drive(false).
type Transmission struct {
	Start  time.Duration
	Pulses []Pulse
}

// FakeBus is a test double that records transmit-line writes and serves
// scripted receive-line levels.
type FakeBus struct {
	Clock *FakeClock
	Line  int

	// RxLevel, if set, returns the receive level at a given time.
	// When nil the bus always reads released.
	RxLevel func(now time.Duration) bool

	// Loopback echoes transmit writes back as receive edges, as happens
	// when both lines share the physical bus.
	Loopback bool

	// Ops contains every Drive and SetTx call in order.
	Ops []TxOp

	// Reads counts ReadRx calls.
	Reads int

	// ReadError, if set, will be returned by ReadRx.
	ReadError error

	// WriteError, if set, will be returned by SetTx.
	WriteError error

	// Closed tracks if Close was called
	Closed bool

	mu      sync.Mutex
	handler EdgeHandler
	driving bool
}

// NewFakeBus creates a FakeBus on the given line using clock.
func NewFakeBus(line int, clock *FakeClock) *FakeBus {
	return &FakeBus{Clock: clock, Line: line}
}

// ReadRx returns the scripted receive level.
func (f *FakeBus) ReadRx() (bool, error) {
	f.mu.Lock()
	f.Reads++
	f.mu.Unlock()
	if f.ReadError != nil {
		return false, f.ReadError
	}
	if f.RxLevel == nil {
		return false, nil
	}
	return f.RxLevel(f.Clock.Now()), nil
}

// Watch installs the edge handler.
func (f *FakeBus) Watch(h EdgeHandler) error {
	f.mu.Lock()
	f.handler = h
	f.mu.Unlock()
	return nil
}

// Watching reports whether a handler is installed.
func (f *FakeBus) Watching() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handler != nil
}

// Emit delivers an edge to the installed handler, if any.
func (f *FakeBus) Emit(asserted bool, at time.Duration) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h != nil {
		h(Edge{Line: f.Line, Asserted: asserted, Time: at})
	}
}

// Drive records a direction change.
func (f *FakeBus) Drive(on bool) error {
	f.mu.Lock()
	f.driving = on
	f.Ops = append(f.Ops, TxOp{Kind: OpDrive, On: on, At: f.Clock.Now()})
	f.mu.Unlock()
	return nil
}

// SetTx records a level write.
func (f *FakeBus) SetTx(asserted bool) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	f.mu.Lock()
	if !f.driving {
		f.mu.Unlock()
		return errors.New("tx pin is not an output")
	}
	now := f.Clock.Now()
	f.Ops = append(f.Ops, TxOp{Kind: OpSet, On: asserted, At: now})
	loop := f.Loopback
	f.mu.Unlock()

	if loop {
		f.Emit(asserted, now)
	}
	return nil
}

// RxLine returns the configured line.
func (f *FakeBus) RxLine() int {
	return f.Line
}

// Close marks the bus as closed.
func (f *FakeBus) Close() error {
	f.Closed = true
	return nil
}

// Transmissions groups the recorded ops into one entry per Drive(true) ...
// Drive(false) span and turns level writes into pulse widths.
func (f *FakeBus) Transmissions() []Transmission {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []Transmission
	var cur *Transmission
	var last *TxOp
	for i := range f.Ops {
		op := f.Ops[i]
		switch {
		case op.Kind == OpDrive && op.On:
			out = append(out, Transmission{Start: op.At})
			cur = &out[len(out)-1]
			last = nil
		case op.Kind == OpSet && cur != nil:
			if last != nil {
				cur.Pulses = append(cur.Pulses, Pulse{Asserted: last.On, Width: op.At - last.At})
			}
			last = &f.Ops[i]
		case op.Kind == OpDrive && !op.On && cur != nil:
			if last != nil {
				cur.Pulses = append(cur.Pulses, Pulse{Asserted: last.On, Width: op.At - last.At})
			}
			cur = nil
			last = nil
		}
	}
	return out
}

// Reset clears recorded operations.
func (f *FakeBus) Reset() {
	f.mu.Lock()
	f.Ops = nil
	f.Reads = 0
	f.Closed = false
	f.mu.Unlock()
}
