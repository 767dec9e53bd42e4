// Package bus ties the MPX protocol logic to a pair of bus lines: it owns
// the word queue, routes receive-line edges into the decoder, dispatches
// decoded words as events and transmits key codes.
package bus

import (
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sweeney/mpx-bridge/internal/gpio"
	"github.com/sweeney/mpx-bridge/internal/logic"
)

var (
	// ErrLineBound is returned by Begin when another controller already
	// owns the receive line.
	ErrLineBound = errors.New("receive line already bound")

	// ErrNotDigit is returned by SendKeys for input other than 0-9.
	ErrNotDigit = errors.New("not a digit")

	// ErrUnknownKey is returned by SendKey for keys outside the key table.
	ErrUnknownKey = errors.New("unknown key")
)

// bindings maps a receive line to the one controller that owns it.
// Written by Begin and Close, read on every edge.
var bindings sync.Map // int -> *Controller

// route delivers an edge to the controller bound to its line.
func route(e gpio.Edge) {
	v, ok := bindings.Load(e.Line)
	if !ok {
		return
	}
	v.(*Controller).handleEdge(e)
}

// Stats are running traffic counters.
type Stats struct {
	Words   uint64 // valid words dispatched
	Invalid uint64 // words dropped for bad parity
	Dropped uint64 // words lost to a full queue
	Sent    uint64 // words transmitted
}

// Controller owns one MPX bus connection.
//
// Edges arrive on the backend's edge goroutine and only touch the decoder
// and the producer side of the queue. Poll and the Send methods form the
// polling context; they are serialised by mu and are the only consumers.
type Controller struct {
	pins  gpio.Bus
	clock gpio.Clock
	rx    gpio.PinConfig
	tx    gpio.PinConfig
	debug bool

	mu      sync.Mutex
	logf    func(string)
	onEvent func(logic.Event)
	onWord  func(logic.Word, bool)

	queue   logic.WordQueue
	decoder *logic.Decoder

	// The edge path is muted while transmitting, and edges stamped at or
	// before txEnd are discarded even if the backend delivers them late.
	muted atomic.Bool
	txEnd atomic.Int64

	words   atomic.Uint64
	invalid atomic.Uint64
	sent    atomic.Uint64
}

// Option configures a Controller.
type Option func(*Controller)

// WithDebug enables diagnostic output.
func WithDebug(debug bool) Option {
	return func(c *Controller) { c.debug = debug }
}

// WithLogger sends diagnostics to fn instead of the standard logger.
func WithLogger(fn func(string)) Option {
	return func(c *Controller) { c.logf = fn }
}

// WithEventHandler sets the event observer.
func WithEventHandler(fn func(logic.Event)) Option {
	return func(c *Controller) { c.onEvent = fn }
}

// WithWordHandler sets an observer for every word taken off the queue,
// valid or not.
func WithWordHandler(fn func(logic.Word, bool)) Option {
	return func(c *Controller) { c.onWord = fn }
}

// WithPinConfig records the line configuration for diagnostics.
func WithPinConfig(rx, tx gpio.PinConfig) Option {
	return func(c *Controller) {
		c.rx = rx
		c.tx = tx
	}
}

// New creates a controller on pins. Nothing is received until Begin.
func New(pins gpio.Bus, clock gpio.Clock, opts ...Option) *Controller {
	c := &Controller{
		pins:  pins,
		clock: clock,
	}
	c.decoder = logic.NewDecoder(&c.queue)
	c.txEnd.Store(math.MinInt64)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Begin binds the controller to its receive line and starts decoding.
func (c *Controller) Begin() error {
	line := c.pins.RxLine()
	if _, loaded := bindings.LoadOrStore(line, c); loaded {
		return fmt.Errorf("%w: line %d", ErrLineBound, line)
	}
	if err := c.pins.Watch(route); err != nil {
		bindings.CompareAndDelete(line, c)
		return fmt.Errorf("watch rx line: %w", err)
	}

	c.debugf("begin()")
	c.debugf("txPin: %d | inverted: %v", c.tx.Pin, c.tx.Inverted)
	c.debugf("rxPin: %d | inverted: %v", line, c.rx.Inverted)
	return nil
}

// Close stops decoding and releases the receive line binding.
func (c *Controller) Close() error {
	line := c.pins.RxLine()
	err := c.pins.Watch(nil)
	bindings.CompareAndDelete(line, c)
	if err != nil {
		return fmt.Errorf("unwatch rx line: %w", err)
	}
	return nil
}

// OnEvent replaces the event observer.
func (c *Controller) OnEvent(fn func(logic.Event)) {
	c.mu.Lock()
	c.onEvent = fn
	c.mu.Unlock()
}

// OnWord replaces the word observer.
func (c *Controller) OnWord(fn func(logic.Word, bool)) {
	c.mu.Lock()
	c.onWord = fn
	c.mu.Unlock()
}

// SetLogger replaces the diagnostic sink. nil restores the standard logger.
func (c *Controller) SetLogger(fn func(string)) {
	c.mu.Lock()
	c.logf = fn
	c.mu.Unlock()
}

func (c *Controller) handleEdge(e gpio.Edge) {
	if c.muted.Load() || int64(e.Time) <= c.txEnd.Load() {
		return
	}
	c.decoder.HandleEdge(e.Asserted, e.Time)
}

// Poll dispatches queued words. It runs for at least timeout and keeps
// going while words are queued, so Poll(0) drains the current backlog.
// Observers are called synchronously and must not call back into the
// controller.
func (c *Controller) Poll(timeout time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := c.clock.Now()
	for {
		if !c.queue.Empty() {
			c.dispatch(c.queue.Read())
		}
		c.clock.Yield()
		if c.clock.Now()-start >= timeout && c.queue.Empty() {
			return
		}
	}
}

func (c *Controller) dispatch(w logic.Word) {
	valid := w.Valid()
	if c.onWord != nil {
		c.onWord(w, valid)
	}
	if !valid {
		c.invalid.Add(1)
		return
	}
	c.words.Add(1)
	c.debugPacket(w, logic.Inbound)

	e, ok := logic.LookupEvent(w)
	if !ok {
		return
	}
	if c.onEvent != nil {
		c.onEvent(e)
	}
}

// Stats returns the traffic counters.
func (c *Controller) Stats() Stats {
	return Stats{
		Words:   c.words.Load(),
		Invalid: c.invalid.Load(),
		Dropped: c.queue.Dropped(),
		Sent:    c.sent.Load(),
	}
}

// Pending returns the number of queued words.
func (c *Controller) Pending() int {
	return c.queue.Len()
}

func (c *Controller) debugf(format string, args ...any) {
	if !c.debug {
		return
	}
	msg := fmt.Sprintf("%d | MPX -> %s", c.clock.Now().Milliseconds(), fmt.Sprintf(format, args...))
	if c.logf != nil {
		c.logf(msg)
		return
	}
	log.Print(msg)
}

func (c *Controller) debugPacket(w logic.Word, dir logic.Direction) {
	if !c.debug {
		return
	}
	c.debugf("%s", logic.Describe(w, dir))
}
