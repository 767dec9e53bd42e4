package gpio

import (
	"runtime"
	"time"
)

// SystemClock is the host monotonic clock. On Linux it reads
// CLOCK_MONOTONIC, the clock gpiocdev stamps edge events with.
type SystemClock struct{}

// Now returns monotonic time.
func (SystemClock) Now() time.Duration {
	return monotonic()
}

// Delay busy-waits for d. Sleeping is far too coarse for bit times.
func (SystemClock) Delay(d time.Duration) {
	end := monotonic() + d
	for monotonic() < end {
	}
}

// Yield lets other goroutines run.
func (SystemClock) Yield() {
	runtime.Gosched()
}

var _ Clock = SystemClock{}
