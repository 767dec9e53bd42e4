//go:build !linux

package gpio

import "time"

var processStart = time.Now()

func monotonic() time.Duration {
	return time.Since(processStart)
}
