package sink

import (
	"time"

	"golang.org/x/sys/unix"
)

// monotonicNow is the sink's reference clock.
func monotonicNow() int64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return time.Now().UnixNano()
	}
	return ts.Nano()
}
