package host

import "golang.org/x/sys/unix"

// deviceNow returns the device clock in nanoseconds, or 0 if the clock
// cannot be read.
func deviceNow() uint64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC_RAW, &ts); err != nil {
		return 0
	}
	return uint64(ts.Nano())
}
