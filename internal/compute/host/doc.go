// Package host provides a CPU-backed compute device.
//
// Commands run on one worker goroutine per queue, in submission order, so an
// enqueue returns before the command executes just as it would on a GPU.
// Profiling timestamps are read from CLOCK_MONOTONIC_RAW, which plays the
// role of the device clock: nanosecond ticks with a boot-relative epoch that
// is unrelated to the trace sink's clock.
package host
