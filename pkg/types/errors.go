package types

import "errors"

var (
	// ErrProfilingUnavailable is returned when a queue was not created with
	// profiling enabled, so no timestamp it produces can be trusted.
	ErrProfilingUnavailable = errors.New("gputrace: profiling unavailable on queue")

	// ErrBackend wraps device or driver failures during enqueue, wait or readback.
	ErrBackend = errors.New("gputrace: compute backend error")

	// ErrProfilingDataUnavailable is returned when a completed event carries
	// an invalid timestamp.
	ErrProfilingDataUnavailable = errors.New("gputrace: profiling data unavailable")

	// ErrContextCreation is returned when the trace sink rejects a GPU context.
	ErrContextCreation = errors.New("gputrace: gpu context creation failed")

	// ErrSpanAllocation is returned when the trace sink cannot allocate a span.
	ErrSpanAllocation = errors.New("gputrace: gpu span allocation failed")

	// ErrProtocolViolation is returned by a sink when span calls arrive out of order.
	ErrProtocolViolation = errors.New("gputrace: span protocol violation")

	// ErrEventPending is returned when profiling info is read before the
	// command completed.
	ErrEventPending = errors.New("gputrace: event not complete")
)

// StageError records which step of the workflow failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return e.Stage + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error {
	return e.Err
}
