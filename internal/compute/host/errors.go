package host

import "errors"

var (
	ErrDeviceClosed    = errors.New("gputrace/host: device closed")
	ErrQueueClosed     = errors.New("gputrace/host: queue closed")
	ErrUnknownKernel   = errors.New("gputrace/host: unknown kernel")
	ErrKernelArgs      = errors.New("gputrace/host: invalid kernel arguments")
	ErrInvalidWorkSize = errors.New("gputrace/host: invalid global work size")
	ErrInvalidLength   = errors.New("gputrace/host: invalid buffer length")
	ErrLengthMismatch  = errors.New("gputrace/host: length mismatch")
	ErrForeignBuffer   = errors.New("gputrace/host: buffer not allocated by host device")
)
