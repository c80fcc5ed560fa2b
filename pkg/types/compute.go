package types

// ProfilingInfo selects one of the timestamps recorded for a command.
type ProfilingInfo uint8

const (
	ProfilingQueued ProfilingInfo = iota
	ProfilingSubmit
	ProfilingStart
	ProfilingEnd
)

func (p ProfilingInfo) String() string {
	switch p {
	case ProfilingQueued:
		return "queued"
	case ProfilingSubmit:
		return "submit"
	case ProfilingStart:
		return "start"
	case ProfilingEnd:
		return "end"
	default:
		return "unknown"
	}
}

// DeviceInfo describes a compute device.
type DeviceInfo struct {
	Name   string
	Vendor string
	Driver string
	Kind   GpuContextType

	// ClockRate converts device timestamp ticks to nanoseconds.
	ClockRate float64
}

// QueueProperties are fixed when a queue is created.
type QueueProperties struct {
	Profiling bool
}

// Device is a compute device able to create queues and buffers.
type Device interface {
	Info() DeviceInfo
	NewQueue(props QueueProperties) (Queue, error)
	NewBuffer(elemCount int) (Buffer, error)
	Close() error
}

// Queue is an in-order command queue. Enqueue calls return as soon as the
// command is accepted; completion is observed through the returned Event.
type Queue interface {
	Properties() QueueProperties
	EnqueueMarker() (Event, error)
	EnqueueKernel(k Kernel, globalSize int) (Event, error)
	EnqueueWriteBuffer(buf Buffer, src []float32) (Event, error)
	EnqueueReadBuffer(buf Buffer, dst []float32) (Event, error)
	// Finish blocks until every command enqueued so far has completed.
	Finish() error
	Close() error
}

// Event is a handle to a previously enqueued command.
//
// ProfilingInfo returns ErrEventPending until the command completes. On a
// queue created without profiling it returns 0, which callers must treat as
// invalid.
type Event interface {
	Wait() error
	Complete() bool
	ProfilingInfo(info ProfilingInfo) (uint64, error)
}

// Buffer is device memory holding float32 elements.
type Buffer interface {
	Len() int
	Close() error
}

// Kernel names a function of the device program and binds its arguments.
type Kernel struct {
	Name string
	Args []any
}
