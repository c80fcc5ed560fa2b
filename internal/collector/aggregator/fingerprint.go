package aggregator

import "time"

// GPUFingerprint summarises the spans of one context over a window.
type GPUFingerprint struct {
	Context     string
	Kind        string
	WindowStart time.Time
	WindowEnd   time.Time

	// Counts
	SpanCount     uint64
	HostSpanCount uint64

	// GPU execution, sink nanoseconds
	TotalGpuNs uint64
	AvgGpuNs   float64
	MinGpuNs   uint64
	MaxGpuNs   uint64

	// Host end-mark minus GPU end, both on the sink timeline
	AvgEndSkewNs float64

	// Derived ratios
	GpuBusyFraction float64
	SpanRate        float64
}
