package types

// SourceLocation identifies where a span was opened.
type SourceLocation struct {
	Function string
	File     string
	Line     uint32
}

// TraceSink ingests GPU contexts and spans.
type TraceSink interface {
	NewGpuContext(label string, kind GpuContextType, anchorNs int64, clockRate float64) (GpuContext, error)
	HostSpan(name string, loc SourceLocation) HostSpan
	Close() error
}

// GpuContext maps one device clock domain onto the sink timeline.
type GpuContext interface {
	Label() string
	Kind() GpuContextType
	Live() bool
	AllocSpan(name string, loc SourceLocation) (GpuSpan, error)
}

// GpuSpan is one interval of GPU execution. EndZone must be called before
// UploadStart, and UploadStart before UploadEnd.
type GpuSpan interface {
	EndZone() error
	UploadStart(ns int64) error
	UploadEnd(ns int64) error
}

// HostSpan is a CPU-side zone measured with the sink's own clock.
type HostSpan interface {
	End()
}

// SpanRecord is a completed span as seen by the sink.
type SpanRecord struct {
	ID       string
	Context  string
	Kind     GpuContextType
	Name     string
	Location SourceLocation
	Host     bool

	// Raw device timestamps, zero for host spans.
	GpuStartNs int64
	GpuEndNs   int64

	// Timestamps on the sink timeline.
	StartNs int64
	EndNs   int64

	// Host time of span allocation and end-marking.
	HostBeginNs int64
	HostEndNs   int64
}

// DurationNs is the span length on the sink timeline.
func (r SpanRecord) DurationNs() int64 {
	return r.EndNs - r.StartNs
}
