package types

// SpanBatch is the unit shipped to a span collector server.
type SpanBatch struct {
	Type  string       `json:"type"`
	Node  string       `json:"node"`
	Batch []*SpanEvent `json:"batch"`
}

type SpanEvent struct {
	Context   string      `json:"context"`
	Kind      string      `json:"kind"`
	EventType string      `json:"event_type"`
	Token     *SpanToken  `json:"token,omitempty"`
	Window    *SpanWindow `json:"window,omitempty"`
}

type SpanToken struct {
	ID          string `json:"id"`
	EventType   int    `json:"event_type"`
	Name        string `json:"name"`
	Function    string `json:"function"`
	File        string `json:"file"`
	Line        uint32 `json:"line"`
	GpuStartNs  int64  `json:"gpu_start_ns"`
	GpuEndNs    int64  `json:"gpu_end_ns"`
	StartNs     int64  `json:"start_ns"`
	EndNs       int64  `json:"end_ns"`
	HostBeginNs int64  `json:"host_begin_ns"`
	HostEndNs   int64  `json:"host_end_ns"`
}

type SpanWindow struct {
	WindowStartNs   int64   `json:"window_start_ns"`
	WindowEndNs     int64   `json:"window_end_ns"`
	SpanCount       uint64  `json:"span_count"`
	HostSpanCount   uint64  `json:"host_span_count"`
	TotalGpuNs      uint64  `json:"total_gpu_ns"`
	AvgGpuNs        float64 `json:"avg_gpu_ns"`
	MinGpuNs        uint64  `json:"min_gpu_ns"`
	MaxGpuNs        uint64  `json:"max_gpu_ns"`
	AvgEndSkewNs    float64 `json:"avg_end_skew_ns"`
	GpuBusyFraction float64 `json:"gpu_busy_fraction"`
	SpanRate        float64 `json:"span_rate"`
}

// CollectorAck is the collector server's reply to a batch.
type CollectorAck struct {
	Status   string `json:"status"`
	Received int    `json:"received"`
}
