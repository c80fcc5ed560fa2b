package timeserie

import (
	"sort"
	"sync"
	"time"

	"github.com/ALEYI17/InfraSight_gputrace/pkg/types"
)

// TimeSeriesCollector keeps one token per completed span until the next flush.
type TimeSeriesCollector struct {
	mu            sync.Mutex
	buffers       map[string][]*types.SpanToken
	kinds         map[string]types.GpuContextType
	flushInterval time.Duration
}

func NewTimeSeriesCollector(flushInterval time.Duration) *TimeSeriesCollector {
	return &TimeSeriesCollector{
		buffers:       make(map[string][]*types.SpanToken),
		kinds:         make(map[string]types.GpuContextType),
		flushInterval: flushInterval,
	}
}

func (tc *TimeSeriesCollector) Update(rec types.SpanRecord) {
	token := RecordToToken(rec)

	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.buffers[rec.Context] = append(tc.buffers[rec.Context], token)
	tc.kinds[rec.Context] = rec.Kind
}

// Flush drains the buffered tokens. It returns nil when nothing was buffered.
func (tc *TimeSeriesCollector) Flush() *types.SpanBatch {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if len(tc.buffers) == 0 {
		return nil
	}

	labels := make([]string, 0, len(tc.buffers))
	for label := range tc.buffers {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	var events []*types.SpanEvent
	for _, label := range labels {
		for _, tk := range tc.buffers[label] {
			events = append(events, &types.SpanEvent{
				Context:   label,
				Kind:      tc.kinds[label].String(),
				EventType: "timeserie",
				Token:     tk,
			})
		}
	}
	tc.buffers = make(map[string][]*types.SpanToken)

	return &types.SpanBatch{Type: types.BATCH_SPAN_SERIES, Batch: events}
}
