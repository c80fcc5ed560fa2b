package aggregator

import (
	"sort"
	"sync"
	"time"

	"github.com/ALEYI17/InfraSight_gputrace/pkg/types"
)

type GPUAggregator struct {
	windows        map[string]*GPUFingerprint
	mu             sync.Mutex
	windowDuration time.Duration
	now            func() time.Time
}

func NewGPUAggregator(window time.Duration) *GPUAggregator {
	return &GPUAggregator{
		windows:        make(map[string]*GPUFingerprint),
		windowDuration: window,
		now:            time.Now,
	}
}

func (ga *GPUAggregator) ensureWindow(rec types.SpanRecord) *GPUFingerprint {
	win, ok := ga.windows[rec.Context]
	if !ok {
		now := ga.now()
		win = &GPUFingerprint{
			Context:     rec.Context,
			Kind:        rec.Kind.String(),
			WindowStart: now,
			WindowEnd:   now.Add(ga.windowDuration),
		}
		ga.windows[rec.Context] = win
	}
	return win
}

func (ga *GPUAggregator) Update(rec types.SpanRecord) {
	ga.mu.Lock()
	defer ga.mu.Unlock()

	w := ga.ensureWindow(rec)
	if rec.Host {
		w.HostSpanCount++
		return
	}

	dur := uint64(max(rec.DurationNs(), 0))
	w.SpanCount++
	w.TotalGpuNs += dur
	w.AvgGpuNs = float64(w.TotalGpuNs) / float64(w.SpanCount)
	if w.SpanCount == 1 || dur < w.MinGpuNs {
		w.MinGpuNs = dur
	}
	w.MaxGpuNs = max(w.MaxGpuNs, dur)

	skew := float64(rec.HostEndNs - rec.EndNs)
	w.AvgEndSkewNs = ((w.AvgEndSkewNs * float64(w.SpanCount-1)) + skew) / float64(w.SpanCount)
}

// Flush emits the windows that have ended.
func (ga *GPUAggregator) Flush() *types.SpanBatch {
	return ga.flush(false)
}

// FlushAll emits every window, ended or not.
func (ga *GPUAggregator) FlushAll() *types.SpanBatch {
	return ga.flush(true)
}

func (ga *GPUAggregator) flush(force bool) *types.SpanBatch {
	ga.mu.Lock()
	defer ga.mu.Unlock()

	now := ga.now()
	labels := make([]string, 0, len(ga.windows))
	for label := range ga.windows {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	var events []*types.SpanEvent
	for _, label := range labels {
		w := ga.windows[label]
		if !force && !now.After(w.WindowEnd) {
			continue
		}

		end := w.WindowEnd
		if now.Before(end) {
			end = now
		}
		duration := end.Sub(w.WindowStart)
		if duration > 0 {
			w.GpuBusyFraction = float64(w.TotalGpuNs) / float64(duration.Nanoseconds())
			w.SpanRate = float64(w.SpanCount) / duration.Seconds()
		}

		events = append(events, &types.SpanEvent{
			Context:   w.Context,
			Kind:      w.Kind,
			EventType: "GPU_SPAN_WINDOW",
			Window: &types.SpanWindow{
				WindowStartNs:   w.WindowStart.UnixNano(),
				WindowEndNs:     end.UnixNano(),
				SpanCount:       w.SpanCount,
				HostSpanCount:   w.HostSpanCount,
				TotalGpuNs:      w.TotalGpuNs,
				AvgGpuNs:        w.AvgGpuNs,
				MinGpuNs:        w.MinGpuNs,
				MaxGpuNs:        w.MaxGpuNs,
				AvgEndSkewNs:    w.AvgEndSkewNs,
				GpuBusyFraction: w.GpuBusyFraction,
				SpanRate:        w.SpanRate,
			},
		})
		delete(ga.windows, label)
	}

	if len(events) == 0 {
		return nil
	}
	return &types.SpanBatch{Type: types.BATCH_SPAN_WINDOW, Batch: events}
}
