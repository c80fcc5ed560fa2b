// Package calibration anchors a device clock domain to the trace timeline.
package calibration

import (
	"fmt"
	"math"

	"github.com/ALEYI17/InfraSight_gputrace/internal/metrics"
	"github.com/ALEYI17/InfraSight_gputrace/pkg/logutil"
	"github.com/ALEYI17/InfraSight_gputrace/pkg/types"
	"go.uber.org/zap"
)

// CaptureAnchor enqueues a marker on q, blocks until it completes and
// returns its completion timestamp in device nanoseconds.
//
// The queue must have been created with profiling enabled; a queue without
// it, or a marker reporting a zero timestamp, yields ErrProfilingUnavailable.
// Successful captures are counted in m.
func CaptureAnchor(q types.Queue, m *metrics.Metrics) (int64, error) {
	logger := logutil.GetLogger()

	if !q.Properties().Profiling {
		return 0, fmt.Errorf("%w: queue created without profiling", types.ErrProfilingUnavailable)
	}

	ev, err := q.EnqueueMarker()
	if err != nil {
		return 0, fmt.Errorf("%w: enqueue marker: %w", types.ErrBackend, err)
	}
	if err := ev.Wait(); err != nil {
		return 0, fmt.Errorf("%w: wait for marker: %w", types.ErrBackend, err)
	}

	start, err := ev.ProfilingInfo(types.ProfilingStart)
	if err != nil {
		return 0, fmt.Errorf("%w: marker start time: %w", types.ErrBackend, err)
	}
	end, err := ev.ProfilingInfo(types.ProfilingEnd)
	if err != nil {
		return 0, fmt.Errorf("%w: marker end time: %w", types.ErrBackend, err)
	}
	if start == 0 || end == 0 {
		return 0, fmt.Errorf("%w: marker reported zero timestamp (start=%d end=%d)", types.ErrProfilingUnavailable, start, end)
	}

	if end > math.MaxInt64 {
		return 0, fmt.Errorf("%w: marker end %d overflows int64", types.ErrProfilingUnavailable, end)
	}

	logger.Info("Calibration marker complete",
		zap.Uint64("start_ns", start),
		zap.Uint64("end_ns", end))

	anchor := int64(end)
	m.Calibrated(anchor)
	return anchor, nil
}
