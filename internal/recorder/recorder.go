// Package recorder brackets one unit of GPU work with a trace span and
// uploads its device timestamps to a trace sink.
package recorder

import (
	"errors"
	"fmt"
	"math"

	"github.com/ALEYI17/InfraSight_gputrace/internal/metrics"
	"github.com/ALEYI17/InfraSight_gputrace/pkg/logutil"
	"github.com/ALEYI17/InfraSight_gputrace/pkg/types"
	"go.uber.org/zap"
)

const awaitSpanName = "await_completion"

// Stages reported by Record in *types.StageError.
const (
	StageSpan       = "span"
	StageSubmit     = "submit"
	StageWait       = "wait"
	StageEnd        = "end"
	StageTimestamps = "timestamps"
	StageUpload     = "upload"
)

// Timestamps are the device start and end of a recorded command.
type Timestamps struct {
	StartNs int64
	EndNs   int64
}

func (t Timestamps) DurationNs() int64 {
	return t.EndNs - t.StartNs
}

type Recorder struct {
	sink    types.TraceSink
	kind    types.GpuContextType
	logger  *zap.Logger
	metrics *metrics.Metrics
}

type Option func(*Recorder)

// WithKind sets the context type reported for new GPU contexts.
func WithKind(kind types.GpuContextType) Option {
	return func(r *Recorder) {
		r.kind = kind
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(r *Recorder) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Recorder) {
		r.metrics = m
	}
}

func New(sink types.TraceSink, opts ...Option) *Recorder {
	r := &Recorder{
		sink:   sink,
		kind:   types.GpuContextOpenCL,
		logger: logutil.GetLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OpenContext registers a GPU clock domain with the sink. anchorNs is the
// device time that maps to the sink's current time.
func (r *Recorder) OpenContext(label string, anchorNs int64, clockRate float64) (types.GpuContext, error) {
	if clockRate <= 0 || math.IsNaN(clockRate) || math.IsInf(clockRate, 0) {
		return nil, fmt.Errorf("%w: invalid clock rate %v", types.ErrContextCreation, clockRate)
	}
	if anchorNs <= 0 {
		return nil, fmt.Errorf("%w: invalid anchor %d", types.ErrContextCreation, anchorNs)
	}

	gctx, err := r.sink.NewGpuContext(label, r.kind, anchorNs, clockRate)
	if err != nil {
		if !errors.Is(err, types.ErrContextCreation) {
			err = fmt.Errorf("%w: %w", types.ErrContextCreation, err)
		}
		return nil, err
	}
	return gctx, nil
}

func (r *Recorder) BeginSpan(gctx types.GpuContext, name string, loc types.SourceLocation) (types.GpuSpan, error) {
	if !gctx.Live() {
		return nil, fmt.Errorf("%w: context %q is not live", types.ErrSpanAllocation, gctx.Label())
	}
	span, err := gctx.AllocSpan(name, loc)
	if err != nil {
		if !errors.Is(err, types.ErrSpanAllocation) {
			err = fmt.Errorf("%w: %w", types.ErrSpanAllocation, err)
		}
		return nil, err
	}
	return span, nil
}

// RunTimedCommand submits kernel and returns without waiting for it.
func (r *Recorder) RunTimedCommand(q types.Queue, kernel types.Kernel, globalSize int) (types.Event, error) {
	ev, err := q.EnqueueKernel(kernel, globalSize)
	if err != nil {
		return nil, fmt.Errorf("%w: enqueue kernel %q: %w", types.ErrBackend, kernel.Name, err)
	}
	return ev, nil
}

// AwaitCompletion blocks until ev completes. The wait shows up on the
// sink timeline as a host span.
func (r *Recorder) AwaitCompletion(ev types.Event) error {
	zone := r.sink.HostSpan(awaitSpanName, caller(2))
	defer zone.End()

	if err := ev.Wait(); err != nil {
		return fmt.Errorf("%w: wait for event: %w", types.ErrBackend, err)
	}
	return nil
}

// EndSpan marks the logical end of span. It must precede Upload.
func (r *Recorder) EndSpan(span types.GpuSpan) error {
	return span.EndZone()
}

// Upload hands the device timestamps of span to the sink, start first.
func (r *Recorder) Upload(span types.GpuSpan, startNs, endNs int64) error {
	if err := span.UploadStart(startNs); err != nil {
		return err
	}
	return span.UploadEnd(endNs)
}

// Record runs kernel on q inside a span named name: begin, submit, wait,
// end-mark, read timestamps, upload. Failures are *types.StageError naming
// the step.
func (r *Recorder) Record(gctx types.GpuContext, q types.Queue, kernel types.Kernel, globalSize int, name string, loc types.SourceLocation) (Timestamps, error) {
	fail := func(stage string, err error) (Timestamps, error) {
		return Timestamps{}, &types.StageError{Stage: stage, Err: err}
	}

	span, err := r.BeginSpan(gctx, name, loc)
	if err != nil {
		return fail(StageSpan, err)
	}

	ev, err := r.RunTimedCommand(q, kernel, globalSize)
	if err != nil {
		return fail(StageSubmit, err)
	}
	if err := r.AwaitCompletion(ev); err != nil {
		return fail(StageWait, err)
	}
	if err := r.EndSpan(span); err != nil {
		return fail(StageEnd, err)
	}

	start, end, err := ExtractTimestamps(ev)
	if err != nil {
		return fail(StageTimestamps, err)
	}
	if err := r.Upload(span, start, end); err != nil {
		return fail(StageUpload, err)
	}

	ts := Timestamps{StartNs: start, EndNs: end}
	r.metrics.SpanRecorded(gctx.Label(), ts.DurationNs())
	r.logger.Debug("GPU span recorded",
		zap.String("context", gctx.Label()),
		zap.String("span", name),
		zap.Int64("start_ns", start),
		zap.Int64("end_ns", end),
		zap.Int64("duration_ns", ts.DurationNs()))
	return ts, nil
}

// ExtractTimestamps reads the device start and end of a completed command.
func ExtractTimestamps(ev types.Event) (int64, int64, error) {
	if !ev.Complete() {
		return 0, 0, fmt.Errorf("%w: %w", types.ErrBackend, types.ErrEventPending)
	}

	start, err := ev.ProfilingInfo(types.ProfilingStart)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: read start time: %w", types.ErrBackend, err)
	}
	end, err := ev.ProfilingInfo(types.ProfilingEnd)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: read end time: %w", types.ErrBackend, err)
	}

	if start == 0 || end == 0 {
		return 0, 0, fmt.Errorf("%w: zero timestamp (start=%d end=%d)", types.ErrProfilingDataUnavailable, start, end)
	}
	if start > end {
		return 0, 0, fmt.Errorf("%w: start %d after end %d", types.ErrProfilingDataUnavailable, start, end)
	}
	if end > math.MaxInt64 {
		return 0, 0, fmt.Errorf("%w: end %d overflows", types.ErrProfilingDataUnavailable, end)
	}
	return int64(start), int64(end), nil
}
