// Package workload runs one profiled kernel launch end to end: calibrate the
// device clock, record the kernel inside a GPU span and check its output.
package workload

import (
	"errors"
	"fmt"

	"github.com/ALEYI17/InfraSight_gputrace/internal/calibration"
	"github.com/ALEYI17/InfraSight_gputrace/internal/metrics"
	"github.com/ALEYI17/InfraSight_gputrace/internal/recorder"
	"github.com/ALEYI17/InfraSight_gputrace/pkg/logutil"
	"github.com/ALEYI17/InfraSight_gputrace/pkg/types"
	"go.uber.org/zap"
)

const (
	StageQueue       = "queue"
	StageBuffer      = "buffer"
	StageCalibration = "calibration"
	StageContext     = "context"
	StageSpan        = recorder.StageSpan
	StageSubmit      = recorder.StageSubmit
	StageWait        = recorder.StageWait
	StageEnd         = recorder.StageEnd
	StageTimestamps  = recorder.StageTimestamps
	StageUpload      = recorder.StageUpload
	StageReadback    = "readback"
	StageVerify      = "verify"
)

// ErrTransformMismatch is returned when the sampled element does not hold
// input + scalar * AddKernelFactor after the kernel ran.
var ErrTransformMismatch = errors.New("gputrace: kernel output mismatch")

type Options struct {
	ContextLabel string
	SpanName     string
	BufferLen    int
	Scalar       float32
	SampleIndex  int
	Profiling    bool
	Metrics      *metrics.Metrics
}

type Result struct {
	Device      types.DeviceInfo
	AnchorNs    int64
	Timestamps  recorder.Timestamps
	SampleIndex int
	Sample      float32
}

// input is the initial buffer content.
func input(n int) []float32 {
	data := make([]float32, n)
	for i := range data {
		data[i] = float32(i % 1024)
	}
	return data
}

// Run executes the workload on dev and reports spans to sink. Failures are
// returned as *types.StageError.
func Run(dev types.Device, sink types.TraceSink, opts Options) (*Result, error) {
	logger := logutil.GetLogger()
	m := opts.Metrics

	fail := func(stage string, err error) error {
		m.StageFailed(stage)
		return &types.StageError{Stage: stage, Err: err}
	}

	if opts.BufferLen < 1 || opts.SampleIndex < 0 || opts.SampleIndex >= opts.BufferLen {
		return nil, fail(StageBuffer, fmt.Errorf("sample index %d outside buffer of %d elements", opts.SampleIndex, opts.BufferLen))
	}

	info := dev.Info()
	logger.Info("Device", zap.String("name", info.Name), zap.String("vendor", info.Vendor), zap.Stringer("kind", info.Kind))

	q, err := dev.NewQueue(types.QueueProperties{Profiling: opts.Profiling})
	if err != nil {
		return nil, fail(StageQueue, fmt.Errorf("%w: %w", types.ErrBackend, err))
	}
	defer func() {
		if err := q.Close(); err != nil {
			logger.Warn("Closing queue", zap.Error(err))
		}
	}()

	buf, err := dev.NewBuffer(opts.BufferLen)
	if err != nil {
		return nil, fail(StageBuffer, fmt.Errorf("%w: %w", types.ErrBackend, err))
	}
	defer buf.Close()

	in := input(opts.BufferLen)
	wev, err := q.EnqueueWriteBuffer(buf, in)
	if err == nil {
		err = wev.Wait()
	}
	if err != nil {
		return nil, fail(StageBuffer, fmt.Errorf("%w: %w", types.ErrBackend, err))
	}

	anchor, err := calibration.CaptureAnchor(q, m)
	if err != nil {
		return nil, fail(StageCalibration, err)
	}

	rec := recorder.New(sink, recorder.WithKind(info.Kind), recorder.WithMetrics(m))
	gctx, err := rec.OpenContext(opts.ContextLabel, anchor, info.ClockRate)
	if err != nil {
		return nil, fail(StageContext, err)
	}

	kernel := types.Kernel{Name: types.KernelAdd, Args: []any{buf, opts.Scalar}}
	ts, err := rec.Record(gctx, q, kernel, opts.BufferLen, opts.SpanName, recorder.Here())
	if err != nil {
		var stageErr *types.StageError
		if errors.As(err, &stageErr) {
			m.StageFailed(stageErr.Stage)
		}
		return nil, err
	}
	logger.Info("Kernel timestamps", zap.Int64("start_ns", ts.StartNs), zap.Int64("end_ns", ts.EndNs))

	out := make([]float32, opts.BufferLen)
	rev, err := q.EnqueueReadBuffer(buf, out)
	if err == nil {
		err = rev.Wait()
	}
	if err != nil {
		return nil, fail(StageReadback, fmt.Errorf("%w: %w", types.ErrBackend, err))
	}

	got := out[opts.SampleIndex]
	want := in[opts.SampleIndex] + opts.Scalar*types.AddKernelFactor
	if got != want {
		return nil, fail(StageVerify, fmt.Errorf("%w: index %d holds %v, want %v", ErrTransformMismatch, opts.SampleIndex, got, want))
	}
	logger.Info("Sampled output",
		zap.Int("index", opts.SampleIndex),
		zap.Float32("value", got))

	return &Result{
		Device:      info,
		AnchorNs:    anchor,
		Timestamps:  ts,
		SampleIndex: opts.SampleIndex,
		Sample:      got,
	}, nil
}
