package workload

import (
	"errors"
	"testing"
	"time"

	"github.com/ALEYI17/InfraSight_gputrace/internal/compute/host"
	"github.com/ALEYI17/InfraSight_gputrace/internal/metrics"
	"github.com/ALEYI17/InfraSight_gputrace/internal/sink"
	"github.com/ALEYI17/InfraSight_gputrace/pkg/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultOptions() Options {
	return Options{
		ContextLabel: "MyContext",
		SpanName:     "OCL Dummy",
		BufferLen:    1 << 20,
		Scalar:       10,
		SampleIndex:  200007,
		Profiling:    true,
	}
}

func TestRun(t *testing.T) {
	dev := host.NewDevice()
	defer dev.Close()
	s := sink.New()
	m := metrics.NewMetrics()

	opts := defaultOptions()
	opts.Metrics = m
	res, err := Run(dev, s, opts)
	require.NoError(t, err)

	assert.Greater(t, res.AnchorNs, int64(0))
	assert.GreaterOrEqual(t, res.Timestamps.StartNs, res.AnchorNs)
	assert.LessOrEqual(t, res.Timestamps.StartNs, res.Timestamps.EndNs)
	assert.Less(t, res.Timestamps.EndNs-res.AnchorNs, int64(30*time.Second))
	assert.Equal(t, float32(200007%1024)+35, res.Sample)
	assert.Equal(t, "HostCPU", res.Device.Name)

	var gpu []types.SpanRecord
	for _, rec := range s.Records() {
		if !rec.Host {
			gpu = append(gpu, rec)
		}
	}
	require.Len(t, gpu, 1)
	assert.Equal(t, "MyContext", gpu[0].Context)
	assert.Equal(t, "OCL Dummy", gpu[0].Name)
	assert.Equal(t, types.GpuContextHost, gpu[0].Kind)
	assert.Equal(t, "workload.go", gpu[0].Location.File)
	assert.LessOrEqual(t, gpu[0].HostBeginNs, gpu[0].HostEndNs)
	assert.Zero(t, s.Violations())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Calibrations))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Spans.WithLabelValues("MyContext")))
}

func TestRunWithoutProfiling(t *testing.T) {
	dev := host.NewDevice()
	defer dev.Close()
	s := sink.New()
	m := metrics.NewMetrics()

	opts := defaultOptions()
	opts.BufferLen = 1024
	opts.SampleIndex = 7
	opts.Profiling = false
	opts.Metrics = m

	_, err := Run(dev, s, opts)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrProfilingUnavailable)

	var stageErr *types.StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, StageCalibration, stageErr.Stage)
	assert.Empty(t, s.Records())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StageErrors.WithLabelValues(StageCalibration)))
}

func TestRunClosedSink(t *testing.T) {
	dev := host.NewDevice()
	defer dev.Close()
	s := sink.New()
	require.NoError(t, s.Close())

	opts := defaultOptions()
	opts.BufferLen = 64
	opts.SampleIndex = 3

	_, err := Run(dev, s, opts)
	assert.ErrorIs(t, err, types.ErrContextCreation)

	var stageErr *types.StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, StageContext, stageErr.Stage)
}

func TestRunClosedDevice(t *testing.T) {
	dev := host.NewDevice()
	require.NoError(t, dev.Close())

	_, err := Run(dev, sink.New(), defaultOptions())
	assert.ErrorIs(t, err, types.ErrBackend)

	var stageErr *types.StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, StageQueue, stageErr.Stage)
}

func TestRunRejectsSampleOutsideBuffer(t *testing.T) {
	dev := host.NewDevice()
	defer dev.Close()

	opts := defaultOptions()
	opts.BufferLen = 16
	opts.SampleIndex = 16

	_, err := Run(dev, sink.New(), opts)
	var stageErr *types.StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, StageBuffer, stageErr.Stage)
}

// deadContextSink hands out contexts that are no longer live.
type deadContextSink struct {
	*sink.Sink
}

type deadContext struct {
	types.GpuContext
}

func (deadContext) Live() bool { return false }

func (s deadContextSink) NewGpuContext(label string, kind types.GpuContextType, anchorNs int64, clockRate float64) (types.GpuContext, error) {
	gctx, err := s.Sink.NewGpuContext(label, kind, anchorNs, clockRate)
	if err != nil {
		return nil, err
	}
	return deadContext{gctx}, nil
}

func TestRunReportsRecorderStage(t *testing.T) {
	dev := host.NewDevice()
	defer dev.Close()
	m := metrics.NewMetrics()

	opts := defaultOptions()
	opts.BufferLen = 64
	opts.SampleIndex = 3
	opts.Metrics = m

	_, err := Run(dev, deadContextSink{sink.New()}, opts)
	assert.ErrorIs(t, err, types.ErrSpanAllocation)

	var stageErr *types.StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, StageSpan, stageErr.Stage)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StageErrors.WithLabelValues(StageSpan)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Spans.WithLabelValues("MyContext")))
}
