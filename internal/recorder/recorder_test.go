package recorder

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/ALEYI17/InfraSight_gputrace/internal/calibration"
	"github.com/ALEYI17/InfraSight_gputrace/internal/compute/host"
	"github.com/ALEYI17/InfraSight_gputrace/internal/metrics"
	"github.com/ALEYI17/InfraSight_gputrace/internal/sink"
	"github.com/ALEYI17/InfraSight_gputrace/pkg/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// callLog is shared by the doubles below to capture call order.
type callLog struct {
	calls []string
}

func (l *callLog) add(format string, args ...any) {
	l.calls = append(l.calls, fmt.Sprintf(format, args...))
}

type fakeSink struct {
	log    *callLog
	ctxErr error
}

func (s *fakeSink) NewGpuContext(label string, kind types.GpuContextType, anchorNs int64, clockRate float64) (types.GpuContext, error) {
	if s.ctxErr != nil {
		return nil, s.ctxErr
	}
	s.log.add("context %s", label)
	return &fakeContext{log: s.log, label: label, kind: kind, live: true}, nil
}

func (s *fakeSink) HostSpan(name string, loc types.SourceLocation) types.HostSpan {
	s.log.add("host_begin %s", name)
	return fakeHostSpan{log: s.log, name: name}
}

func (s *fakeSink) Close() error { return nil }

type fakeHostSpan struct {
	log  *callLog
	name string
}

func (h fakeHostSpan) End() { h.log.add("host_end %s", h.name) }

type fakeContext struct {
	log      *callLog
	label    string
	kind     types.GpuContextType
	live     bool
	allocErr error
}

func (c *fakeContext) Label() string              { return c.label }
func (c *fakeContext) Kind() types.GpuContextType { return c.kind }
func (c *fakeContext) Live() bool                 { return c.live }

func (c *fakeContext) AllocSpan(name string, loc types.SourceLocation) (types.GpuSpan, error) {
	if c.allocErr != nil {
		return nil, c.allocErr
	}
	c.log.add("alloc %s", name)
	return &fakeSpan{log: c.log}, nil
}

type fakeSpan struct {
	log *callLog
}

func (sp *fakeSpan) EndZone() error {
	sp.log.add("end_zone")
	return nil
}

func (sp *fakeSpan) UploadStart(ns int64) error {
	sp.log.add("upload_start %d", ns)
	return nil
}

func (sp *fakeSpan) UploadEnd(ns int64) error {
	sp.log.add("upload_end %d", ns)
	return nil
}

type fakeEvent struct {
	log        *callLog
	complete   bool
	start, end uint64
	infoErr    error
}

func (e *fakeEvent) Wait() error {
	e.log.add("wait")
	e.complete = true
	return nil
}

func (e *fakeEvent) Complete() bool { return e.complete }

func (e *fakeEvent) ProfilingInfo(info types.ProfilingInfo) (uint64, error) {
	if e.infoErr != nil {
		return 0, e.infoErr
	}
	if info == types.ProfilingStart {
		return e.start, nil
	}
	return e.end, nil
}

type fakeQueue struct {
	types.Queue
	log        *callLog
	ev         *fakeEvent
	enqueueErr error
}

func (q *fakeQueue) EnqueueKernel(k types.Kernel, globalSize int) (types.Event, error) {
	if q.enqueueErr != nil {
		return nil, q.enqueueErr
	}
	q.log.add("submit %s", k.Name)
	return q.ev, nil
}

func TestRecordCallOrder(t *testing.T) {
	log := &callLog{}
	r := New(&fakeSink{log: log}, WithLogger(zap.NewNop()))

	gctx, err := r.OpenContext("MyContext", 100, 1.0)
	require.NoError(t, err)

	q := &fakeQueue{log: log, ev: &fakeEvent{log: log, start: 150, end: 400}}
	ts, err := r.Record(gctx, q, types.Kernel{Name: types.KernelAdd}, 16, "OCL Dummy", Here())
	require.NoError(t, err)

	assert.Equal(t, Timestamps{StartNs: 150, EndNs: 400}, ts)
	assert.Equal(t, int64(250), ts.DurationNs())
	assert.Equal(t, []string{
		"context MyContext",
		"alloc OCL Dummy",
		"submit add",
		"host_begin await_completion",
		"wait",
		"host_end await_completion",
		"end_zone",
		"upload_start 150",
		"upload_end 400",
	}, log.calls)
}

func TestOpenContextRejectsInvalidInput(t *testing.T) {
	r := New(&fakeSink{log: &callLog{}})

	tests := []struct {
		name   string
		anchor int64
		rate   float64
	}{
		{"zero rate", 100, 0},
		{"negative rate", 100, -1},
		{"nan rate", 100, math.NaN()},
		{"inf rate", 100, math.Inf(1)},
		{"zero anchor", 0, 1},
		{"negative anchor", -5, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.OpenContext("ctx", tt.anchor, tt.rate)
			assert.ErrorIs(t, err, types.ErrContextCreation)
		})
	}
}

func TestOpenContextWrapsSinkError(t *testing.T) {
	boom := errors.New("table full")
	r := New(&fakeSink{log: &callLog{}, ctxErr: boom})

	_, err := r.OpenContext("ctx", 1, 1)
	assert.ErrorIs(t, err, types.ErrContextCreation)
	assert.ErrorIs(t, err, boom)
}

func TestOpenContextKind(t *testing.T) {
	r := New(&fakeSink{log: &callLog{}}, WithKind(types.GpuContextHost))

	gctx, err := r.OpenContext("ctx", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, types.GpuContextHost, gctx.Kind())

	gctx, err = New(&fakeSink{log: &callLog{}}).OpenContext("ctx", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, types.GpuContextOpenCL, gctx.Kind())
}

func TestBeginSpanErrors(t *testing.T) {
	r := New(&fakeSink{log: &callLog{}})

	_, err := r.BeginSpan(&fakeContext{log: &callLog{}, live: false}, "s", Here())
	assert.ErrorIs(t, err, types.ErrSpanAllocation)

	boom := errors.New("no slots")
	_, err = r.BeginSpan(&fakeContext{log: &callLog{}, live: true, allocErr: boom}, "s", Here())
	assert.ErrorIs(t, err, types.ErrSpanAllocation)
	assert.ErrorIs(t, err, boom)
}

func TestRunTimedCommandBackendError(t *testing.T) {
	log := &callLog{}
	r := New(&fakeSink{log: log})

	boom := errors.New("out of resources")
	_, err := r.RunTimedCommand(&fakeQueue{log: log, enqueueErr: boom}, types.Kernel{Name: "add"}, 1)
	assert.ErrorIs(t, err, types.ErrBackend)
	assert.ErrorIs(t, err, boom)
}

func TestExtractTimestamps(t *testing.T) {
	log := &callLog{}

	tests := []struct {
		name    string
		ev      *fakeEvent
		wantErr error
	}{
		{"pending", &fakeEvent{log: log, complete: false, start: 1, end: 2}, types.ErrEventPending},
		{"zero start", &fakeEvent{log: log, complete: true, start: 0, end: 2}, types.ErrProfilingDataUnavailable},
		{"zero end", &fakeEvent{log: log, complete: true, start: 1, end: 0}, types.ErrProfilingDataUnavailable},
		{"start after end", &fakeEvent{log: log, complete: true, start: 9, end: 2}, types.ErrProfilingDataUnavailable},
		{"read failure", &fakeEvent{log: log, complete: true, infoErr: errors.New("bad param")}, types.ErrBackend},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ExtractTimestamps(tt.ev)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	start, end, err := ExtractTimestamps(&fakeEvent{log: log, complete: true, start: 5, end: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(5), start)
	assert.Equal(t, int64(5), end)
}

func TestPendingWrappedAsBackend(t *testing.T) {
	_, _, err := ExtractTimestamps(&fakeEvent{log: &callLog{}})
	assert.ErrorIs(t, err, types.ErrBackend)
}

func TestRecordStopsOnZeroTimestamp(t *testing.T) {
	log := &callLog{}
	r := New(&fakeSink{log: log})
	gctx, err := r.OpenContext("ctx", 1, 1)
	require.NoError(t, err)

	q := &fakeQueue{log: log, ev: &fakeEvent{log: log}}
	_, err = r.Record(gctx, q, types.Kernel{Name: "add"}, 1, "s", Here())
	assert.ErrorIs(t, err, types.ErrProfilingDataUnavailable)

	for _, c := range log.calls {
		assert.False(t, strings.HasPrefix(c, "upload"), "unexpected %q", c)
	}
}

func TestRecordTagsFailingStage(t *testing.T) {
	boom := errors.New("out of resources")

	tests := []struct {
		name    string
		ctx     func(log *callLog) *fakeContext
		queue   func(log *callLog) *fakeQueue
		stage   string
		wantErr error
	}{
		{
			name:    "context not live",
			ctx:     func(log *callLog) *fakeContext { return &fakeContext{log: log, live: false} },
			queue:   func(log *callLog) *fakeQueue { return &fakeQueue{log: log} },
			stage:   StageSpan,
			wantErr: types.ErrSpanAllocation,
		},
		{
			name:    "enqueue failure",
			ctx:     func(log *callLog) *fakeContext { return &fakeContext{log: log, live: true} },
			queue:   func(log *callLog) *fakeQueue { return &fakeQueue{log: log, enqueueErr: boom} },
			stage:   StageSubmit,
			wantErr: types.ErrBackend,
		},
		{
			name: "zero timestamps",
			ctx:  func(log *callLog) *fakeContext { return &fakeContext{log: log, live: true} },
			queue: func(log *callLog) *fakeQueue {
				return &fakeQueue{log: log, ev: &fakeEvent{log: log}}
			},
			stage:   StageTimestamps,
			wantErr: types.ErrProfilingDataUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := &callLog{}
			r := New(&fakeSink{log: log})

			_, err := r.Record(tt.ctx(log), tt.queue(log), types.Kernel{Name: "add"}, 1, "s", Here())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			var stageErr *types.StageError
			require.True(t, errors.As(err, &stageErr))
			assert.Equal(t, tt.stage, stageErr.Stage)
		})
	}
}

func TestUploadOutOfOrderRejectedBySink(t *testing.T) {
	s := sink.New()
	r := New(s)

	gctx, err := r.OpenContext("ctx", 1000, 1.0)
	require.NoError(t, err)
	span, err := r.BeginSpan(gctx, "s", Here())
	require.NoError(t, err)

	// Uploading before the end mark is rejected.
	err = r.Upload(span, 1100, 1200)
	assert.ErrorIs(t, err, types.ErrProtocolViolation)

	require.NoError(t, r.EndSpan(span))
	err = r.Upload(span, 1300, 1200)
	assert.ErrorIs(t, err, types.ErrProtocolViolation)
	assert.Equal(t, 2, s.Violations())
	assert.Empty(t, s.Records())
}

func TestRecordEndToEnd(t *testing.T) {
	dev := host.NewDevice()
	defer dev.Close()

	q, err := dev.NewQueue(types.QueueProperties{Profiling: true})
	require.NoError(t, err)
	buf, err := dev.NewBuffer(4096)
	require.NoError(t, err)

	anchor, err := calibration.CaptureAnchor(q, nil)
	require.NoError(t, err)

	s := sink.New()
	m := metrics.NewMetrics()
	r := New(s, WithKind(dev.Info().Kind), WithMetrics(m))

	gctx, err := r.OpenContext("MyContext", anchor, dev.Info().ClockRate)
	require.NoError(t, err)

	kernel := types.Kernel{Name: types.KernelAdd, Args: []any{buf, float32(10)}}
	ts, err := r.Record(gctx, q, kernel, buf.Len(), "OCL Dummy", Here())
	require.NoError(t, err)

	assert.GreaterOrEqual(t, ts.StartNs, anchor)
	assert.LessOrEqual(t, ts.StartNs, ts.EndNs)
	assert.Less(t, ts.EndNs-anchor, int64(10*time.Second))

	var gpu, hostSpans []types.SpanRecord
	for _, rec := range s.Records() {
		if rec.Host {
			hostSpans = append(hostSpans, rec)
		} else {
			gpu = append(gpu, rec)
		}
	}
	require.Len(t, gpu, 1)
	require.Len(t, hostSpans, 1)
	assert.Equal(t, awaitSpanName, hostSpans[0].Name)
	assert.Equal(t, ts.StartNs, gpu[0].GpuStartNs)
	assert.Equal(t, ts.EndNs, gpu[0].GpuEndNs)
	assert.Equal(t, "OCL Dummy", gpu[0].Name)
	assert.Equal(t, "recorder_test.go", gpu[0].Location.File)
	assert.Zero(t, s.Violations())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Spans.WithLabelValues("MyContext")))
}

func TestHere(t *testing.T) {
	loc := Here()
	assert.Equal(t, "recorder_test.go", loc.File)
	assert.True(t, strings.HasSuffix(loc.Function, "recorder.TestHere"))
	assert.NotZero(t, loc.Line)
}
