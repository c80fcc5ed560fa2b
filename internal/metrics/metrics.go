package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ALEYI17/InfraSight_gputrace/pkg/logutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics holds the Prometheus collectors for calibration and span
// recording. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Calibrations prometheus.Counter
	AnchorNs     prometheus.Gauge
	Spans        *prometheus.CounterVec
	StageErrors  *prometheus.CounterVec
	GpuDuration  *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Calibrations: factory.NewCounter(prometheus.CounterOpts{
			Name: "gputrace_calibrations_total",
			Help: "Number of calibration anchors captured",
		}),
		AnchorNs: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gputrace_calibration_anchor_ns",
			Help: "Device timestamp of the latest calibration anchor",
		}),
		Spans: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gputrace_gpu_spans_total",
			Help: "Number of GPU spans uploaded",
		}, []string{"context"}),
		StageErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gputrace_stage_errors_total",
			Help: "Number of failures per workflow stage",
		}, []string{"stage"}),
		GpuDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gputrace_gpu_command_duration_seconds",
			Help:    "GPU command execution time from profiling timestamps",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 12),
		}, []string{"context"}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Calibrated(anchorNs int64) {
	if m == nil {
		return
	}
	m.Calibrations.Inc()
	m.AnchorNs.Set(float64(anchorNs))
}

func (m *Metrics) StageFailed(stage string) {
	if m == nil {
		return
	}
	m.StageErrors.WithLabelValues(stage).Inc()
}

func (m *Metrics) SpanRecorded(label string, durationNs int64) {
	if m == nil {
		return
	}
	m.Spans.WithLabelValues(label).Inc()
	m.GpuDuration.WithLabelValues(label).Observe(time.Duration(durationNs).Seconds())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	logger := logutil.GetLogger()

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Metrics server shutdown", zap.Error(err))
		}
	}()

	logger.Info("Serving metrics", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
