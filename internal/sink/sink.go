package sink

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/ALEYI17/InfraSight_gputrace/pkg/logutil"
	"github.com/ALEYI17/InfraSight_gputrace/pkg/types"
	"go.uber.org/zap"
)

const (
	// MaxGpuContexts bounds the context table; context ids are one byte.
	MaxGpuContexts = 255
	// MaxInFlightSpans bounds spans per context that have not received
	// their end timestamp. Each span consumes two 16-bit query ids.
	MaxInFlightSpans = 1 << 15

	hostContextLabel = "host"
)

// Sink is an in-process trace sink. It places GPU timestamps on its own
// monotonic timeline and hands each completed span to its observers and
// collectors.
type Sink struct {
	clock      func() int64
	logger     *zap.Logger
	observers  []types.Span_observers
	collectors []types.Span_collectors

	mu         sync.Mutex
	contexts   []*gpuContext
	records    []types.SpanRecord
	violations int
	closed     bool
}

type Option func(*Sink)

func WithClock(clock func() int64) Option {
	return func(s *Sink) {
		s.clock = clock
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Sink) {
		s.logger = logger
	}
}

func WithObservers(observers ...types.Span_observers) Option {
	return func(s *Sink) {
		s.observers = append(s.observers, observers...)
	}
}

func WithCollectors(collectors ...types.Span_collectors) Option {
	return func(s *Sink) {
		s.collectors = append(s.collectors, collectors...)
	}
}

func New(opts ...Option) *Sink {
	s := &Sink{
		clock:  monotonicNow,
		logger: logutil.GetLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sink) NewGpuContext(label string, kind types.GpuContextType, anchorNs int64, clockRate float64) (types.GpuContext, error) {
	if clockRate <= 0 || math.IsNaN(clockRate) || math.IsInf(clockRate, 0) {
		return nil, fmt.Errorf("%w: invalid clock rate %v", types.ErrContextCreation, clockRate)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("%w: sink closed", types.ErrContextCreation)
	}
	if len(s.contexts) >= MaxGpuContexts {
		return nil, fmt.Errorf("%w: context table exhausted (%d contexts)", types.ErrContextCreation, MaxGpuContexts)
	}

	c := &gpuContext{
		sink:      s,
		id:        uint8(len(s.contexts)),
		label:     label,
		kind:      kind,
		anchorNs:  anchorNs,
		clockRate: clockRate,
		hostRefNs: s.clock(),
	}
	s.contexts = append(s.contexts, c)

	s.logger.Info("GPU context registered",
		zap.String("label", label),
		zap.Uint8("context_id", c.id),
		zap.Stringer("kind", kind),
		zap.Int64("anchor_ns", anchorNs),
		zap.Float64("clock_rate", clockRate),
		zap.Int64("host_ref_ns", c.hostRefNs))
	return c, nil
}

func (s *Sink) HostSpan(name string, loc types.SourceLocation) types.HostSpan {
	return &hostSpan{sink: s, name: name, loc: loc, beginNs: s.clock()}
}

// Records returns every span completed so far.
func (s *Sink) Records() []types.SpanRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.SpanRecord(nil), s.records...)
}

// Violations reports how many out-of-order span calls were rejected.
func (s *Sink) Violations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.violations
}

// Close retires every context. Spans still missing timestamps are dropped.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for _, c := range s.contexts {
		if c.inFlight > 0 {
			s.logger.Warn("Dropping incomplete GPU spans",
				zap.String("context", c.label),
				zap.Int("spans", c.inFlight))
		}
	}
	return nil
}

// Run starts every collector and merges their batches, stamped with
// nodeName. The channel closes once all collectors stop, which happens
// after ctx is cancelled.
func (s *Sink) Run(ctx context.Context, nodeName string) <-chan *types.SpanBatch {
	out := make(chan *types.SpanBatch)

	var wg sync.WaitGroup
	for _, c := range s.collectors {
		wg.Add(1)
		go func(col types.Span_collectors) {
			defer wg.Done()
			for batch := range col.Run(ctx) {
				batch.Node = nodeName
				out <- batch
			}
		}(c)
	}

	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

func (s *Sink) sendToObservers(rec types.SpanRecord) {
	for _, o := range s.observers {
		o.Update(rec)
	}
	for _, c := range s.collectors {
		c.Update(rec)
	}
}

// violation must be called with s.mu held.
func (s *Sink) violation(span string, format string, args ...any) error {
	s.violations++
	msg := fmt.Sprintf(format, args...)
	s.logger.Warn("Span protocol violation", zap.String("span", span), zap.String("reason", msg))
	return fmt.Errorf("%w: span %q: %s", types.ErrProtocolViolation, span, msg)
}
