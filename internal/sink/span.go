package sink

import (
	"sync"

	"github.com/ALEYI17/InfraSight_gputrace/pkg/types"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

type spanState uint8

const (
	spanOpen spanState = iota
	spanEnded
	spanStartUploaded
	spanComplete
)

type gpuSpan struct {
	ctx  *gpuContext
	id   string
	name string
	loc  types.SourceLocation

	// guarded by ctx.sink.mu
	state       spanState
	hostBeginNs int64
	hostEndNs   int64
	startNs     int64
}

func (sp *gpuSpan) EndZone() error {
	s := sp.ctx.sink
	s.mu.Lock()
	defer s.mu.Unlock()
	if sp.state != spanOpen {
		return s.violation(sp.name, "end-marked twice")
	}
	sp.hostEndNs = s.clock()
	sp.state = spanEnded
	return nil
}

func (sp *gpuSpan) UploadStart(ns int64) error {
	s := sp.ctx.sink
	s.mu.Lock()
	defer s.mu.Unlock()
	switch sp.state {
	case spanOpen:
		return s.violation(sp.name, "start timestamp uploaded before end-marking")
	case spanStartUploaded, spanComplete:
		return s.violation(sp.name, "start timestamp uploaded twice")
	}
	sp.startNs = ns
	sp.state = spanStartUploaded
	return nil
}

func (sp *gpuSpan) UploadEnd(ns int64) error {
	s := sp.ctx.sink
	s.mu.Lock()
	switch sp.state {
	case spanOpen, spanEnded:
		err := s.violation(sp.name, "end timestamp uploaded before start")
		s.mu.Unlock()
		return err
	case spanComplete:
		err := s.violation(sp.name, "end timestamp uploaded twice")
		s.mu.Unlock()
		return err
	}
	if ns < sp.startNs {
		err := s.violation(sp.name, "end timestamp %d precedes start %d", ns, sp.startNs)
		s.mu.Unlock()
		return err
	}
	sp.state = spanComplete
	sp.ctx.inFlight--

	c := sp.ctx
	rec := types.SpanRecord{
		ID:          sp.id,
		Context:     c.label,
		Kind:        c.kind,
		Name:        sp.name,
		Location:    sp.loc,
		GpuStartNs:  sp.startNs,
		GpuEndNs:    ns,
		StartNs:     c.toSink(sp.startNs),
		EndNs:       c.toSink(ns),
		HostBeginNs: sp.hostBeginNs,
		HostEndNs:   sp.hostEndNs,
	}
	s.records = append(s.records, rec)
	s.mu.Unlock()

	s.sendToObservers(rec)
	return nil
}

type hostSpan struct {
	sink    *Sink
	name    string
	loc     types.SourceLocation
	beginNs int64
	once    sync.Once
}

func (h *hostSpan) End() {
	h.once.Do(func() {
		s := h.sink
		end := s.clock()
		rec := types.SpanRecord{
			ID:          ulid.Make().String(),
			Context:     hostContextLabel,
			Kind:        types.GpuContextHost,
			Name:        h.name,
			Location:    h.loc,
			Host:        true,
			StartNs:     h.beginNs,
			EndNs:       end,
			HostBeginNs: h.beginNs,
			HostEndNs:   end,
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			s.logger.Debug("Dropping host span ended after close", zap.String("span", h.name))
			return
		}
		s.records = append(s.records, rec)
		s.mu.Unlock()

		s.sendToObservers(rec)
	})
}
