package sink

import (
	"fmt"
	"math"

	"github.com/ALEYI17/InfraSight_gputrace/pkg/types"
	"github.com/oklog/ulid/v2"
)

type gpuContext struct {
	sink      *Sink
	id        uint8
	label     string
	kind      types.GpuContextType
	anchorNs  int64
	clockRate float64
	hostRefNs int64

	// guarded by sink.mu
	inFlight int
}

func (c *gpuContext) Label() string {
	return c.label
}

func (c *gpuContext) Kind() types.GpuContextType {
	return c.kind
}

func (c *gpuContext) Live() bool {
	c.sink.mu.Lock()
	defer c.sink.mu.Unlock()
	return !c.sink.closed
}

func (c *gpuContext) AllocSpan(name string, loc types.SourceLocation) (types.GpuSpan, error) {
	s := c.sink
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("%w: context %q is not live", types.ErrSpanAllocation, c.label)
	}
	if c.inFlight >= MaxInFlightSpans {
		return nil, fmt.Errorf("%w: context %q has %d spans in flight", types.ErrSpanAllocation, c.label, c.inFlight)
	}
	c.inFlight++

	return &gpuSpan{
		ctx:         c,
		id:          ulid.Make().String(),
		name:        name,
		loc:         loc,
		hostBeginNs: s.clock(),
	}, nil
}

// toSink maps a device timestamp onto the sink timeline.
func (c *gpuContext) toSink(gpuNs int64) int64 {
	return c.hostRefNs + int64(math.Round(float64(gpuNs-c.anchorNs)*c.clockRate))
}
