package host

import (
	"fmt"

	"github.com/ALEYI17/InfraSight_gputrace/pkg/types"
)

type Event struct {
	profiling bool
	clock     func() uint64
	done      chan struct{}
	err       error

	queued uint64
	submit uint64
	start  uint64
	end    uint64
}

func newEvent(profiling bool, clock func() uint64) *Event {
	ev := &Event{
		profiling: profiling,
		clock:     clock,
		done:      make(chan struct{}),
	}
	ev.queued = ev.stamp()
	return ev
}

func (e *Event) stamp() uint64 {
	if !e.profiling {
		return 0
	}
	return e.clock()
}

func (e *Event) finish(err error) {
	e.end = e.stamp()
	e.err = err
	close(e.done)
}

func (e *Event) Wait() error {
	<-e.done
	return e.err
}

func (e *Event) Complete() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

func (e *Event) ProfilingInfo(info types.ProfilingInfo) (uint64, error) {
	if !e.Complete() {
		return 0, types.ErrEventPending
	}
	switch info {
	case types.ProfilingQueued:
		return e.queued, nil
	case types.ProfilingSubmit:
		return e.submit, nil
	case types.ProfilingStart:
		return e.start, nil
	case types.ProfilingEnd:
		return e.end, nil
	default:
		return 0, fmt.Errorf("gputrace/host: unknown profiling info %d", info)
	}
}
