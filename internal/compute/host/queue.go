package host

import (
	"fmt"
	"sync"

	"github.com/ALEYI17/InfraSight_gputrace/pkg/types"
)

type command struct {
	ev  *Event
	run func() error
}

type Queue struct {
	props types.QueueProperties
	clock func() uint64
	cmds  chan *command
	done  chan struct{}

	mu     sync.Mutex
	closed bool
	last   *Event
}

func (q *Queue) work() {
	defer close(q.done)
	for cmd := range q.cmds {
		cmd.ev.submit = cmd.ev.stamp()
		cmd.ev.start = cmd.ev.stamp()
		cmd.ev.finish(cmd.run())
	}
}

func (q *Queue) enqueue(run func() error) (*Event, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, ErrQueueClosed
	}
	ev := newEvent(q.props.Profiling, q.clock)
	q.last = ev
	q.cmds <- &command{ev: ev, run: run}
	return ev, nil
}

func (q *Queue) Properties() types.QueueProperties {
	return q.props
}

// EnqueueMarker enqueues a command that does no work and completes once every
// command enqueued before it has completed.
func (q *Queue) EnqueueMarker() (types.Event, error) {
	return q.enqueue(func() error { return nil })
}

func (q *Queue) EnqueueKernel(k types.Kernel, globalSize int) (types.Event, error) {
	fn, ok := program[k.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKernel, k.Name)
	}
	if globalSize < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWorkSize, globalSize)
	}
	args := append([]any(nil), k.Args...)
	return q.enqueue(func() error {
		return fn(globalSize, args)
	})
}

func (q *Queue) EnqueueWriteBuffer(buf types.Buffer, src []float32) (types.Event, error) {
	b, err := hostBuffer(buf)
	if err != nil {
		return nil, err
	}
	if len(src) < b.Len() {
		return nil, fmt.Errorf("%w: source has %d elements, buffer %d", ErrLengthMismatch, len(src), b.Len())
	}
	data := append([]float32(nil), src[:b.Len()]...)
	return q.enqueue(func() error {
		b.mu.Lock()
		defer b.mu.Unlock()
		copy(b.data, data)
		return nil
	})
}

func (q *Queue) EnqueueReadBuffer(buf types.Buffer, dst []float32) (types.Event, error) {
	b, err := hostBuffer(buf)
	if err != nil {
		return nil, err
	}
	if len(dst) < b.Len() {
		return nil, fmt.Errorf("%w: destination has %d elements, buffer %d", ErrLengthMismatch, len(dst), b.Len())
	}
	return q.enqueue(func() error {
		b.mu.RLock()
		defer b.mu.RUnlock()
		copy(dst, b.data)
		return nil
	})
}

func (q *Queue) Finish() error {
	q.mu.Lock()
	last := q.last
	q.mu.Unlock()
	if last == nil {
		return nil
	}
	return last.Wait()
}

// Close waits for pending commands and stops the worker.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.cmds)
	q.mu.Unlock()
	<-q.done
	return nil
}

func hostBuffer(buf types.Buffer) (*Buffer, error) {
	b, ok := buf.(*Buffer)
	if !ok || b == nil {
		return nil, ErrForeignBuffer
	}
	return b, nil
}
