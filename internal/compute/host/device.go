package host

import (
	"sync"

	"github.com/ALEYI17/InfraSight_gputrace/pkg/types"
	"go.uber.org/multierr"
)

const queueDepth = 64

type Device struct {
	info  types.DeviceInfo
	clock func() uint64

	mu     sync.Mutex
	queues []*Queue
	closed bool
}

type Option func(*Device)

// WithClock replaces the device clock.
func WithClock(clock func() uint64) Option {
	return func(d *Device) {
		d.clock = clock
	}
}

func NewDevice(opts ...Option) *Device {
	d := &Device{
		info: types.DeviceInfo{
			Name:      "HostCPU",
			Vendor:    "InfraSight",
			Driver:    "host",
			Kind:      types.GpuContextHost,
			ClockRate: 1.0,
		},
		clock: deviceNow,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Device) Info() types.DeviceInfo {
	return d.info
}

func (d *Device) NewQueue(props types.QueueProperties) (types.Queue, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrDeviceClosed
	}

	q := &Queue{
		props: props,
		clock: d.clock,
		cmds:  make(chan *command, queueDepth),
		done:  make(chan struct{}),
	}
	go q.work()
	d.queues = append(d.queues, q)
	return q, nil
}

func (d *Device) NewBuffer(elemCount int) (types.Buffer, error) {
	if elemCount < 1 {
		return nil, ErrInvalidLength
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrDeviceClosed
	}
	return &Buffer{data: make([]float32, elemCount)}, nil
}

// Close drains and closes every queue created from the device.
func (d *Device) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	queues := d.queues
	d.queues = nil
	d.mu.Unlock()

	var err error
	for _, q := range queues {
		err = multierr.Append(err, q.Close())
	}
	return err
}
