package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Config controls the dispatcher queue.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull makes Emit count a drop instead of waiting for queue room.
	DropIfFull bool
	// SinkTimeout bounds each sink call. Zero means no deadline.
	SinkTimeout time.Duration
}

// Dispatcher moves events off the request path onto a single goroutine that
// feeds the sink. A nil *Dispatcher is valid and drops everything.
type Dispatcher struct {
	cfg   Config
	sink  Sink
	queue chan Event

	stopping chan struct{}
	stopOnce sync.Once
	stopped  atomic.Bool
	wg       sync.WaitGroup

	dropped   atomic.Uint64
	delivered atomic.Uint64
}

// NewDispatcher starts delivery, or returns nil when cfg is disabled.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	d := &Dispatcher{
		cfg:      cfg,
		sink:     sink,
		queue:    make(chan Event, max(cfg.BufferSize, 1)),
		stopping: make(chan struct{}),
	}
	d.wg.Go(d.loop)
	return d
}

func (d *Dispatcher) loop() {
	for {
		select {
		case ev := <-d.queue:
			d.send(ev)
		case <-d.stopping:
			d.drain()
			return
		}
	}
}

// drain delivers whatever is still queued once Close was called.
func (d *Dispatcher) drain() {
	for {
		select {
		case ev := <-d.queue:
			d.send(ev)
		default:
			return
		}
	}
}

func (d *Dispatcher) send(ev Event) {
	ctx := context.Background()
	if d.cfg.SinkTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.SinkTimeout)
		defer cancel()
	}
	d.sink.Emit(ctx, ev)
	d.delivered.Add(1)
}

// Emit queues event, stamping it when Timestamp is zero. Events emitted
// after Close are discarded without counting a drop.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.stopped.Load() {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	if d.cfg.DropIfFull {
		select {
		case d.queue <- event:
		case <-d.stopping:
		default:
			d.dropped.Add(1)
		}
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case d.queue <- event:
	case <-d.stopping:
	case <-ctx.Done():
		d.dropped.Add(1)
	}
}

// Close stops accepting events and waits until the queue is drained.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.stopOnce.Do(func() {
		d.stopped.Store(true)
		close(d.stopping)
	})
	d.wg.Wait()
}

// Dropped reports events lost to a full queue or a cancelled context.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Delivered reports events handed to the sink.
func (d *Dispatcher) Delivered() uint64 {
	if d == nil {
		return 0
	}
	return d.delivered.Load()
}
