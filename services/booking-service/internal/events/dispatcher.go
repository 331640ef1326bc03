package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/md-rashed-zaman/slotkeeper/services/booking-service/internal/metrics"
)

// Publisher is what the engine and the lifecycle machine depend on.
type Publisher interface {
	Publish(ctx context.Context, evt Event)
}

// Sink delivers one event to one collaborator.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, evt Event) error
}

type DispatcherConfig struct {
	QueueSize   int
	Workers     int
	SinkTimeout time.Duration
}

type queued struct {
	ctx context.Context
	evt Event
}

// Dispatcher fans events out to sinks from a bounded queue. Publish never blocks: when the
// queue is full the event is dropped and counted.
type Dispatcher struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
	sinks   []Sink
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan queued
	wg     sync.WaitGroup
}

func NewDispatcher(logger *slog.Logger, m *metrics.Metrics, cfg DispatcherConfig, sinks ...Sink) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = 5 * time.Second
	}
	d := &Dispatcher{
		logger:  logger,
		metrics: m,
		sinks:   sinks,
		timeout: cfg.SinkTimeout,
		queue:   make(chan queued, cfg.QueueSize),
	}
	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	return d
}

// Publish keeps ctx values (trace span, request id) but not its cancellation: delivery
// happens after the request has returned.
func (d *Dispatcher) Publish(ctx context.Context, evt Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.drop(evt, "dispatcher closed")
		return
	}
	select {
	case d.queue <- queued{ctx: context.WithoutCancel(ctx), evt: evt}:
	default:
		d.drop(evt, "queue full")
	}
}

func (d *Dispatcher) drop(evt Event, why string) {
	d.logger.Warn("event dropped", "event_type", evt.Type, "event_id", evt.ID, "reason", why)
	for _, s := range d.sinks {
		d.metrics.ObserveEvent(s.Name(), "dropped")
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for q := range d.queue {
		for _, s := range d.sinks {
			d.deliver(q.ctx, s, q.evt)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, s Sink, evt Event) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if err := s.Deliver(ctx, evt); err != nil {
		d.logger.Error("event delivery failed", "sink", s.Name(), "event_type", evt.Type, "event_id", evt.ID, "err", err)
		d.metrics.ObserveEvent(s.Name(), "failed")
		return
	}
	d.metrics.ObserveEvent(s.Name(), "delivered")
}

// Close stops accepting events and waits for queued ones to be delivered or ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Join(errors.New("events still queued at shutdown"), ctx.Err())
	}
}
