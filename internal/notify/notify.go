// Package notify fans committed ledger events out to notification sinks.
// Delivery is asynchronous and best effort: a slow or failing sink never
// blocks or undoes a ledger transition.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/copytrade-ledger/internal/circuitbreaker"
	"github.com/copytrade-ledger/internal/logging"
	"github.com/copytrade-ledger/internal/models"
)

// Sink receives ledger events
type Sink interface {
	Name() string
	Publish(ctx context.Context, event models.Event) error
}

// Options configures a Dispatcher
type Options struct {
	QueueSize      int
	PublishTimeout time.Duration
	Breaker        func(name string) *circuitbreaker.Config
	// OnResult is called once per sink delivery attempt.
	OnResult func(sink string, err error)
	// OnDrop is called when an event is dropped because the queue is full.
	OnDrop func(event models.Event)
}

type guardedSink struct {
	sink    Sink
	breaker *circuitbreaker.CircuitBreaker
}

// Dispatcher delivers events to every sink from a bounded queue
type Dispatcher struct {
	opts  Options
	sinks []guardedSink
	queue chan models.Event

	closeOnce sync.Once
	closed    chan struct{}
}

// NewDispatcher creates a dispatcher for sinks
func NewDispatcher(opts Options, sinks ...Sink) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = 5 * time.Second
	}
	if opts.Breaker == nil {
		opts.Breaker = circuitbreaker.DefaultConfig
	}

	d := &Dispatcher{
		opts:   opts,
		queue:  make(chan models.Event, opts.QueueSize),
		closed: make(chan struct{}),
	}
	for _, s := range sinks {
		d.sinks = append(d.sinks, guardedSink{
			sink:    s,
			breaker: circuitbreaker.NewCircuitBreaker(opts.Breaker("notify:" + s.Name())),
		})
	}
	return d
}

// Emit queues event for delivery without blocking. It returns false when the
// event was dropped.
func (d *Dispatcher) Emit(event models.Event) bool {
	select {
	case <-d.closed:
		return false
	default:
	}

	select {
	case d.queue <- event:
		return true
	default:
		logging.WithFields(map[string]interface{}{
			"account": event.Account,
			"kind":    string(event.Kind),
		}).Warn("Notification queue full, dropping event")
		if d.opts.OnDrop != nil {
			d.opts.OnDrop(event)
		}
		return false
	}
}

// Run delivers queued events until ctx is cancelled, then drains the queue
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			d.closeOnce.Do(func() { close(d.closed) })
			d.drain()
			return nil
		case event := <-d.queue:
			d.deliver(ctx, event)
		}
	}
}

func (d *Dispatcher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case event := <-d.queue:
			d.deliver(ctx, event)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, event models.Event) {
	for _, gs := range d.sinks {
		err := gs.breaker.Execute(ctx, func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, d.opts.PublishTimeout)
			defer cancel()
			return gs.sink.Publish(ctx, event)
		})
		if err != nil {
			logging.WithError(err).WithFields(map[string]interface{}{
				"sink":    gs.sink.Name(),
				"account": event.Account,
				"kind":    string(event.Kind),
			}).Warn("Failed to publish notification")
		}
		if d.opts.OnResult != nil {
			d.opts.OnResult(gs.sink.Name(), err)
		}
	}
}
