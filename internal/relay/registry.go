// Package relay implements the long-poll rendezvous between chat senders and
// parked readers.
//
// A reader calls Wait and is parked until the next Publish or until its own
// deadline fires. Publish hands the same Message to every reader parked when
// it began and to nobody who arrives later. Each parked reader is released
// exactly once: whichever of Publish, the deadline, the caller's context or
// Close removes it from the registry first decides the outcome.
package relay

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// DefaultPollTimeout bounds how long a single Wait may stay parked.
const DefaultPollTimeout = 30 * time.Second

type waiter struct {
	id       uuid.UUID
	delivery chan Message
}

// Registry holds the set of parked readers.
type Registry struct {
	mu      sync.Mutex
	waiters map[uuid.UUID]*waiter
	closed  bool

	now      func() time.Time
	logger   *slog.Logger
	provider metric.MeterProvider
	metrics  *metrics
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the clock used to stamp published messages.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLogger sets the logger used by the registry.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMeterProvider sets the provider the registry's metrics are recorded
// on. The global provider is used by default.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(r *Registry) {
		if provider != nil {
			r.provider = provider
		}
	}
}

// NewRegistry returns an empty, open Registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		waiters:  make(map[uuid.UUID]*waiter),
		now:      time.Now,
		logger:   slog.Default(),
		provider: otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.metrics = newMetrics(r, r.provider)
	return r
}

// Publish stamps msg with the current time and releases every parked reader
// with it. It returns the stamped message and the number of readers released.
func (r *Registry) Publish(ctx context.Context, msg Message) (Message, int) {
	msg.SentAt = r.now()

	r.mu.Lock()
	taken := r.waiters
	r.waiters = make(map[uuid.UUID]*waiter)
	r.mu.Unlock()

	// Each taken waiter belongs to this call alone and its channel has room
	// for one message, so none of these sends block.
	for _, w := range taken {
		w.delivery <- msg
	}

	r.metrics.published.Add(ctx, 1)
	r.metrics.deliveries.Add(ctx, int64(len(taken)))
	r.logger.Debug("Message published", "sender", msg.SenderID, "released", len(taken))

	return msg, len(taken)
}

// Wait parks the caller until a message is published, the timeout elapses or
// ctx is done. A nil message with a nil error means the wait timed out. If ctx
// ends before anything claimed the waiter, Wait withdraws it and returns
// ctx.Err(). A non-positive timeout means DefaultPollTimeout.
func (r *Registry) Wait(ctx context.Context, timeout time.Duration) (*Message, error) {
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}

	w := &waiter{
		id:       uuid.New(),
		delivery: make(chan Message, 1),
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, nil
	}
	r.waiters[w.id] = w
	r.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg, ok := <-w.delivery:
		return received(msg, ok), nil
	case <-timer.C:
		if r.withdraw(w.id) {
			r.metrics.timeouts.Add(context.WithoutCancel(ctx), 1)
			return nil, nil
		}
	case <-ctx.Done():
		if r.withdraw(w.id) {
			r.metrics.disconnects.Add(context.WithoutCancel(ctx), 1)
			return nil, ctx.Err()
		}
	}

	// Publish or Close claimed the waiter first; its outcome is already on the way.
	msg, ok := <-w.delivery
	return received(msg, ok), nil
}

func received(msg Message, ok bool) *Message {
	if !ok {
		return nil
	}
	return &msg
}

// withdraw removes a waiter and reports whether it was still registered.
func (r *Registry) withdraw(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.waiters[id]; !ok {
		return false
	}
	delete(r.waiters, id)
	return true
}

// Len returns the number of parked readers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.waiters)
}

// Close releases every parked reader empty-handed, detaches the waiter
// gauge and makes later calls to Wait return immediately. It returns the number of readers released.
func (r *Registry) Close() int {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return 0
	}
	r.closed = true
	taken := r.waiters
	r.waiters = make(map[uuid.UUID]*waiter)
	r.mu.Unlock()

	r.metrics.unregister()

	for _, w := range taken {
		close(w.delivery)
	}

	r.logger.Info("Relay closed", "released", len(taken))
	return len(taken)
}

// Closed reports whether Close has been called.
func (r *Registry) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
