// Package presence tracks which users are currently active.
//
// A user is online while their last heartbeat is no older than the online
// timeout. ListOnline applies that rule on every read, so an expired entry is
// never reported even if the sweeper has not removed it yet. The sweeper only
// keeps the map from growing.
package presence

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	// DefaultOnlineTimeout is how long a heartbeat keeps a user online.
	DefaultOnlineTimeout = 30 * time.Second
	// DefaultSweepInterval is how often Run evicts expired entries.
	DefaultSweepInterval = 10 * time.Second
)

// Entry is the presence record kept for one user.
type Entry struct {
	UserID     string
	Avatar     string
	Color      string
	LastSeenAt time.Time
}

// Registry maps user ids to their latest heartbeat.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry

	onlineTimeout time.Duration
	now           func() time.Time
	logger        *slog.Logger
	provider      metric.MeterProvider
	metrics       *metrics
}

// Option configures a Registry.
type Option func(*Registry)

// WithOnlineTimeout sets how long a heartbeat keeps a user online.
func WithOnlineTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.onlineTimeout = d
		}
	}
}

// WithClock overrides the registry clock.
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

// NewRegistry returns an empty Registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		entries:       make(map[string]Entry),
		onlineTimeout: DefaultOnlineTimeout,
		now:           time.Now,
		logger:        slog.Default(),
		provider:      otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.metrics = newMetrics(r, r.provider)
	return r
}

// Heartbeat records that userID is active now, replacing any previous entry.
func (r *Registry) Heartbeat(ctx context.Context, userID, avatar, color string) Entry {
	entry := Entry{
		UserID:     userID,
		Avatar:     avatar,
		Color:      color,
		LastSeenAt: r.now(),
	}

	r.mu.Lock()
	_, known := r.entries[userID]
	r.entries[userID] = entry
	r.mu.Unlock()

	r.metrics.heartbeats.Add(ctx, 1)
	if !known {
		r.logger.Debug("User came online", "user", userID)
	}
	return entry
}

// ListOnline returns a snapshot of the users still inside the online window,
// ordered by user id.
func (r *Registry) ListOnline() []Entry {
	now := r.now()

	r.mu.RLock()
	online := make([]Entry, 0, len(r.entries))
	for _, entry := range r.entries {
		if !r.expired(entry, now) {
			online = append(online, entry)
		}
	}
	r.mu.RUnlock()

	slices.SortFunc(online, func(a, b Entry) int {
		return strings.Compare(a.UserID, b.UserID)
	})
	return online
}

// Sweep removes every entry whose last heartbeat is older than the online
// timeout at now. It returns the number of entries removed.
func (r *Registry) Sweep(ctx context.Context, now time.Time) int {
	r.mu.Lock()
	evicted := 0
	for id, entry := range r.entries {
		if r.expired(entry, now) {
			delete(r.entries, id)
			evicted++
		}
	}
	r.mu.Unlock()

	if evicted > 0 {
		r.metrics.evictions.Add(ctx, int64(evicted))
		r.logger.Info("Evicted inactive users", "count", evicted)
	}
	return evicted
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx, r.now())
		}
	}
}

// Len returns the number of stored entries, expired or not.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Close detaches the online-users gauge from the meter provider. The
// registry stays usable; only the gauge stops reporting.
func (r *Registry) Close() {
	r.metrics.unregister()
}

func (r *Registry) expired(entry Entry, now time.Time) bool {
	return now.Sub(entry.LastSeenAt) > r.onlineTimeout
}
