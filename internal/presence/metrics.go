package presence

import (
	"context"

	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/Tyrowin/relaychat/internal/presence"

type metrics struct {
	heartbeats metric.Int64Counter
	evictions  metric.Int64Counter

	registration metric.Registration
}

func newMetrics(r *Registry, provider metric.MeterProvider) *metrics {
	meter := provider.Meter(meterName)

	m := &metrics{}
	m.heartbeats, _ = meter.Int64Counter("presence_heartbeats_total",
		metric.WithDescription("Total heartbeats received"))
	m.evictions, _ = meter.Int64Counter("presence_evictions_total",
		metric.WithDescription("Total entries removed by the sweeper"))

	gauge, err := meter.Int64ObservableGauge("presence_online_users",
		metric.WithDescription("Users with a heartbeat inside the online window"))
	if err == nil {
		m.registration, _ = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
			o.ObserveInt64(gauge, int64(len(r.ListOnline())))
			return nil
		}, gauge)
	}

	return m
}

// unregister detaches the gauge callback so the meter provider no longer
// holds the registry.
func (m *metrics) unregister() {
	if m.registration != nil {
		_ = m.registration.Unregister()
	}
}
