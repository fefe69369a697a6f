package relay

import (
	"context"

	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/Tyrowin/relaychat/internal/relay"

type metrics struct {
	published   metric.Int64Counter
	deliveries  metric.Int64Counter
	timeouts    metric.Int64Counter
	disconnects metric.Int64Counter

	registration metric.Registration
}

func newMetrics(r *Registry, provider metric.MeterProvider) *metrics {
	meter := provider.Meter(meterName)

	m := &metrics{}
	m.published, _ = meter.Int64Counter("relay_messages_published_total",
		metric.WithDescription("Total messages published to parked readers"))
	m.deliveries, _ = meter.Int64Counter("relay_deliveries_total",
		metric.WithDescription("Total waiters released with a message"))
	m.timeouts, _ = meter.Int64Counter("relay_poll_timeouts_total",
		metric.WithDescription("Total waiters released empty after their deadline"))
	m.disconnects, _ = meter.Int64Counter("relay_poll_disconnects_total",
		metric.WithDescription("Total waiters withdrawn because the caller went away"))

	gauge, err := meter.Int64ObservableGauge("relay_waiters",
		metric.WithDescription("Waiters currently parked"))
	if err == nil {
		m.registration, _ = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
			o.ObserveInt64(gauge, int64(r.Len()))
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
